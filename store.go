// This file is part of the program "xsettings".
// Please see the LICENSE file for copyright information.

package xsettings

import "fmt"

// Action says how a setting differs from the previous snapshot.
type Action uint8

const (
	New Action = iota
	Changed
	Deleted
)

func (a Action) String() string {
	switch a {
	case New:
		return "new"
	case Changed:
		return "changed"
	case Deleted:
		return "deleted"
	}
	return fmt.Sprintf("action(%d)", uint8(a))
}

// Change is one entry of a snapshot diff. Setting is the new setting for
// New and Changed, and the removed one for Deleted.
type Change struct {
	Name    string
	Action  Action
	Setting *Setting
}

// snapshot holds every setting of the last decoded blob, in blob order.
type snapshot struct {
	serial   uint32
	settings []Setting
	index    map[string]int
}

func newSnapshot(serial uint32, entries []Setting) *snapshot {
	s := &snapshot{
		serial:   serial,
		settings: make([]Setting, 0, len(entries)),
		index:    make(map[string]int, len(entries)),
	}
	for _, e := range entries {
		if _, dup := s.index[e.Name]; dup {
			// Decode rejects duplicates; keep the first if one slips through.
			continue
		}
		s.index[e.Name] = len(s.settings)
		s.settings = append(s.settings, e)
	}
	return s
}

func (s *snapshot) len() int { return len(s.settings) }

func (s *snapshot) lookup(name string) (*Setting, bool) {
	i, ok := s.index[name]
	if !ok {
		return nil, false
	}
	return &s.settings[i], true
}

// apply diffs entries against the current contents and then replaces them.
// New and Changed come in entries order, followed by Deleted in the order
// of the old snapshot.
func (s *snapshot) apply(serial uint32, entries []Setting) []Change {
	next := newSnapshot(serial, entries)

	var changes []Change
	for i := range next.settings {
		cur := &next.settings[i]
		old, ok := s.lookup(cur.Name)
		switch {
		case !ok:
			changes = append(changes, Change{Name: cur.Name, Action: New, Setting: cur})
		case !old.Equal(*cur):
			changes = append(changes, Change{Name: cur.Name, Action: Changed, Setting: cur})
		}
	}
	for i := range s.settings {
		old := &s.settings[i]
		if _, ok := next.index[old.Name]; !ok {
			changes = append(changes, Change{Name: old.Name, Action: Deleted, Setting: old})
		}
	}

	*s = *next
	return changes
}

// clear empties the snapshot and reports every former entry as Deleted.
func (s *snapshot) clear() []Change {
	changes := make([]Change, 0, len(s.settings))
	for i := range s.settings {
		changes = append(changes, Change{Name: s.settings[i].Name, Action: Deleted, Setting: &s.settings[i]})
	}
	*s = *newSnapshot(0, nil)
	return changes
}
