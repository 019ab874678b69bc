// This file is part of the program "xsettings".
// Please see the LICENSE file for copyright information.

package xsettings

import (
	"fmt"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xfixes"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/hashicorp/go-hclog"
)

const (
	SettingsProperty = "_XSETTINGS_SETTINGS"
	managerAtomName  = "MANAGER"
)

// WatchMask is the event mask announced through WatchFunc for the settings
// owner window.
const WatchMask uint32 = xproto.EventMaskPropertyChange | xproto.EventMaskStructureNotify

// SelectionName returns the selection owned by the settings manager of screen.
func SelectionName(screen int) string {
	return fmt.Sprintf("_XSETTINGS_S%d", screen)
}

// Display is the part of the X connection the client needs.
type Display interface {
	Atom(name string) (xproto.Atom, error)
	// SelectionOwner returns 0 when nobody owns selection.
	SelectionOwner(selection xproto.Atom) (xproto.Window, error)
	Property(window xproto.Window, property xproto.Atom) ([]byte, error)
}

type State int

const (
	StateUnbound State = iota
	StateBound
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateUnbound:
		return "unbound"
	case StateBound:
		return "bound"
	case StateDestroyed:
		return "destroyed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

type Option func(*Client)

// WithLogger sets the logger used for diagnostics. The default discards
// everything.
func WithLogger(l hclog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// Client tracks the settings of one screen. It is not safe for concurrent
// use; ProcessEvent, GetSetting, Lookup and Close must be serialized.
type Client struct {
	display Display
	screen  int
	log     hclog.Logger

	selection xproto.Atom
	property  xproto.Atom
	manager   xproto.Atom

	// owner is the watched window, or 0. The client is bound once a blob
	// read from owner decoded successfully.
	owner  xproto.Window
	bound  bool
	closed bool

	snap *snapshot
	cb   *dispatcher
}

// NewClient creates a client for screen and immediately looks for the
// settings owner. When one is found, watch is asked to start watching it and
// notify receives a New action for every setting. Not finding an owner, or
// finding one whose settings cannot be read, leaves the client unbound
// without failing.
func NewClient(d Display, screen int, notify NotifyFunc, watch WatchFunc, opts ...Option) (*Client, error) {
	if d == nil {
		return nil, fmt.Errorf("xsettings: nil display: %w", ErrFailed)
	}
	if notify == nil || watch == nil {
		return nil, fmt.Errorf("xsettings: notify and watch callbacks are required: %w", ErrFailed)
	}
	c := &Client{
		display: d,
		screen:  screen,
		log:     hclog.NewNullLogger(),
		snap:    newSnapshot(0, nil),
		cb:      &dispatcher{notify: notify, watch: watch},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With("screen", screen)

	var err error
	if c.selection, err = c.intern(SelectionName(screen)); err != nil {
		return nil, err
	}
	if c.property, err = c.intern(SettingsProperty); err != nil {
		return nil, err
	}
	if c.manager, err = c.intern(managerAtomName); err != nil {
		return nil, err
	}

	if err := c.checkOwner(); err != nil {
		c.log.Warn("initial settings read failed", "error", err)
	}
	return c, nil
}

func (c *Client) intern(name string) (xproto.Atom, error) {
	a, err := c.display.Atom(name)
	if err != nil {
		return 0, fmt.Errorf("xsettings: intern %s: %w", name, err)
	}
	return a, nil
}

// State reports where the client is in its lifecycle.
func (c *Client) State() State {
	switch {
	case c.closed:
		return StateDestroyed
	case c.bound:
		return StateBound
	}
	return StateUnbound
}

// Owner returns the watched settings owner window, or 0.
func (c *Client) Owner() xproto.Window { return c.owner }

// Serial returns the serial of the blob the current snapshot came from.
func (c *Client) Serial() uint32 {
	if c.closed {
		return 0
	}
	return c.snap.serial
}

// ProcessEvent inspects an event from the X connection and reports whether
// it concerned settings tracking. It may be called with every event; events
// it does not recognise are ignored without side effects. The error is
// non-nil when the settings could not be refreshed, in which case the
// previous snapshot is kept.
func (c *Client) ProcessEvent(ev xgb.Event) (bool, error) {
	if c.closed {
		return false, ErrClosed
	}
	switch e := ev.(type) {
	case xproto.PropertyNotifyEvent:
		if c.owner == 0 || e.Window != c.owner || e.Atom != c.property {
			return false, nil
		}
		return true, c.readSettings()
	case xproto.DestroyNotifyEvent:
		if c.owner == 0 || e.Window != c.owner {
			return false, nil
		}
		return true, c.checkOwner()
	case xproto.ClientMessageEvent:
		// MANAGER announcements carry the selection in the second word.
		if e.Type != c.manager || e.Format != 32 || len(e.Data.Data32) < 2 ||
			xproto.Atom(e.Data.Data32[1]) != c.selection {
			return false, nil
		}
		return true, c.checkOwner()
	case xproto.SelectionClearEvent:
		if e.Selection != c.selection {
			return false, nil
		}
		return true, c.checkOwner()
	case xfixes.SelectionNotifyEvent:
		if e.Selection != c.selection {
			return false, nil
		}
		return true, c.checkOwner()
	}
	return false, nil
}

// GetSetting returns an owned copy of the named setting. Names match
// exactly.
func (c *Client) GetSetting(name string) (Setting, error) {
	if c.closed {
		return Setting{}, ErrClosed
	}
	s, ok := c.snap.lookup(name)
	if !ok {
		return Setting{}, fmt.Errorf("xsettings: %q: %w", name, ErrNotFound)
	}
	return s.Clone(), nil
}

// Lookup calls fn with a borrowed view of the named setting, avoiding the
// copy GetSetting makes.
func (c *Client) Lookup(name string, fn func(SettingView)) error {
	if c.closed {
		return ErrClosed
	}
	s, ok := c.snap.lookup(name)
	if !ok {
		return fmt.Errorf("xsettings: %q: %w", name, ErrNotFound)
	}
	view(s, fn)
	return nil
}

// Settings returns owned copies of every setting in snapshot order.
func (c *Client) Settings() []Setting {
	if c.closed {
		return nil
	}
	out := make([]Setting, 0, c.snap.len())
	for _, s := range c.snap.settings {
		out = append(out, s.Clone())
	}
	return out
}

// Close stops tracking. If a window is being watched, watch is told to stop
// watching it. The callbacks are released and the client must not be used
// afterwards.
func (c *Client) Close() {
	if c.closed {
		return
	}
	if c.owner != 0 {
		c.cb.stopWatch(c.owner)
	}
	c.log.Debug("client closed")
	c.closed = true
	c.bound = false
	c.owner = 0
	c.cb = nil
	c.snap = nil
}

// checkOwner resolves the selection owner and moves the client to it.
func (c *Client) checkOwner() error {
	owner, err := c.display.SelectionOwner(c.selection)
	if err != nil {
		return fmt.Errorf("xsettings: query owner of %s: %w", SelectionName(c.screen), err)
	}
	if owner != 0 && owner == c.owner {
		return c.readSettings()
	}

	c.unbind()
	if owner == 0 {
		c.log.Debug("no settings manager")
		return nil
	}
	c.log.Debug("settings manager found", "window", hclog.Fmt("0x%x", owner))
	c.owner = owner
	c.cb.startWatch(owner)
	return c.readSettings()
}

// unbind drops the current owner, reporting every known setting as Deleted.
func (c *Client) unbind() {
	if c.owner == 0 {
		return
	}
	old := c.owner
	c.log.Debug("settings manager gone", "window", hclog.Fmt("0x%x", old), "settings", c.snap.len())
	changes := c.snap.clear()
	c.owner = 0
	c.bound = false
	c.cb.dispatch(changes)
	c.cb.stopWatch(old)
}

func (c *Client) readSettings() error {
	data, err := c.display.Property(c.owner, c.property)
	if err != nil {
		c.log.Debug("reading settings failed", "window", hclog.Fmt("0x%x", c.owner), "error", err)
		return fmt.Errorf("xsettings: read %s of window 0x%x: %w", SettingsProperty, c.owner, err)
	}
	blob, err := Decode(data)
	if err != nil {
		c.log.Warn("ignoring malformed settings", "window", hclog.Fmt("0x%x", c.owner), "bytes", len(data), "error", err)
		return err
	}

	changes := c.snap.apply(blob.Serial, blob.Settings)
	if !c.bound {
		c.log.Debug("bound to settings manager", "window", hclog.Fmt("0x%x", c.owner))
	}
	c.bound = true
	c.log.Trace("settings updated", "serial", blob.Serial, "settings", len(blob.Settings), "changes", len(changes))
	c.cb.dispatch(changes)
	return nil
}
