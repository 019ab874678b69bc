package xsettings

import (
	"encoding/binary"
	"errors"
	"fmt"
	"testing"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xfixes"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/google/go-cmp/cmp"
)

type fakeDisplay struct {
	atoms    map[string]xproto.Atom
	owner    xproto.Window
	ownerErr error
	props    map[xproto.Window][]byte
	propErr  error
	reads    int
}

func newFakeDisplay() *fakeDisplay {
	return &fakeDisplay{
		atoms: map[string]xproto.Atom{},
		props: map[xproto.Window][]byte{},
	}
}

func (d *fakeDisplay) Atom(name string) (xproto.Atom, error) {
	a, ok := d.atoms[name]
	if !ok {
		a = xproto.Atom(100 + len(d.atoms))
		d.atoms[name] = a
	}
	return a, nil
}

func (d *fakeDisplay) atom(name string) xproto.Atom {
	a, _ := d.Atom(name)
	return a
}

func (d *fakeDisplay) SelectionOwner(xproto.Atom) (xproto.Window, error) {
	return d.owner, d.ownerErr
}

func (d *fakeDisplay) Property(win xproto.Window, prop xproto.Atom) ([]byte, error) {
	d.reads++
	if d.propErr != nil {
		return nil, d.propErr
	}
	if prop != d.atom(SettingsProperty) {
		return nil, fmt.Errorf("unexpected property %d: %w", prop, ErrFailed)
	}
	data, ok := d.props[win]
	if !ok {
		return nil, fmt.Errorf("no property on 0x%x: %w", win, ErrNotFound)
	}
	return data, nil
}

func (d *fakeDisplay) set(t *testing.T, win xproto.Window, serial uint32, settings ...Setting) {
	t.Helper()
	d.props[win] = mustEncode(t, binary.LittleEndian, serial, settings...)
}

// recorder logs every callback as a line of text.
type recorder struct {
	lines []string
}

func (r *recorder) notify(name string, action Action, s SettingView) {
	r.lines = append(r.lines, fmt.Sprintf("%s %s", action, s))
}

func (r *recorder) watch(w xproto.Window, start bool, mask uint32) {
	if mask != WatchMask {
		r.lines = append(r.lines, fmt.Sprintf("bad mask %#x", mask))
	}
	if start {
		r.lines = append(r.lines, fmt.Sprintf("watch 0x%x", w))
	} else {
		r.lines = append(r.lines, fmt.Sprintf("unwatch 0x%x", w))
	}
}

func (r *recorder) take() []string {
	lines := r.lines
	r.lines = nil
	return lines
}

func newTestClient(t *testing.T, d *fakeDisplay) (*Client, *recorder) {
	t.Helper()
	r := &recorder{}
	c, err := NewClient(d, 0, r.notify, r.watch)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c, r
}

func wantLines(t *testing.T, r *recorder, want ...string) {
	t.Helper()
	if diff := cmp.Diff(want, r.take()); diff != "" {
		t.Errorf("callbacks mismatch (-want +got):\n%s", diff)
	}
}

func propertyNotify(d *fakeDisplay, win xproto.Window) xproto.PropertyNotifyEvent {
	return xproto.PropertyNotifyEvent{Window: win, Atom: d.atom(SettingsProperty)}
}

func managerMessage(d *fakeDisplay, owner xproto.Window) xproto.ClientMessageEvent {
	return xproto.ClientMessageEvent{
		Format: 32,
		Window: 1,
		Type:   d.atom("MANAGER"),
		Data: xproto.ClientMessageDataUnion{
			Data32: []uint32{0, uint32(d.atom(SelectionName(0))), uint32(owner), 0, 0},
		},
	}
}

func TestNewClientRequiresCallbacks(t *testing.T) {
	r := &recorder{}
	if _, err := NewClient(newFakeDisplay(), 0, nil, r.watch); !errors.Is(err, ErrFailed) {
		t.Errorf("nil notify: err = %v", err)
	}
	if _, err := NewClient(newFakeDisplay(), 0, r.notify, nil); !errors.Is(err, ErrFailed) {
		t.Errorf("nil watch: err = %v", err)
	}
	if _, err := NewClient(nil, 0, r.notify, r.watch); !errors.Is(err, ErrFailed) {
		t.Errorf("nil display: err = %v", err)
	}
}

func TestNewClientWithoutOwner(t *testing.T) {
	c, r := newTestClient(t, newFakeDisplay())
	wantLines(t, r)
	if c.State() != StateUnbound {
		t.Errorf("State = %v, want unbound", c.State())
	}
	if _, err := c.GetSetting("Xft/DPI"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetSetting err = %v, want ErrNotFound", err)
	}
}

func TestInitialBind(t *testing.T) {
	d := newFakeDisplay()
	d.owner = 0x100
	d.set(t, 0x100, 3,
		Setting{Name: "A", Value: IntValue(1)},
		Setting{Name: "B", Value: StringValue([]byte("x"))},
	)
	c, r := newTestClient(t, d)

	wantLines(t, r, "watch 0x100", "new A=1", `new B="x"`)
	if c.State() != StateBound || c.Owner() != 0x100 || c.Serial() != 3 {
		t.Errorf("state=%v owner=%#x serial=%d", c.State(), c.Owner(), c.Serial())
	}

	a, err := c.GetSetting("A")
	if err != nil {
		t.Fatalf("GetSetting(A): %v", err)
	}
	if v, ok := a.Value.Int(); !ok || v != 1 {
		t.Errorf("A = %v", a)
	}
	if _, err := c.GetSetting("a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("lookup is not case sensitive: %v", err)
	}
	if diff := cmp.Diff([]Setting{
		{Name: "A", Value: IntValue(1)},
		{Name: "B", Value: StringValue([]byte("x"))},
	}, c.Settings(), valueComparer); diff != "" {
		t.Errorf("Settings mismatch (-want +got):\n%s", diff)
	}
}

func TestPropertyChange(t *testing.T) {
	d := newFakeDisplay()
	d.owner = 0x100
	d.set(t, 0x100, 1,
		Setting{Name: "A", Value: IntValue(1)},
		Setting{Name: "B", Value: StringValue([]byte("x"))},
	)
	c, r := newTestClient(t, d)
	r.take()

	d.set(t, 0x100, 2,
		Setting{Name: "C", Value: ColorValue(Color{Alpha: 0xffff})},
		Setting{Name: "A", Value: IntValue(2)},
	)
	handled, err := c.ProcessEvent(propertyNotify(d, 0x100))
	if !handled || err != nil {
		t.Fatalf("ProcessEvent = %t, %v", handled, err)
	}
	wantLines(t, r, "new C=rgba(0, 0, 0, 65535)", "changed A=2", `deleted B="x"`)

	// same blob again
	handled, err = c.ProcessEvent(propertyNotify(d, 0x100))
	if !handled || err != nil {
		t.Fatalf("ProcessEvent = %t, %v", handled, err)
	}
	wantLines(t, r)
	if c.Serial() != 2 {
		t.Errorf("Serial = %d, want 2", c.Serial())
	}
}

func TestIrrelevantEvents(t *testing.T) {
	d := newFakeDisplay()
	d.owner = 0x100
	d.set(t, 0x100, 1, Setting{Name: "A", Value: IntValue(1)})
	c, r := newTestClient(t, d)
	r.take()
	reads := d.reads

	events := []struct {
		name string
		ev   xgb.Event
	}{
		{"key press", xproto.KeyPressEvent{}},
		{"other window", propertyNotify(d, 0x200)},
		{"other property", xproto.PropertyNotifyEvent{Window: 0x100, Atom: d.atom("WM_NAME")}},
		{"other destroy", xproto.DestroyNotifyEvent{Window: 0x200}},
		{"other selection clear", xproto.SelectionClearEvent{Selection: d.atom("CLIPBOARD")}},
		{"other client message", xproto.ClientMessageEvent{Format: 32, Type: d.atom("WM_PROTOCOLS"),
			Data: xproto.ClientMessageDataUnion{Data32: []uint32{0, 0, 0, 0, 0}}}},
		{"manager for other screen", xproto.ClientMessageEvent{Format: 32, Type: d.atom("MANAGER"),
			Data: xproto.ClientMessageDataUnion{Data32: []uint32{0, uint32(d.atom(SelectionName(1))), 0, 0, 0}}}},
		{"other xfixes selection", xfixes.SelectionNotifyEvent{Selection: d.atom("PRIMARY")}},
	}
	for _, tt := range events {
		t.Run(tt.name, func(t *testing.T) {
			handled, err := c.ProcessEvent(tt.ev)
			if handled || err != nil {
				t.Errorf("ProcessEvent = %t, %v; want false, nil", handled, err)
			}
		})
	}
	wantLines(t, r)
	if d.reads != reads {
		t.Errorf("irrelevant events read the property %d times", d.reads-reads)
	}
	if c.State() != StateBound {
		t.Errorf("State = %v", c.State())
	}
}

func TestMalformedUpdateKeepsSnapshot(t *testing.T) {
	d := newFakeDisplay()
	d.owner = 0x100
	d.set(t, 0x100, 1, Setting{Name: "A", Value: IntValue(1)})
	c, r := newTestClient(t, d)
	r.take()

	d.props[0x100] = []byte{0, 0, 0, 0, 2, 0, 0, 0, 1, 0, 0, 0, 9, 0, 1, 0}
	handled, err := c.ProcessEvent(propertyNotify(d, 0x100))
	if !handled {
		t.Errorf("property change not handled")
	}
	if !errors.Is(err, ErrFailed) {
		t.Errorf("err = %v, want ErrFailed", err)
	}
	wantLines(t, r)
	if c.State() != StateBound || c.Serial() != 1 {
		t.Errorf("state=%v serial=%d after bad blob", c.State(), c.Serial())
	}
	if s, err := c.GetSetting("A"); err != nil || !s.Equal(Setting{Name: "A", Value: IntValue(1)}) {
		t.Errorf("GetSetting(A) = %v, %v", s, err)
	}
}

func TestReadErrorPropagates(t *testing.T) {
	d := newFakeDisplay()
	d.owner = 0x100
	d.set(t, 0x100, 1, Setting{Name: "A", Value: IntValue(1)})
	c, r := newTestClient(t, d)
	r.take()

	d.propErr = fmt.Errorf("BadAccess: %w", ErrAccessDenied)
	_, err := c.ProcessEvent(propertyNotify(d, 0x100))
	if !errors.Is(err, ErrAccessDenied) {
		t.Errorf("err = %v, want ErrAccessDenied", err)
	}
	wantLines(t, r)
}

func TestOwnerLossAndRebind(t *testing.T) {
	d := newFakeDisplay()
	d.owner = 0x100
	d.set(t, 0x100, 1,
		Setting{Name: "A", Value: IntValue(1)},
		Setting{Name: "B", Value: StringValue([]byte("x"))},
	)
	c, r := newTestClient(t, d)
	r.take()

	d.owner = 0
	handled, err := c.ProcessEvent(xproto.DestroyNotifyEvent{Event: 0x100, Window: 0x100})
	if !handled || err != nil {
		t.Fatalf("DestroyNotify = %t, %v", handled, err)
	}
	wantLines(t, r, "deleted A=1", `deleted B="x"`, "unwatch 0x100")
	if c.State() != StateUnbound || c.Owner() != 0 {
		t.Fatalf("state=%v owner=%#x after owner loss", c.State(), c.Owner())
	}
	if len(c.Settings()) != 0 {
		t.Errorf("snapshot not cleared: %v", c.Settings())
	}

	d.owner = 0x200
	d.set(t, 0x200, 1, Setting{Name: "A", Value: IntValue(2)})
	handled, err = c.ProcessEvent(managerMessage(d, 0x200))
	if !handled || err != nil {
		t.Fatalf("MANAGER = %t, %v", handled, err)
	}
	wantLines(t, r, "watch 0x200", "new A=2")
	if c.State() != StateBound || c.Owner() != 0x200 {
		t.Errorf("state=%v owner=%#x after rebind", c.State(), c.Owner())
	}
}

func TestOwnerMoves(t *testing.T) {
	d := newFakeDisplay()
	d.owner = 0x100
	d.set(t, 0x100, 1, Setting{Name: "A", Value: IntValue(1)})
	d.set(t, 0x200, 1, Setting{Name: "A", Value: IntValue(1)})
	c, r := newTestClient(t, d)
	r.take()

	d.owner = 0x200
	handled, err := c.ProcessEvent(xfixes.SelectionNotifyEvent{Owner: 0x200, Selection: d.atom(SelectionName(0))})
	if !handled || err != nil {
		t.Fatalf("SelectionNotify = %t, %v", handled, err)
	}
	wantLines(t, r, "deleted A=1", "unwatch 0x100", "watch 0x200", "new A=1")

	d.owner = 0x300
	d.set(t, 0x300, 1)
	handled, err = c.ProcessEvent(xproto.SelectionClearEvent{Owner: 0x200, Selection: d.atom(SelectionName(0))})
	if !handled || err != nil {
		t.Fatalf("SelectionClear = %t, %v", handled, err)
	}
	wantLines(t, r, "deleted A=1", "unwatch 0x200", "watch 0x300")
	if c.State() != StateBound {
		t.Errorf("empty blob should bind, state = %v", c.State())
	}
}

func TestSameOwnerAnnouncement(t *testing.T) {
	d := newFakeDisplay()
	d.owner = 0x100
	d.set(t, 0x100, 1, Setting{Name: "A", Value: IntValue(1)})
	c, r := newTestClient(t, d)
	r.take()

	d.set(t, 0x100, 2, Setting{Name: "A", Value: IntValue(3)})
	handled, err := c.ProcessEvent(managerMessage(d, 0x100))
	if !handled || err != nil {
		t.Fatalf("MANAGER = %t, %v", handled, err)
	}
	wantLines(t, r, "changed A=3")
}

func TestBindAfterInitialDecodeFailure(t *testing.T) {
	d := newFakeDisplay()
	d.owner = 0x100
	d.props[0x100] = []byte{7}
	c, r := newTestClient(t, d)

	wantLines(t, r, "watch 0x100")
	if c.State() != StateUnbound || c.Owner() != 0x100 {
		t.Fatalf("state=%v owner=%#x, want unbound while watching 0x100", c.State(), c.Owner())
	}

	d.set(t, 0x100, 1, Setting{Name: "A", Value: IntValue(1)})
	handled, err := c.ProcessEvent(propertyNotify(d, 0x100))
	if !handled || err != nil {
		t.Fatalf("ProcessEvent = %t, %v", handled, err)
	}
	wantLines(t, r, "new A=1")
	if c.State() != StateBound {
		t.Errorf("State = %v, want bound", c.State())
	}
}

func TestOwnerQueryError(t *testing.T) {
	d := newFakeDisplay()
	d.owner = 0x100
	d.set(t, 0x100, 1, Setting{Name: "A", Value: IntValue(1)})
	c, r := newTestClient(t, d)
	r.take()

	d.ownerErr = fmt.Errorf("BadAccess: %w", ErrAccessDenied)
	handled, err := c.ProcessEvent(managerMessage(d, 0x200))
	if !handled || !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("ProcessEvent = %t, %v", handled, err)
	}
	wantLines(t, r)
	if c.State() != StateBound || c.Owner() != 0x100 {
		t.Errorf("state=%v owner=%#x changed on a failed query", c.State(), c.Owner())
	}
}

func TestNotifySeesNewSnapshot(t *testing.T) {
	d := newFakeDisplay()
	d.owner = 0x100
	d.set(t, 0x100, 1,
		Setting{Name: "A", Value: IntValue(1)},
		Setting{Name: "B", Value: IntValue(2)},
	)

	var c *Client
	var observed []string
	notify := func(name string, action Action, s SettingView) {
		if c == nil {
			return
		}
		for _, n := range []string{"A", "B"} {
			got, err := c.GetSetting(n)
			observed = append(observed, fmt.Sprintf("%s:%v/%v", name, got, err != nil))
		}
	}
	var err error
	c, err = NewClient(d, 0, notify, func(xproto.Window, bool, uint32) {})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	d.set(t, 0x100, 2,
		Setting{Name: "A", Value: IntValue(10)},
		Setting{Name: "B", Value: IntValue(20)},
	)
	if _, err := c.ProcessEvent(propertyNotify(d, 0x100)); err != nil {
		t.Fatalf("ProcessEvent: %v", err)
	}
	want := []string{"A:A=10/false", "A:B=20/false", "B:A=10/false", "B:B=20/false"}
	if diff := cmp.Diff(want, observed); diff != "" {
		t.Errorf("observed snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestNotifyViewCopy(t *testing.T) {
	d := newFakeDisplay()
	d.owner = 0x100
	d.set(t, 0x100, 1, Setting{Name: "Net/ThemeName", Value: StringValue([]byte("Adwaita"))})

	var kept []Setting
	var views []SettingView
	_, err := NewClient(d, 0, func(name string, action Action, s SettingView) {
		kept = append(kept, s.Copy())
		views = append(views, s)
	}, func(xproto.Window, bool, uint32) {})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	// scribble over the property buffer the view was decoded from
	for i := range d.props[0x100] {
		d.props[0x100][i] = 0
	}
	if got, _ := kept[0].Value.Bytes(); string(got) != "Adwaita" {
		t.Errorf("copied value = %q", got)
	}

	defer func() {
		if recover() == nil {
			t.Errorf("retained view did not panic")
		}
	}()
	_ = views[0].Name()
}

func TestLookup(t *testing.T) {
	d := newFakeDisplay()
	d.owner = 0x100
	d.set(t, 0x100, 1, Setting{Name: "Xft/DPI", Value: IntValue(98304)})
	c, _ := newTestClient(t, d)

	var dpi int32
	if err := c.Lookup("Xft/DPI", func(v SettingView) { dpi, _ = v.Value().Int() }); err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if dpi != 98304 {
		t.Errorf("dpi = %d", dpi)
	}
	if err := c.Lookup("Xft/Hinting", func(SettingView) { t.Errorf("called for missing setting") }); !errors.Is(err, ErrNotFound) {
		t.Errorf("Lookup missing: %v", err)
	}
}

func TestClose(t *testing.T) {
	d := newFakeDisplay()
	d.owner = 0x100
	d.set(t, 0x100, 1, Setting{Name: "A", Value: IntValue(1)})
	c, r := newTestClient(t, d)
	r.take()

	c.Close()
	wantLines(t, r, "unwatch 0x100")
	if c.State() != StateDestroyed {
		t.Errorf("State = %v", c.State())
	}
	if handled, err := c.ProcessEvent(propertyNotify(d, 0x100)); handled || !errors.Is(err, ErrClosed) {
		t.Errorf("ProcessEvent after Close = %t, %v", handled, err)
	}
	if _, err := c.GetSetting("A"); !errors.Is(err, ErrClosed) {
		t.Errorf("GetSetting after Close: %v", err)
	}
	c.Close()
	wantLines(t, r)
}
