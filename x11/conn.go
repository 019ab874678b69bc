// This file is part of the program "xsettings".
// Please see the LICENSE file for copyright information.

// Package x11 connects xsettings clients to a real X server through xgbutil.
package x11

import (
	"fmt"
	"math"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xfixes"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/xevent"
	"github.com/BurntSushi/xgbutil/xprop"
	"github.com/BurntSushi/xgbutil/xwindow"
	"github.com/hashicorp/go-hclog"

	"xsettings"
)

// Conn is an X connection that implements xsettings.Display.
type Conn struct {
	xu  *xgbutil.XUtil
	log hclog.Logger

	// true once the XFixes extension answered QueryVersion
	xfixes bool
}

var _ xsettings.Display = (*Conn)(nil)

// Dial connects to display, or to $DISPLAY when display is empty.
func Dial(display string, log hclog.Logger) (*Conn, error) {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	xu, err := xgbutil.NewConnDisplay(display)
	if err != nil {
		if display == "" {
			return nil, fmt.Errorf("connect to X11: %w", err)
		}
		return nil, fmt.Errorf("connect to X11 display %q: %w", display, err)
	}
	c := &Conn{xu: xu, log: log}

	if err := xfixes.Init(xu.Conn()); err != nil {
		log.Debug("XFixes not available, relying on MANAGER messages", "error", err)
	} else if _, err := xfixes.QueryVersion(xu.Conn(), 5, 0).Reply(); err != nil {
		log.Debug("XFixes version query failed", "error", err)
	} else {
		c.xfixes = true
	}
	return c, nil
}

func (c *Conn) Close() {
	c.xu.Conn().Close()
}

func (c *Conn) XUtil() *xgbutil.XUtil { return c.xu }

func (c *Conn) DefaultScreen() int { return c.xu.Conn().DefaultScreen }

func (c *Conn) root(screen int) (xproto.Window, error) {
	roots := xproto.Setup(c.xu.Conn()).Roots
	if screen < 0 || screen >= len(roots) {
		return 0, fmt.Errorf("screen %d out of range (display has %d): %w", screen, len(roots), xsettings.ErrFailed)
	}
	return roots[screen].Root, nil
}

// Atom interns name, caching the result.
func (c *Conn) Atom(name string) (xproto.Atom, error) {
	return xprop.Atm(c.xu, name)
}

func (c *Conn) SelectionOwner(selection xproto.Atom) (xproto.Window, error) {
	reply, err := xproto.GetSelectionOwner(c.xu.Conn(), selection).Reply()
	if err != nil {
		return 0, classify(err)
	}
	return reply.Owner, nil
}

// Property reads the whole of an 8-bit property whose type is the property
// itself, as XSETTINGS managers store it.
func (c *Conn) Property(win xproto.Window, property xproto.Atom) ([]byte, error) {
	reply, err := xproto.GetProperty(c.xu.Conn(), false, win, property, property, 0, math.MaxUint32).Reply()
	if err != nil {
		return nil, classify(err)
	}
	switch {
	case reply.Type == xproto.AtomNone:
		return nil, fmt.Errorf("property %d not set on window 0x%x: %w", property, win, xsettings.ErrNotFound)
	case reply.Type != property || reply.Format != 8:
		return nil, fmt.Errorf("property %d on window 0x%x has type %d format %d: %w",
			property, win, reply.Type, reply.Format, xsettings.ErrFailed)
	case reply.BytesAfter != 0:
		return nil, fmt.Errorf("property %d on window 0x%x truncated with %d bytes left: %w",
			property, win, reply.BytesAfter, xsettings.ErrNoMemory)
	}
	return reply.Value, nil
}

// Watch is an xsettings.WatchFunc that selects mask on window, or clears the
// window's event mask when isStart is false.
func (c *Conn) Watch(window xproto.Window, isStart bool, mask uint32) {
	w := xwindow.New(c.xu, window)
	var err error
	if isStart {
		err = w.Listen(int(mask))
	} else {
		err = w.Listen()
	}
	if err != nil {
		// A manager that went away takes its window with it.
		c.log.Debug("changing event mask failed", "window", hclog.Fmt("0x%x", window), "start", isStart, "error", err)
		return
	}
	c.log.Trace("event mask changed", "window", hclog.Fmt("0x%x", window), "start", isStart, "mask", hclog.Fmt("%#x", mask))
}

// ListenManager asks for the events that announce a new settings manager on
// screen: StructureNotify on the root window, which delivers MANAGER client
// messages, and XFixes selection notifications when the server has them.
// It replaces any event mask this connection had on the root window.
func (c *Conn) ListenManager(screen int) error {
	root, err := c.root(screen)
	if err != nil {
		return err
	}
	if err := xwindow.New(c.xu, root).Listen(xproto.EventMaskStructureNotify); err != nil {
		return fmt.Errorf("listen on root window 0x%x: %w", root, classify(err))
	}
	if !c.xfixes {
		return nil
	}

	selection, err := c.Atom(xsettings.SelectionName(screen))
	if err != nil {
		return err
	}
	mask := uint32(xfixes.SelectionEventMaskSetSelectionOwner |
		xfixes.SelectionEventMaskSelectionWindowDestroy |
		xfixes.SelectionEventMaskSelectionClientClose)
	if err := xfixes.SelectSelectionInputChecked(c.xu.Conn(), root, selection, mask).Check(); err != nil {
		c.log.Debug("XFixes selection input failed", "error", err)
	}
	return nil
}

// NewClient creates an xsettings client for screen that is watched through
// this connection.
func (c *Conn) NewClient(screen int, notify xsettings.NotifyFunc, opts ...xsettings.Option) (*xsettings.Client, error) {
	if err := c.ListenManager(screen); err != nil {
		return nil, err
	}
	return xsettings.NewClient(c, screen, notify, c.Watch, opts...)
}

// Run passes every event from the server to handle until Quit is called.
func (c *Conn) Run(handle func(xgb.Event)) {
	xevent.HookFun(func(xu *xgbutil.XUtil, event interface{}) bool {
		if ev, ok := event.(xgb.Event); ok {
			handle(ev)
		}
		return true
	}).Connect(c.xu)
	xevent.Main(c.xu)
}

func (c *Conn) Quit() {
	xevent.Quit(c.xu)
}

// classify maps X protocol errors onto the xsettings error kinds.
func classify(err error) error {
	switch err.(type) {
	case xproto.AccessError:
		return fmt.Errorf("%w: %v", xsettings.ErrAccessDenied, err)
	case xproto.AllocError:
		return fmt.Errorf("%w: %v", xsettings.ErrNoMemory, err)
	}
	return err
}
