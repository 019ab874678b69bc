// This file is part of the program "xsettings".
// Please see the LICENSE file for copyright information.

package xsettings

import "github.com/BurntSushi/xgb/xproto"

// NotifyFunc receives one call per changed setting. The view is only valid
// during the call.
type NotifyFunc func(name string, action Action, setting SettingView)

// WatchFunc is told when to start and stop selecting mask on window. The
// client never changes event masks itself.
type WatchFunc func(window xproto.Window, isStart bool, mask uint32)

// scope bounds the lifetime of the views handed to one callback.
type scope struct {
	done bool
}

func (sc *scope) expired() bool { return sc != nil && sc.done }

func (sc *scope) end() { sc.done = true }

// view runs fn with a view of s that expires when fn returns.
func view(s *Setting, fn func(SettingView)) {
	sc := &scope{}
	defer sc.end()
	fn(SettingView{s: s, sc: sc})
}

type dispatcher struct {
	notify NotifyFunc
	watch  WatchFunc
}

func (d *dispatcher) dispatch(changes []Change) {
	for _, ch := range changes {
		view(ch.Setting, func(v SettingView) {
			d.notify(ch.Name, ch.Action, v)
		})
	}
}

func (d *dispatcher) startWatch(w xproto.Window) { d.watch(w, true, WatchMask) }

func (d *dispatcher) stopWatch(w xproto.Window) { d.watch(w, false, WatchMask) }
