// This file is part of the program "xsettings".
// Please see the LICENSE file for copyright information.

/*
Package xsettings is a client for the XSETTINGS protocol, which settings
daemons use to publish typed values such as Xft/DPI or Net/ThemeName to every
X client on a screen.

The daemon owns the _XSETTINGS_S<screen> selection and stores the serialized
settings in the _XSETTINGS_SETTINGS property of the owning window. A Client
follows that window, decodes the property whenever it changes and reports the
difference to the previous state through a NotifyFunc:

	client, err := xsettings.NewClient(display, screen,
		func(name string, action xsettings.Action, s xsettings.SettingView) {
			fmt.Println(action, s)
		},
		func(w xproto.Window, start bool, mask uint32) {
			// select or clear mask on w
		})

The client never talks to the event loop itself. Feed it every event with
ProcessEvent and register event masks when WatchFunc asks for it. Package
xsettings/x11 provides both on top of xgbutil.

Settings handed to callbacks are borrowed views into the client's snapshot
and expire when the callback returns. Copy them, or use GetSetting, to keep
a value.
*/
package xsettings
