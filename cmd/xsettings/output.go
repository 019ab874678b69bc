// This file is part of the program "xsettings".
// Please see the LICENSE file for copyright information.

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"xsettings"
)

type printer struct {
	w      io.Writer
	name   *color.Color
	action *color.Color
	failed *color.Color
}

func newPrinter(w io.Writer, enable bool) *printer {
	p := &printer{
		w:      w,
		name:   color.New(color.FgCyan, color.Bold),
		action: color.New(color.FgYellow),
		failed: color.New(color.FgRed),
	}
	f, ok := w.(*os.File)
	if !enable || !ok || !isatty.IsTerminal(f.Fd()) {
		p.name.DisableColor()
		p.action.DisableColor()
		p.failed.DisableColor()
	}
	return p
}

func (p *printer) setting(s xsettings.Setting) {
	fmt.Fprintf(p.w, "%s=%s\n", p.name.Sprint(s.Name), s.Value)
}

func (p *printer) change(action xsettings.Action, s xsettings.SettingView) {
	fmt.Fprintf(p.w, "%s %s=%s\n", p.action.Sprintf("%-7s", action), p.name.Sprint(s.Name()), s.Value())
}

func (p *printer) lookup(key string, s xsettings.Setting, err error) {
	if err != nil {
		fmt.Fprintf(p.w, "%s: %s\n", p.name.Sprint(key), p.failed.Sprint(err))
		return
	}
	p.setting(s)
}
