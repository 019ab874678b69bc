package main

import (
	"flag"
	"strings"
)

type CLIOpts struct {
	doLog   bool
	display string
	screen  int
	keys    string
	watch   bool
	list    bool
	noColor bool
}

func parseCLIOpts(args []string) (CLIOpts, *flag.FlagSet, error) {
	var opt CLIOpts
	fs := flag.NewFlagSet("xsettings", flag.ContinueOnError)
	fs.BoolVar(&opt.doLog, "log", false, "Print debugging output to stderr")
	fs.StringVar(&opt.display, "d", "", "X display to connect to (default $DISPLAY)")
	fs.IntVar(&opt.screen, "s", -1, "Screen whose settings manager to query (default: the display's default screen)")
	fs.StringVar(&opt.keys, "k", "", "Comma separated settings to look up (default: the window scale settings)")
	fs.BoolVar(&opt.watch, "w", false, "Keep running and print settings as they change")
	fs.BoolVar(&opt.list, "l", false, "Print every setting the manager announces")
	fs.BoolVar(&opt.noColor, "no-color", false, "Disable colored output")
	err := fs.Parse(args)

	return opt, fs, err
}

// applyCLIOpts overrides conf with the flags that were given explicitly.
func applyCLIOpts(opt CLIOpts, fs *flag.FlagSet, conf *config) {
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "d":
			conf.Display = opt.display
		case "s":
			conf.Screen = opt.screen
		case "k":
			conf.Keys = splitKeys(opt.keys)
		case "w":
			conf.Watch = opt.watch
		case "no-color":
			conf.Color = !opt.noColor
		}
	})
	if opt.doLog {
		conf.LogLevel = "debug"
	}
}

func splitKeys(s string) []string {
	var keys []string
	for _, k := range strings.Split(s, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}
