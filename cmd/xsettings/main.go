// This file is part of the program "xsettings".
// Please see the LICENSE file for copyright information.

// Command xsettings prints the XSETTINGS a desktop's settings manager
// publishes, by default the ones that decide the window scale.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/BurntSushi/xgb"
	"github.com/hashicorp/go-hclog"

	"xsettings"
	"xsettings/x11"
)

var version = "unknown" // will be changed by build

func main() {
	opt, fs, err := parseCLIOpts(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		os.Exit(2)
	}

	logger := newLogger(opt.doLog)
	log.Printf("Application starting. Version: %s\n", version)

	conf, err := loadConfig(configDir())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Couldn't load config: %v\n", err)
		os.Exit(1)
	}
	applyCLIOpts(opt, fs, conf)
	if level := hclog.LevelFromString(conf.LogLevel); level != hclog.NoLevel {
		logger.SetLevel(level)
	} else {
		log.Printf("[WARN] Unknown log level '%s'\n", conf.LogLevel)
	}

	os.Exit(run(conf, opt.list, logger))
}

func newLogger(debug bool) hclog.Logger {
	level := hclog.Warn
	if debug {
		level = hclog.Debug
	}
	logger := hclog.New(&hclog.LoggerOptions{
		Name:   "xsettings",
		Level:  level,
		Output: os.Stderr,
	})
	log.SetFlags(0)
	log.SetOutput(logger.StandardWriter(&hclog.StandardLoggerOptions{InferLevels: true}))
	return logger
}

func run(conf *config, list bool, logger hclog.Logger) int {
	conn, err := x11.Dial(conf.Display, logger.Named("x11"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Couldn't connect to X: %v\n", err)
		return 1
	}
	defer conn.Close()

	screen := conf.Screen
	if screen < 0 {
		screen = conn.DefaultScreen()
	}
	log.Printf("Using screen %d\n", screen)

	out := newPrinter(os.Stdout, conf.Color)
	started := false
	notify := func(name string, action xsettings.Action, s xsettings.SettingView) {
		switch {
		case started:
			out.change(action, s)
		case list:
			out.setting(s.Copy())
		}
	}

	client, err := conn.NewClient(screen, notify, xsettings.WithLogger(logger.Named("client")))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Couldn't create settings client: %v\n", err)
		return 1
	}
	defer client.Close()

	if client.State() != xsettings.StateBound {
		log.Printf("[WARN] No settings manager running on screen %d\n", screen)
	}
	for _, key := range conf.Keys {
		s, err := client.GetSetting(key)
		out.lookup(key, s, err)
	}

	if !conf.Watch {
		return 0
	}
	started = true
	conn.Run(func(ev xgb.Event) {
		if _, err := client.ProcessEvent(ev); err != nil {
			log.Printf("[ERROR] Couldn't update settings: %v\n", err)
		}
	})
	return 0
}
