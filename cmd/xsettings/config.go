// This file is part of the program "xsettings".
// Please see the LICENSE file for copyright information.

package main

import (
	"bytes"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

type config struct {
	Display  string
	Screen   int
	Keys     []string
	Watch    bool
	LogLevel string
	Color    bool
}

const configFile = "config.toml"

// the settings toolkits consult to pick a window scale
var defaultKeys = []string{"Gdk/UnscaledDPI", "Xft/DPI", "Gdk/WindowScalingFactor"}

func defaultConfig() config {
	return config{
		Screen:   -1,
		Keys:     defaultKeys,
		LogLevel: "warn",
		Color:    true,
	}
}

// loadConfig reads the config file from dir, writing the defaults there
// first if there is none yet.
func loadConfig(dir string) (*config, error) {
	conf := defaultConfig()
	path := filepath.Join(dir, configFile)

	_, err := os.Stat(path)
	if os.IsNotExist(err) {
		log.Printf("Initializing config at %s\n", path)
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("create config directory: %w", err)
		}
		if err := writeConfig(path, &conf); err != nil {
			return nil, err
		}
		return &conf, nil
	}
	if err != nil {
		return nil, fmt.Errorf("check config file: %w", err)
	}

	md, err := toml.DecodeFile(path, &conf)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	for _, key := range md.Undecoded() {
		log.Printf("Ignoring unknown config key '%s'\n", key)
	}
	return &conf, nil
}

func writeConfig(path string, conf *config) error {
	var buffer bytes.Buffer
	if err := toml.NewEncoder(&buffer).Encode(conf); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, buffer.Bytes(), 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

func configDir() string {
	return filepath.Join(xdgOrFallback("XDG_CONFIG_HOME", filepath.Join(os.Getenv("HOME"), ".config")), "xsettings")
}

func xdgOrFallback(xdg string, fallback string) string {
	dir := os.Getenv(xdg)
	if dir != "" {
		if fi, err := os.Stat(dir); err == nil && fi.IsDir() {
			log.Printf("Resolved $%s to '%s'\n", xdg, dir)
			return dir
		}
	}

	log.Printf("Couldn't resolve $%s falling back to '%s'\n", xdg, fallback)
	return fallback
}
