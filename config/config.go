// Copyright 2026 The Doorward Project Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads and validates the controller configuration. The
// record is read once at startup and treated as immutable afterwards;
// a malformed or incomplete file is a startup failure.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Duration is a time.Duration that unmarshals from TOML strings like
// "200ms" or "10s".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", text, err)
	}
	*d = Duration(v)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the full controller configuration.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Reader   ReaderConfig   `toml:"reader"`
	Door     DoorConfig     `toml:"door"`
	Cache    CacheConfig    `toml:"cache"`
	Admin    AdminConfig    `toml:"admin"`
	Link     LinkConfig     `toml:"link"`
	Watchdog WatchdogConfig `toml:"watchdog"`
}

// ServerConfig points at the Conway authority server.
type ServerConfig struct {
	BaseURL      string   `toml:"base_url"`
	Timeout      Duration `toml:"timeout"`
	SyncInterval Duration `toml:"sync_interval"`
}

// ReaderConfig selects and tunes the credential reader source.
type ReaderConfig struct {
	// Source is "gpio" (two data lines via periph.io) or "uart"
	// (a Wiegand-to-serial converter board).
	Source string `toml:"source"`

	// GPIO source
	D0Pin string `toml:"d0_pin"`
	D1Pin string `toml:"d1_pin"`

	// UART source
	Port string `toml:"port"`
	Baud int    `toml:"baud"`

	Debounce   Duration `toml:"debounce"`
	Quiescence Duration `toml:"quiescence"`
	// PollInterval is how often the frame-evaluation loop checks for a
	// completed frame. Must be short relative to the quiescence gap.
	PollInterval Duration `toml:"poll_interval"`
}

// DoorConfig drives the strike output.
type DoorConfig struct {
	Pin       string   `toml:"pin"`
	ActiveLow bool     `toml:"active_low"`
	Pulse     Duration `toml:"pulse"`
}

// CacheConfig locates the persisted allow-list envelope.
type CacheConfig struct {
	Path string `toml:"path"`
}

// AdminConfig configures the manual control-plane listener.
type AdminConfig struct {
	Addr string `toml:"addr"`
}

// LinkConfig tunes the network-link supervisor.
type LinkConfig struct {
	// ProbeAddr is a host:port to dial as a reachability probe. Empty
	// derives it from the server base URL.
	ProbeAddr string   `toml:"probe_addr"`
	Interval  Duration `toml:"interval"`
	// FailThreshold is how many consecutive failed probes trigger the
	// reset command.
	FailThreshold int `toml:"fail_threshold"`
	// ResetCommand is run through the shell to power-cycle the radio
	// (e.g. "nmcli radio wifi off && nmcli radio wifi on"). Empty
	// disables resets; the supervisor keeps probing regardless.
	ResetCommand string `toml:"reset_command"`
}

// WatchdogConfig configures the hardware watchdog feeder. The device
// timeout must exceed the feed interval by a comfortable margin so a hung
// task causes a reset rather than a silent hang.
type WatchdogConfig struct {
	Enabled bool     `toml:"enabled"`
	Device  string   `toml:"device"`
	Timeout Duration `toml:"timeout"`
	Feed    Duration `toml:"feed"`
}

// Load reads, defaults and validates the configuration file.
func Load(path string) (*Config, error) {
	var cfg Config
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown config keys: %v", undecoded)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Timeout <= 0 {
		c.Server.Timeout = Duration(10 * time.Second)
	}
	if c.Server.SyncInterval <= 0 {
		c.Server.SyncInterval = Duration(10 * time.Second)
	}
	if c.Reader.Source == "" {
		c.Reader.Source = "gpio"
	}
	if c.Reader.Baud <= 0 {
		c.Reader.Baud = 9600
	}
	if c.Reader.Debounce <= 0 {
		c.Reader.Debounce = Duration(500 * time.Microsecond)
	}
	if c.Reader.Quiescence <= 0 {
		c.Reader.Quiescence = Duration(25 * time.Millisecond)
	}
	if c.Reader.PollInterval <= 0 {
		c.Reader.PollInterval = Duration(5 * time.Millisecond)
	}
	if c.Door.Pulse <= 0 {
		c.Door.Pulse = Duration(200 * time.Millisecond)
	}
	if c.Cache.Path == "" {
		c.Cache.Path = "/var/lib/doorward/cache.bin"
	}
	if c.Admin.Addr == "" {
		c.Admin.Addr = ":80"
	}
	if c.Link.Interval <= 0 {
		c.Link.Interval = Duration(5 * time.Second)
	}
	if c.Link.FailThreshold <= 0 {
		c.Link.FailThreshold = 3
	}
	if c.Link.ProbeAddr == "" {
		if u, err := url.Parse(c.Server.BaseURL); err == nil && u.Host != "" {
			host := u.Host
			if u.Port() == "" {
				host += ":80"
			}
			c.Link.ProbeAddr = host
		}
	}
	if c.Watchdog.Device == "" {
		c.Watchdog.Device = "/dev/watchdog"
	}
	if c.Watchdog.Timeout <= 0 {
		c.Watchdog.Timeout = Duration(30 * time.Second)
	}
	if c.Watchdog.Feed <= 0 {
		c.Watchdog.Feed = Duration(10 * time.Second)
	}
}

// Validate rejects configurations the controller cannot start with.
func (c *Config) Validate() error {
	if c.Server.BaseURL == "" {
		return errors.New("server.base_url is required")
	}
	if _, err := url.Parse(c.Server.BaseURL); err != nil {
		return fmt.Errorf("server.base_url: %w", err)
	}

	switch c.Reader.Source {
	case "gpio":
		if c.Reader.D0Pin == "" || c.Reader.D1Pin == "" {
			return errors.New("reader.d0_pin and reader.d1_pin are required for the gpio source")
		}
	case "uart":
		if c.Reader.Port == "" {
			return errors.New("reader.port is required for the uart source")
		}
	default:
		return fmt.Errorf("reader.source must be gpio or uart, got %q", c.Reader.Source)
	}

	if c.Reader.PollInterval.Std() >= c.Reader.Quiescence.Std() {
		return errors.New("reader.poll_interval must be shorter than reader.quiescence")
	}
	if c.Watchdog.Enabled && c.Watchdog.Timeout.Std() <= 2*c.Watchdog.Feed.Std() {
		return errors.New("watchdog.timeout must be at least twice watchdog.feed")
	}
	return nil
}

// LoadOrExit is a convenience for main: it loads the configuration and
// exits the process with a message when that fails.
func LoadOrExit(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "doorward: %v\n", err)
		os.Exit(1)
	}
	return cfg
}
