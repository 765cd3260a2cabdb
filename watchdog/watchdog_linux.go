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

//go:build linux

package watchdog

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Device is a Linux watchdog character device (/dev/watchdog). Opening it
// arms the timer; Close writes the magic disarm byte first so a clean
// shutdown does not reboot the board.
type Device struct {
	f *os.File
}

// Open arms the watchdog and programs its timeout.
func Open(cfg Config) (*Device, error) {
	f, err := os.OpenFile(cfg.Device, os.O_WRONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("open watchdog %s: %w", cfg.Device, err)
	}

	if cfg.Timeout > 0 {
		seconds := int(cfg.Timeout.Seconds())
		if err := unix.IoctlSetPointerInt(int(f.Fd()), unix.WDIOC_SETTIMEOUT, seconds); err != nil {
			// Some devices have a fixed timeout; keep going with it.
			fmt.Fprintf(os.Stderr, "watchdog: set timeout: %v\n", err)
		}
	}

	return &Device{f: f}, nil
}

// Feed implements Timer.
func (d *Device) Feed() error {
	if _, err := unix.IoctlGetInt(int(d.f.Fd()), unix.WDIOC_KEEPALIVE); err != nil {
		return fmt.Errorf("watchdog keepalive: %w", err)
	}
	return nil
}

// Close disarms the watchdog.
func (d *Device) Close() error {
	// 'V' is the magic-close byte; without it the timer keeps running
	// after the fd closes and reboots the board.
	if _, err := d.f.Write([]byte{'V'}); err != nil {
		_ = d.f.Close()
		return fmt.Errorf("watchdog magic close: %w", err)
	}
	if err := d.f.Close(); err != nil {
		return fmt.Errorf("close watchdog: %w", err)
	}
	return nil
}
