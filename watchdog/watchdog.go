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

// Package watchdog feeds a hardware watchdog timer. When the feeder task
// starves - anywhere in the scheduler, not just the feeder itself - the
// device resets the board instead of letting it hang silently. That reset
// is the system's only truly fatal recovery path.
package watchdog

import "time"

// Timer is a hardware watchdog handle.
type Timer interface {
	// Feed tells the timer the scheduler is still alive.
	Feed() error
	// Close disarms the timer where the device supports it.
	Close() error
}

// Noop is the stand-in for platforms and test rigs without a watchdog
// device.
type Noop struct{}

// Feed implements Timer.
func (Noop) Feed() error { return nil }

// Close implements Timer.
func (Noop) Close() error { return nil }

// Config selects the device and its timeout. The timeout must exceed the
// feeder interval by a comfortable margin.
type Config struct {
	Device  string
	Timeout time.Duration
}
