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

package doorward

import (
	"time"

	"github.com/DoorwardProject/doorward/internal/syncutil"
)

// DefaultLockoutCap bounds the backoff window so repeated denials slow
// brute-force or malfunctioning-reader retries without permanently locking
// out legitimate users.
const DefaultLockoutCap = 8 * time.Second

// Lockout tracks consecutive denials and the resulting scan-ignore window.
type Lockout struct {
	mu       syncutil.Mutex
	failures uint
	until    time.Time
	cap      time.Duration
}

// NewLockout creates a lockout with the given window ceiling.
// A non-positive cap selects DefaultLockoutCap.
func NewLockout(windowCap time.Duration) *Lockout {
	if windowCap <= 0 {
		windowCap = DefaultLockoutCap
	}
	return &Lockout{cap: windowCap}
}

// Blocked reports whether scans at the given time are inside the backoff
// window and must be ignored outright.
func (l *Lockout) Blocked(now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return now.Before(l.until)
}

// RecordGrant resets the failure counter. Any open window stays open
// only until its existing deadline; a grant cannot happen inside one
// because blocked scans never reach the decision.
func (l *Lockout) RecordGrant() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failures = 0
	l.until = time.Time{}
}

// RecordDenial increments the failure counter and opens a backoff window
// of min(cap, 2^failures seconds) from now. Returns the window length.
func (l *Lockout) RecordDenial(now time.Time) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.failures++
	shift := l.failures
	if shift > 6 {
		shift = 6 // 64s already exceeds any sane cap
	}
	window := time.Duration(1<<shift) * time.Second
	if window > l.cap {
		window = l.cap
	}
	l.until = now.Add(window)
	return window
}

// Failures returns the current consecutive-denial count.
func (l *Lockout) Failures() uint {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.failures
}
