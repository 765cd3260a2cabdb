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
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Refresher triggers an on-demand cache refresh on a miss.
type Refresher interface {
	Sync(ctx context.Context) error
}

// Door requests an actuation pulse without blocking the caller.
type Door interface {
	Pulse()
}

// Decision is the outcome of one scan.
type Decision int

const (
	// DecisionIgnored means the scan happened inside a backoff window
	// and produced no lookup and no event.
	DecisionIgnored Decision = iota
	// DecisionGranted means a candidate matched and the door was pulsed.
	DecisionGranted
	// DecisionDenied means no candidate matched even after a refresh.
	DecisionDenied
)

func (d Decision) String() string {
	switch d {
	case DecisionIgnored:
		return "ignored"
	case DecisionGranted:
		return "granted"
	case DecisionDenied:
		return "denied"
	default:
		return "unknown"
	}
}

// Controller is the access decision core: it takes validated frames,
// consults the cache, refreshes it on a miss, records events, actuates
// the door and applies the denial lockout.
type Controller struct {
	cache   *Cache
	refresh Refresher
	queue   *EventQueue
	door    Door
	lockout *Lockout
	log     zerolog.Logger
	now     func() time.Time
}

// NewController wires the decision core. refresh and door may be nil
// (no on-demand refresh, no actuation), which tests use.
func NewController(cache *Cache, refresh Refresher, queue *EventQueue, door Door, lockout *Lockout) *Controller {
	if lockout == nil {
		lockout = NewLockout(DefaultLockoutCap)
	}
	return &Controller{
		cache:   cache,
		refresh: refresh,
		queue:   queue,
		door:    door,
		lockout: lockout,
		log:     zerolog.Nop(),
		now:     time.Now,
	}
}

// SetLogger attaches a logger.
func (c *Controller) SetLogger(log zerolog.Logger) {
	c.log = log
}

// HandleFrame runs the per-scan state machine for one validated frame.
func (c *Controller) HandleFrame(ctx context.Context, f Frame) Decision {
	now := c.now()
	if c.lockout.Blocked(now) {
		c.log.Debug().Msg("scan ignored (backoff)")
		return DecisionIgnored
	}

	cand := DecodeCandidates(f)
	c.log.Info().
		Uint64("fob", uint64(cand.Fob)).
		Str("nfc", cand.NFCHex()).
		Msg("scan")

	matched, cred := c.lookup(cand)
	if !matched && c.refresh != nil {
		// The credential may have been added server-side since the last
		// periodic sync; refresh and check again before denying.
		if err := c.refresh.Sync(ctx); err != nil {
			c.log.Warn().Err(err).Msg("on-demand refresh failed")
		}
		matched, cred = c.lookup(cand)
	}
	if !matched {
		cred = cand.Fob
	}

	c.queue.Push(Event{Fob: cred, Allowed: matched})

	if matched {
		c.lockout.RecordGrant()
		if c.door != nil {
			c.door.Pulse()
		}
		c.log.Info().Uint64("credential", uint64(cred)).Msg("access granted")
		return DecisionGranted
	}

	window := c.lockout.RecordDenial(now)
	c.log.Warn().
		Uint64("credential", uint64(cred)).
		Dur("backoff", window).
		Msg("access denied")
	return DecisionDenied
}

// Unlock actuates the door outside the scan path (manual control plane).
func (c *Controller) Unlock() {
	if c.door != nil {
		c.door.Pulse()
	}
	c.log.Info().Msg("door unlocked manually")
}

func (c *Controller) lookup(cand Candidates) (bool, Credential) {
	if c.cache.Contains(cand.Fob) {
		return true, cand.Fob
	}
	if cand.HasNFC && c.cache.Contains(cand.NFC) {
		return true, cand.NFC
	}
	return false, 0
}
