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

// DefaultDoorPulse is how long the strike output stays asserted.
const DefaultDoorPulse = 200 * time.Millisecond

// Strike drives the door-strike output line.
type Strike interface {
	// Set asserts or deasserts the strike output.
	Set(active bool) error
}

// Pulser turns Pulse requests into fixed-duration strike pulses on its own
// goroutine so the scan path never blocks on the actuation. Requests that
// arrive while a pulse is in flight coalesce into at most one follow-up.
type Pulser struct {
	strike   Strike
	width    time.Duration
	requests chan struct{}
	log      zerolog.Logger
}

// NewPulser creates a pulser. A non-positive width selects
// DefaultDoorPulse.
func NewPulser(strike Strike, width time.Duration) *Pulser {
	if width <= 0 {
		width = DefaultDoorPulse
	}
	return &Pulser{
		strike:   strike,
		width:    width,
		requests: make(chan struct{}, 1),
		log:      zerolog.Nop(),
	}
}

// SetLogger attaches a logger.
func (p *Pulser) SetLogger(log zerolog.Logger) {
	p.log = log
}

// Pulse requests one actuation pulse. Never blocks.
func (p *Pulser) Pulse() {
	select {
	case p.requests <- struct{}{}:
	default:
	}
}

// Run services pulse requests until the context is cancelled. The output
// is deasserted on exit.
func (p *Pulser) Run(ctx context.Context) {
	defer func() {
		if err := p.strike.Set(false); err != nil {
			p.log.Error().Err(err).Msg("door: deassert on shutdown failed")
		}
	}()

	timer := time.NewTimer(p.width)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.requests:
		}

		if err := p.strike.Set(true); err != nil {
			p.log.Error().Err(err).Msg("door: assert failed")
			continue
		}

		timer.Reset(p.width)
		select {
		case <-ctx.Done():
		case <-timer.C:
		}

		if err := p.strike.Set(false); err != nil {
			p.log.Error().Err(err).Msg("door: deassert failed")
		}
		if ctx.Err() != nil {
			return
		}
	}
}
