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

// Package doorward implements the core of a networked door-access
// controller: a Wiegand 26/34-bit frame decoder, credential derivation,
// an allow-list cache synchronized from a Conway authority server, and
// the access decision state machine that drives the door strike.
package doorward

import (
	"math/bits"
	"time"

	"github.com/rs/zerolog"

	"github.com/DoorwardProject/doorward/internal/syncutil"
)

// Line identifies one of the two Wiegand data lines.
type Line int

const (
	// LineD0 carries zero bits.
	LineD0 Line = iota
	// LineD1 carries one bits.
	LineD1
)

// Debounce default accounts for optocoupler propagation delay and slower
// edge transitions. Typical optocouplers (PC817, 6N137) have 3-18µs
// rise/fall times which can cause ringing or multiple edge detections.
// Wiegand pulse width is typically 50-100µs with 1-2ms between pulses,
// so 500µs eliminates duplicate bits without losing real ones.
const (
	DefaultDebounce   = 500 * time.Microsecond
	DefaultQuiescence = 25 * time.Millisecond

	maxFrameBits = 64
)

// DecoderConfig holds decoder timing parameters.
type DecoderConfig struct {
	// Debounce is the minimum gap between accepted edges on the same line.
	Debounce time.Duration
	// Quiescence is the gap with no new bits that marks end-of-frame.
	// Must be long relative to the inter-bit spacing and to the poll
	// interval of the evaluation loop.
	Quiescence time.Duration
}

// DefaultDecoderConfig returns the default decoder timing.
func DefaultDecoderConfig() *DecoderConfig {
	return &DecoderConfig{
		Debounce:   DefaultDebounce,
		Quiescence: DefaultQuiescence,
	}
}

// Frame is a validated Wiegand transmission with parity bits stripped.
type Frame struct {
	// Bits is the on-wire frame length (26 or 34).
	Bits int
	// Payload is the 24- or 32-bit payload between the parity bits.
	Payload uint32
}

// DecoderStats counts decoder outcomes for diagnostics. Rejections are
// never surfaced to the access controller; they only show up here.
type DecoderStats struct {
	Frames    uint64
	BadLength uint64
	BadParity uint64
}

// Decoder reconstructs credential frames from raw pin edges.
//
// Edge is safe to call from the edge-notification goroutines; it does a
// constant amount of work under a short critical section so the evaluation
// side never observes a half-appended bit. All parsing and validation is
// deferred to Poll, which runs on the task scheduler.
type Decoder struct {
	cfg  *DecoderConfig
	log  zerolog.Logger
	mu   syncutil.Mutex
	raw  uint64
	n    int
	last [2]time.Time // last accepted edge per line
	end  time.Time    // last bit time, any line

	stats DecoderStats
}

// NewDecoder creates a decoder with the given timing configuration.
// A nil config selects the defaults.
func NewDecoder(cfg *DecoderConfig) *Decoder {
	if cfg == nil {
		cfg = DefaultDecoderConfig()
	}
	return &Decoder{
		cfg: cfg,
		log: zerolog.Nop(),
	}
}

// SetLogger attaches a logger for rejected-frame diagnostics.
func (d *Decoder) SetLogger(log zerolog.Logger) {
	d.log = log
}

// Edge records one falling-edge-equivalent pulse on a data line at time t.
// Edges on the same line closer together than the debounce threshold are
// discarded as bounce. Edges on different lines are never debounced
// against each other.
func (d *Decoder) Edge(line Line, t time.Time) {
	if line != LineD0 && line != LineD1 {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.last[line].IsZero() && t.Sub(d.last[line]) < d.cfg.Debounce {
		return
	}
	d.last[line] = t

	if d.n < maxFrameBits {
		d.raw <<= 1
		if line == LineD1 {
			d.raw |= 1
		}
		d.n++
	}
	d.end = t
}

// Poll checks whether a frame has completed: the buffer is non-empty and
// no bit has arrived for the quiescence threshold. A completed buffer is
// evaluated synchronously and cleared unconditionally, valid or not.
// Returns the validated frame and true, or the zero frame and false.
func (d *Decoder) Poll(now time.Time) (Frame, bool) {
	d.mu.Lock()
	if d.n == 0 || now.Sub(d.end) < d.cfg.Quiescence {
		d.mu.Unlock()
		return Frame{}, false
	}
	raw, n := d.raw, d.n
	d.raw = 0
	d.n = 0
	d.mu.Unlock()

	frame, err := ValidateFrame(raw, n)
	if err != nil {
		d.mu.Lock()
		if err == ErrBadParity {
			d.stats.BadParity++
		} else {
			d.stats.BadLength++
		}
		d.mu.Unlock()
		d.log.Warn().Int("bits", n).Err(err).Msg("wiegand: frame rejected")
		return Frame{}, false
	}

	d.mu.Lock()
	d.stats.Frames++
	d.mu.Unlock()
	return frame, true
}

// Stats returns a snapshot of the decoder counters.
func (d *Decoder) Stats() DecoderStats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

// ValidateFrame checks the length and split parity of a raw bit sequence
// (first received bit in the most significant position) and strips the
// parity bits. The leading bit must equal the parity of the upper payload
// half; the trailing bit must be the complement of the parity of the
// lower half.
func ValidateFrame(raw uint64, n int) (Frame, error) {
	if n != 26 && n != 34 {
		return Frame{}, ErrBadBitCount
	}

	leading := uint32(raw>>(n-1)) & 1
	trailing := uint32(raw) & 1
	payloadBits := n - 2
	payload := uint32((raw >> 1) & ((1 << payloadBits) - 1))

	half := payloadBits / 2
	upper := payload >> half
	lower := payload & ((1 << half) - 1)

	evenOK := uint32(bits.OnesCount32(upper))%2 == leading
	oddOK := uint32(bits.OnesCount32(lower))%2 != trailing
	if !evenOK || !oddOK {
		return Frame{}, ErrBadParity
	}

	return Frame{Bits: n, Payload: payload}, nil
}
