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

// Package gpio reads the two Wiegand data lines and drives the strike
// output through periph.io. The lines idle high and pulse low per bit;
// when the signal path inverts (optocoupler isolation), configure the
// opposite edge polarity - that is a deployment detail, not a protocol
// one.
package gpio

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"

	"github.com/DoorwardProject/doorward"
)

// edgeWait bounds one WaitForEdge call so the watchers notice context
// cancellation promptly.
const edgeWait = 500 * time.Millisecond

// Config selects the pins.
type Config struct {
	// D0Pin and D1Pin name the data lines, e.g. "GPIO17", "GPIO27".
	D0Pin string
	D1Pin string
	// Inverted selects rising-edge detection for isolated signal paths
	// that invert the reader's falling pulses.
	Inverted bool
}

// Reader feeds pin edges into a frame decoder, one watcher goroutine per
// line. The watchers do nothing but timestamp and hand off; all parsing
// runs on the scheduler side.
type Reader struct {
	d0  gpio.PinIO
	d1  gpio.PinIO
	dec *doorward.Decoder
	log zerolog.Logger
}

// New opens both data lines for edge detection.
func New(cfg Config, dec *doorward.Decoder) (*Reader, error) {
	edge := gpio.FallingEdge
	pull := gpio.PullUp
	if cfg.Inverted {
		edge = gpio.RisingEdge
		pull = gpio.PullDown
	}

	d0, err := openPin(cfg.D0Pin, pull, edge)
	if err != nil {
		return nil, err
	}
	d1, err := openPin(cfg.D1Pin, pull, edge)
	if err != nil {
		_ = d0.Halt()
		return nil, err
	}

	return &Reader{
		d0:  d0,
		d1:  d1,
		dec: dec,
		log: zerolog.Nop(),
	}, nil
}

func openPin(name string, pull gpio.Pull, edge gpio.Edge) (gpio.PinIO, error) {
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("gpio pin %q not found", name)
	}
	if err := pin.In(pull, edge); err != nil {
		return nil, fmt.Errorf("configure pin %s: %w", name, err)
	}
	return pin, nil
}

// SetLogger attaches a logger.
func (r *Reader) SetLogger(log zerolog.Logger) {
	r.log = log
}

// Run watches both lines until the context is cancelled.
func (r *Reader) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		r.watch(ctx, r.d0, doorward.LineD0)
	}()
	go func() {
		defer wg.Done()
		r.watch(ctx, r.d1, doorward.LineD1)
	}()
	wg.Wait()

	_ = r.d0.Halt()
	_ = r.d1.Halt()
}

func (r *Reader) watch(ctx context.Context, pin gpio.PinIO, line doorward.Line) {
	for ctx.Err() == nil {
		if pin.WaitForEdge(edgeWait) {
			r.dec.Edge(line, time.Now())
		}
	}
}

// Strike drives the door-strike output pin.
type Strike struct {
	mu        sync.Mutex
	pin       gpio.PinIO
	activeLow bool
}

// NewStrike opens the strike pin and leaves it deasserted.
func NewStrike(name string, activeLow bool) (*Strike, error) {
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("gpio pin %q not found", name)
	}
	s := &Strike{pin: pin, activeLow: activeLow}
	if err := s.Set(false); err != nil {
		return nil, err
	}
	return s, nil
}

// Set asserts or deasserts the strike output.
func (s *Strike) Set(active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	level := gpio.Level(active != s.activeLow)
	if err := s.pin.Out(level); err != nil {
		return fmt.Errorf("set strike %s: %w", s.pin.Name(), err)
	}
	return nil
}
