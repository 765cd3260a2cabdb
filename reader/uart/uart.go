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

// Package uart reads frames from Wiegand-to-serial converter boards that
// forward each transmission as one ASCII line of '0'/'1' characters. The
// converter has already done the edge timing, so lines go straight to
// frame validation instead of the edge decoder.
package uart

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.bug.st/serial"

	"github.com/DoorwardProject/doorward"
)

const readTimeout = 500 * time.Millisecond

// Config selects the serial port.
type Config struct {
	// Port is the device path, e.g. "/dev/ttyUSB0".
	Port string
	// Baud defaults to 9600, the common converter rate.
	Baud int
}

// Reader parses converter lines into validated frames.
type Reader struct {
	port serial.Port
	log  zerolog.Logger

	rejects uint64
}

// New opens the serial port.
func New(cfg Config) (*Reader, error) {
	if cfg.Baud <= 0 {
		cfg.Baud = 9600
	}
	port, err := serial.Open(cfg.Port, &serial.Mode{
		BaudRate: cfg.Baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", cfg.Port, err)
	}
	if err := port.SetReadTimeout(readTimeout); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("set serial read timeout: %w", err)
	}
	return &Reader{port: port, log: zerolog.Nop()}, nil
}

// SetLogger attaches a logger.
func (r *Reader) SetLogger(log zerolog.Logger) {
	r.log = log
}

// Run reads lines until the context is cancelled, handing every validated
// frame to emit. Malformed lines are counted and logged, never fatal.
func (r *Reader) Run(ctx context.Context, emit func(doorward.Frame)) {
	go func() {
		<-ctx.Done()
		_ = r.port.Close()
	}()

	scanner := bufio.NewScanner(r.port)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := scanner.Text()
		if line == "" {
			continue
		}

		frame, err := ParseFrame(line)
		if err != nil {
			r.rejects++
			r.log.Warn().Str("line", line).Err(err).Msg("uart: frame rejected")
			continue
		}
		emit(frame)
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		r.log.Error().Err(err).Msg("uart: read failed")
	}
}

// ParseFrame converts one converter line of '0'/'1' characters into a
// validated frame.
func ParseFrame(line string) (doorward.Frame, error) {
	raw, n, err := parseBits(line)
	if err != nil {
		return doorward.Frame{}, err
	}
	return doorward.ValidateFrame(raw, n)
}

func parseBits(line string) (uint64, int, error) {
	if len(line) > 128 {
		return 0, 0, doorward.ErrBadBitCount
	}
	var raw uint64
	n := 0
	for _, c := range line {
		switch c {
		case '0':
			raw <<= 1
			n++
		case '1':
			raw = raw<<1 | 1
			n++
		case '\r', ' ':
			// converter line-ending and grouping noise
		default:
			return 0, 0, errors.New("bit line contains non-bit characters")
		}
	}
	return raw, n, nil
}
