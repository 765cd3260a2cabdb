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

// Package tasks runs the controller's long-lived loops: periodic cache
// sync, frame evaluation, the network-link supervisor, the watchdog
// feeder and the status log. Every task runs forever, sleeps at explicit
// points, and swallows its errors - nothing here ever propagates a
// failure upward. The only fatal recovery is the hardware watchdog
// firing when a task wedges.
package tasks

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/DoorwardProject/doorward"
	"github.com/DoorwardProject/doorward/watchdog"
)

// Config holds the task intervals.
type Config struct {
	// SyncInterval is the periodic cache refresh cadence.
	SyncInterval time.Duration
	// PollInterval is the frame-evaluation cadence. It trades scan
	// latency for decoder robustness and must be short relative to the
	// decoder quiescence threshold.
	PollInterval time.Duration
	// WatchdogFeed must be comfortably below the device timeout.
	WatchdogFeed time.Duration
	// StatusInterval is the periodic status log cadence.
	StatusInterval time.Duration
}

// DefaultConfig returns the default task cadences.
func DefaultConfig() *Config {
	return &Config{
		SyncInterval:   10 * time.Second,
		PollInterval:   5 * time.Millisecond,
		WatchdogFeed:   10 * time.Second,
		StatusInterval: 30 * time.Second,
	}
}

// Syncer is the sync client surface the sync loop needs.
type Syncer interface {
	Sync(ctx context.Context) error
}

// Supervisor starts and collects the long-lived tasks.
type Supervisor struct {
	cfg *Config
	log zerolog.Logger
	wg  sync.WaitGroup
}

// New creates a supervisor. A nil config selects the defaults.
func New(cfg *Config, log zerolog.Logger) *Supervisor {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Supervisor{cfg: cfg, log: log}
}

// Wait blocks until every started task has returned.
func (s *Supervisor) Wait() {
	s.wg.Wait()
}

func (s *Supervisor) spawn(name string, fn func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.log.Debug().Str("task", name).Msg("task started")
		fn()
		s.log.Debug().Str("task", name).Msg("task stopped")
	}()
}

// StartSyncLoop refreshes the cache on a fixed interval. Errors are
// logged and swallowed; the next tick retries.
func (s *Supervisor) StartSyncLoop(ctx context.Context, syncer Syncer) {
	s.spawn("sync", func() {
		ticker := time.NewTicker(s.cfg.SyncInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			if err := syncer.Sync(ctx); err != nil {
				s.log.Warn().Err(err).Msg("periodic sync failed")
			}
		}
	})
}

// StartFrameLoop polls the decoder for completed frames and feeds them to
// the access controller.
func (s *Supervisor) StartFrameLoop(ctx context.Context, dec *doorward.Decoder, ctl *doorward.Controller) {
	s.spawn("frames", func() {
		ticker := time.NewTicker(s.cfg.PollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			if frame, ok := dec.Poll(time.Now()); ok {
				ctl.HandleFrame(ctx, frame)
			}
		}
	})
}

// StartWatchdog feeds the hardware watchdog. A feed failure is logged
// but the loop keeps trying; if the device really is gone the reset it
// guards against cannot happen anyway.
func (s *Supervisor) StartWatchdog(ctx context.Context, timer watchdog.Timer) {
	s.spawn("watchdog", func() {
		ticker := time.NewTicker(s.cfg.WatchdogFeed)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			if err := timer.Feed(); err != nil {
				s.log.Error().Err(err).Msg("watchdog feed failed")
			}
		}
	})
}

// StartStatusLoop logs a periodic one-line status summary.
func (s *Supervisor) StartStatusLoop(ctx context.Context, report func() string) {
	s.spawn("status", func() {
		ticker := time.NewTicker(s.cfg.StatusInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			s.log.Info().Msg(report())
		}
	})
}
