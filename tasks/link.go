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

package tasks

import (
	"context"
	"net"
	"os/exec"
	"time"
)

// LinkConfig tunes the network-link supervisor.
type LinkConfig struct {
	// ProbeAddr is the host:port dialed as a reachability probe,
	// normally the authority server.
	ProbeAddr string
	// Interval is the probe cadence and also the fixed retry backoff.
	Interval time.Duration
	// FailThreshold is how many consecutive failed probes trigger the
	// reset command.
	FailThreshold int
	// ResetCommand power-cycles the radio through the shell. Empty
	// disables resets.
	ResetCommand string
}

const (
	probeTimeout = 3 * time.Second
	resetTimeout = 30 * time.Second
)

// StartLink supervises network reachability: it probes the server, and
// after enough consecutive failures power-cycles the radio and keeps
// retrying with a fixed delay. It never gives up and never exits before
// the context does.
func (s *Supervisor) StartLink(ctx context.Context, cfg LinkConfig) {
	if cfg.ProbeAddr == "" {
		return
	}
	s.spawn("link", func() {
		failures := 0
		up := false
		for {
			d := net.Dialer{Timeout: probeTimeout}
			conn, err := d.DialContext(ctx, "tcp", cfg.ProbeAddr)
			if err == nil {
				_ = conn.Close()
				if !up {
					s.log.Info().Str("probe", cfg.ProbeAddr).Msg("link up")
				}
				up = true
				failures = 0
			} else if ctx.Err() == nil {
				failures++
				up = false
				s.log.Warn().
					Str("probe", cfg.ProbeAddr).
					Int("failures", failures).
					Err(err).
					Msg("link probe failed")
				if cfg.ResetCommand != "" && failures >= cfg.FailThreshold {
					s.resetRadio(ctx, cfg.ResetCommand)
					failures = 0
				}
			}

			select {
			case <-ctx.Done():
				return
			case <-time.After(cfg.Interval):
			}
		}
	})
}

func (s *Supervisor) resetRadio(ctx context.Context, command string) {
	s.log.Warn().Str("command", command).Msg("link: resetting radio")
	resetCtx, cancel := context.WithTimeout(ctx, resetTimeout)
	defer cancel()
	cmd := exec.CommandContext(resetCtx, "sh", "-c", command)
	if out, err := cmd.CombinedOutput(); err != nil {
		s.log.Error().Err(err).Bytes("output", out).Msg("link: radio reset failed")
	}
}
