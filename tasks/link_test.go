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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestStartLink_EmptyProbeAddrIsNoop(t *testing.T) {
	t.Parallel()

	sup := New(testConfig(), zerolog.Nop())
	sup.StartLink(context.Background(), LinkConfig{})
	sup.Wait()
}

func TestStartLink_HealthyProbe(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			_ = conn.Close()
		}
	}()

	marker := filepath.Join(t.TempDir(), "reset")
	sup := New(testConfig(), zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	sup.StartLink(ctx, LinkConfig{
		ProbeAddr:     ln.Addr().String(),
		Interval:      5 * time.Millisecond,
		FailThreshold: 1,
		ResetCommand:  "touch " + marker,
	})

	time.Sleep(50 * time.Millisecond)
	cancel()
	sup.Wait()

	_, err = os.Stat(marker)
	require.True(t, os.IsNotExist(err), "healthy link must not trigger a reset")
}

func TestStartLink_ResetAfterThreshold(t *testing.T) {
	t.Parallel()

	// A closed listener's address refuses connections immediately.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	marker := filepath.Join(t.TempDir(), "reset")
	sup := New(testConfig(), zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sup.StartLink(ctx, LinkConfig{
		ProbeAddr:     addr,
		Interval:      5 * time.Millisecond,
		FailThreshold: 2,
		ResetCommand:  "touch " + marker,
	})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(marker); err == nil {
			cancel()
			sup.Wait()
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("reset command never ran")
}
