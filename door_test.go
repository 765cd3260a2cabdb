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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoorwardProject/doorward/internal/syncutil"
)

// fakeStrike records every Set call.
type fakeStrike struct {
	mu    syncutil.Mutex
	calls []bool
}

func (s *fakeStrike) Set(active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, active)
	return nil
}

func (s *fakeStrike) snapshot() []bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]bool, len(s.calls))
	copy(out, s.calls)
	return out
}

func (s *fakeStrike) waitFor(t *testing.T, n int) []bool {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if calls := s.snapshot(); len(calls) >= n {
			return calls
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("strike saw %d calls, want at least %d", len(s.snapshot()), n)
	return nil
}

func TestPulser_PulseAssertsThenDeasserts(t *testing.T) {
	t.Parallel()

	strike := &fakeStrike{}
	p := NewPulser(strike, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	p.Pulse()
	calls := strike.waitFor(t, 2)
	assert.Equal(t, []bool{true, false}, calls[:2])

	cancel()
	<-done
	final := strike.snapshot()
	assert.False(t, final[len(final)-1], "output deasserted on shutdown")
}

func TestPulser_CoalescesBurst(t *testing.T) {
	t.Parallel()

	strike := &fakeStrike{}
	p := NewPulser(strike, 20*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	// A burst of requests while a pulse is in flight must produce at
	// most two pulses: the active one plus one follow-up.
	for i := 0; i < 10; i++ {
		p.Pulse()
	}
	time.Sleep(100 * time.Millisecond)

	calls := strike.snapshot()
	asserts := 0
	for _, active := range calls {
		if active {
			asserts++
		}
	}
	assert.LessOrEqual(t, asserts, 2)
	require.NotEmpty(t, calls)
}

func TestPulser_PulseNeverBlocks(t *testing.T) {
	t.Parallel()

	// No Run goroutine at all: the request channel is full after one
	// Pulse, the rest must drop instead of blocking.
	p := NewPulser(&fakeStrike{}, time.Millisecond)
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			p.Pulse()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Pulse blocked")
	}
}

func TestPulser_DefaultWidth(t *testing.T) {
	t.Parallel()

	p := NewPulser(&fakeStrike{}, 0)
	assert.Equal(t, DefaultDoorPulse, p.width)
}
