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
)

type fakeDoor struct {
	pulses int
}

func (d *fakeDoor) Pulse() { d.pulses++ }

type fakeRefresher struct {
	calls int
	fn    func()
	err   error
}

func (r *fakeRefresher) Sync(_ context.Context) error {
	r.calls++
	if r.fn != nil {
		r.fn()
	}
	return r.err
}

// frame26 builds a valid 26-bit frame for the given facility and card.
func frame26(facility, card uint32) Frame {
	return Frame{Bits: 26, Payload: facility<<16 | card}
}

func TestController_GrantPulsesDoor(t *testing.T) {
	t.Parallel()

	cache := NewCache()
	cache.Replace([]Credential{4212345}, "v1")
	queue := NewEventQueue()
	door := &fakeDoor{}
	ctl := NewController(cache, nil, queue, door, nil)

	got := ctl.HandleFrame(context.Background(), frame26(42, 12345))
	assert.Equal(t, DecisionGranted, got)
	assert.Equal(t, 1, door.pulses)

	events, _ := queue.Peek()
	require.Len(t, events, 1)
	assert.Equal(t, Event{Fob: 4212345, Allowed: true}, events[0])
}

func TestController_MissTriggersRefreshThenGrants(t *testing.T) {
	t.Parallel()

	cache := NewCache()
	refresh := &fakeRefresher{fn: func() {
		cache.Replace([]Credential{4212345}, "v2")
	}}
	queue := NewEventQueue()
	door := &fakeDoor{}
	ctl := NewController(cache, refresh, queue, door, nil)

	got := ctl.HandleFrame(context.Background(), frame26(42, 12345))
	assert.Equal(t, DecisionGranted, got)
	assert.Equal(t, 1, refresh.calls)
	assert.Equal(t, 1, door.pulses)
}

func TestController_DenyRecordsEventAndNoPulse(t *testing.T) {
	t.Parallel()

	cache := NewCache()
	refresh := &fakeRefresher{}
	queue := NewEventQueue()
	door := &fakeDoor{}
	ctl := NewController(cache, refresh, queue, door, nil)

	got := ctl.HandleFrame(context.Background(), frame26(1, 23))
	assert.Equal(t, DecisionDenied, got)
	assert.Equal(t, 1, refresh.calls)
	assert.Zero(t, door.pulses)

	events, _ := queue.Peek()
	require.Len(t, events, 1)
	assert.Equal(t, Event{Fob: 123, Allowed: false}, events[0])
}

func TestController_RefreshFailureStillDenies(t *testing.T) {
	t.Parallel()

	cache := NewCache()
	refresh := &fakeRefresher{err: ErrSyncTransport}
	ctl := NewController(cache, refresh, NewEventQueue(), &fakeDoor{}, nil)

	got := ctl.HandleFrame(context.Background(), frame26(1, 1))
	assert.Equal(t, DecisionDenied, got)
	assert.Equal(t, 1, refresh.calls)
}

func TestController_NFCCandidateMatches(t *testing.T) {
	t.Parallel()

	// Payload 0x12345678 misses on the fob decoding but matches on the
	// byte-reversed 32-bit UID.
	cache := NewCache()
	cache.Replace([]Credential{0x78563412}, "v1")
	queue := NewEventQueue()
	door := &fakeDoor{}
	ctl := NewController(cache, nil, queue, door, nil)

	got := ctl.HandleFrame(context.Background(), Frame{Bits: 34, Payload: 0x12345678})
	assert.Equal(t, DecisionGranted, got)
	assert.Equal(t, 1, door.pulses)

	events, _ := queue.Peek()
	require.Len(t, events, 1)
	assert.Equal(t, Credential(0x78563412), events[0].Fob)
}

func TestController_LockoutIgnoresScans(t *testing.T) {
	t.Parallel()

	cache := NewCache()
	queue := NewEventQueue()
	refresh := &fakeRefresher{}
	ctl := NewController(cache, refresh, queue, &fakeDoor{}, nil)

	base := time.Now()
	clock := base
	ctl.now = func() time.Time { return clock }

	assert.Equal(t, DecisionDenied, ctl.HandleFrame(context.Background(), frame26(9, 9)))

	// Inside the 2s window: no lookup, no refresh, no event.
	clock = base.Add(time.Second)
	assert.Equal(t, DecisionIgnored, ctl.HandleFrame(context.Background(), frame26(9, 9)))
	assert.Equal(t, 1, refresh.calls)
	assert.Equal(t, 1, queue.Len())

	// Past the window the scan is evaluated again and doubles the backoff.
	clock = base.Add(2*time.Second + time.Millisecond)
	assert.Equal(t, DecisionDenied, ctl.HandleFrame(context.Background(), frame26(9, 9)))
	clock = base.Add(5 * time.Second)
	assert.Equal(t, DecisionIgnored, ctl.HandleFrame(context.Background(), frame26(9, 9)),
		"second denial opens a 4s window")
}

func TestController_GrantResetsLockout(t *testing.T) {
	t.Parallel()

	cache := NewCache()
	lockout := NewLockout(DefaultLockoutCap)
	ctl := NewController(cache, nil, NewEventQueue(), &fakeDoor{}, lockout)

	base := time.Now()
	clock := base
	ctl.now = func() time.Time { return clock }

	ctl.HandleFrame(context.Background(), frame26(9, 9))
	assert.Equal(t, uint(1), lockout.Failures())

	cache.Replace([]Credential{99}, "v1")
	clock = base.Add(3 * time.Second)
	assert.Equal(t, DecisionGranted, ctl.HandleFrame(context.Background(), frame26(0, 99)))
	assert.Zero(t, lockout.Failures())
}

func TestController_ManualUnlock(t *testing.T) {
	t.Parallel()

	door := &fakeDoor{}
	ctl := NewController(NewCache(), nil, NewEventQueue(), door, nil)
	ctl.Unlock()
	assert.Equal(t, 1, door.pulses)
}
