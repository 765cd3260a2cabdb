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
	"github.com/DoorwardProject/doorward/internal/syncutil"
)

// MaxEvents bounds the outbound event queue. When full, the oldest entry
// is dropped to make room.
const MaxEvents = 20

// Event is one scan decision waiting to be reported to the server.
type Event struct {
	Fob     Credential `json:"fob"`
	Allowed bool       `json:"allowed"`
}

// EventQueue is a bounded FIFO of pending access events with peek/commit
// drain semantics: the sync client peeks the queue before a round trip and
// commits only after the server acknowledges, so a failed round trip
// retransmits instead of losing events. Overflow during an in-flight round
// trip is reconciled by Commit.
type EventQueue struct {
	mu     syncutil.Mutex
	events []Event
	// start is the absolute index of events[0] since process start.
	// It advances on every eviction and commit, letting Commit tell
	// how many of the peeked events overflow already discarded.
	start uint64
}

// NewEventQueue returns an empty queue.
func NewEventQueue() *EventQueue {
	return &EventQueue{}
}

// Push appends an event, evicting the oldest entry if the queue is full.
// Returns true if an entry was evicted.
func (q *EventQueue) Push(ev Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	evicted := false
	if len(q.events) >= MaxEvents {
		q.events = q.events[1:]
		q.start++
		evicted = true
	}
	q.events = append(q.events, ev)
	return evicted
}

// Len returns the number of pending events.
func (q *EventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Peek returns a copy of the pending events and a marker to pass to
// Commit once the server has acknowledged them.
func (q *EventQueue) Peek() ([]Event, uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Event, len(q.events))
	copy(out, q.events)
	return out, q.start
}

// Commit removes n events peeked at the given marker. Events the overflow
// handling already evicted while the round trip was in flight are not
// removed twice.
func (q *EventQueue) Commit(n int, marker uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()

	dropped := q.start - marker
	if dropped >= uint64(n) {
		return
	}
	remain := uint64(n) - dropped
	if remain > uint64(len(q.events)) {
		remain = uint64(len(q.events))
	}
	q.events = q.events[remain:]
	q.start += remain
}
