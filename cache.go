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

// Cache is the in-memory allow list plus the opaque sync token issued by
// the authority server. The list is replaced wholesale on every successful
// sync, never patched incrementally.
type Cache struct {
	mu    syncutil.RWMutex
	fobs  map[Credential]struct{}
	token string
}

// NewCache returns an empty cache with an unknown sync token.
func NewCache() *Cache {
	return &Cache{
		fobs: make(map[Credential]struct{}),
	}
}

// Contains reports whether the credential is in the allow list.
// Pure set membership, no I/O.
func (c *Cache) Contains(cred Credential) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.fobs[cred]
	return ok
}

// Replace swaps in a new allow list and sync token atomically. Invoked
// only by the sync client after a successful full refresh.
func (c *Cache) Replace(fobs []Credential, token string) {
	next := make(map[Credential]struct{}, len(fobs))
	for _, f := range fobs {
		next[f] = struct{}{}
	}

	c.mu.Lock()
	c.fobs = next
	c.token = token
	c.mu.Unlock()
}

// Token returns the current sync token, empty when unknown.
func (c *Cache) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Len returns the number of credentials in the allow list.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.fobs)
}

// Snapshot returns a copy of the allow list and the sync token, suitable
// for persistence. Ordering is unspecified.
func (c *Cache) Snapshot() ([]Credential, string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	fobs := make([]Credential, 0, len(c.fobs))
	for f := range c.fobs {
		fobs = append(fobs, f)
	}
	return fobs, c.token
}
