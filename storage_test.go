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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheFile_SaveLoadRoundTrip(t *testing.T) {
	t.Parallel()

	store := NewCacheFile(filepath.Join(t.TempDir(), "cache.bin"))
	require.NoError(t, store.Save([]Credential{1, 42, 4212345}, "etag-1"))

	fobs, token, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "etag-1", token)
	assert.ElementsMatch(t, []Credential{1, 42, 4212345}, fobs)
}

func TestCacheFile_SaveOverwrites(t *testing.T) {
	t.Parallel()

	store := NewCacheFile(filepath.Join(t.TempDir(), "cache.bin"))
	require.NoError(t, store.Save([]Credential{1}, "v1"))
	require.NoError(t, store.Save([]Credential{2, 3}, "v2"))

	fobs, token, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "v2", token)
	assert.ElementsMatch(t, []Credential{2, 3}, fobs)
}

func TestCacheFile_LoadMissingFile(t *testing.T) {
	t.Parallel()

	store := NewCacheFile(filepath.Join(t.TempDir(), "absent.bin"))
	_, _, err := store.Load()
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestCacheFile_LoadDetectsCorruption(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "cache.bin")
	store := NewCacheFile(path)
	require.NoError(t, store.Save([]Credential{1, 2, 3}, "etag"))

	buf, err := os.ReadFile(path)
	require.NoError(t, err)

	// Flip one payload byte; the checksum must catch it.
	buf[len(buf)-1] ^= 0x01
	require.NoError(t, os.WriteFile(path, buf, 0o600))

	_, _, err = store.Load()
	assert.ErrorIs(t, err, ErrCacheChecksum)
}

func TestCacheFile_LoadRejectsBadMagic(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "cache.bin")
	store := NewCacheFile(path)
	require.NoError(t, store.Save(nil, "etag"))

	buf, err := os.ReadFile(path)
	require.NoError(t, err)
	buf[0] = 'X'
	require.NoError(t, os.WriteFile(path, buf, 0o600))

	_, _, err = store.Load()
	assert.ErrorIs(t, err, ErrCacheEnvelope)
}

func TestCacheFile_LoadRejectsTruncated(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "cache.bin")
	require.NoError(t, os.WriteFile(path, []byte("DWC"), 0o600))

	_, _, err := NewCacheFile(path).Load()
	assert.ErrorIs(t, err, ErrCacheEnvelope)
}

func TestCacheFile_EnsureDir(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "dir", "cache.bin")
	store := NewCacheFile(path)
	require.NoError(t, store.EnsureDir())
	require.NoError(t, store.Save([]Credential{7}, "tok"))

	fobs, _, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, []Credential{7}, fobs)
}
