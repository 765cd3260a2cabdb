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
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
)

// cacheMagic marks a doorward cache envelope, version 1.
var cacheMagic = [4]byte{'D', 'W', 'C', '1'}

// envelopeHeader is magic (4) + CRC-32 of the payload (4, little endian).
const envelopeHeader = 8

// persistedCache is the JSON payload inside the envelope.
type persistedCache struct {
	Token string       `json:"etag"`
	Fobs  []Credential `json:"fobs"`
}

// CacheFile persists the allow list and sync token across restarts.
// Writes go through a temp file and rename so a power loss mid-write
// leaves the previous envelope intact; loads verify the checksum and
// fail safe to "no cache" on any mismatch.
type CacheFile struct {
	path string
}

// NewCacheFile creates a cache file handle at the given path.
func NewCacheFile(path string) *CacheFile {
	return &CacheFile{path: path}
}

// Path returns the backing file path.
func (s *CacheFile) Path() string {
	return s.path
}

// Save overwrites the cache file atomically with the given allow list
// and sync token.
func (s *CacheFile) Save(fobs []Credential, token string) error {
	payload, err := json.Marshal(persistedCache{Token: token, Fobs: fobs})
	if err != nil {
		return fmt.Errorf("encode cache payload: %w", err)
	}

	buf := make([]byte, envelopeHeader+len(payload))
	copy(buf[:4], cacheMagic[:])
	binary.LittleEndian.PutUint32(buf[4:8], crc32.ChecksumIEEE(payload))
	copy(buf[envelopeHeader:], payload)

	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("create cache temp file: %w", err)
	}
	if _, err := f.Write(buf); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("write cache temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("sync cache temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close cache temp file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace cache file: %w", err)
	}
	return nil
}

// Load reads the cache file back. Returns the allow list and sync token,
// or an error when the file is absent, truncated, or fails the checksum.
// Callers treat any error as "no cache": deny everything until the next
// successful sync, never fail open.
func (s *CacheFile) Load() ([]Credential, string, error) {
	buf, err := os.ReadFile(s.path)
	if err != nil {
		return nil, "", fmt.Errorf("read cache file: %w", err)
	}
	if len(buf) < envelopeHeader {
		return nil, "", fmt.Errorf("%w: %d bytes", ErrCacheEnvelope, len(buf))
	}
	if [4]byte(buf[:4]) != cacheMagic {
		return nil, "", fmt.Errorf("%w: bad magic", ErrCacheEnvelope)
	}

	want := binary.LittleEndian.Uint32(buf[4:8])
	payload := buf[envelopeHeader:]
	if got := crc32.ChecksumIEEE(payload); got != want {
		return nil, "", fmt.Errorf("%w: want %08x got %08x", ErrCacheChecksum, want, got)
	}

	var pc persistedCache
	if err := json.Unmarshal(payload, &pc); err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrCacheEnvelope, err)
	}
	return pc.Fobs, pc.Token, nil
}

// EnsureDir creates the directory holding the cache file if needed.
func (s *CacheFile) EnsureDir() error {
	dir := filepath.Dir(s.path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}
	return nil
}
