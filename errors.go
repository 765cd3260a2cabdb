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
	"errors"
	"fmt"
	"net"
)

// Error categories for error handling and retry logic.
// None of these is ever fatal to the process: framing errors reset the
// decoder, sync errors leave the cache and event queue untouched, and
// persistence errors fall back to an empty cache.
var (
	// Framing errors - recovered locally by resetting decoder state
	ErrBadBitCount = errors.New("unsupported bit count")
	ErrBadParity   = errors.New("parity check failed")

	// Sync errors - potentially retryable
	ErrSyncTimeout   = errors.New("sync round trip timed out")
	ErrSyncTransport = errors.New("sync transport failed")
	ErrServerStatus  = errors.New("unexpected server status")
	ErrResponseParse = errors.New("server response parse failed")

	// Persistence errors - recovered by falling back to an empty cache
	ErrCacheEnvelope = errors.New("cache envelope malformed")
	ErrCacheChecksum = errors.New("cache checksum mismatch")
)

// ErrorType represents the category of error for retry logic.
type ErrorType int

const (
	// ErrorTypeTransient indicates a potentially retryable error
	ErrorTypeTransient ErrorType = iota
	// ErrorTypePermanent indicates a non-retryable error
	ErrorTypePermanent
	// ErrorTypeTimeout indicates a timeout error (special handling)
	ErrorTypeTimeout
)

// SyncError wraps failures of the authority-server exchange with context
// about which part of the round trip failed and whether retrying it within
// the same deadline makes sense.
type SyncError struct {
	Err       error
	Op        string
	Status    int
	Type      ErrorType
	Retryable bool
}

func (e *SyncError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether an operation that returned err is worth
// retrying within the current round-trip deadline.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var syncErr *SyncError
	if errors.As(err, &syncErr) {
		return syncErr.Retryable
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	switch {
	case errors.Is(err, ErrSyncTimeout),
		errors.Is(err, ErrSyncTransport):
		return true
	default:
		return false
	}
}

// GetErrorType classifies an error for logging and retry decisions.
func GetErrorType(err error) ErrorType {
	if err == nil {
		return ErrorTypePermanent
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrorTypeTimeout
	}
	if errors.Is(err, ErrSyncTimeout) {
		return ErrorTypeTimeout
	}
	if IsRetryable(err) {
		return ErrorTypeTransient
	}
	return ErrorTypePermanent
}
