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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/DoorwardProject/doorward/internal/syncutil"
)

const (
	// DefaultSyncTimeout bounds one full round trip to the server.
	DefaultSyncTimeout = 10 * time.Second

	// fobsPath is the fixed resource on the authority server.
	fobsPath = "/api/fobs"

	// maxResponseBody caps how much of a reply we are willing to parse.
	maxResponseBody = 1 << 20
)

// ClientConfig configures the sync client.
type ClientConfig struct {
	// BaseURL is the authority server root, e.g. "http://conway:8080".
	BaseURL string
	// Timeout bounds one round trip. Zero selects DefaultSyncTimeout.
	Timeout time.Duration
	// Retry controls transport-level retry inside the round-trip bound.
	// Nil selects DefaultRetryConfig.
	Retry *RetryConfig
}

// Client keeps the cache eventually consistent with the authority server
// and delivers queued access events.
//
// The whole round trip is serialized by a mutex so the periodic sync and
// an on-demand miss refresh can never interleave their queue drains or
// cache updates.
type Client struct {
	cfg   ClientConfig
	http  *http.Client
	cache *Cache
	store *CacheFile
	queue *EventQueue
	log   zerolog.Logger
	mu    syncutil.Mutex
}

// NewClient creates a sync client. store may be nil to disable
// persistence (tests).
func NewClient(cfg ClientConfig, cache *Cache, store *CacheFile, queue *EventQueue) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultSyncTimeout
	}
	if cfg.Retry == nil {
		cfg.Retry = DefaultRetryConfig()
	}
	return &Client{
		cfg:   cfg,
		http:  &http.Client{Timeout: cfg.Timeout},
		cache: cache,
		store: store,
		queue: queue,
		log:   zerolog.Nop(),
	}
}

// SetLogger attaches a logger.
func (c *Client) SetLogger(log zerolog.Logger) {
	c.log = log
}

// Queue returns the outbound event queue the client drains.
func (c *Client) Queue() *EventQueue {
	return c.queue
}

type syncResponse struct {
	status int
	etag   string
	body   []byte
}

// Sync performs one conditional refresh: it posts the pending events with
// the current sync token and applies the reply.
//
//	304 - allow list still valid; events committed, nothing persisted
//	200 - allow list and token replaced, events committed, cache persisted
//	anything else - soft failure, cache and events untouched
//
// The events are committed as soon as the server acknowledges the round
// trip, before the persistence write; a crash between the two loses the
// fetched cache version but not granted access.
func (c *Client) Sync(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	events, marker := c.queue.Peek()
	body, err := json.Marshal(events)
	if err != nil {
		return &SyncError{Op: "sync encode", Err: err, Type: ErrorTypePermanent}
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	var resp syncResponse
	err = RetryWithConfig(ctx, c.cfg.Retry, func() error {
		var rtErr error
		resp, rtErr = c.roundTrip(ctx, body)
		return rtErr
	})
	if err != nil {
		c.log.Error().Err(err).Msg("sync: round trip failed")
		return err
	}

	if resp.status == http.StatusNotModified {
		c.queue.Commit(len(events), marker)
		c.log.Debug().Int("events", len(events)).Msg("sync: not modified")
		return nil
	}

	var fobs []Credential
	if err := json.Unmarshal(resp.body, &fobs); err != nil {
		c.log.Error().Err(err).Msg("sync: bad fob list")
		return &SyncError{Op: "sync parse", Err: fmt.Errorf("%w: %w", ErrResponseParse, err), Type: ErrorTypePermanent}
	}

	c.queue.Commit(len(events), marker)
	c.cache.Replace(fobs, resp.etag)
	c.log.Info().Int("fobs", len(fobs)).Str("etag", resp.etag).Msg("sync: cache refreshed")

	if c.store != nil {
		if err := c.store.Save(fobs, resp.etag); err != nil {
			// Not fatal: the in-memory cache is current, only the
			// restart warm-up regresses to the previous version.
			c.log.Error().Err(err).Msg("sync: cache persist failed")
		}
	}
	return nil
}

// roundTrip performs one POST exchange. 304 and 200 are complete
// exchanges; everything else is an error so the retry layer can decide
// whether another attempt inside the deadline makes sense.
func (c *Client) roundTrip(ctx context.Context, body []byte) (syncResponse, error) {
	url := strings.TrimRight(c.cfg.BaseURL, "/") + fobsPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return syncResponse{}, &SyncError{Op: "sync request", Err: err, Type: ErrorTypePermanent}
	}
	req.Header.Set("Content-Type", "application/json")
	if token := c.cache.Token(); token != "" {
		req.Header.Set("If-None-Match", token)
	}

	httpResp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return syncResponse{}, &SyncError{Op: "sync", Err: ErrSyncTimeout, Type: ErrorTypeTimeout, Retryable: true}
		}
		return syncResponse{}, &SyncError{Op: "sync", Err: fmt.Errorf("%w: %w", ErrSyncTransport, err), Type: ErrorTypeTransient, Retryable: true}
	}
	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBody))
	if err != nil {
		return syncResponse{}, &SyncError{Op: "sync read", Err: fmt.Errorf("%w: %w", ErrSyncTransport, err), Type: ErrorTypeTransient, Retryable: true}
	}

	resp := syncResponse{
		status: httpResp.StatusCode,
		etag:   httpResp.Header.Get("ETag"),
		body:   respBody,
	}

	switch {
	case resp.status == http.StatusOK || resp.status == http.StatusNotModified:
		return resp, nil
	case resp.status >= 500:
		// Server hiccup, worth another attempt inside the deadline
		return resp, &SyncError{Op: "sync", Err: ErrServerStatus, Status: resp.status, Type: ErrorTypeTransient, Retryable: true}
	default:
		return resp, &SyncError{Op: "sync", Err: ErrServerStatus, Status: resp.status, Type: ErrorTypePermanent}
	}
}
