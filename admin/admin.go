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

// Package admin is the manual control plane: a small HTTP listener with a
// status page and an unlock action that goes through the same actuation
// path as a granted scan.
package admin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Status is a snapshot for the status page.
type Status struct {
	Token         string
	Fobs          int
	PendingEvents int
	FramesRead    uint64
	FramesBad     uint64
}

// Unlocker requests a door pulse.
type Unlocker interface {
	Unlock()
}

// Server serves the control plane on one address, one connection at a
// time in practice (the page is for a human standing at the door).
type Server struct {
	addr   string
	status func() Status
	door   Unlocker
	log    zerolog.Logger
	srv    *http.Server
}

// New creates the control-plane server.
func New(addr string, status func() Status, door Unlocker, log zerolog.Logger) *Server {
	s := &Server{
		addr:   addr,
		status: status,
		door:   door,
		log:    log,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/unlock", s.handleUnlock)

	s.srv = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		MaxHeaderBytes:    4 << 10,
	}
	return s
}

// Handler exposes the mux for tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.srv.ListenAndServe()
	}()
	s.log.Info().Str("addr", s.addr).Msg("admin: listening")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet || r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	st := s.status()
	token := st.Token
	if token == "" {
		token = "(none)"
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w,
		"<h1>Doorward</h1>"+
			"<p>ETag: %s</p>"+
			"<p>Fobs: %d</p>"+
			"<p>Pending events: %d</p>"+
			"<p>Frames: %d read, %d rejected</p>"+
			"<form action=/unlock method=post>"+
			"<button>Unlock</button></form>",
		token, st.Fobs, st.PendingEvents, st.FramesRead, st.FramesBad)
}

func (s *Server) handleUnlock(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	s.door.Unlock()
	s.log.Info().Str("remote", r.RemoteAddr).Msg("admin: unlock")

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, "<p>Door unlocked!</p>")
}
