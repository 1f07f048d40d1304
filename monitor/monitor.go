// Copyright (C) 2026 The lavatube Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package monitor serves the progress of a running replay over HTTP.
package monitor

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/andrew-lunarg/lavatube/core/log"
	"github.com/andrew-lunarg/lavatube/replay"
	"github.com/goccy/go-json"
	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/pkg/errors"
)

// Source reports the status of a replay.
type Source interface {
	Status() replay.Status
}

// Thread is the status of one replay thread.
type Thread struct {
	ID      int    `json:"id"`
	State   string `json:"state"`
	Counter uint32 `json:"counter"`
}

// Server exposes a Source over HTTP.
type Server struct {
	src Source
}

// New returns a Server reporting src.
func New(src Source) *Server { return &Server{src: src} }

// Register adds the monitor routes to e.
func (s *Server) Register(e *echo.Echo) {
	e.GET("/status", s.handleStatus)
	e.GET("/threads/:id", s.handleThread)
}

// Handler returns an echo instance serving the monitor routes.
func (s *Server) Handler() *echo.Echo {
	e := echo.New()
	e.Use(middleware.Recover())
	s.Register(e)
	return e
}

// Serve listens on addr until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, addr string) error {
	log.I(ctx, "Monitor listening on %s", addr)
	sc := echo.StartConfig{
		Address: addr,
		BeforeServeFunc: func(srv *http.Server) error {
			srv.ReadHeaderTimeout = 5 * time.Second
			return nil
		},
	}
	if err := sc.Start(ctx, s.Handler()); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleStatus(c *echo.Context) error {
	return writeJSON(c, http.StatusOK, s.src.Status())
}

func (s *Server) handleThread(c *echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id < 0 {
		return writeError(c, http.StatusBadRequest, "invalid thread id")
	}
	st := s.src.Status()
	if id >= len(st.States) || st.States[id] == "" {
		return writeError(c, http.StatusNotFound, "no such thread")
	}
	t := Thread{ID: id, State: st.States[id]}
	if id < len(st.Counters) {
		t.Counter = st.Counters[id]
	}
	return writeJSON(c, http.StatusOK, t)
}

func writeError(c *echo.Context, status int, msg string) error {
	return writeJSON(c, status, map[string]string{"error": msg})
}

func writeJSON(c *echo.Context, status int, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Blob(status, echo.MIMEApplicationJSON, data)
}
