// Copyright (C) 2017 Google Inc.
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

package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
)

// Handler is the handler of log messages.
type Handler interface {
	Handle(*Message)
	Close()
}

// NewHandler returns a Handler that calls handle for each message and close
// when the handler is closed.
func NewHandler(handle func(*Message), close func()) Handler {
	if close == nil {
		close = func() {}
	}
	return handler{handle, close}
}

type handler struct {
	handle func(*Message)
	close  func()
}

func (h handler) Handle(m *Message) { h.handle(m) }
func (h handler) Close()            { h.close() }

// PutHandler returns a new context with the Handler assigned to w.
func PutHandler(ctx context.Context, w Handler) context.Context {
	return context.WithValue(ctx, handlerKey, w)
}

// GetHandler returns the Handler assigned to ctx.
func GetHandler(ctx context.Context) Handler {
	out, _ := ctx.Value(handlerKey).(Handler)
	return out
}

// Slog returns a Handler that forwards messages to the slog handler h.
// Bound values become attributes and the trace chain becomes the "trace"
// attribute.
func Slog(h slog.Handler) Handler {
	mu := sync.Mutex{}
	return handler{
		handle: func(m *Message) {
			ctx := context.Background()
			if !h.Enabled(ctx, m.Severity.Level()) {
				return
			}
			r := slog.NewRecord(m.Time, m.Severity.Level(), m.Text, 0)
			if len(m.Trace) > 0 {
				r.AddAttrs(slog.Any("trace", m.Trace))
			}
			for _, v := range m.Values {
				r.AddAttrs(slog.Any(v.Name, v.Value))
			}
			mu.Lock()
			defer mu.Unlock()
			h.Handle(ctx, r)
		},
		close: func() {},
	}
}

// Text returns a Handler that writes text lines to w.
func Text(w io.Writer, level Severity) Handler {
	return Slog(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level.Level()}))
}

// JSON returns a Handler that writes JSON lines to w.
func JSON(w io.Writer, level Severity) Handler {
	return Slog(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level.Level()}))
}

// Std returns a Handler that writes text to os.Stderr.
func Std() Handler {
	return Text(os.Stderr, Verbose)
}

// Fork returns a Handler that forwards all messages to all supplied handlers.
func Fork(handlers ...Handler) Handler {
	return handler{
		handle: func(m *Message) {
			for _, h := range handlers {
				h.Handle(m)
			}
		},
		close: func() {
			for _, h := range handlers {
				h.Close()
			}
		},
	}
}
