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

// Package trace stores the streams of a capture and its metadata.
//
// A trace on disk is a directory holding metadata.json and one
// thread_NNN.bin stream per capture thread. Memory holds the same in
// memory for tests.
package trace

import (
	"context"
	"io"
	"time"

	"github.com/andrew-lunarg/lavatube/core/fault"
	"github.com/google/uuid"
)

// ErrNoStreams is returned when a trace holds no thread streams.
const ErrNoStreams = fault.Const("Trace has no streams")

// FormatVersion is the version of the trace container.
const FormatVersion = 1

// Metadata describes a trace.
type Metadata struct {
	Version     int       `json:"version"`
	ID          uuid.UUID `json:"id"`
	Created     time.Time `json:"created"`
	Application string    `json:"application,omitempty"`
	Threads     int       `json:"threads"`
	Frames      int       `json:"frames"`
	// Calls holds the number of calls recorded by each thread.
	Calls []uint32 `json:"calls"`
}

// Summary is what a capture reports when it finishes.
type Summary struct {
	Frames int
	Calls  []uint32
}

// Sink receives the streams of a capture.
type Sink interface {
	// Stream returns the writer for thread's stream.
	Stream(thread int) (io.WriteCloser, error)
	// Finish records the summary once every stream is closed.
	Finish(ctx context.Context, s Summary) error
}

// Source provides the streams of a trace for replay.
type Source interface {
	Metadata() Metadata
	// Streams returns one reader per thread, indexed by thread. Threads
	// without a stream have a nil entry.
	Streams(ctx context.Context) ([]io.ReadCloser, error)
}

func newMetadata(app string) Metadata {
	return Metadata{
		Version:     FormatVersion,
		ID:          uuid.New(),
		Created:     time.Now().UTC(),
		Application: app,
	}
}

func (m *Metadata) apply(s Summary) {
	m.Frames = s.Frames
	m.Calls = append([]uint32(nil), s.Calls...)
	m.Threads = len(s.Calls)
}
