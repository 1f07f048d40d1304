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

package trace

import (
	"bytes"
	"context"
	"io"
	"sync"
)

// Memory is a trace held in memory.
type Memory struct {
	mu       sync.Mutex
	meta     Metadata
	streams  map[int]*bytes.Buffer
	finished bool
}

// NewMemory returns an empty in-memory trace.
func NewMemory(app string) *Memory {
	return &Memory{meta: newMetadata(app), streams: map[int]*bytes.Buffer{}}
}

type memoryStream struct{ *bytes.Buffer }

func (memoryStream) Close() error { return nil }

func (m *Memory) Stream(thread int) (io.WriteCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := &bytes.Buffer{}
	m.streams[thread] = b
	return memoryStream{b}, nil
}

func (m *Memory) Finish(ctx context.Context, s Summary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.meta.apply(s)
	m.finished = true
	return nil
}

// Finished returns true once the capture has finished.
func (m *Memory) Finished() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.finished
}

func (m *Memory) Metadata() Metadata {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.meta
}

// Bytes returns the current contents of thread's stream.
func (m *Memory) Bytes(thread int) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.streams[thread]; ok {
		return b.Bytes()
	}
	return nil
}

// SetBytes replaces thread's stream.
func (m *Memory) SetBytes(thread int, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.streams[thread] = bytes.NewBuffer(data)
}

// Streams returns independent readers over each stream, so a trace can be
// replayed more than once.
func (m *Memory) Streams(ctx context.Context) ([]io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []io.ReadCloser
	for thread, b := range m.streams {
		for len(out) <= thread {
			out = append(out, nil)
		}
		out[thread] = io.NopCloser(bytes.NewReader(b.Bytes()))
	}
	if len(out) == 0 {
		return nil, ErrNoStreams
	}
	return out, nil
}
