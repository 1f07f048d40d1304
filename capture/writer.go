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

// Package capture records intercepted calls into per-thread packet streams.
//
// A Writer owns the object registry and the call counters of one capture.
// Each application thread records through its own Thread. A call is built
// with Begin, told which records it uses and mutates, given its arguments,
// and finished with End, which emits any barrier and update packets the
// call needs ahead of its API_CALL packet.
package capture

import (
	"bufio"
	"context"
	"sync"
	"sync/atomic"

	"github.com/andrew-lunarg/lavatube/barrier"
	"github.com/andrew-lunarg/lavatube/core/data/endian"
	"github.com/andrew-lunarg/lavatube/core/log"
	"github.com/andrew-lunarg/lavatube/memory"
	"github.com/andrew-lunarg/lavatube/packet"
	"github.com/andrew-lunarg/lavatube/trace"
	"github.com/andrew-lunarg/lavatube/tracker"
	"github.com/pkg/errors"
)

// Options control a capture.
type Options struct {
	// BlockSize is the shadow diff granularity.
	BlockSize uint64
	// SelfTest runs the registry self-test at every frame end.
	SelfTest bool
}

// Writer records a capture.
type Writer struct {
	Registry *tracker.Registry
	Counters *barrier.Counters

	opts  Options
	sink  trace.Sink
	frame atomic.Int32
	// state is read-locked while End applies a call's queued changes and
	// write-locked by the frame-end self-test.
	state   sync.RWMutex
	mu      sync.Mutex
	threads map[int]*Thread
	closed  bool
}

// New returns a Writer that writes streams to sink.
func New(sink trace.Sink, opts Options) *Writer {
	if opts.BlockSize == 0 {
		opts.BlockSize = memory.DefaultBlockSize
	}
	return &Writer{
		Registry: tracker.New(),
		Counters: barrier.New(),
		opts:     opts,
		sink:     sink,
		threads:  map[int]*Thread{},
	}
}

// Options returns the options the Writer was created with.
func (w *Writer) Options() Options { return w.opts }

// Frame returns the global frame counter.
func (w *Writer) Frame() int { return int(w.frame.Load()) }

// Thread returns the recorder for thread id, starting its stream on first
// use. A Thread must only be used by one goroutine at a time.
func (w *Writer) Thread(ctx context.Context, id int) (*Thread, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil, errors.New("Capture is closed")
	}
	if t, ok := w.threads[id]; ok {
		return t, nil
	}
	if id < 0 || id >= packet.MaxThreads {
		return nil, errors.Errorf("Thread id %d out of range", id)
	}
	stream, err := w.sink.Stream(id)
	if err != nil {
		return nil, err
	}
	buf := bufio.NewWriter(stream)
	t := &Thread{
		w:      w,
		id:     id,
		stream: stream,
		buf:    buf,
		out:    endian.Writer(buf, endian.LittleEndian),
		known:  map[int]uint32{},
	}
	if err := packet.WriteHeader(t.out, uint16(id)); err != nil {
		return nil, err
	}
	w.threads[id] = t
	log.D(ctx, "Capture thread %d started", id)
	return t, nil
}

// FrameEnd advances the global frame counter and reclaims destroyed records.
// With SelfTest set the registry is checked first.
func (w *Writer) FrameEnd(ctx context.Context) error {
	w.state.Lock()
	defer w.state.Unlock()
	frame := w.Frame()
	if w.opts.SelfTest {
		if err := w.Registry.Check(ctx, frame); err != nil {
			return err
		}
	}
	n := w.Registry.Sweep()
	w.frame.Add(1)
	log.D(ctx, "Frame %d ended, %d records reclaimed", frame, n)
	return nil
}

// Close terminates every stream and finishes the trace.
func (w *Writer) Close(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	summary := trace.Summary{Frames: w.Frame()}
	var first error
	for id, t := range w.threads {
		for len(summary.Calls) <= id {
			summary.Calls = append(summary.Calls, 0)
		}
		summary.Calls[id] = t.call
		if err := t.close(); err != nil && first == nil {
			first = errors.Wrapf(err, "Closing thread %d", id)
		}
	}
	if first != nil {
		return first
	}
	return w.sink.Finish(ctx, summary)
}
