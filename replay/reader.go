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

// Package replay decodes trace streams and dispatches their calls.
//
// Every stream is replayed by its own goroutine. Within a stream packets run
// strictly in order; across streams the only ordering is what the recorded
// THREAD_BARRIER packets demand. All streams share one object registry and
// one global frame counter, advanced by frame-end calls.
package replay

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/andrew-lunarg/lavatube/api"
	"github.com/andrew-lunarg/lavatube/barrier"
	"github.com/andrew-lunarg/lavatube/core/event/task"
	"github.com/andrew-lunarg/lavatube/core/log"
	"github.com/andrew-lunarg/lavatube/packet"
	"github.com/andrew-lunarg/lavatube/replay/present"
	"github.com/andrew-lunarg/lavatube/trace"
	"github.com/andrew-lunarg/lavatube/tracker"
	"github.com/pkg/errors"
)

// Handler replays one call id.
type Handler struct {
	Name string
	// FrameEnd marks calls that end a frame.
	FrameEnd bool
	// Replay decodes the call's arguments and performs it.
	Replay func(ctx context.Context, c *Call) error
}

// Table maps call ids to their handlers.
type Table map[uint16]Handler

// Options control a replay.
type Options struct {
	// BarrierTimeout bounds each wait at a THREAD_BARRIER.
	BarrierTimeout time.Duration
	// StartFrame is the first frame reported to the Observer. Earlier
	// frames still replay, as later frames use the objects they create.
	StartFrame int
	// EndFrame stops replay once the global frame counter reaches it.
	// Zero replays every frame.
	EndFrame int
	// SelfTest runs the registry self-test at every frame end.
	SelfTest bool
	// Present configures the virtual presentation of swapchains.
	Present present.Options
	// Observer, if set, is called for every packet once it has been
	// performed. It may be called from several threads at once.
	Observer func(Event)
}

// Event describes one replayed packet.
type Event struct {
	Thread int
	Type   packet.Type
	// Call is the thread's call number at the packet.
	Call uint32
	// Name is the call's name for APICall packets.
	Name string
	// Targets are the waits of a ThreadBarrier.
	Targets []barrier.Target
	// Object and Bytes describe a content update.
	Object uint32
	Bytes  int
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{
		BarrierTimeout: 30 * time.Second,
		Present: present.Options{
			Virtual:      true,
			FenceTimeout: 10 * time.Second,
		},
	}
}

// Reader replays a trace against a driver.
type Reader struct {
	Registry  *tracker.Registry
	Counters  *barrier.Counters
	Driver    api.Driver
	Table     Table
	Presenter *present.Presenter

	opts  Options
	frame atomic.Int32
	stop  context.CancelFunc
	mu    sync.Mutex
	// threads holds the replayed streams, indexed by thread.
	threads []*Thread
}

// New returns a Reader dispatching to driver through table.
func New(driver api.Driver, table Table, opts Options) *Reader {
	if opts.BarrierTimeout == 0 {
		opts.BarrierTimeout = DefaultOptions().BarrierTimeout
	}
	return &Reader{
		Registry:  tracker.New(),
		Counters:  barrier.New(),
		Driver:    driver,
		Table:     table,
		Presenter: present.New(driver, opts.Present),
		opts:      opts,
	}
}

// Options returns the reader's options.
func (r *Reader) Options() Options { return r.opts }

// Frame returns the global frame counter.
func (r *Reader) Frame() int { return int(r.frame.Load()) }

// Done returns true once the frame limit has been reached.
func (r *Reader) Done() bool {
	return r.opts.EndFrame > 0 && r.Frame() >= r.opts.EndFrame
}

// Run replays every stream of src and waits for them all to finish. It
// returns the first error of any thread; the other threads run on until
// their own streams end or fail.
func (r *Reader) Run(ctx context.Context, src trace.Source) error {
	streams, err := src.Streams(ctx)
	if err != nil {
		return err
	}
	defer func() {
		for _, s := range streams {
			if s != nil {
				s.Close()
			}
		}
	}()
	return r.Replay(ctx, streams)
}

// Replay replays the given streams, indexed by thread.
func (r *Reader) Replay(ctx context.Context, streams []io.ReadCloser) error {
	ctx, stop := context.WithCancel(ctx)
	defer stop()
	r.mu.Lock()
	r.stop = stop
	r.threads = make([]*Thread, len(streams))
	handles := []task.Handle{}
	for id, s := range streams {
		if s == nil {
			continue
		}
		t := newThread(r, id, s)
		r.threads[id] = t
		handles = append(handles, task.Go(ctx, t.Run))
	}
	r.mu.Unlock()
	log.I(ctx, "Replaying %d threads on %v", len(handles), r.Driver.Name())
	err := task.Join(context.WithoutCancel(ctx), handles...)
	if err != nil && !(r.Done() && errors.Is(err, context.Canceled)) {
		return err
	}
	log.I(ctx, "Replay finished at frame %d", r.Frame())
	return nil
}

// frameEnd advances the global frame counter after a frame-end call.
func (r *Reader) frameEnd(ctx context.Context) error {
	frame := r.Frame()
	if r.opts.SelfTest {
		if err := r.Registry.Check(ctx, frame); err != nil {
			return err
		}
	}
	r.Registry.Sweep()
	next := r.frame.Add(1)
	log.D(ctx, "Frame %d ended", frame)
	if r.opts.StartFrame > 0 && int(next) == r.opts.StartFrame {
		log.I(ctx, "Reached start frame %d", r.opts.StartFrame)
	}
	if r.opts.EndFrame > 0 && int(next) >= r.opts.EndFrame {
		log.I(ctx, "Reached end frame %d", r.opts.EndFrame)
		r.mu.Lock()
		if r.stop != nil {
			r.stop()
		}
		r.mu.Unlock()
	}
	return nil
}

// Status is a snapshot of a running replay.
type Status struct {
	Frame    int            `json:"frame"`
	Counters []uint32       `json:"counters"`
	States   []string       `json:"states"`
	Live     map[string]int `json:"live"`
}

// Status returns a snapshot of the replay's progress.
func (r *Reader) Status() Status {
	s := Status{
		Frame:    r.Frame(),
		Counters: r.Counters.Snapshot(),
		Live:     map[string]int{},
	}
	r.mu.Lock()
	for _, t := range r.threads {
		if t == nil {
			s.States = append(s.States, "")
			continue
		}
		s.States = append(s.States, t.State().String())
	}
	r.mu.Unlock()
	for _, k := range api.ObjectTypes {
		if n := r.Registry.Live(k); n > 0 {
			s.Live[k.String()] = n
		}
	}
	return s
}

// Device returns the live device record at index and its handle.
func (r *Reader) Device(index uint32) (*tracker.Record, api.Device, error) {
	rec, err := r.Registry.Get(api.ObjectDevice, index)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "Device %d", index)
	}
	return rec, api.Device(rec.Handle), nil
}
