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

package replay

import (
	"bufio"
	"context"
	"io"
	"sync/atomic"

	"github.com/andrew-lunarg/lavatube/api"
	"github.com/andrew-lunarg/lavatube/core/data/binary"
	"github.com/andrew-lunarg/lavatube/core/data/endian"
	"github.com/andrew-lunarg/lavatube/core/log"
	"github.com/andrew-lunarg/lavatube/core/math/interval"
	"github.com/andrew-lunarg/lavatube/packet"
	"github.com/andrew-lunarg/lavatube/tracker"
	"github.com/pkg/errors"
)

// State is the position of a replay thread in its packet loop.
type State int32

const (
	AwaitPacket State = iota
	DecodeHeader
	Dispatch
	Blocked
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case AwaitPacket:
		return "AwaitPacket"
	case DecodeHeader:
		return "DecodeHeader"
	case Dispatch:
		return "Dispatch"
	case Blocked:
		return "Blocked"
	case Done:
		return "Done"
	case Failed:
		return "Failed"
	}
	return "Unknown"
}

// Thread replays one stream.
type Thread struct {
	r     *Reader
	id    int
	in    binary.Reader
	call  uint32
	state atomic.Int32
}

func newThread(r *Reader, id int, in io.Reader) *Thread {
	return &Thread{
		r:  r,
		id: id,
		in: endian.Reader(bufio.NewReader(in), endian.LittleEndian),
	}
}

// ID returns the thread's index.
func (t *Thread) ID() int { return t.id }

// Calls returns the number of calls the thread has completed.
func (t *Thread) Calls() uint32 { return t.call }

// State returns the thread's current state.
func (t *Thread) State() State { return State(t.state.Load()) }

func (t *Thread) set(s State) { t.state.Store(int32(s)) }

func (t *Thread) observe(e Event) {
	if f := t.r.opts.Observer; f != nil && t.r.Frame() >= t.r.opts.StartFrame {
		e.Thread, e.Call = t.id, t.call
		f(e)
	}
}

// Run replays the stream until its terminator, a fatal error or the frame
// limit.
func (t *Thread) Run(ctx context.Context) error {
	ctx = log.V{"thread": t.id}.Bind(ctx)
	ctx = log.Enter(ctx, "replay")
	h, err := packet.ReadHeader(t.in)
	if err != nil {
		t.set(Failed)
		return log.Err(ctx, err, "Stream header")
	}
	if int(h.Thread) != t.id {
		t.set(Failed)
		return log.Errf(ctx, packet.ErrFormat, "Stream of thread %d holds thread %d", t.id, h.Thread)
	}
	for {
		done, err := t.Step(ctx)
		switch {
		case err != nil && t.r.Done() && errors.Is(err, context.Canceled):
			t.set(Done)
			return nil
		case err != nil:
			t.set(Failed)
			return err
		case done:
			t.set(Done)
			log.D(ctx, "Stream ended after %d calls", t.call)
			return nil
		}
	}
}

// Step decodes and performs one packet. It returns true once the stream's
// terminator has been read.
func (t *Thread) Step(ctx context.Context) (bool, error) {
	if t.r.Done() {
		return true, nil
	}
	t.set(AwaitPacket)
	ty, err := packet.ReadType(t.in)
	if err != nil {
		return false, log.Errf(ctx, err, "After call %d", t.call)
	}
	t.set(DecodeHeader)
	switch ty {
	case packet.End:
		t.observe(Event{Type: ty})
		return true, nil
	case packet.APICall:
		return false, t.dispatch(ctx)
	case packet.ThreadBarrier:
		targets, err := packet.ReadBarrier(t.in)
		if err != nil {
			return false, err
		}
		t.set(Blocked)
		if err := t.r.Counters.Wait(ctx, t.r.opts.BarrierTimeout, targets...); err != nil {
			return false, log.Errf(ctx, err, "Barrier before call %d", t.call)
		}
		t.observe(Event{Type: ty, Targets: targets})
		return false, nil
	case packet.BufferUpdate, packet.ImageUpdate:
		return false, t.update(ctx, ty)
	}
	return false, log.Errf(ctx, packet.ErrFormat, "Unhandled packet %v", ty)
}

func (t *Thread) dispatch(ctx context.Context) error {
	pc, err := packet.ReadCall(t.in)
	if err != nil {
		return err
	}
	if uint32(pc.Cookie) != t.call {
		return log.Errf(ctx, packet.ErrFormat, "Call %d carries cookie %d", t.call, pc.Cookie)
	}
	h, ok := t.r.Table[pc.ID]
	if !ok {
		return log.Errf(ctx, packet.ErrFormat, "Unknown call id %d", pc.ID)
	}
	t.set(Dispatch)
	cctx := log.V{"call": t.call, "frame": t.r.Frame()}.Bind(ctx)
	c := &Call{Thread: t, ID: pc.ID, Name: h.Name, Args: t.in}
	if err := h.Replay(cctx, c); err != nil {
		return log.Errf(cctx, err, "%s", h.Name)
	}
	if err := t.in.Error(); err != nil {
		return log.Errf(cctx, packet.ErrFormat, "Truncated %s: %v", h.Name, err)
	}
	t.observe(Event{Type: packet.APICall, Name: h.Name})
	t.call++
	t.r.Counters.Advance(t.id)
	if h.FrameEnd {
		return t.r.frameEnd(cctx)
	}
	return nil
}

// update applies an out-of-band content update to a buffer or image.
func (t *Thread) update(ctx context.Context, ty packet.Type) error {
	u, err := packet.ReadUpdate(t.in)
	if err != nil {
		return err
	}
	kind := api.ObjectBuffer
	if ty == packet.ImageUpdate {
		kind = api.ObjectImage
	}
	rec := t.r.Registry.Peek(kind, u.Object)
	if rec == nil || rec.Destroyed() {
		return log.Errf(ctx, packet.ErrFormat, "%v for missing %v %d", ty, kind, u.Object)
	}
	o := rec.Payload.(tracker.Backed).Common()
	ranges := make([]interval.U64Span, len(u.Ranges))
	for i, s := range u.Ranges {
		if s.End > o.Size {
			return log.Errf(ctx, packet.ErrFormat, "%v range %v beyond %v of %d bytes", ty, s, rec.Ref(), o.Size)
		}
		ranges[i] = interval.U64Span{Start: s.Start + o.MemoryOffset, End: s.End + o.MemoryOffset}
	}
	mem, err := t.r.Registry.Lookup(o.Memory)
	if err != nil {
		return log.Errf(ctx, err, "Memory of %v", rec.Ref())
	}
	if err := t.r.WriteMemory(ctx, mem, ranges, u.Data); err != nil {
		return err
	}
	t.observe(Event{Type: ty, Object: u.Object, Bytes: len(u.Data)})
	return nil
}
