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

package capture

import (
	"bytes"
	"context"

	"github.com/andrew-lunarg/lavatube/api"
	"github.com/andrew-lunarg/lavatube/core/data/binary"
	"github.com/andrew-lunarg/lavatube/core/data/endian"
	"github.com/andrew-lunarg/lavatube/core/log"
	"github.com/andrew-lunarg/lavatube/core/math/interval"
	"github.com/andrew-lunarg/lavatube/memory"
	"github.com/andrew-lunarg/lavatube/packet"
	"github.com/andrew-lunarg/lavatube/tracker"
	"github.com/pkg/errors"
)

// Call is one call being recorded. Update packets and barriers gathered while
// the call runs are written ahead of its API_CALL packet by End.
//
// Record stamps, destruction and the changes registered with Later are
// queued and applied in order by End. A call abandoned before End leaves the
// registry as it was and its changed bytes exposed for the next call.
type Call struct {
	t    *Thread
	id   uint16
	deps []tracker.Stamp
	ops  []func()
	args bytes.Buffer
	enc  binary.Writer
	pre  bytes.Buffer
	penc binary.Writer
	err  error
}

func newCall(t *Thread, id uint16) *Call {
	c := &Call{t: t, id: id}
	c.enc = endian.Writer(&c.args, endian.LittleEndian)
	c.penc = endian.Writer(&c.pre, endian.LittleEndian)
	return c
}

// Args returns the encoder for the call's arguments and results.
func (c *Call) Args() binary.Writer { return c.enc }

// Number returns the call's number within its thread.
func (c *Call) Number() uint32 { return c.t.call }

// Fail records err as the call's error, returned by End.
func (c *Call) Fail(err error) {
	if c.err == nil {
		c.err = err
	}
}

// Err returns the first error recorded for the call.
func (c *Call) Err() error { return c.err }

// Later queues f to run when End writes the call.
func (c *Call) Later(f func()) { c.ops = append(c.ops, f) }

// Use marks records read by the call.
func (c *Call) Use(recs ...*tracker.Record) {
	for _, r := range recs {
		if r != nil {
			c.Later(func() { c.deps = append(c.deps, r.Use(c.t.id, c.t.call)...) })
		}
	}
}

// Mutate marks records changed by the call.
func (c *Call) Mutate(recs ...*tracker.Record) {
	for _, r := range recs {
		if r != nil {
			c.Later(func() { c.mutate(r) })
		}
	}
}

func (c *Call) mutate(r *tracker.Record) {
	deps, err := r.Mutate(c.t.id, c.t.call)
	if err != nil {
		c.Fail(err)
		return
	}
	c.deps = append(c.deps, deps...)
}

// Create registers a new object created by the call.
func (c *Call) Create(kind api.ObjectType, handle api.Handle, payload tracker.Payload) *tracker.Record {
	rec := c.t.w.Registry.Create(kind, handle, c.t.w.Frame(), payload)
	c.Mutate(rec)
	return rec
}

// Destroy marks rec destroyed by the call.
func (c *Call) Destroy(rec *tracker.Record) {
	if rec == nil {
		return
	}
	c.Later(func() {
		c.mutate(rec)
		if err := c.t.w.Registry.Destroy(rec.Kind, rec.Index, c.t.w.Frame()); err != nil {
			c.Fail(err)
		}
	})
}

// Ref writes the index of rec, or tracker.NoIndex for nil.
func (c *Call) Ref(rec *tracker.Record) {
	if rec == nil {
		c.enc.Uint32(tracker.NoIndex)
		return
	}
	c.enc.Uint32(rec.Index)
}

// Flush diffs the mapped memory of m over span, relative to the allocation,
// and writes the changed bytes into the call's arguments as a range list.
// m must be mapped.
func (c *Call) Flush(m *tracker.Memory, span interval.U64Span) {
	m.Lock()
	defer m.Unlock()
	if !m.Mapped() {
		c.Fail(errors.Wrap(api.ErrBadState, "Flush of unmapped memory"))
		packet.WriteRanges(c.enc, nil, nil)
		return
	}
	window := interval.U64Span{Start: m.Offset, End: m.Offset + m.Size}
	span = span.Clamp(window)
	m.Shadow.Diff(m.Ptr, m.Offset, span, &m.Exposed)
	ranges, data := c.take(m, span)
	if err := packet.WriteRanges(c.enc, ranges, data); err != nil {
		c.Fail(err)
	}
}

// Sync diffs the ranges of a buffer or image, relative to the object, that
// touched holds and writes the changed bytes as an update packet. Objects
// whose memory is not mapped are skipped.
func (c *Call) Sync(ctx context.Context, obj *tracker.Record, touched *memory.Set) error {
	b, ok := obj.Payload.(tracker.Backed)
	if !ok {
		return errors.Errorf("%v has no memory contents", obj.Ref())
	}
	o := b.Common()
	if !o.Memory.Valid() || !o.Accessible {
		return nil
	}
	mrec, err := c.t.w.Registry.Lookup(o.Memory)
	if err != nil {
		return log.Errf(ctx, err, "Memory of %v", obj.Ref())
	}
	c.Use(obj, mrec)
	m := mrec.Payload.(*tracker.Memory)
	m.Lock()
	defer m.Unlock()
	if !m.Mapped() {
		return nil
	}
	window := interval.U64Span{Start: m.Offset, End: m.Offset + m.Size}
	bound := interval.U64Span{Start: o.MemoryOffset, End: o.MemoryOffset + o.Size}.Clamp(window)
	for _, s := range touched.Spans() {
		s = interval.U64Span{Start: s.Start + o.MemoryOffset, End: s.End + o.MemoryOffset}.Clamp(bound)
		if s.Size() > 0 {
			m.Shadow.Diff(m.Ptr, m.Offset, s, &m.Exposed)
		}
	}
	ranges, data := c.take(m, bound)
	if len(ranges) == 0 {
		return nil
	}
	for i := range ranges {
		ranges[i].Start -= o.MemoryOffset
		ranges[i].End -= o.MemoryOffset
	}
	ty := packet.BufferUpdate
	if obj.Kind == api.ObjectImage {
		ty = packet.ImageUpdate
	}
	u := packet.Update{Device: o.Device.Index, Object: obj.Index, Ranges: ranges, Data: data}
	if err := packet.WriteUpdate(c.penc, ty, u); err != nil {
		return err
	}
	c.Later(func() {
		o.Written += uint64(len(data))
		o.Updates++
	})
	return nil
}

// take returns the exposed bytes of m inside span. They stay exposed until
// End writes the call. m must be locked.
func (c *Call) take(m *tracker.Memory, span interval.U64Span) ([]interval.U64Span, []byte) {
	var ranges []interval.U64Span
	var data []byte
	for _, s := range m.Exposed.Spans() {
		if s = s.Clamp(span); s.Size() > 0 {
			ranges = append(ranges, s)
			data = append(data, m.Shadow.Read(s)...)
		}
	}
	c.Later(func() {
		m.Lock()
		defer m.Unlock()
		for _, r := range ranges {
			m.Exposed.Remove(r.Start, r.End)
		}
	})
	return ranges, data
}

// End writes the call to the thread's stream and advances the thread's call
// counter. It returns the first error recorded for the call.
func (c *Call) End(ctx context.Context) error {
	t := c.t
	t.w.state.RLock()
	for _, op := range c.ops {
		op()
	}
	t.w.state.RUnlock()
	c.ops = nil
	if targets := t.targets(c.deps); len(targets) > 0 {
		packet.WriteBarrier(t.out, targets)
		log.D(ctx, "Thread %d call %d waits for %v", t.id, t.call, targets)
	}
	if err := c.penc.Error(); err != nil {
		c.Fail(err)
	}
	if err := c.enc.Error(); err != nil {
		c.Fail(err)
	}
	t.out.Data(c.pre.Bytes())
	packet.WriteCall(t.out, packet.Call{ID: c.id, Cookie: int32(t.call)})
	t.out.Data(c.args.Bytes())
	if err := t.out.Error(); err != nil {
		c.Fail(err)
	}
	t.call++
	t.w.Counters.Advance(t.id)
	return c.err
}
