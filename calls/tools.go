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

package calls

import (
	"context"
	"hash/crc32"

	"github.com/andrew-lunarg/lavatube/api"
	"github.com/andrew-lunarg/lavatube/capture"
	"github.com/andrew-lunarg/lavatube/core/fault"
	"github.com/andrew-lunarg/lavatube/core/log"
	"github.com/andrew-lunarg/lavatube/core/math/interval"
	"github.com/andrew-lunarg/lavatube/memory"
	"github.com/andrew-lunarg/lavatube/replay"
	"github.com/andrew-lunarg/lavatube/tracker"
	"github.com/pkg/errors"
)

// ErrContents is returned when replayed contents differ from those captured.
const ErrContents = fault.Const("Contents differ from capture")

// FrameEnd marks the end of a frame for applications that do not present.
func (t *Thread) FrameEnd(ctx context.Context) error {
	c := t.begin(IDFrameEnd)
	if err := c.End(ctx); err != nil {
		return err
	}
	return t.tracer.Writer.FrameEnd(ctx)
}

func replayFrameEnd(ctx context.Context, c *replay.Call) error { return nil }

// SyncBuffer writes the current contents of buf into the trace.
func (t *Thread) SyncBuffer(ctx context.Context, dev api.Device, buf api.Buffer) error {
	return t.sync(ctx, IDSyncBuffer, api.ObjectBuffer, dev, api.Handle(buf))
}

// SyncImage writes the current contents of img into the trace.
func (t *Thread) SyncImage(ctx context.Context, dev api.Device, img api.Image) error {
	return t.sync(ctx, IDSyncImage, api.ObjectImage, dev, api.Handle(img))
}

func (t *Thread) sync(ctx context.Context, id uint16, kind api.ObjectType, dev api.Device, h api.Handle) error {
	drec, err := t.get(api.ObjectDevice, api.Handle(dev))
	if err != nil {
		return err
	}
	rec, err := t.get(kind, h)
	if err != nil {
		return err
	}
	c := t.begin(id)
	c.Use(drec)
	c.Ref(drec)
	c.Ref(rec)
	if err := t.syncObject(ctx, c, dev, rec, nil); err != nil {
		c.Fail(err)
	}
	return c.End(ctx)
}

// syncObject diffs the whole of rec, mapping its memory for the duration if
// the application has not. If set, read is called with the memory still
// mapped and locked once the diff is done.
func (t *Thread) syncObject(ctx context.Context, c *capture.Call, dev api.Device, rec *tracker.Record, read func(m *tracker.Memory, o *tracker.Object)) error {
	o := rec.Payload.(tracker.Backed).Common()
	if !o.Memory.Valid() || !o.Accessible {
		log.D(ctx, "%v has no host visible memory to sync", rec.Ref())
		return nil
	}
	mrec, err := t.reg.Lookup(o.Memory)
	if err != nil {
		return err
	}
	m := mrec.Payload.(*tracker.Memory)
	m.Lock()
	temporary := !m.Mapped()
	if temporary {
		ptr, err := t.d.MapMemory(ctx, dev, api.DeviceMemory(mrec.Handle), 0, api.WholeSize)
		if err != nil {
			m.Unlock()
			return err
		}
		m.Ptr, m.Offset, m.Size = ptr, 0, uint64(len(ptr))
		if m.Shadow == nil {
			m.Shadow = memory.NewShadow(m.AllocationSize, t.tracer.Writer.Options().BlockSize)
		}
	}
	m.Unlock()
	whole := &memory.Set{}
	whole.AddOS(0, o.Size)
	err = c.Sync(ctx, rec, whole)
	if err == nil && read != nil {
		m.Lock()
		read(m, o)
		m.Unlock()
	}
	if temporary {
		if uerr := t.d.UnmapMemory(ctx, dev, api.DeviceMemory(mrec.Handle)); uerr != nil && err == nil {
			err = uerr
		}
		unmapped(mrec)
	}
	return err
}

// replaySync has nothing to do: the update packet ahead of the call has
// already been applied.
func replaySync(kind api.ObjectType) func(context.Context, *replay.Call) error {
	return func(ctx context.Context, c *replay.Call) error {
		if _, _, err := device(c); err != nil {
			return err
		}
		_, err := object(c, kind)
		return err
	}
}

// AssertBuffer writes the contents of buf into the trace along with their
// checksum. Replay fails with ErrContents if the replayed buffer holds
// anything else. Buffers without host visible memory are not checked.
func (t *Thread) AssertBuffer(ctx context.Context, dev api.Device, buf api.Buffer) error {
	drec, err := t.get(api.ObjectDevice, api.Handle(dev))
	if err != nil {
		return err
	}
	rec, err := t.get(api.ObjectBuffer, api.Handle(buf))
	if err != nil {
		return err
	}
	c := t.begin(IDAssertBuffer)
	c.Use(drec)
	c.Ref(drec)
	c.Ref(rec)
	checked, sum := false, uint32(0)
	err = t.syncObject(ctx, c, dev, rec, func(m *tracker.Memory, o *tracker.Object) {
		checked, sum = true, crc32.ChecksumIEEE(m.Shadow.Read(extent(o)))
	})
	if err != nil {
		c.Fail(err)
	}
	c.Args().Bool(checked)
	c.Args().Uint32(sum)
	return c.End(ctx)
}

// extent returns the bytes of the allocation holding o.
func extent(o *tracker.Object) interval.U64Span {
	return interval.U64Span{Start: o.MemoryOffset, End: o.MemoryOffset + o.Size}
}

func replayAssertBuffer(ctx context.Context, c *replay.Call) error {
	if _, _, err := device(c); err != nil {
		return err
	}
	rec, err := object(c, api.ObjectBuffer)
	if err != nil {
		return err
	}
	checked, want := c.Args.Bool(), c.Args.Uint32()
	if err := decoded(c); err != nil {
		return err
	}
	if !checked {
		return nil
	}
	o := rec.Payload.(*tracker.Buffer).Common()
	mem, err := c.Registry().Lookup(o.Memory)
	if err != nil {
		return errors.Wrapf(err, "Memory of %v", rec.Ref())
	}
	data, err := c.Reader().ReadMemory(ctx, mem, extent(o))
	if err != nil {
		return err
	}
	if got := crc32.ChecksumIEEE(data); got != want {
		return log.Errf(ctx, ErrContents, "Buffer %d checksum %#x, captured %#x", rec.Index, got, want)
	}
	log.D(ctx, "Buffer %d matches its captured checksum", rec.Index)
	return nil
}

// SetObjectName attaches a debug name to an object. Unknown objects are
// reported and otherwise ignored.
func (t *Thread) SetObjectName(ctx context.Context, kind api.ObjectType, h api.Handle, name string) error {
	rec, err := t.get(kind, h)
	if err != nil {
		log.W(ctx, "Naming %v %v: %v", kind, h, err)
		return nil
	}
	if err := t.reg.SetName(kind, rec.Index, name); err != nil {
		return err
	}
	c := t.begin(IDSetObjectName)
	c.Use(rec)
	c.Args().Uint32(uint32(kind))
	c.Ref(rec)
	c.Args().String(name)
	return c.End(ctx)
}

func replaySetObjectName(ctx context.Context, c *replay.Call) error {
	kind := api.ObjectType(c.Args.Uint32())
	index := c.Index()
	name := c.Args.String()
	if err := decoded(c); err != nil {
		return err
	}
	if err := c.Registry().SetName(kind, index, name); err != nil {
		log.W(ctx, "Naming %v %d %q: %v", kind, index, name, err)
	}
	return nil
}
