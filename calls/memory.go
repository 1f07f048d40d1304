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

	"github.com/andrew-lunarg/lavatube/api"
	"github.com/andrew-lunarg/lavatube/core/math/interval"
	"github.com/andrew-lunarg/lavatube/memory"
	"github.com/andrew-lunarg/lavatube/packet"
	"github.com/andrew-lunarg/lavatube/replay"
	"github.com/andrew-lunarg/lavatube/tracker"
	"github.com/pkg/errors"
)

func (t *Thread) AllocateMemory(ctx context.Context, dev api.Device, info api.MemoryAllocateInfo) (api.DeviceMemory, error) {
	drec, err := t.get(api.ObjectDevice, api.Handle(dev))
	if err != nil {
		return 0, err
	}
	mem, err := t.d.AllocateMemory(ctx, dev, info)
	if err != nil {
		return 0, err
	}
	c := t.begin(IDAllocateMemory)
	c.Use(drec)
	c.Ref(drec)
	c.Args().Uint64(info.AllocationSize)
	c.Args().Uint32(uint32(info.Properties))
	c.Ref(c.Create(api.ObjectDeviceMemory, api.Handle(mem), &tracker.Memory{
		Device:         drec.Ref(),
		AllocationSize: info.AllocationSize,
		Properties:     info.Properties,
	}))
	return mem, c.End(ctx)
}

func replayAllocateMemory(ctx context.Context, c *replay.Call) error {
	drec, dev, err := device(c)
	if err != nil {
		return err
	}
	info := api.MemoryAllocateInfo{
		AllocationSize: c.Args.Uint64(),
		Properties:     api.MemoryPropertyFlags(c.Args.Uint32()),
	}
	index := c.Index()
	if err := decoded(c); err != nil {
		return err
	}
	mem, err := c.Driver().AllocateMemory(ctx, dev, info)
	if err != nil {
		return err
	}
	_, err = c.Create(api.ObjectDeviceMemory, index, api.Handle(mem), &tracker.Memory{
		Device:         drec.Ref(),
		AllocationSize: info.AllocationSize,
		Properties:     info.Properties,
	})
	return err
}

func unmapped(rec *tracker.Record) {
	m := rec.Payload.(*tracker.Memory)
	m.Lock()
	m.Ptr, m.Offset, m.Size = nil, 0, 0
	m.Unlock()
}

func (t *Thread) FreeMemory(ctx context.Context, dev api.Device, mem api.DeviceMemory) error {
	return t.destroy(ctx, IDFreeMemory, api.ObjectDeviceMemory, dev, api.Handle(mem), func() error {
		if err := t.d.FreeMemory(ctx, dev, mem); err != nil {
			return err
		}
		if rec, err := t.get(api.ObjectDeviceMemory, api.Handle(mem)); err == nil {
			unmapped(rec)
		}
		return nil
	})
}

func replayFreeMemory(ctx context.Context, c *replay.Call) error {
	_, dev, err := device(c)
	if err != nil {
		return err
	}
	rec, err := object(c, api.ObjectDeviceMemory)
	if err != nil {
		return err
	}
	if err := c.Driver().FreeMemory(ctx, dev, handle[api.DeviceMemory](rec)); err != nil {
		return err
	}
	unmapped(rec)
	return c.Destroy(rec)
}

// MapMemory hands out the driver's mapping and starts shadowing the
// allocation on first map.
func (t *Thread) MapMemory(ctx context.Context, dev api.Device, mem api.DeviceMemory, offset, size uint64) ([]byte, error) {
	drec, err := t.get(api.ObjectDevice, api.Handle(dev))
	if err != nil {
		return nil, err
	}
	mrec, err := t.get(api.ObjectDeviceMemory, api.Handle(mem))
	if err != nil {
		return nil, err
	}
	ptr, err := t.d.MapMemory(ctx, dev, mem, offset, size)
	if err != nil {
		return nil, err
	}
	c := t.begin(IDMapMemory)
	c.Use(drec)
	c.Mutate(mrec)
	c.Ref(drec)
	c.Ref(mrec)
	c.Args().Uint64(offset)
	c.Args().Uint64(uint64(len(ptr)))
	m := mrec.Payload.(*tracker.Memory)
	m.Lock()
	m.Ptr, m.Offset, m.Size = ptr, offset, uint64(len(ptr))
	if m.Shadow == nil {
		m.Shadow = memory.NewShadow(m.AllocationSize, t.tracer.Writer.Options().BlockSize)
	}
	m.Unlock()
	return ptr, c.End(ctx)
}

func replayMapMemory(ctx context.Context, c *replay.Call) error {
	_, dev, err := device(c)
	if err != nil {
		return err
	}
	mrec, err := object(c, api.ObjectDeviceMemory)
	if err != nil {
		return err
	}
	offset, size := c.Args.Uint64(), c.Args.Uint64()
	if err := decoded(c); err != nil {
		return err
	}
	ptr, err := c.Driver().MapMemory(ctx, dev, handle[api.DeviceMemory](mrec), offset, size)
	if err != nil {
		return err
	}
	m := mrec.Payload.(*tracker.Memory)
	m.Lock()
	m.Ptr, m.Offset, m.Size = ptr, offset, uint64(len(ptr))
	m.Unlock()
	return c.Mutate(mrec)
}

// UnmapMemory records what changed in the mapping before it goes away.
func (t *Thread) UnmapMemory(ctx context.Context, dev api.Device, mem api.DeviceMemory) error {
	drec, err := t.get(api.ObjectDevice, api.Handle(dev))
	if err != nil {
		return err
	}
	mrec, err := t.get(api.ObjectDeviceMemory, api.Handle(mem))
	if err != nil {
		return err
	}
	m := mrec.Payload.(*tracker.Memory)
	c := t.begin(IDUnmapMemory)
	c.Use(drec)
	c.Mutate(mrec)
	c.Ref(drec)
	c.Ref(mrec)
	c.Flush(m, interval.U64Span{Start: 0, End: m.AllocationSize})
	if err := t.d.UnmapMemory(ctx, dev, mem); err != nil {
		c.Fail(err)
	}
	unmapped(mrec)
	return c.End(ctx)
}

func replayUnmapMemory(ctx context.Context, c *replay.Call) error {
	_, dev, err := device(c)
	if err != nil {
		return err
	}
	mrec, err := object(c, api.ObjectDeviceMemory)
	if err != nil {
		return err
	}
	ranges, data, err := packet.ReadRanges(c.Args)
	if err != nil {
		return err
	}
	if err := c.Reader().WriteMemory(ctx, mrec, ranges, data); err != nil {
		return err
	}
	if err := c.Driver().UnmapMemory(ctx, dev, handle[api.DeviceMemory](mrec)); err != nil {
		return err
	}
	unmapped(mrec)
	return c.Mutate(mrec)
}

// FlushMappedMemoryRanges records the changed bytes of each flushed range.
func (t *Thread) FlushMappedMemoryRanges(ctx context.Context, dev api.Device, ranges []api.MappedMemoryRange) error {
	drec, err := t.get(api.ObjectDevice, api.Handle(dev))
	if err != nil {
		return err
	}
	mems := make([]*tracker.Record, len(ranges))
	for i, r := range ranges {
		if mems[i], err = t.get(api.ObjectDeviceMemory, api.Handle(r.Memory)); err != nil {
			return err
		}
	}
	if err := t.d.FlushMappedMemoryRanges(ctx, dev, ranges); err != nil {
		return err
	}
	c := t.begin(IDFlushMappedMemoryRanges)
	c.Use(drec)
	c.Ref(drec)
	c.Args().Uint32(uint32(len(ranges)))
	for i, r := range ranges {
		m := mems[i].Payload.(*tracker.Memory)
		c.Mutate(mems[i])
		c.Ref(mems[i])
		end := r.Offset + r.Size
		if r.Size == api.WholeSize || end < r.Offset {
			end = m.AllocationSize
		}
		c.Flush(m, interval.U64Span{Start: r.Offset, End: end})
	}
	return c.End(ctx)
}

func replayFlushMappedMemoryRanges(ctx context.Context, c *replay.Call) error {
	if _, _, err := device(c); err != nil {
		return err
	}
	for i, n := 0, count(c); i < n; i++ {
		mrec, err := object(c, api.ObjectDeviceMemory)
		if err != nil {
			return err
		}
		ranges, data, err := packet.ReadRanges(c.Args)
		if err != nil {
			return err
		}
		if err := c.Reader().WriteMemory(ctx, mrec, ranges, data); err != nil {
			return errors.Wrapf(err, "Range %d", i)
		}
		if err := c.Mutate(mrec); err != nil {
			return err
		}
	}
	return decoded(c)
}
