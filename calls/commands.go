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
	"github.com/andrew-lunarg/lavatube/capture"
	"github.com/andrew-lunarg/lavatube/core/log"
	"github.com/andrew-lunarg/lavatube/replay"
	"github.com/andrew-lunarg/lavatube/tracker"
	"github.com/pkg/errors"
)

func (t *Thread) CreateCommandPool(ctx context.Context, dev api.Device, info api.CommandPoolCreateInfo) (api.CommandPool, error) {
	drec, err := t.get(api.ObjectDevice, api.Handle(dev))
	if err != nil {
		return 0, err
	}
	pool, err := t.d.CreateCommandPool(ctx, dev, info)
	if err != nil {
		return 0, err
	}
	c := t.begin(IDCreateCommandPool)
	c.Use(drec)
	c.Ref(drec)
	c.Args().Uint32(info.Flags)
	c.Args().Uint32(info.QueueFamilyIndex)
	c.Ref(c.Create(api.ObjectCommandPool, api.Handle(pool), &tracker.CommandPool{Device: drec.Ref(), Info: info}))
	return pool, c.End(ctx)
}

func replayCreateCommandPool(ctx context.Context, c *replay.Call) error {
	drec, dev, err := device(c)
	if err != nil {
		return err
	}
	info := api.CommandPoolCreateInfo{Flags: c.Args.Uint32(), QueueFamilyIndex: c.Args.Uint32()}
	index := c.Index()
	if err := decoded(c); err != nil {
		return err
	}
	pool, err := c.Driver().CreateCommandPool(ctx, dev, info)
	if err != nil {
		return err
	}
	_, err = c.Create(api.ObjectCommandPool, index, api.Handle(pool), &tracker.CommandPool{Device: drec.Ref(), Info: info})
	return err
}

// DestroyCommandPool also frees the pool's command buffers.
func (t *Thread) DestroyCommandPool(ctx context.Context, dev api.Device, pool api.CommandPool) error {
	if api.Handle(pool).IsNull() {
		return t.d.DestroyCommandPool(ctx, dev, pool)
	}
	drec, err := t.get(api.ObjectDevice, api.Handle(dev))
	if err != nil {
		return err
	}
	prec, err := t.get(api.ObjectCommandPool, api.Handle(pool))
	if err != nil {
		return err
	}
	if err := t.d.DestroyCommandPool(ctx, dev, pool); err != nil {
		return err
	}
	c := t.begin(IDDestroyCommandPool)
	c.Ref(drec)
	c.Ref(prec)
	for _, cb := range owned(t.reg, api.ObjectCommandBuffer, prec) {
		c.Destroy(cb)
	}
	c.Destroy(prec)
	return c.End(ctx)
}

func replayDestroyCommandPool(ctx context.Context, c *replay.Call) error {
	_, dev, err := device(c)
	if err != nil {
		return err
	}
	prec, err := object(c, api.ObjectCommandPool)
	if err != nil {
		return err
	}
	if err := c.Driver().DestroyCommandPool(ctx, dev, handle[api.CommandPool](prec)); err != nil {
		return err
	}
	for _, cb := range owned(c.Registry(), api.ObjectCommandBuffer, prec) {
		if err := c.Destroy(cb); err != nil {
			return err
		}
	}
	return c.Destroy(prec)
}

func commandBuffer(drec, prec *tracker.Record, level api.CommandBufferLevel) *tracker.CommandBuffer {
	return &tracker.CommandBuffer{
		Device:     drec.Ref(),
		Pool:       prec.Ref(),
		PoolHandle: handle[api.CommandPool](prec),
		Level:      level,
		Touched:    tracker.Touched{},
	}
}

func (t *Thread) AllocateCommandBuffers(ctx context.Context, dev api.Device, info api.CommandBufferAllocateInfo) ([]api.CommandBuffer, error) {
	drec, err := t.get(api.ObjectDevice, api.Handle(dev))
	if err != nil {
		return nil, err
	}
	prec, err := t.get(api.ObjectCommandPool, api.Handle(info.CommandPool))
	if err != nil {
		return nil, err
	}
	cbs, err := t.d.AllocateCommandBuffers(ctx, dev, info)
	if err != nil {
		return nil, err
	}
	c := t.begin(IDAllocateCommandBuffers)
	c.Use(drec)
	c.Mutate(prec)
	c.Ref(drec)
	c.Ref(prec)
	c.Args().Uint32(uint32(info.Level))
	c.Args().Uint32(uint32(len(cbs)))
	for _, cb := range cbs {
		c.Ref(c.Create(api.ObjectCommandBuffer, api.Handle(cb), commandBuffer(drec, prec, info.Level)))
	}
	return cbs, c.End(ctx)
}

func replayAllocateCommandBuffers(ctx context.Context, c *replay.Call) error {
	drec, dev, err := device(c)
	if err != nil {
		return err
	}
	prec, err := object(c, api.ObjectCommandPool)
	if err != nil {
		return err
	}
	level := api.CommandBufferLevel(c.Args.Uint32())
	indices := make([]uint32, count(c))
	for i := range indices {
		indices[i] = c.Index()
	}
	if err := decoded(c); err != nil {
		return err
	}
	cbs, err := c.Driver().AllocateCommandBuffers(ctx, dev, api.CommandBufferAllocateInfo{
		CommandPool: handle[api.CommandPool](prec),
		Level:       level,
		Count:       uint32(len(indices)),
	})
	if err != nil {
		return err
	}
	for i, cb := range cbs {
		if _, err := c.Create(api.ObjectCommandBuffer, indices[i], api.Handle(cb), commandBuffer(drec, prec, level)); err != nil {
			return err
		}
	}
	return c.Mutate(prec)
}

func (t *Thread) FreeCommandBuffers(ctx context.Context, dev api.Device, pool api.CommandPool, cbs []api.CommandBuffer) error {
	drec, err := t.get(api.ObjectDevice, api.Handle(dev))
	if err != nil {
		return err
	}
	prec, err := t.get(api.ObjectCommandPool, api.Handle(pool))
	if err != nil {
		return err
	}
	live := []api.CommandBuffer{}
	for _, cb := range cbs {
		if !api.Handle(cb).IsNull() {
			live = append(live, cb)
		}
	}
	recs, err := all(t, api.ObjectCommandBuffer, live)
	if err != nil {
		return err
	}
	if err := t.d.FreeCommandBuffers(ctx, dev, pool, cbs); err != nil {
		return err
	}
	c := t.begin(IDFreeCommandBuffers)
	c.Use(drec)
	c.Mutate(prec)
	c.Ref(drec)
	c.Ref(prec)
	refs(c, recs)
	for _, rec := range recs {
		c.Destroy(rec)
	}
	return c.End(ctx)
}

func replayFreeCommandBuffers(ctx context.Context, c *replay.Call) error {
	_, dev, err := device(c)
	if err != nil {
		return err
	}
	prec, err := object(c, api.ObjectCommandPool)
	if err != nil {
		return err
	}
	recs, err := getAll(c, api.ObjectCommandBuffer)
	if err != nil {
		return err
	}
	if err := c.Driver().FreeCommandBuffers(ctx, dev, handle[api.CommandPool](prec), handles[api.CommandBuffer](recs)); err != nil {
		return err
	}
	for _, rec := range recs {
		if err := c.Destroy(rec); err != nil {
			return err
		}
	}
	return c.Mutate(prec)
}

// cmd is a call being recorded on a command buffer.
type cmd struct {
	*capture.Call
	t       *Thread
	payload *tracker.CommandBuffer
}

// object resolves an object the command reads and writes its index.
func (c *cmd) object(kind api.ObjectType, h api.Handle) (*tracker.Record, error) {
	rec, err := c.t.get(kind, h)
	if err != nil {
		return nil, err
	}
	c.Use(rec)
	c.Ref(rec)
	return rec, nil
}

// recordCmd records a call made on a command buffer. f adds the call's
// arguments after the command buffer and updates its payload.
func (t *Thread) recordCmd(ctx context.Context, id uint16, cb api.CommandBuffer, forward func() error, f func(c *cmd) error) error {
	cbrec, err := t.get(api.ObjectCommandBuffer, api.Handle(cb))
	if err != nil {
		return err
	}
	c := &cmd{Call: t.begin(id), t: t, payload: cbrec.Payload.(*tracker.CommandBuffer)}
	c.Mutate(cbrec)
	c.Ref(cbrec)
	if f != nil {
		if err := f(c); err != nil {
			return err
		}
	}
	if err := forward(); err != nil {
		return err
	}
	return c.End(ctx)
}

func (t *Thread) BeginCommandBuffer(ctx context.Context, cb api.CommandBuffer) error {
	return t.recordCmd(ctx, IDBeginCommandBuffer, cb, func() error {
		return t.d.BeginCommandBuffer(ctx, cb)
	}, func(c *cmd) error {
		c.Later(func() { c.payload.Touched = tracker.Touched{} })
		return nil
	})
}

func (t *Thread) EndCommandBuffer(ctx context.Context, cb api.CommandBuffer) error {
	return t.recordCmd(ctx, IDEndCommandBuffer, cb, func() error {
		return t.d.EndCommandBuffer(ctx, cb)
	}, nil)
}

// replayCmd decodes the command buffer of a call made on one.
func replayCmd(c *replay.Call) (*tracker.Record, api.CommandBuffer, error) {
	rec, err := object(c, api.ObjectCommandBuffer)
	if err != nil {
		return nil, 0, err
	}
	return rec, handle[api.CommandBuffer](rec), c.Mutate(rec)
}

func replayBeginCommandBuffer(ctx context.Context, c *replay.Call) error {
	rec, cb, err := replayCmd(c)
	if err != nil {
		return err
	}
	rec.Payload.(*tracker.CommandBuffer).Touched = tracker.Touched{}
	return c.Driver().BeginCommandBuffer(ctx, cb)
}

func replayEndCommandBuffer(ctx context.Context, c *replay.Call) error {
	_, cb, err := replayCmd(c)
	if err != nil {
		return err
	}
	return c.Driver().EndCommandBuffer(ctx, cb)
}

func (t *Thread) CmdCopyBuffer(ctx context.Context, cb api.CommandBuffer, src, dst api.Buffer, regions []api.BufferCopy) error {
	return t.recordCmd(ctx, IDCmdCopyBuffer, cb, func() error {
		return t.d.CmdCopyBuffer(ctx, cb, src, dst, regions)
	}, func(c *cmd) error {
		srec, err := c.object(api.ObjectBuffer, api.Handle(src))
		if err != nil {
			return err
		}
		if _, err := c.object(api.ObjectBuffer, api.Handle(dst)); err != nil {
			return err
		}
		c.Args().Uint32(uint32(len(regions)))
		o := srec.Payload.(*tracker.Buffer).Common()
		for _, r := range regions {
			c.Args().Uint64(r.SrcOffset)
			c.Args().Uint64(r.DstOffset)
			c.Args().Uint64(r.Size)
		}
		c.Later(func() {
			for _, r := range regions {
				c.payload.Touched.Touch(srec.Ref(), o, r.SrcOffset, r.Size)
			}
		})
		return nil
	})
}

func replayCmdCopyBuffer(ctx context.Context, c *replay.Call) error {
	_, cb, err := replayCmd(c)
	if err != nil {
		return err
	}
	src, err := object(c, api.ObjectBuffer)
	if err != nil {
		return err
	}
	dst, err := object(c, api.ObjectBuffer)
	if err != nil {
		return err
	}
	regions := make([]api.BufferCopy, count(c))
	for i := range regions {
		regions[i] = api.BufferCopy{SrcOffset: c.Args.Uint64(), DstOffset: c.Args.Uint64(), Size: c.Args.Uint64()}
	}
	if err := decoded(c); err != nil {
		return err
	}
	return c.Driver().CmdCopyBuffer(ctx, cb, handle[api.Buffer](src), handle[api.Buffer](dst), regions)
}

func (t *Thread) CmdUpdateBuffer(ctx context.Context, cb api.CommandBuffer, dst api.Buffer, offset uint64, data []byte) error {
	return t.recordCmd(ctx, IDCmdUpdateBuffer, cb, func() error {
		return t.d.CmdUpdateBuffer(ctx, cb, dst, offset, data)
	}, func(c *cmd) error {
		if _, err := c.object(api.ObjectBuffer, api.Handle(dst)); err != nil {
			return err
		}
		if len(data) > maxItems {
			return errors.Errorf("Update of %d bytes", len(data))
		}
		c.Args().Uint64(offset)
		c.Args().Uint32(uint32(len(data)))
		c.Args().Data(data)
		return nil
	})
}

func replayCmdUpdateBuffer(ctx context.Context, c *replay.Call) error {
	_, cb, err := replayCmd(c)
	if err != nil {
		return err
	}
	dst, err := object(c, api.ObjectBuffer)
	if err != nil {
		return err
	}
	offset := c.Args.Uint64()
	data := make([]byte, count(c))
	c.Args.Data(data)
	if err := decoded(c); err != nil {
		return err
	}
	return c.Driver().CmdUpdateBuffer(ctx, cb, handle[api.Buffer](dst), offset, data)
}

func (t *Thread) CmdCopyImage(ctx context.Context, cb api.CommandBuffer, src, dst api.Image, regions []api.ImageCopy) error {
	return t.recordCmd(ctx, IDCmdCopyImage, cb, func() error {
		return t.d.CmdCopyImage(ctx, cb, src, dst, regions)
	}, func(c *cmd) error {
		srec, err := c.object(api.ObjectImage, api.Handle(src))
		if err != nil {
			return err
		}
		if _, err := c.object(api.ObjectImage, api.Handle(dst)); err != nil {
			return err
		}
		c.Args().Uint32(uint32(len(regions)))
		for _, r := range regions {
			for _, v := range []int32{r.SrcOffset.X, r.SrcOffset.Y, r.SrcOffset.Z, r.DstOffset.X, r.DstOffset.Y, r.DstOffset.Z} {
				c.Args().Int32(v)
			}
			c.Args().Uint32(r.Extent.Width)
			c.Args().Uint32(r.Extent.Height)
			c.Args().Uint32(r.Extent.Depth)
		}
		c.Later(func() {
			c.payload.Touched.Touch(srec.Ref(), srec.Payload.(*tracker.Image).Common(), 0, api.WholeSize)
		})
		return nil
	})
}

func replayCmdCopyImage(ctx context.Context, c *replay.Call) error {
	_, cb, err := replayCmd(c)
	if err != nil {
		return err
	}
	src, err := object(c, api.ObjectImage)
	if err != nil {
		return err
	}
	dst, err := object(c, api.ObjectImage)
	if err != nil {
		return err
	}
	regions := make([]api.ImageCopy, count(c))
	for i := range regions {
		regions[i] = api.ImageCopy{
			SrcOffset: api.Offset3D{X: c.Args.Int32(), Y: c.Args.Int32(), Z: c.Args.Int32()},
			DstOffset: api.Offset3D{X: c.Args.Int32(), Y: c.Args.Int32(), Z: c.Args.Int32()},
			Extent:    api.Extent3D{Width: c.Args.Uint32(), Height: c.Args.Uint32(), Depth: c.Args.Uint32()},
		}
	}
	if err := decoded(c); err != nil {
		return err
	}
	return c.Driver().CmdCopyImage(ctx, cb, handle[api.Image](src), handle[api.Image](dst), regions)
}

// CmdBindDescriptorSets makes the ranges the sets expose part of the command
// buffer's.
func (t *Thread) CmdBindDescriptorSets(ctx context.Context, cb api.CommandBuffer, sets []api.DescriptorSet) error {
	return t.recordCmd(ctx, IDCmdBindDescriptorSets, cb, func() error {
		return t.d.CmdBindDescriptorSets(ctx, cb, sets)
	}, func(c *cmd) error {
		recs, err := all(t, api.ObjectDescriptorSet, sets)
		if err != nil {
			return err
		}
		c.Use(recs...)
		refs(c.Call, recs)
		c.Later(func() {
			for _, rec := range recs {
				c.payload.Touched.Merge(rec.Payload.(*tracker.DescriptorSet).Touched)
			}
		})
		return nil
	})
}

func replayCmdBindDescriptorSets(ctx context.Context, c *replay.Call) error {
	_, cb, err := replayCmd(c)
	if err != nil {
		return err
	}
	recs, err := getAll(c, api.ObjectDescriptorSet)
	if err != nil {
		return err
	}
	return c.Driver().CmdBindDescriptorSets(ctx, cb, handles[api.DescriptorSet](recs))
}

func (t *Thread) CmdBindPipeline(ctx context.Context, cb api.CommandBuffer, bind api.PipelineBindPoint, p api.Pipeline) error {
	return t.recordCmd(ctx, IDCmdBindPipeline, cb, func() error {
		return t.d.CmdBindPipeline(ctx, cb, bind, p)
	}, func(c *cmd) error {
		c.Args().Uint32(uint32(bind))
		_, err := c.object(api.ObjectPipeline, api.Handle(p))
		return err
	})
}

func replayCmdBindPipeline(ctx context.Context, c *replay.Call) error {
	_, cb, err := replayCmd(c)
	if err != nil {
		return err
	}
	bind := api.PipelineBindPoint(c.Args.Uint32())
	rec, err := object(c, api.ObjectPipeline)
	if err != nil {
		return err
	}
	if err := decoded(c); err != nil {
		return err
	}
	return c.Driver().CmdBindPipeline(ctx, cb, bind, handle[api.Pipeline](rec))
}

// QueueSubmit writes out the contents the submitted command buffers expose
// before the queue can read them.
func (t *Thread) QueueSubmit(ctx context.Context, q api.Queue, submits []api.SubmitInfo, fence api.Fence) error {
	qrec, err := t.get(api.ObjectQueue, api.Handle(q))
	if err != nil {
		return err
	}
	frec, err := t.opt(api.ObjectFence, api.Handle(fence))
	if err != nil {
		return err
	}
	type submit struct{ waits, cbs, signals []*tracker.Record }
	recs := make([]submit, len(submits))
	for i, s := range submits {
		if recs[i].waits, err = all(t, api.ObjectSemaphore, s.WaitSemaphores); err != nil {
			return err
		}
		if recs[i].cbs, err = all(t, api.ObjectCommandBuffer, s.CommandBuffers); err != nil {
			return err
		}
		if recs[i].signals, err = all(t, api.ObjectSemaphore, s.SignalSemaphores); err != nil {
			return err
		}
	}
	c := t.begin(IDQueueSubmit)
	touched := tracker.Touched{}
	for _, s := range recs {
		for _, cb := range s.cbs {
			touched.Merge(cb.Payload.(*tracker.CommandBuffer).Touched)
		}
	}
	objs := make([]*tracker.Record, 0, len(touched))
	for _, ref := range touched.Refs() {
		obj, err := t.reg.Lookup(ref)
		if err != nil {
			return log.Errf(ctx, err, "Submitted %v", ref)
		}
		objs = append(objs, obj)
	}
	for _, obj := range objs {
		if err := c.Sync(ctx, obj, touched[obj.Ref()]); err != nil {
			return err
		}
	}
	if err := t.d.QueueSubmit(ctx, q, submits, fence); err != nil {
		c.Fail(err)
	}
	c.Mutate(qrec, frec)
	c.Ref(qrec)
	c.Args().Uint32(uint32(len(recs)))
	for _, s := range recs {
		c.Mutate(s.waits...)
		c.Use(s.cbs...)
		c.Mutate(s.signals...)
		refs(c, s.waits)
		refs(c, s.cbs)
		refs(c, s.signals)
	}
	c.Ref(frec)
	if frec != nil {
		frame := t.frame()
		c.Later(func() { frec.Payload.(*tracker.Fence).Frame = frame })
	}
	return c.End(ctx)
}

func replayQueueSubmit(ctx context.Context, c *replay.Call) error {
	qrec, err := object(c, api.ObjectQueue)
	if err != nil {
		return err
	}
	submits := make([]api.SubmitInfo, count(c))
	touched := []*tracker.Record{qrec}
	for i := range submits {
		waits, err := getAll(c, api.ObjectSemaphore)
		if err != nil {
			return err
		}
		cbs, err := getAll(c, api.ObjectCommandBuffer)
		if err != nil {
			return err
		}
		signals, err := getAll(c, api.ObjectSemaphore)
		if err != nil {
			return err
		}
		submits[i] = api.SubmitInfo{
			WaitSemaphores:   handles[api.Semaphore](waits),
			CommandBuffers:   handles[api.CommandBuffer](cbs),
			SignalSemaphores: handles[api.Semaphore](signals),
		}
		touched = append(append(touched, waits...), signals...)
	}
	frec, err := c.Get(api.ObjectFence)
	if err != nil {
		return err
	}
	if err := decoded(c); err != nil {
		return err
	}
	if err := c.Driver().QueueSubmit(ctx, handle[api.Queue](qrec), submits, handle[api.Fence](frec)); err != nil {
		return err
	}
	if frec != nil {
		frec.Payload.(*tracker.Fence).Frame = c.Frame()
		touched = append(touched, frec)
	}
	return c.Mutate(touched...)
}
