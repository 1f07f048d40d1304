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

package calls_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/andrew-lunarg/lavatube/api"
	"github.com/andrew-lunarg/lavatube/api/soft"
	"github.com/andrew-lunarg/lavatube/barrier"
	"github.com/andrew-lunarg/lavatube/calls"
	"github.com/andrew-lunarg/lavatube/capture"
	"github.com/andrew-lunarg/lavatube/core/data/endian"
	"github.com/andrew-lunarg/lavatube/core/log"
	"github.com/andrew-lunarg/lavatube/core/math/interval"
	"github.com/andrew-lunarg/lavatube/packet"
	"github.com/andrew-lunarg/lavatube/replay"
	"github.com/andrew-lunarg/lavatube/trace"
	"github.com/andrew-lunarg/lavatube/tracker"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var deviceInfo = api.DeviceCreateInfo{
	QueueFamilies: []api.QueueFamilyInfo{{Flags: api.QueueGraphics | api.QueueTransfer, Count: 1}},
}

const hostMemory = api.MemoryPropertyHostVisible | api.MemoryPropertyHostCoherent

type app struct {
	store  *trace.Memory
	tracer *calls.Tracer
}

func newApp(t *testing.T) (context.Context, *app) {
	ctx := log.Testing(t)
	store := trace.NewMemory(t.Name())
	w := capture.New(store, capture.Options{SelfTest: true})
	return ctx, &app{store: store, tracer: calls.NewTracer(w, soft.New())}
}

func (a *app) thread(ctx context.Context, t *testing.T, id int) *calls.Thread {
	th, err := a.tracer.Thread(ctx, id)
	require.NoError(t, err)
	return th
}

// index returns the registry index the capture gave an object.
func (a *app) index(t *testing.T, kind api.ObjectType, h api.Handle) uint32 {
	rec, err := a.tracer.Writer.Registry.Resolve(kind, h)
	require.NoError(t, err)
	return rec.Index
}

func (a *app) replay(ctx context.Context, t *testing.T, opts replay.Options) (*replay.Reader, *soft.Driver, error) {
	require.NoError(t, a.tracer.Close(ctx))
	d := soft.New()
	r := replay.New(d, calls.Table(), opts)
	return r, d, r.Run(ctx, a.store)
}

func options() replay.Options {
	opts := replay.DefaultOptions()
	opts.SelfTest = true
	opts.BarrierTimeout = 5 * time.Second
	opts.Present.FenceTimeout = 5 * time.Second
	return opts
}

func device(ctx context.Context, t *testing.T, th *calls.Thread) (api.Device, api.Queue) {
	dev, err := th.CreateDevice(ctx, deviceInfo)
	require.NoError(t, err)
	q, err := th.GetDeviceQueue(ctx, dev, 0, 0)
	require.NoError(t, err)
	return dev, q
}

func buffer(ctx context.Context, th *calls.Thread, dev api.Device, size uint64, props api.MemoryPropertyFlags) (api.Buffer, api.DeviceMemory, error) {
	buf, err := th.CreateBuffer(ctx, dev, api.BufferCreateInfo{
		Size:  size,
		Usage: api.BufferUsageTransferSrc | api.BufferUsageTransferDst,
	})
	if err != nil {
		return 0, 0, err
	}
	req, err := th.GetBufferMemoryRequirements(ctx, dev, buf)
	if err != nil {
		return 0, 0, err
	}
	mem, err := th.AllocateMemory(ctx, dev, api.MemoryAllocateInfo{AllocationSize: req.Size, Properties: props})
	if err != nil {
		return 0, 0, err
	}
	return buf, mem, th.BindBufferMemory(ctx, dev, buf, mem, 0)
}

func pattern(n int, seed byte) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(i%251) + seed + 1
	}
	return out
}

func TestBufferRoundTrip(t *testing.T) {
	const size = 1099
	ctx, a := newApp(t)
	th := a.thread(ctx, t, 0)
	dev, q := device(ctx, t, th)
	src, srcMem, err := buffer(ctx, th, dev, size, hostMemory)
	require.NoError(t, err)
	dst, _, err := buffer(ctx, th, dev, size, api.MemoryPropertyDeviceLocal)
	require.NoError(t, err)

	ptr, err := th.MapMemory(ctx, dev, srcMem, 0, api.WholeSize)
	require.NoError(t, err)
	want := pattern(size, 0)
	copy(ptr, want)

	pool, err := th.CreateCommandPool(ctx, dev, api.CommandPoolCreateInfo{})
	require.NoError(t, err)
	cbs, err := th.AllocateCommandBuffers(ctx, dev, api.CommandBufferAllocateInfo{CommandPool: pool, Count: 1})
	require.NoError(t, err)
	require.NoError(t, th.BeginCommandBuffer(ctx, cbs[0]))
	require.NoError(t, th.CmdCopyBuffer(ctx, cbs[0], src, dst, []api.BufferCopy{{Size: size}}))
	require.NoError(t, th.EndCommandBuffer(ctx, cbs[0]))
	fence, err := th.CreateFence(ctx, dev, api.FenceCreateInfo{})
	require.NoError(t, err)
	require.NoError(t, th.QueueSubmit(ctx, q, []api.SubmitInfo{{CommandBuffers: cbs}}, fence))
	require.NoError(t, th.WaitForFences(ctx, dev, []api.Fence{fence}, true, time.Second))
	require.NoError(t, th.UnmapMemory(ctx, dev, srcMem))
	require.NoError(t, th.FrameEnd(ctx))

	o, _, err := tracker.ResolveAs[*tracker.Buffer](a.tracer.Writer.Registry, api.ObjectBuffer, api.Handle(src))
	require.NoError(t, err)
	assert.Equal(t, uint32(1), o.Updates)
	assert.Equal(t, uint64(size), o.Written)
	dstIndex := a.index(t, api.ObjectBuffer, api.Handle(dst))

	r, d, err := a.replay(ctx, t, options())
	require.NoError(t, err)
	assert.Equal(t, 1, r.Frame())
	rec, err := r.Registry.Get(api.ObjectBuffer, dstIndex)
	require.NoError(t, err)
	got, err := d.BufferData(api.Buffer(rec.Handle))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestUnmapCarriesContents(t *testing.T) {
	const size = 300
	ctx, a := newApp(t)
	th := a.thread(ctx, t, 0)
	dev, _ := device(ctx, t, th)
	buf, mem, err := buffer(ctx, th, dev, size, hostMemory)
	require.NoError(t, err)
	ptr, err := th.MapMemory(ctx, dev, mem, 0, api.WholeSize)
	require.NoError(t, err)
	want := make([]byte, size)
	copy(ptr[40:60], pattern(20, 9))
	copy(want[40:60], pattern(20, 9))
	require.NoError(t, th.UnmapMemory(ctx, dev, mem))
	require.NoError(t, th.SetObjectName(ctx, api.ObjectBuffer, api.Handle(buf), "vertices"))
	index := a.index(t, api.ObjectBuffer, api.Handle(buf))

	r, d, err := a.replay(ctx, t, options())
	require.NoError(t, err)
	rec, err := r.Registry.Get(api.ObjectBuffer, index)
	require.NoError(t, err)
	assert.Equal(t, "vertices", rec.Name)
	got, err := d.BufferData(api.Buffer(rec.Handle))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSyncBuffer(t *testing.T) {
	const size = 128
	ctx, a := newApp(t)
	th := a.thread(ctx, t, 0)
	dev, _ := device(ctx, t, th)
	buf, mem, err := buffer(ctx, th, dev, size, hostMemory)
	require.NoError(t, err)
	ptr, err := th.MapMemory(ctx, dev, mem, 0, api.WholeSize)
	require.NoError(t, err)
	want := pattern(size, 3)
	copy(ptr, want)
	require.NoError(t, th.SyncBuffer(ctx, dev, buf))
	// Nothing is left to write at unmap.
	require.NoError(t, th.UnmapMemory(ctx, dev, mem))
	require.NoError(t, th.SyncBuffer(ctx, dev, buf))
	o, _, err := tracker.ResolveAs[*tracker.Buffer](a.tracer.Writer.Registry, api.ObjectBuffer, api.Handle(buf))
	require.NoError(t, err)
	assert.Equal(t, uint32(1), o.Updates)
	index := a.index(t, api.ObjectBuffer, api.Handle(buf))

	r, d, err := a.replay(ctx, t, options())
	require.NoError(t, err)
	rec, err := r.Registry.Get(api.ObjectBuffer, index)
	require.NoError(t, err)
	got, err := d.BufferData(api.Buffer(rec.Handle))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestFlushAtMapOffset(t *testing.T) {
	const size = 256
	ctx, a := newApp(t)
	th := a.thread(ctx, t, 0)
	dev, _ := device(ctx, t, th)
	buf, mem, err := buffer(ctx, th, dev, size, hostMemory)
	require.NoError(t, err)
	ptr, err := th.MapMemory(ctx, dev, mem, 64, api.WholeSize)
	require.NoError(t, err)
	want := make([]byte, size)
	copy(ptr[100-64:150-64], pattern(50, 4))
	copy(want[100:150], pattern(50, 4))
	require.NoError(t, th.FlushMappedMemoryRanges(ctx, dev, []api.MappedMemoryRange{
		{Memory: mem, Offset: 64, Size: api.WholeSize},
	}))
	index := a.index(t, api.ObjectBuffer, api.Handle(buf))

	// The memory stays mapped: the flush alone carries the bytes.
	r, d, err := a.replay(ctx, t, options())
	require.NoError(t, err)
	rec, err := r.Registry.Get(api.ObjectBuffer, index)
	require.NoError(t, err)
	got, err := d.BufferData(api.Buffer(rec.Handle))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSyncImage(t *testing.T) {
	ctx, a := newApp(t)
	th := a.thread(ctx, t, 0)
	dev, _ := device(ctx, t, th)
	img, err := th.CreateImage(ctx, dev, api.ImageCreateInfo{
		ImageType:   api.ImageType2D,
		Format:      api.FormatB8G8R8A8Unorm,
		Extent:      api.Extent3D{Width: 4, Height: 4, Depth: 1},
		MipLevels:   1,
		ArrayLayers: 1,
		Samples:     1,
		Tiling:      api.ImageTilingLinear,
		Usage:       api.ImageUsageTransferSrc,
	})
	require.NoError(t, err)
	req, err := th.GetImageMemoryRequirements(ctx, dev, img)
	require.NoError(t, err)
	mem, err := th.AllocateMemory(ctx, dev, api.MemoryAllocateInfo{AllocationSize: req.Size, Properties: hostMemory})
	require.NoError(t, err)
	require.NoError(t, th.BindImageMemory(ctx, dev, img, mem, 0))
	ptr, err := th.MapMemory(ctx, dev, mem, 0, api.WholeSize)
	require.NoError(t, err)
	want := pattern(4*4*4, 6)
	copy(ptr, want)
	require.NoError(t, th.SyncImage(ctx, dev, img))
	o, _, err := tracker.ResolveAs[*tracker.Image](a.tracer.Writer.Registry, api.ObjectImage, api.Handle(img))
	require.NoError(t, err)
	assert.Equal(t, uint32(1), o.Updates)
	index := a.index(t, api.ObjectImage, api.Handle(img))

	images := 0
	opts := options()
	opts.Observer = func(e replay.Event) {
		if e.Type == packet.ImageUpdate {
			images++
		}
	}
	r, d, err := a.replay(ctx, t, opts)
	require.NoError(t, err)
	assert.Equal(t, 1, images)
	rec, err := r.Registry.Get(api.ObjectImage, index)
	require.NoError(t, err)
	got, err := d.ImageData(api.Image(rec.Handle))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestDescriptorSetContentsAtSubmit(t *testing.T) {
	const size, bound = 256, 64
	ctx, a := newApp(t)
	th := a.thread(ctx, t, 0)
	dev, q := device(ctx, t, th)
	buf, mem, err := buffer(ctx, th, dev, size, hostMemory)
	require.NoError(t, err)
	pool, err := th.CreateDescriptorPool(ctx, dev, api.DescriptorPoolCreateInfo{MaxSets: 1})
	require.NoError(t, err)
	sets, err := th.AllocateDescriptorSets(ctx, dev, pool, 1)
	require.NoError(t, err)
	require.NoError(t, th.UpdateDescriptorSets(ctx, dev, []api.WriteDescriptorSet{{
		DstSet:         sets[0],
		DescriptorType: api.DescriptorTypeUniformBuffer,
		Buffers:        []api.DescriptorBufferInfo{{Buffer: buf, Range: bound}},
	}}))
	cpool, err := th.CreateCommandPool(ctx, dev, api.CommandPoolCreateInfo{})
	require.NoError(t, err)
	cbs, err := th.AllocateCommandBuffers(ctx, dev, api.CommandBufferAllocateInfo{CommandPool: cpool, Count: 1})
	require.NoError(t, err)
	require.NoError(t, th.BeginCommandBuffer(ctx, cbs[0]))
	require.NoError(t, th.CmdBindDescriptorSets(ctx, cbs[0], sets))
	require.NoError(t, th.EndCommandBuffer(ctx, cbs[0]))

	// Written after recording, before submit.
	ptr, err := th.MapMemory(ctx, dev, mem, 0, api.WholeSize)
	require.NoError(t, err)
	copy(ptr, pattern(size, 2))
	require.NoError(t, th.QueueSubmit(ctx, q, []api.SubmitInfo{{CommandBuffers: cbs}}, 0))
	require.NoError(t, th.DeviceWaitIdle(ctx, dev))
	o, _, err := tracker.ResolveAs[*tracker.Buffer](a.tracer.Writer.Registry, api.ObjectBuffer, api.Handle(buf))
	require.NoError(t, err)
	assert.Equal(t, uint32(1), o.Updates)
	assert.Equal(t, uint64(bound), o.Written)
	index := a.index(t, api.ObjectBuffer, api.Handle(buf))

	var updates []replay.Event
	opts := options()
	opts.Observer = func(e replay.Event) {
		if e.Type == packet.BufferUpdate {
			updates = append(updates, e)
		}
	}
	r, d, err := a.replay(ctx, t, opts)
	require.NoError(t, err)
	require.Len(t, updates, 1)
	assert.Equal(t, index, updates[0].Object)
	assert.Equal(t, bound, updates[0].Bytes)
	rec, err := r.Registry.Get(api.ObjectBuffer, index)
	require.NoError(t, err)
	got, err := d.BufferData(api.Buffer(rec.Handle))
	require.NoError(t, err)
	assert.Equal(t, pattern(size, 2)[:bound], got[:bound])
	assert.Equal(t, make([]byte, size-bound), got[bound:])
}

func TestAssertBuffer(t *testing.T) {
	const size = 200
	ctx, a := newApp(t)
	th := a.thread(ctx, t, 0)
	dev, _ := device(ctx, t, th)
	buf, mem, err := buffer(ctx, th, dev, size, hostMemory)
	require.NoError(t, err)
	ptr, err := th.MapMemory(ctx, dev, mem, 0, api.WholeSize)
	require.NoError(t, err)
	copy(ptr, pattern(size, 8))
	require.NoError(t, th.UnmapMemory(ctx, dev, mem))
	require.NoError(t, th.AssertBuffer(ctx, dev, buf))
	require.NoError(t, a.tracer.Close(ctx))
	index := a.index(t, api.ObjectBuffer, api.Handle(buf))

	t.Run("match", func(t *testing.T) {
		ctx := log.SubTest(ctx, t)
		r := replay.New(soft.New(), calls.Table(), options())
		assert.NoError(t, r.Run(ctx, a.store))
	})
	t.Run("mismatch", func(t *testing.T) {
		ctx := log.SubTest(ctx, t)
		table := calls.Table()
		check := table[calls.IDAssertBuffer]
		r := replay.New(soft.New(), table, options())
		replaced := check
		replaced.Replay = func(ctx context.Context, c *replay.Call) error {
			rec, err := r.Registry.Get(api.ObjectBuffer, index)
			if err != nil {
				return err
			}
			o := rec.Payload.(*tracker.Buffer).Common()
			mrec, err := r.Registry.Lookup(o.Memory)
			if err != nil {
				return err
			}
			at := interval.U64Span{Start: o.MemoryOffset + 10, End: o.MemoryOffset + 11}
			if err := r.WriteMemory(ctx, mrec, []interval.U64Span{at}, []byte{0}); err != nil {
				return err
			}
			return check.Replay(ctx, c)
		}
		table[calls.IDAssertBuffer] = replaced
		err := r.Run(ctx, a.store)
		assert.True(t, errors.Is(err, calls.ErrContents), "got %v", err)
	})
}

func TestPipelines(t *testing.T) {
	ctx, a := newApp(t)
	th := a.thread(ctx, t, 0)
	dev, _ := device(ctx, t, th)
	rp, err := th.CreateRenderPass(ctx, dev, api.RenderPassCreateInfo{Attachments: []api.Format{api.FormatB8G8R8A8Unorm}})
	require.NoError(t, err)
	gfx, err := th.CreatePipeline(ctx, dev, api.PipelineCreateInfo{BindPoint: api.PipelineBindPointGraphics, RenderPass: rp})
	require.NoError(t, err)
	comp, err := th.CreatePipeline(ctx, dev, api.PipelineCreateInfo{BindPoint: api.PipelineBindPointCompute, Flags: 2})
	require.NoError(t, err)
	_, err = th.CreatePipeline(ctx, dev, api.PipelineCreateInfo{BindPoint: api.PipelineBindPointUnset})
	assert.Error(t, err)

	cpool, err := th.CreateCommandPool(ctx, dev, api.CommandPoolCreateInfo{})
	require.NoError(t, err)
	cbs, err := th.AllocateCommandBuffers(ctx, dev, api.CommandBufferAllocateInfo{CommandPool: cpool, Count: 1})
	require.NoError(t, err)
	require.NoError(t, th.BeginCommandBuffer(ctx, cbs[0]))
	require.NoError(t, th.CmdBindPipeline(ctx, cbs[0], api.PipelineBindPointGraphics, gfx))
	require.NoError(t, th.CmdBindPipeline(ctx, cbs[0], api.PipelineBindPointCompute, comp))
	assert.Error(t, th.CmdBindPipeline(ctx, cbs[0], api.PipelineBindPointGraphics, comp))
	require.NoError(t, th.EndCommandBuffer(ctx, cbs[0]))
	require.NoError(t, th.FrameEnd(ctx))
	p, _, err := tracker.ResolveAs[*tracker.Pipeline](a.tracer.Writer.Registry, api.ObjectPipeline, api.Handle(comp))
	require.NoError(t, err)
	assert.Equal(t, uint32(2), p.Flags)
	assert.False(t, p.RenderPass.Valid())
	gfxIndex := a.index(t, api.ObjectPipeline, api.Handle(gfx))
	require.NoError(t, th.DestroyPipeline(ctx, dev, comp))

	r, _, err := a.replay(ctx, t, options())
	require.NoError(t, err)
	assert.Equal(t, 1, r.Registry.Live(api.ObjectPipeline))
	rec, err := r.Registry.Get(api.ObjectPipeline, gfxIndex)
	require.NoError(t, err)
	gp := rec.Payload.(*tracker.Pipeline)
	assert.Equal(t, api.PipelineBindPointGraphics, gp.BindPoint)
	assert.True(t, gp.RenderPass.Valid())
}

func TestObserver(t *testing.T) {
	const size = 96
	ctx, a := newApp(t)
	th := a.thread(ctx, t, 0)
	dev, _ := device(ctx, t, th)
	buf, mem, err := buffer(ctx, th, dev, size, hostMemory)
	require.NoError(t, err)
	ptr, err := th.MapMemory(ctx, dev, mem, 0, api.WholeSize)
	require.NoError(t, err)
	copy(ptr, pattern(size, 9))
	require.NoError(t, th.SyncBuffer(ctx, dev, buf))
	index := a.index(t, api.ObjectBuffer, api.Handle(buf))

	mu := sync.Mutex{}
	events := []replay.Event{}
	opts := options()
	opts.Observer = func(e replay.Event) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, e)
	}
	_, _, err = a.replay(ctx, t, opts)
	require.NoError(t, err)

	require.NotEmpty(t, events)
	assert.Equal(t, replay.Event{Type: packet.APICall, Name: "CreateDevice"}, events[0])
	last := events[len(events)-1]
	assert.Equal(t, packet.End, last.Type)
	updates := 0
	for i, e := range events {
		assert.Zero(t, e.Thread)
		if e.Type == packet.APICall && i > 0 {
			assert.Greater(t, e.Call, events[0].Call)
		}
		if e.Type == packet.BufferUpdate {
			updates++
			assert.Equal(t, index, e.Object)
			assert.Equal(t, size, e.Bytes)
		}
	}
	assert.Equal(t, 1, updates)
}

// churn creates, fills, checks and destroys a buffer and its memory, then
// ends a frame.
func churn(ctx context.Context, th *calls.Thread, dev api.Device, size uint64) error {
	buf, mem, err := buffer(ctx, th, dev, size, hostMemory)
	if err != nil {
		return err
	}
	ptr, err := th.MapMemory(ctx, dev, mem, 0, api.WholeSize)
	if err != nil {
		return err
	}
	copy(ptr, pattern(int(size), byte(th.ID())))
	if err := th.FlushMappedMemoryRanges(ctx, dev, []api.MappedMemoryRange{{Memory: mem, Size: api.WholeSize}}); err != nil {
		return err
	}
	if err := th.UnmapMemory(ctx, dev, mem); err != nil {
		return err
	}
	if err := th.AssertBuffer(ctx, dev, buf); err != nil {
		return err
	}
	if err := th.DestroyBuffer(ctx, dev, buf); err != nil {
		return err
	}
	if err := th.FreeMemory(ctx, dev, mem); err != nil {
		return err
	}
	return th.FrameEnd(ctx)
}

func TestThreadsCreateAndDestroy(t *testing.T) {
	const threads, iterations = 10, 2
	ctx, a := newApp(t)
	main := a.thread(ctx, t, 0)
	dev, _ := device(ctx, t, main)
	workers := make([]*calls.Thread, threads)
	for i := range workers {
		workers[i] = a.thread(ctx, t, i+1)
	}
	wg := sync.WaitGroup{}
	for i, th := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < iterations; j++ {
				assert.NoError(t, churn(ctx, th, dev, uint64(64*(i+1)+j)))
			}
		}()
	}
	wg.Wait()
	require.NoError(t, main.FrameEnd(ctx))
	require.NoError(t, main.DestroyDevice(ctx, dev))

	r, _, err := a.replay(ctx, t, options())
	require.NoError(t, err)
	assert.Equal(t, threads*iterations+1, r.Frame())
	for _, k := range []api.ObjectType{api.ObjectBuffer, api.ObjectDeviceMemory, api.ObjectQueue, api.ObjectDevice} {
		assert.Zero(t, r.Registry.Live(k), "live %v", k)
	}
	for i := 1; i <= threads; i++ {
		assert.Equal(t, uint32(iterations*10), r.Counters.Load(i), "thread %d", i)
	}
}

func TestThreadsShareAllocations(t *testing.T) {
	const threads, iterations, buffers, size = 10, 2, 3, 1099
	ctx, a := newApp(t)
	main := a.thread(ctx, t, 0)
	dev, _ := device(ctx, t, main)
	workers := make([]*calls.Thread, threads)
	for i := range workers {
		workers[i] = a.thread(ctx, t, i+1)
	}
	run := func(th *calls.Thread, iteration int) error {
		bufs := make([]api.Buffer, buffers)
		for j := range bufs {
			var err error
			bufs[j], err = th.CreateBuffer(ctx, dev, api.BufferCreateInfo{Size: size, Usage: api.BufferUsageTransferSrc})
			if err != nil {
				return err
			}
		}
		req, err := th.GetBufferMemoryRequirements(ctx, dev, bufs[0])
		if err != nil {
			return err
		}
		total := req.Size * buffers
		mem, err := th.AllocateMemory(ctx, dev, api.MemoryAllocateInfo{AllocationSize: total, Properties: hostMemory})
		if err != nil {
			return err
		}
		ptr, err := th.MapMemory(ctx, dev, mem, 0, total)
		if err != nil {
			return err
		}
		copy(ptr, bytes.Repeat([]byte{byte(th.ID())}, int(total)))
		if err := th.FlushMappedMemoryRanges(ctx, dev, []api.MappedMemoryRange{{Memory: mem, Size: total}}); err != nil {
			return err
		}
		if err := th.UnmapMemory(ctx, dev, mem); err != nil {
			return err
		}
		for j, buf := range bufs {
			if err := th.BindBufferMemory(ctx, dev, buf, mem, uint64(j)*req.Size); err != nil {
				return err
			}
		}
		if err := th.SyncBuffer(ctx, dev, bufs[iteration]); err != nil {
			return err
		}
		if err := th.AssertBuffer(ctx, dev, bufs[iteration]); err != nil {
			return err
		}
		for _, buf := range bufs {
			if err := th.DestroyBuffer(ctx, dev, buf); err != nil {
				return err
			}
		}
		if err := th.FreeMemory(ctx, dev, mem); err != nil {
			return err
		}
		return th.FrameEnd(ctx)
	}
	wg := sync.WaitGroup{}
	for _, th := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				assert.NoError(t, run(th, i))
			}
		}()
	}
	wg.Wait()
	require.NoError(t, main.DestroyDevice(ctx, dev))

	r, _, err := a.replay(ctx, t, options())
	require.NoError(t, err)
	assert.Equal(t, threads*iterations, r.Frame())
	for _, k := range api.ObjectTypes {
		assert.Zero(t, r.Registry.Live(k), "live %v", k)
	}
	for i := 1; i <= threads; i++ {
		assert.Equal(t, uint32(iterations*16), r.Counters.Load(i), "thread %d", i)
	}
}

func TestUpdateOfDestroyedBuffer(t *testing.T) {
	ctx, a := newApp(t)
	th := a.thread(ctx, t, 0)
	dev, _ := device(ctx, t, th)
	buf, _, err := buffer(ctx, th, dev, 64, hostMemory)
	require.NoError(t, err)
	index := a.index(t, api.ObjectBuffer, api.Handle(buf))
	devIndex := a.index(t, api.ObjectDevice, api.Handle(dev))
	require.NoError(t, th.DestroyBuffer(ctx, dev, buf))
	require.NoError(t, a.tracer.Close(ctx))

	data := a.store.Bytes(0)
	require.Equal(t, byte(packet.End), data[len(data)-1])
	b := bytes.NewBuffer(append([]byte(nil), data[:len(data)-1]...))
	w := endian.Writer(b, endian.LittleEndian)
	require.NoError(t, packet.WriteUpdate(w, packet.BufferUpdate, packet.Update{
		Device: devIndex,
		Object: index,
		Ranges: []interval.U64Span{{Start: 0, End: 4}},
		Data:   []byte{1, 2, 3, 4},
	}))
	packet.WriteType(w, packet.End)
	r := replay.New(soft.New(), calls.Table(), options())
	err = r.Replay(ctx, []io.ReadCloser{io.NopCloser(b)})
	assert.True(t, errors.Is(err, packet.ErrFormat), "got %v", err)
}

func TestBarrierOrdering(t *testing.T) {
	ctx, a := newApp(t)
	t0 := a.thread(ctx, t, 0)
	t1 := a.thread(ctx, t, 1)
	dev, _ := device(ctx, t, t0)
	fence, err := t1.CreateFence(ctx, dev, api.FenceCreateInfo{})
	require.NoError(t, err)
	require.NoError(t, t1.DestroyFence(ctx, dev, fence))
	require.NoError(t, a.tracer.Close(ctx))

	in := endian.Reader(bytes.NewReader(a.store.Bytes(1)), endian.LittleEndian)
	_, err = packet.ReadHeader(in)
	require.NoError(t, err)
	ty, err := packet.ReadType(in)
	require.NoError(t, err)
	require.Equal(t, packet.ThreadBarrier, ty)
	targets, err := packet.ReadBarrier(in)
	require.NoError(t, err)
	assert.Equal(t, []barrier.Target{{Thread: 0, Count: 1}}, targets)

	// Thread 1 must not create the fence before thread 0 has created the
	// device.
	r := replay.New(soft.New(), calls.Table(), options())
	pr, pw := io.Pipe()
	done := make(chan error, 1)
	go func() {
		done <- r.Replay(ctx, []io.ReadCloser{pr, io.NopCloser(bytes.NewReader(a.store.Bytes(1)))})
	}()
	assert.Eventually(t, func() bool {
		s := r.Status()
		return len(s.States) == 2 && s.States[1] == replay.Blocked.String()
	}, 5*time.Second, time.Millisecond)
	assert.Equal(t, uint32(0), r.Counters.Load(1))
	_, err = pw.Write(a.store.Bytes(0))
	require.NoError(t, err)
	pw.Close()
	require.NoError(t, <-done)
	assert.Equal(t, uint32(2), r.Counters.Load(0))
	assert.Equal(t, uint32(2), r.Counters.Load(1))
}

func TestMalformedStreams(t *testing.T) {
	ctx := log.Testing(t)
	for _, test := range []struct {
		name  string
		write func(b *bytes.Buffer)
	}{
		{"unknown call", func(b *bytes.Buffer) {
			packet.WriteCall(endian.Writer(b, endian.LittleEndian), packet.Call{ID: 0xffff})
		}},
		{"wrong cookie", func(b *bytes.Buffer) {
			packet.WriteCall(endian.Writer(b, endian.LittleEndian), packet.Call{ID: calls.IDFrameEnd, Cookie: 4})
		}},
		{"update of missing buffer", func(b *bytes.Buffer) {
			packet.WriteUpdate(endian.Writer(b, endian.LittleEndian), packet.BufferUpdate, packet.Update{
				Object: 7,
				Ranges: nil,
			})
		}},
		{"unknown packet", func(b *bytes.Buffer) { b.WriteByte(9) }},
	} {
		t.Run(test.name, func(t *testing.T) {
			ctx := log.SubTest(ctx, t)
			b := &bytes.Buffer{}
			w := endian.Writer(b, endian.LittleEndian)
			require.NoError(t, packet.WriteHeader(w, 0))
			test.write(b)
			packet.WriteType(w, packet.End)
			r := replay.New(soft.New(), calls.Table(), options())
			err := r.Replay(ctx, []io.ReadCloser{io.NopCloser(b)})
			assert.True(t, errors.Is(err, packet.ErrFormat), "got %v", err)
		})
	}
}

func presentLoop(ctx context.Context, t *testing.T, a *app, frames int) {
	th := a.thread(ctx, t, 0)
	dev, q := device(ctx, t, th)
	sc, err := th.CreateSwapchain(ctx, dev, api.SwapchainCreateInfo{
		MinImageCount: 3,
		ImageFormat:   api.FormatB8G8R8A8Unorm,
		ImageExtent:   api.Extent2D{Width: 8, Height: 4},
		ImageUsage:    api.ImageUsageColorAttachment | api.ImageUsageTransferSrc,
		PresentMode:   api.PresentModeFifo,
	})
	require.NoError(t, err)
	images, err := th.GetSwapchainImages(ctx, dev, sc)
	require.NoError(t, err)
	require.Len(t, images, 3)
	sem, err := th.CreateSemaphore(ctx, dev)
	require.NoError(t, err)
	fence, err := th.CreateFence(ctx, dev, api.FenceCreateInfo{})
	require.NoError(t, err)
	for i := 0; i < frames; i++ {
		idx, err := th.AcquireNextImage(ctx, dev, sc, time.Second, sem, fence)
		require.NoError(t, err)
		require.NoError(t, th.WaitForFences(ctx, dev, []api.Fence{fence}, true, time.Second))
		require.NoError(t, th.ResetFences(ctx, dev, []api.Fence{fence}))
		require.NoError(t, th.QueuePresent(ctx, q, api.PresentInfo{
			WaitSemaphores: []api.Semaphore{sem},
			Swapchain:      sc,
			ImageIndex:     idx,
		}))
	}
	require.NoError(t, th.DeviceWaitIdle(ctx, dev))
	require.NoError(t, th.DestroyFence(ctx, dev, fence))
	require.NoError(t, th.DestroySemaphore(ctx, dev, sem))
	require.NoError(t, th.DestroySwapchain(ctx, dev, sc))
}

func TestPresentation(t *testing.T) {
	const frames = 5
	for _, virtual := range []bool{true, false} {
		t.Run(fmt.Sprintf("virtual=%v", virtual), func(t *testing.T) {
			ctx, a := newApp(t)
			presentLoop(ctx, t, a, frames)
			assert.Equal(t, frames, a.tracer.Writer.Frame())
			opts := options()
			opts.Present.Virtual = virtual
			r, _, err := a.replay(ctx, t, opts)
			require.NoError(t, err)
			assert.Equal(t, frames, r.Frame())
			assert.Zero(t, r.Registry.Live(api.ObjectSwapchain))
			assert.Zero(t, r.Registry.Live(api.ObjectImage))
		})
	}
}

func TestEndFrame(t *testing.T) {
	ctx, a := newApp(t)
	presentLoop(ctx, t, a, 4)
	opts := options()
	opts.EndFrame = 2
	r, _, err := a.replay(ctx, t, opts)
	require.NoError(t, err)
	assert.Equal(t, 2, r.Frame())
	assert.True(t, r.Done())
}

func TestNames(t *testing.T) {
	table := calls.Table()
	assert.Equal(t, "QueueSubmit", calls.Name(calls.IDQueueSubmit))
	assert.Equal(t, "Call(999)", calls.Name(999))
	for id, h := range table {
		assert.Equal(t, calls.Name(id), h.Name)
		assert.NotNil(t, h.Replay, h.Name)
	}
	assert.True(t, table[calls.IDQueuePresent].FrameEnd)
	assert.True(t, table[calls.IDFrameEnd].FrameEnd)
	assert.False(t, table[calls.IDQueueSubmit].FrameEnd)
	assert.Len(t, table, int(calls.IDAssertBuffer))
}
