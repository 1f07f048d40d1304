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
	"github.com/andrew-lunarg/lavatube/packet"
	"github.com/andrew-lunarg/lavatube/replay"
	"github.com/andrew-lunarg/lavatube/tracker"
	"github.com/pkg/errors"
)

// maxItems bounds every list decoded from a trace.
const maxItems = 1 << 16

// Table returns the replay handlers of every call.
func Table() replay.Table {
	t := replay.Table{}
	add := func(id uint16, f func(context.Context, *replay.Call) error) {
		t[id] = replay.Handler{Name: Name(id), Replay: f}
	}
	add(IDCreateDevice, replayCreateDevice)
	add(IDDestroyDevice, replayDestroyDevice)
	add(IDGetDeviceQueue, replayGetDeviceQueue)
	add(IDDeviceWaitIdle, replayDeviceWaitIdle)
	add(IDAllocateMemory, replayAllocateMemory)
	add(IDFreeMemory, replayFreeMemory)
	add(IDMapMemory, replayMapMemory)
	add(IDUnmapMemory, replayUnmapMemory)
	add(IDFlushMappedMemoryRanges, replayFlushMappedMemoryRanges)
	add(IDCreateBuffer, replayCreateBuffer)
	add(IDDestroyBuffer, replayDestroy(api.ObjectBuffer, func(ctx context.Context, d api.Driver, dev api.Device, h api.Handle) error {
		return d.DestroyBuffer(ctx, dev, api.Buffer(h))
	}))
	add(IDBindBufferMemory, replayBindBufferMemory)
	add(IDCreateImage, replayCreateImage)
	add(IDDestroyImage, replayDestroy(api.ObjectImage, func(ctx context.Context, d api.Driver, dev api.Device, h api.Handle) error {
		return d.DestroyImage(ctx, dev, api.Image(h))
	}))
	add(IDBindImageMemory, replayBindImageMemory)
	add(IDCreateImageView, replayCreateImageView)
	add(IDDestroyImageView, replayDestroy(api.ObjectImageView, func(ctx context.Context, d api.Driver, dev api.Device, h api.Handle) error {
		return d.DestroyImageView(ctx, dev, api.ImageView(h))
	}))
	add(IDCreateBufferView, replayCreateBufferView)
	add(IDDestroyBufferView, replayDestroy(api.ObjectBufferView, func(ctx context.Context, d api.Driver, dev api.Device, h api.Handle) error {
		return d.DestroyBufferView(ctx, dev, api.BufferView(h))
	}))
	add(IDCreateRenderPass, replayCreateRenderPass)
	add(IDDestroyRenderPass, replayDestroy(api.ObjectRenderPass, func(ctx context.Context, d api.Driver, dev api.Device, h api.Handle) error {
		return d.DestroyRenderPass(ctx, dev, api.RenderPass(h))
	}))
	add(IDCreateFramebuffer, replayCreateFramebuffer)
	add(IDDestroyFramebuffer, replayDestroy(api.ObjectFramebuffer, func(ctx context.Context, d api.Driver, dev api.Device, h api.Handle) error {
		return d.DestroyFramebuffer(ctx, dev, api.Framebuffer(h))
	}))
	add(IDCreateCommandPool, replayCreateCommandPool)
	add(IDDestroyCommandPool, replayDestroyCommandPool)
	add(IDAllocateCommandBuffers, replayAllocateCommandBuffers)
	add(IDFreeCommandBuffers, replayFreeCommandBuffers)
	add(IDBeginCommandBuffer, replayBeginCommandBuffer)
	add(IDEndCommandBuffer, replayEndCommandBuffer)
	add(IDCmdCopyBuffer, replayCmdCopyBuffer)
	add(IDCmdUpdateBuffer, replayCmdUpdateBuffer)
	add(IDCmdCopyImage, replayCmdCopyImage)
	add(IDCmdBindDescriptorSets, replayCmdBindDescriptorSets)
	add(IDQueueSubmit, replayQueueSubmit)
	add(IDCreateFence, replayCreateFence)
	add(IDDestroyFence, replayDestroy(api.ObjectFence, func(ctx context.Context, d api.Driver, dev api.Device, h api.Handle) error {
		return d.DestroyFence(ctx, dev, api.Fence(h))
	}))
	add(IDResetFences, replayResetFences)
	add(IDWaitForFences, replayWaitForFences)
	add(IDGetFenceStatus, replayGetFenceStatus)
	add(IDCreateSemaphore, replayCreateSemaphore)
	add(IDDestroySemaphore, replayDestroy(api.ObjectSemaphore, func(ctx context.Context, d api.Driver, dev api.Device, h api.Handle) error {
		return d.DestroySemaphore(ctx, dev, api.Semaphore(h))
	}))
	add(IDCreateEvent, replayCreateEvent)
	add(IDDestroyEvent, replayDestroy(api.ObjectEvent, func(ctx context.Context, d api.Driver, dev api.Device, h api.Handle) error {
		return d.DestroyEvent(ctx, dev, api.Event(h))
	}))
	add(IDCreateDescriptorPool, replayCreateDescriptorPool)
	add(IDDestroyDescriptorPool, replayDestroyDescriptorPool)
	add(IDAllocateDescriptorSets, replayAllocateDescriptorSets)
	add(IDUpdateDescriptorSets, replayUpdateDescriptorSets)
	add(IDCreateSwapchain, replayCreateSwapchain)
	add(IDDestroySwapchain, replayDestroySwapchain)
	add(IDGetSwapchainImages, replayGetSwapchainImages)
	add(IDAcquireNextImage, replayAcquireNextImage)
	add(IDQueuePresent, replayQueuePresent)
	add(IDFrameEnd, replayFrameEnd)
	add(IDSyncBuffer, replaySync(api.ObjectBuffer))
	add(IDSyncImage, replaySync(api.ObjectImage))
	add(IDSetObjectName, replaySetObjectName)
	add(IDCreatePipeline, replayCreatePipeline)
	add(IDDestroyPipeline, replayDestroy(api.ObjectPipeline, func(ctx context.Context, d api.Driver, dev api.Device, h api.Handle) error {
		return d.DestroyPipeline(ctx, dev, api.Pipeline(h))
	}))
	add(IDCmdBindPipeline, replayCmdBindPipeline)
	add(IDAssertBuffer, replayAssertBuffer)
	for _, id := range []uint16{IDQueuePresent, IDFrameEnd} {
		h := t[id]
		h.FrameEnd = true
		t[id] = h
	}
	return t
}

// handle returns the replayed handle of rec as an API handle type.
func handle[H ~uint64](rec *tracker.Record) H { return H(replay.Handle(rec)) }

// decoded returns a format error if the call's arguments could not be read.
func decoded(c *replay.Call) error {
	if err := c.Args.Error(); err != nil {
		return errors.Wrapf(packet.ErrFormat, "Arguments of %s: %v", c.Name, err)
	}
	return nil
}

// count reads a list length.
func count(c *replay.Call) int {
	n := c.Args.Uint32()
	if n > maxItems {
		c.Args.SetError(errors.Errorf("list of %d items", n))
		return 0
	}
	return int(n)
}

// getAll reads a counted list of record indices of kind.
func getAll(c *replay.Call, kind api.ObjectType) ([]*tracker.Record, error) {
	n := count(c)
	out := make([]*tracker.Record, 0, n)
	for i := 0; i < n; i++ {
		rec, err := c.Get(kind)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			return nil, errors.Wrapf(packet.ErrFormat, "Null %v in list", kind)
		}
		out = append(out, rec)
	}
	return out, decoded(c)
}

// handles returns the replayed handles of recs.
func handles[H ~uint64](recs []*tracker.Record) []H {
	out := make([]H, len(recs))
	for i, rec := range recs {
		out[i] = handle[H](rec)
	}
	return out
}

// device reads the index of the call's device.
func device(c *replay.Call) (*tracker.Record, api.Device, error) {
	rec, err := c.Get(api.ObjectDevice)
	if err != nil {
		return nil, 0, err
	}
	if rec == nil {
		return nil, 0, errors.Wrap(packet.ErrFormat, "Null device")
	}
	return rec, handle[api.Device](rec), nil
}

// object reads the index of a live, non-null object of kind.
func object(c *replay.Call, kind api.ObjectType) (*tracker.Record, error) {
	rec, err := c.Get(kind)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, errors.Wrapf(packet.ErrFormat, "Null %v", kind)
	}
	return rec, nil
}

// replayDestroy returns the handler of a destroy call taking a device and
// one object.
func replayDestroy(kind api.ObjectType, destroy func(context.Context, api.Driver, api.Device, api.Handle) error) func(context.Context, *replay.Call) error {
	return func(ctx context.Context, c *replay.Call) error {
		_, dev, err := device(c)
		if err != nil {
			return err
		}
		rec, err := object(c, kind)
		if err != nil {
			return err
		}
		if err := destroy(ctx, c.Driver(), dev, rec.Handle); err != nil {
			return err
		}
		return c.Destroy(rec)
	}
}
