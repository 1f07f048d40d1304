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

package present_test

import (
	"context"
	"testing"
	"time"

	"github.com/andrew-lunarg/lavatube/api"
	"github.com/andrew-lunarg/lavatube/api/soft"
	"github.com/andrew-lunarg/lavatube/barrier"
	"github.com/andrew-lunarg/lavatube/core/log"
	"github.com/andrew-lunarg/lavatube/replay/present"
	"github.com/andrew-lunarg/lavatube/tracker"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const imageCount = 3

type fixture struct {
	d     *soft.Driver
	dev   api.Device
	queue api.Queue
	reg   *tracker.Registry
	rec   *tracker.Record
}

func setup(ctx context.Context, t *testing.T) *fixture {
	f := &fixture{d: soft.New(), reg: tracker.New()}
	var err error
	f.dev, err = f.d.CreateDevice(ctx, api.DeviceCreateInfo{})
	require.NoError(t, err)
	f.queue, err = f.d.GetDeviceQueue(ctx, f.dev, 0, 0)
	require.NoError(t, err)
	info := api.SwapchainCreateInfo{
		MinImageCount: imageCount,
		ImageFormat:   api.FormatB8G8R8A8Unorm,
		ImageExtent:   api.Extent2D{Width: 4, Height: 2},
		ImageUsage:    api.ImageUsageColorAttachment | api.ImageUsageTransferSrc,
	}
	sc, err := f.d.CreateSwapchain(ctx, f.dev, info)
	require.NoError(t, err)
	f.rec = f.reg.Create(api.ObjectSwapchain, api.Handle(sc), 0, &tracker.SwapchainReplay{
		Swapchain: tracker.Swapchain{Info: info},
	})
	f.rec.Mutate(0, 0)
	return f
}

func (f *fixture) cycle(ctx context.Context, t *testing.T, p *present.Presenter, n int) error {
	idx, err := p.Acquire(ctx, f.dev, f.rec, uint32(n%imageCount), 0, 0)
	if err != nil {
		return err
	}
	assert.Equal(t, uint32(n%imageCount), idx)
	return p.Present(ctx, f.queue, f.dev, f.rec, api.PresentInfo{ImageIndex: idx})
}

func TestRingRoundRobin(t *testing.T) {
	ctx := log.Testing(t)
	f := setup(ctx, t)
	p := present.New(f.d, present.Options{Virtual: true, FenceTimeout: time.Second})
	require.NoError(t, p.Init(ctx, f.dev, f.queue, f.rec))
	require.NoError(t, f.reg.CheckRecord(f.rec, 0))
	sc := f.rec.Payload.(*tracker.SwapchainReplay)
	assert.Len(t, sc.VirtualImages, imageCount)
	assert.Len(t, sc.Fences, imageCount)

	for n := 0; n <= imageCount+1; n++ {
		assert.Equal(t, uint32(n%imageCount), p.Slot(f.rec), "acquire %d", n)
		require.NoError(t, f.cycle(ctx, t, p, n))
	}
	assert.Equal(t, uint64(imageCount+2), sc.Presents)
	require.NoError(t, p.Teardown(ctx, f.dev, f.rec))
	assert.False(t, sc.Initialized)
	assert.Empty(t, sc.Fences)
}

func TestVirtualCopiesPresentedImage(t *testing.T) {
	ctx := log.Testing(t)
	f := setup(ctx, t)
	p := present.New(f.d, present.Options{Virtual: true, FenceTimeout: time.Second})
	require.NoError(t, p.Init(ctx, f.dev, f.queue, f.rec))
	sc := f.rec.Payload.(*tracker.SwapchainReplay)

	// Fill application image 1 from a host-visible staging image.
	staging, err := f.d.CreateImage(ctx, f.dev, api.ImageCreateInfo{
		ImageType: api.ImageType2D,
		Format:    api.FormatB8G8R8A8Unorm,
		Extent:    api.Extent3D{Width: 4, Height: 2, Depth: 1},
		Tiling:    api.ImageTilingLinear,
		Usage:     api.ImageUsageTransferSrc,
	})
	require.NoError(t, err)
	req, err := f.d.GetImageMemoryRequirements(ctx, f.dev, staging)
	require.NoError(t, err)
	mem, err := f.d.AllocateMemory(ctx, f.dev, api.MemoryAllocateInfo{AllocationSize: req.Size, Properties: api.MemoryPropertyHostVisible})
	require.NoError(t, err)
	require.NoError(t, f.d.BindImageMemory(ctx, f.dev, staging, mem, 0))
	ptr, err := f.d.MapMemory(ctx, f.dev, mem, 0, api.WholeSize)
	require.NoError(t, err)
	for i := range ptr {
		ptr[i] = byte(i)
	}
	require.NoError(t, f.d.UnmapMemory(ctx, f.dev, mem))
	pool, err := f.d.CreateCommandPool(ctx, f.dev, api.CommandPoolCreateInfo{})
	require.NoError(t, err)
	cbs, err := f.d.AllocateCommandBuffers(ctx, f.dev, api.CommandBufferAllocateInfo{CommandPool: pool, Count: 1})
	require.NoError(t, err)
	require.NoError(t, f.d.BeginCommandBuffer(ctx, cbs[0]))
	require.NoError(t, f.d.CmdCopyImage(ctx, cbs[0], staging, sc.AppImages[1], []api.ImageCopy{{Extent: api.Extent3D{Width: 4, Height: 2, Depth: 1}}}))
	require.NoError(t, f.d.EndCommandBuffer(ctx, cbs[0]))
	require.NoError(t, f.d.QueueSubmit(ctx, f.queue, []api.SubmitInfo{{CommandBuffers: cbs}}, 0))
	require.NoError(t, f.d.DeviceWaitIdle(ctx, f.dev))
	app, err := f.d.ImageData(sc.AppImages[1])
	require.NoError(t, err)
	require.Len(t, app, 32)
	assert.Equal(t, byte(31), app[31])

	require.NoError(t, f.cycle(ctx, t, p, 0))
	require.NoError(t, f.cycle(ctx, t, p, 1))
	require.NoError(t, f.d.WaitForFences(ctx, f.dev, sc.Fences[1:2], true, time.Second))
	got, err := f.d.ImageData(sc.VirtualImages[1])
	require.NoError(t, err)
	assert.Equal(t, app, got)
	require.NoError(t, p.Teardown(ctx, f.dev, f.rec))
}

func TestAcquireBlocksOnBusySlot(t *testing.T) {
	ctx := log.Testing(t)
	f := setup(ctx, t)
	p := present.New(f.d, present.Options{Virtual: true, FenceTimeout: 50 * time.Millisecond})
	require.NoError(t, p.Init(ctx, f.dev, f.queue, f.rec))

	f.d.Pause()
	for n := 0; n < imageCount; n++ {
		require.NoError(t, f.cycle(ctx, t, p, n))
	}
	// Slot 0's copy cannot run, so its fence stays unsignaled.
	_, err := p.Acquire(ctx, f.dev, f.rec, 0, 0, 0)
	assert.Equal(t, barrier.ErrTimeout, errors.Cause(err))
	f.d.Resume()

	require.NoError(t, f.cycle(ctx, t, p, imageCount))
	require.NoError(t, p.Teardown(ctx, f.dev, f.rec))
}

func TestPassthrough(t *testing.T) {
	ctx := log.Testing(t)
	f := setup(ctx, t)
	p := present.New(f.d, present.Options{})
	require.NoError(t, p.Init(ctx, f.dev, f.queue, f.rec))
	sc := f.rec.Payload.(*tracker.SwapchainReplay)
	assert.False(t, sc.Initialized)

	for n := 0; n < 4; n++ {
		require.NoError(t, f.cycle(ctx, t, p, n))
	}
	require.NoError(t, f.d.DeviceWaitIdle(ctx, f.dev))
	assert.Equal(t, uint64(4), f.d.Presented(api.Swapchain(f.rec.Handle)))
}

func TestPacing(t *testing.T) {
	ctx := log.Testing(t)
	f := setup(ctx, t)
	p := present.New(f.d, present.Options{Virtual: true, MaxFPS: 50})
	require.NoError(t, p.Init(ctx, f.dev, f.queue, f.rec))
	start := time.Now()
	for n := 0; n < 4; n++ {
		require.NoError(t, f.cycle(ctx, t, p, n))
	}
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	require.NoError(t, p.Teardown(ctx, f.dev, f.rec))
}
