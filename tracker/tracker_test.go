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

package tracker_test

import (
	"sync"
	"testing"

	"github.com/andrew-lunarg/lavatube/api"
	"github.com/andrew-lunarg/lavatube/core/log"
	"github.com/andrew-lunarg/lavatube/tracker"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func device(reg *tracker.Registry) *tracker.Record {
	rec := reg.Create(api.ObjectDevice, 0x10, 0, &tracker.Device{})
	rec.Mutate(0, 0)
	return rec
}

func TestLifecycle(t *testing.T) {
	reg := tracker.New()
	dev := device(reg)
	a := reg.Create(api.ObjectFence, 0x100, 0, &tracker.Fence{Device: dev.Ref()})
	b := reg.Create(api.ObjectFence, 0x200, 0, &tracker.Fence{Device: dev.Ref()})
	assert.Equal(t, uint32(0), a.Index)
	assert.Equal(t, uint32(1), b.Index)

	got, err := reg.Resolve(api.ObjectFence, 0x200)
	require.NoError(t, err)
	assert.Equal(t, b, got)

	require.NoError(t, reg.Destroy(api.ObjectFence, a.Index, 3))
	_, err = reg.Get(api.ObjectFence, a.Index)
	assert.Equal(t, tracker.ErrNotFound, errors.Cause(err))
	_, err = reg.Resolve(api.ObjectFence, 0x100)
	assert.Equal(t, tracker.ErrUnknownHandle, err)
	assert.Equal(t, a, reg.Peek(api.ObjectFence, a.Index), "tombstone stays readable")
	assert.Equal(t, 3, reg.Peek(api.ObjectFence, a.Index).FrameDestroyed)

	err = reg.Destroy(api.ObjectFence, a.Index, 4)
	assert.Equal(t, tracker.ErrNotFound, errors.Cause(err))
	_, err = reg.Get(api.ObjectFence, 7)
	assert.Equal(t, tracker.ErrNotFound, err)
	_, err = reg.Resolve(api.ObjectFence, 0xdead)
	assert.Equal(t, tracker.ErrUnknownHandle, err)
	assert.Equal(t, 1, reg.Live(api.ObjectFence))
	assert.Equal(t, 2, reg.LiveTotal())
}

func TestIndexReuseNeedsSweep(t *testing.T) {
	reg := tracker.New()
	dev := device(reg)
	a := reg.Create(api.ObjectSemaphore, 0x1, 0, &tracker.Semaphore{Device: dev.Ref()})
	a.Mutate(2, 7)
	require.NoError(t, reg.Destroy(api.ObjectSemaphore, a.Index, 0))

	b := reg.Create(api.ObjectSemaphore, 0x2, 0, &tracker.Semaphore{Device: dev.Ref()})
	assert.NotEqual(t, a.Index, b.Index, "index reused before sweep")

	assert.Equal(t, 1, reg.Sweep())
	c := reg.Create(api.ObjectSemaphore, 0x3, 1, &tracker.Semaphore{Device: dev.Ref()})
	assert.Equal(t, a.Index, c.Index)
	assert.Equal(t, tracker.Stamp{Thread: 2, Call: 7}, c.Prior)

	deps, err := c.Mutate(0, 1)
	require.NoError(t, err)
	assert.Equal(t, []tracker.Stamp{{Thread: 2, Call: 7}}, deps)
}

func TestSweepKeepsReferenced(t *testing.T) {
	reg := tracker.New()
	dev := device(reg)
	img := reg.Create(api.ObjectImage, 0x1, 0, &tracker.Image{Info: api.ImageCreateInfo{Format: api.FormatR8Unorm}})
	view := reg.Create(api.ObjectImageView, 0x2, 0, &tracker.ImageView{
		Device: dev.Ref(), Image: img.Ref(), ImageHandle: img.Handle,
		Info: api.ImageViewCreateInfo{Format: api.FormatR8Unorm},
	})
	require.NoError(t, reg.Destroy(api.ObjectImage, img.Index, 0))
	assert.Equal(t, 0, reg.Sweep(), "image is still referenced by a live view")

	require.NoError(t, reg.Destroy(api.ObjectImageView, view.Index, 0))
	assert.Equal(t, 2, reg.Sweep())
	assert.Nil(t, reg.Peek(api.ObjectImage, img.Index))
}

func TestCreateAt(t *testing.T) {
	reg := tracker.New()
	rec, err := reg.CreateAt(api.ObjectBuffer, 3, 0x30, 0, &tracker.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, uint32(3), rec.Index)
	_, err = reg.CreateAt(api.ObjectBuffer, 3, 0x31, 0, &tracker.Buffer{})
	var v *tracker.Violation
	assert.True(t, errors.As(err, &v))

	require.NoError(t, reg.Destroy(api.ObjectBuffer, 3, 1))
	_, err = reg.CreateAt(api.ObjectBuffer, 3, 0x31, 1, &tracker.Buffer{})
	assert.NoError(t, err)
	got, err := reg.Resolve(api.ObjectBuffer, 0x31)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), got.Index)

	// Lower indices stay free for Create.
	next := reg.Create(api.ObjectBuffer, 0x40, 1, &tracker.Buffer{})
	assert.Equal(t, uint32(0), next.Index)
}

func TestMutateAfterDestroy(t *testing.T) {
	reg := tracker.New()
	rec := device(reg)
	require.NoError(t, reg.Destroy(api.ObjectDevice, rec.Index, 5))
	_, err := rec.Mutate(1, 9)
	var v *tracker.Violation
	require.True(t, errors.As(err, &v))
	assert.Equal(t, 5, v.Frame)
	assert.Equal(t, tracker.ErrInvariant, errors.Cause(err))
}

func TestDependencies(t *testing.T) {
	reg := tracker.New()
	rec := device(reg)
	assert.Empty(t, rec.Use(0, 1), "same thread")
	assert.Equal(t, []tracker.Stamp{{Thread: 0, Call: 0}}, rec.Use(1, 4))
	deps, err := rec.Mutate(2, 3)
	require.NoError(t, err)
	assert.ElementsMatch(t, []tracker.Stamp{{Thread: 0, Call: 0}, {Thread: 1, Call: 4}, {Thread: 0, Call: 1}}, deps)
	assert.Equal(t, tracker.Stamp{Thread: 2, Call: 3}, rec.Stamp())
}

func TestCheckWhileMutating(t *testing.T) {
	ctx := log.Testing(t)
	reg := tracker.New()
	dev := device(reg)
	_, m := memoryRecord(reg, dev, 64)
	m.Exposed.AddOS(32, 64)
	wg := sync.WaitGroup{}
	for th := 1; th <= 4; th++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := uint32(0); c < 200; c++ {
				dev.Use(th, c)
				dev.Mutate(th, c)
			}
		}()
	}
	for i := 0; i < 200; i++ {
		var v *tracker.Violation
		assert.True(t, errors.As(reg.Check(ctx, i), &v))
	}
	wg.Wait()
}

func memoryRecord(reg *tracker.Registry, dev *tracker.Record, size uint64) (*tracker.Record, *tracker.Memory) {
	m := &tracker.Memory{Device: dev.Ref(), AllocationSize: size, Properties: api.MemoryPropertyHostVisible}
	rec := reg.Create(api.ObjectDeviceMemory, 0x50, 0, m)
	rec.Mutate(0, 1)
	return rec, m
}

func TestSelfTest(t *testing.T) {
	ctx := log.Testing(t)
	reg := tracker.New()
	dev := device(reg)
	_, m := memoryRecord(reg, dev, 256)
	assert.NoError(t, reg.Check(ctx, 0))

	m.Exposed.AddOS(200, 100)
	err := reg.Check(ctx, 1)
	var v *tracker.Violation
	require.True(t, errors.As(err, &v))
	assert.Equal(t, api.ObjectDeviceMemory, v.Kind)
	assert.Equal(t, 1, v.Frame)
	assert.Equal(t, 0, v.Thread)
}

func TestSelfTestNeedsOwner(t *testing.T) {
	ctx := log.Testing(t)
	reg := tracker.New()
	reg.Create(api.ObjectDevice, 0x10, 0, &tracker.Device{})
	assert.Error(t, reg.Check(ctx, 0))
}

func TestFramebufferChecksViews(t *testing.T) {
	ctx := log.Testing(t)
	reg := tracker.New()
	dev := device(reg)
	rp := reg.Create(api.ObjectRenderPass, 0x60, 0, &tracker.RenderPass{
		Device: dev.Ref(), Info: api.RenderPassCreateInfo{Attachments: []api.Format{api.FormatR8G8B8A8Unorm}},
	})
	rp.Mutate(0, 2)
	info := api.ImageCreateInfo{
		Format: api.FormatR8G8B8A8Unorm, ImageType: api.ImageType2D,
		Extent: api.Extent3D{Width: 4, Height: 4, Depth: 1},
	}
	img := reg.Create(api.ObjectImage, 0x61, 0, &tracker.Image{Info: info, Swapchain: true})
	img.Mutate(0, 3)
	iv := &tracker.ImageView{
		Device: dev.Ref(), Image: img.Ref(), ImageHandle: img.Handle,
		Info: api.ImageViewCreateInfo{Format: api.FormatR8G8B8A8Unorm},
	}
	view := reg.Create(api.ObjectImageView, 0x62, 0, iv)
	view.Mutate(0, 4)
	fb := reg.Create(api.ObjectFramebuffer, 0x63, 0, &tracker.Framebuffer{
		Device: dev.Ref(), RenderPass: rp.Ref(), Attachments: []tracker.Ref{view.Ref()},
	})
	fb.Mutate(0, 5)
	require.NoError(t, reg.Check(ctx, 0))

	// A view whose parent handle disagrees fails both on its own and
	// through the framebuffer.
	iv.ImageHandle = 0x99
	err := reg.CheckRecord(fb, 0)
	var v *tracker.Violation
	require.True(t, errors.As(err, &v))
	assert.Equal(t, api.ObjectFramebuffer, v.Kind)
	assert.Contains(t, v.Reason, "ImageView")
}

func TestImageSentinels(t *testing.T) {
	reg := tracker.New()
	info := api.ImageCreateInfo{Format: api.FormatR8Unorm, Tiling: api.MaxEnum}
	img := reg.Create(api.ObjectImage, 0x1, 0, &tracker.Image{Info: info, Swapchain: true})
	img.Mutate(0, 0)
	err := reg.CheckRecord(img, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tiling")
}

func TestSwapchainReplayInitialized(t *testing.T) {
	reg := tracker.New()
	sc := &tracker.SwapchainReplay{
		Swapchain: tracker.Swapchain{Info: api.SwapchainCreateInfo{ImageFormat: api.FormatB8G8R8A8Unorm}},
	}
	rec := reg.Create(api.ObjectSwapchain, 0x70, 0, sc)
	rec.Mutate(0, 0)
	assert.NoError(t, reg.CheckRecord(rec, 0))

	sc.Initialized = true
	sc.Queue, sc.CommandPool, sc.Semaphore = 11, 1, 2
	sc.VirtualImages = []api.Image{3, 4}
	sc.VirtualMemory = []api.DeviceMemory{5, 6}
	sc.CommandBuffers = []api.CommandBuffer{7, 8}
	sc.Fences = []api.Fence{9, 0}
	assert.Error(t, reg.CheckRecord(rec, 0))
	sc.Fences[1] = 10
	assert.NoError(t, reg.CheckRecord(rec, 0))
}

func TestTouch(t *testing.T) {
	ref := tracker.Ref{Kind: api.ObjectBuffer, Index: 2}
	obj := &tracker.Object{Size: 100, Accessible: true}
	touched := tracker.Touched{}
	touched.Touch(ref, obj, 10, 20)
	touched.Touch(ref, obj, 30, api.WholeSize)
	assert.Equal(t, uint64(90), touched[ref].Bytes())
	assert.Equal(t, 1, touched[ref].Len())

	hidden := &tracker.Object{Size: 100}
	other := tracker.Ref{Kind: api.ObjectBuffer, Index: 3}
	touched.Touch(other, hidden, 0, 10)
	assert.NotContains(t, touched, other)

	merged := tracker.Touched{}
	merged.Touch(other, &tracker.Object{Size: 8, Accessible: true}, 0, 8)
	merged.Merge(touched)
	assert.Equal(t, []tracker.Ref{ref, other}, merged.Refs())
}
