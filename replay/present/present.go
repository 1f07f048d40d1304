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

// Package present emulates a display for replayed swapchains.
//
// In virtual mode each swapchain gets a ring of off-screen images, one
// command buffer and one fence per ring slot, and a semaphore that chains
// the copies. Acquiring takes the next slot round robin and blocks while
// that slot's previous copy is still in flight. Presenting copies the
// application's image into the slot. Without virtual mode calls pass
// through to the driver.
package present

import (
	"context"
	"time"

	"github.com/andrew-lunarg/lavatube/api"
	"github.com/andrew-lunarg/lavatube/barrier"
	"github.com/andrew-lunarg/lavatube/core/log"
	"github.com/andrew-lunarg/lavatube/tracker"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

// Options control presentation.
type Options struct {
	// Virtual replaces the presentation engine with an image ring.
	Virtual bool
	// FenceTimeout bounds each wait for a ring slot.
	FenceTimeout time.Duration
	// MaxFPS limits the present rate. Zero is unlimited.
	MaxFPS float64
}

// Presenter drives the swapchains of one replay.
type Presenter struct {
	driver  api.Driver
	opts    Options
	limiter *rate.Limiter
}

// New returns a Presenter using driver.
func New(driver api.Driver, opts Options) *Presenter {
	if opts.FenceTimeout == 0 {
		opts.FenceTimeout = 10 * time.Second
	}
	p := &Presenter{driver: driver, opts: opts}
	if opts.MaxFPS > 0 {
		p.limiter = rate.NewLimiter(rate.Limit(opts.MaxFPS), 1)
	}
	return p
}

// Virtual returns true if swapchains are emulated.
func (p *Presenter) Virtual() bool { return p.opts.Virtual }

// Init builds the ring for a swapchain created on dev. It is a no-op when
// virtual mode is off or the swapchain is already initialized.
func (p *Presenter) Init(ctx context.Context, dev api.Device, queue api.Queue, rec *tracker.Record) (err error) {
	sc := rec.Payload.(*tracker.SwapchainReplay)
	if !p.opts.Virtual || sc.Initialized {
		return nil
	}
	ctx = log.Enter(ctx, "present.Init")
	defer func() {
		if err != nil {
			p.release(ctx, dev, sc)
		}
	}()
	if len(sc.AppImages) == 0 {
		images, err := p.driver.GetSwapchainImages(ctx, dev, api.Swapchain(rec.Handle))
		if err != nil {
			return err
		}
		sc.AppImages = images
	}
	k := len(sc.AppImages)
	sc.Virtual = true
	sc.Queue = queue
	if sc.CommandPool, err = p.driver.CreateCommandPool(ctx, dev, api.CommandPoolCreateInfo{}); err != nil {
		return err
	}
	if sc.Semaphore, err = p.driver.CreateSemaphore(ctx, dev); err != nil {
		return err
	}
	if sc.CommandBuffers, err = p.driver.AllocateCommandBuffers(ctx, dev, api.CommandBufferAllocateInfo{
		CommandPool: sc.CommandPool,
		Level:       api.CommandBufferLevelPrimary,
		Count:       uint32(k),
	}); err != nil {
		return err
	}
	info := api.ImageCreateInfo{
		ImageType:   api.ImageType2D,
		Format:      sc.Info.ImageFormat,
		Extent:      api.Extent3D{Width: sc.Info.ImageExtent.Width, Height: sc.Info.ImageExtent.Height, Depth: 1},
		MipLevels:   1,
		ArrayLayers: 1,
		Samples:     1,
		Tiling:      api.ImageTilingOptimal,
		Usage:       api.ImageUsageTransferDst,
	}
	for i := 0; i < k; i++ {
		img, err := p.driver.CreateImage(ctx, dev, info)
		if err != nil {
			return err
		}
		sc.VirtualImages = append(sc.VirtualImages, img)
		req, err := p.driver.GetImageMemoryRequirements(ctx, dev, img)
		if err != nil {
			return err
		}
		mem, err := p.driver.AllocateMemory(ctx, dev, api.MemoryAllocateInfo{
			AllocationSize: req.Size,
			Properties:     api.MemoryPropertyDeviceLocal,
		})
		if err != nil {
			return err
		}
		sc.VirtualMemory = append(sc.VirtualMemory, mem)
		if err := p.driver.BindImageMemory(ctx, dev, img, mem, 0); err != nil {
			return err
		}
		fence, err := p.driver.CreateFence(ctx, dev, api.FenceCreateInfo{Signaled: true})
		if err != nil {
			return err
		}
		sc.Fences = append(sc.Fences, fence)
	}
	sc.NextSwapchainImage, sc.NextStoredImage, sc.CopyPending = 0, 0, false
	sc.Initialized = true
	log.D(ctx, "Virtual swapchain %v with %d images", rec.Handle, k)
	return nil
}

// Acquire stands in for acquiring image index of the swapchain. In
// virtual mode it waits for the next ring slot to leave flight and signals
// sem and fence itself; the captured index is returned unchanged. Otherwise
// the driver acquires and its index is returned.
func (p *Presenter) Acquire(ctx context.Context, dev api.Device, rec *tracker.Record, index uint32, sem api.Semaphore, fence api.Fence) (uint32, error) {
	sc := rec.Payload.(*tracker.SwapchainReplay)
	if !sc.Initialized {
		return p.driver.AcquireNextImage(ctx, dev, api.Swapchain(rec.Handle), p.opts.FenceTimeout, sem, fence)
	}
	if index >= uint32(len(sc.AppImages)) {
		return 0, errors.Errorf("Acquired image %d of %d", index, len(sc.AppImages))
	}
	slot := sc.NextSwapchainImage
	if err := p.wait(ctx, dev, sc.Fences[slot]); err != nil {
		return 0, errors.Wrapf(err, "Ring slot %d", slot)
	}
	if err := p.driver.ResetFences(ctx, dev, sc.Fences[slot:slot+1]); err != nil {
		return 0, err
	}
	sc.NextSwapchainImage = (slot + 1) % uint32(len(sc.Fences))
	if !api.Handle(sem).IsNull() || !api.Handle(fence).IsNull() {
		submit := api.SubmitInfo{}
		if !api.Handle(sem).IsNull() {
			submit.SignalSemaphores = []api.Semaphore{sem}
		}
		if err := p.driver.QueueSubmit(ctx, sc.Queue, []api.SubmitInfo{submit}, fence); err != nil {
			return 0, err
		}
	}
	return index, nil
}

// Slot returns the ring slot the next acquire will take.
func (p *Presenter) Slot(rec *tracker.Record) uint32 {
	return rec.Payload.(*tracker.SwapchainReplay).NextSwapchainImage
}

func (p *Presenter) wait(ctx context.Context, dev api.Device, fence api.Fence) error {
	err := p.driver.WaitForFences(ctx, dev, []api.Fence{fence}, true, p.opts.FenceTimeout)
	if errors.Cause(err) == api.ErrTimeout {
		return errors.Wrapf(barrier.ErrTimeout, "Fence not signaled after %v", p.opts.FenceTimeout)
	}
	return err
}

// Present stands in for presenting on queue. In virtual mode the presented
// image is copied into the next stored ring slot.
func (p *Presenter) Present(ctx context.Context, queue api.Queue, dev api.Device, rec *tracker.Record, info api.PresentInfo) error {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	sc := rec.Payload.(*tracker.SwapchainReplay)
	if !sc.Initialized {
		info.Swapchain = api.Swapchain(rec.Handle)
		if err := p.driver.QueuePresent(ctx, queue, info); err != nil {
			return err
		}
		sc.Presents++
		return nil
	}
	if info.ImageIndex >= uint32(len(sc.AppImages)) {
		return errors.Errorf("Presented image %d of %d", info.ImageIndex, len(sc.AppImages))
	}
	slot := sc.NextStoredImage
	cb := sc.CommandBuffers[slot]
	if err := p.driver.BeginCommandBuffer(ctx, cb); err != nil {
		return err
	}
	region := api.ImageCopy{Extent: api.Extent3D{
		Width:  sc.Info.ImageExtent.Width,
		Height: sc.Info.ImageExtent.Height,
		Depth:  1,
	}}
	if err := p.driver.CmdCopyImage(ctx, cb, sc.AppImages[info.ImageIndex], sc.VirtualImages[slot], []api.ImageCopy{region}); err != nil {
		return err
	}
	if err := p.driver.EndCommandBuffer(ctx, cb); err != nil {
		return err
	}
	submit := api.SubmitInfo{
		WaitSemaphores:   append([]api.Semaphore(nil), info.WaitSemaphores...),
		CommandBuffers:   []api.CommandBuffer{cb},
		SignalSemaphores: []api.Semaphore{sc.Semaphore},
	}
	if sc.CopyPending {
		submit.WaitSemaphores = append(submit.WaitSemaphores, sc.Semaphore)
	}
	if err := p.driver.QueueSubmit(ctx, sc.Queue, []api.SubmitInfo{submit}, sc.Fences[slot]); err != nil {
		return err
	}
	sc.CopyPending = true
	sc.NextStoredImage = (slot + 1) % uint32(len(sc.VirtualImages))
	sc.Presents++
	return nil
}

// Teardown waits for the ring to drain and releases it.
func (p *Presenter) Teardown(ctx context.Context, dev api.Device, rec *tracker.Record) error {
	sc := rec.Payload.(*tracker.SwapchainReplay)
	if !sc.Initialized {
		return nil
	}
	if len(sc.Fences) > 0 {
		err := p.driver.WaitForFences(ctx, dev, sc.Fences, true, p.opts.FenceTimeout)
		if errors.Cause(err) == api.ErrTimeout {
			return errors.Wrap(barrier.ErrTimeout, "Draining virtual swapchain")
		}
		if err != nil {
			return err
		}
	}
	return p.release(ctx, dev, sc)
}

// release destroys whatever part of the ring exists.
func (p *Presenter) release(ctx context.Context, dev api.Device, sc *tracker.SwapchainReplay) error {
	var first error
	keep := func(err error) {
		if err != nil && first == nil {
			first = err
		}
	}
	for _, f := range sc.Fences {
		keep(p.driver.DestroyFence(ctx, dev, f))
	}
	for _, img := range sc.VirtualImages {
		keep(p.driver.DestroyImage(ctx, dev, img))
	}
	for _, mem := range sc.VirtualMemory {
		keep(p.driver.FreeMemory(ctx, dev, mem))
	}
	if sc.CommandPool != 0 {
		keep(p.driver.DestroyCommandPool(ctx, dev, sc.CommandPool))
	}
	if sc.Semaphore != 0 {
		keep(p.driver.DestroySemaphore(ctx, dev, sc.Semaphore))
	}
	sc.Fences, sc.VirtualImages, sc.VirtualMemory, sc.CommandBuffers = nil, nil, nil, nil
	sc.CommandPool, sc.Semaphore = 0, 0
	sc.Initialized = false
	return first
}
