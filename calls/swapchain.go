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
	"time"

	"github.com/andrew-lunarg/lavatube/api"
	"github.com/andrew-lunarg/lavatube/core/log"
	"github.com/andrew-lunarg/lavatube/replay"
	"github.com/andrew-lunarg/lavatube/tracker"
	"github.com/pkg/errors"
)

func (t *Thread) CreateSwapchain(ctx context.Context, dev api.Device, info api.SwapchainCreateInfo) (api.Swapchain, error) {
	drec, err := t.get(api.ObjectDevice, api.Handle(dev))
	if err != nil {
		return 0, err
	}
	sc, err := t.d.CreateSwapchain(ctx, dev, info)
	if err != nil {
		return 0, err
	}
	c := t.begin(IDCreateSwapchain)
	c.Use(drec)
	c.Ref(drec)
	c.Args().Uint32(info.MinImageCount)
	c.Args().Uint32(uint32(info.ImageFormat))
	c.Args().Uint32(info.ImageExtent.Width)
	c.Args().Uint32(info.ImageExtent.Height)
	c.Args().Uint32(uint32(info.ImageUsage))
	c.Args().Uint32(uint32(info.PresentMode))
	c.Ref(c.Create(api.ObjectSwapchain, api.Handle(sc), &tracker.SwapchainCapture{
		Swapchain: tracker.Swapchain{Device: drec.Ref(), Info: info},
		Queue:     tracker.NoRef,
	}))
	return sc, c.End(ctx)
}

func replayCreateSwapchain(ctx context.Context, c *replay.Call) error {
	drec, dev, err := device(c)
	if err != nil {
		return err
	}
	info := api.SwapchainCreateInfo{
		MinImageCount: c.Args.Uint32(),
		ImageFormat:   api.Format(c.Args.Uint32()),
		ImageExtent:   api.Extent2D{Width: c.Args.Uint32(), Height: c.Args.Uint32()},
		ImageUsage:    api.ImageUsageFlags(c.Args.Uint32()),
		PresentMode:   api.PresentMode(c.Args.Uint32()),
	}
	index := c.Index()
	if err := decoded(c); err != nil {
		return err
	}
	sc, err := c.Driver().CreateSwapchain(ctx, dev, info)
	if err != nil {
		return err
	}
	_, err = c.Create(api.ObjectSwapchain, index, api.Handle(sc), &tracker.SwapchainReplay{
		Swapchain: tracker.Swapchain{Device: drec.Ref(), Info: info},
	})
	return err
}

func swapchainOf(rec *tracker.Record) *tracker.Swapchain {
	switch p := rec.Payload.(type) {
	case *tracker.SwapchainCapture:
		return &p.Swapchain
	case *tracker.SwapchainReplay:
		return &p.Swapchain
	}
	return nil
}

// DestroySwapchain also retires the swapchain's images.
func (t *Thread) DestroySwapchain(ctx context.Context, dev api.Device, sc api.Swapchain) error {
	return t.destroy(ctx, IDDestroySwapchain, api.ObjectSwapchain, dev, api.Handle(sc), func() error {
		if err := t.d.DestroySwapchain(ctx, dev, sc); err != nil {
			return err
		}
		rec, err := t.get(api.ObjectSwapchain, api.Handle(sc))
		if err != nil {
			return err
		}
		for _, ref := range swapchainOf(rec).Images {
			if err := t.reg.Destroy(ref.Kind, ref.Index, t.frame()); err != nil {
				return err
			}
		}
		return nil
	})
}

func replayDestroySwapchain(ctx context.Context, c *replay.Call) error {
	_, dev, err := device(c)
	if err != nil {
		return err
	}
	rec, err := object(c, api.ObjectSwapchain)
	if err != nil {
		return err
	}
	if err := c.Reader().Presenter.Teardown(ctx, dev, rec); err != nil {
		return err
	}
	if err := c.Driver().DestroySwapchain(ctx, dev, handle[api.Swapchain](rec)); err != nil {
		return err
	}
	for _, ref := range swapchainOf(rec).Images {
		if err := c.Registry().Destroy(ref.Kind, ref.Index, c.Frame()); err != nil {
			return err
		}
	}
	return c.Destroy(rec)
}

// swapchainImage returns the payload describing an image owned by a
// swapchain.
func swapchainImage(drec *tracker.Record, info api.SwapchainCreateInfo) *tracker.Image {
	ii := api.ImageCreateInfo{
		ImageType:   api.ImageType2D,
		Format:      info.ImageFormat,
		Extent:      api.Extent3D{Width: info.ImageExtent.Width, Height: info.ImageExtent.Height, Depth: 1},
		MipLevels:   1,
		ArrayLayers: 1,
		Samples:     1,
		Tiling:      api.ImageTilingOptimal,
		Usage:       info.ImageUsage,
		SharingMode: api.SharingModeExclusive,
	}
	return &tracker.Image{
		Object:    tracker.Object{Device: drec.Ref(), Memory: tracker.NoRef, Size: ii.Texels() * ii.Format.BytesPerTexel()},
		Info:      ii,
		Swapchain: true,
	}
}

// GetSwapchainImages registers the swapchain's images the first time they
// are queried.
func (t *Thread) GetSwapchainImages(ctx context.Context, dev api.Device, sc api.Swapchain) ([]api.Image, error) {
	drec, err := t.get(api.ObjectDevice, api.Handle(dev))
	if err != nil {
		return nil, err
	}
	screc, err := t.get(api.ObjectSwapchain, api.Handle(sc))
	if err != nil {
		return nil, err
	}
	images, err := t.d.GetSwapchainImages(ctx, dev, sc)
	if err != nil {
		return nil, err
	}
	s := swapchainOf(screc)
	c := t.begin(IDGetSwapchainImages)
	c.Use(drec)
	c.Mutate(screc)
	c.Ref(drec)
	c.Ref(screc)
	c.Args().Uint32(uint32(len(images)))
	s.Images = s.Images[:0]
	for _, img := range images {
		rec, err := t.reg.Resolve(api.ObjectImage, api.Handle(img))
		if err != nil {
			rec = c.Create(api.ObjectImage, api.Handle(img), swapchainImage(drec, s.Info))
		}
		s.Images = append(s.Images, rec.Ref())
		c.Ref(rec)
	}
	return images, c.End(ctx)
}

func replayGetSwapchainImages(ctx context.Context, c *replay.Call) error {
	drec, dev, err := device(c)
	if err != nil {
		return err
	}
	screc, err := object(c, api.ObjectSwapchain)
	if err != nil {
		return err
	}
	indices := make([]uint32, count(c))
	for i := range indices {
		indices[i] = c.Index()
	}
	if err := decoded(c); err != nil {
		return err
	}
	images, err := c.Driver().GetSwapchainImages(ctx, dev, handle[api.Swapchain](screc))
	if err != nil {
		return err
	}
	if len(images) != len(indices) {
		return errors.Errorf("Swapchain has %d images, trace has %d", len(images), len(indices))
	}
	sc := screc.Payload.(*tracker.SwapchainReplay)
	sc.AppImages = images
	sc.Images = sc.Images[:0]
	for i, img := range images {
		rec := c.Registry().Peek(api.ObjectImage, indices[i])
		if rec == nil || rec.Destroyed() || rec.Handle != api.Handle(img) {
			if rec, err = c.Create(api.ObjectImage, indices[i], api.Handle(img), swapchainImage(drec, sc.Info)); err != nil {
				return err
			}
		}
		sc.Images = append(sc.Images, rec.Ref())
	}
	return c.Mutate(screc)
}

func (t *Thread) AcquireNextImage(ctx context.Context, dev api.Device, sc api.Swapchain, timeout time.Duration, sem api.Semaphore, fence api.Fence) (uint32, error) {
	drec, err := t.get(api.ObjectDevice, api.Handle(dev))
	if err != nil {
		return 0, err
	}
	screc, err := t.get(api.ObjectSwapchain, api.Handle(sc))
	if err != nil {
		return 0, err
	}
	srec, err := t.opt(api.ObjectSemaphore, api.Handle(sem))
	if err != nil {
		return 0, err
	}
	frec, err := t.opt(api.ObjectFence, api.Handle(fence))
	if err != nil {
		return 0, err
	}
	index, err := t.d.AcquireNextImage(ctx, dev, sc, timeout, sem, fence)
	if err != nil {
		return 0, err
	}
	c := t.begin(IDAcquireNextImage)
	c.Use(drec)
	c.Mutate(screc, srec, frec)
	c.Ref(drec)
	c.Ref(screc)
	c.Args().Int64(int64(timeout))
	c.Ref(srec)
	c.Ref(frec)
	c.Args().Uint32(index)
	return index, c.End(ctx)
}

// presentQueue returns a queue of the device to run a swapchain's ring on.
func presentQueue(ctx context.Context, c *replay.Call, drec *tracker.Record) (api.Queue, error) {
	if qs := owned(c.Registry(), api.ObjectQueue, drec); len(qs) > 0 {
		return handle[api.Queue](qs[0]), nil
	}
	return c.Driver().GetDeviceQueue(ctx, handle[api.Device](drec), 0, 0)
}

// replayAcquireNextImage builds the virtual ring on first use and hands out
// the image the application was given.
func replayAcquireNextImage(ctx context.Context, c *replay.Call) error {
	drec, dev, err := device(c)
	if err != nil {
		return err
	}
	screc, err := object(c, api.ObjectSwapchain)
	if err != nil {
		return err
	}
	c.Args.Int64()
	srec, err := c.Get(api.ObjectSemaphore)
	if err != nil {
		return err
	}
	frec, err := c.Get(api.ObjectFence)
	if err != nil {
		return err
	}
	want := c.Args.Uint32()
	if err := decoded(c); err != nil {
		return err
	}
	p := c.Reader().Presenter
	if p.Virtual() {
		q, err := presentQueue(ctx, c, drec)
		if err != nil {
			return err
		}
		if err := p.Init(ctx, dev, q, screc); err != nil {
			return err
		}
	}
	got, err := p.Acquire(ctx, dev, screc, want, handle[api.Semaphore](srec), handle[api.Fence](frec))
	if err != nil {
		return err
	}
	if got != want {
		return errors.Errorf("Acquired image %d, trace expects %d", got, want)
	}
	return c.Mutate(screc, srec, frec)
}

// QueuePresent ends the frame.
func (t *Thread) QueuePresent(ctx context.Context, q api.Queue, info api.PresentInfo) error {
	qrec, err := t.get(api.ObjectQueue, api.Handle(q))
	if err != nil {
		return err
	}
	screc, err := t.get(api.ObjectSwapchain, api.Handle(info.Swapchain))
	if err != nil {
		return err
	}
	waits, err := all(t, api.ObjectSemaphore, info.WaitSemaphores)
	if err != nil {
		return err
	}
	if err := t.d.QueuePresent(ctx, q, info); err != nil {
		return err
	}
	c := t.begin(IDQueuePresent)
	c.Mutate(qrec, screc)
	c.Mutate(waits...)
	c.Ref(qrec)
	c.Ref(screc)
	c.Args().Uint32(info.ImageIndex)
	refs(c, waits)
	if p, ok := screc.Payload.(*tracker.SwapchainCapture); ok {
		p.Queue = qrec.Ref()
	}
	if err := c.End(ctx); err != nil {
		return err
	}
	return t.tracer.Writer.FrameEnd(ctx)
}

func replayQueuePresent(ctx context.Context, c *replay.Call) error {
	qrec, err := object(c, api.ObjectQueue)
	if err != nil {
		return err
	}
	screc, err := object(c, api.ObjectSwapchain)
	if err != nil {
		return err
	}
	index := c.Args.Uint32()
	waits, err := getAll(c, api.ObjectSemaphore)
	if err != nil {
		return err
	}
	_, dev, err := c.Reader().Device(swapchainOf(screc).Device.Index)
	if err != nil {
		return err
	}
	info := api.PresentInfo{
		WaitSemaphores: handles[api.Semaphore](waits),
		Swapchain:      handle[api.Swapchain](screc),
		ImageIndex:     index,
	}
	if err := c.Reader().Presenter.Present(ctx, handle[api.Queue](qrec), dev, screc, info); err != nil {
		return err
	}
	log.D(ctx, "Presented image %d of %v", index, screc.Ref())
	return c.Mutate(append([]*tracker.Record{qrec, screc}, waits...)...)
}
