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

package soft

import (
	"context"
	"sync"
	"time"

	"github.com/andrew-lunarg/lavatube/api"
	"github.com/pkg/errors"
)

const minSwapchainImages = 2

type swapchain struct {
	mu        sync.Mutex
	info      api.SwapchainCreateInfo
	images    []api.Image
	memory    []api.DeviceMemory
	next      uint32
	presented uint64
}

func (d *Driver) CreateSwapchain(ctx context.Context, dev api.Device, info api.SwapchainCreateInfo) (api.Swapchain, error) {
	count := info.MinImageCount
	if count < minSwapchainImages {
		count = minSwapchainImages
	}
	sc := &swapchain{info: info}
	for i := uint32(0); i < count; i++ {
		img, err := d.CreateImage(ctx, dev, api.ImageCreateInfo{
			ImageType:   api.ImageType2D,
			Format:      info.ImageFormat,
			Extent:      api.Extent3D{Width: info.ImageExtent.Width, Height: info.ImageExtent.Height, Depth: 1},
			MipLevels:   1,
			ArrayLayers: 1,
			Samples:     1,
			Tiling:      api.ImageTilingOptimal,
			Usage:       info.ImageUsage,
		})
		if err != nil {
			return 0, err
		}
		req, _ := d.GetImageMemoryRequirements(ctx, dev, img)
		mem, err := d.AllocateMemory(ctx, dev, api.MemoryAllocateInfo{AllocationSize: req.Size, Properties: api.MemoryPropertyDeviceLocal})
		if err != nil {
			return 0, err
		}
		if err := d.BindImageMemory(ctx, dev, img, mem, 0); err != nil {
			return 0, err
		}
		sc.images = append(sc.images, img)
		sc.memory = append(sc.memory, mem)
	}
	return api.Swapchain(d.add(sc)), nil
}

func (d *Driver) DestroySwapchain(ctx context.Context, dev api.Device, h api.Swapchain) error {
	sc, err := destroy[swapchain](d, api.Handle(h))
	if err != nil || sc == nil {
		return err
	}
	for i := range sc.images {
		d.remove(api.Handle(sc.images[i]))
		d.remove(api.Handle(sc.memory[i]))
	}
	return nil
}

func (d *Driver) GetSwapchainImages(ctx context.Context, dev api.Device, h api.Swapchain) ([]api.Image, error) {
	sc, err := lookup[swapchain](d, api.Handle(h))
	if err != nil {
		return nil, err
	}
	return append([]api.Image(nil), sc.images...), nil
}

// AcquireNextImage hands out the images round robin. Headless images are
// never held by a display, so the semaphore and fence signal immediately.
func (d *Driver) AcquireNextImage(ctx context.Context, dev api.Device, h api.Swapchain, timeout time.Duration, sem api.Semaphore, fh api.Fence) (uint32, error) {
	sc, err := lookup[swapchain](d, api.Handle(h))
	if err != nil {
		return 0, err
	}
	if !api.Handle(sem).IsNull() {
		s, err := lookup[semaphore](d, api.Handle(sem))
		if err != nil {
			return 0, err
		}
		s.signal()
	}
	if !api.Handle(fh).IsNull() {
		f, err := lookup[fence](d, api.Handle(fh))
		if err != nil {
			return 0, err
		}
		f.signal()
	}
	sc.mu.Lock()
	defer sc.mu.Unlock()
	idx := sc.next
	sc.next = (sc.next + 1) % uint32(len(sc.images))
	return idx, nil
}

func (d *Driver) QueuePresent(ctx context.Context, qh api.Queue, info api.PresentInfo) error {
	q, err := lookup[queue](d, api.Handle(qh))
	if err != nil {
		return err
	}
	sc, err := lookup[swapchain](d, api.Handle(info.Swapchain))
	if err != nil {
		return err
	}
	if info.ImageIndex >= uint32(len(sc.images)) {
		return errors.Wrapf(api.ErrBadState, "Present of image %d of %d", info.ImageIndex, len(sc.images))
	}
	j := job{}
	for _, sh := range info.WaitSemaphores {
		s, err := lookup[semaphore](d, api.Handle(sh))
		if err != nil {
			return err
		}
		j.ops = append(j.ops, s.consume)
	}
	j.ops = append(j.ops, func() error {
		sc.mu.Lock()
		sc.presented++
		sc.mu.Unlock()
		return nil
	})
	return q.submit(j)
}

// Presented returns the number of presents executed on the swapchain.
func (d *Driver) Presented(h api.Swapchain) uint64 {
	sc, err := lookup[swapchain](d, api.Handle(h))
	if err != nil {
		return 0
	}
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.presented
}

// ImageData returns a copy of the contents of a bound image, for tests and
// frame dumps.
func (d *Driver) ImageData(h api.Image) ([]byte, error) {
	i, err := d.boundImage(h)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), i.bytes()...), nil
}

// BufferData returns a copy of the contents of a bound buffer.
func (d *Driver) BufferData(h api.Buffer) ([]byte, error) {
	b, err := d.boundBuffer(h)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), b.mem.data[b.offset:b.offset+b.info.Size]...), nil
}
