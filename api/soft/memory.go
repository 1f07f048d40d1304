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

	"github.com/andrew-lunarg/lavatube/api"
	"github.com/pkg/errors"
)

type memory struct {
	data   []byte
	props  api.MemoryPropertyFlags
	mapped bool
}

type buffer struct {
	info   api.BufferCreateInfo
	mem    *memory
	offset uint64
}

type image struct {
	info   api.ImageCreateInfo
	mem    *memory
	offset uint64
}

// bytes returns the image's backing storage.
func (i *image) bytes() []byte {
	size := i.info.Texels() * i.info.Format.BytesPerTexel()
	return i.mem.data[i.offset : i.offset+size]
}

func (d *Driver) AllocateMemory(ctx context.Context, dev api.Device, info api.MemoryAllocateInfo) (api.DeviceMemory, error) {
	if _, err := lookup[device](d, api.Handle(dev)); err != nil {
		return 0, err
	}
	if info.AllocationSize == 0 || info.AllocationSize == api.WholeSize {
		return 0, errors.Wrapf(api.ErrOutOfDeviceMemory, "Allocation size %d", info.AllocationSize)
	}
	return api.DeviceMemory(d.add(&memory{data: make([]byte, info.AllocationSize), props: info.Properties})), nil
}

func (d *Driver) FreeMemory(ctx context.Context, dev api.Device, h api.DeviceMemory) error {
	_, err := destroy[memory](d, api.Handle(h))
	return err
}

func (d *Driver) MapMemory(ctx context.Context, dev api.Device, h api.DeviceMemory, offset, size uint64) ([]byte, error) {
	m, err := lookup[memory](d, api.Handle(h))
	if err != nil {
		return nil, err
	}
	if m.props&api.MemoryPropertyHostVisible == 0 {
		return nil, errors.Wrap(api.ErrMemoryMapFailed, "Memory is not host visible")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if m.mapped {
		return nil, errors.Wrap(api.ErrMemoryMapFailed, "Memory is already mapped")
	}
	total := uint64(len(m.data))
	if size == api.WholeSize {
		if offset > total {
			return nil, errors.Wrapf(api.ErrMemoryMapFailed, "Offset %d beyond allocation of %d", offset, total)
		}
		size = total - offset
	}
	if offset+size > total || offset+size < offset {
		return nil, errors.Wrapf(api.ErrMemoryMapFailed, "Range [%d,+%d) beyond allocation of %d", offset, size, total)
	}
	m.mapped = true
	return m.data[offset : offset+size : offset+size], nil
}

func (d *Driver) UnmapMemory(ctx context.Context, dev api.Device, h api.DeviceMemory) error {
	m, err := lookup[memory](d, api.Handle(h))
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if !m.mapped {
		return errors.Wrap(api.ErrBadState, "Memory is not mapped")
	}
	m.mapped = false
	return nil
}

func (d *Driver) FlushMappedMemoryRanges(ctx context.Context, dev api.Device, ranges []api.MappedMemoryRange) error {
	for _, r := range ranges {
		m, err := lookup[memory](d, api.Handle(r.Memory))
		if err != nil {
			return err
		}
		if r.Size != api.WholeSize && r.Offset+r.Size > uint64(len(m.data)) {
			return errors.Wrapf(api.ErrBadState, "Flush range [%d,+%d) beyond allocation", r.Offset, r.Size)
		}
	}
	return nil
}

func (d *Driver) CreateBuffer(ctx context.Context, dev api.Device, info api.BufferCreateInfo) (api.Buffer, error) {
	if info.Size == 0 {
		return 0, errors.Wrap(api.ErrBadState, "Buffer size is zero")
	}
	return api.Buffer(d.add(&buffer{info: info})), nil
}

func (d *Driver) DestroyBuffer(ctx context.Context, dev api.Device, h api.Buffer) error {
	_, err := destroy[buffer](d, api.Handle(h))
	return err
}

func (d *Driver) GetBufferMemoryRequirements(ctx context.Context, dev api.Device, h api.Buffer) (api.MemoryRequirements, error) {
	b, err := lookup[buffer](d, api.Handle(h))
	if err != nil {
		return api.MemoryRequirements{}, err
	}
	return api.MemoryRequirements{
		Size:           align(b.info.Size, bufferAlignment),
		Alignment:      bufferAlignment,
		MemoryTypeBits: memoryTypeBits,
	}, nil
}

func (d *Driver) BindBufferMemory(ctx context.Context, dev api.Device, h api.Buffer, mh api.DeviceMemory, offset uint64) error {
	b, err := lookup[buffer](d, api.Handle(h))
	if err != nil {
		return err
	}
	m, err := lookup[memory](d, api.Handle(mh))
	if err != nil {
		return err
	}
	if offset%bufferAlignment != 0 || offset+b.info.Size > uint64(len(m.data)) {
		return errors.Wrapf(api.ErrBadState, "Cannot bind %d bytes at offset %d of %d", b.info.Size, offset, len(m.data))
	}
	b.mem, b.offset = m, offset
	return nil
}

func (d *Driver) CreateImage(ctx context.Context, dev api.Device, info api.ImageCreateInfo) (api.Image, error) {
	if info.Format.BytesPerTexel() == 0 {
		return 0, errors.Wrapf(api.ErrUnsupported, "Image format %d", info.Format)
	}
	if info.Texels() == 0 {
		return 0, errors.Wrap(api.ErrBadState, "Image extent is empty")
	}
	return api.Image(d.add(&image{info: info})), nil
}

func (d *Driver) DestroyImage(ctx context.Context, dev api.Device, h api.Image) error {
	_, err := destroy[image](d, api.Handle(h))
	return err
}

func (d *Driver) GetImageMemoryRequirements(ctx context.Context, dev api.Device, h api.Image) (api.MemoryRequirements, error) {
	i, err := lookup[image](d, api.Handle(h))
	if err != nil {
		return api.MemoryRequirements{}, err
	}
	return api.MemoryRequirements{
		Size:           align(i.info.Texels()*i.info.Format.BytesPerTexel(), imageAlignment),
		Alignment:      imageAlignment,
		MemoryTypeBits: memoryTypeBits,
	}, nil
}

func (d *Driver) BindImageMemory(ctx context.Context, dev api.Device, h api.Image, mh api.DeviceMemory, offset uint64) error {
	i, err := lookup[image](d, api.Handle(h))
	if err != nil {
		return err
	}
	m, err := lookup[memory](d, api.Handle(mh))
	if err != nil {
		return err
	}
	size := i.info.Texels() * i.info.Format.BytesPerTexel()
	if offset%imageAlignment != 0 || offset+size > uint64(len(m.data)) {
		return errors.Wrapf(api.ErrBadState, "Cannot bind %d bytes at offset %d of %d", size, offset, len(m.data))
	}
	i.mem, i.offset = m, offset
	return nil
}

type imageView struct{ info api.ImageViewCreateInfo }
type bufferView struct{ info api.BufferViewCreateInfo }

func (d *Driver) CreateImageView(ctx context.Context, dev api.Device, info api.ImageViewCreateInfo) (api.ImageView, error) {
	if _, err := lookup[image](d, api.Handle(info.Image)); err != nil {
		return 0, err
	}
	return api.ImageView(d.add(&imageView{info})), nil
}

func (d *Driver) DestroyImageView(ctx context.Context, dev api.Device, h api.ImageView) error {
	_, err := destroy[imageView](d, api.Handle(h))
	return err
}

func (d *Driver) CreateBufferView(ctx context.Context, dev api.Device, info api.BufferViewCreateInfo) (api.BufferView, error) {
	if _, err := lookup[buffer](d, api.Handle(info.Buffer)); err != nil {
		return 0, err
	}
	return api.BufferView(d.add(&bufferView{info})), nil
}

func (d *Driver) DestroyBufferView(ctx context.Context, dev api.Device, h api.BufferView) error {
	_, err := destroy[bufferView](d, api.Handle(h))
	return err
}

type renderPass struct{ info api.RenderPassCreateInfo }
type framebuffer struct{ info api.FramebufferCreateInfo }

func (d *Driver) CreateRenderPass(ctx context.Context, dev api.Device, info api.RenderPassCreateInfo) (api.RenderPass, error) {
	return api.RenderPass(d.add(&renderPass{info})), nil
}

func (d *Driver) DestroyRenderPass(ctx context.Context, dev api.Device, h api.RenderPass) error {
	_, err := destroy[renderPass](d, api.Handle(h))
	return err
}

func (d *Driver) CreateFramebuffer(ctx context.Context, dev api.Device, info api.FramebufferCreateInfo) (api.Framebuffer, error) {
	if _, err := lookup[renderPass](d, api.Handle(info.RenderPass)); err != nil {
		return 0, err
	}
	for _, v := range info.Attachments {
		if _, err := lookup[imageView](d, api.Handle(v)); err != nil {
			return 0, err
		}
	}
	return api.Framebuffer(d.add(&framebuffer{info})), nil
}

func (d *Driver) DestroyFramebuffer(ctx context.Context, dev api.Device, h api.Framebuffer) error {
	_, err := destroy[framebuffer](d, api.Handle(h))
	return err
}

type pipeline struct{ info api.PipelineCreateInfo }

func (d *Driver) CreatePipeline(ctx context.Context, dev api.Device, info api.PipelineCreateInfo) (api.Pipeline, error) {
	if !info.BindPoint.Valid() {
		return 0, errors.Wrapf(api.ErrBadState, "Pipeline bind point %d", info.BindPoint)
	}
	if info.BindPoint == api.PipelineBindPointGraphics {
		if _, err := lookup[renderPass](d, api.Handle(info.RenderPass)); err != nil {
			return 0, err
		}
	}
	return api.Pipeline(d.add(&pipeline{info})), nil
}

func (d *Driver) DestroyPipeline(ctx context.Context, dev api.Device, h api.Pipeline) error {
	_, err := destroy[pipeline](d, api.Handle(h))
	return err
}
