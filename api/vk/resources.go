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

//go:build cgo

package vk

import (
	"context"
	"unsafe"

	"github.com/andrew-lunarg/lavatube/api"
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

func (d *Driver) AllocateMemory(ctx context.Context, h api.Device, info api.MemoryAllocateInfo) (api.DeviceMemory, error) {
	dev, err := lookup[device](d, api.Handle(h))
	if err != nil {
		return 0, err
	}
	index, err := d.memoryType(^uint32(0), info.Properties)
	if err != nil {
		return 0, err
	}
	ai := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  vk.DeviceSize(info.AllocationSize),
		MemoryTypeIndex: index,
	}
	m := &memory{size: info.AllocationSize}
	if err := check(vk.AllocateMemory(dev.vk, &ai, nil, &m.vk)); err != nil {
		return 0, errors.Wrap(err, "vkAllocateMemory")
	}
	return api.DeviceMemory(d.add(m)), nil
}

func (d *Driver) FreeMemory(ctx context.Context, h api.Device, mem api.DeviceMemory) error {
	dev, err := lookup[device](d, api.Handle(h))
	if err != nil {
		return err
	}
	m, err := destroy[memory](d, api.Handle(mem))
	if m != nil {
		vk.FreeMemory(dev.vk, m.vk, nil)
	}
	return err
}

func (d *Driver) MapMemory(ctx context.Context, h api.Device, mem api.DeviceMemory, offset, size uint64) ([]byte, error) {
	dev, err := lookup[device](d, api.Handle(h))
	if err != nil {
		return nil, err
	}
	m, err := lookup[memory](d, api.Handle(mem))
	if err != nil {
		return nil, err
	}
	if offset > m.size {
		return nil, errors.Wrapf(api.ErrMemoryMapFailed, "Offset %d beyond %d bytes", offset, m.size)
	}
	if size == api.WholeSize {
		size = m.size - offset
	}
	var ptr unsafe.Pointer
	if err := check(vk.MapMemory(dev.vk, m.vk, vk.DeviceSize(offset), vk.DeviceSize(size), 0, &ptr)); err != nil {
		return nil, errors.Wrap(err, "vkMapMemory")
	}
	return unsafe.Slice((*byte)(ptr), size), nil
}

func (d *Driver) UnmapMemory(ctx context.Context, h api.Device, mem api.DeviceMemory) error {
	dev, err := lookup[device](d, api.Handle(h))
	if err != nil {
		return err
	}
	m, err := lookup[memory](d, api.Handle(mem))
	if err != nil {
		return err
	}
	vk.UnmapMemory(dev.vk, m.vk)
	return nil
}

func (d *Driver) FlushMappedMemoryRanges(ctx context.Context, h api.Device, ranges []api.MappedMemoryRange) error {
	dev, err := lookup[device](d, api.Handle(h))
	if err != nil {
		return err
	}
	out := make([]vk.MappedMemoryRange, len(ranges))
	for i, r := range ranges {
		m, err := lookup[memory](d, api.Handle(r.Memory))
		if err != nil {
			return err
		}
		size := vk.DeviceSize(r.Size)
		if r.Size == api.WholeSize {
			size = vk.DeviceSize(vk.WholeSize)
		}
		out[i] = vk.MappedMemoryRange{
			SType:  vk.StructureTypeMappedMemoryRange,
			Memory: m.vk,
			Offset: vk.DeviceSize(r.Offset),
			Size:   size,
		}
	}
	return check(vk.FlushMappedMemoryRanges(dev.vk, uint32(len(out)), out))
}

func requirements(req vk.MemoryRequirements) api.MemoryRequirements {
	req.Deref()
	return api.MemoryRequirements{
		Size:           uint64(req.Size),
		Alignment:      uint64(req.Alignment),
		MemoryTypeBits: req.MemoryTypeBits,
	}
}

func (d *Driver) CreateBuffer(ctx context.Context, h api.Device, info api.BufferCreateInfo) (api.Buffer, error) {
	dev, err := lookup[device](d, api.Handle(h))
	if err != nil {
		return 0, err
	}
	ci := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Flags:       vk.BufferCreateFlags(info.Flags),
		Size:        vk.DeviceSize(info.Size),
		Usage:       vk.BufferUsageFlags(info.Usage),
		SharingMode: vk.SharingMode(info.SharingMode),
	}
	b := &buffer{}
	if err := check(vk.CreateBuffer(dev.vk, &ci, nil, &b.vk)); err != nil {
		return 0, errors.Wrap(err, "vkCreateBuffer")
	}
	return api.Buffer(d.add(b)), nil
}

func (d *Driver) DestroyBuffer(ctx context.Context, h api.Device, buf api.Buffer) error {
	dev, err := lookup[device](d, api.Handle(h))
	if err != nil {
		return err
	}
	b, err := destroy[buffer](d, api.Handle(buf))
	if b != nil {
		vk.DestroyBuffer(dev.vk, b.vk, nil)
	}
	return err
}

func (d *Driver) GetBufferMemoryRequirements(ctx context.Context, h api.Device, buf api.Buffer) (api.MemoryRequirements, error) {
	dev, err := lookup[device](d, api.Handle(h))
	if err != nil {
		return api.MemoryRequirements{}, err
	}
	b, err := lookup[buffer](d, api.Handle(buf))
	if err != nil {
		return api.MemoryRequirements{}, err
	}
	var req vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(dev.vk, b.vk, &req)
	return requirements(req), nil
}

func (d *Driver) BindBufferMemory(ctx context.Context, h api.Device, buf api.Buffer, mem api.DeviceMemory, offset uint64) error {
	dev, err := lookup[device](d, api.Handle(h))
	if err != nil {
		return err
	}
	b, err := lookup[buffer](d, api.Handle(buf))
	if err != nil {
		return err
	}
	m, err := lookup[memory](d, api.Handle(mem))
	if err != nil {
		return err
	}
	return check(vk.BindBufferMemory(dev.vk, b.vk, m.vk, vk.DeviceSize(offset)))
}

func (d *Driver) CreateImage(ctx context.Context, h api.Device, info api.ImageCreateInfo) (api.Image, error) {
	dev, err := lookup[device](d, api.Handle(h))
	if err != nil {
		return 0, err
	}
	samples := info.Samples
	if samples == 0 {
		samples = 1
	}
	ci := vk.ImageCreateInfo{
		SType:         vk.StructureTypeImageCreateInfo,
		Flags:         vk.ImageCreateFlags(info.Flags),
		ImageType:     vk.ImageType(info.ImageType),
		Format:        vk.Format(info.Format),
		Extent:        vk.Extent3D{Width: info.Extent.Width, Height: info.Extent.Height, Depth: info.Extent.Depth},
		MipLevels:     info.MipLevels,
		ArrayLayers:   info.ArrayLayers,
		Samples:       vk.SampleCountFlagBits(samples),
		Tiling:        vk.ImageTiling(info.Tiling),
		Usage:         vk.ImageUsageFlags(info.Usage),
		SharingMode:   vk.SharingMode(info.SharingMode),
		InitialLayout: vk.ImageLayout(info.InitialLayout),
	}
	img := &image{}
	if err := check(vk.CreateImage(dev.vk, &ci, nil, &img.vk)); err != nil {
		return 0, errors.Wrap(err, "vkCreateImage")
	}
	return api.Image(d.add(img)), nil
}

func (d *Driver) DestroyImage(ctx context.Context, h api.Device, handle api.Image) error {
	dev, err := lookup[device](d, api.Handle(h))
	if err != nil {
		return err
	}
	img, err := destroy[image](d, api.Handle(handle))
	if img != nil {
		vk.DestroyImage(dev.vk, img.vk, nil)
	}
	return err
}

func (d *Driver) GetImageMemoryRequirements(ctx context.Context, h api.Device, handle api.Image) (api.MemoryRequirements, error) {
	dev, err := lookup[device](d, api.Handle(h))
	if err != nil {
		return api.MemoryRequirements{}, err
	}
	img, err := lookup[image](d, api.Handle(handle))
	if err != nil {
		return api.MemoryRequirements{}, err
	}
	var req vk.MemoryRequirements
	vk.GetImageMemoryRequirements(dev.vk, img.vk, &req)
	return requirements(req), nil
}

func (d *Driver) BindImageMemory(ctx context.Context, h api.Device, handle api.Image, mem api.DeviceMemory, offset uint64) error {
	dev, err := lookup[device](d, api.Handle(h))
	if err != nil {
		return err
	}
	img, err := lookup[image](d, api.Handle(handle))
	if err != nil {
		return err
	}
	m, err := lookup[memory](d, api.Handle(mem))
	if err != nil {
		return err
	}
	return check(vk.BindImageMemory(dev.vk, img.vk, m.vk, vk.DeviceSize(offset)))
}

func (d *Driver) CreateImageView(ctx context.Context, h api.Device, info api.ImageViewCreateInfo) (api.ImageView, error) {
	dev, err := lookup[device](d, api.Handle(h))
	if err != nil {
		return 0, err
	}
	img, err := lookup[image](d, api.Handle(info.Image))
	if err != nil {
		return 0, err
	}
	ci := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    img.vk,
		ViewType: vk.ImageViewType2d,
		Format:   vk.Format(info.Format),
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
			BaseMipLevel:   info.BaseMipLevel,
			LevelCount:     info.LevelCount,
			BaseArrayLayer: info.BaseArrayLayer,
			LayerCount:     info.LayerCount,
		},
	}
	v := &imageView{}
	if err := check(vk.CreateImageView(dev.vk, &ci, nil, &v.vk)); err != nil {
		return 0, errors.Wrap(err, "vkCreateImageView")
	}
	return api.ImageView(d.add(v)), nil
}

func (d *Driver) DestroyImageView(ctx context.Context, h api.Device, view api.ImageView) error {
	dev, err := lookup[device](d, api.Handle(h))
	if err != nil {
		return err
	}
	v, err := destroy[imageView](d, api.Handle(view))
	if v != nil {
		vk.DestroyImageView(dev.vk, v.vk, nil)
	}
	return err
}

func (d *Driver) CreateBufferView(ctx context.Context, h api.Device, info api.BufferViewCreateInfo) (api.BufferView, error) {
	dev, err := lookup[device](d, api.Handle(h))
	if err != nil {
		return 0, err
	}
	b, err := lookup[buffer](d, api.Handle(info.Buffer))
	if err != nil {
		return 0, err
	}
	size := vk.DeviceSize(info.Range)
	if info.Range == api.WholeSize {
		size = vk.DeviceSize(vk.WholeSize)
	}
	ci := vk.BufferViewCreateInfo{
		SType:  vk.StructureTypeBufferViewCreateInfo,
		Buffer: b.vk,
		Format: vk.Format(info.Format),
		Offset: vk.DeviceSize(info.Offset),
		Range:  size,
	}
	v := &bufferView{}
	if err := check(vk.CreateBufferView(dev.vk, &ci, nil, &v.vk)); err != nil {
		return 0, errors.Wrap(err, "vkCreateBufferView")
	}
	return api.BufferView(d.add(v)), nil
}

func (d *Driver) DestroyBufferView(ctx context.Context, h api.Device, view api.BufferView) error {
	dev, err := lookup[device](d, api.Handle(h))
	if err != nil {
		return err
	}
	v, err := destroy[bufferView](d, api.Handle(view))
	if v != nil {
		vk.DestroyBufferView(dev.vk, v.vk, nil)
	}
	return err
}

// CreateRenderPass creates a single subpass writing every attachment as a
// color attachment.
func (d *Driver) CreateRenderPass(ctx context.Context, h api.Device, info api.RenderPassCreateInfo) (api.RenderPass, error) {
	dev, err := lookup[device](d, api.Handle(h))
	if err != nil {
		return 0, err
	}
	attachments := make([]vk.AttachmentDescription, len(info.Attachments))
	refs := make([]vk.AttachmentReference, len(info.Attachments))
	for i, f := range info.Attachments {
		attachments[i] = vk.AttachmentDescription{
			Format:         vk.Format(f),
			Samples:        vk.SampleCount1Bit,
			LoadOp:         vk.AttachmentLoadOpLoad,
			StoreOp:        vk.AttachmentStoreOpStore,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  vk.ImageLayoutGeneral,
			FinalLayout:    vk.ImageLayoutGeneral,
		}
		refs[i] = vk.AttachmentReference{Attachment: uint32(i), Layout: vk.ImageLayoutGeneral}
	}
	subpass := vk.SubpassDescription{
		PipelineBindPoint:    vk.PipelineBindPointGraphics,
		ColorAttachmentCount: uint32(len(refs)),
		PColorAttachments:    refs,
	}
	ci := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
	}
	rp := &renderPass{}
	if err := check(vk.CreateRenderPass(dev.vk, &ci, nil, &rp.vk)); err != nil {
		return 0, errors.Wrap(err, "vkCreateRenderPass")
	}
	return api.RenderPass(d.add(rp)), nil
}

func (d *Driver) DestroyRenderPass(ctx context.Context, h api.Device, handle api.RenderPass) error {
	dev, err := lookup[device](d, api.Handle(h))
	if err != nil {
		return err
	}
	rp, err := destroy[renderPass](d, api.Handle(handle))
	if rp != nil {
		vk.DestroyRenderPass(dev.vk, rp.vk, nil)
	}
	return err
}

func (d *Driver) CreateFramebuffer(ctx context.Context, h api.Device, info api.FramebufferCreateInfo) (api.Framebuffer, error) {
	dev, err := lookup[device](d, api.Handle(h))
	if err != nil {
		return 0, err
	}
	rp, err := lookup[renderPass](d, api.Handle(info.RenderPass))
	if err != nil {
		return 0, err
	}
	views := make([]vk.ImageView, len(info.Attachments))
	for i, a := range info.Attachments {
		v, err := lookup[imageView](d, api.Handle(a))
		if err != nil {
			return 0, err
		}
		views[i] = v.vk
	}
	layers := info.Layers
	if layers == 0 {
		layers = 1
	}
	ci := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      rp.vk,
		AttachmentCount: uint32(len(views)),
		PAttachments:    views,
		Width:           info.Width,
		Height:          info.Height,
		Layers:          layers,
	}
	fb := &framebuffer{}
	if err := check(vk.CreateFramebuffer(dev.vk, &ci, nil, &fb.vk)); err != nil {
		return 0, errors.Wrap(err, "vkCreateFramebuffer")
	}
	return api.Framebuffer(d.add(fb)), nil
}

func (d *Driver) DestroyFramebuffer(ctx context.Context, h api.Device, handle api.Framebuffer) error {
	dev, err := lookup[device](d, api.Handle(h))
	if err != nil {
		return err
	}
	fb, err := destroy[framebuffer](d, api.Handle(handle))
	if fb != nil {
		vk.DestroyFramebuffer(dev.vk, fb.vk, nil)
	}
	return err
}
