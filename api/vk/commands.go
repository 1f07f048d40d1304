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
	"time"
	"unsafe"

	"github.com/andrew-lunarg/lavatube/api"
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

func (d *Driver) CreateCommandPool(ctx context.Context, h api.Device, info api.CommandPoolCreateInfo) (api.CommandPool, error) {
	dev, err := lookup[device](d, api.Handle(h))
	if err != nil {
		return 0, err
	}
	if int(info.QueueFamilyIndex) >= len(dev.families) {
		return 0, errors.Wrapf(api.ErrInvalidHandle, "Queue family %d", info.QueueFamilyIndex)
	}
	ci := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		Flags:            vk.CommandPoolCreateFlags(info.Flags) | vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
		QueueFamilyIndex: dev.families[info.QueueFamilyIndex],
	}
	p := &commandPool{}
	if err := check(vk.CreateCommandPool(dev.vk, &ci, nil, &p.vk)); err != nil {
		return 0, errors.Wrap(err, "vkCreateCommandPool")
	}
	return api.CommandPool(d.add(p)), nil
}

func (d *Driver) DestroyCommandPool(ctx context.Context, h api.Device, pool api.CommandPool) error {
	dev, err := lookup[device](d, api.Handle(h))
	if err != nil {
		return err
	}
	p, err := destroy[commandPool](d, api.Handle(pool))
	if p != nil {
		vk.DestroyCommandPool(dev.vk, p.vk, nil)
	}
	return err
}

func (d *Driver) AllocateCommandBuffers(ctx context.Context, h api.Device, info api.CommandBufferAllocateInfo) ([]api.CommandBuffer, error) {
	dev, err := lookup[device](d, api.Handle(h))
	if err != nil {
		return nil, err
	}
	p, err := lookup[commandPool](d, api.Handle(info.CommandPool))
	if err != nil {
		return nil, err
	}
	ai := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        p.vk,
		Level:              vk.CommandBufferLevel(info.Level),
		CommandBufferCount: info.Count,
	}
	cbs := make([]vk.CommandBuffer, info.Count)
	if err := check(vk.AllocateCommandBuffers(dev.vk, &ai, cbs)); err != nil {
		return nil, errors.Wrap(err, "vkAllocateCommandBuffers")
	}
	out := make([]api.CommandBuffer, len(cbs))
	for i, cb := range cbs {
		out[i] = api.CommandBuffer(d.add(&commandBuffer{vk: cb}))
	}
	return out, nil
}

func (d *Driver) FreeCommandBuffers(ctx context.Context, h api.Device, pool api.CommandPool, handles []api.CommandBuffer) error {
	dev, err := lookup[device](d, api.Handle(h))
	if err != nil {
		return err
	}
	p, err := lookup[commandPool](d, api.Handle(pool))
	if err != nil {
		return err
	}
	cbs := make([]vk.CommandBuffer, 0, len(handles))
	for _, cbh := range handles {
		cb, err := destroy[commandBuffer](d, api.Handle(cbh))
		if err != nil {
			return err
		}
		if cb != nil {
			cbs = append(cbs, cb.vk)
		}
	}
	if len(cbs) > 0 {
		vk.FreeCommandBuffers(dev.vk, p.vk, uint32(len(cbs)), cbs)
	}
	return nil
}

func (d *Driver) BeginCommandBuffer(ctx context.Context, h api.CommandBuffer) error {
	cb, err := lookup[commandBuffer](d, api.Handle(h))
	if err != nil {
		return err
	}
	info := vk.CommandBufferBeginInfo{SType: vk.StructureTypeCommandBufferBeginInfo}
	return check(vk.BeginCommandBuffer(cb.vk, &info))
}

func (d *Driver) EndCommandBuffer(ctx context.Context, h api.CommandBuffer) error {
	cb, err := lookup[commandBuffer](d, api.Handle(h))
	if err != nil {
		return err
	}
	return check(vk.EndCommandBuffer(cb.vk))
}

func (d *Driver) CmdCopyBuffer(ctx context.Context, h api.CommandBuffer, src, dst api.Buffer, regions []api.BufferCopy) error {
	cb, err := lookup[commandBuffer](d, api.Handle(h))
	if err != nil {
		return err
	}
	s, err := lookup[buffer](d, api.Handle(src))
	if err != nil {
		return err
	}
	t, err := lookup[buffer](d, api.Handle(dst))
	if err != nil {
		return err
	}
	out := make([]vk.BufferCopy, len(regions))
	for i, r := range regions {
		out[i] = vk.BufferCopy{
			SrcOffset: vk.DeviceSize(r.SrcOffset),
			DstOffset: vk.DeviceSize(r.DstOffset),
			Size:      vk.DeviceSize(r.Size),
		}
	}
	vk.CmdCopyBuffer(cb.vk, s.vk, t.vk, uint32(len(out)), out)
	return nil
}

func (d *Driver) CmdUpdateBuffer(ctx context.Context, h api.CommandBuffer, dst api.Buffer, offset uint64, data []byte) error {
	cb, err := lookup[commandBuffer](d, api.Handle(h))
	if err != nil {
		return err
	}
	t, err := lookup[buffer](d, api.Handle(dst))
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	vk.CmdUpdateBuffer(cb.vk, t.vk, vk.DeviceSize(offset), vk.DeviceSize(len(data)), (*uint32)(unsafe.Pointer(&data[0])))
	return nil
}

// CmdCopyImage copies between images in the general layout.
func (d *Driver) CmdCopyImage(ctx context.Context, h api.CommandBuffer, src, dst api.Image, regions []api.ImageCopy) error {
	cb, err := lookup[commandBuffer](d, api.Handle(h))
	if err != nil {
		return err
	}
	s, err := lookup[image](d, api.Handle(src))
	if err != nil {
		return err
	}
	t, err := lookup[image](d, api.Handle(dst))
	if err != nil {
		return err
	}
	layers := vk.ImageSubresourceLayers{
		AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
		LayerCount: 1,
	}
	out := make([]vk.ImageCopy, len(regions))
	for i, r := range regions {
		out[i] = vk.ImageCopy{
			SrcSubresource: layers,
			SrcOffset:      vk.Offset3D{X: r.SrcOffset.X, Y: r.SrcOffset.Y, Z: r.SrcOffset.Z},
			DstSubresource: layers,
			DstOffset:      vk.Offset3D{X: r.DstOffset.X, Y: r.DstOffset.Y, Z: r.DstOffset.Z},
			Extent:         vk.Extent3D{Width: r.Extent.Width, Height: r.Extent.Height, Depth: r.Extent.Depth},
		}
	}
	vk.CmdCopyImage(cb.vk, s.vk, vk.ImageLayoutGeneral, t.vk, vk.ImageLayoutGeneral, uint32(len(out)), out)
	return nil
}

// CmdBindDescriptorSets is unsupported: the API model carries no pipeline
// layouts.
func (d *Driver) CmdBindDescriptorSets(ctx context.Context, cb api.CommandBuffer, sets []api.DescriptorSet) error {
	return errors.Wrap(api.ErrUnsupported, "vkCmdBindDescriptorSets")
}

// CmdBindPipeline is unsupported: no pipeline can be created.
func (d *Driver) CmdBindPipeline(ctx context.Context, cb api.CommandBuffer, bind api.PipelineBindPoint, p api.Pipeline) error {
	return errors.Wrap(api.ErrUnsupported, "vkCmdBindPipeline")
}

func (d *Driver) semaphores(hs []api.Semaphore) ([]vk.Semaphore, error) {
	out := make([]vk.Semaphore, len(hs))
	for i, h := range hs {
		s, err := lookup[semaphore](d, api.Handle(h))
		if err != nil {
			return nil, err
		}
		out[i] = s.vk
	}
	return out, nil
}

func (d *Driver) QueueSubmit(ctx context.Context, h api.Queue, submits []api.SubmitInfo, f api.Fence) error {
	q, err := lookup[queue](d, api.Handle(h))
	if err != nil {
		return err
	}
	out := make([]vk.SubmitInfo, len(submits))
	for i, s := range submits {
		waits, err := d.semaphores(s.WaitSemaphores)
		if err != nil {
			return err
		}
		signals, err := d.semaphores(s.SignalSemaphores)
		if err != nil {
			return err
		}
		stages := make([]vk.PipelineStageFlags, len(waits))
		for j := range stages {
			stages[j] = vk.PipelineStageFlags(vk.PipelineStageAllCommandsBit)
		}
		cbs := make([]vk.CommandBuffer, len(s.CommandBuffers))
		for j, cbh := range s.CommandBuffers {
			cb, err := lookup[commandBuffer](d, api.Handle(cbh))
			if err != nil {
				return err
			}
			cbs[j] = cb.vk
		}
		out[i] = vk.SubmitInfo{
			SType:                vk.StructureTypeSubmitInfo,
			WaitSemaphoreCount:   uint32(len(waits)),
			PWaitSemaphores:      waits,
			PWaitDstStageMask:    stages,
			CommandBufferCount:   uint32(len(cbs)),
			PCommandBuffers:      cbs,
			SignalSemaphoreCount: uint32(len(signals)),
			PSignalSemaphores:    signals,
		}
	}
	vf := vk.NullFence
	if !api.Handle(f).IsNull() {
		o, err := lookup[fence](d, api.Handle(f))
		if err != nil {
			return err
		}
		vf = o.vk
	}
	return check(vk.QueueSubmit(q.vk, uint32(len(out)), out, vf))
}

func (d *Driver) CreateFence(ctx context.Context, h api.Device, info api.FenceCreateInfo) (api.Fence, error) {
	dev, err := lookup[device](d, api.Handle(h))
	if err != nil {
		return 0, err
	}
	ci := vk.FenceCreateInfo{SType: vk.StructureTypeFenceCreateInfo}
	if info.Signaled {
		ci.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}
	o := &fence{}
	if err := check(vk.CreateFence(dev.vk, &ci, nil, &o.vk)); err != nil {
		return 0, errors.Wrap(err, "vkCreateFence")
	}
	return api.Fence(d.add(o)), nil
}

func (d *Driver) DestroyFence(ctx context.Context, h api.Device, f api.Fence) error {
	dev, err := lookup[device](d, api.Handle(h))
	if err != nil {
		return err
	}
	o, err := destroy[fence](d, api.Handle(f))
	if o != nil {
		vk.DestroyFence(dev.vk, o.vk, nil)
	}
	return err
}

func (d *Driver) fences(hs []api.Fence) ([]vk.Fence, error) {
	out := make([]vk.Fence, len(hs))
	for i, h := range hs {
		o, err := lookup[fence](d, api.Handle(h))
		if err != nil {
			return nil, err
		}
		out[i] = o.vk
	}
	return out, nil
}

func (d *Driver) ResetFences(ctx context.Context, h api.Device, hs []api.Fence) error {
	dev, err := lookup[device](d, api.Handle(h))
	if err != nil {
		return err
	}
	fs, err := d.fences(hs)
	if err != nil || len(fs) == 0 {
		return err
	}
	return check(vk.ResetFences(dev.vk, uint32(len(fs)), fs))
}

func (d *Driver) GetFenceStatus(ctx context.Context, h api.Device, f api.Fence) error {
	dev, err := lookup[device](d, api.Handle(h))
	if err != nil {
		return err
	}
	o, err := lookup[fence](d, api.Handle(f))
	if err != nil {
		return err
	}
	return check(vk.GetFenceStatus(dev.vk, o.vk))
}

func (d *Driver) WaitForFences(ctx context.Context, h api.Device, hs []api.Fence, waitAll bool, timeout time.Duration) error {
	dev, err := lookup[device](d, api.Handle(h))
	if err != nil {
		return err
	}
	fs, err := d.fences(hs)
	if err != nil || len(fs) == 0 {
		return err
	}
	all := vk.Bool32(vk.False)
	if waitAll {
		all = vk.Bool32(vk.True)
	}
	ns := uint64(timeout)
	if timeout < 0 {
		ns = ^uint64(0)
	}
	return check(vk.WaitForFences(dev.vk, uint32(len(fs)), fs, all, ns))
}

func (d *Driver) CreateSemaphore(ctx context.Context, h api.Device) (api.Semaphore, error) {
	dev, err := lookup[device](d, api.Handle(h))
	if err != nil {
		return 0, err
	}
	ci := vk.SemaphoreCreateInfo{SType: vk.StructureTypeSemaphoreCreateInfo}
	s := &semaphore{}
	if err := check(vk.CreateSemaphore(dev.vk, &ci, nil, &s.vk)); err != nil {
		return 0, errors.Wrap(err, "vkCreateSemaphore")
	}
	return api.Semaphore(d.add(s)), nil
}

func (d *Driver) DestroySemaphore(ctx context.Context, h api.Device, sem api.Semaphore) error {
	dev, err := lookup[device](d, api.Handle(h))
	if err != nil {
		return err
	}
	s, err := destroy[semaphore](d, api.Handle(sem))
	if s != nil {
		vk.DestroySemaphore(dev.vk, s.vk, nil)
	}
	return err
}

func (d *Driver) CreateEvent(ctx context.Context, h api.Device) (api.Event, error) {
	dev, err := lookup[device](d, api.Handle(h))
	if err != nil {
		return 0, err
	}
	ci := vk.EventCreateInfo{SType: vk.StructureTypeEventCreateInfo}
	e := &event{}
	if err := check(vk.CreateEvent(dev.vk, &ci, nil, &e.vk)); err != nil {
		return 0, errors.Wrap(err, "vkCreateEvent")
	}
	return api.Event(d.add(e)), nil
}

func (d *Driver) DestroyEvent(ctx context.Context, h api.Device, ev api.Event) error {
	dev, err := lookup[device](d, api.Handle(h))
	if err != nil {
		return err
	}
	e, err := destroy[event](d, api.Handle(ev))
	if e != nil {
		vk.DestroyEvent(dev.vk, e.vk, nil)
	}
	return err
}

func (d *Driver) CreateDescriptorPool(ctx context.Context, h api.Device, info api.DescriptorPoolCreateInfo) (api.DescriptorPool, error) {
	dev, err := lookup[device](d, api.Handle(h))
	if err != nil {
		return 0, err
	}
	sizes := []vk.DescriptorPoolSize{
		{Type: vk.DescriptorTypeUniformBuffer, DescriptorCount: info.MaxSets},
		{Type: vk.DescriptorTypeStorageBuffer, DescriptorCount: info.MaxSets},
	}
	ci := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		Flags:         vk.DescriptorPoolCreateFlags(vk.DescriptorPoolCreateFreeDescriptorSetBit),
		MaxSets:       info.MaxSets,
		PoolSizeCount: uint32(len(sizes)),
		PPoolSizes:    sizes,
	}
	p := &descriptorPool{}
	if err := check(vk.CreateDescriptorPool(dev.vk, &ci, nil, &p.vk)); err != nil {
		return 0, errors.Wrap(err, "vkCreateDescriptorPool")
	}
	return api.DescriptorPool(d.add(p)), nil
}

func (d *Driver) DestroyDescriptorPool(ctx context.Context, h api.Device, pool api.DescriptorPool) error {
	dev, err := lookup[device](d, api.Handle(h))
	if err != nil {
		return err
	}
	p, err := destroy[descriptorPool](d, api.Handle(pool))
	if p != nil {
		vk.DestroyDescriptorPool(dev.vk, p.vk, nil)
	}
	return err
}

// AllocateDescriptorSets is unsupported: the API model carries no set
// layouts.
func (d *Driver) AllocateDescriptorSets(ctx context.Context, h api.Device, pool api.DescriptorPool, count uint32) ([]api.DescriptorSet, error) {
	return nil, errors.Wrap(api.ErrUnsupported, "vkAllocateDescriptorSets")
}

func (d *Driver) UpdateDescriptorSets(ctx context.Context, h api.Device, writes []api.WriteDescriptorSet) error {
	return errors.Wrap(api.ErrUnsupported, "vkUpdateDescriptorSets")
}

// CreatePipeline is unsupported: the API model carries no shader modules.
func (d *Driver) CreatePipeline(ctx context.Context, h api.Device, info api.PipelineCreateInfo) (api.Pipeline, error) {
	return 0, errors.Wrap(api.ErrUnsupported, "vkCreateGraphicsPipelines")
}

func (d *Driver) DestroyPipeline(ctx context.Context, h api.Device, p api.Pipeline) error {
	if api.Handle(p).IsNull() {
		return nil
	}
	return errors.Wrap(api.ErrInvalidHandle, "Pipeline")
}

func (d *Driver) CreateSwapchain(ctx context.Context, h api.Device, info api.SwapchainCreateInfo) (api.Swapchain, error) {
	return 0, errors.Wrap(api.ErrUnsupported, "Headless driver has no surface")
}

func (d *Driver) DestroySwapchain(ctx context.Context, h api.Device, sc api.Swapchain) error {
	if api.Handle(sc).IsNull() {
		return nil
	}
	return errors.Wrap(api.ErrInvalidHandle, "Swapchain")
}

func (d *Driver) GetSwapchainImages(ctx context.Context, h api.Device, sc api.Swapchain) ([]api.Image, error) {
	return nil, errors.Wrap(api.ErrUnsupported, "Headless driver has no surface")
}

func (d *Driver) AcquireNextImage(ctx context.Context, h api.Device, sc api.Swapchain, timeout time.Duration, sem api.Semaphore, f api.Fence) (uint32, error) {
	return 0, errors.Wrap(api.ErrUnsupported, "Headless driver has no surface")
}

func (d *Driver) QueuePresent(ctx context.Context, q api.Queue, info api.PresentInfo) error {
	return errors.Wrap(api.ErrUnsupported, "Headless driver has no surface")
}
