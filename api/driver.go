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

package api

import (
	"context"
	"time"
)

// Driver executes API calls against an implementation. Capture passes
// application calls through a Driver and replay dispatches decoded calls to
// one.
type Driver interface {
	// Name returns a short description of the implementation.
	Name() string

	CreateDevice(ctx context.Context, info DeviceCreateInfo) (Device, error)
	DestroyDevice(ctx context.Context, dev Device) error
	GetDeviceQueue(ctx context.Context, dev Device, family, index uint32) (Queue, error)
	DeviceWaitIdle(ctx context.Context, dev Device) error

	AllocateMemory(ctx context.Context, dev Device, info MemoryAllocateInfo) (DeviceMemory, error)
	FreeMemory(ctx context.Context, dev Device, mem DeviceMemory) error
	// MapMemory returns a slice aliasing size bytes of the allocation from
	// offset. The slice is valid until UnmapMemory.
	MapMemory(ctx context.Context, dev Device, mem DeviceMemory, offset, size uint64) ([]byte, error)
	UnmapMemory(ctx context.Context, dev Device, mem DeviceMemory) error
	FlushMappedMemoryRanges(ctx context.Context, dev Device, ranges []MappedMemoryRange) error

	CreateBuffer(ctx context.Context, dev Device, info BufferCreateInfo) (Buffer, error)
	DestroyBuffer(ctx context.Context, dev Device, buf Buffer) error
	GetBufferMemoryRequirements(ctx context.Context, dev Device, buf Buffer) (MemoryRequirements, error)
	BindBufferMemory(ctx context.Context, dev Device, buf Buffer, mem DeviceMemory, offset uint64) error

	CreateImage(ctx context.Context, dev Device, info ImageCreateInfo) (Image, error)
	DestroyImage(ctx context.Context, dev Device, img Image) error
	GetImageMemoryRequirements(ctx context.Context, dev Device, img Image) (MemoryRequirements, error)
	BindImageMemory(ctx context.Context, dev Device, img Image, mem DeviceMemory, offset uint64) error

	CreateImageView(ctx context.Context, dev Device, info ImageViewCreateInfo) (ImageView, error)
	DestroyImageView(ctx context.Context, dev Device, view ImageView) error
	CreateBufferView(ctx context.Context, dev Device, info BufferViewCreateInfo) (BufferView, error)
	DestroyBufferView(ctx context.Context, dev Device, view BufferView) error

	CreateRenderPass(ctx context.Context, dev Device, info RenderPassCreateInfo) (RenderPass, error)
	DestroyRenderPass(ctx context.Context, dev Device, rp RenderPass) error
	CreateFramebuffer(ctx context.Context, dev Device, info FramebufferCreateInfo) (Framebuffer, error)
	DestroyFramebuffer(ctx context.Context, dev Device, fb Framebuffer) error
	CreatePipeline(ctx context.Context, dev Device, info PipelineCreateInfo) (Pipeline, error)
	DestroyPipeline(ctx context.Context, dev Device, p Pipeline) error

	CreateCommandPool(ctx context.Context, dev Device, info CommandPoolCreateInfo) (CommandPool, error)
	DestroyCommandPool(ctx context.Context, dev Device, pool CommandPool) error
	AllocateCommandBuffers(ctx context.Context, dev Device, info CommandBufferAllocateInfo) ([]CommandBuffer, error)
	FreeCommandBuffers(ctx context.Context, dev Device, pool CommandPool, cbs []CommandBuffer) error
	BeginCommandBuffer(ctx context.Context, cb CommandBuffer) error
	EndCommandBuffer(ctx context.Context, cb CommandBuffer) error
	CmdCopyBuffer(ctx context.Context, cb CommandBuffer, src, dst Buffer, regions []BufferCopy) error
	CmdUpdateBuffer(ctx context.Context, cb CommandBuffer, dst Buffer, offset uint64, data []byte) error
	CmdCopyImage(ctx context.Context, cb CommandBuffer, src, dst Image, regions []ImageCopy) error
	CmdBindDescriptorSets(ctx context.Context, cb CommandBuffer, sets []DescriptorSet) error
	CmdBindPipeline(ctx context.Context, cb CommandBuffer, bind PipelineBindPoint, p Pipeline) error
	QueueSubmit(ctx context.Context, q Queue, submits []SubmitInfo, fence Fence) error

	CreateFence(ctx context.Context, dev Device, info FenceCreateInfo) (Fence, error)
	DestroyFence(ctx context.Context, dev Device, fence Fence) error
	ResetFences(ctx context.Context, dev Device, fences []Fence) error
	// GetFenceStatus returns nil when signaled and ErrNotReady otherwise.
	GetFenceStatus(ctx context.Context, dev Device, fence Fence) error
	// WaitForFences returns ErrTimeout if the fences did not signal in time.
	WaitForFences(ctx context.Context, dev Device, fences []Fence, waitAll bool, timeout time.Duration) error
	CreateSemaphore(ctx context.Context, dev Device) (Semaphore, error)
	DestroySemaphore(ctx context.Context, dev Device, sem Semaphore) error
	CreateEvent(ctx context.Context, dev Device) (Event, error)
	DestroyEvent(ctx context.Context, dev Device, ev Event) error

	CreateDescriptorPool(ctx context.Context, dev Device, info DescriptorPoolCreateInfo) (DescriptorPool, error)
	DestroyDescriptorPool(ctx context.Context, dev Device, pool DescriptorPool) error
	AllocateDescriptorSets(ctx context.Context, dev Device, pool DescriptorPool, count uint32) ([]DescriptorSet, error)
	UpdateDescriptorSets(ctx context.Context, dev Device, writes []WriteDescriptorSet) error

	CreateSwapchain(ctx context.Context, dev Device, info SwapchainCreateInfo) (Swapchain, error)
	DestroySwapchain(ctx context.Context, dev Device, sc Swapchain) error
	GetSwapchainImages(ctx context.Context, dev Device, sc Swapchain) ([]Image, error)
	AcquireNextImage(ctx context.Context, dev Device, sc Swapchain, timeout time.Duration, sem Semaphore, fence Fence) (uint32, error)
	QueuePresent(ctx context.Context, q Queue, info PresentInfo) error
}
