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

// WholeSize stands for "the rest of the object from the given offset".
const WholeSize = ^uint64(0)

// MaxEnum is the sentinel for creation properties that were never set.
const MaxEnum = 0x7FFFFFFF

type Format uint32

const (
	FormatUndefined     Format = 0
	FormatR8Unorm       Format = 9
	FormatR8G8B8A8Unorm Format = 37
	FormatB8G8R8A8Unorm Format = 44
	FormatR32Uint       Format = 98
	FormatR32Sfloat     Format = 100
)

// BytesPerTexel returns the size of a single texel of the format, or 0 when
// the format is undefined or unknown.
func (f Format) BytesPerTexel() uint64 {
	switch f {
	case FormatR8Unorm:
		return 1
	case FormatR8G8B8A8Unorm, FormatB8G8R8A8Unorm, FormatR32Uint, FormatR32Sfloat:
		return 4
	}
	return 0
}

type SharingMode uint32

const (
	SharingModeExclusive  SharingMode = 0
	SharingModeConcurrent SharingMode = 1
)

type ImageType uint32

const (
	ImageType1D ImageType = 0
	ImageType2D ImageType = 1
	ImageType3D ImageType = 2
)

type ImageTiling uint32

const (
	ImageTilingOptimal ImageTiling = 0
	ImageTilingLinear  ImageTiling = 1
)

type ImageLayout uint32

const (
	ImageLayoutUndefined          ImageLayout = 0
	ImageLayoutGeneral            ImageLayout = 1
	ImageLayoutTransferSrcOptimal ImageLayout = 6
	ImageLayoutTransferDstOptimal ImageLayout = 7
	ImageLayoutPresentSrc         ImageLayout = 1000001002
)

type BufferUsageFlags uint32

const (
	BufferUsageTransferSrc   BufferUsageFlags = 0x1
	BufferUsageTransferDst   BufferUsageFlags = 0x2
	BufferUsageUniformBuffer BufferUsageFlags = 0x10
	BufferUsageStorageBuffer BufferUsageFlags = 0x20
	BufferUsageVertexBuffer  BufferUsageFlags = 0x80
)

type ImageUsageFlags uint32

const (
	ImageUsageTransferSrc     ImageUsageFlags = 0x1
	ImageUsageTransferDst     ImageUsageFlags = 0x2
	ImageUsageSampled         ImageUsageFlags = 0x4
	ImageUsageColorAttachment ImageUsageFlags = 0x10
)

type MemoryPropertyFlags uint32

const (
	MemoryPropertyDeviceLocal  MemoryPropertyFlags = 0x1
	MemoryPropertyHostVisible  MemoryPropertyFlags = 0x2
	MemoryPropertyHostCoherent MemoryPropertyFlags = 0x4
)

type QueueFlags uint32

const (
	QueueGraphics QueueFlags = 0x1
	QueueCompute  QueueFlags = 0x2
	QueueTransfer QueueFlags = 0x4
)

type CommandBufferLevel uint32

const (
	CommandBufferLevelPrimary   CommandBufferLevel = 0
	CommandBufferLevelSecondary CommandBufferLevel = 1
)

type PresentMode uint32

const (
	PresentModeImmediate PresentMode = 0
	PresentModeMailbox   PresentMode = 1
	PresentModeFifo      PresentMode = 2
)

type DescriptorType uint32

const (
	DescriptorTypeUniformBuffer DescriptorType = 6
	DescriptorTypeStorageBuffer DescriptorType = 7
)

type Extent2D struct{ Width, Height uint32 }

type Extent3D struct{ Width, Height, Depth uint32 }

type Offset3D struct{ X, Y, Z int32 }

type QueueFamilyInfo struct {
	Flags QueueFlags
	Count uint32
}

type DeviceCreateInfo struct {
	QueueFamilies []QueueFamilyInfo
}

type MemoryAllocateInfo struct {
	AllocationSize uint64
	Properties     MemoryPropertyFlags
}

type MemoryRequirements struct {
	Size           uint64
	Alignment      uint64
	MemoryTypeBits uint32
}

type MappedMemoryRange struct {
	Memory DeviceMemory
	Offset uint64
	Size   uint64
}

type BufferCreateInfo struct {
	Flags       uint32
	Size        uint64
	Usage       BufferUsageFlags
	SharingMode SharingMode
}

type ImageCreateInfo struct {
	Flags         uint32
	ImageType     ImageType
	Format        Format
	Extent        Extent3D
	MipLevels     uint32
	ArrayLayers   uint32
	Samples       uint32
	Tiling        ImageTiling
	Usage         ImageUsageFlags
	SharingMode   SharingMode
	InitialLayout ImageLayout
}

// Texels returns the number of texels in mip level 0 of all layers.
func (i ImageCreateInfo) Texels() uint64 {
	layers := uint64(i.ArrayLayers)
	if layers == 0 {
		layers = 1
	}
	depth := uint64(i.Extent.Depth)
	if depth == 0 {
		depth = 1
	}
	return uint64(i.Extent.Width) * uint64(i.Extent.Height) * depth * layers
}

type ImageViewCreateInfo struct {
	Image          Image
	Format         Format
	BaseMipLevel   uint32
	LevelCount     uint32
	BaseArrayLayer uint32
	LayerCount     uint32
}

type BufferViewCreateInfo struct {
	Buffer Buffer
	Format Format
	Offset uint64
	Range  uint64
}

type RenderPassCreateInfo struct {
	Attachments []Format
}

// PipelineBindPoint selects the pipeline slot of a command buffer.
type PipelineBindPoint uint32

const (
	PipelineBindPointGraphics PipelineBindPoint = iota
	PipelineBindPointCompute
	// PipelineBindPointUnset marks a pipeline whose bind point was never
	// filled in.
	PipelineBindPointUnset PipelineBindPoint = 0x7fffffff
)

// Valid returns true for the bind points a pipeline can be created for.
func (p PipelineBindPoint) Valid() bool {
	return p == PipelineBindPointGraphics || p == PipelineBindPointCompute
}

// PipelineCreateInfo describes a pipeline. Graphics pipelines name the render
// pass they run in.
type PipelineCreateInfo struct {
	BindPoint  PipelineBindPoint
	Flags      uint32
	RenderPass RenderPass
}

type FramebufferCreateInfo struct {
	RenderPass  RenderPass
	Attachments []ImageView
	Width       uint32
	Height      uint32
	Layers      uint32
}

type CommandPoolCreateInfo struct {
	Flags            uint32
	QueueFamilyIndex uint32
}

type CommandBufferAllocateInfo struct {
	CommandPool CommandPool
	Level       CommandBufferLevel
	Count       uint32
}

type BufferCopy struct {
	SrcOffset uint64
	DstOffset uint64
	Size      uint64
}

// ImageCopy copies a texel region of mip level 0, layer 0.
type ImageCopy struct {
	SrcOffset Offset3D
	DstOffset Offset3D
	Extent    Extent3D
}

type SubmitInfo struct {
	WaitSemaphores   []Semaphore
	CommandBuffers   []CommandBuffer
	SignalSemaphores []Semaphore
}

type FenceCreateInfo struct {
	Signaled bool
}

type DescriptorPoolCreateInfo struct {
	MaxSets uint32
}

type DescriptorBufferInfo struct {
	Buffer Buffer
	Offset uint64
	Range  uint64
}

type WriteDescriptorSet struct {
	DstSet         DescriptorSet
	Binding        uint32
	DescriptorType DescriptorType
	Buffers        []DescriptorBufferInfo
}

type SwapchainCreateInfo struct {
	MinImageCount uint32
	ImageFormat   Format
	ImageExtent   Extent2D
	ImageUsage    ImageUsageFlags
	PresentMode   PresentMode
}

type PresentInfo struct {
	WaitSemaphores []Semaphore
	Swapchain      Swapchain
	ImageIndex     uint32
}
