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

package tracker

import (
	"sync"

	"github.com/andrew-lunarg/lavatube/api"
	"github.com/andrew-lunarg/lavatube/memory"
	"github.com/pkg/errors"
)

// Payload is the type-specific part of a record. Each variant checks its own
// invariants and lists the records it refers to.
type Payload interface {
	// Check returns an error describing the first broken invariant.
	Check(reg *Registry, rec *Record) error
	// References returns the records the payload refers to.
	References() []Ref
}

// Device is a logical device.
type Device struct {
	Info api.DeviceCreateInfo
}

func (p *Device) Check(*Registry, *Record) error { return nil }
func (p *Device) References() []Ref            { return nil }

// Queue is a device queue.
type Queue struct {
	Device Ref
	Family uint32
	Index  uint32
	Flags  api.QueueFlags
}

func (p *Queue) Check(reg *Registry, rec *Record) error {
	if p.Flags == 0 {
		return errors.New("queue has no capability flags")
	}
	return reg.verify(p.Device, api.ObjectDevice)
}
func (p *Queue) References() []Ref { return []Ref{p.Device} }

// Memory is a device memory allocation.
type Memory struct {
	Device         Ref
	AllocationSize uint64
	Properties     api.MemoryPropertyFlags
	// Offset and Size are the currently mapped window.
	Offset uint64
	Size   uint64
	// Ptr is the live mapping of the window, nil while unmapped.
	Ptr []byte
	// Exposed is the set of allocation bytes known to have changed and not
	// yet written to the trace.
	Exposed memory.Set
	// Shadow is created on first map.
	Shadow *memory.Shadow
	// Mutex guards Exposed and Ptr against concurrent flushes.
	sync.Mutex
}

// Mapped returns true while the allocation is mapped.
func (p *Memory) Mapped() bool { return p.Ptr != nil }

// HostVisible returns true if the allocation can be mapped.
func (p *Memory) HostVisible() bool {
	return p.Properties&api.MemoryPropertyHostVisible != 0
}

func (p *Memory) Check(reg *Registry, rec *Record) error {
	p.Lock()
	defer p.Unlock()
	switch {
	case p.AllocationSize == api.WholeSize:
		return errors.New("allocation size is the whole-size sentinel")
	case p.Offset+p.Size > p.AllocationSize:
		return errors.Errorf("mapped window [%d,+%d) exceeds allocation of %d", p.Offset, p.Size, p.AllocationSize)
	case p.Ptr != nil && uint64(len(p.Ptr)) != p.Size:
		return errors.Errorf("mapping of %d bytes for window of %d", len(p.Ptr), p.Size)
	case p.Shadow != nil && p.Shadow.Size() != p.AllocationSize:
		return errors.Errorf("shadow of %d bytes for allocation of %d", p.Shadow.Size(), p.AllocationSize)
	}
	return p.Exposed.Check(p.AllocationSize)
}
func (p *Memory) References() []Ref { return []Ref{p.Device} }

// Object is the state shared by buffers and images: where their contents
// live and how much of them has been written to the trace.
type Object struct {
	Device       Ref
	Memory       Ref
	MemoryOffset uint64
	Size         uint64
	Requirements api.MemoryRequirements
	// Written is the number of content bytes emitted for the object.
	Written uint64
	// Updates is the number of update packets emitted for the object.
	Updates uint32
	// Accessible is true when the backing memory is host visible, so its
	// contents are meaningful to diff.
	Accessible bool
}

// Common returns the shared object state.
func (o *Object) Common() *Object { return o }

func (o *Object) check(reg *Registry, rec *Record) error {
	if o.Size == api.WholeSize || o.Size == 0 {
		return errors.Errorf("size %d is not resolved", o.Size)
	}
	if !o.Memory.Valid() {
		return nil
	}
	mem, err := reg.live(o.Memory, api.ObjectDeviceMemory)
	if err != nil {
		return err
	}
	m := mem.Payload.(*Memory)
	if o.MemoryOffset+o.Size > m.AllocationSize {
		return errors.Errorf("bound at [%d,+%d) beyond allocation of %d", o.MemoryOffset, o.Size, m.AllocationSize)
	}
	return nil
}

func (o *Object) refs() []Ref { return []Ref{o.Device, o.Memory} }

// Backed is implemented by the payloads of objects with memory contents.
type Backed interface {
	Payload
	Common() *Object
}

// Buffer is a buffer object.
type Buffer struct {
	Object
	Info api.BufferCreateInfo
}

func (p *Buffer) Check(reg *Registry, rec *Record) error {
	switch {
	case p.Info.SharingMode == api.MaxEnum:
		return errors.New("sharing mode is unset")
	case uint32(p.Info.Usage) == api.MaxEnum:
		return errors.New("usage is unset")
	}
	return p.Object.check(reg, rec)
}
func (p *Buffer) References() []Ref { return p.Object.refs() }

// Image is an image object.
type Image struct {
	Object
	Info api.ImageCreateInfo
	// Swapchain is true for images owned by a swapchain.
	Swapchain bool
}

func (p *Image) Check(reg *Registry, rec *Record) error {
	switch {
	case p.Info.Format == api.FormatUndefined || p.Info.Format == api.MaxEnum:
		return errors.New("format is unset")
	case p.Info.Tiling == api.MaxEnum:
		return errors.New("tiling is unset")
	case p.Info.ImageType == api.MaxEnum:
		return errors.New("image type is unset")
	case p.Info.SharingMode == api.MaxEnum:
		return errors.New("sharing mode is unset")
	case uint32(p.Info.Usage) == api.MaxEnum:
		return errors.New("usage is unset")
	}
	if p.Swapchain {
		return nil
	}
	return p.Object.check(reg, rec)
}
func (p *Image) References() []Ref { return p.Object.refs() }

// ImageView is a view of an image.
type ImageView struct {
	Device      Ref
	Image       Ref
	ImageHandle api.Handle
	Info        api.ImageViewCreateInfo
}

func (p *ImageView) Check(reg *Registry, rec *Record) error {
	if p.Info.Format == api.FormatUndefined {
		return errors.New("format is undefined")
	}
	img, err := reg.live(p.Image, api.ObjectImage)
	if err != nil {
		return err
	}
	if img.Handle != p.ImageHandle {
		return errors.Errorf("parent handle %v does not match %v", p.ImageHandle, img.Handle)
	}
	return nil
}
func (p *ImageView) References() []Ref { return []Ref{p.Device, p.Image} }

// BufferView is a formatted view of a buffer.
type BufferView struct {
	Device       Ref
	Buffer       Ref
	BufferHandle api.Handle
	Info         api.BufferViewCreateInfo
}

func (p *BufferView) Check(reg *Registry, rec *Record) error {
	if p.Info.Format == api.FormatUndefined {
		return errors.New("format is undefined")
	}
	buf, err := reg.live(p.Buffer, api.ObjectBuffer)
	if err != nil {
		return err
	}
	if buf.Handle != p.BufferHandle {
		return errors.Errorf("parent handle %v does not match %v", p.BufferHandle, buf.Handle)
	}
	return nil
}
func (p *BufferView) References() []Ref { return []Ref{p.Device, p.Buffer} }

// Swapchain holds the creation state common to both sides.
type Swapchain struct {
	Device Ref
	Info   api.SwapchainCreateInfo
	// Images are the swapchain's images, once queried.
	Images []Ref
}

func (p *Swapchain) check(reg *Registry) error {
	if p.Info.ImageFormat == api.FormatUndefined {
		return errors.New("image format is undefined")
	}
	for _, img := range p.Images {
		if err := reg.verify(img, api.ObjectImage); err != nil {
			return err
		}
	}
	return nil
}

func (p *Swapchain) refs() []Ref { return append([]Ref{p.Device}, p.Images...) }

// SwapchainCapture is the capture-side swapchain.
type SwapchainCapture struct {
	Swapchain
	// Queue is the queue last used to present.
	Queue Ref
}

func (p *SwapchainCapture) Check(reg *Registry, rec *Record) error { return p.Swapchain.check(reg) }
func (p *SwapchainCapture) References() []Ref { return append(p.refs(), p.Queue) }

// SwapchainReplay is the replay-side swapchain, with the state of its
// virtual presentation ring.
type SwapchainReplay struct {
	Swapchain
	Virtual     bool
	Initialized bool
	// AppImages are the images the application renders into.
	AppImages []api.Image
	// Queue runs the ring's copies and signals acquires.
	Queue          api.Queue
	CommandPool    api.CommandPool
	Semaphore      api.Semaphore
	VirtualImages  []api.Image
	VirtualMemory  []api.DeviceMemory
	CommandBuffers []api.CommandBuffer
	Fences         []api.Fence
	// NextSwapchainImage is the ring slot the next acquire takes.
	NextSwapchainImage uint32
	// NextStoredImage is the ring slot the next present copies into.
	NextStoredImage uint32
	// CopyPending is true when Semaphore has been signaled by a copy that no
	// later copy has waited on.
	CopyPending bool
	// Presents counts completed present calls.
	Presents uint64
}

func (p *SwapchainReplay) Check(reg *Registry, rec *Record) error {
	if err := p.Swapchain.check(reg); err != nil {
		return err
	}
	if !p.Initialized {
		return nil
	}
	switch {
	case rec.Handle.IsNull():
		return errors.New("initialized without a swapchain handle")
	case p.Queue == 0:
		return errors.New("initialized without a queue")
	case p.CommandPool == 0:
		return errors.New("initialized without a command pool")
	case p.Semaphore == 0:
		return errors.New("initialized without a semaphore")
	}
	n := len(p.VirtualImages)
	if n == 0 || len(p.CommandBuffers) != n || len(p.Fences) != n || len(p.VirtualMemory) != n {
		return errors.Errorf("ring arrays disagree: %d images, %d command buffers, %d fences",
			n, len(p.CommandBuffers), len(p.Fences))
	}
	for i := 0; i < n; i++ {
		if p.VirtualImages[i] == 0 || p.CommandBuffers[i] == 0 || p.Fences[i] == 0 || p.VirtualMemory[i] == 0 {
			return errors.Errorf("ring slot %d has a null handle", i)
		}
	}
	return nil
}
func (p *SwapchainReplay) References() []Ref { return p.refs() }

// CommandPool is a command pool.
type CommandPool struct {
	Device Ref
	Info   api.CommandPoolCreateInfo
}

func (p *CommandPool) Check(reg *Registry, rec *Record) error { return reg.verify(p.Device, api.ObjectDevice) }
func (p *CommandPool) References() []Ref                     { return []Ref{p.Device} }

// CommandBuffer is a command buffer. Touched holds the object ranges its
// recorded commands read.
type CommandBuffer struct {
	Device     Ref
	Pool       Ref
	PoolHandle api.CommandPool
	Level      api.CommandBufferLevel
	Touched    Touched
}

func (p *CommandBuffer) Check(reg *Registry, rec *Record) error {
	if p.Level != api.CommandBufferLevelPrimary && p.Level != api.CommandBufferLevelSecondary {
		return errors.Errorf("level %d is invalid", p.Level)
	}
	pool, err := reg.live(p.Pool, api.ObjectCommandPool)
	if err != nil {
		return err
	}
	if api.CommandPool(pool.Handle) != p.PoolHandle {
		return errors.Errorf("pool handle %v does not match %v", api.Handle(p.PoolHandle), pool.Handle)
	}
	// Touched objects may have been destroyed since recording.
	for _, ref := range p.Touched.Refs() {
		obj, err := reg.Lookup(ref)
		if err != nil {
			continue
		}
		b, ok := obj.Payload.(Backed)
		if !ok {
			return errors.Errorf("touched %v has no memory contents", ref)
		}
		if !b.Common().Accessible {
			return errors.Errorf("touched %v is not host visible", ref)
		}
		if err := p.Touched[ref].Check(b.Common().Size); err != nil {
			return errors.Wrapf(err, "touched %v", ref)
		}
		if err := reg.verify(ref, ref.Kind); err != nil {
			return errors.Wrap(err, "touched")
		}
	}
	return nil
}
func (p *CommandBuffer) References() []Ref { return []Ref{p.Device, p.Pool} }

// DescriptorPool is a descriptor pool.
type DescriptorPool struct {
	Device Ref
	Info   api.DescriptorPoolCreateInfo
}

func (p *DescriptorPool) Check(reg *Registry, rec *Record) error {
	return reg.verify(p.Device, api.ObjectDevice)
}
func (p *DescriptorPool) References() []Ref { return []Ref{p.Device} }

// DescriptorSet is a descriptor set. Touched holds the object ranges bound
// to it.
type DescriptorSet struct {
	Device  Ref
	Pool    Ref
	Touched Touched
}

func (p *DescriptorSet) Check(reg *Registry, rec *Record) error {
	return reg.verify(p.Pool, api.ObjectDescriptorPool)
}
func (p *DescriptorSet) References() []Ref { return []Ref{p.Device, p.Pool} }

// Fence is a fence.
type Fence struct {
	Device Ref
	Info   api.FenceCreateInfo
	// Frame is the frame of the last submit that signals the fence.
	Frame int
}

func (p *Fence) Check(*Registry, *Record) error { return nil }
func (p *Fence) References() []Ref            { return []Ref{p.Device} }

// Semaphore is a semaphore.
type Semaphore struct {
	Device Ref
}

func (p *Semaphore) Check(*Registry, *Record) error { return nil }
func (p *Semaphore) References() []Ref            { return []Ref{p.Device} }

// Event is an event.
type Event struct {
	Device Ref
}

func (p *Event) Check(*Registry, *Record) error { return nil }
func (p *Event) References() []Ref            { return []Ref{p.Device} }

// Pipeline is a pipeline. RenderPass is set for graphics pipelines only.
type Pipeline struct {
	Device     Ref
	RenderPass Ref
	BindPoint  api.PipelineBindPoint
	Flags      uint32
}

func (p *Pipeline) Check(reg *Registry, rec *Record) error {
	switch {
	case p.BindPoint == api.PipelineBindPointUnset:
		return errors.New("bind point was never set")
	case !p.BindPoint.Valid():
		return errors.Errorf("bind point %d is invalid", p.BindPoint)
	case p.BindPoint == api.PipelineBindPointGraphics && !p.RenderPass.Valid():
		return errors.New("graphics pipeline has no render pass")
	}
	return reg.verify(p.RenderPass, api.ObjectRenderPass)
}
func (p *Pipeline) References() []Ref { return []Ref{p.Device, p.RenderPass} }

// RenderPass is a render pass.
type RenderPass struct {
	Device Ref
	Info   api.RenderPassCreateInfo
}

func (p *RenderPass) Check(*Registry, *Record) error {
	for i, f := range p.Info.Attachments {
		if f == api.FormatUndefined {
			return errors.Errorf("attachment %d format is undefined", i)
		}
	}
	return nil
}
func (p *RenderPass) References() []Ref { return []Ref{p.Device} }

// Framebuffer is a framebuffer. It validates each attached view.
type Framebuffer struct {
	Device      Ref
	RenderPass  Ref
	Attachments []Ref
	Info        api.FramebufferCreateInfo
}

func (p *Framebuffer) Check(reg *Registry, rec *Record) error {
	if err := reg.verify(p.RenderPass, api.ObjectRenderPass); err != nil {
		return err
	}
	for _, v := range p.Attachments {
		if err := reg.verify(v, api.ObjectImageView); err != nil {
			return err
		}
	}
	return nil
}
func (p *Framebuffer) References() []Ref {
	return append([]Ref{p.Device, p.RenderPass}, p.Attachments...)
}
