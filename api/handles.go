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

// Package api describes the handle-based graphics API that is captured and
// replayed: opaque handles, object types, creation structures and the Driver
// interface that executes calls.
package api

import "fmt"

// Handle is an opaque object handle issued by a Driver. Zero is the null
// handle.
type Handle uint64

// Null is the null handle.
const Null Handle = 0

// IsNull returns true for the null handle.
func (h Handle) IsNull() bool { return h == Null }

func (h Handle) String() string { return fmt.Sprintf("0x%x", uint64(h)) }

type (
	Device         Handle
	Queue          Handle
	DeviceMemory   Handle
	Buffer         Handle
	Image          Handle
	ImageView      Handle
	BufferView     Handle
	CommandPool    Handle
	CommandBuffer  Handle
	Fence          Handle
	Semaphore      Handle
	Event          Handle
	DescriptorPool Handle
	DescriptorSet  Handle
	RenderPass     Handle
	Framebuffer    Handle
	Pipeline       Handle
	Swapchain      Handle
)

// ObjectType identifies the kind of object a handle refers to.
type ObjectType uint32

const (
	ObjectUnknown ObjectType = iota
	ObjectDevice
	ObjectQueue
	ObjectDeviceMemory
	ObjectBuffer
	ObjectImage
	ObjectImageView
	ObjectBufferView
	ObjectCommandPool
	ObjectCommandBuffer
	ObjectFence
	ObjectSemaphore
	ObjectEvent
	ObjectDescriptorPool
	ObjectDescriptorSet
	ObjectRenderPass
	ObjectFramebuffer
	ObjectPipeline
	ObjectSwapchain
	objectTypeCount
)

// ObjectTypes lists every known object type.
var ObjectTypes = func() []ObjectType {
	out := make([]ObjectType, 0, objectTypeCount-1)
	for t := ObjectDevice; t < objectTypeCount; t++ {
		out = append(out, t)
	}
	return out
}()

var objectTypeNames = [...]string{
	"Unknown", "Device", "Queue", "DeviceMemory", "Buffer", "Image", "ImageView",
	"BufferView", "CommandPool", "CommandBuffer", "Fence", "Semaphore", "Event",
	"DescriptorPool", "DescriptorSet", "RenderPass", "Framebuffer", "Pipeline",
	"Swapchain",
}

func (t ObjectType) String() string {
	if t < objectTypeCount {
		return objectTypeNames[t]
	}
	return fmt.Sprintf("ObjectType(%d)", uint32(t))
}

// Valid returns true if t names a known, non-unknown object type.
func (t ObjectType) Valid() bool { return t > ObjectUnknown && t < objectTypeCount }
