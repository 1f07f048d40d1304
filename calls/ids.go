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

import "fmt"

// Call ids. The values are part of the trace format and must not change.
const (
	IDCreateDevice uint16 = iota + 1
	IDDestroyDevice
	IDGetDeviceQueue
	IDDeviceWaitIdle
	IDAllocateMemory
	IDFreeMemory
	IDMapMemory
	IDUnmapMemory
	IDFlushMappedMemoryRanges
	IDCreateBuffer
	IDDestroyBuffer
	IDBindBufferMemory
	IDCreateImage
	IDDestroyImage
	IDBindImageMemory
	IDCreateImageView
	IDDestroyImageView
	IDCreateBufferView
	IDDestroyBufferView
	IDCreateRenderPass
	IDDestroyRenderPass
	IDCreateFramebuffer
	IDDestroyFramebuffer
	IDCreateCommandPool
	IDDestroyCommandPool
	IDAllocateCommandBuffers
	IDFreeCommandBuffers
	IDBeginCommandBuffer
	IDEndCommandBuffer
	IDCmdCopyBuffer
	IDCmdUpdateBuffer
	IDCmdCopyImage
	IDCmdBindDescriptorSets
	IDQueueSubmit
	IDCreateFence
	IDDestroyFence
	IDResetFences
	IDWaitForFences
	IDGetFenceStatus
	IDCreateSemaphore
	IDDestroySemaphore
	IDCreateEvent
	IDDestroyEvent
	IDCreateDescriptorPool
	IDDestroyDescriptorPool
	IDAllocateDescriptorSets
	IDUpdateDescriptorSets
	IDCreateSwapchain
	IDDestroySwapchain
	IDGetSwapchainImages
	IDAcquireNextImage
	IDQueuePresent
	IDFrameEnd
	IDSyncBuffer
	IDSyncImage
	IDSetObjectName
	IDCreatePipeline
	IDDestroyPipeline
	IDCmdBindPipeline
	IDAssertBuffer
	idCount
)

var names = [...]string{
	"", "CreateDevice", "DestroyDevice", "GetDeviceQueue", "DeviceWaitIdle",
	"AllocateMemory", "FreeMemory", "MapMemory", "UnmapMemory", "FlushMappedMemoryRanges",
	"CreateBuffer", "DestroyBuffer", "BindBufferMemory",
	"CreateImage", "DestroyImage", "BindImageMemory",
	"CreateImageView", "DestroyImageView", "CreateBufferView", "DestroyBufferView",
	"CreateRenderPass", "DestroyRenderPass", "CreateFramebuffer", "DestroyFramebuffer",
	"CreateCommandPool", "DestroyCommandPool", "AllocateCommandBuffers", "FreeCommandBuffers",
	"BeginCommandBuffer", "EndCommandBuffer", "CmdCopyBuffer", "CmdUpdateBuffer", "CmdCopyImage",
	"CmdBindDescriptorSets", "QueueSubmit",
	"CreateFence", "DestroyFence", "ResetFences", "WaitForFences", "GetFenceStatus",
	"CreateSemaphore", "DestroySemaphore", "CreateEvent", "DestroyEvent",
	"CreateDescriptorPool", "DestroyDescriptorPool", "AllocateDescriptorSets", "UpdateDescriptorSets",
	"CreateSwapchain", "DestroySwapchain", "GetSwapchainImages", "AcquireNextImage", "QueuePresent",
	"FrameEnd", "SyncBuffer", "SyncImage", "SetObjectName",
	"CreatePipeline", "DestroyPipeline", "CmdBindPipeline", "AssertBuffer",
}

// Name returns the name of call id.
func Name(id uint16) string {
	if id > 0 && id < idCount {
		return names[id]
	}
	return fmt.Sprintf("Call(%d)", id)
}
