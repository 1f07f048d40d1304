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

// Package vk implements api.Driver on the system Vulkan loader.
//
// The driver is headless: it creates no surfaces, so swapchain calls return
// api.ErrUnsupported and traces that present must be replayed with a virtual
// swapchain. Handles are issued by the driver and map to the loader's objects.
package vk

import (
	"context"
	"sync"

	"github.com/andrew-lunarg/lavatube/api"
	"github.com/andrew-lunarg/lavatube/core/log"
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

var (
	loaderOnce sync.Once
	loaderErr  error
)

// Driver is the Vulkan api.Driver.
type Driver struct {
	instance vk.Instance
	physical vk.PhysicalDevice
	families []vk.QueueFamilyProperties
	memory   vk.PhysicalDeviceMemoryProperties

	mu      sync.Mutex
	next    api.Handle
	objects map[api.Handle]interface{}
}

var _ api.Driver = (*Driver)(nil)

type device struct {
	vk vk.Device
	// families maps the device's queue families to physical ones.
	families []uint32
	// queues holds the handles already issued, by family and index.
	queues map[[2]uint32]api.Handle
}

type queue struct{ vk vk.Queue }

type memory struct {
	vk   vk.DeviceMemory
	size uint64
}

type buffer struct{ vk vk.Buffer }
type image struct{ vk vk.Image }
type imageView struct{ vk vk.ImageView }
type bufferView struct{ vk vk.BufferView }
type renderPass struct{ vk vk.RenderPass }
type framebuffer struct{ vk vk.Framebuffer }
type commandPool struct{ vk vk.CommandPool }
type commandBuffer struct{ vk vk.CommandBuffer }
type fence struct{ vk vk.Fence }
type semaphore struct{ vk vk.Semaphore }
type event struct{ vk vk.Event }
type descriptorPool struct{ vk vk.DescriptorPool }

// New loads the Vulkan loader, creates an instance and selects the first
// physical device.
func New(ctx context.Context) (*Driver, error) {
	loaderOnce.Do(func() {
		if loaderErr = vk.SetDefaultGetInstanceProcAddr(); loaderErr != nil {
			return
		}
		loaderErr = vk.Init()
	})
	if loaderErr != nil {
		return nil, errors.Wrap(loaderErr, "Loading Vulkan")
	}
	app := vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		PApplicationName:   "lavatube\x00",
		ApplicationVersion: vk.MakeVersion(1, 0, 0),
		PEngineName:        "lavatube\x00",
		EngineVersion:      vk.MakeVersion(1, 0, 0),
		ApiVersion:         vk.MakeVersion(1, 1, 0),
	}
	info := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: &app,
	}
	d := &Driver{next: 0x1000, objects: map[api.Handle]interface{}{}}
	if err := check(vk.CreateInstance(&info, nil, &d.instance)); err != nil {
		return nil, errors.Wrap(err, "vkCreateInstance")
	}
	vk.InitInstance(d.instance)

	var count uint32
	if err := check(vk.EnumeratePhysicalDevices(d.instance, &count, nil)); err != nil {
		d.Close()
		return nil, err
	}
	if count == 0 {
		d.Close()
		return nil, errors.New("No Vulkan physical devices")
	}
	physical := make([]vk.PhysicalDevice, count)
	if err := check(vk.EnumeratePhysicalDevices(d.instance, &count, physical)); err != nil {
		d.Close()
		return nil, err
	}
	d.physical = physical[0]

	vk.GetPhysicalDeviceQueueFamilyProperties(d.physical, &count, nil)
	d.families = make([]vk.QueueFamilyProperties, count)
	vk.GetPhysicalDeviceQueueFamilyProperties(d.physical, &count, d.families)
	for i := range d.families {
		d.families[i].Deref()
	}
	vk.GetPhysicalDeviceMemoryProperties(d.physical, &d.memory)
	d.memory.Deref()
	for i := uint32(0); i < d.memory.MemoryTypeCount; i++ {
		d.memory.MemoryTypes[i].Deref()
	}

	var props vk.PhysicalDeviceProperties
	vk.GetPhysicalDeviceProperties(d.physical, &props)
	props.Deref()
	log.I(ctx, "Vulkan device %s with %d queue families", vk.ToString(props.DeviceName[:]), len(d.families))
	return d, nil
}

// Name returns "vulkan".
func (d *Driver) Name() string { return "vulkan" }

// Close destroys the instance. Devices must have been destroyed first.
func (d *Driver) Close() {
	vk.DestroyInstance(d.instance, nil)
}

// check converts a Vulkan result to an error.
func check(res vk.Result) error {
	switch res {
	case vk.Success:
		return nil
	case vk.Timeout:
		return api.ErrTimeout
	case vk.NotReady:
		return api.ErrNotReady
	case vk.ErrorOutOfDeviceMemory, vk.ErrorOutOfHostMemory:
		return api.ErrOutOfDeviceMemory
	case vk.ErrorDeviceLost:
		return api.ErrDeviceLost
	case vk.ErrorMemoryMapFailed:
		return api.ErrMemoryMapFailed
	}
	return errors.WithStack(vk.Error(res))
}

func (d *Driver) add(o interface{}) api.Handle {
	d.mu.Lock()
	defer d.mu.Unlock()
	h := d.next
	d.next++
	d.objects[h] = o
	return h
}

func (d *Driver) remove(h api.Handle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.objects, h)
}

func lookup[T any](d *Driver, h api.Handle) (*T, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	o, ok := d.objects[h].(*T)
	if !ok {
		return nil, errors.Wrapf(api.ErrInvalidHandle, "%T %v", o, h)
	}
	return o, nil
}

// destroy removes a handle of type T, treating the null handle as a no-op.
func destroy[T any](d *Driver, h api.Handle) (*T, error) {
	if h.IsNull() {
		return nil, nil
	}
	o, err := lookup[T](d, h)
	if err != nil {
		return nil, err
	}
	d.remove(h)
	return o, nil
}

// memoryType returns the first memory type allowed by bits that has every
// property in want.
func (d *Driver) memoryType(bits uint32, want api.MemoryPropertyFlags) (uint32, error) {
	flags := vk.MemoryPropertyFlags(want)
	for i := uint32(0); i < d.memory.MemoryTypeCount; i++ {
		if bits&(1<<i) != 0 && d.memory.MemoryTypes[i].PropertyFlags&flags == flags {
			return i, nil
		}
	}
	return 0, errors.Wrapf(api.ErrOutOfDeviceMemory, "No memory type with %#x", uint32(want))
}

// family returns the first physical queue family supporting flags.
func (d *Driver) family(flags api.QueueFlags) (uint32, error) {
	for i, f := range d.families {
		if uint32(f.QueueFlags)&uint32(flags) == uint32(flags) {
			return uint32(i), nil
		}
	}
	return 0, errors.Wrapf(api.ErrUnsupported, "No queue family with flags %#x", uint32(flags))
}

func (d *Driver) CreateDevice(ctx context.Context, info api.DeviceCreateInfo) (api.Device, error) {
	dev := &device{queues: map[[2]uint32]api.Handle{}}
	queues := []vk.DeviceQueueCreateInfo{}
	counts := map[uint32]uint32{}
	for _, f := range info.QueueFamilies {
		phys, err := d.family(f.Flags)
		if err != nil {
			return 0, err
		}
		dev.families = append(dev.families, phys)
		if f.Count > counts[phys] {
			counts[phys] = f.Count
		}
	}
	for phys, n := range counts {
		if max := d.families[phys].QueueCount; n > max {
			n = max
		}
		priorities := make([]float32, n)
		for i := range priorities {
			priorities[i] = 1
		}
		queues = append(queues, vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: phys,
			QueueCount:       n,
			PQueuePriorities: priorities,
		})
	}
	ci := vk.DeviceCreateInfo{
		SType:                vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount: uint32(len(queues)),
		PQueueCreateInfos:    queues,
	}
	if err := check(vk.CreateDevice(d.physical, &ci, nil, &dev.vk)); err != nil {
		return 0, errors.Wrap(err, "vkCreateDevice")
	}
	return api.Device(d.add(dev)), nil
}

func (d *Driver) DestroyDevice(ctx context.Context, h api.Device) error {
	dev, err := destroy[device](d, api.Handle(h))
	if dev != nil {
		for _, q := range dev.queues {
			d.remove(q)
		}
		vk.DestroyDevice(dev.vk, nil)
	}
	return err
}

func (d *Driver) GetDeviceQueue(ctx context.Context, h api.Device, family, index uint32) (api.Queue, error) {
	dev, err := lookup[device](d, api.Handle(h))
	if err != nil {
		return 0, err
	}
	if int(family) >= len(dev.families) {
		return 0, errors.Wrapf(api.ErrInvalidHandle, "Queue family %d of %d", family, len(dev.families))
	}
	key := [2]uint32{family, index}
	d.mu.Lock()
	qh, ok := dev.queues[key]
	d.mu.Unlock()
	if ok {
		return api.Queue(qh), nil
	}
	q := &queue{}
	vk.GetDeviceQueue(dev.vk, dev.families[family], index, &q.vk)
	qh = d.add(q)
	d.mu.Lock()
	dev.queues[key] = qh
	d.mu.Unlock()
	return api.Queue(qh), nil
}

func (d *Driver) DeviceWaitIdle(ctx context.Context, h api.Device) error {
	dev, err := lookup[device](d, api.Handle(h))
	if err != nil {
		return err
	}
	return check(vk.DeviceWaitIdle(dev.vk))
}
