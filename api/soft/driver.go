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

// Package soft is a headless software implementation of api.Driver.
//
// Memory is host memory, command buffers record closures and every queue has
// a worker goroutine that executes submissions in order and then signals the
// submission's semaphores and fence. Swapchains own a fixed ring of images and
// never display anything.
package soft

import (
	"context"
	"sync"

	"github.com/andrew-lunarg/lavatube/api"
	"github.com/andrew-lunarg/lavatube/core/log"
	"github.com/pkg/errors"
)

const (
	bufferAlignment = 16
	imageAlignment  = 256
	memoryTypeBits  = 0x3
)

// Driver is the software api.Driver.
type Driver struct {
	mu      sync.Mutex
	next    api.Handle
	objects map[api.Handle]interface{}

	// gate is held by queue workers while executing a submission. Pause takes
	// it to hold all queue execution.
	gate sync.Mutex
}

var _ api.Driver = (*Driver)(nil)

// New returns a new software driver.
func New() *Driver {
	return &Driver{next: 0x1000, objects: map[api.Handle]interface{}{}}
}

// Name returns "soft".
func (d *Driver) Name() string { return "soft" }

// Pause stops queue workers from starting further submissions until Resume
// is called. Pause must not be called twice without a Resume in between.
func (d *Driver) Pause() { d.gate.Lock() }

// Resume restarts the queue workers stopped by Pause.
func (d *Driver) Resume() { d.gate.Unlock() }

// Live returns the number of live objects of all types.
func (d *Driver) Live() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.objects)
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

type device struct {
	info   api.DeviceCreateInfo
	queues map[[2]uint32]api.Queue
}

func (d *Driver) CreateDevice(ctx context.Context, info api.DeviceCreateInfo) (api.Device, error) {
	if len(info.QueueFamilies) == 0 {
		info.QueueFamilies = []api.QueueFamilyInfo{{Flags: api.QueueGraphics | api.QueueCompute | api.QueueTransfer, Count: 1}}
	}
	dev := &device{info: info, queues: map[[2]uint32]api.Queue{}}
	h := api.Device(d.add(dev))
	log.D(ctx, "Created soft device %v", api.Handle(h))
	return h, nil
}

func (d *Driver) DestroyDevice(ctx context.Context, h api.Device) error {
	dev, err := destroy[device](d, api.Handle(h))
	if err != nil || dev == nil {
		return err
	}
	for _, qh := range dev.queues {
		if q, err := destroy[queue](d, api.Handle(qh)); err == nil && q != nil {
			q.stop()
		}
	}
	return nil
}

func (d *Driver) GetDeviceQueue(ctx context.Context, h api.Device, family, index uint32) (api.Queue, error) {
	dev, err := lookup[device](d, api.Handle(h))
	if err != nil {
		return 0, err
	}
	if int(family) >= len(dev.info.QueueFamilies) || index >= dev.info.QueueFamilies[family].Count {
		return 0, errors.Wrapf(api.ErrBadState, "No queue %d in family %d", index, family)
	}
	key := [2]uint32{family, index}
	d.mu.Lock()
	qh, ok := dev.queues[key]
	d.mu.Unlock()
	if ok {
		return qh, nil
	}
	q := newQueue(d)
	qh = api.Queue(d.add(q))
	d.mu.Lock()
	dev.queues[key] = qh
	d.mu.Unlock()
	return qh, nil
}

func (d *Driver) DeviceWaitIdle(ctx context.Context, h api.Device) error {
	dev, err := lookup[device](d, api.Handle(h))
	if err != nil {
		return err
	}
	d.mu.Lock()
	queues := make([]api.Queue, 0, len(dev.queues))
	for _, q := range dev.queues {
		queues = append(queues, q)
	}
	d.mu.Unlock()
	for _, qh := range queues {
		q, err := lookup[queue](d, api.Handle(qh))
		if err != nil {
			continue
		}
		if err := q.idle(ctx); err != nil {
			return err
		}
	}
	return nil
}

func align(v, a uint64) uint64 { return (v + a - 1) &^ (a - 1) }
