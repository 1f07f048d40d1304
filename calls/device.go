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

import (
	"context"

	"github.com/andrew-lunarg/lavatube/api"
	"github.com/andrew-lunarg/lavatube/replay"
	"github.com/andrew-lunarg/lavatube/tracker"
)

func (t *Thread) CreateDevice(ctx context.Context, info api.DeviceCreateInfo) (api.Device, error) {
	dev, err := t.d.CreateDevice(ctx, info)
	if err != nil {
		return 0, err
	}
	c := t.begin(IDCreateDevice)
	c.Args().Uint32(uint32(len(info.QueueFamilies)))
	for _, f := range info.QueueFamilies {
		c.Args().Uint32(uint32(f.Flags))
		c.Args().Uint32(f.Count)
	}
	c.Ref(c.Create(api.ObjectDevice, api.Handle(dev), &tracker.Device{Info: info}))
	return dev, c.End(ctx)
}

func replayCreateDevice(ctx context.Context, c *replay.Call) error {
	info := api.DeviceCreateInfo{}
	for i, n := 0, count(c); i < n; i++ {
		info.QueueFamilies = append(info.QueueFamilies, api.QueueFamilyInfo{
			Flags: api.QueueFlags(c.Args.Uint32()),
			Count: c.Args.Uint32(),
		})
	}
	index := c.Index()
	if err := decoded(c); err != nil {
		return err
	}
	dev, err := c.Driver().CreateDevice(ctx, info)
	if err != nil {
		return err
	}
	_, err = c.Create(api.ObjectDevice, index, api.Handle(dev), &tracker.Device{Info: info})
	return err
}

// DestroyDevice also retires the device's queues.
func (t *Thread) DestroyDevice(ctx context.Context, dev api.Device) error {
	drec, err := t.get(api.ObjectDevice, api.Handle(dev))
	if err != nil {
		return err
	}
	if err := t.d.DestroyDevice(ctx, dev); err != nil {
		return err
	}
	c := t.begin(IDDestroyDevice)
	c.Ref(drec)
	for _, q := range owned(t.reg, api.ObjectQueue, drec) {
		c.Destroy(q)
	}
	c.Destroy(drec)
	return c.End(ctx)
}

func replayDestroyDevice(ctx context.Context, c *replay.Call) error {
	drec, dev, err := device(c)
	if err != nil {
		return err
	}
	if err := c.Driver().DestroyDevice(ctx, dev); err != nil {
		return err
	}
	for _, q := range owned(c.Registry(), api.ObjectQueue, drec) {
		if err := c.Destroy(q); err != nil {
			return err
		}
	}
	return c.Destroy(drec)
}

func queueFlags(drec *tracker.Record, family uint32) api.QueueFlags {
	info := drec.Payload.(*tracker.Device).Info
	if family < uint32(len(info.QueueFamilies)) {
		return info.QueueFamilies[family].Flags
	}
	return 0
}

// GetDeviceQueue registers a queue the first time it is seen.
func (t *Thread) GetDeviceQueue(ctx context.Context, dev api.Device, family, index uint32) (api.Queue, error) {
	drec, err := t.get(api.ObjectDevice, api.Handle(dev))
	if err != nil {
		return 0, err
	}
	q, err := t.d.GetDeviceQueue(ctx, dev, family, index)
	if err != nil {
		return 0, err
	}
	c := t.begin(IDGetDeviceQueue)
	c.Use(drec)
	c.Ref(drec)
	c.Args().Uint32(family)
	c.Args().Uint32(index)
	rec, err := t.reg.Resolve(api.ObjectQueue, api.Handle(q))
	if err != nil {
		rec = c.Create(api.ObjectQueue, api.Handle(q), &tracker.Queue{
			Device: drec.Ref(),
			Family: family,
			Index:  index,
			Flags:  queueFlags(drec, family),
		})
	} else {
		c.Use(rec)
	}
	c.Ref(rec)
	return q, c.End(ctx)
}

func replayGetDeviceQueue(ctx context.Context, c *replay.Call) error {
	drec, dev, err := device(c)
	if err != nil {
		return err
	}
	family, index := c.Args.Uint32(), c.Args.Uint32()
	qi := c.Index()
	if err := decoded(c); err != nil {
		return err
	}
	q, err := c.Driver().GetDeviceQueue(ctx, dev, family, index)
	if err != nil {
		return err
	}
	if rec := c.Registry().Peek(api.ObjectQueue, qi); rec != nil && !rec.Destroyed() && rec.Handle == api.Handle(q) {
		return nil
	}
	_, err = c.Create(api.ObjectQueue, qi, api.Handle(q), &tracker.Queue{
		Device: drec.Ref(),
		Family: family,
		Index:  index,
		Flags:  queueFlags(drec, family),
	})
	return err
}

func (t *Thread) DeviceWaitIdle(ctx context.Context, dev api.Device) error {
	drec, err := t.get(api.ObjectDevice, api.Handle(dev))
	if err != nil {
		return err
	}
	if err := t.d.DeviceWaitIdle(ctx, dev); err != nil {
		return err
	}
	c := t.begin(IDDeviceWaitIdle)
	c.Use(drec)
	c.Ref(drec)
	return c.End(ctx)
}

func replayDeviceWaitIdle(ctx context.Context, c *replay.Call) error {
	_, dev, err := device(c)
	if err != nil {
		return err
	}
	return c.Driver().DeviceWaitIdle(ctx, dev)
}

// destroy records a destroy call taking a device and one object. Destroying
// the null handle is forwarded but not recorded.
func (t *Thread) destroy(ctx context.Context, id uint16, kind api.ObjectType, dev api.Device, h api.Handle, f func() error) error {
	if h.IsNull() {
		return f()
	}
	drec, err := t.get(api.ObjectDevice, api.Handle(dev))
	if err != nil {
		return err
	}
	rec, err := t.get(kind, h)
	if err != nil {
		return err
	}
	if err := f(); err != nil {
		return err
	}
	c := t.begin(id)
	c.Ref(drec)
	c.Ref(rec)
	c.Destroy(rec)
	return c.End(ctx)
}
