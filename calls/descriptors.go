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

func (t *Thread) CreateDescriptorPool(ctx context.Context, dev api.Device, info api.DescriptorPoolCreateInfo) (api.DescriptorPool, error) {
	drec, err := t.get(api.ObjectDevice, api.Handle(dev))
	if err != nil {
		return 0, err
	}
	pool, err := t.d.CreateDescriptorPool(ctx, dev, info)
	if err != nil {
		return 0, err
	}
	c := t.begin(IDCreateDescriptorPool)
	c.Use(drec)
	c.Ref(drec)
	c.Args().Uint32(info.MaxSets)
	c.Ref(c.Create(api.ObjectDescriptorPool, api.Handle(pool), &tracker.DescriptorPool{Device: drec.Ref(), Info: info}))
	return pool, c.End(ctx)
}

func replayCreateDescriptorPool(ctx context.Context, c *replay.Call) error {
	drec, dev, err := device(c)
	if err != nil {
		return err
	}
	info := api.DescriptorPoolCreateInfo{MaxSets: c.Args.Uint32()}
	index := c.Index()
	if err := decoded(c); err != nil {
		return err
	}
	pool, err := c.Driver().CreateDescriptorPool(ctx, dev, info)
	if err != nil {
		return err
	}
	_, err = c.Create(api.ObjectDescriptorPool, index, api.Handle(pool), &tracker.DescriptorPool{Device: drec.Ref(), Info: info})
	return err
}

// DestroyDescriptorPool also frees the pool's sets.
func (t *Thread) DestroyDescriptorPool(ctx context.Context, dev api.Device, pool api.DescriptorPool) error {
	if api.Handle(pool).IsNull() {
		return t.d.DestroyDescriptorPool(ctx, dev, pool)
	}
	drec, err := t.get(api.ObjectDevice, api.Handle(dev))
	if err != nil {
		return err
	}
	prec, err := t.get(api.ObjectDescriptorPool, api.Handle(pool))
	if err != nil {
		return err
	}
	if err := t.d.DestroyDescriptorPool(ctx, dev, pool); err != nil {
		return err
	}
	c := t.begin(IDDestroyDescriptorPool)
	c.Ref(drec)
	c.Ref(prec)
	for _, set := range owned(t.reg, api.ObjectDescriptorSet, prec) {
		c.Destroy(set)
	}
	c.Destroy(prec)
	return c.End(ctx)
}

func replayDestroyDescriptorPool(ctx context.Context, c *replay.Call) error {
	_, dev, err := device(c)
	if err != nil {
		return err
	}
	prec, err := object(c, api.ObjectDescriptorPool)
	if err != nil {
		return err
	}
	if err := c.Driver().DestroyDescriptorPool(ctx, dev, handle[api.DescriptorPool](prec)); err != nil {
		return err
	}
	for _, set := range owned(c.Registry(), api.ObjectDescriptorSet, prec) {
		if err := c.Destroy(set); err != nil {
			return err
		}
	}
	return c.Destroy(prec)
}

func (t *Thread) AllocateDescriptorSets(ctx context.Context, dev api.Device, pool api.DescriptorPool, n uint32) ([]api.DescriptorSet, error) {
	drec, err := t.get(api.ObjectDevice, api.Handle(dev))
	if err != nil {
		return nil, err
	}
	prec, err := t.get(api.ObjectDescriptorPool, api.Handle(pool))
	if err != nil {
		return nil, err
	}
	sets, err := t.d.AllocateDescriptorSets(ctx, dev, pool, n)
	if err != nil {
		return nil, err
	}
	c := t.begin(IDAllocateDescriptorSets)
	c.Use(drec)
	c.Mutate(prec)
	c.Ref(drec)
	c.Ref(prec)
	c.Args().Uint32(uint32(len(sets)))
	for _, set := range sets {
		c.Ref(c.Create(api.ObjectDescriptorSet, api.Handle(set), &tracker.DescriptorSet{
			Device:  drec.Ref(),
			Pool:    prec.Ref(),
			Touched: tracker.Touched{},
		}))
	}
	return sets, c.End(ctx)
}

func replayAllocateDescriptorSets(ctx context.Context, c *replay.Call) error {
	drec, dev, err := device(c)
	if err != nil {
		return err
	}
	prec, err := object(c, api.ObjectDescriptorPool)
	if err != nil {
		return err
	}
	indices := make([]uint32, count(c))
	for i := range indices {
		indices[i] = c.Index()
	}
	if err := decoded(c); err != nil {
		return err
	}
	sets, err := c.Driver().AllocateDescriptorSets(ctx, dev, handle[api.DescriptorPool](prec), uint32(len(indices)))
	if err != nil {
		return err
	}
	for i, set := range sets {
		_, err := c.Create(api.ObjectDescriptorSet, indices[i], api.Handle(set), &tracker.DescriptorSet{
			Device:  drec.Ref(),
			Pool:    prec.Ref(),
			Touched: tracker.Touched{},
		})
		if err != nil {
			return err
		}
	}
	return c.Mutate(prec)
}

// UpdateDescriptorSets makes the written buffer ranges part of what each set
// exposes to command buffers it is bound to.
func (t *Thread) UpdateDescriptorSets(ctx context.Context, dev api.Device, writes []api.WriteDescriptorSet) error {
	drec, err := t.get(api.ObjectDevice, api.Handle(dev))
	if err != nil {
		return err
	}
	type write struct {
		set  *tracker.Record
		bufs []*tracker.Record
	}
	recs := make([]write, len(writes))
	for i, w := range writes {
		if recs[i].set, err = t.get(api.ObjectDescriptorSet, api.Handle(w.DstSet)); err != nil {
			return err
		}
		for _, b := range w.Buffers {
			brec, err := t.get(api.ObjectBuffer, api.Handle(b.Buffer))
			if err != nil {
				return err
			}
			recs[i].bufs = append(recs[i].bufs, brec)
		}
	}
	if err := t.d.UpdateDescriptorSets(ctx, dev, writes); err != nil {
		return err
	}
	c := t.begin(IDUpdateDescriptorSets)
	c.Use(drec)
	c.Ref(drec)
	c.Args().Uint32(uint32(len(writes)))
	for i, w := range writes {
		set := recs[i].set
		c.Mutate(set)
		c.Use(recs[i].bufs...)
		c.Ref(set)
		c.Args().Uint32(w.Binding)
		c.Args().Uint32(uint32(w.DescriptorType))
		c.Args().Uint32(uint32(len(w.Buffers)))
		touched := set.Payload.(*tracker.DescriptorSet).Touched
		for j, b := range w.Buffers {
			brec := recs[i].bufs[j]
			c.Ref(brec)
			c.Args().Uint64(b.Offset)
			c.Args().Uint64(b.Range)
			c.Later(func() {
				touched.Touch(brec.Ref(), brec.Payload.(*tracker.Buffer).Common(), b.Offset, b.Range)
			})
		}
	}
	return c.End(ctx)
}

func replayUpdateDescriptorSets(ctx context.Context, c *replay.Call) error {
	_, dev, err := device(c)
	if err != nil {
		return err
	}
	writes := make([]api.WriteDescriptorSet, count(c))
	sets := make([]*tracker.Record, len(writes))
	for i := range writes {
		if sets[i], err = object(c, api.ObjectDescriptorSet); err != nil {
			return err
		}
		w := api.WriteDescriptorSet{
			DstSet:         handle[api.DescriptorSet](sets[i]),
			Binding:        c.Args.Uint32(),
			DescriptorType: api.DescriptorType(c.Args.Uint32()),
		}
		for j, n := 0, count(c); j < n; j++ {
			brec, err := object(c, api.ObjectBuffer)
			if err != nil {
				return err
			}
			w.Buffers = append(w.Buffers, api.DescriptorBufferInfo{
				Buffer: handle[api.Buffer](brec),
				Offset: c.Args.Uint64(),
				Range:  c.Args.Uint64(),
			})
		}
		writes[i] = w
	}
	if err := decoded(c); err != nil {
		return err
	}
	if err := c.Driver().UpdateDescriptorSets(ctx, dev, writes); err != nil {
		return err
	}
	return c.Mutate(sets...)
}
