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

package soft

import (
	"context"

	"github.com/andrew-lunarg/lavatube/api"
	"github.com/pkg/errors"
)

type descriptorPool struct {
	info api.DescriptorPoolCreateInfo
	sets map[api.DescriptorSet]struct{}
}

type descriptorSet struct {
	bindings map[uint32][]api.DescriptorBufferInfo
}

func (d *Driver) CreateDescriptorPool(ctx context.Context, dev api.Device, info api.DescriptorPoolCreateInfo) (api.DescriptorPool, error) {
	return api.DescriptorPool(d.add(&descriptorPool{info: info, sets: map[api.DescriptorSet]struct{}{}})), nil
}

func (d *Driver) DestroyDescriptorPool(ctx context.Context, dev api.Device, h api.DescriptorPool) error {
	p, err := destroy[descriptorPool](d, api.Handle(h))
	if err != nil || p == nil {
		return err
	}
	for s := range p.sets {
		d.remove(api.Handle(s))
	}
	return nil
}

func (d *Driver) AllocateDescriptorSets(ctx context.Context, dev api.Device, h api.DescriptorPool, count uint32) ([]api.DescriptorSet, error) {
	p, err := lookup[descriptorPool](d, api.Handle(h))
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	used := uint32(len(p.sets))
	d.mu.Unlock()
	if used+count > p.info.MaxSets {
		return nil, errors.Wrapf(api.ErrOutOfDeviceMemory, "Descriptor pool holds %d of %d sets", used, p.info.MaxSets)
	}
	out := make([]api.DescriptorSet, count)
	for i := range out {
		out[i] = api.DescriptorSet(d.add(&descriptorSet{bindings: map[uint32][]api.DescriptorBufferInfo{}}))
		d.mu.Lock()
		p.sets[out[i]] = struct{}{}
		d.mu.Unlock()
	}
	return out, nil
}

func (d *Driver) UpdateDescriptorSets(ctx context.Context, dev api.Device, writes []api.WriteDescriptorSet) error {
	for _, w := range writes {
		s, err := lookup[descriptorSet](d, api.Handle(w.DstSet))
		if err != nil {
			return err
		}
		for _, b := range w.Buffers {
			if _, err := lookup[buffer](d, api.Handle(b.Buffer)); err != nil {
				return err
			}
		}
		d.mu.Lock()
		s.bindings[w.Binding] = append([]api.DescriptorBufferInfo(nil), w.Buffers...)
		d.mu.Unlock()
	}
	return nil
}

func (d *Driver) CmdBindDescriptorSets(ctx context.Context, h api.CommandBuffer, sets []api.DescriptorSet) error {
	cb, err := d.recording(h)
	if err != nil {
		return err
	}
	for _, s := range sets {
		if _, err := lookup[descriptorSet](d, api.Handle(s)); err != nil {
			return err
		}
	}
	cb.bound = append(cb.bound, sets...)
	return nil
}

func (d *Driver) CmdBindPipeline(ctx context.Context, h api.CommandBuffer, bind api.PipelineBindPoint, p api.Pipeline) error {
	cb, err := d.recording(h)
	if err != nil {
		return err
	}
	pipe, err := lookup[pipeline](d, api.Handle(p))
	if err != nil {
		return err
	}
	if pipe.info.BindPoint != bind {
		return errors.Wrapf(api.ErrBadState, "Pipeline for bind point %d bound to %d", pipe.info.BindPoint, bind)
	}
	cb.pipes[bind] = p
	return nil
}
