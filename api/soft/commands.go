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

type commandPool struct {
	info api.CommandPoolCreateInfo
	cbs  map[api.CommandBuffer]struct{}
}

type cbState int

const (
	cbInitial cbState = iota
	cbRecording
	cbExecutable
)

type commandBuffer struct {
	pool  *commandPool
	level api.CommandBufferLevel
	state cbState
	ops   []func() error
	bound []api.DescriptorSet
	pipes map[api.PipelineBindPoint]api.Pipeline
}

func (d *Driver) CreateCommandPool(ctx context.Context, dev api.Device, info api.CommandPoolCreateInfo) (api.CommandPool, error) {
	return api.CommandPool(d.add(&commandPool{info: info, cbs: map[api.CommandBuffer]struct{}{}})), nil
}

func (d *Driver) DestroyCommandPool(ctx context.Context, dev api.Device, h api.CommandPool) error {
	p, err := destroy[commandPool](d, api.Handle(h))
	if err != nil || p == nil {
		return err
	}
	for cb := range p.cbs {
		d.remove(api.Handle(cb))
	}
	return nil
}

func (d *Driver) AllocateCommandBuffers(ctx context.Context, dev api.Device, info api.CommandBufferAllocateInfo) ([]api.CommandBuffer, error) {
	p, err := lookup[commandPool](d, api.Handle(info.CommandPool))
	if err != nil {
		return nil, err
	}
	out := make([]api.CommandBuffer, info.Count)
	for i := range out {
		out[i] = api.CommandBuffer(d.add(&commandBuffer{pool: p, level: info.Level}))
		d.mu.Lock()
		p.cbs[out[i]] = struct{}{}
		d.mu.Unlock()
	}
	return out, nil
}

func (d *Driver) FreeCommandBuffers(ctx context.Context, dev api.Device, ph api.CommandPool, cbs []api.CommandBuffer) error {
	p, err := lookup[commandPool](d, api.Handle(ph))
	if err != nil {
		return err
	}
	for _, cb := range cbs {
		if _, err := destroy[commandBuffer](d, api.Handle(cb)); err != nil {
			return err
		}
		d.mu.Lock()
		delete(p.cbs, cb)
		d.mu.Unlock()
	}
	return nil
}

func (d *Driver) BeginCommandBuffer(ctx context.Context, h api.CommandBuffer) error {
	cb, err := lookup[commandBuffer](d, api.Handle(h))
	if err != nil {
		return err
	}
	if cb.state == cbRecording {
		return errors.Wrap(api.ErrBadState, "Command buffer is already recording")
	}
	cb.state, cb.ops, cb.bound = cbRecording, nil, nil
	cb.pipes = map[api.PipelineBindPoint]api.Pipeline{}
	return nil
}

func (d *Driver) EndCommandBuffer(ctx context.Context, h api.CommandBuffer) error {
	cb, err := d.recording(h)
	if err != nil {
		return err
	}
	cb.state = cbExecutable
	return nil
}

func (d *Driver) recording(h api.CommandBuffer) (*commandBuffer, error) {
	cb, err := lookup[commandBuffer](d, api.Handle(h))
	if err != nil {
		return nil, err
	}
	if cb.state != cbRecording {
		return nil, errors.Wrap(api.ErrBadState, "Command buffer is not recording")
	}
	return cb, nil
}

func (d *Driver) boundBuffer(h api.Buffer) (*buffer, error) {
	b, err := lookup[buffer](d, api.Handle(h))
	if err != nil {
		return nil, err
	}
	if b.mem == nil {
		return nil, errors.Wrapf(api.ErrBadState, "Buffer %v has no memory bound", api.Handle(h))
	}
	return b, nil
}

func (d *Driver) boundImage(h api.Image) (*image, error) {
	i, err := lookup[image](d, api.Handle(h))
	if err != nil {
		return nil, err
	}
	if i.mem == nil {
		return nil, errors.Wrapf(api.ErrBadState, "Image %v has no memory bound", api.Handle(h))
	}
	return i, nil
}

func (d *Driver) CmdCopyBuffer(ctx context.Context, h api.CommandBuffer, src, dst api.Buffer, regions []api.BufferCopy) error {
	cb, err := d.recording(h)
	if err != nil {
		return err
	}
	s, err := d.boundBuffer(src)
	if err != nil {
		return err
	}
	t, err := d.boundBuffer(dst)
	if err != nil {
		return err
	}
	for _, r := range regions {
		r := r
		if r.SrcOffset+r.Size > s.info.Size || r.DstOffset+r.Size > t.info.Size {
			return errors.Wrapf(api.ErrBadState, "Copy region %+v out of bounds", r)
		}
		cb.ops = append(cb.ops, func() error {
			so, to := s.offset+r.SrcOffset, t.offset+r.DstOffset
			copy(t.mem.data[to:to+r.Size], s.mem.data[so:so+r.Size])
			return nil
		})
	}
	return nil
}

func (d *Driver) CmdUpdateBuffer(ctx context.Context, h api.CommandBuffer, dst api.Buffer, offset uint64, data []byte) error {
	cb, err := d.recording(h)
	if err != nil {
		return err
	}
	t, err := d.boundBuffer(dst)
	if err != nil {
		return err
	}
	if offset+uint64(len(data)) > t.info.Size {
		return errors.Wrapf(api.ErrBadState, "Update of %d bytes at %d out of bounds", len(data), offset)
	}
	payload := append([]byte(nil), data...)
	cb.ops = append(cb.ops, func() error {
		copy(t.mem.data[t.offset+offset:], payload)
		return nil
	})
	return nil
}

func (d *Driver) CmdCopyImage(ctx context.Context, h api.CommandBuffer, src, dst api.Image, regions []api.ImageCopy) error {
	cb, err := d.recording(h)
	if err != nil {
		return err
	}
	s, err := d.boundImage(src)
	if err != nil {
		return err
	}
	t, err := d.boundImage(dst)
	if err != nil {
		return err
	}
	bpp := s.info.Format.BytesPerTexel()
	if bpp != t.info.Format.BytesPerTexel() {
		return errors.Wrap(api.ErrBadState, "Image copy between incompatible formats")
	}
	for _, r := range regions {
		r := r
		if !fits(s.info.Extent, r.SrcOffset, r.Extent) || !fits(t.info.Extent, r.DstOffset, r.Extent) {
			return errors.Wrapf(api.ErrBadState, "Image copy region %+v out of bounds", r)
		}
		cb.ops = append(cb.ops, func() error {
			sb, tb := s.bytes(), t.bytes()
			row := uint64(r.Extent.Width) * bpp
			for z := uint64(0); z < uint64(max(r.Extent.Depth, 1)); z++ {
				for y := uint64(0); y < uint64(r.Extent.Height); y++ {
					so := texel(s.info.Extent, r.SrcOffset, y, z) * bpp
					to := texel(t.info.Extent, r.DstOffset, y, z) * bpp
					copy(tb[to:to+row], sb[so:so+row])
				}
			}
			return nil
		})
	}
	return nil
}

func fits(e api.Extent3D, o api.Offset3D, r api.Extent3D) bool {
	if o.X < 0 || o.Y < 0 || o.Z < 0 {
		return false
	}
	return uint64(o.X)+uint64(r.Width) <= uint64(e.Width) &&
		uint64(o.Y)+uint64(r.Height) <= uint64(e.Height) &&
		uint64(o.Z)+uint64(max(r.Depth, 1)) <= uint64(max(e.Depth, 1))
}

// texel returns the linear texel index of the first texel of row y, slice z
// of a region at offset o.
func texel(e api.Extent3D, o api.Offset3D, y, z uint64) uint64 {
	w, h := uint64(e.Width), uint64(e.Height)
	return ((uint64(o.Z)+z)*h+uint64(o.Y)+y)*w + uint64(o.X)
}
