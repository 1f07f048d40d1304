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
	"github.com/andrew-lunarg/lavatube/packet"
	"github.com/andrew-lunarg/lavatube/replay"
	"github.com/andrew-lunarg/lavatube/tracker"
	"github.com/pkg/errors"
)

func (t *Thread) CreateBuffer(ctx context.Context, dev api.Device, info api.BufferCreateInfo) (api.Buffer, error) {
	drec, err := t.get(api.ObjectDevice, api.Handle(dev))
	if err != nil {
		return 0, err
	}
	buf, err := t.d.CreateBuffer(ctx, dev, info)
	if err != nil {
		return 0, err
	}
	req, err := t.d.GetBufferMemoryRequirements(ctx, dev, buf)
	if err != nil {
		t.d.DestroyBuffer(ctx, dev, buf)
		return 0, err
	}
	c := t.begin(IDCreateBuffer)
	c.Use(drec)
	c.Ref(drec)
	c.Args().Uint32(info.Flags)
	c.Args().Uint64(info.Size)
	c.Args().Uint32(uint32(info.Usage))
	c.Args().Uint32(uint32(info.SharingMode))
	c.Ref(c.Create(api.ObjectBuffer, api.Handle(buf), &tracker.Buffer{
		Object: tracker.Object{Device: drec.Ref(), Memory: tracker.NoRef, Size: info.Size, Requirements: req},
		Info:   info,
	}))
	return buf, c.End(ctx)
}

func replayCreateBuffer(ctx context.Context, c *replay.Call) error {
	drec, dev, err := device(c)
	if err != nil {
		return err
	}
	info := api.BufferCreateInfo{
		Flags:       c.Args.Uint32(),
		Size:        c.Args.Uint64(),
		Usage:       api.BufferUsageFlags(c.Args.Uint32()),
		SharingMode: api.SharingMode(c.Args.Uint32()),
	}
	index := c.Index()
	if err := decoded(c); err != nil {
		return err
	}
	buf, err := c.Driver().CreateBuffer(ctx, dev, info)
	if err != nil {
		return err
	}
	req, err := c.Driver().GetBufferMemoryRequirements(ctx, dev, buf)
	if err != nil {
		return err
	}
	_, err = c.Create(api.ObjectBuffer, index, api.Handle(buf), &tracker.Buffer{
		Object: tracker.Object{Device: drec.Ref(), Memory: tracker.NoRef, Size: info.Size, Requirements: req},
		Info:   info,
	})
	return err
}

func (t *Thread) DestroyBuffer(ctx context.Context, dev api.Device, buf api.Buffer) error {
	return t.destroy(ctx, IDDestroyBuffer, api.ObjectBuffer, dev, api.Handle(buf), func() error {
		return t.d.DestroyBuffer(ctx, dev, buf)
	})
}

func (t *Thread) GetBufferMemoryRequirements(ctx context.Context, dev api.Device, buf api.Buffer) (api.MemoryRequirements, error) {
	return t.d.GetBufferMemoryRequirements(ctx, dev, buf)
}

func (t *Thread) GetImageMemoryRequirements(ctx context.Context, dev api.Device, img api.Image) (api.MemoryRequirements, error) {
	return t.d.GetImageMemoryRequirements(ctx, dev, img)
}

// bind records binding a buffer or image to memory.
func (t *Thread) bind(ctx context.Context, id uint16, kind api.ObjectType, dev api.Device, h api.Handle, mem api.DeviceMemory, offset uint64, f func() error) error {
	drec, err := t.get(api.ObjectDevice, api.Handle(dev))
	if err != nil {
		return err
	}
	rec, err := t.get(kind, h)
	if err != nil {
		return err
	}
	mrec, err := t.get(api.ObjectDeviceMemory, api.Handle(mem))
	if err != nil {
		return err
	}
	if err := f(); err != nil {
		return err
	}
	c := t.begin(id)
	c.Use(drec, mrec)
	c.Mutate(rec)
	c.Ref(drec)
	c.Ref(rec)
	c.Ref(mrec)
	c.Args().Uint64(offset)
	c.Later(func() { bound(rec, mrec, offset) })
	return c.End(ctx)
}

func bound(rec, mrec *tracker.Record, offset uint64) {
	o := rec.Payload.(tracker.Backed).Common()
	o.Memory = mrec.Ref()
	o.MemoryOffset = offset
	o.Accessible = mrec.Payload.(*tracker.Memory).HostVisible()
}

func (t *Thread) BindBufferMemory(ctx context.Context, dev api.Device, buf api.Buffer, mem api.DeviceMemory, offset uint64) error {
	return t.bind(ctx, IDBindBufferMemory, api.ObjectBuffer, dev, api.Handle(buf), mem, offset, func() error {
		return t.d.BindBufferMemory(ctx, dev, buf, mem, offset)
	})
}

func (t *Thread) BindImageMemory(ctx context.Context, dev api.Device, img api.Image, mem api.DeviceMemory, offset uint64) error {
	return t.bind(ctx, IDBindImageMemory, api.ObjectImage, dev, api.Handle(img), mem, offset, func() error {
		return t.d.BindImageMemory(ctx, dev, img, mem, offset)
	})
}

func replayBind(ctx context.Context, c *replay.Call, kind api.ObjectType) error {
	_, dev, err := device(c)
	if err != nil {
		return err
	}
	rec, err := object(c, kind)
	if err != nil {
		return err
	}
	mrec, err := object(c, api.ObjectDeviceMemory)
	if err != nil {
		return err
	}
	offset := c.Args.Uint64()
	if err := decoded(c); err != nil {
		return err
	}
	mem := handle[api.DeviceMemory](mrec)
	if kind == api.ObjectBuffer {
		err = c.Driver().BindBufferMemory(ctx, dev, handle[api.Buffer](rec), mem, offset)
	} else {
		err = c.Driver().BindImageMemory(ctx, dev, handle[api.Image](rec), mem, offset)
	}
	if err != nil {
		return err
	}
	bound(rec, mrec, offset)
	return c.Mutate(rec)
}

func replayBindBufferMemory(ctx context.Context, c *replay.Call) error {
	return replayBind(ctx, c, api.ObjectBuffer)
}

func replayBindImageMemory(ctx context.Context, c *replay.Call) error {
	return replayBind(ctx, c, api.ObjectImage)
}

func (t *Thread) CreateImage(ctx context.Context, dev api.Device, info api.ImageCreateInfo) (api.Image, error) {
	drec, err := t.get(api.ObjectDevice, api.Handle(dev))
	if err != nil {
		return 0, err
	}
	img, err := t.d.CreateImage(ctx, dev, info)
	if err != nil {
		return 0, err
	}
	req, err := t.d.GetImageMemoryRequirements(ctx, dev, img)
	if err != nil {
		t.d.DestroyImage(ctx, dev, img)
		return 0, err
	}
	c := t.begin(IDCreateImage)
	c.Use(drec)
	c.Ref(drec)
	writeImageInfo(c.Args(), info)
	c.Ref(c.Create(api.ObjectImage, api.Handle(img), &tracker.Image{
		Object: tracker.Object{Device: drec.Ref(), Memory: tracker.NoRef, Size: req.Size, Requirements: req},
		Info:   info,
	}))
	return img, c.End(ctx)
}

func replayCreateImage(ctx context.Context, c *replay.Call) error {
	drec, dev, err := device(c)
	if err != nil {
		return err
	}
	info := readImageInfo(c.Args)
	index := c.Index()
	if err := decoded(c); err != nil {
		return err
	}
	img, err := c.Driver().CreateImage(ctx, dev, info)
	if err != nil {
		return err
	}
	req, err := c.Driver().GetImageMemoryRequirements(ctx, dev, img)
	if err != nil {
		return err
	}
	_, err = c.Create(api.ObjectImage, index, api.Handle(img), &tracker.Image{
		Object: tracker.Object{Device: drec.Ref(), Memory: tracker.NoRef, Size: req.Size, Requirements: req},
		Info:   info,
	})
	return err
}

func (t *Thread) DestroyImage(ctx context.Context, dev api.Device, img api.Image) error {
	return t.destroy(ctx, IDDestroyImage, api.ObjectImage, dev, api.Handle(img), func() error {
		return t.d.DestroyImage(ctx, dev, img)
	})
}

func (t *Thread) CreateImageView(ctx context.Context, dev api.Device, info api.ImageViewCreateInfo) (api.ImageView, error) {
	drec, err := t.get(api.ObjectDevice, api.Handle(dev))
	if err != nil {
		return 0, err
	}
	irec, err := t.get(api.ObjectImage, api.Handle(info.Image))
	if err != nil {
		return 0, err
	}
	view, err := t.d.CreateImageView(ctx, dev, info)
	if err != nil {
		return 0, err
	}
	c := t.begin(IDCreateImageView)
	c.Use(drec, irec)
	c.Ref(drec)
	c.Ref(irec)
	c.Args().Uint32(uint32(info.Format))
	c.Args().Uint32(info.BaseMipLevel)
	c.Args().Uint32(info.LevelCount)
	c.Args().Uint32(info.BaseArrayLayer)
	c.Args().Uint32(info.LayerCount)
	c.Ref(c.Create(api.ObjectImageView, api.Handle(view), &tracker.ImageView{
		Device:      drec.Ref(),
		Image:       irec.Ref(),
		ImageHandle: irec.Handle,
		Info:        info,
	}))
	return view, c.End(ctx)
}

func replayCreateImageView(ctx context.Context, c *replay.Call) error {
	drec, dev, err := device(c)
	if err != nil {
		return err
	}
	irec, err := object(c, api.ObjectImage)
	if err != nil {
		return err
	}
	info := api.ImageViewCreateInfo{
		Image:          handle[api.Image](irec),
		Format:         api.Format(c.Args.Uint32()),
		BaseMipLevel:   c.Args.Uint32(),
		LevelCount:     c.Args.Uint32(),
		BaseArrayLayer: c.Args.Uint32(),
		LayerCount:     c.Args.Uint32(),
	}
	index := c.Index()
	if err := decoded(c); err != nil {
		return err
	}
	view, err := c.Driver().CreateImageView(ctx, dev, info)
	if err != nil {
		return err
	}
	_, err = c.Create(api.ObjectImageView, index, api.Handle(view), &tracker.ImageView{
		Device:      drec.Ref(),
		Image:       irec.Ref(),
		ImageHandle: irec.Handle,
		Info:        info,
	})
	return err
}

func (t *Thread) DestroyImageView(ctx context.Context, dev api.Device, view api.ImageView) error {
	return t.destroy(ctx, IDDestroyImageView, api.ObjectImageView, dev, api.Handle(view), func() error {
		return t.d.DestroyImageView(ctx, dev, view)
	})
}

func (t *Thread) CreateBufferView(ctx context.Context, dev api.Device, info api.BufferViewCreateInfo) (api.BufferView, error) {
	drec, err := t.get(api.ObjectDevice, api.Handle(dev))
	if err != nil {
		return 0, err
	}
	brec, err := t.get(api.ObjectBuffer, api.Handle(info.Buffer))
	if err != nil {
		return 0, err
	}
	view, err := t.d.CreateBufferView(ctx, dev, info)
	if err != nil {
		return 0, err
	}
	c := t.begin(IDCreateBufferView)
	c.Use(drec, brec)
	c.Ref(drec)
	c.Ref(brec)
	c.Args().Uint32(uint32(info.Format))
	c.Args().Uint64(info.Offset)
	c.Args().Uint64(info.Range)
	c.Ref(c.Create(api.ObjectBufferView, api.Handle(view), &tracker.BufferView{
		Device:       drec.Ref(),
		Buffer:       brec.Ref(),
		BufferHandle: brec.Handle,
		Info:         info,
	}))
	return view, c.End(ctx)
}

func replayCreateBufferView(ctx context.Context, c *replay.Call) error {
	drec, dev, err := device(c)
	if err != nil {
		return err
	}
	brec, err := object(c, api.ObjectBuffer)
	if err != nil {
		return err
	}
	info := api.BufferViewCreateInfo{
		Buffer: handle[api.Buffer](brec),
		Format: api.Format(c.Args.Uint32()),
		Offset: c.Args.Uint64(),
		Range:  c.Args.Uint64(),
	}
	index := c.Index()
	if err := decoded(c); err != nil {
		return err
	}
	view, err := c.Driver().CreateBufferView(ctx, dev, info)
	if err != nil {
		return err
	}
	_, err = c.Create(api.ObjectBufferView, index, api.Handle(view), &tracker.BufferView{
		Device:       drec.Ref(),
		Buffer:       brec.Ref(),
		BufferHandle: brec.Handle,
		Info:         info,
	})
	return err
}

func (t *Thread) DestroyBufferView(ctx context.Context, dev api.Device, view api.BufferView) error {
	return t.destroy(ctx, IDDestroyBufferView, api.ObjectBufferView, dev, api.Handle(view), func() error {
		return t.d.DestroyBufferView(ctx, dev, view)
	})
}

func (t *Thread) CreateRenderPass(ctx context.Context, dev api.Device, info api.RenderPassCreateInfo) (api.RenderPass, error) {
	drec, err := t.get(api.ObjectDevice, api.Handle(dev))
	if err != nil {
		return 0, err
	}
	rp, err := t.d.CreateRenderPass(ctx, dev, info)
	if err != nil {
		return 0, err
	}
	c := t.begin(IDCreateRenderPass)
	c.Use(drec)
	c.Ref(drec)
	c.Args().Uint32(uint32(len(info.Attachments)))
	for _, f := range info.Attachments {
		c.Args().Uint32(uint32(f))
	}
	c.Ref(c.Create(api.ObjectRenderPass, api.Handle(rp), &tracker.RenderPass{Device: drec.Ref(), Info: info}))
	return rp, c.End(ctx)
}

func replayCreateRenderPass(ctx context.Context, c *replay.Call) error {
	drec, dev, err := device(c)
	if err != nil {
		return err
	}
	info := api.RenderPassCreateInfo{}
	for i, n := 0, count(c); i < n; i++ {
		info.Attachments = append(info.Attachments, api.Format(c.Args.Uint32()))
	}
	index := c.Index()
	if err := decoded(c); err != nil {
		return err
	}
	rp, err := c.Driver().CreateRenderPass(ctx, dev, info)
	if err != nil {
		return err
	}
	_, err = c.Create(api.ObjectRenderPass, index, api.Handle(rp), &tracker.RenderPass{Device: drec.Ref(), Info: info})
	return err
}

func (t *Thread) DestroyRenderPass(ctx context.Context, dev api.Device, rp api.RenderPass) error {
	return t.destroy(ctx, IDDestroyRenderPass, api.ObjectRenderPass, dev, api.Handle(rp), func() error {
		return t.d.DestroyRenderPass(ctx, dev, rp)
	})
}

func (t *Thread) CreateFramebuffer(ctx context.Context, dev api.Device, info api.FramebufferCreateInfo) (api.Framebuffer, error) {
	drec, err := t.get(api.ObjectDevice, api.Handle(dev))
	if err != nil {
		return 0, err
	}
	rprec, err := t.get(api.ObjectRenderPass, api.Handle(info.RenderPass))
	if err != nil {
		return 0, err
	}
	views, err := all(t, api.ObjectImageView, info.Attachments)
	if err != nil {
		return 0, err
	}
	fb, err := t.d.CreateFramebuffer(ctx, dev, info)
	if err != nil {
		return 0, err
	}
	c := t.begin(IDCreateFramebuffer)
	c.Use(drec, rprec)
	c.Use(views...)
	c.Ref(drec)
	c.Ref(rprec)
	refs(c, views)
	c.Args().Uint32(info.Width)
	c.Args().Uint32(info.Height)
	c.Args().Uint32(info.Layers)
	c.Ref(c.Create(api.ObjectFramebuffer, api.Handle(fb), framebuffer(drec, rprec, views, info)))
	return fb, c.End(ctx)
}

func framebuffer(drec, rprec *tracker.Record, views []*tracker.Record, info api.FramebufferCreateInfo) *tracker.Framebuffer {
	p := &tracker.Framebuffer{Device: drec.Ref(), RenderPass: rprec.Ref(), Info: info}
	for _, v := range views {
		p.Attachments = append(p.Attachments, v.Ref())
	}
	return p
}

func replayCreateFramebuffer(ctx context.Context, c *replay.Call) error {
	drec, dev, err := device(c)
	if err != nil {
		return err
	}
	rprec, err := object(c, api.ObjectRenderPass)
	if err != nil {
		return err
	}
	views, err := getAll(c, api.ObjectImageView)
	if err != nil {
		return err
	}
	info := api.FramebufferCreateInfo{
		RenderPass:  handle[api.RenderPass](rprec),
		Attachments: handles[api.ImageView](views),
		Width:       c.Args.Uint32(),
		Height:      c.Args.Uint32(),
		Layers:      c.Args.Uint32(),
	}
	index := c.Index()
	if err := decoded(c); err != nil {
		return err
	}
	fb, err := c.Driver().CreateFramebuffer(ctx, dev, info)
	if err != nil {
		return err
	}
	_, err = c.Create(api.ObjectFramebuffer, index, api.Handle(fb), framebuffer(drec, rprec, views, info))
	return err
}

func (t *Thread) DestroyFramebuffer(ctx context.Context, dev api.Device, fb api.Framebuffer) error {
	return t.destroy(ctx, IDDestroyFramebuffer, api.ObjectFramebuffer, dev, api.Handle(fb), func() error {
		return t.d.DestroyFramebuffer(ctx, dev, fb)
	})
}

func (t *Thread) CreatePipeline(ctx context.Context, dev api.Device, info api.PipelineCreateInfo) (api.Pipeline, error) {
	drec, err := t.get(api.ObjectDevice, api.Handle(dev))
	if err != nil {
		return 0, err
	}
	rprec, err := t.opt(api.ObjectRenderPass, api.Handle(info.RenderPass))
	if err != nil {
		return 0, err
	}
	p, err := t.d.CreatePipeline(ctx, dev, info)
	if err != nil {
		return 0, err
	}
	c := t.begin(IDCreatePipeline)
	c.Use(drec, rprec)
	c.Ref(drec)
	c.Ref(rprec)
	c.Args().Uint32(uint32(info.BindPoint))
	c.Args().Uint32(info.Flags)
	c.Ref(c.Create(api.ObjectPipeline, api.Handle(p), pipeline(drec, rprec, info)))
	return p, c.End(ctx)
}

func pipeline(drec, rprec *tracker.Record, info api.PipelineCreateInfo) *tracker.Pipeline {
	return &tracker.Pipeline{Device: drec.Ref(), RenderPass: rprec.Ref(), BindPoint: info.BindPoint, Flags: info.Flags}
}

func replayCreatePipeline(ctx context.Context, c *replay.Call) error {
	drec, dev, err := device(c)
	if err != nil {
		return err
	}
	rprec, err := c.Get(api.ObjectRenderPass)
	if err != nil {
		return err
	}
	info := api.PipelineCreateInfo{
		BindPoint: api.PipelineBindPoint(c.Args.Uint32()),
		Flags:     c.Args.Uint32(),
	}
	if rprec != nil {
		info.RenderPass = handle[api.RenderPass](rprec)
	}
	index := c.Index()
	if err := decoded(c); err != nil {
		return err
	}
	if !info.BindPoint.Valid() {
		return errors.Wrapf(packet.ErrFormat, "Pipeline bind point %d", info.BindPoint)
	}
	p, err := c.Driver().CreatePipeline(ctx, dev, info)
	if err != nil {
		return err
	}
	_, err = c.Create(api.ObjectPipeline, index, api.Handle(p), pipeline(drec, rprec, info))
	return err
}

func (t *Thread) DestroyPipeline(ctx context.Context, dev api.Device, p api.Pipeline) error {
	return t.destroy(ctx, IDDestroyPipeline, api.ObjectPipeline, dev, api.Handle(p), func() error {
		return t.d.DestroyPipeline(ctx, dev, p)
	})
}
