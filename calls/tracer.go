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

// Package calls binds each API call to the capture and replay cores: a
// Thread records calls as it forwards them to a driver, and Table decodes
// them again for a replay.Reader.
package calls

import (
	"context"

	"github.com/andrew-lunarg/lavatube/api"
	"github.com/andrew-lunarg/lavatube/capture"
	"github.com/andrew-lunarg/lavatube/core/data/binary"
	"github.com/andrew-lunarg/lavatube/tracker"
	"github.com/pkg/errors"
)

// Tracer records the calls an application makes through its per-thread
// drivers.
type Tracer struct {
	Writer *capture.Writer
	driver api.Driver
}

// NewTracer returns a Tracer forwarding calls to driver and recording them
// into w.
func NewTracer(w *capture.Writer, driver api.Driver) *Tracer {
	return &Tracer{Writer: w, driver: driver}
}

// Thread returns the driver for application thread id. The returned driver
// must only be used by one goroutine at a time.
func (t *Tracer) Thread(ctx context.Context, id int) (*Thread, error) {
	ct, err := t.Writer.Thread(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Thread{tracer: t, ct: ct, d: t.driver, reg: t.Writer.Registry}, nil
}

// Close ends the capture.
func (t *Tracer) Close(ctx context.Context) error { return t.Writer.Close(ctx) }

// Thread is an api.Driver that records every call it forwards.
type Thread struct {
	tracer *Tracer
	ct     *capture.Thread
	d      api.Driver
	reg    *tracker.Registry
}

var _ api.Driver = (*Thread)(nil)

// Name implements api.Driver.
func (t *Thread) Name() string { return "capture of " + t.d.Name() }

// ID returns the application thread the driver records.
func (t *Thread) ID() int { return t.ct.ID() }

func (t *Thread) begin(id uint16) *capture.Call { return t.ct.Begin(id) }

func (t *Thread) frame() int { return t.tracer.Writer.Frame() }

// get returns the live record of the non-null handle h.
func (t *Thread) get(kind api.ObjectType, h api.Handle) (*tracker.Record, error) {
	if h.IsNull() {
		return nil, errors.Wrapf(api.ErrInvalidHandle, "Null %v", kind)
	}
	return t.reg.Resolve(kind, h)
}

// opt is get for handles that may be null.
func (t *Thread) opt(kind api.ObjectType, h api.Handle) (*tracker.Record, error) {
	if h.IsNull() {
		return nil, nil
	}
	return t.reg.Resolve(kind, h)
}

// all resolves a list of handles.
func all[H ~uint64](t *Thread, kind api.ObjectType, hs []H) ([]*tracker.Record, error) {
	out := make([]*tracker.Record, len(hs))
	for i, h := range hs {
		rec, err := t.get(kind, api.Handle(h))
		if err != nil {
			return nil, err
		}
		out[i] = rec
	}
	return out, nil
}

// refs writes a counted list of record indices.
func refs(c *capture.Call, recs []*tracker.Record) {
	c.Args().Uint32(uint32(len(recs)))
	for _, rec := range recs {
		c.Ref(rec)
	}
}

// owned returns the live records of kind whose payload refers to parent.
func owned(reg *tracker.Registry, kind api.ObjectType, parent *tracker.Record) []*tracker.Record {
	ref := parent.Ref()
	out := []*tracker.Record{}
	reg.Each(kind, func(rec *tracker.Record) {
		for _, r := range rec.Payload.References() {
			if r == ref {
				out = append(out, rec)
				return
			}
		}
	})
	return out
}

// writeImageInfo and readImageInfo encode an image's creation properties.
func writeImageInfo(w binary.Writer, info api.ImageCreateInfo) {
	w.Uint32(info.Flags)
	w.Uint32(uint32(info.ImageType))
	w.Uint32(uint32(info.Format))
	w.Uint32(info.Extent.Width)
	w.Uint32(info.Extent.Height)
	w.Uint32(info.Extent.Depth)
	w.Uint32(info.MipLevels)
	w.Uint32(info.ArrayLayers)
	w.Uint32(info.Samples)
	w.Uint32(uint32(info.Tiling))
	w.Uint32(uint32(info.Usage))
	w.Uint32(uint32(info.SharingMode))
	w.Uint32(uint32(info.InitialLayout))
}

func readImageInfo(r binary.Reader) api.ImageCreateInfo {
	return api.ImageCreateInfo{
		Flags:         r.Uint32(),
		ImageType:     api.ImageType(r.Uint32()),
		Format:        api.Format(r.Uint32()),
		Extent:        api.Extent3D{Width: r.Uint32(), Height: r.Uint32(), Depth: r.Uint32()},
		MipLevels:     r.Uint32(),
		ArrayLayers:   r.Uint32(),
		Samples:       r.Uint32(),
		Tiling:        api.ImageTiling(r.Uint32()),
		Usage:         api.ImageUsageFlags(r.Uint32()),
		SharingMode:   api.SharingMode(r.Uint32()),
		InitialLayout: api.ImageLayout(r.Uint32()),
	}
}
