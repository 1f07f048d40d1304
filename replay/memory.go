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

package replay

import (
	"context"

	"github.com/andrew-lunarg/lavatube/api"
	"github.com/andrew-lunarg/lavatube/core/math/interval"
	"github.com/andrew-lunarg/lavatube/packet"
	"github.com/andrew-lunarg/lavatube/tracker"
	"github.com/pkg/errors"
)

// WriteMemory copies data into the ranges of the memory mem, relative to the
// allocation. data holds the bytes of every range, concatenated. Mapped
// memory is written through its mapping; otherwise the covered part of the
// allocation is mapped for the duration of the write.
func (r *Reader) WriteMemory(ctx context.Context, mem *tracker.Record, ranges []interval.U64Span, data []byte) error {
	if len(ranges) == 0 {
		return nil
	}
	m := mem.Payload.(*tracker.Memory)
	_, dev, err := r.Device(m.Device.Index)
	if err != nil {
		return err
	}
	m.Lock()
	defer m.Unlock()
	bounds := interval.U64Span{Start: ranges[0].Start, End: ranges[len(ranges)-1].End}
	ptr, base, done, err := r.window(ctx, mem, bounds)
	if err != nil {
		return err
	}
	defer done()
	flush := make([]api.MappedMemoryRange, len(ranges))
	for i, s := range ranges {
		n := copy(ptr[s.Start-base:s.End-base], data)
		data = data[n:]
		flush[i] = api.MappedMemoryRange{Memory: api.DeviceMemory(mem.Handle), Offset: s.Start, Size: s.Size()}
	}
	return r.Driver.FlushMappedMemoryRanges(ctx, dev, flush)
}

// ReadMemory returns a copy of the bytes of span of the memory mem, relative
// to the allocation.
func (r *Reader) ReadMemory(ctx context.Context, mem *tracker.Record, span interval.U64Span) ([]byte, error) {
	m := mem.Payload.(*tracker.Memory)
	m.Lock()
	defer m.Unlock()
	ptr, base, done, err := r.window(ctx, mem, span)
	if err != nil {
		return nil, err
	}
	defer done()
	return append([]byte(nil), ptr[span.Start-base:span.End-base]...), nil
}

// window returns a mapping of mem covering span and the allocation offset of
// its first byte. Unmapped memory is mapped until done is called. The memory
// must be locked.
func (r *Reader) window(ctx context.Context, mem *tracker.Record, span interval.U64Span) (ptr []byte, base uint64, done func(), err error) {
	m := mem.Payload.(*tracker.Memory)
	if span.End > m.AllocationSize {
		return nil, 0, nil, errors.Wrapf(packet.ErrFormat, "Access of %v beyond allocation of %d", span, m.AllocationSize)
	}
	if m.Mapped() {
		if span.Start < m.Offset || span.End > m.Offset+m.Size {
			return nil, 0, nil, errors.Wrapf(api.ErrBadState, "Access of %v outside mapped window [%d,+%d)", span, m.Offset, m.Size)
		}
		return m.Ptr, m.Offset, func() {}, nil
	}
	_, dev, err := r.Device(m.Device.Index)
	if err != nil {
		return nil, 0, nil, err
	}
	h := api.DeviceMemory(mem.Handle)
	if ptr, err = r.Driver.MapMemory(ctx, dev, h, span.Start, span.Size()); err != nil {
		return nil, 0, nil, err
	}
	return ptr, span.Start, func() { r.Driver.UnmapMemory(ctx, dev, h) }, nil
}
