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

package packet

import (
	"github.com/andrew-lunarg/lavatube/core/data/binary"
	"github.com/andrew-lunarg/lavatube/core/math/interval"
	"github.com/pkg/errors"
)

const (
	// MaxRanges bounds the number of ranges in one range list.
	MaxRanges = 1 << 20
	// MaxBytes bounds the content bytes of one range list.
	MaxBytes = 1 << 32
)

// Update is the body of an ImageUpdate or BufferUpdate packet: new contents
// for ranges of an object, relative to the start of the object.
type Update struct {
	// Device is the registry index of the owning device.
	Device uint32
	// Object is the registry index of the image or buffer.
	Object uint32
	Ranges []interval.U64Span
	// Data holds the bytes of every range, concatenated.
	Data []byte
}

// WriteUpdate writes an update packet of type t.
func WriteUpdate(w binary.Writer, t Type, u Update) error {
	if t != ImageUpdate && t != BufferUpdate {
		return errors.Errorf("%v is not an update packet", t)
	}
	WriteType(w, t)
	w.Uint32(u.Device)
	w.Uint32(u.Object)
	return WriteRanges(w, u.Ranges, u.Data)
}

// ReadUpdate reads the body of an update packet.
func ReadUpdate(r binary.Reader) (Update, error) {
	u := Update{Device: r.Uint32(), Object: r.Uint32()}
	if err := truncated(r, "update"); err != nil {
		return u, err
	}
	var err error
	u.Ranges, u.Data, err = ReadRanges(r)
	return u, err
}

// WriteRanges writes a range list: the count, each range as offset and size,
// then data, which must hold the bytes of every range.
func WriteRanges(w binary.Writer, ranges []interval.U64Span, data []byte) error {
	total := uint64(0)
	for _, s := range ranges {
		total += s.Size()
	}
	if total != uint64(len(data)) {
		return errors.Errorf("%d bytes of data for ranges covering %d", len(data), total)
	}
	w.Uint32(uint32(len(ranges)))
	for _, s := range ranges {
		w.Uint64(s.Start)
		w.Uint64(s.Size())
	}
	w.Data(data)
	return w.Error()
}

// ReadRanges reads a range list written by WriteRanges. Ranges must be
// ascending and disjoint.
func ReadRanges(r binary.Reader) ([]interval.U64Span, []byte, error) {
	n := r.Uint32()
	if err := truncated(r, "range count"); err != nil {
		return nil, nil, err
	}
	if n > MaxRanges {
		return nil, nil, errors.Wrapf(ErrFormat, "%d ranges exceeds limit", n)
	}
	ranges := make([]interval.U64Span, n)
	total, end := uint64(0), uint64(0)
	for i := range ranges {
		offset, size := r.Uint64(), r.Uint64()
		if err := truncated(r, "range"); err != nil {
			return nil, nil, err
		}
		if size == 0 || offset+size < offset || (i > 0 && offset < end) {
			return nil, nil, errors.Wrapf(ErrFormat, "bad range %d at offset %d size %d", i, offset, size)
		}
		total += size
		if total > MaxBytes {
			return nil, nil, errors.Wrapf(ErrFormat, "range data exceeds %d bytes", uint64(MaxBytes))
		}
		end = offset + size
		ranges[i] = interval.U64Span{Start: offset, End: end}
	}
	data := make([]byte, total)
	r.Data(data)
	return ranges, data, truncated(r, "range data")
}
