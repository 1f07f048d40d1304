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

package packet_test

import (
	"bytes"
	"testing"

	"github.com/andrew-lunarg/lavatube/barrier"
	"github.com/andrew-lunarg/lavatube/core/data/endian"
	"github.com/andrew-lunarg/lavatube/core/math/interval"
	"github.com/andrew-lunarg/lavatube/packet"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStream(t *testing.T) {
	buf := &bytes.Buffer{}
	w := endian.Writer(buf, endian.LittleEndian)
	require.NoError(t, packet.WriteHeader(w, 3))
	packet.WriteBarrier(w, []barrier.Target{{Thread: 1, Count: 12}, {Thread: 4, Count: 2}})
	packet.WriteCall(w, packet.Call{ID: 7, Cookie: 0})
	w.Uint32(0xabcd)
	update := packet.Update{
		Device: 1,
		Object: 9,
		Ranges: []interval.U64Span{{Start: 4, End: 6}, {Start: 10, End: 13}},
		Data:   []byte{1, 2, 3, 4, 5},
	}
	require.NoError(t, packet.WriteUpdate(w, packet.BufferUpdate, update))
	packet.WriteType(w, packet.End)
	require.NoError(t, w.Error())

	r := endian.Reader(buf, endian.LittleEndian)
	h, err := packet.ReadHeader(r)
	require.NoError(t, err)
	assert.Equal(t, packet.Header{Version: packet.Version, Thread: 3}, h)

	ty, err := packet.ReadType(r)
	require.NoError(t, err)
	assert.Equal(t, packet.ThreadBarrier, ty)
	targets, err := packet.ReadBarrier(r)
	require.NoError(t, err)
	assert.Equal(t, []barrier.Target{{Thread: 1, Count: 12}, {Thread: 4, Count: 2}}, targets)

	ty, _ = packet.ReadType(r)
	assert.Equal(t, packet.APICall, ty)
	call, err := packet.ReadCall(r)
	require.NoError(t, err)
	assert.Equal(t, packet.Call{ID: 7}, call)
	assert.Equal(t, uint32(0xabcd), r.Uint32())

	ty, _ = packet.ReadType(r)
	assert.Equal(t, packet.BufferUpdate, ty)
	got, err := packet.ReadUpdate(r)
	require.NoError(t, err)
	assert.Equal(t, update, got)

	ty, err = packet.ReadType(r)
	require.NoError(t, err)
	assert.Equal(t, packet.End, ty)
}

func TestUnknownType(t *testing.T) {
	r := endian.Reader(bytes.NewReader([]byte{9}), endian.LittleEndian)
	_, err := packet.ReadType(r)
	assert.Equal(t, packet.ErrFormat, errors.Cause(err))
}

func TestMissingTerminator(t *testing.T) {
	r := endian.Reader(bytes.NewReader(nil), endian.LittleEndian)
	_, err := packet.ReadType(r)
	assert.Equal(t, packet.ErrFormat, errors.Cause(err))
}

func TestTruncated(t *testing.T) {
	buf := &bytes.Buffer{}
	w := endian.Writer(buf, endian.LittleEndian)
	require.NoError(t, packet.WriteUpdate(w, packet.ImageUpdate, packet.Update{
		Ranges: []interval.U64Span{{Start: 0, End: 8}},
		Data:   make([]byte, 8),
	}))
	data := buf.Bytes()[1 : buf.Len()-3]
	_, err := packet.ReadUpdate(endian.Reader(bytes.NewReader(data), endian.LittleEndian))
	assert.Equal(t, packet.ErrFormat, errors.Cause(err))
}

func TestBadHeader(t *testing.T) {
	r := endian.Reader(bytes.NewReader([]byte("tape\x01\x00\x00\x00\x00\x00")), endian.LittleEndian)
	_, err := packet.ReadHeader(r)
	assert.Equal(t, packet.ErrIncorrectMagic, errors.Cause(err))

	r = endian.Reader(bytes.NewReader([]byte("tube\x02\x00\x00\x00\x00\x00")), endian.LittleEndian)
	_, err = packet.ReadHeader(r)
	assert.Equal(t, packet.ErrFormat, errors.Cause(err))
}

func TestRanges(t *testing.T) {
	buf := &bytes.Buffer{}
	w := endian.Writer(buf, endian.LittleEndian)
	assert.Error(t, packet.WriteRanges(w, []interval.U64Span{{Start: 0, End: 4}}, []byte{1}))

	// Overlapping ranges are rejected on read.
	w.Uint32(2)
	w.Uint64(0)
	w.Uint64(4)
	w.Uint64(2)
	w.Uint64(4)
	_, _, err := packet.ReadRanges(endian.Reader(buf, endian.LittleEndian))
	assert.Equal(t, packet.ErrFormat, errors.Cause(err))
}
