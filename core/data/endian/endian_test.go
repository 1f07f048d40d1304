// Copyright (C) 2017 Google Inc.
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

package endian_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/andrew-lunarg/lavatube/core/data/binary"
	"github.com/andrew-lunarg/lavatube/core/data/endian"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLittleEndianLayout(t *testing.T) {
	buf := &bytes.Buffer{}
	w := endian.Writer(buf, endian.LittleEndian)
	w.Uint8(2)
	w.Uint16(0x0102)
	w.Int32(-1)
	w.Uint64(0x0807060504030201)
	require.NoError(t, w.Error())
	assert.Equal(t, []byte{
		2,
		0x02, 0x01,
		0xff, 0xff, 0xff, 0xff,
		1, 2, 3, 4, 5, 6, 7, 8,
	}, buf.Bytes())
}

func TestBigEndianLayout(t *testing.T) {
	buf := &bytes.Buffer{}
	w := endian.Writer(buf, endian.BigEndian)
	w.Uint32(0x01020304)
	assert.Equal(t, []byte{1, 2, 3, 4}, buf.Bytes())
}

func TestValues(t *testing.T) {
	buf := &bytes.Buffer{}
	w := endian.Writer(buf, endian.LittleEndian)
	w.Bool(true)
	w.Uint16(65535)
	w.Int32(-12345)
	w.Uint32(7)
	w.Int64(-1 << 40)
	w.String("vkCreateBuffer")
	w.Data([]byte{9, 8, 7})
	require.NoError(t, w.Error())

	r := endian.Reader(buf, endian.LittleEndian)
	assert.True(t, r.Bool())
	assert.Equal(t, uint16(65535), r.Uint16())
	assert.Equal(t, int32(-12345), r.Int32())
	assert.Equal(t, uint32(7), r.Uint32())
	assert.Equal(t, int64(-1<<40), r.Int64())
	assert.Equal(t, "vkCreateBuffer", r.String())
	data := make([]byte, 3)
	r.Data(data)
	assert.Equal(t, []byte{9, 8, 7}, data)
	require.NoError(t, r.Error())
}

func TestStickyError(t *testing.T) {
	r := endian.Reader(bytes.NewReader([]byte{1, 2}), endian.LittleEndian)
	assert.Equal(t, uint32(0), r.Uint32())
	assert.Equal(t, io.ErrUnexpectedEOF, r.Error())
	assert.Equal(t, uint8(0), r.Uint8())
	assert.Equal(t, io.ErrUnexpectedEOF, r.Error())
}

func TestStringLimit(t *testing.T) {
	buf := &bytes.Buffer{}
	w := endian.Writer(buf, endian.LittleEndian)
	w.Uint32(1 << 30)
	r := endian.Reader(buf, endian.LittleEndian)
	assert.Equal(t, "", r.String())
	assert.Error(t, r.Error())
}

func TestWriterLatchesError(t *testing.T) {
	buf := &bytes.Buffer{}
	var w binary.Writer = endian.Writer(buf, endian.LittleEndian)
	w.SetError(io.ErrClosedPipe)
	w.Uint64(1)
	assert.Zero(t, buf.Len())
	assert.Equal(t, io.ErrClosedPipe, w.Error())
}
