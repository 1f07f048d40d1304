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

// Package endian implements binary.Reader and binary.Writer over byte streams
// of a fixed byte order.
package endian

import (
	eb "encoding/binary"
	"io"

	"github.com/andrew-lunarg/lavatube/core/data/binary"
	"github.com/pkg/errors"
)

// Endian is a byte order.
type Endian int

const (
	// LittleEndian orders the least significant byte first.
	LittleEndian Endian = iota
	// BigEndian orders the most significant byte first.
	BigEndian
)

// maxString bounds decoded string lengths so a corrupt length cannot
// trigger a huge allocation.
const maxString = 1 << 20

func byteOrder(endian Endian) eb.ByteOrder {
	if endian == BigEndian {
		return eb.BigEndian
	}
	return eb.LittleEndian
}

// Reader creates a binary.Reader that reads from the provided io.Reader, with
// the specified byte order.
func Reader(r io.Reader, endian Endian) binary.Reader {
	return &reader{reader: r, byteOrder: byteOrder(endian)}
}

// Writer creates a binary.Writer that writes to the supplied stream, with the
// specified byte order.
func Writer(w io.Writer, endian Endian) binary.Writer {
	return &writer{writer: w, byteOrder: byteOrder(endian)}
}

type reader struct {
	reader    io.Reader
	tmp       [8]byte
	byteOrder eb.ByteOrder
	err       error
}

type writer struct {
	writer    io.Writer
	tmp       [8]byte
	byteOrder eb.ByteOrder
	err       error
}

func (r *reader) Read(p []byte) (n int, err error) {
	if r.err != nil {
		return 0, r.err
	}
	return r.reader.Read(p)
}

func (r *reader) Data(p []byte) {
	if r.err != nil {
		return
	}
	if _, err := io.ReadFull(r.reader, p); err != nil {
		r.err = err
	}
}

func (r *reader) fill(n int) []byte {
	b := r.tmp[:n]
	if r.err != nil {
		for i := range b {
			b[i] = 0
		}
		return b
	}
	if _, err := io.ReadFull(r.reader, b); err != nil {
		r.err = err
		for i := range b {
			b[i] = 0
		}
	}
	return b
}

func (r *reader) Bool() bool       { return r.Uint8() != 0 }
func (r *reader) Uint8() uint8     { return r.fill(1)[0] }
func (r *reader) Uint16() uint16   { return r.byteOrder.Uint16(r.fill(2)) }
func (r *reader) Int32() int32     { return int32(r.Uint32()) }
func (r *reader) Uint32() uint32   { return r.byteOrder.Uint32(r.fill(4)) }
func (r *reader) Int64() int64     { return int64(r.Uint64()) }
func (r *reader) Uint64() uint64   { return r.byteOrder.Uint64(r.fill(8)) }
func (r *reader) Error() error     { return r.err }
func (r *reader) SetError(e error) { r.err = e }

func (r *reader) String() string {
	n := r.Uint32()
	if n > maxString {
		r.SetError(errors.Errorf("String length %d exceeds limit", n))
		return ""
	}
	if r.err != nil || n == 0 {
		return ""
	}
	b := make([]byte, n)
	r.Data(b)
	return string(b)
}

func (w *writer) Data(data []byte) {
	if w.err != nil {
		return
	}
	n, err := w.writer.Write(data)
	if err != nil {
		w.err = err
	} else if n != len(data) {
		w.err = io.ErrShortWrite
	}
}

func (w *writer) Bool(v bool) {
	if v {
		w.Uint8(1)
	} else {
		w.Uint8(0)
	}
}

func (w *writer) Uint8(v uint8) {
	w.tmp[0] = v
	w.Data(w.tmp[:1])
}

func (w *writer) Uint16(v uint16) {
	w.byteOrder.PutUint16(w.tmp[:], v)
	w.Data(w.tmp[:2])
}

func (w *writer) Uint32(v uint32) {
	w.byteOrder.PutUint32(w.tmp[:], v)
	w.Data(w.tmp[:4])
}

func (w *writer) Uint64(v uint64) {
	w.byteOrder.PutUint64(w.tmp[:], v)
	w.Data(w.tmp[:8])
}

func (w *writer) Int32(v int32)    { w.Uint32(uint32(v)) }
func (w *writer) Int64(v int64)    { w.Uint64(uint64(v)) }
func (w *writer) Error() error     { return w.err }
func (w *writer) SetError(e error) { w.err = e }

func (w *writer) String(v string) {
	w.Uint32(uint32(len(v)))
	w.Data([]byte(v))
}
