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

// Package binary declares the value codecs the trace streams are written
// with. Both sides latch the first error: once set, reads return zero values
// and writes are dropped, so a packet can be coded without checking every
// field and checked once at the end.
package binary

import "io"

// Reader decodes fixed size values and length prefixed strings.
type Reader interface {
	io.Reader
	// Data fills the slice or fails.
	Data([]byte)
	Bool() bool
	Uint8() uint8
	Uint16() uint16
	Int32() int32
	Uint32() uint32
	Int64() int64
	Uint64() uint64
	// String reads a u32 byte count followed by the bytes.
	String() string
	// Error returns the error that stopped decoding, if any.
	Error() error
	// SetError stops decoding with err.
	SetError(err error)
}

// Writer encodes the values a Reader decodes.
type Writer interface {
	Data([]byte)
	Bool(bool)
	Uint8(uint8)
	Uint16(uint16)
	Int32(int32)
	Uint32(uint32)
	Int64(int64)
	Uint64(uint64)
	String(string)
	// Error returns the error that stopped encoding, if any.
	Error() error
	// SetError stops encoding with err.
	SetError(err error)
}
