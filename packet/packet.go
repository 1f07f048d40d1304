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

// Package packet implements the per-thread trace stream encoding.
//
// A stream is a header followed by packets. Each packet starts with a one
// byte Type. API calls carry their call id and the thread's call number,
// barriers carry the points other threads must have reached, and updates
// carry out-of-band object contents. A stream ends with an End packet.
// All values are little endian.
package packet

import (
	"fmt"
	"io"

	"github.com/andrew-lunarg/lavatube/core/data/binary"
	"github.com/andrew-lunarg/lavatube/core/fault"
	"github.com/pkg/errors"
)

const (
	// ErrFormat is the cause of every error decoding a malformed stream.
	ErrFormat = fault.Const("Trace format error")
	// ErrIncorrectMagic is returned when a stream does not start with Magic.
	ErrIncorrectMagic = fault.Const("Incorrect stream magic header")
)

// Magic starts every stream.
var Magic = [4]byte{'t', 'u', 'b', 'e'}

// Version is the stream version written by this package.
const Version uint32 = 1

// Type is a packet type discriminant.
type Type uint8

const (
	End           Type = 0
	APICall       Type = 2
	ThreadBarrier Type = 3
	ImageUpdate   Type = 4
	BufferUpdate  Type = 5
)

func (t Type) String() string {
	switch t {
	case End:
		return "End"
	case APICall:
		return "APICall"
	case ThreadBarrier:
		return "ThreadBarrier"
	case ImageUpdate:
		return "ImageUpdate"
	case BufferUpdate:
		return "BufferUpdate"
	}
	return fmt.Sprintf("Type(%d)", uint8(t))
}

// Valid returns true for the types a stream may contain.
func (t Type) Valid() bool {
	switch t {
	case End, APICall, ThreadBarrier, ImageUpdate, BufferUpdate:
		return true
	}
	return false
}

// Header starts each stream.
type Header struct {
	Version uint32
	Thread  uint16
}

// WriteHeader writes the stream header for thread.
func WriteHeader(w binary.Writer, thread uint16) error {
	w.Data(Magic[:])
	w.Uint32(Version)
	w.Uint16(thread)
	return w.Error()
}

// ReadHeader reads and checks a stream header.
func ReadHeader(r binary.Reader) (Header, error) {
	magic := [4]byte{}
	r.Data(magic[:])
	h := Header{Version: r.Uint32(), Thread: r.Uint16()}
	if err := truncated(r, "header"); err != nil {
		return h, err
	}
	if magic != Magic {
		return h, errors.Wrapf(ErrIncorrectMagic, "got %q", magic[:])
	}
	if h.Version != Version {
		return h, errors.Wrapf(ErrFormat, "unsupported stream version %d", h.Version)
	}
	return h, nil
}

// WriteType starts a packet of type t.
func WriteType(w binary.Writer, t Type) {
	w.Uint8(uint8(t))
}

// ReadType reads the type of the next packet. A stream that ends before its
// End packet, or an unknown type, is a format error.
func ReadType(r binary.Reader) (Type, error) {
	t := Type(r.Uint8())
	if err := r.Error(); err != nil {
		if err == io.EOF {
			return End, errors.Wrap(ErrFormat, "stream ends without terminator")
		}
		return End, truncated(r, "packet type")
	}
	if !t.Valid() {
		return t, errors.Wrapf(ErrFormat, "unknown packet type %d", uint8(t))
	}
	return t, nil
}

// truncated converts a reader failure into a format error.
func truncated(r binary.Reader, what string) error {
	err := r.Error()
	if err == nil {
		return nil
	}
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return errors.Wrapf(ErrFormat, "truncated %s", what)
	}
	return errors.Wrapf(err, "reading %s", what)
}
