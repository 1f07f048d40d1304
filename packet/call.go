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
	"github.com/andrew-lunarg/lavatube/barrier"
	"github.com/andrew-lunarg/lavatube/core/data/binary"
	"github.com/pkg/errors"
)

// Call is the fixed part of an APICall packet. The call's arguments follow
// it in a shape fixed by ID.
type Call struct {
	ID uint16
	// Cookie is the thread's call number for this call.
	Cookie int32
}

// WriteCall writes an APICall packet header.
func WriteCall(w binary.Writer, c Call) {
	WriteType(w, APICall)
	w.Uint16(c.ID)
	w.Int32(c.Cookie)
}

// ReadCall reads the body of an APICall packet, after its type.
func ReadCall(r binary.Reader) (Call, error) {
	c := Call{ID: r.Uint16(), Cookie: r.Int32()}
	return c, truncated(r, "call")
}

// MaxThreads bounds the number of targets in a barrier.
const MaxThreads = 1 << 16

// WriteBarrier writes a ThreadBarrier packet for targets.
func WriteBarrier(w binary.Writer, targets []barrier.Target) {
	WriteType(w, ThreadBarrier)
	w.Uint16(uint16(len(targets)))
	for _, t := range targets {
		w.Uint16(uint16(t.Thread))
		w.Uint32(t.Count)
	}
}

// ReadBarrier reads the body of a ThreadBarrier packet.
func ReadBarrier(r binary.Reader) ([]barrier.Target, error) {
	n := int(r.Uint16())
	if err := truncated(r, "barrier"); err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, errors.Wrap(ErrFormat, "empty barrier")
	}
	out := make([]barrier.Target, n)
	for i := range out {
		out[i] = barrier.Target{Thread: int(r.Uint16()), Count: r.Uint32()}
	}
	return out, truncated(r, "barrier")
}
