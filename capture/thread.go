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

package capture

import (
	"bufio"
	"io"
	"sort"

	"github.com/andrew-lunarg/lavatube/barrier"
	"github.com/andrew-lunarg/lavatube/core/data/binary"
	"github.com/andrew-lunarg/lavatube/packet"
	"github.com/andrew-lunarg/lavatube/tracker"
)

// Thread records the calls of one application thread.
type Thread struct {
	w      *Writer
	id     int
	stream io.WriteCloser
	buf    *bufio.Writer
	out    binary.Writer
	// call is the number of calls completed, and so the number of the next.
	call uint32
	// known holds, per other thread, the call count this stream has
	// already waited for.
	known map[int]uint32
}

// ID returns the thread's index.
func (t *Thread) ID() int { return t.id }

// Writer returns the capture the thread belongs to.
func (t *Thread) Writer() *Writer { return t.w }

// Calls returns the number of calls the thread has completed.
func (t *Thread) Calls() uint32 { return t.call }

// Begin starts recording call id.
func (t *Thread) Begin(id uint16) *Call {
	return newCall(t, id)
}

// targets converts dependency stamps into the barrier targets this stream
// does not already satisfy.
func (t *Thread) targets(deps []tracker.Stamp) []barrier.Target {
	need := map[int]uint32{}
	for _, d := range deps {
		if d.Thread < 0 || d.Thread == t.id {
			continue
		}
		if c := d.Call + 1; c > need[d.Thread] {
			need[d.Thread] = c
		}
	}
	out := []barrier.Target{}
	for thread, count := range need {
		if t.known[thread] >= count {
			continue
		}
		t.known[thread] = count
		out = append(out, barrier.Target{Thread: thread, Count: count})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Thread < out[j].Thread })
	return out
}

func (t *Thread) close() error {
	packet.WriteType(t.out, packet.End)
	if err := t.out.Error(); err != nil {
		t.stream.Close()
		return err
	}
	if err := t.buf.Flush(); err != nil {
		t.stream.Close()
		return err
	}
	return t.stream.Close()
}
