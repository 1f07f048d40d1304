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

package tracker

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/andrew-lunarg/lavatube/api"
)

// NoIndex is the index of a reference to nothing.
const NoIndex = ^uint32(0)

// Ref is an index-based back-reference to a record.
type Ref struct {
	Kind  api.ObjectType
	Index uint32
}

// NoRef is the reference to nothing.
var NoRef = Ref{Index: NoIndex}

// Valid returns true if the reference names an object.
func (r Ref) Valid() bool { return r.Index != NoIndex && r.Kind.Valid() }

func (r Ref) String() string {
	if !r.Valid() {
		return "<none>"
	}
	return fmt.Sprintf("%v#%d", r.Kind, r.Index)
}

// Stamp names a call made by a thread: the call numbered Call (from zero) in
// thread Thread's sequence.
type Stamp struct {
	Thread int
	Call   uint32
}

// NoStamp is the stamp of a record that was never written.
var NoStamp = Stamp{Thread: -1}

// Record is the tracked state of one API object.
//
// Records are owned by the Registry. A record is mutated only by the thread
// that most recently stamped it, or after a barrier proves the previous
// owner is done with it.
type Record struct {
	Index          uint32
	Kind           api.ObjectType
	Handle         api.Handle
	FrameCreated   int
	FrameDestroyed int
	Name           string
	// Thread is the thread that last mutated the record, -1 until the
	// first mutation.
	Thread int
	// Call is the number of the last mutating call within Thread.
	Call    uint32
	Payload Payload

	// Prior is the destroy stamp of the record that previously held Index.
	Prior Stamp

	mu        sync.Mutex
	uses      map[int]uint32
	destroyed atomic.Bool
}

// Ref returns a reference to the record.
func (r *Record) Ref() Ref {
	if r == nil {
		return NoRef
	}
	return Ref{Kind: r.Kind, Index: r.Index}
}

// Destroyed returns true once the object has been destroyed.
func (r *Record) Destroyed() bool { return r.destroyed.Load() }

// Stamp returns the stamp of the last mutation.
func (r *Record) Stamp() Stamp {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Stamp{Thread: r.Thread, Call: r.Call}
}

// Use records that call of thread reads the record, and returns the stamps
// the call depends on: the last mutation, if another thread made it.
func (r *Record) Use(thread int, call uint32) []Stamp {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.uses == nil {
		r.uses = map[int]uint32{}
	}
	r.uses[thread] = call
	if r.Thread >= 0 && r.Thread != thread {
		return []Stamp{{Thread: r.Thread, Call: r.Call}}
	}
	return nil
}

// Mutate records that call of thread writes the record, and returns the
// stamps the call depends on: the last mutation and every use since it, from
// other threads, plus the destroy of the index's previous holder.
// Mutating a destroyed record is an invariant violation.
func (r *Record) Mutate(thread int, call uint32) ([]Stamp, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Destroyed() {
		last := Stamp{Thread: r.Thread, Call: r.Call}
		return nil, stamped(r, last, r.FrameDestroyed, "mutated after destruction by thread %d call %d", thread, call)
	}
	deps := []Stamp{}
	if r.Thread < 0 && r.Prior.Thread >= 0 && r.Prior.Thread != thread {
		deps = append(deps, r.Prior)
	}
	if r.Thread >= 0 && r.Thread != thread {
		deps = append(deps, Stamp{Thread: r.Thread, Call: r.Call})
	}
	for t, c := range r.uses {
		if t != thread {
			deps = append(deps, Stamp{Thread: t, Call: c})
		}
	}
	r.uses = nil
	r.Thread, r.Call = thread, call
	return deps, nil
}

func (r *Record) markDestroyed(frame int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.FrameDestroyed = frame
	r.destroyed.Store(true)
}
