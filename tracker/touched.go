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
	"sort"

	"github.com/andrew-lunarg/lavatube/api"
	"github.com/andrew-lunarg/lavatube/memory"
)

// Touched maps buffers and images to the ranges of their contents, relative
// to the object, that a command buffer or descriptor set exposes.
type Touched map[Ref]*memory.Set

// Touch adds size bytes at offset of the object ref to t. Objects whose
// memory is not host visible are ignored. A size of api.WholeSize covers the
// rest of the object.
func (t Touched) Touch(ref Ref, obj *Object, offset, size uint64) {
	if !obj.Accessible || offset >= obj.Size {
		return
	}
	if size == api.WholeSize || offset+size > obj.Size {
		size = obj.Size - offset
	}
	if size == 0 {
		return
	}
	s, ok := t[ref]
	if !ok {
		s = &memory.Set{}
		t[ref] = s
	}
	s.AddOS(offset, size)
}

// Merge adds everything in o to t.
func (t Touched) Merge(o Touched) {
	for ref, set := range o {
		s, ok := t[ref]
		if !ok {
			s = &memory.Set{}
			t[ref] = s
		}
		s.Merge(set)
	}
}

// Refs returns the touched objects in a stable order.
func (t Touched) Refs() []Ref {
	out := make([]Ref, 0, len(t))
	for ref := range t {
		out = append(out, ref)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Index < out[j].Index
	})
	return out
}
