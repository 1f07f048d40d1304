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

// Package memory tracks which bytes of mapped memory the application changed.
//
// A Set holds half-open byte ranges. Adjacent and overlapping ranges coalesce
// on insert, so a Set is always the minimal list of disjoint ranges covering
// everything added to it. A Shadow is the full-size copy of an allocation that
// live mapped memory is compared against to find those ranges.
package memory

import (
	"fmt"
	"strings"

	"github.com/andrew-lunarg/lavatube/core/math/interval"
	"github.com/pkg/errors"
)

// Set is an ordered set of disjoint half-open byte ranges.
// The zero value is an empty set.
type Set struct {
	spans interval.U64SpanList
}

// AddOS adds the size bytes starting at offset.
func (s *Set) AddOS(offset, size uint64) {
	s.Add(offset, offset+size)
}

// Add adds the range [start, end).
func (s *Set) Add(start, end uint64) {
	interval.Merge(&s.spans, interval.U64Span{Start: start, End: end}, true)
}

// Merge adds every range of o to s.
func (s *Set) Merge(o *Set) {
	for _, span := range o.spans {
		interval.Merge(&s.spans, span, true)
	}
}

// Remove cuts [start, end) out of the set.
func (s *Set) Remove(start, end uint64) {
	interval.Remove(&s.spans, interval.U64Span{Start: start, End: end})
}

// Span returns the minimal range bounding every range in the set.
func (s *Set) Span() interval.U64Span { return s.spans.Bounds() }

// Spans returns a copy of the ranges in ascending order.
func (s *Set) Spans() []interval.U64Span { return s.spans.Clone() }

// Len returns the number of disjoint ranges.
func (s *Set) Len() int { return len(s.spans) }

// Empty returns true if the set holds no bytes.
func (s *Set) Empty() bool { return len(s.spans) == 0 }

// Bytes returns the number of bytes covered by the set.
func (s *Set) Bytes() uint64 { return s.spans.Total() }

// Clear empties the set.
func (s *Set) Clear() { s.spans = s.spans[:0] }

// Clone returns an independent copy of the set.
func (s *Set) Clone() *Set { return &Set{spans: s.spans.Clone()} }

// Shift returns a copy of the set with every range moved up by delta and
// clipped to bound.
func (s *Set) Shift(delta uint64, bound interval.U64Span) *Set {
	out := &Set{}
	for _, span := range s.spans {
		moved := interval.U64Span{Start: span.Start + delta, End: span.End + delta}.Clamp(bound)
		if moved.Size() > 0 {
			out.spans = append(out.spans, moved)
		}
	}
	return out
}

// Check returns an error if any range extends past bound.
func (s *Set) Check(bound uint64) error {
	if span := s.Span(); span.End > bound {
		return errors.Errorf("exposure %v extends past %d", span, bound)
	}
	return nil
}

func (s *Set) String() string {
	parts := make([]string, len(s.spans))
	for i, span := range s.spans {
		parts[i] = span.String()
	}
	return fmt.Sprintf("{%s}", strings.Join(parts, " "))
}
