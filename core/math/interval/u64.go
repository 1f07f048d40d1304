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

package interval

import "fmt"

// U64Span is a half-open range of values, [Start, End).
type U64Span struct {
	Start uint64
	End   uint64
}

// Size returns the number of values in the span.
func (s U64Span) Size() uint64 {
	if s.End < s.Start {
		return 0
	}
	return s.End - s.Start
}

// Overlaps returns true if the two spans share at least one value.
func (s U64Span) Overlaps(o U64Span) bool {
	return s.Start < o.End && o.Start < s.End
}

// Clamp returns the part of s that lies within o.
func (s U64Span) Clamp(o U64Span) U64Span {
	if s.Start < o.Start {
		s.Start = o.Start
	}
	if s.End > o.End {
		s.End = o.End
	}
	if s.End < s.Start {
		s.End = s.Start
	}
	return s
}

func (s U64Span) String() string { return fmt.Sprintf("[%d,%d)", s.Start, s.End) }
