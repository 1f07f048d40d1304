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

// Package interval implements sorted lists of half-open uint64 intervals.
package interval

import (
	"slices"
	"sort"
)

// U64SpanList is a sorted list of disjoint, non-empty spans.
type U64SpanList []U64Span

// overlapping returns the index range [lo, hi) of the spans in l that
// overlap span. With touch set, spans that only abut span are included.
func overlapping(l U64SpanList, span U64Span, touch bool) (lo, hi int) {
	if touch {
		lo = sort.Search(len(l), func(i int) bool { return l[i].End >= span.Start })
		hi = sort.Search(len(l), func(i int) bool { return l[i].Start > span.End })
	} else {
		lo = sort.Search(len(l), func(i int) bool { return l[i].End > span.Start })
		hi = sort.Search(len(l), func(i int) bool { return l[i].Start >= span.End })
	}
	return lo, max(lo, hi)
}

// Merge adds span to l, absorbing every span it overlaps. With joinAdj set,
// spans that abut it are absorbed too. Empty spans are ignored.
func Merge(l *U64SpanList, span U64Span, joinAdj bool) {
	if span.Start >= span.End {
		return
	}
	lo, hi := overlapping(*l, span, joinAdj)
	if lo < hi {
		span.Start = min(span.Start, (*l)[lo].Start)
		span.End = max(span.End, (*l)[hi-1].End)
	}
	*l = slices.Replace(*l, lo, hi, span)
}

// Remove cuts span out of l, trimming or splitting the spans at its edges.
func Remove(l *U64SpanList, span U64Span) {
	if span.Start >= span.End {
		return
	}
	lo, hi := overlapping(*l, span, false)
	if lo == hi {
		return
	}
	var rest []U64Span
	if first := (*l)[lo]; first.Start < span.Start {
		rest = append(rest, U64Span{Start: first.Start, End: span.Start})
	}
	if last := (*l)[hi-1]; span.End < last.End {
		rest = append(rest, U64Span{Start: span.End, End: last.End})
	}
	*l = slices.Replace(*l, lo, hi, rest...)
}

// Intersect returns the index of the first span in l overlapping span and
// how many do.
func Intersect(l U64SpanList, span U64Span) (first, count int) {
	lo, hi := overlapping(l, span, false)
	return lo, hi - lo
}

// IndexOf returns the index of the span holding value, or -1.
func IndexOf(l U64SpanList, value uint64) int {
	i := sort.Search(len(l), func(i int) bool { return l[i].End > value })
	if i < len(l) && l[i].Start <= value {
		return i
	}
	return -1
}

// Clone returns a copy of l.
func (l U64SpanList) Clone() U64SpanList { return slices.Clone(l) }

// Bounds returns the span from the start of the first span to the end of
// the last, or the zero span for an empty list.
func (l U64SpanList) Bounds() U64Span {
	if len(l) == 0 {
		return U64Span{}
	}
	return U64Span{Start: l[0].Start, End: l[len(l)-1].End}
}

// Total returns the number of values covered by l.
func (l U64SpanList) Total() uint64 {
	total := uint64(0)
	for _, s := range l {
		total += s.Size()
	}
	return total
}
