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

package interval_test

import (
	"testing"

	"github.com/andrew-lunarg/lavatube/core/math/interval"
	"github.com/stretchr/testify/assert"
)

type span = interval.U64Span
type list = interval.U64SpanList

func TestMerge(t *testing.T) {
	for _, test := range []struct {
		name     string
		list     list
		with     span
		joinAdj  bool
		expected list
	}{
		{"empty", list{}, span{0, 10}, true, list{{0, 10}}},
		{"zero length", list{{0, 10}}, span{20, 20}, true, list{{0, 10}}},
		{"between", list{{0, 10}, {40, 50}}, span{20, 30}, true, list{{0, 10}, {20, 30}, {40, 50}}},
		{"before", list{{10, 20}}, span{0, 5}, true, list{{0, 5}, {10, 20}}},
		{"after", list{{10, 20}}, span{30, 40}, true, list{{10, 20}, {30, 40}}},
		{"overlap start", list{{10, 20}}, span{5, 15}, true, list{{5, 20}}},
		{"overlap end", list{{10, 20}}, span{15, 25}, true, list{{10, 25}}},
		{"inside", list{{10, 20}}, span{12, 18}, true, list{{10, 20}}},
		{"covers many", list{{0, 5}, {10, 20}, {30, 40}, {50, 60}}, span{8, 45}, true, list{{0, 5}, {8, 45}, {50, 60}}},
		{"adjacent joined", list{{0, 10}}, span{10, 20}, true, list{{0, 20}}},
		{"adjacent kept apart", list{{0, 10}}, span{10, 20}, false, list{{0, 10}, {10, 20}}},
		{"bridge", list{{0, 10}, {20, 30}}, span{10, 20}, true, list{{0, 30}}},
	} {
		l := test.list.Clone()
		interval.Merge(&l, test.with, test.joinAdj)
		assert.Equal(t, test.expected, l, test.name)
	}
}

func TestRemove(t *testing.T) {
	for _, test := range []struct {
		name     string
		list     list
		remove   span
		expected list
	}{
		{"miss", list{{0, 10}}, span{20, 30}, list{{0, 10}}},
		{"exact", list{{0, 10}, {20, 30}}, span{0, 10}, list{{20, 30}}},
		{"split", list{{0, 100}}, span{10, 20}, list{{0, 10}, {20, 100}}},
		{"trim start", list{{10, 20}}, span{0, 15}, list{{15, 20}}},
		{"trim end", list{{10, 20}}, span{15, 25}, list{{10, 15}}},
		{"span many", list{{0, 10}, {20, 30}, {40, 50}}, span{5, 45}, list{{0, 5}, {45, 50}}},
	} {
		l := test.list.Clone()
		interval.Remove(&l, test.remove)
		assert.Equal(t, test.expected, l, test.name)
	}
}

func TestIntersect(t *testing.T) {
	l := list{{0, 10}, {20, 30}, {40, 50}}
	first, count := interval.Intersect(l, span{5, 25})
	assert.Equal(t, 0, first)
	assert.Equal(t, 2, count)
	first, count = interval.Intersect(l, span{10, 20})
	assert.Equal(t, 0, count)
	first, count = interval.Intersect(l, span{45, 100})
	assert.Equal(t, 2, first)
	assert.Equal(t, 1, count)
}

func TestIndexOf(t *testing.T) {
	l := list{{0, 10}, {20, 30}}
	assert.Equal(t, 0, interval.IndexOf(l, 0))
	assert.Equal(t, -1, interval.IndexOf(l, 10))
	assert.Equal(t, 1, interval.IndexOf(l, 29))
	assert.Equal(t, -1, interval.IndexOf(l, 30))
}

func TestSpanHelpers(t *testing.T) {
	assert.Equal(t, uint64(10), span{10, 20}.Size())
	assert.True(t, span{0, 10}.Overlaps(span{9, 11}))
	assert.False(t, span{0, 10}.Overlaps(span{10, 11}))
	assert.Equal(t, span{5, 10}, span{0, 10}.Clamp(span{5, 15}))
	assert.Equal(t, span{0, 30}, list{{0, 10}, {20, 30}}.Bounds())
	assert.Equal(t, uint64(20), list{{0, 10}, {20, 30}}.Total())
}
