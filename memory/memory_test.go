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

package memory_test

import (
	"testing"

	"github.com/andrew-lunarg/lavatube/core/math/interval"
	"github.com/andrew-lunarg/lavatube/memory"
	"github.com/stretchr/testify/assert"
)

type span = interval.U64Span

func TestSetCoalesces(t *testing.T) {
	s := memory.Set{}
	s.Add(0, 10)
	s.Add(5, 20)
	assert.Equal(t, []span{{Start: 0, End: 20}}, s.Spans())
	s.Add(30, 40)
	assert.Equal(t, []span{{Start: 0, End: 20}, {Start: 30, End: 40}}, s.Spans())
	s.AddOS(20, 10)
	assert.Equal(t, []span{{Start: 0, End: 40}}, s.Spans())
	assert.Equal(t, span{Start: 0, End: 40}, s.Span())
	assert.Equal(t, uint64(40), s.Bytes())
}

func TestSetCheck(t *testing.T) {
	s := memory.Set{}
	s.AddOS(90, 10)
	assert.NoError(t, s.Check(100))
	s.AddOS(95, 10)
	assert.Error(t, s.Check(100))
}

func TestSetMergeShift(t *testing.T) {
	a, b := memory.Set{}, memory.Set{}
	a.Add(0, 4)
	b.Add(2, 8)
	b.Add(20, 24)
	a.Merge(&b)
	assert.Equal(t, []span{{Start: 0, End: 8}, {Start: 20, End: 24}}, a.Spans())

	moved := a.Shift(100, span{Start: 100, End: 122})
	assert.Equal(t, []span{{Start: 100, End: 108}, {Start: 120, End: 122}}, moved.Spans())
	assert.Equal(t, 2, a.Len())

	a.Remove(2, 22)
	assert.Equal(t, []span{{Start: 0, End: 2}, {Start: 22, End: 24}}, a.Spans())
	a.Clear()
	assert.True(t, a.Empty())
}

func TestDiffMinimal(t *testing.T) {
	const size = 4096
	shadow := memory.NewShadow(size, 64)
	live := make([]byte, size)
	for i := 100; i < 150; i++ {
		live[i] = 0xcd
	}
	out := memory.Set{}
	changed := shadow.Diff(live, 0, span{Start: 0, End: size}, &out)
	assert.Equal(t, uint64(50), changed)
	assert.Equal(t, []span{{Start: 100, End: 150}}, out.Spans())

	again := memory.Set{}
	assert.Equal(t, uint64(0), shadow.Diff(live, 0, span{Start: 0, End: size}, &again))
	assert.True(t, again.Empty())
	assert.Equal(t, live[100:150], shadow.Read(span{Start: 100, End: 150}))
}

func TestDiffAcrossBlocks(t *testing.T) {
	shadow := memory.NewShadow(256, 16)
	live := make([]byte, 256)
	for i := 10; i < 40; i++ {
		live[i] = 1
	}
	live[200] = 7
	out := memory.Set{}
	shadow.Diff(live, 0, span{Start: 0, End: 256}, &out)
	assert.Equal(t, []span{{Start: 10, End: 40}, {Start: 200, End: 201}}, out.Spans())
}

func TestDiffWindowAndBase(t *testing.T) {
	shadow := memory.NewShadow(1024, 32)
	// A mapping of [512, 768).
	live := make([]byte, 256)
	for i := range live {
		live[i] = byte(i) | 1
	}
	out := memory.Set{}
	shadow.Diff(live, 512, span{Start: 600, End: 610}, &out)
	assert.Equal(t, []span{{Start: 600, End: 610}}, out.Spans())

	// Windows outside the mapping are clipped.
	out.Clear()
	shadow.Diff(live, 512, span{Start: 0, End: 2048}, &out)
	assert.Equal(t, []span{{Start: 512, End: 600}, {Start: 610, End: 768}}, out.Spans())
}
