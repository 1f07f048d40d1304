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

package memory

import (
	"bytes"
	"sync"

	"github.com/andrew-lunarg/lavatube/core/math/interval"
)

// DefaultBlockSize is the comparison granularity used when none is given.
const DefaultBlockSize = 64

// Shadow is a persisted copy of an allocation's contents, used to find the
// bytes the application changed. It starts zeroed.
//
// A Shadow is owned by the tracked memory record it belongs to. The mutex
// serialises diffs from threads that flush the same allocation.
type Shadow struct {
	mu    sync.Mutex
	clone []byte
	block uint64
}

// NewShadow returns a zeroed shadow of size bytes that compares in blocks of
// block bytes.
func NewShadow(size, block uint64) *Shadow {
	if block == 0 {
		block = DefaultBlockSize
	}
	return &Shadow{clone: make([]byte, size), block: block}
}

// Size returns the size of the shadowed allocation.
func (s *Shadow) Size() uint64 { return uint64(len(s.clone)) }

// Diff compares live against the shadow over window and adds every byte
// that differs to out. live holds the allocation's bytes from offset base.
// Equal blocks are skipped with a single comparison; differing blocks are
// scanned byte by byte so the recorded ranges are exact. The shadow is
// updated to match live. Diff returns the number of changed bytes.
func (s *Shadow) Diff(live []byte, base uint64, window interval.U64Span, out *Set) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	window = window.Clamp(interval.U64Span{Start: base, End: base + uint64(len(live))})
	window = window.Clamp(interval.U64Span{Start: 0, End: uint64(len(s.clone))})
	changed := uint64(0)
	for start := window.Start; start < window.End; {
		end := start + s.block
		if end > window.End {
			end = window.End
		}
		l, c := live[start-base:end-base], s.clone[start:end]
		if !bytes.Equal(l, c) {
			changed += s.scan(l, c, start, out)
			copy(c, l)
		}
		start = end
	}
	return changed
}

// scan records the runs of differing bytes between l and c, which start at
// allocation offset at.
func (s *Shadow) scan(l, c []byte, at uint64, out *Set) uint64 {
	changed := uint64(0)
	for i := 0; i < len(l); {
		if l[i] == c[i] {
			i++
			continue
		}
		j := i + 1
		for j < len(l) && l[j] != c[j] {
			j++
		}
		out.Add(at+uint64(i), at+uint64(j))
		changed += uint64(j - i)
		i = j
	}
	return changed
}

// Read copies the shadowed bytes of span into a new slice.
func (s *Shadow) Read(span interval.U64Span) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	span = span.Clamp(interval.U64Span{Start: 0, End: uint64(len(s.clone))})
	return append([]byte(nil), s.clone[span.Start:span.End]...)
}
