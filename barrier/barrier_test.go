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

package barrier_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/andrew-lunarg/lavatube/barrier"
	"github.com/andrew-lunarg/lavatube/core/log"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestAdvanceLoad(t *testing.T) {
	c := barrier.New()
	assert.Equal(t, uint32(0), c.Load(3))
	assert.Equal(t, uint32(1), c.Advance(3))
	assert.Equal(t, uint32(2), c.Advance(3))
	assert.Equal(t, []uint32{0, 0, 0, 2}, c.Snapshot())
	assert.True(t, c.Reached(barrier.Target{Thread: 3, Count: 2}))
	assert.False(t, c.Reached(barrier.Target{Thread: 3, Count: 3}))
}

func TestWaitBlocksUntilReached(t *testing.T) {
	ctx := log.Testing(t)
	c := barrier.New()
	const n = 5
	executed := atomic.Bool{}
	wg := sync.WaitGroup{}
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, c.Wait(ctx, 5*time.Second, barrier.Target{Thread: 0, Count: n}))
		assert.GreaterOrEqual(t, c.Load(0), uint32(n))
		executed.Store(true)
	}()
	for i := 0; i < n; i++ {
		time.Sleep(time.Millisecond)
		assert.False(t, executed.Load(), "dependent ran before call %d", i)
		c.Advance(0)
	}
	wg.Wait()
	assert.True(t, executed.Load())
}

func TestWaitMultiple(t *testing.T) {
	ctx := log.Testing(t)
	c := barrier.New()
	c.Advance(1)
	c.Advance(2)
	c.Advance(2)
	assert.NoError(t, c.Wait(ctx, time.Millisecond,
		barrier.Target{Thread: 1, Count: 1},
		barrier.Target{Thread: 2, Count: 2}))
}

func TestWaitTimeout(t *testing.T) {
	ctx := log.Testing(t)
	c := barrier.New()
	err := c.Wait(ctx, 10*time.Millisecond, barrier.Target{Thread: 1, Count: 1})
	assert.True(t, errors.Is(err, barrier.ErrTimeout))
}
