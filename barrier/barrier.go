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

// Package barrier holds the per-thread call counters shared by all capture or
// replay threads, and the bounded waits that enforce cross-thread ordering.
//
// A thread's counter is the number of calls it has fully completed. A Target
// is satisfied once its thread's counter reaches Count. Counters only ever
// increase; ordering between threads comes solely from waits on Targets.
package barrier

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/andrew-lunarg/lavatube/core/fault"
	"github.com/pkg/errors"
)

// ErrTimeout is returned when a wait is not satisfied within its bound.
const ErrTimeout = fault.Const("Synchronization timeout")

// Target is a point in a thread's call sequence: the thread has completed at
// least Count calls.
type Target struct {
	Thread int
	Count  uint32
}

func (t Target) String() string { return fmt.Sprintf("thread %d call %d", t.Thread, t.Count) }

// Counters is the process-wide set of per-thread call counters for one run.
type Counters struct {
	mu       sync.Mutex
	counters []*atomic.Uint32
	changed  chan struct{}
}

// New returns a set of counters, all zero.
func New() *Counters {
	return &Counters{changed: make(chan struct{})}
}

func (c *Counters) counter(thread int) *atomic.Uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	for len(c.counters) <= thread {
		c.counters = append(c.counters, &atomic.Uint32{})
	}
	return c.counters[thread]
}

// Load returns the number of calls thread has completed.
func (c *Counters) Load(thread int) uint32 {
	return c.counter(thread).Load()
}

// Advance marks one more call of thread complete and wakes every waiter.
// It returns the new count.
func (c *Counters) Advance(thread int) uint32 {
	v := c.counter(thread).Add(1)
	c.mu.Lock()
	close(c.changed)
	c.changed = make(chan struct{})
	c.mu.Unlock()
	return v
}

// Reached returns true if t is satisfied.
func (c *Counters) Reached(t Target) bool {
	return c.Load(t.Thread) >= t.Count
}

// Snapshot returns the current value of every counter.
func (c *Counters) Snapshot() []uint32 {
	c.mu.Lock()
	out := make([]uint32, len(c.counters))
	for i, v := range c.counters {
		out[i] = v.Load()
	}
	c.mu.Unlock()
	return out
}

// Wait blocks until every target is satisfied. It fails with ErrTimeout if
// that takes longer than timeout, or with the context's error if ctx is
// cancelled first.
func (c *Counters) Wait(ctx context.Context, timeout time.Duration, targets ...Target) error {
	var timer *time.Timer
	for _, t := range targets {
		for {
			c.mu.Lock()
			changed := c.changed
			c.mu.Unlock()
			if c.Reached(t) {
				break
			}
			if timer == nil {
				timer = time.NewTimer(timeout)
				defer timer.Stop()
			}
			select {
			case <-changed:
			case <-timer.C:
				return errors.Wrapf(ErrTimeout, "Waiting for %v (at %d)", t, c.Load(t.Thread))
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return nil
}
