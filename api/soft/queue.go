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

package soft

import (
	"context"
	"sync"

	"github.com/andrew-lunarg/lavatube/api"
	"github.com/pkg/errors"
)

type job struct {
	ops     []func() error
	signals []*semaphore
	fence   *fence
	done    chan struct{}
}

type queue struct {
	d    *Driver
	jobs chan job
	once sync.Once

	mu      sync.Mutex
	err     error
	pending sync.WaitGroup
}

func newQueue(d *Driver) *queue {
	q := &queue{d: d, jobs: make(chan job, 64)}
	go q.run()
	return q
}

func (q *queue) run() {
	for j := range q.jobs {
		q.d.gate.Lock()
		for _, op := range j.ops {
			if err := op(); err != nil {
				q.mu.Lock()
				if q.err == nil {
					q.err = err
				}
				q.mu.Unlock()
				break
			}
		}
		q.d.gate.Unlock()
		for _, s := range j.signals {
			s.signal()
		}
		if j.fence != nil {
			j.fence.signal()
		}
		q.pending.Done()
	}
}

func (q *queue) submit(j job) error {
	q.mu.Lock()
	err := q.err
	q.mu.Unlock()
	if err != nil {
		return errors.Wrap(api.ErrDeviceLost, err.Error())
	}
	q.pending.Add(1)
	q.jobs <- j
	return nil
}

func (q *queue) idle(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		q.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return errors.Wrap(api.ErrDeviceLost, q.err.Error())
	}
	return nil
}

func (q *queue) stop() { q.once.Do(func() { close(q.jobs) }) }

func (d *Driver) QueueSubmit(ctx context.Context, qh api.Queue, submits []api.SubmitInfo, fh api.Fence) error {
	q, err := lookup[queue](d, api.Handle(qh))
	if err != nil {
		return err
	}
	var f *fence
	if !api.Handle(fh).IsNull() {
		if f, err = lookup[fence](d, api.Handle(fh)); err != nil {
			return err
		}
		if f.isSignaled() {
			return errors.Wrap(api.ErrBadState, "Submitted fence is already signaled")
		}
	}
	j := job{fence: f}
	for _, s := range submits {
		for _, sh := range s.WaitSemaphores {
			sem, err := lookup[semaphore](d, api.Handle(sh))
			if err != nil {
				return err
			}
			j.ops = append(j.ops, sem.consume)
		}
		for _, cbh := range s.CommandBuffers {
			cb, err := lookup[commandBuffer](d, api.Handle(cbh))
			if err != nil {
				return err
			}
			if cb.state != cbExecutable {
				return errors.Wrapf(api.ErrBadState, "Command buffer %v is not executable", api.Handle(cbh))
			}
			j.ops = append(j.ops, cb.ops...)
		}
		for _, sh := range s.SignalSemaphores {
			sem, err := lookup[semaphore](d, api.Handle(sh))
			if err != nil {
				return err
			}
			j.signals = append(j.signals, sem)
		}
	}
	return q.submit(j)
}
