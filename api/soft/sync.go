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
	"time"

	"github.com/andrew-lunarg/lavatube/api"
	"github.com/pkg/errors"
)

type fence struct {
	mu       sync.Mutex
	done     chan struct{}
	signaled bool
}

func newFence(signaled bool) *fence {
	f := &fence{done: make(chan struct{})}
	if signaled {
		f.signal()
	}
	return f
}

func (f *fence) signal() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.signaled {
		f.signaled = true
		close(f.done)
	}
}

func (f *fence) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.signaled {
		f.signaled = false
		f.done = make(chan struct{})
	}
}

func (f *fence) isSignaled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.signaled
}

func (f *fence) wait() <-chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.done
}

// semaphore counts signals not yet consumed. Acquire signals on the host
// while presents consume on the queue, so a second acquire can land before
// the first present has run.
type semaphore struct {
	mu      sync.Mutex
	pending int
}

func (s *semaphore) signal() {
	s.mu.Lock()
	s.pending++
	s.mu.Unlock()
}

// consume is run on the queue before the work that waits on the semaphore.
// Work on a single queue runs in submission order, so an unsignaled wait can
// never be satisfied later and is reported as an error.
func (s *semaphore) consume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == 0 {
		return errors.Wrap(api.ErrBadState, "Wait on a semaphore with no pending signal")
	}
	s.pending--
	return nil
}

type event struct{ set bool }

func (d *Driver) CreateFence(ctx context.Context, dev api.Device, info api.FenceCreateInfo) (api.Fence, error) {
	return api.Fence(d.add(newFence(info.Signaled))), nil
}

func (d *Driver) DestroyFence(ctx context.Context, dev api.Device, h api.Fence) error {
	_, err := destroy[fence](d, api.Handle(h))
	return err
}

func (d *Driver) ResetFences(ctx context.Context, dev api.Device, fences []api.Fence) error {
	for _, h := range fences {
		f, err := lookup[fence](d, api.Handle(h))
		if err != nil {
			return err
		}
		f.reset()
	}
	return nil
}

func (d *Driver) GetFenceStatus(ctx context.Context, dev api.Device, h api.Fence) error {
	f, err := lookup[fence](d, api.Handle(h))
	if err != nil {
		return err
	}
	if !f.isSignaled() {
		return api.ErrNotReady
	}
	return nil
}

func (d *Driver) WaitForFences(ctx context.Context, dev api.Device, handles []api.Fence, waitAll bool, timeout time.Duration) error {
	chans := make([]<-chan struct{}, len(handles))
	for i, h := range handles {
		f, err := lookup[fence](d, api.Handle(h))
		if err != nil {
			return err
		}
		chans[i] = f.wait()
	}
	if len(chans) == 0 {
		return nil
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	if waitAll {
		for _, c := range chans {
			select {
			case <-c:
			case <-timer.C:
				return api.ErrTimeout
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	}
	first := make(chan struct{})
	stop := make(chan struct{})
	defer close(stop)
	once := sync.Once{}
	for _, c := range chans {
		go func(c <-chan struct{}) {
			select {
			case <-c:
				once.Do(func() { close(first) })
			case <-stop:
			}
		}(c)
	}
	select {
	case <-first:
		return nil
	case <-timer.C:
		return api.ErrTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Driver) CreateSemaphore(ctx context.Context, dev api.Device) (api.Semaphore, error) {
	return api.Semaphore(d.add(&semaphore{})), nil
}

func (d *Driver) DestroySemaphore(ctx context.Context, dev api.Device, h api.Semaphore) error {
	_, err := destroy[semaphore](d, api.Handle(h))
	return err
}

func (d *Driver) CreateEvent(ctx context.Context, dev api.Device) (api.Event, error) {
	return api.Event(d.add(&event{})), nil
}

func (d *Driver) DestroyEvent(ctx context.Context, dev api.Device, h api.Event) error {
	_, err := destroy[event](d, api.Handle(h))
	return err
}
