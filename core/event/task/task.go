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

// Package task runs work on goroutines and collects the results.
package task

import (
	"context"

	"github.com/andrew-lunarg/lavatube/core/fault"
	"github.com/pkg/errors"
)

// Task is a unit of work run by Go.
type Task func(context.Context) error

// Handle is a reference to a running task.
type Handle struct {
	done <-chan struct{}
	err  *error
}

// Go runs the task on a new goroutine. A panic in the task is recovered and
// becomes its error. A task whose context is already cancelled is not run.
func Go(ctx context.Context, task Task) Handle {
	done := make(chan struct{})
	var result error
	go func() {
		defer close(done)
		defer func() {
			if err := fault.Recovered(recover()); err != nil {
				result = errors.Wrap(err, "Task panicked")
			}
		}()
		if err := ctx.Err(); err != nil {
			result = err
			return
		}
		result = task(ctx)
	}()
	return Handle{done: done, err: &result}
}

// Done returns true once the task has returned.
func (h Handle) Done() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Result waits for the task and returns its error. It returns the context's
// error if ctx is cancelled first.
func (h Handle) Result(ctx context.Context) error {
	select {
	case <-h.done:
		return *h.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Join waits for every handle and returns the first error in handle order.
func Join(ctx context.Context, handles ...Handle) error {
	var first error
	for _, h := range handles {
		if err := h.Result(ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}
