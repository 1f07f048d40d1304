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

package task_test

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/andrew-lunarg/lavatube/core/event/task"
	"github.com/andrew-lunarg/lavatube/core/log"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestGoJoin(t *testing.T) {
	ctx := log.Testing(t)
	failure := errors.New("thread 1 failed")
	count := int32(0)
	handles := []task.Handle{}
	for i := 0; i < 4; i++ {
		handles = append(handles, task.Go(ctx, func(context.Context) error {
			atomic.AddInt32(&count, 1)
			if i == 1 {
				return failure
			}
			return nil
		}))
	}
	assert.Equal(t, failure, task.Join(ctx, handles...))
	assert.Equal(t, int32(4), atomic.LoadInt32(&count))
	for _, h := range handles {
		assert.True(t, h.Done())
	}
}

func TestPanicBecomesError(t *testing.T) {
	ctx := log.Testing(t)
	h := task.Go(ctx, func(context.Context) error { panic("boom") })
	err := h.Result(ctx)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(log.Testing(t))
	cancel()
	ran := false
	h := task.Go(ctx, func(context.Context) error { ran = true; return nil })
	assert.ErrorIs(t, h.Result(context.Background()), context.Canceled)
	assert.False(t, ran)

	block := make(chan struct{})
	defer close(block)
	h = task.Go(context.Background(), func(context.Context) error { <-block; return nil })
	assert.ErrorIs(t, h.Result(ctx), context.Canceled)
	assert.False(t, h.Done())
}
