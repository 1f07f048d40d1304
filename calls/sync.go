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

package calls

import (
	"context"
	"time"

	"github.com/andrew-lunarg/lavatube/api"
	"github.com/andrew-lunarg/lavatube/barrier"
	"github.com/andrew-lunarg/lavatube/core/log"
	"github.com/andrew-lunarg/lavatube/replay"
	"github.com/andrew-lunarg/lavatube/tracker"
	"github.com/pkg/errors"
)

// Outcomes of waits and queries, as recorded.
const (
	resultSuccess uint8 = iota
	resultNotReady
)

func (t *Thread) CreateFence(ctx context.Context, dev api.Device, info api.FenceCreateInfo) (api.Fence, error) {
	drec, err := t.get(api.ObjectDevice, api.Handle(dev))
	if err != nil {
		return 0, err
	}
	fence, err := t.d.CreateFence(ctx, dev, info)
	if err != nil {
		return 0, err
	}
	c := t.begin(IDCreateFence)
	c.Use(drec)
	c.Ref(drec)
	c.Args().Bool(info.Signaled)
	c.Ref(c.Create(api.ObjectFence, api.Handle(fence), &tracker.Fence{Device: drec.Ref(), Info: info, Frame: t.frame()}))
	return fence, c.End(ctx)
}

func replayCreateFence(ctx context.Context, c *replay.Call) error {
	drec, dev, err := device(c)
	if err != nil {
		return err
	}
	info := api.FenceCreateInfo{Signaled: c.Args.Bool()}
	index := c.Index()
	if err := decoded(c); err != nil {
		return err
	}
	fence, err := c.Driver().CreateFence(ctx, dev, info)
	if err != nil {
		return err
	}
	_, err = c.Create(api.ObjectFence, index, api.Handle(fence), &tracker.Fence{Device: drec.Ref(), Info: info, Frame: c.Frame()})
	return err
}

func (t *Thread) DestroyFence(ctx context.Context, dev api.Device, fence api.Fence) error {
	return t.destroy(ctx, IDDestroyFence, api.ObjectFence, dev, api.Handle(fence), func() error {
		return t.d.DestroyFence(ctx, dev, fence)
	})
}

func (t *Thread) ResetFences(ctx context.Context, dev api.Device, fences []api.Fence) error {
	drec, err := t.get(api.ObjectDevice, api.Handle(dev))
	if err != nil {
		return err
	}
	recs, err := all(t, api.ObjectFence, fences)
	if err != nil {
		return err
	}
	if err := t.d.ResetFences(ctx, dev, fences); err != nil {
		return err
	}
	c := t.begin(IDResetFences)
	c.Use(drec)
	c.Mutate(recs...)
	c.Ref(drec)
	refs(c, recs)
	return c.End(ctx)
}

func replayResetFences(ctx context.Context, c *replay.Call) error {
	_, dev, err := device(c)
	if err != nil {
		return err
	}
	recs, err := getAll(c, api.ObjectFence)
	if err != nil {
		return err
	}
	if err := c.Driver().ResetFences(ctx, dev, handles[api.Fence](recs)); err != nil {
		return err
	}
	return c.Mutate(recs...)
}

// WaitForFences records whether the wait succeeded so replay waits only for
// what the application saw signal.
func (t *Thread) WaitForFences(ctx context.Context, dev api.Device, fences []api.Fence, waitAll bool, timeout time.Duration) error {
	drec, err := t.get(api.ObjectDevice, api.Handle(dev))
	if err != nil {
		return err
	}
	recs, err := all(t, api.ObjectFence, fences)
	if err != nil {
		return err
	}
	werr := t.d.WaitForFences(ctx, dev, fences, waitAll, timeout)
	result := resultSuccess
	switch {
	case errors.Cause(werr) == api.ErrTimeout:
		result = resultNotReady
	case werr != nil:
		return werr
	}
	c := t.begin(IDWaitForFences)
	c.Use(drec)
	c.Use(recs...)
	c.Ref(drec)
	refs(c, recs)
	c.Args().Bool(waitAll)
	c.Args().Int64(int64(timeout))
	c.Args().Uint8(result)
	if err := c.End(ctx); err != nil {
		return err
	}
	return werr
}

// waitReplayed waits for fences the capture saw signaled.
func waitReplayed(ctx context.Context, c *replay.Call, dev api.Device, fences []api.Fence, waitAll bool) error {
	timeout := c.Reader().Options().Present.FenceTimeout
	err := c.Driver().WaitForFences(ctx, dev, fences, waitAll, timeout)
	if errors.Cause(err) == api.ErrTimeout {
		return errors.Wrapf(barrier.ErrTimeout, "Fences not signaled after %v", timeout)
	}
	return err
}

func replayWaitForFences(ctx context.Context, c *replay.Call) error {
	_, dev, err := device(c)
	if err != nil {
		return err
	}
	recs, err := getAll(c, api.ObjectFence)
	if err != nil {
		return err
	}
	waitAll := c.Args.Bool()
	c.Args.Int64()
	result := c.Args.Uint8()
	if err := decoded(c); err != nil {
		return err
	}
	fences := handles[api.Fence](recs)
	if result == resultSuccess {
		return waitReplayed(ctx, c, dev, fences, waitAll)
	}
	err = c.Driver().WaitForFences(ctx, dev, fences, waitAll, 0)
	if err != nil && errors.Cause(err) != api.ErrTimeout {
		return err
	}
	return nil
}

func (t *Thread) GetFenceStatus(ctx context.Context, dev api.Device, fence api.Fence) error {
	drec, err := t.get(api.ObjectDevice, api.Handle(dev))
	if err != nil {
		return err
	}
	frec, err := t.get(api.ObjectFence, api.Handle(fence))
	if err != nil {
		return err
	}
	serr := t.d.GetFenceStatus(ctx, dev, fence)
	result := resultSuccess
	switch {
	case errors.Cause(serr) == api.ErrNotReady:
		result = resultNotReady
	case serr != nil:
		return serr
	}
	c := t.begin(IDGetFenceStatus)
	c.Use(drec, frec)
	c.Ref(drec)
	c.Ref(frec)
	c.Args().Uint8(result)
	if err := c.End(ctx); err != nil {
		return err
	}
	return serr
}

func replayGetFenceStatus(ctx context.Context, c *replay.Call) error {
	_, dev, err := device(c)
	if err != nil {
		return err
	}
	frec, err := object(c, api.ObjectFence)
	if err != nil {
		return err
	}
	result := c.Args.Uint8()
	if err := decoded(c); err != nil {
		return err
	}
	fence := handle[api.Fence](frec)
	if result == resultSuccess {
		return waitReplayed(ctx, c, dev, []api.Fence{fence}, true)
	}
	if err := c.Driver().GetFenceStatus(ctx, dev, fence); err != nil && errors.Cause(err) != api.ErrNotReady {
		return err
	}
	log.D(ctx, "Fence %v polled", frec.Ref())
	return nil
}

func (t *Thread) CreateSemaphore(ctx context.Context, dev api.Device) (api.Semaphore, error) {
	drec, err := t.get(api.ObjectDevice, api.Handle(dev))
	if err != nil {
		return 0, err
	}
	sem, err := t.d.CreateSemaphore(ctx, dev)
	if err != nil {
		return 0, err
	}
	c := t.begin(IDCreateSemaphore)
	c.Use(drec)
	c.Ref(drec)
	c.Ref(c.Create(api.ObjectSemaphore, api.Handle(sem), &tracker.Semaphore{Device: drec.Ref()}))
	return sem, c.End(ctx)
}

func replayCreateSemaphore(ctx context.Context, c *replay.Call) error {
	drec, dev, err := device(c)
	if err != nil {
		return err
	}
	index := c.Index()
	if err := decoded(c); err != nil {
		return err
	}
	sem, err := c.Driver().CreateSemaphore(ctx, dev)
	if err != nil {
		return err
	}
	_, err = c.Create(api.ObjectSemaphore, index, api.Handle(sem), &tracker.Semaphore{Device: drec.Ref()})
	return err
}

func (t *Thread) DestroySemaphore(ctx context.Context, dev api.Device, sem api.Semaphore) error {
	return t.destroy(ctx, IDDestroySemaphore, api.ObjectSemaphore, dev, api.Handle(sem), func() error {
		return t.d.DestroySemaphore(ctx, dev, sem)
	})
}

func (t *Thread) CreateEvent(ctx context.Context, dev api.Device) (api.Event, error) {
	drec, err := t.get(api.ObjectDevice, api.Handle(dev))
	if err != nil {
		return 0, err
	}
	ev, err := t.d.CreateEvent(ctx, dev)
	if err != nil {
		return 0, err
	}
	c := t.begin(IDCreateEvent)
	c.Use(drec)
	c.Ref(drec)
	c.Ref(c.Create(api.ObjectEvent, api.Handle(ev), &tracker.Event{Device: drec.Ref()}))
	return ev, c.End(ctx)
}

func replayCreateEvent(ctx context.Context, c *replay.Call) error {
	drec, dev, err := device(c)
	if err != nil {
		return err
	}
	index := c.Index()
	if err := decoded(c); err != nil {
		return err
	}
	ev, err := c.Driver().CreateEvent(ctx, dev)
	if err != nil {
		return err
	}
	_, err = c.Create(api.ObjectEvent, index, api.Handle(ev), &tracker.Event{Device: drec.Ref()})
	return err
}

func (t *Thread) DestroyEvent(ctx context.Context, dev api.Device, ev api.Event) error {
	return t.destroy(ctx, IDDestroyEvent, api.ObjectEvent, dev, api.Handle(ev), func() error {
		return t.d.DestroyEvent(ctx, dev, ev)
	})
}
