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

package capture_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/andrew-lunarg/lavatube/api"
	"github.com/andrew-lunarg/lavatube/barrier"
	"github.com/andrew-lunarg/lavatube/capture"
	"github.com/andrew-lunarg/lavatube/core/data/binary"
	"github.com/andrew-lunarg/lavatube/core/data/endian"
	"github.com/andrew-lunarg/lavatube/core/log"
	"github.com/andrew-lunarg/lavatube/core/math/interval"
	"github.com/andrew-lunarg/lavatube/memory"
	"github.com/andrew-lunarg/lavatube/packet"
	"github.com/andrew-lunarg/lavatube/trace"
	"github.com/andrew-lunarg/lavatube/tracker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type span = interval.U64Span

func stream(t *testing.T, data []byte) binary.Reader {
	r := endian.Reader(bytes.NewReader(data), endian.LittleEndian)
	_, err := packet.ReadHeader(r)
	require.NoError(t, err)
	return r
}

func next(t *testing.T, r binary.Reader) packet.Type {
	ty, err := packet.ReadType(r)
	require.NoError(t, err)
	return ty
}

func record(ctx context.Context, t *testing.T, th *capture.Thread, id uint16, f func(c *capture.Call)) {
	c := th.Begin(id)
	f(c)
	require.NoError(t, c.End(ctx))
}

func TestCrossThreadBarrier(t *testing.T) {
	ctx := log.Testing(t)
	sink := trace.NewMemory("test")
	w := capture.New(sink, capture.Options{})
	t0, err := w.Thread(ctx, 0)
	require.NoError(t, err)
	t1, err := w.Thread(ctx, 1)
	require.NoError(t, err)

	var fence *tracker.Record
	record(ctx, t, t0, 1, func(c *capture.Call) {})
	record(ctx, t, t0, 2, func(c *capture.Call) {
		fence = c.Create(api.ObjectFence, 0x10, &tracker.Fence{})
		c.Ref(fence)
	})
	// Thread 1 uses the fence thread 0 created in its second call.
	record(ctx, t, t1, 3, func(c *capture.Call) { c.Use(fence); c.Ref(fence) })
	// Already waited for; no second barrier.
	record(ctx, t, t1, 3, func(c *capture.Call) { c.Use(fence); c.Ref(fence) })
	// Destroying on thread 0 depends on thread 1's uses.
	record(ctx, t, t0, 4, func(c *capture.Call) { c.Destroy(fence) })
	assert.Equal(t, uint32(3), w.Counters.Load(0))
	assert.Equal(t, uint32(2), w.Counters.Load(1))
	require.NoError(t, w.Close(ctx))
	assert.Equal(t, []uint32{3, 2}, sink.Metadata().Calls)

	r := stream(t, sink.Bytes(1))
	assert.Equal(t, packet.ThreadBarrier, next(t, r))
	targets, err := packet.ReadBarrier(r)
	require.NoError(t, err)
	assert.Equal(t, []barrier.Target{{Thread: 0, Count: 2}}, targets)
	assert.Equal(t, packet.APICall, next(t, r))
	call, err := packet.ReadCall(r)
	require.NoError(t, err)
	assert.Equal(t, packet.Call{ID: 3, Cookie: 0}, call)
	assert.Equal(t, fence.Index, r.Uint32())
	assert.Equal(t, packet.APICall, next(t, r))
	call, _ = packet.ReadCall(r)
	assert.Equal(t, int32(1), call.Cookie)
	r.Uint32()
	assert.Equal(t, packet.End, next(t, r))

	r = stream(t, sink.Bytes(0))
	for i := 0; i < 2; i++ {
		assert.Equal(t, packet.APICall, next(t, r))
		packet.ReadCall(r)
	}
	r.Uint32()
	assert.Equal(t, packet.ThreadBarrier, next(t, r))
	targets, _ = packet.ReadBarrier(r)
	assert.Equal(t, []barrier.Target{{Thread: 1, Count: 2}}, targets)
}

func mapped(w *capture.Writer, size uint64) (*tracker.Record, *tracker.Memory, []byte) {
	live := make([]byte, size)
	m := &tracker.Memory{
		AllocationSize: size,
		Properties:     api.MemoryPropertyHostVisible,
		Size:           size,
		Ptr:            live,
		Shadow:         memory.NewShadow(size, w.Options().BlockSize),
	}
	return w.Registry.Create(api.ObjectDeviceMemory, 0x20, 0, m), m, live
}

func TestFlushWritesChangedBytes(t *testing.T) {
	ctx := log.Testing(t)
	sink := trace.NewMemory("test")
	w := capture.New(sink, capture.Options{BlockSize: 16})
	th, err := w.Thread(ctx, 0)
	require.NoError(t, err)
	_, m, live := mapped(w, 4096)
	copy(live[100:150], bytes.Repeat([]byte{7}, 50))

	record(ctx, t, th, 9, func(c *capture.Call) { c.Flush(m, span{Start: 0, End: 4096}) })
	assert.True(t, m.Exposed.Empty())
	require.NoError(t, w.Close(ctx))

	r := stream(t, sink.Bytes(0))
	assert.Equal(t, packet.APICall, next(t, r))
	packet.ReadCall(r)
	ranges, data, err := packet.ReadRanges(r)
	require.NoError(t, err)
	assert.Equal(t, []span{{Start: 100, End: 150}}, ranges)
	assert.Len(t, data, 50)
}

func TestAbandonedCallKeepsState(t *testing.T) {
	ctx := log.Testing(t)
	sink := trace.NewMemory("test")
	w := capture.New(sink, capture.Options{BlockSize: 16})
	th, err := w.Thread(ctx, 0)
	require.NoError(t, err)
	_, m, live := mapped(w, 256)
	var fence *tracker.Record
	record(ctx, t, th, 1, func(c *capture.Call) { fence = c.Create(api.ObjectFence, 1, &tracker.Fence{}) })
	before := fence.Stamp()
	copy(live[32:48], bytes.Repeat([]byte{9}, 16))

	// The driver call fails before End, so nothing is written.
	c := th.Begin(2)
	c.Mutate(fence)
	c.Destroy(fence)
	c.Flush(m, span{Start: 0, End: 256})
	assert.Equal(t, before, fence.Stamp())
	assert.NotNil(t, w.Registry.Peek(api.ObjectFence, fence.Index))
	m.Lock()
	assert.False(t, m.Exposed.Empty())
	m.Unlock()

	// The next call still carries the bytes.
	record(ctx, t, th, 3, func(c *capture.Call) { c.Flush(m, span{Start: 0, End: 256}) })
	assert.True(t, m.Exposed.Empty())
	require.NoError(t, w.Close(ctx))

	r := stream(t, sink.Bytes(0))
	assert.Equal(t, packet.APICall, next(t, r))
	packet.ReadCall(r)
	assert.Equal(t, packet.APICall, next(t, r))
	call, err := packet.ReadCall(r)
	require.NoError(t, err)
	assert.Equal(t, uint16(3), call.ID)
	ranges, data, err := packet.ReadRanges(r)
	require.NoError(t, err)
	assert.Equal(t, []span{{Start: 32, End: 48}}, ranges)
	assert.Equal(t, bytes.Repeat([]byte{9}, 16), data)
}

func TestSyncWritesUpdate(t *testing.T) {
	ctx := log.Testing(t)
	sink := trace.NewMemory("test")
	w := capture.New(sink, capture.Options{})
	th, err := w.Thread(ctx, 0)
	require.NoError(t, err)
	mrec, _, live := mapped(w, 1024)
	buf := w.Registry.Create(api.ObjectBuffer, 0x30, 0, &tracker.Buffer{Object: tracker.Object{
		Memory: mrec.Ref(), MemoryOffset: 256, Size: 128, Accessible: true,
	}})
	live[300] = 1
	live[600] = 1 // outside the buffer

	touched := &memory.Set{}
	touched.AddOS(0, api.WholeSize>>1)
	record(ctx, t, th, 5, func(c *capture.Call) { require.NoError(t, c.Sync(ctx, buf, touched)) })
	require.NoError(t, w.Close(ctx))
	assert.Equal(t, uint32(1), buf.Payload.(*tracker.Buffer).Updates)

	r := stream(t, sink.Bytes(0))
	assert.Equal(t, packet.BufferUpdate, next(t, r))
	u, err := packet.ReadUpdate(r)
	require.NoError(t, err)
	assert.Equal(t, buf.Index, u.Object)
	assert.Equal(t, []span{{Start: 44, End: 45}}, u.Ranges)
	assert.Equal(t, []byte{1}, u.Data)
	assert.Equal(t, packet.APICall, next(t, r))
}

func TestFrameEnd(t *testing.T) {
	ctx := log.Testing(t)
	w := capture.New(trace.NewMemory("test"), capture.Options{SelfTest: true})
	th, err := w.Thread(ctx, 0)
	require.NoError(t, err)
	var fence *tracker.Record
	record(ctx, t, th, 1, func(c *capture.Call) { fence = c.Create(api.ObjectFence, 1, &tracker.Fence{}) })
	record(ctx, t, th, 2, func(c *capture.Call) { c.Destroy(fence) })
	require.NoError(t, w.FrameEnd(ctx))
	assert.Equal(t, 1, w.Frame())
	assert.Nil(t, w.Registry.Peek(api.ObjectFence, fence.Index))

	// A destroyed record cannot be mutated again.
	c := th.Begin(3)
	c.Mutate(fence)
	assert.Error(t, c.End(ctx))
}
