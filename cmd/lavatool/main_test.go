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

package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/andrew-lunarg/lavatube/api"
	"github.com/andrew-lunarg/lavatube/api/soft"
	"github.com/andrew-lunarg/lavatube/calls"
	"github.com/andrew-lunarg/lavatube/capture"
	"github.com/andrew-lunarg/lavatube/core/log"
	"github.com/andrew-lunarg/lavatube/trace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// record writes a two frame trace that fills a host visible buffer.
func record(ctx context.Context, t *testing.T) string {
	path := filepath.Join(t.TempDir(), "trace")
	dir, err := trace.Create(path, "lavatool-test")
	require.NoError(t, err)
	tracer := calls.NewTracer(capture.New(dir, capture.Options{}), soft.New())
	th, err := tracer.Thread(ctx, 0)
	require.NoError(t, err)

	dev, err := th.CreateDevice(ctx, api.DeviceCreateInfo{
		QueueFamilies: []api.QueueFamilyInfo{{Flags: api.QueueGraphics, Count: 1}},
	})
	require.NoError(t, err)
	buf, err := th.CreateBuffer(ctx, dev, api.BufferCreateInfo{Size: 256, Usage: api.BufferUsageTransferSrc})
	require.NoError(t, err)
	mem, err := th.AllocateMemory(ctx, dev, api.MemoryAllocateInfo{
		AllocationSize: 256,
		Properties:     api.MemoryPropertyHostVisible | api.MemoryPropertyHostCoherent,
	})
	require.NoError(t, err)
	require.NoError(t, th.BindBufferMemory(ctx, dev, buf, mem, 0))
	ptr, err := th.MapMemory(ctx, dev, mem, 0, api.WholeSize)
	require.NoError(t, err)
	for i := range ptr {
		ptr[i] = byte(i) | 1
	}
	require.NoError(t, th.SyncBuffer(ctx, dev, buf))
	require.NoError(t, th.FrameEnd(ctx))
	require.NoError(t, th.UnmapMemory(ctx, dev, mem))
	require.NoError(t, th.FrameEnd(ctx))
	require.NoError(t, th.DestroyBuffer(ctx, dev, buf))
	require.NoError(t, th.FreeMemory(ctx, dev, mem))
	require.NoError(t, th.DestroyDevice(ctx, dev))
	require.NoError(t, tracer.Close(ctx))
	return path
}

func run(ctx context.Context, t *testing.T, args ...string) (string, error) {
	out := &bytes.Buffer{}
	app := newApp()
	app.Writer = out
	err := app.Run(ctx, append([]string{"lavatool", "--log-level", "error"}, args...))
	return out.String(), err
}

func TestInfo(t *testing.T) {
	ctx := log.Testing(t)
	path := record(ctx, t)
	out, err := run(ctx, t, "info", "--packets", path)
	require.NoError(t, err)
	assert.Contains(t, out, `"application": "lavatool-test"`)
	assert.Contains(t, out, `"frames": 2`)
	assert.Contains(t, out, "thread 0: 12 calls, 0 barriers, 1 updates (256 bytes)")
}

func TestDump(t *testing.T) {
	ctx := log.Testing(t)
	path := record(ctx, t)
	out, err := run(ctx, t, "dump", path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 14)
	assert.Equal(t, "T0 #0 CreateDevice", lines[0])
	assert.Equal(t, "T0 #5 BufferUpdate 0: 256 bytes", lines[5])
	assert.Equal(t, "T0 #5 SyncBuffer", lines[6])
	assert.Equal(t, "T0 #8 FrameEnd", lines[9])
	assert.Equal(t, "T0 end after 12 calls", lines[13])

	out, err = run(ctx, t, "dump", "--thread", "3", path)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestReplay(t *testing.T) {
	ctx := log.Testing(t)
	path := record(ctx, t)
	out, err := run(ctx, t, "replay", "--self-test", "--max-fps", "1000", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Replayed 2 frames on soft")

	_, err = run(ctx, t, "replay", "--driver", "glide", path)
	assert.Error(t, err)
	_, err = run(ctx, t, "replay")
	assert.Error(t, err)
}
