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

package trace_test

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/andrew-lunarg/lavatube/core/log"
	"github.com/andrew-lunarg/lavatube/trace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, s trace.Sink, thread int, data string) {
	w, err := s.Stream(thread)
	require.NoError(t, err)
	_, err = io.WriteString(w, data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
}

func readAll(t *testing.T, streams []io.ReadCloser) []string {
	out := make([]string, len(streams))
	for i, s := range streams {
		if s == nil {
			continue
		}
		data, err := io.ReadAll(s)
		require.NoError(t, err)
		out[i] = string(data)
		require.NoError(t, s.Close())
	}
	return out
}

func TestDir(t *testing.T) {
	ctx := log.Testing(t)
	for _, preload := range []bool{false, true} {
		path := filepath.Join(t.TempDir(), "trace")
		d, err := trace.Create(path, "test")
		require.NoError(t, err)
		write(t, d, 0, "zero")
		write(t, d, 2, "two")
		write(t, d, 3, "")
		require.NoError(t, d.Finish(ctx, trace.Summary{Frames: 4, Calls: []uint32{3, 0, 1, 0}}))
		assert.FileExists(t, filepath.Join(path, trace.StreamName(2)))

		got, err := trace.Open(ctx, path)
		require.NoError(t, err)
		got.Preload = preload
		meta := got.Metadata()
		assert.Equal(t, d.Metadata().ID, meta.ID)
		assert.Equal(t, "test", meta.Application)
		assert.Equal(t, 4, meta.Threads)
		assert.Equal(t, 4, meta.Frames)
		assert.Equal(t, []uint32{3, 0, 1, 0}, meta.Calls)

		streams, err := got.Streams(ctx)
		require.NoError(t, err)
		assert.Nil(t, streams[1])
		assert.Equal(t, []string{"zero", "", "two", ""}, readAll(t, streams))
	}
}

func TestOpenMissing(t *testing.T) {
	ctx := log.Testing(t)
	_, err := trace.Open(ctx, t.TempDir())
	assert.Error(t, err)
}

func TestNoStreams(t *testing.T) {
	ctx := log.Testing(t)
	path := t.TempDir()
	d, err := trace.Create(path, "")
	require.NoError(t, err)
	require.NoError(t, d.Finish(ctx, trace.Summary{}))
	require.NoError(t, os.WriteFile(filepath.Join(path, "notes.txt"), nil, 0644))
	_, err = d.Streams(ctx)
	assert.Equal(t, trace.ErrNoStreams, err)
}

func TestMemory(t *testing.T) {
	ctx := log.Testing(t)
	m := trace.NewMemory("app")
	write(t, m, 1, "one")
	assert.False(t, m.Finished())
	require.NoError(t, m.Finish(ctx, trace.Summary{Frames: 1, Calls: []uint32{0, 5}}))
	assert.True(t, m.Finished())
	assert.Equal(t, []byte("one"), m.Bytes(1))

	for i := 0; i < 2; i++ {
		streams, err := m.Streams(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"", "one"}, readAll(t, streams))
	}
}
