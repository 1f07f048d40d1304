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

//go:build unix

package trace

import (
	"bytes"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

type mapped struct {
	*bytes.Reader
	data []byte
}

func (m *mapped) Close() error { return unix.Munmap(m.data) }

// preload maps the stream file read-only, reading it instead where mapping
// is not possible.
func preload(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if stat.Size() == 0 {
		return io.NopCloser(bytes.NewReader(nil)), nil
	}
	data, err := unix.Mmap(int(f.Fd()), 0, int(stat.Size()), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return readAll(f)
	}
	return &mapped{Reader: bytes.NewReader(data), data: data}, nil
}

func readAll(f *os.File) (io.ReadCloser, error) {
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}
