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

package trace

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/andrew-lunarg/lavatube/core/log"
	json "github.com/goccy/go-json"
	"github.com/pkg/errors"
)

const metadataFile = "metadata.json"

var streamFile = regexp.MustCompile(`^thread_(\d{3,})\.bin$`)

// StreamName returns the file name of thread's stream.
func StreamName(thread int) string { return fmt.Sprintf("thread_%03d.bin", thread) }

// Dir is a trace stored in a directory.
type Dir struct {
	path string
	meta Metadata
	// Preload reads whole streams into memory before replay.
	Preload bool
}

// Create makes an empty trace directory at path, recording app as the
// captured application.
func Create(path, app string) (*Dir, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, errors.Wrap(err, "Creating trace directory")
	}
	return &Dir{path: path, meta: newMetadata(app)}, nil
}

// Open opens an existing trace directory.
func Open(ctx context.Context, path string) (*Dir, error) {
	data, err := os.ReadFile(filepath.Join(path, metadataFile))
	if err != nil {
		return nil, errors.Wrap(err, "Reading trace metadata")
	}
	d := &Dir{path: path}
	if err := json.Unmarshal(data, &d.meta); err != nil {
		return nil, errors.Wrap(err, "Decoding trace metadata")
	}
	if d.meta.Version != FormatVersion {
		return nil, errors.Errorf("Unsupported trace version %d", d.meta.Version)
	}
	log.D(ctx, "Opened trace %v with %d threads", d.meta.ID, d.meta.Threads)
	return d, nil
}

// Path returns the trace directory.
func (d *Dir) Path() string { return d.path }

// Metadata returns the trace's metadata.
func (d *Dir) Metadata() Metadata { return d.meta }

// Stream creates the stream file for thread.
func (d *Dir) Stream(thread int) (io.WriteCloser, error) {
	f, err := os.Create(filepath.Join(d.path, StreamName(thread)))
	if err != nil {
		return nil, errors.Wrapf(err, "Creating stream for thread %d", thread)
	}
	return f, nil
}

// Finish writes metadata.json.
func (d *Dir) Finish(ctx context.Context, s Summary) error {
	d.meta.apply(s)
	data, err := json.MarshalIndent(d.meta, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(d.path, metadataFile), data, 0644); err != nil {
		return errors.Wrap(err, "Writing trace metadata")
	}
	log.I(ctx, "Trace %v: %d threads, %d frames", d.meta.ID, d.meta.Threads, d.meta.Frames)
	return nil
}

// Streams opens every stream file in the directory.
func (d *Dir) Streams(ctx context.Context) ([]io.ReadCloser, error) {
	entries, err := os.ReadDir(d.path)
	if err != nil {
		return nil, err
	}
	var out []io.ReadCloser
	fail := func(err error) ([]io.ReadCloser, error) {
		for _, s := range out {
			if s != nil {
				s.Close()
			}
		}
		return nil, err
	}
	for _, e := range entries {
		m := streamFile.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		thread, err := strconv.Atoi(m[1])
		if err != nil {
			return fail(err)
		}
		path := filepath.Join(d.path, e.Name())
		var s io.ReadCloser
		if d.Preload {
			s, err = preload(path)
		} else {
			s, err = os.Open(path)
		}
		if err != nil {
			return fail(errors.Wrapf(err, "Opening stream %v", e.Name()))
		}
		for len(out) <= thread {
			out = append(out, nil)
		}
		out[thread] = s
	}
	if len(out) == 0 {
		return nil, ErrNoStreams
	}
	return out, nil
}
