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

package replay

import (
	"github.com/andrew-lunarg/lavatube/api"
	"github.com/andrew-lunarg/lavatube/core/data/binary"
	"github.com/andrew-lunarg/lavatube/tracker"
	"github.com/pkg/errors"
)

// Call is one decoded API_CALL being replayed.
type Call struct {
	Thread *Thread
	ID     uint16
	Name   string
	// Args decodes the call's arguments from the stream.
	Args binary.Reader
}

// Reader returns the reader replaying the call.
func (c *Call) Reader() *Reader { return c.Thread.r }

// Registry returns the shared object registry.
func (c *Call) Registry() *tracker.Registry { return c.Thread.r.Registry }

// Driver returns the driver calls are dispatched to.
func (c *Call) Driver() api.Driver { return c.Thread.r.Driver }

// Frame returns the global frame counter.
func (c *Call) Frame() int { return c.Thread.r.Frame() }

// Index reads a registry index.
func (c *Call) Index() uint32 { return c.Args.Uint32() }

// Get reads a registry index and returns the live record of kind there.
// tracker.NoIndex yields nil.
func (c *Call) Get(kind api.ObjectType) (*tracker.Record, error) {
	i := c.Index()
	if i == tracker.NoIndex {
		return nil, nil
	}
	rec, err := c.Registry().Get(kind, i)
	if err != nil {
		return nil, errors.Wrapf(err, "%v %d", kind, i)
	}
	return rec, nil
}

// Handle returns the replayed handle of rec, or null for nil.
func Handle(rec *tracker.Record) api.Handle {
	if rec == nil {
		return api.Null
	}
	return rec.Handle
}

// Create registers an object created by the call at the index the trace
// gives it.
func (c *Call) Create(kind api.ObjectType, index uint32, handle api.Handle, payload tracker.Payload) (*tracker.Record, error) {
	rec, err := c.Registry().CreateAt(kind, index, handle, c.Frame(), payload)
	if err != nil {
		return nil, err
	}
	return rec, c.Mutate(rec)
}

// Mutate marks records as changed by the call.
func (c *Call) Mutate(recs ...*tracker.Record) error {
	for _, rec := range recs {
		if rec == nil {
			continue
		}
		if _, err := rec.Mutate(c.Thread.id, c.Thread.call); err != nil {
			return err
		}
	}
	return nil
}

// Destroy marks rec destroyed by the call.
func (c *Call) Destroy(rec *tracker.Record) error {
	if rec == nil {
		return nil
	}
	if err := c.Mutate(rec); err != nil {
		return err
	}
	return c.Registry().Destroy(rec.Kind, rec.Index, c.Frame())
}
