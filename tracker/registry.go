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

package tracker

import (
	"context"
	"sort"
	"sync"

	"github.com/andrew-lunarg/lavatube/api"
	"github.com/andrew-lunarg/lavatube/core/log"
	"github.com/pkg/errors"
)

// Registry holds the records of every object kind. Indices are dense per
// kind, and an index is only handed out again after Sweep has reclaimed the
// record that held it.
type Registry struct {
	mu     sync.RWMutex
	tables map[api.ObjectType]*table
}

type table struct {
	records []*Record
	// free holds reclaimed indices, oldest first.
	free []uint32
	// freed holds the destroy stamps of reclaimed indices.
	freed   map[uint32]Stamp
	handles map[api.Handle]uint32
}

// New returns an empty registry.
func New() *Registry {
	r := &Registry{tables: map[api.ObjectType]*table{}}
	for _, k := range api.ObjectTypes {
		r.tables[k] = &table{freed: map[uint32]Stamp{}, handles: map[api.Handle]uint32{}}
	}
	return r
}

func (r *Registry) table(kind api.ObjectType) *table {
	t, ok := r.tables[kind]
	if !ok {
		panic(errors.Errorf("invalid object kind %v", kind))
	}
	return t
}

// Create adds a record for a new object, reusing the oldest reclaimed index
// of the kind if there is one.
func (r *Registry) Create(kind api.ObjectType, handle api.Handle, frame int, payload Payload) *Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := r.table(kind)
	rec := &Record{
		Kind:           kind,
		Handle:         handle,
		FrameCreated:   frame,
		FrameDestroyed: -1,
		Thread:         -1,
		Payload:        payload,
		Prior:          NoStamp,
	}
	if len(t.free) > 0 {
		rec.Index = t.free[0]
		t.free = t.free[1:]
		if s, ok := t.freed[rec.Index]; ok {
			rec.Prior = s
			delete(t.freed, rec.Index)
		}
		t.records[rec.Index] = rec
	} else {
		rec.Index = uint32(len(t.records))
		t.records = append(t.records, rec)
	}
	if !handle.IsNull() {
		t.handles[handle] = rec.Index
	}
	return rec
}

// CreateAt adds a record at a given index. It is used on replay, where the
// trace dictates indices. Any reclaimed or destroyed record in the slot is
// replaced.
func (r *Registry) CreateAt(kind api.ObjectType, index uint32, handle api.Handle, frame int, payload Payload) (*Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := r.table(kind)
	if index == NoIndex {
		return nil, errors.Errorf("%v index %d is reserved", kind, index)
	}
	for uint32(len(t.records)) <= index {
		t.free = append(t.free, uint32(len(t.records)))
		t.records = append(t.records, nil)
	}
	if old := t.records[index]; old != nil && !old.Destroyed() {
		return nil, violation(old, frame, "created over live record")
	}
	prior := NoStamp
	if old := t.records[index]; old != nil {
		prior = old.Stamp()
		if old.Handle != handle {
			r.unmap(t, old)
		}
	}
	if s, ok := t.freed[index]; ok {
		prior = s
		delete(t.freed, index)
	}
	for i, f := range t.free {
		if f == index {
			t.free = append(t.free[:i], t.free[i+1:]...)
			break
		}
	}
	rec := &Record{
		Index:          index,
		Kind:           kind,
		Handle:         handle,
		FrameCreated:   frame,
		FrameDestroyed: -1,
		Thread:         -1,
		Payload:        payload,
		Prior:          prior,
	}
	t.records[index] = rec
	if !handle.IsNull() {
		t.handles[handle] = index
	}
	return rec, nil
}

func (r *Registry) unmap(t *table, rec *Record) {
	if i, ok := t.handles[rec.Handle]; ok && i == rec.Index {
		delete(t.handles, rec.Handle)
	}
}

// Destroy marks the record as destroyed at frame. The record stays readable
// through Peek until Sweep reclaims it, and its handle no longer resolves.
func (r *Registry) Destroy(kind api.ObjectType, index uint32, frame int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := r.table(kind)
	if index >= uint32(len(t.records)) || t.records[index] == nil || t.records[index].Destroyed() {
		return errors.Wrapf(ErrNotFound, "Destroy %v %d", kind, index)
	}
	rec := t.records[index]
	rec.markDestroyed(frame)
	r.unmap(t, rec)
	return nil
}

// Get returns the live record at index.
func (r *Registry) Get(kind api.ObjectType, index uint32) (*Record, error) {
	rec := r.Peek(kind, index)
	if rec == nil || rec.Destroyed() {
		return nil, ErrNotFound
	}
	return rec, nil
}

// Peek returns the record at index, destroyed or not, or nil if the slot is
// empty.
func (r *Registry) Peek(kind api.ObjectType, index uint32) *Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t := r.table(kind)
	if index >= uint32(len(t.records)) {
		return nil
	}
	return t.records[index]
}

// Lookup returns the live record named by ref.
func (r *Registry) Lookup(ref Ref) (*Record, error) {
	if !ref.Valid() {
		return nil, ErrNotFound
	}
	return r.Get(ref.Kind, ref.Index)
}

// Resolve returns the live record registered for handle.
func (r *Registry) Resolve(kind api.ObjectType, handle api.Handle) (*Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t := r.table(kind)
	i, ok := t.handles[handle]
	if !ok || handle.IsNull() {
		return nil, ErrUnknownHandle
	}
	return t.records[i], nil
}

// PayloadOf returns the payload of the live record at index as a P.
func PayloadOf[P Payload](r *Registry, kind api.ObjectType, index uint32) (P, *Record, error) {
	var zero P
	rec, err := r.Get(kind, index)
	if err != nil {
		return zero, nil, err
	}
	p, ok := rec.Payload.(P)
	if !ok {
		return zero, rec, violation(rec, rec.FrameCreated, "payload is %T, not %T", rec.Payload, zero)
	}
	return p, rec, nil
}

// ResolveAs returns the payload of the live record registered for handle.
func ResolveAs[P Payload](r *Registry, kind api.ObjectType, handle api.Handle) (P, *Record, error) {
	var zero P
	rec, err := r.Resolve(kind, handle)
	if err != nil {
		return zero, nil, err
	}
	p, ok := rec.Payload.(P)
	if !ok {
		return zero, rec, violation(rec, rec.FrameCreated, "payload is %T, not %T", rec.Payload, zero)
	}
	return p, rec, nil
}

// SetName attaches a debug name to a live record.
func (r *Registry) SetName(kind api.ObjectType, index uint32, name string) error {
	rec, err := r.Get(kind, index)
	if err != nil {
		return err
	}
	rec.mu.Lock()
	rec.Name = name
	rec.mu.Unlock()
	return nil
}

// Each calls f for every live record of kind, in index order.
func (r *Registry) Each(kind api.ObjectType, f func(*Record)) {
	r.mu.RLock()
	recs := append([]*Record(nil), r.table(kind).records...)
	r.mu.RUnlock()
	for _, rec := range recs {
		if rec != nil && !rec.Destroyed() {
			f(rec)
		}
	}
}

// Live returns the number of live records of kind.
func (r *Registry) Live(kind api.ObjectType) int {
	n := 0
	r.Each(kind, func(*Record) { n++ })
	return n
}

// LiveTotal returns the number of live records of all kinds.
func (r *Registry) LiveTotal() int {
	n := 0
	for _, k := range api.ObjectTypes {
		n += r.Live(k)
	}
	return n
}

// Sweep reclaims destroyed records that no live record refers to, making
// their indices available to Create. It returns the number reclaimed.
func (r *Registry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	held := map[Ref]bool{}
	for _, t := range r.tables {
		for _, rec := range t.records {
			if rec == nil || rec.Destroyed() || rec.Payload == nil {
				continue
			}
			for _, ref := range rec.Payload.References() {
				held[ref] = true
			}
		}
	}
	count := 0
	for _, k := range api.ObjectTypes {
		t := r.tables[k]
		var reclaimed []uint32
		for i, rec := range t.records {
			if rec == nil || !rec.Destroyed() || held[rec.Ref()] {
				continue
			}
			t.freed[uint32(i)] = rec.Stamp()
			t.records[i] = nil
			reclaimed = append(reclaimed, uint32(i))
		}
		sort.Slice(reclaimed, func(a, b int) bool { return reclaimed[a] < reclaimed[b] })
		t.free = append(t.free, reclaimed...)
		count += len(reclaimed)
	}
	return count
}

// live returns the live record ref names, which must be of kind.
func (r *Registry) live(ref Ref, kind api.ObjectType) (*Record, error) {
	if ref.Kind != kind {
		return nil, errors.Errorf("reference %v is not a %v", ref, kind)
	}
	rec, err := r.Lookup(ref)
	if err != nil {
		return nil, errors.Wrapf(err, "reference %v", ref)
	}
	return rec, nil
}

// verify checks that ref names a live record of kind whose own invariants
// hold. An invalid ref is accepted.
func (r *Registry) verify(ref Ref, kind api.ObjectType) error {
	if !ref.Valid() {
		return nil
	}
	rec, err := r.live(ref, kind)
	if err != nil {
		return err
	}
	if err := checkBase(rec); err != nil {
		return errors.Wrapf(err, "reference %v", ref)
	}
	if err := rec.Payload.Check(r, rec); err != nil {
		return errors.Wrapf(err, "reference %v", ref)
	}
	return nil
}

func checkBase(rec *Record) error {
	switch {
	case rec.Stamp().Thread < 0:
		return errors.New("no owning thread")
	case rec.Payload == nil:
		return errors.New("record has no payload")
	case rec.FrameCreated < 0:
		return errors.Errorf("created at frame %d", rec.FrameCreated)
	case rec.Destroyed() && rec.FrameDestroyed < rec.FrameCreated:
		return errors.Errorf("destroyed at frame %d before creation at %d", rec.FrameDestroyed, rec.FrameCreated)
	}
	return nil
}

// CheckRecord validates a single record's invariants.
func (r *Registry) CheckRecord(rec *Record, frame int) error {
	if rec.Destroyed() {
		return violation(rec, frame, "record is destroyed")
	}
	if err := checkBase(rec); err != nil {
		return violation(rec, frame, "%v", err)
	}
	if err := rec.Payload.Check(r, rec); err != nil {
		return violation(rec, frame, "%v", err)
	}
	return nil
}

// Check validates every live record and everything each refers to.
func (r *Registry) Check(ctx context.Context, frame int) error {
	ctx = log.Enter(ctx, "Check")
	for _, k := range api.ObjectTypes {
		var err error
		r.Each(k, func(rec *Record) {
			if err != nil {
				return
			}
			err = r.CheckRecord(rec, frame)
		})
		if err != nil {
			return err
		}
	}
	log.D(ctx, "Self test passed at frame %d", frame)
	return nil
}
