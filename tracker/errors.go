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
	"fmt"

	"github.com/andrew-lunarg/lavatube/api"
	"github.com/andrew-lunarg/lavatube/core/fault"
)

const (
	// ErrNotFound is returned when an index was never allocated or the
	// record it names has been destroyed.
	ErrNotFound = fault.Const("Object not found")
	// ErrUnknownHandle is returned when an API handle is stale, foreign or
	// was never registered.
	ErrUnknownHandle = fault.Const("Unknown handle")
	// ErrInvariant is the cause of every Violation.
	ErrInvariant = fault.Const("Invariant violation")
)

// Violation is a failed self-consistency check. It carries enough context
// to find the offending object in a trace.
type Violation struct {
	Kind   api.ObjectType
	Index  uint32
	Frame  int
	Thread int
	Reason string
}

func (v *Violation) Error() string {
	return fmt.Sprintf("%v: %v %d (frame %d, thread %d): %v",
		ErrInvariant, v.Kind, v.Index, v.Frame, v.Thread, v.Reason)
}

// Unwrap returns ErrInvariant.
func (v *Violation) Unwrap() error { return ErrInvariant }

// Cause returns ErrInvariant.
func (v *Violation) Cause() error { return ErrInvariant }

func violation(rec *Record, frame int, reason string, args ...interface{}) *Violation {
	return stamped(rec, rec.Stamp(), frame, reason, args...)
}

// stamped builds a violation for a caller that already holds rec.mu.
func stamped(rec *Record, s Stamp, frame int, reason string, args ...interface{}) *Violation {
	return &Violation{
		Kind:   rec.Kind,
		Index:  rec.Index,
		Frame:  frame,
		Thread: s.Thread,
		Reason: fmt.Sprintf(reason, args...),
	}
}
