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

package log

import (
	"fmt"
	"strings"
	"time"
)

// Message is a single log entry.
type Message struct {
	// The message text.
	Text string

	// The time the message was logged.
	Time time.Time

	// The severity of the message.
	Severity Severity

	// StopProcess is true if the message indicates the process should stop.
	StopProcess bool

	// The chain of Enter() names, innermost first.
	Trace []string

	// The values bound to the context, sorted by name.
	Values Values
}

// Value is a named value bound to a message.
type Value struct {
	Name  string
	Value interface{}
}

// Values is a list of values sortable by name.
type Values []*Value

func (v Values) Len() int           { return len(v) }
func (v Values) Less(i, j int) bool { return v[i].Name < v[j].Name }
func (v Values) Swap(i, j int)      { v[i], v[j] = v[j], v[i] }

// Get returns the value with the given name, or nil.
func (v Values) Get(name string) interface{} {
	for _, e := range v {
		if e.Name == name {
			return e.Value
		}
	}
	return nil
}

// String returns the message in a brief single line form, values appended.
func (m *Message) String() string {
	sb := strings.Builder{}
	sb.WriteString(m.Severity.Short())
	sb.WriteString(": ")
	if len(m.Trace) > 0 {
		for i := len(m.Trace) - 1; i >= 0; i-- {
			sb.WriteString(m.Trace[i])
			sb.WriteString(" -> ")
		}
	}
	sb.WriteString(m.Text)
	m.Values.appendTo(&sb)
	return sb.String()
}

func (v Values) appendTo(sb *strings.Builder) {
	for _, e := range v {
		fmt.Fprintf(sb, " %v=%v", e.Name, e.Value)
	}
}
