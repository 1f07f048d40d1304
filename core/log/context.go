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

import "context"

type key int

const (
	handlerKey key = iota
	filterKey
	traceKey
	valuesKey
)

// Filter decides which severities reach the handler.
type Filter interface {
	ShowSeverity(s Severity) bool
}

// SeverityFilter shows messages at or above its severity.
type SeverityFilter Severity

func (f SeverityFilter) ShowSeverity(s Severity) bool { return s >= Severity(f) }

// PutFilter returns ctx with f installed.
func PutFilter(ctx context.Context, f Filter) context.Context {
	return context.WithValue(ctx, filterKey, f)
}

// GetFilter returns the Filter installed in ctx, or nil.
func GetFilter(ctx context.Context) Filter {
	f, _ := ctx.Value(filterKey).(Filter)
	return f
}

// scope is one link of the chain built by Enter.
type scope struct {
	name  string
	outer *scope
}

// Enter returns ctx with name pushed onto the scope chain reported with
// each message.
func Enter(ctx context.Context, name string) context.Context {
	outer, _ := ctx.Value(traceKey).(*scope)
	return context.WithValue(ctx, traceKey, &scope{name, outer})
}

// GetTrace returns the names passed to Enter, innermost first.
func GetTrace(ctx context.Context) []string {
	var names []string
	for s, _ := ctx.Value(traceKey).(*scope); s != nil; s = s.outer {
		names = append(names, s.name)
	}
	return names
}
