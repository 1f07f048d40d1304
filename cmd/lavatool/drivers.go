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
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/andrew-lunarg/lavatube/api"
	"github.com/andrew-lunarg/lavatube/api/soft"
)

// driverFactory opens a driver and returns the function that releases it.
type driverFactory func(ctx context.Context) (api.Driver, func(), error)

var drivers = map[string]driverFactory{
	"soft": func(ctx context.Context) (api.Driver, func(), error) {
		return soft.New(), func() {}, nil
	},
}

func driverNames() string {
	names := make([]string, 0, len(drivers))
	for n := range drivers {
		names = append(names, n)
	}
	sort.Strings(names)
	return strings.Join(names, "|")
}

func newDriver(ctx context.Context, name string) (api.Driver, func(), error) {
	f, ok := drivers[name]
	if !ok {
		return nil, nil, fmt.Errorf("unknown driver %q, want %s", name, driverNames())
	}
	return f(ctx)
}
