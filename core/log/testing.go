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

// T is the part of testing.TB the test handler writes to.
type T interface {
	Helper()
	Log(args ...interface{})
	Error(args ...interface{})
	Fatal(args ...interface{})
}

// Testing returns a background context logging to t. Errors logged through
// it fail the test.
func Testing(t T) context.Context {
	return SubTest(context.Background(), t)
}

// SubTest returns ctx logging to t instead, keeping bound values and scopes.
func SubTest(ctx context.Context, t T) context.Context {
	return PutHandler(ctx, NewHandler(func(m *Message) {
		t.Helper()
		switch {
		case m.Severity >= Fatal:
			t.Fatal(m.String())
		case m.Severity >= Error:
			t.Error(m.String())
		default:
			t.Log(m.String())
		}
	}, nil))
}
