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

// Package log provides context-carried logging.
//
// The logging handler, severity filter, bound values and trace chain all live
// on the context.Context, so any function that receives a context can log with
// the same attribution as its caller:
//
//	ctx = log.V{"thread": 3, "frame": 12}.Bind(ctx)
//	log.I(ctx, "Replaying %v calls", n)
package log
