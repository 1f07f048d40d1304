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

package api

import "github.com/andrew-lunarg/lavatube/core/fault"

const (
	// ErrTimeout is returned when a wait did not complete in time.
	ErrTimeout = fault.Const("Timeout")
	// ErrNotReady is returned when a non-blocking query found the object busy.
	ErrNotReady = fault.Const("Not ready")
	// ErrUnsupported is returned for calls the driver does not implement.
	ErrUnsupported = fault.Const("Unsupported")
	// ErrMemoryMapFailed is returned when memory cannot be mapped.
	ErrMemoryMapFailed = fault.Const("Memory map failed")
	// ErrOutOfDeviceMemory is returned when an allocation cannot be satisfied.
	ErrOutOfDeviceMemory = fault.Const("Out of device memory")
	// ErrDeviceLost is returned once the device has failed.
	ErrDeviceLost = fault.Const("Device lost")
	// ErrInvalidHandle is returned when a handle is not known to the driver.
	ErrInvalidHandle = fault.Const("Invalid handle")
	// ErrBadState is returned when an object is used in the wrong state.
	ErrBadState = fault.Const("Invalid object state")
)
