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

package fault_test

import (
	"testing"

	"github.com/andrew-lunarg/lavatube/core/fault"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

const errTruncated = fault.Const("Truncated stream")

func TestRecovered(t *testing.T) {
	assert.NoError(t, fault.Recovered(nil))
	assert.Equal(t, error(errTruncated), fault.Recovered(errTruncated))
	assert.EqualError(t, fault.Recovered(42), "42")
}

func TestConstWrapping(t *testing.T) {
	err := errors.Wrapf(errTruncated, "thread %d", 3)
	assert.Equal(t, error(errTruncated), errors.Cause(err))
	assert.True(t, errors.Is(err, errTruncated))
	assert.Equal(t, "thread 3: Truncated stream", err.Error())
}
