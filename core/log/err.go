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
	"context"
	"strings"
)

// wrapped is an error carrying the message that described it and the
// error that caused it.
type wrapped struct {
	msg   *Message
	cause error
}

func (e *wrapped) Cause() error  { return e.cause }
func (e *wrapped) Unwrap() error { return e.cause }

func (e *wrapped) Error() string {
	sb := strings.Builder{}
	sb.WriteString(e.msg.Text)
	e.msg.Values.appendTo(&sb)
	if e.cause != nil {
		sb.WriteString(": ")
		sb.WriteString(e.cause.Error())
	}
	return sb.String()
}

// Err wraps cause with msg and the values bound to the logger.
func (l *Logger) Err(cause error, msg string) error {
	return &wrapped{l.Message(Error, false, msg), cause}
}

// Errf is Err with a formatted message.
func (l *Logger) Errf(cause error, format string, args ...interface{}) error {
	return &wrapped{l.Messagef(Error, false, format, args...), cause}
}

// Err wraps cause with msg and the values bound to ctx.
func Err(ctx context.Context, cause error, msg string) error {
	return From(ctx).Err(cause, msg)
}

// Errf is Err with a formatted message.
func Errf(ctx context.Context, cause error, format string, args ...interface{}) error {
	return From(ctx).Errf(cause, format, args...)
}
