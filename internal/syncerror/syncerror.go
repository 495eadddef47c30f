/*
Copyright 2025 Onai Agency Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package syncerror classifies pipeline failures so the job queue can decide
// between retrying, failing fast, and ignoring. The classes map directly to
// the retry policy: Transient consumes retry budget, Permanent fails the job
// immediately, NonFatal never propagates past the step that produced it.
package syncerror

import (
	"errors"
	"fmt"
	"net/http"
)

type Class string

const (
	// Transient failures (network timeouts, 5xx, provider rate-limit
	// rejections) are expected to succeed on a later attempt.
	Transient Class = "TRANSIENT"
	// Permanent failures (malformed payload, missing required field) need a
	// data fix; retrying wastes budget and hides the real problem.
	Permanent Class = "PERMANENT"
	// NonFatal failures (optional contact patch, audit log write) are
	// swallowed at the call site and never affect the job outcome.
	NonFatal Class = "NON_FATAL"
	// Fatal failures terminate the process; they are contained by the
	// shutdown coordinator, never silently swallowed.
	Fatal Class = "FATAL"
)

// SyncError carries a failure class and an optional provider error code.
type SyncError struct {
	Class   Class  `json:"class"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *SyncError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%s): %s", e.Class, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Class, e.Message)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

func New(class Class, code, message string) *SyncError {
	return &SyncError{Class: class, Code: code, Message: message}
}

// Wrap attaches a class to an existing error, preserving it for errors.Is
// and errors.As chains.
func Wrap(class Class, err error) *SyncError {
	if err == nil {
		return nil
	}
	return &SyncError{Class: class, Message: err.Error(), Err: err}
}

// Classify returns the class of err, defaulting to Transient: an unknown
// failure is retried rather than discarded.
func Classify(err error) Class {
	var se *SyncError
	if errors.As(err, &se) {
		return se.Class
	}
	return Transient
}

// IsPermanent reports whether err should fail the job without retrying.
func IsPermanent(err error) bool {
	return Classify(err) == Permanent
}

// FromHTTPStatus classifies a provider response status. 4xx responses other
// than 408 and 429 are permanent: re-sending the same request cannot change
// the answer.
func FromHTTPStatus(status int, body string) *SyncError {
	code := fmt.Sprintf("%d", status)
	switch {
	case status == http.StatusRequestTimeout, status == http.StatusTooManyRequests:
		return &SyncError{Class: Transient, Code: code, Message: body}
	case status >= 500:
		return &SyncError{Class: Transient, Code: code, Message: body}
	case status >= 400:
		return &SyncError{Class: Permanent, Code: code, Message: body}
	default:
		return nil
	}
}

// MapErrorToHTTPStatus translates a classified error into an API status code
// for the read-side endpoints.
func MapErrorToHTTPStatus(err error) int {
	switch Classify(err) {
	case Permanent:
		return http.StatusBadRequest
	case Transient:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
