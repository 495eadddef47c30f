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

package syncerror_test

import (
	"errors"
	"net/http"
	"testing"

	"github.com/onaiagency/leadsync/internal/syncerror"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	assert.Equal(t, syncerror.Permanent, syncerror.Classify(syncerror.New(syncerror.Permanent, "", "bad email")))
	assert.Equal(t, syncerror.NonFatal, syncerror.Classify(syncerror.New(syncerror.NonFatal, "", "patch failed")))

	// Unknown errors default to transient so they get retried.
	assert.Equal(t, syncerror.Transient, syncerror.Classify(errors.New("connection reset")))
}

func TestWrapPreservesChain(t *testing.T) {
	base := errors.New("boom")
	wrapped := syncerror.Wrap(syncerror.Transient, base)
	assert.True(t, errors.Is(wrapped, base))
	assert.Nil(t, syncerror.Wrap(syncerror.Transient, nil))
}

func TestFromHTTPStatus(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		expected syncerror.Class
	}{
		{"server error", 500, syncerror.Transient},
		{"bad gateway", 502, syncerror.Transient},
		{"rate limited", 429, syncerror.Transient},
		{"request timeout", 408, syncerror.Transient},
		{"validation rejection", 400, syncerror.Permanent},
		{"unauthorized", 401, syncerror.Permanent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := syncerror.FromHTTPStatus(tt.status, "body")
			assert.Equal(t, tt.expected, err.Class)
		})
	}

	assert.Nil(t, syncerror.FromHTTPStatus(200, ""))
	assert.Nil(t, syncerror.FromHTTPStatus(204, ""))
}

func TestMapErrorToHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, syncerror.MapErrorToHTTPStatus(syncerror.New(syncerror.Permanent, "", "x")))
	assert.Equal(t, http.StatusBadGateway, syncerror.MapErrorToHTTPStatus(errors.New("y")))
}
