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

package redis_db

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRedisURL(t *testing.T) {
	tests := []struct {
		name         string
		url          string
		expectedAddr string
		expectedPass string
	}{
		{"docker style", "redis:6379", "redis:6379", ""},
		{"localhost", "localhost:6379", "localhost:6379", ""},
		{"full url", "redis://localhost:6379", "localhost:6379", ""},
		{"url with password", "redis://secret@localhost:6379", "localhost:6379", "secret"},
		{"url with user and password", "redis://:secret@localhost:6379", "localhost:6379", "secret"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := ParseRedisURL(tt.url, false)
			require.NoError(t, err)
			assert.Equal(t, tt.expectedAddr, opts.Addr)
			assert.Equal(t, tt.expectedPass, opts.Password)
		})
	}
}

func TestParseRedisURLInvalid(t *testing.T) {
	_, err := ParseRedisURL("http://not-redis", false)
	assert.Error(t, err)
}

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)

	r, err := NewRedisClient(mr.Addr(), false)
	require.NoError(t, err)
	assert.NotNil(t, r.Client())

	_, err = NewRedisClient("", false)
	assert.Error(t, err)
}
