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

package request

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"time"
)

// ToJsonReq converts a Go object to a JSON-encoded HTTP request payload.
//
// Parameters:
// - payload interface{}: The data structure to be serialized into JSON.
//
// Returns:
// - *bytes.Buffer: The JSON-encoded payload ready to be sent in a request.
// - error: An error if the JSON marshalling process fails.
func ToJsonReq(payload interface{}) (*bytes.Buffer, error) {
	c, e := json.Marshal(payload)
	if e != nil {
		return nil, e
	}
	return bytes.NewBuffer(c), nil
}

// Call sends the request with the given client and decodes the JSON response
// body into response. The raw *http.Response is returned alongside so
// callers can inspect the status code; the body is fully read and closed.
//
// Parameters:
// - client *http.Client: The HTTP client to use; nil falls back to a default client.
// - req *http.Request: The prepared HTTP request to send.
// - response interface{}: The target structure for the decoded JSON body; nil skips decoding.
//
// Returns:
// - *http.Response: The raw HTTP response with a drained body.
// - error: An error if the HTTP request or JSON decoding fails.
func Call(client *http.Client, req *http.Request, response interface{}) (*http.Response, error) {
	req.Header.Set("Content-Type", "application/json")
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	resp, err := client.Do(req)
	if err != nil {
		return resp, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp, err
	}
	// Keep the body readable for callers that want the raw text on errors.
	resp.Body = io.NopCloser(bytes.NewReader(body))

	if response == nil || len(body) == 0 {
		return resp, nil
	}
	if err := json.Unmarshal(body, response); err != nil {
		return resp, err
	}
	return resp, nil
}
