// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/go-resty/resty/v2"
)

func apiBaseURL() string {
	if u := os.Getenv("DURABLEFLOW_API_URL"); u != "" {
		return u
	}
	return "http://localhost:8080"
}

func newClient() *resty.Client {
	return resty.New().
		SetBaseURL(apiBaseURL()).
		SetTimeout(30 * time.Second).
		SetHeader("Content-Type", "application/json")
}

func startWorkflow(id, handler, input string) (map[string]string, error) {
	var out map[string]string
	resp, err := newClient().R().
		SetBody(map[string]string{"handler": handler, "input": input}).
		SetResult(&out).
		Post("/v1/workflows/" + id)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusCreated && resp.StatusCode() != http.StatusConflict {
		return nil, fmt.Errorf("POST /v1/workflows/%s: %s", id, resp.String())
	}
	return out, nil
}

func waitWorkflow(id string, status string, times, intervalMs int) (map[string]string, error) {
	var out map[string]string
	resp, err := newClient().R().
		SetResult(&out).
		SetQueryParams(map[string]string{
			"status":     status,
			"times":      fmt.Sprint(times),
			"intervalMs": fmt.Sprint(intervalMs),
		}).
		Get("/v1/workflows/" + url.PathEscape(id))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK && resp.StatusCode() != http.StatusAccepted {
		return nil, fmt.Errorf("GET /v1/workflows/%s: %s", id, resp.String())
	}
	return out, nil
}
