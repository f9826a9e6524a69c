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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	yaml := `
store:
  type: postgres
  dsn: "postgres://localhost/durableflow"
worker:
  queue: "billing"
  max_concurrent_runs: 4
log:
  level: "debug"
`
	path := filepath.Join(dir, "worker.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Store.Type)
	assert.Equal(t, "postgres://localhost/durableflow", cfg.Store.DSN)
	assert.Equal(t, "billing", cfg.Worker.Queue)
	assert.Equal(t, 4, cfg.Worker.MaxConcurrentRuns)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_AppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Worker.MaxFailures)
	assert.Equal(t, "250ms", cfg.Worker.PollInterval)
	assert.Equal(t, "memory", cfg.Store.Type)
	assert.Equal(t, ":8080", cfg.API.Addr)
	assert.Equal(t, ":9090", cfg.Monitoring.Prometheus.Addr)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
