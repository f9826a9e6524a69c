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
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the top-level configuration decoded from a worker or api
// YAML file, overridable by environment variables (DURABLEFLOW_ prefix,
// "." replaced by "_").
type Config struct {
	Store      StoreConfig      `mapstructure:"store"`
	Worker     WorkerConfig     `mapstructure:"worker"`
	API        APIConfig        `mapstructure:"api"`
	Log        LogConfig        `mapstructure:"log"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

// StoreConfig selects and configures the persistence backend.
type StoreConfig struct {
	Type string `mapstructure:"type"` // memory | postgres | redis
	DSN  string `mapstructure:"dsn"`  // postgres connection string, or redis:// URL
	DB   int    `mapstructure:"db"`   // not read by the store builders; the redis database comes from the DSN URL
}

// WorkerConfig tunes the supervisor's poll loop and the run engine's
// retry/lease behavior.
type WorkerConfig struct {
	Queue             string `mapstructure:"queue"`               // empty = claim from any queue
	MaxConcurrentRuns int    `mapstructure:"max_concurrent_runs"`  // <=0 means unbounded
	MaxFailures       int    `mapstructure:"max_failures"`         // failures before aborted; <=0 uses default 3
	PollInterval      string `mapstructure:"poll_interval"`        // e.g. "250ms"; empty uses default
	RetryInterval     string `mapstructure:"retry_interval"`       // e.g. "5s"; empty uses default
	TimeoutInterval   string `mapstructure:"timeout_interval"`     // lease length, e.g. "30s"
	ClaimRatePerSec   float64 `mapstructure:"claim_rate_per_sec"`  // 0 disables throttling
}

// APIConfig configures the HTTP gateway.
type APIConfig struct {
	Addr    string `mapstructure:"addr"`
	Timeout string `mapstructure:"timeout"`
}

// LogConfig mirrors pkg/log.Config so it can be embedded without an
// import cycle; NewLogger callers translate between the two.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// MonitoringConfig configures Prometheus exposition and OpenTelemetry
// tracing.
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
}

// PrometheusConfig controls the standalone metrics listener a worker
// process serves pkg/metrics.DefaultRegistry from. The API gateway
// exposes the same registry at GET /metrics on its own Addr instead,
// so this Addr only matters for cmd/worker.
type PrometheusConfig struct {
	Enable bool   `mapstructure:"enable"`
	Addr   string `mapstructure:"addr"`
}

// TracingConfig configures the OTLP HTTP exporter used by pkg/tracing.
type TracingConfig struct {
	Enable         bool   `mapstructure:"enable"`
	ServiceName    string `mapstructure:"service_name"`
	ExportEndpoint string `mapstructure:"export_endpoint"`
	Insecure       bool   `mapstructure:"insecure"`
}

// Load reads configPath with viper, applying DURABLEFLOW_-prefixed
// environment overrides, and decodes it into a Config.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetEnvPrefix("durableflow")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("durableflow/config: read %s: %w", configPath, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("durableflow/config: decode %s: %w", configPath, err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Worker.MaxFailures <= 0 {
		c.Worker.MaxFailures = 3
	}
	if c.Worker.PollInterval == "" {
		c.Worker.PollInterval = "250ms"
	}
	if c.Worker.RetryInterval == "" {
		c.Worker.RetryInterval = "5s"
	}
	if c.Worker.TimeoutInterval == "" {
		c.Worker.TimeoutInterval = "30s"
	}
	if c.Store.Type == "" {
		c.Store.Type = "memory"
	}
	if c.API.Addr == "" {
		c.API.Addr = ":8080"
	}
	if c.API.Timeout == "" {
		c.API.Timeout = "30s"
	}
	if c.Monitoring.Prometheus.Addr == "" {
		c.Monitoring.Prometheus.Addr = ":9090"
	}
}
