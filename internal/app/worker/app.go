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

// Package worker assembles the store, logger, tracer and Worker a
// worker binary needs from a config.Config, the way
// internal/app/worker does for the teacher's agent runtime — scoped
// down to this domain's much smaller set of moving parts.
package worker

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"durableflow"
	"durableflow/internal/store"
	"durableflow/pkg/config"
	dferrors "durableflow/pkg/errors"
	"durableflow/pkg/log"
	"durableflow/pkg/metrics"
	"durableflow/pkg/tracing"
)

// App owns every long-lived resource a worker process holds: the
// store connection, the poll loop, an optional trace exporter and an
// optional metrics listener.
type App struct {
	cfg    *config.Config
	logger *log.Logger
	store  durableflow.Store
	closer func() error // closes the store, if it owns a connection

	tracerShutdown func(context.Context) error

	worker     *durableflow.Worker
	metricsSrv *http.Server
}

// NewApp wires a store (memory/postgres/redis, per cfg.Store.Type), a
// logger, optional tracing, and a Worker registered against handlers.
func NewApp(ctx context.Context, cfg *config.Config, handlers map[string]durableflow.Handler) (*App, error) {
	logger, err := log.NewLogger(&log.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, File: cfg.Log.File})
	if err != nil {
		return nil, fmt.Errorf("durableflow/worker: logger: %w", err)
	}

	st, closer, err := buildStore(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("durableflow/worker: store: %w", err)
	}

	var tracerShutdown func(context.Context) error
	if cfg.Monitoring.Tracing.Enable {
		tracerShutdown, err = tracing.Init(ctx, tracing.Config{
			ServiceName:    cfg.Monitoring.Tracing.ServiceName,
			ExportEndpoint: cfg.Monitoring.Tracing.ExportEndpoint,
			Insecure:       cfg.Monitoring.Tracing.Insecure,
		})
		if err != nil {
			_ = closer()
			return nil, fmt.Errorf("durableflow/worker: tracing: %w", err)
		}
	}

	poll, retry, timeout := durationsOrDefault(cfg.Worker)
	w := durableflow.NewWorker(durableflow.WorkerConfig{
		Store:             st,
		Logger:            logger.Logger,
		Queue:             cfg.Worker.Queue,
		MaxConcurrentRuns: cfg.Worker.MaxConcurrentRuns,
		MaxFailures:       cfg.Worker.MaxFailures,
		PollInterval:      poll,
		RetryInterval:     retry,
		TimeoutInterval:   timeout,
		ClaimRatePerSec:   cfg.Worker.ClaimRatePerSec,
	}, handlers)

	app := &App{
		cfg:            cfg,
		logger:         logger,
		store:          st,
		closer:         closer,
		tracerShutdown: tracerShutdown,
		worker:         w,
	}
	if cfg.Monitoring.Prometheus.Enable {
		app.metricsSrv = &http.Server{
			Addr: cfg.Monitoring.Prometheus.Addr,
			Handler: http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
				rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
				_ = metrics.WriteExposition(rw)
			}),
		}
	}
	return app, nil
}

// Start launches the poll loop and, if enabled, the metrics listener.
// It does not block; Shutdown stops what Start started.
func (a *App) Start(ctx context.Context) {
	go a.worker.Start(ctx)
	if a.metricsSrv != nil {
		go func() {
			if err := a.metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				a.logger.Error("metrics listener stopped", "error", err)
			}
		}()
	}
}

// Shutdown stops accepting new claims, waits for in-flight runs, then
// tears down the metrics listener, tracer and store connection in
// that order.
func (a *App) Shutdown(ctx context.Context) error {
	a.worker.Stop()

	if a.metricsSrv != nil {
		if err := a.metricsSrv.Shutdown(ctx); err != nil {
			a.logger.Error("metrics shutdown", "error", err)
		}
	}
	if a.tracerShutdown != nil {
		if err := a.tracerShutdown(ctx); err != nil {
			a.logger.Error("tracer shutdown", "error", err)
		}
	}
	return a.closer()
}

func buildStore(ctx context.Context, cfg config.StoreConfig) (durableflow.Store, func() error, error) {
	switch cfg.Type {
	case "", "memory":
		return store.NewMem(), func() error { return nil }, nil
	case "postgres":
		pg, err := store.NewPg(ctx, cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		return pg, func() error { pg.Close(); return nil }, nil
	case "redis":
		rs, err := store.NewRedisFromURL(ctx, cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		return rs, rs.Close, nil
	default:
		return nil, nil, dferrors.Wrapf(dferrors.ErrInvalidArg, "durableflow/worker: unknown store type %q", cfg.Type)
	}
}

func durationsOrDefault(cfg config.WorkerConfig) (poll, retry, timeout time.Duration) {
	poll = parseDurationOrDefault(cfg.PollInterval, 250*time.Millisecond)
	retry = parseDurationOrDefault(cfg.RetryInterval, 5*time.Second)
	timeout = parseDurationOrDefault(cfg.TimeoutInterval, 30*time.Second)
	return
}

func parseDurationOrDefault(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
