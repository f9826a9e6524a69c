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

// Package api assembles the Hertz gateway over a durableflow.Client,
// mirroring the shape of internal/app/api in the teacher's agent
// runtime but stripped to the one store dependency this surface needs.
package api

import (
	"context"
	"fmt"

	"github.com/cloudwego/hertz/pkg/app/server"

	"durableflow"
	"durableflow/internal/api/http"
	"durableflow/internal/store"
	"durableflow/pkg/config"
	dferrors "durableflow/pkg/errors"
	"durableflow/pkg/log"
)

// App owns the gateway's store connection and its Hertz server.
type App struct {
	logger *log.Logger
	closer func() error
	hertz  *server.Hertz
}

// NewApp wires a Store (per cfg.Store.Type), a durableflow.Client and
// the HTTP router into a Hertz engine bound to cfg.API.Addr.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger, err := log.NewLogger(&log.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, File: cfg.Log.File})
	if err != nil {
		return nil, fmt.Errorf("durableflow/api: logger: %w", err)
	}

	st, closer, err := buildStore(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("durableflow/api: store: %w", err)
	}

	client := durableflow.NewClient(st, nil)
	handler := http.NewHandler(client)
	router := http.NewRouter(handler)
	h := router.Build(cfg.API.Addr)

	return &App{logger: logger, closer: closer, hertz: h}, nil
}

// Start runs the Hertz engine in its own goroutine; it does not block.
func (a *App) Start() {
	go a.hertz.Spin()
}

// Shutdown stops accepting new HTTP connections and closes the store.
func (a *App) Shutdown(ctx context.Context) error {
	if err := a.hertz.Shutdown(ctx); err != nil {
		a.logger.Error("hertz shutdown", "error", err)
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
		return nil, nil, dferrors.Wrapf(dferrors.ErrInvalidArg, "durableflow/api: unknown store type %q", cfg.Type)
	}
}
