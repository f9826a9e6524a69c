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

// Package http is a thin REST wrapper over durableflow.Client, an
// external convenience surface and not part of the core engine.
package http

import (
	"bytes"
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/prometheus/common/expfmt"

	"durableflow"
	"durableflow/pkg/metrics"
)

// Handler adapts HTTP requests onto a *durableflow.Client.
type Handler struct {
	client *durableflow.Client
}

// NewHandler constructs a Handler over client.
func NewHandler(client *durableflow.Client) *Handler {
	return &Handler{client: client}
}

type startRequest struct {
	Handler string `json:"handler"`
	Input   string `json:"input"`
}

// StartWorkflow handles POST /v1/workflows/:id.
func (h *Handler) StartWorkflow(ctx context.Context, c *app.RequestContext) {
	id := c.Param("id")
	var req startRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	created, err := h.client.Start(ctx, id, req.Handler, []byte(req.Input))
	if err != nil {
		hlog.CtxErrorf(ctx, "durableflow: start %s: %v", id, err)
		c.JSON(consts.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	if !created {
		c.JSON(consts.StatusConflict, map[string]string{"id": id, "error": "already exists"})
		return
	}
	c.JSON(consts.StatusCreated, map[string]string{"id": id})
}

// WaitWorkflow handles GET /v1/workflows/:id?status=finished,aborted&times=N&intervalMs=M.
func (h *Handler) WaitWorkflow(ctx context.Context, c *app.RequestContext) {
	id := c.Param("id")

	statusParam := c.Query("status")
	if statusParam == "" {
		statusParam = string(durableflow.StatusFinished)
	}
	until := make(map[durableflow.Status]struct{})
	for _, s := range strings.Split(statusParam, ",") {
		if s = strings.TrimSpace(s); s != "" {
			until[durableflow.Status(s)] = struct{}{}
		}
	}

	times := 1
	if v := c.Query("times"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			times = n
		}
	}
	intervalMs := 250
	if v := c.Query("intervalMs"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			intervalMs = n
		}
	}

	status, matched, err := h.client.Wait(ctx, id, until, times, time.Duration(intervalMs)*time.Millisecond)
	if err != nil {
		hlog.CtxErrorf(ctx, "durableflow: wait %s: %v", id, err)
		c.JSON(consts.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	if !matched {
		c.JSON(consts.StatusAccepted, map[string]string{"status": "none"})
		return
	}
	c.JSON(consts.StatusOK, map[string]string{"status": string(status)})
}

// Metrics handles GET /metrics.
func (h *Handler) Metrics(ctx context.Context, c *app.RequestContext) {
	var buf bytes.Buffer
	if err := metrics.WriteExposition(&buf); err != nil {
		hlog.CtxErrorf(ctx, "durableflow: write metrics: %v", err)
		c.AbortWithStatus(consts.StatusInternalServerError)
		return
	}
	c.Header("Content-Type", string(expfmt.FmtText))
	c.Write(buf.Bytes())
}
