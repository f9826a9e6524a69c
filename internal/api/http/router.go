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

package http

import (
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/config"
)

// Router builds the Hertz engine serving the workflow gateway.
type Router struct {
	handler *Handler
}

// NewRouter constructs a Router delegating to handler.
func NewRouter(handler *Handler) *Router {
	return &Router{handler: handler}
}

// Build registers routes and returns a Hertz engine bound to addr.
func (r *Router) Build(addr string, opts ...config.Option) *server.Hertz {
	allOpts := append([]config.Option{server.WithHostPorts(addr)}, opts...)
	h := server.Default(allOpts...)

	v1 := h.Group("/v1/workflows")
	v1.POST("/:id", r.handler.StartWorkflow)
	v1.GET("/:id", r.handler.WaitWorkflow)

	h.GET("/metrics", r.handler.Metrics)

	return h
}
