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

package durableflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"durableflow/pkg/metrics"
)

// Handler is a registered, long-running procedure. ctx is bound to one
// workflow id and exposes Step, Sleep and Start. A handler returning
// nil finishes the workflow; a returned error is translated into
// failed/aborted store state and does not propagate past run, except a
// *StoreError, which run returns without touching the status.
type Handler func(ctx *Context, input []byte) error

var tracer = otel.Tracer("durableflow")

// engine carries the configuration the run loop needs: the store,
// clock, handler registry and retry/lease tuning. Worker embeds one.
type engine struct {
	store       Store
	clock       Clock
	logger      *slog.Logger
	handlers    map[string]Handler
	maxFailures int
	timeout     time.Duration
	retry       time.Duration
}

// run executes the entry point described in spec §4.4: load run data,
// resolve the handler, construct a Context, invoke the handler, and
// finalize the workflow's store state. It never returns the handler's
// error: failures are absorbed into store state (StatusFailed or
// StatusAborted). Only WorkflowNotFound, HandlerNotFound and StoreError
// propagate, since those indicate the run could not even begin.
func (e *engine) run(stdctx context.Context, workflowID string) error {
	stdctx, span := tracer.Start(stdctx, "workflow.run", trace.WithAttributes(
		attribute.String("workflow.id", workflowID),
	))
	defer span.End()

	data, ok, err := e.store.FindRunData(stdctx, workflowID)
	if err != nil {
		span.RecordError(err)
		return wrapStore("FindRunData", err)
	}
	if !ok {
		span.RecordError(ErrWorkflowNotFound)
		span.SetStatus(codes.Error, ErrWorkflowNotFound.Error())
		return ErrWorkflowNotFound
	}
	span.SetAttributes(attribute.String("workflow.handler", data.Handler), attribute.Int("workflow.attempt", data.Failures+1))

	handler, ok := e.handlers[data.Handler]
	if !ok {
		span.RecordError(ErrHandlerNotFound)
		span.SetStatus(codes.Error, ErrHandlerNotFound.Error())
		return fmt.Errorf("%w: %q", ErrHandlerNotFound, data.Handler)
	}

	start := e.clock.Now()
	ctx := newContext(stdctx, workflowID, e.store, e.clock, e.logger, e.timeout)
	handlerErr := invokeHandler(handler, ctx, data.Input)
	duration := e.clock.Now().Sub(start)
	metrics.RunDurationSeconds.Observe(duration.Seconds())

	if handlerErr == nil {
		if err := e.store.SetAsFinished(stdctx, workflowID); err != nil {
			span.RecordError(err)
			return wrapStore("SetAsFinished", err)
		}
		metrics.RunsTotal.WithLabelValues(data.Handler, "finished").Inc()
		span.SetStatus(codes.Ok, "")
		return nil
	}

	// A StoreError means a primitive failed, not the handler's own
	// logic; the lease will expire and another worker retries. Do not
	// translate it into terminal store state.
	var se *StoreError
	if errors.As(handlerErr, &se) {
		span.RecordError(handlerErr)
		return handlerErr
	}

	lastError := handlerErr.Error()
	failures := data.Failures + 1
	status := StatusFailed
	if failures >= e.maxFailures {
		status = StatusAborted
	}
	timeoutAt := e.clock.Now().Add(e.retry)

	e.logger.Error("workflow handler failed", "workflow_id", workflowID, "handler", data.Handler, "failures", failures, "status", string(status), "error", lastError)
	metrics.FailuresTotal.WithLabelValues(data.Handler, string(status)).Inc()
	span.RecordError(handlerErr)
	span.SetAttributes(attribute.String("workflow.status", string(status)))

	if err := e.store.UpdateStatus(stdctx, workflowID, status, timeoutAt, failures, lastError); err != nil {
		span.RecordError(err)
		return wrapStore("UpdateStatus", err)
	}
	return nil
}

// invokeHandler runs handler, converting a panic into an error so a
// single misbehaving handler cannot take down the worker that hosts
// it. The panic is treated exactly like a returned error: translated
// into failed/aborted store state by the caller.
func invokeHandler(handler Handler, ctx *Context, input []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("durableflow: handler panicked: %v", r)
		}
	}()
	return handler(ctx, input)
}
