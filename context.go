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
	"log/slog"
	"time"
)

// StepFunc produces the output of a step. Its return value is
// persisted at most once per (workflow id, step id); the function
// itself may run more than once across crash/replay.
type StepFunc func(ctx context.Context) ([]byte, error)

// Context is constructed per workflow invocation and carries the
// workflow's id. It exposes the three primitives handlers use to
// suspend safely across crashes: Step, Sleep and Start.
type Context struct {
	workflowID string
	store      Store
	clock      Clock
	logger     *slog.Logger
	timeout    time.Duration
	stdctx     context.Context
}

func newContext(stdctx context.Context, workflowID string, store Store, clock Clock, logger *slog.Logger, timeout time.Duration) *Context {
	return &Context{
		workflowID: workflowID,
		store:      store,
		clock:      clock,
		logger:     logger.With("workflow_id", workflowID),
		timeout:    timeout,
		stdctx:     stdctx,
	}
}

// WorkflowID returns the id of the workflow this Context belongs to.
func (c *Context) WorkflowID() string { return c.workflowID }

// Logger returns a logger pre-tagged with the workflow id, for
// handler-side structured logging consistent with the rest of the
// stack.
func (c *Context) Logger() *slog.Logger { return c.logger }

// Now returns the clock's current time. The value is not recorded:
// read outside a step, it differs on every replay, just as time.Now()
// would. A step that has a recorded output never re-executes, so to
// make a time value durable across replay, capture it inside a step's
// output. Reading time through Now keeps handlers on the injected
// clock, which tests can drive.
func (c *Context) Now() time.Time { return c.clock.Now() }

// Step looks up the recorded output for (workflowId, id). If present,
// it returns that value without invoking fn. Otherwise it invokes fn,
// persists its output with a refreshed lease, then returns. If fn
// returns an error, the error propagates out of Step and no step
// record is created, so a later replay re-invokes fn.
//
// Step ids are chosen by the caller and must be unique within the
// workflow; the first recorded output for a given id wins on replay.
func (c *Context) Step(id string, fn StepFunc) ([]byte, error) {
	output, ok, err := c.store.FindOutput(c.stdctx, c.workflowID, id)
	if err != nil {
		return nil, wrapStore("FindOutput", err)
	}
	if ok {
		return output, nil
	}

	output, err = fn(c.stdctx)
	if err != nil {
		return nil, err
	}

	timeoutAt := c.clock.Now().Add(c.timeout)
	if err := c.store.UpdateOutput(c.stdctx, c.workflowID, id, output, timeoutAt); err != nil {
		return nil, wrapStore("UpdateOutput", err)
	}
	return output, nil
}

// Sleep durably delays the caller for the duration ms under id. The
// wake time is recorded before sleeping begins: a crash during the
// wait only loses the wall-clock remainder, because replay finds the
// nap record and either shortens or skips the wait, never repeating
// it from the start.
func (c *Context) Sleep(id string, ms time.Duration) error {
	now := c.clock.Now()
	wakeUpAt, ok, err := c.store.FindWakeUpAt(c.stdctx, c.workflowID, id)
	if err != nil {
		return wrapStore("FindWakeUpAt", err)
	}
	if ok {
		if wakeUpAt.After(now) {
			return c.clock.Delay(c.stdctx, wakeUpAt.Sub(now))
		}
		return nil
	}

	wakeUpAt = now.Add(ms)
	timeoutAt := wakeUpAt.Add(c.timeout)
	if err := c.store.UpdateWakeUpAt(c.stdctx, c.workflowID, id, wakeUpAt, timeoutAt); err != nil {
		return wrapStore("UpdateWakeUpAt", err)
	}
	return c.clock.Delay(c.stdctx, ms)
}

// Start inserts a new, independent workflow; there is no parent/child
// link between it and the workflow that called Start. It returns true
// when freshly created and false when id already existed. The new
// record is tagged with the default queue; use a Worker Queue option to
// partition claim eligibility, not Start.
func (c *Context) Start(id, handler string, input []byte) (bool, error) {
	ok, err := c.store.Insert(c.stdctx, id, handler, DefaultQueue, input)
	if err != nil {
		return false, wrapStore("Insert", err)
	}
	return ok, nil
}
