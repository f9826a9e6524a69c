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
	"log/slog"
	"testing"
	"time"

	"durableflow/internal/store"
)

func newTestEngine(st Store, handlers map[string]Handler, maxFailures int) *engine {
	return &engine{
		store:       st,
		clock:       NewFakeClock(time.Unix(0, 0)),
		logger:      slog.Default(),
		handlers:    handlers,
		maxFailures: maxFailures,
		timeout:     30 * time.Second,
		retry:       5 * time.Second,
	}
}

func TestEngineRun_Success(t *testing.T) {
	st := store.NewMem()
	ctx := context.Background()
	st.Insert(ctx, "wf-1", "ok", DefaultQueue, nil)

	e := newTestEngine(st, map[string]Handler{
		"ok": func(_ *Context, _ []byte) error { return nil },
	}, 3)

	if err := e.run(ctx, "wf-1"); err != nil {
		t.Fatalf("run: %v", err)
	}
	status, ok, err := st.FindStatus(ctx, "wf-1")
	if err != nil || !ok {
		t.Fatalf("FindStatus: %v %v", ok, err)
	}
	if status != StatusFinished {
		t.Fatalf("expected finished, got %v", status)
	}
}

func TestEngineRun_FailureBelowThreshold(t *testing.T) {
	st := store.NewMem()
	ctx := context.Background()
	st.Insert(ctx, "wf-2", "boom", DefaultQueue, nil)

	e := newTestEngine(st, map[string]Handler{
		"boom": func(_ *Context, _ []byte) error { return errors.New("nope") },
	}, 3)

	if err := e.run(ctx, "wf-2"); err != nil {
		t.Fatalf("run: %v", err)
	}
	status, _, _ := st.FindStatus(ctx, "wf-2")
	if status != StatusFailed {
		t.Fatalf("expected failed, got %v", status)
	}
}

func TestEngineRun_AbortsAtMaxFailures(t *testing.T) {
	st := store.NewMem()
	ctx := context.Background()
	st.Insert(ctx, "wf-3", "boom", DefaultQueue, nil)
	st.UpdateStatus(ctx, "wf-3", StatusFailed, time.Time{}, 2, "prior failure")

	e := newTestEngine(st, map[string]Handler{
		"boom": func(_ *Context, _ []byte) error { return errors.New("nope") },
	}, 3)

	if err := e.run(ctx, "wf-3"); err != nil {
		t.Fatalf("run: %v", err)
	}
	status, _, _ := st.FindStatus(ctx, "wf-3")
	if status != StatusAborted {
		t.Fatalf("expected aborted after reaching max failures, got %v", status)
	}
}

func TestEngineRun_HandlerNotFound(t *testing.T) {
	st := store.NewMem()
	ctx := context.Background()
	st.Insert(ctx, "wf-4", "missing", DefaultQueue, nil)

	e := newTestEngine(st, map[string]Handler{}, 3)

	err := e.run(ctx, "wf-4")
	if !errors.Is(err, ErrHandlerNotFound) {
		t.Fatalf("expected ErrHandlerNotFound, got %v", err)
	}
}

func TestEngineRun_WorkflowNotFound(t *testing.T) {
	st := store.NewMem()
	e := newTestEngine(st, map[string]Handler{}, 3)

	err := e.run(context.Background(), "does-not-exist")
	if !errors.Is(err, ErrWorkflowNotFound) {
		t.Fatalf("expected ErrWorkflowNotFound, got %v", err)
	}
}

func TestEngineRun_PanicRecovered(t *testing.T) {
	st := store.NewMem()
	ctx := context.Background()
	st.Insert(ctx, "wf-5", "panics", DefaultQueue, nil)

	e := newTestEngine(st, map[string]Handler{
		"panics": func(_ *Context, _ []byte) error { panic("oops") },
	}, 3)

	if err := e.run(ctx, "wf-5"); err != nil {
		t.Fatalf("run should absorb the panic into store state: %v", err)
	}
	status, _, _ := st.FindStatus(ctx, "wf-5")
	if status != StatusFailed {
		t.Fatalf("expected failed after recovered panic, got %v", status)
	}
}

func TestEngineRun_StoreErrorPropagatesWithoutTerminalState(t *testing.T) {
	st := &brokenOutputStore{Mem: store.NewMem()}
	ctx := context.Background()
	st.Mem.Insert(ctx, "wf-6", "steps", DefaultQueue, nil)
	if _, _, err := st.Mem.Claim(ctx, "", time.Unix(0, 0), time.Unix(0, 0).Add(30*time.Second)); err != nil {
		t.Fatalf("Claim: %v", err)
	}

	e := newTestEngine(st, map[string]Handler{
		"steps": func(c *Context, _ []byte) error {
			_, err := c.Step("a", func(_ context.Context) ([]byte, error) { return []byte("x"), nil })
			return err
		},
	}, 3)

	err := e.run(ctx, "wf-6")
	var se *StoreError
	if !errors.As(err, &se) {
		t.Fatalf("expected StoreError, got %v", err)
	}
	status, _, _ := st.Mem.FindStatus(ctx, "wf-6")
	if status != StatusRunning {
		t.Fatalf("a StoreError must not be translated into terminal status, got %v", status)
	}
}

// brokenOutputStore wraps *store.Mem and fails every UpdateOutput call,
// simulating a persistence outage mid-step.
type brokenOutputStore struct {
	*store.Mem
}

func (b *brokenOutputStore) UpdateOutput(_ context.Context, _, _ string, _ []byte, _ time.Time) error {
	return errors.New("simulated store outage")
}
