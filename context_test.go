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
	"testing"
	"time"

	"durableflow/internal/store"
)

func newTestContext(t *testing.T, workflowID string, st Store, clock Clock) *Context {
	t.Helper()
	if _, err := st.Insert(context.Background(), workflowID, "noop", DefaultQueue, nil); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	return newContext(context.Background(), workflowID, st, clock, slog.Default(), 30*time.Second)
}

func TestContext_StepMemoizesOutput(t *testing.T) {
	st := store.NewMem()
	clock := NewFakeClock(time.Unix(0, 0))
	ctx := newTestContext(t, "wf-1", st, clock)

	calls := 0
	fn := func(_ context.Context) ([]byte, error) {
		calls++
		return []byte("first"), nil
	}

	out1, err := ctx.Step("a", fn)
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if string(out1) != "first" {
		t.Fatalf("unexpected output %q", out1)
	}

	fn2 := func(_ context.Context) ([]byte, error) {
		calls++
		return []byte("second"), nil
	}
	out2, err := ctx.Step("a", fn2)
	if err != nil {
		t.Fatalf("Step (replay): %v", err)
	}
	if string(out2) != "first" {
		t.Fatalf("replay should reuse recorded output, got %q", out2)
	}
	if calls != 1 {
		t.Fatalf("expected fn invoked once, got %d", calls)
	}
}

func TestContext_StepErrorDoesNotRecord(t *testing.T) {
	st := store.NewMem()
	clock := NewFakeClock(time.Unix(0, 0))
	ctx := newTestContext(t, "wf-2", st, clock)

	boom := errDummy("boom")
	_, err := ctx.Step("a", func(_ context.Context) ([]byte, error) {
		return nil, boom
	})
	if err != boom {
		t.Fatalf("expected boom, got %v", err)
	}

	if _, ok, _ := st.FindOutput(context.Background(), "wf-2", "a"); ok {
		t.Fatal("a failing step must not leave a recorded output")
	}
}

func TestContext_SleepRecordsWakeUpBeforeWaiting(t *testing.T) {
	st := store.NewMem()
	clock := NewFakeClock(time.Unix(0, 0))
	ctx := newTestContext(t, "wf-3", st, clock)

	done := make(chan error, 1)
	go func() { done <- ctx.Sleep("nap", 10*time.Second) }()

	deadline := time.Now().Add(time.Second)
	for {
		if _, ok, _ := st.FindWakeUpAt(context.Background(), "wf-3", "nap"); ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("wake-up time was never recorded before Sleep unblocked")
		}
		time.Sleep(time.Millisecond)
	}

	clock.Advance(10 * time.Second)
	if err := <-done; err != nil {
		t.Fatalf("Sleep: %v", err)
	}
}

func TestContext_SleepReplaySkipsElapsedWait(t *testing.T) {
	st := store.NewMem()
	clock := NewFakeClock(time.Unix(0, 0))
	ctx := newTestContext(t, "wf-4", st, clock)

	wakeUpAt := clock.Now().Add(3 * time.Second)
	if err := st.UpdateWakeUpAt(context.Background(), "wf-4", "nap", wakeUpAt, wakeUpAt.Add(30*time.Second)); err != nil {
		t.Fatalf("UpdateWakeUpAt: %v", err)
	}

	clock.Advance(3 * time.Second)
	if err := ctx.Sleep("nap", 10*time.Second); err != nil {
		t.Fatalf("Sleep (already past wake-up): %v", err)
	}
}

func TestContext_StartReportsExistingID(t *testing.T) {
	st := store.NewMem()
	clock := NewFakeClock(time.Unix(0, 0))
	ctx := newTestContext(t, "wf-5", st, clock)

	created, err := ctx.Start("wf-6", "noop", []byte("payload"))
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !created {
		t.Fatal("expected Start to create a new workflow")
	}
	created, err = ctx.Start("wf-6", "noop", []byte("payload"))
	if err != nil {
		t.Fatalf("Start (duplicate): %v", err)
	}
	if created {
		t.Fatal("expected Start to report existing id as not created")
	}
}

type errDummy string

func (e errDummy) Error() string { return string(e) }
