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

package store

import (
	"context"
	"os"
	"testing"
	"time"
)

func testDSN(t *testing.T) string {
	dsn := os.Getenv("TEST_DURABLEFLOW_DSN")
	if dsn == "" {
		t.Skip("TEST_DURABLEFLOW_DSN not set, skipping Postgres store tests")
	}
	return dsn
}

func newTestPg(t *testing.T) *Pg {
	t.Helper()
	ctx := context.Background()
	pg, err := NewPg(ctx, testDSN(t))
	if err != nil {
		t.Fatalf("NewPg: %v", err)
	}
	pg.pool.Exec(ctx, `DELETE FROM workflow_naps`)
	pg.pool.Exec(ctx, `DELETE FROM workflow_steps`)
	pg.pool.Exec(ctx, `DELETE FROM workflows`)
	t.Cleanup(pg.Close)
	return pg
}

func TestPg_InsertRejectsDuplicateID(t *testing.T) {
	ctx := context.Background()
	s := newTestPg(t)
	ok, err := s.Insert(ctx, "wf-1", "h", "", nil)
	if err != nil || !ok {
		t.Fatalf("Insert: ok=%v err=%v", ok, err)
	}
	ok, err = s.Insert(ctx, "wf-1", "h", "", nil)
	if err != nil || ok {
		t.Fatalf("Insert (duplicate): ok=%v err=%v", ok, err)
	}
}

func TestPg_ClaimHonorsQueueAndLease(t *testing.T) {
	ctx := context.Background()
	s := newTestPg(t)
	s.Insert(ctx, "wf-reports", "h", "reports", nil)

	if _, ok, err := s.Claim(ctx, "billing", time.Now(), time.Now().Add(time.Minute)); err != nil || ok {
		t.Fatalf("Claim on wrong queue: ok=%v err=%v", ok, err)
	}

	id, ok, err := s.Claim(ctx, "reports", time.Now(), time.Now().Add(time.Minute))
	if err != nil || !ok || id != "wf-reports" {
		t.Fatalf("Claim on correct queue: id=%q ok=%v err=%v", id, ok, err)
	}

	if _, ok, err := s.Claim(ctx, "reports", time.Now(), time.Now().Add(time.Minute)); err != nil || ok {
		t.Fatalf("Claim within lease: ok=%v err=%v", ok, err)
	}
}

func TestPg_StepSleepAndStatusRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestPg(t)
	s.Insert(ctx, "wf-1", "handler-a", "", []byte("in"))

	if err := s.UpdateOutput(ctx, "wf-1", "a", []byte("out"), time.Now().Add(time.Minute)); err != nil {
		t.Fatalf("UpdateOutput: %v", err)
	}
	out, ok, err := s.FindOutput(ctx, "wf-1", "a")
	if err != nil || !ok || string(out) != "out" {
		t.Fatalf("FindOutput: out=%q ok=%v err=%v", out, ok, err)
	}

	wake := time.Now().Add(time.Hour).Truncate(time.Microsecond)
	if err := s.UpdateWakeUpAt(ctx, "wf-1", "nap", wake, time.Now().Add(time.Minute)); err != nil {
		t.Fatalf("UpdateWakeUpAt: %v", err)
	}
	got, ok, err := s.FindWakeUpAt(ctx, "wf-1", "nap")
	if err != nil || !ok || !got.Equal(wake) {
		t.Fatalf("FindWakeUpAt: got=%v ok=%v err=%v", got, ok, err)
	}

	if err := s.SetAsFinished(ctx, "wf-1"); err != nil {
		t.Fatalf("SetAsFinished: %v", err)
	}
	data, ok, err := s.FindRunData(ctx, "wf-1")
	if err != nil || !ok || data.Handler != "handler-a" {
		t.Fatalf("FindRunData: %+v ok=%v err=%v", data, ok, err)
	}
}
