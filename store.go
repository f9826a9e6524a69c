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
	"time"
)

// Status is one of the wire-stable workflow states.
type Status string

const (
	StatusIdle     Status = "idle"
	StatusRunning  Status = "running"
	StatusFailed   Status = "failed"
	StatusFinished Status = "finished"
	StatusAborted  Status = "aborted"
)

// DefaultQueue is the queue tag applied to workflows started without an
// explicit queue. It is an operational label for metrics and optional
// Worker filtering (spec.md §4.6 NEW); it never changes claim's
// correctness predicate on its own.
const DefaultQueue = "default"

// RunData is the subset of a workflow record the run engine needs to
// resolve and invoke a handler.
type RunData struct {
	Handler  string
	Input    []byte
	Failures int
}

// Store is the persistence contract the core requires. Implementations
// may be backed by any substrate that can provide the atomicity
// described per-operation below (relational, document, KV with CAS).
// The core treats input/output/state values as opaque; encoding is the
// Store's concern.
//
// Claim is the only operation that requires compare-and-set semantics
// across workers. All other writes are made by the current lease
// holder and do not require cross-worker coordination (see spec §5).
type Store interface {
	// Insert creates an idle workflow tagged with queue (empty string is
	// the default queue). Returns (true, nil) on success, (false, nil)
	// if id already exists. Any other error propagates.
	Insert(ctx context.Context, id, handler, queue string, input []byte) (bool, error)

	// Claim atomically selects one workflow where status = idle, or
	// status in {running, failed} and timeoutAt < now; sets its
	// status = running and timeoutAt = timeoutAt; returns its id.
	// Returns ("", false, nil) if no such workflow exists. queue, when
	// non-empty, restricts the candidate set to workflows tagged with
	// that queue.
	Claim(ctx context.Context, queue string, now, timeoutAt time.Time) (id string, ok bool, err error)

	// FindOutput returns the recorded step output, or (nil, false, nil)
	// if absent.
	FindOutput(ctx context.Context, workflowID, stepID string) (output []byte, ok bool, err error)

	// FindWakeUpAt returns the recorded nap wake time, or the zero
	// value and false if absent.
	FindWakeUpAt(ctx context.Context, workflowID, napID string) (wakeUpAt time.Time, ok bool, err error)

	// FindRunData returns the handler name, input and failure count for
	// a workflow, or (nil, false, nil) if absent.
	FindRunData(ctx context.Context, workflowID string) (data *RunData, ok bool, err error)

	// SetAsFinished sets status = finished. Called at most once per
	// workflow id.
	SetAsFinished(ctx context.Context, workflowID string) error

	// FindStatus returns the current status, or ("", false, nil) if the
	// workflow does not exist.
	FindStatus(ctx context.Context, workflowID string) (status Status, ok bool, err error)

	// UpdateStatus writes status, timeoutAt, failures and lastError
	// together.
	UpdateStatus(ctx context.Context, workflowID string, status Status, timeoutAt time.Time, failures int, lastError string) error

	// UpdateOutput creates the step record and pushes timeoutAt, in one
	// unit atomic with respect to concurrent claim.
	UpdateOutput(ctx context.Context, workflowID, stepID string, output []byte, timeoutAt time.Time) error

	// UpdateWakeUpAt creates the nap record and sets timeoutAt, in one
	// unit.
	UpdateWakeUpAt(ctx context.Context, workflowID, napID string, wakeUpAt, timeoutAt time.Time) error
}
