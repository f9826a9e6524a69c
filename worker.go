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
	"os"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"durableflow/pkg/metrics"
)

// WorkerConfig configures the polling supervisor built on top of the
// run engine. Zero values are filled in by NewWorker with the defaults
// documented per field.
type WorkerConfig struct {
	// Store is the shared persistence backend. Required.
	Store Store
	// Clock is injected for deterministic tests; RealClock() if nil.
	Clock Clock
	// Logger receives structured supervisor and run-engine logs; a JSON
	// logger writing to stdout if nil.
	Logger *slog.Logger
	// Queue restricts claim to workflows tagged with this queue.
	// Empty means claim from any queue.
	Queue string
	// MaxConcurrentRuns bounds the number of handler invocations this
	// worker runs at once. <=0 means unbounded, matching the teacher's
	// Scheduler except for the floor: a distributed supervisor has no
	// reason to force a minimum concurrency of 1 (see DESIGN.md).
	MaxConcurrentRuns int
	// MaxFailures is the failure count at which a workflow transitions
	// to aborted instead of failed. Defaults to 3.
	MaxFailures int
	// PollInterval is the delay after an empty claim. Defaults to
	// 250ms.
	PollInterval time.Duration
	// RetryInterval is how far in the future timeoutAt is pushed after
	// a failed run, i.e. the backoff before another worker may reclaim
	// it. Defaults to 5s.
	RetryInterval time.Duration
	// TimeoutInterval is the lease length granted on claim and
	// refreshed on every step/sleep. Defaults to 30s.
	TimeoutInterval time.Duration
	// ClaimRatePerSec throttles claim attempts across all of this
	// worker's poll goroutines. 0 disables throttling.
	ClaimRatePerSec float64
}

// Worker is the polling supervisor described in spec §4.5: it loops
// claim → dispatch, spawning engine.run for every claimed workflow
// without waiting for it to finish, and falls back to PollInterval
// whenever claim finds nothing. There is no in-process queue; all
// scheduling state lives in Store, so a restarted Worker resumes
// correctly.
type Worker struct {
	engine  engine
	queue   string
	poll    time.Duration
	limiter *rate.Limiter // nil disables throttling

	sem chan struct{} // nil means unbounded

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewWorker constructs a Worker. handlers maps handler names (as
// stored by Start) to the Handler that executes them.
func NewWorker(cfg WorkerConfig, handlers map[string]Handler) *Worker {
	clock := cfg.Clock
	if clock == nil {
		clock = RealClock()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}
	maxFailures := cfg.MaxFailures
	if maxFailures <= 0 {
		maxFailures = 3
	}
	poll := cfg.PollInterval
	if poll <= 0 {
		poll = 250 * time.Millisecond
	}
	retry := cfg.RetryInterval
	if retry <= 0 {
		retry = 5 * time.Second
	}
	timeout := cfg.TimeoutInterval
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	w := &Worker{
		engine: engine{
			store:       cfg.Store,
			clock:       clock,
			logger:      logger,
			handlers:    handlers,
			maxFailures: maxFailures,
			timeout:     timeout,
			retry:       retry,
		},
		queue:  cfg.Queue,
		poll:   poll,
		stopCh: make(chan struct{}),
	}
	if cfg.MaxConcurrentRuns > 0 {
		w.sem = make(chan struct{}, cfg.MaxConcurrentRuns)
	}
	if cfg.ClaimRatePerSec > 0 {
		w.limiter = rate.NewLimiter(rate.Limit(cfg.ClaimRatePerSec), 1)
	}
	return w
}

// Start runs the poll loop until ctx is cancelled or Stop is called.
// It blocks; callers typically invoke it in its own goroutine.
func (w *Worker) Start(ctx context.Context) {
	w.wg.Add(1)
	defer w.wg.Done()
	queueLabel := w.queue
	if queueLabel == "" {
		queueLabel = "any"
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		default:
		}

		if w.limiter != nil {
			if err := w.limiter.Wait(ctx); err != nil {
				return
			}
		}

		if w.sem != nil {
			select {
			case w.sem <- struct{}{}:
			case <-ctx.Done():
				return
			case <-w.stopCh:
				return
			}
		}

		tickStart := w.engine.clock.Now()
		now := tickStart
		timeoutAt := now.Add(w.engine.timeout)
		workflowID, ok, err := w.engine.store.Claim(ctx, w.queue, now, timeoutAt)
		metrics.PollDurationSeconds.Observe(w.engine.clock.Now().Sub(tickStart).Seconds())
		if err != nil {
			w.engine.logger.Error("claim failed", "queue", queueLabel, "error", err)
			w.release()
			w.sleep(ctx, w.poll)
			continue
		}
		if !ok {
			metrics.ClaimEmptyTotal.WithLabelValues(queueLabel).Inc()
			w.release()
			w.sleep(ctx, w.poll)
			continue
		}
		metrics.ClaimTotal.WithLabelValues(queueLabel).Inc()

		w.wg.Add(1)
		metrics.InFlightRuns.WithLabelValues(queueLabel).Inc()
		go func(id string) {
			defer w.wg.Done()
			defer w.release()
			defer metrics.InFlightRuns.WithLabelValues(queueLabel).Dec()
			if err := w.engine.run(context.Background(), id); err != nil {
				w.engine.logger.Error("run failed", "workflow_id", id, "error", err)
			}
		}(workflowID)
	}
}

// Stop signals the poll loop to exit and waits for all in-flight runs
// to finish. It does not cancel those runs; it only stops accepting
// new claims.
func (w *Worker) Stop() {
	close(w.stopCh)
	w.wg.Wait()
}

func (w *Worker) release() {
	if w.sem != nil {
		<-w.sem
	}
}

func (w *Worker) sleep(ctx context.Context, d time.Duration) {
	_ = w.engine.clock.Delay(ctx, d)
}
