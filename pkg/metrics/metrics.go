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

// Package metrics holds the Prometheus collectors shared by the run
// engine and the supervisor, registered against a package-level
// registry exposed at the gateway's /metrics endpoint.
package metrics

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// DefaultRegistry is the registry the HTTP gateway exposes at
// /metrics. This package's init registers every collector below
// against it.
var DefaultRegistry = prometheus.NewRegistry()

func init() {
	DefaultRegistry.MustRegister(
		RunsTotal, RunDurationSeconds, FailuresTotal,
		ClaimTotal, ClaimEmptyTotal, InFlightRuns, PollDurationSeconds,
	)
}

// RunsTotal counts completed run() invocations by handler and terminal
// outcome ("finished").
var RunsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "durableflow_runs_total",
		Help: "Workflow handler invocations that reached a terminal outcome, by handler and outcome.",
	},
	[]string{"handler", "outcome"},
)

// RunDurationSeconds observes wall-clock time spent inside a single
// handler invocation, including step/sleep suspension.
var RunDurationSeconds = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "durableflow_run_duration_seconds",
		Help:    "Wall-clock duration of a single run() invocation.",
		Buckets: prometheus.DefBuckets,
	},
)

// FailuresTotal counts handler failures by handler and resulting
// status (failed or aborted).
var FailuresTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "durableflow_failures_total",
		Help: "Handler failures by handler and resulting status.",
	},
	[]string{"handler", "status"},
)

// ClaimTotal counts successful claims by queue.
var ClaimTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "durableflow_claim_total",
		Help: "Successful claims by queue.",
	},
	[]string{"queue"},
)

// ClaimEmptyTotal counts poll cycles that found nothing to claim.
var ClaimEmptyTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "durableflow_claim_empty_total",
		Help: "Poll cycles that found no claimable workflow, by queue.",
	},
	[]string{"queue"},
)

// InFlightRuns gauges the number of run() invocations currently
// executing for a given worker.
var InFlightRuns = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "durableflow_in_flight_runs",
		Help: "Number of run() invocations currently executing.",
	},
	[]string{"queue"},
)

// PollDurationSeconds observes the time taken by the claim call of a
// single supervisor poll iteration (excluding dispatch, the semaphore
// wait and the idle sleep).
var PollDurationSeconds = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "durableflow_poll_duration_seconds",
		Help:    "Duration of a single supervisor poll iteration.",
		Buckets: prometheus.DefBuckets,
	},
)

// WriteExposition renders DefaultRegistry in the Prometheus text
// exposition format, for handlers that cannot depend on
// promhttp.Handler directly (e.g. a hertz route).
func WriteExposition(w io.Writer) error {
	families, err := DefaultRegistry.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
