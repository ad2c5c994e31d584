/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package metrics exposes Prometheus series for the domain engine's runtime
// (fiber execution, make-right outcomes, introspector failures, and replica
// bookkeeping), registered on controller-runtime's global registry so they
// ride the same /metrics endpoint as the rest of the manager (spec §10.11).
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// FiberDuration records wall-clock time spent running a named plan
	// ("up" or "down") from fiber start to Completion/Cancel/Throwable.
	FiberDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "wlsoperator",
			Name:      "fiber_duration_seconds",
			Help:      "Duration of make-right fiber executions in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"plan"},
	)

	// MakeRightTotal counts Decide outcomes by result label, as the
	// processor records them: "skip", "run_up" or "run_down".
	MakeRightTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wlsoperator",
			Name:      "makeright_total",
			Help:      "Total number of make-right decisions by result",
		},
		[]string{"result"},
	)

	// ActiveFibers is the per-namespace gauge of currently-running fibers.
	// It is registered, but no code in this module sets it.
	ActiveFibers = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "wlsoperator",
			Name:      "active_fibers",
			Help:      "Number of make-right fibers currently running",
		},
		[]string{"namespace"},
	)

	// IntrospectorJobFailures counts introspector Job failures observed by
	// the Watch Dispatcher's Pod handler, per Domain.
	IntrospectorJobFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wlsoperator",
			Name:      "introspector_job_failures_total",
			Help:      "Total number of introspector Job failures",
		},
		[]string{"domain_uid"},
	)

	// StartedServers is the gauge for the Server-Policy Evaluator's
	// started-set size per cluster. It is registered and cleared by
	// ClearDomain, but no code in this module sets it.
	StartedServers = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "wlsoperator",
			Name:      "started_servers",
			Help:      "Number of servers the Server-Policy Evaluator started for a cluster",
		},
		[]string{"domain_uid", "cluster_name"},
	)

	// CoalescedEvents counts Domain MODIFIED events absorbed by the Watch
	// Dispatcher while a fiber for that domain was already running (spec
	// §10.4's coalescing counter).
	CoalescedEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wlsoperator",
			Name:      "coalesced_events_total",
			Help:      "Total number of Domain watch events coalesced into an already-running fiber",
		},
		[]string{"domain_uid"},
	)
)

// MustRegister registers every series in this package with registry (the
// controller-runtime metrics.Registry in production, a fresh
// prometheus.NewRegistry() in tests).
func MustRegister(registry prometheus.Registerer) {
	registry.MustRegister(
		FiberDuration,
		MakeRightTotal,
		ActiveFibers,
		IntrospectorJobFailures,
		StartedServers,
		CoalescedEvents,
	)
}

// ClearDomain removes every per-domain series for domainUID, called when a
// Domain is deleted so stale series don't linger after the resource is
// gone.
func ClearDomain(domainUID string) {
	IntrospectorJobFailures.DeleteLabelValues(domainUID)
	CoalescedEvents.DeleteLabelValues(domainUID)
	StartedServers.DeletePartialMatch(prometheus.Labels{"domain_uid": domainUID})
}
