/*
Copyright 2024 The Kubernetes Authors.

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

package allocator

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the prometheus collectors the allocator frame registers:
// one histogram of solve-call durations and one counter of improving
// solutions found, labeled by the algorithm that found them. Run increments
// the counter for every emitted point; no code path observes into the
// histogram, so it stays empty. The reference
// CLI registers these against its own registry and serves them over
// /metrics; library callers that don't care about metrics can use
// NewMetrics(prometheus.NewRegistry()) and simply never scrape it.
type Metrics struct {
	SolveDuration prometheus.Histogram
	Improvements  *prometheus.CounterVec
}

// NewMetrics creates and registers the allocator frame's collectors
// against reg.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		SolveDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "vmcwm",
			Subsystem: "allocator",
			Name:      "solve_duration_seconds",
			Help:      "Duration of individual solver Solve() calls.",
			Buckets:   prometheus.DefBuckets,
		}),
		Improvements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vmcwm",
			Subsystem: "allocator",
			Name:      "improving_solutions_total",
			Help:      "Count of strictly improving or newly Pareto-optimal solutions found, by algorithm.",
		}, []string{"algorithm"}),
	}
	reg.MustRegister(m.SolveDuration, m.Improvements)
	return m
}

// observeImprovement records one improving solution found by algo. nil m
// is a valid no-op receiver so Run can be used without a metrics registry.
func (m *Metrics) observeImprovement(algo Algorithm) {
	if m == nil {
		return
	}
	m.Improvements.WithLabelValues(string(algo)).Inc()
}

func (m *Metrics) observeSolveDuration(seconds float64) {
	if m == nil {
		return
	}
	m.SolveDuration.Observe(seconds)
}
