// Copyright 2025 KrakLabs
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
//
// SPDX-License-Identifier: Apache-2.0

package justify

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// metricsJustify holds Prometheus metrics for the justification
// subsystem, registered once on first use (same shape as the ingestion
// package's metrics struct).
type metricsJustify struct {
	once sync.Once

	entitiesJustified    prometheus.Counter
	llmCalls             prometheus.Counter
	llmFailures          prometheus.Counter
	heuristicFallbacks   prometheus.Counter
	clarificationsQueued prometheus.Counter
	clarificationAnswers prometheus.Counter
	inferenceDuration    prometheus.Histogram
}

var jMetrics metricsJustify

func (m *metricsJustify) init() {
	m.once.Do(func() {
		m.entitiesJustified = prometheus.NewCounter(prometheus.CounterOpts{Name: "cie_justify_entities_total", Help: "Entities justified"})
		m.llmCalls = prometheus.NewCounter(prometheus.CounterOpts{Name: "cie_justify_llm_calls_total", Help: "LLM inference calls"})
		m.llmFailures = prometheus.NewCounter(prometheus.CounterOpts{Name: "cie_justify_llm_failures_total", Help: "LLM inference failures (fell back to heuristic)"})
		m.heuristicFallbacks = prometheus.NewCounter(prometheus.CounterOpts{Name: "cie_justify_heuristic_total", Help: "Entities justified by the heuristic fallback"})
		m.clarificationsQueued = prometheus.NewCounter(prometheus.CounterOpts{Name: "cie_justify_clarifications_queued_total", Help: "Clarification questions queued"})
		m.clarificationAnswers = prometheus.NewCounter(prometheus.CounterOpts{Name: "cie_justify_clarification_answers_total", Help: "Clarification answers applied"})
		m.inferenceDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cie_justify_inference_seconds",
			Help:    "Per-entity inference duration",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		})

		prometheus.MustRegister(
			m.entitiesJustified, m.llmCalls, m.llmFailures, m.heuristicFallbacks,
			m.clarificationsQueued, m.clarificationAnswers, m.inferenceDuration,
		)
	})
}

// record helpers - used by the engine for metrics tracking
func recordEntityJustified(seconds float64) {
	jMetrics.init()
	jMetrics.entitiesJustified.Inc()
	jMetrics.inferenceDuration.Observe(seconds)
}

func recordLLMCall()             { jMetrics.init(); jMetrics.llmCalls.Inc() }
func recordLLMFailure()          { jMetrics.init(); jMetrics.llmFailures.Inc() }
func recordHeuristicFallback()   { jMetrics.init(); jMetrics.heuristicFallbacks.Inc() }
func recordClarificationQueued() { jMetrics.init(); jMetrics.clarificationsQueued.Inc() }
func recordClarificationAnswer() { jMetrics.init(); jMetrics.clarificationAnswers.Inc() }
