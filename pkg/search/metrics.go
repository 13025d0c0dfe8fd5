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

package search

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// metricsSearch holds Prometheus metrics for the hybrid search
// subsystem, registered once on first use.
type metricsSearch struct {
	once sync.Once

	requests        *prometheus.CounterVec // by intent
	semanticErrors  prometheus.Counter
	lexicalDegraded prometheus.Counter
	syntheses       prometheus.Counter
	searchDuration  prometheus.Histogram
	resultCount     prometheus.Histogram
}

var sMetrics metricsSearch

func (m *metricsSearch) init() {
	m.once.Do(func() {
		m.requests = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "cie_search_requests_total", Help: "Search requests by detected intent"}, []string{"intent"})
		m.semanticErrors = prometheus.NewCounter(prometheus.CounterOpts{Name: "cie_search_semantic_errors_total", Help: "Semantic leg failures (search degraded to lexical)"})
		m.lexicalDegraded = prometheus.NewCounter(prometheus.CounterOpts{Name: "cie_search_lexical_degraded_total", Help: "Lexical backend failures (fell back to in-process scan)"})
		m.syntheses = prometheus.NewCounter(prometheus.CounterOpts{Name: "cie_search_syntheses_total", Help: "LLM answer syntheses produced"})
		m.searchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cie_search_seconds",
			Help:    "End-to-end search duration",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		})
		m.resultCount = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cie_search_results",
			Help:    "Fused result count per search",
			Buckets: []float64{0, 1, 3, 5, 10, 20, 30, 50},
		})

		prometheus.MustRegister(
			m.requests, m.semanticErrors, m.lexicalDegraded, m.syntheses,
			m.searchDuration, m.resultCount,
		)
	})
}

// record helpers - used by the service for metrics tracking
func recordSearch(intent Intent, seconds float64, results int) {
	sMetrics.init()
	sMetrics.requests.WithLabelValues(string(intent)).Inc()
	sMetrics.searchDuration.Observe(seconds)
	sMetrics.resultCount.Observe(float64(results))
}

func recordSemanticError()   { sMetrics.init(); sMetrics.semanticErrors.Inc() }
func recordLexicalDegraded() { sMetrics.init(); sMetrics.lexicalDegraded.Inc() }
func recordSynthesis()       { sMetrics.init(); sMetrics.syntheses.Inc() }
