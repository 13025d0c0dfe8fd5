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

package ledger

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// metricsLedger holds Prometheus metrics for the change ledger,
// registered once on first use.
type metricsLedger struct {
	once sync.Once

	appends            prometheus.Counter
	flushes            prometheus.Counter
	flushErrors        prometheus.Counter
	subscriberTimeouts prometheus.Counter
	flushSize          prometheus.Histogram
}

var lMetrics metricsLedger

func (m *metricsLedger) init() {
	m.once.Do(func() {
		m.appends = prometheus.NewCounter(prometheus.CounterOpts{Name: "cie_ledger_appends_total", Help: "Ledger entries appended"})
		m.flushes = prometheus.NewCounter(prometheus.CounterOpts{Name: "cie_ledger_flushes_total", Help: "Ledger flushes committed"})
		m.flushErrors = prometheus.NewCounter(prometheus.CounterOpts{Name: "cie_ledger_flush_errors_total", Help: "Ledger flush failures"})
		m.subscriberTimeouts = prometheus.NewCounter(prometheus.CounterOpts{Name: "cie_ledger_subscriber_timeouts_total", Help: "Subscriber notifications dropped after the bounded wait"})
		m.flushSize = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cie_ledger_flush_entries",
			Help:    "Entries per flush batch",
			Buckets: []float64{1, 5, 10, 50, 100, 500, 1000, 4096},
		})

		prometheus.MustRegister(m.appends, m.flushes, m.flushErrors, m.subscriberTimeouts, m.flushSize)
	})
}

// record helpers - used by the ledger for metrics tracking
func recordAppend() { lMetrics.init(); lMetrics.appends.Inc() }

func recordFlush(entries int) {
	lMetrics.init()
	lMetrics.flushes.Inc()
	lMetrics.flushSize.Observe(float64(entries))
}

func recordFlushError()        { lMetrics.init(); lMetrics.flushErrors.Inc() }
func recordSubscriberTimeout() { lMetrics.init(); lMetrics.subscriberTimeouts.Inc() }
