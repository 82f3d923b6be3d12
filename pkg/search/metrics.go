// Copyright 2026 KrakLabs
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
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// metricsSearch holds Prometheus metrics for the retrieval side.
type metricsSearch struct {
	once sync.Once

	searchHits  prometheus.Histogram
	asksTotal   *prometheus.CounterVec
	askDuration prometheus.Histogram
	tokensTotal *prometheus.CounterVec
}

var searchMetrics metricsSearch

func (m *metricsSearch) init() {
	m.once.Do(func() {
		m.searchHits = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "recall_search_hits",
			Help:    "Records returned per search",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
		})
		m.asksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "recall_ask_total",
			Help: "Ask requests by outcome",
		}, []string{"outcome"})
		m.askDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "recall_ask_seconds",
			Help:    "End-to-end ask duration",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		})
		m.tokensTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "recall_ask_tokens_total",
			Help: "Tokens spent on ask, by direction",
		}, []string{"direction"})

		prometheus.MustRegister(m.searchHits, m.asksTotal, m.askDuration, m.tokensTotal)
	})
}

func observeSearch(hits int) {
	searchMetrics.init()
	searchMetrics.searchHits.Observe(float64(hits))
}

func observeAsk(outcome string, d time.Duration) {
	searchMetrics.init()
	searchMetrics.asksTotal.WithLabelValues(outcome).Inc()
	searchMetrics.askDuration.Observe(d.Seconds())
}

func observeTokens(in, out int) {
	searchMetrics.init()
	searchMetrics.tokensTotal.WithLabelValues("input").Add(float64(in))
	searchMetrics.tokensTotal.WithLabelValues("output").Add(float64(out))
}
