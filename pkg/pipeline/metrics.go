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

package pipeline

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// metricsPipeline holds Prometheus metrics for the ingestion engine.
type metricsPipeline struct {
	once sync.Once

	stepsTotal     *prometheus.CounterVec
	rollbacksTotal prometheus.Counter
	stepDuration   *prometheus.HistogramVec
}

var pipeMetrics metricsPipeline

func (m *metricsPipeline) init() {
	m.once.Do(func() {
		m.stepsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "recall_pipeline_steps_total",
			Help: "Handler invocations by step and outcome",
		}, []string{"step", "outcome"})
		m.rollbacksTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "recall_pipeline_rollbacks_total",
			Help: "Status rollbacks triggered by queue/status mismatch",
		})
		m.stepDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "recall_pipeline_step_seconds",
			Help:    "Handler duration by step",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"step"})

		prometheus.MustRegister(m.stepsTotal, m.rollbacksTotal, m.stepDuration)
	})
}

func observeStep(step string, outcome Outcome, d time.Duration) {
	pipeMetrics.init()
	pipeMetrics.stepsTotal.WithLabelValues(step, outcome.String()).Inc()
	pipeMetrics.stepDuration.WithLabelValues(step).Observe(d.Seconds())
}

func recordRollback() {
	pipeMetrics.init()
	pipeMetrics.rollbacksTotal.Inc()
}
