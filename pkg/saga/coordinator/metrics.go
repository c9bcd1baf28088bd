// Copyright © 2025 jackelyj <dreamerlyj@gmail.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.
//

package coordinator

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/innovationmech/ticketing/pkg/saga"
)

// MetricsCollector receives runtime measurements from the orchestrator.
type MetricsCollector interface {
	RecordSagaStarted(sagaType string)
	RecordSagaFinished(sagaType string, status saga.Status, duration time.Duration)
	RecordStepExecuted(sagaType, stepName, result string, duration time.Duration)
	RecordCompensationExecuted(sagaType, stepName string, success bool, duration time.Duration)
}

type noOpMetricsCollector struct{}

func (noOpMetricsCollector) RecordSagaStarted(string) {}

func (noOpMetricsCollector) RecordSagaFinished(string, saga.Status, time.Duration) {}

func (noOpMetricsCollector) RecordStepExecuted(string, string, string, time.Duration) {}

func (noOpMetricsCollector) RecordCompensationExecuted(string, string, bool, time.Duration) {}

// PrometheusMetricsCollector implements MetricsCollector using Prometheus metrics.
type PrometheusMetricsCollector struct {
	sagaStartedTotal  *prometheus.CounterVec
	sagaFinishedTotal *prometheus.CounterVec
	sagaDuration      *prometheus.HistogramVec

	stepExecutedTotal *prometheus.CounterVec
	stepDuration      *prometheus.HistogramVec

	compensationExecutedTotal *prometheus.CounterVec
	compensationFailedTotal   *prometheus.CounterVec

	registry *prometheus.Registry
}

// PrometheusMetricsConfig contains configuration for Prometheus metrics.
type PrometheusMetricsConfig struct {
	// Namespace is the Prometheus namespace for all metrics (default: "saga")
	Namespace string

	// Subsystem is the Prometheus subsystem for all metrics (default: "orchestrator")
	Subsystem string

	// Registry is the Prometheus registry to use. If nil, a new registry is created.
	Registry *prometheus.Registry

	// DurationBuckets defines the buckets for duration histograms.
	DurationBuckets []float64
}

// DefaultPrometheusMetricsConfig returns a default configuration for Prometheus metrics.
func DefaultPrometheusMetricsConfig() *PrometheusMetricsConfig {
	return &PrometheusMetricsConfig{
		Namespace:       "saga",
		Subsystem:       "orchestrator",
		Registry:        prometheus.NewRegistry(),
		DurationBuckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 10.0, 30.0},
	}
}

// NewPrometheusMetricsCollector creates the collector and registers its metrics.
//
// Example:
//
//	collector, err := NewPrometheusMetricsCollector(nil)
//	if err != nil {
//	    return err
//	}
//	http.Handle("/metrics", promhttp.HandlerFor(collector.GetRegistry(), promhttp.HandlerOpts{}))
func NewPrometheusMetricsCollector(config *PrometheusMetricsConfig) (*PrometheusMetricsCollector, error) {
	defaults := DefaultPrometheusMetricsConfig()
	if config == nil {
		config = defaults
	}
	if config.Registry == nil {
		config.Registry = prometheus.NewRegistry()
	}
	if config.Namespace == "" {
		config.Namespace = defaults.Namespace
	}
	if config.Subsystem == "" {
		config.Subsystem = defaults.Subsystem
	}
	if config.DurationBuckets == nil {
		config.DurationBuckets = defaults.DurationBuckets
	}

	c := &PrometheusMetricsCollector{registry: config.Registry}

	c.sagaStartedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: config.Namespace,
		Subsystem: config.Subsystem,
		Name:      "saga_started_total",
		Help:      "Total number of sagas started",
	}, []string{"saga_type"})

	c.sagaFinishedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: config.Namespace,
		Subsystem: config.Subsystem,
		Name:      "saga_finished_total",
		Help:      "Total number of sagas that stopped, by final status",
	}, []string{"saga_type", "status"})

	c.sagaDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: config.Namespace,
		Subsystem: config.Subsystem,
		Name:      "saga_duration_seconds",
		Help:      "Duration of saga execution in seconds",
		Buckets:   config.DurationBuckets,
	}, []string{"saga_type", "status"})

	c.stepExecutedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: config.Namespace,
		Subsystem: config.Subsystem,
		Name:      "step_executed_total",
		Help:      "Total number of forward actions executed, by result",
	}, []string{"saga_type", "step", "result"})

	c.stepDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: config.Namespace,
		Subsystem: config.Subsystem,
		Name:      "step_duration_seconds",
		Help:      "Duration of forward actions in seconds",
		Buckets:   config.DurationBuckets,
	}, []string{"saga_type", "step", "result"})

	c.compensationExecutedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: config.Namespace,
		Subsystem: config.Subsystem,
		Name:      "compensation_executed_total",
		Help:      "Total number of compensating actions executed",
	}, []string{"saga_type", "step", "success"})

	c.compensationFailedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: config.Namespace,
		Subsystem: config.Subsystem,
		Name:      "compensation_failed_total",
		Help:      "Total number of compensating actions that failed and need reconciliation",
	}, []string{"saga_type", "step"})

	for _, collector := range []prometheus.Collector{
		c.sagaStartedTotal,
		c.sagaFinishedTotal,
		c.sagaDuration,
		c.stepExecutedTotal,
		c.stepDuration,
		c.compensationExecutedTotal,
		c.compensationFailedTotal,
	} {
		if err := config.Registry.Register(collector); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// RecordSagaStarted increments the count of started sagas.
func (c *PrometheusMetricsCollector) RecordSagaStarted(sagaType string) {
	c.sagaStartedTotal.WithLabelValues(sagaType).Inc()
}

// RecordSagaFinished counts a saga that stopped and records its duration.
func (c *PrometheusMetricsCollector) RecordSagaFinished(sagaType string, status saga.Status, duration time.Duration) {
	c.sagaFinishedTotal.WithLabelValues(sagaType, string(status)).Inc()
	c.sagaDuration.WithLabelValues(sagaType, string(status)).Observe(duration.Seconds())
}

// RecordStepExecuted counts a forward action and records its duration.
func (c *PrometheusMetricsCollector) RecordStepExecuted(sagaType, stepName, result string, duration time.Duration) {
	c.stepExecutedTotal.WithLabelValues(sagaType, stepName, result).Inc()
	c.stepDuration.WithLabelValues(sagaType, stepName, result).Observe(duration.Seconds())
}

// RecordCompensationExecuted counts a compensating action.
func (c *PrometheusMetricsCollector) RecordCompensationExecuted(sagaType, stepName string, success bool, _ time.Duration) {
	successLabel := "false"
	if success {
		successLabel = "true"
	}
	c.compensationExecutedTotal.WithLabelValues(sagaType, stepName, successLabel).Inc()
	if !success {
		c.compensationFailedTotal.WithLabelValues(sagaType, stepName).Inc()
	}
}

// GetRegistry returns the Prometheus registry used by this collector.
func (c *PrometheusMetricsCollector) GetRegistry() *prometheus.Registry {
	return c.registry
}
