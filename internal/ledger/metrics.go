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

package ledger

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Reservation request outcomes.
const (
	OutcomeReserved = "reserved"
	OutcomeSoldOut  = "sold_out"
	OutcomeRejected = "rejected"
)

// Metrics records ledger and reclaimer activity.
type Metrics interface {
	RecordReservation(outcome string)
	RecordTransition(to ReservationStatus, quantity int)
	RecordSweep(expired, failed int, duration time.Duration)
}

type noOpMetrics struct{}

func (noOpMetrics) RecordReservation(string) {}

func (noOpMetrics) RecordTransition(ReservationStatus, int) {}

func (noOpMetrics) RecordSweep(int, int, time.Duration) {}

// PrometheusMetrics exports ledger metrics under the "ticketing_ledger" prefix.
type PrometheusMetrics struct {
	reservationsTotal *prometheus.CounterVec
	transitionsTotal  *prometheus.CounterVec
	ticketsTotal      *prometheus.CounterVec
	sweepsTotal       prometheus.Counter
	expiredTotal      prometheus.Counter
	sweepErrorsTotal  prometheus.Counter
	sweepDuration     prometheus.Histogram
}

// NewPrometheusMetrics creates the collectors and registers them with registerer.
func NewPrometheusMetrics(registerer prometheus.Registerer) (*PrometheusMetrics, error) {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	const namespace, subsystem = "ticketing", "ledger"

	m := &PrometheusMetrics{
		reservationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "reservation_requests_total",
			Help:      "Reservation requests by outcome.",
		}, []string{"outcome"}),
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "reservation_transitions_total",
			Help:      "Reservations leaving ACTIVE, by terminal status.",
		}, []string{"status"}),
		ticketsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "tickets_released_total",
			Help:      "Tickets leaving a hold, by terminal status.",
		}, []string{"status"}),
		sweepsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reclaimer",
			Name:      "sweeps_total",
			Help:      "Completed reclaimer sweeps.",
		}),
		expiredTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reclaimer",
			Name:      "expired_reservations_total",
			Help:      "Reservations expired by the reclaimer.",
		}),
		sweepErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reclaimer",
			Name:      "expire_errors_total",
			Help:      "Reservations the reclaimer failed to expire.",
		}),
		sweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "reclaimer",
			Name:      "sweep_duration_seconds",
			Help:      "Duration of reclaimer sweeps.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	collectors := []prometheus.Collector{
		m.reservationsTotal,
		m.transitionsTotal,
		m.ticketsTotal,
		m.sweepsTotal,
		m.expiredTotal,
		m.sweepErrorsTotal,
		m.sweepDuration,
	}
	for _, c := range collectors {
		if err := registerer.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *PrometheusMetrics) RecordReservation(outcome string) {
	m.reservationsTotal.WithLabelValues(outcome).Inc()
}

func (m *PrometheusMetrics) RecordTransition(to ReservationStatus, quantity int) {
	m.transitionsTotal.WithLabelValues(string(to)).Inc()
	m.ticketsTotal.WithLabelValues(string(to)).Add(float64(quantity))
}

func (m *PrometheusMetrics) RecordSweep(expired, failed int, duration time.Duration) {
	m.sweepsTotal.Inc()
	m.expiredTotal.Add(float64(expired))
	m.sweepErrorsTotal.Add(float64(failed))
	m.sweepDuration.Observe(duration.Seconds())
}
