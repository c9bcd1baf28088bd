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
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusMetricsRecordLedgerActivity(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics, err := NewPrometheusMetrics(registry)
	require.NoError(t, err)

	l, _ := newTestLedger(t, 3, WithMetrics(metrics))
	ctx := context.Background()

	r, err := l.Reserve(ctx, "tt-1", "u", 2)
	require.NoError(t, err)
	_, err = l.Reserve(ctx, "tt-1", "u", 2)
	require.Error(t, err)
	_, err = l.Reserve(ctx, "tt-1", "u", 0)
	require.Error(t, err)
	_, err = l.Commit(ctx, r.ID)
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.reservationsTotal.WithLabelValues(OutcomeReserved)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.reservationsTotal.WithLabelValues(OutcomeSoldOut)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.reservationsTotal.WithLabelValues(OutcomeRejected)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.transitionsTotal.WithLabelValues(string(StatusCompleted))))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.ticketsTotal.WithLabelValues(string(StatusCompleted))))
}

func TestNewPrometheusMetricsDuplicateRegistration(t *testing.T) {
	registry := prometheus.NewRegistry()
	_, err := NewPrometheusMetrics(registry)
	require.NoError(t, err)

	_, err = NewPrometheusMetrics(registry)
	assert.Error(t, err)
}
