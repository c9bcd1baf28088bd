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
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/innovationmech/ticketing/pkg/clock"
	"github.com/innovationmech/ticketing/pkg/logger"
)

// DefaultReclaimInterval is the period between reclaimer sweeps.
const DefaultReclaimInterval = 5 * time.Minute

// ErrReclaimerRunning is returned by Start when the reclaimer is already running.
var ErrReclaimerRunning = errors.New("reclaimer already running")

// Expirer is the part of the ledger the reclaimer drives.
type Expirer interface {
	ExpiredReservations(now time.Time) []Reservation
	Expire(ctx context.Context, reservationID string) (bool, error)
}

// ReclaimerConfig configures a Reclaimer.
type ReclaimerConfig struct {
	Interval time.Duration
	Clock    clock.Clock
	Metrics  Metrics
}

// Reclaimer periodically expires holds whose window has passed.
type Reclaimer struct {
	ledger   Expirer
	interval time.Duration
	clock    clock.Clock
	metrics  Metrics

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// NewReclaimer creates a reclaimer for ledger.
func NewReclaimer(ledger Expirer, config ReclaimerConfig) *Reclaimer {
	r := &Reclaimer{
		ledger:   ledger,
		interval: config.Interval,
		clock:    config.Clock,
		metrics:  config.Metrics,
	}
	if r.interval <= 0 {
		r.interval = DefaultReclaimInterval
	}
	if r.clock == nil {
		r.clock = clock.NewSystem()
	}
	if r.metrics == nil {
		r.metrics = noOpMetrics{}
	}
	return r
}

// Start runs sweeps every interval until ctx is cancelled or Stop is called.
// A reclaimer whose context was cancelled can be started again.
func (r *Reclaimer) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return ErrReclaimerRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})
	r.running = true

	go r.loop(runCtx, r.done)
	logger.GetLogger().Info("reservation reclaimer started", zap.Duration("interval", r.interval))
	return nil
}

// Stop cancels the sweep loop and waits for it to exit.
func (r *Reclaimer) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	cancel, done := r.cancel, r.done
	r.running = false
	r.mu.Unlock()

	cancel()
	<-done
	logger.GetLogger().Info("reservation reclaimer stopped")
}

// IsRunning reports whether the sweep loop is active.
func (r *Reclaimer) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

func (r *Reclaimer) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.mu.Lock()
			if r.done == done {
				r.running = false
			}
			r.mu.Unlock()
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep expires every overdue hold once and returns how many changed state.
// A failure on one reservation is logged and the sweep moves on.
func (r *Reclaimer) Sweep(ctx context.Context) int {
	start := time.Now()
	now := r.clock.Now()
	candidates := r.ledger.ExpiredReservations(now)

	expired, failed := 0, 0
	for _, res := range candidates {
		if ctx.Err() != nil {
			break
		}
		changed, err := r.ledger.Expire(ctx, res.ID)
		if err != nil {
			failed++
			logger.GetLogger().Error("failed to expire reservation",
				zap.String("reservation_id", res.ID),
				zap.String("ticket_type_id", res.TicketTypeID),
				zap.Error(err))
			continue
		}
		if changed {
			expired++
		}
	}

	r.metrics.RecordSweep(expired, failed, time.Since(start))
	if expired > 0 || failed > 0 {
		logger.GetLogger().Info("expired reservations reclaimed",
			zap.Int("expired", expired),
			zap.Int("failed", failed),
			zap.Int("candidates", len(candidates)))
	}
	return expired
}
