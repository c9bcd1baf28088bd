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

package simulate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/innovationmech/ticketing/internal/ledger"
	"github.com/innovationmech/ticketing/internal/purchase"
	"github.com/innovationmech/ticketing/pkg/logger"
	"github.com/innovationmech/ticketing/pkg/saga"
)

// TicketTypeID is the ticket type seeded by Run.
const TicketTypeID = "sim-general-admission"

// Options shapes a simulated on-sale.
type Options struct {
	Tickets   int
	Buyers    int
	Quantity  int
	UnitPrice int64
}

// Validate checks that the options describe a runnable simulation.
func (o Options) Validate() error {
	switch {
	case o.Tickets < 0:
		return errors.New("tickets must not be negative")
	case o.Buyers <= 0:
		return errors.New("buyers must be positive")
	case o.Quantity <= 0:
		return errors.New("quantity must be positive")
	case o.UnitPrice < 0:
		return errors.New("unit price must not be negative")
	}
	return nil
}

// Environment is what a simulation runs against.
type Environment struct {
	Ledger   *ledger.Ledger
	Service  *purchase.Service
	Orders   *OrderBook
	Payments *PaymentGateway
}

// Report summarizes a simulation.
type Report struct {
	Options      Options
	Outcomes     map[purchase.ResultStatus]int
	SagaStatuses map[saga.Status]int
	Failures     map[string]int
	Availability ledger.Availability
	Stats        ledger.Stats
	Orders       map[purchase.OrderStatus]int
	Refunds      int
	Captured     int64
	Duration     time.Duration
}

// Oversold reports whether more tickets were sold or held than exist.
func (r *Report) Oversold() bool {
	return r.Availability.QuantitySold+r.Availability.ActiveHeld > r.Availability.QuantityAvailable
}

// Run seeds a ticket type and has every buyer try to purchase concurrently.
func Run(ctx context.Context, env *Environment, opts Options) (*Report, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if env == nil || env.Ledger == nil || env.Service == nil {
		return nil, errors.New("simulation environment is incomplete")
	}

	limit := opts.Quantity
	if limit < ledger.DefaultPerPersonLimit {
		limit = ledger.DefaultPerPersonLimit
	}
	err := env.Ledger.AddTicketType(ledger.TicketType{
		ID:                TicketTypeID,
		EventID:           "sim-event",
		Name:              "General Admission",
		Price:             opts.UnitPrice,
		QuantityAvailable: opts.Tickets,
		PerPersonLimit:    limit,
	})
	if err != nil {
		return nil, fmt.Errorf("seed ticket type: %w", err)
	}

	log := logger.GetLogger()
	log.Info("simulation started",
		zap.Int("tickets", opts.Tickets),
		zap.Int("buyers", opts.Buyers),
		zap.Int("quantity", opts.Quantity))

	start := time.Now()
	results := make([]*purchase.PurchaseResult, opts.Buyers)
	var wg sync.WaitGroup
	for i := 0; i < opts.Buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = env.Service.ExecutePurchase(ctx, purchase.PurchaseRequest{
				UserID:          fmt.Sprintf("buyer-%04d", i+1),
				EventID:         "sim-event",
				TicketTypeID:    TicketTypeID,
				Quantity:        opts.Quantity,
				UnitPrice:       opts.UnitPrice,
				PaymentMethodID: "pm_card_visa",
			})
		}(i)
	}
	wg.Wait()

	report := &Report{
		Options:      opts,
		Outcomes:     make(map[purchase.ResultStatus]int),
		SagaStatuses: make(map[saga.Status]int),
		Failures:     make(map[string]int),
		Duration:     time.Since(start),
	}
	for _, r := range results {
		report.Outcomes[r.Status]++
		summary, err := env.Service.SagaSummary(ctx, r.SagaID)
		if err != nil {
			log.Warn("saga summary unavailable", zap.String("saga_id", r.SagaID), zap.Error(err))
			continue
		}
		report.SagaStatuses[summary.Status]++
		if summary.FailedStep != "" {
			report.Failures[summary.FailedStep]++
		}
	}

	report.Availability, err = env.Ledger.TicketType(TicketTypeID)
	if err != nil {
		return nil, err
	}
	report.Stats = env.Ledger.Stats()
	if env.Orders != nil {
		report.Orders, report.Refunds = env.Orders.Counts()
	}
	if env.Payments != nil {
		report.Captured = env.Payments.Captured()
	}

	log.Info("simulation finished",
		zap.Int("succeeded", report.Outcomes[purchase.ResultSuccess]),
		zap.Int("failed", report.Outcomes[purchase.ResultFailed]),
		zap.Int("requires_action", report.Outcomes[purchase.ResultRequiresAction]),
		zap.Int("sold", report.Availability.QuantitySold),
		zap.Duration("duration", report.Duration))
	return report, nil
}
