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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/innovationmech/ticketing/internal/ledger"
	"github.com/innovationmech/ticketing/internal/purchase"
	"github.com/innovationmech/ticketing/pkg/saga"
	"github.com/innovationmech/ticketing/pkg/saga/storage"
)

func newEnvironment(t *testing.T, declineRate, requiresActionRate, confirmFailureRate float64) *Environment {
	t.Helper()
	env := &Environment{
		Ledger:   ledger.New(),
		Orders:   NewOrderBook(confirmFailureRate, 0, 7),
		Payments: NewPaymentGateway(declineRate, requiresActionRate, 0, 7),
	}
	svc, err := purchase.NewService(purchase.Config{
		Inventory:  env.Ledger,
		Orders:     env.Orders,
		Payments:   env.Payments,
		EventStore: storage.NewMemoryEventStore(),
	})
	require.NoError(t, err)
	env.Service = svc
	return env
}

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{"valid", Options{Tickets: 10, Buyers: 100, Quantity: 1}, false},
		{"no tickets", Options{Tickets: 0, Buyers: 1, Quantity: 1}, false},
		{"negative tickets", Options{Tickets: -1, Buyers: 1, Quantity: 1}, true},
		{"no buyers", Options{Tickets: 1, Quantity: 1}, true},
		{"no quantity", Options{Tickets: 1, Buyers: 1}, true},
		{"negative price", Options{Tickets: 1, Buyers: 1, Quantity: 1, UnitPrice: -5}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.opts.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRunSellsExactlyTheInventory(t *testing.T) {
	env := newEnvironment(t, 0, 0, 0)

	report, err := Run(context.Background(), env, Options{Tickets: 10, Buyers: 100, Quantity: 1, UnitPrice: 2500})
	require.NoError(t, err)

	assert.Equal(t, 10, report.Outcomes[purchase.ResultSuccess])
	assert.Equal(t, 90, report.Outcomes[purchase.ResultFailed])
	assert.Equal(t, 10, report.SagaStatuses[saga.StatusCompleted])
	assert.Equal(t, 90, report.Failures["ValidateInventory"])
	assert.Equal(t, 10, report.Availability.QuantitySold)
	assert.Zero(t, report.Availability.QuantityReserved)
	assert.False(t, report.Oversold())
	assert.Equal(t, int64(25000), report.Captured)
	assert.Equal(t, 10, report.Orders[purchase.OrderConfirmed])
}

func TestRunWithDeclinesReturnsInventory(t *testing.T) {
	env := newEnvironment(t, 1.0, 0, 0)

	report, err := Run(context.Background(), env, Options{Tickets: 5, Buyers: 20, Quantity: 1, UnitPrice: 100})
	require.NoError(t, err)

	assert.Zero(t, report.Outcomes[purchase.ResultSuccess])
	assert.Equal(t, 20, report.Outcomes[purchase.ResultFailed])
	assert.Zero(t, report.Availability.QuantitySold)
	assert.Zero(t, report.Availability.QuantityReserved)
	assert.Equal(t, 5, report.Availability.AvailableNow)
	assert.Zero(t, report.Orders[purchase.OrderPending])
	assert.Zero(t, report.Captured)
}

func TestRunWithConfirmFailuresRefunds(t *testing.T) {
	env := newEnvironment(t, 0, 0, 1.0)

	report, err := Run(context.Background(), env, Options{Tickets: 4, Buyers: 4, Quantity: 1, UnitPrice: 100})
	require.NoError(t, err)

	assert.Equal(t, 4, report.Outcomes[purchase.ResultFailed])
	assert.Equal(t, 4, report.Refunds)
	assert.Equal(t, 4, report.Orders[purchase.OrderCancelled])
	assert.Equal(t, 4, report.Failures["ConfirmOrder"])
	assert.Zero(t, report.Availability.QuantitySold)
}

func TestRunRequiresAction(t *testing.T) {
	env := newEnvironment(t, 0, 1.0, 0)

	report, err := Run(context.Background(), env, Options{Tickets: 3, Buyers: 3, Quantity: 1})
	require.NoError(t, err)

	assert.Equal(t, 3, report.Outcomes[purchase.ResultRequiresAction])
	assert.Equal(t, 3, report.SagaStatuses[saga.StatusStarted])
	assert.Equal(t, 3, report.Availability.QuantityReserved)
	assert.Zero(t, report.Availability.AvailableNow)
	assert.False(t, report.Oversold())
}

func TestRunRejectsIncompleteEnvironment(t *testing.T) {
	_, err := Run(context.Background(), &Environment{}, Options{Tickets: 1, Buyers: 1, Quantity: 1})
	assert.Error(t, err)

	_, err = Run(context.Background(), nil, Options{Tickets: 1, Buyers: 1, Quantity: 1})
	assert.Error(t, err)
}

func TestOrderBookOwnership(t *testing.T) {
	book := NewOrderBook(0, 0, 1)
	ctx := context.Background()

	order, err := book.CreateOrder(ctx, "alice", purchase.CreateOrderRequest{Quantity: 2, UnitPrice: 150})
	require.NoError(t, err)
	assert.Equal(t, int64(300), order.TotalAmount)
	assert.Equal(t, purchase.OrderPending, order.Status)

	assert.ErrorIs(t, book.CancelOrder(ctx, order.ID, "mallory"), ErrOrderNotOwned)
	assert.ErrorIs(t, book.CancelOrder(ctx, "missing", "alice"), ErrOrderNotFound)

	first, err := book.CancelOrderWithRefund(ctx, order.ID, "alice", "test")
	require.NoError(t, err)
	second, err := book.CancelOrderWithRefund(ctx, order.ID, "alice", "test")
	require.NoError(t, err)
	assert.Equal(t, first.RefundID, second.RefundID)
	assert.Equal(t, int64(300), first.Amount)

	_, err = book.ConfirmOrder(ctx, order.ID, "alice", "pi")
	assert.ErrorIs(t, err, ErrInvalidOrder)
}

func TestLatencyHonoursContext(t *testing.T) {
	gateway := NewPaymentGateway(0, 0, time.Second, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := gateway.ProcessPayment(ctx, purchase.PaymentRequest{OrderID: "o", Amount: 1})
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}
