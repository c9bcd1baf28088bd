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

package purchase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/innovationmech/ticketing/internal/ledger"
	"github.com/innovationmech/ticketing/pkg/clock"
	"github.com/innovationmech/ticketing/pkg/saga"
	"github.com/innovationmech/ticketing/pkg/saga/storage"
)

var epoch = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type harness struct {
	ledger   *ledger.Ledger
	clock    *clock.Manual
	orders   *fakeOrders
	payments *fakePayments
	store    *storage.MemoryEventStore
	service  *Service
}

func newHarness(t *testing.T, available int) *harness {
	t.Helper()
	h := &harness{
		clock:    clock.NewManual(epoch),
		orders:   newFakeOrders(),
		payments: newFakePayments(),
		store:    storage.NewMemoryEventStore(),
	}
	h.ledger = ledger.New(ledger.WithClock(h.clock))
	require.NoError(t, h.ledger.AddTicketType(ledger.TicketType{
		ID:                "tt-1",
		EventID:           "ev-1",
		Name:              "General Admission",
		Price:             5000,
		QuantityAvailable: available,
	}))

	svc, err := NewService(Config{
		Inventory:   h.ledger,
		Orders:      h.orders,
		Payments:    h.payments,
		EventStore:  h.store,
		StepTimeout: time.Second,
	})
	require.NoError(t, err)
	h.service = svc
	return h
}

func (h *harness) counters(t *testing.T) (sold, reserved int) {
	t.Helper()
	snap, err := h.ledger.TicketType("tt-1")
	require.NoError(t, err)
	return snap.QuantitySold, snap.QuantityReserved
}

func request(user string, quantity int) PurchaseRequest {
	return PurchaseRequest{
		UserID:          user,
		EventID:         "ev-1",
		TicketTypeID:    "tt-1",
		Quantity:        quantity,
		UnitPrice:       5000,
		PaymentMethodID: "pm-card",
	}
}

func stepEvents(events []saga.SagaEvent, kind saga.EventKind) []string {
	var names []string
	for _, e := range events {
		if e.Kind == kind && !e.IsSagaLevel() {
			names = append(names, e.StepName)
		}
	}
	return names
}

func TestNewServiceRequiresCollaborators(t *testing.T) {
	store := storage.NewMemoryEventStore()
	l := ledger.New()

	_, err := NewService(Config{Inventory: l, Orders: newFakeOrders(), Payments: newFakePayments()})
	assert.Error(t, err)
	_, err = NewService(Config{Orders: newFakeOrders(), Payments: newFakePayments(), EventStore: store})
	assert.Error(t, err)
	_, err = NewService(Config{Inventory: l, Payments: newFakePayments(), EventStore: store})
	assert.Error(t, err)
	_, err = NewService(Config{Inventory: l, Orders: newFakeOrders(), EventStore: store})
	assert.Error(t, err)

	svc, err := NewService(Config{Inventory: l, Orders: newFakeOrders(), Payments: newFakePayments(), EventStore: store})
	require.NoError(t, err)
	assert.Equal(t, []string{"ValidateInventory", "CreateOrder", "ProcessPayment", "ConfirmOrder"}, svc.StepNames())
}

func TestExecutePurchaseHappyPath(t *testing.T) {
	h := newHarness(t, 10)
	ctx := context.Background()

	result := h.service.ExecutePurchase(ctx, request("alice", 2))
	require.Equal(t, ResultSuccess, result.Status, result.Message)
	assert.Equal(t, "order-1", result.OrderID)
	assert.Equal(t, "ORD-0001", result.OrderNumber)
	assert.Equal(t, "txn-1", result.TransactionID)

	sold, reserved := h.counters(t)
	assert.Equal(t, 2, sold)
	assert.Equal(t, 0, reserved)
	assert.Equal(t, OrderConfirmed, h.orders.status("order-1"))

	require.Len(t, h.payments.requests, 1)
	assert.Equal(t, int64(10000), h.payments.requests[0].Amount)
	assert.Equal(t, "pm-card", h.payments.requests[0].PaymentMethodID)

	summary, err := h.service.SagaSummary(ctx, result.SagaID)
	require.NoError(t, err)
	assert.Equal(t, saga.StatusCompleted, summary.Status)
	assert.Equal(t, SagaType, summary.SagaType)
	assert.Equal(t, []string{"ValidateInventory", "CreateOrder", "ProcessPayment", "ConfirmOrder"}, summary.CompletedSteps)
	assert.False(t, summary.Compensated)
	assert.Empty(t, summary.FailedStep)

	events, err := h.service.SagaEvents(ctx, result.SagaID)
	require.NoError(t, err)
	assert.Equal(t, 10, len(events))
	assert.Equal(t, saga.SagaStepName, events[0].StepName)
	assert.Equal(t, saga.EventStarted, events[0].Kind)
	assert.Equal(t, saga.EventCompleted, events[len(events)-1].Kind)
}

func TestExecutePurchasePaymentDeclined(t *testing.T) {
	h := newHarness(t, 10)
	h.payments.response = PaymentResponse{Status: PaymentFailed, ErrorMessage: "card declined"}
	ctx := context.Background()

	result := h.service.ExecutePurchase(ctx, request("alice", 2))
	assert.Equal(t, ResultFailed, result.Status)
	assert.Contains(t, result.Message, "card declined")

	assert.Equal(t, 1, h.orders.count("CancelOrder"))
	assert.Zero(t, h.orders.count("CancelOrderWithRefund"))
	assert.Zero(t, h.orders.count("ConfirmOrder"))
	assert.Equal(t, OrderCancelled, h.orders.status("order-1"))

	sold, reserved := h.counters(t)
	assert.Zero(t, sold)
	assert.Zero(t, reserved)

	summary, err := h.service.SagaSummary(ctx, result.SagaID)
	require.NoError(t, err)
	assert.Equal(t, saga.StatusCompensated, summary.Status)
	assert.Equal(t, "ProcessPayment", summary.FailedStep)
	assert.True(t, summary.Compensated)
	assert.Empty(t, summary.FailedCompensations)

	events, err := h.service.SagaEvents(ctx, result.SagaID)
	require.NoError(t, err)
	assert.Equal(t, []string{"CreateOrder", "ValidateInventory"}, stepEvents(events, saga.EventCompensated))
}

func TestExecutePurchasePaymentServiceError(t *testing.T) {
	h := newHarness(t, 10)
	h.payments.err = errors.New("gateway unreachable")

	result := h.service.ExecutePurchase(context.Background(), request("alice", 1))
	assert.Equal(t, ResultFailed, result.Status)
	assert.Contains(t, result.Message, saga.ErrCodeExternalService)
	assert.Equal(t, 1, h.orders.count("CancelOrder"))
}

func TestExecutePurchaseMissingParameters(t *testing.T) {
	h := newHarness(t, 10)
	ctx := context.Background()

	sc := saga.NewSagaContext(SagaType)
	sc.Set(KeyUserID, "alice")
	sc.Set(KeyEventID, "ev-1")
	sc.Set(KeyTicketTypeID, "tt-1")
	sc.Set(KeyUnitPrice, int64(5000))
	sc.Set(KeyPaymentMethodID, "pm-card")

	result := h.service.Execute(ctx, sc)
	assert.Equal(t, ResultFailed, result.Status)
	assert.Contains(t, result.Message, "quantity")
	assert.Zero(t, h.orders.total())
	assert.Zero(t, h.payments.count())

	summary, err := h.service.SagaSummary(ctx, result.SagaID)
	require.NoError(t, err)
	assert.Equal(t, saga.StatusCompensated, summary.Status)
	assert.Equal(t, "ValidateInventory", summary.FailedStep)
	assert.False(t, summary.Compensated)

	sold, reserved := h.counters(t)
	assert.Zero(t, sold)
	assert.Zero(t, reserved)
}

func TestExecutePurchaseInvalidRequestValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*PurchaseRequest)
		want   string
	}{
		{"empty user", func(r *PurchaseRequest) { r.UserID = "" }, "userId"},
		{"zero quantity", func(r *PurchaseRequest) { r.Quantity = 0 }, "Quantity"},
		{"negative price", func(r *PurchaseRequest) { r.UnitPrice = -1 }, "UnitPrice"},
		{"empty payment method", func(r *PurchaseRequest) { r.PaymentMethodID = "" }, "paymentMethodId"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, 10)
			req := request("alice", 1)
			tc.mutate(&req)

			result := h.service.ExecutePurchase(context.Background(), req)
			assert.Equal(t, ResultFailed, result.Status)
			assert.Contains(t, result.Message, saga.ErrCodeValidationError)
			assert.Contains(t, result.Message, tc.want)
			assert.Zero(t, h.orders.total())
		})
	}
}

func TestExecutePurchaseWrongParameterType(t *testing.T) {
	h := newHarness(t, 10)
	sc := saga.NewSagaContext(SagaType)
	sc.Set(KeyUserID, "alice")
	sc.Set(KeyEventID, "ev-1")
	sc.Set(KeyTicketTypeID, "tt-1")
	sc.Set(KeyQuantity, "two")
	sc.Set(KeyUnitPrice, int64(5000))
	sc.Set(KeyPaymentMethodID, "pm-card")

	result := h.service.Execute(context.Background(), sc)
	assert.Equal(t, ResultFailed, result.Status)
	assert.Contains(t, result.Message, "quantity")
	assert.Zero(t, h.orders.total())
}

func TestExecutePurchaseSoldOut(t *testing.T) {
	h := newHarness(t, 1)
	result := h.service.ExecutePurchase(context.Background(), request("alice", 2))
	assert.Equal(t, ResultFailed, result.Status)
	assert.Contains(t, result.Message, saga.ErrCodeInsufficientInventory)
	assert.Zero(t, h.orders.total())
}

func TestExecutePurchaseCreateOrderFails(t *testing.T) {
	h := newHarness(t, 10)
	h.orders.createErr = errors.New("order service down")
	ctx := context.Background()

	result := h.service.ExecutePurchase(ctx, request("alice", 3))
	assert.Equal(t, ResultFailed, result.Status)

	sold, reserved := h.counters(t)
	assert.Zero(t, sold)
	assert.Zero(t, reserved)
	assert.Zero(t, h.payments.count())

	events, err := h.service.SagaEvents(ctx, result.SagaID)
	require.NoError(t, err)
	assert.Equal(t, []string{"ValidateInventory"}, stepEvents(events, saga.EventCompensated))
}

func TestExecutePurchaseConfirmFailsRefunds(t *testing.T) {
	h := newHarness(t, 10)
	h.orders.confirmErr = errors.New("confirm rejected")
	ctx := context.Background()

	result := h.service.ExecutePurchase(ctx, request("alice", 2))
	assert.Equal(t, ResultFailed, result.Status)

	assert.Equal(t, 1, h.orders.count("CancelOrderWithRefund"))
	assert.Zero(t, h.orders.count("CancelOrder"), "refund already cancelled the order")
	assert.Equal(t, OrderCancelled, h.orders.status("order-1"))

	sold, reserved := h.counters(t)
	assert.Zero(t, sold)
	assert.Zero(t, reserved)

	events, err := h.service.SagaEvents(ctx, result.SagaID)
	require.NoError(t, err)
	assert.Equal(t, []string{"ProcessPayment", "CreateOrder", "ValidateInventory"}, stepEvents(events, saga.EventCompensated))

	summary, err := h.service.SagaSummary(ctx, result.SagaID)
	require.NoError(t, err)
	assert.Equal(t, "ConfirmOrder", summary.FailedStep)
}

// expiringPayments advances the clock past the hold window while charging.
type expiringPayments struct {
	*fakePayments
	clock *clock.Manual
}

func (p expiringPayments) ProcessPayment(ctx context.Context, req PaymentRequest) (PaymentResponse, error) {
	p.clock.Advance(ledger.DefaultHoldTTL + time.Minute)
	return p.fakePayments.ProcessPayment(ctx, req)
}

func TestExecutePurchaseHoldExpiresBeforeConfirm(t *testing.T) {
	h := newHarness(t, 10)
	svc, err := NewService(Config{
		Inventory:  h.ledger,
		Orders:     h.orders,
		Payments:   expiringPayments{fakePayments: h.payments, clock: h.clock},
		EventStore: h.store,
	})
	require.NoError(t, err)

	result := svc.ExecutePurchase(context.Background(), request("alice", 2))
	assert.Equal(t, ResultFailed, result.Status)
	assert.Contains(t, result.Message, saga.ErrCodeReservationExpired)
	assert.Equal(t, 1, h.orders.count("CancelOrderWithRefund"))

	sold, reserved := h.counters(t)
	assert.Zero(t, sold)
	assert.Zero(t, reserved)
}

func TestExecutePurchaseRequiresAction(t *testing.T) {
	h := newHarness(t, 10)
	h.payments.response = PaymentResponse{
		Status:          PaymentRequiresAction,
		PaymentIntentID: "pi-3ds",
		ClientSecret:    "secret-3ds",
	}
	ctx := context.Background()

	result := h.service.ExecutePurchase(ctx, request("alice", 1))
	assert.Equal(t, ResultRequiresAction, result.Status)
	assert.Equal(t, "secret-3ds", result.ClientSecret)
	assert.Equal(t, "order-1", result.OrderID)

	assert.Zero(t, h.orders.count("CancelOrder"))
	assert.Zero(t, h.orders.count("ConfirmOrder"))
	_, reserved := h.counters(t)
	assert.Equal(t, 1, reserved, "hold stays until the client completes payment or it expires")

	summary, err := h.service.SagaSummary(ctx, result.SagaID)
	require.NoError(t, err)
	assert.Equal(t, saga.StatusStarted, summary.Status)
	assert.False(t, summary.Compensated)
}

func TestExecutePurchaseAdoptsReservation(t *testing.T) {
	h := newHarness(t, 10)
	ctx := context.Background()

	held, err := h.ledger.Reserve(ctx, "tt-1", "alice", 2)
	require.NoError(t, err)

	req := request("alice", 2)
	req.ReservationID = held.ID
	result := h.service.ExecutePurchase(ctx, req)
	require.Equal(t, ResultSuccess, result.Status, result.Message)

	got, err := h.ledger.Reservation(held.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusCompleted, got.Status)
	sold, reserved := h.counters(t)
	assert.Equal(t, 2, sold)
	assert.Zero(t, reserved)
}

func TestExecutePurchaseRejectsForeignReservation(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name  string
		setup func(t *testing.T, h *harness) string
		req   func(id string) PurchaseRequest
		want  string
	}{
		{
			name: "other user",
			setup: func(t *testing.T, h *harness) string {
				r, err := h.ledger.Reserve(ctx, "tt-1", "bob", 2)
				require.NoError(t, err)
				return r.ID
			},
			req:  func(id string) PurchaseRequest { r := request("alice", 2); r.ReservationID = id; return r },
			want: "another user",
		},
		{
			name: "quantity mismatch",
			setup: func(t *testing.T, h *harness) string {
				r, err := h.ledger.Reserve(ctx, "tt-1", "alice", 1)
				require.NoError(t, err)
				return r.ID
			},
			req:  func(id string) PurchaseRequest { r := request("alice", 2); r.ReservationID = id; return r },
			want: "holds 1 tickets",
		},
		{
			name: "expired",
			setup: func(t *testing.T, h *harness) string {
				r, err := h.ledger.Reserve(ctx, "tt-1", "alice", 2)
				require.NoError(t, err)
				h.clock.Advance(time.Hour)
				return r.ID
			},
			req:  func(id string) PurchaseRequest { r := request("alice", 2); r.ReservationID = id; return r },
			want: saga.ErrCodeReservationExpired,
		},
		{
			name:  "unknown",
			setup: func(t *testing.T, h *harness) string { return "missing" },
			req:   func(id string) PurchaseRequest { r := request("alice", 2); r.ReservationID = id; return r },
			want:  "invalid reservation",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, 10)
			id := tc.setup(t, h)

			result := h.service.ExecutePurchase(ctx, tc.req(id))
			assert.Equal(t, ResultFailed, result.Status)
			assert.Contains(t, result.Message, tc.want)
			assert.Zero(t, h.orders.total())
		})
	}
}

func TestExecutePurchaseCompensationFailureSurfaced(t *testing.T) {
	h := newHarness(t, 10)
	h.payments.response = PaymentResponse{Status: PaymentFailed, ErrorMessage: "insufficient funds"}
	h.orders.cancelErr = errors.New("order service unavailable")
	ctx := context.Background()

	result := h.service.ExecutePurchase(ctx, request("alice", 2))
	assert.Equal(t, ResultFailed, result.Status)

	_, reserved := h.counters(t)
	assert.Zero(t, reserved, "release still runs after a failed cancel")

	summary, err := h.service.SagaSummary(ctx, result.SagaID)
	require.NoError(t, err)
	assert.Equal(t, saga.StatusCompensated, summary.Status)
	require.Len(t, summary.FailedCompensations, 1)
	assert.Equal(t, "CreateOrder", summary.FailedCompensations[0].StepName)
	assert.Contains(t, summary.FailedCompensations[0].Error, "order service unavailable")
}

func TestExecutePurchaseStepTimeout(t *testing.T) {
	h := newHarness(t, 10)
	h.orders.delay = time.Second
	svc, err := NewService(Config{
		Inventory:   h.ledger,
		Orders:      h.orders,
		Payments:    h.payments,
		EventStore:  h.store,
		StepTimeout: 20 * time.Millisecond,
	})
	require.NoError(t, err)

	result := svc.ExecutePurchase(context.Background(), request("alice", 1))
	assert.Equal(t, ResultFailed, result.Status)
	assert.Contains(t, result.Message, saga.ErrCodeStepTimeout)

	_, reserved := h.counters(t)
	assert.Zero(t, reserved)
}

func TestSagaQueriesUnknownID(t *testing.T) {
	h := newHarness(t, 10)
	ctx := context.Background()

	_, err := h.service.SagaSummary(ctx, "nope")
	assert.True(t, saga.IsSagaNotFound(err))
	_, err = h.service.SagaEvents(ctx, "nope")
	assert.True(t, saga.IsSagaNotFound(err))
}

func TestConcurrentPurchasesNeverOversell(t *testing.T) {
	h := newHarness(t, 10)
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results = make(map[ResultStatus]int)
	)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result := h.service.ExecutePurchase(ctx, request(fmt.Sprintf("user-%d", i), 1))
			mu.Lock()
			results[result.Status]++
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 10, results[ResultSuccess])
	assert.Equal(t, 90, results[ResultFailed])
	sold, reserved := h.counters(t)
	assert.Equal(t, 10, sold)
	assert.Zero(t, reserved)
	assert.Equal(t, 10, h.orders.count("ConfirmOrder"))
	assert.Equal(t, 100, len(h.store.SagaIDs()))
}
