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

	"github.com/google/uuid"

	"github.com/innovationmech/ticketing/internal/purchase"
)

var (
	ErrOrderNotFound   = errors.New("order not found")
	ErrOrderNotOwned   = errors.New("order belongs to another user")
	ErrConfirmRejected = errors.New("order confirmation rejected")
	ErrInvalidOrder    = errors.New("invalid order state")
)

// OrderBook is an in-memory order service.
type OrderBook struct {
	mu      sync.Mutex
	orders  map[string]*purchase.Order
	refunds map[string]purchase.Refund
	seq     int

	chaos   *chaos
	latency time.Duration
}

// NewOrderBook creates an order book. confirmFailureRate is the share of
// confirmations rejected, latency is added to every call.
func NewOrderBook(confirmFailureRate float64, latency time.Duration, seed uint64) *OrderBook {
	return &OrderBook{
		orders:  make(map[string]*purchase.Order),
		refunds: make(map[string]purchase.Refund),
		chaos:   newChaos(confirmFailureRate, seed),
		latency: latency,
	}
}

func (b *OrderBook) CreateOrder(ctx context.Context, userID string, req purchase.CreateOrderRequest) (purchase.Order, error) {
	if err := sleep(ctx, b.latency); err != nil {
		return purchase.Order{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	b.seq++
	o := &purchase.Order{
		ID:          uuid.NewString(),
		OrderNumber: fmt.Sprintf("ORD-%06d", b.seq),
		UserID:      userID,
		Status:      purchase.OrderPending,
		TotalAmount: int64(req.Quantity) * req.UnitPrice,
	}
	b.orders[o.ID] = o
	return *o, nil
}

func (b *OrderBook) ConfirmOrder(ctx context.Context, orderID, userID, paymentIntentID string) (purchase.Order, error) {
	if err := sleep(ctx, b.latency); err != nil {
		return purchase.Order{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	o, err := b.owned(orderID, userID)
	if err != nil {
		return purchase.Order{}, err
	}
	if o.Status != purchase.OrderPending {
		return purchase.Order{}, fmt.Errorf("%w: %s", ErrInvalidOrder, o.Status)
	}
	if b.chaos.hit() {
		return purchase.Order{}, ErrConfirmRejected
	}
	o.Status = purchase.OrderConfirmed
	return *o, nil
}

func (b *OrderBook) CancelOrder(ctx context.Context, orderID, userID string) error {
	if err := sleep(ctx, b.latency); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	o, err := b.owned(orderID, userID)
	if err != nil {
		return err
	}
	o.Status = purchase.OrderCancelled
	return nil
}

func (b *OrderBook) CancelOrderWithRefund(ctx context.Context, orderID, userID, reason string) (purchase.Refund, error) {
	if err := sleep(ctx, b.latency); err != nil {
		return purchase.Refund{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	o, err := b.owned(orderID, userID)
	if err != nil {
		return purchase.Refund{}, err
	}
	if refund, ok := b.refunds[orderID]; ok {
		return refund, nil
	}
	o.Status = purchase.OrderCancelled
	refund := purchase.Refund{RefundID: "re_" + uuid.NewString(), Amount: o.TotalAmount, Status: "succeeded"}
	b.refunds[orderID] = refund
	return refund, nil
}

// Counts returns the number of orders per status and the number of refunds.
func (b *OrderBook) Counts() (map[purchase.OrderStatus]int, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	counts := make(map[purchase.OrderStatus]int)
	for _, o := range b.orders {
		counts[o.Status]++
	}
	return counts, len(b.refunds)
}

func (b *OrderBook) owned(orderID, userID string) (*purchase.Order, error) {
	o, ok := b.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	if o.UserID != userID {
		return nil, ErrOrderNotOwned
	}
	return o, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
