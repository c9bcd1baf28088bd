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
	"time"
)

type orderCall struct {
	Method  string
	OrderID string
	Reason  string
}

type fakeOrders struct {
	mu         sync.Mutex
	calls      []orderCall
	orders     map[string]*Order
	next       int
	createErr  error
	confirmErr error
	cancelErr  error
	refundErr  error
	delay      time.Duration
}

func newFakeOrders() *fakeOrders {
	return &fakeOrders{orders: make(map[string]*Order)}
}

func (f *fakeOrders) record(call orderCall) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeOrders) CreateOrder(ctx context.Context, userID string, req CreateOrderRequest) (Order, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return Order{}, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, orderCall{Method: "CreateOrder"})
	if f.createErr != nil {
		return Order{}, f.createErr
	}
	f.next++
	o := &Order{
		ID:          fmt.Sprintf("order-%d", f.next),
		OrderNumber: fmt.Sprintf("ORD-%04d", f.next),
		UserID:      userID,
		Status:      OrderPending,
		TotalAmount: int64(req.Quantity) * req.UnitPrice,
	}
	f.orders[o.ID] = o
	return *o, nil
}

func (f *fakeOrders) ConfirmOrder(_ context.Context, orderID, _, _ string) (Order, error) {
	f.record(orderCall{Method: "ConfirmOrder", OrderID: orderID})
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.confirmErr != nil {
		return Order{}, f.confirmErr
	}
	o, ok := f.orders[orderID]
	if !ok {
		return Order{}, errors.New("order not found")
	}
	o.Status = OrderConfirmed
	return *o, nil
}

func (f *fakeOrders) CancelOrder(_ context.Context, orderID, _ string) error {
	f.record(orderCall{Method: "CancelOrder", OrderID: orderID})
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancelErr != nil {
		return f.cancelErr
	}
	if o, ok := f.orders[orderID]; ok {
		o.Status = OrderCancelled
	}
	return nil
}

func (f *fakeOrders) CancelOrderWithRefund(_ context.Context, orderID, _, reason string) (Refund, error) {
	f.record(orderCall{Method: "CancelOrderWithRefund", OrderID: orderID, Reason: reason})
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.refundErr != nil {
		return Refund{}, f.refundErr
	}
	o, ok := f.orders[orderID]
	if !ok {
		return Refund{}, errors.New("order not found")
	}
	o.Status = OrderCancelled
	return Refund{RefundID: "refund-" + orderID, Amount: o.TotalAmount, Status: "succeeded"}, nil
}

func (f *fakeOrders) count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

func (f *fakeOrders) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeOrders) status(orderID string) OrderStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	if o, ok := f.orders[orderID]; ok {
		return o.Status
	}
	return ""
}

type fakePayments struct {
	mu       sync.Mutex
	requests []PaymentRequest
	response PaymentResponse
	err      error
}

func newFakePayments() *fakePayments {
	return &fakePayments{response: PaymentResponse{
		Status:          PaymentSucceeded,
		TransactionID:   "txn-1",
		PaymentIntentID: "pi-1",
	}}
}

func (f *fakePayments) ProcessPayment(_ context.Context, req PaymentRequest) (PaymentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return PaymentResponse{}, f.err
	}
	return f.response, nil
}

func (f *fakePayments) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}
