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
	"time"

	"github.com/innovationmech/ticketing/internal/ledger"
)

// OrderStatus is the lifecycle state of an order held by the order service.
type OrderStatus string

const (
	OrderPending   OrderStatus = "PENDING"
	OrderConfirmed OrderStatus = "CONFIRMED"
	OrderCancelled OrderStatus = "CANCELLED"
)

// CreateOrderRequest describes the order placed for a purchase. Amounts are in minor units.
type CreateOrderRequest struct {
	EventID       string
	TicketTypeID  string
	Quantity      int
	UnitPrice     int64
	ReservationID string
}

// Order is the order service's view of an order.
type Order struct {
	ID          string
	OrderNumber string
	UserID      string
	Status      OrderStatus
	TotalAmount int64
}

// Refund is returned when an order is cancelled after payment.
type Refund struct {
	RefundID string
	Amount   int64
	Status   string
}

// OrderClient is the order service consumed by the purchase saga.
type OrderClient interface {
	CreateOrder(ctx context.Context, userID string, req CreateOrderRequest) (Order, error)
	ConfirmOrder(ctx context.Context, orderID, userID, paymentIntentID string) (Order, error)
	// CancelOrder must be idempotent.
	CancelOrder(ctx context.Context, orderID, userID string) error
	CancelOrderWithRefund(ctx context.Context, orderID, userID, reason string) (Refund, error)
}

// PaymentStatus is the outcome reported by the payment gateway.
type PaymentStatus string

const (
	PaymentSucceeded      PaymentStatus = "succeeded"
	PaymentFailed         PaymentStatus = "failed"
	PaymentRequiresAction PaymentStatus = "requires_action"
)

// PaymentRequest charges an order.
type PaymentRequest struct {
	OrderID         string
	Amount          int64
	PaymentMethodID string
}

// PaymentResponse is the gateway's answer to a PaymentRequest.
type PaymentResponse struct {
	Status          PaymentStatus
	TransactionID   string
	PaymentIntentID string
	ClientSecret    string
	ErrorMessage    string
}

// PaymentClient is the payment service consumed by the purchase saga.
type PaymentClient interface {
	ProcessPayment(ctx context.Context, req PaymentRequest) (PaymentResponse, error)
}

// Inventory is the part of the reservation ledger the purchase saga uses.
type Inventory interface {
	Reserve(ctx context.Context, ticketTypeID, userID string, quantity int) (ledger.Reservation, error)
	Commit(ctx context.Context, reservationID string) (ledger.Reservation, error)
	Release(ctx context.Context, reservationID string) error
	Reservation(id string) (ledger.Reservation, error)
	Now() time.Time
}
