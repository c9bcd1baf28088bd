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
	"time"

	"go.uber.org/zap"

	"github.com/innovationmech/ticketing/internal/ledger"
	"github.com/innovationmech/ticketing/pkg/logger"
	"github.com/innovationmech/ticketing/pkg/saga"
)

// StepKind enumerates the purchase saga steps in execution order.
type StepKind int

const (
	KindValidateInventory StepKind = iota
	KindCreateOrder
	KindProcessPayment
	KindConfirmOrder
)

// StepKinds lists every step kind in execution order.
var StepKinds = []StepKind{KindValidateInventory, KindCreateOrder, KindProcessPayment, KindConfirmOrder}

func (k StepKind) String() string {
	switch k {
	case KindValidateInventory:
		return "ValidateInventory"
	case KindCreateOrder:
		return "CreateOrder"
	case KindProcessPayment:
		return "ProcessPayment"
	case KindConfirmOrder:
		return "ConfirmOrder"
	default:
		return fmt.Sprintf("StepKind(%d)", int(k))
	}
}

// DefaultRefundReason is sent to the order service when a paid order is rolled back.
const DefaultRefundReason = "purchase saga compensation"

// StepBuilder assembles the purchase steps once, bound to their collaborators.
type StepBuilder struct {
	inventory    Inventory
	orders       OrderClient
	payments     PaymentClient
	refundReason string
	timeouts     map[StepKind]time.Duration
}

// NewStepBuilder creates a builder for the purchase steps.
func NewStepBuilder(inventory Inventory, orders OrderClient, payments PaymentClient) *StepBuilder {
	return &StepBuilder{
		inventory:    inventory,
		orders:       orders,
		payments:     payments,
		refundReason: DefaultRefundReason,
		timeouts:     make(map[StepKind]time.Duration),
	}
}

// WithTimeout overrides the forward timeout of one step.
func (b *StepBuilder) WithTimeout(kind StepKind, timeout time.Duration) *StepBuilder {
	b.timeouts[kind] = timeout
	return b
}

// WithRefundReason sets the reason passed to CancelOrderWithRefund.
func (b *StepBuilder) WithRefundReason(reason string) *StepBuilder {
	if reason != "" {
		b.refundReason = reason
	}
	return b
}

// Build returns the steps in execution order.
func (b *StepBuilder) Build() ([]saga.Step, error) {
	if b.inventory == nil {
		return nil, errors.New("purchase: inventory is required")
	}
	if b.orders == nil {
		return nil, errors.New("purchase: order client is required")
	}
	if b.payments == nil {
		return nil, errors.New("purchase: payment client is required")
	}

	steps := make([]saga.Step, 0, len(StepKinds))
	for _, kind := range StepKinds {
		step := saga.Step{Name: kind.String(), Timeout: b.timeouts[kind]}
		switch kind {
		case KindValidateInventory:
			step.Forward, step.Compensate = b.validateInventory, b.releaseReservation
		case KindCreateOrder:
			step.Forward, step.Compensate = b.createOrder, b.cancelOrder
		case KindProcessPayment:
			step.Forward, step.Compensate = b.processPayment, b.refundOrder
		case KindConfirmOrder:
			step.Forward, step.Compensate = b.confirmOrder, b.refundOrder
		}
		steps = append(steps, step)
	}
	return steps, nil
}

func (b *StepBuilder) validateInventory(ctx context.Context, sc *saga.SagaContext) saga.StepResult {
	params, err := readParams(sc)
	if err != nil {
		return saga.Failed(err)
	}

	if params.ReservationID != "" {
		if err := b.adoptReservation(params); err != nil {
			return saga.Failed(err)
		}
		return saga.StepResult{Kind: saga.ResultSucceeded, Detail: "adopted reservation " + params.ReservationID}
	}

	reservation, err := b.inventory.Reserve(ctx, params.TicketTypeID, params.UserID, params.Quantity)
	if err != nil {
		return saga.Failed(ledgerError(err))
	}
	sc.Set(KeyReservationID, reservation.ID)

	logger.GetLogger().Info("tickets reserved for purchase",
		zap.String("saga_id", sc.ID()),
		zap.String("reservation_id", reservation.ID),
		zap.Int("quantity", params.Quantity))
	return saga.StepResult{Kind: saga.ResultSucceeded, Detail: "reservation " + reservation.ID}
}

// adoptReservation accepts a hold made before the saga started.
func (b *StepBuilder) adoptReservation(params *purchaseParams) error {
	r, err := b.inventory.Reservation(params.ReservationID)
	if err != nil {
		return ledgerError(err)
	}
	switch {
	case r.Status == ledger.StatusExpired:
		return ledgerError(ledger.ErrReservationExpired)
	case r.Status != ledger.StatusActive:
		return saga.NewValidationError(fmt.Sprintf("reservation %s is %s", r.ID, r.Status))
	case r.UserID != params.UserID:
		return saga.NewValidationError(fmt.Sprintf("reservation %s belongs to another user", r.ID))
	case r.TicketTypeID != params.TicketTypeID:
		return saga.NewValidationError(fmt.Sprintf("reservation %s is for another ticket type", r.ID))
	case r.Quantity != params.Quantity:
		return saga.NewValidationError(fmt.Sprintf("reservation %s holds %d tickets, %d requested", r.ID, r.Quantity, params.Quantity))
	case r.IsExpired(b.inventory.Now()):
		return ledgerError(ledger.ErrReservationExpired)
	}
	return nil
}

func (b *StepBuilder) releaseReservation(ctx context.Context, sc *saga.SagaContext) error {
	reservationID, err := sc.GetString(KeyReservationID)
	if err != nil {
		return nil
	}
	if err := b.inventory.Release(ctx, reservationID); err != nil {
		return fmt.Errorf("release reservation %s: %w", reservationID, err)
	}
	return nil
}

func (b *StepBuilder) createOrder(ctx context.Context, sc *saga.SagaContext) saga.StepResult {
	params, err := readParams(sc)
	if err != nil {
		return saga.Failed(err)
	}
	reservationID, err := sc.GetString(KeyReservationID)
	if err != nil {
		return saga.Failed(err)
	}

	order, err := b.orders.CreateOrder(ctx, params.UserID, CreateOrderRequest{
		EventID:       params.EventID,
		TicketTypeID:  params.TicketTypeID,
		Quantity:      params.Quantity,
		UnitPrice:     params.UnitPrice,
		ReservationID: reservationID,
	})
	if err != nil {
		return saga.Failed(saga.NewExternalServiceError("order", err))
	}

	total := int64(params.Quantity) * params.UnitPrice
	sc.Set(KeyOrderID, order.ID)
	sc.Set(KeyOrderNumber, order.OrderNumber)
	sc.Set(KeyTotalAmount, total)
	return saga.StepResult{Kind: saga.ResultSucceeded, Detail: "order " + order.OrderNumber}
}

func (b *StepBuilder) cancelOrder(ctx context.Context, sc *saga.SagaContext) error {
	if sc.GetBool(KeyOrderCancelled) {
		return nil
	}
	orderID, err := sc.GetString(KeyOrderID)
	if err != nil {
		return nil
	}
	userID, _ := sc.GetString(KeyUserID)
	if err := b.orders.CancelOrder(ctx, orderID, userID); err != nil {
		return fmt.Errorf("cancel order %s: %w", orderID, err)
	}
	sc.Set(KeyOrderCancelled, true)
	return nil
}

func (b *StepBuilder) processPayment(ctx context.Context, sc *saga.SagaContext) saga.StepResult {
	orderID, err := sc.GetString(KeyOrderID)
	if err != nil {
		return saga.Failed(err)
	}
	amount, err := sc.GetInt64(KeyTotalAmount)
	if err != nil {
		return saga.Failed(err)
	}
	methodID, err := sc.GetString(KeyPaymentMethodID)
	if err != nil {
		return saga.Failed(err)
	}

	resp, err := b.payments.ProcessPayment(ctx, PaymentRequest{
		OrderID:         orderID,
		Amount:          amount,
		PaymentMethodID: methodID,
	})
	if err != nil {
		return saga.Failed(saga.NewExternalServiceError("payment", err))
	}

	switch resp.Status {
	case PaymentSucceeded:
		sc.Set(KeyTransactionID, resp.TransactionID)
		sc.Set(KeyPaymentIntentID, resp.PaymentIntentID)
		return saga.StepResult{Kind: saga.ResultSucceeded, Detail: "transaction " + resp.TransactionID}
	case PaymentRequiresAction:
		sc.Set(KeyPaymentIntentID, resp.PaymentIntentID)
		sc.Set(KeyClientSecret, resp.ClientSecret)
		return saga.Suspended("payment requires action")
	case PaymentFailed:
		return saga.Failed(saga.NewPaymentDeclinedError(resp.ErrorMessage))
	default:
		return saga.Failed(saga.NewExternalServiceError("payment",
			fmt.Errorf("unexpected payment status %q", resp.Status)))
	}
}

// refundOrder cancels a paid order and refunds the captured amount. Both the
// payment and the confirmation step share it, so it runs at most once.
func (b *StepBuilder) refundOrder(ctx context.Context, sc *saga.SagaContext) error {
	if sc.GetBool(KeyOrderCancelled) {
		return nil
	}
	orderID, err := sc.GetString(KeyOrderID)
	if err != nil {
		return nil
	}
	userID, _ := sc.GetString(KeyUserID)

	refund, err := b.orders.CancelOrderWithRefund(ctx, orderID, userID, b.refundReason)
	if err != nil {
		return fmt.Errorf("refund order %s: %w", orderID, err)
	}
	sc.Set(KeyRefundID, refund.RefundID)
	sc.Set(KeyOrderCancelled, true)

	logger.GetLogger().Info("order refunded",
		zap.String("saga_id", sc.ID()),
		zap.String("order_id", orderID),
		zap.String("refund_id", refund.RefundID),
		zap.Int64("amount", refund.Amount))
	return nil
}

func (b *StepBuilder) confirmOrder(ctx context.Context, sc *saga.SagaContext) saga.StepResult {
	orderID, err := sc.GetString(KeyOrderID)
	if err != nil {
		return saga.Failed(err)
	}
	userID, err := sc.GetString(KeyUserID)
	if err != nil {
		return saga.Failed(err)
	}
	intentID, _ := sc.GetString(KeyPaymentIntentID)
	reservationID, err := sc.GetString(KeyReservationID)
	if err != nil {
		return saga.Failed(err)
	}

	if _, err := b.orders.ConfirmOrder(ctx, orderID, userID, intentID); err != nil {
		return saga.Failed(saga.NewExternalServiceError("order", err))
	}
	if _, err := b.inventory.Commit(ctx, reservationID); err != nil {
		return saga.Failed(ledgerError(err))
	}
	return saga.StepResult{Kind: saga.ResultSucceeded, Detail: "order " + orderID + " confirmed"}
}

// ledgerError maps ledger sentinels onto saga error codes, keeping the
// sentinel reachable through errors.Is.
func ledgerError(err error) error {
	switch {
	case errors.Is(err, ledger.ErrInsufficientInventory):
		return saga.WrapError(err, saga.ErrCodeInsufficientInventory, "insufficient inventory", saga.ErrorTypeBusiness, false)
	case errors.Is(err, ledger.ErrNotOnSale):
		return saga.WrapError(err, saga.ErrCodeNotOnSale, "tickets are not on sale", saga.ErrorTypeBusiness, false)
	case errors.Is(err, ledger.ErrInvalidQuantity):
		return saga.WrapError(err, saga.ErrCodeInvalidQuantity, "invalid ticket quantity", saga.ErrorTypeValidation, false)
	case errors.Is(err, ledger.ErrReservationExpired):
		return saga.WrapError(err, saga.ErrCodeReservationExpired, "reservation expired", saga.ErrorTypeBusiness, false)
	case errors.Is(err, ledger.ErrTicketTypeNotFound),
		errors.Is(err, ledger.ErrReservationNotFound),
		errors.Is(err, ledger.ErrReservationNotActive):
		return saga.WrapError(err, saga.ErrCodeValidationError, "invalid reservation or ticket type", saga.ErrorTypeValidation, false)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return saga.NewExternalServiceError("inventory", err)
	default:
		return saga.WrapError(err, saga.ErrCodeInvalidSagaState, "inventory operation failed", saga.ErrorTypeSystem, false)
	}
}
