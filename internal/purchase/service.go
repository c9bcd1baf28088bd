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
	"time"

	"go.uber.org/zap"

	"github.com/innovationmech/ticketing/pkg/logger"
	"github.com/innovationmech/ticketing/pkg/saga"
	"github.com/innovationmech/ticketing/pkg/saga/coordinator"
	"github.com/innovationmech/ticketing/pkg/tracing"
)

// ResultStatus is the caller-facing outcome of a purchase.
type ResultStatus string

const (
	ResultSuccess        ResultStatus = "SUCCESS"
	ResultFailed         ResultStatus = "FAILED"
	ResultRequiresAction ResultStatus = "REQUIRES_ACTION"
)

// PurchaseRequest is a request to buy tickets. UnitPrice is in minor units.
type PurchaseRequest struct {
	UserID          string
	EventID         string
	TicketTypeID    string
	Quantity        int
	UnitPrice       int64
	PaymentMethodID string
	// ReservationID optionally names a hold the user already placed.
	ReservationID string
}

// PurchaseResult reports the outcome of ExecutePurchase.
type PurchaseResult struct {
	SagaID        string
	Status        ResultStatus
	OrderID       string
	OrderNumber   string
	TransactionID string
	ClientSecret  string
	Message       string
}

// Config wires a Service.
type Config struct {
	Inventory  Inventory
	Orders     OrderClient
	Payments   PaymentClient
	EventStore saga.EventStore

	StepTimeout         time.Duration
	CompensationTimeout time.Duration
	RefundReason        string

	MetricsCollector coordinator.MetricsCollector
	Tracer           tracing.TracingManager
	Alerter          coordinator.CompensationAlerter
}

// Service runs ticket purchases as sagas and answers queries about them.
type Service struct {
	orchestrator *coordinator.Orchestrator
	eventStore   saga.EventStore
}

// NewService builds the purchase steps and their orchestrator.
func NewService(config Config) (*Service, error) {
	if config.EventStore == nil {
		return nil, errors.New("purchase: event store is required")
	}
	steps, err := NewStepBuilder(config.Inventory, config.Orders, config.Payments).
		WithRefundReason(config.RefundReason).
		Build()
	if err != nil {
		return nil, err
	}

	orchestrator, err := coordinator.NewOrchestrator(&coordinator.OrchestratorConfig{
		SagaType:            SagaType,
		Steps:               steps,
		EventStore:          config.EventStore,
		StepTimeout:         config.StepTimeout,
		CompensationTimeout: config.CompensationTimeout,
		MetricsCollector:    config.MetricsCollector,
		Tracer:              config.Tracer,
		Alerter:             config.Alerter,
	})
	if err != nil {
		return nil, err
	}
	return &Service{orchestrator: orchestrator, eventStore: config.EventStore}, nil
}

// ExecutePurchase runs a purchase saga to completion, compensation or suspension.
func (s *Service) ExecutePurchase(ctx context.Context, req PurchaseRequest) *PurchaseResult {
	sc := saga.NewSagaContext(SagaType)
	sc.Set(KeyUserID, req.UserID)
	sc.Set(KeyEventID, req.EventID)
	sc.Set(KeyTicketTypeID, req.TicketTypeID)
	sc.Set(KeyQuantity, req.Quantity)
	sc.Set(KeyUnitPrice, req.UnitPrice)
	sc.Set(KeyPaymentMethodID, req.PaymentMethodID)
	if req.ReservationID != "" {
		sc.Set(KeyReservationID, req.ReservationID)
	}
	return s.Execute(ctx, sc)
}

// Execute runs a saga over a caller-built context.
func (s *Service) Execute(ctx context.Context, sc *saga.SagaContext) *PurchaseResult {
	ok := s.orchestrator.Execute(ctx, sc)

	result := &PurchaseResult{SagaID: sc.ID()}
	result.OrderID, _ = sc.GetString(KeyOrderID)
	result.OrderNumber, _ = sc.GetString(KeyOrderNumber)
	result.TransactionID, _ = sc.GetString(KeyTransactionID)

	switch {
	case ok:
		result.Status = ResultSuccess
		result.Message = "purchase completed"
	case sc.Status() == saga.StatusStarted:
		result.Status = ResultRequiresAction
		result.ClientSecret, _ = sc.GetString(KeyClientSecret)
		result.Message = "payment requires additional action"
	default:
		result.Status = ResultFailed
		result.Message = sc.ErrorMessage()
	}

	logger.GetLogger().Info("purchase finished",
		zap.String("saga_id", result.SagaID),
		zap.String("status", string(result.Status)),
		zap.String("saga_status", string(sc.Status())),
		zap.String("order_id", result.OrderID))
	return result
}

// SagaSummary returns the execution summary of a saga.
func (s *Service) SagaSummary(ctx context.Context, sagaID string) (*saga.ExecutionSummary, error) {
	return s.eventStore.Summary(ctx, sagaID)
}

// SagaEvents returns the recorded events of a saga in order.
func (s *Service) SagaEvents(ctx context.Context, sagaID string) ([]saga.SagaEvent, error) {
	return s.eventStore.Events(ctx, sagaID)
}

// StepNames returns the purchase steps in execution order.
func (s *Service) StepNames() []string {
	return s.orchestrator.StepNames()
}
