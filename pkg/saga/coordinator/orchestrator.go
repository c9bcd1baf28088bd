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

package coordinator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/innovationmech/ticketing/pkg/logger"
	"github.com/innovationmech/ticketing/pkg/saga"
	"github.com/innovationmech/ticketing/pkg/tracing"
)

const (
	// DefaultStepTimeout bounds a forward action when neither the step nor the config sets one.
	DefaultStepTimeout = 10 * time.Second
	// DefaultCompensationTimeout bounds each compensating action.
	DefaultCompensationTimeout = 30 * time.Second
)

var (
	// ErrEventStoreNotConfigured indicates that the event store is not configured.
	ErrEventStoreNotConfigured = errors.New("event store not configured")
	// ErrNoSteps indicates an orchestrator without steps.
	ErrNoSteps = errors.New("at least one step is required")
	// ErrReservedStepName indicates a step that uses the saga-level event name.
	ErrReservedStepName = fmt.Errorf("step name %q is reserved", saga.SagaStepName)
)

// OrchestratorConfig holds the dependencies of an Orchestrator.
type OrchestratorConfig struct {
	// SagaType labels events, metrics and spans, e.g. TICKET_PURCHASE.
	SagaType string

	// Steps run in order. The list is fixed for the lifetime of the orchestrator.
	Steps []saga.Step

	// EventStore is required for recording lifecycle events.
	EventStore saga.EventStore

	// StepTimeout bounds every forward action that has no timeout of its own.
	StepTimeout time.Duration

	// CompensationTimeout bounds every compensating action.
	CompensationTimeout time.Duration

	// MetricsCollector collects runtime metrics. If not provided, a no-op collector is used.
	MetricsCollector MetricsCollector

	// Tracer wraps executions in spans. If not provided, spans are no-ops.
	Tracer tracing.TracingManager

	// Alerter is told about every compensation that failed. Defaults to an error log.
	Alerter CompensationAlerter
}

// Validate checks if the configuration is valid.
func (c *OrchestratorConfig) Validate() error {
	if c.EventStore == nil {
		return ErrEventStoreNotConfigured
	}
	if len(c.Steps) == 0 {
		return ErrNoSteps
	}
	seen := make(map[string]struct{}, len(c.Steps))
	for i, step := range c.Steps {
		if step.Name == "" {
			return fmt.Errorf("step %d has no name", i)
		}
		if step.Name == saga.SagaStepName {
			return ErrReservedStepName
		}
		if step.Forward == nil {
			return fmt.Errorf("step %s has no forward action", step.Name)
		}
		if _, dup := seen[step.Name]; dup {
			return fmt.Errorf("duplicate step name %s", step.Name)
		}
		seen[step.Name] = struct{}{}
	}
	return nil
}

// Orchestrator drives a fixed list of steps over a SagaContext and compensates
// the completed steps in reverse order when one fails.
type Orchestrator struct {
	sagaType            string
	steps               []saga.Step
	byName              map[string]saga.Step
	eventStore          saga.EventStore
	stepTimeout         time.Duration
	compensationTimeout time.Duration
	metrics             MetricsCollector
	tracer              tracing.TracingManager
	alerter             CompensationAlerter
}

// NewOrchestrator creates an orchestrator from config.
func NewOrchestrator(config *OrchestratorConfig) (*Orchestrator, error) {
	if config == nil {
		return nil, errors.New("orchestrator config is nil")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid orchestrator config: %w", err)
	}

	o := &Orchestrator{
		sagaType:            config.SagaType,
		steps:               append([]saga.Step(nil), config.Steps...),
		byName:              make(map[string]saga.Step, len(config.Steps)),
		eventStore:          config.EventStore,
		stepTimeout:         config.StepTimeout,
		compensationTimeout: config.CompensationTimeout,
		metrics:             config.MetricsCollector,
		tracer:              config.Tracer,
		alerter:             config.Alerter,
	}
	for _, step := range o.steps {
		o.byName[step.Name] = step
	}
	if o.stepTimeout <= 0 {
		o.stepTimeout = DefaultStepTimeout
	}
	if o.compensationTimeout <= 0 {
		o.compensationTimeout = DefaultCompensationTimeout
	}
	if o.metrics == nil {
		o.metrics = noOpMetricsCollector{}
	}
	if o.tracer == nil {
		o.tracer = tracing.NewTracingManager()
	}
	if o.alerter == nil {
		o.alerter = LogAlerter{}
	}
	return o, nil
}

// StepNames returns the names of the steps in execution order.
func (o *Orchestrator) StepNames() []string {
	names := make([]string, len(o.steps))
	for i, step := range o.steps {
		names[i] = step.Name
	}
	return names
}

// Execute runs the saga. It returns true only when every step completed.
// A false return leaves sc in COMPENSATED or FAILED, or in STARTED when a step
// suspended the saga for client action.
func (o *Orchestrator) Execute(ctx context.Context, sc *saga.SagaContext) bool {
	ctx, span := o.tracer.StartSpan(ctx, "saga.execute")
	defer span.End()
	span.SetAttribute("saga.id", sc.ID())
	span.SetAttribute("saga.type", o.sagaType)

	start := time.Now()
	log := logger.GetSugaredLogger()

	sc.SetStatus(saga.StatusStarted)
	o.metrics.RecordSagaStarted(o.sagaType)
	o.appendEvent(ctx, sc, saga.SagaStepName, saga.EventStarted, o.sagaType, "")
	log.Infof("Starting saga %s (%s) with %d steps", sc.ID(), o.sagaType, len(o.steps))

	for _, step := range o.steps {
		o.appendEvent(ctx, sc, step.Name, saga.EventStarted, "", "")

		result := o.executeStep(ctx, sc, step)
		switch result.Kind {
		case saga.ResultSucceeded:
			sc.MarkStepCompleted(step.Name)
			o.appendEvent(ctx, sc, step.Name, saga.EventCompleted, result.Detail, "")

		case saga.ResultSuspended:
			// The step stays STARTED; the event records why the saga stopped.
			o.appendEvent(ctx, sc, step.Name, saga.EventStarted, "suspended: "+result.Detail, "")
			log.Infof("Saga %s suspended at step %s: %s", sc.ID(), step.Name, result.Detail)
			span.SetAttribute("saga.suspended_step", step.Name)
			span.SetStatus(codes.Unset, "suspended")
			o.metrics.RecordSagaFinished(o.sagaType, saga.StatusStarted, time.Since(start))
			return false

		default:
			err := result.Err
			if err == nil {
				err = fmt.Errorf("step %s failed", step.Name)
			}
			log.Infof("Saga %s step %s failed: %v", sc.ID(), step.Name, err)
			o.appendEvent(ctx, sc, step.Name, saga.EventFailed, result.Detail, err.Error())
			sc.SetErrorMessage(err.Error())
			sc.SetStatus(saga.StatusCompensated)

			span.RecordError(err)
			span.SetAttribute("saga.failed_step", step.Name)

			status := o.compensate(ctx, sc)
			span.SetStatus(codes.Error, string(status))
			o.metrics.RecordSagaFinished(o.sagaType, status, time.Since(start))
			return false
		}
	}

	sc.SetStatus(saga.StatusCompleted)
	o.appendEvent(ctx, sc, saga.SagaStepName, saga.EventCompleted, "", "")
	o.metrics.RecordSagaFinished(o.sagaType, saga.StatusCompleted, time.Since(start))
	span.SetStatus(codes.Ok, "completed")
	log.Infof("Saga %s completed in %s", sc.ID(), time.Since(start))
	return true
}

// appendEvent records an event. A store failure is logged and does not change the saga outcome.
func (o *Orchestrator) appendEvent(ctx context.Context, sc *saga.SagaContext, stepName string, kind saga.EventKind, detail, errMsg string) {
	event := saga.SagaEvent{
		SagaID:    sc.ID(),
		StepName:  stepName,
		Kind:      kind,
		Timestamp: time.Now().UTC(),
		Detail:    detail,
		Error:     errMsg,
	}
	// Events are recorded even after the caller's context is cancelled.
	if err := o.eventStore.Append(context.WithoutCancel(ctx), event); err != nil {
		logger.GetLogger().Warn("failed to append saga event",
			zap.String("saga_id", event.SagaID),
			zap.String("step", stepName),
			zap.String("kind", string(kind)),
			zap.Error(err))
	}
}
