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
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/innovationmech/ticketing/pkg/logger"
	"github.com/innovationmech/ticketing/pkg/saga"
)

// compensate undoes the completed steps of sc in reverse order and returns the
// final status. Every completed step gets a COMPENSATED event whether or not its
// compensating action succeeds; a failure never stops the walk.
func (o *Orchestrator) compensate(ctx context.Context, sc *saga.SagaContext) saga.Status {
	ctx, span := o.tracer.StartSpan(ctx, "saga.compensate")
	defer span.End()

	completed := sc.CompletedSteps()
	span.SetAttribute("saga.id", sc.ID())
	span.SetAttribute("compensation.steps_count", len(completed))

	// Compensation must finish even when the caller has gone away.
	ctx = context.WithoutCancel(ctx)

	for _, name := range completed {
		if _, ok := o.byName[name]; !ok {
			return o.failUncompensatable(ctx, sc, fmt.Sprintf("completed step %q is not part of this saga", name))
		}
	}

	if len(completed) == 0 {
		logger.GetSugaredLogger().Infof("No completed steps to compensate for saga %s", sc.ID())
		sc.SetStatus(saga.StatusCompensated)
		return saga.StatusCompensated
	}

	failures := 0
	for i := len(completed) - 1; i >= 0; i-- {
		step := o.byName[completed[i]]
		if err := o.compensateStep(ctx, sc, step); err != nil {
			failures++
		}
	}

	if failures > 0 {
		span.SetAttribute("compensation.errors_count", failures)
		logger.GetLogger().Error("saga compensated with failures, manual reconciliation required",
			zap.String("saga_id", sc.ID()),
			zap.Int("failed_compensations", failures))
	}

	sc.SetStatus(saga.StatusCompensated)
	return saga.StatusCompensated
}

func (o *Orchestrator) compensateStep(ctx context.Context, sc *saga.SagaContext, step saga.Step) error {
	start := time.Now()
	var err error
	if step.Compensate != nil {
		err = runBounded(ctx, o.compensationTimeout, func(cctx context.Context) error {
			return step.Compensate(cctx, sc)
		}, func(e error) error {
			return e
		})
	}

	o.metrics.RecordCompensationExecuted(o.sagaType, step.Name, err == nil, time.Since(start))

	if err != nil {
		compErr := saga.NewCompensationFailedError(step.Name, err)
		o.appendEvent(ctx, sc, step.Name, saga.EventCompensated, "", compErr.Error())
		logger.GetLogger().Error("compensation failed",
			zap.String("saga_id", sc.ID()),
			zap.String("step", step.Name),
			zap.Error(err))
		o.alerter.AlertCompensationFailure(ctx, sc.ID(), step.Name, compErr)
		return compErr
	}

	o.appendEvent(ctx, sc, step.Name, saga.EventCompensated, "", "")
	logger.GetSugaredLogger().Infof("Compensated step %s of saga %s", step.Name, sc.ID())
	return nil
}

// failUncompensatable marks a saga FAILED when its completed steps cannot be trusted.
func (o *Orchestrator) failUncompensatable(ctx context.Context, sc *saga.SagaContext, reason string) saga.Status {
	err := saga.NewSagaError(saga.ErrCodeInvalidSagaState, reason, saga.ErrorTypeData, false)
	logger.GetLogger().Error("saga cannot be compensated",
		zap.String("saga_id", sc.ID()),
		zap.String("reason", reason))

	msg := err.Error()
	if prev := sc.ErrorMessage(); prev != "" {
		msg = prev + "; " + msg
	}
	sc.SetErrorMessage(msg)
	sc.SetStatus(saga.StatusFailed)
	o.appendEvent(ctx, sc, saga.SagaStepName, saga.EventFailed, "", err.Error())
	o.alerter.AlertCompensationFailure(ctx, sc.ID(), saga.SagaStepName, err)
	return saga.StatusFailed
}
