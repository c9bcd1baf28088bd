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

	"github.com/innovationmech/ticketing/pkg/saga"
)

// executeStep runs the forward action of step under its deadline.
// A deadline hit or a panic becomes a failed result.
func (o *Orchestrator) executeStep(ctx context.Context, sc *saga.SagaContext, step saga.Step) saga.StepResult {
	ctx, span := o.tracer.StartSpan(ctx, "saga.step")
	defer span.End()
	span.SetAttribute("saga.id", sc.ID())
	span.SetAttribute("step.name", step.Name)

	timeout := step.Timeout
	if timeout <= 0 {
		timeout = o.stepTimeout
	}

	start := time.Now()
	result := runBounded(ctx, timeout, func(stepCtx context.Context) saga.StepResult {
		return step.Forward(stepCtx, sc)
	}, func(err error) saga.StepResult {
		return saga.Failed(err)
	})

	if result.Kind == saga.ResultFailed && errors.Is(result.Err, context.DeadlineExceeded) && !saga.IsStepTimeout(result.Err) {
		result.Err = saga.WrapError(result.Err, saga.ErrCodeStepTimeout,
			fmt.Sprintf("step %s timed out after %s", step.Name, timeout), saga.ErrorTypeTimeout, true)
	}

	span.SetAttribute("step.result", result.Kind.String())
	if result.Err != nil {
		span.RecordError(result.Err)
	}
	o.metrics.RecordStepExecuted(o.sagaType, step.Name, result.Kind.String(), time.Since(start))
	return result
}

// runBounded calls fn with a context that expires after timeout and returns
// as soon as fn returns or the deadline passes, whichever is first. A fn that
// ignores its context keeps running in the background; its result is dropped.
func runBounded[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) T, onErr func(error) T) T {
	boundedCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan T, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- onErr(fmt.Errorf("panic: %v", r))
			}
		}()
		done <- fn(boundedCtx)
	}()

	select {
	case res := <-done:
		return res
	case <-boundedCtx.Done():
		select {
		case res := <-done:
			return res
		default:
		}
		if errors.Is(boundedCtx.Err(), context.DeadlineExceeded) {
			return onErr(saga.WrapError(boundedCtx.Err(), saga.ErrCodeStepTimeout,
				fmt.Sprintf("no result after %s", timeout), saga.ErrorTypeTimeout, true))
		}
		return onErr(boundedCtx.Err())
	}
}
