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

package saga

import (
	"context"
	"time"
)

// ResultKind tells the orchestrator how a forward action ended.
type ResultKind int

const (
	// ResultSucceeded continues with the next step.
	ResultSucceeded ResultKind = iota
	// ResultFailed triggers reverse compensation of the completed steps.
	ResultFailed
	// ResultSuspended stops the saga without compensating; the client has to act first.
	ResultSuspended
)

func (k ResultKind) String() string {
	switch k {
	case ResultSucceeded:
		return "succeeded"
	case ResultFailed:
		return "failed"
	case ResultSuspended:
		return "suspended"
	default:
		return "unknown"
	}
}

// StepResult is the explicit outcome of a forward action.
type StepResult struct {
	Kind   ResultKind
	Err    error
	Detail string
}

// Succeeded returns a successful result.
func Succeeded() StepResult {
	return StepResult{Kind: ResultSucceeded}
}

// Failed returns a failed result carrying err.
func Failed(err error) StepResult {
	return StepResult{Kind: ResultFailed, Err: err}
}

// Suspended returns a result that parks the saga until the client acts.
func Suspended(detail string) StepResult {
	return StepResult{Kind: ResultSuspended, Detail: detail}
}

// ForwardFunc is the forward action of a step.
type ForwardFunc func(ctx context.Context, sc *SagaContext) StepResult

// CompensateFunc semantically undoes a completed forward action.
type CompensateFunc func(ctx context.Context, sc *SagaContext) error

// Step pairs a forward action with its compensation. A nil Compensate means
// there is nothing to undo.
type Step struct {
	Name       string
	Forward    ForwardFunc
	Compensate CompensateFunc
	// Timeout overrides the orchestrator's step timeout when positive.
	Timeout time.Duration
}
