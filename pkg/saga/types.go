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
	"time"
)

// Status is the lifecycle status of a saga execution.
type Status string

const (
	// StatusStarted means the saga is running, or stopped on a step that needs client action.
	StatusStarted Status = "STARTED"
	// StatusCompleted means every step applied successfully.
	StatusCompleted Status = "COMPLETED"
	// StatusCompensated means a step failed and the completed steps were undone.
	StatusCompensated Status = "COMPENSATED"
	// StatusFailed means compensation could not be safely attempted.
	StatusFailed Status = "FAILED"
)

// IsTerminal returns true if no further transition can happen.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCompensated || s == StatusFailed
}

// EventKind is the kind of a saga lifecycle event.
type EventKind string

const (
	EventStarted     EventKind = "STARTED"
	EventCompleted   EventKind = "COMPLETED"
	EventFailed      EventKind = "FAILED"
	EventCompensated EventKind = "COMPENSATED"
)

// SagaStepName is the step name carried by saga-level lifecycle events.
// Saga-level events only use the STARTED, COMPLETED and FAILED kinds.
const SagaStepName = "Saga"

// SagaEvent is one immutable entry of a saga's event log.
type SagaEvent struct {
	SagaID    string    `json:"saga_id"`
	StepName  string    `json:"step_name"`
	Kind      EventKind `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
	// Detail is a free-form note, e.g. the saga type or the step outcome.
	Detail string `json:"detail,omitempty"`
	// Error carries the failure message of a FAILED event or of a compensation that did not succeed.
	Error string `json:"error,omitempty"`
}

// IsSagaLevel reports whether the event describes the saga as a whole rather than a step.
func (e SagaEvent) IsSagaLevel() bool {
	return e.StepName == SagaStepName
}

// CompensationFailure identifies a compensating action that returned an error.
type CompensationFailure struct {
	StepName string    `json:"step_name"`
	Error    string    `json:"error"`
	At       time.Time `json:"at"`
}

// ExecutionSummary is derived from a saga's events and never stored.
type ExecutionSummary struct {
	SagaID         string        `json:"saga_id"`
	SagaType       string        `json:"saga_type,omitempty"`
	Status         Status        `json:"status"`
	CompletedSteps []string      `json:"completed_steps"`
	FailedStep     string        `json:"failed_step,omitempty"`
	Compensated    bool          `json:"compensated"`
	ErrorMessage   string        `json:"error_message,omitempty"`
	StartTime      time.Time     `json:"start_time"`
	EndTime        time.Time     `json:"end_time,omitempty"`
	Duration       time.Duration `json:"duration"`
	TotalEvents    int           `json:"total_events"`

	// FailedCompensations lists compensations that need manual reconciliation.
	FailedCompensations []CompensationFailure `json:"failed_compensations,omitempty"`
}

// ErrorType represents the category of an error.
type ErrorType string

const (
	ErrorTypeValidation   ErrorType = "validation"
	ErrorTypeTimeout      ErrorType = "timeout"
	ErrorTypeService      ErrorType = "service"
	ErrorTypeData         ErrorType = "data"
	ErrorTypeSystem       ErrorType = "system"
	ErrorTypeBusiness     ErrorType = "business"
	ErrorTypeCompensation ErrorType = "compensation"
)

// SagaError is a coded error produced by saga steps and the orchestrator.
type SagaError struct {
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Type      ErrorType              `json:"type"`
	Retryable bool                   `json:"retryable"`
	Timestamp time.Time              `json:"timestamp"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Cause     error                  `json:"-"`
}
