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
	"errors"
	"fmt"
	"time"
)

// predefined error codes
const (
	ErrCodeValidationError       = "VALIDATION_ERROR"
	ErrCodeInsufficientInventory = "INSUFFICIENT_INVENTORY"
	ErrCodeNotOnSale             = "NOT_ON_SALE"
	ErrCodeInvalidQuantity       = "INVALID_QUANTITY"
	ErrCodeReservationExpired    = "RESERVATION_EXPIRED"
	ErrCodeExternalService       = "EXTERNAL_SERVICE_ERROR"
	ErrCodePaymentDeclined       = "PAYMENT_DECLINED"
	ErrCodeStepTimeout           = "STEP_TIMEOUT"
	ErrCodeCompensationFailed    = "COMPENSATION_FAILED"
	ErrCodeSagaNotFound          = "SAGA_NOT_FOUND"
	ErrCodeInvalidSagaState      = "INVALID_SAGA_STATE"
	ErrCodeStorageError          = "STORAGE_ERROR"
)

// NewSagaError creates a new SagaError with the specified parameters.
func NewSagaError(code, message string, errorType ErrorType, retryable bool) *SagaError {
	return &SagaError{
		Code:      code,
		Message:   message,
		Type:      errorType,
		Retryable: retryable,
		Timestamp: time.Now(),
	}
}

// WrapError wraps an existing error into a SagaError. The wrapped error stays
// reachable through errors.Is and errors.As.
func WrapError(err error, code, message string, errorType ErrorType, retryable bool) *SagaError {
	if err == nil {
		return nil
	}
	sagaErr := NewSagaError(code, message, errorType, retryable)
	sagaErr.Cause = err
	return sagaErr
}

// Error implements the error interface for SagaError.
func (e *SagaError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %s)", e.Code, e.Message, e.Cause.Error())
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the cause of the error.
func (e *SagaError) Unwrap() error {
	return e.Cause
}

// WithDetail adds a detail to the SagaError.
func (e *SagaError) WithDetail(key string, value interface{}) *SagaError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewValidationError reports missing or malformed saga input.
func NewValidationError(message string) *SagaError {
	return NewSagaError(ErrCodeValidationError, message, ErrorTypeValidation, false)
}

// NewExternalServiceError reports a collaborator that failed or was unreachable.
func NewExternalServiceError(service string, err error) *SagaError {
	return WrapError(err, ErrCodeExternalService, fmt.Sprintf("%s call failed", service), ErrorTypeService, true).
		WithDetail("service", service)
}

// NewPaymentDeclinedError reports a payment the gateway refused.
func NewPaymentDeclinedError(reason string) *SagaError {
	if reason == "" {
		reason = "payment declined"
	}
	return NewSagaError(ErrCodePaymentDeclined, reason, ErrorTypeBusiness, false)
}

// NewStepTimeoutError reports a step that did not finish within its deadline.
func NewStepTimeoutError(stepName string, timeout time.Duration) *SagaError {
	return NewSagaError(ErrCodeStepTimeout, fmt.Sprintf("step %s timed out after %s", stepName, timeout), ErrorTypeTimeout, true).
		WithDetail("step", stepName)
}

// NewCompensationFailedError wraps the error of a compensating action.
func NewCompensationFailedError(stepName string, err error) *SagaError {
	return WrapError(err, ErrCodeCompensationFailed, fmt.Sprintf("compensation of %s failed", stepName), ErrorTypeCompensation, false).
		WithDetail("step", stepName)
}

// NewSagaNotFoundError reports that no events exist for a saga id.
func NewSagaNotFoundError(sagaID string) *SagaError {
	return NewSagaError(ErrCodeSagaNotFound, fmt.Sprintf("saga %s not found", sagaID), ErrorTypeData, false).
		WithDetail("saga_id", sagaID)
}

// NewStorageError wraps a failure of an event store backend.
func NewStorageError(op string, err error) *SagaError {
	return WrapError(err, ErrCodeStorageError, fmt.Sprintf("event store %s failed", op), ErrorTypeSystem, true)
}

// ErrorCode returns the code of the outermost SagaError in err's chain, or "".
func ErrorCode(err error) string {
	var sagaErr *SagaError
	if errors.As(err, &sagaErr) {
		return sagaErr.Code
	}
	return ""
}

// HasCode reports whether any SagaError in err's chain carries code.
func HasCode(err error, code string) bool {
	for err != nil {
		var sagaErr *SagaError
		if !errors.As(err, &sagaErr) {
			return false
		}
		if sagaErr.Code == code {
			return true
		}
		err = sagaErr.Cause
	}
	return false
}

// IsSagaNotFound checks if the error is a saga not found error.
func IsSagaNotFound(err error) bool {
	return HasCode(err, ErrCodeSagaNotFound)
}

// IsValidationError checks if the error is a validation error.
func IsValidationError(err error) bool {
	return HasCode(err, ErrCodeValidationError)
}

// IsStepTimeout checks if the error is a step timeout.
func IsStepTimeout(err error) bool {
	return HasCode(err, ErrCodeStepTimeout)
}

// IsRetryable checks if the outermost SagaError is marked retryable.
func IsRetryable(err error) bool {
	var sagaErr *SagaError
	if errors.As(err, &sagaErr) {
		return sagaErr.Retryable
	}
	return false
}
