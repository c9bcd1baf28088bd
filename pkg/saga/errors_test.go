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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var errSoldOut = errors.New("sold out")

func TestWrapErrorKeepsCauseReachable(t *testing.T) {
	err := WrapError(errSoldOut, ErrCodeInsufficientInventory, "cannot reserve", ErrorTypeBusiness, false)

	assert.ErrorIs(t, err, errSoldOut)
	assert.Equal(t, ErrCodeInsufficientInventory, ErrorCode(err))
	assert.Contains(t, err.Error(), "caused by: sold out")
	assert.Nil(t, WrapError(nil, ErrCodeStorageError, "x", ErrorTypeSystem, false))
}

func TestHasCodeWalksChain(t *testing.T) {
	inner := NewStepTimeoutError("ProcessPayment", time.Second)
	outer := NewCompensationFailedError("CreateOrder", fmt.Errorf("cancel: %w", inner))

	assert.True(t, HasCode(outer, ErrCodeCompensationFailed))
	assert.True(t, HasCode(outer, ErrCodeStepTimeout))
	assert.True(t, IsStepTimeout(outer))
	assert.False(t, HasCode(outer, ErrCodeSagaNotFound))
	assert.False(t, HasCode(errSoldOut, ErrCodeStorageError))
	assert.Equal(t, "", ErrorCode(errSoldOut))
}

func TestErrorConstructors(t *testing.T) {
	notFound := NewSagaNotFoundError("saga-9")
	assert.True(t, IsSagaNotFound(notFound))
	assert.Equal(t, "saga-9", notFound.Details["saga_id"])

	declined := NewPaymentDeclinedError("")
	assert.Equal(t, ErrCodePaymentDeclined, declined.Code)
	assert.Equal(t, "payment declined", declined.Message)
	assert.False(t, IsRetryable(declined))

	ext := NewExternalServiceError("order", errSoldOut)
	assert.True(t, IsRetryable(ext))
	assert.Equal(t, "order", ext.Details["service"])

	assert.True(t, IsValidationError(NewValidationError("bad")))
	assert.True(t, HasCode(NewStorageError("append", errSoldOut), ErrCodeStorageError))
}
