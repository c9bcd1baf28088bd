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
)

// EventStore is the append-only per-saga event log.
// Implementations must accept concurrent appends and keep each saga's stream
// in append order.
type EventStore interface {
	// Append adds event to the stream of event.SagaID.
	Append(ctx context.Context, event SagaEvent) error

	// Events returns the stream of sagaID in append order, or a SAGA_NOT_FOUND error.
	Events(ctx context.Context, sagaID string) ([]SagaEvent, error)

	// Summary derives the execution summary of sagaID, or a SAGA_NOT_FOUND error.
	Summary(ctx context.Context, sagaID string) (*ExecutionSummary, error)

	// Close releases the resources held by the store.
	Close() error
}
