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

	"go.uber.org/zap"

	"github.com/innovationmech/ticketing/pkg/logger"
)

// CompensationAlerter is notified when a compensating action fails and money
// or inventory may be left inconsistent.
type CompensationAlerter interface {
	AlertCompensationFailure(ctx context.Context, sagaID, stepName string, err error)
}

// LogAlerter writes compensation failures to the global logger at error level.
type LogAlerter struct{}

func (LogAlerter) AlertCompensationFailure(_ context.Context, sagaID, stepName string, err error) {
	logger.GetLogger().Error("ALERT: compensation failure needs manual reconciliation",
		zap.String("saga_id", sagaID),
		zap.String("step", stepName),
		zap.Error(err))
}

// MultiAlerter fans an alert out to every alerter it holds.
type MultiAlerter []CompensationAlerter

func (m MultiAlerter) AlertCompensationFailure(ctx context.Context, sagaID, stepName string, err error) {
	for _, a := range m {
		if a != nil {
			a.AlertCompensationFailure(ctx, sagaID, stepName, err)
		}
	}
}
