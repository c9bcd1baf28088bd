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

package simulate

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/innovationmech/ticketing/internal/purchase"
)

// chaos decides, with a fixed probability, whether a call misbehaves.
type chaos struct {
	mu   sync.Mutex
	rate float64
	rnd  *rand.Rand
}

func newChaos(rate float64, seed uint64) *chaos {
	return &chaos{rate: rate, rnd: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (c *chaos) hit() bool {
	if c.rate <= 0 {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rnd.Float64() < c.rate
}

// PaymentGateway is an in-memory payment service.
type PaymentGateway struct {
	declines      *chaos
	requireAction *chaos
	latency       time.Duration

	mu       sync.Mutex
	captured int64
}

// NewPaymentGateway creates a gateway declining declineRate of charges and
// asking for customer action on requiresActionRate of the rest.
func NewPaymentGateway(declineRate, requiresActionRate float64, latency time.Duration, seed uint64) *PaymentGateway {
	return &PaymentGateway{
		declines:      newChaos(declineRate, seed),
		requireAction: newChaos(requiresActionRate, seed+1),
		latency:       latency,
	}
}

func (g *PaymentGateway) ProcessPayment(ctx context.Context, req purchase.PaymentRequest) (purchase.PaymentResponse, error) {
	if err := sleep(ctx, g.latency); err != nil {
		return purchase.PaymentResponse{}, err
	}
	intentID := "pi_" + uuid.NewString()

	if g.declines.hit() {
		return purchase.PaymentResponse{
			Status:          purchase.PaymentFailed,
			PaymentIntentID: intentID,
			ErrorMessage:    "card declined",
		}, nil
	}
	if g.requireAction.hit() {
		return purchase.PaymentResponse{
			Status:          purchase.PaymentRequiresAction,
			PaymentIntentID: intentID,
			ClientSecret:    intentID + "_secret",
		}, nil
	}

	g.mu.Lock()
	g.captured += req.Amount
	g.mu.Unlock()
	return purchase.PaymentResponse{
		Status:          purchase.PaymentSucceeded,
		TransactionID:   "ch_" + uuid.NewString(),
		PaymentIntentID: intentID,
	}, nil
}

// Captured returns the total amount charged successfully.
func (g *PaymentGateway) Captured() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.captured
}
