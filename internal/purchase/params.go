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

package purchase

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/innovationmech/ticketing/pkg/saga"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// purchaseParams are the inputs ValidateInventory reads from the saga context.
type purchaseParams struct {
	UserID          string `validate:"required,max=128"`
	EventID         string `validate:"required,max=128"`
	TicketTypeID    string `validate:"required,max=128"`
	Quantity        int    `validate:"gte=1"`
	UnitPrice       int64  `validate:"gte=0"`
	PaymentMethodID string `validate:"required"`
	ReservationID   string
}

func readParams(sc *saga.SagaContext) (*purchaseParams, error) {
	p := &purchaseParams{}
	var err error
	if p.UserID, err = sc.GetString(KeyUserID); err != nil {
		return nil, err
	}
	if p.EventID, err = sc.GetString(KeyEventID); err != nil {
		return nil, err
	}
	if p.TicketTypeID, err = sc.GetString(KeyTicketTypeID); err != nil {
		return nil, err
	}
	if p.Quantity, err = sc.GetInt(KeyQuantity); err != nil {
		return nil, err
	}
	if p.UnitPrice, err = sc.GetInt64(KeyUnitPrice); err != nil {
		return nil, err
	}
	if p.PaymentMethodID, err = sc.GetString(KeyPaymentMethodID); err != nil {
		return nil, err
	}
	if sc.Has(KeyReservationID) {
		if p.ReservationID, err = sc.GetString(KeyReservationID); err != nil {
			return nil, err
		}
	}

	if err := validate.Struct(p); err != nil {
		return nil, convertValidationErrors(err)
	}
	return p, nil
}

func convertValidationErrors(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return saga.NewValidationError(err.Error())
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, formatFieldError(fe))
	}
	return saga.NewValidationError(strings.Join(msgs, "; ")).WithDetail("field", fieldErrs[0].Field())
}

func formatFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}
