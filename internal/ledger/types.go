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

package ledger

import (
	"time"
)

// DefaultPerPersonLimit applies to ticket types created without a limit.
const DefaultPerPersonLimit = 10

// ReservationStatus is the lifecycle state of a hold.
type ReservationStatus string

const (
	StatusActive    ReservationStatus = "ACTIVE"
	StatusCompleted ReservationStatus = "COMPLETED"
	StatusExpired   ReservationStatus = "EXPIRED"
	StatusCancelled ReservationStatus = "CANCELLED"
)

// IsTerminal reports whether the status can no longer change.
func (s ReservationStatus) IsTerminal() bool {
	return s != StatusActive
}

// TicketType is the inventory subject of the ledger. Prices are in minor units.
type TicketType struct {
	ID                string
	EventID           string
	Name              string
	Price             int64
	QuantityAvailable int
	QuantitySold      int
	// QuantityReserved counts every ACTIVE hold, including expired holds the reclaimer has not swept yet.
	QuantityReserved int
	SaleStart        *time.Time
	SaleEnd          *time.Time
	PerPersonLimit   int
}

// IsOnSale reports whether now lies within the sale window.
func (t TicketType) IsOnSale(now time.Time) bool {
	if t.SaleStart != nil && now.Before(*t.SaleStart) {
		return false
	}
	if t.SaleEnd != nil && !now.Before(*t.SaleEnd) {
		return false
	}
	return true
}

// Availability is a point-in-time view of a ticket type.
type Availability struct {
	TicketType
	// AvailableNow excludes sold tickets and active holds that have not expired.
	AvailableNow int
	// ActiveHeld is the quantity under active, unexpired holds.
	ActiveHeld int
	OnSale     bool
}

// Reservation is a time-boxed hold on a quantity of one ticket type.
type Reservation struct {
	ID            string
	UserID        string
	TicketTypeID  string
	Quantity      int
	ReservedUntil time.Time
	Status        ReservationStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// IsExpired reports whether the hold window has passed at now.
func (r Reservation) IsExpired(now time.Time) bool {
	return now.After(r.ReservedUntil)
}

// Stats summarizes the ledger.
type Stats struct {
	TicketTypes  int
	Reservations map[ReservationStatus]int
	Sold         int
	Reserved     int
}
