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
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/innovationmech/ticketing/pkg/clock"
	"github.com/innovationmech/ticketing/pkg/logger"
)

// DefaultHoldTTL is how long a reservation holds inventory before it expires.
const DefaultHoldTTL = 15 * time.Minute

// Option configures a Ledger.
type Option func(*Ledger)

// WithHoldTTL overrides the hold window of new reservations.
func WithHoldTTL(ttl time.Duration) Option {
	return func(l *Ledger) {
		if ttl > 0 {
			l.holdTTL = ttl
		}
	}
}

// WithClock injects the time source.
func WithClock(c clock.Clock) Option {
	return func(l *Ledger) {
		if c != nil {
			l.clock = c
		}
	}
}

// WithDefaultPerPersonLimit sets the limit applied to ticket types added without one.
func WithDefaultPerPersonLimit(limit int) Option {
	return func(l *Ledger) {
		if limit > 0 {
			l.defaultLimit = limit
		}
	}
}

// WithMetrics attaches a metrics recorder.
func WithMetrics(m Metrics) Option {
	return func(l *Ledger) {
		if m != nil {
			l.metrics = m
		}
	}
}

// WithIDGenerator replaces the reservation id generator.
func WithIDGenerator(gen func() string) Option {
	return func(l *Ledger) {
		if gen != nil {
			l.newID = gen
		}
	}
}

// ticketState is a ticket type and its active holds, guarded by mu.
type ticketState struct {
	mu     sync.Mutex
	tt     TicketType
	active map[string]*Reservation
}

// Ledger tracks ticket inventory and the reservations held against it.
//
// Every mutation of a ticket type and its reservations happens under that
// type's lock, so two ticket types never contend with each other. The
// structural lock mu only guards the maps themselves.
type Ledger struct {
	mu           sync.RWMutex
	types        map[string]*ticketState
	reservations map[string]*Reservation

	clock        clock.Clock
	holdTTL      time.Duration
	defaultLimit int
	metrics      Metrics
	newID        func() string
}

// New creates an empty ledger.
func New(opts ...Option) *Ledger {
	l := &Ledger{
		types:        make(map[string]*ticketState),
		reservations: make(map[string]*Reservation),
		clock:        clock.NewSystem(),
		holdTTL:      DefaultHoldTTL,
		defaultLimit: DefaultPerPersonLimit,
		metrics:      noOpMetrics{},
		newID:        uuid.NewString,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// HoldTTL returns the configured hold window.
func (l *Ledger) HoldTTL() time.Duration {
	return l.holdTTL
}

// Now returns the ledger's current time.
func (l *Ledger) Now() time.Time {
	return l.clock.Now()
}

// AddTicketType registers a ticket type. Sold and reserved counters start at zero.
func (l *Ledger) AddTicketType(tt TicketType) error {
	if tt.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidTicketType)
	}
	if tt.QuantityAvailable < 0 {
		return fmt.Errorf("%w: negative quantity available", ErrInvalidTicketType)
	}
	if tt.Price < 0 {
		return fmt.Errorf("%w: negative price", ErrInvalidTicketType)
	}
	if tt.SaleStart != nil && tt.SaleEnd != nil && !tt.SaleEnd.After(*tt.SaleStart) {
		return fmt.Errorf("%w: sale end must be after sale start", ErrInvalidTicketType)
	}
	if tt.PerPersonLimit <= 0 {
		tt.PerPersonLimit = l.defaultLimit
	}
	tt.QuantitySold = 0
	tt.QuantityReserved = 0

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.types[tt.ID]; exists {
		return fmt.Errorf("%w: %s", ErrTicketTypeExists, tt.ID)
	}
	l.types[tt.ID] = &ticketState{tt: tt, active: make(map[string]*Reservation)}
	return nil
}

// TicketType returns a snapshot of a ticket type and its current availability.
func (l *Ledger) TicketType(id string) (Availability, error) {
	state, err := l.state(id)
	if err != nil {
		return Availability{}, err
	}
	state.mu.Lock()
	defer state.mu.Unlock()

	now := l.clock.Now()
	held := state.heldUnexpired(now)
	return Availability{
		TicketType:   state.tt,
		AvailableNow: state.tt.QuantityAvailable - state.tt.QuantitySold - held,
		ActiveHeld:   held,
		OnSale:       state.tt.IsOnSale(now),
	}, nil
}

// Reserve places a hold of quantity tickets for userID.
func (l *Ledger) Reserve(ctx context.Context, ticketTypeID, userID string, quantity int) (Reservation, error) {
	if err := ctx.Err(); err != nil {
		return Reservation{}, err
	}
	state, err := l.state(ticketTypeID)
	if err != nil {
		l.metrics.RecordReservation(OutcomeRejected)
		return Reservation{}, err
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return Reservation{}, err
	}

	now := l.clock.Now()
	if quantity < 1 || quantity > state.tt.PerPersonLimit {
		l.metrics.RecordReservation(OutcomeRejected)
		return Reservation{}, fmt.Errorf("%w: %d (limit %d)", ErrInvalidQuantity, quantity, state.tt.PerPersonLimit)
	}
	if !state.tt.IsOnSale(now) {
		l.metrics.RecordReservation(OutcomeRejected)
		return Reservation{}, ErrNotOnSale
	}
	availableNow := state.tt.QuantityAvailable - state.tt.QuantitySold - state.heldUnexpired(now)
	if quantity > availableNow {
		l.metrics.RecordReservation(OutcomeSoldOut)
		return Reservation{}, fmt.Errorf("%w: requested %d, available %d", ErrInsufficientInventory, quantity, availableNow)
	}

	r := &Reservation{
		ID:            l.newID(),
		UserID:        userID,
		TicketTypeID:  ticketTypeID,
		Quantity:      quantity,
		ReservedUntil: now.Add(l.holdTTL),
		Status:        StatusActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	state.tt.QuantityReserved += quantity
	state.active[r.ID] = r

	l.mu.Lock()
	l.reservations[r.ID] = r
	l.mu.Unlock()

	l.metrics.RecordReservation(OutcomeReserved)
	logger.GetLogger().Debug("tickets reserved",
		zap.String("reservation_id", r.ID),
		zap.String("ticket_type_id", ticketTypeID),
		zap.String("user_id", userID),
		zap.Int("quantity", quantity))
	return *r, nil
}

// Commit converts an active, unexpired hold into sold tickets.
func (l *Ledger) Commit(ctx context.Context, reservationID string) (Reservation, error) {
	if err := ctx.Err(); err != nil {
		return Reservation{}, err
	}
	var result Reservation
	err := l.withReservation(reservationID, func(state *ticketState, r *Reservation, now time.Time) error {
		switch r.Status {
		case StatusActive:
		case StatusExpired:
			return ErrReservationExpired
		default:
			return fmt.Errorf("%w: %s", ErrReservationNotActive, r.Status)
		}
		if r.IsExpired(now) {
			l.transition(state, r, StatusExpired, now)
			return ErrReservationExpired
		}
		l.transition(state, r, StatusCompleted, now)
		result = *r
		return nil
	})
	return result, err
}

// Release returns an active hold to inventory. Releasing a reservation that
// already reached a terminal state is a no-op.
func (l *Ledger) Release(ctx context.Context, reservationID string) error {
	return l.withReservation(reservationID, func(state *ticketState, r *Reservation, now time.Time) error {
		if r.Status != StatusActive {
			return nil
		}
		to := StatusCancelled
		if r.IsExpired(now) {
			to = StatusExpired
		}
		l.transition(state, r, to, now)
		return nil
	})
}

// CancelReservation releases a hold on behalf of its owner.
func (l *Ledger) CancelReservation(ctx context.Context, reservationID, userID string) error {
	return l.withReservation(reservationID, func(state *ticketState, r *Reservation, now time.Time) error {
		if r.UserID != userID {
			return ErrNotOwner
		}
		if r.Status != StatusActive {
			return fmt.Errorf("%w: %s", ErrReservationNotActive, r.Status)
		}
		to := StatusCancelled
		if r.IsExpired(now) {
			to = StatusExpired
		}
		l.transition(state, r, to, now)
		return nil
	})
}

// Expire moves an active hold past its window to EXPIRED. It reports whether
// the reservation changed state.
func (l *Ledger) Expire(ctx context.Context, reservationID string) (bool, error) {
	expired := false
	err := l.withReservation(reservationID, func(state *ticketState, r *Reservation, now time.Time) error {
		if r.Status != StatusActive || !r.IsExpired(now) {
			return nil
		}
		l.transition(state, r, StatusExpired, now)
		expired = true
		return nil
	})
	return expired, err
}

// Reservation returns a snapshot of a reservation.
func (l *Ledger) Reservation(id string) (Reservation, error) {
	r, err := l.lookup(id)
	if err != nil {
		return Reservation{}, err
	}
	state, err := l.state(r.TicketTypeID)
	if err != nil {
		return Reservation{}, err
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	return *r, nil
}

// ActiveReservations lists the user's ACTIVE reservations ordered by creation time.
func (l *Ledger) ActiveReservations(userID string) []Reservation {
	return l.collect(func(r *Reservation) bool {
		return r.UserID == userID
	})
}

// ExpiredReservations lists ACTIVE reservations whose window ended before now.
func (l *Ledger) ExpiredReservations(now time.Time) []Reservation {
	return l.collect(func(r *Reservation) bool {
		return r.IsExpired(now)
	})
}

// Stats returns counters across all ticket types.
func (l *Ledger) Stats() Stats {
	l.mu.RLock()
	states := make([]*ticketState, 0, len(l.types))
	for _, state := range l.types {
		states = append(states, state)
	}
	l.mu.RUnlock()

	stats := Stats{Reservations: make(map[ReservationStatus]int)}
	for _, state := range states {
		state.mu.Lock()
		stats.TicketTypes++
		stats.Sold += state.tt.QuantitySold
		stats.Reserved += state.tt.QuantityReserved
		state.mu.Unlock()
	}

	l.mu.RLock()
	all := make([]*Reservation, 0, len(l.reservations))
	for _, r := range l.reservations {
		all = append(all, r)
	}
	l.mu.RUnlock()
	for _, r := range all {
		state, err := l.state(r.TicketTypeID)
		if err != nil {
			continue
		}
		state.mu.Lock()
		stats.Reservations[r.Status]++
		state.mu.Unlock()
	}
	return stats
}

func (l *Ledger) state(id string) (*ticketState, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	state, ok := l.types[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTicketTypeNotFound, id)
	}
	return state, nil
}

func (l *Ledger) lookup(id string) (*Reservation, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	r, ok := l.reservations[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrReservationNotFound, id)
	}
	return r, nil
}

// withReservation runs fn under the lock of the reservation's ticket type.
func (l *Ledger) withReservation(id string, fn func(*ticketState, *Reservation, time.Time) error) error {
	r, err := l.lookup(id)
	if err != nil {
		return err
	}
	state, err := l.state(r.TicketTypeID)
	if err != nil {
		return err
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	return fn(state, r, l.clock.Now())
}

// transition moves an ACTIVE reservation into a terminal state. Callers hold
// the ticket type lock and have checked the reservation is ACTIVE.
func (l *Ledger) transition(state *ticketState, r *Reservation, to ReservationStatus, now time.Time) {
	state.tt.QuantityReserved -= r.Quantity
	if to == StatusCompleted {
		state.tt.QuantitySold += r.Quantity
	}
	delete(state.active, r.ID)
	r.Status = to
	r.UpdatedAt = now
	l.metrics.RecordTransition(to, r.Quantity)
}

func (l *Ledger) collect(match func(*Reservation) bool) []Reservation {
	l.mu.RLock()
	states := make([]*ticketState, 0, len(l.types))
	for _, state := range l.types {
		states = append(states, state)
	}
	l.mu.RUnlock()

	var out []Reservation
	for _, state := range states {
		state.mu.Lock()
		for _, r := range state.active {
			if match(r) {
				out = append(out, *r)
			}
		}
		state.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// heldUnexpired sums unexpired active holds. It is linear in the number of
// active holds and runs under s.mu on every Reserve and TicketType call.
func (s *ticketState) heldUnexpired(now time.Time) int {
	held := 0
	for _, r := range s.active {
		if !r.IsExpired(now) {
			held += r.Quantity
		}
	}
	return held
}
