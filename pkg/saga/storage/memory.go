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

package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/innovationmech/ticketing/pkg/saga"
)

// MemoryEventStore is a process-wide in-memory saga.EventStore.
type MemoryEventStore struct {
	mu      sync.RWMutex
	streams map[string][]saga.SagaEvent
	closed  bool
}

// NewMemoryEventStore creates an empty store.
func NewMemoryEventStore() *MemoryEventStore {
	return &MemoryEventStore{streams: make(map[string][]saga.SagaEvent)}
}

// Append adds event to its saga's stream.
func (s *MemoryEventStore) Append(ctx context.Context, event saga.SagaEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if event.SagaID == "" {
		return saga.NewValidationError("event has no saga id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	s.streams[event.SagaID] = append(s.streams[event.SagaID], event)
	return nil
}

// Events returns a copy of the saga's stream in append order.
func (s *MemoryEventStore) Events(ctx context.Context, sagaID string) ([]saga.SagaEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	stream, ok := s.streams[sagaID]
	if !ok {
		return nil, saga.NewSagaNotFoundError(sagaID)
	}
	out := make([]saga.SagaEvent, len(stream))
	copy(out, stream)
	return out, nil
}

// Summary derives the saga's execution summary.
func (s *MemoryEventStore) Summary(ctx context.Context, sagaID string) (*saga.ExecutionSummary, error) {
	events, err := s.Events(ctx, sagaID)
	if err != nil {
		return nil, err
	}
	return saga.Summarize(sagaID, events), nil
}

// SagaIDs returns the ids of every saga with at least one event, sorted.
func (s *MemoryEventStore) SagaIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.streams))
	for id := range s.streams {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Reset drops every stream. Used by tests.
func (s *MemoryEventStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streams = make(map[string][]saga.SagaEvent)
}

// Close marks the store closed.
func (s *MemoryEventStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Ping reports ErrStoreClosed once the store is closed.
func (s *MemoryEventStore) Ping(context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}
