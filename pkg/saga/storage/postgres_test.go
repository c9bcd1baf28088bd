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
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/innovationmech/ticketing/pkg/saga"
)

// newMockStore creates a PostgresEventStore backed by sqlmock.
func newMockStore(t *testing.T) (*PostgresEventStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)

	store, err := NewPostgresEventStoreWithDB(db, "saga_events")
	require.NoError(t, err)

	t.Cleanup(func() {
		mock.ExpectClose()
		assert.NoError(t, store.Close())
		assert.NoError(t, mock.ExpectationsWereMet())
	})
	return store, mock
}

func TestPostgresEventStore_Append(t *testing.T) {
	store, mock := newMockStore(t)
	at := time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO saga_events (saga_id, step_name, kind, detail, error, occurred_at)`)).
		WithArgs("s1", "ProcessPayment", "FAILED", "", "declined", at).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := store.Append(context.Background(), saga.SagaEvent{
		SagaID:    "s1",
		StepName:  "ProcessPayment",
		Kind:      saga.EventFailed,
		Error:     "declined",
		Timestamp: at,
	})
	require.NoError(t, err)
}

func TestPostgresEventStore_AppendError(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO saga_events`).WillReturnError(errors.New("connection reset"))

	err := store.Append(context.Background(), saga.SagaEvent{SagaID: "s1", StepName: "A", Kind: saga.EventStarted, Timestamp: time.Now()})
	assert.True(t, saga.HasCode(err, saga.ErrCodeStorageError))
}

func TestPostgresEventStore_Events(t *testing.T) {
	store, mock := newMockStore(t)
	start := time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"saga_id", "step_name", "kind", "detail", "error", "occurred_at"}).
		AddRow("s1", saga.SagaStepName, "STARTED", "TICKET_PURCHASE", "", start).
		AddRow("s1", "ValidateInventory", "STARTED", "", "", start.Add(time.Second)).
		AddRow("s1", "ValidateInventory", "COMPLETED", "", "", start.Add(2*time.Second)).
		AddRow("s1", saga.SagaStepName, "COMPLETED", "", "", start.Add(3*time.Second))

	mock.ExpectQuery(regexp.QuoteMeta(`FROM saga_events WHERE saga_id = $1 ORDER BY id ASC`)).
		WithArgs("s1").
		WillReturnRows(rows)

	events, err := store.Events(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, events, 4)
	assert.Equal(t, saga.EventCompleted, events[2].Kind)
	assert.Equal(t, "TICKET_PURCHASE", events[0].Detail)
}

func TestPostgresEventStore_SummaryNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`FROM saga_events WHERE saga_id`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"saga_id", "step_name", "kind", "detail", "error", "occurred_at"}))

	_, err := store.Summary(context.Background(), "missing")
	assert.True(t, saga.IsSagaNotFound(err))
}

func TestPostgresEventStore_Summary(t *testing.T) {
	store, mock := newMockStore(t)
	start := time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"saga_id", "step_name", "kind", "detail", "error", "occurred_at"}).
		AddRow("s1", "ValidateInventory", "COMPLETED", "", "", start).
		AddRow("s1", "CreateOrder", "FAILED", "", "order service down", start.Add(time.Second)).
		AddRow("s1", "ValidateInventory", "COMPENSATED", "", "", start.Add(2*time.Second))
	mock.ExpectQuery(`FROM saga_events`).WithArgs("s1").WillReturnRows(rows)

	summary, err := store.Summary(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, saga.StatusCompensated, summary.Status)
	assert.Equal(t, "CreateOrder", summary.FailedStep)
	assert.True(t, summary.Compensated)
	assert.Equal(t, []string{"ValidateInventory"}, summary.CompletedSteps)
}

func TestPostgresEventStore_EnsureSchema(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS saga_events`)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`CREATE INDEX IF NOT EXISTS saga_events_saga_id_idx ON saga_events`)).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.EnsureSchema(context.Background()))
}

func TestNewPostgresEventStoreWithDB_RejectsBadTableName(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	_, err = NewPostgresEventStoreWithDB(db, "events; DROP TABLE users")
	assert.ErrorIs(t, err, ErrInvalidTableName)

	store, err := NewPostgresEventStoreWithDB(db, "ticketing.saga_events")
	require.NoError(t, err)
	assert.Equal(t, "ticketing.saga_events", store.table)
	assert.Equal(t, "ticketing_saga_events", indexPrefix(store.table))
}

func TestNewPostgresEventStore_RequiresDSN(t *testing.T) {
	_, err := NewPostgresEventStore(context.Background(), DefaultPostgresConfig())
	assert.Error(t, err)
}

func TestPostgresEventStore_Ping(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	store, err := NewPostgresEventStoreWithDB(db, "saga_events")
	require.NoError(t, err)

	mock.ExpectPing()
	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	mock.ExpectClose()

	assert.NoError(t, store.Ping(context.Background()))
	assert.Error(t, store.Ping(context.Background()))
	require.NoError(t, store.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}
