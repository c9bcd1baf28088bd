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
	"database/sql"
	"fmt"
	"regexp"
	"time"

	_ "github.com/lib/pq"

	"github.com/innovationmech/ticketing/pkg/saga"
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// PostgresConfig configures PostgresEventStore.
type PostgresConfig struct {
	DSN             string
	Table           string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	// AutoMigrate creates the table and index when missing.
	AutoMigrate bool
}

// DefaultPostgresConfig returns pool settings suitable for a single service instance.
func DefaultPostgresConfig() *PostgresConfig {
	return &PostgresConfig{
		Table:           "saga_events",
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
		AutoMigrate:     true,
	}
}

// PostgresEventStore stores events as rows of a single table.
type PostgresEventStore struct {
	db    *sql.DB
	table string

	insertQuery string
	selectQuery string
}

// NewPostgresEventStore opens the database, verifies connectivity and, when
// configured, creates the schema.
func NewPostgresEventStore(ctx context.Context, config *PostgresConfig) (*PostgresEventStore, error) {
	if config == nil || config.DSN == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}
	db, err := sql.Open("postgres", config.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store, err := NewPostgresEventStoreWithDB(db, config.Table)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if config.AutoMigrate {
		if err := store.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return store, nil
}

// NewPostgresEventStoreWithDB wraps an open database handle.
func NewPostgresEventStoreWithDB(db *sql.DB, table string) (*PostgresEventStore, error) {
	if table == "" {
		table = "saga_events"
	}
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTableName, table)
	}
	return &PostgresEventStore{
		db:    db,
		table: table,
		insertQuery: fmt.Sprintf(
			`INSERT INTO %s (saga_id, step_name, kind, detail, error, occurred_at) VALUES ($1, $2, $3, $4, $5, $6)`, table),
		selectQuery: fmt.Sprintf(
			`SELECT saga_id, step_name, kind, detail, error, occurred_at FROM %s WHERE saga_id = $1 ORDER BY id ASC`, table),
	}, nil
}

// EnsureSchema creates the events table and its saga index if they do not exist.
func (s *PostgresEventStore) EnsureSchema(ctx context.Context) error {
	statements := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id BIGSERIAL PRIMARY KEY,
	saga_id TEXT NOT NULL,
	step_name TEXT NOT NULL,
	kind TEXT NOT NULL,
	detail TEXT NOT NULL DEFAULT '',
	error TEXT NOT NULL DEFAULT '',
	occurred_at TIMESTAMPTZ NOT NULL
)`, s.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_saga_id_idx ON %s (saga_id, id)`, indexPrefix(s.table), s.table),
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return saga.NewStorageError("migrate", err)
		}
	}
	return nil
}

// Append inserts event as a new row.
func (s *PostgresEventStore) Append(ctx context.Context, event saga.SagaEvent) error {
	if event.SagaID == "" {
		return saga.NewValidationError("event has no saga id")
	}
	_, err := s.db.ExecContext(ctx, s.insertQuery,
		event.SagaID, event.StepName, string(event.Kind), event.Detail, event.Error, event.Timestamp.UTC())
	if err != nil {
		return saga.NewStorageError("append", err)
	}
	return nil
}

// Events returns the saga's rows in insertion order.
func (s *PostgresEventStore) Events(ctx context.Context, sagaID string) ([]saga.SagaEvent, error) {
	rows, err := s.db.QueryContext(ctx, s.selectQuery, sagaID)
	if err != nil {
		return nil, saga.NewStorageError("read", err)
	}
	defer rows.Close()

	var events []saga.SagaEvent
	for rows.Next() {
		var (
			e    saga.SagaEvent
			kind string
		)
		if err := rows.Scan(&e.SagaID, &e.StepName, &kind, &e.Detail, &e.Error, &e.Timestamp); err != nil {
			return nil, saga.NewStorageError("scan", err)
		}
		e.Kind = saga.EventKind(kind)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, saga.NewStorageError("read", err)
	}
	if len(events) == 0 {
		return nil, saga.NewSagaNotFoundError(sagaID)
	}
	return events, nil
}

// Summary derives the saga's execution summary.
func (s *PostgresEventStore) Summary(ctx context.Context, sagaID string) (*saga.ExecutionSummary, error) {
	events, err := s.Events(ctx, sagaID)
	if err != nil {
		return nil, err
	}
	return saga.Summarize(sagaID, events), nil
}

// Ping verifies the database connection.
func (s *PostgresEventStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database handle.
func (s *PostgresEventStore) Close() error {
	return s.db.Close()
}

// indexPrefix turns a possibly schema-qualified table name into an index name prefix.
func indexPrefix(table string) string {
	out := []byte(table)
	for i, c := range out {
		if c == '.' {
			out[i] = '_'
		}
	}
	return string(out)
}
