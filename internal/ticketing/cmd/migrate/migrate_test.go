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

package migrate

import (
	"bytes"
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/innovationmech/ticketing/pkg/config"
	"github.com/innovationmech/ticketing/pkg/saga/storage"
)

func TestApplyCreatesSchema(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	store, err := storage.NewPostgresEventStoreWithDB(db, "purchase_events")
	require.NoError(t, err)

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS purchase_events")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("CREATE INDEX IF NOT EXISTS")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectClose()

	var out bytes.Buffer
	require.NoError(t, apply(context.Background(), &out, store, "postgres://db/tickets", "purchase_events"))
	assert.Contains(t, out.String(), "Connected to postgres://db/tickets")
	assert.Contains(t, out.String(), "Table purchase_events is ready")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyReportsSchemaFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	store, err := storage.NewPostgresEventStoreWithDB(db, "")
	require.NoError(t, err)

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS saga_events")).
		WillReturnError(errors.New("permission denied"))
	mock.ExpectClose()

	var out bytes.Buffer
	err = apply(context.Background(), &out, store, "postgres database", "saga_events")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create schema")
	assert.NotContains(t, out.String(), "is ready")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateRequiresDSN(t *testing.T) {
	options := config.DefaultOptions()
	options.WorkDir = t.TempDir()

	cmd := NewMigrateCommand(&options)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(nil)
	assert.ErrorIs(t, cmd.Execute(), ErrNoDSN)
}

func TestRedact(t *testing.T) {
	assert.Equal(t, "postgres://app:xxxxx@db:5432/tickets", redact("postgres://app:secret@db:5432/tickets"))
	assert.Equal(t, "postgres://db/tickets", redact("postgres://db/tickets"))
	assert.Equal(t, "postgres database", redact("host=db user=app password=secret"))
}

func TestFirstNonEmpty(t *testing.T) {
	assert.Equal(t, "b", firstNonEmpty("", "b", "c"))
	assert.Equal(t, "", firstNonEmpty("", ""))
}
