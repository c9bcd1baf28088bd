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
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/spf13/cobra"

	"github.com/innovationmech/ticketing/pkg/config"
	"github.com/innovationmech/ticketing/pkg/saga/storage"
)

const defaultTimeout = 30 * time.Second

// ErrNoDSN is returned when neither the flag nor the configuration names a database.
var ErrNoDSN = errors.New("postgres dsn not provided: use --dsn or postgres.dsn")

type schemaStore interface {
	EnsureSchema(ctx context.Context) error
	Close() error
}

// NewMigrateCommand creates the migrate command, which creates the PostgreSQL
// saga event table and index.
func NewMigrateCommand(options *config.Options) *cobra.Command {
	var (
		dsn     string
		table   string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the PostgreSQL saga event schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := config.Load(*options)
			if err != nil {
				return err
			}
			pg := storage.DefaultPostgresConfig()
			pg.DSN = firstNonEmpty(dsn, cfg.Postgres.DSN)
			pg.Table = firstNonEmpty(table, cfg.Postgres.Table, pg.Table)
			pg.AutoMigrate = false
			if pg.DSN == "" {
				return ErrNoDSN
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			store, err := storage.NewPostgresEventStore(ctx, pg)
			if err != nil {
				return err
			}
			return apply(ctx, cmd.OutOrStdout(), store, redact(pg.DSN), pg.Table)
		},
	}
	cmd.Flags().StringVar(&dsn, "dsn", "", "PostgreSQL connection string, overrides postgres.dsn")
	cmd.Flags().StringVar(&table, "table", "", "Event table name, overrides postgres.table")
	cmd.Flags().DurationVar(&timeout, "timeout", defaultTimeout, "Operation timeout")
	return cmd
}

func apply(ctx context.Context, out io.Writer, store schemaStore, target, table string) error {
	defer store.Close()
	fmt.Fprintf(out, "Connected to %s\n", target)
	if err := store.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	fmt.Fprintf(out, "Table %s is ready\n", table)
	return nil
}

// redact hides the password of URL style DSNs. Keyword DSNs are not echoed.
func redact(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.Scheme == "" {
		return "postgres database"
	}
	return u.Redacted()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
