// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ncruces/go-sqlite3"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/poiesic/mediastash/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	driverName = "sqlite3"

	// MemoryPath opens a private in-memory database.
	MemoryPath = ":memory:"

	defaultConnectTimeout = 5 * time.Second
	defaultBusyTimeout    = 5 * time.Second
)

var (
	retriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediastash_storage_retries_total",
			Help: "Statements re-issued after lock contention.",
		},
		[]string{"table"},
	)

	tablesCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediastash_storage_tables_created_total",
			Help: "Tables created lazily after a missing-table error.",
		},
		[]string{"table"},
	)

	errorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediastash_storage_errors_total",
			Help: "Storage failures returned to callers, by kind.",
		},
		[]string{"table", "kind"},
	)
)

// RetryPolicy bounds how often a statement is re-issued on lock contention.
// The delay starts at BaseDelay and doubles after every retry.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
}

// DefaultRetryPolicy retries three times, waiting 0.5s, 1s and 2s.
var DefaultRetryPolicy = RetryPolicy{MaxRetries: 3, BaseDelay: 500 * time.Millisecond}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Backend owns the single database handle shared by every table.
type Backend struct {
	db             *sql.DB
	logger         *slog.Logger
	retry          RetryPolicy
	connectTimeout time.Duration
	busyTimeout    time.Duration
	closed         atomic.Bool
	// sleep waits between retries; replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// Option configures a Backend.
type Option func(*Backend) error

// WithLogger sets the logger. A nil logger selects slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(b *Backend) error {
		if logger == nil {
			logger = slog.Default()
		}
		b.logger = logger
		return nil
	}
}

// WithRetryPolicy replaces DefaultRetryPolicy.
func WithRetryPolicy(policy RetryPolicy) Option {
	return func(b *Backend) error {
		if policy.MaxRetries < 0 {
			return fmt.Errorf("max retries must be >= 0, got %d", policy.MaxRetries)
		}
		if policy.BaseDelay < 0 {
			return fmt.Errorf("base delay must be >= 0, got %s", policy.BaseDelay)
		}
		b.retry = policy
		return nil
	}
}

// WithConnectTimeout bounds how long Open waits for the database to respond.
func WithConnectTimeout(d time.Duration) Option {
	return func(b *Backend) error {
		if d <= 0 {
			return fmt.Errorf("connect timeout must be positive, got %s", d)
		}
		b.connectTimeout = d
		return nil
	}
}

// WithBusyTimeout sets how long SQLite itself waits on a lock before reporting it busy.
func WithBusyTimeout(d time.Duration) Option {
	return func(b *Backend) error {
		if d < 0 {
			return fmt.Errorf("busy timeout must be >= 0, got %s", d)
		}
		b.busyTimeout = d
		return nil
	}
}

// Open opens the SQLite database at path, or a private in-memory database for MemoryPath.
// Foreign-key enforcement is switched on for the connection before it is used.
// Failing to reach the database within the connect timeout returns storage.ErrConnection.
func Open(path string, opts ...Option) (*Backend, error) {
	b := &Backend{
		logger:         slog.Default(),
		retry:          DefaultRetryPolicy,
		connectTimeout: defaultConnectTimeout,
		busyTimeout:    defaultBusyTimeout,
		sleep:          sleepContext,
	}
	for _, opt := range opts {
		if err := opt(b); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open(driverName, dataSourceName(path, b.busyTimeout))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrConnection, err)
	}
	// One connection: the store is single-writer and an in-memory
	// database only lives as long as its connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx, cancel := context.WithTimeout(context.Background(), b.connectTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %s: %w", storage.ErrConnection, path, err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: enabling foreign keys: %w", storage.ErrConnection, err)
	}

	b.db = db
	b.logger.Debug("opened database", "path", path)
	return b, nil
}

func dataSourceName(path string, busyTimeout time.Duration) string {
	params := url.Values{}
	params.Add("_pragma", "foreign_keys(1)")
	params.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", busyTimeout.Milliseconds()))
	if path == MemoryPath {
		return "file::memory:?" + params.Encode()
	}
	return "file:" + path + "?" + params.Encode()
}

// Close closes the database. Later calls on any table return storage.ErrStorageClosed.
func (b *Backend) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	return b.db.Close()
}

// IsClosed returns true if the database is closed.
func (b *Backend) IsClosed() bool {
	return b.closed.Load()
}

// Ping checks that the database is still reachable.
func (b *Backend) Ping(ctx context.Context) error {
	if b.IsClosed() {
		return storage.ErrStorageClosed
	}
	if err := b.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %w", storage.ErrConnection, err)
	}
	return nil
}

// run executes fn against the shared handle under the retry policy.
// schema holds the statements that create the table fn works on.
func (b *Backend) run(ctx context.Context, table string, schema []string, fn func(q querier) error) error {
	return b.retryLoop(ctx, table, schema, func() error {
		return fn(b.db)
	})
}

// withTx executes fn inside one transaction under the retry policy.
// The whole transaction is re-issued on lock contention.
func (b *Backend) withTx(ctx context.Context, table string, schema []string, fn func(tx querier) error) error {
	return b.retryLoop(ctx, table, schema, func() error {
		tx, err := b.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if err := fn(tx); err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				b.logger.Warn("rollback failed", "table", table, "error", rbErr)
			}
			return err
		}
		return tx.Commit()
	})
}

// retryLoop classifies the outcome of attempt:
//   - lock contention is retried with doubling backoff until the policy is spent
//   - a missing table is created once, on the first attempt only, and the attempt re-issued
//   - constraint violations are returned at once as storage.ErrConstraint
//   - anything else is storage.ErrFatalStorage
func (b *Backend) retryLoop(ctx context.Context, table string, schema []string, attempt func() error) error {
	if b.closed.Load() {
		return storage.ErrStorageClosed
	}

	delay := b.retry.BaseDelay
	retries := 0
	healed := false
	for {
		err := attempt()
		if err == nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		switch {
		case isMissingTable(err):
			if healed || retries > 0 {
				errorsTotal.WithLabelValues(table, "table_creation").Inc()
				return fmt.Errorf("%w: %s: %w", storage.ErrTableCreation, table, err)
			}
			healed = true
			b.logger.Warn("table missing, creating it", "table", table, "error", err)
			if createErr := b.createTable(ctx, schema); createErr != nil {
				errorsTotal.WithLabelValues(table, "table_creation").Inc()
				return fmt.Errorf("%w: %s: %w", storage.ErrTableCreation, table, createErr)
			}
			tablesCreatedTotal.WithLabelValues(table).Inc()
			b.logger.Info("created table", "table", table)

		case isBusy(err):
			if retries >= b.retry.MaxRetries {
				errorsTotal.WithLabelValues(table, "exhausted_retries").Inc()
				b.logger.Error("giving up on locked database", "table", table, "retries", retries, "error", err)
				return fmt.Errorf("%w: %s after %d retries: %w: %w",
					storage.ErrExhaustedRetries, table, retries, storage.ErrTransient, err)
			}
			retries++
			retriesTotal.WithLabelValues(table).Inc()
			b.logger.Warn("database locked, retrying",
				"table", table,
				"retry", retries,
				"delay", delay,
				"error", err)
			if err := b.sleep(ctx, delay); err != nil {
				return err
			}
			delay *= 2

		case isConstraint(err):
			errorsTotal.WithLabelValues(table, "constraint").Inc()
			b.logger.Debug("constraint violation", "table", table, "error", err)
			return fmt.Errorf("%w: %s: %w", storage.ErrConstraint, table, err)

		default:
			errorsTotal.WithLabelValues(table, "fatal").Inc()
			b.logger.Error("storage failure", "table", table, "error", err)
			return fmt.Errorf("%w: %s: %w", storage.ErrFatalStorage, table, err)
		}
	}
}

// createTable runs the declared creation statements in one transaction.
func (b *Backend) createTable(ctx context.Context, schema []string) error {
	if len(schema) == 0 {
		return errors.New("no schema declared")
	}
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, stmt := range schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func isBusy(err error) bool {
	if errors.Is(err, sqlite3.BUSY) || errors.Is(err, sqlite3.LOCKED) {
		return true
	}
	return strings.Contains(err.Error(), "database is locked")
}

func isMissingTable(err error) bool {
	return strings.Contains(err.Error(), "no such table")
}

func isConstraint(err error) bool {
	return errors.Is(err, sqlite3.CONSTRAINT)
}

func isUniqueViolation(err error) bool {
	return errors.Is(err, sqlite3.CONSTRAINT_UNIQUE) || errors.Is(err, sqlite3.CONSTRAINT_PRIMARYKEY)
}
