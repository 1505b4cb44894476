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


package mediastash

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/mediastash/broadcast"
	"github.com/poiesic/mediastash/core"
	"github.com/poiesic/mediastash/flow"
	"github.com/poiesic/mediastash/search"
	"github.com/poiesic/mediastash/storage"
	"github.com/poiesic/mediastash/storage/badger"
	"github.com/poiesic/mediastash/storage/sqlite"
)

// StateBackend names where conversation state is kept.
type StateBackend string

const (
	// StateBackendSQLite keeps state in the temp table next to the media.
	StateBackendSQLite StateBackend = "sqlite"
	// StateBackendBadger keeps state in a separate badger store, with expiry.
	StateBackendBadger StateBackend = "badger"
)

// ParseStateBackend maps a configuration value to a StateBackend.
func ParseStateBackend(s string) (StateBackend, error) {
	switch StateBackend(s) {
	case StateBackendSQLite, "":
		return StateBackendSQLite, nil
	case StateBackendBadger:
		return StateBackendBadger, nil
	}
	return "", fmt.Errorf("unknown state backend %q: must be sqlite or badger", s)
}

type Database struct {
	backend      *sqlite.Backend
	stateBackend *badger.Backend
	users        storage.UserRepository
	media        storage.MediaRepository
	state        storage.StateRepository
	logger       *slog.Logger
}

// DatabaseOption configures a Database.
type DatabaseOption func(*databaseOptions)

type databaseOptions struct {
	stateBackend StateBackend
	stateDir     string
	stateTTL     time.Duration
	sqliteOpts   []sqlite.Option
	logger       *slog.Logger
}

// WithBadgerState keeps conversation state in a badger store in dir, an
// in-memory one if dir is empty. Drafts idle for longer than ttl expire;
// zero keeps them until they are finished or cancelled.
func WithBadgerState(dir string, ttl time.Duration) DatabaseOption {
	return func(o *databaseOptions) {
		o.stateBackend = StateBackendBadger
		o.stateDir = dir
		o.stateTTL = ttl
	}
}

// WithSQLiteOptions passes options to the SQLite backend.
func WithSQLiteOptions(opts ...sqlite.Option) DatabaseOption {
	return func(o *databaseOptions) {
		o.sqliteOpts = append(o.sqliteOpts, opts...)
	}
}

// WithLogger sets the logger of the database and its backends.
func WithLogger(logger *slog.Logger) DatabaseOption {
	return func(o *databaseOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func NewDatabase(filePath string, opts ...DatabaseOption) (*Database, error) {
	options := &databaseOptions{
		stateBackend: StateBackendSQLite,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}

	backend, err := sqlite.Open(filePath, append([]sqlite.Option{sqlite.WithLogger(options.logger)}, options.sqliteOpts...)...)
	if err != nil {
		return nil, err
	}

	db := &Database{
		backend: backend,
		users:   sqlite.NewUserRepository(backend),
		media:   sqlite.NewMediaRepository(backend),
		logger:  options.logger,
	}

	switch options.stateBackend {
	case StateBackendBadger:
		stateBackend, err := badger.OpenBackend(options.stateDir, options.stateDir == "", badger.WithLogger(options.logger))
		if err != nil {
			backend.Close()
			return nil, err
		}
		var stateOpts []badger.StateOption
		if options.stateTTL > 0 {
			stateOpts = append(stateOpts, badger.WithTTL(options.stateTTL))
		}
		state, err := badger.NewStateRepository(stateBackend, stateOpts...)
		if err != nil {
			stateBackend.Close()
			backend.Close()
			return nil, err
		}
		db.stateBackend = stateBackend
		db.state = state
		// The users table can't cascade into badger.
		db.users = &userDirectory{UserRepository: db.users, state: state}
	default:
		db.state = sqlite.NewStateRepository(backend)
	}

	db.logger.Debug("opened database", "path", filePath, "state_backend", options.stateBackend)
	return db, nil
}

// Init creates every table up front instead of on first use.
func (db *Database) Init(ctx context.Context) error {
	return sqlite.CreateSchema(ctx, db.backend)
}

// Ping checks that storage is reachable.
func (db *Database) Ping(ctx context.Context) error {
	if err := db.backend.Ping(ctx); err != nil {
		return err
	}
	if db.stateBackend != nil && db.stateBackend.IsClosed() {
		return storage.ErrStorageClosed
	}
	return nil
}

func (db *Database) Close() error {
	if err := db.state.Close(); err != nil {
		db.logger.Error("error closing state repository", "err", err)
		return err
	}
	if err := db.media.Close(); err != nil {
		db.logger.Error("error closing media repository", "err", err)
		return err
	}
	if err := db.users.Close(); err != nil {
		db.logger.Error("error closing user repository", "err", err)
		return err
	}

	if db.stateBackend != nil {
		if err := db.stateBackend.Close(); err != nil {
			db.logger.Error("error closing state storage", "err", err)
			return err
		}
	}
	if err := db.backend.Close(); err != nil {
		db.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}

func (db *Database) Users() storage.UserRepository {
	return db.users
}

func (db *Database) Media() storage.MediaRepository {
	return db.media
}

func (db *Database) State() storage.StateRepository {
	return db.state
}

func (db *Database) NewEngine(opts ...flow.Option) (*flow.Engine, error) {
	return flow.NewEngine(db.users, db.media, db.state, append([]flow.Option{flow.WithLogger(db.logger)}, opts...)...)
}

func (db *Database) NewSearcher(opts ...search.Option) (*search.Searcher, error) {
	return search.NewSearcher(db.media, append([]search.Option{search.WithLogger(db.logger)}, opts...)...)
}

func (db *Database) NewBroadcaster(sender broadcast.Sender, opts ...broadcast.Option) (*broadcast.Broadcaster, error) {
	return broadcast.NewBroadcaster(db.users, sender, append([]broadcast.Option{broadcast.WithLogger(db.logger)}, opts...)...)
}

// userDirectory clears a deleted user's conversation state held outside SQLite.
type userDirectory struct {
	storage.UserRepository
	state storage.StateRepository
}

func (u *userDirectory) DeleteUser(ctx context.Context, id core.UserID) (bool, error) {
	deleted, err := u.UserRepository.DeleteUser(ctx, id)
	if err != nil {
		return false, err
	}
	if _, err := u.state.Clear(ctx, id); err != nil {
		return deleted, err
	}
	return deleted, nil
}
