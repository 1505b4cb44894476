package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/mediastash/core"
	"github.com/poiesic/mediastash/storage"
)

// StateRepository keeps conversation facts in badger. Unlike the relational
// store it needs no registered user, and every write can carry a TTL so
// drafts a user walked away from expire on their own.
type StateRepository struct {
	backend *Backend
	ttl     time.Duration
}

var _ storage.StateRepository = (*StateRepository)(nil)

// StateOption configures a StateRepository.
type StateOption func(*StateRepository) error

// WithTTL expires every key ttl after its last write. Zero keeps keys forever.
func WithTTL(ttl time.Duration) StateOption {
	return func(r *StateRepository) error {
		if ttl < 0 {
			return fmt.Errorf("ttl must be >= 0, got %s", ttl)
		}
		r.ttl = ttl
		return nil
	}
}

// NewStateRepository creates a state repository over the backend.
func NewStateRepository(backend *Backend, opts ...StateOption) (*StateRepository, error) {
	r := &StateRepository{backend: backend}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Close is a no-op; the backend owns the database.
func (r *StateRepository) Close() error {
	return nil
}

// Set stores one value, expiring it after the configured TTL.
func (r *StateRepository) Set(ctx context.Context, userID core.UserID, key, value string) error {
	return r.SetMany(ctx, userID, map[string]string{key: value})
}

// SetMany writes every value in one transaction.
func (r *StateRepository) SetMany(ctx context.Context, userID core.UserID, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}
	return r.backend.WithTx(func(tx *badger.Txn) error {
		for k, v := range values {
			entry := badger.NewEntry(makeStateKey(userID, k), storage.MarshalStateValue(v))
			if r.ttl > 0 {
				entry = entry.WithTTL(r.ttl)
			}
			if err := tx.SetEntry(entry); err != nil {
				return err
			}
		}
		return nil
	}, true)
}

// Get returns the value for key and whether it was set.
func (r *StateRepository) Get(ctx context.Context, userID core.UserID, key string) (string, bool, error) {
	var (
		value string
		found bool
	)
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeStateKey(userID, key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			value, err = storage.UnmarshalStateValue(val)
			return err
		})
	}, false)
	return value, found, err
}

// GetAll returns every unexpired key and value for the user.
func (r *StateRepository) GetAll(ctx context.Context, userID core.UserID) (map[string]string, error) {
	values := map[string]string{}
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeUserStatePrefix(userID)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			item := iter.Item()
			name := stateKeyName(userID, item.Key())
			err := item.Value(func(val []byte) error {
				v, err := storage.UnmarshalStateValue(val)
				if err != nil {
					return err
				}
				values[name] = v
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return values, nil
}

// Delete removes one key and reports whether it existed.
func (r *StateRepository) Delete(ctx context.Context, userID core.UserID, key string) (bool, error) {
	var deleted bool
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		k := makeStateKey(userID, key)
		if _, err := tx.Get(k); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		deleted = true
		return tx.Delete(k)
	}, true)
	return deleted, err
}

// Clear removes every key stored for the user.
func (r *StateRepository) Clear(ctx context.Context, userID core.UserID) (bool, error) {
	var cleared bool
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeUserStatePrefix(userID)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		var keys [][]byte
		for iter.Rewind(); iter.Valid(); iter.Next() {
			keys = append(keys, iter.Item().KeyCopy(nil))
		}
		iter.Close()

		for _, k := range keys {
			if err := tx.Delete(k); err != nil {
				return err
			}
		}
		cleared = len(keys) > 0
		return nil
	}, true)
	return cleared, err
}
