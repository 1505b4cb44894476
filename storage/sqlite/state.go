package sqlite

import (
	"context"

	"github.com/poiesic/mediastash/core"
	"github.com/poiesic/mediastash/storage"
)

// StateRepository keeps per-user conversation facts in the temp table.
// Writes replace existing values so a later flow step can overwrite an
// earlier draft value for the same key.
type StateRepository struct {
	table *Table
}

var _ storage.StateRepository = (*StateRepository)(nil)

// NewStateRepository creates a state repository over the backend.
func NewStateRepository(backend *Backend) *StateRepository {
	return &StateRepository{
		table: NewTable(backend, TableDef{
			Name:    stateTable,
			Columns: stateColumns,
			Schema:  stateSchema,
		}),
	}
}

// Close is a no-op; the backend owns the connection.
func (r *StateRepository) Close() error {
	return nil
}

// Set stores one value, replacing any previous value for the key.
func (r *StateRepository) Set(ctx context.Context, userID core.UserID, key, value string) error {
	_, _, err := r.table.Add(ctx, stateFields(userID, key, value), true)
	return err
}

// SetMany writes every value in one transaction.
func (r *StateRepository) SetMany(ctx context.Context, userID core.UserID, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}
	rows := make([]storage.Fields, 0, len(values))
	for k, v := range values {
		rows = append(rows, stateFields(userID, k, v))
	}
	return r.table.AddMany(ctx, rows, true)
}

// Get returns the value for key and whether it was set.
func (r *StateRepository) Get(ctx context.Context, userID core.UserID, key string) (string, bool, error) {
	result, err := r.table.Get(ctx, storage.Query{
		Conditions:      storage.Fields{"user_id": int64(userID), "key": key},
		WithColumnNames: true,
	})
	if err != nil {
		return "", false, err
	}
	row, ok := result.Unwrap()
	if !ok {
		return "", false, nil
	}
	return asString(row.Get("value")), true, nil
}

// GetAll returns every key and value stored for the user.
func (r *StateRepository) GetAll(ctx context.Context, userID core.UserID) (map[string]string, error) {
	result, err := r.table.Get(ctx, storage.Query{
		Conditions:      storage.Fields{"user_id": int64(userID)},
		WithColumnNames: true,
	})
	if err != nil {
		return nil, err
	}
	values := make(map[string]string, result.Len())
	for _, row := range result.Rows {
		values[asString(row.Get("key"))] = asString(row.Get("value"))
	}
	return values, nil
}

// Delete removes one key and reports whether it existed.
func (r *StateRepository) Delete(ctx context.Context, userID core.UserID, key string) (bool, error) {
	return r.table.Delete(ctx, storage.Fields{"user_id": int64(userID), "key": key})
}

// Clear removes every key for the user, whichever flow wrote it.
func (r *StateRepository) Clear(ctx context.Context, userID core.UserID) (bool, error) {
	return r.table.Delete(ctx, storage.Fields{"user_id": int64(userID)})
}

func stateFields(userID core.UserID, key, value string) storage.Fields {
	return storage.Fields{"user_id": int64(userID), "key": key, "value": value}
}
