package sqlite

import (
	"context"
	"errors"
	"fmt"

	"github.com/poiesic/mediastash/core"
	"github.com/poiesic/mediastash/storage"
)

// UserRepository is the directory of known users.
type UserRepository struct {
	table *Table
}

var _ storage.UserRepository = (*UserRepository)(nil)

// NewUserRepository creates a user repository over the backend.
func NewUserRepository(backend *Backend) *UserRepository {
	return &UserRepository{
		table: NewTable(backend, TableDef{
			Name:    usersTable,
			Columns: usersColumns,
			Schema:  usersSchema,
		}),
	}
}

// Close is a no-op; the backend owns the connection.
func (r *UserRepository) Close() error {
	return nil
}

// AddUser registers a user. A user re-sending /start hits the primary key
// and is reported as not newly added.
func (r *UserRepository) AddUser(ctx context.Context, user *core.User) (bool, error) {
	if err := core.ValidateUser(user); err != nil {
		return false, fmt.Errorf("%w: %w", storage.ErrValidation, err)
	}
	inserted, _, err := r.table.Add(ctx, storage.Fields{
		"user_id":  int64(user.ID),
		"username": user.Username,
	}, false)
	if errors.Is(err, storage.ErrConstraint) {
		return false, nil
	}
	return inserted, err
}

// GetUser retrieves a user by ID.
func (r *UserRepository) GetUser(ctx context.Context, id core.UserID) (*core.User, error) {
	result, err := r.table.Get(ctx, storage.Query{
		Conditions:      storage.Fields{"user_id": int64(id)},
		WithColumnNames: true,
	})
	if err != nil {
		return nil, err
	}
	row, ok := result.Unwrap()
	if !ok {
		return nil, fmt.Errorf("%w: user %d", storage.ErrNotFound, id)
	}
	return &core.User{
		ID:       core.UserID(asInt64(row.Get("user_id"))),
		Username: asString(row.Get("username")),
	}, nil
}

// ListUserIDs returns every known user ID in ascending order.
func (r *UserRepository) ListUserIDs(ctx context.Context) ([]core.UserID, error) {
	result, err := r.table.Get(ctx, storage.Query{OrderBy: "user_id", Direction: storage.Ascending})
	if err != nil {
		return nil, err
	}
	ids := make([]core.UserID, 0, result.Len())
	for _, row := range result.Rows {
		ids = append(ids, core.UserID(asInt64(row.Values[0])))
	}
	return ids, nil
}

// DeleteUser removes a user together with their media and conversation state.
// The foreign keys cascade to media and temp; descriptions live in a virtual
// table outside the cascade and are removed first in the same transaction.
func (r *UserRepository) DeleteUser(ctx context.Context, id core.UserID) (bool, error) {
	var deleted bool
	err := r.table.backend.withTx(ctx, usersTable, mediaSchema, func(tx querier) error {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM media_fts WHERE media_id IN (SELECT media_id FROM media WHERE user_id = ?)",
			int64(id)); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, "DELETE FROM users WHERE user_id = ?", int64(id))
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		deleted = n > 0
		return err
	})
	return deleted, err
}

// CountUsers returns the number of known users.
func (r *UserRepository) CountUsers(ctx context.Context) (int, error) {
	return r.table.Count(ctx)
}
