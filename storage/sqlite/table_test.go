package sqlite

import (
	"context"
	"testing"

	"github.com/poiesic/mediastash/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUsersTable(t *testing.T) *Table {
	t.Helper()
	b, _ := newTestBackend(t)
	return NewTable(b, TableDef{Name: usersTable, Columns: usersColumns, Schema: usersSchema})
}

func TestTable_AddCreatesTableLazily(t *testing.T) {
	table := newUsersTable(t)
	ctx := context.Background()

	inserted, id, err := table.Add(ctx, storage.Fields{"user_id": int64(10), "username": "alice"}, false)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Equal(t, int64(10), id)
}

func TestTable_AddValidation(t *testing.T) {
	table := newUsersTable(t)
	ctx := context.Background()

	_, _, err := table.Add(ctx, storage.Fields{}, false)
	assert.ErrorIs(t, err, storage.ErrValidation)

	_, _, err = table.Add(ctx, storage.Fields{"user_id": 1, "email": "x"}, false)
	assert.ErrorIs(t, err, storage.ErrValidation)
}

func TestTable_AddReplace(t *testing.T) {
	table := newUsersTable(t)
	ctx := context.Background()

	_, _, err := table.Add(ctx, storage.Fields{"user_id": int64(1), "username": "old"}, false)
	require.NoError(t, err)

	_, _, err = table.Add(ctx, storage.Fields{"user_id": int64(1), "username": "new"}, false)
	assert.ErrorIs(t, err, storage.ErrConstraint)

	inserted, _, err := table.Add(ctx, storage.Fields{"user_id": int64(1), "username": "new"}, true)
	require.NoError(t, err)
	assert.True(t, inserted)

	result, err := table.Get(ctx, storage.Query{Conditions: storage.Fields{"user_id": int64(1)}, WithColumnNames: true})
	require.NoError(t, err)
	row, ok := result.Unwrap()
	require.True(t, ok)
	assert.Equal(t, "new", asString(row.Get("username")))
}

func TestTable_GetShapes(t *testing.T) {
	table := newUsersTable(t)
	ctx := context.Background()

	for i, name := range []string{"carol", "alice", "bob"} {
		_, _, err := table.Add(ctx, storage.Fields{"user_id": int64(i + 1), "username": name}, false)
		require.NoError(t, err)
	}

	t.Run("single match unwraps", func(t *testing.T) {
		result, err := table.Get(ctx, storage.Query{Conditions: storage.Fields{"username": "bob"}})
		require.NoError(t, err)
		row, ok := result.Unwrap()
		require.True(t, ok)
		require.Len(t, row.Values, 2)
		assert.Equal(t, int64(3), row.Values[0])
		assert.Equal(t, "bob", asString(row.Values[1]))
		assert.Nil(t, row.Columns)
	})

	t.Run("ordered with limit and offset", func(t *testing.T) {
		result, err := table.Get(ctx, storage.Query{
			OrderBy:         "username",
			Direction:       storage.Descending,
			Limit:           2,
			Offset:          1,
			WithColumnNames: true,
		})
		require.NoError(t, err)
		require.Equal(t, 2, result.Len())
		assert.Equal(t, "bob", asString(result.Rows[0].Get("username")))
		assert.Equal(t, "alice", asString(result.Rows[1].Get("username")))
		_, ok := result.Unwrap()
		assert.False(t, ok)
	})

	t.Run("invalid queries", func(t *testing.T) {
		for _, q := range []storage.Query{
			{Offset: 1},
			{OrderBy: "email"},
			{OrderBy: "username", Direction: "UP"},
			{Conditions: storage.Fields{"email": "x"}},
		} {
			_, err := table.Get(ctx, q)
			assert.ErrorIs(t, err, storage.ErrValidation)
		}
	})
}

func TestTable_CountSetDelete(t *testing.T) {
	table := newUsersTable(t)
	ctx := context.Background()

	require.NoError(t, table.AddMany(ctx, []storage.Fields{
		{"user_id": int64(1), "username": "same"},
		{"user_id": int64(2), "username": "same"},
		{"user_id": int64(3), "username": "other"},
	}, false))

	n, err := table.CountWhere(ctx, storage.Fields{"username": "same"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = table.CountWhere(ctx, storage.Fields{})
	assert.ErrorIs(t, err, storage.ErrValidation)

	updated, err := table.Set(ctx, storage.Fields{"user_id": int64(3)}, storage.Fields{"username": "same"})
	require.NoError(t, err)
	assert.True(t, updated)

	updated, err = table.Set(ctx, storage.Fields{"user_id": int64(99)}, storage.Fields{"username": "x"})
	require.NoError(t, err)
	assert.False(t, updated)

	_, err = table.Set(ctx, storage.Fields{}, storage.Fields{"username": "x"})
	assert.ErrorIs(t, err, storage.ErrValidation)
	_, err = table.Set(ctx, storage.Fields{"user_id": int64(1)}, storage.Fields{})
	assert.ErrorIs(t, err, storage.ErrValidation)

	deleted, err := table.Delete(ctx, storage.Fields{"username": "same"})
	require.NoError(t, err)
	assert.True(t, deleted)

	n, err = table.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	deleted, err = table.Delete(ctx, storage.Fields{"username": "same"})
	require.NoError(t, err)
	assert.False(t, deleted)

	_, err = table.Delete(ctx, nil)
	assert.ErrorIs(t, err, storage.ErrValidation)
}

func TestTable_AddManyIsAtomic(t *testing.T) {
	table := newUsersTable(t)
	ctx := context.Background()

	err := table.AddMany(ctx, []storage.Fields{
		{"user_id": int64(1), "username": "a"},
		{"user_id": int64(1), "username": "b"},
	}, false)
	assert.ErrorIs(t, err, storage.ErrConstraint)

	n, err := table.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	assert.ErrorIs(t, table.AddMany(ctx, nil, false), storage.ErrValidation)
}

func TestCountStatement(t *testing.T) {
	assert.Equal(t, "SELECT COUNT(*) FROM users", countStatement("SELECT user_id, username FROM users"))
	assert.Contains(t, countStatement(joinedMediaSelect), "SELECT COUNT(*)\nFROM media JOIN media_fts")
}
