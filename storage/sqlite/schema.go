package sqlite

import (
	"context"
	"fmt"
)

const (
	usersTable    = "users"
	mediaTable    = "media"
	mediaFTSTable = "media_fts"
	stateTable    = "temp"
)

const createUsers = `CREATE TABLE IF NOT EXISTS users (
	user_id INTEGER PRIMARY KEY,
	username TEXT NOT NULL
)`

const createMedia = `CREATE TABLE IF NOT EXISTS media (
	user_id INTEGER NOT NULL,
	media_type TEXT NOT NULL,
	file_id TEXT NOT NULL UNIQUE,
	caption TEXT,
	media_id INTEGER PRIMARY KEY AUTOINCREMENT,
	FOREIGN KEY (user_id) REFERENCES users(user_id) ON DELETE CASCADE
)`

const createMediaUserIndex = `CREATE INDEX IF NOT EXISTS idx_media_user ON media(user_id)`

// media_id is stored but not tokenized.
const createMediaFTS = `CREATE VIRTUAL TABLE IF NOT EXISTS media_fts USING fts5(
	media_id UNINDEXED,
	description
)`

const createState = `CREATE TABLE IF NOT EXISTS temp (
	user_id INTEGER,
	key TEXT,
	value TEXT,
	PRIMARY KEY (user_id, key),
	FOREIGN KEY (user_id) REFERENCES users(user_id) ON DELETE CASCADE
)`

// Each schema also creates the tables it references, so healing one
// missing table never trips over a missing parent.
var (
	usersSchema = []string{createUsers}
	mediaSchema = []string{createUsers, createMedia, createMediaUserIndex, createMediaFTS}
	stateSchema = []string{createUsers, createState}
)

var (
	usersColumns    = []string{"user_id", "username"}
	mediaColumns    = []string{"user_id", "media_type", "file_id", "caption", "media_id"}
	mediaFTSColumns = []string{"media_id", "description"}
	stateColumns    = []string{"user_id", "key", "value"}

	// joinedMediaColumns is the read shape of a media item: the primary
	// row with its description attached.
	joinedMediaColumns = append(append([]string{}, mediaColumns...), "description")
)

const joinedMediaSelect = `SELECT media.user_id AS user_id, media.media_type AS media_type,
	media.file_id AS file_id, media.caption AS caption, media.media_id AS media_id,
	media_fts.description AS description
FROM media JOIN media_fts ON media_fts.media_id = media.media_id`

var joinedMediaQualified = map[string]string{
	"user_id":     "media.user_id",
	"media_type":  "media.media_type",
	"file_id":     "media.file_id",
	"caption":     "media.caption",
	"media_id":    "media.media_id",
	"description": "media_fts.description",
}

// CreateSchema creates every table eagerly. Tables are otherwise created
// on first use.
func CreateSchema(ctx context.Context, b *Backend) error {
	for _, def := range []TableDef{
		{Name: usersTable, Columns: usersColumns, Schema: usersSchema},
		{Name: mediaTable, Columns: mediaColumns, Schema: mediaSchema},
		{Name: stateTable, Columns: stateColumns, Schema: stateSchema},
	} {
		if err := NewTable(b, def).Create(ctx); err != nil {
			return fmt.Errorf("creating %s: %w", def.Name, err)
		}
	}
	return nil
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	case nil:
		return ""
	default:
		return fmt.Sprint(s)
	}
}

func asOptionalString(v any) *string {
	if v == nil {
		return nil
	}
	s := asString(v)
	return &s
}
