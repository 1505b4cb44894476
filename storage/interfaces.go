package storage

import (
	"context"

	"github.com/poiesic/mediastash/core"
)

// UserRepository is the directory of known users.
// Implementations must be thread-safe and support concurrent access.
type UserRepository interface {
	// AddUser registers a user.
	// A user that already exists is reported as added=false, not as an error.
	AddUser(ctx context.Context, user *core.User) (added bool, err error)

	// GetUser retrieves a user by ID.
	// Returns ErrNotFound if the user doesn't exist.
	GetUser(ctx context.Context, id core.UserID) (*core.User, error)

	// ListUserIDs returns every known user ID in ascending order.
	ListUserIDs(ctx context.Context) ([]core.UserID, error)

	// DeleteUser removes a user. Media and conversation state cascade.
	DeleteUser(ctx context.Context, id core.UserID) (deleted bool, err error)

	// CountUsers returns the number of known users.
	CountUsers(ctx context.Context) (int, error)

	// Close releases resources held by the repository.
	Close() error
}

// MediaRepository stores media items together with their searchable descriptions.
// Every item has exactly one description row keyed by its MediaID; the two
// are written and removed together.
type MediaRepository interface {
	// AddMedia stores an item and its description.
	// A FileID already present for any user is reported as inserted=false.
	AddMedia(ctx context.Context, item *core.MediaItem) (inserted bool, id core.MediaID, err error)

	// GetMedia returns items matching the query, descriptions attached.
	GetMedia(ctx context.Context, q Query) ([]*core.MediaItem, error)

	// GetMediaByFileID retrieves the item with the given FileID.
	// Returns ErrNotFound if there is none.
	GetMediaByFileID(ctx context.Context, fileID string) (*core.MediaItem, error)

	// DeleteMedia removes matching items and their descriptions.
	// Conditions may not reference the description.
	DeleteMedia(ctx context.Context, conditions Fields) (deleted bool, err error)

	// CountMedia counts items matching the conditions.
	CountMedia(ctx context.Context, conditions Fields) (int, error)

	// SearchByDescription runs a ranked prefix search over one user's descriptions.
	// total counts every match, not just the returned page.
	SearchByDescription(ctx context.Context, userID core.UserID, text string, limit, offset int) (items []*core.MediaItem, total int, err error)

	// Close releases resources held by the repository.
	Close() error
}

// StateRepository is the per-user key/value store that drives conversation flows.
// Writes always replace an existing value for the same key.
type StateRepository interface {
	// Set stores one value.
	Set(ctx context.Context, userID core.UserID, key, value string) error

	// SetMany stores several values as one unit.
	SetMany(ctx context.Context, userID core.UserID, values map[string]string) error

	// Get returns a value and whether it was present.
	Get(ctx context.Context, userID core.UserID, key string) (value string, ok bool, err error)

	// GetAll returns every value stored for a user.
	GetAll(ctx context.Context, userID core.UserID) (map[string]string, error)

	// Delete removes one key.
	Delete(ctx context.Context, userID core.UserID, key string) (deleted bool, err error)

	// Clear removes every key stored for a user.
	Clear(ctx context.Context, userID core.UserID) (cleared bool, err error)

	// Close releases resources held by the repository.
	Close() error
}
