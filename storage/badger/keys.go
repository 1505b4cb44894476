package badger

import (
	"bytes"
	"fmt"

	"github.com/poiesic/mediastash/core"
)

const (
	statePrefix = "temp"
)

// makeStateKey generates the key of one conversation fact.
// Format: temp:userID:key
func makeStateKey(userID core.UserID, key string) []byte {
	return []byte(fmt.Sprintf("%s:%d:%s", statePrefix, userID, key))
}

// makeUserStatePrefix generates the prefix shared by all of a user's facts.
// Format: temp:userID:
func makeUserStatePrefix(userID core.UserID) []byte {
	return []byte(fmt.Sprintf("%s:%d:", statePrefix, userID))
}

// stateKeyName extracts the fact name from a full state key.
func stateKeyName(userID core.UserID, key []byte) string {
	return string(bytes.TrimPrefix(key, makeUserStatePrefix(userID)))
}
