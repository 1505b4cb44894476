package storage

import (
	"fmt"

	"github.com/mus-format/mus-go/ord"
)

// MarshalStateValue serializes a conversation state value to bytes.
func MarshalStateValue(value string) []byte {
	buf := make([]byte, ord.String.Size(value))
	ord.String.Marshal(value, buf)
	return buf
}

// UnmarshalStateValue deserializes a conversation state value from bytes.
func UnmarshalStateValue(data []byte) (string, error) {
	value, _, err := ord.String.Unmarshal(data)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return value, nil
}
