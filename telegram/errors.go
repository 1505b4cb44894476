package telegram

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

var (
	// ErrTokenRequired is returned when a client is created without a bot token.
	ErrTokenRequired = errors.New("bot token required")

	// ErrUnsupportedMediaType is returned when a media item has no inline result form.
	ErrUnsupportedMediaType = errors.New("unsupported media type")
)

// APIError is an unsuccessful Bot API response.
type APIError struct {
	Method      string
	Code        int
	Description string

	// RetryAfter is the flood-control wait the server asked for, if any.
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram %s: %d %s", e.Method, e.Code, e.Description)
}

// temporary reports whether repeating the call may succeed.
func (e *APIError) temporary() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= http.StatusInternalServerError
}

// IsForbidden reports whether err is a 403 from the Bot API, which is what
// sending to a user who blocked the bot returns.
func IsForbidden(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusForbidden
}
