package flow

import "errors"

var (
	// ErrCorruptState indicates a stored flow status the engine does not know.
	// It wraps core.ErrUnknownStatus and is never absorbed.
	ErrCorruptState = errors.New("corrupt conversation state")

	// ErrUserRepositoryRequired indicates that a user repository was not provided.
	ErrUserRepositoryRequired = errors.New("user repository is required")

	// ErrMediaRepositoryRequired indicates that a media repository was not provided.
	ErrMediaRepositoryRequired = errors.New("media repository is required")

	// ErrStateRepositoryRequired indicates that a state repository was not provided.
	ErrStateRepositoryRequired = errors.New("state repository is required")
)
