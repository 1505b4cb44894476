// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import "errors"

// Domain validation errors
var (
	// ErrInvalidUser indicates a User failed validation.
	ErrInvalidUser = errors.New("invalid user")

	// ErrInvalidMediaItem indicates a MediaItem failed validation.
	ErrInvalidMediaItem = errors.New("invalid media item")

	// ErrInvalidMediaType indicates an unsupported MediaType value.
	ErrInvalidMediaType = errors.New("invalid media type")

	// ErrEmptyFileID indicates the FileID field is empty.
	ErrEmptyFileID = errors.New("file id cannot be empty")

	// ErrEmptyDescription indicates the Description field is empty.
	ErrEmptyDescription = errors.New("description cannot be empty")

	// ErrUnknownStatus indicates a stored flow status that is not part of the state machine.
	// It means the conversation state is corrupt and must never be absorbed silently.
	ErrUnknownStatus = errors.New("unknown flow status")
)
