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

import (
	"fmt"
)

// ValidateUser validates a User according to domain rules.
//
// Validation rules:
//   - ID must be non-zero
func ValidateUser(user *User) error {
	if user == nil {
		return fmt.Errorf("%w: user is nil", ErrInvalidUser)
	}
	if user.ID == 0 {
		return fmt.Errorf("%w: id is zero", ErrInvalidUser)
	}
	return nil
}

// ValidateMediaItem validates a MediaItem according to domain rules.
//
// Validation rules:
//   - UserID must be non-zero
//   - Type must be a supported media type
//   - FileID must not be empty
//   - Description must not be empty
//
// NOT validated:
//   - MediaID (assigned by storage on insert)
//   - Caption (optional)
func ValidateMediaItem(item *MediaItem) error {
	if item == nil {
		return fmt.Errorf("%w: item is nil", ErrInvalidMediaItem)
	}
	if item.UserID == 0 {
		return fmt.Errorf("%w: user id is zero", ErrInvalidMediaItem)
	}
	if err := ValidateMediaType(item.Type); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidMediaItem, err)
	}
	if item.FileID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidMediaItem, ErrEmptyFileID)
	}
	if item.Description == "" {
		return fmt.Errorf("%w: %w", ErrInvalidMediaItem, ErrEmptyDescription)
	}
	return nil
}

// ValidateMediaType validates that a MediaType has a supported value.
func ValidateMediaType(t MediaType) error {
	if !t.Valid() {
		return fmt.Errorf("%w: value %q", ErrInvalidMediaType, string(t))
	}
	return nil
}
