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


package storage

import "errors"

var (
	// ErrNotFound indicates that the requested record was not found.
	ErrNotFound = errors.New("record not found")

	// ErrValidation indicates the caller supplied an unknown column, an empty
	// required argument or a malformed limit/offset. It is never retried.
	ErrValidation = errors.New("validation failed")

	// ErrConstraint indicates a uniqueness or foreign-key violation.
	// Repositories map it to a negative result where an insert may legitimately collide.
	ErrConstraint = errors.New("constraint violation")

	// ErrTransient indicates lock contention. It is retried internally and
	// only surfaces wrapped in ErrExhaustedRetries.
	ErrTransient = errors.New("storage busy")

	// ErrExhaustedRetries indicates a statement kept hitting lock contention
	// after every retry was spent.
	ErrExhaustedRetries = errors.New("retries exhausted")

	// ErrTableCreation indicates a table was still missing after it was lazily created.
	ErrTableCreation = errors.New("table creation failed")

	// ErrFatalStorage indicates any other storage fault.
	ErrFatalStorage = errors.New("fatal storage error")

	// ErrConnection indicates the storage could not be opened.
	ErrConnection = errors.New("storage connection failed")

	// ErrStorageClosed indicates that the storage backend is closed.
	ErrStorageClosed = errors.New("storage is closed")

	// ErrSerializationFailed indicates a serialization/deserialization failure.
	ErrSerializationFailed = errors.New("serialization failed")
)
