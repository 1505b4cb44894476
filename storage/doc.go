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


// Package storage provides the storage abstraction layer for mediastash.
//
// This package defines repository interfaces that decouple storage implementation
// from the conversation engine. The relational backend lives in storage/sqlite;
// storage/badger offers an alternative conversation state store with expiring drafts.
//
// # Architecture
//
//   - UserRepository: the directory of known users, anchor for cascading deletes
//   - MediaRepository: media items plus their full-text searchable descriptions
//   - StateRepository: per-user key/value facts for multi-step flows
//
// # Errors
//
// Failures are classified with sentinel errors and errors.Is:
//
//   - ErrValidation: caller bug (unknown column, empty conditions, offset without limit)
//   - ErrConstraint: uniqueness or foreign-key violation, reported as a negative result where expected
//   - ErrExhaustedRetries: lock contention outlasted the retry policy
//   - ErrTableCreation: a missing table could not be created lazily
//   - ErrFatalStorage: anything else
//
// # Usage
//
//	backend, err := sqlite.Open("/path/to/media.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//
//	media := sqlite.NewMediaRepository(backend)
//
// Use in tests with in-memory storage:
//
//	repos, err := sqlite.NewMemoryRepositories()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer repos.Close()
//
// # Context Support
//
// All repository methods accept context.Context. Cancelling it interrupts
// the retry backoff between attempts.
package storage
