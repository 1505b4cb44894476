package sqlite

import "time"

// Repositories bundles the repositories of one backend.
type Repositories struct {
	Backend *Backend
	Users   *UserRepository
	Media   *MediaRepository
	State   *StateRepository
}

// Close closes the backend.
func (r *Repositories) Close() error {
	return r.Backend.Close()
}

// NewMemoryRepositories creates repositories over a private in-memory database for testing.
// Lock retries wait 1ms instead of the production backoff.
// Caller must close the returned bundle when done.
func NewMemoryRepositories(opts ...Option) (*Repositories, error) {
	opts = append([]Option{WithRetryPolicy(RetryPolicy{MaxRetries: 3, BaseDelay: time.Millisecond})}, opts...)
	backend, err := Open(MemoryPath, opts...)
	if err != nil {
		return nil, err
	}
	return &Repositories{
		Backend: backend,
		Users:   NewUserRepository(backend),
		Media:   NewMediaRepository(backend),
		State:   NewStateRepository(backend),
	}, nil
}
