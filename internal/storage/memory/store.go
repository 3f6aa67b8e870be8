package memory

import (
	"context"
	"sync"

	"github.com/dtroode/schoolhub-client/internal/model"
)

var _ model.CredentialStore = (*Store)(nil)

// Store keeps credentials in process memory. Nothing survives a restart.
type Store struct {
	mu    sync.RWMutex
	creds model.StoredCredentials
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{}
}

// Get returns a copy of the stored credentials.
func (s *Store) Get(_ context.Context) (model.StoredCredentials, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := s.creds
	if s.creds.User != nil {
		u := *s.creds.User
		out.User = &u
	}
	return out, nil
}

// Set replaces all entries.
func (s *Store) Set(_ context.Context, accessToken string, user model.User, refreshToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.creds = model.StoredCredentials{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         &user,
	}
	return nil
}

// Clear removes all entries.
func (s *Store) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.creds = model.StoredCredentials{}
	return nil
}
