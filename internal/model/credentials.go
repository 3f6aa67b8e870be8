package model

import "context"

// Fixed keys of the persisted credential entries.
const (
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
	KeyCachedUser   = "cached_user"
)

// StoredCredentials is what the token store holds between runs.
// Empty RefreshToken means no refresh capability; nil User means no cached profile.
type StoredCredentials struct {
	AccessToken  string
	RefreshToken string
	User         *User
}

// IsEmpty reports whether no access token is stored.
func (c StoredCredentials) IsEmpty() bool {
	return c.AccessToken == ""
}

// CredentialStore persists credentials in durable client-side storage.
// Set replaces all three entries at once; Clear is idempotent.
type CredentialStore interface {
	Get(ctx context.Context) (StoredCredentials, error)
	Set(ctx context.Context, accessToken string, user User, refreshToken string) error
	Clear(ctx context.Context) error
}
