// Package storage holds the encoding shared by the credential store backends.
// Every backend persists the same three entries keyed by model.KeyAccessToken,
// model.KeyRefreshToken and model.KeyCachedUser.
package storage

import (
	"encoding/json"
	"fmt"

	"github.com/dtroode/schoolhub-client/internal/model"
)

// Encode turns credentials into key/value entries. An empty refresh token
// produces no refresh entry.
func Encode(accessToken string, user model.User, refreshToken string) (map[string]string, error) {
	rawUser, err := json.Marshal(user)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal cached user: %w", err)
	}

	entries := map[string]string{
		model.KeyAccessToken: accessToken,
		model.KeyCachedUser:  string(rawUser),
	}
	if refreshToken != "" {
		entries[model.KeyRefreshToken] = refreshToken
	}
	return entries, nil
}

// Decode rebuilds credentials from key/value entries. Unknown keys are ignored.
func Decode(entries map[string]string) (model.StoredCredentials, error) {
	creds := model.StoredCredentials{
		AccessToken:  entries[model.KeyAccessToken],
		RefreshToken: entries[model.KeyRefreshToken],
	}

	if raw, ok := entries[model.KeyCachedUser]; ok && raw != "" {
		var u model.User
		if err := json.Unmarshal([]byte(raw), &u); err != nil {
			return model.StoredCredentials{}, fmt.Errorf("%w: cached user: %v", model.ErrCorruptCredentials, err)
		}
		creds.User = &u
	}

	return creds, nil
}
