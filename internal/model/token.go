package model

import "time"

// Claims is the decoded, unverified payload of an access token.
type Claims struct {
	Subject   string
	Email     string
	Role      Role
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenInspector decodes tokens locally and decides whether they are still usable.
type TokenInspector interface {
	Decode(token string) (Claims, error)
	IsExpired(token string) bool
}
