package token

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dtroode/schoolhub-client/internal/model"
)

// DefaultSkew is how long before its exp claim a token is already treated as expired.
const DefaultSkew = 10 * time.Second

// claims mirrors the payload issued by the school backend.
type claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}

var _ model.TokenInspector = (*Inspector)(nil)

// Inspector reads access tokens without verifying their signature.
// The backend remains the authority on validity; the client only needs exp.
type Inspector struct {
	parser *jwt.Parser
	skew   time.Duration
	now    func() time.Time
}

// NewInspector creates an Inspector with the given skew margin.
// A nil clock defaults to time.Now.
func NewInspector(skew time.Duration, now func() time.Time) *Inspector {
	if now == nil {
		now = time.Now
	}
	if skew < 0 {
		skew = 0
	}
	return &Inspector{
		parser: jwt.NewParser(),
		skew:   skew,
		now:    now,
	}
}

// Decode parses the token payload. Any structural problem, including a missing
// exp claim, is reported as model.ErrTokenMalformed.
func (i *Inspector) Decode(token string) (model.Claims, error) {
	if token == "" {
		return model.Claims{}, fmt.Errorf("%w: empty token", model.ErrTokenMalformed)
	}

	c := &claims{}
	if _, _, err := i.parser.ParseUnverified(token, c); err != nil {
		return model.Claims{}, fmt.Errorf("%w: %v", model.ErrTokenMalformed, err)
	}
	if c.ExpiresAt == nil {
		return model.Claims{}, fmt.Errorf("%w: missing exp claim", model.ErrTokenMalformed)
	}

	out := model.Claims{
		Subject:   c.Subject,
		Email:     c.Email,
		Role:      model.Role(c.Role),
		ExpiresAt: c.ExpiresAt.Time,
	}
	if c.IssuedAt != nil {
		out.IssuedAt = c.IssuedAt.Time
	}

	return out, nil
}

// IsExpired reports whether token is absent, undecodable or within skew of exp.
func (i *Inspector) IsExpired(token string) bool {
	return i.IsExpiredAt(token, i.now())
}

// IsExpiredAt is IsExpired evaluated at an explicit instant.
func (i *Inspector) IsExpiredAt(token string, now time.Time) bool {
	c, err := i.Decode(token)
	if err != nil {
		return true
	}
	return !now.Before(c.ExpiresAt.Add(-i.skew))
}

// ExpiresIn returns the time left before the token is treated as expired.
// Non-positive means expired.
func (i *Inspector) ExpiresIn(token string) time.Duration {
	c, err := i.Decode(token)
	if err != nil {
		return 0
	}
	return c.ExpiresAt.Add(-i.skew).Sub(i.now())
}
