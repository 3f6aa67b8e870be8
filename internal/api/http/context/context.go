package context

import (
	"context"

	"github.com/dtroode/schoolhub-client/internal/model"
)

type sessionKey struct{}

// Manager stores the admitted session snapshot in request contexts.
type Manager struct{}

var _ model.ContextManager = (*Manager)(nil)

func NewManager() *Manager {
	return &Manager{}
}

// SetSessionToContext returns a copy of ctx carrying s.
func (m *Manager) SetSessionToContext(ctx context.Context, s model.Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// GetSessionFromContext returns the session stored by SetSessionToContext.
func (m *Manager) GetSessionFromContext(ctx context.Context) (model.Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(model.Session)
	return s, ok
}
