package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/dtroode/schoolhub-client/internal/guard"
	"github.com/dtroode/schoolhub-client/internal/model"
)

// SessionReader exposes the current session snapshot.
type SessionReader interface {
	Snapshot() model.Session
}

// Authorizer maps a session and location to a guard decision.
type Authorizer interface {
	Authorize(s model.Session, loc guard.Location) guard.Decision
}

// Guard enforces route policies on every request it wraps.
type Guard struct {
	sessions       SessionReader
	authorizer     Authorizer
	contextManager model.ContextManager
}

func NewGuard(sessions SessionReader, authorizer Authorizer, contextManager model.ContextManager) *Guard {
	return &Guard{sessions: sessions, authorizer: authorizer, contextManager: contextManager}
}

func (g *Guard) Handle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := g.sessions.Snapshot()
		d := g.authorizer.Authorize(s, guard.Location{Path: r.URL.Path, Query: r.URL.RawQuery})

		switch d.Outcome {
		case guard.Allow:
			next.ServeHTTP(w, r.WithContext(g.contextManager.SetSessionToContext(r.Context(), s)))
		case guard.Redirect:
			http.Redirect(w, r, d.Path, http.StatusSeeOther)
		default:
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": model.StatusLoading.String()})
		}
	})
}
