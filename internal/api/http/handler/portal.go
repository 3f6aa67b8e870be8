package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dtroode/schoolhub-client/internal/model"
)

// Portal serves the session-aware screens behind the guards.
type Portal struct {
	sessions       SessionService
	contextManager model.ContextManager
}

func NewPortal(sessions SessionService, contextManager model.ContextManager) *Portal {
	return &Portal{sessions: sessions, contextManager: contextManager}
}

type sessionResponse struct {
	Status    string      `json:"status"`
	User      *model.User `json:"user,omitempty"`
	LastError string      `json:"lastError,omitempty"`
}

// Session reports the current session state.
func (h *Portal) Session(w http.ResponseWriter, r *http.Request) {
	s := h.sessions.Snapshot()
	writeJSON(w, http.StatusOK, sessionResponse{
		Status:    s.Status.String(),
		User:      s.User,
		LastError: s.LastError,
	})
}

type unauthorizedResponse struct {
	Role     string   `json:"role"`
	Required []string `json:"required"`
}

// Unauthorized explains a role denial.
func (h *Portal) Unauthorized(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	required := []string{}
	if raw := q.Get("required"); raw != "" {
		required = strings.Split(raw, ",")
	}
	writeJSON(w, http.StatusForbidden, unauthorizedResponse{
		Role:     q.Get("role"),
		Required: required,
	})
}

// Profile returns the signed-in user.
func (h *Portal) Profile(w http.ResponseWriter, r *http.Request) {
	s, ok := h.contextManager.GetSessionFromContext(r.Context())
	if !ok || s.User == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	writeJSON(w, http.StatusOK, s.User)
}

type dashboardResponse struct {
	Dashboard model.Role `json:"dashboard"`
	User      model.User `json:"user"`
}

// Dashboard serves the landing screen of a role.
func (h *Portal) Dashboard(w http.ResponseWriter, r *http.Request) {
	role, err := model.ParseRole(chi.URLParam(r, "role"))
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown dashboard")
		return
	}

	s, ok := h.contextManager.GetSessionFromContext(r.Context())
	if !ok || s.User == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	if s.Role() != role {
		writeError(w, http.StatusForbidden, "dashboard belongs to another role")
		return
	}

	writeJSON(w, http.StatusOK, dashboardResponse{Dashboard: role, User: *s.User})
}

// Home sends a signed-in user to their dashboard.
func (h *Portal) Home(w http.ResponseWriter, r *http.Request) {
	s, ok := h.contextManager.GetSessionFromContext(r.Context())
	if !ok || s.User == nil {
		http.Redirect(w, r, model.LoginRoute, http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, s.Role().DashboardRoute(), http.StatusSeeOther)
}
