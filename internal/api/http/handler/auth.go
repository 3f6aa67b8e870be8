package handler

import (
	"context"
	"encoding/json"
	"io"
	"mime"
	"net/http"

	"github.com/dtroode/schoolhub-client/internal/logger"
	"github.com/dtroode/schoolhub-client/internal/model"
	"github.com/dtroode/schoolhub-client/internal/session"
)

const maxBodySize = 64 << 10

// SessionService defines the session operations the portal drives.
type SessionService interface {
	Snapshot() model.Session
	Login(ctx context.Context, creds model.LoginCredentials, returnTo string) session.LoginResult
	Signup(ctx context.Context, profile model.SignupProfile) session.SignupResult
	Logout(ctx context.Context) (model.Navigation, error)
}

// Notices hands out notices queued for the login screen.
type Notices interface {
	Take() string
}

// Auth handles the login, signup and logout screens.
type Auth struct {
	sessions SessionService
	notices  Notices
	logger   *logger.Logger
}

func NewAuth(sessions SessionService, notices Notices, logger *logger.Logger) *Auth {
	return &Auth{sessions: sessions, notices: notices, logger: logger}
}

type loginScreen struct {
	Notice    string `json:"notice,omitempty"`
	From      string `json:"from,omitempty"`
	LastError string `json:"lastError,omitempty"`
}

// LoginScreen returns what the login form needs to render.
func (h *Auth) LoginScreen(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, loginScreen{
		Notice:    h.notices.Take(),
		From:      r.URL.Query().Get("from"),
		LastError: h.sessions.Snapshot().LastError,
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	From     string `json:"from"`
}

// Login authenticates and redirects to the restored or default route.
func (h *Auth) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeRequest(r, &req, func(form map[string][]string) {
		req.Email = first(form, "email")
		req.Password = first(form, "password")
		req.From = first(form, "from")
	}); err != nil {
		writeError(w, http.StatusBadRequest, "malformed login request")
		return
	}
	if req.From == "" {
		req.From = r.URL.Query().Get("from")
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	res := h.sessions.Login(r.Context(), model.LoginCredentials{Email: req.Email, Password: req.Password}, req.From)
	if !res.OK() {
		h.logger.Debug("Auth handler: login failed",
			"email", req.Email,
			"error", res.Err.Error())
		writeError(w, statusForError(res.Err, http.StatusUnauthorized), session.UserMessage(res.Err))
		return
	}

	http.Redirect(w, r, res.Redirect, http.StatusSeeOther)
}

type signupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone"`
	Role     string `json:"role"`
}

type signupResponse struct {
	Message string `json:"message"`
}

// Signup registers an account. The user still has to log in afterwards.
func (h *Auth) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeRequest(r, &req, func(form map[string][]string) {
		req.Name = first(form, "name")
		req.Email = first(form, "email")
		req.Password = first(form, "password")
		req.Phone = first(form, "phone")
		req.Role = first(form, "role")
	}); err != nil {
		writeError(w, http.StatusBadRequest, "malformed signup request")
		return
	}
	if req.Email == "" || req.Password == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "name, email and password are required")
		return
	}

	res := h.sessions.Signup(r.Context(), model.SignupProfile{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Phone:    req.Phone,
		Role:     model.Role(req.Role),
	})
	if !res.OK() {
		writeError(w, statusForError(res.Err, http.StatusBadRequest), session.UserMessage(res.Err))
		return
	}

	msg := res.Confirmation.Message
	if msg == "" {
		msg = "Account created. Please log in."
	}
	writeJSON(w, http.StatusCreated, signupResponse{Message: msg})
}

// Logout ends the session and redirects to the login screen.
func (h *Auth) Logout(w http.ResponseWriter, r *http.Request) {
	nav, err := h.sessions.Logout(r.Context())
	if err != nil {
		writeError(w, statusForError(err, http.StatusInternalServerError), session.UserMessage(err))
		return
	}
	http.Redirect(w, r, nav.Path, http.StatusSeeOther)
}

// decodeRequest reads a JSON body into dst, or hands form values to fromForm.
func decodeRequest(r *http.Request, dst any, fromForm func(map[string][]string)) error {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		return json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(dst)
	}
	if err := r.ParseForm(); err != nil {
		return err
	}
	fromForm(r.PostForm)
	return nil
}

func first(form map[string][]string, key string) string {
	if v := form[key]; len(v) > 0 {
		return v[0]
	}
	return ""
}
