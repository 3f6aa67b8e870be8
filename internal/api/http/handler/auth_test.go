package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/schoolhub-client/internal/model"
	"github.com/dtroode/schoolhub-client/internal/session"
	"github.com/dtroode/schoolhub-client/internal/testutil"
)

type fakeSessions struct {
	snapshot model.Session

	loginCreds  model.LoginCredentials
	loginFrom   string
	loginResult session.LoginResult

	signupProfile model.SignupProfile
	signupResult  session.SignupResult

	logoutNav model.Navigation
	logoutErr error
}

func (f *fakeSessions) Snapshot() model.Session { return f.snapshot }

func (f *fakeSessions) Login(_ context.Context, creds model.LoginCredentials, returnTo string) session.LoginResult {
	f.loginCreds = creds
	f.loginFrom = returnTo
	return f.loginResult
}

func (f *fakeSessions) Signup(_ context.Context, profile model.SignupProfile) session.SignupResult {
	f.signupProfile = profile
	return f.signupResult
}

func (f *fakeSessions) Logout(context.Context) (model.Navigation, error) {
	return f.logoutNav, f.logoutErr
}

func TestAuth_LoginScreen(t *testing.T) {
	t.Parallel()

	flash := NewFlash()
	flash.Navigate(model.Navigation{Path: "/login", Notice: session.NoticeExpired})
	sessions := &fakeSessions{snapshot: model.Session{Status: model.StatusUnauthenticated, LastError: "Invalid email or password."}}
	h := NewAuth(sessions, flash, testutil.MakeNoopLogger())

	req := httptest.NewRequest(http.MethodGet, "/login?from=%2Fprofile", nil)
	rec := httptest.NewRecorder()
	h.LoginScreen(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"notice": "Your session has expired. Please log in again.",
		"from": "/profile",
		"lastError": "Invalid email or password."
	}`, rec.Body.String())

	// The notice is shown once.
	rec = httptest.NewRecorder()
	h.LoginScreen(rec, httptest.NewRequest(http.MethodGet, "/login", nil))
	assert.JSONEq(t, `{"lastError": "Invalid email or password."}`, rec.Body.String())
}

func TestAuth_Login(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		contentType  string
		body         string
		target       string
		result       session.LoginResult
		wantStatus   int
		wantLocation string
		wantError    string
		wantFrom     string
	}{
		{
			name:         "json success",
			contentType:  "application/json",
			body:         `{"email":"t@school.io","password":"pw","from":"/teacher/classes"}`,
			target:       "/login",
			result:       session.LoginResult{Redirect: "/teacher/classes"},
			wantStatus:   http.StatusSeeOther,
			wantLocation: "/teacher/classes",
			wantFrom:     "/teacher/classes",
		},
		{
			name:         "form success with origin in query",
			contentType:  "application/x-www-form-urlencoded",
			body:         url.Values{"email": {"t@school.io"}, "password": {"pw"}}.Encode(),
			target:       "/login?from=%2Fprofile",
			result:       session.LoginResult{Redirect: "/profile"},
			wantStatus:   http.StatusSeeOther,
			wantLocation: "/profile",
			wantFrom:     "/profile",
		},
		{
			name:        "rejected credentials",
			contentType: "application/json",
			body:        `{"email":"t@school.io","password":"bad"}`,
			target:      "/login",
			result: session.LoginResult{Err: &model.GatewayError{
				Op: "login", Kind: model.KindCredential, Status: http.StatusUnauthorized, Message: "Invalid credentials",
			}},
			wantStatus: http.StatusUnauthorized,
			wantError:  "Invalid credentials",
		},
		{
			name:        "backend unreachable",
			contentType: "application/json",
			body:        `{"email":"t@school.io","password":"pw"}`,
			target:      "/login",
			result:      session.LoginResult{Err: &model.GatewayError{Op: "login", Kind: model.KindNetwork, Message: "dial"}},
			wantStatus:  http.StatusBadGateway,
			wantError:   "Unable to reach the server. Please try again.",
		},
		{
			name:        "not initialized",
			contentType: "application/json",
			body:        `{"email":"t@school.io","password":"pw"}`,
			target:      "/login",
			result:      session.LoginResult{Err: model.ErrNotInitialized},
			wantStatus:  http.StatusServiceUnavailable,
		},
		{
			name:        "superseded",
			contentType: "application/json",
			body:        `{"email":"t@school.io","password":"pw"}`,
			target:      "/login",
			result:      session.LoginResult{Err: session.ErrSuperseded},
			wantStatus:  http.StatusConflict,
		},
		{
			name:        "missing password",
			contentType: "application/json",
			body:        `{"email":"t@school.io"}`,
			target:      "/login",
			wantStatus:  http.StatusBadRequest,
			wantError:   "email and password are required",
		},
		{
			name:        "malformed json",
			contentType: "application/json",
			body:        `{"email":`,
			target:      "/login",
			wantStatus:  http.StatusBadRequest,
			wantError:   "malformed login request",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			sessions := &fakeSessions{loginResult: tt.result}
			h := NewAuth(sessions, NewFlash(), testutil.MakeNoopLogger())

			req := httptest.NewRequest(http.MethodPost, tt.target, strings.NewReader(tt.body))
			req.Header.Set("Content-Type", tt.contentType)
			rec := httptest.NewRecorder()
			h.Login(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantLocation != "" {
				assert.Equal(t, tt.wantLocation, rec.Header().Get("Location"))
				assert.Equal(t, "t@school.io", sessions.loginCreds.Email)
				assert.Equal(t, tt.wantFrom, sessions.loginFrom)
			}
			if tt.wantError != "" {
				assert.Contains(t, rec.Body.String(), tt.wantError)
			}
		})
	}
}

func TestAuth_Signup(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		body       string
		result     session.SignupResult
		wantStatus int
		wantBody   string
	}{
		{
			name:       "created",
			body:       `{"name":"Ann","email":"ann@school.io","password":"pw","phone":"555","role":"student"}`,
			result:     session.SignupResult{Confirmation: model.SignupConfirmation{Message: "Registered"}},
			wantStatus: http.StatusCreated,
			wantBody:   `{"message":"Registered"}`,
		},
		{
			name:       "created without message",
			body:       `{"name":"Ann","email":"ann@school.io","password":"pw","role":"student"}`,
			wantStatus: http.StatusCreated,
			wantBody:   `{"message":"Account created. Please log in."}`,
		},
		{
			name: "email taken",
			body: `{"name":"Ann","email":"ann@school.io","password":"pw","role":"student"}`,
			result: session.SignupResult{Err: &model.GatewayError{
				Op: "signup", Kind: model.KindCredential, Status: http.StatusConflict, Message: "Email already registered",
			}},
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"error":"Email already registered"}`,
		},
		{
			name:       "missing name",
			body:       `{"email":"ann@school.io","password":"pw"}`,
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"error":"name, email and password are required"}`,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			sessions := &fakeSessions{signupResult: tt.result}
			h := NewAuth(sessions, NewFlash(), testutil.MakeNoopLogger())

			req := httptest.NewRequest(http.MethodPost, "/signup", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			h.Signup(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.JSONEq(t, tt.wantBody, rec.Body.String())
		})
	}
}

func TestAuth_Signup_PassesProfile(t *testing.T) {
	t.Parallel()

	sessions := &fakeSessions{}
	h := NewAuth(sessions, NewFlash(), testutil.MakeNoopLogger())

	form := url.Values{
		"name":     {"Ann"},
		"email":    {"ann@school.io"},
		"password": {"pw"},
		"phone":    {"555"},
		"role":     {"parent"},
	}
	req := httptest.NewRequest(http.MethodPost, "/signup", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.Signup(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, model.SignupProfile{
		Name:     "Ann",
		Email:    "ann@school.io",
		Password: "pw",
		Phone:    "555",
		Role:     model.RoleParent,
	}, sessions.signupProfile)
}

func TestAuth_Logout(t *testing.T) {
	t.Parallel()

	sessions := &fakeSessions{logoutNav: model.Navigation{Path: "/login"}}
	h := NewAuth(sessions, NewFlash(), testutil.MakeNoopLogger())

	rec := httptest.NewRecorder()
	h.Logout(rec, httptest.NewRequest(http.MethodPost, "/logout", nil))

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
}

func TestAuth_Logout_NotInitialized(t *testing.T) {
	t.Parallel()

	sessions := &fakeSessions{logoutErr: model.ErrNotInitialized}
	h := NewAuth(sessions, NewFlash(), testutil.MakeNoopLogger())

	rec := httptest.NewRecorder()
	h.Logout(rec, httptest.NewRequest(http.MethodPost, "/logout", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
