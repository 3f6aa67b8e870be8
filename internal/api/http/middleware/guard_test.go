package middleware

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpctx "github.com/dtroode/schoolhub-client/internal/api/http/context"
	"github.com/dtroode/schoolhub-client/internal/guard"
	"github.com/dtroode/schoolhub-client/internal/model"
	"github.com/dtroode/schoolhub-client/internal/testutil"
)

type staticSession model.Session

func (s staticSession) Snapshot() model.Session { return model.Session(s) }

func TestGuard_Handle(t *testing.T) {
	t.Parallel()

	table, err := guard.NewTable(guard.DefaultPolicies())
	require.NoError(t, err)
	authz := guard.NewAuthorizer(table, testutil.MakeNoopLogger(), nil)
	ctxMgr := httpctx.NewManager()

	teacher := &model.User{ID: "t-1", Role: model.RoleTeacher}

	tests := []struct {
		name         string
		session      model.Session
		target       string
		wantStatus   int
		wantLocation string
		wantBody     string
	}{
		{
			name:       "loading defers",
			session:    model.Session{Status: model.StatusLoading},
			target:     "/profile",
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   `{"status":"loading"}`,
		},
		{
			name:         "signed out redirected to login with origin",
			session:      model.Session{Status: model.StatusUnauthenticated},
			target:       "/teacher/dashboard?week=3",
			wantStatus:   http.StatusSeeOther,
			wantLocation: "/login?from=" + url.QueryEscape("/teacher/dashboard?week=3"),
		},
		{
			name:         "wrong role redirected to unauthorized",
			session:      model.Session{Status: model.StatusAuthenticated, User: teacher},
			target:       "/admin/dashboard",
			wantStatus:   http.StatusSeeOther,
			wantLocation: "/unauthorized?required=admin&role=teacher",
		},
		{
			name:         "signed in user bounced from login",
			session:      model.Session{Status: model.StatusAuthenticated, User: teacher},
			target:       "/login",
			wantStatus:   http.StatusSeeOther,
			wantLocation: "/teacher/dashboard",
		},
		{
			name:       "allowed",
			session:    model.Session{Status: model.StatusAuthenticated, User: teacher},
			target:     "/teacher/dashboard",
			wantStatus: http.StatusOK,
			wantBody:   "t-1",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				s, ok := ctxMgr.GetSessionFromContext(r.Context())
				require.True(t, ok)
				_, _ = w.Write([]byte(s.User.ID))
			})
			h := NewGuard(staticSession(tt.session), authz, ctxMgr).Handle(next)

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.target, nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantLocation != "" {
				assert.Equal(t, tt.wantLocation, rec.Header().Get("Location"))
			}
			if tt.wantBody != "" {
				assert.Contains(t, rec.Body.String(), tt.wantBody)
			}
			if tt.wantStatus == http.StatusServiceUnavailable {
				assert.Equal(t, "1", rec.Header().Get("Retry-After"))
			}
		})
	}
}
