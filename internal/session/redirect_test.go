package session

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/schoolhub-client/internal/model"
)

func TestSanitizeReturnTo(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{name: "empty", raw: "", want: ""},
		{name: "blank", raw: "   ", want: ""},
		{name: "local path", raw: "/admin/dashboard", want: "/admin/dashboard"},
		{name: "local path with query", raw: "/teacher/classes?id=4", want: "/teacher/classes?id=4"},
		{name: "fragment dropped", raw: "/profile#top", want: "/profile"},
		{name: "login screen", raw: "/login", want: ""},
		{name: "unauthorized screen", raw: "/unauthorized?role=parent", want: ""},
		{name: "absolute url", raw: "https://evil.example/x", wantErr: true},
		{name: "protocol relative", raw: "//evil.example/x", wantErr: true},
		{name: "backslash trick", raw: "/\\evil.example", wantErr: true},
		{name: "encoded slash", raw: "/%2Fevil.example/x", wantErr: true},
		{name: "encoded slash lowercase", raw: "/%2fevil.example", wantErr: true},
		{name: "encoded backslash", raw: "/%5Cevil.example", wantErr: true},
		{name: "encoded newline", raw: "/ok%0D%0ALocation:%20//evil.example", wantErr: true},
		{name: "escaped segment kept escaped", raw: "/teacher/classes/a%20b", want: "/teacher/classes/a%20b"},
		{name: "relative path", raw: "admin/dashboard", wantErr: true},
		{name: "header injection", raw: "/ok\r\nSet-Cookie: x=1", wantErr: true},
		{name: "javascript scheme", raw: "javascript:alert(1)", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := SanitizeReturnTo(tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, model.ErrUnsafeRedirect)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUserMessage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{
			name: "credential with message",
			err:  &model.GatewayError{Kind: model.KindCredential, Message: "Invalid credentials"},
			want: "Invalid credentials",
		},
		{
			name: "credential without message",
			err:  &model.GatewayError{Kind: model.KindCredential},
			want: "Invalid email or password.",
		},
		{
			name: "network",
			err:  fmt.Errorf("wrapped: %w", &model.GatewayError{Kind: model.KindNetwork}),
			want: "Unable to reach the server. Please try again.",
		},
		{
			name: "server",
			err:  &model.GatewayError{Kind: model.KindServer, Status: 500},
			want: "The server could not process the request. Please try again later.",
		},
		{
			name: "unsupported role",
			err:  fmt.Errorf("%w: %q", model.ErrUnsupportedRole, "janitor"),
			want: "Your account role is not supported by this portal.",
		},
		{name: "other", err: errors.New("boom"), want: "Something went wrong. Please try again."},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, UserMessage(tt.err))
		})
	}
}
