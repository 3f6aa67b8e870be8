package session

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/dtroode/schoolhub-client/internal/model"
)

// SanitizeReturnTo accepts only local absolute paths. It returns "" with no
// error for an empty target and for the auth screens themselves.
func SanitizeReturnTo(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}

	if !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.ContainsAny(raw, "\\\r\n") {
		return "", fmt.Errorf("%w: %q", model.ErrUnsafeRedirect, raw)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", model.ErrUnsafeRedirect, err)
	}
	if u.Scheme != "" || u.Host != "" || u.User != nil {
		return "", fmt.Errorf("%w: %q", model.ErrUnsafeRedirect, raw)
	}
	// Percent-encoded slashes and backslashes decode into the same tricks.
	if strings.HasPrefix(u.Path, "//") || strings.ContainsAny(u.Path, "\\\r\n") {
		return "", fmt.Errorf("%w: %q", model.ErrUnsafeRedirect, raw)
	}

	if u.Path == model.LoginRoute || u.Path == model.UnauthorizedRoute {
		return "", nil
	}

	out := u.EscapedPath()
	if u.RawQuery != "" {
		out += "?" + u.RawQuery
	}
	return out, nil
}

// UserMessage turns an operation error into text fit for the login screen.
func UserMessage(err error) string {
	var gwErr *model.GatewayError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &gwErr):
		switch gwErr.Kind {
		case model.KindCredential:
			if gwErr.Message != "" {
				return gwErr.Message
			}
			return "Invalid email or password."
		case model.KindNetwork:
			return "Unable to reach the server. Please try again."
		default:
			return "The server could not process the request. Please try again later."
		}
	case errors.Is(err, model.ErrUnsupportedRole):
		return "Your account role is not supported by this portal."
	case errors.Is(err, model.ErrNotInitialized):
		return "The session is still loading. Please try again."
	default:
		return "Something went wrong. Please try again."
	}
}
