// Package guard decides whether a session may render a route.
//
// Public, Private and Role are pure functions of the session snapshot and the
// requested location. They never navigate; callers act on the Decision.
package guard

import (
	"net/url"
	"strings"

	"github.com/dtroode/schoolhub-client/internal/model"
)

// Outcome tags a Decision.
type Outcome int

const (
	// Allow renders the route.
	Allow Outcome = iota
	// Defer suspends rendering until the session leaves Loading.
	Defer
	// Redirect sends the client elsewhere.
	Redirect
)

func (o Outcome) String() string {
	switch o {
	case Allow:
		return "allow"
	case Defer:
		return "defer"
	case Redirect:
		return "redirect"
	default:
		return "unknown"
	}
}

// Reason explains a redirect.
type Reason string

const (
	ReasonAuthenticated   Reason = "already_authenticated"
	ReasonUnauthenticated Reason = "unauthenticated"
	ReasonForbidden       Reason = "role_denied"
)

// Location is the route a client asked for.
type Location struct {
	Path  string
	Query string
}

func (l Location) String() string {
	if l.Query == "" {
		return l.Path
	}
	return l.Path + "?" + l.Query
}

// Decision is the result of a guard. Only Outcome is set for Allow and Defer.
type Decision struct {
	Outcome Outcome
	// Path is the full redirect target including its query.
	Path   string
	Reason Reason
	// From is the requested location, kept so login can restore it.
	From string
	// UserRole and Required are set on role denials for diagnostics.
	UserRole model.Role
	Required []model.Role
}

func allow() Decision { return Decision{Outcome: Allow} }

func deferred() Decision { return Decision{Outcome: Defer} }

// Public guards screens meant for signed-out users. A restricted public route
// sends signed-in users to their dashboard.
func Public(s model.Session, loc Location, restricted bool) Decision {
	if s.IsLoading() {
		return deferred()
	}
	if restricted && s.IsAuthenticated() {
		return Decision{
			Outcome:  Redirect,
			Path:     s.Role().DashboardRoute(),
			Reason:   ReasonAuthenticated,
			From:     loc.String(),
			UserRole: s.Role(),
		}
	}
	return allow()
}

// Private requires a signed-in user and preserves the requested location.
func Private(s model.Session, loc Location) Decision {
	if s.IsLoading() {
		return deferred()
	}
	if !s.IsAuthenticated() {
		return Decision{
			Outcome: Redirect,
			Path:    LoginPath(loc.String()),
			Reason:  ReasonUnauthenticated,
			From:    loc.String(),
		}
	}
	return allow()
}

// Role requires a signed-in user whose role is one of allowed.
func Role(s model.Session, loc Location, allowed []model.Role) Decision {
	if d := Private(s, loc); d.Outcome != Allow {
		return d
	}
	if model.ContainsRole(allowed, s.Role()) {
		return allow()
	}
	return Decision{
		Outcome:  Redirect,
		Path:     UnauthorizedPath(s.Role(), allowed),
		Reason:   ReasonForbidden,
		From:     loc.String(),
		UserRole: s.Role(),
		Required: append([]model.Role(nil), allowed...),
	}
}

// LoginPath builds the login route carrying the location to restore.
func LoginPath(from string) string {
	if from == "" {
		return model.LoginRoute
	}
	q := url.Values{"from": {from}}
	return model.LoginRoute + "?" + q.Encode()
}

// UnauthorizedPath builds the denial route with diagnostic parameters.
func UnauthorizedPath(role model.Role, required []model.Role) string {
	names := make([]string, len(required))
	for i, r := range required {
		names[i] = r.String()
	}
	q := url.Values{
		"role":     {role.String()},
		"required": {strings.Join(names, ",")},
	}
	return model.UnauthorizedRoute + "?" + q.Encode()
}
