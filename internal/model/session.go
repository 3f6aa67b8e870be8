package model

// Status is the lifecycle state of the client session.
type Status int

const (
	// StatusLoading means the session is being (re)established; no decision yet.
	StatusLoading Status = iota
	// StatusAuthenticated means a verified user is signed in.
	StatusAuthenticated
	// StatusUnauthenticated means there is no usable session.
	StatusUnauthenticated
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusAuthenticated:
		return "authenticated"
	case StatusUnauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

// Session is a point-in-time copy of the session state.
// User is non-nil iff Status is StatusAuthenticated.
type Session struct {
	Status    Status
	User      *User
	LastError string
}

// IsAuthenticated reports whether a user is signed in.
func (s Session) IsAuthenticated() bool {
	return s.Status == StatusAuthenticated && s.User != nil
}

// IsLoading reports whether the session is still being resolved.
func (s Session) IsLoading() bool {
	return s.Status == StatusLoading
}

// Role returns the signed-in user's role, or "" when signed out.
func (s Session) Role() Role {
	if s.User == nil {
		return ""
	}
	return s.User.Role
}

// Navigation is a navigation intent emitted by the session manager.
type Navigation struct {
	Path   string
	Notice string
}

// Navigator carries out navigation intents in whatever UI hosts the session.
type Navigator interface {
	Navigate(nav Navigation)
}
