package model

import (
	"context"
	"fmt"
)

// LoginResponse is the backend's answer to a successful login.
type LoginResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken,omitempty"`
	User         User   `json:"user"`
}

// RefreshResponse carries a freshly minted access token.
type RefreshResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

// SignupConfirmation is the backend's acknowledgement of a registration.
type SignupConfirmation struct {
	Message string `json:"message,omitempty"`
	User    *User  `json:"user,omitempty"`
}

// Gateway performs the network round trips that mutate session state.
type Gateway interface {
	Login(ctx context.Context, creds LoginCredentials) (LoginResponse, error)
	Signup(ctx context.Context, profile SignupProfile) (SignupConfirmation, error)
	Logout(ctx context.Context, accessToken string) error
	Refresh(ctx context.Context, refreshToken string) (RefreshResponse, error)
	WhoAmI(ctx context.Context, accessToken string) (User, error)
}

// GatewayErrorKind classifies gateway failures.
type GatewayErrorKind string

const (
	// KindCredential is a rejected login/signup input.
	KindCredential GatewayErrorKind = "credential"
	// KindUnauthenticated is a 401 on an authenticated call.
	KindUnauthenticated GatewayErrorKind = "unauthenticated"
	// KindServer is a 5xx or an unreadable response.
	KindServer GatewayErrorKind = "server"
	// KindNetwork is a transport failure.
	KindNetwork GatewayErrorKind = "network"
)

// GatewayError is returned by every failed gateway operation.
type GatewayError struct {
	Op      string
	Kind    GatewayErrorKind
	Status  int
	Message string
	Err     error
}

func (e *GatewayError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s (status %d): %s", e.Op, e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Message)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrNotAuthenticated) match unauthenticated failures.
func (e *GatewayError) Is(target error) bool {
	return target == ErrNotAuthenticated && e.Kind == KindUnauthenticated
}
