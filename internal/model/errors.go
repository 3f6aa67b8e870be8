package model

import "errors"

var (
	ErrNotAuthenticated   = errors.New("not authenticated")
	ErrNoRefreshToken     = errors.New("no refresh token")
	ErrTokenMalformed     = errors.New("token malformed")
	ErrUnsupportedRole    = errors.New("unsupported role")
	ErrNotInitialized     = errors.New("session not initialized")
	ErrCorruptCredentials = errors.New("stored credentials are corrupt")
	ErrUnsafeRedirect     = errors.New("unsafe redirect target")
)
