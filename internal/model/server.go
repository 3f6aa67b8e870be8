package model

import (
	"context"
	"net"
)

// SecurityLayer opens the listener the portal serves on (plain or TLS).
type SecurityLayer interface {
	Listen(protocol, addr string) (net.Listener, error)
}

// Server is a long-running listener with graceful shutdown.
type Server interface {
	Start(securityLayer SecurityLayer) error
	Stop(ctx context.Context) error
	Address() string
}

// ContextManager carries the session snapshot a guard admitted through a request.
type ContextManager interface {
	SetSessionToContext(ctx context.Context, s Session) context.Context
	GetSessionFromContext(ctx context.Context) (Session, bool)
}
