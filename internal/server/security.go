package server

import (
	"crypto/tls"
	"fmt"
	"net"

	"github.com/dtroode/schoolhub-client/internal/model"
)

// TLSListener opens listeners that terminate TLS with a certificate from disk.
type TLSListener struct {
	certFileName       string
	privateKeyFileName string
}

var _ model.SecurityLayer = (*TLSListener)(nil)

// NewTLSListener creates a TLSListener for the given PEM certificate and key.
func NewTLSListener(certFileName, privateKeyFileName string) *TLSListener {
	return &TLSListener{
		certFileName:       certFileName,
		privateKeyFileName: privateKeyFileName,
	}
}

// Listen loads the key pair and listens on addr.
func (l *TLSListener) Listen(protocol, addr string) (net.Listener, error) {
	cert, err := tls.LoadX509KeyPair(l.certFileName, l.privateKeyFileName)
	if err != nil {
		return nil, fmt.Errorf("failed to load TLS certificate: %w", err)
	}

	ln, err := tls.Listen(protocol, addr, &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return ln, nil
}

// PlainListener opens unencrypted listeners. Use it behind a terminating proxy
// or for local development only: the portal forwards credentials.
type PlainListener struct{}

var _ model.SecurityLayer = (*PlainListener)(nil)

func NewPlainListener() *PlainListener {
	return &PlainListener{}
}

func (l *PlainListener) Listen(protocol, addr string) (net.Listener, error) {
	ln, err := net.Listen(protocol, addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return ln, nil
}
