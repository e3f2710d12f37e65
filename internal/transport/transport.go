// Package transport sets up the broker's two listening endpoints and
// establishes caller identity for each accepted connection: a trusted
// local (filesystem) endpoint whose identity comes
// once from the kernel at accept time, and a TCP endpoint whose frames
// are each wrapped by a pluggable internal/auth.Scheme. Framing itself
// (internal/wire) and command dispatch (internal/dispatcher) are layered
// on top by internal/broker.
package transport

import (
	"fmt"
	"net"

	"github.com/vizstack/broker/internal/auth"
	"github.com/vizstack/broker/internal/logging"
	"github.com/vizstack/broker/internal/wire"
)

var log = logging.L("transport")

// Endpoint is one listening socket plus the trust model for connections
// accepted on it.
type Endpoint struct {
	Name     string
	listener net.Listener

	// Trusted endpoints (the local filesystem socket) resolve identity
	// once per connection via the kernel. Untrusted endpoints (TCP)
	// resolve identity per frame via Scheme.
	Trusted bool
	Scheme  auth.Scheme
}

// ListenLocal opens the trusted local endpoint at path (a Unix domain
// socket on Unix, a named pipe on Windows; see local_unix.go/local_windows.go).
func ListenLocal(path string) (*Endpoint, error) {
	l, err := listenLocal(path)
	if err != nil {
		return nil, err
	}
	log.Info("local endpoint listening", "path", path)
	return &Endpoint{Name: "local", listener: l, Trusted: true}, nil
}

// ListenTCP opens the authenticated TCP endpoint at addr, wrapping every
// frame with scheme.
func ListenTCP(addr string, scheme auth.Scheme) (*Endpoint, error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: listen tcp %s: %w", addr, err)
	}
	log.Info("tcp endpoint listening", "addr", addr, "authScheme", scheme.Name())
	return &Endpoint{Name: "tcp", listener: l, Trusted: false, Scheme: scheme}, nil
}

// Accept waits for the next connection, wraps it in the frame codec,
// and — for a trusted endpoint only — resolves the caller's identity
// from the kernel. An untrusted endpoint's identity is resolved by the
// caller per frame via Scheme.Unwrap, so the returned identity is zero.
func (e *Endpoint) Accept() (*wire.Conn, auth.Identity, error) {
	raw, err := e.listener.Accept()
	if err != nil {
		return nil, auth.Identity{}, err
	}

	if !e.Trusted {
		return wire.NewConn(raw), auth.Identity{}, nil
	}

	id, err := peerIdentity(raw)
	if err != nil {
		raw.Close()
		return nil, auth.Identity{}, fmt.Errorf("transport: peer identity: %w", err)
	}
	return wire.NewConn(raw), id, nil
}

// Close stops accepting new connections on e.
func (e *Endpoint) Close() error {
	return e.listener.Close()
}
