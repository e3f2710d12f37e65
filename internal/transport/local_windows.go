//go:build windows

package transport

import (
	"fmt"
	"net"

	"github.com/Microsoft/go-winio"

	"github.com/vizstack/broker/internal/auth"
)

// pipeSecurity grants SYSTEM full control and Interactive Users
// read/write.
const pipeSecurity = "D:P(A;;GA;;;SY)(A;;GRGW;;;IU)"

func listenLocal(path string) (net.Listener, error) {
	cfg := &winio.PipeConfig{
		SecurityDescriptor: pipeSecurity,
		InputBufferSize:    64 * 1024,
		OutputBufferSize:   64 * 1024,
	}
	l, err := winio.ListenPipe(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("transport: listen pipe %s: %w", path, err)
	}
	return l, nil
}

// peerIdentity has no SO_PEERCRED equivalent on a named pipe; the pipe's
// ACL (pipeSecurity) is the access control, so every accepted connection
// is treated as uid 0 for the purposes of VizStack's ownership checks.
func peerIdentity(conn net.Conn) (auth.Identity, error) {
	return auth.Identity{UID: 0, GID: 0}, nil
}
