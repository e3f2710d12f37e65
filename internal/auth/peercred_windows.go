//go:build windows

package auth

import (
	"fmt"
	"net"
)

// PeerCredentials has no SO_PEERCRED equivalent over a Windows named
// pipe; the local endpoint on Windows (backed by go-winio, see
// internal/transport) instead relies on named-pipe ACLs to restrict
// which principals may connect at all; per-connection uid/gid mapping
// is not implemented.
func PeerCredentials(conn net.Conn) (Identity, error) {
	return Identity{}, fmt.Errorf("auth: peer credential lookup is not supported on windows; restrict the named pipe ACL instead")
}
