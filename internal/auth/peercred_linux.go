//go:build linux

package auth

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// PeerCredentials returns the kernel-verified uid/gid of conn's peer via
// SO_PEERCRED. conn must be a *net.UnixConn, which is always true for
// the broker's local (filesystem) endpoint.
func PeerCredentials(conn net.Conn) (Identity, error) {
	uc, ok := conn.(*net.UnixConn)
	if !ok {
		return Identity{}, fmt.Errorf("auth: not a unix connection")
	}

	raw, err := uc.SyscallConn()
	if err != nil {
		return Identity{}, fmt.Errorf("auth: syscall conn: %w", err)
	}

	var cred *unix.Ucred
	var credErr error
	if err := raw.Control(func(fd uintptr) {
		cred, credErr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	}); err != nil {
		return Identity{}, fmt.Errorf("auth: control: %w", err)
	}
	if credErr != nil {
		return Identity{}, fmt.Errorf("auth: getsockopt SO_PEERCRED: %w", credErr)
	}

	return Identity{UID: cred.Uid, GID: cred.Gid}, nil
}
