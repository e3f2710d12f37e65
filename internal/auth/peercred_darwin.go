//go:build darwin

package auth

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// PeerCredentials returns the kernel-verified uid/gid of conn's peer via
// LOCAL_PEERCRED (xucred).
func PeerCredentials(conn net.Conn) (Identity, error) {
	uc, ok := conn.(*net.UnixConn)
	if !ok {
		return Identity{}, fmt.Errorf("auth: not a unix connection")
	}

	raw, err := uc.SyscallConn()
	if err != nil {
		return Identity{}, fmt.Errorf("auth: syscall conn: %w", err)
	}

	var uid, gid uint32
	var credErr error
	if err := raw.Control(func(fd uintptr) {
		xcred, err := unix.GetsockoptXucred(int(fd), unix.SOL_LOCAL, unix.LOCAL_PEERCRED)
		if err != nil {
			credErr = fmt.Errorf("auth: getsockopt LOCAL_PEERCRED: %w", err)
			return
		}
		uid = xcred.Uid
		if len(xcred.Groups) > 0 {
			gid = xcred.Groups[0]
		}
	}); err != nil {
		return Identity{}, fmt.Errorf("auth: control: %w", err)
	}
	if credErr != nil {
		return Identity{}, credErr
	}

	return Identity{UID: uid, GID: gid}, nil
}
