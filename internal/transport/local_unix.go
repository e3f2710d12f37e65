//go:build !windows

package transport

import (
	"fmt"
	"net"
	"os"
	"path/filepath"

	"github.com/vizstack/broker/internal/auth"
)

func listenLocal(path string) (net.Listener, error) {
	os.Remove(path)

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0770); err != nil {
		return nil, fmt.Errorf("transport: mkdir %s: %w", dir, err)
	}

	l, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("transport: listen unix %s: %w", path, err)
	}
	if err := os.Chmod(path, 0777); err != nil {
		l.Close()
		return nil, fmt.Errorf("transport: chmod %s: %w", path, err)
	}
	return l, nil
}

func peerIdentity(conn net.Conn) (auth.Identity, error) {
	return auth.PeerCredentials(conn)
}
