// Package auth wraps and unwraps messages on the broker's two transport
// endpoints. On the local (filesystem) endpoint, every frame passes
// verbatim and the peer's kernel-verified uid/gid (from SO_PEERCRED,
// looked up once at accept time) is the caller identity, trusted for the
// life of the connection. On the TCP endpoint every frame is wrapped by
// a pluggable authenticating envelope; the only defined scheme is a
// Munge-style shared-secret credential.
//
// PeerCredentials (one implementation per platform in peercred_*.go)
// backs the local endpoint's identity, and the HMAC-SHA256 envelope in
// munge.go backs the Munge scheme; there is no libmunge binding.
package auth

import (
	"github.com/vizstack/broker/internal/vserr"
)

// Identity is the authenticated caller of a connection or frame.
type Identity struct {
	UID uint32
	GID uint32
}

// IsRoot reports whether this identity is uid 0, which the protocol
// grants elevated privilege (refresh_resource_groups, attach to any
// allocation).
func (id Identity) IsRoot() bool { return id.UID == 0 }

// Scheme wraps/unwraps a payload for transmission over an untrusted
// transport, embedding the caller's identity in the wrapped form.
type Scheme interface {
	Name() string
	Wrap(payload []byte, id Identity) ([]byte, error)
	Unwrap(wrapped []byte) (Identity, []byte, error)
}

// Local is the trust model for the filesystem endpoint: identity is
// established once via the kernel (SO_PEERCRED) at accept time, and
// every subsequent frame on the connection passes through unchanged.
type Local struct {
	Identity Identity
}

// Authenticated returns the identity verified at connection accept,
// independent of any per-message envelope.
func (l Local) Authenticated() (Identity, error) {
	return l.Identity, nil
}

// errDecode reports a frame that failed to decode under a Scheme: the
// caller (internal/dispatcher, internal/transport) must disconnect the
// client rather than retry.
func errDecode(scheme, msg string) error {
	return vserr.Newf(vserr.SocketError, "auth: %s: %s", scheme, msg)
}
