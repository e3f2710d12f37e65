package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"fmt"
)

// Munge is a shared-secret HMAC credential scheme standing in for the
// real Munge daemon's signed credentials: it embeds (uid, gid) in the
// wrapped payload and authenticates the whole thing with HMAC-SHA256
// under a key shared by every trusted host. No nonce or timestamp is
// included.
type Munge struct {
	key []byte
}

// NewMunge returns a Munge scheme keyed by the cluster-wide shared
// secret (read from the master configuration file).
func NewMunge(key []byte) *Munge {
	return &Munge{key: append([]byte(nil), key...)}
}

const muncheHeaderLen = 4 + 4 // uid + gid, both uint32 big-endian

func (m *Munge) Name() string { return "Munge" }

// Wrap prepends (uid, gid) to payload and appends an HMAC-SHA256 tag
// over the whole thing, then base64-encodes the result for transport.
func (m *Munge) Wrap(payload []byte, id Identity) ([]byte, error) {
	body := make([]byte, muncheHeaderLen+len(payload))
	binary.BigEndian.PutUint32(body[0:4], id.UID)
	binary.BigEndian.PutUint32(body[4:8], id.GID)
	copy(body[muncheHeaderLen:], payload)

	mac := hmac.New(sha256.New, m.key)
	mac.Write(body)
	tag := mac.Sum(nil)

	out := append(body, tag...)
	enc := make([]byte, base64.StdEncoding.EncodedLen(len(out)))
	base64.StdEncoding.Encode(enc, out)
	return enc, nil
}

// Unwrap verifies the HMAC tag and recovers (uid, gid, payload). A bad
// tag, short frame, or invalid base64 is a decode failure; the caller
// must disconnect on this error.
func (m *Munge) Unwrap(wrapped []byte) (Identity, []byte, error) {
	raw := make([]byte, base64.StdEncoding.DecodedLen(len(wrapped)))
	n, err := base64.StdEncoding.Decode(raw, wrapped)
	if err != nil {
		return Identity{}, nil, errDecode("Munge", fmt.Sprintf("invalid encoding: %v", err))
	}
	raw = raw[:n]

	if len(raw) < muncheHeaderLen+sha256.Size {
		return Identity{}, nil, errDecode("Munge", "frame too short")
	}

	body := raw[:len(raw)-sha256.Size]
	tag := raw[len(raw)-sha256.Size:]

	mac := hmac.New(sha256.New, m.key)
	mac.Write(body)
	expected := mac.Sum(nil)
	if !hmac.Equal(tag, expected) {
		return Identity{}, nil, errDecode("Munge", "HMAC verification failed")
	}

	id := Identity{
		UID: binary.BigEndian.Uint32(body[0:4]),
		GID: binary.BigEndian.Uint32(body[4:8]),
	}
	payload := append([]byte(nil), body[muncheHeaderLen:]...)
	return id, payload, nil
}
