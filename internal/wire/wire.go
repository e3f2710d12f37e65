// Package wire implements the broker's framed message codec: every
// message on the wire is a 5-byte ASCII decimal length (left-aligned,
// space-padded) followed by that many payload bytes, an XML document.
// Writes are serialized so concurrent responders cannot interleave
// frames.
package wire

import (
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/vizstack/broker/internal/logging"
	"github.com/vizstack/broker/internal/vserr"
)

var log = logging.L("wire")

// LengthFieldWidth is the fixed width of the ASCII decimal length prefix.
const LengthFieldWidth = 5

// MaxPayloadSize bounds how large a single frame's payload may be,
// guarding against a malformed or hostile length field causing an
// unbounded allocation.
const MaxPayloadSize = 16 << 20 // 16MB

// Conn wraps a net.Conn with the length-prefixed frame codec. Reads and
// writes are safe to call from different goroutines; concurrent writers
// must still coordinate since frames must not interleave.
type Conn struct {
	conn net.Conn
	mu   sync.Mutex
}

// NewConn wraps a raw stream connection (unix or tcp) in the frame codec.
func NewConn(conn net.Conn) *Conn {
	return &Conn{conn: conn}
}

// Close closes the underlying connection.
func (c *Conn) Close() error { return c.conn.Close() }

// RemoteAddr returns the remote address of the underlying connection.
func (c *Conn) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

// SetDeadline sets a read/write deadline on the underlying connection.
func (c *Conn) SetDeadline(t time.Time) error { return c.conn.SetDeadline(t) }

// ReadFrame reads one length-prefixed frame and returns its payload. A
// malformed length field (non-numeric, non-positive, or mismatched
// against what was actually sent) is reported as a *vserr.Error with
// code BadProtocol; callers must fail the connection when they see
// this error rather than retry.
func (c *Conn) ReadFrame() ([]byte, error) {
	header := make([]byte, LengthFieldWidth)
	if _, err := io.ReadFull(c.conn, header); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, vserr.Newf(vserr.BadProtocol, "wire: short read on length header: %v", err)
	}

	length, err := parseLength(header)
	if err != nil {
		return nil, vserr.Newf(vserr.BadProtocol, "wire: malformed length field %q: %v", header, err)
	}
	if length <= 0 {
		return nil, vserr.Newf(vserr.BadProtocol, "wire: non-positive length field %q", header)
	}
	if length > MaxPayloadSize {
		return nil, vserr.Newf(vserr.BadProtocol, "wire: payload length %d exceeds maximum %d", length, MaxPayloadSize)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(c.conn, payload); err != nil {
		return nil, vserr.Newf(vserr.BadProtocol, "wire: short read on payload (wanted %d bytes): %v", length, err)
	}
	return payload, nil
}

// WriteFrame writes payload as one length-prefixed frame.
func (c *Conn) WriteFrame(payload []byte) error {
	if len(payload) > MaxPayloadSize {
		return fmt.Errorf("wire: payload of %d bytes exceeds maximum %d", len(payload), MaxPayloadSize)
	}
	header := fmt.Sprintf("%-*d", LengthFieldWidth, len(payload))
	if len(header) != LengthFieldWidth {
		// len(payload) has more digits than the field allows.
		return fmt.Errorf("wire: payload length %d does not fit in a %d-byte length field", len(payload), LengthFieldWidth)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.conn.Write([]byte(header)); err != nil {
		return fmt.Errorf("wire: write length header: %w", err)
	}
	if _, err := c.conn.Write(payload); err != nil {
		return fmt.Errorf("wire: write payload: %w", err)
	}
	return nil
}

// parseLength parses the 5-byte ASCII decimal length field, trimming
// trailing padding spaces.
func parseLength(header []byte) (int, error) {
	s := strings.TrimRight(string(header), " ")
	if s == "" {
		return 0, fmt.Errorf("empty length field")
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	return n, nil
}
