package wire

import (
	"net"
	"testing"

	"github.com/vizstack/broker/internal/vserr"
)

func TestWriteReadFrameRoundTrip(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	sc := NewConn(server)
	cc := NewConn(client)

	payload := []byte("<ssm><allocate/></ssm>")
	go func() {
		if err := sc.WriteFrame(payload); err != nil {
			t.Errorf("WriteFrame: %v", err)
		}
	}()

	got, err := cc.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if string(got) != string(payload) {
		t.Fatalf("got %q, want %q", got, payload)
	}
}

func TestReadFrameLengthMismatchIsBadProtocol(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	cc := NewConn(client)

	go func() {
		// Claims 100 bytes of payload but sends only a few, then closes.
		server.Write([]byte("100  "))
		server.Write([]byte("short"))
		server.Close()
	}()

	_, err := cc.ReadFrame()
	if err == nil {
		t.Fatal("expected an error for truncated payload")
	}
	ve, ok := vserr.As(err)
	if !ok || ve.Code != vserr.BadProtocol {
		t.Fatalf("expected BAD_PROTOCOL, got %v", err)
	}
}

func TestReadFrameNonNumericLengthIsBadProtocol(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	cc := NewConn(client)

	go func() {
		server.Write([]byte("abcde"))
	}()

	_, err := cc.ReadFrame()
	ve, ok := vserr.As(err)
	if !ok || ve.Code != vserr.BadProtocol {
		t.Fatalf("expected BAD_PROTOCOL, got %v", err)
	}
}

func TestWriteFrameProducesLeftAlignedPaddedLength(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	sc := NewConn(server)
	payload := []byte("hi")

	done := make(chan struct{})
	var buf [5]byte
	go func() {
		client.Read(buf[:])
		client.Read(make([]byte, len(payload)))
		close(done)
	}()

	if err := sc.WriteFrame(payload); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	<-done
	if string(buf[:]) != "2    " {
		t.Fatalf("got header %q, want %q", buf[:], "2    ")
	}
}
