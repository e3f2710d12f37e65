package auth

import "testing"

func TestMungeWrapUnwrapRoundTrip(t *testing.T) {
	m := NewMunge([]byte("cluster-shared-secret"))
	id := Identity{UID: 1000, GID: 100}
	payload := []byte("<ssm><client cleanupOnDisconnect=\"1\"/></ssm>")

	wrapped, err := m.Wrap(payload, id)
	if err != nil {
		t.Fatalf("Wrap: %v", err)
	}

	gotID, gotPayload, err := m.Unwrap(wrapped)
	if err != nil {
		t.Fatalf("Unwrap: %v", err)
	}
	if gotID != id {
		t.Fatalf("got identity %+v, want %+v", gotID, id)
	}
	if string(gotPayload) != string(payload) {
		t.Fatalf("got payload %q, want %q", gotPayload, payload)
	}
}

func TestMungeUnwrapRejectsTamperedFrame(t *testing.T) {
	m := NewMunge([]byte("cluster-shared-secret"))
	wrapped, err := m.Wrap([]byte("hello"), Identity{UID: 1000})
	if err != nil {
		t.Fatalf("Wrap: %v", err)
	}
	tampered := append([]byte(nil), wrapped...)
	tampered[0] ^= 0xFF

	if _, _, err := m.Unwrap(tampered); err == nil {
		t.Fatal("expected tampered frame to fail verification")
	}
}

func TestMungeUnwrapRejectsWrongKey(t *testing.T) {
	a := NewMunge([]byte("key-a"))
	b := NewMunge([]byte("key-b"))

	wrapped, err := a.Wrap([]byte("hello"), Identity{UID: 42})
	if err != nil {
		t.Fatalf("Wrap: %v", err)
	}
	if _, _, err := b.Unwrap(wrapped); err == nil {
		t.Fatal("expected unwrap under a different key to fail")
	}
}

func TestIdentityIsRoot(t *testing.T) {
	if !(Identity{UID: 0}).IsRoot() {
		t.Fatal("uid 0 should be root")
	}
	if (Identity{UID: 1000}).IsRoot() {
		t.Fatal("uid 1000 should not be root")
	}
}
