package session

import (
	"testing"

	"github.com/vizstack/broker/internal/vserr"
)

func TestSessionActivateTransitionsToActive(t *testing.T) {
	s := New("c1", 1000, 1000)
	if s.State() != Unauthenticated {
		t.Fatalf("new session state = %v, want Unauthenticated", s.State())
	}
	if err := s.Activate(true); err != nil {
		t.Fatalf("Activate() error = %v", err)
	}
	if s.State() != Active {
		t.Fatalf("state after Activate = %v, want Active", s.State())
	}
}

func TestSessionActivateTwiceFails(t *testing.T) {
	s := New("c1", 1000, 1000)
	if err := s.Activate(false); err != nil {
		t.Fatalf("Activate() error = %v", err)
	}
	err := s.Activate(false)
	if err == nil {
		t.Fatal("expected a second Activate() to fail")
	}
	if vserr.CodeOf(err) != vserr.BadProtocol {
		t.Errorf("CodeOf(err) = %v, want BadProtocol", vserr.CodeOf(err))
	}
}

func TestRequireActiveRejectsUnauthenticated(t *testing.T) {
	s := New("c1", 1000, 1000)
	if err := s.RequireActive(); err == nil {
		t.Fatal("expected RequireActive to fail before activation")
	}
}

func TestSessionOwnershipTracking(t *testing.T) {
	s := New("c1", 1000, 1000)
	s.Own(1)
	s.Own(2)
	if !s.Owns(1) || !s.Owns(2) {
		t.Fatal("expected session to own both allocations")
	}
	s.Disown(1)
	if s.Owns(1) {
		t.Error("expected allocation 1 to be disowned")
	}
	ids := s.OwnedAllocations()
	if len(ids) != 1 || ids[0] != 2 {
		t.Errorf("OwnedAllocations() = %v, want [2]", ids)
	}
}

func TestBeginCloseIsIdempotent(t *testing.T) {
	s := New("c1", 1000, 1000)
	s.BeginClose()
	s.BeginClose()
	if s.State() != Closing {
		t.Fatalf("state = %v, want Closing", s.State())
	}
}

func TestCanAttach(t *testing.T) {
	tests := []struct {
		name      string
		caller    uint32
		owner     uint32
		wantAllow bool
	}{
		{"matching uid", 1000, 1000, true},
		{"root override", 0, 1000, true},
		{"different uid", 1001, 1000, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanAttach(tt.caller, tt.owner); got != tt.wantAllow {
				t.Errorf("CanAttach(%d, %d) = %v, want %v", tt.caller, tt.owner, got, tt.wantAllow)
			}
		})
	}
}
