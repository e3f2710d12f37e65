// Package session implements the per-connection state machine that
// owns allocations and enforces ownership and cleanup-on-disconnect:
// connection identity, touch/idle tracking, and the attach
// authorization rule.
package session

import (
	"sync"
	"time"

	"github.com/vizstack/broker/internal/logging"
	"github.com/vizstack/broker/internal/vserr"
)

var log = logging.L("session")

// State is a position in the session machine.
type State int

const (
	Unauthenticated State = iota
	Active
	Closing
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case Active:
		return "active"
	case Closing:
		return "closing"
	default:
		return "unknown"
	}
}

// Session is the per-connection context: identity, state, and the set
// of allocation ids it owns. The broker package is responsible for
// mapping those ids back to resource.Allocation values; this package
// only tracks ownership and the state machine.
type Session struct {
	ID  string
	UID uint32
	GID uint32

	ConnectedAt time.Time
	LastSeen    time.Time

	CleanupOnDisconnect bool

	mu          sync.Mutex
	state       State
	allocations map[int]bool
}

// New creates a session in the Unauthenticated state.
func New(id string, uid, gid uint32) *Session {
	return &Session{
		ID:          id,
		UID:         uid,
		GID:         gid,
		ConnectedAt: time.Now(),
		LastSeen:    time.Now(),
		state:       Unauthenticated,
		allocations: make(map[int]bool),
	}
}

// Activate transitions Unauthenticated -> Active once the client hello
// has been accepted (and, on an authenticated endpoint, verified).
func (s *Session) Activate(cleanupOnDisconnect bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Unauthenticated {
		return vserr.Newf(vserr.BadProtocol, "session %s: cannot activate from state %s", s.ID, s.state)
	}
	s.CleanupOnDisconnect = cleanupOnDisconnect
	s.state = Active
	log.Debug("session activated", "session", s.ID, "uid", s.UID, "cleanupOnDisconnect", cleanupOnDisconnect)
	return nil
}

// State returns the current machine state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// RequireActive returns a BAD_PROTOCOL error unless the session is Active.
func (s *Session) RequireActive() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Active {
		return vserr.Newf(vserr.BadProtocol, "session %s: command requires an active session, got %s", s.ID, s.state)
	}
	return nil
}

// BeginClose transitions to Closing. Idempotent.
func (s *Session) BeginClose() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Closing {
		return
	}
	s.state = Closing
	log.Debug("session closing", "session", s.ID, "uid", s.UID, "ownedAllocations", len(s.allocations))
}

// Touch records activity for idle tracking.
func (s *Session) Touch() {
	s.mu.Lock()
	s.LastSeen = time.Now()
	s.mu.Unlock()
}

// IdleDuration reports how long since the last recorded activity.
func (s *Session) IdleDuration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.LastSeen)
}

// Own records that this session holds allocation id.
func (s *Session) Own(allocID int) {
	s.mu.Lock()
	s.allocations[allocID] = true
	s.mu.Unlock()
}

// Disown removes allocation id from this session's ownership set,
// e.g. after a deallocate or a successful attach transferring it away.
func (s *Session) Disown(allocID int) {
	s.mu.Lock()
	delete(s.allocations, allocID)
	s.mu.Unlock()
}

// Owns reports whether this session currently owns allocation id.
func (s *Session) Owns(allocID int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.allocations[allocID]
}

// OwnedAllocations returns a snapshot of the allocation ids this session
// owns, for cleanup-on-disconnect.
func (s *Session) OwnedAllocations() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int, 0, len(s.allocations))
	for id := range s.allocations {
		ids = append(ids, id)
	}
	return ids
}

// CanAttach reports whether uid may attach to an allocation owned by
// ownerUID: the caller must either be that owner or uid 0.
func CanAttach(callerUID, ownerUID uint32) bool {
	return callerUID == ownerUID || callerUID == 0
}

// Info is a serializable summary of a session for status reporting.
type Info struct {
	ID                  string
	UID                 uint32
	State               string
	ConnectedAt         time.Time
	LastSeen            time.Time
	CleanupOnDisconnect bool
	Allocations         []int
}

func (s *Session) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int, 0, len(s.allocations))
	for id := range s.allocations {
		ids = append(ids, id)
	}
	return Info{
		ID:                  s.ID,
		UID:                 s.UID,
		State:               s.state.String(),
		ConnectedAt:         s.ConnectedAt,
		LastSeen:            s.LastSeen,
		CleanupOnDisconnect: s.CleanupOnDisconnect,
		Allocations:         ids,
	}
}
