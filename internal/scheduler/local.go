package scheduler

import (
	"context"

	"github.com/vizstack/broker/internal/launcher"
	"github.com/vizstack/broker/internal/vserr"
)

// Local owns a fixed set of nodes on which it runs commands directly
// (the broker host itself, or hosts reachable without any reservation
// step — e.g. a single-workstation deployment). Reservation is trivial:
// local nodes are never contended by a scheduler, only by the
// allocator's own bookkeeping.
type Local struct {
	nodes []string
}

// NewLocal returns a scheduler that owns the given node names.
func NewLocal(nodes []string) *Local {
	return &Local{nodes: nodes}
}

func (l *Local) Kind() Kind      { return KindLocal }
func (l *Local) Nodes() []string { return l.nodes }

func (l *Local) Reserve(ctx context.Context, nodes []string) (*Reservation, error) {
	owned := make(map[string]bool, len(l.nodes))
	for _, n := range l.nodes {
		owned[n] = true
	}

	r := &Reservation{Launchers: make(map[string]launcher.Launcher)}
	for _, n := range nodes {
		if !owned[n] {
			return nil, vserr.Newf(vserr.ResourceUnavailable, "node %q is not owned by the local scheduler", n)
		}
		r.Nodes = append(r.Nodes, n)
		r.Launchers[n] = launcher.NewLocal(n)
	}
	return r, nil
}
