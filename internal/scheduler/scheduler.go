// Package scheduler adapts node reservation to one of three backing
// kinds — local, ssh, and batch — and enforces that each configured
// node is owned by exactly one scheduler instance.
package scheduler

import (
	"context"

	"github.com/vizstack/broker/internal/launcher"
	"github.com/vizstack/broker/internal/logging"
	"github.com/vizstack/broker/internal/vserr"
)

var log = logging.L("scheduler")

// Kind identifies a scheduler adapter variant.
type Kind string

const (
	KindLocal Kind = "local"
	KindSSH   Kind = "ssh"
	KindBatch Kind = "batch"
)

// Reservation is a granted set of nodes plus the launcher bound to each.
type Reservation struct {
	// Nodes is the set of node names actually granted. Partial success
	// is never returned by Reserve: either every requested node is here
	// or Reserve returned an error.
	Nodes []string
	// Launchers maps node name to the launcher that runs commands there
	// for the lifetime of this reservation.
	Launchers map[string]launcher.Launcher
}

// Release returns the reservation's nodes to the scheduler, cancelling
// any backing batch job. Safe to call once; idempotent thereafter.
func (r *Reservation) Release() error {
	var firstErr error
	for _, l := range r.Launchers {
		if err := l.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Scheduler reserves nodes of a single kind and runs commands on them.
type Scheduler interface {
	Kind() Kind
	// Nodes lists every node name this scheduler instance owns.
	Nodes() []string
	// Reserve attempts to claim exactly the given nodes. All-or-nothing:
	// on any failure no partial reservation is left behind.
	Reserve(ctx context.Context, nodes []string) (*Reservation, error)
}

// Metascheduler dispatches reservation requests to the scheduler
// instance that owns each requested node, and validates at
// construction time that no node is claimed twice.
type Metascheduler struct {
	byNode map[string]Scheduler
	all    []Scheduler
}

// NewMetascheduler validates node-ownership across schedulers and
// returns a dispatcher, or a BAD_CONFIGURATION error if any node is
// claimed by more than one scheduler instance.
func NewMetascheduler(schedulers []Scheduler) (*Metascheduler, error) {
	byNode := make(map[string]Scheduler)
	for _, s := range schedulers {
		for _, n := range s.Nodes() {
			if owner, exists := byNode[n]; exists {
				return nil, vserr.Newf(vserr.BadConfiguration,
					"node %q is claimed by both the %s and %s schedulers", n, owner.Kind(), s.Kind())
			}
			byNode[n] = s
		}
	}
	return &Metascheduler{byNode: byNode, all: schedulers}, nil
}

// Nodes returns every node known to any configured scheduler.
func (m *Metascheduler) Nodes() []string {
	nodes := make([]string, 0, len(m.byNode))
	for n := range m.byNode {
		nodes = append(nodes, n)
	}
	return nodes
}

// SchedulerFor returns the scheduler instance that owns node.
func (m *Metascheduler) SchedulerFor(node string) (Scheduler, bool) {
	s, ok := m.byNode[node]
	return s, ok
}

// Reserve groups nodes by owning scheduler and reserves each group,
// rolling back every already-granted group if any group fails.
func (m *Metascheduler) Reserve(ctx context.Context, nodes []string) (*Reservation, error) {
	byScheduler := make(map[Scheduler][]string)
	for _, n := range nodes {
		s, ok := m.byNode[n]
		if !ok {
			return nil, vserr.Newf(vserr.ResourceUnavailable, "node %q is not managed by any scheduler", n)
		}
		byScheduler[s] = append(byScheduler[s], n)
	}

	merged := &Reservation{Launchers: make(map[string]launcher.Launcher)}
	var granted []*Reservation
	for s, group := range byScheduler {
		r, err := s.Reserve(ctx, group)
		if err != nil {
			for _, g := range granted {
				_ = g.Release()
			}
			return nil, err
		}
		granted = append(granted, r)
		merged.Nodes = append(merged.Nodes, r.Nodes...)
		for node, l := range r.Launchers {
			merged.Launchers[node] = l
		}
	}
	return merged, nil
}
