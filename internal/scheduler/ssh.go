package scheduler

import (
	"context"

	"github.com/vizstack/broker/internal/launcher"
	"github.com/vizstack/broker/internal/vserr"
)

// SSH owns a fixed set of nodes reached over ssh. Like Local, there is
// no external reservation step: the node is simply claimed for the
// duration of the allocation.
type SSH struct {
	nodes []string
	user  string
}

// NewSSH returns a scheduler that reaches the given nodes as user over
// ssh (empty user defers to ssh_config/the current user).
func NewSSH(nodes []string, user string) *SSH {
	return &SSH{nodes: nodes, user: user}
}

func (s *SSH) Kind() Kind      { return KindSSH }
func (s *SSH) Nodes() []string { return s.nodes }

func (s *SSH) Reserve(ctx context.Context, nodes []string) (*Reservation, error) {
	owned := make(map[string]bool, len(s.nodes))
	for _, n := range s.nodes {
		owned[n] = true
	}

	r := &Reservation{Launchers: make(map[string]launcher.Launcher)}
	for _, n := range nodes {
		if !owned[n] {
			return nil, vserr.Newf(vserr.ResourceUnavailable, "node %q is not owned by the ssh scheduler", n)
		}
		r.Nodes = append(r.Nodes, n)
		r.Launchers[n] = launcher.NewRemoteShell(n, s.user)
	}
	return r, nil
}
