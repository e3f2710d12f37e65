package scheduler

import (
	"bytes"
	"context"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/vizstack/broker/internal/launcher"
	"github.com/vizstack/broker/internal/vserr"
)

// allocGrantedRe matches salloc's "Granted job allocation <id>" line.
var allocGrantedRe = regexp.MustCompile(`Granted job allocation (\d+)`)

// Batch owns a fixed set of nodes managed by a batch scheduler. Reserve
// obtains a job allocation covering the requested subset via salloc and
// binds a launcher.Batch to each granted node; releasing the
// Reservation cancels the job with scancel, which also terminates any
// running steps.
type Batch struct {
	nodes []string
}

// NewBatch returns a scheduler that owns the given node names.
func NewBatch(nodes []string) *Batch {
	return &Batch{nodes: nodes}
}

func (b *Batch) Kind() Kind      { return KindBatch }
func (b *Batch) Nodes() []string { return b.nodes }

func (b *Batch) Reserve(ctx context.Context, nodes []string) (*Reservation, error) {
	owned := make(map[string]bool, len(b.nodes))
	for _, n := range b.nodes {
		owned[n] = true
	}
	for _, n := range nodes {
		if !owned[n] {
			return nil, vserr.Newf(vserr.ResourceUnavailable, "node %q is not owned by the batch scheduler", n)
		}
	}
	if len(nodes) == 0 {
		return &Reservation{Launchers: make(map[string]launcher.Launcher)}, nil
	}

	jobID, err := salloc(ctx, nodes)
	if err != nil {
		return nil, vserr.Newf(vserr.ResourceUnavailable, "batch reservation failed: %v", err)
	}

	r := &Reservation{Nodes: append([]string(nil), nodes...), Launchers: make(map[string]launcher.Launcher)}
	owner := launcher.NewBatch(jobID, nodes[0])
	r.Launchers[nodes[0]] = owner
	for _, n := range nodes[1:] {
		r.Launchers[n] = launcher.NewBatch(jobID, n).Copy()
	}
	return r, nil
}

func salloc(ctx context.Context, nodes []string) (int, error) {
	args := []string{"--no-shell", "-w", strings.Join(nodes, ","), "-N", strconv.Itoa(len(nodes))}
	cmd := exec.CommandContext(ctx, "salloc", args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return 0, err
	}
	m := allocGrantedRe.FindStringSubmatch(out.String())
	if m == nil {
		return 0, vserr.New(vserr.InternalError, "salloc did not report a job allocation id")
	}
	id, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, err
	}
	return id, nil
}
