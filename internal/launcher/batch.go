package launcher

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
)

// Batch runs commands as job steps inside an existing scheduler
// reservation (srun -w <node> ... within --jobid=<id>), and releases the
// reservation (scancel) on Close — but only if it owns it. A Batch
// launcher obtained by deserializing or deep-copying an allocation
// (owner=false) never releases the reservation; that mirrors the
// original system's is_copy flag, since Go has no destructors to hook.
type Batch struct {
	jobID int
	node  string
	owner bool
}

// NewBatch returns a launcher bound to jobID, running steps on node.
// The returned launcher owns the reservation: closing it cancels the
// job. Use Copy to obtain a non-owning handle, e.g. for a launcher that
// travels with a serialized allocation record.
func NewBatch(jobID int, node string) *Batch {
	return &Batch{jobID: jobID, node: node, owner: true}
}

// Copy returns a non-owning Batch bound to the same job. Closing it
// never cancels the reservation.
func (b *Batch) Copy() *Batch {
	return &Batch{jobID: b.jobID, node: b.node, owner: false}
}

func (b *Batch) Kind() string     { return "batch" }
func (b *Batch) Locality() string { return b.node }
func (b *Batch) IsOwner() bool    { return b.owner }

func (b *Batch) Run(ctx context.Context, cmd string, args []string, opts RunOptions) (ProcessHandle, error) {
	srunArgs := append([]string{
		"--jobid=" + strconv.Itoa(b.jobID),
		"-w", b.node,
		"-N1",
		cmd,
	}, args...)

	log.Debug("running batch step", "jobId", b.jobID, "node", b.node, "cmd", cmd)
	return runLocalCommand(ctx, "srun", srunArgs, opts)
}

// Close cancels the underlying reservation if this launcher owns it.
// Idempotent: a second call is a no-op because jobID resets to 0.
func (b *Batch) Close() error {
	if !b.owner || b.jobID == 0 {
		return nil
	}

	cmd := exec.Command("scancel", "-Q", strconv.Itoa(b.jobID))
	out, err := cmd.CombinedOutput()
	b.jobID = 0
	if err != nil {
		return fmt.Errorf("launcher: scancel failed: %w (%s)", err, out)
	}
	return nil
}
