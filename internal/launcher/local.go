package launcher

import (
	"context"
)

// Local runs commands directly on the broker host. It never holds a
// scheduler reservation, so Close is always a no-op and IsOwner is
// always true.
type Local struct {
	host string
}

// NewLocal returns a launcher that runs commands on host via fork/exec.
func NewLocal(host string) *Local {
	return &Local{host: host}
}

func (l *Local) Kind() string     { return "local" }
func (l *Local) Locality() string { return l.host }
func (l *Local) IsOwner() bool    { return true }
func (l *Local) Close() error     { return nil }

func (l *Local) Run(ctx context.Context, cmd string, args []string, opts RunOptions) (ProcessHandle, error) {
	log.Debug("running local command", "host", l.host, "cmd", cmd)
	return runLocalCommand(ctx, cmd, args, opts)
}
