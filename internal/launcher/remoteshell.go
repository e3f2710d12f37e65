package launcher

import (
	"context"
	"strings"
)

// RemoteShell runs commands on a remote host by shelling out to the
// system ssh client in batch (non-interactive) mode. It never holds a
// scheduler reservation, so it is always its own owner.
type RemoteShell struct {
	host    string
	sshPath string
	user    string
}

// NewRemoteShell returns a launcher that reaches host over ssh as user
// (empty uses ssh's default, i.e. the current user or ssh_config).
func NewRemoteShell(host, user string) *RemoteShell {
	return &RemoteShell{host: host, sshPath: "ssh", user: user}
}

func (r *RemoteShell) Kind() string     { return "ssh" }
func (r *RemoteShell) Locality() string { return r.host }
func (r *RemoteShell) IsOwner() bool    { return true }
func (r *RemoteShell) Close() error     { return nil }

func (r *RemoteShell) Run(ctx context.Context, cmd string, args []string, opts RunOptions) (ProcessHandle, error) {
	target := r.host
	if r.user != "" {
		target = r.user + "@" + r.host
	}

	remoteCmd := shellQuoteJoin(append([]string{cmd}, args...))
	sshArgs := []string{"-o", "BatchMode=yes", "-o", "ConnectTimeout=10", target, "--", remoteCmd}

	log.Debug("running remote command", "host", r.host, "cmd", cmd)
	return runLocalCommand(ctx, r.sshPath, sshArgs, opts)
}

// shellQuoteJoin builds a single remote command line, single-quoting each
// argument so the remote shell sees exactly the tokens given.
func shellQuoteJoin(parts []string) string {
	quoted := make([]string, len(parts))
	for i, p := range parts {
		quoted[i] = "'" + strings.ReplaceAll(p, "'", `'\''`) + "'"
	}
	return strings.Join(quoted, " ")
}
