//go:build !windows

package launcher

import (
	"os/exec"
	"syscall"
)

// setProcessGroup makes the child the leader of a new process group so
// its descendants can be killed together.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true, Pgid: 0}
}

// killProcessGroup signals the child's entire process group.
func killProcessGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	pgid, err := syscall.Getpgid(cmd.Process.Pid)
	if err != nil {
		return cmd.Process.Kill()
	}
	return syscall.Kill(-pgid, syscall.SIGKILL)
}

// closeInheritedFDs ensures the child inherits only stdin/stdout/stderr.
// Go's os/exec does not pass extra file descriptors unless ExtraFiles is
// set, so there is nothing further to close here; this exists to keep
// the intent explicit and as a hook for platforms that need more.
func closeInheritedFDs(cmd *exec.Cmd) {
	cmd.ExtraFiles = nil
}
