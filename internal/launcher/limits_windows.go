//go:build windows

package launcher

import "os/exec"

func setProcessGroup(cmd *exec.Cmd) {}

func killProcessGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}

func closeInheritedFDs(cmd *exec.Cmd) {
	cmd.ExtraFiles = nil
}
