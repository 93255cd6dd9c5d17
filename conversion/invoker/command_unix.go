//go:build !windows

package invoker

import (
	"os/exec"
	"syscall"
)

// setProcessGroup puts the converter in its own process group so a
// timeout kill reaches any children it spawned.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// killProcessTree sends SIGKILL to the whole process group (negative
// pid), then kills the leader directly as a fallback.
func killProcessTree(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	return cmd.Process.Kill()
}
