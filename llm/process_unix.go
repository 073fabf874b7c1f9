//go:build unix

package llm

import (
	"os/exec"
	"syscall"
)

// killGroup starts cmd in its own process group and kills the whole group
// on cancellation, so children spawned by a shell wrapper die too.
func killGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
