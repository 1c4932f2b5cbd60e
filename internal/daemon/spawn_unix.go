//go:build !windows

package daemon

import (
	"os/exec"
	"syscall"
)

// setProcAttr moves the child into its own process group.
func setProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}
