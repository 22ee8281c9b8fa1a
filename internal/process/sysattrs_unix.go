//go:build !windows

package process

import (
	"os/exec"
	"syscall"
)

// configureSysProcAttr places the child in its own process group so the launcher can
// signal the game together with anything it forks, and so terminal signals sent to the
// launcher do not reach the game. HideWindow has no meaning here.
func configureSysProcAttr(cmd *exec.Cmd, _ Spec) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}
