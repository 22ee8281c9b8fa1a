//go:build !windows

package process

import (
	"errors"
	"os/exec"
	"syscall"
)

// terminateGroup asks the whole process group to exit.
func terminateGroup(pid int) error {
	return ignoreGone(syscall.Kill(-pid, syscall.SIGTERM))
}

// killGroup force-kills the whole process group.
func killGroup(pid int) error {
	return ignoreGone(syscall.Kill(-pid, syscall.SIGKILL))
}

func ignoreGone(err error) error {
	if errors.Is(err, syscall.ESRCH) {
		return nil
	}
	return err
}

// exitDetails extracts code and signal from cmd.Wait's error.
func exitDetails(cmd *exec.Cmd) (code int, signal string) {
	if cmd.ProcessState == nil {
		return -1, ""
	}
	if ws, ok := cmd.ProcessState.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return -1, ws.Signal().String()
	}
	return cmd.ProcessState.ExitCode(), ""
}
