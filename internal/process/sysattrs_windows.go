//go:build windows

package process

import (
	"os/exec"
	"syscall"
)

// Windows creation flags
const (
	CREATE_NEW_PROCESS_GROUP = 0x00000200
	CREATE_NO_WINDOW         = 0x08000000
)

// configureSysProcAttr creates a new process group for the child. With HideWindow the
// child gets no console of its own and never inherits the launcher's.
func configureSysProcAttr(cmd *exec.Cmd, spec Spec) {
	attrs := &syscall.SysProcAttr{}
	flags := uint32(CREATE_NEW_PROCESS_GROUP)
	if spec.HideWindow {
		flags |= CREATE_NO_WINDOW
		attrs.HideWindow = true
	}
	attrs.CreationFlags = flags
	cmd.SysProcAttr = attrs
}
