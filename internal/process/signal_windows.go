//go:build windows

package process

import (
	"os/exec"
	"syscall"
)

var (
	kernel32             = syscall.NewLazyDLL("kernel32.dll")
	procOpenProcess      = kernel32.NewProc("OpenProcess")
	procTerminateProcess = kernel32.NewProc("TerminateProcess")
	procCloseHandle      = kernel32.NewProc("CloseHandle")
)

const PROCESS_TERMINATE = 0x0001

// terminateGroup has no graceful equivalent for GUI processes without a console;
// it terminates the process directly.
func terminateGroup(pid int) error { return terminatePID(pid) }

func killGroup(pid int) error { return terminatePID(pid) }

func terminatePID(pid int) error {
	if pid <= 0 {
		return nil
	}
	h, _, _ := procOpenProcess.Call(uintptr(PROCESS_TERMINATE), 0, uintptr(uint32(pid)))
	if h == 0 {
		// The process is most likely gone already.
		return nil
	}
	defer procCloseHandle.Call(h)
	ret, _, err := procTerminateProcess.Call(h, uintptr(1))
	if ret == 0 {
		return err
	}
	return nil
}

func exitDetails(cmd *exec.Cmd) (code int, signal string) {
	if cmd.ProcessState == nil {
		return -1, ""
	}
	return cmd.ProcessState.ExitCode(), ""
}
