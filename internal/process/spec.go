package process

import (
	"errors"
	"os/exec"
	"strings"

	"github.com/loykin/launchr/internal/logger"
)

// Spec describes one child process to spawn.
type Spec struct {
	Name       string        `json:"name"`       // session name, used for log file names
	Executable string        `json:"executable"` // absolute path to the runtime
	Args       []string      `json:"args"`
	WorkDir    string        `json:"work_dir"`
	Env        []string      `json:"env"`         // extra KEY=VALUE pairs appended to the parent env
	HideWindow bool          `json:"hide_window"` // suppress the console window on Windows
	Log        logger.Config `json:"-"`
}

var errNoExecutable = errors.New("executable is required")

// BuildCommand constructs the *exec.Cmd without a shell; arguments are passed verbatim.
func (s *Spec) BuildCommand() (*exec.Cmd, error) {
	exe := strings.TrimSpace(s.Executable)
	if exe == "" {
		return nil, errNoExecutable
	}
	// ok: executable comes from the runtime resolver, not from user shell input
	// #nosec G204
	cmd := exec.Command(exe, s.Args...)
	if s.WorkDir != "" {
		cmd.Dir = s.WorkDir
	}
	if len(s.Env) > 0 {
		cmd.Env = append(cmd.Environ(), s.Env...)
	}
	configureSysProcAttr(cmd, *s)
	return cmd, nil
}
