package process

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/loykin/launchr/internal/logger"
)

func requireUnix(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("tests require sh/sleep on Unix-like systems")
	}
}

func waitDone(t *testing.T, p *Process, d time.Duration) {
	t.Helper()
	select {
	case <-p.Done():
	case <-time.After(d):
		t.Fatalf("process did not exit within %v", d)
	}
}

func TestStartReportsPIDAndExitCode(t *testing.T) {
	requireUnix(t)
	var (
		mu    sync.Mutex
		lines []string
		exits []Status
	)
	p := New(Spec{
		Name:       "s1",
		Executable: "/bin/sh",
		Args:       []string{"-c", "echo out; echo err 1>&2; exit 3"},
	}, Options{
		OnOutput: func(stream, line string) {
			mu.Lock()
			lines = append(lines, stream+":"+line)
			mu.Unlock()
		},
		OnExit: func(s Status) {
			mu.Lock()
			exits = append(exits, s)
			mu.Unlock()
		},
	})
	if err := p.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if st := p.Snapshot(); st.PID <= 0 {
		t.Fatalf("pid not recorded: %+v", st)
	}
	waitDone(t, p, 5*time.Second)

	st := p.Snapshot()
	if st.Running || st.Exit == nil || st.Exit.Code != 3 || st.Exit.Stopped {
		t.Fatalf("unexpected exit status: %+v exit=%+v", st, st.Exit)
	}
	mu.Lock()
	defer mu.Unlock()
	joined := strings.Join(lines, "|")
	if !strings.Contains(joined, "stdout:out") || !strings.Contains(joined, "stderr:err") {
		t.Fatalf("output not forwarded: %v", lines)
	}
	if len(exits) != 1 {
		t.Fatalf("exit notification count = %d", len(exits))
	}
}

func TestStartMissingExecutable(t *testing.T) {
	p := New(Spec{Name: "missing", Executable: filepath.Join(t.TempDir(), "no-such-java")}, Options{})
	err := p.Start()
	if err == nil {
		t.Fatalf("expected spawn error")
	}
	if p.Done() != nil || p.Snapshot().PID != 0 {
		t.Fatalf("no handle must be produced on spawn failure")
	}
	if !errors.Is(p.Stop(time.Second), ErrNotRunning) {
		t.Fatalf("stop on unstarted process must report not running")
	}
}

func TestStartEmptyExecutable(t *testing.T) {
	if err := New(Spec{Name: "x"}, Options{}).Start(); err == nil {
		t.Fatalf("expected error for empty executable")
	}
}

func TestWorkDirAndSessionLogs(t *testing.T) {
	requireUnix(t)
	dir := t.TempDir()
	work := filepath.Join(dir, "versions", "1.20.4")
	if err := os.MkdirAll(work, 0o755); err != nil {
		t.Fatal(err)
	}
	logs := filepath.Join(dir, "logs")
	p := New(Spec{
		Name:       "sess",
		Executable: "/bin/sh",
		Args:       []string{"-c", "pwd"},
		WorkDir:    work,
		Log:        logger.Config{Dir: logs},
	}, Options{})
	if err := p.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitDone(t, p, 5*time.Second)
	b, err := os.ReadFile(filepath.Join(logs, "sess.stdout.log"))
	if err != nil {
		t.Fatalf("stdout log: %v", err)
	}
	// macOS tmp dirs may resolve through /private
	if !strings.HasSuffix(strings.TrimSpace(string(b)), filepath.Join("versions", "1.20.4")) {
		t.Fatalf("child did not run in version dir: %q", string(b))
	}
}

func TestLargeOutputDoesNotBlock(t *testing.T) {
	requireUnix(t)
	p := New(Spec{
		Name:       "noisy",
		Executable: "/bin/sh",
		Args:       []string{"-c", "i=0; while [ $i -lt 20000 ]; do echo line-$i-xxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxx; i=$((i+1)); done"},
	}, Options{})
	if err := p.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitDone(t, p, 20*time.Second)
	if st := p.Snapshot(); st.Exit == nil || st.Exit.Code != 0 {
		t.Fatalf("unexpected exit: %+v", st.Exit)
	}
}

func TestStopTerminatesGroup(t *testing.T) {
	requireUnix(t)
	p := New(Spec{Name: "sleeper", Executable: "/bin/sh", Args: []string{"-c", "sleep 30"}}, Options{})
	if err := p.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := p.Stop(2 * time.Second); err != nil {
		t.Fatalf("stop: %v", err)
	}
	st := p.Snapshot()
	if st.Running || st.Exit == nil || !st.Exit.Stopped {
		t.Fatalf("expected stopped exit, got %+v", st.Exit)
	}
	if st.Exit.Signal == "" {
		t.Fatalf("expected signal to be reported, got %+v", st.Exit)
	}
	if !errors.Is(p.Stop(time.Second), ErrNotRunning) {
		t.Fatalf("second stop must report not running")
	}
}

func TestKill(t *testing.T) {
	requireUnix(t)
	p := New(Spec{Name: "k", Executable: "/bin/sh", Args: []string{"-c", "trap '' TERM; sleep 30"}}, Options{})
	if err := p.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := p.Kill(); err != nil {
		t.Fatalf("kill: %v", err)
	}
	if st := p.Snapshot(); st.Running || st.Exit == nil || st.Exit.Code != -1 {
		t.Fatalf("unexpected status after kill: %+v", st.Exit)
	}
}
