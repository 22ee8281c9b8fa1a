package process

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"time"
)

const (
	// maxLine bounds a single forwarded output line; longer lines are still drained.
	maxLine  = 1 << 20
	killWait = 2 * time.Second
)

// ErrNotRunning is returned when a stop is requested for a process that already exited.
var ErrNotRunning = errors.New("process is not running")

// Options wires callbacks into a Process. All fields are optional.
type Options struct {
	Logger *slog.Logger
	// OnOutput receives every line the child prints, from the drain goroutines.
	OnOutput func(stream, line string)
	// OnExit is called once, after output has been drained and the child reaped,
	// and before Done is closed.
	OnExit func(Status)
}

// Process owns one child: its *exec.Cmd handle, output drains, and exit monitor.
type Process struct {
	spec Spec
	opts Options
	log  *slog.Logger

	mu        sync.Mutex
	cmd       *exec.Cmd
	status    Status
	stopping  bool
	done      chan struct{}
	outCloser io.WriteCloser
	errCloser io.WriteCloser
}

func New(spec Spec, opts Options) *Process {
	l := opts.Logger
	if l == nil {
		l = slog.Default()
	}
	return &Process{spec: spec, opts: opts, log: l, status: Status{Name: spec.Name}}
}

func (p *Process) Spec() Spec { return p.spec }

// Start spawns the child with stdout/stderr piped back to the launcher. Each pipe is
// drained on its own goroutine into the session log files and the logger, and a
// monitor goroutine reaps the child and reports its exit.
func (p *Process) Start() error {
	p.mu.Lock()
	if p.cmd != nil {
		p.mu.Unlock()
		return fmt.Errorf("process %s already started", p.spec.Name)
	}
	p.mu.Unlock()

	cmd, err := p.spec.BuildCommand()
	if err != nil {
		return err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	outW, errW, werr := p.spec.Log.SessionWriters(p.spec.Name)
	if werr != nil {
		p.log.Warn("game output will not be written to disk", "session", p.spec.Name, "error", werr)
	}

	if err := cmd.Start(); err != nil {
		closeQuiet(outW)
		closeQuiet(errW)
		return err
	}

	p.mu.Lock()
	p.cmd = cmd
	p.outCloser, p.errCloser = outW, errW
	p.done = make(chan struct{})
	p.status.Running = true
	p.status.PID = cmd.Process.Pid
	p.status.StartedAt = time.Now()
	p.mu.Unlock()

	var wg sync.WaitGroup
	wg.Add(2)
	go p.drain(&wg, "stdout", stdout, outW)
	go p.drain(&wg, "stderr", stderr, errW)
	go p.monitor(&wg, cmd)
	return nil
}

// drain copies one pipe until EOF so the child never blocks on a full pipe buffer.
func (p *Process) drain(wg *sync.WaitGroup, stream string, r io.Reader, w io.Writer) {
	defer wg.Done()
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), maxLine)
	for s.Scan() {
		line := s.Text()
		if w != nil {
			_, _ = io.WriteString(w, line+"\n")
		}
		p.log.Debug("game output", "session", p.spec.Name, "stream", stream, "line", line)
		if p.opts.OnOutput != nil {
			p.opts.OnOutput(stream, line)
		}
	}
	if err := s.Err(); err != nil {
		p.log.Debug("output forwarding stopped; discarding rest", "session", p.spec.Name, "stream", stream, "error", err)
		if w == nil {
			w = io.Discard
		}
		_, _ = io.Copy(w, r)
	}
}

// monitor waits for both drains (required before cmd.Wait) and records the exit.
func (p *Process) monitor(wg *sync.WaitGroup, cmd *exec.Cmd) {
	wg.Wait()
	waitErr := cmd.Wait()
	code, sig := exitDetails(cmd)

	p.mu.Lock()
	now := time.Now()
	exit := &Exit{
		Code:     code,
		Signal:   sig,
		Stopped:  p.stopping,
		Duration: now.Sub(p.status.StartedAt),
	}
	var ee *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &ee) {
		exit.Err = waitErr.Error()
	}
	p.status.Running = false
	p.status.StoppedAt = now
	p.status.Exit = exit
	st := p.status
	outW, errW := p.outCloser, p.errCloser
	p.outCloser, p.errCloser = nil, nil
	done := p.done
	p.mu.Unlock()

	closeQuiet(outW)
	closeQuiet(errW)

	p.log.Info("game process exited", "session", st.Name, "pid", st.PID, "code", exit.Code, "signal", exit.Signal, "stopped", exit.Stopped)
	if p.opts.OnExit != nil {
		p.opts.OnExit(st)
	}
	close(done)
}

// Done is closed after the child exited and its output was drained.
// It is nil before Start succeeds.
func (p *Process) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

// Snapshot returns a copy of the current status.
func (p *Process) Snapshot() Status {
	p.mu.Lock()
	s := p.status
	if s.Exit != nil {
		e := *s.Exit
		s.Exit = &e
	}
	p.mu.Unlock()
	return s
}

// Stop asks the process group to terminate, escalating to a kill after wait.
func (p *Process) Stop(wait time.Duration) error {
	pid, done, ok := p.beginStop()
	if !ok {
		return ErrNotRunning
	}
	if err := terminateGroup(pid); err != nil {
		p.log.Warn("terminate failed, killing", "pid", pid, "error", err)
		return p.killAndWait(pid, done)
	}
	select {
	case <-done:
		return nil
	case <-time.After(wait):
		return p.killAndWait(pid, done)
	}
}

// Kill force-kills the process group and waits briefly for the monitor to reap it.
func (p *Process) Kill() error {
	pid, done, ok := p.beginStop()
	if !ok {
		return ErrNotRunning
	}
	return p.killAndWait(pid, done)
}

func (p *Process) beginStop() (int, <-chan struct{}, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cmd == nil || !p.status.Running {
		return 0, nil, false
	}
	p.stopping = true
	return p.status.PID, p.done, true
}

func (p *Process) killAndWait(pid int, done <-chan struct{}) error {
	if err := killGroup(pid); err != nil {
		return fmt.Errorf("kill %d: %w", pid, err)
	}
	select {
	case <-done:
		return nil
	case <-time.After(killWait):
		return fmt.Errorf("process %d did not exit after kill", pid)
	}
}

func closeQuiet(c io.Closer) {
	if c != nil {
		_ = c.Close()
	}
}
