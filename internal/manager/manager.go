package manager

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/loykin/launchr/internal/apperr"
	"github.com/loykin/launchr/internal/history"
	"github.com/loykin/launchr/internal/logger"
	"github.com/loykin/launchr/internal/metrics"
	"github.com/loykin/launchr/internal/process"
)

// retainExited bounds how many finished sessions stay queryable.
const retainExited = 32

// Request describes one game process to spawn.
type Request struct {
	Version    string
	Executable string
	Args       []string
	WorkDir    string
	Env        []string
}

// Session is a point-in-time view of a launched game.
type Session struct {
	ID      string         `json:"id"`
	Version string         `json:"version"`
	Status  process.Status `json:"status"`
}

// ExitEvent is delivered to subscribers once per session.
type ExitEvent struct {
	Session string       `json:"session"`
	Version string       `json:"version"`
	PID     int          `json:"pid"`
	Exit    process.Exit `json:"exit"`
}

// Options configure a Manager. All fields are optional.
type Options struct {
	Logger  *slog.Logger
	History *history.Recorder
	// Output controls where per-session stdout/stderr files are rotated.
	Output logger.Config
	// NewID overrides session id generation.
	NewID func() string
}

type entry struct {
	id      string
	version string
	proc    *process.Process
	started time.Time
}

// Manager keeps the handle of every game it launched, keyed by session id.
type Manager struct {
	opts Options
	log  *slog.Logger

	mu      sync.RWMutex
	entries map[string]*entry
	exited  []string
	subs    map[int]chan ExitEvent
	nextSub int
}

func New(opts Options) *Manager {
	l := opts.Logger
	if l == nil {
		l = slog.Default()
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	return &Manager{
		opts:    opts,
		log:     l,
		entries: make(map[string]*entry),
		subs:    make(map[int]chan ExitEvent),
	}
}

// Launch spawns the game. On spawn failure no handle is kept and a
// LaunchFailure is returned; the spawn is not retried.
func (m *Manager) Launch(req Request) (Session, error) {
	id := m.opts.NewID()
	log := m.log.With("session", id, "version", req.Version)
	e := &entry{id: id, version: req.Version}
	e.proc = process.New(process.Spec{
		Name:       id,
		Executable: req.Executable,
		Args:       req.Args,
		WorkDir:    req.WorkDir,
		Env:        req.Env,
		HideWindow: true,
		Log:        m.opts.Output,
	}, process.Options{
		Logger: log,
		OnExit: func(st process.Status) { m.onExit(e, st) },
	})

	// registered before Start so a child that exits immediately still finds its entry
	m.mu.Lock()
	m.entries[id] = e
	m.mu.Unlock()

	if err := e.proc.Start(); err != nil {
		m.mu.Lock()
		delete(m.entries, id)
		m.mu.Unlock()
		metrics.IncLaunchFailure(string(apperr.KindLaunch))
		log.Error("game spawn failed", "executable", req.Executable, "error", err)
		return Session{}, apperr.LaunchFailed(err)
	}

	st := e.proc.Snapshot()
	m.mu.Lock()
	e.started = st.StartedAt
	m.mu.Unlock()
	metrics.IncLaunch(req.Version)
	log.Info("game launched", "pid", st.PID)
	m.opts.History.Record(history.Event{
		Type:   history.EventLaunch,
		Record: history.Record{Session: id, Version: req.Version, PID: st.PID, StartedAt: st.StartedAt},
	})
	return Session{ID: id, Version: req.Version, Status: st}, nil
}

func (m *Manager) onExit(e *entry, st process.Status) {
	exit := process.Exit{}
	if st.Exit != nil {
		exit = *st.Exit
	}
	outcome := "crashed"
	switch {
	case exit.Stopped:
		outcome = "stopped"
	case exit.Success():
		outcome = "clean"
	}
	metrics.ObserveExit(e.version, outcome, exit.Duration.Seconds())
	metrics.Forget(e.id, st.PID)
	m.opts.History.Record(history.Event{
		Type: history.EventExit,
		Record: history.Record{
			Session: e.id, Version: e.version, PID: st.PID,
			StartedAt: st.StartedAt, StoppedAt: st.StoppedAt,
			ExitCode: exit.Code, Signal: exit.Signal, Error: exit.Err,
		},
	})

	ev := ExitEvent{Session: e.id, Version: e.version, PID: st.PID, Exit: exit}
	m.mu.Lock()
	m.exited = append(m.exited, e.id)
	for len(m.exited) > retainExited {
		delete(m.entries, m.exited[0])
		m.exited = m.exited[1:]
	}
	for _, ch := range m.subs {
		select {
		case ch <- ev:
		default:
			m.log.Warn("exit subscriber is slow, dropping event", "session", e.id)
		}
	}
	m.mu.Unlock()
}

// Subscribe returns a channel receiving one ExitEvent per finished session.
func (m *Manager) Subscribe() (<-chan ExitEvent, func()) {
	ch := make(chan ExitEvent, 16)
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = ch
	m.mu.Unlock()
	return ch, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if c, ok := m.subs[id]; ok {
			close(c)
			delete(m.subs, id)
		}
	}
}

// Get returns the session with id, running or recently exited.
func (m *Manager) Get(id string) (Session, bool) {
	m.mu.RLock()
	e, ok := m.entries[id]
	m.mu.RUnlock()
	if !ok {
		return Session{}, false
	}
	return Session{ID: e.id, Version: e.version, Status: e.proc.Snapshot()}, true
}

// List returns all known sessions ordered by start time.
func (m *Manager) List() []Session {
	m.mu.RLock()
	es := make([]*entry, 0, len(m.entries))
	for _, e := range m.entries {
		es = append(es, e)
	}
	m.mu.RUnlock()
	out := make([]Session, 0, len(es))
	for _, e := range es {
		out = append(out, Session{ID: e.id, Version: e.version, Status: e.proc.Snapshot()})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Status.StartedAt.Equal(out[j].Status.StartedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].Status.StartedAt.Before(out[j].Status.StartedAt)
	})
	return out
}

// Running returns the number of live sessions.
func (m *Manager) Running() int {
	n := 0
	for _, s := range m.List() {
		if s.Status.Running {
			n++
		}
	}
	return n
}

// Terminate stops a session's process group, killing it after wait. An empty id
// selects the most recently launched running session. Terminating a session that
// already exited is a no-op.
func (m *Manager) Terminate(id string, wait time.Duration) (Session, error) {
	e, err := m.lookup(id)
	if err != nil {
		return Session{}, err
	}
	if err := e.proc.Stop(wait); err != nil && !errors.Is(err, process.ErrNotRunning) {
		return Session{}, apperr.Wrap(apperr.KindLaunch, "could not terminate game session "+e.id, err)
	}
	m.log.Info("game session terminated", "session", e.id, "version", e.version)
	return Session{ID: e.id, Version: e.version, Status: e.proc.Snapshot()}, nil
}

func (m *Manager) lookup(id string) (*entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id != "" {
		e, ok := m.entries[id]
		if !ok {
			return nil, apperr.Newf(apperr.KindInvalid, "unknown game session %q", id)
		}
		return e, nil
	}
	var latest *entry
	for _, e := range m.entries {
		if !e.proc.Snapshot().Running {
			continue
		}
		if latest == nil || e.started.After(latest.started) {
			latest = e
		}
	}
	if latest == nil {
		return nil, apperr.New(apperr.KindInvalid, "no game session is running")
	}
	return latest, nil
}

// Wait blocks until the session exits or ctx is done.
func (m *Manager) Wait(ctx context.Context, id string) (Session, error) {
	m.mu.RLock()
	e, ok := m.entries[id]
	m.mu.RUnlock()
	if !ok {
		return Session{}, apperr.Newf(apperr.KindInvalid, "unknown game session %q", id)
	}
	select {
	case <-e.proc.Done():
	case <-ctx.Done():
		return Session{}, ctx.Err()
	}
	return Session{ID: e.id, Version: e.version, Status: e.proc.Snapshot()}, nil
}

// Usage samples CPU and memory of a running session.
func (m *Manager) Usage(ctx context.Context, id string) (metrics.Usage, error) {
	s, ok := m.Get(id)
	if !ok {
		return metrics.Usage{}, apperr.Newf(apperr.KindInvalid, "unknown game session %q", id)
	}
	if !s.Status.Running {
		return metrics.Usage{}, apperr.Newf(apperr.KindInvalid, "game session %q is not running", id)
	}
	return metrics.Sample(ctx, id, s.Status.PID)
}

// Shutdown terminates every running session concurrently.
func (m *Manager) Shutdown(wait time.Duration) {
	var wg sync.WaitGroup
	for _, s := range m.List() {
		if !s.Status.Running {
			continue
		}
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if _, err := m.Terminate(id, wait); err != nil {
				m.log.Warn("shutdown terminate failed", "session", id, "error", err)
			}
		}(s.ID)
	}
	wg.Wait()
}
