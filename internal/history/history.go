package history

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// EventType defines the kind of recorded event.
type EventType string

const (
	EventLaunch          EventType = "launch"
	EventExit            EventType = "exit"
	EventInstallComplete EventType = "install_completed"
	EventInstallFailed   EventType = "install_failed"
)

// Record is the flattened row written by every sink. Launch/exit events fill the
// session fields; install events fill Version and Error only.
type Record struct {
	Session   string    `json:"session"`
	Version   string    `json:"version"`
	PID       int       `json:"pid"`
	StartedAt time.Time `json:"started_at"`
	StoppedAt time.Time `json:"stopped_at,omitempty"`
	ExitCode  int       `json:"exit_code"`
	Signal    string    `json:"signal,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// Event represents one history entry exported to external systems.
type Event struct {
	Type       EventType `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Record     Record    `json:"record"`
}

// Sink is a destination for history events (analytics/statistics systems).
// Implementations must be safe for concurrent use.
type Sink interface {
	Send(ctx context.Context, e Event) error
}

// Recorder fans events out to all sinks in the background with a per-send timeout.
// Sink failures are logged and never reach the caller.
type Recorder struct {
	mu      sync.RWMutex
	sinks   []Sink
	timeout time.Duration
	log     *slog.Logger
	wg      sync.WaitGroup
}

func NewRecorder(log *slog.Logger, sinks ...Sink) *Recorder {
	if log == nil {
		log = slog.Default()
	}
	return &Recorder{sinks: append([]Sink(nil), sinks...), timeout: 5 * time.Second, log: log}
}

// SetSinks replaces the sink list. Passing none clears it.
func (r *Recorder) SetSinks(sinks ...Sink) {
	r.mu.Lock()
	r.sinks = append([]Sink(nil), sinks...)
	r.mu.Unlock()
}

// Record sends e to every sink asynchronously. A nil Recorder is a no-op.
func (r *Recorder) Record(e Event) {
	if r == nil {
		return
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	r.mu.RLock()
	sinks := append([]Sink(nil), r.sinks...)
	r.mu.RUnlock()
	for _, s := range sinks {
		r.wg.Add(1)
		go func(s Sink) {
			defer r.wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
			defer cancel()
			if err := s.Send(ctx, e); err != nil {
				r.log.Warn("history sink failed", "event", e.Type, "version", e.Record.Version, "error", err)
			}
		}(s)
	}
}

// Flush blocks until in-flight sends finish.
func (r *Recorder) Flush() {
	if r == nil {
		return
	}
	r.wg.Wait()
}

// Close flushes and closes sinks that implement io.Closer.
func (r *Recorder) Close() error {
	if r == nil {
		return nil
	}
	r.Flush()
	r.mu.Lock()
	defer r.mu.Unlock()
	var first error
	for _, s := range r.sinks {
		if c, ok := s.(interface{ Close() error }); ok {
			if err := c.Close(); err != nil && first == nil {
				first = err
			}
		}
	}
	r.sinks = nil
	return first
}

// NullTime returns nil for zero times so SQL sinks store NULL.
func NullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}

// NullString returns nil for empty strings so SQL sinks store NULL.
func NullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
