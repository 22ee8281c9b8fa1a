package install

import (
	"context"
	"sync"

	"github.com/loykin/launchr/internal/apperr"
)

// job tracks one in-flight or finished install and fans its state out to subscribers.
type job struct {
	mu     sync.Mutex
	state  State
	subs   map[int]chan State
	nextID int
	cancel context.CancelFunc
	done   chan struct{}
}

func newJob(version string, cancel context.CancelFunc) *job {
	return &job{
		state:  State{Version: version, Stage: StageDownloading},
		subs:   make(map[int]chan State),
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

func (j *job) snapshot() State {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// publish applies fn to the state and delivers the result. Subscribers always see the
// latest state; intermediate updates may be skipped for slow readers.
func (j *job) publish(fn func(*State)) State {
	j.mu.Lock()
	defer j.mu.Unlock()
	fn(&j.state)
	s := j.state
	for _, ch := range j.subs {
		select {
		case ch <- s:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- s
		}
	}
	if s.Stage.Terminal() {
		for id, ch := range j.subs {
			close(ch)
			delete(j.subs, id)
		}
	}
	return s
}

func (j *job) subscribe() (<-chan State, func()) {
	j.mu.Lock()
	defer j.mu.Unlock()
	ch := make(chan State, 1)
	ch <- j.state
	if j.state.Stage.Terminal() {
		close(ch)
		return ch, func() {}
	}
	id := j.nextID
	j.nextID++
	j.subs[id] = ch
	return ch, func() {
		j.mu.Lock()
		defer j.mu.Unlock()
		if c, ok := j.subs[id]; ok {
			close(c)
			delete(j.subs, id)
		}
	}
}

// Registry enforces one in-flight install per version id and keeps the last
// state of finished jobs for polling.
type Registry struct {
	mu   sync.Mutex
	jobs map[string]*job
}

func NewRegistry() *Registry {
	return &Registry{jobs: make(map[string]*job)}
}

// begin registers a new job for version. An unfinished job for the same id is left
// untouched and a Conflict error is returned.
func (r *Registry) begin(version string, cancel context.CancelFunc) (*job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if j, ok := r.jobs[version]; ok && !j.snapshot().Stage.Terminal() {
		return nil, apperr.Conflict("an install of " + version + " is already in progress")
	}
	j := newJob(version, cancel)
	r.jobs[version] = j
	return j, nil
}

func (r *Registry) get(version string) (*job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[version]
	return j, ok
}

// Status returns the latest state for version.
func (r *Registry) Status(version string) (State, bool) {
	j, ok := r.get(version)
	if !ok {
		return State{}, false
	}
	return j.snapshot(), true
}

// List returns the latest state of every known job.
func (r *Registry) List() []State {
	r.mu.Lock()
	jobs := make([]*job, 0, len(r.jobs))
	for _, j := range r.jobs {
		jobs = append(jobs, j)
	}
	r.mu.Unlock()
	out := make([]State, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, j.snapshot())
	}
	return out
}

// Subscribe streams state updates for version until the job finishes or the
// returned cancel func is called. The current state is delivered first.
func (r *Registry) Subscribe(version string) (<-chan State, func(), bool) {
	j, ok := r.get(version)
	if !ok {
		return nil, func() {}, false
	}
	ch, cancel := j.subscribe()
	return ch, cancel, true
}

// Cancel requests cancellation of an in-flight install. It reports whether a
// running job was found.
func (r *Registry) Cancel(version string) bool {
	j, ok := r.get(version)
	if !ok || j.snapshot().Stage.Terminal() {
		return false
	}
	j.cancel()
	return true
}

// Wait blocks until the job for version finishes or ctx is done.
func (r *Registry) Wait(ctx context.Context, version string) (State, error) {
	j, ok := r.get(version)
	if !ok {
		return State{}, apperr.VersionNotFound(version)
	}
	select {
	case <-j.done:
		return j.snapshot(), nil
	case <-ctx.Done():
		return j.snapshot(), ctx.Err()
	}
}
