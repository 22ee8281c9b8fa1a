package process

import "time"

// Status is a point-in-time copy of a process' state.
type Status struct {
	Name      string    `json:"name"`
	Running   bool      `json:"running"`
	PID       int       `json:"pid"`
	StartedAt time.Time `json:"started_at"`
	StoppedAt time.Time `json:"stopped_at,omitempty"`
	Exit      *Exit     `json:"exit,omitempty"`
}

// Exit is reported once when the child terminates.
type Exit struct {
	Code     int           `json:"code"`             // -1 when killed by a signal
	Signal   string        `json:"signal,omitempty"` // signal name on Unix
	Err      string        `json:"error,omitempty"`
	Stopped  bool          `json:"stopped"` // termination was requested by the launcher
	Duration time.Duration `json:"duration"`
}

// Success reports a clean zero exit.
func (e Exit) Success() bool { return e.Code == 0 && e.Signal == "" && e.Err == "" }
