package install

import "fmt"

// Stage is one step of the install pipeline.
type Stage string

const (
	StageDownloading       Stage = "downloading"
	StageVerifying         Stage = "verifying"
	StageExtracting        Stage = "extracting"
	StageInstallingRuntime Stage = "installing_runtime"
	StageCompleted         Stage = "completed"
	StageError             Stage = "error"
)

var stageOrder = map[Stage]int{
	StageDownloading:       0,
	StageVerifying:         1,
	StageExtracting:        2,
	StageInstallingRuntime: 3,
	StageCompleted:         4,
}

// Terminal reports whether no further transition is possible.
func (s Stage) Terminal() bool { return s == StageCompleted || s == StageError }

// CanTransition allows a move to the next stage in order, or to Error from any
// non-terminal stage.
func CanTransition(from, to Stage) bool {
	if from.Terminal() {
		return false
	}
	if to == StageError {
		return true
	}
	f, ok1 := stageOrder[from]
	t, ok2 := stageOrder[to]
	return ok1 && ok2 && t == f+1
}

// State is a snapshot of one install job. Byte counters and speed are only
// meaningful while Stage is Downloading; Error carries the reason when Stage is Error.
type State struct {
	Version         string  `json:"version"`
	Progress        float64 `json:"progress"`
	Stage           Stage   `json:"stage"`
	BytesDownloaded int64   `json:"bytes_downloaded"`
	TotalBytes      int64   `json:"total_bytes"`
	SpeedMbps       float64 `json:"speed_mbps"`
	Error           string  `json:"error,omitempty"`
}

// stageProgress is the overall percentage reached when a stage begins.
var stageProgress = map[Stage]float64{
	StageDownloading:       0,
	StageVerifying:         70,
	StageExtracting:        80,
	StageInstallingRuntime: 92,
	StageCompleted:         100,
}

// downloadShare is the slice of overall progress covered by Downloading.
const downloadShare = 70.0

func (s State) String() string {
	if s.Stage == StageError {
		return fmt.Sprintf("%s: error: %s", s.Version, s.Error)
	}
	return fmt.Sprintf("%s: %s %.0f%%", s.Version, s.Stage, s.Progress)
}
