package launchr

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/loykin/launchr/internal/apperr"
	cfg "github.com/loykin/launchr/internal/config"
	"github.com/loykin/launchr/internal/history"
	"github.com/loykin/launchr/internal/launcher"
	"github.com/loykin/launchr/internal/metrics"
	iapi "github.com/loykin/launchr/internal/server"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type (
	Config         = cfg.Config
	LaunchSpec     = launcher.LaunchSpec
	LaunchOutcome  = launcher.LaunchOutcome
	VersionRecord  = launcher.VersionRecord
	RuntimeRecord  = launcher.RuntimeRecord
	InstallState   = launcher.InstallState
	LaunchSettings = launcher.LaunchSettings
	Session        = launcher.Session
	Error          = apperr.Error
	ErrorKind      = apperr.Kind
	HistorySink    = history.Sink
	HistoryEvent   = history.Event
)

// Launcher is a thin facade over internal/launcher.Service for embedding.
type Launcher struct{ inner *launcher.Service }

// LoadConfig reads a TOML config file; an empty path yields the defaults.
func LoadConfig(path string) (*Config, error) { return cfg.Load(path) }

// DefaultConfig returns the configuration used without a config file.
func DefaultConfig() *Config { return cfg.Default() }

// New opens the launcher home described by c. Close releases it.
func New(c *Config, log *slog.Logger) (*Launcher, error) {
	s, err := launcher.Open(c, log)
	if err != nil {
		return nil, err
	}
	return &Launcher{inner: s}, nil
}

func (l *Launcher) Close() error { return l.inner.Close() }

func (l *Launcher) Launch(ctx context.Context, spec LaunchSpec) (LaunchOutcome, error) {
	return l.inner.LaunchGame(ctx, spec)
}
func (l *Launcher) Terminate(session string) (Session, error) { return l.inner.TerminateGame(session) }
func (l *Launcher) Sessions() []Session                       { return l.inner.Sessions() }
func (l *Launcher) InstalledVersions(ctx context.Context) ([]VersionRecord, error) {
	return l.inner.InstalledVersions(ctx)
}
func (l *Launcher) AvailableVersions(ctx context.Context, refresh bool) ([]VersionRecord, error) {
	return l.inner.AvailableVersions(ctx, refresh)
}
func (l *Launcher) Install(ctx context.Context, version string) (InstallState, error) {
	return l.inner.InstallVersion(ctx, version)
}
func (l *Launcher) InstallStatus(version string) (InstallState, error) {
	return l.inner.InstallStatus(version)
}
func (l *Launcher) CancelInstall(version string) error { return l.inner.CancelInstall(version) }
func (l *Launcher) JavaVersions(ctx context.Context) ([]RuntimeRecord, error) {
	return l.inner.JavaVersions(ctx)
}
func (l *Launcher) Settings() (LaunchSettings, error)    { return l.inner.GameSettings() }
func (l *Launcher) SaveSettings(ls LaunchSettings) error { return l.inner.SaveGameSettings(ls) }

// Handler returns the RPC handler mounted at basePath, for embedding in an
// existing server.
func (l *Launcher) Handler(basePath string) http.Handler {
	return iapi.NewRouter(l.inner, basePath, nil).Handler("")
}

// KindOf reports the error kind of err, or "unclassified".
func KindOf(err error) ErrorKind { return apperr.KindOf(err) }

// RegisterMetrics registers launchr collectors on r.
func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }

// MetricsHandler serves the default prometheus registry.
func MetricsHandler() http.Handler { return metrics.Handler() }
