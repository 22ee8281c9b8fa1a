package launcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/mem"
	"github.com/spf13/afero"

	"github.com/loykin/launchr/internal/apperr"
	"github.com/loykin/launchr/internal/classpath"
	"github.com/loykin/launchr/internal/env"
	"github.com/loykin/launchr/internal/install"
	"github.com/loykin/launchr/internal/javaruntime"
	"github.com/loykin/launchr/internal/launchargs"
	"github.com/loykin/launchr/internal/layout"
	"github.com/loykin/launchr/internal/manager"
	"github.com/loykin/launchr/internal/metrics"
	"github.com/loykin/launchr/internal/settings"
	"github.com/loykin/launchr/internal/store"
)

// MemoryFunc reports total physical memory in bytes.
type MemoryFunc func(ctx context.Context) (uint64, error)

// SystemMemory reads total physical memory via gopsutil.
func SystemMemory(ctx context.Context) (uint64, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, err
	}
	return vm.Total, nil
}

// Options holds the collaborators of a Service. Fs, Layout, Runtime, Settings and
// Manager are required.
type Options struct {
	Fs          afero.Fs
	Layout      layout.Layout
	Brand       string
	Runtime     *javaruntime.Resolver
	Settings    *settings.Store
	Manager     *manager.Manager
	Installer   *install.Pipeline
	Catalog     store.Catalog
	Manifest    *install.ManifestSource
	GameEnv     env.Vars
	StopTimeout time.Duration
	TotalMemory MemoryFunc
	Composer    *launchargs.Composer
	Logger      *slog.Logger
}

// Service implements the launcher operations exposed over RPC and the CLI.
type Service struct {
	opts      Options
	classpath *classpath.Builder
	composer  *launchargs.Composer
	log       *slog.Logger
	closers   []func() error
}

func New(opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Brand == "" {
		opts.Brand = launchargs.DefaultBrand
	}
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = 10 * time.Second
	}
	if opts.TotalMemory == nil {
		opts.TotalMemory = SystemMemory
	}
	c := opts.Composer
	if c == nil {
		c = launchargs.New()
	}
	return &Service{
		opts:      opts,
		classpath: classpath.New(opts.Fs, opts.Layout),
		composer:  c,
		log:       opts.Logger,
	}
}

func (s *Service) Layout() layout.Layout        { return s.opts.Layout }
func (s *Service) Manager() *manager.Manager    { return s.opts.Manager }
func (s *Service) Installer() *install.Pipeline { return s.opts.Installer }

// LaunchGame runs the launch sequence: version check, memory check, runtime
// resolution, classpath, arguments, spawn. Each step runs only if the previous
// one succeeded.
func (s *Service) LaunchGame(ctx context.Context, spec LaunchSpec) (LaunchOutcome, error) {
	sess, err := s.launch(ctx, spec)
	if err != nil {
		if k := apperr.KindOf(err); k != apperr.KindLaunch {
			metrics.IncLaunchFailure(string(k))
		}
		s.log.Warn("launch rejected", "version", spec.Version, "error", err)
		return LaunchOutcome{Error: err.Error()}, err
	}
	return LaunchOutcome{Success: true, PID: sess.Status.PID, Session: sess.ID}, nil
}

func (s *Service) launch(ctx context.Context, spec LaunchSpec) (manager.Session, error) {
	if err := install.ValidateID(spec.Version); err != nil {
		return manager.Session{}, err
	}
	l := s.opts.Layout
	versionDir := l.VersionDir(spec.Version)
	if !layout.Exists(s.opts.Fs, versionDir) {
		return manager.Session{}, apperr.VersionNotFound(spec.Version)
	}
	gameDir := versionDir
	if spec.Modpack != "" {
		if err := install.ValidateID(spec.Modpack); err != nil {
			return manager.Session{}, err
		}
		gameDir = l.ModpackDir(spec.Modpack)
		if !layout.Exists(s.opts.Fs, gameDir) {
			return manager.Session{}, apperr.Newf(apperr.KindVersionNotFound, "modpack %q is not installed", spec.Modpack)
		}
	}

	ls, err := s.opts.Settings.Load()
	if err != nil {
		return manager.Session{}, err
	}
	if err := s.checkMemory(ctx, ls); err != nil {
		return manager.Session{}, err
	}

	java, err := s.opts.Runtime.ResolveWithOverride(ctx, ls.JavaPath)
	if err != nil {
		return manager.Session{}, err
	}
	if err := s.checkCompatibility(ctx, spec.Version, java); err != nil {
		return manager.Session{}, err
	}

	cp, err := s.classpath.BuildJoined(spec.Version)
	if err != nil {
		return manager.Session{}, err
	}
	runtimeArgs, appArgs := s.composer.Compose(launchargs.Request{
		Version:     spec.Version,
		GameDir:     gameDir,
		AssetsDir:   l.AssetsDir(),
		Username:    spec.Username,
		Brand:       s.opts.Brand,
		RuntimeArgs: spec.RuntimeArgs,
		AppArgs:     spec.AppArgs,
	}, ls)

	return s.opts.Manager.Launch(manager.Request{
		Version:    spec.Version,
		Executable: java,
		Args:       launchargs.CommandLine(runtimeArgs, cp, appArgs),
		WorkDir:    gameDir,
		Env:        s.opts.GameEnv.Slice(),
	})
}

// checkMemory rejects heaps larger than physical memory. An unreadable memory
// total skips the check.
func (s *Service) checkMemory(ctx context.Context, ls settings.LaunchSettings) error {
	total, err := s.opts.TotalMemory(ctx)
	if err != nil || total == 0 {
		s.log.Debug("memory check skipped", "error", err)
		return nil
	}
	totalMB := total / (1024 * 1024)
	if uint64(ls.MaxMemoryMB) > totalMB {
		return apperr.Newf(apperr.KindInsufficientMemory,
			"max memory %d MB exceeds the %d MB of physical memory; lower it in settings", ls.MaxMemoryMB, totalMB)
	}
	return nil
}

// checkCompatibility fails when both the required and the detected Java major are
// known and the runtime is older.
func (s *Service) checkCompatibility(ctx context.Context, version, java string) error {
	if s.opts.Catalog == nil {
		return nil
	}
	v, err := s.opts.Catalog.Get(ctx, version)
	if err != nil || v.JavaMajor == 0 {
		return nil
	}
	have := javaruntime.MajorOf(s.opts.Runtime.VersionOf(ctx, java))
	if have > 0 && have < v.JavaMajor {
		return apperr.RuntimeNotFound(fmt.Sprintf("version %s needs Java %d or newer, but %s is Java %d", version, v.JavaMajor, java, have))
	}
	return nil
}

// TerminateGame stops a session; an empty id selects the most recent running one.
func (s *Service) TerminateGame(session string) (Session, error) {
	return s.opts.Manager.Terminate(session, s.opts.StopTimeout)
}

func (s *Service) Sessions() []Session { return s.opts.Manager.List() }

func (s *Service) Session(id string) (Session, bool) { return s.opts.Manager.Get(id) }

// SessionUsage samples CPU and memory of a running session.
func (s *Service) SessionUsage(ctx context.Context, id string) (metrics.Usage, error) {
	return s.opts.Manager.Usage(ctx, id)
}

// InstalledVersions scans versions/. A directory counts as installed only when it
// holds a .jar; catalog metadata is merged when available. A missing versions
// directory yields an empty list.
func (s *Service) InstalledVersions(ctx context.Context) ([]VersionRecord, error) {
	dir := s.opts.Layout.VersionsDir()
	entries, err := afero.ReadDir(s.opts.Fs, dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []VersionRecord{}, nil
		}
		return nil, apperr.Filesystem("could not read versions directory", err)
	}
	out := make([]VersionRecord, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		id := e.Name()
		hasJar, size := s.scanVersion(filepath.Join(dir, id))
		rec := VersionRecord{
			ID:          id,
			Name:        id,
			ReleaseTime: e.ModTime().UTC(),
			Kind:        store.KindRelease,
			Installed:   hasJar,
			SizeMB:      float64(size) / (1024 * 1024),
		}
		if s.opts.Catalog != nil {
			if c, err := s.opts.Catalog.Get(ctx, id); err == nil {
				rec.Name, rec.Kind, rec.JavaMajor = c.Name, c.Kind, c.JavaMajor
				if !c.ReleaseTime.IsZero() {
					rec.ReleaseTime = c.ReleaseTime
				}
			}
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Service) scanVersion(dir string) (hasJar bool, size int64) {
	_ = afero.Walk(s.opts.Fs, dir, func(p string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		size += info.Size()
		if strings.EqualFold(filepath.Ext(p), layout.ArchiveExt) {
			hasJar = true
		}
		return nil
	})
	return hasJar, size
}

// AvailableVersions lists the catalog, refreshing it from the manifest first when
// refresh is set or the catalog is empty. Installed flags come from disk.
func (s *Service) AvailableVersions(ctx context.Context, refresh bool) ([]VersionRecord, error) {
	if s.opts.Catalog == nil {
		return s.InstalledVersions(ctx)
	}
	list, err := s.opts.Catalog.List(ctx)
	if err != nil {
		return nil, apperr.Filesystem("could not read version catalog", err)
	}
	if (refresh || len(list) == 0) && s.opts.Manifest != nil {
		if _, err := s.opts.Manifest.Sync(ctx, s.opts.Catalog); err != nil {
			return nil, err
		}
		if list, err = s.opts.Catalog.List(ctx); err != nil {
			return nil, apperr.Filesystem("could not read version catalog", err)
		}
	}
	installed, err := s.InstalledVersions(ctx)
	if err != nil {
		return nil, err
	}
	have := make(map[string]VersionRecord, len(installed))
	for _, v := range installed {
		have[v.ID] = v
	}
	for i := range list {
		if v, ok := have[list[i].ID]; ok {
			list[i].Installed = v.Installed
			list[i].SizeMB = v.SizeMB
		} else {
			list[i].Installed = false
		}
	}
	return list, nil
}

// InstallVersion resolves id and starts a background install; see InstallStatus for
// progress. The returned state names the resolved version, which differs from id
// for aliases such as "latest".
func (s *Service) InstallVersion(ctx context.Context, id string) (InstallState, error) {
	if s.opts.Installer == nil {
		return InstallState{}, apperr.New(apperr.KindInstall, "installing is not configured")
	}
	return s.opts.Installer.Start(ctx, id)
}

func (s *Service) InstallStatus(id string) (InstallState, error) {
	if s.opts.Installer != nil {
		if st, ok := s.opts.Installer.Registry().Status(id); ok {
			return st, nil
		}
	}
	return InstallState{}, apperr.Newf(apperr.KindInvalid, "no install of %q has been started", id)
}

// WatchInstall streams state updates for an install; ok is false when no install
// of id was started.
func (s *Service) WatchInstall(id string) (<-chan InstallState, func(), bool) {
	if s.opts.Installer == nil {
		return nil, func() {}, false
	}
	return s.opts.Installer.Registry().Subscribe(id)
}

func (s *Service) Installs() []InstallState {
	if s.opts.Installer == nil {
		return []InstallState{}
	}
	return s.opts.Installer.Registry().List()
}

func (s *Service) CancelInstall(id string) error {
	if s.opts.Installer == nil || !s.opts.Installer.Registry().Cancel(id) {
		return apperr.Newf(apperr.KindInvalid, "no running install of %q", id)
	}
	return nil
}

// JavaVersions lists the bundled runtime and the system runtime, when present.
func (s *Service) JavaVersions(ctx context.Context) ([]RuntimeRecord, error) {
	return s.opts.Runtime.Discover(ctx)
}

func (s *Service) GameSettings() (LaunchSettings, error) { return s.opts.Settings.Load() }

func (s *Service) SaveGameSettings(ls LaunchSettings) error { return s.opts.Settings.Save(ls) }
