package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/loykin/launchr/internal/apperr"
	"github.com/loykin/launchr/internal/config"
	"github.com/loykin/launchr/internal/install"
	"github.com/loykin/launchr/internal/launcher"
	"github.com/loykin/launchr/pkg/client"
)

// backend is what the commands drive: the in-process service or a remote server.
type backend interface {
	Launch(ctx context.Context, spec launcher.LaunchSpec) (launcher.LaunchOutcome, error)
	Terminate(ctx context.Context, session string) (launcher.Session, error)
	InstalledVersions(ctx context.Context) ([]launcher.VersionRecord, error)
	AvailableVersions(ctx context.Context, refresh bool) ([]launcher.VersionRecord, error)
	Install(ctx context.Context, version string, wait bool, onState func(launcher.InstallState)) (launcher.InstallState, error)
	JavaVersions(ctx context.Context) ([]launcher.RuntimeRecord, error)
	Settings(ctx context.Context) (launcher.LaunchSettings, error)
	SaveSettings(ctx context.Context, ls launcher.LaunchSettings) error
	Sessions(ctx context.Context) ([]launcher.Session, error)
	Close() error
}

func openBackend(f *GlobalFlags, log *slog.Logger) (backend, error) {
	if f.APIUrl != "" {
		return remoteBackend{c: client.New(client.Config{BaseURL: f.APIUrl, Timeout: f.APITimeout, Logger: log})}, nil
	}
	cfg, err := config.Load(f.ConfigPath)
	if err != nil {
		return nil, err
	}
	svc, err := launcher.Open(cfg, log)
	if err != nil {
		return nil, err
	}
	return localBackend{svc: svc}, nil
}

type localBackend struct {
	svc *launcher.Service
}

// Launch starts the game and supervises it until it exits; cancelling ctx
// terminates the session.
func (b localBackend) Launch(ctx context.Context, spec launcher.LaunchSpec) (launcher.LaunchOutcome, error) {
	out, err := b.svc.LaunchGame(ctx, spec)
	if err != nil {
		return out, err
	}
	if _, err := b.svc.Manager().Wait(ctx, out.Session); err != nil {
		_, _ = b.svc.TerminateGame(out.Session)
	}
	return out, nil
}

func (b localBackend) Terminate(_ context.Context, session string) (launcher.Session, error) {
	return b.svc.TerminateGame(session)
}

func (b localBackend) InstalledVersions(ctx context.Context) ([]launcher.VersionRecord, error) {
	return b.svc.InstalledVersions(ctx)
}

func (b localBackend) AvailableVersions(ctx context.Context, refresh bool) ([]launcher.VersionRecord, error) {
	return b.svc.AvailableVersions(ctx, refresh)
}

// Install always waits in-process; the pipeline would not outlive the command.
func (b localBackend) Install(ctx context.Context, version string, _ bool, onState func(launcher.InstallState)) (launcher.InstallState, error) {
	st, err := b.svc.InstallVersion(ctx, version)
	if err != nil {
		return st, err
	}
	version = st.Version
	ch, cancel, ok := b.svc.WatchInstall(version)
	if !ok {
		return st, nil
	}
	defer cancel()
	for {
		select {
		case s, open := <-ch:
			if !open {
				return finalState(st)
			}
			st = s
			if onState != nil {
				onState(s)
			}
		case <-ctx.Done():
			_ = b.svc.CancelInstall(version)
			final, err := b.svc.Installer().Registry().Wait(context.Background(), version)
			if err != nil {
				return st, err
			}
			return finalState(final)
		}
	}
}

func (b localBackend) JavaVersions(ctx context.Context) ([]launcher.RuntimeRecord, error) {
	return b.svc.JavaVersions(ctx)
}

func (b localBackend) Settings(context.Context) (launcher.LaunchSettings, error) {
	return b.svc.GameSettings()
}

func (b localBackend) SaveSettings(_ context.Context, ls launcher.LaunchSettings) error {
	return b.svc.SaveGameSettings(ls)
}

func (b localBackend) Sessions(context.Context) ([]launcher.Session, error) {
	return b.svc.Sessions(), nil
}

func (b localBackend) Close() error { return b.svc.Close() }

type remoteBackend struct {
	c *client.Client
}

func (b remoteBackend) Launch(ctx context.Context, spec launcher.LaunchSpec) (launcher.LaunchOutcome, error) {
	return b.c.Launch(ctx, spec)
}

func (b remoteBackend) Terminate(ctx context.Context, session string) (launcher.Session, error) {
	return b.c.Terminate(ctx, session)
}

func (b remoteBackend) InstalledVersions(ctx context.Context) ([]launcher.VersionRecord, error) {
	return b.c.InstalledVersions(ctx)
}

func (b remoteBackend) AvailableVersions(ctx context.Context, refresh bool) ([]launcher.VersionRecord, error) {
	return b.c.AvailableVersions(ctx, refresh)
}

func (b remoteBackend) Install(ctx context.Context, version string, wait bool, onState func(launcher.InstallState)) (launcher.InstallState, error) {
	st, err := b.c.Install(ctx, version)
	if err != nil || !wait {
		return st, err
	}
	st, err = b.c.WaitInstall(ctx, st.Version, 500*time.Millisecond, onState)
	if err != nil {
		return st, err
	}
	return finalState(st)
}

func (b remoteBackend) JavaVersions(ctx context.Context) ([]launcher.RuntimeRecord, error) {
	return b.c.JavaVersions(ctx)
}

func (b remoteBackend) Settings(ctx context.Context) (launcher.LaunchSettings, error) {
	return b.c.Settings(ctx)
}

func (b remoteBackend) SaveSettings(ctx context.Context, ls launcher.LaunchSettings) error {
	return b.c.SaveSettings(ctx, ls)
}

func (b remoteBackend) Sessions(ctx context.Context) ([]launcher.Session, error) {
	return b.c.Sessions(ctx)
}

func (b remoteBackend) Close() error { return nil }

// finalState turns a failed terminal state into an InstallFailure.
func finalState(st launcher.InstallState) (launcher.InstallState, error) {
	if st.Stage == install.StageError {
		return st, apperr.New(apperr.KindInstall, st.Error)
	}
	return st, nil
}
