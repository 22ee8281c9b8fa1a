package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/loykin/launchr/internal/config"
	"github.com/loykin/launchr/internal/launcher"
	"github.com/loykin/launchr/internal/logger"
	"github.com/loykin/launchr/internal/metrics"
	"github.com/loykin/launchr/internal/server"
	"github.com/loykin/launchr/internal/settings"
)

// stdout is swapped in tests.
var stdout io.Writer = os.Stdout

// cliLogger logs to stderr in colour; the CLI keeps stdout for JSON results.
func cliLogger(f *GlobalFlags) *slog.Logger {
	level := f.LogLevel
	if level == "" {
		level = "warn"
	}
	return slog.New(logger.NewColorTextHandler(os.Stderr, &slog.HandlerOptions{Level: logger.ParseLevel(level)}, false))
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func withBackend(parent context.Context, f *GlobalFlags, fn func(ctx context.Context, b backend) error) error {
	ctx, cancel := signalContext(parent)
	defer cancel()
	b, err := openBackend(f, cliLogger(f))
	if err != nil {
		return err
	}
	defer func() { _ = b.Close() }()
	return fn(ctx, b)
}

func runServe(parent context.Context, f *GlobalFlags) error {
	cfg, err := config.Load(f.ConfigPath)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	if f.LogLevel != "" {
		cfg.Log.Level = f.LogLevel
	}
	log, closer := logger.New(cfg.Log, os.Stderr)
	defer func() { _ = closer.Close() }()
	slog.SetDefault(log)

	metricsPath := ""
	if cfg.Metrics.Enabled {
		if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
			return fmt.Errorf("register metrics: %w", err)
		}
		metricsPath = cfg.Metrics.Path
	}

	svc, err := launcher.Open(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			log.Warn("shutdown", "error", err)
		}
	}()

	srv, addr, err := server.NewServer(cfg.Server, metricsPath, svc, log)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Server.Listen, err)
	}
	log.Info("launchr server listening", "addr", addr.String(), "base_path", cfg.Server.BasePath, "home", cfg.Home)

	ctx, cancel := signalContext(parent)
	defer cancel()
	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func runLaunch(parent context.Context, f *GlobalFlags, version string, lf *LaunchFlags) error {
	return withBackend(parent, f, func(ctx context.Context, b backend) error {
		out, err := b.Launch(ctx, launcher.LaunchSpec{
			Version:     version,
			RuntimeArgs: lf.RuntimeArgs,
			AppArgs:     lf.AppArgs,
			Modpack:     lf.Modpack,
			Username:    lf.Username,
		})
		if err != nil {
			return err
		}
		printJSON(out)
		return nil
	})
}

func runTerminate(parent context.Context, f *GlobalFlags, session string) error {
	return withBackend(parent, f, func(ctx context.Context, b backend) error {
		s, err := b.Terminate(ctx, session)
		if err != nil {
			return err
		}
		printJSON(s)
		return nil
	})
}

func runVersions(parent context.Context, f *GlobalFlags, vf *VersionsFlags) error {
	return withBackend(parent, f, func(ctx context.Context, b backend) error {
		var (
			list []launcher.VersionRecord
			err  error
		)
		if vf.Available || vf.Refresh {
			list, err = b.AvailableVersions(ctx, vf.Refresh)
		} else {
			list, err = b.InstalledVersions(ctx)
		}
		if err != nil {
			return err
		}
		printJSON(list)
		return nil
	})
}

func runInstall(parent context.Context, f *GlobalFlags, version string, inf *InstallFlags) error {
	return withBackend(parent, f, func(ctx context.Context, b backend) error {
		last := ""
		st, err := b.Install(ctx, version, !inf.NoWait, func(s launcher.InstallState) {
			line := fmt.Sprintf("%-18s %3.0f%%", s.Stage, s.Progress)
			if s.TotalBytes > 0 {
				line += fmt.Sprintf("  %d/%d bytes  %.1f Mbps", s.BytesDownloaded, s.TotalBytes, s.SpeedMbps)
			}
			if line != last {
				_, _ = fmt.Fprintln(os.Stderr, line)
				last = line
			}
		})
		if err != nil {
			return err
		}
		printJSON(st)
		return nil
	})
}

func runJava(parent context.Context, f *GlobalFlags) error {
	return withBackend(parent, f, func(ctx context.Context, b backend) error {
		list, err := b.JavaVersions(ctx)
		if err != nil {
			return err
		}
		if list == nil {
			list = []launcher.RuntimeRecord{}
		}
		printJSON(list)
		return nil
	})
}

func runSessions(parent context.Context, f *GlobalFlags) error {
	return withBackend(parent, f, func(ctx context.Context, b backend) error {
		list, err := b.Sessions(ctx)
		if err != nil {
			return err
		}
		printJSON(list)
		return nil
	})
}

func runSettingsGet(parent context.Context, f *GlobalFlags) error {
	return withBackend(parent, f, func(ctx context.Context, b backend) error {
		ls, err := b.Settings(ctx)
		if err != nil {
			return err
		}
		printJSON(ls)
		return nil
	})
}

func runSettingsSet(parent context.Context, f *GlobalFlags, cmd *cobra.Command, sf *SettingsFlags) error {
	return withBackend(parent, f, func(ctx context.Context, b backend) error {
		ls, err := b.Settings(ctx)
		if err != nil {
			return err
		}
		applySettingsFlags(&ls, sf, cmd.Flags().Changed)
		if err := b.SaveSettings(ctx, ls); err != nil {
			return err
		}
		printJSON(ls)
		return nil
	})
}

// applySettingsFlags copies the flags for which changed reports true.
func applySettingsFlags(ls *settings.LaunchSettings, f *SettingsFlags, changed func(string) bool) {
	if changed("max-memory") {
		ls.MaxMemoryMB = f.MaxMemoryMB
	}
	if changed("min-memory") {
		ls.MinMemoryMB = f.MinMemoryMB
	}
	if changed("java-path") {
		ls.JavaPath = f.JavaPath
	}
	if changed("java-arg") {
		ls.JavaArgs = append([]string{}, f.JavaArgs...)
	}
	if changed("game-arg") {
		ls.GameArgs = append([]string{}, f.GameArgs...)
	}
	if changed("width") {
		ls.Resolution.Width = f.Width
	}
	if changed("height") {
		ls.Resolution.Height = f.Height
	}
	if changed("fullscreen") {
		ls.Fullscreen = f.Fullscreen
	}
	if changed("vsync") {
		ls.VSync = f.VSync
	}
	if changed("render-distance") {
		ls.RenderDistance = f.RenderDistance
	}
	if changed("graphics") {
		ls.GraphicsQuality = settings.GraphicsQuality(f.GraphicsQuality)
	}
}
