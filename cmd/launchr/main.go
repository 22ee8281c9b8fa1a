package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func main() {
	if err := buildRoot().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildRoot() *cobra.Command {
	globalFlags := &GlobalFlags{}
	root := createRootCommand(globalFlags)
	root.AddCommand(
		createServeCommand(globalFlags),
		createLaunchCommand(globalFlags),
		createTerminateCommand(globalFlags),
		createVersionsCommand(globalFlags),
		createInstallCommand(globalFlags),
		createJavaCommand(globalFlags),
		createSettingsCommand(globalFlags),
		createSessionsCommand(globalFlags),
	)
	return root
}

func createRootCommand(flags *GlobalFlags) *cobra.Command {
	root := &cobra.Command{
		Use:   "launchr",
		Short: "Game launcher backend",
		Long: `launchr installs game versions, resolves a Java runtime and launches and
supervises the game, either in-process or through a running launchr server.

Examples:
  launchr serve --config=launchr.toml
  launchr install 1.20.4
  launchr launch 1.20.4 --username=Steve
  launchr versions --api-url=http://127.0.0.1:7420/api`,
		SilenceUsage: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&flags.ConfigPath, "config", "", "path to TOML config file (optional)")
	pf.StringVar(&flags.LogLevel, "log-level", "", "override log level (debug, info, warn, error)")
	pf.StringVar(&flags.APIUrl, "api-url", "", "launchr server URL (e.g. http://127.0.0.1:7420/api)")
	pf.DurationVar(&flags.APITimeout, "api-timeout", 30*time.Second, "request timeout for --api-url")
	return root
}

func createServeCommand(globalFlags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve [config.toml]",
		Short: "Run the launchr RPC server",
		Long: `Run the RPC server the launcher UI talks to. Configuration comes from the
config file and LAUNCHR_* environment variables.

Examples:
  launchr serve
  launchr serve launchr.toml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				globalFlags.ConfigPath = args[0]
			}
			return runServe(cmd.Context(), globalFlags)
		},
	}
}

func createLaunchCommand(globalFlags *GlobalFlags) *cobra.Command {
	f := &LaunchFlags{}
	cmd := &cobra.Command{
		Use:   "launch <version>",
		Short: "Launch an installed version",
		Long: `Launch an installed game version. In-process, the command stays attached
until the game exits; Ctrl-C terminates it. With --api-url the server keeps
supervising the game and the command returns immediately.

Examples:
  launchr launch 1.20.4
  launchr launch 1.20.4 --modpack=skyblock --jvm-arg=-Dfoo=bar`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLaunch(cmd.Context(), globalFlags, args[0], f)
		},
	}
	cmd.Flags().StringVar(&f.Modpack, "modpack", "", "run inside modpacks/<id>")
	cmd.Flags().StringVar(&f.Username, "username", "", "player name passed to the game")
	cmd.Flags().StringArrayVar(&f.RuntimeArgs, "jvm-arg", nil, "extra JVM argument (repeatable)")
	cmd.Flags().StringArrayVar(&f.AppArgs, "game-arg", nil, "extra game argument (repeatable)")
	return cmd
}

func createTerminateCommand(globalFlags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "terminate [session]",
		Short: "Terminate a running game session",
		Long: `Terminate a game session. Without a session id the most recently launched
running session is stopped.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session := ""
			if len(args) > 0 {
				session = args[0]
			}
			return runTerminate(cmd.Context(), globalFlags, session)
		},
	}
}

func createVersionsCommand(globalFlags *GlobalFlags) *cobra.Command {
	f := &VersionsFlags{}
	cmd := &cobra.Command{
		Use:   "versions",
		Short: "List installed or available versions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVersions(cmd.Context(), globalFlags, f)
		},
	}
	cmd.Flags().BoolVar(&f.Available, "available", false, "list the version catalog instead of installed versions")
	cmd.Flags().BoolVar(&f.Refresh, "refresh", false, "refresh the catalog from the version manifest")
	return cmd
}

func createInstallCommand(globalFlags *GlobalFlags) *cobra.Command {
	f := &InstallFlags{}
	cmd := &cobra.Command{
		Use:   "install <version>",
		Short: "Download and install a version",
		Long: `Install a version from the version manifest. Progress is printed until the
install completes or fails. latest and latest-snapshot are accepted aliases.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInstall(cmd.Context(), globalFlags, args[0], f)
		},
	}
	cmd.Flags().BoolVar(&f.NoWait, "no-wait", false, "return once the install has started (with --api-url)")
	return cmd
}

func createJavaCommand(globalFlags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "java",
		Short: "List detected Java runtimes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJava(cmd.Context(), globalFlags)
		},
	}
}

func createSessionsCommand(globalFlags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List game sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessions(cmd.Context(), globalFlags)
		},
	}
}

func createSettingsCommand(globalFlags *GlobalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change launch settings",
	}
	get := &cobra.Command{
		Use:   "get",
		Short: "Print the launch settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSettingsGet(cmd.Context(), globalFlags)
		},
	}
	f := &SettingsFlags{}
	set := &cobra.Command{
		Use:   "set",
		Short: "Change launch settings",
		Long: `Change launch settings. Only the flags given are changed; the result is
validated before it is saved.

Examples:
  launchr settings set --max-memory=8192 --min-memory=1024
  launchr settings set --graphics=fabulous --render-distance=16`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSettingsSet(cmd.Context(), globalFlags, cmd, f)
		},
	}
	fl := set.Flags()
	fl.Uint32Var(&f.MaxMemoryMB, "max-memory", 0, "maximum heap in MB")
	fl.Uint32Var(&f.MinMemoryMB, "min-memory", 0, "initial heap in MB")
	fl.StringVar(&f.JavaPath, "java-path", "", "explicit java executable (empty to auto-detect)")
	fl.StringArrayVar(&f.JavaArgs, "java-arg", nil, "JVM argument, replaces the list (repeatable)")
	fl.StringArrayVar(&f.GameArgs, "game-arg", nil, "game argument, replaces the list (repeatable)")
	fl.Uint32Var(&f.Width, "width", 0, "window width")
	fl.Uint32Var(&f.Height, "height", 0, "window height")
	fl.BoolVar(&f.Fullscreen, "fullscreen", false, "start fullscreen")
	fl.BoolVar(&f.VSync, "vsync", true, "enable vsync")
	fl.Uint8Var(&f.RenderDistance, "render-distance", 0, "render distance in chunks")
	fl.StringVar(&f.GraphicsQuality, "graphics", "", "graphics quality (fast, fancy, fabulous)")
	cmd.AddCommand(get, set)
	return cmd
}
