package launchargs

import (
	"strconv"

	"github.com/google/uuid"

	"github.com/loykin/launchr/internal/settings"
)

const (
	// MainClass is the entry point passed after the classpath.
	MainClass = "net.minecraft.client.main.Main"

	DefaultUsername = "Player"
	DefaultBrand    = "launchr"
	accessToken     = "0"
	userType        = "legacy"
)

// Baseline G1 tuning for short pauses and high throughput. Heap bounds come first.
var gcFlags = []string{
	"-XX:+UseG1GC",
	"-XX:+ParallelRefProcEnabled",
	"-XX:MaxGCPauseMillis=200",
	"-XX:+UnlockExperimentalVMOptions",
	"-XX:+DisableExplicitGC",
	"-XX:+AlwaysPreTouch",
	"-XX:G1NewSizePercent=30",
	"-XX:G1MaxNewSizePercent=40",
	"-XX:G1HeapRegionSize=8M",
	"-XX:G1ReservePercent=20",
	"-XX:G1HeapWastePercent=5",
	"-XX:+UseStringDeduplication",
	"-Dfml.ignoreInvalidMinecraftCertificates=true",
	"-Dfml.ignorePatchDiscrepancies=true",
}

// Request carries the per-launch inputs the composer needs.
type Request struct {
	Version     string
	GameDir     string
	AssetsDir   string
	Username    string
	Brand       string
	RuntimeArgs []string
	AppArgs     []string
}

// Composer builds argument lists. NewSessionID is swappable for tests.
type Composer struct {
	NewSessionID func() string
}

func New() *Composer {
	return &Composer{NewSessionID: func() string { return uuid.NewString() }}
}

// Compose returns runtime args (baseline, then settings overrides, then request
// overrides) and application args (fixed identity block, then extras). Nothing is
// deduplicated or validated.
func (c *Composer) Compose(req Request, s settings.LaunchSettings) (runtimeArgs, appArgs []string) {
	runtimeArgs = make([]string, 0, 2+len(gcFlags)+len(s.JavaArgs)+len(req.RuntimeArgs))
	runtimeArgs = append(runtimeArgs,
		"-Xms"+strconv.FormatUint(uint64(s.MinMemoryMB), 10)+"M",
		"-Xmx"+strconv.FormatUint(uint64(s.MaxMemoryMB), 10)+"M",
	)
	runtimeArgs = append(runtimeArgs, gcFlags...)
	runtimeArgs = append(runtimeArgs, s.JavaArgs...)
	runtimeArgs = append(runtimeArgs, req.RuntimeArgs...)

	username := req.Username
	if username == "" {
		username = DefaultUsername
	}
	brand := req.Brand
	if brand == "" {
		brand = DefaultBrand
	}
	appArgs = []string{
		"--username", username,
		"--version", req.Version,
		"--gameDir", req.GameDir,
		"--assetsDir", req.AssetsDir,
		"--assetIndex", req.Version,
		"--uuid", c.NewSessionID(),
		"--accessToken", accessToken,
		"--userType", userType,
		"--versionType", brand,
	}
	if s.Resolution.Width > 0 && s.Resolution.Height > 0 && !s.Fullscreen {
		appArgs = append(appArgs,
			"--width", strconv.FormatUint(uint64(s.Resolution.Width), 10),
			"--height", strconv.FormatUint(uint64(s.Resolution.Height), 10),
		)
	}
	if s.Fullscreen {
		appArgs = append(appArgs, "--fullscreen")
	}
	appArgs = append(appArgs, s.GameArgs...)
	appArgs = append(appArgs, req.AppArgs...)
	return runtimeArgs, appArgs
}

// CommandLine assembles the full argv after the executable:
// runtime args, -cp <classpath>, main class, app args.
func CommandLine(runtimeArgs []string, classpath string, appArgs []string) []string {
	out := make([]string, 0, len(runtimeArgs)+3+len(appArgs))
	out = append(out, runtimeArgs...)
	out = append(out, "-cp", classpath, MainClass)
	out = append(out, appArgs...)
	return out
}
