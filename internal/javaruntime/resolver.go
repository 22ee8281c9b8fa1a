package javaruntime

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/spf13/afero"

	"github.com/loykin/launchr/internal/apperr"
	"github.com/loykin/launchr/internal/layout"
)

// Source tells where a runtime was found.
type Source string

const (
	SourceBundled  Source = "bundled"
	SourceSystem   Source = "system"
	SourceOverride Source = "override"
)

// Record describes a discovered runtime. It is recomputed on every query.
type Record struct {
	Version string `json:"version"`
	Path    string `json:"path"`
	Arch    string `json:"arch"`
	Default bool   `json:"is_default"`
	Source  Source `json:"source"`
}

// Major returns the feature release number ("1.8.0_392" -> 8, "21.0.2" -> 21) or 0.
func (r Record) Major() int { return MajorOf(r.Version) }

// LookupFunc finds an executable on the system search path.
type LookupFunc func(ctx context.Context, name string) (string, error)

// Resolver locates the java executable: bundled first, then the system path.
type Resolver struct {
	fs     afero.Fs
	layout layout.Layout
	lookup LookupFunc
}

func New(fs afero.Fs, l layout.Layout, lookup LookupFunc) *Resolver {
	if lookup == nil {
		lookup = SystemLookup
	}
	return &Resolver{fs: fs, layout: l, lookup: lookup}
}

// SystemLookup is the default LookupFunc (the `where`/`which` equivalent).
func SystemLookup(_ context.Context, name string) (string, error) {
	return exec.LookPath(name)
}

// ExecutableName is java.exe on Windows, java elsewhere.
func ExecutableName() string {
	if runtime.GOOS == "windows" {
		return "java.exe"
	}
	return "java"
}

// BundledPath is runtime/bin/java[.exe] under the layout.
func (r *Resolver) BundledPath() string {
	return filepath.Join(r.layout.RuntimeDir(), "bin", ExecutableName())
}

// Resolve returns the bundled runtime if present, skipping any system lookup;
// otherwise the first system match.
func (r *Resolver) Resolve(ctx context.Context) (string, error) {
	if p, ok := r.bundled(); ok {
		return p, nil
	}
	p, err := r.lookup(ctx, "java")
	if err != nil || strings.TrimSpace(p) == "" {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", apperr.RuntimeNotFound("")
	}
	return strings.TrimSpace(p), nil
}

// ResolveWithOverride honours an explicit path (settings java_path) when it exists.
func (r *Resolver) ResolveWithOverride(ctx context.Context, override string) (string, error) {
	if override = strings.TrimSpace(override); override != "" {
		if ok, _ := afero.Exists(r.fs, override); ok {
			return override, nil
		}
		return "", apperr.RuntimeNotFound("configured java_path " + override + " does not exist; fix it in settings")
	}
	return r.Resolve(ctx)
}

func (r *Resolver) bundled() (string, bool) {
	p := r.BundledPath()
	info, err := r.fs.Stat(p)
	if err != nil || info.IsDir() {
		return "", false
	}
	return p, true
}

// Discover lists known runtimes: the bundled one (default when present) and the
// system one. Neither is an error when absent.
func (r *Resolver) Discover(ctx context.Context) ([]Record, error) {
	var out []Record
	if p, ok := r.bundled(); ok {
		out = append(out, Record{
			Version: r.bundledVersion(),
			Path:    p,
			Arch:    Arch(),
			Default: true,
			Source:  SourceBundled,
		})
	}
	if p, err := r.lookup(ctx, "java"); err == nil && strings.TrimSpace(p) != "" {
		p = strings.TrimSpace(p)
		if len(out) == 0 || out[0].Path != p {
			out = append(out, Record{
				Version: r.probeVersion(ctx, p),
				Path:    p,
				Arch:    Arch(),
				Default: len(out) == 0,
				Source:  SourceSystem,
			})
		}
	} else if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return out, nil
}

// VersionOf reports the version of the runtime at path, bundled or not.
func (r *Resolver) VersionOf(ctx context.Context, path string) string {
	if path == r.BundledPath() {
		if v := r.bundledVersion(); v != "" {
			return v
		}
	}
	return r.probeVersion(ctx, path)
}

// bundledVersion reads JAVA_VERSION from runtime/release.
func (r *Resolver) bundledVersion() string {
	b, err := afero.ReadFile(r.fs, filepath.Join(r.layout.RuntimeDir(), "release"))
	if err != nil {
		return ""
	}
	return parseReleaseFile(b)
}

func parseReleaseFile(b []byte) string {
	s := bufio.NewScanner(bytes.NewReader(b))
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if v, ok := strings.CutPrefix(line, "JAVA_VERSION="); ok {
			return strings.Trim(v, `"`)
		}
	}
	return ""
}

// probeVersion runs `java -version`; failures yield an empty version.
func (r *Resolver) probeVersion(ctx context.Context, path string) string {
	if _, ok := r.fs.(*afero.OsFs); !ok {
		return ""
	}
	// #nosec G204
	out, err := exec.CommandContext(ctx, path, "-version").CombinedOutput()
	if err != nil {
		var ee *exec.ExitError
		if !errors.As(err, &ee) {
			return ""
		}
	}
	return parseVersionOutput(out)
}

// parseVersionOutput extracts the quoted version from `java -version` output.
func parseVersionOutput(b []byte) string {
	first, _, _ := strings.Cut(string(b), "\n")
	i := strings.IndexByte(first, '"')
	if i < 0 {
		return ""
	}
	j := strings.IndexByte(first[i+1:], '"')
	if j < 0 {
		return ""
	}
	return first[i+1 : i+1+j]
}

// MajorOf parses the feature release from a Java version string.
func MajorOf(v string) int {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if rest, ok := strings.CutPrefix(v, "1."); ok {
		v = rest
	}
	end := strings.IndexFunc(v, func(r rune) bool { return r < '0' || r > '9' })
	if end == 0 {
		return 0
	}
	if end > 0 {
		v = v[:end]
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

// Arch maps GOARCH to the tags used by runtime vendors.
func Arch() string {
	switch runtime.GOARCH {
	case "amd64":
		return "x64"
	case "386":
		return "x86"
	case "arm64":
		return "aarch64"
	default:
		return runtime.GOARCH
	}
}
