package layout

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/afero"

	"github.com/loykin/launchr/internal/apperr"
)

const (
	RuntimeDirName   = "runtime"
	VersionsDirName  = "versions"
	AssetsDirName    = "assets"
	LibrariesDirName = "libraries"
	ModpacksDirName  = "modpacks"
	SkinsDirName     = "skins"

	SettingsFileName = "game_settings.json"
	ArchiveExt       = ".jar"
)

// Layout computes the canonical on-disk tree under a launcher home root.
// Path accessors never touch the filesystem; Provision and Ensure create directories.
type Layout struct {
	home string
}

func New(home string) Layout { return Layout{home: filepath.Clean(home)} }

// DefaultHome mirrors the per-user application data directory of each platform.
func DefaultHome() string {
	base, err := os.UserConfigDir()
	if err != nil || base == "" {
		base = "."
	}
	if runtime.GOOS == "windows" {
		return filepath.Join(base, ".launchr")
	}
	return filepath.Join(base, "launchr")
}

func (l Layout) Home() string         { return l.home }
func (l Layout) RuntimeDir() string   { return filepath.Join(l.home, RuntimeDirName) }
func (l Layout) VersionsDir() string  { return filepath.Join(l.home, VersionsDirName) }
func (l Layout) AssetsDir() string    { return filepath.Join(l.home, AssetsDirName) }
func (l Layout) LibrariesDir() string { return filepath.Join(l.home, LibrariesDirName) }
func (l Layout) ModpacksDir() string  { return filepath.Join(l.home, ModpacksDirName) }
func (l Layout) SkinsDir() string     { return filepath.Join(l.home, SkinsDirName) }
func (l Layout) SettingsFile() string { return filepath.Join(l.home, SettingsFileName) }

func (l Layout) VersionDir(id string) string { return filepath.Join(l.VersionsDir(), id) }

// VersionArchive is versions/<id>/<id>.jar.
func (l Layout) VersionArchive(id string) string {
	return filepath.Join(l.VersionDir(id), id+ArchiveExt)
}

func (l Layout) ModpackDir(id string) string { return filepath.Join(l.ModpacksDir(), id) }

// Dirs lists every directory Provision creates, home first.
func (l Layout) Dirs() []string {
	return []string{
		l.home,
		l.RuntimeDir(),
		l.VersionsDir(),
		l.AssetsDir(),
		l.LibrariesDir(),
		l.ModpacksDir(),
		l.SkinsDir(),
	}
}

// Provision creates the whole tree. It is idempotent.
func (l Layout) Provision(fs afero.Fs) error {
	for _, d := range l.Dirs() {
		if err := l.Ensure(fs, d); err != nil {
			return err
		}
	}
	return nil
}

// Ensure creates dir (and parents) if absent and returns a FilesystemFailure otherwise.
func (l Layout) Ensure(fs afero.Fs, dir string) error {
	if err := fs.MkdirAll(dir, 0o750); err != nil {
		return apperr.Filesystem("create directory "+dir, err)
	}
	return nil
}

// Exists reports whether path exists and is a directory.
func Exists(fs afero.Fs, dir string) bool {
	ok, err := afero.DirExists(fs, dir)
	return err == nil && ok
}
