package classpath

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/loykin/launchr/internal/apperr"
	"github.com/loykin/launchr/internal/layout"
)

// Builder collects archive paths for a version from the shared layout.
type Builder struct {
	fs     afero.Fs
	layout layout.Layout
}

func New(fs afero.Fs, l layout.Layout) *Builder { return &Builder{fs: fs, layout: l} }

// Build returns library archives sorted by their path relative to the libraries root,
// followed by the version archive when present. Entries are unique.
func (b *Builder) Build(version string) ([]string, error) {
	vdir := b.layout.VersionDir(version)
	if !layout.Exists(b.fs, vdir) {
		return nil, apperr.VersionNotFound(version)
	}

	libs, err := b.libraries()
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(libs)+1)
	seen := make(map[string]struct{}, len(libs)+1)
	for _, p := range libs {
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}

	archive := b.layout.VersionArchive(version)
	if ok, _ := afero.Exists(b.fs, archive); ok {
		if _, dup := seen[archive]; !dup {
			out = append(out, archive)
		}
	}
	return out, nil
}

// BuildJoined is Build followed by Join.
func (b *Builder) BuildJoined(version string) (string, error) {
	entries, err := b.Build(version)
	if err != nil {
		return "", err
	}
	return Join(entries), nil
}

// Join concatenates entries with the platform list separator (':' or ';').
func Join(entries []string) string {
	return strings.Join(entries, string(os.PathListSeparator))
}

func (b *Builder) libraries() ([]string, error) {
	root := b.layout.LibrariesDir()
	if !layout.Exists(b.fs, root) {
		return nil, nil
	}
	type entry struct{ rel, abs string }
	var found []entry
	err := afero.Walk(b.fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.EqualFold(filepath.Ext(path), layout.ArchiveExt) {
			return nil
		}
		rel, rerr := filepath.Rel(root, path)
		if rerr != nil {
			rel = path
		}
		found = append(found, entry{rel: filepath.ToSlash(rel), abs: path})
		return nil
	})
	if err != nil {
		return nil, apperr.Filesystem("scan libraries", err)
	}
	sort.Slice(found, func(i, j int) bool { return found[i].rel < found[j].rel })
	paths := make([]string, len(found))
	for i, e := range found {
		paths[i] = e.abs
	}
	return paths, nil
}
