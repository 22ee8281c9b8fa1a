package classpath

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/loykin/launchr/internal/apperr"
	"github.com/loykin/launchr/internal/layout"
)

func writeFile(t *testing.T, fs afero.Fs, path string) {
	t.Helper()
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := afero.WriteFile(fs, path, []byte("PK"), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func fixture(t *testing.T) (afero.Fs, layout.Layout) {
	t.Helper()
	fs := afero.NewMemMapFs()
	l := layout.New("/launcher")
	libs := l.LibrariesDir()
	writeFile(t, fs, filepath.Join(libs, "org", "lwjgl", "lwjgl", "3.3.1", "lwjgl-3.3.1.jar"))
	writeFile(t, fs, filepath.Join(libs, "com", "google", "gson", "2.10", "gson-2.10.jar"))
	writeFile(t, fs, filepath.Join(libs, "com", "mojang", "brigadier.jar"))
	writeFile(t, fs, filepath.Join(libs, "com", "mojang", "README.txt"))
	writeFile(t, fs, l.VersionArchive("1.20.4"))
	return fs, l
}

func TestBuildDeterministicOrder(t *testing.T) {
	fs, l := fixture(t)
	b := New(fs, l)
	first, err := b.Build("1.20.4")
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(first) != 4 {
		t.Fatalf("expected 3 libraries + 1 version archive, got %d: %v", len(first), first)
	}
	libs := l.LibrariesDir()
	want := []string{
		filepath.Join(libs, "com", "google", "gson", "2.10", "gson-2.10.jar"),
		filepath.Join(libs, "com", "mojang", "brigadier.jar"),
		filepath.Join(libs, "org", "lwjgl", "lwjgl", "3.3.1", "lwjgl-3.3.1.jar"),
		l.VersionArchive("1.20.4"),
	}
	if !reflect.DeepEqual(first, want) {
		t.Fatalf("order mismatch\n got: %v\nwant: %v", first, want)
	}
	for i := 0; i < 5; i++ {
		again, err := b.Build("1.20.4")
		if err != nil {
			t.Fatalf("rebuild: %v", err)
		}
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("order changed between runs")
		}
	}
	seen := map[string]bool{}
	for _, p := range first {
		if seen[p] {
			t.Fatalf("duplicate entry %s", p)
		}
		seen[p] = true
	}
}

func TestBuildJoinedUsesPlatformSeparator(t *testing.T) {
	fs, l := fixture(t)
	joined, err := New(fs, l).BuildJoined("1.20.4")
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	parts := strings.Split(joined, string(os.PathListSeparator))
	if len(parts) != 4 {
		t.Fatalf("expected 4 parts, got %d (%q)", len(parts), joined)
	}
}

func TestBuildMissingVersion(t *testing.T) {
	fs, l := fixture(t)
	_, err := New(fs, l).Build("1.8.9")
	if apperr.KindOf(err) != apperr.KindVersionNotFound {
		t.Fatalf("expected VersionNotFound, got %v", err)
	}
}

func TestBuildWithoutLibraries(t *testing.T) {
	fs := afero.NewMemMapFs()
	l := layout.New("/launcher")
	writeFile(t, fs, l.VersionArchive("1.12.2"))
	got, err := New(fs, l).Build("1.12.2")
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(got) != 1 || got[0] != l.VersionArchive("1.12.2") {
		t.Fatalf("expected only the version archive, got %v", got)
	}
}

func TestBuildVersionDirWithoutArchive(t *testing.T) {
	fs := afero.NewMemMapFs()
	l := layout.New("/launcher")
	if err := fs.MkdirAll(l.VersionDir("empty"), 0o755); err != nil {
		t.Fatal(err)
	}
	got, err := New(fs, l).Build("empty")
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty classpath, got %v", got)
	}
}
