package javaruntime

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"

	"github.com/loykin/launchr/internal/apperr"
	"github.com/loykin/launchr/internal/layout"
)

type lookupSpy struct {
	calls int
	path  string
	err   error
}

func (s *lookupSpy) fn(_ context.Context, _ string) (string, error) {
	s.calls++
	return s.path, s.err
}

func TestResolveBundledSkipsSystemLookup(t *testing.T) {
	fs := afero.NewMemMapFs()
	l := layout.New("/home")
	spy := &lookupSpy{path: "/usr/bin/java"}
	r := New(fs, l, spy.fn)
	if err := afero.WriteFile(fs, r.BundledPath(), []byte{0x7f}, 0o755); err != nil {
		t.Fatal(err)
	}
	got, err := r.Resolve(context.Background())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != r.BundledPath() {
		t.Fatalf("got %q want bundled %q", got, r.BundledPath())
	}
	if spy.calls != 0 {
		t.Fatalf("system lookup performed %d times", spy.calls)
	}
}

func TestResolveFallsBackToSystem(t *testing.T) {
	spy := &lookupSpy{path: "/usr/bin/java\n"}
	r := New(afero.NewMemMapFs(), layout.New("/home"), spy.fn)
	got, err := r.Resolve(context.Background())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != "/usr/bin/java" || spy.calls != 1 {
		t.Fatalf("got %q calls=%d", got, spy.calls)
	}
}

func TestResolveNotFound(t *testing.T) {
	spy := &lookupSpy{err: errors.New("not found")}
	r := New(afero.NewMemMapFs(), layout.New("/home"), spy.fn)
	_, err := r.Resolve(context.Background())
	if apperr.KindOf(err) != apperr.KindRuntimeNotFound {
		t.Fatalf("expected RuntimeNotFound, got %v", err)
	}
}

func TestResolveWithOverride(t *testing.T) {
	fs := afero.NewMemMapFs()
	_ = afero.WriteFile(fs, "/opt/jdk/bin/java", []byte{1}, 0o755)
	spy := &lookupSpy{path: "/usr/bin/java"}
	r := New(fs, layout.New("/home"), spy.fn)

	got, err := r.ResolveWithOverride(context.Background(), "/opt/jdk/bin/java")
	if err != nil || got != "/opt/jdk/bin/java" {
		t.Fatalf("override: %q %v", got, err)
	}
	_, err = r.ResolveWithOverride(context.Background(), "/missing/java")
	if apperr.KindOf(err) != apperr.KindRuntimeNotFound {
		t.Fatalf("expected RuntimeNotFound for missing override, got %v", err)
	}
	got, err = r.ResolveWithOverride(context.Background(), "")
	if err != nil || got != "/usr/bin/java" {
		t.Fatalf("empty override should resolve normally: %q %v", got, err)
	}
}

func TestDiscoverBundledAndSystem(t *testing.T) {
	fs := afero.NewMemMapFs()
	l := layout.New("/home")
	spy := &lookupSpy{path: "/usr/bin/java"}
	r := New(fs, l, spy.fn)
	_ = afero.WriteFile(fs, r.BundledPath(), []byte{1}, 0o755)
	_ = afero.WriteFile(fs, filepath.Join(l.RuntimeDir(), "release"), []byte("IMPLEMENTOR=\"Eclipse Adoptium\"\nJAVA_VERSION=\"21.0.2\"\n"), 0o644)

	recs, err := r.Discover(context.Background())
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 runtimes, got %+v", recs)
	}
	if !recs[0].Default || recs[0].Source != SourceBundled || recs[0].Version != "21.0.2" {
		t.Fatalf("bundled record wrong: %+v", recs[0])
	}
	if recs[1].Default || recs[1].Source != SourceSystem {
		t.Fatalf("system record wrong: %+v", recs[1])
	}
	if recs[0].Major() != 21 {
		t.Fatalf("major = %d", recs[0].Major())
	}
}

func TestDiscoverNone(t *testing.T) {
	spy := &lookupSpy{err: errors.New("nope")}
	recs, err := New(afero.NewMemMapFs(), layout.New("/home"), spy.fn).Discover(context.Background())
	if err != nil || len(recs) != 0 {
		t.Fatalf("expected empty list, got %v %v", recs, err)
	}
}

func TestMajorOf(t *testing.T) {
	cases := map[string]int{
		"1.8.0_392": 8,
		"17.0.9":    17,
		"21":        21,
		"22-ea":     22,
		"":          0,
		"abc":       0,
	}
	for in, want := range cases {
		if got := MajorOf(in); got != want {
			t.Errorf("MajorOf(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestParseVersionOutput(t *testing.T) {
	out := []byte("openjdk version \"17.0.9\" 2023-10-17\nOpenJDK Runtime Environment\n")
	if got := parseVersionOutput(out); got != "17.0.9" {
		t.Fatalf("got %q", got)
	}
	if got := parseVersionOutput([]byte("garbage")); got != "" {
		t.Fatalf("got %q", got)
	}
}
