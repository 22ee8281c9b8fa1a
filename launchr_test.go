package launchr

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestLauncherFacade(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "launchr.toml")
	if err := os.WriteFile(path, []byte("home = \"game\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	c, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if c.Home != filepath.Join(dir, "game") {
		t.Fatalf("home must resolve next to the config file, got %s", c.Home)
	}
	l, err := New(c, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer func() { _ = l.Close() }()

	versions, err := l.InstalledVersions(context.Background())
	if err != nil || len(versions) != 0 {
		t.Fatalf("fresh home must have no versions: %v %v", versions, err)
	}
	_, err = l.Launch(context.Background(), LaunchSpec{Version: "1.20.4"})
	if KindOf(err) != "version_not_found" {
		t.Fatalf("expected version_not_found, got %v", err)
	}
	ls, err := l.Settings()
	if err != nil {
		t.Fatal(err)
	}
	ls.VSync = false
	if err := l.SaveSettings(ls); err != nil {
		t.Fatalf("save settings: %v", err)
	}

	rec := httptest.NewRecorder()
	l.Handler("/api").ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/get_game_settings", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("handler status %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRegisterMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := RegisterMetrics(reg); err != nil {
		t.Fatalf("register: %v", err)
	}
	if MetricsHandler() == nil {
		t.Fatal("nil metrics handler")
	}
}
