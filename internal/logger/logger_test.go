package logger

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// helper to close non-nil closers and ignore errors
func closeIf(c io.Closer) {
	if c != nil {
		_ = c.Close()
	}
}

func TestSessionWriters_WithDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "games")
	cfg := Config{Dir: dir}
	outW, errW, err := cfg.SessionWriters("1.20.4-abc")
	if err != nil {
		t.Fatalf("SessionWriters error: %v", err)
	}
	if outW == nil || errW == nil {
		t.Fatalf("expected both writers non-nil when Dir is set")
	}
	_, _ = outW.Write([]byte("hello-out\n"))
	_, _ = errW.Write([]byte("hello-err\n"))
	closeIf(outW)
	closeIf(errW)
	for _, p := range []string{"1.20.4-abc.stdout.log", "1.20.4-abc.stderr.log"} {
		if _, err := os.Stat(filepath.Join(dir, p)); err != nil {
			t.Fatalf("log not created at %s: %v", p, err)
		}
	}
}

func TestSessionWriters_NoDir(t *testing.T) {
	outW, errW, err := Config{}.SessionWriters("x")
	if err != nil || outW != nil || errW != nil {
		t.Fatalf("expected nil writers without dir")
	}
}

func TestRotationDefaults(t *testing.T) {
	l := Config{}.rotating("/tmp/x.log")
	if l.MaxSize != DefaultMaxSizeMB || l.MaxBackups != DefaultMaxBackups || l.MaxAge != DefaultMaxAgeDays {
		t.Fatalf("defaults not applied: %+v", l)
	}
	l = Config{MaxSizeMB: 5, MaxBackups: 1, MaxAgeDays: 2, Compress: true}.rotating("/tmp/x.log")
	want := lj.Logger{Filename: "/tmp/x.log", MaxSize: 5, MaxBackups: 1, MaxAge: 2, Compress: true}
	if l.MaxSize != want.MaxSize || l.MaxBackups != want.MaxBackups || l.MaxAge != want.MaxAge || !l.Compress {
		t.Fatalf("overrides not applied: %+v", l)
	}
}

func TestNewFormatsAndLevel(t *testing.T) {
	var buf bytes.Buffer
	log, closer := New(Config{Format: "json", Level: "warn"}, &buf)
	defer closeIf(closer)
	log.Info("hidden")
	log.Warn("shown", "k", "v")
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info should be filtered at warn: %s", out)
	}
	if !strings.Contains(out, `"msg":"shown"`) {
		t.Fatalf("expected json record: %s", out)
	}
}

func TestNewWithFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "launcher.log")
	var buf bytes.Buffer
	log, closer := New(Config{File: file}, &buf)
	log.Info("to-file")
	closeIf(closer)
	b, err := os.ReadFile(file)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(b), "to-file") || !strings.Contains(buf.String(), "to-file") {
		t.Fatalf("record must go to both sinks")
	}
}

func TestParseLevel(t *testing.T) {
	if ParseLevel("DEBUG") != slog.LevelDebug || ParseLevel("") != slog.LevelInfo || ParseLevel("error") != slog.LevelError {
		t.Fatalf("unexpected level mapping")
	}
}

func TestColorTextHandler(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewColorTextHandler(&buf, nil, false))
	log.Error("bad")
	out := buf.String()
	if !strings.HasPrefix(out, "\033[31mERROR\033[0m  ") {
		t.Fatalf("error level should be a raw red prefix: %q", out)
	}
	if strings.Contains(out, `\x1b`) || !strings.Contains(out, "msg=bad") {
		t.Fatalf("escape codes must not be quoted: %q", out)
	}
	if strings.Contains(out, "time=") || strings.Contains(out, "level=") {
		t.Fatalf("time and level attributes must be dropped: %q", out)
	}
}

func TestColorTextHandlerWithAttrs(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewColorTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}, true)).With("version", "1.20.4")
	log.Info("hidden")
	log.Warn("slow")
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one line above the level threshold, got %q", buf.String())
	}
	if !strings.HasPrefix(lines[0], "\033[33mWARN\033[0m  time=") || !strings.Contains(lines[0], "version=1.20.4") {
		t.Fatalf("unexpected line: %q", lines[0])
	}
}
