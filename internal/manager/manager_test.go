package manager

import (
	"context"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/loykin/launchr/internal/apperr"
	"github.com/loykin/launchr/internal/history"
	"github.com/loykin/launchr/internal/history/sqlite"
)

func requireUnix(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("tests require sh/sleep on Unix-like systems")
	}
}

func sh(script string) Request {
	return Request{Version: "1.20.4", Executable: "/bin/sh", Args: []string{"-c", script}}
}

func TestLaunchAndExitEvent(t *testing.T) {
	requireUnix(t)
	m := New(Options{})
	events, cancel := m.Subscribe()
	defer cancel()

	s, err := m.Launch(sh("exit 7"))
	if err != nil {
		t.Fatalf("launch: %v", err)
	}
	if s.ID == "" || s.Status.PID <= 0 {
		t.Fatalf("session must carry id and pid: %+v", s)
	}
	select {
	case ev := <-events:
		if ev.Session != s.ID || ev.Exit.Code != 7 || ev.Version != "1.20.4" {
			t.Fatalf("unexpected exit event: %+v", ev)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("no exit event")
	}
	got, ok := m.Get(s.ID)
	if !ok || got.Status.Running || got.Status.Exit == nil {
		t.Fatalf("exited session must stay queryable: %+v", got)
	}
}

func TestLaunchFailureKeepsNoHandle(t *testing.T) {
	m := New(Options{})
	_, err := m.Launch(Request{Version: "x", Executable: filepath.Join(t.TempDir(), "java")})
	if !apperr.IsKind(err, apperr.KindLaunch) {
		t.Fatalf("expected launch failure, got %v", err)
	}
	if n := len(m.List()); n != 0 {
		t.Fatalf("failed spawn must not leave a session, got %d", n)
	}
}

func TestTerminateMostRecent(t *testing.T) {
	requireUnix(t)
	ids := []string{"first", "second"}
	i := 0
	m := New(Options{NewID: func() string { id := ids[i]; i++; return id }})
	if _, err := m.Launch(sh("sleep 30")); err != nil {
		t.Fatal(err)
	}
	time.Sleep(20 * time.Millisecond)
	if _, err := m.Launch(sh("sleep 30")); err != nil {
		t.Fatal(err)
	}
	defer m.Shutdown(time.Second)

	s, err := m.Terminate("", 2*time.Second)
	if err != nil {
		t.Fatalf("terminate: %v", err)
	}
	if s.ID != "second" || s.Status.Running || s.Status.Exit == nil || !s.Status.Exit.Stopped {
		t.Fatalf("expected most recent session to be stopped, got %+v", s)
	}
	if first, _ := m.Get("first"); !first.Status.Running {
		t.Fatalf("other sessions must keep running")
	}
	if m.Running() != 1 {
		t.Fatalf("running = %d", m.Running())
	}

	// terminating an exited session is a no-op
	if _, err := m.Terminate("second", time.Second); err != nil {
		t.Fatalf("second terminate: %v", err)
	}
}

func TestTerminateUnknown(t *testing.T) {
	m := New(Options{})
	if _, err := m.Terminate("nope", time.Second); !apperr.IsKind(err, apperr.KindInvalid) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
	if _, err := m.Terminate("", time.Second); !apperr.IsKind(err, apperr.KindInvalid) {
		t.Fatalf("expected invalid argument without running sessions, got %v", err)
	}
}

func TestShutdownStopsAll(t *testing.T) {
	requireUnix(t)
	m := New(Options{})
	for range 3 {
		if _, err := m.Launch(sh("sleep 30")); err != nil {
			t.Fatal(err)
		}
	}
	m.Shutdown(2 * time.Second)
	if n := m.Running(); n != 0 {
		t.Fatalf("running after shutdown = %d", n)
	}
}

func TestExitedSessionsArePruned(t *testing.T) {
	requireUnix(t)
	m := New(Options{})
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for range retainExited + 4 {
		s, err := m.Launch(sh("exit 0"))
		if err != nil {
			t.Fatal(err)
		}
		if _, err := m.Wait(ctx, s.ID); err != nil {
			t.Fatalf("wait: %v", err)
		}
	}
	if n := len(m.List()); n != retainExited {
		t.Fatalf("expected %d retained sessions, got %d", retainExited, n)
	}
}

func TestHistoryRecordsLaunchAndExit(t *testing.T) {
	requireUnix(t)
	sink, err := sqlite.New(filepath.Join(t.TempDir(), "h.db"))
	if err != nil {
		t.Fatal(err)
	}
	rec := history.NewRecorder(nil, sink)
	defer func() { _ = rec.Close() }()

	m := New(Options{History: rec})
	s, err := m.Launch(sh("exit 0"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.Wait(context.Background(), s.ID); err != nil {
		t.Fatal(err)
	}
	rec.Flush()
	n, err := sink.Count(context.Background(), "1.20.4")
	if err != nil || n != 2 {
		t.Fatalf("expected launch+exit rows, got %d err=%v", n, err)
	}
}

func TestUsageOfRunningSession(t *testing.T) {
	requireUnix(t)
	m := New(Options{})
	s, err := m.Launch(sh("sleep 30"))
	if err != nil {
		t.Fatal(err)
	}
	defer m.Shutdown(time.Second)
	u, err := m.Usage(context.Background(), s.ID)
	if err != nil {
		t.Fatalf("usage: %v", err)
	}
	if int(u.PID) != s.Status.PID {
		t.Fatalf("usage pid %d != %d", u.PID, s.Status.PID)
	}
}
