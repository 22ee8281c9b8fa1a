package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/loykin/launchr/internal/history"
)

func TestSinkRecordsLaunchAndExit(t *testing.T) {
	sink, err := New("sqlite://" + filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}
	defer func() { _ = sink.Close() }()

	ctx := context.Background()
	rec := history.Record{Session: "a1", Version: "1.20.4", PID: 4242, StartedAt: time.Now().Add(-time.Minute).UTC()}
	if err := sink.Send(ctx, history.Event{Type: history.EventLaunch, OccurredAt: time.Now().UTC(), Record: rec}); err != nil {
		t.Fatalf("send launch: %v", err)
	}
	rec.StoppedAt = time.Now().UTC()
	rec.ExitCode = 1
	if err := sink.Send(ctx, history.Event{Type: history.EventExit, OccurredAt: rec.StoppedAt, Record: rec}); err != nil {
		t.Fatalf("send exit: %v", err)
	}

	n, err := sink.Count(ctx, "1.20.4")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 rows, got %d", n)
	}

	var code int
	var stopped any
	row := sink.db.QueryRowContext(ctx, `SELECT exit_code, stopped_at FROM launch_history WHERE event = 'exit'`)
	if err := row.Scan(&code, &stopped); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if code != 1 || stopped == nil {
		t.Fatalf("unexpected exit row: code=%d stopped=%v", code, stopped)
	}
}

func TestSinkInstallEventWithoutSession(t *testing.T) {
	sink, err := New(":memory:")
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}
	defer func() { _ = sink.Close() }()

	ctx := context.Background()
	ev := history.Event{Type: history.EventInstallFailed, Record: history.Record{Version: "1.8.9", Error: "checksum mismatch"}}
	ev.OccurredAt = time.Now()
	if err := sink.Send(ctx, ev); err != nil {
		t.Fatalf("send: %v", err)
	}
	var session, msg any
	if err := sink.db.QueryRowContext(ctx, `SELECT session, error FROM launch_history`).Scan(&session, &msg); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if session != nil {
		t.Fatalf("install rows must not carry a session, got %v", session)
	}
	if s, _ := msg.(string); s != "checksum mismatch" {
		t.Fatalf("error column = %v", msg)
	}
}

func TestNewEmptyDSN(t *testing.T) {
	if _, err := New("  "); err == nil {
		t.Fatalf("expected error for empty DSN")
	}
}
