package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/loykin/launchr/internal/history"
)

// Sink writes launcher history to a SQLite database.
type Sink struct {
	db *sql.DB
}

// New opens (or creates) the database and its launch_history table.
// Accepted DSNs: "sqlite:///path/to/file.db", "sqlite://:memory:", a bare path, or ":memory:".
func New(dsn string) (*Sink, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("empty SQLite DSN")
	}
	if strings.HasPrefix(strings.ToLower(dsn), "sqlite://") {
		dsn = dsn[len("sqlite://"):]
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// a single connection keeps ":memory:" databases shared across calls
	db.SetMaxOpenConns(1)

	sink := &Sink{db: db}
	if err := sink.ensureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return sink, nil
}

func (s *Sink) ensureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS launch_history(
		occurred_at TIMESTAMP NOT NULL DEFAULT (CURRENT_TIMESTAMP),
		event TEXT NOT NULL,
		session TEXT,
		version TEXT NOT NULL,
		pid INTEGER NOT NULL DEFAULT 0,
		started_at TIMESTAMP,
		stopped_at TIMESTAMP,
		exit_code INTEGER NOT NULL DEFAULT 0,
		signal TEXT,
		error TEXT
	);`)
	return err
}

func (s *Sink) Send(ctx context.Context, e history.Event) error {
	r := e.Record
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO launch_history(occurred_at, event, session, version, pid, started_at, stopped_at, exit_code, signal, error)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`,
		e.OccurredAt.UTC(), string(e.Type), history.NullString(r.Session), r.Version, r.PID,
		history.NullTime(r.StartedAt), history.NullTime(r.StoppedAt), r.ExitCode,
		history.NullString(r.Signal), history.NullString(r.Error))
	return err
}

// Count returns the number of rows recorded for a version; used by status tooling and tests.
func (s *Sink) Count(ctx context.Context, version string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM launch_history WHERE version = ?`, version).Scan(&n)
	return n, err
}

func (s *Sink) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
