package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

type dialect struct {
	driver string
	// numbered reports $n placeholders instead of ?
	numbered bool
	ts       string
}

var (
	dialectSQLite   = dialect{driver: "sqlite", ts: "TIMESTAMP"}
	dialectPostgres = dialect{driver: "pgx", numbered: true, ts: "TIMESTAMPTZ"}
)

// rebind rewrites ? placeholders for drivers that need $n.
func (d dialect) rebind(q string) string {
	if !d.numbered {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// DB implements Catalog over database/sql for SQLite and PostgreSQL.
type DB struct {
	db *sql.DB
	d  dialect
}

func openSQL(d dialect, dsn string) (*DB, error) {
	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s catalog: %w", d.driver, err)
	}
	if d == dialectSQLite {
		db.SetMaxOpenConns(1)
		_, _ = db.Exec("PRAGMA busy_timeout=3000;")
	}
	s := &DB{db: db, d: d}
	if err := s.EnsureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *DB) EnsureSchema(ctx context.Context) error {
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS versions(
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		release_time %s,
		kind TEXT NOT NULL,
		installed BOOLEAN NOT NULL DEFAULT FALSE,
		size_mb DOUBLE PRECISION NOT NULL DEFAULT 0,
		java_major INTEGER NOT NULL DEFAULT 0,
		url TEXT NOT NULL DEFAULT '',
		sha1 TEXT NOT NULL DEFAULT '',
		updated_at %s NOT NULL
	);`, s.d.ts, s.d.ts)
	_, err := s.db.ExecContext(ctx, stmt)
	return err
}

// Upsert inserts or refreshes manifest metadata. The installed flag and size of an
// existing row are kept, since those belong to the local install.
func (s *DB) Upsert(ctx context.Context, v VersionRecord) error {
	if v.ID == "" {
		return errors.New("version id is required")
	}
	if v.Name == "" {
		v.Name = v.ID
	}
	if v.Kind == "" {
		v.Kind = KindModded
	}
	q := s.d.rebind(`INSERT INTO versions(id, name, release_time, kind, installed, size_mb, java_major, url, sha1, updated_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			release_time = excluded.release_time,
			kind = excluded.kind,
			java_major = excluded.java_major,
			url = excluded.url,
			sha1 = excluded.sha1,
			updated_at = excluded.updated_at`)
	_, err := s.db.ExecContext(ctx, q, v.ID, v.Name, nullTime(v.ReleaseTime), string(v.Kind), v.Installed,
		v.SizeMB, v.JavaMajor, v.URL, v.SHA1, time.Now().UTC())
	return err
}

const selectCols = `SELECT id, name, release_time, kind, installed, size_mb, java_major, url, sha1 FROM versions`

func (s *DB) Get(ctx context.Context, id string) (VersionRecord, error) {
	row := s.db.QueryRowContext(ctx, s.d.rebind(selectCols+` WHERE id = ?`), id)
	v, err := scanVersion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return VersionRecord{}, ErrNotFound
	}
	return v, err
}

// List returns all entries, newest release first.
func (s *DB) List(ctx context.Context) ([]VersionRecord, error) {
	rows, err := s.db.QueryContext(ctx, selectCols+` ORDER BY release_time DESC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []VersionRecord
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// MarkInstalled flips the installed flag, creating a minimal row for ids the
// catalog has not seen (e.g. locally copied versions).
func (s *DB) MarkInstalled(ctx context.Context, id string, installed bool, sizeMB float64) error {
	q := s.d.rebind(`INSERT INTO versions(id, name, kind, installed, size_mb, updated_at)
		VALUES(?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			installed = excluded.installed,
			size_mb = excluded.size_mb,
			updated_at = excluded.updated_at`)
	_, err := s.db.ExecContext(ctx, q, id, id, string(KindModded), installed, sizeMB, time.Now().UTC())
	return err
}

func (s *DB) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

type scanner interface{ Scan(dest ...any) error }

func scanVersion(r scanner) (VersionRecord, error) {
	var (
		v    VersionRecord
		rt   sql.NullTime
		kind string
	)
	if err := r.Scan(&v.ID, &v.Name, &rt, &kind, &v.Installed, &v.SizeMB, &v.JavaMajor, &v.URL, &v.SHA1); err != nil {
		return VersionRecord{}, err
	}
	if rt.Valid {
		v.ReleaseTime = rt.Time.UTC()
	}
	v.Kind = Kind(kind)
	return v, nil
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
