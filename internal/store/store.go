package store

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Kind classifies a catalog entry the way version manifests do.
type Kind string

const (
	KindRelease  Kind = "release"
	KindSnapshot Kind = "snapshot"
	KindOldAlpha Kind = "old_alpha"
	KindOldBeta  Kind = "old_beta"
	KindModded   Kind = "modded"
)

// ParseKind maps a manifest "type" to a Kind; unknown values are treated as modded.
func ParseKind(s string) Kind {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindRelease, KindSnapshot, KindOldAlpha, KindOldBeta:
		return k
	default:
		return KindModded
	}
}

// VersionRecord describes one installable or installed game version.
type VersionRecord struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	ReleaseTime time.Time `json:"release_time"`
	Kind        Kind      `json:"kind"`
	Installed   bool      `json:"installed"`
	SizeMB      float64   `json:"size_mb"`
	JavaMajor   int       `json:"java_major,omitempty"`
	URL         string    `json:"url,omitempty"`
	SHA1        string    `json:"sha1,omitempty"`
}

// ErrNotFound is returned by Get for unknown ids.
var ErrNotFound = errors.New("version not in catalog")

// Catalog persists version metadata between runs.
type Catalog interface {
	EnsureSchema(ctx context.Context) error
	Upsert(ctx context.Context, v VersionRecord) error
	Get(ctx context.Context, id string) (VersionRecord, error)
	List(ctx context.Context) ([]VersionRecord, error)
	MarkInstalled(ctx context.Context, id string, installed bool, sizeMB float64) error
	Close() error
}

// Open picks the backend from the DSN: postgres:// and postgresql:// use pgx,
// everything else is treated as a SQLite path (optionally prefixed with sqlite://).
func Open(dsn string) (Catalog, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("empty catalog DSN")
	}
	lower := strings.ToLower(dsn)
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return openSQL(dialectPostgres, dsn)
	}
	if strings.HasPrefix(lower, "sqlite://") {
		dsn = dsn[len("sqlite://"):]
	}
	return openSQL(dialectSQLite, dsn)
}
