package install

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/loykin/launchr/internal/apperr"
	"github.com/loykin/launchr/internal/store"
)

// Artifact is the downloadable payload for one version.
type Artifact struct {
	ID          string
	URL         string
	SHA1        string
	Size        int64
	Kind        store.Kind
	ReleaseTime time.Time
	JavaMajor   int
}

// Source resolves a version id to its artifact.
type Source interface {
	Resolve(ctx context.Context, id string) (Artifact, error)
}

// manifest mirrors version_manifest_v2.json. size and javaVersion are optional
// extensions; the stock manifest leaves them out.
type manifest struct {
	Latest struct {
		Release  string `json:"release"`
		Snapshot string `json:"snapshot"`
	} `json:"latest"`
	Versions []manifestEntry `json:"versions"`
}

type manifestEntry struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	URL         string    `json:"url"`
	Time        time.Time `json:"time"`
	ReleaseTime time.Time `json:"releaseTime"`
	SHA1        string    `json:"sha1"`
	Size        int64     `json:"size"`
	JavaVersion struct {
		MajorVersion int `json:"majorVersion"`
	} `json:"javaVersion"`
}

func (e manifestEntry) artifact() Artifact {
	return Artifact{
		ID:          e.ID,
		URL:         e.URL,
		SHA1:        e.SHA1,
		Size:        e.Size,
		Kind:        store.ParseKind(e.Type),
		ReleaseTime: e.ReleaseTime,
		JavaMajor:   e.JavaVersion.MajorVersion,
	}
}

// ManifestSource reads a Mojang-style version manifest over HTTP.
type ManifestSource struct {
	client *resty.Client
	url    string
}

func NewManifestSource(client *resty.Client, url string) *ManifestSource {
	if client == nil {
		client = resty.New().SetTimeout(30 * time.Second)
	}
	return &ManifestSource{client: client, url: url}
}

func (m *ManifestSource) fetch(ctx context.Context) (*manifest, error) {
	if m.url == "" {
		return nil, apperr.New(apperr.KindInstall, "no version manifest URL is configured")
	}
	var out manifest
	resp, err := m.client.R().SetContext(ctx).ForceContentType("application/json").SetResult(&out).Get(m.url)
	if err != nil {
		return nil, apperr.Network("could not fetch the version manifest", err)
	}
	if resp.IsError() {
		return nil, apperr.Network("could not fetch the version manifest", fmt.Errorf("GET %s: %s", m.url, resp.Status()))
	}
	return &out, nil
}

// Resolve looks id up in the manifest. The ids "latest" and "latest-snapshot" follow
// the manifest's latest pointers.
func (m *ManifestSource) Resolve(ctx context.Context, id string) (Artifact, error) {
	mf, err := m.fetch(ctx)
	if err != nil {
		return Artifact{}, err
	}
	switch id {
	case "latest":
		id = mf.Latest.Release
	case "latest-snapshot":
		id = mf.Latest.Snapshot
	}
	for _, e := range mf.Versions {
		if e.ID == id {
			return e.artifact(), nil
		}
	}
	return Artifact{}, apperr.Newf(apperr.KindVersionNotFound, "version %q is not in the version manifest", id)
}

// Versions lists every manifest entry as a catalog record.
func (m *ManifestSource) Versions(ctx context.Context) ([]store.VersionRecord, error) {
	mf, err := m.fetch(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]store.VersionRecord, 0, len(mf.Versions))
	for _, e := range mf.Versions {
		out = append(out, store.VersionRecord{
			ID:          e.ID,
			Name:        e.ID,
			ReleaseTime: e.ReleaseTime,
			Kind:        store.ParseKind(e.Type),
			SizeMB:      float64(e.Size) / (1024 * 1024),
			JavaMajor:   e.JavaVersion.MajorVersion,
			URL:         e.URL,
			SHA1:        e.SHA1,
		})
	}
	return out, nil
}

// Sync imports the manifest into the catalog and returns the number of entries written.
func (m *ManifestSource) Sync(ctx context.Context, c store.Catalog) (int, error) {
	vs, err := m.Versions(ctx)
	if err != nil {
		return 0, err
	}
	for i, v := range vs {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		if err := c.Upsert(ctx, v); err != nil {
			return i, fmt.Errorf("catalog upsert %s: %w", v.ID, err)
		}
	}
	return len(vs), nil
}

// CatalogSource resolves ids from the local catalog, falling back to next
// (usually a ManifestSource) for unknown ids or rows without a URL.
type CatalogSource struct {
	Catalog store.Catalog
	Next    Source
}

func (c CatalogSource) Resolve(ctx context.Context, id string) (Artifact, error) {
	if c.Catalog != nil {
		if v, err := c.Catalog.Get(ctx, id); err == nil && v.URL != "" {
			return Artifact{
				ID: v.ID, URL: v.URL, SHA1: v.SHA1, Kind: v.Kind,
				ReleaseTime: v.ReleaseTime, JavaMajor: v.JavaMajor,
			}, nil
		}
	}
	if c.Next == nil {
		return Artifact{}, apperr.VersionNotFound(id)
	}
	return c.Next.Resolve(ctx, id)
}
