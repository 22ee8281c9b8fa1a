package install

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/afero"

	"github.com/loykin/launchr/internal/apperr"
	"github.com/loykin/launchr/internal/history"
	"github.com/loykin/launchr/internal/layout"
	"github.com/loykin/launchr/internal/metrics"
	"github.com/loykin/launchr/internal/store"
)

// RuntimeResolver is satisfied by *javaruntime.Resolver.
type RuntimeResolver interface {
	Resolve(ctx context.Context) (string, error)
}

// Options wires collaborators into a Pipeline. Source is required; the rest are optional.
type Options struct {
	Source  Source
	Client  *resty.Client
	Runtime RuntimeResolver
	Catalog store.Catalog
	History *history.Recorder
	Logger  *slog.Logger
	// Concurrency bounds archive extraction workers.
	Concurrency int
	// RuntimeURL points at a runtime zip fetched when no runtime resolves.
	RuntimeURL  string
	RuntimeSHA1 string
	// OnStage is called, in order, each time an install enters a stage.
	OnStage func(version string, stage Stage)
}

// Pipeline runs installs: Downloading, Verifying, Extracting, InstallingRuntime,
// then Completed, or Error from any of them.
type Pipeline struct {
	fs       afero.Fs
	layout   layout.Layout
	opts     Options
	dl       *Downloader
	x        *Extractor
	registry *Registry
	log      *slog.Logger
}

func New(fs afero.Fs, l layout.Layout, opts Options) *Pipeline {
	lg := opts.Logger
	if lg == nil {
		lg = slog.Default()
	}
	client := opts.Client
	if client == nil {
		client = resty.New().SetTimeout(30 * time.Minute)
	}
	return &Pipeline{
		fs:       fs,
		layout:   l,
		opts:     opts,
		dl:       NewDownloader(client, fs),
		x:        NewExtractor(fs, l, opts.Concurrency),
		registry: NewRegistry(),
		log:      lg,
	}
}

func (p *Pipeline) Registry() *Registry { return p.registry }

// Start resolves id, registers the install under the resolved version id and runs
// it in the background. Aliases such as "latest" therefore install under the id
// they point at, and the returned state names that id. It fails with Conflict
// while another install of the same version is unfinished.
func (p *Pipeline) Start(ctx context.Context, id string) (State, error) {
	j, jctx, art, err := p.begin(ctx, id)
	if err != nil {
		return State{}, err
	}
	go func() { _ = p.run(jctx, j, art) }()
	return j.snapshot(), nil
}

// Run installs id synchronously and returns the final state. Cancelling ctx
// aborts the install at the next stage boundary or mid-download.
func (p *Pipeline) Run(ctx context.Context, id string) (State, error) {
	j, jctx, art, err := p.begin(ctx, id)
	if err != nil {
		return State{}, err
	}
	stop := context.AfterFunc(ctx, j.cancel)
	defer stop()
	if err := p.run(jctx, j, art); err != nil {
		return j.snapshot(), err
	}
	return j.snapshot(), nil
}

func (p *Pipeline) begin(ctx context.Context, id string) (*job, context.Context, Artifact, error) {
	if err := ValidateID(id); err != nil {
		return nil, nil, Artifact{}, err
	}
	art, err := p.opts.Source.Resolve(ctx, id)
	if err != nil {
		return nil, nil, Artifact{}, err
	}
	if art.ID == "" {
		art.ID = id
	}
	if err := ValidateID(art.ID); err != nil {
		return nil, nil, Artifact{}, err
	}
	jctx, cancel := context.WithCancel(context.Background())
	j, err := p.registry.begin(art.ID, cancel)
	if err != nil {
		cancel()
		return nil, nil, Artifact{}, err
	}
	p.entered(art.ID, "", StageDownloading)
	return j, jctx, art, nil
}

// ValidateID rejects ids that cannot name a directory under versions/.
func ValidateID(id string) error {
	if strings.TrimSpace(id) == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\:`) {
		return apperr.Invalid(fmt.Sprintf("invalid version id %q", id), nil)
	}
	return nil
}

func (p *Pipeline) run(ctx context.Context, j *job, art Artifact) (err error) {
	defer close(j.done)
	defer j.cancel()

	id := art.ID
	versionDir := p.layout.VersionDir(id)
	existed := layout.Exists(p.fs, versionDir)
	tmp := filepath.Join(p.layout.VersionsDir(), "."+id+".download")
	defer func() { _ = p.fs.Remove(tmp) }()
	extracting := false

	defer func() {
		if err == nil {
			return
		}
		if errors.Is(err, context.Canceled) {
			err = apperr.Install("install cancelled", err)
		}
		if extracting && !existed {
			_ = p.fs.RemoveAll(versionDir)
		}
		p.fail(j, err)
	}()

	if err = ctx.Err(); err != nil {
		return err
	}
	if err = p.layout.Ensure(p.fs, p.layout.VersionsDir()); err != nil {
		return err
	}
	n, err := p.dl.Fetch(ctx, art.URL, tmp, art.Size, func(pr Progress) {
		j.publish(func(s *State) {
			s.BytesDownloaded = pr.Downloaded
			s.TotalBytes = pr.Total
			s.SpeedMbps = pr.SpeedMbps
			if pr.Total > 0 {
				s.Progress = downloadShare * float64(pr.Downloaded) / float64(pr.Total)
			}
		})
	})
	metrics.AddInstallBytes(n)
	if err != nil {
		return err
	}

	if err = p.checkpoint(ctx, j, StageVerifying); err != nil {
		return err
	}
	if err = VerifySHA1(p.fs, tmp, art.SHA1); err != nil {
		return err
	}

	if err = p.checkpoint(ctx, j, StageExtracting); err != nil {
		return err
	}
	extracting = true
	errc := make(chan error, 1)
	go func() { errc <- p.x.Version(ctx, tmp, id) }()
	if err = <-errc; err != nil {
		return err
	}
	if !layout.Exists(p.fs, p.layout.VersionArchive(id)) {
		return apperr.Install(fmt.Sprintf("artifact for %s did not produce %s", id, filepath.Base(p.layout.VersionArchive(id))), nil)
	}

	if err = p.checkpoint(ctx, j, StageInstallingRuntime); err != nil {
		return err
	}
	if err = p.ensureRuntime(ctx); err != nil {
		return err
	}

	if err = p.checkpoint(ctx, j, StageCompleted); err != nil {
		return err
	}
	p.complete(ctx, art, n)
	return nil
}

func (p *Pipeline) checkpoint(ctx context.Context, j *job, next Stage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.advance(j, next)
}

func (p *Pipeline) advance(j *job, to Stage) error {
	var from Stage
	var bad bool
	j.publish(func(s *State) {
		from = s.Stage
		if !CanTransition(s.Stage, to) {
			bad = true
			return
		}
		s.Stage = to
		s.SpeedMbps = 0
		s.Progress = max(s.Progress, stageProgress[to])
	})
	if bad {
		return apperr.Newf(apperr.KindInstall, "invalid stage transition %s -> %s", from, to)
	}
	p.entered(j.snapshot().Version, from, to)
	return nil
}

func (p *Pipeline) entered(version string, from, to Stage) {
	metrics.RecordStageTransition(string(from), string(to))
	p.log.Debug("install stage", "version", version, "from", from, "to", to)
	if p.opts.OnStage != nil {
		p.opts.OnStage(version, to)
	}
}

func (p *Pipeline) fail(j *job, err error) {
	var from Stage
	moved := false
	st := j.publish(func(s *State) {
		if s.Stage.Terminal() {
			return
		}
		from, moved = s.Stage, true
		s.Stage = StageError
		s.SpeedMbps = 0
		s.Error = err.Error()
	})
	if moved {
		p.entered(st.Version, from, StageError)
	}
	metrics.IncInstall("error")
	p.log.Warn("install failed", "version", st.Version, "error", err)
	p.opts.History.Record(history.Event{
		Type:   history.EventInstallFailed,
		Record: history.Record{Version: st.Version, Error: err.Error()},
	})
}

func (p *Pipeline) complete(ctx context.Context, art Artifact, n int64) {
	metrics.IncInstall("completed")
	p.log.Info("install completed", "version", art.ID, "bytes", n)
	if c := p.opts.Catalog; c != nil {
		rec := store.VersionRecord{
			ID: art.ID, Name: art.ID, ReleaseTime: art.ReleaseTime, Kind: art.Kind,
			JavaMajor: art.JavaMajor, URL: art.URL, SHA1: art.SHA1,
		}
		if err := c.Upsert(ctx, rec); err != nil {
			p.log.Warn("catalog update failed", "version", art.ID, "error", err)
		}
		if err := c.MarkInstalled(ctx, art.ID, true, float64(n)/(1024*1024)); err != nil {
			p.log.Warn("catalog update failed", "version", art.ID, "error", err)
		}
	}
	p.opts.History.Record(history.Event{
		Type:   history.EventInstallComplete,
		Record: history.Record{Version: art.ID},
	})
}

// ensureRuntime succeeds when a runtime already resolves. Otherwise it downloads
// the configured runtime archive into runtime/, or reports RuntimeNotFound.
func (p *Pipeline) ensureRuntime(ctx context.Context) error {
	if p.opts.Runtime == nil {
		return nil
	}
	_, rerr := p.opts.Runtime.Resolve(ctx)
	if rerr == nil {
		return nil
	}
	if p.opts.RuntimeURL == "" {
		return rerr
	}
	tmp := filepath.Join(p.layout.Home(), ".runtime.download")
	defer func() { _ = p.fs.Remove(tmp) }()
	n, err := p.dl.Fetch(ctx, p.opts.RuntimeURL, tmp, 0, nil)
	metrics.AddInstallBytes(n)
	if err != nil {
		return err
	}
	if err := VerifySHA1(p.fs, tmp, p.opts.RuntimeSHA1); err != nil {
		return err
	}
	if err := p.x.Runtime(ctx, tmp); err != nil {
		return err
	}
	if _, err := p.opts.Runtime.Resolve(ctx); err != nil {
		return apperr.RuntimeNotFound("runtime archive did not contain bin/java")
	}
	return nil
}
