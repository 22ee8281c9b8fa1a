package install

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/afero"

	"github.com/loykin/launchr/internal/apperr"
)

// Progress is reported while bytes arrive.
type Progress struct {
	Downloaded int64
	Total      int64
	SpeedMbps  float64
}

// Downloader streams artifacts to the filesystem.
type Downloader struct {
	client   *resty.Client
	fs       afero.Fs
	interval time.Duration
}

func NewDownloader(client *resty.Client, fs afero.Fs) *Downloader {
	if client == nil {
		client = resty.New()
	}
	return &Downloader{client: client, fs: fs, interval: 200 * time.Millisecond}
}

// Fetch downloads url into dst, calling onProgress at most once per interval and
// once more when the body is complete. The file is removed on failure.
func (d *Downloader) Fetch(ctx context.Context, url, dst string, size int64, onProgress func(Progress)) (int64, error) {
	if url == "" {
		return 0, apperr.New(apperr.KindInstall, "artifact has no download URL")
	}
	resp, err := d.client.R().SetContext(ctx).SetDoNotParseResponse(true).Get(url)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, apperr.Network("download failed", err)
	}
	body := resp.RawBody()
	defer func() { _ = body.Close() }()
	if resp.IsError() {
		return 0, apperr.Network("download failed", fmt.Errorf("GET %s: %s", url, resp.Status()))
	}

	total := size
	if total <= 0 {
		total = resp.RawResponse.ContentLength
	}
	if err := d.fs.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return 0, apperr.Filesystem("could not create download directory", err)
	}
	f, err := d.fs.Create(dst)
	if err != nil {
		return 0, apperr.Filesystem("could not create download file", err)
	}

	pw := &progressWriter{w: f, total: total, start: time.Now(), interval: d.interval, fn: onProgress}
	n, copyErr := io.Copy(pw, &ctxReader{ctx: ctx, r: body})
	closeErr := f.Close()
	if copyErr == nil {
		copyErr = closeErr
	}
	if copyErr != nil {
		_ = d.fs.Remove(dst)
		if ctx.Err() != nil {
			return n, ctx.Err()
		}
		var ae *apperr.Error
		if errors.As(copyErr, &ae) {
			return n, ae
		}
		return n, apperr.Network("download interrupted", copyErr)
	}
	pw.report(true)
	return n, nil
}

type progressWriter struct {
	w        io.Writer
	n        int64
	total    int64
	start    time.Time
	last     time.Time
	interval time.Duration
	fn       func(Progress)
}

func (p *progressWriter) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	p.n += int64(n)
	if err != nil {
		return n, apperr.Filesystem("could not write download file", err)
	}
	p.report(false)
	return n, nil
}

func (p *progressWriter) report(final bool) {
	if p.fn == nil {
		return
	}
	now := time.Now()
	if !final && now.Sub(p.last) < p.interval {
		return
	}
	p.last = now
	var speed float64
	if el := now.Sub(p.start).Seconds(); el > 0 {
		speed = float64(p.n) * 8 / 1e6 / el
	}
	total := p.total
	if final && total <= 0 {
		total = p.n
	}
	p.fn(Progress{Downloaded: p.n, Total: total, SpeedMbps: speed})
}

// ctxReader stops a copy as soon as ctx is cancelled.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(b []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(b)
}

// VerifySHA1 compares the file digest with want (hex, case-insensitive).
// An empty want only checks the file is readable and non-empty.
func VerifySHA1(fs afero.Fs, path, want string) error {
	f, err := fs.Open(path)
	if err != nil {
		return apperr.Filesystem("could not open downloaded artifact", err)
	}
	defer func() { _ = f.Close() }()
	h := sha1.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return apperr.Filesystem("could not read downloaded artifact", err)
	}
	if n == 0 {
		return apperr.New(apperr.KindInstall, "downloaded artifact is empty")
	}
	if want == "" {
		return nil
	}
	if got := hex.EncodeToString(h.Sum(nil)); !strings.EqualFold(got, want) {
		return apperr.Install(fmt.Sprintf("checksum mismatch: expected %s, got %s", want, got), nil)
	}
	return nil
}
