package install

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/loykin/launchr/internal/apperr"
	"github.com/loykin/launchr/internal/layout"
)

// mapFunc maps a zip entry name to its destination; ok=false skips the entry.
type mapFunc func(name string) (dst string, ok bool)

// Extractor unpacks install archives into the launcher layout.
type Extractor struct {
	fs          afero.Fs
	layout      layout.Layout
	concurrency int
}

func NewExtractor(fs afero.Fs, l layout.Layout, concurrency int) *Extractor {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Extractor{fs: fs, layout: l, concurrency: concurrency}
}

// Version places a downloaded artifact for id. A bundle (a zip holding <id>.jar at
// its root) is spread across the layout: libraries/ and assets/ go to the shared
// directories and everything else to versions/<id>/. Any other zip, including a
// client jar with its own assets/ tree, is copied as versions/<id>/<id>.jar.
//
// The version directory is assembled under a staging name and swapped in only
// once complete, so a failed reinstall leaves the previous install untouched.
// Files already written to the shared libraries/ and assets/ trees stay behind.
func (x *Extractor) Version(ctx context.Context, archive, id string) error {
	names, err := x.entryNames(archive)
	if err != nil {
		return err
	}
	staging := filepath.Join(x.layout.VersionsDir(), "."+id+".staging")
	if err := x.fs.RemoveAll(staging); err != nil {
		return apperr.Filesystem("could not clear "+staging, err)
	}
	if err := x.layout.Ensure(x.fs, staging); err != nil {
		return err
	}
	if err := x.stage(ctx, archive, id, staging, isBundle(names, id)); err != nil {
		_ = x.fs.RemoveAll(staging)
		return err
	}
	jar := filepath.Join(staging, id+layout.ArchiveExt)
	if !layout.Exists(x.fs, jar) {
		_ = x.fs.RemoveAll(staging)
		return apperr.Install(fmt.Sprintf("artifact for %s holds no %s", id, id+layout.ArchiveExt), nil)
	}
	dst := x.layout.VersionDir(id)
	if err := x.fs.RemoveAll(dst); err != nil {
		_ = x.fs.RemoveAll(staging)
		return apperr.Filesystem("could not replace "+dst, err)
	}
	if err := x.fs.Rename(staging, dst); err != nil {
		_ = x.fs.RemoveAll(staging)
		return apperr.Filesystem("could not move "+staging+" into place", err)
	}
	return nil
}

func (x *Extractor) stage(ctx context.Context, archive, id, dir string, bundle bool) error {
	if !bundle {
		return x.copyFile(archive, filepath.Join(dir, id+layout.ArchiveExt), 0o644)
	}
	return x.extract(ctx, archive, func(name string) (string, bool) {
		switch {
		case strings.HasPrefix(name, "libraries/"):
			return filepath.Join(x.layout.LibrariesDir(), filepath.FromSlash(strings.TrimPrefix(name, "libraries/"))), true
		case strings.HasPrefix(name, "assets/"):
			return filepath.Join(x.layout.AssetsDir(), filepath.FromSlash(strings.TrimPrefix(name, "assets/"))), true
		default:
			return filepath.Join(dir, filepath.FromSlash(name)), true
		}
	})
}

// Runtime unpacks a runtime zip into runtime/. A single top-level directory
// (as in most JDK archives) is stripped so bin/java lands at runtime/bin/java.
func (x *Extractor) Runtime(ctx context.Context, archive string) error {
	names, err := x.entryNames(archive)
	if err != nil {
		return err
	}
	prefix := commonRoot(names)
	if err := x.layout.Ensure(x.fs, x.layout.RuntimeDir()); err != nil {
		return err
	}
	return x.extract(ctx, archive, func(name string) (string, bool) {
		rel := strings.TrimPrefix(name, prefix)
		if rel == "" {
			return "", false
		}
		return filepath.Join(x.layout.RuntimeDir(), filepath.FromSlash(rel)), true
	})
}

func (x *Extractor) open(archive string) (*zip.Reader, afero.File, error) {
	f, err := x.fs.Open(archive)
	if err != nil {
		return nil, nil, apperr.Filesystem("could not open archive", err)
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, nil, apperr.Filesystem("could not stat archive", err)
	}
	zr, err := zip.NewReader(f, st.Size())
	if err != nil {
		_ = f.Close()
		return nil, nil, apperr.Install("artifact is not a zip or jar archive", err)
	}
	return zr, f, nil
}

func (x *Extractor) entryNames(archive string) ([]string, error) {
	zr, f, err := x.open(archive)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	names := make([]string, 0, len(zr.File))
	for _, zf := range zr.File {
		name, err := cleanEntry(zf.Name)
		if err != nil {
			return nil, err
		}
		if !zf.FileInfo().IsDir() {
			names = append(names, name)
		}
	}
	return names, nil
}

// extract writes every file entry concurrently. Each worker owns its own archive
// handle because afero files do not support concurrent ReadAt.
func (x *Extractor) extract(ctx context.Context, archive string, mapTo mapFunc) error {
	first, f0, err := x.open(archive)
	if err != nil {
		return err
	}
	workers := x.concurrency
	if n := len(first.File); n < workers {
		workers = max(n, 1)
	}
	pool := make(chan *zip.Reader, workers)
	closers := []afero.File{f0}
	pool <- first
	for i := 1; i < workers; i++ {
		zr, f, err := x.open(archive)
		if err != nil {
			for _, c := range closers {
				_ = c.Close()
			}
			return err
		}
		closers = append(closers, f)
		pool <- zr
	}
	defer func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, zf := range first.File {
		if zf.FileInfo().IsDir() {
			continue
		}
		name, err := cleanEntry(zf.Name)
		if err != nil {
			_ = g.Wait()
			return err
		}
		dst, ok := mapTo(name)
		if !ok {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			zr := <-pool
			defer func() { pool <- zr }()
			return x.writeEntry(zr.File[i], dst)
		})
	}
	return g.Wait()
}

func (x *Extractor) writeEntry(zf *zip.File, dst string) error {
	if err := x.fs.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return apperr.Filesystem("could not create directory for "+zf.Name, err)
	}
	rc, err := zf.Open()
	if err != nil {
		return apperr.Install("corrupt archive entry "+zf.Name, err)
	}
	defer func() { _ = rc.Close() }()
	perm := zf.Mode().Perm()
	if perm == 0 {
		perm = 0o644
	}
	out, err := x.fs.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
	if err != nil {
		return apperr.Filesystem("could not create "+dst, err)
	}
	if _, err := io.Copy(out, rc); err != nil {
		_ = out.Close()
		return apperr.Install("could not extract "+zf.Name, err)
	}
	if err := out.Close(); err != nil {
		return apperr.Filesystem("could not finish "+dst, err)
	}
	return nil
}

func (x *Extractor) copyFile(src, dst string, perm os.FileMode) error {
	in, err := x.fs.Open(src)
	if err != nil {
		return apperr.Filesystem("could not open archive", err)
	}
	defer func() { _ = in.Close() }()
	out, err := x.fs.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
	if err != nil {
		return apperr.Filesystem("could not create "+dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return apperr.Filesystem("could not write "+dst, err)
	}
	if err := out.Close(); err != nil {
		return apperr.Filesystem("could not finish "+dst, err)
	}
	return nil
}

// cleanEntry rejects absolute names and names escaping the destination.
func cleanEntry(name string) (string, error) {
	n := strings.ReplaceAll(name, "\\", "/")
	n = path.Clean(n)
	if path.IsAbs(n) || n == ".." || strings.HasPrefix(n, "../") || filepath.VolumeName(n) != "" {
		return "", apperr.Install(fmt.Sprintf("archive entry %q escapes the install directory", name), nil)
	}
	return n, nil
}

func isBundle(names []string, id string) bool {
	for _, n := range names {
		if n == id+layout.ArchiveExt {
			return true
		}
	}
	return false
}

// commonRoot returns "dir/" when every entry lives under the same top-level dir.
func commonRoot(names []string) string {
	if len(names) == 0 {
		return ""
	}
	var root string
	for _, n := range names {
		i := strings.IndexByte(n, '/')
		if i < 0 {
			return ""
		}
		if root == "" {
			root = n[:i+1]
		} else if n[:i+1] != root {
			return ""
		}
	}
	return root
}
