// Package archive packages materialized trees into deterministic zip
// artifacts and serves them read-only.
package archive

import (
	"archive/zip"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"hash"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/appforge/cli/internal/appconfig"
	oerrors "github.com/appforge/cli/internal/errors"
	"github.com/appforge/cli/internal/output"
)

// fixedModTime is stamped on every entry: the MS-DOS epoch.
var fixedModTime = time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)

const fileMode fs.FileMode = 0o644

// Artifact describes a produced archive.
type Artifact struct {
	// Name is the file name, derived from the project id.
	Name string `json:"name"`

	// Path is the absolute location of the archive.
	Path string `json:"path"`

	// Digest is "sha256:<hex>" over the archive bytes.
	Digest string `json:"digest"`

	Size  int64 `json:"size"`
	Files int   `json:"files"`
}

// ArtifactName returns the archive name for a project.
func ArtifactName(projectID string) string {
	return projectID + ".zip"
}

// Packager writes archives into one artifacts directory.
// Callers must not prepare or commit the same project concurrently.
type Packager struct {
	dir string
}

// NewPackager creates a Packager writing into dir.
func NewPackager(dir string) *Packager {
	return &Packager{dir: filepath.Clean(dir)}
}

// Dir returns the artifacts directory.
func (p *Packager) Dir() string {
	return p.dir
}

// Prepare writes and verifies the archive of sourceDir next to its final
// location without replacing any previous archive. Entries are sorted by
// path and carry a fixed time and mode, so the same tree always yields
// the same bytes. There is no retry.
func (p *Packager) Prepare(ctx context.Context, projectID, sourceDir string) (*Pending, error) {
	if err := appconfig.ValidateProjectID(projectID); err != nil {
		return nil, err
	}

	name := ArtifactName(projectID)
	final := filepath.Join(p.dir, name)

	files, err := collect(sourceDir)
	if err != nil {
		return nil, oerrors.NewPackagingError(sourceDir, err)
	}

	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return nil, oerrors.NewPackagingError(p.dir, err)
	}

	tmp, err := os.CreateTemp(p.dir, "."+name+".tmp-*")
	if err != nil {
		return nil, oerrors.NewPackagingError(p.dir, err)
	}
	pending := &Pending{tmp: tmp.Name(), final: final}
	pending.backup = pending.tmp + ".prev"

	h := sha256.New()
	size, err := write(ctx, io.MultiWriter(tmp, h), sourceDir, files)
	if err == nil {
		err = tmp.Chmod(0o644)
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = Verify(pending.tmp, len(files))
	}
	if err != nil {
		pending.Release()
		return nil, oerrors.NewPackagingError(final, err)
	}

	pending.artifact = &Artifact{
		Name:   name,
		Path:   final,
		Digest: formatDigest(h),
		Size:   size,
		Files:  len(files),
	}

	output.Debug("prepared archive", "project", projectID, "archive", name, "files", len(files), "digest", pending.artifact.Digest)
	return pending, nil
}

// Pending is a verified archive waiting to replace a project's archive.
// Commit keeps the previous archive aside until Release, so Rollback can
// restore it. A Pending is not safe for concurrent use.
type Pending struct {
	artifact *Artifact
	tmp      string
	final    string
	backup   string

	hadPrev   bool
	committed bool
	released  bool
}

// Artifact describes the archive as it will be once committed.
func (p *Pending) Artifact() *Artifact {
	return p.artifact
}

// Commit renames the archive into place.
func (p *Pending) Commit() error {
	if p.committed {
		return nil
	}

	p.hadPrev = true
	if err := os.Rename(p.final, p.backup); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return oerrors.NewPackagingError(p.final, fmt.Errorf("moving previous archive aside: %w", err))
		}
		p.hadPrev = false
	}

	if err := os.Rename(p.tmp, p.final); err != nil {
		if p.hadPrev {
			if restoreErr := os.Rename(p.backup, p.final); restoreErr != nil {
				err = errors.Join(err, fmt.Errorf("restoring previous archive: %w", restoreErr))
			} else {
				p.hadPrev = false
			}
		}
		return oerrors.NewPackagingError(p.final, err)
	}

	p.committed = true
	output.Debug("committed archive", "archive", p.artifact.Name, "digest", p.artifact.Digest)
	return nil
}

// Rollback undoes Commit and restores the previous archive, if any. It is
// a no-op after Release.
func (p *Pending) Rollback() error {
	if !p.committed || p.released {
		return nil
	}

	if p.hadPrev {
		if err := os.Rename(p.backup, p.final); err != nil {
			return oerrors.NewPackagingError(p.final, fmt.Errorf("restoring previous archive: %w", err))
		}
		p.hadPrev = false
	} else if err := os.Remove(p.final); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return oerrors.NewPackagingError(p.final, err)
	}

	p.committed = false
	return nil
}

// Release removes the uncommitted archive, or the previous archive once
// the new one is committed.
func (p *Pending) Release() {
	p.released = true
	if err := os.Remove(p.tmp); err != nil && !errors.Is(err, fs.ErrNotExist) {
		output.Warn("removing temporary archive", "path", p.tmp, "err", err)
	}

	if p.hadPrev && !p.committed {
		output.Warn("previous archive left aside", "path", p.backup)
		return
	}
	if err := os.Remove(p.backup); err != nil && !errors.Is(err, fs.ErrNotExist) {
		output.Warn("removing previous archive", "path", p.backup, "err", err)
	}
	p.hadPrev = false
}

// collect returns the slash-separated relative paths of every regular
// file under dir, sorted.
func collect(dir string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !d.Type().IsRegular() {
			return fmt.Errorf("%s is not a regular file", path)
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}

// countingWriter tracks the number of bytes written.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

func write(ctx context.Context, w io.Writer, dir string, files []string) (int64, error) {
	cw := &countingWriter{w: w}
	zw := zip.NewWriter(cw)

	for _, rel := range files {
		if err := ctx.Err(); err != nil {
			return 0, errors.Join(oerrors.ErrCanceled, err)
		}

		hdr := &zip.FileHeader{
			Name:     rel,
			Method:   zip.Deflate,
			Modified: fixedModTime,
		}
		hdr.SetMode(fileMode)

		entry, err := zw.CreateHeader(hdr)
		if err != nil {
			return 0, fmt.Errorf("adding %s: %w", rel, err)
		}

		if err := copyFile(entry, filepath.Join(dir, filepath.FromSlash(rel))); err != nil {
			return 0, fmt.Errorf("adding %s: %w", rel, err)
		}
	}

	if err := zw.Close(); err != nil {
		return 0, fmt.Errorf("finishing archive: %w", err)
	}
	return cw.n, nil
}

func copyFile(w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = io.Copy(w, f)
	return err
}

// Verify re-opens the archive at path, reads every entry (checking its
// CRC) and compares the entry count with want.
func Verify(path string, want int) error {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return fmt.Errorf("reopening archive: %w", err)
	}
	defer zr.Close()

	if len(zr.File) != want {
		return fmt.Errorf("archive has %d entries, want %d", len(zr.File), want)
	}

	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("opening entry %s: %w", f.Name, err)
		}
		_, err = io.Copy(io.Discard, rc)
		rc.Close()
		if err != nil {
			return fmt.Errorf("reading entry %s: %w", f.Name, err)
		}
	}

	return nil
}

// Digest returns "sha256:<hex>" over everything read from r.
func Digest(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return formatDigest(h), nil
}

func formatDigest(h hash.Hash) string {
	return fmt.Sprintf("sha256:%x", h.Sum(nil))
}

// Locate returns the path of an existing archive. Only names produced by
// ArtifactName are accepted.
func (p *Packager) Locate(name string) (string, error) {
	projectID, ok := strings.CutSuffix(name, ".zip")
	if !ok || appconfig.ValidateProjectID(projectID) != nil {
		return "", oerrors.NewNotFoundError(fmt.Sprintf("no archive named %q", name), name, "")
	}

	path := filepath.Join(p.dir, name)
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) || (err == nil && !info.Mode().IsRegular()) {
		return "", oerrors.NewNotFoundError(fmt.Sprintf("no archive named %q", name), name,
			"Run a generation for the project first")
	}
	if err != nil {
		return "", fmt.Errorf("locating archive %s: %w", name, err)
	}

	return path, nil
}

// Open opens an archive for reading.
func (p *Packager) Open(name string) (*os.File, error) {
	path, err := p.Locate(name)
	if err != nil {
		return nil, err
	}
	return os.Open(path)
}
