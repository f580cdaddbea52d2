// Package workspace writes generated file trees to project-scoped
// directories and serves read-only views of them.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/appforge/cli/internal/appconfig"
	oerrors "github.com/appforge/cli/internal/errors"
	"github.com/appforge/cli/internal/output"
	"github.com/appforge/cli/internal/templates"
)

// stagingDirName holds in-progress trees. Project ids cannot start with a
// dot, so it never collides with a project directory.
const stagingDirName = ".staging"

// FileEntry is one file of a materialized tree.
type FileEntry struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// Materializer owns the directories under one workspace root.
// Callers must not stage or commit the same project concurrently.
type Materializer struct {
	root string
}

// NewMaterializer creates a Materializer rooted at root.
func NewMaterializer(root string) *Materializer {
	return &Materializer{root: filepath.Clean(root)}
}

// Root returns the workspace root.
func (m *Materializer) Root() string {
	return m.root
}

// Dir returns the directory of a project. It does not check existence.
func (m *Materializer) Dir(projectID string) (string, error) {
	if err := appconfig.ValidateProjectID(projectID); err != nil {
		return "", err
	}
	return filepath.Join(m.root, projectID), nil
}

// Stage writes files to a staging directory of the run without touching
// the project's current tree. On failure the staging directory is removed.
func (m *Materializer) Stage(ctx context.Context, projectID, runID string, files []templates.VirtualFile) (*Staged, error) {
	target, err := m.Dir(projectID)
	if err != nil {
		return nil, err
	}
	if err := appconfig.ValidateProjectID(runID); err != nil {
		return nil, fmt.Errorf("invalid run id %q: %w", runID, err)
	}

	stagingRoot := filepath.Join(m.root, stagingDirName)
	if err := os.MkdirAll(stagingRoot, 0o755); err != nil {
		return nil, oerrors.NewMaterializationError(stagingRoot, err)
	}

	s := &Staged{
		projectID: projectID,
		staging:   filepath.Join(stagingRoot, projectID+"-"+runID),
		target:    target,
	}
	s.old = s.staging + ".old"
	for _, stale := range []string{s.staging, s.old} {
		if err := os.RemoveAll(stale); err != nil {
			return nil, oerrors.NewMaterializationError(stale, err)
		}
	}

	if err := writeTree(ctx, s.staging, files); err != nil {
		s.Release()
		return nil, err
	}

	output.Debug("staged tree", "project", projectID, "run", runID, "files", len(files), "dir", s.staging)
	return s, nil
}

// Staged is a complete tree waiting to replace a project's directory.
// Commit swaps it in and keeps the previous tree aside until Release, so
// Rollback can restore it. A Staged is not safe for concurrent use.
type Staged struct {
	projectID string
	staging   string
	target    string
	old       string

	hadOld    bool
	committed bool
	released  bool
}

// Dir returns where the tree currently lives: the staging directory
// before Commit, the project directory after.
func (s *Staged) Dir() string {
	if s.committed {
		return s.target
	}
	return s.staging
}

// Target returns the project directory the tree is committed to.
func (s *Staged) Target() string {
	return s.target
}

// Commit moves the staged tree into the project directory.
func (s *Staged) Commit() error {
	if s.committed {
		return nil
	}

	s.hadOld = true
	if err := os.Rename(s.target, s.old); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return oerrors.NewMaterializationError(s.target, fmt.Errorf("moving previous tree aside: %w", err))
		}
		s.hadOld = false
	}

	if err := os.Rename(s.staging, s.target); err != nil {
		if s.hadOld {
			if restoreErr := os.Rename(s.old, s.target); restoreErr != nil {
				err = errors.Join(err, fmt.Errorf("restoring previous tree: %w", restoreErr))
			} else {
				s.hadOld = false
			}
		}
		return oerrors.NewMaterializationError(s.target, err)
	}

	s.committed = true
	output.Debug("committed tree", "project", s.projectID, "dir", s.target)
	return nil
}

// Rollback undoes Commit: the staged tree moves back to staging and the
// previous tree, if any, returns to the project directory. It is a no-op
// after Release.
func (s *Staged) Rollback() error {
	if !s.committed || s.released {
		return nil
	}

	if err := os.Rename(s.target, s.staging); err != nil {
		return oerrors.NewMaterializationError(s.target, fmt.Errorf("moving failed tree aside: %w", err))
	}
	s.committed = false

	if s.hadOld {
		if err := os.Rename(s.old, s.target); err != nil {
			return oerrors.NewMaterializationError(s.target, fmt.Errorf("restoring previous tree: %w", err))
		}
		s.hadOld = false
	}

	output.Debug("rolled back tree", "project", s.projectID, "dir", s.target)
	return nil
}

// Release removes what is left in staging: the uncommitted tree, or the
// previous tree once the new one is committed. A previous tree that could
// not be restored is kept for manual recovery.
func (s *Staged) Release() {
	s.released = true
	if err := os.RemoveAll(s.staging); err != nil {
		output.Warn("removing staging directory", "path", s.staging, "err", err)
	}

	if s.hadOld && !s.committed {
		output.Warn("previous tree left in staging", "project", s.projectID, "path", s.old)
		return
	}
	if err := os.RemoveAll(s.old); err != nil {
		output.Warn("removing previous tree", "path", s.old, "err", err)
	}
	s.hadOld = false
}

func writeTree(ctx context.Context, dir string, files []templates.VirtualFile) error {
	if err := os.Mkdir(dir, 0o755); err != nil {
		return oerrors.NewMaterializationError(dir, err)
	}

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("materializing: %w", errors.Join(oerrors.ErrCanceled, err))
		}

		dest, err := containedPath(dir, f.Path)
		if err != nil {
			return err
		}

		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return oerrors.NewMaterializationError(f.Path, err)
		}
		if err := os.WriteFile(dest, f.Content, 0o644); err != nil {
			return oerrors.NewMaterializationError(f.Path, err)
		}
	}

	return nil
}

// containedPath joins rel onto dir and rejects paths escaping dir.
func containedPath(dir, rel string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(rel))
	if filepath.IsAbs(cleaned) || cleaned == "." || cleaned == ".." ||
		strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", oerrors.NewMaterializationError(rel, fmt.Errorf("path escapes project directory"))
	}
	return filepath.Join(dir, cleaned), nil
}

// Browse lists every file of the project's tree with its content, sorted
// by path. It never modifies the tree.
func (m *Materializer) Browse(projectID string) ([]FileEntry, error) {
	dir, err := m.Dir(projectID)
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return nil, oerrors.NewNotFoundError(
			fmt.Sprintf("no generated tree for project %q", projectID), dir,
			"Run a generation for the project first")
	}

	var entries []FileEntry
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		entries = append(entries, FileEntry{Path: filepath.ToSlash(rel), Content: string(content)})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("browsing project %s: %w", projectID, err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}
