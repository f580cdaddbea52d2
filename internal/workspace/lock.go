package workspace

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	oerrors "github.com/appforge/cli/internal/errors"
	"github.com/appforge/cli/internal/output"
)

// lockDirName holds one lock file per project. Like stagingDirName it
// starts with a dot and cannot collide with a project directory.
const lockDirName = ".locks"

const lockRetryDelay = 25 * time.Millisecond

// Lock takes the cross-process lock of a project: every process sharing
// the workspace root waits on the same lock file. It blocks until the
// lock is held or ctx is done, and returns the matching unlock func.
func (m *Materializer) Lock(ctx context.Context, projectID string) (func(), error) {
	path, err := m.LockPath(projectID)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, oerrors.NewMaterializationError(filepath.Dir(path), err)
	}

	fl := flock.New(path)
	locked, err := fl.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("waiting for project lock: %w", errors.Join(oerrors.ErrCanceled, ctxErr))
		}
		return nil, oerrors.NewMaterializationError(path, err)
	}
	if !locked {
		return nil, oerrors.NewMaterializationError(path, fmt.Errorf("lock not acquired"))
	}

	return func() {
		if err := fl.Unlock(); err != nil {
			output.Warn("releasing project lock", "path", path, "err", err)
		}
	}, nil
}

// LockPath returns the lock file of a project.
func (m *Materializer) LockPath(projectID string) (string, error) {
	if _, err := m.Dir(projectID); err != nil {
		return "", err
	}
	return filepath.Join(m.root, lockDirName, projectID+".lock"), nil
}
