package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	oerrors "github.com/appforge/cli/internal/errors"
)

// MemoryStore keeps records in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	runs map[string]Record
	now  func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{runs: make(map[string]Record), now: time.Now}
}

func (s *MemoryStore) Create(_ context.Context, rec *Record) error {
	if err := checkCreate(rec); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[rec.RunID]; ok {
		return oerrors.Wrap(oerrors.ErrConflict, fmt.Sprintf("run %s already exists", rec.RunID))
	}

	now := s.now().UTC()
	rec.CreatedAt, rec.UpdatedAt = now, now
	s.runs[rec.RunID] = *rec
	return nil
}

func (s *MemoryStore) Update(_ context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.runs[rec.RunID]
	if !ok {
		return runNotFound(rec.RunID)
	}
	if err := checkUpdate(&prev, rec); err != nil {
		return err
	}

	rec.CreatedAt = prev.CreatedAt
	rec.UpdatedAt = s.now().UTC()
	s.runs[rec.RunID] = *rec
	return nil
}

func (s *MemoryStore) Get(_ context.Context, runID string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.runs[runID]
	if !ok {
		return nil, runNotFound(runID)
	}
	return &rec, nil
}

func (s *MemoryStore) Latest(ctx context.Context, projectID string) (*Record, error) {
	runs, err := s.Runs(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return runs[0], nil
}

func (s *MemoryStore) LastCompleted(ctx context.Context, projectID string) (*Record, error) {
	runs, err := s.Runs(ctx, projectID)
	if err != nil {
		return nil, err
	}
	for _, r := range runs {
		if r.Status == StatusCompleted {
			return r, nil
		}
	}
	return nil, oerrors.NewNotFoundError(fmt.Sprintf("project %q has no completed run", projectID), projectID, "")
}

func (s *MemoryStore) Runs(_ context.Context, projectID string) ([]*Record, error) {
	s.mu.RLock()
	var out []*Record
	for _, r := range s.runs {
		if r.ProjectID == projectID {
			r := r
			out = append(out, &r)
		}
	}
	s.mu.RUnlock()

	if len(out) == 0 {
		return nil, projectNotFound(projectID)
	}
	newestFirst(out)
	return out, nil
}

func (s *MemoryStore) List(_ context.Context) ([]*Record, error) {
	s.mu.RLock()
	all := make([]*Record, 0, len(s.runs))
	for _, r := range s.runs {
		r := r
		all = append(all, &r)
	}
	s.mu.RUnlock()

	return latestPerProject(all), nil
}

func (s *MemoryStore) Close() error {
	return nil
}
