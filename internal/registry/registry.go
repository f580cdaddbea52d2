// Package registry records generation runs and their lifecycle status.
// Records are keyed by run id; a project's state is its newest run.
package registry

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/appforge/cli/internal/appconfig"
	oerrors "github.com/appforge/cli/internal/errors"
)

// Status is the lifecycle state of one run.
type Status string

const (
	StatusPending    Status = "pending"
	StatusGenerating Status = "generating"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether s is a final state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// validTransitions lists the states reachable from each state.
var validTransitions = map[Status][]Status{
	StatusPending:    {StatusGenerating, StatusFailed},
	StatusGenerating: {StatusCompleted, StatusFailed},
}

// CanTransition reports whether a run may move from s to next.
// Rewriting a non-terminal state with itself is allowed.
func (s Status) CanTransition(next Status) bool {
	if s == next {
		return !s.Terminal()
	}
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Record is the persisted outcome of one generation run.
type Record struct {
	RunID     string `json:"runId" gorm:"primaryKey;type:varchar(64)"`
	ProjectID string `json:"projectId" gorm:"type:varchar(128);not null;index"`
	AppName   string `json:"appName"`
	Owner     string `json:"owner"`
	Status    Status `json:"status" gorm:"type:varchar(16);not null;index"`

	// ErrorKind is one of the errors.Kind* values for failed runs.
	ErrorKind string `json:"errorKind,omitempty"`
	Error     string `json:"error,omitempty"`

	SourceDir    string `json:"sourceDir,omitempty"`
	ArtifactName string `json:"artifactName,omitempty"`
	Digest       string `json:"digest,omitempty"`
	Files        int    `json:"files,omitempty"`

	// Config is the normalized input of the run. It is set once the input
	// validated and lets a project be regenerated without resubmitting it.
	Config *appconfig.AppConfig `json:"config,omitempty" gorm:"serializer:json;type:text"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Store persists run records. Implementations are safe for concurrent use.
type Store interface {
	// Create inserts a new pending run. A duplicate run id is ErrConflict.
	Create(ctx context.Context, rec *Record) error

	// Update replaces a run's record. Moving out of a terminal state, or
	// along an invalid transition, is ErrConflict; an unknown run is
	// ErrNotFound.
	Update(ctx context.Context, rec *Record) error

	// Get returns one run.
	Get(ctx context.Context, runID string) (*Record, error)

	// Latest returns the newest run of a project.
	Latest(ctx context.Context, projectID string) (*Record, error)

	// LastCompleted returns the newest completed run of a project.
	LastCompleted(ctx context.Context, projectID string) (*Record, error)

	// Runs returns every run of a project, newest first.
	Runs(ctx context.Context, projectID string) ([]*Record, error)

	// List returns the newest run of every project, ordered by project id.
	List(ctx context.Context) ([]*Record, error)

	Close() error
}

func checkCreate(rec *Record) error {
	if rec.RunID == "" || rec.ProjectID == "" {
		return fmt.Errorf("record needs a run id and a project id")
	}
	if rec.Status != StatusPending {
		return oerrors.Wrap(oerrors.ErrConflict, fmt.Sprintf("run %s must start pending, not %s", rec.RunID, rec.Status))
	}
	return nil
}

func checkUpdate(prev, next *Record) error {
	if prev.ProjectID != next.ProjectID {
		return oerrors.Wrap(oerrors.ErrConflict, fmt.Sprintf("run %s belongs to project %s", prev.RunID, prev.ProjectID))
	}
	if !prev.Status.CanTransition(next.Status) {
		return oerrors.Wrap(oerrors.ErrConflict,
			fmt.Sprintf("run %s cannot move from %s to %s", prev.RunID, prev.Status, next.Status))
	}
	return nil
}

func runNotFound(runID string) error {
	return oerrors.NewNotFoundError(fmt.Sprintf("run %q not found", runID), runID, "")
}

func projectNotFound(projectID string) error {
	return oerrors.NewNotFoundError(fmt.Sprintf("project %q has no runs", projectID), projectID,
		"Start a generation with 'appforge generate' or POST /projects")
}

// newestFirst sorts by run id descending. Run ids are ULIDs, so this is
// creation order.
func newestFirst(recs []*Record) {
	sort.Slice(recs, func(i, j int) bool { return recs[i].RunID > recs[j].RunID })
}

// latestPerProject reduces runs to the newest run of each project, ordered
// by project id.
func latestPerProject(recs []*Record) []*Record {
	latest := make(map[string]*Record)
	for _, r := range recs {
		if cur, ok := latest[r.ProjectID]; !ok || r.RunID > cur.RunID {
			latest[r.ProjectID] = r
		}
	}

	out := make([]*Record, 0, len(latest))
	for _, r := range latest {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProjectID < out[j].ProjectID })
	return out
}
