// Package pipeline runs generations: it validates the input, composes the
// file tree, writes it under a per-project lock, packages it, and records
// every step in the registry.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/appforge/cli/internal/appconfig"
	"github.com/appforge/cli/internal/archive"
	oerrors "github.com/appforge/cli/internal/errors"
	"github.com/appforge/cli/internal/output"
	"github.com/appforge/cli/internal/registry"
	"github.com/appforge/cli/internal/templates"
	"github.com/appforge/cli/internal/workspace"
)

// Options holds the stages a Runner drives. All fields are required.
type Options struct {
	Normalizer   *appconfig.Normalizer
	Composer     *templates.Composer
	Materializer *workspace.Materializer
	Packager     *archive.Packager
	Store        registry.Store
}

// Request is one generation request.
type Request struct {
	// ProjectID names the target directory and archive. Empty derives a
	// fresh id from the document's appName.
	ProjectID string

	// Doc is the loose app config document.
	Doc map[string]any

	// Owner is recorded in the generated app and the run record.
	Owner appconfig.Owner

	// Deadline, when set, fails the run if it passes before the write
	// phase. Zero falls back to the Submit context's deadline.
	Deadline time.Time
}

// Result is the terminal outcome of one run.
type Result struct {
	ProjectID string
	RunID     string
	Status    registry.Status

	// Paths lists the generated files in emission order.
	Paths     []string
	SourceDir string
	Artifact  *archive.Artifact

	// Err is the stage error of a failed run.
	Err error
}

// Handle tracks a submitted run.
type Handle struct {
	ProjectID string
	RunID     string

	done   chan struct{}
	result *Result
}

// Done is closed once the run reached a terminal state.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the run finishes or ctx is done. Giving up on ctx does
// not stop the run. For failed runs the stage error is returned together
// with the result.
func (h *Handle) Wait(ctx context.Context) (*Result, error) {
	select {
	case <-h.done:
		return h.result, h.result.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Runner executes generation runs. Runs of distinct projects proceed in
// parallel; the write phase of one project is serialized.
type Runner struct {
	opts  Options
	locks *keyedMutex
	now   func() time.Time

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewRunner creates a Runner.
func NewRunner(opts Options) (*Runner, error) {
	switch {
	case opts.Normalizer == nil:
		return nil, fmt.Errorf("runner needs a normalizer")
	case opts.Composer == nil:
		return nil, fmt.Errorf("runner needs a composer")
	case opts.Materializer == nil:
		return nil, fmt.Errorf("runner needs a materializer")
	case opts.Packager == nil:
		return nil, fmt.Errorf("runner needs a packager")
	case opts.Store == nil:
		return nil, fmt.Errorf("runner needs a registry store")
	}
	return &Runner{opts: opts, locks: newKeyedMutex(), now: time.Now}, nil
}

// Store returns the registry the runner records into.
func (r *Runner) Store() registry.Store {
	return r.opts.Store
}

// Materializer returns the runner's materializer for read-only browsing.
func (r *Runner) Materializer() *workspace.Materializer {
	return r.opts.Materializer
}

// Packager returns the runner's packager for artifact lookups.
func (r *Runner) Packager() *archive.Packager {
	return r.opts.Packager
}

// Submit records a pending run and executes it on its own goroutine. The
// run is detached from ctx: canceling ctx neither stops the run nor its
// final registry write.
func (r *Runner) Submit(ctx context.Context, req Request) (*Handle, error) {
	projectID := req.ProjectID
	if projectID == "" {
		appName, _ := req.Doc["appName"].(string)
		projectID = appconfig.NewProjectID(appName)
	}
	if err := appconfig.ValidateProjectID(projectID); err != nil {
		return nil, err
	}

	if req.Deadline.IsZero() {
		if d, ok := ctx.Deadline(); ok {
			req.Deadline = d
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrClosed
	}

	appName, _ := req.Doc["appName"].(string)
	rec := &registry.Record{
		RunID:     ulid.Make().String(),
		ProjectID: projectID,
		AppName:   appName,
		Owner:     req.Owner.Email,
		Status:    registry.StatusPending,
	}

	runCtx := context.WithoutCancel(ctx)
	if err := r.opts.Store.Create(runCtx, rec); err != nil {
		return nil, fmt.Errorf("recording run for %s: %w", projectID, err)
	}

	h := &Handle{ProjectID: projectID, RunID: rec.RunID, done: make(chan struct{})}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer close(h.done)
		h.result = r.run(runCtx, rec, req)
	}()

	return h, nil
}

// Generate submits req and waits for the outcome.
func (r *Runner) Generate(ctx context.Context, req Request) (*Result, error) {
	h, err := r.Submit(ctx, req)
	if err != nil {
		return nil, err
	}
	return h.Wait(ctx)
}

// Close stops accepting runs and waits for in-flight runs to finish.
func (r *Runner) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	r.wg.Wait()
}

func (r *Runner) run(ctx context.Context, rec *registry.Record, req Request) *Result {
	logger := output.ProjectLogger(rec.ProjectID)
	res := &Result{ProjectID: rec.ProjectID, RunID: rec.RunID}

	fail := func(err error) *Result {
		rec.Status = registry.StatusFailed
		rec.SourceDir = ""
		rec.ArtifactName = ""
		rec.Digest = ""
		rec.Files = 0
		rec.ErrorKind = oerrors.Kind(err)
		rec.Error = summarize(err)
		if uerr := r.opts.Store.Update(ctx, rec); uerr != nil {
			logger.Error("recording failed run", "run", rec.RunID, "err", uerr)
		}

		logger.Warn("generation failed", "run", rec.RunID, "kind", rec.ErrorKind, "err", rec.Error)
		res.Status = registry.StatusFailed
		res.Err = err
		return res
	}

	// Stage 1: validate.
	if err := req.Owner.Validate(); err != nil {
		return fail(err)
	}
	cfg, err := r.opts.Normalizer.Normalize(req.Doc)
	if err != nil {
		return fail(err)
	}

	rec.AppName = cfg.AppName
	rec.Config = cfg
	rec.Status = registry.StatusGenerating
	if err := r.opts.Store.Update(ctx, rec); err != nil {
		return fail(err)
	}
	logger.Debug("generating", "run", rec.RunID, "app", cfg.AppName)

	// Stage 2: compose in memory.
	files, err := r.opts.Composer.Compose(cfg, req.Owner)
	if err != nil {
		return fail(err)
	}
	res.Paths = make([]string, len(files))
	for i, f := range files {
		res.Paths[i] = f.Path
	}

	// Stage 3: write and package under the project lock. The lock file
	// serializes processes sharing the workspace; the keyed mutex keeps
	// goroutines of this process from contending on it.
	unlock := r.locks.Lock(rec.ProjectID)
	defer unlock()

	unlockFile, err := r.opts.Materializer.Lock(ctx, rec.ProjectID)
	if err != nil {
		return fail(err)
	}
	defer unlockFile()

	if !req.Deadline.IsZero() && r.now().After(req.Deadline) {
		return fail(&DeadlineError{RunID: rec.RunID})
	}
	if err := r.checkSuperseded(ctx, rec); err != nil {
		return fail(err)
	}

	// Both outputs are built aside first, so a failure up to the final
	// record leaves the previous tree and archive in place.
	staged, err := r.opts.Materializer.Stage(ctx, rec.ProjectID, rec.RunID, files)
	if err != nil {
		return fail(err)
	}
	defer staged.Release()

	pending, err := r.opts.Packager.Prepare(ctx, rec.ProjectID, staged.Dir())
	if err != nil {
		return fail(err)
	}
	defer pending.Release()

	rollback := func() {
		if err := pending.Rollback(); err != nil {
			logger.Error("restoring previous archive", "run", rec.RunID, "err", err)
		}
		if err := staged.Rollback(); err != nil {
			logger.Error("restoring previous tree", "run", rec.RunID, "err", err)
		}
	}

	if err := staged.Commit(); err != nil {
		return fail(err)
	}
	if err := pending.Commit(); err != nil {
		rollback()
		return fail(err)
	}

	art := pending.Artifact()
	rec.Status = registry.StatusCompleted
	rec.SourceDir = staged.Target()
	rec.ArtifactName = art.Name
	rec.Digest = art.Digest
	rec.Files = art.Files
	if err := r.opts.Store.Update(ctx, rec); err != nil {
		logger.Error("recording completed run", "run", rec.RunID, "err", err)
		rollback()
		return fail(fmt.Errorf("recording completed run: %w", err))
	}
	res.SourceDir = staged.Target()
	res.Artifact = art

	logger.Info("generation completed",
		"run", rec.RunID,
		"files", art.Files,
		"artifact", art.Name,
		"digest", art.Digest,
	)
	res.Status = registry.StatusCompleted
	return res
}

// checkSuperseded refuses to overwrite the tree of a newer completed run.
// Run ids sort by creation time.
func (r *Runner) checkSuperseded(ctx context.Context, rec *registry.Record) error {
	last, err := r.opts.Store.LastCompleted(ctx, rec.ProjectID)
	if errors.Is(err, oerrors.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("checking newer runs of %s: %w", rec.ProjectID, err)
	}
	if last.RunID > rec.RunID {
		return &SupersededError{RunID: rec.RunID, By: last.RunID}
	}
	return nil
}

// summarize reduces err to one line for the run record.
func summarize(err error) string {
	var detail *oerrors.DetailError
	if errors.As(err, &detail) {
		if detail.Location != "" {
			return detail.Location + ": " + detail.Message
		}
		return detail.Message
	}
	return err.Error()
}
