package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/appforge/cli/internal/appconfig"
	oerrors "github.com/appforge/cli/internal/errors"
	"github.com/appforge/cli/internal/pipeline"
	"github.com/appforge/cli/internal/prompt"
	"github.com/appforge/cli/internal/registry"
)

// generateRequest is the body of POST /projects and
// POST /projects/:id/generate. At most one of Config and Prompt is set;
// regenerating with neither reuses the project's stored config.
type generateRequest struct {
	// Name sets the app name of prompt-derived configs, and of configs
	// that carry none.
	Name   string           `json:"name"`
	Config map[string]any   `json:"config"`
	Prompt string           `json:"prompt"`
	Owner  *appconfig.Owner `json:"owner"`
}

type runResponse struct {
	ProjectID string          `json:"projectId"`
	RunID     string          `json:"runId"`
	Status    registry.Status `json:"status"`
}

type errorResponse struct {
	Error    string `json:"error"`
	Message  string `json:"message"`
	Location string `json:"location,omitempty"`
	Hint     string `json:"hint,omitempty"`
	RunID    string `json:"runId,omitempty"`
}

// statusFor maps an error to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, oerrors.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, oerrors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, oerrors.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, oerrors.ErrCanceled):
		return http.StatusGatewayTimeout
	case errors.Is(err, pipeline.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func errorBody(err error) errorResponse {
	body := errorResponse{Error: oerrors.Kind(err), Message: err.Error()}
	switch {
	case errors.Is(err, oerrors.ErrNotFound):
		body.Error = "not_found"
	case errors.Is(err, oerrors.ErrConflict):
		body.Error = "conflict"
	}

	var detail *oerrors.DetailError
	if errors.As(err, &detail) {
		body.Message = detail.Message
		body.Location = detail.Location
		body.Hint = detail.Hint
	}
	return body
}

func writeError(c *gin.Context, err error) {
	c.JSON(statusFor(err), errorBody(err))
}

// buildRequest turns a request body into a pipeline request. stored is the
// config of the project's last completed run, if any.
func (s *Server) buildRequest(projectID string, body *generateRequest, stored *appconfig.AppConfig) (pipeline.Request, error) {
	var doc map[string]any
	switch {
	case body.Config != nil && body.Prompt != "":
		return pipeline.Request{}, oerrors.NewValidationError("pass either config or prompt, not both", "body", "", "")
	case body.Config != nil:
		doc = body.Config
		if _, ok := doc["appName"]; !ok && body.Name != "" {
			doc["appName"] = body.Name
		}
	case body.Prompt != "":
		doc = prompt.Classify(body.Prompt)
		if body.Name != "" {
			doc["appName"] = body.Name
		}
	case stored != nil:
		doc = stored.Document()
		if body.Name != "" {
			doc["appName"] = body.Name
		}
	default:
		return pipeline.Request{}, oerrors.NewValidationError("request needs a config or a prompt", "body", "",
			`Send {"config": {...}} or {"prompt": "an online shop"}`)
	}

	owner := s.owner
	if body.Owner != nil {
		owner = *body.Owner
	}

	return pipeline.Request{ProjectID: projectID, Doc: doc, Owner: owner}, nil
}

// POST /projects
func (s *Server) createProject(c *gin.Context) {
	s.submit(c, "", nil)
}

// POST /projects/:id/generate
func (s *Server) regenerateProject(c *gin.Context) {
	projectID := c.Param("id")
	ctx := c.Request.Context()
	if _, err := s.runner.Store().Latest(ctx, projectID); err != nil {
		writeError(c, err)
		return
	}

	var stored *appconfig.AppConfig
	last, err := s.runner.Store().LastCompleted(ctx, projectID)
	switch {
	case err == nil:
		stored = last.Config
	case !errors.Is(err, oerrors.ErrNotFound):
		writeError(c, err)
		return
	}
	s.submit(c, projectID, stored)
}

func (s *Server) submit(c *gin.Context, projectID string, stored *appconfig.AppConfig) {
	var body generateRequest
	// An empty body is allowed; buildRequest decides whether it suffices.
	if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
		writeError(c, oerrors.NewValidationError("request body is not valid JSON: "+err.Error(), "body", "", ""))
		return
	}

	req, err := s.buildRequest(projectID, &body, stored)
	if err != nil {
		writeError(c, err)
		return
	}

	ctx := c.Request.Context()
	h, err := s.runner.Submit(ctx, req)
	if err != nil {
		writeError(c, err)
		return
	}

	wait, _ := strconv.ParseBool(c.Query("wait"))
	if !wait {
		c.JSON(http.StatusAccepted, runResponse{ProjectID: h.ProjectID, RunID: h.RunID, Status: registry.StatusPending})
		return
	}

	res, err := h.Wait(ctx)
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		// The client left; the run continues and stays pollable.
		return
	case err != nil:
		body := errorBody(err)
		body.RunID = h.RunID
		c.JSON(statusFor(err), body)
		return
	}

	rec, err := s.runner.Store().Get(ctx, res.RunID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rec)
}

// GET /projects
func (s *Server) listProjects(c *gin.Context) {
	recs, err := s.runner.Store().List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, recs)
}

// GET /projects/:id
func (s *Server) getProject(c *gin.Context) {
	rec, err := s.runner.Store().Latest(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// GET /projects/:id/runs
func (s *Server) listRuns(c *gin.Context) {
	recs, err := s.runner.Store().Runs(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, recs)
}

// GET /runs/:runId
func (s *Server) getRun(c *gin.Context) {
	rec, err := s.runner.Store().Get(c.Request.Context(), c.Param("runId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// GET /projects/:id/files
func (s *Server) browseFiles(c *gin.Context) {
	entries, err := s.runner.Materializer().Browse(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

// GET /projects/:id/download serves the archive of the newest completed
// run.
func (s *Server) downloadArtifact(c *gin.Context) {
	rec, err := s.runner.Store().LastCompleted(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	path, err := s.runner.Packager().Locate(rec.ArtifactName)
	if err != nil {
		writeError(c, err)
		return
	}

	if rec.Digest != "" {
		c.Header("Digest", rec.Digest)
	}
	c.FileAttachment(path, rec.ArtifactName)
}
