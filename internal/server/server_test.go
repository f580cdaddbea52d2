package server

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appforge/cli/internal/appconfig"
	"github.com/appforge/cli/internal/archive"
	"github.com/appforge/cli/internal/pipeline"
	"github.com/appforge/cli/internal/registry"
	"github.com/appforge/cli/internal/templates"
	"github.com/appforge/cli/internal/testutil"
	"github.com/appforge/cli/internal/workspace"
)

var guest = appconfig.Owner{Email: "guest@example.com", Name: "Guest User"}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	normalizer, err := appconfig.NewNormalizer(appconfig.PolicyMerge)
	require.NoError(t, err)
	composer, err := templates.NewComposer()
	require.NoError(t, err)

	root := t.TempDir()
	runner, err := pipeline.NewRunner(pipeline.Options{
		Normalizer:   normalizer,
		Composer:     composer,
		Materializer: workspace.NewMaterializer(filepath.Join(root, "workspace")),
		Packager:     archive.NewPackager(filepath.Join(root, "artifacts")),
		Store:        registry.NewMemoryStore(),
	})
	require.NoError(t, err)
	t.Cleanup(runner.Close)

	s, err := New(Options{Runner: runner, DefaultOwner: guest})
	require.NoError(t, err)
	return s
}

func do(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

var shopConfig = testutil.ShopDoc("My Shop")

// waitTerminal polls a run until it reaches a terminal state.
func waitTerminal(t *testing.T, s *Server, runID string) registry.Record {
	t.Helper()
	var rec registry.Record
	require.Eventually(t, func() bool {
		w := do(t, s, http.MethodGet, "/runs/"+runID, nil)
		if w.Code != http.StatusOK {
			return false
		}
		rec = decode[registry.Record](t, w)
		return rec.Status.Terminal()
	}, 10*time.Second, 10*time.Millisecond)
	return rec
}

func TestNewRequiresRunner(t *testing.T) {
	_, err := New(Options{DefaultOwner: guest})
	assert.Error(t, err)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	w := do(t, s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestCreateProjectAsync(t *testing.T) {
	s := newTestServer(t)

	w := do(t, s, http.MethodPost, "/projects", map[string]any{"config": shopConfig})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	resp := decode[runResponse](t, w)
	assert.Regexp(t, `^my-shop-[0-9a-f]{12}$`, resp.ProjectID)
	assert.Equal(t, registry.StatusPending, resp.Status)

	rec := waitTerminal(t, s, resp.RunID)
	assert.Equal(t, registry.StatusCompleted, rec.Status)
	assert.Equal(t, resp.ProjectID+".zip", rec.ArtifactName)

	w = do(t, s, http.MethodGet, "/projects/"+resp.ProjectID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, resp.RunID, decode[registry.Record](t, w).RunID)

	w = do(t, s, http.MethodGet, "/projects", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]registry.Record](t, w), 1)
}

func TestCreateProjectWait(t *testing.T) {
	s := newTestServer(t)

	w := do(t, s, http.MethodPost, "/projects?wait=true", map[string]any{
		"prompt": "a blog with an admin dashboard",
		"name":   "Field Notes",
		"owner":  map[string]any{"email": "writer@example.com"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	rec := decode[registry.Record](t, w)
	assert.Equal(t, registry.StatusCompleted, rec.Status)
	assert.Equal(t, "Field Notes", rec.AppName)
	assert.Equal(t, "writer@example.com", rec.Owner)
}

func TestCreateProjectRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name     string
		body     any
		wantCode int
		wantErr  string
	}{
		{
			name:     "neither config nor prompt",
			body:     map[string]any{"name": "x"},
			wantCode: http.StatusBadRequest,
			wantErr:  "validation",
		},
		{
			name:     "both config and prompt",
			body:     map[string]any{"config": shopConfig, "prompt": "shop"},
			wantCode: http.StatusBadRequest,
			wantErr:  "validation",
		},
		{
			name:     "zero entities",
			body:     map[string]any{"config": map[string]any{"appName": "Empty", "entities": []any{}}},
			wantCode: http.StatusBadRequest,
			wantErr:  "validation",
		},
		{
			name: "unknown field type",
			body: map[string]any{"config": map[string]any{
				"appName": "Shop",
				"entities": []any{map[string]any{"name": "Product", "fields": []any{
					map[string]any{"name": "price", "type": "Currency"},
				}}},
			}},
			wantCode: http.StatusBadRequest,
			wantErr:  "validation",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)

			w := do(t, s, http.MethodPost, "/projects?wait=true", tt.body)
			assert.Equal(t, tt.wantCode, w.Code, w.Body.String())
			assert.Equal(t, tt.wantErr, decode[errorResponse](t, w).Error)
		})
	}
}

func TestMalformedBody(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/projects", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFailedRunIsPollable(t *testing.T) {
	s := newTestServer(t)

	w := do(t, s, http.MethodPost, "/projects", map[string]any{"config": map[string]any{"appName": "Empty"}})
	require.Equal(t, http.StatusAccepted, w.Code)
	resp := decode[runResponse](t, w)

	rec := waitTerminal(t, s, resp.RunID)
	assert.Equal(t, registry.StatusFailed, rec.Status)
	assert.Equal(t, "validation", rec.ErrorKind)

	w = do(t, s, http.MethodGet, "/projects/"+resp.ProjectID+"/download", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRegenerateProject(t *testing.T) {
	s := newTestServer(t)

	w := do(t, s, http.MethodPost, "/projects/unknown/generate", map[string]any{"config": shopConfig})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, s, http.MethodPost, "/projects?wait=1", map[string]any{"config": shopConfig})
	require.Equal(t, http.StatusCreated, w.Code)
	first := decode[registry.Record](t, w)

	w = do(t, s, http.MethodPost, "/projects/"+first.ProjectID+"/generate?wait=true", map[string]any{"prompt": "todo list"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	second := decode[registry.Record](t, w)
	assert.Equal(t, first.ProjectID, second.ProjectID)
	assert.Greater(t, second.RunID, first.RunID)

	w = do(t, s, http.MethodGet, "/projects/"+first.ProjectID+"/runs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	runs := decode[[]registry.Record](t, w)
	require.Len(t, runs, 2)
	assert.Equal(t, second.RunID, runs[0].RunID)

	// The tree was replaced, not merged.
	w = do(t, s, http.MethodGet, "/projects/"+first.ProjectID+"/files", nil)
	require.Equal(t, http.StatusOK, w.Code)
	paths := map[string]bool{}
	for _, e := range decode[[]workspace.FileEntry](t, w) {
		paths[e.Path] = true
	}
	assert.True(t, paths["src/api/Task.ts"])
	assert.False(t, paths["src/api/Product.ts"])
}

func TestBrowseAndDownload(t *testing.T) {
	s := newTestServer(t)

	w := do(t, s, http.MethodPost, "/projects?wait=true", map[string]any{"config": shopConfig})
	require.Equal(t, http.StatusCreated, w.Code)
	rec := decode[registry.Record](t, w)

	w = do(t, s, http.MethodGet, "/projects/"+rec.ProjectID+"/files", nil)
	require.Equal(t, http.StatusOK, w.Code)
	entries := decode[[]workspace.FileEntry](t, w)
	assert.Len(t, entries, rec.Files)

	w = do(t, s, http.MethodGet, "/projects/"+rec.ProjectID+"/download", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, rec.Digest, w.Header().Get("Digest"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), rec.ArtifactName)

	body := w.Body.Bytes()
	zr, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	require.NoError(t, err)
	assert.Len(t, zr.File, rec.Files)

	digest, err := archive.Digest(bytes.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, rec.Digest, digest)
}

func TestNotFound(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{
		"/projects/missing",
		"/projects/missing/runs",
		"/projects/missing/files",
		"/projects/missing/download",
		"/runs/01J0000000000000000000000Z",
	} {
		t.Run(path, func(t *testing.T) {
			w := do(t, s, http.MethodGet, path, nil)
			assert.Equal(t, http.StatusNotFound, w.Code)
			assert.Equal(t, "not_found", decode[errorResponse](t, w).Error)
		})
	}
}

func TestRunShutsDownOnCancel(t *testing.T) {
	s := newTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, "127.0.0.1:0") }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestRegenerateFromStoredConfig(t *testing.T) {
	s := newTestServer(t)

	w := do(t, s, http.MethodPost, "/projects?wait=true", map[string]any{"config": shopConfig})
	require.Equal(t, http.StatusCreated, w.Code)
	first := decode[registry.Record](t, w)
	require.NotNil(t, first.Config)
	assert.Equal(t, "My Shop", first.Config.AppName)

	tests := []struct {
		name    string
		body    any
		wantApp string
	}{
		{name: "empty body", body: nil, wantApp: "My Shop"},
		{name: "rename only", body: map[string]any{"name": "Renamed Shop"}, wantApp: "Renamed Shop"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, s, http.MethodPost, "/projects/"+first.ProjectID+"/generate?wait=true", tt.body)
			require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
			rec := decode[registry.Record](t, w)
			assert.Equal(t, registry.StatusCompleted, rec.Status)
			assert.Equal(t, tt.wantApp, rec.AppName)
			assert.Equal(t, first.Files, rec.Files)
			require.NotNil(t, rec.Config)
			assert.Equal(t, first.Config.Entities, rec.Config.Entities)
		})
	}

	w = do(t, s, http.MethodGet, "/projects", nil)
	require.Equal(t, http.StatusOK, w.Code)
	projects := decode[[]registry.Record](t, w)
	require.Len(t, projects, 1)
	require.NotNil(t, projects[0].Config)
	assert.Equal(t, "Renamed Shop", projects[0].Config.AppName)
}

func TestRegenerateWithoutStoredConfig(t *testing.T) {
	s := newTestServer(t)

	// The project exists but never completed, so there is nothing to reuse.
	w := do(t, s, http.MethodPost, "/projects?wait=true", map[string]any{"config": map[string]any{"appName": "Empty"}})
	require.Equal(t, http.StatusBadRequest, w.Code)
	failed := decode[errorResponse](t, w)
	require.NotEmpty(t, failed.RunID)

	w = do(t, s, http.MethodGet, "/runs/"+failed.RunID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	rec := decode[registry.Record](t, w)
	assert.Nil(t, rec.Config)

	w = do(t, s, http.MethodPost, "/projects/"+rec.ProjectID+"/generate?wait=true", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation", decode[errorResponse](t, w).Error)
}
