// Package server exposes generation over HTTP. Generation runs
// asynchronously: POST requests return the run id and callers poll the
// run, or pass ?wait=true to block until the run is terminal.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/appforge/cli/internal/appconfig"
	"github.com/appforge/cli/internal/output"
	"github.com/appforge/cli/internal/pipeline"
)

// shutdownTimeout bounds how long Run waits for open requests.
const shutdownTimeout = 10 * time.Second

// Options configures a Server.
type Options struct {
	Runner *pipeline.Runner

	// DefaultOwner is used when a request names no owner.
	DefaultOwner appconfig.Owner
}

// Server serves the generation API.
type Server struct {
	runner *pipeline.Runner
	owner  appconfig.Owner
	router *gin.Engine
}

// New creates a Server and registers its routes.
func New(opts Options) (*Server, error) {
	if opts.Runner == nil {
		return nil, errors.New("server needs a runner")
	}
	if err := opts.DefaultOwner.Validate(); err != nil {
		return nil, err
	}

	s := &Server{runner: opts.Runner, owner: opts.DefaultOwner}
	s.router = s.setupRouter()
	return s, nil
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.POST("/projects", s.createProject)
	r.GET("/projects", s.listProjects)
	r.GET("/projects/:id", s.getProject)
	r.POST("/projects/:id/generate", s.regenerateProject)
	r.GET("/projects/:id/runs", s.listRuns)
	r.GET("/projects/:id/files", s.browseFiles)
	r.GET("/projects/:id/download", s.downloadArtifact)
	r.GET("/runs/:runId", s.getRun)

	return r
}

// requestLogger logs each request at debug level.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		output.Debug("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		output.Info("serving generation API", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
