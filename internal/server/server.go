// Package server exposes the Schemacraft HTTP API.
package server

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vantor/schemacraft/internal/admission"
	"github.com/vantor/schemacraft/internal/batch"
	"github.com/vantor/schemacraft/internal/conversation"
	"gorm.io/gorm"
)

// Deps are the components the API serves.
type Deps struct {
	DB            *gorm.DB
	Controller    admission.Controller
	Conversations *conversation.Service
	Batches       *batch.Orchestrator
}

// StartOpts holds configuration for the API server.
type StartOpts struct {
	Deps Deps
	Port int
	Out  io.Writer
}

// Start launches the API server. It blocks until ctx is cancelled, then
// shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.Deps.DB == nil {
		return fmt.Errorf("server: db is required")
	}
	if opts.Deps.Controller == nil {
		return fmt.Errorf("server: admission controller is required")
	}
	if opts.Deps.Conversations == nil {
		return fmt.Errorf("server: conversation service is required")
	}
	if opts.Deps.Batches == nil {
		return fmt.Errorf("server: batch orchestrator is required")
	}
	if opts.Port <= 0 {
		opts.Port = 8080
	}

	router := NewRouter(opts.Deps)

	addr := fmt.Sprintf(":%d", opts.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Graceful shutdown on context cancellation.
	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "Schemacraft API listening on http://localhost:%d\n", opts.Port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

// NewRouter builds the gin engine with all routes registered.
func NewRouter(deps Deps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	registerRoutes(router, deps)
	return router
}
