// Package api implements the HTTP interface exposed to the triggering
// layer: single-document ingestion and manual transcode batch control.
package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sotarylen/mediapress/internal/config"
	"github.com/sotarylen/mediapress/internal/logger"
	"github.com/sotarylen/mediapress/internal/pipeline"
	"github.com/sotarylen/mediapress/internal/transcode"
)

// Ingestor is the single-document ingestion entry point.
type Ingestor interface {
	Ingest(ctx context.Context, documentID int64) (*pipeline.Result, error)
}

// BatchEngine is the transcode batch control surface.
type BatchEngine interface {
	ScanCandidates(ctx context.Context, limit int) (*transcode.ScanResult, error)
	ConvertChunk(ctx context.Context, ids []int64) ([]transcode.ItemResult, error)
	IsRunning(ctx context.Context) (bool, error)
	RequestCancel()
}

// Server is the HTTP API server.
type Server struct {
	cfg      config.ServerConfig
	ingestor Ingestor
	engine   BatchEngine
	log      logger.Interface
}

// NewServer creates an API server.
func NewServer(cfg config.ServerConfig, ingestor Ingestor, engine BatchEngine, log logger.Interface) *Server {
	return &Server{cfg: cfg, ingestor: ingestor, engine: engine, log: log}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")
	{
		v1.POST("/ingest/:id", s.handleIngest)
		v1.POST("/transcode/scan", s.handleScan)
		v1.POST("/transcode/convert", s.handleConvert)
		v1.POST("/transcode/cancel", s.handleCancel)
		v1.GET("/transcode/status", s.handleStatus)
	}

	return router
}

// Start runs the HTTP server until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Address,
		Handler:      s.Router(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("API server listening", "address", s.cfg.Address)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.WriteTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
