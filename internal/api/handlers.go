package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/sotarylen/mediapress/internal/transcode"
)

// ScanRequest is the body of POST /api/v1/transcode/scan.
type ScanRequest struct {
	Limit int `json:"limit"`
}

// ConvertRequest is the body of POST /api/v1/transcode/convert.
type ConvertRequest struct {
	IDs []int64 `json:"ids" binding:"required"`
}

// handleIngest handles POST /api/v1/ingest/:id
func (s *Server) handleIngest(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid document id"})
		return
	}

	result, ingestErr := s.ingestor.Ingest(c.Request.Context(), id)
	if ingestErr != nil {
		s.log.Error("ingest failed", "document_id", id, "error", ingestErr.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "ingestion failed"})
		return
	}

	c.JSON(http.StatusOK, result)
}

// handleScan handles POST /api/v1/transcode/scan
func (s *Server) handleScan(c *gin.Context) {
	var req ScanRequest
	// An empty body means "use the configured scan limit".
	_ = c.ShouldBindJSON(&req)

	result, err := s.engine.ScanCandidates(c.Request.Context(), req.Limit)
	if err != nil {
		s.log.Error("candidate scan failed", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "scan failed"})
		return
	}

	c.JSON(http.StatusOK, result)
}

// handleConvert handles POST /api/v1/transcode/convert
func (s *Server) handleConvert(c *gin.Context) {
	var req ConvertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	items, err := s.engine.ConvertChunk(c.Request.Context(), req.IDs)
	if err != nil {
		if errors.Is(err, transcode.ErrBatchAlreadyRunning) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		s.log.Error("convert chunk failed", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "conversion failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": items})
}

// handleCancel handles POST /api/v1/transcode/cancel
func (s *Server) handleCancel(c *gin.Context) {
	s.engine.RequestCancel()
	c.JSON(http.StatusAccepted, gin.H{"status": "cancel requested"})
}

// handleStatus handles GET /api/v1/transcode/status
func (s *Server) handleStatus(c *gin.Context) {
	running, err := s.engine.IsRunning(c.Request.Context())
	if err != nil {
		s.log.Error("status check failed", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "status check failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"running": running})
}
