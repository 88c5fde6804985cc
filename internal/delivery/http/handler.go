package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stylelens/backend/internal/domain"
	"github.com/stylelens/backend/internal/usecase"
)

// Handler holds dependencies for HTTP handlers
type Handler struct {
	pipeline *usecase.PipelineService
}

// NewHandler creates a new HTTP handler
func NewHandler(pipeline *usecase.PipelineService) *Handler {
	return &Handler{pipeline: pipeline}
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "stylelens-backend",
		"version": "1.0.0",
	})
}

// extractRequest is the body for the extraction-only endpoint
type extractRequest struct {
	HTML    string `json:"html" binding:"required"`
	BaseURL string `json:"baseUrl" binding:"required"`
}

// ExtractCandidates handles POST /api/v1/images/extract
func (h *Handler) ExtractCandidates(c *gin.Context) {
	if h.pipeline == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "pipeline not configured"})
		return
	}

	var req extractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "html and baseUrl are required"})
		return
	}

	candidates, err := h.pipeline.Extract(req.HTML, req.BaseURL)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"candidates": candidates,
		"count":      len(candidates),
	})
}

// RankImages handles POST /api/v1/images/rank
func (h *Handler) RankImages(c *gin.Context) {
	if h.pipeline == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "pipeline not configured"})
		return
	}

	var req domain.RankRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request body"})
		return
	}

	ranked, err := h.pipeline.Rank(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	urls := make([]string, 0, len(ranked))
	for _, r := range ranked {
		urls = append(urls, r.URL)
	}

	c.JSON(http.StatusOK, gin.H{
		"images": urls,
		"ranked": ranked,
	})
}

// AnalyzeImages handles POST /api/v1/images/analyze
func (h *Handler) AnalyzeImages(c *gin.Context) {
	if h.pipeline == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "pipeline not configured"})
		return
	}

	var req domain.AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request body"})
		return
	}

	partition, err := h.pipeline.Analyze(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	// An empty confident bucket here implies a genuinely empty candidate set;
	// "found nothing confident" is still a 200 with the partition.
	c.JSON(http.StatusOK, partition)
}

// respondError maps domain errors to HTTP status codes
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrNoCandidates):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrBatchCancelled):
		c.JSON(http.StatusRequestTimeout, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrRateLimited):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
