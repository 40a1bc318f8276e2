package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"basegraph.app/faultline/internal/http/dto"
	"basegraph.app/faultline/internal/http/middleware"
	"basegraph.app/faultline/internal/service"
	"basegraph.app/faultline/internal/store"
	"basegraph.app/faultline/internal/triage"
)

type FailureHandler struct {
	service service.IngestService
}

func NewFailureHandler(service service.IngestService) *FailureHandler {
	return &FailureHandler{service: service}
}

func (h *FailureHandler) Submit(c *gin.Context) {
	ctx := c.Request.Context()

	scope, ok := middleware.Scope(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing scope"})
		return
	}

	var req dto.SubmitFailureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "invalid failure request", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.service.Ingest(ctx, service.IngestParams{
		Scope:     scope,
		Report:    req.Report(),
		TopK:      req.TopK,
		Threshold: req.Threshold,
	})
	if err != nil {
		h.writeError(c, err, "failed to process failure")
		return
	}

	changed := result.ChangedFiles
	if changed == nil {
		changed = []string{}
	}

	c.JSON(http.StatusOK, dto.SubmitFailureResponse{
		Status:          "processed",
		PatternID:       result.PatternID,
		Analysis:        result.AnalysisText,
		Matches:         dto.NewMatchResponses(result.Matches),
		Recommendations: dto.NewRecommendationResponses(result.Recommendations),
		ChangedFiles:    changed,
		Dimensions:      result.Dimensions,
	})
}

func (h *FailureHandler) GetPattern(c *gin.Context) {
	ctx := c.Request.Context()

	scope, ok := middleware.Scope(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing scope"})
		return
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid pattern id"})
		return
	}

	pattern, err := h.service.GetPattern(ctx, scope, id)
	if err != nil {
		h.writeError(c, err, "failed to load pattern")
		return
	}

	c.JSON(http.StatusOK, dto.NewPatternResponse(pattern))
}

func (h *FailureHandler) writeError(c *gin.Context, err error, msg string) {
	ctx := c.Request.Context()

	switch {
	case errors.Is(err, triage.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInsufficientCredits):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": "insufficient credits"})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "pattern not found"})
	case errors.Is(err, triage.ErrFingerprint):
		slog.ErrorContext(ctx, msg, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "fingerprint generation failed"})
	case errors.Is(err, store.ErrStorage):
		slog.ErrorContext(ctx, msg, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "pattern store unavailable"})
	default:
		slog.ErrorContext(ctx, msg, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
	}
}
