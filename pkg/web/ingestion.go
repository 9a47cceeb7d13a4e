package web

import (
	"errors"
	"net/http"

	"github.com/fsandov/ingestion-sdk/pkg/ingestion"
	"github.com/fsandov/ingestion-sdk/pkg/logs"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type unknownPackagesRequest struct {
	Ecosystem string                   `json:"ecosystem" binding:"required"`
	Packages  []ingestion.PackageEntry `json:"packages"`
}

type IngestionHandler struct {
	notifier *ingestion.Notifier
	outcomes *ingestion.OutcomeStore
	logger   *logs.Logger
}

// NewIngestionHandler serves the ingestion API. outcomes may be nil, in which
// case every outcome lookup answers 404.
func NewIngestionHandler(n *ingestion.Notifier, outcomes *ingestion.OutcomeStore) *IngestionHandler {
	return &IngestionHandler{notifier: n, outcomes: outcomes, logger: logs.GetLogger()}
}

func (h *IngestionHandler) Register(r gin.IRouter) {
	g := r.Group("/api/v1/ingestions")
	g.POST("/unknown", h.notifyUnknown)
	g.GET("/:id", h.outcome)
}

func (h *IngestionHandler) notifyUnknown(c *gin.Context) {
	var req unknownPackagesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	pkgs := ingestion.NewPackageSet()
	for i, p := range req.Packages {
		if p.Package == "" || p.Version == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "package and version are required", "index": i})
			return
		}
		pkgs.Add(ingestion.Package{Name: p.Package, Version: p.Version})
	}

	task, err := h.notifier.UnknownPackageFlow(c.Request.Context(), req.Ecosystem, pkgs)
	switch {
	case errors.Is(err, ingestion.ErrInvalidEcosystem):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case errors.Is(err, ingestion.ErrIngestionFailed):
		c.JSON(http.StatusBadGateway, gin.H{"error": ingestion.ErrIngestionFailed.Error()})
		return
	case err != nil:
		h.logger.Error(c.Request.Context(), "unexpected ingestion error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	if task == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"request_id": task.ID(), "packages": pkgs.Len()})
}

func (h *IngestionHandler) outcome(c *gin.Context) {
	if h.outcomes == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": ingestion.ErrOutcomeNotFound.Error()})
		return
	}

	o, err := h.outcomes.Lookup(c.Request.Context(), c.Param("id"))
	if errors.Is(err, ingestion.ErrOutcomeNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		h.logger.Error(c.Request.Context(), "failed to load ingestion outcome", zap.String("id", c.Param("id")), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, o)
}
