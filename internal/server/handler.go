package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mori-agent/mori/internal/records"
)

// SummaryReader returns the consolidated inspection record.
type SummaryReader interface {
	ReadSummary() (map[string]string, error)
}

// HealthProbe checks the inference daemon once.
type HealthProbe interface {
	Check(ctx context.Context) error
	HealthEndpoint() string
}

type Handler struct {
	records SummaryReader
	health  HealthProbe
	logger  *slog.Logger
}

func NewHandler(records SummaryReader, health HealthProbe, logger *slog.Logger) *Handler {
	return &Handler{records: records, health: health, logger: logger}
}

func (h *Handler) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Report serves the last run's consolidated record.
func (h *Handler) Report(c *gin.Context) {
	summary, err := h.records.ReadSummary()
	if errors.Is(err, records.ErrNoSummary) {
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "no provisioning run recorded yet"})
		return
	}
	if err != nil {
		h.logger.Error("read summary record", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "data": summary})
}

// Service reports whether the inference daemon answers right now.
func (h *Handler) Service(c *gin.Context) {
	data := gin.H{"endpoint": h.health.HealthEndpoint(), "healthy": true}
	if err := h.health.Check(c.Request.Context()); err != nil {
		data["healthy"] = false
		data["error"] = err.Error()
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "data": data})
}
