package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fluxmarket/availability-api/internal/service"
	"github.com/fluxmarket/availability-api/pkg/response"
)

// MetricsHandler exposes aggregated runtime metrics to admins.
type MetricsHandler struct {
	metrics *service.MetricsService
}

// NewMetricsHandler constructs the handler.
func NewMetricsHandler(metrics *service.MetricsService) *MetricsHandler {
	return &MetricsHandler{metrics: metrics}
}

// Snapshot godoc
// @Summary Aggregated runtime metrics
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/metrics [get]
func (h *MetricsHandler) Snapshot(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.metrics.Snapshot(), nil)
}
