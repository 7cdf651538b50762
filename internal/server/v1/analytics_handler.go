package v1

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/nulzo/polly/internal/analytics"
	"github.com/nulzo/polly/pkg/api"
)

type AnalyticsHandler struct {
	service analytics.Service
}

func NewAnalyticsHandler(service analytics.Service) *AnalyticsHandler {
	return &AnalyticsHandler{service: service}
}

// Usage returns daily aggregated request stats.
func (h *AnalyticsHandler) Usage(c *gin.Context) {
	days, err := strconv.Atoi(c.DefaultQuery("days", "7"))
	if err != nil || days < 0 {
		_ = c.Error(api.BadRequest("days must be a non-negative integer"))
		return
	}

	stats, err := h.service.GetUsageOverview(c.Request.Context(), days)
	if err != nil {
		_ = c.Error(api.Internal("Failed to load usage stats", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"days": days, "stats": stats})
}
