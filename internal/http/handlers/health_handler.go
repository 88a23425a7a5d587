// README: Health check handler doing a tariff store round-trip.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"ridehail/internal/logger"
)

type TariffCounter interface {
	CountTariffs(ctx context.Context) (int, error)
}

type HealthHandler struct {
	tariffs TariffCounter
}

func NewHealthHandler(tariffs TariffCounter) *HealthHandler {
	return &HealthHandler{tariffs: tariffs}
}

// Check does a store round-trip; a failing store makes the service unhealthy.
func (h *HealthHandler) Check(c *gin.Context) {
	n, err := h.tariffs.CountTariffs(c.Request.Context())
	if err != nil {
		logger.FromContext(c.Request.Context(), nil).Error("health check failed", "error", err.Error())
		writeError(c, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": "ok", "tariffs": n})
}
