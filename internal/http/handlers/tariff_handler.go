// README: Tariff list and fare preview handlers.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ridehail/internal/modules/pricing"
)

type TariffHandler struct {
	pricing *pricing.Service
}

func NewTariffHandler(svc *pricing.Service) *TariffHandler {
	return &TariffHandler{pricing: svc}
}

func (h *TariffHandler) List(c *gin.Context) {
	tariffs, err := h.pricing.ListTariffs(c.Request.Context())
	if err != nil {
		writeAppError(c, err)
		return
	}
	out := make([]tariffResponse, 0, len(tariffs))
	for _, t := range tariffs {
		out = append(out, toTariff(t))
	}
	writeJSON(c, http.StatusOK, gin.H{"tariffs": out})
}

// Quote handles GET /api/tariffs/:id/quote?distance_km=&duration_min=.
// Missing or unparsable quantities count as zero.
func (h *TariffHandler) Quote(c *gin.Context) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusNotFound, pricing.ErrTariffNotFound.Message)
		return
	}
	q, err := h.pricing.Quote(c.Request.Context(), id,
		pricing.ParseQuantity(c.Query("distance_km")),
		pricing.ParseQuantity(c.Query("duration_min")),
	)
	if err != nil {
		writeAppError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{
		"tariff":       toTariff(q.Tariff),
		"distance_km":  q.DistanceKm.Float64(),
		"duration_min": q.DurationMin.Float64(),
		"total_cost":   toMoney(q.Total),
	})
}
