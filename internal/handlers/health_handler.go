package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/akylbek/payment-system/payment-gateway/internal/provider"
)

type HealthHandler struct {
	registry *provider.Registry
}

func NewHealthHandler(registry *provider.Registry) *HealthHandler {
	return &HealthHandler{registry: registry}
}

// Providers reports the aggregate across every registered provider: 200
// only when all are healthy, 503 otherwise so load balancers can act on it.
func (h *HealthHandler) Providers(c *gin.Context) {
	agg := h.registry.CheckAllHealth(c.Request.Context())
	status := http.StatusOK
	if !agg.Healthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, agg)
}
