package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/meshguard/backend-go/internal/guard"
)

// GuardHandler exposes the protection primitive state
type GuardHandler struct {
	guards *guard.Set
}

// NewGuardHandler creates a new GuardHandler
func NewGuardHandler(guards *guard.Set) *GuardHandler {
	return &GuardHandler{guards: guards}
}

// GetServiceStats returns the combined primitive snapshot for one service
func (h *GuardHandler) GetServiceStats(c *gin.Context) {
	service := c.Param("service")
	c.JSON(http.StatusOK, h.guards.ServiceStats(service))
}

// GetFeature returns whether a feature is currently enabled for a service
func (h *GuardHandler) GetFeature(c *gin.Context) {
	service := c.Param("service")
	feature := c.Param("feature")

	enabled := h.guards.Degraders.Get(service).IsFeatureEnabled(feature)
	c.JSON(http.StatusOK, gin.H{
		"service": service,
		"feature": feature,
		"enabled": enabled,
	})
}

// ListBreakers returns the breaker snapshot for every known service
func (h *GuardHandler) ListBreakers(c *gin.Context) {
	c.JSON(http.StatusOK, h.guards.Breakers.Snapshot())
}

// ListDegradations returns the degradation snapshot for every known service
func (h *GuardHandler) ListDegradations(c *gin.Context) {
	c.JSON(http.StatusOK, h.guards.Degraders.Snapshot())
}
