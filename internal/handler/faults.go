package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/meshguard/backend-go/internal/coordinator"
	"github.com/meshguard/backend-go/internal/domain"
)

// FaultHandler handles fault signal and health snapshot intake
type FaultHandler struct {
	coord *coordinator.Coordinator
}

// NewFaultHandler creates a new FaultHandler
func NewFaultHandler(coord *coordinator.Coordinator) *FaultHandler {
	return &FaultHandler{coord: coord}
}

// ReportFault ingests a fault signal and drives recovery for it
func (h *FaultHandler) ReportFault(c *gin.Context) {
	var fault domain.FaultSignal
	if err := c.ShouldBindJSON(&fault); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	plan, err := h.coord.OnFault(c.Request.Context(), fault)
	switch {
	case errors.Is(err, domain.ErrEmergencyStop):
		c.JSON(http.StatusServiceUnavailable, gin.H{"detail": "Emergency stop is active"})
	case errors.Is(err, domain.ErrRateLimitExceeded):
		c.JSON(http.StatusTooManyRequests, gin.H{"detail": "Fault intake rate limited for service"})
	case errors.Is(err, domain.ErrTooManyPlans):
		c.JSON(http.StatusAccepted, gin.H{
			"detail":   "Active plan cap reached, fault deferred",
			"deferred": h.coord.DeferredCount(),
		})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
	default:
		c.JSON(http.StatusOK, plan)
	}
}

// ReportHealthSnapshot ingests a health snapshot from the metrics collaborator
func (h *FaultHandler) ReportHealthSnapshot(c *gin.Context) {
	var snapshot domain.HealthSnapshot
	if err := c.ShouldBindJSON(&snapshot); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	level := h.coord.ApplyHealthSnapshot(snapshot)
	c.JSON(http.StatusOK, gin.H{
		"service":           snapshot.Service,
		"degradation_level": level,
	})
}

// ListTrackedFaults returns the faults whose recovery is still in flight
func (h *FaultHandler) ListTrackedFaults(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"faults":   h.coord.TrackedFaults(),
		"deferred": h.coord.DeferredCount(),
	})
}
