package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/meshguard/backend-go/internal/domain"
	"github.com/meshguard/backend-go/internal/orchestrator"
	"github.com/meshguard/backend-go/internal/store"
)

// PlanHandler exposes recovery plan state. Live plans come from the
// orchestrator; the archive query falls back to Postgres.
type PlanHandler struct {
	orch  *orchestrator.Orchestrator
	plans *store.PlanStore
}

// NewPlanHandler creates a new PlanHandler. plans may be nil.
func NewPlanHandler(orch *orchestrator.Orchestrator, plans *store.PlanStore) *PlanHandler {
	return &PlanHandler{orch: orch, plans: plans}
}

// ListPlans returns active plans plus recent history
func (h *PlanHandler) ListPlans(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"active":  h.orch.ActivePlans(),
		"history": h.orch.History(),
	})
}

// ListArchivedPlans returns persisted plans from the database
func (h *PlanHandler) ListArchivedPlans(c *gin.Context) {
	if h.plans == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"detail": "Database not available"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	plans, err := h.plans.ListPlans(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"plans": plans})
}

// GetPlan returns one plan by ID, checking memory first then the archive
func (h *PlanHandler) GetPlan(c *gin.Context) {
	id := c.Param("plan_id")

	plan, err := h.orch.Plan(id)
	if err == nil {
		c.JSON(http.StatusOK, plan)
		return
	}
	if errors.Is(err, domain.ErrPlanNotFound) && h.plans != nil {
		plan, err = h.plans.GetPlan(c.Request.Context(), id)
		if err == nil {
			c.JSON(http.StatusOK, plan)
			return
		}
	}
	if errors.Is(err, domain.ErrPlanNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Unknown plan: " + id})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
}

// GetSuccessRates returns the adaptive per-action-type success rates
func (h *PlanHandler) GetSuccessRates(c *gin.Context) {
	c.JSON(http.StatusOK, h.orch.TypeSuccessRates())
}
