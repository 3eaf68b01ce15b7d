package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/meshguard/backend-go/internal/domain"
	"github.com/meshguard/backend-go/internal/graph"
)

// TopologyHandler exposes the service dependency graph
type TopologyHandler struct {
	topology *graph.Graph
}

// NewTopologyHandler creates a new TopologyHandler
func NewTopologyHandler(topology *graph.Graph) *TopologyHandler {
	return &TopologyHandler{topology: topology}
}

// GetTopology returns the full graph export
func (h *TopologyHandler) GetTopology(c *gin.Context) {
	c.JSON(http.StatusOK, h.topology.Export())
}

// GetImpact runs the cascade impact analysis for a service
func (h *TopologyHandler) GetImpact(c *gin.Context) {
	service := c.Param("service")
	kind := c.DefaultQuery("kind", "failure")

	impact, err := h.topology.Analyze(service, kind)
	if errors.Is(err, domain.ErrServiceNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Unknown service: " + service})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}
	c.JSON(http.StatusOK, impact)
}

// AddDependency registers or replaces a dependency edge
func (h *TopologyHandler) AddDependency(c *gin.Context) {
	var dep domain.ServiceDependency
	if err := c.ShouldBindJSON(&dep); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}
	if dep.Source == "" || dep.Target == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "source and target are required"})
		return
	}
	if dep.Source == dep.Target {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "a service cannot depend on itself"})
		return
	}

	h.topology.AddDependency(dep)
	c.JSON(http.StatusOK, gin.H{"status": "dependency_added"})
}

// RemoveDependency deletes a dependency edge
func (h *TopologyHandler) RemoveDependency(c *gin.Context) {
	source := c.Param("source")
	target := c.Param("target")

	h.topology.RemoveDependency(source, target)
	c.JSON(http.StatusOK, gin.H{"status": "dependency_removed"})
}

// AddService registers a service without any edges
func (h *TopologyHandler) AddService(c *gin.Context) {
	var req struct {
		Name             string  `json:"name" binding:"required"`
		BaseRecoverySecs float64 `json:"base_recovery_secs"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	h.topology.AddService(req.Name)
	if req.BaseRecoverySecs > 0 {
		h.topology.SetBaseRecoverySecs(req.Name, req.BaseRecoverySecs)
	}
	c.JSON(http.StatusOK, gin.H{"status": "service_added"})
}

// GetService returns one node with its derived criticality
func (h *TopologyHandler) GetService(c *gin.Context) {
	name := c.Param("service")

	node, err := h.topology.Node(name)
	if errors.Is(err, domain.ErrServiceNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Unknown service: " + name})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}
	c.JSON(http.StatusOK, node)
}
