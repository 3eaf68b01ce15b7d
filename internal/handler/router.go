package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/meshguard/backend-go/internal/coordinator"
	"github.com/meshguard/backend-go/internal/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRouter configures all API routes
func SetupRouter(
	faults *FaultHandler,
	guards *GuardHandler,
	topology *TopologyHandler,
	plans *PlanHandler,
	stop *coordinator.EmergencyStop,
	metrics *observability.Metrics,
	corsOrigin string,
) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(CORSMiddleware(corsOrigin))
	r.Use(PrometheusMiddleware(metrics))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":         "healthy",
			"emergency_stop": stop.IsTriggered(),
		})
	})

	// Prometheus metrics
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Emergency stop
	r.POST("/emergency-stop", func(c *gin.Context) {
		stop.Trigger()
		c.JSON(http.StatusOK, gin.H{"status": "emergency_stop_triggered"})
	})
	r.DELETE("/emergency-stop", func(c *gin.Context) {
		stop.Reset()
		c.JSON(http.StatusOK, gin.H{"status": "emergency_stop_reset"})
	})

	// Fault intake
	faultGroup := r.Group("/api/faults")
	{
		faultGroup.POST("", faults.ReportFault)
		faultGroup.GET("", faults.ListTrackedFaults)
	}
	r.POST("/api/health-snapshots", faults.ReportHealthSnapshot)

	// Protection primitives
	guardGroup := r.Group("/api/guards")
	{
		guardGroup.GET("/breakers", guards.ListBreakers)
		guardGroup.GET("/degradations", guards.ListDegradations)
		guardGroup.GET("/:service", guards.GetServiceStats)
		guardGroup.GET("/:service/features/:feature", guards.GetFeature)
	}

	// Dependency graph
	topoGroup := r.Group("/api/topology")
	{
		topoGroup.GET("", topology.GetTopology)
		topoGroup.POST("/services", topology.AddService)
		topoGroup.GET("/services/:service", topology.GetService)
		topoGroup.GET("/impact/:service", topology.GetImpact)
		topoGroup.POST("/dependencies", topology.AddDependency)
		topoGroup.DELETE("/dependencies/:source/:target", topology.RemoveDependency)
	}

	// Recovery plans
	planGroup := r.Group("/api/plans")
	{
		planGroup.GET("", plans.ListPlans)
		planGroup.GET("/archive", plans.ListArchivedPlans)
		planGroup.GET("/success-rates", plans.GetSuccessRates)
		planGroup.GET("/:plan_id", plans.GetPlan)
	}

	return r
}
