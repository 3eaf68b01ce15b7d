package main

import (
	"context"
	"log"
	"time"

	"github.com/meshguard/backend-go/internal/config"
	"github.com/meshguard/backend-go/internal/coordinator"
	"github.com/meshguard/backend-go/internal/graph"
	"github.com/meshguard/backend-go/internal/guard"
	"github.com/meshguard/backend-go/internal/handler"
	"github.com/meshguard/backend-go/internal/integrations"
	"github.com/meshguard/backend-go/internal/observability"
	"github.com/meshguard/backend-go/internal/orchestrator"
	"github.com/meshguard/backend-go/internal/store"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	metrics := observability.NewMetrics()
	guards := guard.NewSet(guard.DefaultConfig())
	guards.Breakers.OnTransition(func(service string, state guard.BreakerState) {
		metrics.SetBreakerState(service, float64(state.Rank()))
	})
	guards.Limiters.OnReject(metrics.RecordRateLimitReject)
	topology := graph.New(graph.DefaultConfig())

	if cfg.TopologyFile != "" {
		tf, err := config.LoadTopology(cfg.TopologyFile)
		if err != nil {
			log.Fatalf("failed to load topology bootstrap: %v", err)
		}
		tf.Apply(topology)
		log.Printf("Topology bootstrap: %d services, %d dependencies",
			len(tf.Services), len(tf.Dependencies))
	}

	// Plan persistence is best-effort; everything keeps working in memory
	var planStore *store.PlanStore
	var orchStore orchestrator.PlanStore
	pool, err := store.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Printf("Database unavailable, plans kept in memory only: %v", err)
	} else {
		defer pool.Close()
		planStore = store.NewPlanStore(pool)
		if err := planStore.EnsureSchema(ctx); err != nil {
			log.Printf("Schema setup failed: %v", err)
		}
		orchStore = planStore
	}

	// Simulated infrastructure handlers first; real integrations override
	// the action types they support
	registry := orchestrator.NewHandlerRegistry()
	integrations.NewSimulatedActions(2 * time.Second).Register(registry)
	integrations.NewGuardActions(guards).Register(registry)

	if k8s, err := integrations.NewK8sActions(cfg.KubeConfig, cfg.K8sNamespace); err != nil {
		log.Printf("Kubernetes unavailable, infrastructure actions simulated: %v", err)
	} else {
		k8s.Register(registry)
		log.Printf("Kubernetes actions registered (namespace %s)", cfg.K8sNamespace)
	}
	if awsActions, err := integrations.NewAWSActions(ctx, cfg.AWSRegion); err != nil {
		log.Printf("AWS unavailable, failover action simulated: %v", err)
	} else {
		awsActions.Register(registry)
		log.Printf("AWS actions registered (region %s)", cfg.AWSRegion)
	}

	ocfg := orchestrator.DefaultConfig()
	ocfg.MaxConcurrentActions = int64(cfg.MaxConcurrentActions)
	orch := orchestrator.New(ocfg, registry, metrics, orchStore)

	var notifier coordinator.Notifier
	if cfg.WebhookURL != "" {
		notifier = coordinator.NewWebhookNotifier(cfg.WebhookURL)
	}

	stop := coordinator.NewEmergencyStop()
	ccfg := coordinator.DefaultConfig()
	ccfg.MaxActivePlans = cfg.MaxActivePlans
	ccfg.TickInterval = time.Duration(cfg.MonitorIntervalSec) * time.Second
	coord := coordinator.New(ccfg, guards, topology, orch, notifier, metrics, stop)

	orch.Start(ctx)
	defer orch.Stop()
	coord.Start(ctx)
	defer coord.Stop()

	router := handler.SetupRouter(
		handler.NewFaultHandler(coord),
		handler.NewGuardHandler(guards),
		handler.NewTopologyHandler(topology),
		handler.NewPlanHandler(orch, planStore),
		coord.EmergencyStop(),
		metrics,
		cfg.CORSAllowOrigin,
	)

	log.Printf("MeshGuard backend starting on :%s", cfg.ServerPort)
	if err := router.Run(":" + cfg.ServerPort); err != nil {
		log.Fatalf("failed to start server: %v", err)
	}
}
