package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/meshguard/backend-go/internal/coordinator"
	"github.com/meshguard/backend-go/internal/domain"
	"github.com/meshguard/backend-go/internal/graph"
	"github.com/meshguard/backend-go/internal/guard"
	"github.com/meshguard/backend-go/internal/orchestrator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	router   *gin.Engine
	topology *graph.Graph
	stop     *coordinator.EmergencyStop
	guards   *guard.Set
}

func setupTestRouter(t *testing.T) *testEnv {
	return setupTestRouterGuards(t, guard.DefaultConfig())
}

func setupTestRouterGuards(t *testing.T, gcfg guard.Config) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ocfg := orchestrator.DefaultConfig()
	ocfg.BackoffBase = time.Millisecond
	registry := orchestrator.NewHandlerRegistry()
	for _, at := range []domain.RecoveryActionType{
		domain.ActionCircuitBreaker,
		domain.ActionServiceRestart,
		domain.ActionTrafficRedirect,
		domain.ActionScaleUp,
		domain.ActionFailover,
		domain.ActionCacheClear,
		domain.ActionRollback,
		domain.ActionEnableDegraded,
		domain.ActionAlertEscalation,
	} {
		registry.RegisterFunc(at, func(ctx context.Context, a *domain.RecoveryAction) (bool, error) {
			return true, nil
		})
	}

	guards := guard.NewSet(gcfg)
	topology := graph.New(graph.DefaultConfig())
	orch := orchestrator.New(ocfg, registry, nil, nil)
	stop := coordinator.NewEmergencyStop()
	coord := coordinator.New(coordinator.DefaultConfig(), guards, topology, orch, nil, nil, stop)

	router := SetupRouter(
		NewFaultHandler(coord),
		NewGuardHandler(guards),
		NewTopologyHandler(topology),
		NewPlanHandler(orch, nil),
		stop,
		nil,
		"http://localhost:5173",
	)
	return &testEnv{router: router, topology: topology, stop: stop, guards: guards}
}

func (e *testEnv) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var decoded map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &decoded)
	return w, decoded
}

func TestReportFaultRunsPlan(t *testing.T) {
	env := setupTestRouter(t)

	w, body := env.do(t, "POST", "/api/faults",
		`{"type":"service_unavailable","severity":"high","service":"checkout"}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "completed", body["status"])
	assert.Equal(t, "checkout", body["service"])
}

func TestReportFaultValidatesBody(t *testing.T) {
	env := setupTestRouter(t)

	w, _ := env.do(t, "POST", "/api/faults", `{"service":"checkout"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReportFaultDuringEmergencyStop(t *testing.T) {
	env := setupTestRouter(t)
	env.stop.Trigger()

	w, body := env.do(t, "POST", "/api/faults",
		`{"type":"high_latency","severity":"low","service":"checkout"}`)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, body["detail"], "Emergency stop")
}

func TestReportFaultRateLimited(t *testing.T) {
	gcfg := guard.DefaultConfig()
	gcfg.Limiter = guard.LimiterConfig{MaxRequests: 1, TimeWindow: time.Hour}
	env := setupTestRouterGuards(t, gcfg)

	w, _ := env.do(t, "POST", "/api/faults",
		`{"type":"service_unavailable","severity":"high","service":"checkout"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w, body := env.do(t, "POST", "/api/faults",
		`{"type":"service_unavailable","severity":"high","service":"checkout"}`)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, body["detail"], "rate limited")

	// Rejections show up in the limiter stats
	stats := env.guards.Limiters.Get("checkout").Stats()
	assert.Equal(t, 2, stats.TotalRequests)
}

func TestEmergencyStopEndpoints(t *testing.T) {
	env := setupTestRouter(t)

	w, _ := env.do(t, "POST", "/emergency-stop", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w, body := env.do(t, "GET", "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["emergency_stop"])

	w, _ = env.do(t, "DELETE", "/emergency-stop", "")
	assert.Equal(t, http.StatusOK, w.Code)

	_, body = env.do(t, "GET", "/health", "")
	assert.Equal(t, false, body["emergency_stop"])
}

func TestHealthSnapshotEndpoint(t *testing.T) {
	env := setupTestRouter(t)

	w, body := env.do(t, "POST", "/api/health-snapshots",
		`{"service":"checkout","metrics":{"latency":"warning","errors":"warning"}}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "minimal", body["degradation_level"])
}

func TestTopologyEndpoints(t *testing.T) {
	env := setupTestRouter(t)

	w, _ := env.do(t, "POST", "/api/topology/dependencies",
		`{"source":"frontend","target":"checkout","type":"hard","weight":1.0}`)
	require.Equal(t, http.StatusOK, w.Code)

	w, body := env.do(t, "GET", "/api/topology", "")
	require.Equal(t, http.StatusOK, w.Code)
	stats := body["stats"].(map[string]any)
	assert.Equal(t, 2.0, stats["service_count"])
	assert.Equal(t, 1.0, stats["dependency_count"])

	w, body = env.do(t, "GET", "/api/topology/impact/checkout", "")
	require.Equal(t, http.StatusOK, w.Code)
	affected := body["directly_affected"].([]any)
	assert.Equal(t, []any{"frontend"}, affected)

	w, _ = env.do(t, "DELETE", "/api/topology/dependencies/frontend/checkout", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestTopologyRejectsSelfDependency(t *testing.T) {
	env := setupTestRouter(t)

	w, _ := env.do(t, "POST", "/api/topology/dependencies",
		`{"source":"a","target":"a","type":"hard"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestImpactUnknownService(t *testing.T) {
	env := setupTestRouter(t)

	w, _ := env.do(t, "GET", "/api/topology/impact/ghost", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAddAndGetService(t *testing.T) {
	env := setupTestRouter(t)

	w, _ := env.do(t, "POST", "/api/topology/services",
		`{"name":"checkout","base_recovery_secs":90}`)
	require.Equal(t, http.StatusOK, w.Code)

	w, body := env.do(t, "GET", "/api/topology/services/checkout", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "checkout", body["name"])
}

func TestGuardEndpoints(t *testing.T) {
	env := setupTestRouter(t)

	w, body := env.do(t, "GET", "/api/guards/checkout", "")
	require.Equal(t, http.StatusOK, w.Code)
	breaker := body["breaker"].(map[string]any)
	assert.Equal(t, "closed", breaker["state"])

	w, body = env.do(t, "GET", "/api/guards/checkout/features/recommendations", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["enabled"])
}

func TestPlanEndpoints(t *testing.T) {
	env := setupTestRouter(t)

	w, _ := env.do(t, "POST", "/api/faults",
		`{"type":"high_latency","severity":"medium","service":"checkout"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w, body := env.do(t, "GET", "/api/plans", "")
	require.Equal(t, http.StatusOK, w.Code)
	history := body["history"].([]any)
	require.Len(t, history, 1)

	planID := history[0].(map[string]any)["id"].(string)
	w, body = env.do(t, "GET", "/api/plans/"+planID, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "completed", body["status"])

	w, _ = env.do(t, "GET", "/api/plans/nonexistent", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestArchivedPlansWithoutDB(t *testing.T) {
	env := setupTestRouter(t)

	w, body := env.do(t, "GET", "/api/plans/archive", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "Database not available", body["detail"])
}

func TestNormalizePath(t *testing.T) {
	assert.Equal(t, "/api/plans/{id}", normalizePath("/api/plans/0a1b2c3d"))
	assert.Equal(t, "/api/plans/{id}", normalizePath("/api/plans/manual-0a1b2c3d"))
	assert.Equal(t, "/api/topology", normalizePath("/api/topology"))
}
