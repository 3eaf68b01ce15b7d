package graph

import (
	"testing"

	"github.com/meshguard/backend-go/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hardEdge(source, target string) domain.ServiceDependency {
	return domain.ServiceDependency{
		Source: source,
		Target: target,
		Type:   domain.DependencyHard,
		Weight: 1.0,
	}
}

func TestAddDependencyAutoCreatesNodes(t *testing.T) {
	g := New(DefaultConfig())
	g.AddDependency(hardEdge("api", "db"))

	api, err := g.Node("api")
	require.NoError(t, err)
	assert.Equal(t, []string{"db"}, api.Dependencies)
	assert.Empty(t, api.Dependents)

	db, err := g.Node("db")
	require.NoError(t, err)
	assert.Equal(t, []string{"api"}, db.Dependents)
	assert.Equal(t, domain.StatusUnknown, db.Status)
}

func TestAddDependencyIdempotent(t *testing.T) {
	g := New(DefaultConfig())
	g.AddDependency(hardEdge("api", "db"))

	// Re-adding replaces attributes without duplicating the edge
	replacement := hardEdge("api", "db")
	replacement.Type = domain.DependencySoft
	replacement.Weight = 0.4
	g.AddDependency(replacement)

	api, err := g.Node("api")
	require.NoError(t, err)
	assert.Equal(t, []string{"db"}, api.Dependencies)

	export := g.Export()
	require.Len(t, export.Edges, 1)
	assert.Equal(t, domain.DependencySoft, export.Edges[0].Type)
	assert.Equal(t, 0.4, export.Edges[0].Weight)
}

func TestRemoveDependency(t *testing.T) {
	g := New(DefaultConfig())
	g.AddDependency(hardEdge("api", "db"))
	g.AddDependency(hardEdge("api", "cache"))

	g.RemoveDependency("api", "db")

	api, err := g.Node("api")
	require.NoError(t, err)
	assert.Equal(t, []string{"cache"}, api.Dependencies)

	db, err := g.Node("db")
	require.NoError(t, err)
	assert.Empty(t, db.Dependents)
}

func TestRemoveService(t *testing.T) {
	g := New(DefaultConfig())
	g.AddDependency(hardEdge("api", "db"))
	g.AddDependency(hardEdge("worker", "db"))

	g.RemoveService("db")

	_, err := g.Node("db")
	assert.ErrorIs(t, err, domain.ErrServiceNotFound)

	api, err := g.Node("api")
	require.NoError(t, err)
	assert.Empty(t, api.Dependencies)
}

func TestSetStatusTracksFailures(t *testing.T) {
	g := New(DefaultConfig())
	g.AddService("api")

	g.SetStatus("api", domain.StatusUnhealthy)
	g.SetStatus("api", domain.StatusUnhealthy)
	g.SetStatus("api", domain.StatusHealthy)

	n, err := g.Node("api")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusHealthy, n.Status)
	assert.Equal(t, 2, n.FailureCount)
}

func TestCriticalityPrioritizesSharedDependency(t *testing.T) {
	g := New(DefaultConfig())
	// Everything depends on db, directly or through api
	g.AddDependency(hardEdge("web", "api"))
	g.AddDependency(hardEdge("mobile", "api"))
	g.AddDependency(hardEdge("api", "db"))
	g.AddDependency(hardEdge("worker", "db"))
	g.AddDependency(hardEdge("reports", "db"))

	db, err := g.Node("db")
	require.NoError(t, err)
	web, err := g.Node("web")
	require.NoError(t, err)

	assert.Greater(t, db.CriticalityScore, web.CriticalityScore)
	assert.Less(t, db.RecoveryPriority, web.RecoveryPriority)
}

func TestExportStats(t *testing.T) {
	g := New(DefaultConfig())
	g.AddDependency(hardEdge("api", "db"))
	g.AddService("standalone")
	g.SetStatus("db", domain.StatusUnhealthy)

	export := g.Export()
	assert.Equal(t, 3, export.Stats.ServiceCount)
	assert.Equal(t, 1, export.Stats.DependencyCount)
	assert.Equal(t, 1, export.Stats.UnhealthyCount)
}

func TestPriorityBands(t *testing.T) {
	assert.Equal(t, 1, priorityBand(0.25))
	assert.Equal(t, 1, priorityBand(0.2))
	assert.Equal(t, 2, priorityBand(0.15))
	assert.Equal(t, 3, priorityBand(0.06))
	assert.Equal(t, 5, priorityBand(0.01))
}
