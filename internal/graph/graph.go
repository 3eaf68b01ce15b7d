// Package graph owns the directed service dependency graph: typed weighted
// edges, criticality scoring, cascade impact analysis, and recovery-order
// derivation. One coarse lock guards mutation and criticality recomputation;
// impact analyses are served from a short-lived cache.
package graph

import (
	"log"
	"sort"
	"sync"
	"time"

	"github.com/meshguard/backend-go/internal/domain"
)

// Config tunes scoring and the cascade heuristics. The heuristic constants
// mirror the production formulas and are kept configurable for compatibility
// testing rather than derived.
type Config struct {
	PageRankWeight          float64
	BetweennessWeight       float64
	PageRankDamping         float64
	PageRankIterations      int
	CascadeDenominator      float64
	CascadeCap              float64
	ParallelRecoveryFactor  float64
	DefaultBaseRecoverySecs float64
	CacheTTL                time.Duration
	CacheBucket             time.Duration
}

// DefaultConfig returns the graph defaults
func DefaultConfig() Config {
	return Config{
		PageRankWeight:          0.7,
		BetweennessWeight:       0.3,
		PageRankDamping:         0.85,
		PageRankIterations:      20,
		CascadeDenominator:      10,
		CascadeCap:              0.9,
		ParallelRecoveryFactor:  0.5,
		DefaultBaseRecoverySecs: 120,
		CacheTTL:                30 * time.Second,
		CacheBucket:             10 * time.Second,
	}
}

type node struct {
	name             string
	status           domain.ServiceStatus
	failureCount     int
	criticalityScore float64
	recoveryPriority int
	baseRecoverySecs float64
}

// Graph is the service dependency graph. Edges run source -> target where
// source depends on target; at most one edge exists per ordered pair.
type Graph struct {
	cfg Config
	now func() time.Time

	mu         sync.RWMutex
	nodes      map[string]*node
	deps       map[string]map[string]*domain.ServiceDependency // source -> target -> edge
	dependents map[string]map[string]bool                      // target -> sources

	cacheMu sync.Mutex
	cache   map[string]cachedImpact
}

// New creates an empty graph
func New(cfg Config) *Graph {
	return &Graph{
		cfg:        cfg,
		now:        time.Now,
		nodes:      make(map[string]*node),
		deps:       make(map[string]map[string]*domain.ServiceDependency),
		dependents: make(map[string]map[string]bool),
		cache:      make(map[string]cachedImpact),
	}
}

// AddService registers a service, creating it if absent. Idempotent.
func (g *Graph) AddService(name string) {
	g.mu.Lock()
	g.ensureNode(name)
	g.mu.Unlock()
	g.invalidate()
}

// ensureNode creates a node if missing. Caller holds the write lock.
func (g *Graph) ensureNode(name string) *node {
	n, ok := g.nodes[name]
	if !ok {
		n = &node{
			name:             name,
			status:           domain.StatusUnknown,
			recoveryPriority: 5,
			baseRecoverySecs: g.cfg.DefaultBaseRecoverySecs,
		}
		g.nodes[name] = n
		g.deps[name] = make(map[string]*domain.ServiceDependency)
		g.dependents[name] = make(map[string]bool)
	}
	return n
}

// AddDependency adds or replaces the edge source -> target. Both endpoints
// are auto-created. Criticality is recomputed for the whole graph.
func (g *Graph) AddDependency(dep domain.ServiceDependency) {
	if dep.Weight <= 0 {
		dep.Weight = 1.0
	}
	if dep.Type == "" {
		dep.Type = domain.DependencyHard
	}

	g.mu.Lock()
	g.ensureNode(dep.Source)
	g.ensureNode(dep.Target)
	if _, exists := g.deps[dep.Source][dep.Target]; exists {
		log.Printf("Dependency %s -> %s replaced", dep.Source, dep.Target)
	}
	g.deps[dep.Source][dep.Target] = &dep
	g.dependents[dep.Target][dep.Source] = true
	g.recomputeCriticality()
	g.mu.Unlock()

	g.invalidate()
}

// RemoveDependency deletes the edge source -> target if present
func (g *Graph) RemoveDependency(source, target string) {
	g.mu.Lock()
	if edges, ok := g.deps[source]; ok {
		delete(edges, target)
	}
	if srcs, ok := g.dependents[target]; ok {
		delete(srcs, source)
	}
	g.recomputeCriticality()
	g.mu.Unlock()

	g.invalidate()
}

// RemoveService deletes a service and every edge touching it
func (g *Graph) RemoveService(name string) {
	g.mu.Lock()
	delete(g.nodes, name)
	delete(g.deps, name)
	delete(g.dependents, name)
	for _, edges := range g.deps {
		delete(edges, name)
	}
	for _, srcs := range g.dependents {
		delete(srcs, name)
	}
	g.recomputeCriticality()
	g.mu.Unlock()

	g.invalidate()
}

// SetStatus updates a service's health status, creating the node if needed
func (g *Graph) SetStatus(name string, status domain.ServiceStatus) {
	g.mu.Lock()
	defer g.mu.Unlock()

	n := g.ensureNode(name)
	n.status = status
	if status == domain.StatusUnhealthy {
		n.failureCount++
	}
}

// SetBaseRecoverySecs overrides the per-service base recovery time
func (g *Graph) SetBaseRecoverySecs(name string, secs float64) {
	g.mu.Lock()
	g.ensureNode(name).baseRecoverySecs = secs
	g.mu.Unlock()
	g.invalidate()
}

// Node returns a copy of the named service node
func (g *Graph) Node(name string) (domain.ServiceNode, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	n, ok := g.nodes[name]
	if !ok {
		return domain.ServiceNode{}, domain.ErrServiceNotFound
	}
	return g.exportNode(n), nil
}

// exportNode builds the external node view. Caller holds the lock.
func (g *Graph) exportNode(n *node) domain.ServiceNode {
	out := domain.ServiceNode{
		Name:             n.name,
		Status:           n.status,
		FailureCount:     n.failureCount,
		CriticalityScore: n.criticalityScore,
		RecoveryPriority: n.recoveryPriority,
	}
	for target := range g.deps[n.name] {
		out.Dependencies = append(out.Dependencies, target)
	}
	for source := range g.dependents[n.name] {
		out.Dependents = append(out.Dependents, source)
	}
	sort.Strings(out.Dependencies)
	sort.Strings(out.Dependents)
	return out
}

// Export returns the full graph view served to operators
func (g *Graph) Export() domain.GraphExport {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := domain.GraphExport{}
	names := make([]string, 0, len(g.nodes))
	for name := range g.nodes {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		n := g.nodes[name]
		out.Nodes = append(out.Nodes, g.exportNode(n))
		if n.status == domain.StatusUnhealthy {
			out.Stats.UnhealthyCount++
		}
		targets := make([]string, 0, len(g.deps[name]))
		for t := range g.deps[name] {
			targets = append(targets, t)
		}
		sort.Strings(targets)
		for _, t := range targets {
			out.Edges = append(out.Edges, *g.deps[name][t])
		}
	}
	out.Stats.ServiceCount = len(out.Nodes)
	out.Stats.DependencyCount = len(out.Edges)
	return out
}

// recomputeCriticality rescores every node. Caller holds the write lock.
func (g *Graph) recomputeCriticality() {
	adj := make(adjacency, len(g.nodes))
	for name := range g.nodes {
		adj[name] = make(map[string]float64, len(g.deps[name]))
		for target, edge := range g.deps[name] {
			adj[name][target] = edge.Weight
		}
	}

	pr := pageRank(adj, g.cfg.PageRankDamping, g.cfg.PageRankIterations)
	bt := betweenness(adj)

	for name, n := range g.nodes {
		n.criticalityScore = g.cfg.PageRankWeight*pr[name] + g.cfg.BetweennessWeight*bt[name]
		n.recoveryPriority = priorityBand(n.criticalityScore)
	}
}

// priorityBand maps a criticality score to a recovery priority (1 = highest)
func priorityBand(score float64) int {
	switch {
	case score >= 0.2:
		return 1
	case score >= 0.1:
		return 2
	case score >= 0.05:
		return 3
	default:
		return 5
	}
}
