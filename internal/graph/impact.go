package graph

import (
	"fmt"
	"log"
	"sort"

	"github.com/meshguard/backend-go/internal/domain"
)

type cachedImpact struct {
	analysis domain.ImpactAnalysis
	expires  int64
}

// Analyze computes the cascade impact of a service failure. kind names the
// triggering change (e.g. "failure", "degradation") and participates in the
// cache key. Results are cached per (service, kind, coarse time bucket)
// until the TTL elapses or the graph mutates.
func (g *Graph) Analyze(failedService, kind string) (domain.ImpactAnalysis, error) {
	now := g.now()
	bucket := now.UnixNano() / int64(g.cfg.CacheBucket)
	key := fmt.Sprintf("%s|%s|%d", failedService, kind, bucket)

	g.cacheMu.Lock()
	if hit, ok := g.cache[key]; ok && now.UnixNano() < hit.expires {
		g.cacheMu.Unlock()
		return hit.analysis, nil
	}
	g.cacheMu.Unlock()

	analysis, err := g.analyze(failedService)
	if err != nil {
		return domain.ImpactAnalysis{}, err
	}

	g.cacheMu.Lock()
	g.cache[key] = cachedImpact{analysis: analysis, expires: now.Add(g.cfg.CacheTTL).UnixNano()}
	g.cacheMu.Unlock()
	return analysis, nil
}

// invalidate drops every cached analysis; called on any graph mutation
func (g *Graph) invalidate() {
	g.cacheMu.Lock()
	g.cache = make(map[string]cachedImpact)
	g.cacheMu.Unlock()
}

func (g *Graph) analyze(failed string) (domain.ImpactAnalysis, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if _, ok := g.nodes[failed]; !ok {
		return domain.ImpactAnalysis{}, fmt.Errorf("%w: %s", domain.ErrServiceNotFound, failed)
	}

	analysis := domain.ImpactAnalysis{FailedService: failed}

	// Directly affected: dependents reaching the failed service over a
	// hard or soft edge. Optional edges never propagate.
	var edgeScores []float64
	visited := map[string]bool{failed: true}
	var direct []string
	for source := range g.dependents[failed] {
		edge := g.deps[source][failed]
		if edge == nil {
			continue
		}
		if edge.Type == domain.DependencyHard || edge.Type == domain.DependencySoft {
			direct = append(direct, source)
			visited[source] = true
			edgeScores = append(edgeScores, edge.Weight*edge.Type.CascadeWeight())
		}
	}
	sort.Strings(direct)

	// Indirectly affected: transitive closure over hard edges only
	var indirect []string
	frontier := append([]string(nil), direct...)
	for len(frontier) > 0 {
		current := frontier[0]
		frontier = frontier[1:]
		for source := range g.dependents[current] {
			edge := g.deps[source][current]
			if edge == nil || edge.Type != domain.DependencyHard || visited[source] {
				continue
			}
			visited[source] = true
			indirect = append(indirect, source)
			frontier = append(frontier, source)
			edgeScores = append(edgeScores, edge.Weight*edge.Type.CascadeWeight())
		}
	}
	sort.Strings(indirect)

	analysis.DirectlyAffected = direct
	analysis.IndirectlyAffected = indirect

	affected := append(append([]string(nil), direct...), indirect...)
	analysis.CascadeProbability = g.cascadeProbability(len(affected), edgeScores)
	analysis.EstimatedRecoverySecs = g.estimateRecovery(failed, affected)
	analysis.RecoveryOrder = g.recoveryOrder(failed, affected)
	return analysis, nil
}

// cascadeProbability scales the capped affected-count ratio by the mean
// contributing edge score. Caller holds the read lock.
func (g *Graph) cascadeProbability(affected int, edgeScores []float64) float64 {
	if affected == 0 || len(edgeScores) == 0 {
		return 0
	}
	p := float64(affected) / g.cfg.CascadeDenominator
	if p > g.cfg.CascadeCap {
		p = g.cfg.CascadeCap
	}

	sum := 0.0
	for _, s := range edgeScores {
		sum += s
	}
	p *= sum / float64(len(edgeScores))

	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}
	return p
}

// estimateRecovery assumes affected services recover in parallel after the
// root cause, contributing a fraction of the slowest one
func (g *Graph) estimateRecovery(failed string, affected []string) float64 {
	est := g.baseRecovery(failed)
	maxAffected := 0.0
	for _, name := range affected {
		if base := g.baseRecovery(name); base > maxAffected {
			maxAffected = base
		}
	}
	return est + g.cfg.ParallelRecoveryFactor*maxAffected
}

func (g *Graph) baseRecovery(name string) float64 {
	if n, ok := g.nodes[name]; ok {
		return n.baseRecoverySecs
	}
	return g.cfg.DefaultBaseRecoverySecs
}

// recoveryOrder topologically sorts the induced subgraph so the failed
// service comes first, then its consumers outward. A cycle falls back to
// priority ordering.
func (g *Graph) recoveryOrder(failed string, affected []string) []string {
	members := map[string]bool{failed: true}
	for _, name := range affected {
		members[name] = true
	}

	induced := make(adjacency, len(members))
	for name := range members {
		induced[name] = make(map[string]float64)
		for target, edge := range g.deps[name] {
			if members[target] {
				induced[name][target] = edge.Weight
			}
		}
	}

	order, ok := topoSort(induced)
	if !ok {
		log.Printf("Recovery order for %s: %v, using priority fallback", failed, domain.ErrGraphCycle)
		return g.priorityOrder(members)
	}

	// Sorted dependent -> dependency, reversed so the root cause leads
	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
	}
	return order
}

// priorityOrder sorts members by (recovery priority asc, criticality desc)
func (g *Graph) priorityOrder(members map[string]bool) []string {
	names := make([]string, 0, len(members))
	for name := range members {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := g.nodes[names[i]], g.nodes[names[j]]
		if a.recoveryPriority != b.recoveryPriority {
			return a.recoveryPriority < b.recoveryPriority
		}
		if a.criticalityScore != b.criticalityScore {
			return a.criticalityScore > b.criticalityScore
		}
		return names[i] < names[j]
	})
	return names
}
