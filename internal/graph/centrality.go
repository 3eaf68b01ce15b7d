package graph

// adjacency is a weighted adjacency list: node -> neighbor -> edge weight
type adjacency map[string]map[string]float64

// pageRank computes weighted PageRank with the given damping factor.
// Rank flows along edges proportionally to edge weight, so services that
// many others depend on accumulate importance. Scores sum to ~1.
func pageRank(adj adjacency, damping float64, iterations int) map[string]float64 {
	n := len(adj)
	if n == 0 {
		return map[string]float64{}
	}

	rank := make(map[string]float64, n)
	for node := range adj {
		rank[node] = 1.0 / float64(n)
	}

	outWeight := make(map[string]float64, n)
	for node, edges := range adj {
		for _, w := range edges {
			outWeight[node] += w
		}
	}

	for i := 0; i < iterations; i++ {
		next := make(map[string]float64, n)
		base := (1 - damping) / float64(n)
		dangling := 0.0

		for node := range adj {
			next[node] = base
		}
		for node, edges := range adj {
			if outWeight[node] == 0 {
				dangling += rank[node]
				continue
			}
			for target, w := range edges {
				next[target] += damping * rank[node] * w / outWeight[node]
			}
		}
		// Dangling mass is spread uniformly
		if dangling > 0 {
			share := damping * dangling / float64(n)
			for node := range next {
				next[node] += share
			}
		}
		rank = next
	}
	return rank
}

// betweenness computes Brandes' betweenness centrality on the directed
// graph, treating edges as unweighted hops. Scores are normalized by
// (n-1)(n-2) into [0,1].
func betweenness(adj adjacency) map[string]float64 {
	bc := make(map[string]float64, len(adj))
	for node := range adj {
		bc[node] = 0
	}
	n := len(adj)
	if n < 3 {
		return bc
	}

	for source := range adj {
		// BFS from source
		var stack []string
		pred := make(map[string][]string, n)
		sigma := map[string]float64{source: 1}
		dist := map[string]int{source: 0}
		queue := []string{source}

		for len(queue) > 0 {
			v := queue[0]
			queue = queue[1:]
			stack = append(stack, v)
			for w := range adj[v] {
				if _, seen := dist[w]; !seen {
					dist[w] = dist[v] + 1
					queue = append(queue, w)
				}
				if dist[w] == dist[v]+1 {
					sigma[w] += sigma[v]
					pred[w] = append(pred[w], v)
				}
			}
		}

		// Dependency accumulation in reverse BFS order
		delta := make(map[string]float64, len(stack))
		for i := len(stack) - 1; i >= 0; i-- {
			w := stack[i]
			for _, v := range pred[w] {
				delta[v] += sigma[v] / sigma[w] * (1 + delta[w])
			}
			if w != source {
				bc[w] += delta[w]
			}
		}
	}

	norm := float64((n - 1) * (n - 2))
	for node := range bc {
		bc[node] /= norm
	}
	return bc
}

// topoSort runs Kahn's algorithm over the adjacency list. The second
// return value is false when the graph contains a cycle.
func topoSort(adj adjacency) ([]string, bool) {
	indegree := make(map[string]int, len(adj))
	for node := range adj {
		indegree[node] += 0
	}
	for _, edges := range adj {
		for target := range edges {
			indegree[target]++
		}
	}

	var queue []string
	for node, deg := range indegree {
		if deg == 0 {
			queue = append(queue, node)
		}
	}

	order := make([]string, 0, len(adj))
	for len(queue) > 0 {
		// Deterministic tie-breaking keeps recovery orders stable
		minIdx := 0
		for i := 1; i < len(queue); i++ {
			if queue[i] < queue[minIdx] {
				minIdx = i
			}
		}
		v := queue[minIdx]
		queue = append(queue[:minIdx], queue[minIdx+1:]...)

		order = append(order, v)
		for target := range adj[v] {
			indegree[target]--
			if indegree[target] == 0 {
				queue = append(queue, target)
			}
		}
	}

	return order, len(order) == len(adj)
}
