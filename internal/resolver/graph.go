// SPDX-License-Identifier: AGPL-3.0-or-later

package resolver

import "github.com/campustrace/resolve/internal/models"

// similarityGraph is a small, sparse undirected graph: adjacency lists
// keyed by record_id, never by pointer, per Design Notes section 9.
type similarityGraph struct {
	adjacency map[string]map[string]float64
}

func newSimilarityGraph() *similarityGraph {
	return &similarityGraph{adjacency: make(map[string]map[string]float64)}
}

func (g *similarityGraph) addNode(id string) {
	if _, ok := g.adjacency[id]; !ok {
		g.adjacency[id] = make(map[string]float64)
	}
}

func (g *similarityGraph) addEdge(a, b string, weight float64) {
	g.addNode(a)
	g.addNode(b)
	g.adjacency[a][b] = weight
	g.adjacency[b][a] = weight
}

// connectedComponents returns every connected component as a slice of
// record IDs, found with a plain BFS — the graph is small enough
// (thousands of nodes) that no union-find bookkeeping is warranted.
func (g *similarityGraph) connectedComponents() [][]string {
	visited := make(map[string]bool, len(g.adjacency))
	var components [][]string

	for id := range g.adjacency {
		if visited[id] {
			continue
		}
		var component []string
		queue := []string{id}
		visited[id] = true
		for len(queue) > 0 {
			node := queue[0]
			queue = queue[1:]
			component = append(component, node)
			for neighbor := range g.adjacency[node] {
				if !visited[neighbor] {
					visited[neighbor] = true
					queue = append(queue, neighbor)
				}
			}
		}
		components = append(components, component)
	}
	return components
}

// meanEdgeWeight returns the mean weight of all edges strictly inside
// the given node set (each undirected edge counted once).
func (g *similarityGraph) meanEdgeWeight(nodes []string) float64 {
	inSet := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		inSet[n] = true
	}

	var sum float64
	var count int
	seen := make(map[string]bool)
	for _, n := range nodes {
		for neighbor, weight := range g.adjacency[n] {
			if !inSet[neighbor] {
				continue
			}
			key := pairKey(n, neighbor)
			if seen[key] {
				continue
			}
			seen[key] = true
			sum += weight
			count++
		}
	}
	if count == 0 {
		return 1.0 // singleton component
	}
	return sum / float64(count)
}

// edgeEvidence indexes every match by its unordered record-pair key;
// contractCluster keeps the entries whose two ends both lie inside the
// component it is contracting into a ResolvedEntity.
func edgeEvidence(matches []models.EntityMatch) map[string]models.EntityMatch {
	byPair := make(map[string]models.EntityMatch, len(matches))
	for _, m := range matches {
		byPair[pairKey(m.SourceID, m.TargetID)] = m
	}
	return byPair
}
