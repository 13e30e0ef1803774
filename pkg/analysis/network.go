// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package analysis

import (
	"sort"

	"github.com/kraklabs/rie/pkg/records"
)

const (
	pagerankDamping = 0.85
	pagerankIters   = 100
	pagerankTol     = 1e-6
)

// undirected adjacency built from a records.Graph. Node order is the
// sorted id list so every derived map and list is deterministic.
type adjacency struct {
	ids   []string
	index map[string]int
	edges [][]int // unique neighbor lists
	m     int     // undirected edge count
}

func buildAdjacency(g *records.Graph) *adjacency {
	index := make(map[string]int)
	var ids []string
	add := func(id string) {
		if id == "" {
			return
		}
		if _, ok := index[id]; !ok {
			index[id] = 0 // placeholder, reassigned after sort
			ids = append(ids, id)
		}
	}
	for _, n := range g.Nodes {
		add(n.ID)
	}
	for _, e := range g.Edges {
		add(e.Source)
		add(e.Target)
	}
	sort.Strings(ids)
	for i, id := range ids {
		index[id] = i
	}

	neighborSets := make([]map[int]bool, len(ids))
	for i := range neighborSets {
		neighborSets[i] = make(map[int]bool)
	}
	for _, e := range g.Edges {
		if e.Source == "" || e.Target == "" || e.Source == e.Target {
			continue
		}
		a, b := index[e.Source], index[e.Target]
		neighborSets[a][b] = true
		neighborSets[b][a] = true
	}

	a := &adjacency{ids: ids, index: index, edges: make([][]int, len(ids))}
	for i, set := range neighborSets {
		for j := range set {
			a.edges[i] = append(a.edges[i], j)
		}
		sort.Ints(a.edges[i])
		a.m += len(a.edges[i])
	}
	a.m /= 2
	return a
}

// AnalyzeNetwork computes centrality measures and communities for the
// entity relationship graph.
func AnalyzeNetwork(g *records.Graph) map[string]any {
	if g == nil {
		return errResult("Empty graph")
	}
	adj := buildAdjacency(g)
	if len(adj.ids) == 0 {
		return errResult("Empty graph")
	}

	communities := greedyModularity(adj)

	return map[string]any{
		"n_nodes":                len(adj.ids),
		"n_edges":                adj.m,
		"pagerank":               pagerank(adj),
		"betweenness_centrality": betweenness(adj),
		"degree_centrality":      degreeCentrality(adj),
		"communities":            communities,
		"n_communities":          len(communities),
	}
}

func pagerank(adj *adjacency) map[string]float64 {
	n := len(adj.ids)
	rank := make([]float64, n)
	for i := range rank {
		rank[i] = 1.0 / float64(n)
	}

	for iter := 0; iter < pagerankIters; iter++ {
		next := make([]float64, n)
		base := (1 - pagerankDamping) / float64(n)

		// Dangling nodes redistribute uniformly.
		var dangling float64
		for i := range rank {
			if len(adj.edges[i]) == 0 {
				dangling += rank[i]
			}
		}
		for i := range next {
			next[i] = base + pagerankDamping*dangling/float64(n)
		}
		for i := range rank {
			deg := len(adj.edges[i])
			if deg == 0 {
				continue
			}
			share := pagerankDamping * rank[i] / float64(deg)
			for _, j := range adj.edges[i] {
				next[j] += share
			}
		}

		var delta float64
		for i := range rank {
			delta += abs(next[i] - rank[i])
		}
		rank = next
		if delta < pagerankTol {
			break
		}
	}

	out := make(map[string]float64, n)
	for i, id := range adj.ids {
		out[id] = rank[i]
	}
	return out
}

// betweenness implements Brandes' algorithm with the pair
// normalization used for undirected graphs.
func betweenness(adj *adjacency) map[string]float64 {
	n := len(adj.ids)
	scores := make([]float64, n)

	for s := 0; s < n; s++ {
		var stack []int
		preds := make([][]int, n)
		sigma := make([]float64, n)
		distTo := make([]int, n)
		for i := range distTo {
			distTo[i] = -1
		}
		sigma[s] = 1
		distTo[s] = 0

		queue := []int{s}
		for len(queue) > 0 {
			v := queue[0]
			queue = queue[1:]
			stack = append(stack, v)
			for _, w := range adj.edges[v] {
				if distTo[w] < 0 {
					distTo[w] = distTo[v] + 1
					queue = append(queue, w)
				}
				if distTo[w] == distTo[v]+1 {
					sigma[w] += sigma[v]
					preds[w] = append(preds[w], v)
				}
			}
		}

		delta := make([]float64, n)
		for i := len(stack) - 1; i >= 0; i-- {
			w := stack[i]
			for _, v := range preds[w] {
				delta[v] += sigma[v] / sigma[w] * (1 + delta[w])
			}
			if w != s {
				scores[w] += delta[w]
			}
		}
	}

	// Undirected: halve, then scale to [0, 1].
	scale := 1.0
	if n > 2 {
		scale = 1.0 / (float64(n-1) * float64(n-2))
	}
	out := make(map[string]float64, n)
	for i, id := range adj.ids {
		out[id] = scores[i] * scale
	}
	return out
}

func degreeCentrality(adj *adjacency) map[string]float64 {
	n := len(adj.ids)
	out := make(map[string]float64, n)
	denom := float64(n - 1)
	for i, id := range adj.ids {
		if denom > 0 {
			out[id] = float64(len(adj.edges[i])) / denom
		} else {
			out[id] = 0
		}
	}
	return out
}

// greedyModularity merges communities while any pairwise merge
// improves modularity, then returns them largest-first.
func greedyModularity(adj *adjacency) [][]string {
	n := len(adj.ids)
	if adj.m == 0 {
		// Every node is its own community.
		out := make([][]string, n)
		for i, id := range adj.ids {
			out[i] = []string{id}
		}
		return out
	}

	community := make([]int, n)
	for i := range community {
		community[i] = i
	}

	degree := make([]float64, n)
	for i := range adj.edges {
		degree[i] = float64(len(adj.edges[i]))
	}
	m2 := 2 * float64(adj.m)

	for {
		type merge struct {
			a, b int
			gain float64
		}
		best := merge{gain: 0}

		comms := activeCommunities(community)
		for ai := 0; ai < len(comms); ai++ {
			for bi := ai + 1; bi < len(comms); bi++ {
				a, b := comms[ai], comms[bi]
				var eAB, degA, degB float64
				for i := 0; i < n; i++ {
					switch community[i] {
					case a:
						degA += degree[i]
						for _, j := range adj.edges[i] {
							if community[j] == b {
								eAB++
							}
						}
					case b:
						degB += degree[i]
					}
				}
				// Modularity gain of merging a and b:
				// e_ab/m - deg_a*deg_b / (2 m^2).
				g := eAB/float64(adj.m) - degA*degB/(m2*m2)*2
				if g > best.gain {
					best = merge{a: a, b: b, gain: g}
				}
			}
		}

		if best.gain <= 0 {
			break
		}
		for i := range community {
			if community[i] == best.b {
				community[i] = best.a
			}
		}
	}

	groups := make(map[int][]string)
	for i, c := range community {
		groups[c] = append(groups[c], adj.ids[i])
	}
	out := make([][]string, 0, len(groups))
	for _, members := range groups {
		sort.Strings(members)
		out = append(out, members)
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i]) != len(out[j]) {
			return len(out[i]) > len(out[j])
		}
		return out[i][0] < out[j][0]
	})
	return out
}

func activeCommunities(community []int) []int {
	seen := make(map[int]bool)
	var out []int
	for _, c := range community {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	sort.Ints(out)
	return out
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
