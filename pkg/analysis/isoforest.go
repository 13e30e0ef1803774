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
	"math"
	"math/rand"
	"sort"
)

const (
	isoTrees     = 100
	isoSubsample = 256
)

type isoNode struct {
	left, right *isoNode
	feature     int
	split       float64
	size        int
}

// IsolationForest scores each sample by mean isolation depth over an
// ensemble of random trees. Scores mirror the convention of the usual
// implementations: more negative means more anomalous, bounded in
// [-1, 0). The contamination fraction with the lowest scores is
// labeled -1.
func IsolationForest(x [][]float64, contamination float64) map[string]any {
	n := len(x)
	if n == 0 {
		return errResult("no features")
	}

	rng := rand.New(rand.NewSource(randomSeed))
	sample := min(isoSubsample, n)
	trees := make([]*isoNode, isoTrees)
	maxDepth := int(math.Ceil(math.Log2(float64(sample)))) + 1
	for t := range trees {
		idx := rng.Perm(n)[:sample]
		trees[t] = buildIsoTree(x, idx, 0, maxDepth, rng)
	}

	c := averagePathLength(sample)
	scores := make([]float64, n)
	for i, p := range x {
		var depth float64
		for _, tree := range trees {
			depth += isoPathLength(tree, p, 0)
		}
		depth /= float64(len(trees))
		scores[i] = -math.Pow(2, -depth/c)
	}

	threshold := quantile(scores, contamination)
	labels := make([]int, n)
	anomalies := []int{}
	for i, s := range scores {
		if s <= threshold {
			labels[i] = -1
			anomalies = append(anomalies, i)
		} else {
			labels[i] = 1
		}
	}

	return map[string]any{
		"anomaly_scores":     scores,
		"anomaly_labels":     labels,
		"anomalies_detected": anomalies,
		"n_anomalies":        len(anomalies),
	}
}

func buildIsoTree(x [][]float64, idx []int, depth, maxDepth int, rng *rand.Rand) *isoNode {
	if len(idx) <= 1 || depth >= maxDepth {
		return &isoNode{size: len(idx)}
	}

	features := len(x[0])
	feature := rng.Intn(features)
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, i := range idx {
		v := x[i][feature]
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if lo == hi {
		return &isoNode{size: len(idx)}
	}
	split := lo + rng.Float64()*(hi-lo)

	var left, right []int
	for _, i := range idx {
		if x[i][feature] < split {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	return &isoNode{
		feature: feature,
		split:   split,
		size:    len(idx),
		left:    buildIsoTree(x, left, depth+1, maxDepth, rng),
		right:   buildIsoTree(x, right, depth+1, maxDepth, rng),
	}
}

func isoPathLength(node *isoNode, p []float64, depth int) float64 {
	if node.left == nil {
		return float64(depth) + averagePathLength(node.size)
	}
	if p[node.feature] < node.split {
		return isoPathLength(node.left, p, depth+1)
	}
	return isoPathLength(node.right, p, depth+1)
}

// averagePathLength is the expected unsuccessful-search depth of a
// binary search tree of the given size.
func averagePathLength(n int) float64 {
	if n <= 1 {
		return 0
	}
	h := math.Log(float64(n-1)) + 0.5772156649 // Euler–Mascheroni
	return 2*h - 2*float64(n-1)/float64(n)
}

// quantile returns the value below which the given fraction of the
// sorted input falls.
func quantile(xs []float64, q float64) float64 {
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	idx := int(q * float64(len(sorted)))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// LOF computes the negative local outlier factor per sample. Samples
// whose factor exceeds 1.5 are labeled -1, matching the usual offset.
func LOF(x [][]float64, nNeighbors int) map[string]any {
	n := len(x)
	if n == 0 {
		return errResult("no features")
	}
	if n < 2 {
		return errResult("need at least 2 samples for LOF")
	}
	if nNeighbors > n-1 {
		nNeighbors = n - 1
	}
	if nNeighbors < 1 {
		nNeighbors = 1
	}

	// k nearest neighbors and k-distance per sample.
	type neighbor struct {
		idx int
		d   float64
	}
	knn := make([][]neighbor, n)
	kdist := make([]float64, n)
	for i := range x {
		all := make([]neighbor, 0, n-1)
		for j := range x {
			if j != i {
				all = append(all, neighbor{j, dist(x[i], x[j])})
			}
		}
		sort.Slice(all, func(a, b int) bool { return all[a].d < all[b].d })
		knn[i] = all[:nNeighbors]
		kdist[i] = all[nNeighbors-1].d
	}

	// Local reachability density.
	lrd := make([]float64, n)
	for i := range x {
		var reach float64
		for _, nb := range knn[i] {
			reach += math.Max(kdist[nb.idx], nb.d)
		}
		reach /= float64(nNeighbors)
		// Duplicate points give zero reachability; clamp to keep the
		// density finite.
		lrd[i] = 1 / math.Max(reach, 1e-10)
	}

	scores := make([]float64, n)
	labels := make([]int, n)
	anomalies := []int{}
	for i := range x {
		var ratio float64
		for _, nb := range knn[i] {
			ratio += lrd[nb.idx] / lrd[i]
		}
		lof := ratio / float64(nNeighbors)
		scores[i] = -lof
		if lof > 1.5 {
			labels[i] = -1
			anomalies = append(anomalies, i)
		} else {
			labels[i] = 1
		}
	}

	return map[string]any{
		"lof_scores":         scores,
		"anomaly_labels":     labels,
		"anomalies_detected": anomalies,
		"n_anomalies":        len(anomalies),
	}
}
