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
)

const (
	kmeansRestarts = 10
	kmeansMaxIter  = 100
	randomSeed     = 42
)

// KMeans clusters X into k groups with k-means++ seeding and the best
// of several restarts. Returns the sub-result map with labels,
// centers, silhouette, and inertia, or {error} when the input cannot
// support k clusters.
func KMeans(x [][]float64, k int) map[string]any {
	if len(x) == 0 {
		return errResult("no features")
	}
	if k <= 0 {
		opt := FindOptimalK(x, min(10, len(x)))
		if errMsg, ok := opt["error"]; ok {
			return errResult(errMsg.(string))
		}
		k = opt["optimal_k_silhouette"].(int)
	}
	if k > len(x) {
		k = len(x)
	}

	labels, centers, inertia := kmeansFit(x, k, rand.New(rand.NewSource(randomSeed)))

	silhouette := 0.0
	if distinctLabels(labels) > 1 {
		silhouette = Silhouette(x, labels)
	}

	return map[string]any{
		"n_clusters":       k,
		"cluster_labels":   labels,
		"cluster_centers":  centers,
		"silhouette_score": silhouette,
		"inertia":          inertia,
	}
}

// FindOptimalK runs k-means over k in [2, min(maxK+1, n)) and reports
// the silhouette-optimal k together with the elbow k from the second
// difference of inertias.
func FindOptimalK(x [][]float64, maxK int) map[string]any {
	var kRange []int
	for k := 2; k < min(maxK+1, len(x)); k++ {
		kRange = append(kRange, k)
	}
	if len(kRange) == 0 {
		return errResult("need at least 3 samples for cluster selection")
	}

	rng := rand.New(rand.NewSource(randomSeed))
	inertias := make([]float64, 0, len(kRange))
	silhouettes := make([]float64, 0, len(kRange))
	for _, k := range kRange {
		labels, _, inertia := kmeansFit(x, k, rng)
		inertias = append(inertias, inertia)
		silhouettes = append(silhouettes, Silhouette(x, labels))
	}

	optimalElbow := kRange[0]
	if len(inertias) > 2 {
		diffs := diff(inertias)
		second := diff(diffs)
		idx := argmax(second) + 2
		if idx < len(kRange) {
			optimalElbow = kRange[idx]
		} else {
			optimalElbow = kRange[len(kRange)-1]
		}
	}

	return map[string]any{
		"optimal_k_elbow":      optimalElbow,
		"optimal_k_silhouette": kRange[argmax(silhouettes)],
		"inertias":             inertias,
		"silhouette_scores":    silhouettes,
		"k_range":              kRange,
	}
}

// kmeansFit runs several restarts and keeps the assignment with the
// lowest inertia.
func kmeansFit(x [][]float64, k int, rng *rand.Rand) (labels []int, centers [][]float64, inertia float64) {
	inertia = math.Inf(1)
	for r := 0; r < kmeansRestarts; r++ {
		l, c, in := kmeansOnce(x, k, rng)
		if in < inertia {
			labels, centers, inertia = l, c, in
		}
	}
	return labels, centers, inertia
}

func kmeansOnce(x [][]float64, k int, rng *rand.Rand) ([]int, [][]float64, float64) {
	centers := seedPlusPlus(x, k, rng)
	labels := make([]int, len(x))

	for iter := 0; iter < kmeansMaxIter; iter++ {
		changed := false
		for i, p := range x {
			best, bestDist := 0, math.Inf(1)
			for c := range centers {
				if d := sqDist(p, centers[c]); d < bestDist {
					best, bestDist = c, d
				}
			}
			if labels[i] != best {
				labels[i] = best
				changed = true
			}
		}

		counts := make([]int, k)
		next := make([][]float64, k)
		for c := range next {
			next[c] = make([]float64, len(x[0]))
		}
		for i, p := range x {
			counts[labels[i]]++
			for j, v := range p {
				next[labels[i]][j] += v
			}
		}
		for c := range next {
			if counts[c] == 0 {
				// Empty cluster keeps its previous center.
				copy(next[c], centers[c])
				continue
			}
			for j := range next[c] {
				next[c][j] /= float64(counts[c])
			}
		}
		centers = next

		if !changed {
			break
		}
	}

	var inertia float64
	for i, p := range x {
		inertia += sqDist(p, centers[labels[i]])
	}
	return labels, centers, inertia
}

// seedPlusPlus picks initial centers with k-means++ weighting.
func seedPlusPlus(x [][]float64, k int, rng *rand.Rand) [][]float64 {
	centers := make([][]float64, 0, k)
	centers = append(centers, append([]float64(nil), x[rng.Intn(len(x))]...))

	for len(centers) < k {
		weights := make([]float64, len(x))
		var total float64
		for i, p := range x {
			d := math.Inf(1)
			for _, c := range centers {
				if sd := sqDist(p, c); sd < d {
					d = sd
				}
			}
			weights[i] = d
			total += d
		}
		if total == 0 {
			centers = append(centers, append([]float64(nil), x[rng.Intn(len(x))]...))
			continue
		}
		target := rng.Float64() * total
		var cum float64
		pick := len(x) - 1
		for i, w := range weights {
			cum += w
			if cum >= target {
				pick = i
				break
			}
		}
		centers = append(centers, append([]float64(nil), x[pick]...))
	}
	return centers
}

// Silhouette computes the mean silhouette coefficient over all
// samples. Samples in singleton clusters score zero.
func Silhouette(x [][]float64, labels []int) float64 {
	n := len(x)
	if n < 2 {
		return 0
	}

	clusters := make(map[int][]int)
	for i, l := range labels {
		clusters[l] = append(clusters[l], i)
	}
	if len(clusters) < 2 {
		return 0
	}

	var total float64
	for i := range x {
		own := clusters[labels[i]]
		if len(own) < 2 {
			continue
		}

		var a float64
		for _, j := range own {
			if j != i {
				a += dist(x[i], x[j])
			}
		}
		a /= float64(len(own) - 1)

		b := math.Inf(1)
		for l, members := range clusters {
			if l == labels[i] {
				continue
			}
			var d float64
			for _, j := range members {
				d += dist(x[i], x[j])
			}
			d /= float64(len(members))
			if d < b {
				b = d
			}
		}

		if m := math.Max(a, b); m > 0 {
			total += (b - a) / m
		}
	}
	return total / float64(n)
}

func sqDist(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

func dist(a, b []float64) float64 {
	return math.Sqrt(sqDist(a, b))
}

func distinctLabels(labels []int) int {
	seen := make(map[int]bool)
	for _, l := range labels {
		seen[l] = true
	}
	return len(seen)
}

func diff(xs []float64) []float64 {
	out := make([]float64, 0, len(xs)-1)
	for i := 1; i < len(xs); i++ {
		out = append(out, xs[i]-xs[i-1])
	}
	return out
}

func argmax(xs []float64) int {
	best := 0
	for i, v := range xs {
		if v > xs[best] {
			best = i
		}
	}
	return best
}

func errResult(msg string) map[string]any {
	return map[string]any{"error": msg}
}
