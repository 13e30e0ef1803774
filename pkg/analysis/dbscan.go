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

// DBSCAN density-clusters X. Label -1 marks noise. Defaults match the
/// engine: eps 0.5, minSamples 2.
func DBSCAN(x [][]float64, eps float64, minSamples int) map[string]any {
	if len(x) == 0 {
		return errResult("no features")
	}

	const (
		unvisited = -2
		noise     = -1
	)

	labels := make([]int, len(x))
	for i := range labels {
		labels[i] = unvisited
	}

	neighbors := func(i int) []int {
		var out []int
		for j := range x {
			if dist(x[i], x[j]) <= eps {
				out = append(out, j)
			}
		}
		return out
	}

	cluster := 0
	for i := range x {
		if labels[i] != unvisited {
			continue
		}
		seeds := neighbors(i)
		if len(seeds) < minSamples {
			labels[i] = noise
			continue
		}

		labels[i] = cluster
		for pos := 0; pos < len(seeds); pos++ {
			j := seeds[pos]
			if labels[j] == noise {
				labels[j] = cluster
			}
			if labels[j] != unvisited {
				continue
			}
			labels[j] = cluster
			next := neighbors(j)
			if len(next) >= minSamples {
				seeds = append(seeds, next...)
			}
		}
		cluster++
	}

	var outliers []int
	nNoise := 0
	for i, l := range labels {
		if l == noise {
			nNoise++
			outliers = append(outliers, i)
		}
	}
	if outliers == nil {
		outliers = []int{}
	}

	return map[string]any{
		"n_clusters":     cluster,
		"n_noise":        nNoise,
		"cluster_labels": labels,
		"outliers":       outliers,
	}
}

// Hierarchical runs agglomerative clustering with complete linkage
// down to nClusters groups (clamped to the sample count).
func Hierarchical(x [][]float64, nClusters int) map[string]any {
	if len(x) == 0 {
		return errResult("no features")
	}
	if nClusters > len(x) {
		nClusters = len(x)
	}
	if nClusters < 1 {
		nClusters = 1
	}

	// Start with singleton clusters and merge the closest pair until
	// the target count is reached.
	clusters := make([][]int, len(x))
	for i := range x {
		clusters[i] = []int{i}
	}

	linkage := func(a, b []int) float64 {
		var max float64
		for _, i := range a {
			for _, j := range b {
				if d := dist(x[i], x[j]); d > max {
					max = d
				}
			}
		}
		return max
	}

	for len(clusters) > nClusters {
		bestA, bestB := 0, 1
		bestD := linkage(clusters[0], clusters[1])
		for a := 0; a < len(clusters); a++ {
			for b := a + 1; b < len(clusters); b++ {
				if d := linkage(clusters[a], clusters[b]); d < bestD {
					bestA, bestB, bestD = a, b, d
				}
			}
		}
		clusters[bestA] = append(clusters[bestA], clusters[bestB]...)
		clusters = append(clusters[:bestB], clusters[bestB+1:]...)
	}

	labels := make([]int, len(x))
	for c, members := range clusters {
		for _, i := range members {
			labels[i] = c
		}
	}

	return map[string]any{
		"n_clusters":          len(clusters),
		"cluster_assignments": labels,
	}
}
