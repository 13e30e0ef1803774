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
	"fmt"
	"math"
	"math/rand"
	"sort"
)

const (
	forestTrees    = 100
	forestMinSplit = 2
)

type treeNode struct {
	left, right *treeNode
	feature     int
	threshold   float64
	counts      map[int]int // class counts at a leaf
}

// RandomForest trains a bagged ensemble of gini decision trees on
// (x, labels) and reports training predictions, class probabilities,
// per-feature importance, and training accuracy. Needs at least two
// distinct classes.
func RandomForest(x [][]float64, labels []int) map[string]any {
	if len(x) == 0 {
		return errResult("no features")
	}
	classes := classSet(labels)
	if len(classes) < 2 {
		return errResult("Need at least 2 classes for classification")
	}

	rng := rand.New(rand.NewSource(randomSeed))
	nFeatures := len(x[0])
	mtry := int(math.Sqrt(float64(nFeatures)))
	if mtry < 1 {
		mtry = 1
	}

	importance := make([]float64, nFeatures)
	trees := make([]*treeNode, forestTrees)
	for t := range trees {
		// Bootstrap sample.
		idx := make([]int, len(x))
		for i := range idx {
			idx[i] = rng.Intn(len(x))
		}
		trees[t] = buildTree(x, labels, idx, mtry, rng, importance)
	}

	predictions := make([]int, len(x))
	probabilities := make([][]float64, len(x))
	for i, p := range x {
		votes := make(map[int]float64)
		for _, tree := range trees {
			counts := treePredict(tree, p)
			total := 0
			for _, c := range counts {
				total += c
			}
			for class, c := range counts {
				votes[class] += float64(c) / float64(total)
			}
		}
		probs := make([]float64, len(classes))
		var sum float64
		for j, class := range classes {
			probs[j] = votes[class]
			sum += votes[class]
		}
		for j := range probs {
			probs[j] /= sum
		}
		probabilities[i] = probs
		predictions[i] = classes[argmax(probs)]
	}

	correct := 0
	for i := range labels {
		if predictions[i] == labels[i] {
			correct++
		}
	}

	var totalImportance float64
	for _, v := range importance {
		totalImportance += v
	}
	featureImportance := make(map[string]float64, nFeatures)
	for i, v := range importance {
		if totalImportance > 0 {
			v /= totalImportance
		}
		featureImportance[fmt.Sprintf("feature_%d", i)] = v
	}

	return map[string]any{
		"predictions":        predictions,
		"probabilities":      probabilities,
		"feature_importance": featureImportance,
		"accuracy":           float64(correct) / float64(len(labels)),
	}
}

func classSet(labels []int) []int {
	seen := make(map[int]bool)
	var out []int
	for _, l := range labels {
		if !seen[l] {
			seen[l] = true
			out = append(out, l)
		}
	}
	sort.Ints(out)
	return out
}

func buildTree(x [][]float64, labels, idx []int, mtry int, rng *rand.Rand, importance []float64) *treeNode {
	counts := make(map[int]int)
	for _, i := range idx {
		counts[labels[i]]++
	}
	if len(counts) == 1 || len(idx) < forestMinSplit {
		return &treeNode{counts: counts}
	}

	parentGini := gini(counts, len(idx))

	bestFeature, bestThreshold := -1, 0.0
	bestGain := 0.0
	var bestLeft, bestRight []int

	for _, feature := range rng.Perm(len(x[0]))[:mtry] {
		values := make([]float64, 0, len(idx))
		for _, i := range idx {
			values = append(values, x[i][feature])
		}
		sort.Float64s(values)

		for v := 0; v < len(values)-1; v++ {
			if values[v] == values[v+1] {
				continue
			}
			threshold := (values[v] + values[v+1]) / 2

			leftCounts := make(map[int]int)
			rightCounts := make(map[int]int)
			var left, right []int
			for _, i := range idx {
				if x[i][feature] <= threshold {
					left = append(left, i)
					leftCounts[labels[i]]++
				} else {
					right = append(right, i)
					rightCounts[labels[i]]++
				}
			}
			if len(left) == 0 || len(right) == 0 {
				continue
			}

			weighted := (float64(len(left))*gini(leftCounts, len(left)) +
				float64(len(right))*gini(rightCounts, len(right))) / float64(len(idx))
			gain := parentGini - weighted
			if gain > bestGain {
				bestGain = gain
				bestFeature = feature
				bestThreshold = threshold
				bestLeft, bestRight = left, right
			}
		}
	}

	if bestFeature < 0 {
		return &treeNode{counts: counts}
	}
	importance[bestFeature] += bestGain * float64(len(idx))

	return &treeNode{
		feature:   bestFeature,
		threshold: bestThreshold,
		left:      buildTree(x, labels, bestLeft, mtry, rng, importance),
		right:     buildTree(x, labels, bestRight, mtry, rng, importance),
	}
}

func gini(counts map[int]int, total int) float64 {
	g := 1.0
	for _, c := range counts {
		p := float64(c) / float64(total)
		g -= p * p
	}
	return g
}

func treePredict(node *treeNode, p []float64) map[int]int {
	for node.counts == nil {
		if p[node.feature] <= node.threshold {
			node = node.left
		} else {
			node = node.right
		}
	}
	return node.counts
}
