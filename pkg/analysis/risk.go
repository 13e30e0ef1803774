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

// RiskScores fuses the per-entity signals from anomaly detection,
// density clustering, classification, and network centrality into a
// single score in [0, 1]. Missing or degraded inputs simply contribute
// nothing.
func RiskScores(entityIDs []string, isolation, dbscan, classification, network map[string]any) map[string]float64 {
	scores := make(map[string]float64, len(entityIDs))

	anomalyScores, _ := isolation["anomaly_scores"].([]float64)
	noiseLabels, _ := dbscan["cluster_labels"].([]int)

	var probabilities [][]float64
	if rf, ok := classification["random_forest"].(map[string]any); ok {
		probabilities, _ = rf["probabilities"].([][]float64)
	}

	var pageranks map[string]float64
	if network != nil {
		pageranks, _ = network["pagerank"].(map[string]float64)
	}

	for i, id := range entityIDs {
		var score float64

		if i < len(anomalyScores) {
			s := anomalyScores[i]
			if s < -1 {
				s = -1
			} else if s > 1 {
				s = 1
			}
			score += (1 - s) / 2
		}
		if i < len(noiseLabels) && noiseLabels[i] == -1 {
			score += 0.3
		}
		if i < len(probabilities) && len(probabilities[i]) > 1 {
			maxProb := probabilities[i][0]
			for _, p := range probabilities[i][1:] {
				if p > maxProb {
					maxProb = p
				}
			}
			score += maxProb
		}
		if pr, ok := pageranks[id]; ok {
			boost := pr * 10
			if boost > 0.2 {
				boost = 0.2
			}
			score += boost
		}

		if score > 1 {
			score = 1
		}
		scores[id] = score
	}
	return scores
}
