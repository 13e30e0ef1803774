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
	"sort"
)

const (
	jacobiMaxSweeps = 100
	jacobiTol       = 1e-12
)

// PCA projects X onto its top principal components. nComponents is
// clamped to min(F, n). Returns the transformed matrix, explained
// variance ratios, and their cumulative sum.
func PCA(x [][]float64, nComponents int) map[string]any {
	n := len(x)
	if n == 0 {
		return errResult("no features")
	}
	f := len(x[0])
	if nComponents > f {
		nComponents = f
	}
	if nComponents > n {
		nComponents = n
	}
	if nComponents < 1 {
		nComponents = 1
	}

	// Center the data.
	mean := make([]float64, f)
	for _, row := range x {
		for j, v := range row {
			mean[j] += v
		}
	}
	for j := range mean {
		mean[j] /= float64(n)
	}
	centered := make([][]float64, n)
	for i, row := range x {
		centered[i] = make([]float64, f)
		for j, v := range row {
			centered[i][j] = v - mean[j]
		}
	}

	// Covariance matrix.
	cov := make([][]float64, f)
	for i := range cov {
		cov[i] = make([]float64, f)
	}
	denom := float64(n - 1)
	if denom == 0 {
		denom = 1
	}
	for _, row := range centered {
		for a := 0; a < f; a++ {
			for b := a; b < f; b++ {
				cov[a][b] += row[a] * row[b] / denom
			}
		}
	}
	for a := 0; a < f; a++ {
		for b := 0; b < a; b++ {
			cov[a][b] = cov[b][a]
		}
	}

	eigenvalues, eigenvectors := jacobiEigen(cov)

	// Sort by descending eigenvalue.
	order := make([]int, f)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool {
		return eigenvalues[order[i]] > eigenvalues[order[j]]
	})

	var totalVar float64
	for _, v := range eigenvalues {
		if v > 0 {
			totalVar += v
		}
	}

	ratios := make([]float64, nComponents)
	cumulative := make([]float64, nComponents)
	var running float64
	for c := 0; c < nComponents; c++ {
		v := eigenvalues[order[c]]
		if v < 0 {
			v = 0
		}
		if totalVar > 0 {
			ratios[c] = v / totalVar
		}
		running += ratios[c]
		cumulative[c] = running
	}

	transformed := make([][]float64, n)
	for i, row := range centered {
		transformed[i] = make([]float64, nComponents)
		for c := 0; c < nComponents; c++ {
			var dot float64
			for j := 0; j < f; j++ {
				dot += row[j] * eigenvectors[j][order[c]]
			}
			transformed[i][c] = dot
		}
	}

	return map[string]any{
		"transformed_features":     transformed,
		"explained_variance_ratio": ratios,
		"cumulative_variance":      cumulative,
	}
}

// jacobiEigen diagonalizes a symmetric matrix by cyclic Jacobi
// rotations. Returns eigenvalues and the column-eigenvector matrix.
func jacobiEigen(a [][]float64) ([]float64, [][]float64) {
	f := len(a)

	// Work on a copy.
	m := make([][]float64, f)
	for i := range a {
		m[i] = append([]float64(nil), a[i]...)
	}
	v := make([][]float64, f)
	for i := range v {
		v[i] = make([]float64, f)
		v[i][i] = 1
	}

	for sweep := 0; sweep < jacobiMaxSweeps; sweep++ {
		var off float64
		for p := 0; p < f; p++ {
			for q := p + 1; q < f; q++ {
				off += m[p][q] * m[p][q]
			}
		}
		if off < jacobiTol {
			break
		}

		for p := 0; p < f; p++ {
			for q := p + 1; q < f; q++ {
				if math.Abs(m[p][q]) < jacobiTol {
					continue
				}
				theta := (m[q][q] - m[p][p]) / (2 * m[p][q])
				t := 1 / (math.Abs(theta) + math.Sqrt(theta*theta+1))
				if theta < 0 {
					t = -t
				}
				c := 1 / math.Sqrt(t*t+1)
				s := t * c

				for i := 0; i < f; i++ {
					mip, miq := m[i][p], m[i][q]
					m[i][p] = c*mip - s*miq
					m[i][q] = s*mip + c*miq
				}
				for i := 0; i < f; i++ {
					mpi, mqi := m[p][i], m[q][i]
					m[p][i] = c*mpi - s*mqi
					m[q][i] = s*mpi + c*mqi
				}
				for i := 0; i < f; i++ {
					vip, viq := v[i][p], v[i][q]
					v[i][p] = c*vip - s*viq
					v[i][q] = s*vip + c*viq
				}
			}
		}
	}

	eigenvalues := make([]float64, f)
	for i := range eigenvalues {
		eigenvalues[i] = m[i][i]
	}
	return eigenvalues, v
}
