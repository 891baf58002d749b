// Copyright (C) 2026 The wiimatch authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package lsq

// The flat index of the linear system is a row-major unraveling over the grid
// (nimages, degree[0]+1, ..., degree[D-1]+1): image-major, then coefficient
// multi-index with the last dimension varying most quickly. The same ordering
// is used for rows, columns, and the solution vector, and the solver's
// grouping of coefficients by image depends on it.

// numPolyCoeffs returns the number of polynomial coefficients per image,
// the product of degree[d]+1 over all dimensions.
func numPolyCoeffs(degree []int) int {
	n := 1
	for _, d := range degree {
		n *= d + 1
	}
	return n
}

// gridShape returns the unraveling grid (nimages, degree[0]+1, ...).
func gridShape(nimages int, degree []int) []int {
	g := make([]int, len(degree)+1)
	g[0] = nimages
	for d, deg := range degree {
		g[d+1] = deg + 1
	}
	return g
}

// unravel decomposes a flat row-major index over the given grid shape.
func unravel(i int, shape []int) []int {
	idx := make([]int, len(shape))
	for d := len(shape) - 1; d >= 0; d-- {
		idx[d] = i % shape[d]
		i /= shape[d]
	}
	return idx
}

// ravel is the inverse of unravel.
func ravel(idx, shape []int) int {
	i := 0
	for d, n := range shape {
		i = i*n + idx[d]
	}
	return i
}
