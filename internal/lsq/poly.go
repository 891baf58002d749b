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

import "github.com/jhunkeler/wiimatch/internal/nd"

// EvalPoly evaluates a background polynomial at every pixel covered by the
// coordinate arrays. The coefficients are ordered by the row-major multi-index
// over (degree[0]+1, ..., degree[D-1]+1), the same ordering BuildEquations and
// SolveGrouped use, so a row of MatchLSQ's result can be passed in directly.
// The result is the correction to subtract from the corresponding image.
func EvalPoly(coef []float64, degree []int, coords []*nd.Array) (*nd.Array, error) {
	if len(degree) != len(coords) {
		return nil, validationErrorf("number of coordinate arrays must match the length of degree")
	}
	if len(coords) == 0 {
		return nil, validationErrorf("at least one coordinate array is required")
	}
	pshape := make([]int, len(degree))
	npoly := 1
	for d, deg := range degree {
		if deg < 0 {
			return nil, validationErrorf("polynomial degrees must be non-negative")
		}
		pshape[d] = deg + 1
		npoly *= deg + 1
	}
	if len(coef) != npoly {
		return nil, validationErrorf("got %d coefficients, want %d for degree %v", len(coef), npoly, degree)
	}

	out := nd.NewArray(coords[0].Shape)
	for pi := 0; pi < npoly; pi++ {
		c := coef[pi]
		if c == 0 {
			continue
		}
		p := unravel(pi, pshape)
		for k := range out.Data {
			w := c
			for d, e := range p {
				w *= intPow(coords[d].Data[k], e)
			}
			out.Data[k] += w
		}
	}
	return out, nil
}
