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

// imagePixelSum computes the sum of
//
//	coord^p * (imageL - imageM) / (sigma2L + sigma2M)
//
// over pixels where both masks are true, coord^p meaning the product over
// dimensions of each coordinate array raised to the corresponding exponent
// in p. A nil coords replaces every coordinate factor with 1, for the
// constant-background fast path; p must then be nil as well. An empty
// combined mask contributes exactly zero.
//
// The slices are not checked for equal lengths beyond the masks driving the
// loop; the builder guarantees a common shape.
func imagePixelSum(imageL, imageM, sigma2L, sigma2M []float64, maskL, maskM []bool, coords []*nd.Array, p []int) float64 {
	sum := 0.0
	if coords == nil {
		if p != nil {
			panic("lsq: exponent list must be nil when coordinate arrays are nil")
		}
		for k, ml := range maskL {
			if ml && maskM[k] {
				sum += (imageL[k] - imageM[k]) / (sigma2L[k] + sigma2M[k])
			}
		}
		return sum
	}

	if len(coords) != len(p) {
		panic("lsq: exponent list length must match the number of coordinate arrays")
	}
	if len(coords) == 0 {
		panic("lsq: at least one coordinate array is required")
	}

	for k, ml := range maskL {
		if !ml || !maskM[k] {
			continue
		}
		w := intPow(coords[0].Data[k], p[0])
		for d := 1; d < len(coords); d++ {
			w *= intPow(coords[d].Data[k], p[d])
		}
		sum += w * (imageL[k] - imageM[k]) / (sigma2L[k] + sigma2M[k])
	}
	return sum
}

// sigmaPixelSum computes the sum of coord^(p+pp) / (sigma2L + sigma2M) over
// pixels where both masks are true, with the exponents of the two multi-indices
// added per dimension. Conventions are the same as for imagePixelSum.
func sigmaPixelSum(sigma2L, sigma2M []float64, maskL, maskM []bool, coords []*nd.Array, p, pp []int) float64 {
	sum := 0.0
	if coords == nil {
		if p != nil || pp != nil {
			panic("lsq: exponent lists must be nil when coordinate arrays are nil")
		}
		for k, ml := range maskL {
			if ml && maskM[k] {
				sum += 1.0 / (sigma2L[k] + sigma2M[k])
			}
		}
		return sum
	}

	if len(coords) != len(p) || len(p) != len(pp) {
		panic("lsq: exponent list lengths must match the number of coordinate arrays")
	}
	if len(coords) == 0 {
		panic("lsq: at least one coordinate array is required")
	}

	for k, ml := range maskL {
		if !ml || !maskM[k] {
			continue
		}
		w := intPow(coords[0].Data[k], p[0]+pp[0])
		for d := 1; d < len(coords); d++ {
			w *= intPow(coords[d].Data[k], p[d]+pp[d])
		}
		sum += w / (sigma2L[k] + sigma2M[k])
	}
	return sum
}

// intPow raises x to a small non-negative integer power.
func intPow(x float64, n int) float64 {
	r := 1.0
	for ; n > 0; n-- {
		r *= x
	}
	return r
}
