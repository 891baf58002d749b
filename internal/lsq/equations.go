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

// Package lsq builds and solves the system of linear equations whose solution
// is a set of per-image (multivariate) polynomial background corrections that
// match the intensities of a stack of co-registered images in the least
// squares sense.
package lsq

import (
	"github.com/jhunkeler/wiimatch/internal/nd"
	"gonum.org/v1/gonum/mat"
)

// BuildEquations builds the system of normal equations a*c = b whose solution
// c holds, for each input image, the coefficients of a polynomial background
// that minimizes the pairwise uncertainty-weighted sum of squared intensity
// differences over shared valid pixels.
//
// All images, masks, sigmas and coordinate arrays must share one shape;
// degree holds one non-negative maximum exponent per image dimension, and
// coords one coordinate array per dimension (see nd.CoordArrays). Rows and
// columns of a are ordered image-major, then by the row-major coefficient
// multi-index over degree.
//
// Pixels with non-positive sigma are excluded from an image's mask, unless
// that would invalidate every pixel of that image, in which case its mask is
// used as given. The exclusion is applied to internal copies; caller masks
// are never modified.
//
// The returned matrix is singular by construction: adding one and the same
// constant polynomial to every image's background leaves the objective
// unchanged, so only relative backgrounds are determined. Use Solve or
// SolveGrouped, which handle the rank deficiency.
func BuildEquations(images []*nd.Array, masks []*nd.Bitmask, sigmas []*nd.Array, degree []int, coords []*nd.Array) (*mat.Dense, []float64, error) {
	nimages := len(images)
	if nimages == 0 {
		return nil, nil, validationErrorf("at least one input image is required")
	}
	if nimages != len(sigmas) {
		return nil, nil, validationErrorf("length of sigmas list must match the length of the image list")
	}
	if nimages != len(masks) {
		return nil, nil, validationErrorf("length of masks list must match the length of the image list")
	}

	npoly := numPolyCoeffs(degree)
	zeroDeg := npoly == 1
	if !zeroDeg && len(coords) != len(degree) {
		return nil, nil, validationErrorf("number of coordinate arrays must match the length of degree")
	}

	refined := refineMasks(masks, sigmas)

	sigma2 := make([][]float64, nimages)
	for l, s := range sigmas {
		s2 := make([]float64, len(s.Data))
		for k, v := range s.Data {
			s2[k] = v * v
		}
		sigma2[l] = s2
	}

	size := nimages * npoly
	gshape := gridShape(nimages, degree)

	a := mat.NewDense(size, size, nil)
	b := make([]float64, size)

	for i := 0; i < size; i++ {
		// decompose the row (equation) index into image index and exponents
		lp := unravel(i, gshape)
		l, p := lp[0], lp[1:]

		cc, pe := coords, p
		if zeroDeg {
			cc, pe = nil, nil
		}

		for m := 0; m < nimages; m++ {
			if m == l {
				continue
			}
			b[i] += imagePixelSum(images[l].Data, images[m].Data, sigma2[l], sigma2[m],
				refined[l], refined[m], cc, pe)
		}

		for j := 0; j < size; j++ {
			// decompose the column (coefficient) index
			mp := unravel(j, gshape)
			m, pp := mp[0], mp[1:]
			if m == l { // diagonal blocks are derived below
				continue
			}
			ppe := pp
			if zeroDeg {
				ppe = nil
			}
			a.Set(i, j, -sigmaPixelSum(sigma2[l], sigma2[m], refined[l], refined[m], cc, pe, ppe))
		}
	}

	// diagonal blocks: a[(l,p),(l,pp)] = -sum over m!=l of a[(l,p),(m,pp)],
	// so every row sums to zero across image blocks for fixed pp. This is the
	// structural singularity that leaves only relative backgrounds determined.
	pshape := gshape[1:]
	idx := make([]int, len(gshape))
	for i := 0; i < size; i++ {
		lp := unravel(i, gshape)
		l := lp[0]

		for ppi := 0; ppi < npoly; ppi++ {
			pp := unravel(ppi, pshape)
			copy(idx[1:], pp)

			sum := 0.0
			for m := 0; m < nimages; m++ {
				if m == l {
					continue
				}
				idx[0] = m
				sum -= a.At(i, ravel(idx, gshape))
			}
			idx[0] = l
			a.Set(i, ravel(idx, gshape), sum)
		}
	}

	return a, b, nil
}

// refineMasks excludes non-positive-sigma pixels from each image's mask,
// keeping the mask as given when the exclusion would leave no valid pixels.
// Masks that need refinement are copied; the caller's data stays intact.
func refineMasks(masks []*nd.Bitmask, sigmas []*nd.Array) [][]bool {
	refined := make([][]bool, len(masks))
	for l, m := range masks {
		refined[l] = m.Data

		s := sigmas[l].Data
		nonPos := false
		for _, v := range s {
			if v <= 0 {
				nonPos = true
				break
			}
		}
		if !nonPos {
			continue
		}

		rm := make([]bool, len(m.Data))
		any := false
		for k, ok := range m.Data {
			rm[k] = ok && s[k] > 0
			any = any || rm[k]
		}
		if any {
			refined[l] = rm
		}
	}
	return refined
}
