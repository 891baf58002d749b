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

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// float64 machine epsilon, used for the numerical rank threshold
const rankEps = 2.220446049250313e-16

// Solve computes the minimum-norm least-squares solution of a*c = b via the
// Moore-Penrose pseudoinverse. The coefficients are returned in the flat
// system ordering produced by BuildEquations.
//
// Singular and rank-deficient systems are expected, not an error: the matrix
// built by BuildEquations is singular by construction, and the pseudoinverse
// resolves the ambiguity by picking the solution of smallest Euclidean norm.
// Singular values below eps * max(rows, cols) * largest singular value are
// treated as zero. A system degenerate beyond that (an image with no valid
// pixels against every other image) yields small-magnitude or NaN-bearing
// coefficients rather than a detected failure.
func Solve(a *mat.Dense, b []float64) ([]float64, error) {
	rows, cols := a.Dims()
	if rows != len(b) {
		return nil, validationErrorf("free term length %d does not match the %d matrix rows", len(b), rows)
	}

	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDThin) {
		return nil, fmt.Errorf("lsq: SVD factorization of the %dx%d system matrix failed", rows, cols)
	}
	s := svd.Values(nil)
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	tol := rankEps * float64(max(rows, cols))
	if len(s) > 0 {
		tol *= s[0]
	}

	// x = V * diag(1/s) * U^T * b, zeroing reciprocals of negligible
	// singular values
	ub := make([]float64, len(s))
	for q := range s {
		if s[q] <= tol {
			continue
		}
		dot := 0.0
		for r := 0; r < rows; r++ {
			dot += u.At(r, q) * b[r]
		}
		ub[q] = dot / s[q]
	}

	x := make([]float64, cols)
	for c := 0; c < cols; c++ {
		dot := 0.0
		for q := range ub {
			dot += v.At(c, q) * ub[q]
		}
		x[c] = dot
	}
	return x, nil
}

// SolveGrouped solves like Solve and groups the coefficients by image: row l
// of the result holds the polynomial coefficients of image l, in the same
// row-major coefficient order used by BuildEquations.
func SolveGrouped(a *mat.Dense, b []float64, nimages int) ([][]float64, error) {
	flat, err := Solve(a, b)
	if err != nil {
		return nil, err
	}
	if nimages <= 0 || len(flat)%nimages != 0 {
		return nil, validationErrorf("cannot group %d coefficients by %d images", len(flat), nimages)
	}
	npoly := len(flat) / nimages
	grouped := make([][]float64, nimages)
	for l := range grouped {
		grouped[l] = flat[l*npoly : (l+1)*npoly]
	}
	return grouped, nil
}
