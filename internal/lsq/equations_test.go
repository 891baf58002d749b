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
	"errors"
	"math"
	"testing"

	"github.com/jhunkeler/wiimatch/internal/nd"
)

// rampStack builds the reference two-image stack: a zero image and a constant
// 1.32 plus linear ramps 0.15*i + 0.62*j + 0.74*k over a 5x5x4 grid.
func rampStack() (images []*nd.Array, masks []*nd.Bitmask, sigmas []*nd.Array, shape []int) {
	shape = []int{5, 5, 4}
	im1 := nd.NewArray(shape)
	im2 := nd.NewArray(shape)
	k := 0
	for i := 0; i < 5; i++ {
		for j := 0; j < 5; j++ {
			for l := 0; l < 4; l++ {
				im2.Data[k] = 1.32 + 0.15*float64(i) + 0.62*float64(j) + 0.74*float64(l)
				k++
			}
		}
	}
	images = []*nd.Array{im1, im2}
	masks = []*nd.Bitmask{nd.FullBitmask(shape), nd.FullBitmask(shape)}
	sigmas = []*nd.Array{nd.Full(shape, 1), nd.Full(shape, 1)}
	return images, masks, sigmas, shape
}

func zeroCenteredCoords(t *testing.T, shape []int) []*nd.Array {
	t.Helper()
	center := make([]float64, len(shape))
	coords, err := nd.CoordArrays(shape, center, nil)
	if err != nil {
		t.Fatalf("CoordArrays: %s", err)
	}
	return coords
}

// The full normal-equations system for the reference ramp stack with
// degree (1,1,1) and center (0,0,0).
var refA = [16][16]float64{
	{50, 75, 100, 150, 100, 150, 200, 300, -50, -75, -100, -150, -100, -150, -200, -300},
	{75, 175, 150, 350, 150, 350, 300, 700, -75, -175, -150, -350, -150, -350, -300, -700},
	{100, 150, 300, 450, 200, 300, 600, 900, -100, -150, -300, -450, -200, -300, -600, -900},
	{150, 350, 450, 1050, 300, 700, 900, 2100, -150, -350, -450, -1050, -300, -700, -900, -2100},
	{100, 150, 200, 300, 300, 450, 600, 900, -100, -150, -200, -300, -300, -450, -600, -900},
	{150, 350, 300, 700, 450, 1050, 900, 2100, -150, -350, -300, -700, -450, -1050, -900, -2100},
	{200, 300, 600, 900, 600, 900, 1800, 2700, -200, -300, -600, -900, -600, -900, -1800, -2700},
	{300, 700, 900, 2100, 900, 2100, 2700, 6300, -300, -700, -900, -2100, -900, -2100, -2700, -6300},
	{-50, -75, -100, -150, -100, -150, -200, -300, 50, 75, 100, 150, 100, 150, 200, 300},
	{-75, -175, -150, -350, -150, -350, -300, -700, 75, 175, 150, 350, 150, 350, 300, 700},
	{-100, -150, -300, -450, -200, -300, -600, -900, 100, 150, 300, 450, 200, 300, 600, 900},
	{-150, -350, -450, -1050, -300, -700, -900, -2100, 150, 350, 450, 1050, 300, 700, 900, 2100},
	{-100, -150, -200, -300, -300, -450, -600, -900, 100, 150, 200, 300, 300, 450, 600, 900},
	{-150, -350, -300, -700, -450, -1050, -900, -2100, 150, 350, 300, 700, 450, 1050, 900, 2100},
	{-200, -300, -600, -900, -600, -900, -1800, -2700, 200, 300, 600, 900, 600, 900, 1800, 2700},
	{-300, -700, -900, -2100, -900, -2100, -2700, -6300, 300, 700, 900, 2100, 900, 2100, 2700, 6300},
}

var refB = [16]float64{
	-198.5, -344, -459, -781, -412, -710.5, -948, -1607,
	198.5, 344, 459, 781, 412, 710.5, 948, 1607,
}

func TestBuildEquationsReferenceSystem(t *testing.T) {
	epsilon := 1e-9
	images, masks, sigmas, shape := rampStack()
	coords := zeroCenteredCoords(t, shape)

	a, b, err := BuildEquations(images, masks, sigmas, []int{1, 1, 1}, coords)
	if err != nil {
		t.Fatalf("BuildEquations: %s", err)
	}

	rows, cols := a.Dims()
	if rows != 16 || cols != 16 {
		t.Fatalf("system size %dx%d; want 16x16", rows, cols)
	}
	for i := 0; i < 16; i++ {
		for j := 0; j < 16; j++ {
			if math.Abs(a.At(i, j)-refA[i][j]) > epsilon {
				t.Errorf("a[%d,%d]=%f; want %f", i, j, a.At(i, j), refA[i][j])
			}
		}
		if math.Abs(b[i]-refB[i]) > epsilon {
			t.Errorf("b[%d]=%f; want %f", i, b[i], refB[i])
		}
	}
}

func TestBuildEquationsValidation(t *testing.T) {
	images, masks, sigmas, shape := rampStack()
	coords := zeroCenteredCoords(t, shape)

	_, _, err := BuildEquations(images, masks, append(sigmas, nd.Full(shape, 1)), []int{1, 1, 1}, coords)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("mismatched sigma count: got %v; want ValidationError", err)
	}

	_, _, err = BuildEquations(images, masks[:1], sigmas, []int{1, 1, 1}, coords)
	if !errors.As(err, &verr) {
		t.Errorf("mismatched mask count: got %v; want ValidationError", err)
	}

	_, _, err = BuildEquations(images, masks, sigmas, []int{1, 1, 1}, coords[:2])
	if !errors.As(err, &verr) {
		t.Errorf("mismatched coordinate count: got %v; want ValidationError", err)
	}

	_, _, err = BuildEquations(nil, nil, nil, []int{1}, nil)
	if !errors.As(err, &verr) {
		t.Errorf("empty image list: got %v; want ValidationError", err)
	}
}

// Adding the same constant to every image's background leaves the objective
// unchanged, so the all-images-constant vector must lie in the null space.
func TestBuildEquationsConstantNullSpace(t *testing.T) {
	epsilon := 1e-9
	images, masks, sigmas, shape := rampStack()
	coords := zeroCenteredCoords(t, shape)

	degree := []int{1, 2, 1}
	a, _, err := BuildEquations(images, masks, sigmas, degree, coords)
	if err != nil {
		t.Fatalf("BuildEquations: %s", err)
	}

	npoly := 2 * 3 * 2
	size, _ := a.Dims()
	v := make([]float64, size)
	for l := 0; l < len(images); l++ {
		v[l*npoly] = 1 // constant-term slot of image l
	}
	for i := 0; i < size; i++ {
		dot := 0.0
		for j := 0; j < size; j++ {
			dot += a.At(i, j) * v[j]
		}
		if math.Abs(dot) > epsilon {
			t.Errorf("(a*v)[%d]=%g; want 0", i, dot)
		}
	}
}

// Images with no shared valid pixels must contribute exactly zero to their
// cross blocks and free terms.
func TestBuildEquationsEmptyOverlap(t *testing.T) {
	shape := []int{4, 4}
	im1 := nd.Full(shape, 3.5)
	im2 := nd.Full(shape, -1.25)
	m1 := nd.NewBitmask(shape)
	m2 := nd.NewBitmask(shape)
	for k := range m1.Data { // disjoint halves
		m1.Data[k] = k < 8
		m2.Data[k] = k >= 8
	}
	sigmas := []*nd.Array{nd.Full(shape, 1), nd.Full(shape, 1)}
	coords := zeroCenteredCoords(t, shape)

	a, b, err := BuildEquations([]*nd.Array{im1, im2}, []*nd.Bitmask{m1, m2}, sigmas, []int{1, 1}, coords)
	if err != nil {
		t.Fatalf("BuildEquations: %s", err)
	}
	size, _ := a.Dims()
	for i := 0; i < size; i++ {
		if b[i] != 0 {
			t.Errorf("b[%d]=%g; want exactly 0", i, b[i])
		}
		for j := 0; j < size; j++ {
			if a.At(i, j) != 0 {
				t.Errorf("a[%d,%d]=%g; want exactly 0", i, j, a.At(i, j))
			}
		}
	}
}

// Permuting the image stack permutes the blocks of a, b and the solution the
// same way.
func TestBuildEquationsPermutation(t *testing.T) {
	epsilon := 1e-9
	shape := []int{3, 5}
	imgs := make([]*nd.Array, 3)
	for l := range imgs {
		imgs[l] = nd.NewArray(shape)
		for k := range imgs[l].Data {
			imgs[l].Data[k] = float64(l+1)*0.37 + 0.11*float64(k%5) - 0.05*float64(l*k%7)
		}
	}
	masks := []*nd.Bitmask{nd.FullBitmask(shape), nd.FullBitmask(shape), nd.FullBitmask(shape)}
	sigmas := []*nd.Array{nd.Full(shape, 0.7), nd.Full(shape, 1.1), nd.Full(shape, 0.9)}
	coords := zeroCenteredCoords(t, shape)
	degree := []int{1, 1}
	npoly := 4

	a1, b1, err := BuildEquations(imgs, masks, sigmas, degree, coords)
	if err != nil {
		t.Fatalf("BuildEquations: %s", err)
	}

	perm := []int{2, 0, 1} // image l of the permuted stack is image perm[l] of the original
	pImgs := []*nd.Array{imgs[2], imgs[0], imgs[1]}
	pSigmas := []*nd.Array{sigmas[2], sigmas[0], sigmas[1]}
	a2, b2, err := BuildEquations(pImgs, masks, pSigmas, degree, coords)
	if err != nil {
		t.Fatalf("BuildEquations permuted: %s", err)
	}

	for l := 0; l < 3; l++ {
		for m := 0; m < 3; m++ {
			for p := 0; p < npoly; p++ {
				for q := 0; q < npoly; q++ {
					got := a2.At(l*npoly+p, m*npoly+q)
					want := a1.At(perm[l]*npoly+p, perm[m]*npoly+q)
					if math.Abs(got-want) > epsilon {
						t.Errorf("block (%d,%d) entry (%d,%d): got %g; want %g", l, m, p, q, got, want)
					}
				}
			}
		}
		for p := 0; p < npoly; p++ {
			if math.Abs(b2[l*npoly+p]-b1[perm[l]*npoly+p]) > epsilon {
				t.Errorf("b block %d entry %d: got %g; want %g", l, p, b2[l*npoly+p], b1[perm[l]*npoly+p])
			}
		}
	}
}

// Pixels with non-positive sigma are dropped from an image's mask, unless that
// would invalidate the whole image; and the caller's masks stay untouched.
func TestBuildEquationsSigmaMaskRefinement(t *testing.T) {
	epsilon := 1e-12
	shape := []int{2, 3}
	im1 := nd.Full(shape, 1)
	im2 := nd.Full(shape, 2)
	images := []*nd.Array{im1, im2}
	coords := zeroCenteredCoords(t, shape)

	sig1 := nd.Full(shape, 1)
	sig1.Data[0] = 0 // should exclude pixel 0 of image 1
	sigmas := []*nd.Array{sig1, nd.Full(shape, 1)}
	masks := []*nd.Bitmask{nd.FullBitmask(shape), nd.FullBitmask(shape)}

	a1, b1, err := BuildEquations(images, masks, sigmas, []int{0, 0}, coords)
	if err != nil {
		t.Fatalf("BuildEquations: %s", err)
	}
	for _, v := range masks[0].Data {
		if !v {
			t.Fatal("caller mask was modified")
		}
	}

	// the same exclusion expressed through the mask must give the same system
	m1 := nd.FullBitmask(shape)
	m1.Data[0] = false
	sig1b := nd.Full(shape, 1)
	sig1b.Data[0] = 1 // any positive value; pixel is masked anyway
	a2, b2, err := BuildEquations(images, []*nd.Bitmask{m1, nd.FullBitmask(shape)},
		[]*nd.Array{sig1b, nd.Full(shape, 1)}, []int{0, 0}, coords)
	if err != nil {
		t.Fatalf("BuildEquations: %s", err)
	}
	size, _ := a1.Dims()
	for i := 0; i < size; i++ {
		if math.Abs(b1[i]-b2[i]) > epsilon {
			t.Errorf("b[%d]: %g != %g", i, b1[i], b2[i])
		}
		for j := 0; j < size; j++ {
			if math.Abs(a1.At(i, j)-a2.At(i, j)) > epsilon {
				t.Errorf("a[%d,%d]: %g != %g", i, j, a1.At(i, j), a2.At(i, j))
			}
		}
	}

	// all sigmas non-positive: no weighting information, mask used as given
	zeroSig := nd.NewArray(shape)
	a3, _, err := BuildEquations(images, []*nd.Bitmask{nd.FullBitmask(shape), nd.FullBitmask(shape)},
		[]*nd.Array{zeroSig, zeroSig}, []int{0, 0}, coords)
	if err != nil {
		t.Fatalf("BuildEquations: %s", err)
	}
	// with sigma2 sums all zero the weights are +Inf; the system must still
	// have been assembled over all six pixels rather than none
	if v := a3.At(0, 1); !math.IsInf(v, -1) {
		t.Errorf("a[0,1]=%g; want -Inf for all-zero sigmas over a non-empty mask", v)
	}
}
