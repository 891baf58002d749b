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

// MatchLSQ computes, for every input image, the coefficients of a background
// polynomial that once subtracted from the image matches the stack's
// intensities in the least squares sense. Row l of the result holds the
// coefficients of image l's polynomial.
//
// All images must share one shape. A nil masks treats every pixel as valid;
// a nil sigmas assigns equal weight to every pixel. A degree (or center) of
// length one is broadcast to every image dimension; a nil center defaults to
// the middle of the image. image2world optionally maps the pixel grid to
// world coordinates before the polynomial variables are formed.
func MatchLSQ(images []*nd.Array, masks []*nd.Bitmask, sigmas []*nd.Array,
	degree []int, center []float64, image2world nd.Image2World) ([][]float64, error) {

	if len(images) == 0 {
		return nil, validationErrorf("at least one input image is required")
	}
	shape := images[0].Shape
	ndim := len(shape)
	for _, im := range images[1:] {
		if !nd.SameShape(im.Shape, shape) {
			return nil, validationErrorf("all images must have identical shapes")
		}
	}

	if masks == nil {
		masks = make([]*nd.Bitmask, len(images))
		for l := range masks {
			masks[l] = nd.FullBitmask(shape)
		}
	} else {
		if len(masks) != len(images) {
			return nil, validationErrorf("length of masks list must match the length of the image list")
		}
		for _, m := range masks {
			if !nd.SameShape(m.Shape, shape) {
				return nil, validationErrorf("shape of each mask array must match the shape of input images")
			}
		}
	}

	if sigmas == nil {
		sigmas = make([]*nd.Array, len(images))
		for l := range sigmas {
			sigmas[l] = nd.Full(shape, 1)
		}
	} else {
		if len(sigmas) != len(images) {
			return nil, validationErrorf("length of sigmas list must match the length of the image list")
		}
		for _, s := range sigmas {
			if !nd.SameShape(s.Shape, shape) {
				return nil, validationErrorf("shape of each sigma array must match the shape of input images")
			}
		}
	}

	switch len(degree) {
	case ndim:
	case 1: // single degree applies to every dimension
		d0 := degree[0]
		degree = make([]int, ndim)
		for d := range degree {
			degree[d] = d0
		}
	default:
		return nil, validationErrorf("the length of degree must match the number of image dimensions")
	}
	for _, d := range degree {
		if d < 0 {
			return nil, validationErrorf("polynomial degrees must be non-negative")
		}
	}

	if center != nil && len(center) != ndim {
		if len(center) != 1 {
			return nil, validationErrorf("the length of center must match the number of image dimensions")
		}
		c0 := center[0]
		center = make([]float64, ndim)
		for d := range center {
			center[d] = c0
		}
	}

	coords, err := nd.CoordArrays(shape, center, image2world)
	if err != nil {
		return nil, err
	}
	a, b, err := BuildEquations(images, masks, sigmas, degree, coords)
	if err != nil {
		return nil, err
	}
	return SolveGrouped(a, b, len(images))
}
