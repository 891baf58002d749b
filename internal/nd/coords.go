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

package nd

import (
	"fmt"
)

// Image2World transforms per-dimension image coordinates to world coordinates.
// It receives one slice per image dimension, each holding the coordinate value
// of every pixel along that dimension, and returns the transformed slices in
// the same order. The input slices must not be modified.
type Image2World func(coords [][]float64) ([][]float64, error)

// CoordArrays builds one coordinate array per dimension of shape. Each array
// has the given shape and holds, at every pixel, the coordinate value used as
// the polynomial variable for that dimension.
//
// When center is nil, the origin defaults to the middle of the image,
// shape[d]/2 along each dimension. When image2world is non-nil, both the pixel
// grid and the center are transformed to world coordinates before the center
// is subtracted.
func CoordArrays(shape []int, center []float64, image2world Image2World) ([]*Array, error) {
	ndim := len(shape)
	if ndim == 0 {
		return nil, fmt.Errorf("nd: shape must have at least one dimension")
	}
	npix := Pixels(shape)
	if npix == 0 {
		return nil, fmt.Errorf("nd: shape %v has no pixels", shape)
	}
	if center != nil && len(center) != ndim {
		return nil, fmt.Errorf("nd: center has %d entries, want %d", len(center), ndim)
	}

	coords := make([]*Array, ndim)
	for d := range coords {
		coords[d] = NewArray(shape)
	}

	// fill per-dimension index grids by counting up a multi-index in row-major order
	idx := make([]int, ndim)
	for k := 0; k < npix; k++ {
		for d := 0; d < ndim; d++ {
			coords[d].Data[k] = float64(idx[d])
		}
		for d := ndim - 1; d >= 0; d-- {
			idx[d]++
			if idx[d] < shape[d] {
				break
			}
			idx[d] = 0
		}
	}

	ctr := make([]float64, ndim)
	if center == nil {
		for d := range ctr {
			ctr[d] = float64(shape[d] / 2)
		}
	} else {
		copy(ctr, center)
	}

	if image2world != nil {
		grid := make([][]float64, ndim)
		for d := range grid {
			grid[d] = coords[d].Data
		}
		world, err := image2world(grid)
		if err != nil {
			return nil, fmt.Errorf("nd: image-to-world transform failed: %w", err)
		}
		if len(world) != ndim {
			return nil, fmt.Errorf("nd: image-to-world transform returned %d dimensions, want %d", len(world), ndim)
		}
		for d := range coords {
			if len(world[d]) != npix {
				return nil, fmt.Errorf("nd: image-to-world transform changed the pixel count along dimension %d", d)
			}
			coords[d].Data = world[d]
		}

		ctrGrid := make([][]float64, ndim)
		for d := range ctrGrid {
			ctrGrid[d] = []float64{ctr[d]}
		}
		ctrWorld, err := image2world(ctrGrid)
		if err != nil {
			return nil, fmt.Errorf("nd: image-to-world transform of center failed: %w", err)
		}
		if len(ctrWorld) != ndim {
			return nil, fmt.Errorf("nd: image-to-world transform returned %d dimensions for center, want %d", len(ctrWorld), ndim)
		}
		for d := range ctr {
			if len(ctrWorld[d]) != 1 {
				return nil, fmt.Errorf("nd: image-to-world transform changed the center size along dimension %d", d)
			}
			ctr[d] = ctrWorld[d][0]
		}
	}

	for d := range coords {
		c := ctr[d]
		if c == 0 {
			continue
		}
		data := coords[d].Data
		for k := range data {
			data[k] -= c
		}
	}
	return coords, nil
}
