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

package stack

import (
	"fmt"
	"math"

	"github.com/valyala/fastrand"
)

// Synthetic generates a stack of co-registered frames over the given shape.
// Frame l holds offsets[l] plus, when ramps is non-nil, the linear gradient
// sum of ramps[l][d]*k_d over the pixel indices k, plus Gaussian noise of the
// given standard deviation. Matching such a stack with degree 1 per dimension
// should recover the relative offsets and ramps.
func Synthetic(shape []int, offsets []float64, ramps [][]float64, noise float64, seed uint32) (*Stack, error) {
	npix := 1
	for _, d := range shape {
		if d <= 0 {
			return nil, fmt.Errorf("stack: invalid shape %v", shape)
		}
		npix *= d
	}
	if len(offsets) == 0 {
		return nil, fmt.Errorf("stack: at least one frame offset is required")
	}
	if ramps != nil && len(ramps) != len(offsets) {
		return nil, fmt.Errorf("stack: got %d ramp sets for %d frames", len(ramps), len(offsets))
	}

	rng := fastrand.RNG{}
	rng.Seed(seed)

	s := &Stack{Shape: shape, Frames: make([]Frame, len(offsets))}
	for l, off := range offsets {
		if ramps != nil && len(ramps[l]) != len(shape) {
			return nil, fmt.Errorf("stack: frame %d has %d ramps, want %d", l, len(ramps[l]), len(shape))
		}
		data := make([]float64, npix)
		idx := make([]int, len(shape))
		for k := 0; k < npix; k++ {
			v := off
			if ramps != nil {
				for d, r := range ramps[l] {
					v += r * float64(idx[d])
				}
			}
			if noise > 0 {
				v += noise * gaussian(&rng)
			}
			data[k] = v

			for d := len(shape) - 1; d >= 0; d-- {
				idx[d]++
				if idx[d] < shape[d] {
					break
				}
				idx[d] = 0
			}
		}
		s.Frames[l] = Frame{Image: data}
	}
	return s, nil
}

// gaussian draws a standard normal variate via the Box-Muller transform.
func gaussian(rng *fastrand.RNG) float64 {
	u1 := (float64(rng.Uint32()) + 1) / (float64(math.MaxUint32) + 2)
	u2 := (float64(rng.Uint32()) + 1) / (float64(math.MaxUint32) + 2)
	return math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)
}
