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

// An N-dimensional real-valued pixel array.
// Data is stored as a flat slice in row-major order: the last dimension of
// Shape varies most quickly.
type Array struct {
	Shape []int     // Axis dimensions, slowest-varying first
	Data  []float64 // The pixel data, len = product of Shape
}

// An N-dimensional boolean validity mask with the same storage layout as Array.
// True marks a usable pixel.
type Bitmask struct {
	Shape []int
	Data  []bool
}

// Pixels returns the number of pixels implied by the given shape.
// An empty shape has zero pixels.
func Pixels(shape []int) int {
	if len(shape) == 0 {
		return 0
	}
	n := 1
	for _, d := range shape {
		if d <= 0 {
			return 0
		}
		n *= d
	}
	return n
}

// NewArray allocates a zero-filled array of the given shape.
func NewArray(shape []int) *Array {
	return &Array{Shape: shape, Data: make([]float64, Pixels(shape))}
}

// Full allocates an array of the given shape with every pixel set to value.
func Full(shape []int, value float64) *Array {
	a := NewArray(shape)
	for k := range a.Data {
		a.Data[k] = value
	}
	return a
}

// Pixels returns the number of pixels in the array.
func (a *Array) Pixels() int { return len(a.Data) }

// NewBitmask allocates a mask of the given shape with every pixel invalid.
func NewBitmask(shape []int) *Bitmask {
	return &Bitmask{Shape: shape, Data: make([]bool, Pixels(shape))}
}

// FullBitmask allocates a mask of the given shape with every pixel valid.
func FullBitmask(shape []int) *Bitmask {
	m := NewBitmask(shape)
	for k := range m.Data {
		m.Data[k] = true
	}
	return m
}

// Clone returns an independent copy of the mask.
func (m *Bitmask) Clone() *Bitmask {
	c := &Bitmask{Shape: append([]int{}, m.Shape...), Data: make([]bool, len(m.Data))}
	copy(c.Data, m.Data)
	return c
}

// SameShape reports whether two shapes are identical, dimension by dimension.
func SameShape(p, q []int) bool {
	if len(p) != len(q) {
		return false
	}
	for d := range p {
		if p[d] != q[d] {
			return false
		}
	}
	return true
}
