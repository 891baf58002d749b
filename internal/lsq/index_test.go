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

import "testing"

type unravelTestCase struct {
	Flat  int
	Shape []int
	Idx   []int
}

func TestUnravelRavel(t *testing.T) {
	tcs := []unravelTestCase{
		{0, []int{3, 2, 2}, []int{0, 0, 0}},
		{1, []int{3, 2, 2}, []int{0, 0, 1}},
		{2, []int{3, 2, 2}, []int{0, 1, 0}},
		{5, []int{3, 2, 2}, []int{1, 0, 1}},
		{11, []int{3, 2, 2}, []int{2, 1, 1}},
		{7, []int{8}, []int{7}},
		{13, []int{2, 3, 4}, []int{1, 0, 1}},
	}
	for _, tc := range tcs {
		idx := unravel(tc.Flat, tc.Shape)
		for d := range idx {
			if idx[d] != tc.Idx[d] {
				t.Errorf("unravel(%d, %v)=%v; want %v", tc.Flat, tc.Shape, idx, tc.Idx)
				break
			}
		}
		if got := ravel(tc.Idx, tc.Shape); got != tc.Flat {
			t.Errorf("ravel(%v, %v)=%d; want %d", tc.Idx, tc.Shape, got, tc.Flat)
		}
	}
}

func TestGridShape(t *testing.T) {
	g := gridShape(3, []int{1, 2, 0})
	want := []int{3, 2, 3, 1}
	for d := range want {
		if g[d] != want[d] {
			t.Fatalf("gridShape=%v; want %v", g, want)
		}
	}
	if n := numPolyCoeffs([]int{1, 2, 0}); n != 6 {
		t.Errorf("numPolyCoeffs=%d; want 6", n)
	}
	if n := numPolyCoeffs([]int{0, 0}); n != 1 {
		t.Errorf("numPolyCoeffs all-zero=%d; want 1", n)
	}
}
