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

// Package render evaluates fitted backgrounds and exports them as images.
package render

import (
	"bufio"
	"fmt"
	"image"
	"image/color"
	"io"
	"math"
	"os"

	"github.com/jhunkeler/wiimatch/internal/lsq"
	"github.com/jhunkeler/wiimatch/internal/nd"
	"golang.org/x/image/tiff"
)

// Background evaluates a fitted background polynomial over a pixel grid of
// the given shape, using the same coordinate conventions as the matcher
// (center nil defaults to the middle of the image).
func Background(coef []float64, degree []int, shape []int, center []float64) (*nd.Array, error) {
	coords, err := nd.CoordArrays(shape, center, nil)
	if err != nil {
		return nil, err
	}
	if len(degree) == 1 && len(shape) > 1 {
		d0 := degree[0]
		degree = make([]int, len(shape))
		for d := range degree {
			degree[d] = d0
		}
	}
	return lsq.EvalPoly(coef, degree, coords)
}

// WriteMonoTIFF16 writes a 2-D array to 16-bit grayscale TIFF, using the given
// min, max and gamma.
func WriteMonoTIFF16(writer io.Writer, src *nd.Array, min, max, gamma float64) error {
	if len(src.Shape) != 2 {
		return fmt.Errorf("render: TIFF export requires a 2-D array, got %d dimensions", len(src.Shape))
	}
	height, width := src.Shape[0], src.Shape[1]
	img := image.NewGray16(image.Rectangle{image.Point{0, 0}, image.Point{width, height}})
	scale := 1 / (max - min)
	gammaInv := 1.0 / gamma
	for y := 0; y < height; y++ {
		yoffset := y * width
		for x := 0; x < width; x++ {
			gray := src.Data[yoffset+x]
			gray = (gray - min) * scale
			// replace NaNs with zeros for export, else TIFF output breaks
			if math.IsNaN(gray) || gray < 0 {
				gray = 0
			}
			if gray > 1 {
				gray = 1
			}
			if gammaInv != 1.0 {
				gray = math.Pow(gray, gammaInv)
			}
			img.SetGray16(x, y, color.Gray16{uint16(gray * 65535)})
		}
	}

	return tiff.Encode(writer, img, &tiff.Options{Compression: tiff.Uncompressed, Predictor: false})
}

// WriteMonoTIFF16ToFile writes a 2-D array to a 16-bit grayscale TIFF file,
// using the given min, max and gamma.
func WriteMonoTIFF16ToFile(fileName string, src *nd.Array, min, max, gamma float64) error {
	file, err := os.Create(fileName)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	defer writer.Flush()

	return WriteMonoTIFF16(writer, src, min, max, gamma)
}
