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

// Package stack holds the JSON container for a stack of co-registered frames
// sharing one pixel grid, with optional per-frame validity masks and
// uncertainties.
package stack

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/jhunkeler/wiimatch/internal/nd"
)

// A single frame of a stack. Mask and Sigma are optional; a missing mask
// treats every pixel as valid, a missing sigma assigns unit uncertainty.
type Frame struct {
	Image []float64 `json:"image"`
	Mask  []bool    `json:"mask,omitempty"`
	Sigma []float64 `json:"sigma,omitempty"`
}

// A stack of frames over one shared pixel grid. Pixel data is stored flat in
// row-major order, the last dimension of Shape varying most quickly.
type Stack struct {
	Shape  []int   `json:"shape"`
	Frames []Frame `json:"frames"`
}

func (s *Stack) String() string {
	return fmt.Sprintf("Stack of %d frames shape %v", len(s.Frames), s.Shape)
}

// Validate checks that every frame's data matches the stack shape.
func (s *Stack) Validate() error {
	npix := nd.Pixels(s.Shape)
	if npix == 0 {
		return fmt.Errorf("stack: shape %v has no pixels", s.Shape)
	}
	if len(s.Frames) == 0 {
		return fmt.Errorf("stack: no frames")
	}
	for i, f := range s.Frames {
		if len(f.Image) != npix {
			return fmt.Errorf("stack: frame %d image has %d pixels, want %d", i, len(f.Image), npix)
		}
		if f.Mask != nil && len(f.Mask) != npix {
			return fmt.Errorf("stack: frame %d mask has %d pixels, want %d", i, len(f.Mask), npix)
		}
		if f.Sigma != nil && len(f.Sigma) != npix {
			return fmt.Errorf("stack: frame %d sigma has %d pixels, want %d", i, len(f.Sigma), npix)
		}
	}
	return nil
}

// Arrays converts the stack into the image, mask and sigma stacks consumed by
// the matcher, applying the defaults for missing masks (all valid) and sigmas
// (all one).
func (s *Stack) Arrays() (images []*nd.Array, masks []*nd.Bitmask, sigmas []*nd.Array, err error) {
	if err := s.Validate(); err != nil {
		return nil, nil, nil, err
	}
	images = make([]*nd.Array, len(s.Frames))
	masks = make([]*nd.Bitmask, len(s.Frames))
	sigmas = make([]*nd.Array, len(s.Frames))
	for i, f := range s.Frames {
		images[i] = &nd.Array{Shape: s.Shape, Data: f.Image}
		if f.Mask != nil {
			masks[i] = &nd.Bitmask{Shape: s.Shape, Data: f.Mask}
		} else {
			masks[i] = nd.FullBitmask(s.Shape)
		}
		if f.Sigma != nil {
			sigmas[i] = &nd.Array{Shape: s.Shape, Data: f.Sigma}
		} else {
			sigmas[i] = nd.Full(s.Shape, 1)
		}
	}
	return images, masks, sigmas, nil
}

// Read decodes a stack from JSON.
func Read(r io.Reader) (*Stack, error) {
	s := &Stack{}
	if err := json.NewDecoder(r).Decode(s); err != nil {
		return nil, fmt.Errorf("stack: decoding failed: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// ReadFile decodes a stack from a JSON file.
func ReadFile(fileName string) (*Stack, error) {
	file, err := os.Open(fileName)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return Read(bufio.NewReader(file))
}

// Write encodes the stack as JSON.
func (s *Stack) Write(w io.Writer) error {
	return json.NewEncoder(w).Encode(s)
}

// WriteFile encodes the stack as JSON into the given file.
func (s *Stack) WriteFile(fileName string) error {
	file, err := os.Create(fileName)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	defer writer.Flush()

	return s.Write(writer)
}
