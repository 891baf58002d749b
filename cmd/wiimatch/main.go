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

package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"runtime/pprof"
	"strconv"
	"strings"

	"github.com/jhunkeler/wiimatch/internal/lsq"
	"github.com/jhunkeler/wiimatch/internal/render"
	"github.com/jhunkeler/wiimatch/internal/rest"
	"github.com/jhunkeler/wiimatch/internal/stack"
	"github.com/pbnjay/memory"
)

const version = "0.1.0"

var totalMiBs = memory.TotalMemory() / 1024 / 1024

var cpuprofile = flag.String("cpuprofile", "", "write cpu profile to `file`")
var memprofile = flag.String("memprofile", "", "write memory profile to `file`")

var logF = flag.String("log", "", "mirror log output to `file`")

var degreeF = flag.String("degree", "0", "polynomial degree per dimension, e.g. `1,1` (a single value applies to all dimensions)")
var centerF = flag.String("center", "", "coordinate origin per dimension, e.g. `0,0` (default: middle of the image)")
var out = flag.String("out", "", "save result to `file` instead of stdout")
var back = flag.String("back", "", "save fitted 2D backgrounds as 16-bit TIFF with given filename pattern, e.g. `back%02d.tiff`")
var maxMiB = flag.Uint64("maxMiB", totalMiBs*7/10, "refuse system matrices larger than this many MiB, default=0.7x physical memory")

var shapeF = flag.String("shape", "256,256", "pixel grid shape for gen/render, e.g. `256,256`")
var frames = flag.Int("frames", 2, "number of frames for gen")
var noise = flag.Float64("noise", 0.01, "gaussian noise sigma for gen")
var seed = flag.Uint("seed", 42, "random seed for gen")

var addr = flag.String("addr", ":8080", "listen `address` for serve")
var chroot = flag.String("chroot", "", "serve: change filesystem root to `dir` (requires root)")
var setuid = flag.Int("setuid", -1, "serve: switch to this user id after opening the port, -1=don't")

func main() {
	logWriter := io.Writer(os.Stdout)
	flag.Usage = func() {
		fmt.Fprintf(logWriter, `Wiimatch is Copyright (c) 2026 The wiimatch authors
This program comes with ABSOLUTELY NO WARRANTY.
This is free software, and you are welcome to redistribute it under certain conditions.
Refer to https://www.gnu.org/licenses/gpl-3.0.en.html for details.

Usage: %s [-flag value] (match|gen|render|serve|legal|version) [args]

Commands:
  match   Fit matching background polynomials to the stack in the given JSON file
  gen     Generate a synthetic stack JSON file with offsets and gradients
  render  Evaluate given coefficients over the grid and write a 16-bit TIFF
  serve   Serve the matcher as a REST API
  legal   Show license and attribution information
  version Show version information

Flags:
`, os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if *logF != "" {
		f, err := os.Create(*logF)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Unable to open logfile '%s': %s\n", *logF, err)
			os.Exit(1)
		}
		defer f.Close()
		logWriter = io.MultiWriter(os.Stdout, f)
	}

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			fatalf(logWriter, "Could not create CPU profile: %s\n", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			fatalf(logWriter, "Could not start CPU profile: %s\n", err)
		}
		defer pprof.StopCPUProfile()
	}

	args := flag.Args()
	if len(args) < 1 {
		flag.Usage()
		os.Exit(2)
	}

	var err error
	switch args[0] {
	case "match":
		err = cmdMatch(logWriter, args[1:])
	case "gen":
		err = cmdGen(logWriter, args[1:])
	case "render":
		err = cmdRender(logWriter, args[1:])
	case "serve":
		if err = rest.MakeSandbox(logWriter, *chroot, *setuid); err == nil {
			err = rest.Serve(*addr)
		}
	case "legal":
		fmt.Fprint(logWriter, legal)
	case "version":
		fmt.Fprintf(logWriter, "Version %s\n", version)
	default:
		fatalf(logWriter, "Unknown command '%s'\n", args[0])
	}
	if err != nil {
		fatalf(logWriter, "error: %s\n", err)
	}

	if *memprofile != "" {
		f, err := os.Create(*memprofile)
		if err != nil {
			fatalf(logWriter, "Could not create memory profile: %s\n", err)
		}
		defer f.Close()
		if err := pprof.WriteHeapProfile(f); err != nil {
			fatalf(logWriter, "Could not write memory profile: %s\n", err)
		}
	}
}

func fatalf(logWriter io.Writer, format string, args ...interface{}) {
	fmt.Fprintf(logWriter, format, args...)
	os.Exit(1)
}

// cmdMatch loads a stack JSON file, fits matching background polynomials and
// writes the coefficients, one line per frame.
func cmdMatch(logWriter io.Writer, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("match: expected exactly one stack file argument")
	}
	s, err := stack.ReadFile(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(logWriter, "Loaded %s from %s\n", s, args[0])

	degree, err := parseInts(*degreeF)
	if err != nil {
		return fmt.Errorf("bad -degree: %w", err)
	}
	center, err := parseFloats(*centerF)
	if err != nil {
		return fmt.Errorf("bad -center: %w", err)
	}

	if err := checkMatrixMemory(len(s.Frames), len(s.Shape), degree); err != nil {
		return err
	}

	images, masks, sigmas, err := s.Arrays()
	if err != nil {
		return err
	}
	coefs, err := lsq.MatchLSQ(images, masks, sigmas, degree, center, nil)
	if err != nil {
		return err
	}

	w := logWriter
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	for l, c := range coefs {
		fmt.Fprintf(w, "%d:", l)
		for _, v := range c {
			fmt.Fprintf(w, " %.10g", v)
		}
		fmt.Fprintln(w)
	}

	if *back != "" {
		if len(s.Shape) != 2 {
			return fmt.Errorf("-back requires a 2D stack, got %d dimensions", len(s.Shape))
		}
		for l, c := range coefs {
			bg, err := render.Background(c, degree, s.Shape, center)
			if err != nil {
				return err
			}
			min, max := bg.Data[0], bg.Data[0]
			for _, v := range bg.Data {
				if v < min {
					min = v
				}
				if v > max {
					max = v
				}
			}
			if max == min {
				max = min + 1
			}
			fileName := fmt.Sprintf(*back, l)
			if err := render.WriteMonoTIFF16ToFile(fileName, bg, min, max, 1.0); err != nil {
				return err
			}
			fmt.Fprintf(logWriter, "Saved background %d to %s (range [%g...%g])\n", l, fileName, min, max)
		}
	}
	return nil
}

// cmdGen writes a synthetic stack with per-frame offsets and optional ramps.
// Arguments are the output file followed by one offset per frame.
func cmdGen(logWriter io.Writer, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("gen: expected an output file argument")
	}
	shape, err := parseInts(*shapeF)
	if err != nil {
		return fmt.Errorf("bad -shape: %w", err)
	}

	offsets := make([]float64, 0, *frames)
	for _, a := range args[1:] {
		v, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return fmt.Errorf("gen: bad offset '%s': %w", a, err)
		}
		offsets = append(offsets, v)
	}
	for len(offsets) < *frames {
		offsets = append(offsets, float64(len(offsets)))
	}

	s, err := stack.Synthetic(shape, offsets, nil, *noise, uint32(*seed))
	if err != nil {
		return err
	}
	if err := s.WriteFile(args[0]); err != nil {
		return err
	}
	fmt.Fprintf(logWriter, "Wrote %s to %s\n", s, args[0])
	return nil
}

// cmdRender evaluates the coefficients given as arguments over the -shape grid
// and writes the result to the -back TIFF pattern (frame index 0).
func cmdRender(logWriter io.Writer, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("render: expected coefficient arguments")
	}
	if *back == "" {
		return fmt.Errorf("render: -back filename pattern is required")
	}
	shape, err := parseInts(*shapeF)
	if err != nil {
		return fmt.Errorf("bad -shape: %w", err)
	}
	degree, err := parseInts(*degreeF)
	if err != nil {
		return fmt.Errorf("bad -degree: %w", err)
	}
	center, err := parseFloats(*centerF)
	if err != nil {
		return fmt.Errorf("bad -center: %w", err)
	}
	coef := make([]float64, len(args))
	for i, a := range args {
		if coef[i], err = strconv.ParseFloat(a, 64); err != nil {
			return fmt.Errorf("render: bad coefficient '%s': %w", a, err)
		}
	}

	bg, err := render.Background(coef, degree, shape, center)
	if err != nil {
		return err
	}
	min, max := bg.Data[0], bg.Data[0]
	for _, v := range bg.Data {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	if max == min {
		max = min + 1
	}
	fileName := fmt.Sprintf(*back, 0)
	if err := render.WriteMonoTIFF16ToFile(fileName, bg, min, max, 1.0); err != nil {
		return err
	}
	fmt.Fprintf(logWriter, "Saved rendered background to %s (range [%g...%g])\n", fileName, min, max)
	return nil
}

// checkMatrixMemory refuses to build system matrices beyond the -maxMiB limit,
// since the dense normal equations grow with the square of frames x terms.
func checkMatrixMemory(nframes, ndim int, degree []int) error {
	npoly := 1
	if len(degree) == 1 {
		for d := 0; d < ndim; d++ {
			npoly *= degree[0] + 1
		}
	} else {
		for _, d := range degree {
			npoly *= d + 1
		}
	}
	size := uint64(nframes) * uint64(npoly)
	matrixMiB := size * size * 8 / 1024 / 1024
	if matrixMiB > *maxMiB {
		return fmt.Errorf("system matrix would need %d MiB, above the %d MiB limit (raise -maxMiB to override)",
			matrixMiB, *maxMiB)
	}
	return nil
}

func parseInts(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int, len(parts))
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func parseFloats(s string) ([]float64, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
