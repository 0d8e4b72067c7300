// Copyright (C) 2020 Markus L. Noga
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

// Package background extracts the coarse, largest-scale component of
// frame 0's illumination. The contract (spec.md §4.2) treats this as an
// opaque low-pass primitive: any equivalent that preserves only very
// coarse structure satisfies it. This implementation fits a piecewise
// linear gradient to a coarse grid of cells, clips outlier cells, and
// smoothes and upsamples the result — the grid-based approach, rather
// than a literal wavelet transform.
package background

import (
	"math"

	"github.com/valyala/fastrand"

	"github.com/skywatch/luckystack/internal/luckyimage"
	"github.com/skywatch/luckystack/internal/numeric"
)

// maxCellSamples bounds how many pixels of a large grid cell feed the
// median/MAD cut-off estimate; larger cells take that estimate from a
// random subsample instead.
const maxCellSamples = 256

type grid struct {
	width, height   int
	gridSpacing     int
	cellCols, cellRows int
	cells           []float32
}

// Estimate returns a same-size image holding only the coarse background of
// frame, derived from a grid whose spacing scales with approxFWHM (larger
// stars need a coarser grid to avoid fitting the stars themselves).
func Estimate(frame *luckyimage.Frame, approxFWHM float32) *luckyimage.Frame {
	spacing := int(approxFWHM * 16)
	if spacing < 8 {
		spacing = 8
	}
	if m := frame.W / 3; m > 0 && spacing > m {
		spacing = m
	}
	if m := frame.H / 3; m > 0 && spacing > m {
		spacing = m
	}

	g := newGrid(frame, spacing)
	g.clipOutliers(3)
	g.smooth()

	out := g.render(frame.W, frame.H)
	out.Clip01()
	return out
}

func newGrid(frame *luckyimage.Frame, spacing int) *grid {
	cellCols := (frame.W + spacing - 1) / spacing
	cellRows := (frame.H + spacing - 1) / spacing
	g := &grid{
		width: frame.W, height: frame.H, gridSpacing: spacing,
		cellCols: cellCols, cellRows: cellRows,
		cells: make([]float32, cellCols*cellRows),
	}

	c := 0
	var rng fastrand.RNG
	for yStart := 0; yStart < frame.H; yStart += spacing {
		yEnd := yStart + spacing
		if yEnd > frame.H {
			yEnd = frame.H
		}
		for xStart := 0; xStart < frame.W; xStart += spacing {
			xEnd := xStart + spacing
			if xEnd > frame.W {
				xEnd = frame.W
			}
			g.cells[c] = fitCell(frame, xStart, xEnd, yStart, yEnd, &rng)
			c++
		}
	}
	return g
}

// fitCell estimates a robust local background level for one grid cell: a
// trimmed median that excludes samples well above the cell's own median
// (stars, bright nebulosity). For cells larger than maxCellSamples the
// median and MAD behind that cut-off come from a random subsample via
// fastrand; the trimmed median itself is taken over every pixel of the
// cell below the cut-off.
func fitCell(frame *luckyimage.Frame, xStart, xEnd, yStart, yEnd int, rng *fastrand.RNG) float32 {
	w, h := xEnd-xStart, yEnd-yStart
	n := w * h
	var samples []float32
	if n <= maxCellSamples {
		samples = make([]float32, 0, n)
		for y := yStart; y < yEnd; y++ {
			for x := xStart; x < xEnd; x++ {
				samples = append(samples, frame.At(x, y))
			}
		}
	} else {
		samples = make([]float32, maxCellSamples)
		for i := range samples {
			x := xStart + int(rng.Uint32n(uint32(w)))
			y := yStart + int(rng.Uint32n(uint32(h)))
			samples[i] = frame.At(x, y)
		}
	}

	cp := append([]float32(nil), samples...)
	median := numeric.QSelectMedianFloat32(cp)
	for i, v := range samples {
		samples[i] = float32(math.Abs(float64(v - median)))
	}
	mad := numeric.QSelectMedianFloat32(samples) * 1.4826
	upperBound := median + 1.5*mad

	trimmed := samples[:0]
	for y := yStart; y < yEnd; y++ {
		for x := xStart; x < xEnd; x++ {
			v := frame.At(x, y)
			if v < upperBound {
				trimmed = append(trimmed, v)
			}
		}
	}
	if len(trimmed) == 0 {
		return median
	}
	return numeric.QSelectMedianFloat32(trimmed)
}

// clipOutliers replaces the n brightest cells (likely contaminated by a
// large foreground object rather than true background) with the median of
// their immediate neighbours.
func (g *grid) clipOutliers(n int) {
	if n <= 0 || n >= len(g.cells) {
		return
	}
	cp := append([]float32(nil), g.cells...)
	threshold := numeric.QSelectFloat32(cp, len(cp)-n+1)

	for i, v := range g.cells {
		if v >= threshold {
			g.cells[i] = float32(math.NaN())
		}
	}

	for neighbors := 8; neighbors >= 0; neighbors-- {
		for g.interpolateOnce(neighbors) > 0 {
		}
	}
}

var neighborOffsets = [8][2]int{{-1, -1}, {0, -1}, {1, -1}, {-1, 0}, {1, 0}, {-1, 1}, {0, 1}, {1, 1}}

func (g *grid) interpolateOnce(minNeighbors int) int {
	changed := 0
	buf := make([]float32, 8)
	for y := 0; y < g.cellRows; y++ {
		for x := 0; x < g.cellCols; x++ {
			idx := y*g.cellCols + x
			if !math.IsNaN(float64(g.cells[idx])) {
				continue
			}
			gathered := 0
			for _, off := range neighborOffsets {
				nx, ny := x+off[0], y+off[1]
				if nx < 0 || nx >= g.cellCols || ny < 0 || ny >= g.cellRows {
					continue
				}
				v := g.cells[ny*g.cellCols+nx]
				if !math.IsNaN(float64(v)) {
					buf[gathered] = v
					gathered++
				}
			}
			if gathered >= minNeighbors && gathered > 0 {
				g.cells[idx] = numeric.Median(buf[:gathered])
				changed++
			}
		}
	}
	return changed
}

var gauss3x3Weights = [3]float32{0.468592, 0.107973, 0.024879} // sigma 0.5

func (g *grid) smooth() {
	out := make([]float32, len(g.cells))
	for y := 0; y < g.cellRows; y++ {
		for x := 0; x < g.cellCols; x++ {
			var sum, wsum float32
			for _, off := range [9][2]int{{-1, -1}, {0, -1}, {1, -1}, {-1, 0}, {0, 0}, {1, 0}, {-1, 1}, {0, 1}, {1, 1}} {
				nx, ny := x+off[0], y+off[1]
				if nx < 0 || nx >= g.cellCols || ny < 0 || ny >= g.cellRows {
					continue
				}
				w := gauss3x3Weights[off[0]*off[0]+off[1]*off[1]]
				sum += g.cells[ny*g.cellCols+nx] * w
				wsum += w
			}
			out[y*g.cellCols+x] = sum / wsum
		}
	}
	g.cells = out
}

// render bilinearly upsamples the cell grid to a full-size image, treating
// each cell value as sampled at its center.
func (g *grid) render(w, h int) *luckyimage.Frame {
	out := luckyimage.NewFrame(w, h)
	subtrahend := float32(g.gridSpacing) * 0.5
	factor := 1.0 / float32(g.gridSpacing)

	for y := 0; y < h; y++ {
		ySrc := (float32(y) - subtrahend) * factor
		for x := 0; x < w; x++ {
			xSrc := (float32(x) - subtrahend) * factor

			xl := int(math.Floor(float64(xSrc)))
			yl := int(math.Floor(float64(ySrc)))
			xh, yh := xl+1, yl+1

			if xl < 0 {
				xl, xh = 0, 1
			}
			if xh >= g.cellCols {
				xh = g.cellCols - 1
				xl = xh - 1
				if xl < 0 {
					xl = 0
				}
			}
			if yl < 0 {
				yl, yh = 0, 1
			}
			if yh >= g.cellRows {
				yh = g.cellRows - 1
				yl = yh - 1
				if yl < 0 {
					yl = 0
				}
			}

			xr := xSrc - float32(xl)
			yr := ySrc - float32(yl)

			vyl := g.cells[yl*g.cellCols+xl]*(1-xr) + g.cells[yl*g.cellCols+xh]*xr
			vyh := g.cells[yh*g.cellCols+xl]*(1-xr) + g.cells[yh*g.cellCols+xh]*xr
			out.Set(x, y, vyl*(1-yr)+vyh*yr)
		}
	}
	return out
}
