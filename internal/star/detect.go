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

package star

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/skywatch/luckystack/internal/luckyimage"
)

// Detect runs the template detector of spec.md §4.4 on the cosmetically
// corrected frame 0, using bg as the per-run background image. The
// returned stars are renumbered with fresh sequential ids in
// component-discovery order; that ordering is the identity mapping used
// by Track for every later frame.
func Detect(frame, bg *luckyimage.Frame, p Params) []Star {
	r := p.Radius()

	subtracted := localMeanSubtract(frame, r)
	mask := binarizeMajority(subtracted, p.MinPeak)
	components := label8(mask, frame.W, frame.H)

	candidates := make([]Star, 0, len(components))
	for _, comp := range components {
		s, ok := measureComponent(frame, bg, comp, r)
		if !ok {
			continue
		}
		candidates = append(candidates, s)
	}

	rejectInvalid(candidates, p, r, frame.W, frame.H)
	rejectProximity(candidates, p.ApproxFWHM)

	out := make([]Star, 0, len(candidates))
	for _, s := range candidates {
		if s.Peak == 0 {
			continue
		}
		s.ID = len(out)
		out = append(out, s)
	}
	return out
}

// localMeanSubtract returns src minus its local box mean, computed over a
// (2R+1)x(2R+1) box sub-sampled with stride s = max(1, (2R+1)/7) — a
// deliberate speed/quality trade-off preserved from the original design.
func localMeanSubtract(src *luckyimage.Frame, r int) *luckyimage.Frame {
	boxSize := 2*r + 1
	stride := boxSize / 7
	if stride < 1 {
		stride = 1
	}

	out := luckyimage.NewFrame(src.W, src.H)
	for y := 0; y < src.H; y++ {
		y0, y1 := y-r, y+r
		if y0 < 0 {
			y0 = 0
		}
		if y1 > src.H-1 {
			y1 = src.H - 1
		}
		for x := 0; x < src.W; x++ {
			x0, x1 := x-r, x+r
			if x0 < 0 {
				x0 = 0
			}
			if x1 > src.W-1 {
				x1 = src.W - 1
			}

			var sum float32
			var n int
			for yy := y0; yy <= y1; yy += stride {
				for xx := x0; xx <= x1; xx += stride {
					sum += src.At(xx, yy)
					n++
				}
			}
			mean := sum / float32(n)
			out.Set(x, y, src.At(x, y)-mean)
		}
	}
	return out
}

// binarizeMajority marks a pixel true when at least 5 of its 5x5
// neighbourhood (including itself), clipped at borders, exceed minPeak in
// the local-mean-subtracted image.
func binarizeMajority(subtracted *luckyimage.Frame, minPeak float32) []bool {
	w, h := subtracted.W, subtracted.H
	exceeds := make([]bool, w*h)
	for i, v := range subtracted.Data {
		exceeds[i] = v > minPeak
	}

	mask := make([]bool, w*h)
	for y := 0; y < h; y++ {
		y0, y1 := y-2, y+2
		if y0 < 0 {
			y0 = 0
		}
		if y1 > h-1 {
			y1 = h - 1
		}
		for x := 0; x < w; x++ {
			x0, x1 := x-2, x+2
			if x0 < 0 {
				x0 = 0
			}
			if x1 > w-1 {
				x1 = w - 1
			}
			count := 0
			for yy := y0; yy <= y1; yy++ {
				row := yy * w
				for xx := x0; xx <= x1; xx++ {
					if exceeds[row+xx] {
						count++
					}
				}
			}
			mask[y*w+x] = count >= 5
		}
	}
	return mask
}

type point struct{ x, y int }

// label8 finds 8-connected components of the binary mask via LIFO flood
// fill, returning each component as its list of pixel coordinates, in
// discovery order.
func label8(mask []bool, w, h int) [][]point {
	visited := make([]bool, w*h)
	var components [][]point
	var stack []point

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			idx := y*w + x
			if !mask[idx] || visited[idx] {
				continue
			}
			visited[idx] = true
			stack = stack[:0]
			stack = append(stack, point{x, y})
			var comp []point
			for len(stack) > 0 {
				p := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				comp = append(comp, p)
				for dy := -1; dy <= 1; dy++ {
					ny := p.y + dy
					if ny < 0 || ny >= h {
						continue
					}
					for dx := -1; dx <= 1; dx++ {
						if dx == 0 && dy == 0 {
							continue
						}
						nx := p.x + dx
						if nx < 0 || nx >= w {
							continue
						}
						nidx := ny*w + nx
						if mask[nidx] && !visited[nidx] {
							visited[nidx] = true
							stack = append(stack, point{nx, ny})
						}
					}
				}
			}
			components = append(components, comp)
		}
	}
	return components
}

// measureComponent derives one Star from a connected component's pixels,
// following spec.md §4.4 step 4: centroid, border check, mass-weighted
// centroid refinement against the initial background sample, re-check,
// and the 1-D Gaussian FWHM fit on each axis.
func measureComponent(frame, bg *luckyimage.Frame, comp []point, r int) (Star, bool) {
	var sx, sy float64
	for _, p := range comp {
		sx += float64(p.x)
		sy += float64(p.y)
	}
	n := float64(len(comp))
	cx := float32(sx/n) + 0.5
	cy := float32(sy/n) + 0.5

	border := float32(2 * r)
	if cx < border || cx > float32(frame.W)-border || cy < border || cy > float32(frame.H)-border {
		return Star{}, false
	}

	bg0 := bg.Sample(cx, cy, luckyimage.Bilinear)

	peak, mass, xMoment, yMoment := windowStats(frame, cx, cy, r, bg0)
	if mass == 0 {
		return Star{}, false
	}
	rcx := xMoment / mass
	rcy := yMoment / mass

	if rcx < border || rcx > float32(frame.W)-border || rcy < border || rcy > float32(frame.H)-border {
		return Star{}, false
	}

	background := bg.Sample(rcx, rcy, luckyimage.Bilinear)
	// recompute peak over the refined window, background-subtracted mass is not re-used further.
	peak = windowPeak(frame, rcx, rcy, r)

	sizeX := fitFWHM(frame, background, rcx, rcy, r, true)
	sizeY := fitFWHM(frame, background, rcx, rcy, r, false)

	return Star{X: rcx, Y: rcy, Background: background, Peak: peak, SizeX: sizeX, SizeY: sizeY}, true
}

// windowStats scans the (2R+1)^2 window centered on (int(cx), int(cy))
// (coordinates truncated to whole pixels) and returns the raw peak together with the
// background-subtracted mass and first moments used for the mass-weighted
// centroid refinement.
func windowStats(frame *luckyimage.Frame, cx, cy float32, r int, bg0 float32) (peak, mass, xMoment, yMoment float32) {
	cix, ciy := int(cx), int(cy)
	for dy := -r; dy <= r; dy++ {
		y := ciy + dy
		if y < 0 || y >= frame.H {
			continue
		}
		for dx := -r; dx <= r; dx++ {
			x := cix + dx
			if x < 0 || x >= frame.W {
				continue
			}
			v := frame.At(x, y)
			if v > peak {
				peak = v
			}
			w := v - bg0
			mass += w
			xMoment += float32(x) * w
			yMoment += float32(y) * w
		}
	}
	return
}

func windowPeak(frame *luckyimage.Frame, cx, cy float32, r int) float32 {
	cix, ciy := int(cx), int(cy)
	var peak float32
	for dy := -r; dy <= r; dy++ {
		y := ciy + dy
		if y < 0 || y >= frame.H {
			continue
		}
		for dx := -r; dx <= r; dx++ {
			x := cix + dx
			if x < 0 || x >= frame.W {
				continue
			}
			if v := frame.At(x, y); v > peak {
				peak = v
			}
		}
	}
	return peak
}

// fitFWHM extracts a bilinearly sampled 1-D strip of length 2R+1 through
// (cx,cy) along the requested axis, subtracts the (locally constant) bg
// level, fits g(k) = a*exp(-(k-R)^2/(2c^2)) with a = v[R] fixed, and
// returns 2.35482*c for the c in [0.1,20] (step 0.1) minimising least
// squares.
func fitFWHM(frame *luckyimage.Frame, bg float32, cx, cy float32, r int, xAxis bool) float32 {
	n := 2*r + 1
	strip := make([]float32, n)
	for k := 0; k < n; k++ {
		offset := float32(k - r)
		var sx, sy float32
		if xAxis {
			sx, sy = cx+offset, cy
		} else {
			sx, sy = cx, cy+offset
		}
		v := frame.Sample(sx, sy, luckyimage.Bilinear) - bg
		if v < 0 {
			v = 0
		}
		strip[k] = v
	}

	a := strip[r]
	if a <= 0 {
		return 0
	}

	model := make([]float64, n)
	residual := make([]float64, n)
	bestC := float32(0.1)
	bestSSE := float64(-1)
	for c := float32(0.1); c <= 20.0001; c += 0.1 {
		for k := 0; k < n; k++ {
			d := float64(k - r)
			model[k] = float64(a) * math.Exp(-(d*d)/(2*float64(c)*float64(c)))
			residual[k] = model[k] - float64(strip[k])
		}
		sse := floats.Dot(residual, residual)
		if bestSSE < 0 || sse < bestSSE {
			bestSSE = sse
			bestC = c
		}
	}
	return 2.35482 * bestC
}
