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

// Package luckyimage implements the single-channel float image buffer the
// rest of the pipeline operates on: allocation, in-place arithmetic, and
// the nearest/bilinear/Lanczos-3 samplers used by detection and
// registration alike.
package luckyimage

import "math"

// Frame is a fixed W*H single-channel float32 image. All pipeline math
// happens in float; integer source data is widened on load at the I/O
// boundary (see internal/fitsio) rather than carried as a distinct type.
type Frame struct {
	W, H int
	Data []float32
}

func NewFrame(w, h int) *Frame {
	return &Frame{W: w, H: h, Data: make([]float32, w*h)}
}

func (f *Frame) At(x, y int) float32 {
	return f.Data[y*f.W+x]
}

func (f *Frame) Set(x, y int, v float32) {
	f.Data[y*f.W+x] = v
}

func (f *Frame) SameSize(o *Frame) bool {
	return f.W == o.W && f.H == o.H
}

func (f *Frame) Clone() *Frame {
	c := &Frame{W: f.W, H: f.H, Data: make([]float32, len(f.Data))}
	copy(c.Data, f.Data)
	return c
}

// SubInPlace computes f -= o pixelwise.
func (f *Frame) SubInPlace(o *Frame) {
	for i := range f.Data {
		f.Data[i] -= o.Data[i]
	}
}

// AddInPlace computes f += o pixelwise.
func (f *Frame) AddInPlace(o *Frame) {
	for i := range f.Data {
		f.Data[i] += o.Data[i]
	}
}

// DivInPlace computes f /= o pixelwise.
func (f *Frame) DivInPlace(o *Frame) {
	for i := range f.Data {
		f.Data[i] /= o.Data[i]
	}
}

func (f *Frame) AddScalar(c float32) {
	for i := range f.Data {
		f.Data[i] += c
	}
}

func (f *Frame) MulScalar(c float32) {
	for i := range f.Data {
		f.Data[i] *= c
	}
}

// Clip01 clamps every pixel into [0,1].
func (f *Frame) Clip01() {
	for i, v := range f.Data {
		if v < 0 {
			f.Data[i] = 0
		} else if v > 1 {
			f.Data[i] = 1
		}
	}
}

// Kernel selects a resampling method. The core treats this as a tagged
// enum rather than runtime dispatch on a polymorphic buffer type.
type Kernel int

const (
	Nearest Kernel = iota
	Bilinear
	Lanczos3
)

// Sample draws a single pixel value at sub-pixel coordinates (x,y) using
// the given kernel. All samplers are total: they clamp into the domain
// documented per kernel rather than ever reading out of bounds.
func (f *Frame) Sample(x, y float32, k Kernel) float32 {
	switch k {
	case Nearest:
		return f.sampleNearest(x, y)
	case Lanczos3:
		return f.sampleLanczos(x, y, 3)
	default:
		return f.sampleBilinear(x, y)
	}
}

func clampf(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func (f *Frame) sampleNearest(x, y float32) float32 {
	xi := int(math.Round(float64(x)))
	yi := int(math.Round(float64(y)))
	if xi < 0 {
		xi = 0
	} else if xi > f.W-1 {
		xi = f.W - 1
	}
	if yi < 0 {
		yi = 0
	} else if yi > f.H-1 {
		yi = f.H - 1
	}
	return f.At(xi, yi)
}

// sampleBilinear clamps x and y independently into [1, W-2] x [1, H-2]
// before sampling. A transcription of this routine once clamped an
// out-of-range y by reassigning x; both axes are clamped to their own
// range here.
func (f *Frame) sampleBilinear(x, y float32) float32 {
	x = clampf(x, 1, float32(f.W-2))
	y = clampf(y, 1, float32(f.H-2))

	xl := int(math.Floor(float64(x)))
	yl := int(math.Floor(float64(y)))
	xh, yh := xl+1, yl+1
	xr, yr := x-float32(xl), y-float32(yl)

	vyl := f.At(xl, yl)*(1-xr) + f.At(xh, yl)*xr
	vyh := f.At(xl, yh)*(1-xr) + f.At(xh, yh)*xr
	return vyl*(1-yr) + vyh*yr
}

// sampleLanczos clamps x and y independently into [n, W-n-1] x [n, H-n-1],
// then applies a separable 2n x 2n Lanczos-n kernel. Positive and negative
// weighted contributions are accumulated separately and combined as
// (sp-sn)/(wp-wn) for stability when the weight sum is near zero.
func (f *Frame) sampleLanczos(x, y float32, n int) float32 {
	x = clampf(x, float32(n), float32(f.W-n-1))
	y = clampf(y, float32(n), float32(f.H-n-1))

	xi := int(math.Floor(float64(x)))
	yi := int(math.Floor(float64(y)))

	wx := make([]float32, 2*n)
	wy := make([]float32, 2*n)
	for i := 0; i < 2*n; i++ {
		ox := xi - n + 1 + i
		wx[i] = lanczos(x-float32(ox), n)
		oy := yi - n + 1 + i
		wy[i] = lanczos(y-float32(oy), n)
	}

	var sp, sn, wp, wn float32
	for j := 0; j < 2*n; j++ {
		oy := yi - n + 1 + j
		for i := 0; i < 2*n; i++ {
			ox := xi - n + 1 + i
			w := wx[i] * wy[j]
			v := f.At(ox, oy)
			if w >= 0 {
				wp += w
				sp += w * v
			} else {
				wn += -w
				sn += -w * v
			}
		}
	}
	denom := wp - wn
	if denom == 0 {
		return 0
	}
	return (sp - sn) / denom
}

// sinc(x) = sin(pi*x)/(pi*x), with sinc(0) = 1.
func sinc(x float32) float32 {
	if x > -1e-7 && x < 1e-7 {
		return 1
	}
	px := math.Pi * float64(x)
	return float32(math.Sin(px) / px)
}

// lanczos(x,n) = sinc(x)*sinc(x/n) for |x|<n, else 0.
func lanczos(x float32, n int) float32 {
	nf := float32(n)
	if x <= -nf || x >= nf {
		return 0
	}
	return sinc(x) * sinc(x/nf)
}
