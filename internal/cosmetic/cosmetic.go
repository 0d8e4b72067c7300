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

// Package cosmetic implements the 3x3 mean/variance outlier corrector
// (spec.md §4.3).
package cosmetic

import (
	"math"

	"github.com/klauspost/cpuid"

	"github.com/skywatch/luckystack/internal/logging"
	"github.com/skywatch/luckystack/internal/luckyimage"
	"github.com/skywatch/luckystack/internal/numeric"
)

func init() {
	// The teacher's 3x3 median filter dispatches to an AVX2 assembly
	// routine when available. This package stops short of hand-written
	// assembly, but keeps the same feature probe so a vectorized path
	// could be slotted in later without touching any call site.
	logging.LogPrintf("cosmetic: AVX2 available: %v\n", cpuid.CPU.AVX2())
}

// gather collects the available pixels of the 3x3 neighbourhood of (x,y),
// clipped at image borders, into buf and returns the used length.
func gather(f *luckyimage.Frame, x, y int, buf []float32) int {
	n := 0
	for dy := -1; dy <= 1; dy++ {
		ny := y + dy
		if ny < 0 || ny >= f.H {
			continue
		}
		for dx := -1; dx <= 1; dx++ {
			nx := x + dx
			if nx < 0 || nx >= f.W {
				continue
			}
			buf[n] = f.At(nx, ny)
			n++
		}
	}
	return n
}

// Correct applies the 3x3 mean/variance outlier test to every pixel of
// src. A pixel (v-mean)^2 > 4*variance is an outlier. When invalidate is
// false the outlier is replaced by the neighbourhood median; when true, by
// NaN. Returns the corrected frame and the number of outliers found.
func Correct(src *luckyimage.Frame, invalidate bool) (out *luckyimage.Frame, numOutliers int) {
	out = src.Clone()

	buf := make([]float32, 9)
	for y := 0; y < src.H; y++ {
		for x := 0; x < src.W; x++ {
			n := gather(src, x, y, buf)
			mean, variance := meanVar(buf[:n])
			v := src.At(x, y)
			d := v - mean
			if d*d <= 4*variance {
				continue
			}
			numOutliers++
			if invalidate {
				out.Set(x, y, float32(math.NaN()))
			} else {
				out.Set(x, y, numeric.Median(append([]float32(nil), buf[:n]...)))
			}
		}
	}
	return out, numOutliers
}

func meanVar(a []float32) (mean, variance float32) {
	var sum float32
	for _, v := range a {
		sum += v
	}
	mean = sum / float32(len(a))
	var sq float32
	for _, v := range a {
		d := v - mean
		sq += d * d
	}
	variance = sq / float32(len(a))
	return mean, variance
}
