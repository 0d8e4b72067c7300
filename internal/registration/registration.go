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

// Package registration implements spec.md §4.6: calibration, global or
// per-pixel ("digital AO") displacement estimation, resampling, and the
// seeing/tracking rejection tests applied before a frame is accumulated.
package registration

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/skywatch/luckystack/internal/luckyimage"
	"github.com/skywatch/luckystack/internal/star"
)

// Calibration holds the optional master dark/flat and pedestal applied
// before registration. A nil MasterDark or MasterFlat skips that step.
type Calibration struct {
	MasterDark *luckyimage.Frame
	MasterFlat *luckyimage.Frame
	FlatMean   float32
	Pedestal   float32
}

// Calibrate returns a calibrated copy of frame: dark-subtract plus
// pedestal, then flat-divide times flat_mean, each only if the
// corresponding master frame is present.
func Calibrate(frame *luckyimage.Frame, cal Calibration) *luckyimage.Frame {
	out := frame.Clone()
	if cal.MasterDark != nil {
		out.SubInPlace(cal.MasterDark)
		out.AddScalar(cal.Pedestal)
	}
	if cal.MasterFlat != nil {
		out.DivInPlace(cal.MasterFlat)
		out.MulScalar(cal.FlatMean)
	}
	return out
}

// Displacement is a 2-D pixel offset.
type Displacement struct {
	DX, DY float32
}

func (d Displacement) Length() float32 {
	return float32(math.Sqrt(float64(d.DX*d.DX + d.DY*d.DY)))
}

// GlobalDisplacement computes the mean of (current[k]-template[k]) over
// valid k. Per spec.md §9's documented deviation, the divisor is
// len(current) (including invalidated stars), matching the source's
// observed (likely buggy) behaviour rather than the valid-only count.
func GlobalDisplacement(current, template []star.Star) Displacement {
	if len(current) == 0 {
		return Displacement{}
	}
	var sx, sy []float64
	for k := range current {
		if k >= len(template) || !current[k].Valid() || !template[k].Valid() {
			continue
		}
		sx = append(sx, float64(current[k].X-template[k].X))
		sy = append(sy, float64(current[k].Y-template[k].Y))
	}
	if len(sx) == 0 {
		return Displacement{}
	}
	return Displacement{
		DX: float32(sumF64(sx) / float64(len(current))),
		DY: float32(sumF64(sy) / float64(len(current))),
	}
}

// InterFrameMotion computes the mean of (current[k]-previous[k]) over
// valid k, dividing by the count of valid comparisons — used purely for
// the tracking-error rejection test, not for the accumulation divisor.
func InterFrameMotion(current, previous []star.Star) Displacement {
	var sx, sy []float64
	for k := range current {
		if k >= len(previous) || !current[k].Valid() || !previous[k].Valid() {
			continue
		}
		sx = append(sx, float64(current[k].X-previous[k].X))
		sy = append(sy, float64(current[k].Y-previous[k].Y))
	}
	if len(sx) == 0 {
		return Displacement{}
	}
	return Displacement{DX: float32(stat.Mean(sx, nil)), DY: float32(stat.Mean(sy, nil))}
}

func sumF64(a []float64) float64 {
	var s float64
	for _, v := range a {
		s += v
	}
	return s
}

// MeanSize returns the mean sizeX/sizeY over valid stars, used for the
// seeing rejection test.
func MeanSize(stars []star.Star) (meanX, meanY float32) {
	var sx, sy []float64
	for _, s := range stars {
		if !s.Valid() {
			continue
		}
		sx = append(sx, float64(s.SizeX))
		sy = append(sy, float64(s.SizeY))
	}
	if len(sx) == 0 {
		return 0, 0
	}
	return float32(stat.Mean(sx, nil)), float32(stat.Mean(sy, nil))
}

// SeeingRejected reports whether a frame should be dropped for seeing
// quality: max(mean sizeX, mean sizeY) > threshold.
func SeeingRejected(stars []star.Star, threshold float32) bool {
	mx, my := MeanSize(stars)
	m := mx
	if my > m {
		m = my
	}
	return m > threshold
}

// TrackingRejected reports whether a frame should be dropped for
// excessive inter-frame motion: |Delta| > threshold.
func TrackingRejected(motion Displacement, threshold float32) bool {
	return motion.Length() > threshold
}
