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

package registration

import (
	"gonum.org/v1/gonum/floats"

	"github.com/skywatch/luckystack/internal/luckyimage"
	"github.com/skywatch/luckystack/internal/star"
)

// ResampleUniform resamples src at (x+d.DX, y+d.DY) for every output
// pixel (x,y), using the same global displacement everywhere.
func ResampleUniform(src *luckyimage.Frame, d Displacement, kernel luckyimage.Kernel) *luckyimage.Frame {
	out := luckyimage.NewFrame(src.W, src.H)
	for y := 0; y < src.H; y++ {
		for x := 0; x < src.W; x++ {
			out.Set(x, y, src.Sample(float32(x)+d.DX, float32(y)+d.DY, kernel))
		}
	}
	return out
}

// ResampleDigitalAO resamples src with a per-pixel displacement computed
// as an inverse-square-distance-weighted average of every valid star's
// own (current-template) displacement (spec.md §4.6 step 6). This is the
// "digital adaptive optics" mode.
func ResampleDigitalAO(src *luckyimage.Frame, current, template []star.Star, kernel luckyimage.Kernel) *luckyimage.Frame {
	type valid struct {
		x, y   float32
		dx, dy float32
	}
	var stars []valid
	for k := range current {
		if k >= len(template) || !current[k].Valid() || !template[k].Valid() {
			continue
		}
		stars = append(stars, valid{
			x: current[k].X, y: current[k].Y,
			dx: current[k].X - template[k].X, dy: current[k].Y - template[k].Y,
		})
	}

	out := luckyimage.NewFrame(src.W, src.H)
	if len(stars) == 0 {
		// No reliable stars at all: fall back to an unregistered copy.
		copy(out.Data, src.Data)
		return out
	}

	weights := make([]float64, len(stars))
	wdx := make([]float64, len(stars))
	wdy := make([]float64, len(stars))

	for y := 0; y < src.H; y++ {
		fy := float32(y)
		for x := 0; x < src.W; x++ {
			fx := float32(x)
			for i, s := range stars {
				ddx := s.x - fx
				ddy := s.y - fy
				w := 1.0 / float64(ddx*ddx+ddy*ddy+1)
				weights[i] = w
				wdx[i] = w * float64(s.dx)
				wdy[i] = w * float64(s.dy)
			}
			wsum := floats.Sum(weights)
			dx := float32(floats.Sum(wdx) / wsum)
			dy := float32(floats.Sum(wdy) / wsum)
			out.Set(x, y, src.Sample(fx+dx, fy+dy, kernel))
		}
	}
	return out
}
