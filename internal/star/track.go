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

import "github.com/skywatch/luckystack/internal/luckyimage"

// Track re-measures every star of prev in frame, preserving list length
// and id mapping (spec.md §4.5). A star whose previous-frame box crosses
// a border is marked invalid (peak=0) but kept at its last known position;
// otherwise centroid, peak and FWHM are re-measured over a fresh box
// around the previous centroid, and background is carried over from prev
// rather than re-estimated.
func Track(prev []Star, frame *luckyimage.Frame, p Params) []Star {
	r := p.Radius()
	border := float32(2 * r)

	out := make([]Star, len(prev))
	for i, s := range prev {
		out[i] = s
		if s.X < border || s.X > float32(frame.W)-border || s.Y < border || s.Y > float32(frame.H)-border {
			out[i].Peak = 0
			continue
		}

		peak, mass, xMoment, yMoment := windowStats(frame, s.X, s.Y, r, s.Background)
		if mass == 0 {
			out[i].Peak = 0
			continue
		}
		cx := xMoment / mass
		cy := yMoment / mass

		sizeX := fitFWHM(frame, s.Background, cx, cy, r, true)
		sizeY := fitFWHM(frame, s.Background, cx, cy, r, false)

		out[i] = Star{
			ID:         s.ID,
			X:          cx,
			Y:          cy,
			Background: s.Background,
			Peak:       peak,
			SizeX:      sizeX,
			SizeY:      sizeY,
		}
	}
	return out
}
