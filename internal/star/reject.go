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

// rejectInvalid invalidates (peak=0) any candidate failing the per-star
// thresholds of spec.md §4.4 step 5: too faint, saturated, or too small
// relative to the expected FWHM. Border rejection already happened during
// measurement.
func rejectInvalid(candidates []Star, p Params, r, w, h int) {
	for i := range candidates {
		s := &candidates[i]
		if s.Peak < p.MinPeak {
			s.Peak = 0
			continue
		}
		if s.Peak > p.SaturationThreshold {
			s.Peak = 0
			continue
		}
		if s.SizeX < 0.5*p.ApproxFWHM || s.SizeY < 0.5*p.ApproxFWHM {
			s.Peak = 0
			continue
		}
	}
}

// rejectProximity invalidates any candidate within distance 4*approxFWHM
// of another surviving candidate (squared compare), per spec.md §4.4.
func rejectProximity(candidates []Star, approxFWHM float32) {
	threshold := 4 * approxFWHM
	thresholdSq := threshold * threshold

	n := len(candidates)
	tooClose := make([]bool, n)
	for i := 0; i < n; i++ {
		if candidates[i].Peak == 0 {
			continue
		}
		for j := i + 1; j < n; j++ {
			if candidates[j].Peak == 0 {
				continue
			}
			dx := candidates[i].X - candidates[j].X
			dy := candidates[i].Y - candidates[j].Y
			if dx*dx+dy*dy < thresholdSq {
				tooClose[i] = true
				tooClose[j] = true
			}
		}
	}
	for i, close := range tooClose {
		if close {
			candidates[i].Peak = 0
		}
	}
}
