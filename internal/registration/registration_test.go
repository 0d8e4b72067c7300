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
	"math"
	"testing"

	"github.com/skywatch/luckystack/internal/luckyimage"
	"github.com/skywatch/luckystack/internal/star"
)

func TestCalibrateSubtractsDarkAndDividesFlat(t *testing.T) {
	frame := luckyimage.NewFrame(2, 2)
	dark := luckyimage.NewFrame(2, 2)
	flat := luckyimage.NewFrame(2, 2)
	for i := range frame.Data {
		frame.Data[i] = 0.5
		dark.Data[i] = 0.1
		flat.Data[i] = 0.8
	}
	cal := Calibration{MasterDark: dark, MasterFlat: flat, FlatMean: 0.8, Pedestal: 0.01}
	out := Calibrate(frame, cal)
	want := (0.5 - 0.1 + 0.01) / 0.8 * 0.8
	for i, v := range out.Data {
		if math.Abs(float64(v-float32(want))) > 1e-5 {
			t.Errorf("pixel %d = %v, want %v", i, v, want)
		}
	}
}

func TestGlobalDisplacementMatchesKnownShift(t *testing.T) {
	template := []star.Star{{X: 10, Y: 10, Peak: 1}, {X: 20, Y: 30, Peak: 1}}
	current := []star.Star{{X: 11.3, Y: 9.3, Peak: 1}, {X: 21.3, Y: 29.3, Peak: 1}}
	d := GlobalDisplacement(current, template)
	if math.Abs(float64(d.DX-1.3)) > 0.01 || math.Abs(float64(d.DY-(-0.7))) > 0.01 {
		t.Errorf("displacement = %+v, want (1.3,-0.7)", d)
	}
}

func TestSeeingRejectedThresholds(t *testing.T) {
	stars := []star.Star{{Peak: 1, SizeX: 10, SizeY: 9}}
	if !SeeingRejected(stars, 9.5) {
		t.Error("expected rejection when mean size exceeds threshold")
	}
	if SeeingRejected(stars, 10.5) {
		t.Error("expected acceptance when mean size is below threshold")
	}
}

func TestTrackingRejectedThresholds(t *testing.T) {
	motion := Displacement{DX: 3, DY: 4} // length 5
	if !TrackingRejected(motion, 4.9) {
		t.Error("expected rejection above threshold")
	}
	if TrackingRejected(motion, 5.1) {
		t.Error("expected acceptance below threshold")
	}
}

func TestResampleUniformRoundTripsOnIdentity(t *testing.T) {
	src := luckyimage.NewFrame(16, 16)
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			src.Set(x, y, float32(x+y)/32)
		}
	}
	// Interior pixels only: sampleBilinear clamps into [1,W-2]x[1,H-2], so a
	// zero-displacement resample does not round-trip the outermost ring.
	out := ResampleUniform(src, Displacement{}, luckyimage.Bilinear)
	for y := 1; y < 15; y++ {
		for x := 1; x < 15; x++ {
			i := y*16 + x
			if math.Abs(float64(out.Data[i]-src.Data[i])) > 1e-5 {
				t.Errorf("pixel (%d,%d) = %v, want %v", x, y, out.Data[i], src.Data[i])
			}
		}
	}
}

func TestResampleDigitalAOIsFiniteEverywhere(t *testing.T) {
	src := luckyimage.NewFrame(20, 20)
	for i := range src.Data {
		src.Data[i] = 0.3
	}
	template := []star.Star{{X: 3, Y: 3, Peak: 1}, {X: 16, Y: 17, Peak: 1}}
	current := []star.Star{{X: 3.5, Y: 2.6, Peak: 1}, {X: 15.4, Y: 17.8, Peak: 1}}
	out := ResampleDigitalAO(src, current, template, luckyimage.Bilinear)
	for i, v := range out.Data {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			t.Fatalf("pixel %d not finite: %v", i, v)
		}
	}
}
