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

package background

import (
	"math"
	"testing"

	"github.com/skywatch/luckystack/internal/luckyimage"
)

func TestEstimateOfFlatFrameIsFlat(t *testing.T) {
	f := luckyimage.NewFrame(128, 128)
	for i := range f.Data {
		f.Data[i] = 0.3
	}
	bg := Estimate(f, 5)
	for i, v := range bg.Data {
		if math.Abs(float64(v-0.3)) > 0.05 {
			t.Fatalf("pixel %d = %v, want ~0.3", i, v)
		}
	}
}

func TestEstimateIgnoresBrightStar(t *testing.T) {
	f := luckyimage.NewFrame(128, 128)
	for i := range f.Data {
		f.Data[i] = 0.2
	}
	// A small bright blob should not drag up the background estimate.
	for y := 60; y < 68; y++ {
		for x := 60; x < 68; x++ {
			f.Set(x, y, 0.95)
		}
	}
	bg := Estimate(f, 5)
	center := bg.At(64, 64)
	if center > 0.4 {
		t.Errorf("background at star location = %v, want close to surrounding 0.2 level", center)
	}
}

func TestEstimateOutputIsClippedAndFinite(t *testing.T) {
	f := luckyimage.NewFrame(64, 64)
	for i := range f.Data {
		f.Data[i] = float32(i%7) / 2.0 // includes values > 1
	}
	bg := Estimate(f, 3)
	for i, v := range bg.Data {
		if math.IsNaN(float64(v)) || v < 0 || v > 1 {
			t.Fatalf("pixel %d = %v, want finite value in [0,1]", i, v)
		}
	}
}
