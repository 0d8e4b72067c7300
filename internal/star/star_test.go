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
	"testing"

	"github.com/skywatch/luckystack/internal/background"
	"github.com/skywatch/luckystack/internal/luckyimage"
)

// gaussianFrame paints w*h Gaussian blobs of the given sigma at centers
// onto a flat-background frame.
func gaussianFrame(w, h int, sigma float32, centers [][2]float32) *luckyimage.Frame {
	f := luckyimage.NewFrame(w, h)
	for i := range f.Data {
		f.Data[i] = 0.05
	}
	for _, c := range centers {
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				dx := float32(x) - c[0]
				dy := float32(y) - c[1]
				v := float32(math.Exp(-float64(dx*dx+dy*dy) / (2 * float64(sigma*sigma))))
				f.Set(x, y, f.At(x, y)+v*0.8)
			}
		}
	}
	return f
}

func TestDetectFindsWellSeparatedStars(t *testing.T) {
	centers := [][2]float32{{20, 20}, {100, 20}, {20, 100}, {100, 100}, {64, 64}}
	f := gaussianFrame(128, 128, 2, centers)
	bg := background.Estimate(f, 5)

	p := Params{ApproxFWHM: 5, MinPeak: 0.2, SaturationThreshold: 0.9}
	stars := Detect(f, bg, p)

	if len(stars) != len(centers) {
		t.Fatalf("got %d stars, want %d", len(stars), len(centers))
	}
	for i, s := range stars {
		if s.ID != i {
			t.Errorf("star %d has id %d, want %d", i, s.ID, i)
		}
		if !s.Valid() {
			t.Errorf("star %d invalid", i)
		}
	}
}

func TestTrackPreservesCardinalityAndIdentity(t *testing.T) {
	centers := [][2]float32{{30, 30}, {90, 40}, {50, 90}}
	f := gaussianFrame(128, 128, 2, centers)
	bg := background.Estimate(f, 5)
	p := Params{ApproxFWHM: 5, MinPeak: 0.2, SaturationThreshold: 0.9}

	template := Detect(f, bg, p)
	if len(template) != len(centers) {
		t.Fatalf("template detection found %d stars, want %d", len(template), len(centers))
	}

	tracked := Track(template, f, p)
	if len(tracked) != len(template) {
		t.Fatalf("tracked list length %d, want %d", len(tracked), len(template))
	}
	for i := range template {
		if tracked[i].ID != template[i].ID {
			t.Errorf("star %d id drifted: got %d, want %d", i, tracked[i].ID, template[i].ID)
		}
		dx := tracked[i].X - template[i].X
		dy := tracked[i].Y - template[i].Y
		if math.Abs(float64(dx)) > 0.3 || math.Abs(float64(dy)) > 0.3 {
			t.Errorf("star %d drifted too far: (%v,%v) vs (%v,%v)", i, tracked[i].X, tracked[i].Y, template[i].X, template[i].Y)
		}
	}
}

func TestTrackInvalidatesStarsNearBorder(t *testing.T) {
	r := Params{ApproxFWHM: 5}.Radius()
	prev := []Star{{ID: 0, X: float32(r), Y: 60, Background: 0.05, Peak: 0.5, SizeX: 4, SizeY: 4}}
	f := luckyimage.NewFrame(128, 128)
	for i := range f.Data {
		f.Data[i] = 0.05
	}
	tracked := Track(prev, f, Params{ApproxFWHM: 5, MinPeak: 0.2, SaturationThreshold: 0.9})
	if tracked[0].Peak != 0 {
		t.Errorf("expected border star invalidated, got peak %v", tracked[0].Peak)
	}
}
