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

package pipeline

import (
	"fmt"
	"math"
	"path/filepath"
	"testing"

	"github.com/skywatch/luckystack/internal/config"
	"github.com/skywatch/luckystack/internal/fitsio"
	"github.com/skywatch/luckystack/internal/luckyimage"
)

// writeGaussianFrame writes a w*h single-channel FITS frame with Gaussian
// blobs at the given centers plus a flat background, shifted uniformly by
// (dx,dy) relative to the first frame's centers.
func writeGaussianFrame(t *testing.T, path string, w, h int, centers [][2]float32, dx, dy float32) {
	t.Helper()
	f := luckyimage.NewFrame(w, h)
	for i := range f.Data {
		f.Data[i] = 0.05
	}
	for _, c := range centers {
		cx, cy := c[0]+dx, c[1]+dy
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				ddx := float32(x) - cx
				ddy := float32(y) - cy
				v := float32(math.Exp(-float64(ddx*ddx+ddy*ddy) / (2 * 4)))
				f.Set(x, y, f.At(x, y)+v*0.8)
			}
		}
	}
	if err := fitsio.Write(path, f); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

func testCenters() [][2]float32 {
	return [][2]float32{{20, 20}, {44, 20}, {20, 44}, {44, 44}, {32, 32}}
}

func writeTestFrames(t *testing.T, n int) string {
	t.Helper()
	dir := t.TempDir()
	centers := testCenters()
	for i := 0; i < n; i++ {
		path := filepath.Join(dir, fmt.Sprintf("frame%03d.fits", i))
		writeGaussianFrame(t, path, 64, 64, centers, float32(i)*0.1, 0)
	}
	return dir
}

func baseConfig(dir string) *config.Config {
	cfg := config.Default()
	cfg.InputPath = dir
	cfg.ApproxFWHM = 4
	cfg.MinPeak = 0.1
	cfg.NumWorkers = 2
	return cfg
}

func TestRunStarDetectionPreviewFindsAllCenters(t *testing.T) {
	dir := writeTestFrames(t, 3)
	cfg := baseConfig(dir)
	cfg.Routine = config.StarDetectionPreview

	result, err := Run(cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Stars) != len(testCenters()) {
		t.Fatalf("got %d stars, want %d", len(result.Stars), len(testCenters()))
	}
}

func TestRunStarDetectionAlignmentWritesXML(t *testing.T) {
	dir := writeTestFrames(t, 3)
	cfg := baseConfig(dir)
	cfg.Routine = config.StarDetectionAlignment

	result, err := Run(cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.DetectionTable) != 3 {
		t.Fatalf("detection table has %d entries, want 3", len(result.DetectionTable))
	}
	for i, stars := range result.DetectionTable {
		if len(stars) != len(testCenters()) {
			t.Errorf("frame %d: got %d stars, want %d", i, len(stars), len(testCenters()))
		}
	}
}

func TestRunImageIntegrationProducesClippedFrame(t *testing.T) {
	dir := writeTestFrames(t, 3)
	cfg := baseConfig(dir)
	cfg.Routine = config.ImageIntegration

	result, err := Run(cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Integration == nil {
		t.Fatal("expected an integrated frame")
	}
	if result.NumIntegrated == 0 {
		t.Fatal("expected at least one integrated frame")
	}
	for i, v := range result.Integration.Data {
		if v < 0 || v > 1 {
			t.Fatalf("pixel %d = %v, not clipped to [0,1]", i, v)
		}
	}
}

func TestRunRejectsDimensionMismatch(t *testing.T) {
	dir := t.TempDir()
	writeGaussianFrame(t, filepath.Join(dir, "a.fits"), 64, 64, testCenters(), 0, 0)
	writeGaussianFrame(t, filepath.Join(dir, "b.fits"), 32, 32, testCenters(), 0, 0)

	cfg := baseConfig(dir)
	cfg.Routine = config.StarDetectionAlignment
	cfg.NumWorkers = 1

	if _, err := Run(cfg); err == nil {
		t.Fatal("expected a dimension mismatch error")
	}
}
