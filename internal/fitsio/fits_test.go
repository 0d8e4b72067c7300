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

package fitsio

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/skywatch/luckystack/internal/luckyimage"
)

func TestWriteReadRoundTrip(t *testing.T) {
	f := luckyimage.NewFrame(8, 6)
	for i := range f.Data {
		f.Data[i] = float32(i) / float32(len(f.Data))
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "frame.fits")
	if err := Write(path, f); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.W != f.W || got.H != f.H {
		t.Fatalf("dimensions mismatch: got %dx%d, want %dx%d", got.W, got.H, f.W, f.H)
	}
	for i := range f.Data {
		if math.Abs(float64(got.Data[i]-f.Data[i])) > 1e-6 {
			t.Errorf("pixel %d = %v, want %v", i, got.Data[i], f.Data[i])
		}
	}
}

func TestListFramesSortsLexicographically(t *testing.T) {
	dir := t.TempDir()
	f := luckyimage.NewFrame(2, 2)
	names := []string{"b.fits", "a.FIT", "c.fits"}
	for _, n := range names {
		if err := Write(filepath.Join(dir, n), f); err != nil {
			t.Fatalf("Write %s: %v", n, err)
		}
	}
	got, err := ListFrames(dir)
	if err != nil {
		t.Fatalf("ListFrames: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 frames, got %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i-1] >= got[i] {
			t.Errorf("ListFrames not sorted: %v", got)
		}
	}
}

func TestListFramesEmptyDirIsUsageError(t *testing.T) {
	dir := t.TempDir()
	if _, err := ListFrames(dir); err == nil {
		t.Fatal("expected error for empty directory")
	}
}
