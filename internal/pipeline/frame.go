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

// Package pipeline is the driver: it enumerates input frames, orchestrates
// the detection+tracking and registration+integration stages over the
// worker pool, and publishes the final result (spec.md §2, §4.7).
package pipeline

import (
	"github.com/skywatch/luckystack/internal/fitsio"
	"github.com/skywatch/luckystack/internal/luckyimage"
	"github.com/skywatch/luckystack/internal/perr"
)

// loadFrame reads path and enforces the fixed W x H established by the
// first successfully loaded frame of the run; any later frame that
// disagrees is a fatal dimension mismatch (spec.md §3).
func loadFrame(path string, w, h int) (*luckyimage.Frame, error) {
	f, err := fitsio.Read(path)
	if err != nil {
		return nil, err
	}
	if w > 0 && (f.W != w || f.H != h) {
		return nil, perr.New(perr.DimensionMismatch, "%s is %dx%d, expected %dx%d", path, f.W, f.H, w, h)
	}
	return f, nil
}
