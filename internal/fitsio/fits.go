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

// Package fitsio is the monochrome-only FITS subset reader/writer and
// directory enumeration used at the pipeline's I/O boundary. Full FITS and
// XISF support are out of scope (spec.md §1); this package implements just
// enough of the format to round-trip the single-channel float32 frames the
// core operates on.
package fitsio

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/skywatch/luckystack/internal/perr"
)

// ListFrames globs dir for case-insensitive .fit/.fits files and returns
// them sorted lexicographically. The sort order fixes the template frame
// (index 0) and the "previous frame" sequence for the whole run.
func ListFrames(dir string) ([]string, error) {
	entries, err := filepath.Glob(filepath.Join(dir, "*"))
	if err != nil {
		return nil, perr.New(perr.IOError, "listing %s: %s", dir, err)
	}
	var files []string
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e))
		if ext == ".fit" || ext == ".fits" {
			files = append(files, e)
		}
	}
	if len(files) == 0 {
		return nil, perr.New(perr.UsageError, "no .fit/.fits files found in %s", dir)
	}
	sort.Strings(files)
	return files, nil
}
