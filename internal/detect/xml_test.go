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

package detect

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/skywatch/luckystack/internal/star"
)

func sampleTable() [][]star.Star {
	return [][]star.Star{
		{{ID: 0, X: 10, Y: 20, Background: 0.1, Peak: 0.5, SizeX: 4, SizeY: 4.2}},
		{{ID: 0, X: 10.1, Y: 19.9, Background: 0.1, Peak: 0.48, SizeX: 4.1, SizeY: 4.1}},
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	table := sampleTable()
	path := filepath.Join(t.TempDir(), "star_detections.xml")
	if err := Write(path, table); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(got) != len(table) {
		t.Fatalf("got %d frames, want %d", len(got), len(table))
	}
	for i := range table {
		if len(got[i]) != len(table[i]) {
			t.Fatalf("frame %d: got %d stars, want %d", i, len(got[i]), len(table[i]))
		}
		if got[i][0] != table[i][0] {
			t.Errorf("frame %d star 0: got %+v, want %+v", i, got[i][0], table[i][0])
		}
	}
}

func TestReadRejectsUnknownRoot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.xml")
	os.WriteFile(path, []byte(`<?xml version="1.0"?><NotStarDetection version="1.0"></NotStarDetection>`), 0644)
	if _, err := Read(path); err == nil {
		t.Fatal("expected error for unknown root element")
	}
}

func TestReadRejectsUnknownChild(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.xml")
	os.WriteFile(path, []byte(`<?xml version="1.0"?><StarDetection version="1.0"><Bogus/></StarDetection>`), 0644)
	if _, err := Read(path); err == nil {
		t.Fatal("expected error for unknown child element")
	}
}

func TestReadRejectsVersionMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.xml")
	os.WriteFile(path, []byte(`<?xml version="1.0"?><StarDetection version="2.0"></StarDetection>`), 0644)
	if _, err := Read(path); err == nil {
		t.Fatal("expected error for version mismatch")
	}
}

func TestWriteProducesStarDetectionRoot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.xml")
	if err := Write(path, sampleTable()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), "<StarDetection") {
		t.Errorf("expected StarDetection root element, got: %s", data)
	}
}
