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

// Package detect writes and reads the star-detection handoff document
// (spec.md §6): the per-frame star lists produced by the detection stage,
// serialized as XML. Read parses such a document back into a detection
// table; the pipeline's ImageIntegration routine does not read this file
// and always runs detection in-process.
package detect

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/skywatch/luckystack/internal/perr"
	"github.com/skywatch/luckystack/internal/star"
)

// Version is the only StarDetection document version this package writes
// or accepts.
const Version = "1.0"

type xmlStar struct {
	XMLName    xml.Name `xml:"Star"`
	ID         int      `xml:"id,attr"`
	X          float32  `xml:"x,attr"`
	Y          float32  `xml:"y,attr"`
	Background float32  `xml:"background,attr"`
	Peak       float32  `xml:"peak,attr"`
	SizeX      float32  `xml:"sizeX,attr"`
	SizeY      float32  `xml:"sizeY,attr"`
}

type xmlFrame struct {
	XMLName xml.Name  `xml:"Frame"`
	ID      int       `xml:"id,attr"`
	Stars   []xmlStar `xml:"Star"`
}

type xmlDoc struct {
	XMLName xml.Name   `xml:"StarDetection"`
	Version string     `xml:"version,attr"`
	Frames  []xmlFrame `xml:"Frame"`
}

// Write serializes table (one star list per frame index) to path as the
// StarDetection handoff document.
func Write(path string, table [][]star.Star) error {
	doc := xmlDoc{Version: Version}
	for i, stars := range table {
		frame := xmlFrame{ID: i}
		for _, s := range stars {
			frame.Stars = append(frame.Stars, xmlStar{
				ID: s.ID, X: s.X, Y: s.Y, Background: s.Background,
				Peak: s.Peak, SizeX: s.SizeX, SizeY: s.SizeY,
			})
		}
		doc.Frames = append(doc.Frames, frame)
	}

	f, err := os.Create(path)
	if err != nil {
		return perr.New(perr.IOError, "creating %s: %s", path, err)
	}
	defer f.Close()

	if _, err := f.WriteString(xml.Header); err != nil {
		return perr.New(perr.IOError, "writing %s: %s", path, err)
	}
	enc := xml.NewEncoder(f)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return perr.New(perr.IOError, "encoding %s: %s", path, err)
	}
	return nil
}

// Read parses the StarDetection handoff document at path into an ordered
// detection table indexed by frame id. It fails on an unknown root
// element, an unknown child of StarDetection or Frame, or a version
// mismatch. Content nested inside a Star element is skipped unchecked.
func Read(path string) ([][]star.Star, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, perr.New(perr.IOError, "opening %s: %s", path, err)
	}
	defer f.Close()

	dec := xml.NewDecoder(f)
	var table [][]star.Star
	sawRoot := false

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, perr.New(perr.XMLError, "parsing %s: %s", path, err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch start.Name.Local {
		case "StarDetection":
			if sawRoot {
				return nil, perr.New(perr.XMLError, "%s: duplicate root element", path)
			}
			sawRoot = true
			version := attrValue(start, "version")
			if version != Version {
				return nil, perr.New(perr.XMLError, "%s: unsupported version %q", path, version)
			}
		case "Frame":
			if !sawRoot {
				return nil, perr.New(perr.XMLError, "%s: unexpected root element <%s>", path, start.Name.Local)
			}
			id, err := strconv.Atoi(attrValue(start, "id"))
			if err != nil {
				return nil, perr.New(perr.XMLError, "%s: Frame missing valid id attribute", path)
			}
			stars, err := readStars(dec, path)
			if err != nil {
				return nil, err
			}
			table = growTo(table, id)
			table[id] = stars
		default:
			return nil, perr.New(perr.XMLError, "%s: unexpected element <%s>", path, start.Name.Local)
		}
	}
	if !sawRoot {
		return nil, perr.New(perr.XMLError, "%s: missing StarDetection root element", path)
	}
	return table, nil
}

func readStars(dec *xml.Decoder, path string) ([]star.Star, error) {
	var stars []star.Star
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, perr.New(perr.XMLError, "parsing %s: %s", path, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local != "Star" {
				return nil, perr.New(perr.XMLError, "%s: unexpected element <%s> inside Frame", path, t.Name.Local)
			}
			s, err := parseStar(t)
			if err != nil {
				return nil, perr.New(perr.XMLError, "%s: %s", path, err)
			}
			stars = append(stars, s)
			if err := dec.Skip(); err != nil {
				return nil, perr.New(perr.XMLError, "parsing %s: %s", path, err)
			}
		case xml.EndElement:
			if t.Name.Local == "Frame" {
				return stars, nil
			}
		}
	}
}

func parseStar(t xml.StartElement) (star.Star, error) {
	var s star.Star
	id, err := strconv.Atoi(attrValue(t, "id"))
	if err != nil {
		return s, fmt.Errorf("Star missing valid id attribute")
	}
	s.ID = id
	s.X = parseFloatAttr(t, "x")
	s.Y = parseFloatAttr(t, "y")
	s.Background = parseFloatAttr(t, "background")
	s.Peak = parseFloatAttr(t, "peak")
	s.SizeX = parseFloatAttr(t, "sizeX")
	s.SizeY = parseFloatAttr(t, "sizeY")
	return s, nil
}

func attrValue(t xml.StartElement, name string) string {
	for _, a := range t.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

func parseFloatAttr(t xml.StartElement, name string) float32 {
	v, _ := strconv.ParseFloat(attrValue(t, name), 32)
	return float32(v)
}

func growTo(table [][]star.Star, id int) [][]star.Star {
	for len(table) <= id {
		table = append(table, nil)
	}
	return table
}
