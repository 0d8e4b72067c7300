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
	"bufio"
	"encoding/binary"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/skywatch/luckystack/internal/luckyimage"
	"github.com/skywatch/luckystack/internal/perr"
)

const blockSize = 2880
const cardSize = 80

var intCardRE = regexp.MustCompile(`^([A-Z0-9_-]+)\s*=\s*(-?\d+)`)
var floatCardRE = regexp.MustCompile(`^([A-Z0-9_-]+)\s*=\s*(-?[0-9.]+(?:[eE][-+]?[0-9]+)?)`)

// header holds the small set of keywords this reader understands.
type header struct {
	bitpix int
	naxis1 int
	naxis2 int
	bzero  float64
	bscale float64
}

func parseHeader(r *bufio.Reader) (*header, error) {
	h := &header{bscale: 1}
	sawEnd := false
	read := 0
	for !sawEnd {
		block := make([]byte, blockSize)
		if _, err := io.ReadFull(r, block); err != nil {
			return nil, perr.New(perr.IOError, "reading FITS header block: %s", err)
		}
		read += blockSize
		for c := 0; c < blockSize/cardSize; c++ {
			card := string(block[c*cardSize : (c+1)*cardSize])
			trimmed := strings.TrimRight(card, " ")
			if trimmed == "END" {
				sawEnd = true
				break
			}
			if strings.HasPrefix(trimmed, "SIMPLE") && !strings.Contains(trimmed, "T") {
				return nil, perr.New(perr.IOError, "SIMPLE card does not indicate a conforming FITS file")
			}
			parseCard(h, card)
		}
		if read > blockSize*64 && !sawEnd {
			return nil, perr.New(perr.IOError, "FITS header exceeds sane block count without END card")
		}
	}
	if h.naxis1 == 0 || h.naxis2 == 0 {
		return nil, perr.New(perr.IOError, "FITS header missing NAXIS1/NAXIS2")
	}
	return h, nil
}

func parseCard(h *header, card string) {
	key := strings.TrimSpace(card[:8])
	switch key {
	case "BITPIX":
		if m := intCardRE.FindStringSubmatch(card); m != nil {
			h.bitpix, _ = strconv.Atoi(m[2])
		}
	case "NAXIS1":
		if m := intCardRE.FindStringSubmatch(card); m != nil {
			h.naxis1, _ = strconv.Atoi(m[2])
		}
	case "NAXIS2":
		if m := intCardRE.FindStringSubmatch(card); m != nil {
			h.naxis2, _ = strconv.Atoi(m[2])
		}
	case "BZERO":
		if m := floatCardRE.FindStringSubmatch(card); m != nil {
			h.bzero, _ = strconv.ParseFloat(m[2], 64)
		}
	case "BSCALE":
		if m := floatCardRE.FindStringSubmatch(card); m != nil {
			h.bscale, _ = strconv.ParseFloat(m[2], 64)
		}
	}
}

// Read loads a monochrome FITS file into a luckyimage.Frame, widening
// integer pixel types to float32 and applying BZERO/BSCALE. NAXIS3 (colour
// planes) is not supported: colour imaging is out of scope.
func Read(path string) (*luckyimage.Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, perr.New(perr.IOError, "opening %s: %s", path, err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	h, err := parseHeader(r)
	if err != nil {
		return nil, err
	}

	frame := luckyimage.NewFrame(h.naxis1, h.naxis2)
	n := h.naxis1 * h.naxis2

	switch h.bitpix {
	case 16:
		raw := make([]int16, n)
		if err := binary.Read(r, binary.BigEndian, raw); err != nil {
			return nil, perr.New(perr.IOError, "reading int16 data from %s: %s", path, err)
		}
		for i, v := range raw {
			frame.Data[i] = float32(float64(v)*h.bscale + h.bzero)
		}
	case 32:
		raw := make([]int32, n)
		if err := binary.Read(r, binary.BigEndian, raw); err != nil {
			return nil, perr.New(perr.IOError, "reading int32 data from %s: %s", path, err)
		}
		for i, v := range raw {
			frame.Data[i] = float32(float64(v)*h.bscale + h.bzero)
		}
	case -32:
		if err := binary.Read(r, binary.BigEndian, frame.Data); err != nil {
			return nil, perr.New(perr.IOError, "reading float32 data from %s: %s", path, err)
		}
		if h.bscale != 1 || h.bzero != 0 {
			for i, v := range frame.Data {
				frame.Data[i] = float32(float64(v)*h.bscale + h.bzero)
			}
		}
	default:
		return nil, perr.New(perr.IOError, "unsupported BITPIX %d in %s", h.bitpix, path)
	}

	return frame, nil
}
