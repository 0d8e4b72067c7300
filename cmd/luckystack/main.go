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

package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/pbnjay/memory"

	"flag"

	"github.com/skywatch/luckystack/internal/config"
	"github.com/skywatch/luckystack/internal/detect"
	"github.com/skywatch/luckystack/internal/fitsio"
	"github.com/skywatch/luckystack/internal/logging"
	"github.com/skywatch/luckystack/internal/luckyimage"
	"github.com/skywatch/luckystack/internal/pipeline"
)

const version = "0.1.0"

var totalMiBs = memory.TotalMemory() / 1024 / 1024

var input = flag.String("input", "", "directory of .fit/.fits input frames")
var out = flag.String("out", "out.fits", "save integrated output to `file`")
var jpg = flag.String("jpg", "%auto", "save 8bit preview of output as JPEG to `file`. `%auto` replaces suffix of output file with .jpg")
var log = flag.String("log", "%auto", "save log output to `file`. `%auto` replaces suffix of output file with .log")

var dark = flag.String("dark", "", "apply master dark frame from `file`")
var flat = flag.String("flat", "", "apply master flat frame from `file`")
var pedestal = flag.Float64("pedestal", 0, "add pedestal to dark-subtracted pixels, in [0,0.01]")

var approxFWHM = flag.Float64("approxFWHM", 5, "approximate star FWHM in pixels, in [1,20]")
var minPeak = flag.Float64("minPeak", 0.02, "minimum peak brightness above background for star detection, in [0.001,0.5]")
var saturationThreshold = flag.Float64("saturationThreshold", 0.9, "reject stars whose peak pixel exceeds this level, in [0.1,1.0]")

var sizeRejection = flag.Float64("sizeRejection", 15, "reject a frame if its mean star FWHM exceeds this, in [1,30]")
var movementRejection = flag.Float64("movementRejection", 20, "reject a frame if its inter-frame star motion exceeds this, in [1,100]")

var digitalAO = flag.Bool("digitalAO", false, "use per-star spatially varying registration instead of one global shift")
var interpolation = flag.String("interpolation", "bilinear", "resampling kernel: nearest, bilinear or lanczos3")

var framePercentage = flag.Int64("framePercentage", 100, "only process the first N% of frames in sorted filename order, in [0,100]")
var numWorkers = flag.Int64("numWorkers", int64(runtime.GOMAXPROCS(0)), "number of parallel frame workers")

var registrationOnly = flag.Bool("registrationOnly", false, "write each registered frame independently instead of integrating")
var registrationOutputPath = flag.String("registrationOutputPath", "", "directory for registered frames when -registrationOnly is set")

var alignmentXML = flag.String("alignmentXML", "", "also write a copy of the star detection handoff document to `file`, in addition to input/star_detections.xml")

var back = flag.String("back", "", "save extracted background as a 16bit TIFF to `file`")
var movement = flag.String("movement", "", "save the tracked-centroid movement preview as a 16bit TIFF to `file`")

func main() {
	var logWriter io.Writer = os.Stdout
	start := time.Now()
	flag.Usage = func() {
		fmt.Fprintf(logWriter, `Luckystack Copyright (c) 2020 Markus L. Noga
This program comes with ABSOLUTELY NO WARRANTY.
This is free software, and you are welcome to redistribute it under certain conditions.
Refer to https://www.gnu.org/licenses/gpl-3.0.en.html for details.

Usage: %s [-flag value] (preview|align|stack|legal|version)

Commands:
  preview Detect stars on frame 0 only, for a quick parameter check
  align   Detect and track stars across all frames, write the XML handoff document
  stack   Detect, track, register and integrate all frames into one output image
  legal   Show license and attribution information
  version Show version information

Flags:
`, os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if *log == "%auto" {
		if *out != "" {
			*log = strings.TrimSuffix(*out, filepath.Ext(*out)) + ".log"
		} else {
			*log = ""
		}
	}
	if *log != "" {
		if err := logging.AlsoToFile(*log); err != nil {
			fmt.Fprintf(logWriter, "Unable to open log file %s: %s\n", *log, err)
			os.Exit(-1)
		}
	}

	if *jpg == "%auto" {
		if *out != "" {
			*jpg = strings.TrimSuffix(*out, filepath.Ext(*out)) + ".jpg"
		} else {
			*jpg = ""
		}
	}

	args := flag.Args()
	if len(args) < 1 {
		flag.Usage()
		return
	}

	var err error
	switch args[0] {
	case "preview":
		err = runRoutine(config.StarDetectionPreview)
	case "align":
		err = runRoutine(config.StarDetectionAlignment)
	case "stack":
		err = runRoutine(config.ImageIntegration)
	case "legal":
		logging.LogPrint(legal)
	case "version":
		logging.LogPrintf("Version %s\n", version)
	case "help", "?":
		flag.Usage()
	default:
		logging.LogPrintf("Unknown command '%s'\n\n", args[0])
		flag.Usage()
		return
	}

	if err != nil {
		logging.LogPrintf("Error: %s\n", err.Error())
		os.Exit(-1)
	}

	elapsed := time.Since(start).Round(time.Millisecond * 10)
	logging.LogPrintf("\nDone after %s\n", elapsed)
}

func runRoutine(routine config.Routine) error {
	cfg := config.Default()
	cfg.Routine = routine
	cfg.InputPath = *input
	cfg.MasterDark = *dark
	cfg.MasterFlat = *flat
	cfg.Pedestal = float32(*pedestal)
	cfg.ApproxFWHM = float32(*approxFWHM)
	cfg.MinPeak = float32(*minPeak)
	cfg.SaturationThreshold = float32(*saturationThreshold)
	cfg.StarSizeRejectionThreshold = float32(*sizeRejection)
	cfg.StarMovementRejectionThreshold = float32(*movementRejection)
	cfg.EnableDigitalAO = *digitalAO
	cfg.Interpolation = parseKernel(*interpolation)
	cfg.FramePercentage = int(*framePercentage)
	cfg.NumWorkers = int(*numWorkers)
	cfg.RegistrationOnly = *registrationOnly
	cfg.RegistrationOutputPath = *registrationOutputPath

	result, err := pipeline.Run(cfg)
	if err != nil {
		return err
	}

	if err := writeDebugDumps(result); err != nil {
		return err
	}

	switch routine {
	case config.StarDetectionPreview:
		logging.LogPrintf("Detected %d stars on template frame\n", len(result.Stars))
		for _, s := range result.Stars {
			logging.LogPrintf("  id=%d x=%.2f y=%.2f peak=%.4f sizeX=%.2f sizeY=%.2f\n",
				s.ID, s.X, s.Y, s.Peak, s.SizeX, s.SizeY)
		}
		return nil

	case config.StarDetectionAlignment:
		xmlPath := filepath.Join(cfg.InputPath, "star_detections.xml")
		logging.LogPrintf("Wrote star detections for %d frames to %s\n", len(result.DetectionTable), xmlPath)
		if *alignmentXML != "" && *alignmentXML != xmlPath {
			if err := detect.Write(*alignmentXML, result.DetectionTable); err != nil {
				return err
			}
			logging.LogPrintf("Also wrote a copy to %s\n", *alignmentXML)
		}
		return nil

	case config.ImageIntegration:
		if cfg.RegistrationOnly {
			logging.LogPrintf("Wrote %d registered frames to %s\n", result.NumTotal, cfg.RegistrationOutputPath)
			return nil
		}
		if err := fitsio.Write(*out, result.Integration); err != nil {
			return err
		}
		logging.LogPrintf("Integrated %d of %d frames into %s\n", result.NumIntegrated, result.NumTotal, *out)
		if *jpg != "" {
			if err := fitsio.WriteJPEGPreview(*jpg, result.Integration); err != nil {
				return err
			}
		}
		return nil
	}
	return nil
}

// writeDebugDumps saves the extracted background and tracked-centroid
// movement preview images as 16bit TIFFs when -back/-movement are set, the
// same intermediate-artifact-dump habit as the teacher's -stars/-back flags.
func writeDebugDumps(result *pipeline.Result) error {
	if *back != "" && result.Background != nil {
		if err := fitsio.WriteDebugTIFF16(*back, result.Background); err != nil {
			return err
		}
		logging.LogPrintf("Wrote extracted background to %s\n", *back)
	}
	if *movement != "" && result.Movement != nil {
		if err := fitsio.WriteDebugTIFF16(*movement, result.Movement); err != nil {
			return err
		}
		logging.LogPrintf("Wrote movement preview to %s\n", *movement)
	}
	return nil
}

func parseKernel(s string) luckyimage.Kernel {
	switch s {
	case "nearest":
		return luckyimage.Nearest
	case "lanczos3":
		return luckyimage.Lanczos3
	default:
		return luckyimage.Bilinear
	}
}
