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
	"path/filepath"

	"github.com/pbnjay/memory"

	"github.com/skywatch/luckystack/internal/config"
	"github.com/skywatch/luckystack/internal/detect"
	"github.com/skywatch/luckystack/internal/fitsio"
	"github.com/skywatch/luckystack/internal/logging"
	"github.com/skywatch/luckystack/internal/luckyimage"
	"github.com/skywatch/luckystack/internal/perr"
	"github.com/skywatch/luckystack/internal/star"
	"github.com/skywatch/luckystack/internal/worker"
)

// Result is everything a caller of Run may want to inspect afterwards,
// depending on which routine was run.
type Result struct {
	NumTotal      int
	NumIntegrated int
	Stars         []star.Star      // StarDetectionPreview
	DetectionTable [][]star.Star   // StarDetectionAlignment, ImageIntegration
	Background    *luckyimage.Frame
	Movement      *luckyimage.Frame
	Integration   *luckyimage.Frame // ImageIntegration, unless RegistrationOnly
}

// Run enumerates cfg.InputPath, then executes cfg.Routine to completion,
// surfacing the first worker error per spec.md §7's propagation policy.
func Run(cfg *config.Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	filenames, err := fitsio.ListFrames(cfg.InputPath)
	if err != nil {
		return nil, err
	}

	first, err := fitsio.Read(filenames[0])
	if err != nil {
		return nil, err
	}
	w, h := first.W, first.H

	numWorkers := cfg.NumWorkers
	framePercentage := cfg.FramePercentage
	totalFrames := len(filenames)
	if cfg.Routine == config.StarDetectionPreview {
		numWorkers = 1
		totalFrames = 1
		framePercentage = 100
	}

	logging.LogPrintf("Found %d frames in %s (%dx%d)\n", len(filenames), cfg.InputPath, w, h)
	logging.LogPrintf("System memory: %d MiB, workers: %d\n", memory.TotalMemory()/1024/1024, numWorkers)

	params := star.Params{
		ApproxFWHM:          cfg.ApproxFWHM,
		MinPeak:             cfg.MinPeak,
		SaturationThreshold: cfg.SaturationThreshold,
	}

	detectPool := worker.NewPool(totalFrames, framePercentage, w, h)
	table := worker.NewTable()
	stage := newDetectStage(filenames, w, h, params, table, detectPool)

	if _, err := worker.Run(numWorkers, detectPool, stage.process); err != nil {
		return nil, err
	}

	detections := table.All()

	switch cfg.Routine {
	case config.StarDetectionPreview:
		return &Result{
			NumTotal:   1,
			Stars:      detections[0],
			Background: stage.background(),
			Movement:   detectPool.Movement(),
		}, nil

	case config.StarDetectionAlignment:
		xmlPath := filepath.Join(cfg.InputPath, "star_detections.xml")
		if err := detect.Write(xmlPath, detections); err != nil {
			return nil, err
		}
		return &Result{
			NumTotal:       detectPool.Limit(),
			DetectionTable: detections,
			Background:     stage.background(),
			Movement:       detectPool.Movement(),
		}, nil

	case config.ImageIntegration:
		return runIntegration(cfg, filenames, w, h, detections, cfg.NumWorkers)

	default:
		return nil, perr.New(perr.UsageError, "unknown routine %v", cfg.Routine)
	}
}

func runIntegration(cfg *config.Config, filenames []string, w, h int, detections [][]star.Star, numWorkers int) (*Result, error) {
	cal, err := loadCalibration(cfg, w, h)
	if err != nil {
		return nil, err
	}

	regPool := worker.NewPool(len(filenames), cfg.FramePercentage, w, h)
	reg := newRegisterStage(filenames, w, h, cfg, cal, detections, numWorkers)

	if _, err := worker.Run(numWorkers, regPool, reg.process); err != nil {
		return nil, err
	}

	result := &Result{NumTotal: regPool.Limit(), DetectionTable: detections}

	if cfg.RegistrationOnly {
		return result, nil
	}

	total, count := reg.merge()
	result.NumIntegrated = count
	rejected := result.NumTotal - count
	pct := float32(0)
	if result.NumTotal > 0 {
		pct = 100 * float32(rejected) / float32(result.NumTotal)
	}
	logging.LogPrintf("Rejected %d (%.3f%%) of %d frames on seeing/tracking error\n", rejected, pct, result.NumTotal)

	if count == 0 {
		return nil, perr.New(perr.InternalError, "no frames survived rejection; nothing to integrate")
	}
	total.MulScalar(1.0 / float32(count))
	total.Clip01()
	result.Integration = total
	return result, nil
}
