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

// Package config is the plain immutable run configuration for one
// execute() call. No plugin parameter/UI framework wraps it; the host
// (cmd/luckystack) builds one from flags, validates it once, and hands it
// read-only to every stage.
package config

import (
	"runtime"

	"github.com/skywatch/luckystack/internal/luckyimage"
	"github.com/skywatch/luckystack/internal/perr"
)

type Routine int

const (
	StarDetectionPreview Routine = iota
	StarDetectionAlignment
	ImageIntegration
)

func (r Routine) String() string {
	switch r {
	case StarDetectionPreview:
		return "StarDetectionPreview"
	case StarDetectionAlignment:
		return "StarDetectionAlignment"
	case ImageIntegration:
		return "ImageIntegration"
	default:
		return "Unknown"
	}
}

type Config struct {
	Routine Routine

	InputPath string

	ApproxFWHM           float32
	MinPeak              float32
	SaturationThreshold  float32

	MasterDark string
	MasterFlat string
	Pedestal   float32

	EnableDigitalAO bool

	StarSizeRejectionThreshold     float32
	StarMovementRejectionThreshold float32

	Interpolation luckyimage.Kernel

	FramePercentage int

	RegistrationOnly       bool
	RegistrationOutputPath string

	NumWorkers int
}

// Default returns a configuration with the defaults implied by spec.md's
// configuration surface ranges, awaiting CLI overrides.
func Default() *Config {
	return &Config{
		Routine:                        ImageIntegration,
		ApproxFWHM:                     5,
		MinPeak:                        0.02,
		SaturationThreshold:            0.9,
		Pedestal:                       0,
		StarSizeRejectionThreshold:     15,
		StarMovementRejectionThreshold: 20,
		Interpolation:                  luckyimage.Bilinear,
		FramePercentage:                100,
		NumWorkers:                     runtime.GOMAXPROCS(0),
	}
}

// Validate checks the configuration surface ranges documented in spec.md
// §6 and returns a UsageError describing the first violation found.
func (c *Config) Validate() error {
	if c.InputPath == "" {
		return perr.New(perr.UsageError, "input_path is required")
	}
	if c.ApproxFWHM < 1 || c.ApproxFWHM > 20 {
		return perr.New(perr.UsageError, "approx_fwhm must be in [1,20], got %v", c.ApproxFWHM)
	}
	if c.MinPeak < 0.001 || c.MinPeak > 0.5 {
		return perr.New(perr.UsageError, "min_peak must be in [0.001,0.5], got %v", c.MinPeak)
	}
	if c.SaturationThreshold < 0.1 || c.SaturationThreshold > 1.0 {
		return perr.New(perr.UsageError, "saturation_threshold must be in [0.1,1.0], got %v", c.SaturationThreshold)
	}
	if c.Pedestal < 0 || c.Pedestal > 0.01 {
		return perr.New(perr.UsageError, "pedestal must be in [0,0.01], got %v", c.Pedestal)
	}
	if c.StarSizeRejectionThreshold < 1 || c.StarSizeRejectionThreshold > 30 {
		return perr.New(perr.UsageError, "star_size_rejection_threshold must be in [1,30], got %v", c.StarSizeRejectionThreshold)
	}
	if c.StarMovementRejectionThreshold < 1 || c.StarMovementRejectionThreshold > 100 {
		return perr.New(perr.UsageError, "star_movement_rejection_threshold must be in [1,100], got %v", c.StarMovementRejectionThreshold)
	}
	if c.FramePercentage < 0 || c.FramePercentage > 100 {
		return perr.New(perr.UsageError, "frame_percentage must be in [0,100], got %v", c.FramePercentage)
	}
	if c.RegistrationOnly && c.RegistrationOutputPath == "" {
		return perr.New(perr.UsageError, "registration_output_path is required when registration_only is set")
	}
	if c.NumWorkers < 1 {
		return perr.New(perr.UsageError, "numWorkers must be >= 1, got %v", c.NumWorkers)
	}
	return nil
}
