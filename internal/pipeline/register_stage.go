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
	"sync"

	"github.com/skywatch/luckystack/internal/config"
	"github.com/skywatch/luckystack/internal/fitsio"
	"github.com/skywatch/luckystack/internal/luckyimage"
	"github.com/skywatch/luckystack/internal/perr"
	"github.com/skywatch/luckystack/internal/registration"
	"github.com/skywatch/luckystack/internal/star"
)

// registerStage runs spec.md §4.6 for every frame: calibrate, compute
// displacement, resample, reject on seeing/tracking error, and either
// write the registered frame independently (registration_only) or add it
// into this worker's own accumulator. Per spec.md §5 the integration sum
// is commutative/associative, so each worker keeps a private accumulator
// and the driver merges them after every worker has returned.
type registerStage struct {
	filenames []string
	w, h      int
	cfg       *config.Config
	cal       registration.Calibration
	table     [][]star.Star

	mu           sync.Mutex
	accumulators []*luckyimage.Frame
	counts       []int
}

func newRegisterStage(filenames []string, w, h int, cfg *config.Config, cal registration.Calibration, table [][]star.Star, numWorkers int) *registerStage {
	return &registerStage{
		filenames:    filenames,
		w:            w,
		h:            h,
		cfg:          cfg,
		cal:          cal,
		table:        table,
		accumulators: make([]*luckyimage.Frame, numWorkers),
		counts:       make([]int, numWorkers),
	}
}

func (r *registerStage) process(workerID, idx int) error {
	if idx >= len(r.table) || r.table[idx] == nil {
		return perr.New(perr.DetectionMissing, "no star list for frame %d", idx)
	}
	current := r.table[idx]
	template := r.table[0]

	var motion registration.Displacement
	if idx > 0 {
		if idx-1 >= len(r.table) || r.table[idx-1] == nil {
			return perr.New(perr.DetectionMissing, "no star list for frame %d", idx-1)
		}
		motion = registration.InterFrameMotion(current, r.table[idx-1])
	}

	if registration.SeeingRejected(current, r.cfg.StarSizeRejectionThreshold) {
		return nil
	}
	if registration.TrackingRejected(motion, r.cfg.StarMovementRejectionThreshold) {
		return nil
	}

	frame, err := loadFrame(r.filenames[idx], r.w, r.h)
	if err != nil {
		return err
	}
	calibrated := registration.Calibrate(frame, r.cal)

	var registered *luckyimage.Frame
	if r.cfg.EnableDigitalAO {
		registered = registration.ResampleDigitalAO(calibrated, current, template, r.cfg.Interpolation)
	} else {
		d := registration.GlobalDisplacement(current, template)
		registered = registration.ResampleUniform(calibrated, d, r.cfg.Interpolation)
	}

	if r.cfg.RegistrationOnly {
		out := filepath.Join(r.cfg.RegistrationOutputPath, filepath.Base(r.filenames[idx])+".xisf")
		return fitsio.WriteXISF(out, registered)
	}

	if r.accumulators[workerID] == nil {
		r.accumulators[workerID] = luckyimage.NewFrame(r.w, r.h)
	}
	r.accumulators[workerID].AddInPlace(registered)
	r.counts[workerID]++
	return nil
}

// merge sums every worker's private accumulator into one image and
// returns the total count of integrated frames. Safe to call only after
// every worker has returned (spec.md §5's merge-under-lock step).
func (r *registerStage) merge() (*luckyimage.Frame, int) {
	total := luckyimage.NewFrame(r.w, r.h)
	count := 0
	for i, acc := range r.accumulators {
		if acc == nil {
			continue
		}
		total.AddInPlace(acc)
		count += r.counts[i]
	}
	return total, count
}
