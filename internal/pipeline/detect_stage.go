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
	"sync"

	"github.com/skywatch/luckystack/internal/background"
	"github.com/skywatch/luckystack/internal/cosmetic"
	"github.com/skywatch/luckystack/internal/luckyimage"
	"github.com/skywatch/luckystack/internal/star"
	"github.com/skywatch/luckystack/internal/worker"
)

// detectStage runs the per-frame state machine of spec.md §4.7: frame 0
// runs cosmetic correction, background extraction and full template
// detection; every later frame waits on the previous frame's entry in
// table and runs the tracker. The shared background image is published
// once, from frame 0, for any caller that wants to inspect or dump it.
type detectStage struct {
	filenames []string
	w, h      int
	params    star.Params
	table     *worker.Table
	pool      *worker.Pool

	bgMu sync.Mutex
	bg   *luckyimage.Frame
}

func newDetectStage(filenames []string, w, h int, params star.Params, table *worker.Table, pool *worker.Pool) *detectStage {
	return &detectStage{filenames: filenames, w: w, h: h, params: params, table: table, pool: pool}
}

func (d *detectStage) background() *luckyimage.Frame {
	d.bgMu.Lock()
	defer d.bgMu.Unlock()
	return d.bg
}

func (d *detectStage) process(workerID, idx int) error {
	frame, err := loadFrame(d.filenames[idx], d.w, d.h)
	if err != nil {
		return err
	}

	if idx == 0 {
		corrected, _ := cosmetic.Correct(frame, false)
		bg := background.Estimate(corrected, d.params.ApproxFWHM)
		d.bgMu.Lock()
		d.bg = bg
		d.bgMu.Unlock()

		stars := star.Detect(corrected, bg, d.params)
		d.table.Set(0, stars)
		return nil
	}

	prev := d.table.WaitFor(idx - 1)
	tracked := star.Track(prev, frame, d.params)
	for _, s := range tracked {
		if s.Valid() {
			d.pool.PlotMovement(s.X, s.Y)
		}
	}
	d.table.Set(idx, tracked)
	return nil
}
