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

package worker

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/skywatch/luckystack/internal/luckyimage"
	"github.com/skywatch/luckystack/internal/perr"
)

// Pool is the shared, process-wide context for one execute() call: the
// atomic next-frame index, the abort flag, and the lazily-allocated
// shared "movement preview" image (spec.md §5).
type Pool struct {
	mu   sync.Mutex
	next int
	// limit is total_frames * frame_percentage/100: only the first limit
	// frames are ever claimed.
	limit int
	abort int32

	movementMu sync.Mutex
	movement   *luckyimage.Frame
	w, h       int
}

// NewPool bounds the pool to the first totalFrames*framePercentage/100
// frames, and sizes the lazily-allocated movement preview at w x h.
func NewPool(totalFrames, framePercentage, w, h int) *Pool {
	limit := totalFrames * framePercentage / 100
	return &Pool{limit: limit, w: w, h: h}
}

// Limit returns the number of frames this pool will process.
func (p *Pool) Limit() int {
	return p.limit
}

// claimNext atomically claims the next frame index under the mutex that
// also gates the termination check against the limit.
func (p *Pool) claimNext() (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if atomic.LoadInt32(&p.abort) != 0 || p.next >= p.limit {
		return 0, false
	}
	idx := p.next
	p.next++
	return idx, true
}

// Abort sets the shared abort flag; workers observe it before claiming
// their next frame index and stop.
func (p *Pool) Abort() {
	atomic.StoreInt32(&p.abort, 1)
}

// Aborted reports whether the abort flag is set.
func (p *Pool) Aborted() bool {
	return atomic.LoadInt32(&p.abort) != 0
}

// PlotMovement marks a single white pixel at (x,y) on the shared movement
// preview image, allocating it on first use under the shared lock.
func (p *Pool) PlotMovement(x, y float32) {
	p.movementMu.Lock()
	defer p.movementMu.Unlock()
	if p.movement == nil {
		p.movement = luckyimage.NewFrame(p.w, p.h)
	}
	xi, yi := int(x+0.5), int(y+0.5)
	if xi >= 0 && xi < p.w && yi >= 0 && yi < p.h {
		p.movement.Set(xi, yi, 1)
	}
}

// Movement returns the movement preview image, or nil if nothing has been
// plotted onto it yet.
func (p *Pool) Movement() *luckyimage.Frame {
	p.movementMu.Lock()
	defer p.movementMu.Unlock()
	return p.movement
}

// Stats carries one worker's final error and processing-time tally, read
// by the driver after Run returns (spec.md §4.7: "the driver inspects
// each worker's final error message").
type Stats struct {
	Err            error
	NumProcessed   int
	TotalProcessMs float64
}

// Run dispatches numWorkers goroutines against pool, each repeatedly
// claiming the next frame index and invoking process (with its own
// worker id, so a caller can keep worker-local accumulators) until the
// pool is exhausted or aborted. It blocks until every worker returns,
// then surfaces the first non-nil per-worker error, or an AbortError if
// the pool was aborted without any worker reporting its own error.
func Run(numWorkers int, pool *Pool, process func(workerID, frameIdx int) error) ([]Stats, error) {
	stats := make([]Stats, numWorkers)
	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for {
				idx, ok := pool.claimNext()
				if !ok {
					return
				}
				start := time.Now()
				if err := process(w, idx); err != nil {
					if perr.IsAbort(err) {
						pool.Abort()
					}
					stats[w].Err = err
					return
				}
				stats[w].NumProcessed++
				stats[w].TotalProcessMs += float64(time.Since(start)) / float64(time.Millisecond)
			}
		}(w)
	}
	wg.Wait()

	for _, s := range stats {
		if s.Err != nil {
			return stats, s.Err
		}
	}
	if pool.Aborted() {
		return stats, perr.New(perr.AbortError, "user aborted")
	}
	return stats, nil
}
