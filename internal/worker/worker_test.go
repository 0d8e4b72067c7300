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
	"testing"
	"time"

	"github.com/skywatch/luckystack/internal/perr"
	"github.com/skywatch/luckystack/internal/star"
)

func TestTableWaitForBlocksUntilWritten(t *testing.T) {
	table := NewTable()
	done := make(chan []star.Star, 1)
	go func() {
		done <- table.WaitFor(2)
	}()

	select {
	case <-done:
		t.Fatal("WaitFor returned before index 2 was set")
	case <-time.After(30 * time.Millisecond):
	}

	want := []star.Star{{ID: 0, X: 1, Y: 2, Peak: 1}}
	table.Set(2, want)

	select {
	case got := <-done:
		if len(got) != 1 || got[0] != want[0] {
			t.Errorf("WaitFor(2) = %v, want %v", got, want)
		}
	case <-time.After(time.Second):
		t.Fatal("WaitFor did not unblock after Set")
	}
}

func TestTableOrderedFillInvariant(t *testing.T) {
	table := NewTable()
	const n = 20
	var wg sync.WaitGroup
	for i := n - 1; i >= 0; i-- {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i > 0 {
				table.WaitFor(i - 1)
			}
			table.Set(i, []star.Star{{ID: i}})
		}(i)
	}
	wg.Wait()
	if table.Len() != n {
		t.Fatalf("Len() = %d, want %d", table.Len(), n)
	}
	all := table.All()
	for i := 0; i < n; i++ {
		if len(all[i]) != 1 || all[i][0].ID != i {
			t.Errorf("entry %d = %v, want id %d", i, all[i], i)
		}
	}
}

func TestPoolRunProcessesEveryFrameOnce(t *testing.T) {
	pool := NewPool(50, 100, 4, 4)
	var mu sync.Mutex
	seen := map[int]int{}
	stats, err := Run(4, pool, func(w, idx int) error {
		mu.Lock()
		seen[idx]++
		mu.Unlock()
		return nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(seen) != 50 {
		t.Fatalf("processed %d distinct frames, want 50", len(seen))
	}
	for idx, count := range seen {
		if count != 1 {
			t.Errorf("frame %d processed %d times", idx, count)
		}
	}
	totalProcessed := 0
	for _, s := range stats {
		totalProcessed += s.NumProcessed
	}
	if totalProcessed != 50 {
		t.Errorf("stats report %d processed, want 50", totalProcessed)
	}
}

func TestPoolRunRespectsFramePercentage(t *testing.T) {
	pool := NewPool(100, 30, 4, 4)
	if pool.Limit() != 30 {
		t.Fatalf("Limit() = %d, want 30", pool.Limit())
	}
	var mu sync.Mutex
	count := 0
	Run(2, pool, func(w, idx int) error {
		mu.Lock()
		count++
		mu.Unlock()
		return nil
	})
	if count != 30 {
		t.Errorf("processed %d frames, want 30", count)
	}
}

func TestPoolRunSurfacesFirstError(t *testing.T) {
	pool := NewPool(10, 100, 4, 4)
	_, err := Run(1, pool, func(w, idx int) error {
		if idx == 3 {
			return perr.New(perr.IOError, "boom")
		}
		return nil
	})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestPoolRunAbortStopsFurtherClaims(t *testing.T) {
	pool := NewPool(1000, 100, 4, 4)
	var mu sync.Mutex
	count := 0
	_, err := Run(1, pool, func(w, idx int) error {
		mu.Lock()
		count++
		mu.Unlock()
		if idx == 5 {
			return perr.New(perr.AbortError, "user aborted")
		}
		return nil
	})
	if !perr.IsAbort(err) {
		t.Fatalf("expected AbortError, got %v", err)
	}
	if count != 6 {
		t.Errorf("processed %d frames before stopping, want 6", count)
	}
}

func TestPoolPlotMovementLazyAllocates(t *testing.T) {
	pool := NewPool(1, 100, 8, 8)
	if pool.Movement() != nil {
		t.Fatal("expected nil movement image before any plot")
	}
	pool.PlotMovement(3.4, 4.6)
	m := pool.Movement()
	if m == nil {
		t.Fatal("expected movement image after plot")
	}
	if m.At(3, 5) != 1 {
		t.Errorf("expected pixel (3,5) set, got %v", m.At(3, 5))
	}
}
