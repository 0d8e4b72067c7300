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

// Package worker implements the bounded parallel worker model of
// spec.md §4.7/§5: a claimed-index dispatcher plus the ordered,
// wait-for-predecessor detection table shared across frame workers.
package worker

import (
	"sync"

	"github.com/skywatch/luckystack/internal/star"
)

// Table is the shared, strictly-ordered detection table of spec.md §3/§5:
// detections[i] is written exactly once, and readers of detections[i-1]
// block until that write has happened. The original 1ms spin-wait poll is
// replaced here with a condition variable keyed on which indices have
// been filled (spec.md §9's redesign note) — a re-architecture, not a
// behaviour change.
type Table struct {
	mu     sync.Mutex
	cond   *sync.Cond
	lists  [][]star.Star
	filled []bool
}

func NewTable() *Table {
	t := &Table{}
	t.cond = sync.NewCond(&t.mu)
	return t
}

// Set stores stars at index i and wakes every goroutine waiting on it or
// an earlier index.
func (t *Table) Set(i int, stars []star.Star) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.growTo(i)
	t.lists[i] = stars
	t.filled[i] = true
	t.cond.Broadcast()
}

// WaitFor blocks until index i has been written, then returns it.
func (t *Table) WaitFor(i int) []star.Star {
	t.mu.Lock()
	defer t.mu.Unlock()
	for {
		if i < len(t.filled) && t.filled[i] {
			return t.lists[i]
		}
		t.cond.Wait()
	}
}

// Len returns the number of leading indices written so far.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, f := range t.filled {
		if !f {
			break
		}
		n++
	}
	return n
}

// All returns every filled entry, indexed by frame id, for dumping to XML.
func (t *Table) All() [][]star.Star {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([][]star.Star, len(t.lists))
	copy(out, t.lists)
	return out
}

func (t *Table) growTo(i int) {
	for len(t.lists) <= i {
		t.lists = append(t.lists, nil)
		t.filled = append(t.filled, false)
	}
}
