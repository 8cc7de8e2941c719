// Copyright (C) 2025-2026 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package extsort

import "slices"

// recordSink receives merged records in order.
type recordSink interface {
	writeRecords(records []string) error
}

// merger combines sorted cursors into one sorted stream. Output is staged in
// a fixed buffer and handed to the sink whenever the buffer fills.
type merger struct {
	cmp    Compare
	stable bool
	out    []string
}

func newMerger(cmp Compare, stable bool, bufferLen int) *merger {
	return &merger{
		cmp:    cmp,
		stable: stable,
		out:    make([]string, 0, bufferLen),
	}
}

// merge drains every cursor into sink and returns the number of records written.
// Cursor order matters in stable mode: on ties the earlier cursor wins.
func (m *merger) merge(cursors []*runCursor, sink recordSink) (int64, error) {
	active := make([]*runCursor, 0, len(cursors))
	for _, c := range cursors {
		if err := c.load(); err != nil {
			return 0, err
		}
		if !c.exhausted() {
			active = append(active, c)
		}
	}

	var (
		n   int64
		err error
	)
	if m.stable {
		n, err = m.mergeStable(active, sink)
	} else {
		n, err = m.mergeHeap(active, sink)
	}
	if err != nil {
		return n, err
	}
	return n, m.flush(sink)
}

// mergeStable scans every active cursor for each record. Only a strictly
// smaller record displaces the current pick, so ties go to the lowest index.
func (m *merger) mergeStable(active []*runCursor, sink recordSink) (int64, error) {
	var n int64
	for len(active) > 0 {
		best := 0
		for j := 1; j < len(active); j++ {
			if m.cmp(active[j].next(), active[best].next()) < 0 {
				best = j
			}
		}

		c := active[best]
		if err := m.emit(c.pop(), sink); err != nil {
			return n, err
		}
		n++

		if c.exhausted() {
			if err := c.load(); err != nil {
				return n, err
			}
			if c.exhausted() {
				active = slices.Delete(active, best, best+1)
			}
		}
	}
	return n, nil
}

// mergeHeap keeps the cursors in a min-heap keyed by their next record.
func (m *merger) mergeHeap(active []*runCursor, sink recordSink) (int64, error) {
	h := &cursorHeap{cursors: active, cmp: m.cmp}
	initCursorHeap(h)

	var n int64
	for h.Len() > 0 {
		c := h.cursors[0]
		if err := m.emit(c.pop(), sink); err != nil {
			return n, err
		}
		n++

		if c.exhausted() {
			if err := c.load(); err != nil {
				return n, err
			}
			if c.exhausted() {
				dropCursorHeapRoot(h)
				continue
			}
		}
		downCursorHeap(h, 0, h.Len())
	}
	return n, nil
}

func (m *merger) emit(record string, sink recordSink) error {
	m.out = append(m.out, record)
	if len(m.out) < cap(m.out) {
		return nil
	}
	return m.flush(sink)
}

func (m *merger) flush(sink recordSink) error {
	if len(m.out) == 0 {
		return nil
	}
	err := sink.writeRecords(m.out)
	clear(m.out)
	m.out = m.out[:0]
	return err
}

// cursorHeap orders cursors by their next unread record.
type cursorHeap struct {
	cursors []*runCursor
	cmp     Compare
}

func (h *cursorHeap) Len() int { return len(h.cursors) }

func (h *cursorHeap) Less(i, j int) bool {
	return h.cmp(h.cursors[i].next(), h.cursors[j].next()) < 0
}

func (h *cursorHeap) Swap(i, j int) {
	h.cursors[i], h.cursors[j] = h.cursors[j], h.cursors[i]
}

func initCursorHeap(h *cursorHeap) {
	n := h.Len()
	for i := n/2 - 1; i >= 0; i-- {
		downCursorHeap(h, i, n)
	}
}

// dropCursorHeapRoot removes the root cursor and restores the heap.
func dropCursorHeapRoot(h *cursorHeap) {
	n := h.Len() - 1
	h.Swap(0, n)
	h.cursors[n] = nil
	h.cursors = h.cursors[:n]
	downCursorHeap(h, 0, n)
}

func downCursorHeap(h *cursorHeap, i0, n int) {
	i := i0
	for {
		j1 := 2*i + 1
		if j1 >= n || j1 < 0 { // j1 < 0 after int overflow
			break
		}
		j := j1 // left child
		if j2 := j1 + 1; j2 < n && h.Less(j2, j1) {
			j = j2 // right child
		}
		if !h.Less(j, i) {
			break
		}
		h.Swap(i, j)
		i = j
	}
}
