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

import (
	"errors"
	"io"
)

// initialBatchCapacity keeps a large MaxLoad from being allocated up front
// for sources that turn out to be small.
const initialBatchCapacity = 4096

// runWriter splits a source into sorted runs of at most maxLoad records.
type runWriter struct {
	src     recordSource
	store   *runStore
	cmp     Compare
	stable  bool
	sorter  BatchSorter
	maxLoad int

	batch []string
}

func newRunWriter(src recordSource, store *runStore, opts Options) *runWriter {
	return &runWriter{
		src:     src,
		store:   store,
		cmp:     opts.Compare,
		stable:  opts.Stable,
		sorter:  opts.Sorter,
		maxLoad: opts.MaxLoad,
		batch:   make([]string, 0, min(opts.MaxLoad, initialBatchCapacity)),
	}
}

// writeRun reads the next batch from the source, sorts it and writes it as a
// new run. It returns the run index and the number of records written; a
// count of zero means the source is exhausted and no run was created.
func (w *runWriter) writeRun() (int, int, error) {
	clear(w.batch)
	w.batch = w.batch[:0]
	for len(w.batch) < w.maxLoad {
		record, err := w.src.readRecord()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, 0, err
		}
		w.batch = append(w.batch, record)
	}
	if len(w.batch) == 0 {
		return 0, 0, nil
	}

	w.sorter(w.batch, w.cmp, w.stable)

	index, out, err := w.store.create()
	if err != nil {
		return 0, 0, err
	}
	if err := out.writeRecords(w.batch); err != nil {
		_ = out.Close()
		return 0, 0, err
	}
	if err := out.Close(); err != nil {
		return 0, 0, err
	}
	w.store.progress("+ " + out.path)
	return index, len(w.batch), nil
}
