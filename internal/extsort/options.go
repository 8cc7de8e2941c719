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
	"fmt"
	"time"
)

const (
	// DefaultMaxLoad is the number of records held in memory when Options.MaxLoad is zero.
	DefaultMaxLoad = 10_000_000

	// minFanout is the smallest number of runs a merge pass consumes; a pass
	// over a single run would never reduce the run count.
	minFanout = 2

	// minReaderBuffer is the smallest read-ahead cache a merge cursor gets.
	minReaderBuffer = 1

	// DefaultBufferSize is the bufio size used for every file when Options.BufferSize is zero.
	DefaultBufferSize = 256 * 1024
)

// Compare returns a negative number when a sorts before b, a positive number
// when b sorts before a, and zero when they are equal. It must be a total order.
type Compare func(a, b string) int

// Options configures a single Sort call.
type Options struct {
	// Source is the file to sort. Required.
	Source string

	// Target receives the sorted output. Defaults to Source + ".sorted".
	Target string

	// TempPrefix names run files as TempPrefix + index. Defaults to Source + ".temp.".
	TempPrefix string

	// Compare orders records. Required.
	Compare Compare

	// Stable keeps equal records in source order.
	Stable bool

	// MaxLoad bounds the number of records held in memory. Zero means DefaultMaxLoad.
	MaxLoad int

	// KWayMerge is the number of runs merged per pass. Values <= 1 mean
	// "all runs at once"; out of range values are clamped.
	KWayMerge int

	// Progress receives one line per file written or removed and a final
	// summary. Nil means no progress output.
	Progress func(string)

	// Sorter sorts each batch of records before it is written as a run.
	// Nil means SortBatch.
	Sorter BatchSorter

	// CompressRuns writes run files as zstd streams. Source and target stay plain text.
	CompressRuns bool

	// BufferSize is the bufio size for every file opened. Zero means DefaultBufferSize.
	BufferSize int
}

// Stats describes a completed sort.
type Stats struct {
	Records          int64
	Runs             int
	IntermediateRuns int
	MergePasses      int
	Renames          int
	Elapsed          time.Duration
}

func (o Options) validate() error {
	if o.Source == "" {
		return fmt.Errorf("%w: source path is empty", ErrInvalidArgument)
	}
	if o.Compare == nil {
		return fmt.Errorf("%w: comparator is nil", ErrInvalidArgument)
	}
	if o.MaxLoad < 0 {
		return fmt.Errorf("%w: max load %d is negative", ErrInvalidArgument, o.MaxLoad)
	}
	if o.BufferSize < 0 {
		return fmt.Errorf("%w: buffer size %d is negative", ErrInvalidArgument, o.BufferSize)
	}
	return nil
}

func (o Options) withDefaults() Options {
	if o.Target == "" {
		o.Target = o.Source + ".sorted"
	}
	if o.TempPrefix == "" {
		o.TempPrefix = o.Source + ".temp."
	}
	if o.MaxLoad == 0 {
		o.MaxLoad = DefaultMaxLoad
	}
	if o.Progress == nil {
		o.Progress = func(string) {}
	}
	if o.Sorter == nil {
		o.Sorter = SortBatch
	}
	if o.BufferSize == 0 {
		o.BufferSize = DefaultBufferSize
	}
	return o
}

// computeFanout normalizes the requested fan-out against the number of runs
// and the memory budget, and returns the fan-out together with the number of
// records each merge cursor may cache. MaxLoad is split between k cursors and
// the output buffer. For a MaxLoad below three the floors on fan-out and
// cursor size win over the budget.
func computeFanout(kWayMerge, runs, maxLoad int) (k int, perReader int) {
	k = kWayMerge
	if k <= 1 || k > runs {
		k = runs
	}
	if k >= maxLoad {
		k = maxLoad - 1
	}
	k = max(k, minFanout)
	return k, max(maxLoad/(k+1), minReaderBuffer)
}
