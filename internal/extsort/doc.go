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

// Package extsort sorts newline-delimited files that do not fit in memory.
//
// Sorting happens in two phases. The source is first split into runs of at
// most MaxLoad records; each run is sorted in memory and written to a temp
// file named {TempPrefix}{index}. The runs are then merged KWayMerge at a time
// until a single pass produces the target file. Memory use is bounded by
// MaxLoad records no matter how large the source is: during a merge, MaxLoad is
// split evenly between the open run cursors and the output buffer.
//
// Records are opaque lines compared only by the caller's Compare function.
// When Stable is set, records that compare equal keep their source order.
//
// Sort is single threaded and is not crash safe. A process killed mid-sort
// leaves run files behind; see helpers.RemoveOrphanRuns.
package extsort
