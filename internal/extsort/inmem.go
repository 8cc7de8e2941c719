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

// BatchSorter sorts an in-memory batch of records in place.
// When stable is true, equal records must keep their relative order.
type BatchSorter func(records []string, cmp Compare, stable bool)

// SortBatch is the default BatchSorter.
func SortBatch(records []string, cmp Compare, stable bool) {
	if stable {
		slices.SortStableFunc(records, cmp)
		return
	}
	slices.SortFunc(records, cmp)
}
