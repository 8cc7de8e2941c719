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

// runCursor is a read-ahead cursor over one run. Records are cached in a
// fixed ring; head is the oldest unread slot and count the number of unread
// records, so a full ring and an empty ring are never confused.
type runCursor struct {
	src   recordSource
	slots []string
	head  int
	count int
	eof   bool
}

func newRunCursor(limit int) *runCursor {
	return &runCursor{slots: make([]string, limit)}
}

// reset points the cursor at a new run and drops any cached records.
func (c *runCursor) reset(src recordSource) *runCursor {
	clear(c.slots)
	c.src, c.head, c.count, c.eof = src, 0, 0, false
	return c
}

// load tops up the cache from the run. It is a no-op when the cache is full
// or the run has already reached EOF.
func (c *runCursor) load() error {
	for !c.eof && c.count < len(c.slots) {
		record, err := c.src.readRecord()
		if errors.Is(err, io.EOF) {
			c.eof = true
			return nil
		}
		if err != nil {
			return err
		}
		c.slots[(c.head+c.count)%len(c.slots)] = record
		c.count++
	}
	return nil
}

// next returns the oldest unread record without consuming it.
// The cursor must not be exhausted.
func (c *runCursor) next() string {
	return c.slots[c.head]
}

// pop consumes and returns the oldest unread record.
// The cursor must not be exhausted.
func (c *runCursor) pop() string {
	record := c.slots[c.head]
	c.slots[c.head] = ""
	c.head = (c.head + 1) % len(c.slots)
	c.count--
	return record
}

// exhausted reports whether no unread records are cached. Call load first to
// tell a drained cache from a finished run.
func (c *runCursor) exhausted() bool {
	return c.count == 0
}
