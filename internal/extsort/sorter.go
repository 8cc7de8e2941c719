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
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cardinalhq/linesort/internal/logctx"
)

// Sort sorts opts.Source into opts.Target using bounded memory.
//
// Options are validated before any file is touched. The target is written
// as a run file and renamed into place once complete, so a failed sort never
// truncates or removes an existing target. Any I/O failure aborts the sort:
// open files are closed and run files created so far are removed. Cleanup
// failures are logged and do not replace the returned error.
func Sort(ctx context.Context, opts Options) (Stats, error) {
	if err := opts.validate(); err != nil {
		return Stats{}, err
	}
	opts = opts.withDefaults()

	s := &sorter{
		opts:  opts,
		store: newRunStore(opts.TempPrefix, opts.CompressRuns, opts.BufferSize, opts.Progress),
		ll:    logctx.FromContext(ctx).With(slog.String("source", opts.Source)),
	}
	start := time.Now()
	err := s.run(ctx)
	s.stats.Elapsed = time.Since(start)
	if err != nil {
		s.abort()
		return s.stats, err
	}

	recordSortTelemetry(ctx, s.stats, opts.Stable)
	opts.Progress(fmt.Sprintf("Done in %d seconds.", int64(s.stats.Elapsed/time.Second)))
	s.ll.Info("Sort complete",
		slog.String("target", opts.Target),
		slog.Int64("records", s.stats.Records),
		slog.Int("runs", s.stats.Runs),
		slog.Int("intermediateRuns", s.stats.IntermediateRuns),
		slog.Int("mergePasses", s.stats.MergePasses),
		slog.Duration("elapsed", s.stats.Elapsed))
	return s.stats, nil
}

type sorter struct {
	opts  Options
	store *runStore
	ll    *slog.Logger
	stats Stats
}

func (s *sorter) run(ctx context.Context) error {
	runs, err := s.split(ctx)
	if err != nil {
		return err
	}

	if runs == 0 {
		s.ll.Debug("Source is empty, writing empty target")
		return s.writeEmptyTarget()
	}

	k, perReader := computeFanout(s.opts.KWayMerge, runs, s.opts.MaxLoad)
	s.ll.Debug("Computed merge fan-out",
		slog.Int("runs", runs),
		slog.Int("requested", s.opts.KWayMerge),
		slog.Int("kWayMerge", k),
		slog.Int("perReader", perReader))

	return s.mergeAll(ctx, k, perReader)
}

// split writes the source out as sorted runs and returns how many were created.
func (s *sorter) split(ctx context.Context) (int, error) {
	src, err := openLineReader(s.opts.Source, false, s.opts.BufferSize)
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = src.Close()
	}()

	w := newRunWriter(src, s.store, s.opts)
	for {
		if err := ctx.Err(); err != nil {
			return s.stats.Runs, err
		}
		_, n, err := w.writeRun()
		if err != nil {
			return s.stats.Runs, err
		}
		if n == 0 {
			break
		}
		s.stats.Runs++
		s.stats.Records += int64(n)
	}
	return s.stats.Runs, nil
}

// mergeAll merges runs k at a time, oldest first, until one pass writes the
// target. A batch never reaches past the end of the current round, so every
// batch covers runs that are adjacent in source order and stable sorts stay
// stable across passes.
func (s *sorter) mergeAll(ctx context.Context, k, perReader int) error {
	cursors := make([]*runCursor, k)
	for i := range cursors {
		cursors[i] = newRunCursor(perReader)
	}
	m := newMerger(s.opts.Compare, s.opts.Stable, perReader)

	next, roundEnd := 0, s.store.count()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		end := min(next+k, roundEnd)
		batch := make([]int, 0, end-next)
		for i := next; i < end; i++ {
			batch = append(batch, i)
		}
		next = end
		final := next == s.store.count()

		if err := s.mergeBatch(m, cursors, batch, final); err != nil {
			return err
		}
		if final {
			return nil
		}
		if next == roundEnd {
			roundEnd = s.store.count()
		}
	}
}

func (s *sorter) mergeBatch(m *merger, cursors []*runCursor, batch []int, final bool) error {
	if len(batch) == 1 {
		s.stats.Renames++
		if final {
			return s.store.moveToTarget(batch[0], s.opts.Target)
		}
		if _, err := s.store.promote(batch[0]); err != nil {
			return err
		}
		s.stats.IntermediateRuns++
		return nil
	}

	readers := make([]*lineReader, 0, len(batch))
	closeReaders := func() {
		for _, r := range readers {
			if err := r.Close(); err != nil {
				s.ll.Warn("Failed to close run", slog.String("path", r.path), slog.Any("error", err))
			}
		}
	}
	defer closeReaders()

	for i, index := range batch {
		r, err := s.store.open(index)
		if err != nil {
			return err
		}
		readers = append(readers, r)
		cursors[i].reset(r)
	}

	var (
		outIndex int
		out      *lineWriter
		err      error
	)
	if final {
		outIndex, out, err = s.store.createStaging()
	} else {
		outIndex, out, err = s.store.create()
	}
	if err != nil {
		return err
	}
	n, err := m.merge(cursors[:len(batch)], out)
	if err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	s.stats.MergePasses++
	if final {
		if err := s.store.publish(outIndex, s.opts.Target); err != nil {
			return err
		}
	} else {
		s.stats.IntermediateRuns++
		s.opts.Progress("+ " + out.path)
	}
	s.ll.Debug("Merge pass complete",
		slog.String("output", out.path),
		slog.Int("inputs", len(batch)),
		slog.Int64("records", n))

	closeReaders()
	readers = readers[:0]
	for _, index := range batch {
		if err := s.store.remove(index); err != nil {
			return err
		}
	}
	return nil
}

func (s *sorter) writeEmptyTarget() error {
	index, w, err := s.store.createStaging()
	if err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return s.store.publish(index, s.opts.Target)
}

// abort removes every run file this sort still owns. It is best effort.
func (s *sorter) abort() {
	s.store.cleanup(s.ll)
}
