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
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"slices"
	"strconv"

	"github.com/hashicorp/go-multierror"
)

// runStore owns the run file namespace of one sort. Run indexes are handed
// out in creation order and never reused; live tracks the runs that still
// exist on disk so they can be removed if the sort aborts.
type runStore struct {
	prefix     string
	compressed bool
	bufSize    int
	progress   func(string)

	created int
	live    map[int]struct{}
}

func newRunStore(prefix string, compressed bool, bufSize int, progress func(string)) *runStore {
	return &runStore{
		prefix:     prefix,
		compressed: compressed,
		bufSize:    bufSize,
		progress:   progress,
		live:       make(map[int]struct{}),
	}
}

// path returns the file name of run index.
func (s *runStore) path(index int) string {
	return s.prefix + strconv.Itoa(index)
}

// count is the number of runs created so far, including runs already consumed.
func (s *runStore) count() int {
	return s.created
}

// create allocates the next run index and opens its file for writing.
func (s *runStore) create() (int, *lineWriter, error) {
	return s.createFile(s.compressed)
}

// createStaging allocates the next run index for plain text output that
// publish later moves onto the target, so an existing target is only ever
// replaced by a complete file.
func (s *runStore) createStaging() (int, *lineWriter, error) {
	return s.createFile(false)
}

func (s *runStore) createFile(compressed bool) (int, *lineWriter, error) {
	index := s.created
	w, err := createLineWriter(s.path(index), compressed, s.bufSize)
	if err != nil {
		return 0, nil, err
	}
	s.created++
	s.live[index] = struct{}{}
	return index, w, nil
}

func (s *runStore) open(index int) (*lineReader, error) {
	return openLineReader(s.path(index), s.compressed, s.bufSize)
}

// remove deletes a consumed run.
func (s *runStore) remove(index int) error {
	name := s.path(index)
	if err := os.Remove(name); err != nil {
		return fmt.Errorf("remove run %s: %w", name, err)
	}
	delete(s.live, index)
	s.progress("- " + name)
	return nil
}

// promote renames a run to the next free index, so a lone run at the end of
// a merge round lines up behind the runs that round produced.
func (s *runStore) promote(index int) (int, error) {
	from, next := s.path(index), s.created
	to := s.path(next)
	if err := os.Rename(from, to); err != nil {
		return 0, fmt.Errorf("rename run %s to %s: %w", from, to, err)
	}
	delete(s.live, index)
	s.created++
	s.live[next] = struct{}{}
	s.progress("+ " + to)
	return next, nil
}

// publish renames a finished plain text run onto the target.
func (s *runStore) publish(index int, target string) error {
	from := s.path(index)
	if err := os.Rename(from, target); err != nil {
		return fmt.Errorf("rename run %s to %s: %w", from, target, err)
	}
	delete(s.live, index)
	s.progress("+ " + target)
	return nil
}

// moveToTarget turns a run into the final output. Plain runs are renamed;
// compressed runs are decoded into a staging run that is then renamed.
func (s *runStore) moveToTarget(index int, target string) error {
	if !s.compressed {
		return s.publish(index, target)
	}

	staging, err := s.decodeToStaging(index)
	if err != nil {
		return err
	}
	if err := s.publish(staging, target); err != nil {
		return err
	}
	return s.remove(index)
}

func (s *runStore) decodeToStaging(index int) (int, error) {
	r, err := s.open(index)
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = r.Close()
	}()

	staging, w, err := s.createStaging()
	if err != nil {
		return 0, err
	}
	for {
		record, err := r.readRecord()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			_ = w.Close()
			return 0, err
		}
		if err := w.writeRecord(record); err != nil {
			_ = w.Close()
			return 0, err
		}
	}
	return staging, w.Close()
}

// cleanup removes every run still on disk. Failures are logged, never returned,
// so they cannot hide the error that caused the abort.
func (s *runStore) cleanup(ll *slog.Logger) {
	var errs *multierror.Error
	for _, index := range slices.Sorted(maps.Keys(s.live)) {
		name := s.path(index)
		if err := os.Remove(name); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = multierror.Append(errs, fmt.Errorf("remove run %s: %w", name, err))
			continue
		}
		delete(s.live, index)
		s.progress("- " + name)
	}
	if err := errs.ErrorOrNil(); err != nil {
		ll.Warn("Failed to remove run files", slog.Int("count", errs.Len()), slog.Any("error", err))
	}
}
