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
	"io/fs"
	"math/rand/v2"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var mixedKeyLines = []string{"3,a", "1,b", "3,c", "2,d", "1,e"}

func TestSort_StableKeepsSourceOrder(t *testing.T) {
	dir := t.TempDir()
	source := writeSource(t, dir, "data", mixedKeyLines)
	progress := &progressLog{}

	stats, err := Sort(context.Background(), Options{
		Source:    source,
		Compare:   byLeadingInt,
		Stable:    true,
		MaxLoad:   2,
		KWayMerge: 2,
		Progress:  progress.add,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"1,b", "1,e", "2,d", "3,a", "3,c"}, readLines(t, source+".sorted"))
	assert.Equal(t, int64(5), stats.Records)
	assert.Equal(t, 3, stats.Runs)
	assert.Equal(t, 2, stats.IntermediateRuns)
	assert.Equal(t, 2, stats.MergePasses)
	assert.Equal(t, 1, stats.Renames)

	temp := source + ".temp."
	require.NotEmpty(t, progress.lines)
	assert.Equal(t, []string{
		"+ " + temp + "0",
		"+ " + temp + "1",
		"+ " + temp + "2",
		"+ " + temp + "3",
		"- " + temp + "0",
		"- " + temp + "1",
		"+ " + temp + "4",
		"+ " + source + ".sorted",
		"- " + temp + "3",
		"- " + temp + "4",
	}, progress.lines[:len(progress.lines)-1])
	assert.Regexp(t, `^Done in \d+ seconds\.$`, progress.lines[len(progress.lines)-1])

	assert.Empty(t, filesWithPrefix(t, dir, "data.temp."))
}

func TestSort_UnstableGroupsKeys(t *testing.T) {
	dir := t.TempDir()
	source := writeSource(t, dir, "data", mixedKeyLines)

	_, err := Sort(context.Background(), Options{
		Source:    source,
		Compare:   byLeadingInt,
		MaxLoad:   2,
		KWayMerge: 2,
	})
	require.NoError(t, err)

	got := readLines(t, source+".sorted")
	require.Len(t, got, 5)
	assert.True(t, slices.IsSortedFunc(got, byLeadingInt))
	assert.ElementsMatch(t, []string{"1,b", "1,e"}, got[:2])
	assert.Equal(t, "2,d", got[2])
	assert.ElementsMatch(t, []string{"3,a", "3,c"}, got[3:])
}

func TestSort_EmptySource(t *testing.T) {
	for _, stable := range []bool{false, true} {
		t.Run(fmt.Sprintf("stable=%v", stable), func(t *testing.T) {
			dir := t.TempDir()
			source := writeSource(t, dir, "empty", nil)
			target := filepath.Join(dir, "out")
			progress := &progressLog{}

			stats, err := Sort(context.Background(), Options{
				Source:   source,
				Target:   target,
				Compare:  strings.Compare,
				Stable:   stable,
				MaxLoad:  100,
				Progress: progress.add,
			})
			require.NoError(t, err)

			info, err := os.Stat(target)
			require.NoError(t, err)
			assert.Zero(t, info.Size())
			assert.Zero(t, stats.Runs)
			assert.Zero(t, stats.MergePasses)
			assert.Equal(t, "+ "+target, progress.lines[0])
			assert.Empty(t, filesWithPrefix(t, dir, "empty.temp."))
		})
	}
}

func TestSort_SingleRunIsRenamed(t *testing.T) {
	dir := t.TempDir()
	source := writeSource(t, dir, "small", []string{"pear", "apple", "fig"})
	var sorterCalls int

	stats, err := Sort(context.Background(), Options{
		Source:  source,
		Compare: strings.Compare,
		MaxLoad: 3,
		Sorter: func(records []string, cmp Compare, stable bool) {
			sorterCalls++
			SortBatch(records, cmp, stable)
		},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"apple", "fig", "pear"}, readLines(t, source+".sorted"))
	assert.Equal(t, 1, stats.Runs)
	assert.Equal(t, 1, stats.Renames)
	assert.Zero(t, stats.MergePasses, "a single run must not be merged")
	assert.Equal(t, 1, sorterCalls)
	assert.Empty(t, filesWithPrefix(t, dir, "small.temp."))
}

func TestSort_FinalLineWithoutNewline(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "ragged")
	require.NoError(t, os.WriteFile(source, []byte("b\n\nc\na"), 0o644))

	_, err := Sort(context.Background(), Options{
		Source:  source,
		Compare: strings.Compare,
		MaxLoad: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"", "a", "b", "c"}, readLines(t, source+".sorted"))
}

func TestSort_Matrix(t *testing.T) {
	tests := []struct {
		rows    int
		maxLoad int
		kWay    int
	}{
		{1000, 100, 1},
		{100, 10, 9},
		{100, 10, 10},
		{100, 10, 2},
		{333, 7, 3},
		{50, 2, 0},
		{257, 16, 1000},
		{1, 5, 1},
	}
	for _, tt := range tests {
		for _, stable := range []bool{false, true} {
			name := fmt.Sprintf("rows=%d/maxLoad=%d/k=%d/stable=%v", tt.rows, tt.maxLoad, tt.kWay, stable)
			t.Run(name, func(t *testing.T) {
				checkSort(t, rand.New(rand.NewPCG(uint64(tt.rows), uint64(tt.maxLoad))), tt.rows, tt.maxLoad, tt.kWay, stable, false)
			})
		}
	}
}

func TestSort_RandomFactors(t *testing.T) {
	rng := rand.New(rand.NewPCG(2019, 2020))
	for i := range 6 {
		rows := rng.IntN(2001)
		maxLoad := 10 + rng.IntN(991)
		kWay := 1 + rng.IntN(30)
		stable := i%2 == 1
		t.Run(fmt.Sprintf("case%d", i), func(t *testing.T) {
			checkSort(t, rng, rows, maxLoad, kWay, stable, false)
		})
	}
}

func TestSort_CompressedRuns(t *testing.T) {
	t.Run("many runs", func(t *testing.T) {
		checkSort(t, rand.New(rand.NewPCG(5, 5)), 500, 20, 3, true, true)
	})
	t.Run("single run", func(t *testing.T) {
		checkSort(t, rand.New(rand.NewPCG(6, 6)), 15, 20, 1, false, true)
	})
}

func TestSort_FanoutValuesAreNormalized(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	lines := make([]string, 120)
	for i := range lines {
		lines[i] = fmt.Sprintf("%d, %d", rng.IntN(15), i)
	}
	want := slices.Clone(lines)
	slices.SortStableFunc(want, byLeadingInt)

	for _, kWay := range []int{-3, 0, 1, 2, 11, 12, 13, 1000} {
		t.Run(fmt.Sprintf("k=%d", kWay), func(t *testing.T) {
			dir := t.TempDir()
			source := writeSource(t, dir, "src", lines)
			_, err := Sort(context.Background(), Options{
				Source:    source,
				Compare:   byLeadingInt,
				Stable:    true,
				MaxLoad:   12,
				KWayMerge: kWay,
			})
			require.NoError(t, err)
			assert.Equal(t, want, readLines(t, source+".sorted"))
		})
	}
}

func TestSort_InvalidArguments(t *testing.T) {
	dir := t.TempDir()
	source := writeSource(t, dir, "src", mixedKeyLines)

	tests := []struct {
		name string
		opts Options
	}{
		{"no source", Options{Compare: strings.Compare}},
		{"no comparator", Options{Source: source}},
		{"negative max load", Options{Source: source, Compare: strings.Compare, MaxLoad: -10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Sort(context.Background(), tt.opts)
			require.ErrorIs(t, err, ErrInvalidArgument)
		})
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "rejected calls must not touch the filesystem")
}

func TestSort_MissingSource(t *testing.T) {
	dir := t.TempDir()
	_, err := Sort(context.Background(), Options{
		Source:  filepath.Join(dir, "nope"),
		Compare: strings.Compare,
	})
	require.ErrorIs(t, err, fs.ErrNotExist)
	assert.NotErrorIs(t, err, ErrInvalidArgument)
}

func TestSort_FailureRemovesRuns(t *testing.T) {
	tests := []struct {
		name    string
		maxLoad int
	}{
		{"merge into target fails", 2},
		{"rename to target fails", 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			source := writeSource(t, dir, "src", mixedKeyLines)
			progress := &progressLog{}

			_, err := Sort(context.Background(), Options{
				Source:   source,
				Target:   filepath.Join(dir, "missing", "out"),
				Compare:  byLeadingInt,
				MaxLoad:  tt.maxLoad,
				Progress: progress.add,
			})
			require.Error(t, err)
			assert.ErrorIs(t, err, fs.ErrNotExist)

			assert.Empty(t, filesWithPrefix(t, dir, "src.temp."))
			assert.Equal(t, mixedKeyLines, readLines(t, source), "source is left untouched")
			for _, line := range progress.lines {
				assert.NotContains(t, line, "Done in")
			}
		})
	}
}

func TestSort_FailedFinalPassKeepsExistingTarget(t *testing.T) {
	dir := t.TempDir()
	source := writeSource(t, dir, "src", mixedKeyLines)
	target := filepath.Join(dir, "out")
	require.NoError(t, os.WriteFile(target, []byte("previous\n"), 0o644))
	temp := source + ".temp."

	// Once the lone run is promoted, swap run 3 for a directory so the final
	// merge fails on its first read, after its output file exists.
	progress := &progressLog{}
	onProgress := func(line string) {
		progress.add(line)
		if line == "+ "+temp+"4" {
			require.NoError(t, os.Remove(temp+"3"))
			require.NoError(t, os.Mkdir(temp+"3", 0o755))
		}
	}

	_, err := Sort(context.Background(), Options{
		Source:    source,
		Target:    target,
		Compare:   byLeadingInt,
		Stable:    true,
		MaxLoad:   2,
		KWayMerge: 2,
		Progress:  onProgress,
	})
	require.Error(t, err)

	assert.Equal(t, []string{"previous"}, readLines(t, target))
	assert.Empty(t, filesWithPrefix(t, dir, "src.temp."))
	assert.NotContains(t, progress.lines, "+ "+target)
}

func TestSort_ReplacesExistingTarget(t *testing.T) {
	for _, maxLoad := range []int{2, 100} {
		t.Run(fmt.Sprintf("maxLoad=%d", maxLoad), func(t *testing.T) {
			dir := t.TempDir()
			source := writeSource(t, dir, "src", mixedKeyLines)
			target := filepath.Join(dir, "out")
			require.NoError(t, os.WriteFile(target, []byte("previous\nlonger than the result\n"), 0o644))

			_, err := Sort(context.Background(), Options{
				Source:  source,
				Target:  target,
				Compare: byLeadingInt,
				Stable:  true,
				MaxLoad: maxLoad,
			})
			require.NoError(t, err)
			assert.Equal(t, []string{"1,b", "1,e", "2,d", "3,a", "3,c"}, readLines(t, target))
			assert.Empty(t, filesWithPrefix(t, dir, "src.temp."))
		})
	}
}

func TestSort_CancelledContext(t *testing.T) {
	dir := t.TempDir()
	source := writeSource(t, dir, "src", mixedKeyLines)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Sort(ctx, Options{
		Source:  source,
		Compare: byLeadingInt,
		MaxLoad: 2,
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, filesWithPrefix(t, dir, "src.temp."))
	_, err = os.Stat(source + ".sorted")
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestSort_TempPrefixInOtherDirectory(t *testing.T) {
	dir := t.TempDir()
	tmp := t.TempDir()
	source := writeSource(t, dir, "src", mixedKeyLines)
	progress := &progressLog{}

	_, err := Sort(context.Background(), Options{
		Source:     source,
		TempPrefix: filepath.Join(tmp, "temp."),
		Compare:    byLeadingInt,
		Stable:     true,
		MaxLoad:    2,
		Progress:   progress.add,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"1,b", "1,e", "2,d", "3,a", "3,c"}, readLines(t, source+".sorted"))
	assert.Contains(t, progress.lines, "+ "+filepath.Join(tmp, "temp.0"))

	entries, err := os.ReadDir(tmp)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

// checkSort sorts rows of "key, seq" records and checks the target is a sorted
// permutation of the source, and that equal keys keep source order when stable.
func checkSort(t *testing.T, rng *rand.Rand, rows, maxLoad, kWay int, stable, compress bool) {
	t.Helper()
	dir := t.TempDir()
	lines := make([]string, rows)
	for i := range lines {
		lines[i] = fmt.Sprintf("%d, %d", rng.IntN(rows+1), i)
	}
	source := writeSource(t, dir, "src", lines)
	target := filepath.Join(dir, "dst")

	stats, err := Sort(context.Background(), Options{
		Source:       source,
		Target:       target,
		Compare:      byLeadingInt,
		Stable:       stable,
		MaxLoad:      maxLoad,
		KWayMerge:    kWay,
		CompressRuns: compress,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(rows), stats.Records)

	got := readLines(t, target)
	require.Len(t, got, rows)
	for i := 1; i < len(got); i++ {
		prevKey, prevSeq := keyAndSeq(t, got[i-1])
		key, seq := keyAndSeq(t, got[i])
		require.LessOrEqual(t, prevKey, key, "line %d out of order", i)
		if stable && prevKey == key {
			require.Less(t, prevSeq, seq, "line %d breaks stability", i)
		}
	}

	sortedGot := slices.Clone(got)
	slices.Sort(sortedGot)
	sortedLines := slices.Clone(lines)
	slices.Sort(sortedLines)
	assert.Equal(t, sortedLines, sortedGot)

	assert.Empty(t, filesWithPrefix(t, dir, "src.temp."))
}
