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

package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/linesort/config"
	"github.com/cardinalhq/linesort/internal/extsort"
	"github.com/cardinalhq/linesort/internal/helpers"
	"github.com/cardinalhq/linesort/internal/logctx"
)

// tempRunPrefix is the run file prefix used inside a --temp-dir directory.
const tempRunPrefix = "temp."

type sortFlags struct {
	source       string
	target       string
	tempDir      string
	tempPrefix   string
	maxLoad      int
	kWayMerge    int
	bufferSize   int
	stable       bool
	compressRuns bool
	key          keyFlags
}

func init() {
	var f sortFlags
	cmd := &cobra.Command{
		Use:   "sort",
		Short: "Sort a line file with bounded memory",
		RunE: func(c *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			opts, err := f.options(cfg.Sort, c.Flags().Changed)
			if err != nil {
				return err
			}
			return runWithTelemetry("linesort-sort", func(ctx context.Context) error {
				return runSort(ctx, opts)
			})
		},
	}

	rootCmd.AddCommand(cmd)

	cmd.Flags().StringVar(&f.source, "source", "", "File to sort")
	cmd.Flags().StringVar(&f.target, "target", "", "Output file (default: <source>.sorted)")
	cmd.Flags().StringVar(&f.tempDir, "temp-dir", "", "Directory for run files, named temp.<n>")
	cmd.Flags().StringVar(&f.tempPrefix, "temp-prefix", "", "Path prefix for run files (default: <source>.temp.)")
	cmd.Flags().IntVar(&f.maxLoad, "max-load", extsort.DefaultMaxLoad, "Maximum records held in memory")
	cmd.Flags().IntVar(&f.kWayMerge, "k-way", 1, "Runs merged per pass; 1 or less merges all runs at once")
	cmd.Flags().IntVar(&f.bufferSize, "buffer-size", extsort.DefaultBufferSize, "I/O buffer size per open file in bytes")
	cmd.Flags().BoolVar(&f.stable, "stable", false, "Keep equal records in source order")
	cmd.Flags().BoolVar(&f.compressRuns, "compress-runs", false, "Write run files as zstd streams")
	addKeyFlags(cmd, &f.key)

	if err := cmd.MarkFlagRequired("source"); err != nil {
		panic(fmt.Errorf("failed to mark source flag as required: %w", err))
	}
	cmd.MarkFlagsMutuallyExclusive("temp-dir", "temp-prefix")
}

// options merges the flags with the loaded config. A flag wins only when it
// was set on the command line.
func (f sortFlags) options(cfg config.SortConfig, changed func(string) bool) (extsort.Options, error) {
	cmp, err := f.key.comparator()
	if err != nil {
		return extsort.Options{}, err
	}

	if !changed("max-load") {
		f.maxLoad = cfg.MaxLoad
	}
	if !changed("k-way") {
		f.kWayMerge = cfg.KWayMerge
	}
	if !changed("buffer-size") {
		f.bufferSize = cfg.BufferSize
	}
	if !changed("stable") {
		f.stable = cfg.Stable
	}
	if !changed("compress-runs") {
		f.compressRuns = cfg.CompressRuns
	}
	if f.tempPrefix != "" && f.tempDir != "" {
		return extsort.Options{}, errors.New("--temp-dir and --temp-prefix cannot be combined")
	}
	if f.tempPrefix == "" && f.tempDir == "" {
		f.tempDir = cfg.TempDir
	}
	if f.tempDir != "" {
		f.tempPrefix = filepath.Join(f.tempDir, tempRunPrefix)
	}

	return extsort.Options{
		Source:       f.source,
		Target:       f.target,
		TempPrefix:   f.tempPrefix,
		Compare:      cmp,
		Stable:       f.stable,
		MaxLoad:      f.maxLoad,
		KWayMerge:    f.kWayMerge,
		CompressRuns: f.compressRuns,
		BufferSize:   f.bufferSize,
	}, nil
}

func runSort(ctx context.Context, opts extsort.Options) error {
	ll := logctx.FromContext(ctx)
	opts.Progress = logctx.ProgressFunc(ctx)

	checkDiskSpace(ll, opts)

	stats, err := extsort.Sort(ctx, opts)
	if err != nil {
		return fmt.Errorf("sort %s: %w", opts.Source, err)
	}
	ll.Debug("Sort statistics",
		slog.Int("renames", stats.Renames),
		slog.Int64("records", stats.Records))
	return nil
}

// checkDiskSpace warns when the run directory has less free space than twice
// the source size. Runs and target can both exist at the end of a pass.
func checkDiskSpace(ll *slog.Logger, opts extsort.Options) {
	info, err := os.Stat(opts.Source)
	if err != nil {
		// Sort reports the real error.
		return
	}
	dir := filepath.Dir(opts.Source)
	if opts.TempPrefix != "" {
		dir = filepath.Dir(opts.TempPrefix)
	}
	usage, err := helpers.DiskUsage(dir)
	if err != nil {
		ll.Warn("Unable to check free disk space", slog.String("path", dir), slog.Any("error", err))
		return
	}
	need := 2 * uint64(info.Size())
	if !usage.HasRoomFor(need) {
		ll.Warn("Free disk space may be too low for the sort",
			slog.String("path", dir),
			slog.Uint64("freeBytes", usage.FreeBytes),
			slog.Uint64("neededBytes", need))
	}
}
