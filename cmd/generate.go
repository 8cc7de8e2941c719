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
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/linesort/internal/logctx"
)

func init() {
	var (
		output string
		rows   int
		seed   uint64
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write a test file of \"<random key>, <line number>\" records",
		RunE: func(_ *cobra.Command, _ []string) error {
			if rows < 0 {
				return fmt.Errorf("rows %d must not be negative", rows)
			}
			return runWithTelemetry("linesort-generate", func(ctx context.Context) error {
				return runGenerate(ctx, output, rows, seed)
			})
		},
	}

	rootCmd.AddCommand(cmd)

	cmd.Flags().StringVar(&output, "output", "", "File to write")
	cmd.Flags().IntVar(&rows, "rows", 1000, "Number of records")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "Random seed; 0 picks one")
	if err := cmd.MarkFlagRequired("output"); err != nil {
		panic(fmt.Errorf("failed to mark output flag as required: %w", err))
	}
}

func runGenerate(ctx context.Context, output string, rows int, seed uint64) error {
	if seed == 0 {
		seed = rand.Uint64()
	}
	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", output, err)
	}
	if err := generateLines(f, rows, rand.New(rand.NewPCG(seed, seed))); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write %s: %w", output, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", output, err)
	}
	logctx.FromContext(ctx).Info("Generated test file",
		slog.String("path", output),
		slog.Int("rows", rows),
		slog.Uint64("seed", seed))
	return nil
}

// generateLines writes rows records "<key>, <i>" with key drawn from
// [0, rows], so keys repeat and stability can be checked by the line number.
func generateLines(w io.Writer, rows int, rng *rand.Rand) error {
	bw := bufio.NewWriter(w)
	var line []byte
	for i := range rows {
		line = strconv.AppendInt(line[:0], int64(rng.IntN(rows+1)), 10)
		line = append(line, ", "...)
		line = strconv.AppendInt(line, int64(i), 10)
		line = append(line, '\n')
		if _, err := bw.Write(line); err != nil {
			return err
		}
	}
	return bw.Flush()
}
