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
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/linesort/internal/linecmp"
	"github.com/cardinalhq/linesort/internal/logctx"
)

func init() {
	var (
		file        string
		stableField int
		key         keyFlags
	)
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check that a file is sorted",
		Long: `Check that every line of a file sorts at or after the line before it.
With --stable-field, lines with equal keys must also have increasing integer
values in that field, which is how generated test files record source order.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			cmp, err := key.comparator()
			if err != nil {
				return err
			}
			if stableField > 0 && key.separator == "" {
				return errors.New("--stable-field needs --separator")
			}
			return runWithTelemetry("linesort-verify", func(ctx context.Context) error {
				return runVerify(ctx, file, cmp, key.separator, stableField)
			})
		},
	}

	rootCmd.AddCommand(cmd)

	cmd.Flags().StringVar(&file, "file", "", "Sorted file to check")
	cmd.Flags().IntVar(&stableField, "stable-field", 0, "1-based field holding the source line number")
	addKeyFlags(cmd, &key)
	if err := cmd.MarkFlagRequired("file"); err != nil {
		panic(fmt.Errorf("failed to mark file flag as required: %w", err))
	}
}

func runVerify(ctx context.Context, path string, cmp linecmp.Func, sep string, stableField int) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() {
		_ = f.Close()
	}()

	n, err := verifyLines(f, cmp, sep, stableField)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	logctx.FromContext(ctx).Info("File is sorted", slog.String("path", path), slog.Int64("lines", n))
	return nil
}

// verifyLines checks the ordering of r and returns the number of lines read.
func verifyLines(r io.Reader, cmp linecmp.Func, sep string, stableField int) (int64, error) {
	br := bufio.NewReader(r)
	var (
		prev    string
		prevSeq int
		n       int64
	)
	for {
		line, err := br.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return n, err
		}
		if line == "" && err != nil {
			return n, nil
		}
		line = strings.TrimSuffix(line, "\n")
		n++

		var seq int
		if stableField > 0 {
			seq, err = sequenceField(line, sep, stableField)
			if err != nil {
				return n, fmt.Errorf("line %d: %w", n, err)
			}
		}
		if n > 1 {
			c := cmp(prev, line)
			if c > 0 {
				return n, fmt.Errorf("line %d: %q sorts after %q", n, prev, line)
			}
			if c == 0 && stableField > 0 && seq <= prevSeq {
				return n, fmt.Errorf("line %d: equal keys out of source order (%d then %d)", n, prevSeq, seq)
			}
		}
		prev, prevSeq = line, seq
	}
}

func sequenceField(line, sep string, n int) (int, error) {
	fields := strings.Split(line, sep)
	if n > len(fields) {
		return 0, fmt.Errorf("no field %d in %q", n, line)
	}
	seq, err := strconv.Atoi(strings.TrimSpace(fields[n-1]))
	if err != nil {
		return 0, fmt.Errorf("field %d of %q is not an integer", n, line)
	}
	return seq, nil
}
