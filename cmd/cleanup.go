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
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/linesort/internal/helpers"
	"github.com/cardinalhq/linesort/internal/logctx"
)

func init() {
	var tempPrefix string
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove run files left behind by an interrupted sort",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runWithTelemetry("linesort-cleanup", func(ctx context.Context) error {
				return runCleanup(ctx, tempPrefix)
			})
		},
	}

	rootCmd.AddCommand(cmd)

	cmd.Flags().StringVar(&tempPrefix, "temp-prefix", "", "Run file prefix used by the sort, such as data.txt.temp.")
	if err := cmd.MarkFlagRequired("temp-prefix"); err != nil {
		panic(fmt.Errorf("failed to mark temp-prefix flag as required: %w", err))
	}
}

func runCleanup(ctx context.Context, prefix string) error {
	ll := logctx.FromContext(ctx)
	removed, err := helpers.RemoveOrphanRuns(prefix)
	for _, path := range removed {
		ll.Info("- " + path)
	}
	if err != nil {
		return fmt.Errorf("cleanup %s: %w", prefix, err)
	}
	ll.Info("Cleanup complete", slog.String("prefix", prefix), slog.Int("removed", len(removed)))
	return nil
}
