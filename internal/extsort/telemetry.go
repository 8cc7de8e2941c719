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

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
)

var (
	recordsCounter    otelmetric.Int64Counter
	runsCounter       otelmetric.Int64Counter
	mergePassCounter  otelmetric.Int64Counter
	sortDurationHisto otelmetric.Float64Histogram
)

func init() {
	initTelemetry()
}

func initTelemetry() {
	meter := otel.Meter("github.com/cardinalhq/linesort/internal/extsort")

	var err error
	recordsCounter, err = meter.Int64Counter(
		"linesort.sort.records",
		otelmetric.WithDescription("Number of records read from sort sources"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create sort.records counter: %w", err))
	}

	runsCounter, err = meter.Int64Counter(
		"linesort.sort.runs",
		otelmetric.WithDescription("Number of run files written, by kind"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create sort.runs counter: %w", err))
	}

	mergePassCounter, err = meter.Int64Counter(
		"linesort.sort.merge.passes",
		otelmetric.WithDescription("Number of merge passes that ran the k-way merge"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create sort.merge.passes counter: %w", err))
	}

	sortDurationHisto, err = meter.Float64Histogram(
		"linesort.sort.duration",
		otelmetric.WithUnit("s"),
		otelmetric.WithDescription("Wall clock duration of a completed sort in seconds"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create sort.duration histogram: %w", err))
	}
}

func recordSortTelemetry(ctx context.Context, stats Stats, stable bool) {
	mode := attribute.Bool("stable", stable)

	recordsCounter.Add(ctx, stats.Records, otelmetric.WithAttributes(mode))
	runsCounter.Add(ctx, int64(stats.Runs), otelmetric.WithAttributes(attribute.String("kind", "initial")))
	runsCounter.Add(ctx, int64(stats.IntermediateRuns), otelmetric.WithAttributes(attribute.String("kind", "intermediate")))
	mergePassCounter.Add(ctx, int64(stats.MergePasses), otelmetric.WithAttributes(mode))
	sortDurationHisto.Record(ctx, stats.Elapsed.Seconds(), otelmetric.WithAttributes(mode))
}
