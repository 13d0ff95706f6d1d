// Copyright 2024 The Erigon Authors
// This file is part of Erigon.
//
// Erigon is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Erigon is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Erigon. If not, see <http://www.gnu.org/licenses/>.

// Package metrics exposes optional prometheus instrumentation for the
// dataset engine. Nothing in dataset/writer or dataset/reader requires
// these counters to function; a caller that never scrapes /metrics
// pays only the cost of a few registered collectors.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// RowsWritten counts rows accepted by a writer, per job.
	RowsWritten = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "accelerator",
		Subsystem: "dataset",
		Name:      "rows_written_total",
		Help:      "Rows written to a dataset, by job id.",
	}, []string{"job"})

	// MergedColumnBytes records the size of a column file produced by
	// the small-slice merge step, per job and column.
	MergedColumnBytes = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "accelerator",
		Subsystem: "dataset",
		Name:      "merged_column_bytes",
		Help:      "Size in bytes of a merged column file.",
	}, []string{"job", "column"})

	// ChainWalkDepth records how many datasets a chain walk visited.
	ChainWalkDepth = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "accelerator",
		Subsystem: "dataset",
		Name:      "chain_walk_depth",
		Help:      "Number of datasets visited per chain walk.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
	})
)

func init() {
	prometheus.MustRegister(RowsWritten, MergedColumnBytes, ChainWalkDepth)
}
