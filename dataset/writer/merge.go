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

package writer

import (
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/erigontech/accelerator/dataset"
	"github.com/erigontech/accelerator/dataset/jobdir"
	"github.com/erigontech/accelerator/dataset/metrics"
)

// mergeThreshold is the mean per-slice byte size at or below which a
// column's slice files get concatenated into one.
const mergeThreshold = 524288

// maybeMergeColumn builds cs's ColumnDescriptor, merging its per-slice
// files into one when slices >= 2 and their mean size doesn't exceed
// mergeThreshold. Column files are independent, self-contained zstd
// frames (dataset/codec), so merging is a raw byte concatenation —
// no decode/recode needed, and a reader can later seek straight to any
// recorded offset and start a fresh frame there.
func maybeMergeColumn(root jobdir.Root, job, name string, cs columnSpec, slices int, lines []int64) (dataset.ColumnDescriptor, error) {
	base := dataset.ColumnDescriptor{
		Type:        cs.Type,
		BackingType: cs.Type,
		Name:        cs.FileName,
		Location:    filepath.Join(job, name, "%s."+cs.FileName),
	}
	if slices < 2 {
		return base, nil
	}

	paths := make([]string, slices)
	var total int64
	for s := 0; s < slices; s++ {
		p := filepath.Join(root.Path, job, name, sliceToken(s)+"."+cs.FileName)
		fi, err := os.Stat(p)
		if err != nil {
			return base, errors.Wrapf(err, "writer: stat %s", p)
		}
		paths[s] = p
		total += fi.Size()
	}
	mean := total / int64(slices)
	if mean > mergeThreshold {
		return base, nil
	}

	mergedAbsPath := filepath.Join(root.Path, job, name, "m."+cs.FileName)
	offsets, mergedSize, err := concatColumnFiles(paths, mergedAbsPath)
	if err != nil {
		return base, err
	}
	for _, p := range paths {
		if err := os.Remove(p); err != nil {
			return base, errors.Wrapf(err, "writer: remove merged-away slice file %s", p)
		}
	}
	base.Location = filepath.Join(job, name, "m."+cs.FileName)
	base.Offsets = offsets
	metrics.MergedColumnBytes.WithLabelValues(job, cs.Name).Set(float64(mergedSize))
	logrus.WithFields(logrus.Fields{"job": job, "dataset": name, "column": cs.Name, "mean_bytes": mean}).Debug("dataset writer: merged small slices")
	return base, nil
}

// concatColumnFiles writes paths back-to-back into mergedAbsPath,
// recording each one's starting offset.
func concatColumnFiles(paths []string, mergedAbsPath string) ([]int64, int64, error) {
	out, err := os.OpenFile(mergedAbsPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "writer: create merged column file %s", mergedAbsPath)
	}
	defer out.Close()

	offsets := make([]int64, len(paths))
	var cur int64
	for i, p := range paths {
		offsets[i] = cur
		in, err := os.Open(p)
		if err != nil {
			return nil, 0, errors.Wrapf(err, "writer: open %s for merge", p)
		}
		n, err := io.Copy(out, in)
		in.Close()
		if err != nil {
			return nil, 0, errors.Wrapf(err, "writer: copy %s into merged file", p)
		}
		cur += n
	}
	return offsets, cur, nil
}
