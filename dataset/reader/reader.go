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

// Package reader opens finished datasets and iterates their rows:
// per-dataset and per-chain, with slicing, filtering, translation,
// range pruning and rehashing.
// Iteration is lazy and pull-based: row sequences are Go 1.23
// range-over-func iterators, so a consumer that stops early releases
// the underlying column files without any explicit Close call.
//
// Round-robin iteration across slices of unequal length is
// approximate: the driver fills exhausted slices with nothing and
// simply stops asking them for more, so the exact original per-slice
// interleaving is not reproduced once slices run dry at different
// times — callers needing exact ordering should iterate slices
// sequentially instead.
package reader

import (
	"fmt"
	"iter"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/pkg/errors"

	"github.com/erigontech/accelerator/dataset"
	"github.com/erigontech/accelerator/dataset/codec"
	"github.com/erigontech/accelerator/dataset/jobdir"
)

// Dataset is an opened dataset handle: an identity paired with its
// resolved metadata, kept as separate concepts from dataset.ID itself.
type Dataset struct {
	root jobdir.Root
	ID   dataset.ID
	Meta *dataset.Metadata
}

// Open resolves id's metadata record through the job directory
// resolver. Errors are dataset.ErrNoSuchDataset /
// dataset.ErrDatasetError, propagated unchanged from dataset.Load.
func Open(root jobdir.Root, id dataset.ID) (*Dataset, error) {
	m, err := dataset.Load(root, id)
	if err != nil {
		return nil, err
	}
	return &Dataset{root: root, ID: id, Meta: m}, nil
}

func sliceToken(slice int) string {
	return strconv.Itoa(slice)
}

// ColumnFilename resolves the absolute path col's values live at. If
// the column is merged, slice is ignored and the caller is expected to
// seek via the recorded offset instead. If the column is still sliced
// and slice is negative, the printf-style placeholder is returned
// as-is.
func (d *Dataset) ColumnFilename(col string, slice int) (string, error) {
	cd, ok := d.Meta.Columns[col]
	if !ok {
		return "", errors.Wrapf(dataset.ErrDatasetUsageError, "dataset %s has no column %q", d.ID, col)
	}
	if cd.Merged() || slice < 0 {
		return filepath.Join(d.root.Path, cd.Location), nil
	}
	return filepath.Join(d.root.Path, fmt.Sprintf(cd.Location, sliceToken(slice))), nil
}

// openColumnReader opens a codec.Reader positioned at exactly one
// slice's worth of col's values, whether the column is merged (seek to
// its recorded offset) or still one file per slice.
func (d *Dataset) openColumnReader(col string, slice int) (codec.Reader, error) {
	cd, ok := d.Meta.Columns[col]
	if !ok {
		return nil, errors.Wrapf(dataset.ErrDatasetUsageError, "dataset %s has no column %q", d.ID, col)
	}
	if slice < 0 || slice >= len(d.Meta.Lines) {
		return nil, errors.Wrapf(dataset.ErrDatasetUsageError, "dataset %s has no slice %d", d.ID, slice)
	}
	path, err := d.ColumnFilename(col, slice)
	if err != nil {
		return nil, err
	}
	opts := codec.ReaderOpts{MaxCount: d.Meta.Lines[slice]}
	if cd.Merged() {
		if slice >= len(cd.Offsets) {
			return nil, errors.Wrapf(dataset.ErrDatasetError, "dataset %s column %q missing offset for slice %d", d.ID, col, slice)
		}
		opts.Seek = cd.Offsets[slice]
	}
	return codec.NewReader(cd.Type, path, opts)
}

// resolveColumns normalizes the request into a sorted column list; an
// empty/nil request means every column.
func (d *Dataset) resolveColumns(requested []string) ([]string, error) {
	if len(requested) == 0 {
		return d.Meta.SortedColumnNames(), nil
	}
	cols := append([]string(nil), requested...)
	sort.Strings(cols)
	for _, c := range cols {
		if !d.HasColumn(c) {
			return nil, errors.Wrapf(dataset.ErrDatasetUsageError, "dataset %s has no column %q", d.ID, c)
		}
	}
	return cols, nil
}

// HasColumn reports whether this dataset carries col.
func (d *Dataset) HasColumn(col string) bool {
	return d.Meta.HasColumn(col)
}

// IterateOpts configures a single dataset's row iteration.
type IterateOpts struct {
	Columns             []string
	HashLabel           string
	Rehash              bool
	RowFilter           RowFilter
	PerColumnFilter     PerColumnFilter
	RowTranslator       RowTranslator
	PerColumnTranslator PerColumnTranslator
	Range               map[string]RangeBound
	SloppyRange         bool
}

// Iterate yields every row of this dataset across all its slices, in
// slice order. Rehashing is always off: every slice is read regardless
// of hashlabel, so there is nothing to rehash against.
func (d *Dataset) Iterate(opts IterateOpts) RowSeq {
	return iterateDatasets([]*Dataset{d}, opts, sliceModeAll, Callbacks{})
}

// IterateSlice yields one slice's rows. With HashLabel and Rehash set
// it reads every physical slice, keeping only rows whose hashlabel
// value hashes into slice.
func (d *Dataset) IterateSlice(slice int, opts IterateOpts) RowSeq {
	return iterateDatasetsExplicit([]*Dataset{d}, opts, sliceModeSingle, slice, Callbacks{})
}

// IterateColumn yields a single column's values as scalars rather than
// one-element rows.
func (d *Dataset) IterateColumn(col string, opts IterateOpts) iter.Seq2[any, error] {
	opts.Columns = []string{col}
	return func(yield func(any, error) bool) {
		for row, err := range d.Iterate(opts) {
			var v any
			if len(row) > 0 {
				v = row[0]
			}
			if !yield(v, err) {
				return
			}
		}
	}
}
