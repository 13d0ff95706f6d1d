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

package dataset

// ColumnDescriptor describes one column of a dataset.
// If we ever need to add fields, a version bump (see Metadata.Version)
// lets us keep loading datasets written by older versions without
// touching this struct's meaning.
type ColumnDescriptor struct {
	// Type and BackingType are the logical and physical codec
	// identifiers; they must agree in this version (backing_type is
	// carried separately only so a future version can diverge them,
	// e.g. a "parsed:" variant backed by its converted type).
	Type        string
	BackingType string
	// Name is the filesystem-safe form of the column name (CleanName).
	Name string
	// Location is "job_id/path/to/file" for a merged column, or
	// "job_id/path/%s/file" with a slice-index placeholder otherwise.
	Location string
	// Min, Max are the per-dataset extremes for ordered types, nil
	// otherwise.
	Min, Max any
	// Offsets holds the byte offset of each slice within a merged
	// column file, nil if the column is still stored per-slice.
	Offsets []int64
}

// Merged reports whether this column was merged into a single file.
func (c ColumnDescriptor) Merged() bool {
	return c.Offsets != nil
}
