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

import "sort"

// Version is the metadata record's own format version: major 3,
// minor 0. A loader refuses anything whose major differs or whose
// minor is older than what it understands.
type Version struct {
	Major, Minor int
}

// CurrentVersion is the version this package writes.
var CurrentVersion = Version{Major: 3, Minor: 0}

// Supported reports whether a loaded version can be read by this code.
func (v Version) Supported() bool {
	return v.Major == CurrentVersion.Major && v.Minor >= 0
}

// CacheEntry is one (identity, metadata) pair embedded in a chain-cache
// snapshot.
type CacheEntry struct {
	ID   ID
	Meta Metadata
}

// Metadata is the persisted dataset record, stored next to a dataset's
// column files as dataset.pickle.
type Metadata struct {
	Version Version

	// Filename is an optional source filename, purely informational.
	Filename string
	// HashLabel names the column used to hash-partition rows across
	// slices, or is empty if unset.
	HashLabel string
	// Caption defaults to the producing job id.
	Caption string
	// Columns order is irrelevant for semantics; SortedColumnNames
	// gives the lexicographic iteration order callers must use.
	Columns map[string]ColumnDescriptor

	// Previous is the chain predecessor, or the zero ID if unset.
	Previous ID
	// Parent is the dataset(s) this one layers columns onto: zero
	// entries if unset, one for link_to_here, two for merge.
	Parent []ID

	// Lines holds one row count per slice.
	Lines []int64

	// Cache embeds the previous 63 chain members' metadata, present
	// every 64th dataset in a chain (CacheDistance wraps to 0).
	Cache []CacheEntry
	// CacheDistance counts datasets since the last Cache snapshot.
	CacheDistance int
}

// SortedColumnNames returns the dataset's column names in the
// lexicographic order column iteration must use.
func (m *Metadata) SortedColumnNames() []string {
	names := make([]string, 0, len(m.Columns))
	for n := range m.Columns {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Slices returns the slice count implied by Lines.
func (m *Metadata) Slices() int {
	return len(m.Lines)
}

// TotalLines sums Lines across all slices.
func (m *Metadata) TotalLines() int64 {
	var total int64
	for _, n := range m.Lines {
		total += n
	}
	return total
}

// Shape returns (column count, total row count), mirroring the
// source's Dataset.shape property.
func (m *Metadata) Shape() (int, int64) {
	return len(m.Columns), m.TotalLines()
}

// HasColumn reports whether col is one of this dataset's columns.
func (m *Metadata) HasColumn(col string) bool {
	_, ok := m.Columns[col]
	return ok
}

// Clone returns a deep-enough copy of m safe to mutate independently
// (used by lifecycle operations that derive a new record from an
// existing one, e.g. LinkToHere and parent-extension Append).
func (m *Metadata) Clone() *Metadata {
	out := *m
	out.Columns = make(map[string]ColumnDescriptor, len(m.Columns))
	for k, v := range m.Columns {
		v.Offsets = append([]int64(nil), v.Offsets...)
		out.Columns[k] = v
	}
	out.Parent = append([]ID(nil), m.Parent...)
	out.Lines = append([]int64(nil), m.Lines...)
	out.Cache = append([]CacheEntry(nil), m.Cache...)
	return &out
}
