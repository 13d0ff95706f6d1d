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

// Package codec implements the typed, per-column binary streams a dataset's
// slices are built from. Each logical type provides a Writer that appends
// one value at a time and a Reader that decodes a lazy, forward-only
// sequence from a byte offset. The dataset writer and reader treat this
// contract as pluggable; the concrete types here are the set the engine
// itself ships.
package codec

import "github.com/spaolacci/murmur3"

// Hash returns the deterministic, process- and run-stable hash used to
// assign a row to a slice. Every Writer that can be used as a hashlabel
// is built on this same function so that Hash(v) mod slices is stable
// across writers, readers and chains.
func Hash(b []byte) uint64 {
	return murmur3.Sum64(b)
}

// HashFilter restricts a Writer to values whose Hash falls in Slice out of
// Slices, and restricts a Reader acting as a predicate source the same way.
type HashFilter struct {
	Slice  int
	Slices int
}

// Matches reports whether h belongs to f.Slice.
func (f HashFilter) Matches(h uint64) bool {
	return int(h%uint64(f.Slices)) == f.Slice
}

// Writer is the per-column append writer. Write is called once per row
// and Close once at the end; Min/Max/Count reflect everything written
// so far.
type Writer interface {
	// Write appends one value. For ordered types it updates Min/Max.
	Write(v any) error
	// HashCheck reports whether v belongs to this writer's HashFilter slice,
	// without writing. Only meaningful when the writer was built with a
	// HashFilter; writers without one always return true.
	HashCheck(v any) bool
	Count() int64
	Min() any
	Max() any
	Close() error
}

// Reader yields a lazy, forward-only, single-pass sequence of decoded
// values starting at a byte offset (0 for a plain per-slice file, or a
// recorded offset into a merged file), stopping after maxCount values
// when maxCount >= 0.
type Reader interface {
	// Next decodes the next value. ok is false at end of stream.
	Next() (v any, ok bool, err error)
	Close() error
}

// WriterOpts configures a new Writer.
type WriterOpts struct {
	// Default, when non-nil, is substituted for any value the codec
	// rejects instead of returning an error from Write.
	Default any
	// HashFilter, when set, is the slice HashCheck tests a value's hash
	// against — used by the hashlabel column writer in dataset/writer.
	// Write itself does not consult it.
	HashFilter *HashFilter
}

// ReaderOpts configures a new Reader.
type ReaderOpts struct {
	// Seek is the byte offset to start decoding from (merged column files).
	Seek int64
	// MaxCount limits how many values are decoded; -1 means unlimited.
	MaxCount int64
}
