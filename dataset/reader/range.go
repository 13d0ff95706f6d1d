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

package reader

// RangeBound is a half-open [Lo, Hi) bound on one column, with either
// edge optionally unset. Both unset disables ranging on that column
// entirely.
type RangeBound struct {
	Lo, Hi       any
	HasLo, HasHi bool
}

// enabled reports whether this bound actually constrains anything.
func (b RangeBound) enabled() bool {
	return b.HasLo || b.HasHi
}

// less compares two values of the same ordered codec type (int64,
// float64 or string — the only ordered concrete types this engine
// ships, see dataset/codec). Values of a different dynamic type never
// compare as less than one another.
func less(a, b any) bool {
	switch x := a.(type) {
	case int64:
		y, ok := b.(int64)
		return ok && x < y
	case float64:
		y, ok := b.(float64)
		return ok && x < y
	case string:
		y, ok := b.(string)
		return ok && x < y
	default:
		return false
	}
}

func lessEqual(a, b any) bool {
	return !less(b, a)
}

// inBound reports whether v falls in [Lo, Hi).
func (b RangeBound) inBound(v any) bool {
	if b.HasLo && less(v, b.Lo) {
		return false
	}
	if b.HasHi && lessEqual(b.Hi, v) {
		return false
	}
	return true
}

// coversDataset reports whether a dataset whose column extremes are
// [min, max] lies entirely inside the bound, making any row-level check
// redundant: min >= lo and max < hi. Unknown extremes never cover.
func (b RangeBound) coversDataset(min, max any) bool {
	if min == nil || max == nil {
		return false
	}
	if b.HasLo && less(min, b.Lo) {
		return false
	}
	if b.HasHi && !less(max, b.Hi) {
		return false
	}
	return true
}

// prunesDataset reports whether a dataset whose column extremes are
// [min, max] can be skipped outright: min >= hi or max < lo.
func (b RangeBound) prunesDataset(min, max any) bool {
	if b.HasHi && min != nil && lessEqual(b.Hi, min) {
		return true
	}
	if b.HasLo && max != nil && less(max, b.Lo) {
		return true
	}
	return false
}
