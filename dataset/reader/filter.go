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

import (
	"github.com/pkg/errors"

	"github.com/erigontech/accelerator/dataset"
)

// Row is one decoded record: one value per requested column, in the
// order the columns were resolved (lexicographic; IterateColumn yields
// a single column's values as scalars instead of rows).
type Row []any

// RowFilter is a whole-row predicate. A nil RowFilter accepts every row.
type RowFilter func(Row) bool

// ColumnFilter is a single column's predicate, or nil meaning "use the
// value's truthiness".
type ColumnFilter func(v any) bool

// PerColumnFilter maps column name to its ColumnFilter. Columns absent
// from the map are not filtered.
type PerColumnFilter map[string]ColumnFilter

// compiledFilter is the single predicate a plan compiles filters into
// at plan-build time, once, rather than re-dispatching per row.
type compiledFilter func(cols []string, row Row) bool

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case int64:
		return x != 0
	case float64:
		return x != 0
	case string:
		return x != ""
	case []byte:
		return len(x) != 0
	default:
		return true
	}
}

// compileRowFilter turns whichever filter form the caller supplied
// into one compiledFilter. A nil whole-row filter and a nil per-column
// map both compile to "accept everything". A per-column filter keyed by
// a column outside the resolved output is caller misuse, not a no-op.
func compileRowFilter(cols []string, whole RowFilter, perColumn PerColumnFilter) (compiledFilter, error) {
	if whole != nil {
		return func(_ []string, row Row) bool { return whole(row) }, nil
	}
	if len(perColumn) == 0 {
		return func([]string, Row) bool { return true }, nil
	}
	have := make(map[string]bool, len(cols))
	for _, c := range cols {
		have[c] = true
	}
	for c := range perColumn {
		if !have[c] {
			return nil, errors.Wrapf(dataset.ErrDatasetUsageError, "filter over missing column %q", c)
		}
	}
	return func(cols []string, row Row) bool {
		for i, c := range cols {
			f, ok := perColumn[c]
			if !ok {
				continue
			}
			if f != nil {
				if !f(row[i]) {
					return false
				}
			} else if !truthy(row[i]) {
				return false
			}
		}
		return true
	}, nil
}
