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

// RowTranslator rewrites a whole row before filters run.
type RowTranslator func(Row) Row

// ColumnTranslator rewrites one column's value.
type ColumnTranslator func(v any) any

// PerColumnTranslator maps column name to its ColumnTranslator. Columns
// absent from the map pass through unchanged.
type PerColumnTranslator map[string]ColumnTranslator

// LookupTranslator builds a ColumnTranslator from a value table plus
// the sentinel returned for a miss (typically nil).
func LookupTranslator(table map[any]any, missing any) ColumnTranslator {
	return func(v any) any {
		if out, ok := table[v]; ok {
			return out
		}
		return missing
	}
}

type compiledTranslator func(cols []string, row Row) Row

// compileRowTranslator mirrors compileRowFilter: translators run
// before filters, so both are compiled once at plan time and applied
// in that fixed order per row.
func compileRowTranslator(whole RowTranslator, perColumn PerColumnTranslator) compiledTranslator {
	if whole != nil {
		return func(_ []string, row Row) Row { return whole(row) }
	}
	if len(perColumn) == 0 {
		return func(_ []string, row Row) Row { return row }
	}
	return func(cols []string, row Row) Row {
		out := make(Row, len(row))
		copy(out, row)
		for i, c := range cols {
			if t, ok := perColumn[c]; ok && t != nil {
				out[i] = t(out[i])
			}
		}
		return out
	}
}
