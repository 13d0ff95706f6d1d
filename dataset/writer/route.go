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
	"github.com/pkg/errors"

	"github.com/erigontech/accelerator/dataset"
	"github.com/erigontech/accelerator/dataset/codec"
)

// columnSpec is one declared column, in add-order. The slice of
// columnSpecs is the routing table every write surface walks; there is
// no per-instance specialized write function.
type columnSpec struct {
	Name       string // logical name, as declared and used in maps/filters
	FileName   string // filesystem-safe name (dataset.CleanName)
	Type       string
	Default    any
	HasDefault bool
}

// positionalToMap zips values against the declared column order.
func positionalToMap(columns []columnSpec, values []any) (map[string]any, error) {
	if len(values) != len(columns) {
		return nil, errors.Wrapf(dataset.ErrDatasetUsageError,
			"writer: got %d values, want %d (one per added column)", len(values), len(columns))
	}
	row := make(map[string]any, len(columns))
	for i, cs := range columns {
		row[cs.Name] = values[i]
	}
	return row, nil
}

// mapToRow validates a caller-supplied mapping carries every declared
// column and applies each column's default for an explicitly-missing
// key.
func mapToRow(columns []columnSpec, values map[string]any) (map[string]any, error) {
	row := make(map[string]any, len(columns))
	for _, cs := range columns {
		v, ok := values[cs.Name]
		if !ok {
			if !cs.HasDefault {
				return nil, errors.Wrapf(dataset.ErrDatasetUsageError, "writer: missing value for column %q", cs.Name)
			}
			v = cs.Default
		}
		row[cs.Name] = v
	}
	return row, nil
}

// router picks the destination slice for one row in Mode B:
// hash-route if hashlabel is set, else round-robin.
type router struct {
	slices    int
	hashLabel string
	hashType  string
	rr        int
}

func newRouter(slices int, hashLabel, hashType string) *router {
	return &router{slices: slices, hashLabel: hashLabel, hashType: hashType}
}

func (r *router) route(row map[string]any) (int, error) {
	if r.hashLabel == "" {
		s := r.rr % r.slices
		r.rr++
		return s, nil
	}
	h, err := codec.HashValue(r.hashType, row[r.hashLabel])
	if err != nil {
		return 0, err
	}
	return int(h % uint64(r.slices)), nil
}
