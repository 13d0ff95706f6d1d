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
	"github.com/erigontech/accelerator/dataset"
	"github.com/erigontech/accelerator/dataset/jobdir"
	"github.com/erigontech/accelerator/dataset/metrics"
)

// Chain is an ordered list of datasets linked by Previous.
// By default it runs oldest→newest, ending at the dataset Chain
// was called on; Reverse in ChainOpts keeps it newest→oldest instead,
// starting there.
type Chain struct {
	root    jobdir.Root
	members []*Dataset
}

// ChainOpts bounds a chain walk.
type ChainOpts struct {
	// Length caps the number of datasets collected; <= 0 means no limit.
	Length int
	// StopDS, if set, halts the walk when Previous equals it (that
	// dataset itself is not included).
	StopDS dataset.ID
	// Reverse keeps newest-first order (self, then Previous, ...)
	// instead of reversing to oldest-first.
	Reverse bool
}

// Chain walks d's Previous links into a Chain per opts.
func (d *Dataset) Chain(root jobdir.Root, opts ChainOpts) (*Chain, error) {
	var walk []*Dataset
	cur := d
	for {
		walk = append(walk, cur)
		if opts.Length > 0 && len(walk) >= opts.Length {
			break
		}
		if cur.Meta.Previous.IsZero() {
			break
		}
		if !opts.StopDS.IsZero() && cur.Meta.Previous == opts.StopDS {
			break
		}
		next, err := Open(root, cur.Meta.Previous)
		if err != nil {
			return nil, err
		}
		cur = next
	}
	if !opts.Reverse {
		for i, j := 0, len(walk)-1; i < j; i, j = i+1, j-1 {
			walk[i], walk[j] = walk[j], walk[i]
		}
	}
	metrics.ChainWalkDepth.Observe(float64(len(walk)))
	return &Chain{root: root, members: walk}, nil
}

// Datasets returns the chain's members in its current order.
func (c *Chain) Datasets() []*Dataset {
	return append([]*Dataset(nil), c.members...)
}

// Min reduces col's per-dataset minimum across the chain, skipping
// datasets that lack col or have no tracked minimum. Returns nil if no
// dataset contributes one.
func (c *Chain) Min(col string) any {
	var result any
	for _, ds := range c.members {
		cd, ok := ds.Meta.Columns[col]
		if !ok || cd.Min == nil {
			continue
		}
		if result == nil || less(cd.Min, result) {
			result = cd.Min
		}
	}
	return result
}

// Max reduces col's per-dataset maximum across the chain.
func (c *Chain) Max(col string) any {
	var result any
	for _, ds := range c.members {
		cd, ok := ds.Meta.Columns[col]
		if !ok || cd.Max == nil {
			continue
		}
		if result == nil || less(result, cd.Max) {
			result = cd.Max
		}
	}
	return result
}

// Lines sums line counts across the chain: one slice's worth if slice
// >= 0, every slice otherwise.
func (c *Chain) Lines(slice int) int64 {
	var total int64
	for _, ds := range c.members {
		if slice < 0 {
			total += ds.Meta.TotalLines()
		} else if slice < len(ds.Meta.Lines) {
			total += ds.Meta.Lines[slice]
		}
	}
	return total
}

// ColumnCounts returns, for every column name appearing anywhere in
// the chain, how many member datasets carry it.
func (c *Chain) ColumnCounts() map[string]int {
	counts := map[string]int{}
	for _, ds := range c.members {
		for col := range ds.Meta.Columns {
			counts[col]++
		}
	}
	return counts
}

// WithColumn returns the sub-chain of members that carry col, in
// their existing order.
func (c *Chain) WithColumn(col string) *Chain {
	var members []*Dataset
	for _, ds := range c.members {
		if ds.HasColumn(col) {
			members = append(members, ds)
		}
	}
	return &Chain{root: c.root, members: members}
}

// ChainIterateOpts extends IterateOpts with the chain-walk bounds and
// slice-selection mode for iterating across a whole chain.
type ChainIterateOpts struct {
	IterateOpts
	ChainOpts

	// Slice selects one explicit slice; nil means every slice
	// (sliceModeAll) unless RoundRobin is set.
	Slice      *int
	RoundRobin bool

	Callbacks Callbacks
}

// IterateChain walks d's chain per opts.ChainOpts and yields
// concatenated rows across every member.
func (d *Dataset) IterateChain(root jobdir.Root, opts ChainIterateOpts) RowSeq {
	return func(yield func(Row, error) bool) {
		chain, err := d.Chain(root, opts.ChainOpts)
		if err != nil {
			yield(nil, err)
			return
		}
		mode := sliceModeAll
		explicit := -1
		if opts.RoundRobin {
			mode = sliceModeRoundRobin
		} else if opts.Slice != nil {
			mode = sliceModeSingle
			explicit = *opts.Slice
		}
		inner := iterateDatasetsExplicit(chain.members, opts.IterateOpts, mode, explicit, opts.Callbacks)
		for row, err := range inner {
			if !yield(row, err) {
				return
			}
		}
	}
}
