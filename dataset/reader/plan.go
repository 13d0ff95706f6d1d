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
	"iter"

	"github.com/pkg/errors"

	"github.com/erigontech/accelerator/dataset"
	"github.com/erigontech/accelerator/dataset/codec"
)

// RowSeq is the lazy, pull-based row sequence every iteration entry
// point returns.
type RowSeq iter.Seq2[Row, error]

type sliceMode int

const (
	// sliceModeAll enumerates every slice of every dataset; rehash is
	// forced off since the caller is reading all rows regardless of
	// partition.
	sliceModeAll sliceMode = iota
	sliceModeSingle
	sliceModeRoundRobin
)

// planEntry is one (dataset, slice, rehash) triple to execute.
type planEntry struct {
	ds     *Dataset
	slice  int
	rehash bool
}

// buildPlan drops empty datasets, prunes by range, validates/requests
// rehashing, then enumerates plan entries for the requested slice mode.
func buildPlan(datasets []*Dataset, mode sliceMode, explicitSlice int, hashLabel string, rehashAllowed bool, bounds map[string]RangeBound) ([]planEntry, error) {
	var plan []planEntry
	for _, ds := range datasets {
		if ds.Meta.TotalLines() == 0 {
			continue
		}
		if prunedByRange(ds, bounds) {
			continue
		}
		rehash := false
		if hashLabel != "" && ds.Meta.HashLabel != hashLabel {
			if !rehashAllowed || !ds.HasColumn(hashLabel) {
				return nil, errors.Wrapf(dataset.ErrDatasetUsageError,
					"dataset %s hashlabel %q does not match requested %q and rehash is not available", ds.ID, ds.Meta.HashLabel, hashLabel)
			}
			// All-slice reads return every row regardless of partition,
			// so the rehash predicate is suppressed even when valid.
			rehash = mode != sliceModeAll
		}
		switch mode {
		case sliceModeAll:
			for s := range ds.Meta.Lines {
				plan = append(plan, planEntry{ds: ds, slice: s, rehash: false})
			}
		case sliceModeSingle:
			if explicitSlice < 0 || explicitSlice >= len(ds.Meta.Lines) {
				continue
			}
			plan = append(plan, planEntry{ds: ds, slice: explicitSlice, rehash: rehash})
		case sliceModeRoundRobin:
			for s := range ds.Meta.Lines {
				plan = append(plan, planEntry{ds: ds, slice: s, rehash: rehash})
			}
		}
	}
	return plan, nil
}

func prunedByRange(ds *Dataset, bounds map[string]RangeBound) bool {
	for col, bound := range bounds {
		if !bound.enabled() {
			continue
		}
		cd, ok := ds.Meta.Columns[col]
		if !ok {
			continue
		}
		if bound.prunesDataset(cd.Min, cd.Max) {
			return true
		}
	}
	return false
}

// totalSlices picks the slice count the plan's target-slice indices
// are expressed in: the widest Lines length among the participating
// datasets, since every dataset sharing a chain is expected to use the
// same slice count; slice assignment is an external collaborator's
// job, this engine only trusts what it's told.
func totalSlices(datasets []*Dataset) int {
	n := 0
	for _, ds := range datasets {
		if l := len(ds.Meta.Lines); l > n {
			n = l
		}
	}
	return n
}

// iterateDatasets is the shared engine behind Dataset.Iterate and
// IterateChain: resolve columns, compile filters/translators once,
// build the plan, and execute it either sequentially (all/explicit
// slice modes) or interleaved one row at a time (round robin).
func iterateDatasets(datasets []*Dataset, opts IterateOpts, mode sliceMode, cb Callbacks) RowSeq {
	return iterateDatasetsExplicit(datasets, opts, mode, -1, cb)
}

// iterateDatasetsExplicit is iterateDatasets plus an explicit slice
// index for sliceModeSingle (IterateChain's single-slice case; plain
// Dataset.Iterate never needs one since it always reads every slice).
func iterateDatasetsExplicit(datasets []*Dataset, opts IterateOpts, mode sliceMode, explicitSlice int, cb Callbacks) RowSeq {
	return func(yield func(Row, error) bool) {
		if len(datasets) == 0 {
			return
		}
		cols, err := datasets[0].resolveColumns(opts.Columns)
		if err != nil {
			yield(nil, err)
			return
		}
		for _, ds := range datasets[1:] {
			if _, rerr := ds.resolveColumns(opts.Columns); rerr != nil {
				yield(nil, rerr)
				return
			}
		}
		plan, err := buildPlan(datasets, mode, explicitSlice, opts.HashLabel, opts.Rehash, opts.Range)
		if err != nil {
			yield(nil, err)
			return
		}
		filter, err := compileRowFilter(cols, opts.RowFilter, opts.PerColumnFilter)
		if err != nil {
			yield(nil, err)
			return
		}
		translator := compileRowTranslator(opts.RowTranslator, opts.PerColumnTranslator)
		slices := totalSlices(datasets)

		for _, g := range groupPlan(plan) {
			if !runGroup(g, mode == sliceModeRoundRobin, slices, cols, opts, translator, filter, cb, yield) {
				return
			}
		}
	}
}

// dsGroup is one dataset's contiguous run of plan entries. Grouping is
// what keeps datasets in chain order even under round robin: slices
// interleave within a dataset, never across datasets.
type dsGroup struct {
	ds      *Dataset
	entries []planEntry
}

func groupPlan(plan []planEntry) []dsGroup {
	var groups []dsGroup
	for _, e := range plan {
		if len(groups) == 0 || groups[len(groups)-1].ds != e.ds {
			groups = append(groups, dsGroup{ds: e.ds})
		}
		g := &groups[len(groups)-1]
		g.entries = append(g.entries, e)
	}
	return groups
}

// runGroup drives one dataset's entries: PreDataset once, the entries
// (sequentially or interleaved), then PostDataset. Returns false when
// the walk should end entirely.
func runGroup(g dsGroup, roundRobin bool, slices int, cols []string, opts IterateOpts, translator compiledTranslator, filter compiledFilter, cb Callbacks, yield func(Row, error) bool) bool {
	if cb.PreDataset != nil {
		switch cb.PreDataset(g.ds.ID) {
		case SkipJob, SkipSlice:
			return true
		case Stop:
			return false
		}
	}
	var cont bool
	if roundRobin {
		cont = runGroupRoundRobin(g, slices, cols, opts, translator, filter, cb, yield)
	} else {
		cont = runGroupSequential(g, slices, cols, opts, translator, filter, cb, yield)
	}
	if cb.PostDataset != nil {
		cb.PostDataset(g.ds.ID)
	}
	return cont
}

func runGroupSequential(g dsGroup, slices int, cols []string, opts IterateOpts, translator compiledTranslator, filter compiledFilter, cb Callbacks, yield func(Row, error) bool) bool {
	for _, entry := range g.entries {
		if cb.PreSlice != nil {
			switch cb.PreSlice(entry.ds.ID, entry.slice) {
			case SkipSlice:
				continue
			case SkipJob:
				return true
			case Stop:
				return false
			}
		}
		cont := emitEntry(entry, slices, cols, opts, translator, filter, yield)
		if cb.PostSlice != nil {
			cb.PostSlice(entry.ds.ID, entry.slice)
		}
		if !cont {
			return false
		}
	}
	return true
}

// emitEntry yields every row for one plan entry. When rehash is set,
// the target slice is read by scanning every physical slice of the
// dataset and keeping only rows whose hashlabel value now hashes into
// the target slice.
func emitEntry(entry planEntry, slices int, cols []string, opts IterateOpts, translator compiledTranslator, filter compiledFilter, yield func(Row, error) bool) bool {
	physical := []int{entry.slice}
	if entry.rehash {
		physical = make([]int, len(entry.ds.Meta.Lines))
		for i := range physical {
			physical[i] = i
		}
	}
	for _, ps := range physical {
		if !emitPhysicalSlice(entry, ps, slices, cols, opts, translator, filter, yield) {
			return false
		}
	}
	return true
}

func emitPhysicalSlice(entry planEntry, physicalSlice, slices int, cols []string, opts IterateOpts, translator compiledTranslator, filter compiledFilter, yield func(Row, error) bool) bool {
	ds := entry.ds

	readers := make([]codec.Reader, len(cols))
	colIndex := make(map[string]int, len(cols))
	for i, c := range cols {
		colIndex[c] = i
		r, err := ds.openColumnReader(c, physicalSlice)
		if err != nil {
			closeReaders(readers)
			return yield(nil, err)
		}
		readers[i] = r
	}
	defer closeReaders(readers)

	var hashReader codec.Reader
	if entry.rehash {
		r, err := ds.openColumnReader(opts.HashLabel, physicalSlice)
		if err != nil {
			return yield(nil, err)
		}
		hashReader = r
		defer hashReader.Close()
	}

	// Row-level range checks only run for bounds the dataset's own
	// min/max don't already prove: a column wholly inside [lo, hi) was
	// settled at plan time. Columns not in the requested output get a
	// parallel reader that must advance exactly once per underlying row
	// (including rows the rehash predicate later drops), or it would
	// drift out of step with the main readers.
	type rangeCheck struct {
		bound  RangeBound
		rowIdx int // index into row, or -1
		reader codec.Reader
	}
	var rangeChecks []rangeCheck
	defer func() {
		for _, rc := range rangeChecks {
			if rc.reader != nil {
				rc.reader.Close()
			}
		}
	}()
	if !opts.SloppyRange {
		for col, bound := range opts.Range {
			if !bound.enabled() || !ds.HasColumn(col) {
				continue
			}
			cd := ds.Meta.Columns[col]
			if bound.coversDataset(cd.Min, cd.Max) {
				continue
			}
			rc := rangeCheck{bound: bound, rowIdx: -1}
			if idx, have := colIndex[col]; have {
				rc.rowIdx = idx
			} else {
				r, err := ds.openColumnReader(col, physicalSlice)
				if err != nil {
					return yield(nil, err)
				}
				rc.reader = r
			}
			rangeChecks = append(rangeChecks, rc)
		}
	}

	for {
		row := make(Row, len(cols))
		anyOK := false
		for i, r := range readers {
			v, ok, err := r.Next()
			if err != nil {
				return yield(nil, err)
			}
			if !ok {
				anyOK = false
				break
			}
			anyOK = true
			row[i] = v
		}
		if !anyOK {
			break
		}

		hashOK := true
		if hashReader != nil {
			hv, ok, err := hashReader.Next()
			if err != nil {
				return yield(nil, err)
			}
			if !ok {
				break
			}
			hash, herr := codec.HashValue(ds.Meta.Columns[opts.HashLabel].Type, hv)
			if herr != nil {
				return yield(nil, herr)
			}
			hashOK = (codec.HashFilter{Slice: entry.slice, Slices: slices}).Matches(hash)
		}

		rangeOK := true
		for i := range rangeChecks {
			rc := &rangeChecks[i]
			var v any
			if rc.rowIdx >= 0 {
				v = row[rc.rowIdx]
			} else {
				rv, ok, err := rc.reader.Next()
				if err != nil {
					return yield(nil, err)
				}
				if !ok {
					rangeOK = false
					continue
				}
				v = rv
			}
			if !rc.bound.inBound(v) {
				rangeOK = false
			}
		}

		if !hashOK || !rangeOK {
			continue
		}

		row = translator(cols, row)
		if !filter(cols, row) {
			continue
		}
		if !yield(row, nil) {
			return false
		}
	}
	return true
}

func closeReaders(readers []codec.Reader) {
	for _, r := range readers {
		if r != nil {
			r.Close()
		}
	}
}

// runGroupRoundRobin interleaves one row at a time across a single
// dataset's entries, using iter.Pull2 to turn each entry's push-style
// generator into a pull-style one. Exhausted entries drop out of
// rotation; this is the "approximate original order" documented in the
// package doc comment.
func runGroupRoundRobin(g dsGroup, slices int, cols []string, opts IterateOpts, translator compiledTranslator, filter compiledFilter, cb Callbacks, yield func(Row, error) bool) bool {
	type pullState struct {
		entry planEntry
		next  func() (Row, error, bool)
		stop  func()
	}
	var pulls []*pullState
	defer func() {
		for _, p := range pulls {
			p.stop()
		}
	}()
	for _, entry := range g.entries {
		if cb.PreSlice != nil {
			switch cb.PreSlice(entry.ds.ID, entry.slice) {
			case SkipSlice:
				continue
			case SkipJob:
				return true
			case Stop:
				return false
			}
		}
		entry := entry
		seq := func(y func(Row, error) bool) {
			emitEntry(entry, slices, cols, opts, translator, filter, y)
		}
		next, stop := iter.Pull2(iter.Seq2[Row, error](seq))
		pulls = append(pulls, &pullState{entry: entry, next: next, stop: stop})
	}

	active := len(pulls)
	for active > 0 {
		for _, p := range pulls {
			if p.next == nil {
				continue
			}
			row, err, ok := p.next()
			if !ok {
				p.next = nil
				active--
				if cb.PostSlice != nil {
					cb.PostSlice(p.entry.ds.ID, p.entry.slice)
				}
				continue
			}
			if !yield(row, err) {
				return false
			}
		}
	}
	return true
}
