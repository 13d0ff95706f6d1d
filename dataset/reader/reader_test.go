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

package reader_test

import (
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/erigontech/accelerator/dataset"
	"github.com/erigontech/accelerator/dataset/codec"
	"github.com/erigontech/accelerator/dataset/jobdir"
	"github.com/erigontech/accelerator/dataset/reader"
	"github.com/erigontech/accelerator/dataset/writer"
)

// buildHashPartitioned writes an int64 "k" column (plus an optional
// extra int64 column) as a Mode B split writer hash-routed on the
// given label, returning the finished dataset handle.
func buildHashPartitioned(t *testing.T, root jobdir.Root, job string, slices int, hashLabel string, extraCol string, previous dataset.ID, values []int64) *reader.Dataset {
	t.Helper()
	opts := writer.Opts{HashLabel: hashLabel, Previous: previous}
	w, err := writer.New(root, job, "default", slices, opts)
	require.NoError(t, err)
	require.NoError(t, w.Add(hashLabel, codec.TypeInt64))
	if extraCol != "" && extraCol != hashLabel {
		require.NoError(t, w.Add(extraCol, codec.TypeInt64))
	}
	write, err := w.GetSplitWrite()
	require.NoError(t, err)
	for _, v := range values {
		if extraCol != "" && extraCol != hashLabel {
			require.NoError(t, write(v, v))
		} else {
			require.NoError(t, write(v))
		}
	}
	_, err = w.Finish()
	require.NoError(t, err)

	ds, err := reader.Open(root, dataset.New(job, "default"))
	require.NoError(t, err)
	return ds
}

func TestHashPartitionInvariant(t *testing.T) {
	dataset.ClearMemo()
	root := jobdir.New(t.TempDir())

	vals := make([]int64, 10)
	for i := range vals {
		vals[i] = int64(i)
	}
	ds := buildHashPartitioned(t, root, "jobS2", 4, "k", "", dataset.ID{}, vals)
	require.Equal(t, int64(10), ds.Meta.TotalLines())

	// Every row read out of slice s must hash back into s, checked
	// directly against each physical slice.
	var all []int64
	for s := 0; s < 4; s++ {
		slice := s
		rows := ds.IterateChain(root, reader.ChainIterateOpts{
			IterateOpts: reader.IterateOpts{Columns: []string{"k"}},
			Slice:       &slice,
		})
		for row, err := range rows {
			require.NoError(t, err)
			k := row[0].(int64)
			h, herr := codec.HashValue(codec.TypeInt64, k)
			require.NoError(t, herr)
			require.Equal(t, s, int(h%4))
			all = append(all, k)
		}
	}
	require.ElementsMatch(t, vals, all)
}

func TestRehashAcrossChain(t *testing.T) {
	dataset.ClearMemo()
	root := jobdir.New(t.TempDir())

	aVals := make([]int64, 10)
	for i := range aVals {
		aVals[i] = int64(i)
	}
	a := buildHashPartitioned(t, root, "jobA", 4, "k", "", dataset.ID{}, aVals)

	// B is hashed on k2 but also carries a "k" column so it can be
	// rehashed against k like A.
	opts := writer.Opts{HashLabel: "k2", Previous: dataset.New("jobA", "default")}
	w, err := writer.New(root, "jobB", "default", 4, opts)
	require.NoError(t, err)
	require.NoError(t, w.Add("k", codec.TypeInt64))
	require.NoError(t, w.Add("k2", codec.TypeInt64))
	write, err := w.GetSplitWrite()
	require.NoError(t, err)
	for i := int64(100); i < 110; i++ {
		require.NoError(t, write(i, i))
	}
	_, err = w.Finish()
	require.NoError(t, err)

	b, err := reader.Open(root, dataset.New("jobB", "default"))
	require.NoError(t, err)

	var allGot []int64
	for target := 0; target < 4; target++ {
		slice := target
		rows := b.IterateChain(root, reader.ChainIterateOpts{
			IterateOpts: reader.IterateOpts{
				Columns:   []string{"k"},
				HashLabel: "k",
				Rehash:    true,
			},
			Slice: &slice,
		})
		for row, err := range rows {
			require.NoError(t, err)
			k := row[0].(int64)
			h, herr := codec.HashValue(codec.TypeInt64, k)
			require.NoError(t, herr)
			require.Equal(t, target, int(h%4))
			allGot = append(allGot, k)
		}
	}
	// A (already hashed on k) contributes directly; B (hashed on k2)
	// contributes only after being rehashed against k. Across all four
	// target slices every row from both datasets is visited exactly
	// once.
	var want []int64
	want = append(want, aVals...)
	for i := int64(100); i < 110; i++ {
		want = append(want, i)
	}
	require.ElementsMatch(t, want, allGot)
	_ = a
}

func TestRangePruningAcrossChain(t *testing.T) {
	dataset.ClearMemo()
	root := jobdir.New(t.TempDir())

	build := func(job string, previous dataset.ID, lo, hi int64) *reader.Dataset {
		w, err := writer.New(root, job, "default", 1, writer.Opts{Previous: previous})
		require.NoError(t, err)
		require.NoError(t, w.Add("t", codec.TypeInt64))
		require.NoError(t, w.SetSlice(0))
		for v := lo; v < hi; v++ {
			require.NoError(t, w.WritePositional(v))
		}
		_, err = w.Finish()
		require.NoError(t, err)
		ds, err := reader.Open(root, dataset.New(job, "default"))
		require.NoError(t, err)
		return ds
	}

	build("jobR1", dataset.ID{}, 0, 10)
	build("jobR2", dataset.New("jobR1", "default"), 10, 20)
	third := build("jobR3", dataset.New("jobR2", "default"), 20, 30)

	var got []int64
	visited := map[string]bool{}
	rows := third.IterateChain(root, reader.ChainIterateOpts{
		IterateOpts: reader.IterateOpts{
			Columns: []string{"t"},
			Range: map[string]reader.RangeBound{
				"t": {Lo: int64(15), HasLo: true, Hi: int64(25), HasHi: true},
			},
		},
		Callbacks: reader.Callbacks{
			PreDataset: func(id dataset.ID) reader.CallbackResult {
				visited[id.String()] = true
				return reader.Continue
			},
		},
	})
	for row, err := range rows {
		require.NoError(t, err)
		got = append(got, row[0].(int64))
	}
	for _, v := range got {
		require.True(t, v >= 15 && v < 25)
	}
	require.ElementsMatch(t, []int64{15, 16, 17, 18, 19, 20, 21, 22, 23, 24}, got)
	// jobR1's [0,10) range never overlaps [15,25): it must be pruned
	// before any column file is even opened.
	require.False(t, visited["jobR1"])
	require.True(t, visited["jobR2"])
	require.True(t, visited["jobR3"])
}

func TestChainAggregates(t *testing.T) {
	dataset.ClearMemo()
	root := jobdir.New(t.TempDir())

	w1, err := writer.New(root, "jobC1", "default", 2, writer.Opts{})
	require.NoError(t, err)
	require.NoError(t, w1.Add("x", codec.TypeInt64))
	require.NoError(t, w1.SetSlice(0))
	require.NoError(t, w1.WritePositional(int64(1)))
	require.NoError(t, w1.SetSlice(1))
	require.NoError(t, w1.WritePositional(int64(2)))
	require.NoError(t, w1.WritePositional(int64(3)))
	_, err = w1.Finish()
	require.NoError(t, err)

	w2, err := writer.New(root, "jobC2", "default", 2, writer.Opts{Previous: dataset.New("jobC1", "default")})
	require.NoError(t, err)
	require.NoError(t, w2.Add("x", codec.TypeInt64))
	require.NoError(t, w2.AddWithDefault("y", codec.TypeInt64, int64(0)))
	require.NoError(t, w2.SetSlice(0))
	require.NoError(t, w2.WritePositional(int64(10), int64(100)))
	require.NoError(t, w2.SetSlice(1))
	require.NoError(t, w2.WritePositional(int64(20), int64(200)))
	_, err = w2.Finish()
	require.NoError(t, err)

	head, err := reader.Open(root, dataset.New("jobC2", "default"))
	require.NoError(t, err)

	chain, err := head.Chain(root, reader.ChainOpts{})
	require.NoError(t, err)
	require.Len(t, chain.Datasets(), 2)
	require.Equal(t, int64(1+2+1+1), chain.Lines(-1))
	require.Equal(t, int64(1+1), chain.Lines(0))
	require.Equal(t, int64(1), chain.Min("x"))
	require.Equal(t, int64(20), chain.Max("x"))

	counts := chain.ColumnCounts()
	require.Equal(t, 2, counts["x"])
	require.Equal(t, 1, counts["y"])

	withY := chain.WithColumn("y")
	require.Len(t, withY.Datasets(), 1)
}

func TestRoundRobinVisitsEverySlice(t *testing.T) {
	dataset.ClearMemo()
	root := jobdir.New(t.TempDir())

	w, err := writer.New(root, "jobRR", "default", 4, writer.Opts{})
	require.NoError(t, err)
	require.NoError(t, w.Add("x", codec.TypeInt64))
	write, err := w.GetSplitWriteList()
	require.NoError(t, err)
	for v := int64(1); v <= 5; v++ {
		require.NoError(t, write([]any{v}))
	}
	meta, err := w.Finish()
	require.NoError(t, err)
	require.Equal(t, []int64{2, 1, 1, 1}, meta.Lines)

	ds, err := reader.Open(root, dataset.New("jobRR", "default"))
	require.NoError(t, err)

	var got []int64
	rows := ds.IterateChain(root, reader.ChainIterateOpts{
		IterateOpts: reader.IterateOpts{Columns: []string{"x"}},
		RoundRobin:  true,
	})
	for row, err := range rows {
		require.NoError(t, err)
		got = append(got, row[0].(int64))
	}
	require.ElementsMatch(t, []int64{1, 2, 3, 4, 5}, got)
}

func TestFiltersAndTranslators(t *testing.T) {
	dataset.ClearMemo()
	root := jobdir.New(t.TempDir())

	w, err := writer.New(root, "jobFT", "default", 1, writer.Opts{})
	require.NoError(t, err)
	require.NoError(t, w.Add("x", codec.TypeInt64))
	require.NoError(t, w.SetSlice(0))
	for v := int64(0); v < 6; v++ {
		require.NoError(t, w.WritePositional(v))
	}
	_, err = w.Finish()
	require.NoError(t, err)

	ds, err := reader.Open(root, dataset.New("jobFT", "default"))
	require.NoError(t, err)

	// Translators run before filters: doubling first means the filter
	// sees 0,2,4,6,8,10 and keeps the strictly-positive half above 4.
	var got []int64
	rows := ds.Iterate(reader.IterateOpts{
		Columns: []string{"x"},
		PerColumnTranslator: reader.PerColumnTranslator{
			"x": func(v any) any { return v.(int64) * 2 },
		},
		PerColumnFilter: reader.PerColumnFilter{
			"x": func(v any) bool { return v.(int64) > 4 },
		},
	})
	for row, rerr := range rows {
		require.NoError(t, rerr)
		got = append(got, row[0].(int64))
	}
	require.Equal(t, []int64{6, 8, 10}, got)

	// A nil per-column filter means truthiness: zero is dropped.
	got = got[:0]
	for row, rerr := range ds.Iterate(reader.IterateOpts{
		Columns:         []string{"x"},
		PerColumnFilter: reader.PerColumnFilter{"x": nil},
	}) {
		require.NoError(t, rerr)
		got = append(got, row[0].(int64))
	}
	require.Equal(t, []int64{1, 2, 3, 4, 5}, got)

	// A lookup translator combined with a truthiness filter drops
	// unmapped values via the nil sentinel.
	var mapped []string
	for row, rerr := range ds.Iterate(reader.IterateOpts{
		Columns: []string{"x"},
		PerColumnTranslator: reader.PerColumnTranslator{
			"x": reader.LookupTranslator(map[any]any{int64(2): "two", int64(4): "four"}, nil),
		},
		PerColumnFilter: reader.PerColumnFilter{"x": nil},
	}) {
		require.NoError(t, rerr)
		mapped = append(mapped, row[0].(string))
	}
	require.Equal(t, []string{"two", "four"}, mapped)
}

func TestIterateMismatchedHashLabel(t *testing.T) {
	dataset.ClearMemo()
	root := jobdir.New(t.TempDir())

	vals := []int64{0, 1, 2, 3, 4, 5}
	ds := buildHashPartitioned(t, root, "jobHM", 4, "k", "v", dataset.ID{}, vals)

	// A mismatched hashlabel without rehash is misuse even when every
	// slice is being read anyway.
	var got error
	for _, err := range ds.Iterate(reader.IterateOpts{Columns: []string{"k"}, HashLabel: "v"}) {
		got = err
		break
	}
	require.ErrorIs(t, got, dataset.ErrDatasetUsageError)

	// Same for a hashlabel the dataset doesn't carry at all, rehash or
	// not.
	got = nil
	for _, err := range ds.Iterate(reader.IterateOpts{Columns: []string{"k"}, HashLabel: "nope", Rehash: true}) {
		got = err
		break
	}
	require.ErrorIs(t, got, dataset.ErrDatasetUsageError)

	// With rehash allowed and the column present, an all-slice read is
	// fine; the rehash predicate is moot since every row comes back.
	var all []int64
	for row, err := range ds.Iterate(reader.IterateOpts{Columns: []string{"k"}, HashLabel: "v", Rehash: true}) {
		require.NoError(t, err)
		all = append(all, row[0].(int64))
	}
	require.ElementsMatch(t, vals, all)
}

func TestFilterOverMissingColumn(t *testing.T) {
	dataset.ClearMemo()
	root := jobdir.New(t.TempDir())

	ds := buildHashPartitioned(t, root, "jobFM", 2, "k", "", dataset.ID{}, []int64{1, 2, 3})

	var got error
	for _, err := range ds.Iterate(reader.IterateOpts{
		Columns:         []string{"k"},
		PerColumnFilter: reader.PerColumnFilter{"nope": nil},
	}) {
		got = err
		break
	}
	require.ErrorIs(t, got, dataset.ErrDatasetUsageError)
}

func TestSloppyRangeSkipsRowChecks(t *testing.T) {
	dataset.ClearMemo()
	root := jobdir.New(t.TempDir())

	w, err := writer.New(root, "jobSR", "default", 1, writer.Opts{})
	require.NoError(t, err)
	require.NoError(t, w.Add("t", codec.TypeInt64))
	require.NoError(t, w.SetSlice(0))
	for v := int64(0); v < 10; v++ {
		require.NoError(t, w.WritePositional(v))
	}
	_, err = w.Finish()
	require.NoError(t, err)

	ds, err := reader.Open(root, dataset.New("jobSR", "default"))
	require.NoError(t, err)

	bounds := map[string]reader.RangeBound{
		"t": {Lo: int64(3), HasLo: true, Hi: int64(7), HasHi: true},
	}
	count := func(sloppy bool) int {
		n := 0
		for _, rerr := range ds.Iterate(reader.IterateOpts{Columns: []string{"t"}, Range: bounds, SloppyRange: sloppy}) {
			require.NoError(t, rerr)
			n++
		}
		return n
	}
	require.Equal(t, 4, count(false))
	// Sloppy ranging keeps dataset-level pruning but skips the row
	// check; the dataset straddles the bound, so every row comes back.
	require.Equal(t, 10, count(true))
}

func TestChainCacheSnapshot(t *testing.T) {
	dataset.ClearMemo()
	root := jobdir.New(t.TempDir())

	job := func(i int) string { return fmt.Sprintf("jobCC%02d", i) }
	var prev dataset.ID
	for i := 1; i <= 65; i++ {
		m, err := dataset.Build(root, job(i), "default", dataset.BuildParams{
			Previous: prev,
			Columns: map[string]dataset.ColumnDescriptor{
				"x": {Type: "int64", BackingType: "int64", Name: "x", Location: job(i) + "/default/%s.x"},
			},
			Lines: []int64{1},
		})
		require.NoError(t, err)
		require.Equal(t, (i-1)%64, m.CacheDistance)
		if i == 65 {
			require.Len(t, m.Cache, 63)
		} else {
			require.Empty(t, m.Cache)
		}
		prev = dataset.New(job(i), "default")
	}

	// Members 2..64 are retrievable purely from the 65th dataset's
	// embedded snapshot: delete their records from disk and walk the
	// whole chain anyway.
	for i := 2; i <= 64; i++ {
		require.NoError(t, os.Remove(root.Job(job(i)).PicklePath("default")))
	}
	dataset.ClearMemo()

	head, err := reader.Open(root, dataset.New(job(65), "default"))
	require.NoError(t, err)
	chain, err := head.Chain(root, reader.ChainOpts{})
	require.NoError(t, err)
	require.Len(t, chain.Datasets(), 65)
}

func TestRoundRobinKeepsChainOrder(t *testing.T) {
	dataset.ClearMemo()
	root := jobdir.New(t.TempDir())

	build := func(job string, previous dataset.ID, vals []int64) {
		w, err := writer.New(root, job, "default", 2, writer.Opts{Previous: previous})
		require.NoError(t, err)
		require.NoError(t, w.Add("x", codec.TypeInt64))
		write, err := w.GetSplitWrite()
		require.NoError(t, err)
		for _, v := range vals {
			require.NoError(t, write(v))
		}
		_, err = w.Finish()
		require.NoError(t, err)
	}
	build("jobRO1", dataset.ID{}, []int64{1, 2, 3})
	build("jobRO2", dataset.New("jobRO1", "default"), []int64{10, 20, 30})

	head, err := reader.Open(root, dataset.New("jobRO2", "default"))
	require.NoError(t, err)

	var got []int64
	for row, rerr := range head.IterateChain(root, reader.ChainIterateOpts{
		IterateOpts: reader.IterateOpts{Columns: []string{"x"}},
		RoundRobin:  true,
	}) {
		require.NoError(t, rerr)
		got = append(got, row[0].(int64))
	}
	// Slices interleave within a dataset, but the older dataset's rows
	// all come before the newer one's.
	require.Equal(t, []int64{1, 2, 3}, got[:3])
	require.ElementsMatch(t, []int64{10, 20, 30}, got[3:])
}

func TestIterateSliceAndColumn(t *testing.T) {
	dataset.ClearMemo()
	root := jobdir.New(t.TempDir())

	vals := []int64{0, 1, 2, 3, 4, 5, 6, 7}
	ds := buildHashPartitioned(t, root, "jobIS", 4, "k", "", dataset.ID{}, vals)

	total := 0
	for s := 0; s < 4; s++ {
		for row, rerr := range ds.IterateSlice(s, reader.IterateOpts{Columns: []string{"k"}}) {
			require.NoError(t, rerr)
			h, herr := codec.HashValue(codec.TypeInt64, row[0].(int64))
			require.NoError(t, herr)
			require.Equal(t, s, int(h%4))
			total++
		}
	}
	require.Equal(t, len(vals), total)

	var scalars []int64
	for v, rerr := range ds.IterateColumn("k", reader.IterateOpts{}) {
		require.NoError(t, rerr)
		scalars = append(scalars, v.(int64))
	}
	require.ElementsMatch(t, vals, scalars)
}

func TestCallbackSkipJobSkipsWholeDataset(t *testing.T) {
	dataset.ClearMemo()
	root := jobdir.New(t.TempDir())

	build := func(job string, previous dataset.ID) {
		w, err := writer.New(root, job, "default", 1, writer.Opts{Previous: previous})
		require.NoError(t, err)
		require.NoError(t, w.Add("x", codec.TypeInt64))
		require.NoError(t, w.SetSlice(0))
		require.NoError(t, w.WritePositional(int64(1)))
		require.NoError(t, w.WritePositional(int64(2)))
		_, err = w.Finish()
		require.NoError(t, err)
	}
	build("jobSK1", dataset.ID{})
	build("jobSK2", dataset.New("jobSK1", "default"))

	head, err := reader.Open(root, dataset.New("jobSK2", "default"))
	require.NoError(t, err)

	var seen []int64
	rows := head.IterateChain(root, reader.ChainIterateOpts{
		IterateOpts: reader.IterateOpts{Columns: []string{"x"}},
		Callbacks: reader.Callbacks{
			PreDataset: func(id dataset.ID) reader.CallbackResult {
				if id.String() == "jobSK1" {
					return reader.SkipJob
				}
				return reader.Continue
			},
		},
	})
	for row, err := range rows {
		require.NoError(t, err)
		seen = append(seen, row[0].(int64))
	}
	require.Equal(t, []int64{1, 2}, seen)
}
