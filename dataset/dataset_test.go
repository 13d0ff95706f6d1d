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

package dataset_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/erigontech/accelerator/dataset"
	"github.com/erigontech/accelerator/dataset/jobdir"
)

func TestIdentityGrammar(t *testing.T) {
	id := dataset.New("job1", "")
	require.Equal(t, "job1", id.String())

	id2 := dataset.New("job1", "mine")
	require.Equal(t, "job1/mine", id2.String())

	parsed, err := dataset.ParseID("job1/mine")
	require.NoError(t, err)
	require.Equal(t, id2, parsed)

	parsed2, err := dataset.ParseID("job1")
	require.NoError(t, err)
	require.Equal(t, id, parsed2)

	_, err = dataset.ParseID("job1/a/b")
	require.Error(t, err)
}

func TestCleanName(t *testing.T) {
	seen := map[string]bool{}
	require.Equal(t, "a_b", dataset.CleanName("a.b", seen))
	require.Equal(t, "_1x", dataset.CleanName("1x", seen))
	// case-insensitive collision gets suffixed
	seen2 := map[string]bool{}
	n1 := dataset.CleanName("Foo", seen2)
	n2 := dataset.CleanName("foo", seen2)
	require.NotEqual(t, n1, n2)
	// Go keyword is never returned bare
	seen3 := map[string]bool{}
	require.Equal(t, "range_", dataset.CleanName("range", seen3))
}

func TestBuildAndChain(t *testing.T) {
	dataset.ClearMemo()
	root := jobdir.New(t.TempDir())

	first, err := dataset.Build(root, "job1", "default", dataset.BuildParams{
		Columns: map[string]dataset.ColumnDescriptor{
			"x": {Type: "int64", BackingType: "int64", Name: "x", Location: "job1/default/%s.x"},
		},
		Lines: []int64{1, 1},
	})
	require.NoError(t, err)
	require.Equal(t, 0, first.CacheDistance)

	second, err := dataset.Build(root, "job2", "default", dataset.BuildParams{
		Previous: dataset.New("job1", "default"),
		Columns: map[string]dataset.ColumnDescriptor{
			"x": {Type: "int64", BackingType: "int64", Name: "x", Location: "job2/default/%s.x"},
		},
		Lines: []int64{1, 1},
	})
	require.NoError(t, err)
	require.Equal(t, 1, second.CacheDistance)
	require.Equal(t, dataset.New("job1", "default"), second.Previous)
}

func TestLinkToHere(t *testing.T) {
	dataset.ClearMemo()
	root := jobdir.New(t.TempDir())

	src, err := dataset.Build(root, "J1", "default", dataset.BuildParams{
		Columns: map[string]dataset.ColumnDescriptor{
			"a": {Type: "int64", BackingType: "int64", Name: "a", Location: "J1/default/%s.a"},
			"b": {Type: "int64", BackingType: "int64", Name: "b", Location: "J1/default/%s.b"},
			"c": {Type: "int64", BackingType: "int64", Name: "c", Location: "J1/default/%s.c"},
		},
		Lines: []int64{2},
	})
	require.NoError(t, err)
	_ = src

	linked, err := dataset.LinkToHere(root, dataset.New("J1", "default"), "J2", "mine", []string{"a", "c"}, nil)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"a", "c"}, keysOf(linked.Columns))
	require.Equal(t, []dataset.ID{dataset.New("J1", "default")}, linked.Parent)
}

func TestMergeRequiresRelation(t *testing.T) {
	dataset.ClearMemo()
	root := jobdir.New(t.TempDir())

	a, err := dataset.Build(root, "JA", "default", dataset.BuildParams{
		Columns: map[string]dataset.ColumnDescriptor{"x": {Type: "int64", BackingType: "int64", Name: "x"}},
		Lines:   []int64{3},
	})
	require.NoError(t, err)
	_ = a
	b, err := dataset.Build(root, "JB", "default", dataset.BuildParams{
		Columns: map[string]dataset.ColumnDescriptor{"y": {Type: "int64", BackingType: "int64", Name: "y"}},
		Lines:   []int64{3},
	})
	require.NoError(t, err)
	_ = b

	_, err = dataset.Merge(root, dataset.New("JA", "default"), dataset.New("JB", "default"), "JC", "default", dataset.ID{}, false)
	require.ErrorIs(t, err, dataset.ErrDatasetUsageError)

	merged, err := dataset.Merge(root, dataset.New("JA", "default"), dataset.New("JB", "default"), "JC", "default", dataset.ID{}, true)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"x", "y"}, keysOf(merged.Columns))
}

func keysOf(m map[string]dataset.ColumnDescriptor) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
