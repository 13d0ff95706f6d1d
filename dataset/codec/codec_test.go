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

package codec_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/erigontech/accelerator/dataset/codec"
)

func createFile(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
}

func readFile(t *testing.T, path string) []byte {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return b
}

func TestInt64RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "0.x")
	w, err := codec.NewInt64Writer(path, codec.WriterOpts{})
	require.NoError(t, err)
	for _, v := range []int64{1, 2, 3, 4, 5} {
		require.NoError(t, w.Write(v))
	}
	require.NoError(t, w.Close())
	require.EqualValues(t, 5, w.Count())
	require.Equal(t, int64(1), w.Min())
	require.Equal(t, int64(5), w.Max())

	r, err := codec.NewInt64Reader(path, codec.ReaderOpts{MaxCount: -1})
	require.NoError(t, err)
	defer r.Close()
	var got []int64
	for {
		v, ok, err := r.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, v.(int64))
	}
	require.Equal(t, []int64{1, 2, 3, 4, 5}, got)
}

func TestInt64HashFilter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "0.k")
	hf := &codec.HashFilter{Slice: 0, Slices: 4}
	w, err := codec.NewInt64Writer(path, codec.WriterOpts{HashFilter: hf})
	require.NoError(t, err)
	for i := int64(0); i < 20; i++ {
		if w.HashCheck(i) {
			require.NoError(t, w.Write(i))
		}
	}
	require.NoError(t, w.Close())

	r, err := codec.NewInt64Reader(path, codec.ReaderOpts{MaxCount: -1})
	require.NoError(t, err)
	defer r.Close()
	for {
		v, ok, err := r.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		h := codec.Hash(mustInt64Bytes(v.(int64)))
		require.True(t, hf.Matches(h))
	}
}

func mustInt64Bytes(v int64) []byte {
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
	return b
}

func TestMergedFileSeek(t *testing.T) {
	dir := t.TempDir()
	slicePaths := []string{filepath.Join(dir, "0.v"), filepath.Join(dir, "1.v")}
	var sizes []int64
	for i, p := range slicePaths {
		w, err := codec.NewUnicodeWriter(p, codec.WriterOpts{})
		require.NoError(t, err)
		require.NoError(t, w.Write("slice"))
		require.NoError(t, w.Write(string(rune('a' + i))))
		require.NoError(t, w.Close())
	}
	merged := filepath.Join(dir, "m.v")
	mf, err := createFile(merged)
	require.NoError(t, err)
	var offset int64
	for _, p := range slicePaths {
		data := readFile(t, p)
		_, err := mf.Write(data)
		require.NoError(t, err)
		sizes = append(sizes, offset)
		offset += int64(len(data))
	}
	require.NoError(t, mf.Close())

	for i, off := range sizes {
		r, err := codec.NewUnicodeReader(merged, codec.ReaderOpts{Seek: off, MaxCount: -1})
		require.NoError(t, err)
		v1, ok, err := r.Next()
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, "slice", v1)
		v2, ok, err := r.Next()
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, string(rune('a'+i)), v2)
		require.NoError(t, r.Close())
	}
}
