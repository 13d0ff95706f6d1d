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

package codec

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// Int64Writer appends fixed-width int64 values, tracking min/max and
// optionally filtering by hash for the hashlabel column.
type Int64Writer struct {
	fw         *frameWriter
	opts       WriterOpts
	count      int64
	min, max   int64
	haveMinMax bool
}

func NewInt64Writer(path string, opts WriterOpts) (*Int64Writer, error) {
	fw, err := openFrameWriter(path)
	if err != nil {
		return nil, err
	}
	return &Int64Writer{fw: fw, opts: opts}, nil
}

func int64Bytes(v int64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(v))
	return b[:]
}

func (w *Int64Writer) Write(v any) error {
	n, ok := v.(int64)
	if !ok {
		if w.opts.Default == nil {
			return errors.Errorf("codec: int64 writer rejected value %v", v)
		}
		n = w.opts.Default.(int64)
	}
	if err := w.fw.writeRecord(int64Bytes(n)); err != nil {
		return err
	}
	w.count++
	if !w.haveMinMax || n < w.min {
		w.min = n
	}
	if !w.haveMinMax || n > w.max {
		w.max = n
	}
	w.haveMinMax = true
	return nil
}

func (w *Int64Writer) HashCheck(v any) bool {
	if w.opts.HashFilter == nil {
		return true
	}
	n, _ := v.(int64)
	return w.opts.HashFilter.Matches(Hash(int64Bytes(n)))
}

func (w *Int64Writer) Count() int64 { return w.count }
func (w *Int64Writer) Min() any {
	if !w.haveMinMax {
		return nil
	}
	return w.min
}
func (w *Int64Writer) Max() any {
	if !w.haveMinMax {
		return nil
	}
	return w.max
}
func (w *Int64Writer) Close() error { return w.fw.Close() }

// Int64Reader decodes a lazy sequence of int64 values.
type Int64Reader struct {
	fr *frameReader
}

func NewInt64Reader(path string, opts ReaderOpts) (*Int64Reader, error) {
	fr, err := openFrameReader(path, opts.Seek, opts.MaxCount)
	if err != nil {
		return nil, err
	}
	return &Int64Reader{fr: fr}, nil
}

func (r *Int64Reader) Next() (any, bool, error) {
	b, ok, err := r.fr.readRecord()
	if err != nil || !ok {
		return nil, false, err
	}
	return int64(binary.LittleEndian.Uint64(b)), true, nil
}

func (r *Int64Reader) Close() error { return r.fr.Close() }
