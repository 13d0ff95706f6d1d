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
	"math"

	"github.com/pkg/errors"
)

// Float64Writer appends fixed-width float64 values, tracking min/max.
type Float64Writer struct {
	fw         *frameWriter
	opts       WriterOpts
	count      int64
	min, max   float64
	haveMinMax bool
}

func NewFloat64Writer(path string, opts WriterOpts) (*Float64Writer, error) {
	fw, err := openFrameWriter(path)
	if err != nil {
		return nil, err
	}
	return &Float64Writer{fw: fw, opts: opts}, nil
}

func float64Bytes(v float64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], math.Float64bits(v))
	return b[:]
}

func (w *Float64Writer) Write(v any) error {
	n, ok := v.(float64)
	if !ok {
		if w.opts.Default == nil {
			return errors.Errorf("codec: float64 writer rejected value %v", v)
		}
		n = w.opts.Default.(float64)
	}
	if err := w.fw.writeRecord(float64Bytes(n)); err != nil {
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

func (w *Float64Writer) HashCheck(v any) bool {
	if w.opts.HashFilter == nil {
		return true
	}
	n, _ := v.(float64)
	return w.opts.HashFilter.Matches(Hash(float64Bytes(n)))
}

func (w *Float64Writer) Count() int64 { return w.count }
func (w *Float64Writer) Min() any {
	if !w.haveMinMax {
		return nil
	}
	return w.min
}
func (w *Float64Writer) Max() any {
	if !w.haveMinMax {
		return nil
	}
	return w.max
}
func (w *Float64Writer) Close() error { return w.fw.Close() }

// Float64Reader decodes a lazy sequence of float64 values.
type Float64Reader struct {
	fr *frameReader
}

func NewFloat64Reader(path string, opts ReaderOpts) (*Float64Reader, error) {
	fr, err := openFrameReader(path, opts.Seek, opts.MaxCount)
	if err != nil {
		return nil, err
	}
	return &Float64Reader{fr: fr}, nil
}

func (r *Float64Reader) Next() (any, bool, error) {
	b, ok, err := r.fr.readRecord()
	if err != nil || !ok {
		return nil, false, err
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(b)), true, nil
}

func (r *Float64Reader) Close() error { return r.fr.Close() }
