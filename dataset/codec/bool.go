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

// BoolWriter appends single-byte bool values. Bools don't track min/max;
// there's no meaningful range to report for a two-valued column.
type BoolWriter struct {
	fw    *frameWriter
	opts  WriterOpts
	count int64
}

func NewBoolWriter(path string, opts WriterOpts) (*BoolWriter, error) {
	fw, err := openFrameWriter(path)
	if err != nil {
		return nil, err
	}
	return &BoolWriter{fw: fw, opts: opts}, nil
}

func boolByte(v bool) []byte {
	if v {
		return []byte{1}
	}
	return []byte{0}
}

func (w *BoolWriter) Write(v any) error {
	b, ok := v.(bool)
	if !ok {
		if w.opts.Default == nil {
			b = false
		} else {
			b = w.opts.Default.(bool)
		}
	}
	if err := w.fw.writeRecord(boolByte(b)); err != nil {
		return err
	}
	w.count++
	return nil
}

func (w *BoolWriter) HashCheck(v any) bool {
	if w.opts.HashFilter == nil {
		return true
	}
	b, _ := v.(bool)
	return w.opts.HashFilter.Matches(Hash(boolByte(b)))
}

func (w *BoolWriter) Count() int64 { return w.count }
func (w *BoolWriter) Min() any     { return nil }
func (w *BoolWriter) Max() any     { return nil }
func (w *BoolWriter) Close() error { return w.fw.Close() }

// BoolReader decodes a lazy sequence of bool values.
type BoolReader struct {
	fr *frameReader
}

func NewBoolReader(path string, opts ReaderOpts) (*BoolReader, error) {
	fr, err := openFrameReader(path, opts.Seek, opts.MaxCount)
	if err != nil {
		return nil, err
	}
	return &BoolReader{fr: fr}, nil
}

func (r *BoolReader) Next() (any, bool, error) {
	b, ok, err := r.fr.readRecord()
	if err != nil || !ok {
		return nil, false, err
	}
	return b[0] != 0, true, nil
}

func (r *BoolReader) Close() error { return r.fr.Close() }
