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

// BytesWriter appends length-prefixed raw byte values. Bytes columns
// don't support ordering, so min/max are always unset.
type BytesWriter struct {
	fw    *frameWriter
	opts  WriterOpts
	count int64
}

func NewBytesWriter(path string, opts WriterOpts) (*BytesWriter, error) {
	fw, err := openFrameWriter(path)
	if err != nil {
		return nil, err
	}
	return &BytesWriter{fw: fw, opts: opts}, nil
}

func (w *BytesWriter) Write(v any) error {
	b, ok := v.([]byte)
	if !ok {
		if w.opts.Default == nil {
			b = nil
		} else {
			b = w.opts.Default.([]byte)
		}
	}
	if err := w.fw.writeRecord(b); err != nil {
		return err
	}
	w.count++
	return nil
}

func (w *BytesWriter) HashCheck(v any) bool {
	if w.opts.HashFilter == nil {
		return true
	}
	b, _ := v.([]byte)
	return w.opts.HashFilter.Matches(Hash(b))
}

func (w *BytesWriter) Count() int64 { return w.count }
func (w *BytesWriter) Min() any     { return nil }
func (w *BytesWriter) Max() any     { return nil }
func (w *BytesWriter) Close() error { return w.fw.Close() }

// BytesReader decodes a lazy sequence of []byte values.
type BytesReader struct {
	fr *frameReader
}

func NewBytesReader(path string, opts ReaderOpts) (*BytesReader, error) {
	fr, err := openFrameReader(path, opts.Seek, opts.MaxCount)
	if err != nil {
		return nil, err
	}
	return &BytesReader{fr: fr}, nil
}

func (r *BytesReader) Next() (any, bool, error) {
	b, ok, err := r.fr.readRecord()
	if err != nil || !ok {
		return nil, false, err
	}
	return b, true, nil
}

func (r *BytesReader) Close() error { return r.fr.Close() }
