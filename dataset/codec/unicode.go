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

// UnicodeWriter appends length-prefixed UTF-8 string values, tracking
// lexicographic min/max.
type UnicodeWriter struct {
	fw         *frameWriter
	opts       WriterOpts
	count      int64
	min, max   string
	haveMinMax bool
}

func NewUnicodeWriter(path string, opts WriterOpts) (*UnicodeWriter, error) {
	fw, err := openFrameWriter(path)
	if err != nil {
		return nil, err
	}
	return &UnicodeWriter{fw: fw, opts: opts}, nil
}

func (w *UnicodeWriter) Write(v any) error {
	s, ok := v.(string)
	if !ok {
		if w.opts.Default == nil {
			s = ""
		} else {
			s = w.opts.Default.(string)
		}
	}
	if err := w.fw.writeRecord([]byte(s)); err != nil {
		return err
	}
	w.count++
	if !w.haveMinMax || s < w.min {
		w.min = s
	}
	if !w.haveMinMax || s > w.max {
		w.max = s
	}
	w.haveMinMax = true
	return nil
}

func (w *UnicodeWriter) HashCheck(v any) bool {
	if w.opts.HashFilter == nil {
		return true
	}
	s, _ := v.(string)
	return w.opts.HashFilter.Matches(Hash([]byte(s)))
}

func (w *UnicodeWriter) Count() int64 { return w.count }
func (w *UnicodeWriter) Min() any {
	if !w.haveMinMax {
		return nil
	}
	return w.min
}
func (w *UnicodeWriter) Max() any {
	if !w.haveMinMax {
		return nil
	}
	return w.max
}
func (w *UnicodeWriter) Close() error { return w.fw.Close() }

// UnicodeReader decodes a lazy sequence of string values.
type UnicodeReader struct {
	fr *frameReader
}

func NewUnicodeReader(path string, opts ReaderOpts) (*UnicodeReader, error) {
	fr, err := openFrameReader(path, opts.Seek, opts.MaxCount)
	if err != nil {
		return nil, err
	}
	return &UnicodeReader{fr: fr}, nil
}

func (r *UnicodeReader) Next() (any, bool, error) {
	b, ok, err := r.fr.readRecord()
	if err != nil || !ok {
		return nil, false, err
	}
	return string(b), true, nil
}

func (r *UnicodeReader) Close() error { return r.fr.Close() }
