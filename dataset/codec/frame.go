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
	"bufio"
	"encoding/binary"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
)

// Column files are a sequence of independent zstd frames, one per writer
// that ever appended to the file. A merged column file is simply the raw
// concatenation of the per-slice files, each still a self-contained zstd
// frame, so a Reader opened at a recorded slice offset can start a fresh
// zstd decode right there without touching the bytes before it.

type frameWriter struct {
	f   *os.File
	buf *bufio.Writer
	enc *zstd.Encoder
}

func openFrameWriter(path string) (*frameWriter, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "codec: create column file %s", path)
	}
	buf := bufio.NewWriter(f)
	enc, err := zstd.NewWriter(buf, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, "codec: init zstd encoder")
	}
	return &frameWriter{f: f, buf: buf, enc: enc}, nil
}

func (w *frameWriter) writeRecord(b []byte) error {
	var lenBuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(lenBuf[:], uint64(len(b)))
	if _, err := w.enc.Write(lenBuf[:n]); err != nil {
		return err
	}
	_, err := w.enc.Write(b)
	return err
}

func (w *frameWriter) Close() error {
	if err := w.enc.Close(); err != nil {
		return err
	}
	if err := w.buf.Flush(); err != nil {
		return err
	}
	return w.f.Close()
}

type frameReader struct {
	f   *os.File
	dec *zstd.Decoder
	n   int64 // records remaining, -1 for unlimited
}

func openFrameReader(path string, seek int64, maxCount int64) (*frameReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "codec: open column file %s", path)
	}
	if seek > 0 {
		if _, err := f.Seek(seek, io.SeekStart); err != nil {
			f.Close()
			return nil, errors.Wrapf(err, "codec: seek column file %s", path)
		}
	}
	dec, err := zstd.NewReader(f)
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, "codec: init zstd decoder")
	}
	if maxCount < 0 {
		maxCount = -1
	}
	return &frameReader{f: f, dec: dec, n: maxCount}, nil
}

func (r *frameReader) readRecord() ([]byte, bool, error) {
	if r.n == 0 {
		return nil, false, nil
	}
	length, err := binary.ReadUvarint(byteReader{r.dec})
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, false, nil
		}
		return nil, false, err
	}
	b := make([]byte, length)
	if _, err := io.ReadFull(r.dec, b); err != nil {
		return nil, false, err
	}
	if r.n > 0 {
		r.n--
	}
	return b, true, nil
}

func (r *frameReader) Close() error {
	r.dec.Close()
	return r.f.Close()
}

// byteReader adapts an io.Reader to io.ByteReader for binary.ReadUvarint.
type byteReader struct {
	io.Reader
}

func (b byteReader) ReadByte() (byte, error) {
	var buf [1]byte
	_, err := io.ReadFull(b, buf[:])
	return buf[0], err
}
