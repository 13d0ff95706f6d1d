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

import "github.com/pkg/errors"

// Types is the set of logical column types this engine ships concrete
// codecs for. BackingType always equals Type for these — pre-converting
// "parsed" variants are left to the caller (parse before Write) rather
// than duplicated here.
const (
	TypeInt64   = "int64"
	TypeFloat64 = "float64"
	TypeBool    = "bool"
	TypeBytes   = "bytes"
	TypeUnicode = "unicode"
)

// KnownType reports whether t is a type this package can build a Writer/
// Reader for.
func KnownType(t string) bool {
	switch t {
	case TypeInt64, TypeFloat64, TypeBool, TypeBytes, TypeUnicode:
		return true
	default:
		return false
	}
}

// NewWriter builds the Writer for the named type.
func NewWriter(typ, path string, opts WriterOpts) (Writer, error) {
	switch typ {
	case TypeInt64:
		return NewInt64Writer(path, opts)
	case TypeFloat64:
		return NewFloat64Writer(path, opts)
	case TypeBool:
		return NewBoolWriter(path, opts)
	case TypeBytes:
		return NewBytesWriter(path, opts)
	case TypeUnicode:
		return NewUnicodeWriter(path, opts)
	default:
		return nil, errors.Errorf("codec: unknown type %q", typ)
	}
}

// NewReader builds the Reader for the named type.
func NewReader(typ, path string, opts ReaderOpts) (Reader, error) {
	switch typ {
	case TypeInt64:
		return NewInt64Reader(path, opts)
	case TypeFloat64:
		return NewFloat64Reader(path, opts)
	case TypeBool:
		return NewBoolReader(path, opts)
	case TypeBytes:
		return NewBytesReader(path, opts)
	case TypeUnicode:
		return NewUnicodeReader(path, opts)
	default:
		return nil, errors.Errorf("codec: unknown type %q", typ)
	}
}

// HashValue computes the same deterministic hash a Writer's HashCheck
// would for a decoded value of the named type — used by readers that
// rehash against a hashlabel column they only have decoded values for,
// not a live Writer.
func HashValue(typ string, v any) (uint64, error) {
	switch typ {
	case TypeInt64:
		n, _ := v.(int64)
		return Hash(int64Bytes(n)), nil
	case TypeFloat64:
		n, _ := v.(float64)
		return Hash(float64Bytes(n)), nil
	case TypeBool:
		b, _ := v.(bool)
		return Hash(boolByte(b)), nil
	case TypeBytes:
		b, _ := v.([]byte)
		return Hash(b), nil
	case TypeUnicode:
		s, _ := v.(string)
		return Hash([]byte(s)), nil
	default:
		return 0, errors.Errorf("codec: unknown type %q", typ)
	}
}
