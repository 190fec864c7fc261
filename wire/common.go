// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package wire implements the serialization primitives shared by the chain
// engine, the mempool, and (out of this module's scope) the wire protocol:
// fixed-width little-endian scalars, variable-length integers, and
// variable-length byte strings.
package wire

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/pkg/errors"

	"github.com/artea/corecoin/chainhash"
)

// MaxVarIntPayload is the maximum payload size for a variable length integer.
const MaxVarIntPayload = 9

// MaxVarStringPayload bounds the length of a deserialized variable-length
// string so a malformed record can't force an unbounded allocation.
const MaxVarStringPayload = 1 << 24

var littleEndian = binary.LittleEndian

// readElement reads the next sequence of bytes from r using little-endian
// ordering, based on the concrete type of element.
func readElement(r io.Reader, element interface{}) error {
	switch e := element.(type) {
	case *int32:
		var buf [4]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return err
		}
		*e = int32(littleEndian.Uint32(buf[:]))
		return nil
	case *uint32:
		var buf [4]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return err
		}
		*e = littleEndian.Uint32(buf[:])
		return nil
	case *int64:
		var buf [8]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return err
		}
		*e = int64(littleEndian.Uint64(buf[:]))
		return nil
	case *uint64:
		var buf [8]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return err
		}
		*e = littleEndian.Uint64(buf[:])
		return nil
	case *chainhash.Hash:
		_, err := io.ReadFull(r, e[:])
		return err
	default:
		return errors.Errorf("readElement: unsupported type %T", element)
	}
}

// writeElement writes the little-endian representation of element to w.
func writeElement(w io.Writer, element interface{}) error {
	switch e := element.(type) {
	case int32:
		var buf [4]byte
		littleEndian.PutUint32(buf[:], uint32(e))
		_, err := w.Write(buf[:])
		return err
	case uint32:
		var buf [4]byte
		littleEndian.PutUint32(buf[:], e)
		_, err := w.Write(buf[:])
		return err
	case int64:
		var buf [8]byte
		littleEndian.PutUint64(buf[:], uint64(e))
		_, err := w.Write(buf[:])
		return err
	case uint64:
		var buf [8]byte
		littleEndian.PutUint64(buf[:], e)
		_, err := w.Write(buf[:])
		return err
	case chainhash.Hash:
		_, err := w.Write(e[:])
		return err
	default:
		return errors.Errorf("writeElement: unsupported type %T", element)
	}
}

// ReadElement reads the next sequence of bytes from r using little-endian
// ordering, based on the concrete type of element. It is exported so that
// callers outside this package (the block index's on-disk record, for
// instance) can reuse the same fixed-width scalar encoding.
func ReadElement(r io.Reader, element interface{}) error {
	return readElement(r, element)
}

// WriteElement writes the little-endian representation of element to w. See
// ReadElement.
func WriteElement(w io.Writer, element interface{}) error {
	return writeElement(w, element)
}

// errNonCanonicalVarInt is the format string used for non-canonically
// encoded variable length integer errors.
const errNonCanonicalVarInt = "non-canonical varint %x - discriminant %x must encode a value greater than %x"

// ReadVarInt reads a variable length integer from r and returns it as a
// uint64, per the 1/3/5/9-byte encoding named in the wire format.
func ReadVarInt(r io.Reader) (uint64, error) {
	var prefix [1]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return 0, err
	}

	var rv uint64
	switch prefix[0] {
	case 0xff:
		var buf [8]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return 0, err
		}
		rv = littleEndian.Uint64(buf[:])
		if rv < 0x100000000 {
			return 0, errors.Errorf(errNonCanonicalVarInt, rv, prefix[0], 0x100000000)
		}
	case 0xfe:
		var buf [4]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return 0, err
		}
		rv = uint64(littleEndian.Uint32(buf[:]))
		if rv < 0x10000 {
			return 0, errors.Errorf(errNonCanonicalVarInt, rv, prefix[0], 0x10000)
		}
	case 0xfd:
		var buf [2]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return 0, err
		}
		rv = uint64(littleEndian.Uint16(buf[:]))
		if rv < 0xfd {
			return 0, errors.Errorf(errNonCanonicalVarInt, rv, prefix[0], 0xfd)
		}
	default:
		rv = uint64(prefix[0])
	}
	return rv, nil
}

// WriteVarInt serializes val to w using the minimal 1/3/5/9-byte encoding.
func WriteVarInt(w io.Writer, val uint64) error {
	if val < 0xfd {
		_, err := w.Write([]byte{byte(val)})
		return err
	}
	if val <= math.MaxUint16 {
		var buf [3]byte
		buf[0] = 0xfd
		littleEndian.PutUint16(buf[1:], uint16(val))
		_, err := w.Write(buf[:])
		return err
	}
	if val <= math.MaxUint32 {
		var buf [5]byte
		buf[0] = 0xfe
		littleEndian.PutUint32(buf[1:], uint32(val))
		_, err := w.Write(buf[:])
		return err
	}
	var buf [9]byte
	buf[0] = 0xff
	littleEndian.PutUint64(buf[1:], val)
	_, err := w.Write(buf[:])
	return err
}

// VarIntSerializeSize returns the number of bytes it would take to serialize
// val as a variable length integer.
func VarIntSerializeSize(val uint64) int {
	switch {
	case val < 0xfd:
		return 1
	case val <= math.MaxUint16:
		return 3
	case val <= math.MaxUint32:
		return 5
	default:
		return 9
	}
}

// ReadVarBytes reads a variable length byte array: a varint length followed
// by that many bytes. maxAllowed bounds the length against memory-exhaustion
// attacks from a malformed record; fieldName is used only in error text.
func ReadVarBytes(r io.Reader, maxAllowed uint64, fieldName string) ([]byte, error) {
	count, err := ReadVarInt(r)
	if err != nil {
		return nil, err
	}
	if count > maxAllowed {
		return nil, errors.Errorf("%s is larger than the max allowed size [count %d, max %d]",
			fieldName, count, maxAllowed)
	}
	b := make([]byte, count)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}

// WriteVarBytes serializes bytes to w as a varint byte count followed by the
// bytes themselves.
func WriteVarBytes(w io.Writer, b []byte) error {
	if err := WriteVarInt(w, uint64(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

// ReadVarString reads a variable length string: a varint length followed by
// that many bytes of UTF-8 text.
func ReadVarString(r io.Reader) (string, error) {
	b, err := ReadVarBytes(r, MaxVarStringPayload, "variable length string")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// WriteVarString serializes str to w as a varint length followed by its bytes.
func WriteVarString(w io.Writer, str string) error {
	return WriteVarBytes(w, []byte(str))
}
