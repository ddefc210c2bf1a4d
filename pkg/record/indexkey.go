package record

import (
	"encoding/binary"
	"math"
)

// EncodeIndexKey packs values (already selected and ordered by the
// caller to match an index's column list) into a fixed-width,
// order-preserving key of exactly keySize bytes. Byte-lexicographic
// comparison of two such keys matches the values' natural ordering,
// which is what lets the B+-tree's plain byte comparator serve as a
// multi-column index comparator.
func EncodeIndexKey(values []Field, keySize int) []byte {
	buf := make([]byte, 0, keySize)
	for _, f := range values {
		buf = appendOrderPreserving(buf, f)
	}
	if len(buf) > keySize {
		buf = buf[:keySize]
	}
	for len(buf) < keySize {
		buf = append(buf, 0)
	}
	return buf
}

// appendOrderPreserving appends f's order-preserving byte encoding to
// dst. Integers and floats are big-endian with their sign bit handling
// flipped so unsigned byte comparison matches signed numeric order;
// strings are raw bytes (shorter strings naturally sort first once
// zero-padded, since 0x00 is the lowest byte value).
func appendOrderPreserving(dst []byte, f Field) []byte {
	switch f.Type {
	case TypeInt:
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], uint32(f.I32)^0x80000000)
		return append(dst, b[:]...)
	case TypeBigInt:
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], uint64(f.I64)^0x8000000000000000)
		return append(dst, b[:]...)
	case TypeFloat:
		bits := math.Float64bits(f.F64)
		if f.F64 >= 0 {
			bits ^= 0x8000000000000000
		} else {
			bits = ^bits
		}
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], bits)
		return append(dst, b[:]...)
	case TypeBool:
		if f.Bool {
			return append(dst, 1)
		}
		return append(dst, 0)
	default: // Varchar, Char
		return append(dst, f.Str...)
	}
}
