// Package record implements the tuple/field/schema wire codec: how a
// row's values are packed into the bytes a slotted page stores, and
// how a table's column list is persisted to its metadata page. The
// type-tagged value encoding is grounded on the teacher's
// pkg/storage/encoding.go Value{Type, ...} pattern, generalized from
// an order-preserving composite-key codec to a plain row codec (see
// DESIGN.md).
package record

import (
	"encoding/binary"
	"math"

	"github.com/JerryiaL/minisql/pkg/errs"
)

// TypeTag identifies a field's runtime type on the wire and in a
// column definition.
type TypeTag uint8

const (
	TypeInt TypeTag = iota + 1
	TypeBigInt
	TypeFloat
	TypeBool
	TypeVarchar
	TypeChar
)

// Field is one value in a row, tagged with its type. Null is
// represented out-of-band by the row's null bitmap, not by Field
// itself.
type Field struct {
	Type TypeTag
	I32  int32
	I64  int64
	F64  float64
	Bool bool
	Str  string // Varchar and Char payload
}

func NewInt(v int32) Field      { return Field{Type: TypeInt, I32: v} }
func NewBigInt(v int64) Field   { return Field{Type: TypeBigInt, I64: v} }
func NewFloat(v float64) Field  { return Field{Type: TypeFloat, F64: v} }
func NewBool(v bool) Field      { return Field{Type: TypeBool, Bool: v} }
func NewVarchar(v string) Field { return Field{Type: TypeVarchar, Str: v} }
func NewChar(v string) Field    { return Field{Type: TypeChar, Str: v} }

// encode appends f's one-byte type tag and payload to dst.
func (f Field) encode(dst []byte) []byte {
	dst = append(dst, byte(f.Type))
	switch f.Type {
	case TypeInt:
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], uint32(f.I32))
		dst = append(dst, b[:]...)
	case TypeBigInt:
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], uint64(f.I64))
		dst = append(dst, b[:]...)
	case TypeFloat:
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], math.Float64bits(f.F64))
		dst = append(dst, b[:]...)
	case TypeBool:
		if f.Bool {
			dst = append(dst, 1)
		} else {
			dst = append(dst, 0)
		}
	case TypeVarchar:
		var lb [4]byte
		binary.LittleEndian.PutUint32(lb[:], uint32(len(f.Str)))
		dst = append(dst, lb[:]...)
		dst = append(dst, f.Str...)
	case TypeChar:
		// Fixed-char carries its own length prefix too, distinguishing
		// it from Varchar only by the engine's column-definition
		// width, not by wire shape.
		var lb [4]byte
		binary.LittleEndian.PutUint32(lb[:], uint32(len(f.Str)))
		dst = append(dst, lb[:]...)
		dst = append(dst, f.Str...)
	}
	return dst
}

// decodeField reads one type-tagged field starting at src[0],
// returning the field and the number of bytes consumed.
func decodeField(src []byte) (Field, int, error) {
	if len(src) < 1 {
		return Field{}, 0, errs.New("record.decodeField", errs.CorruptMetadata)
	}
	tag := TypeTag(src[0])
	body := src[1:]
	switch tag {
	case TypeInt:
		if len(body) < 4 {
			return Field{}, 0, errs.New("record.decodeField", errs.CorruptMetadata)
		}
		return Field{Type: tag, I32: int32(binary.LittleEndian.Uint32(body))}, 5, nil
	case TypeBigInt:
		if len(body) < 8 {
			return Field{}, 0, errs.New("record.decodeField", errs.CorruptMetadata)
		}
		return Field{Type: tag, I64: int64(binary.LittleEndian.Uint64(body))}, 9, nil
	case TypeFloat:
		if len(body) < 8 {
			return Field{}, 0, errs.New("record.decodeField", errs.CorruptMetadata)
		}
		return Field{Type: tag, F64: math.Float64frombits(binary.LittleEndian.Uint64(body))}, 9, nil
	case TypeBool:
		if len(body) < 1 {
			return Field{}, 0, errs.New("record.decodeField", errs.CorruptMetadata)
		}
		return Field{Type: tag, Bool: body[0] != 0}, 2, nil
	case TypeVarchar, TypeChar:
		if len(body) < 4 {
			return Field{}, 0, errs.New("record.decodeField", errs.CorruptMetadata)
		}
		n := binary.LittleEndian.Uint32(body)
		if len(body) < 4+int(n) {
			return Field{}, 0, errs.New("record.decodeField", errs.CorruptMetadata)
		}
		return Field{Type: tag, Str: string(body[4 : 4+n])}, 1 + 4 + int(n), nil
	default:
		return Field{}, 0, errs.New("record.decodeField", errs.CorruptMetadata)
	}
}

// EncodedSize returns how many bytes f occupies on the wire.
func (f Field) EncodedSize() int {
	switch f.Type {
	case TypeInt:
		return 5
	case TypeBigInt, TypeFloat:
		return 9
	case TypeBool:
		return 2
	case TypeVarchar, TypeChar:
		return 1 + 4 + len(f.Str)
	default:
		return 1
	}
}
