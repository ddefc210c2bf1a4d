package record

import (
	"encoding/binary"

	"github.com/JerryiaL/minisql/pkg/errs"
)

// ColumnMagic guards a single column's serialized form.
const ColumnMagic uint32 = 0x4D434F4C // "MCOL"

// Column describes one field of a table's schema.
type Column struct {
	Name     string
	Type     TypeTag
	Length   uint32 // byte length for Char/Varchar; the type's width or 0 for fixed-width types
	Position uint32
	Nullable bool
	Unique   bool
}

// Encode appends c's serialized form (magic, name length, name, type
// tag, byte length, position, nullable, unique) to dst.
func (c Column) Encode(dst []byte) []byte {
	var magic [4]byte
	binary.LittleEndian.PutUint32(magic[:], ColumnMagic)
	dst = append(dst, magic[:]...)

	var nameLen [4]byte
	binary.LittleEndian.PutUint32(nameLen[:], uint32(len(c.Name)))
	dst = append(dst, nameLen[:]...)
	dst = append(dst, c.Name...)

	dst = append(dst, byte(c.Type))

	var length [4]byte
	binary.LittleEndian.PutUint32(length[:], c.Length)
	dst = append(dst, length[:]...)

	var pos [4]byte
	binary.LittleEndian.PutUint32(pos[:], c.Position)
	dst = append(dst, pos[:]...)

	if c.Nullable {
		dst = append(dst, 1)
	} else {
		dst = append(dst, 0)
	}
	if c.Unique {
		dst = append(dst, 1)
	} else {
		dst = append(dst, 0)
	}
	return dst
}

// DecodeColumn reads one column starting at src[0], returning the
// column and bytes consumed. Fails with CorruptMetadata if the magic
// number does not match.
func DecodeColumn(src []byte) (Column, int, error) {
	if len(src) < 4 || binary.LittleEndian.Uint32(src) != ColumnMagic {
		return Column{}, 0, errs.New("record.DecodeColumn", errs.CorruptMetadata)
	}
	off := 4

	if len(src) < off+4 {
		return Column{}, 0, errs.New("record.DecodeColumn", errs.CorruptMetadata)
	}
	nameLen := binary.LittleEndian.Uint32(src[off:])
	off += 4
	if len(src) < off+int(nameLen) {
		return Column{}, 0, errs.New("record.DecodeColumn", errs.CorruptMetadata)
	}
	name := string(src[off : off+int(nameLen)])
	off += int(nameLen)

	if len(src) < off+1+4+4+1+1 {
		return Column{}, 0, errs.New("record.DecodeColumn", errs.CorruptMetadata)
	}
	typ := TypeTag(src[off])
	off++
	length := binary.LittleEndian.Uint32(src[off:])
	off += 4
	position := binary.LittleEndian.Uint32(src[off:])
	off += 4
	nullable := src[off] != 0
	off++
	unique := src[off] != 0
	off++

	return Column{
		Name:     name,
		Type:     typ,
		Length:   length,
		Position: position,
		Nullable: nullable,
		Unique:   unique,
	}, off, nil
}
