package record

import (
	"encoding/binary"

	"github.com/JerryiaL/minisql/pkg/errs"
)

// SchemaMagic guards a serialized schema (an ordered column list).
const SchemaMagic uint32 = 0x4D534348 // "MSCH"

// Schema is the ordered column list of a table.
type Schema struct {
	Columns []Column
}

// ColumnIndex returns the position of the column named name, or -1.
func (s Schema) ColumnIndex(name string) int {
	for i, c := range s.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Encode serializes the schema: magic, column count, then each column.
func (s Schema) Encode() []byte {
	buf := make([]byte, 0, 64+32*len(s.Columns))
	var magic [4]byte
	binary.LittleEndian.PutUint32(magic[:], SchemaMagic)
	buf = append(buf, magic[:]...)

	var count [4]byte
	binary.LittleEndian.PutUint32(count[:], uint32(len(s.Columns)))
	buf = append(buf, count[:]...)

	for _, c := range s.Columns {
		buf = c.Encode(buf)
	}
	return buf
}

// DecodeSchema is the inverse of Encode. Fails with CorruptMetadata on
// a magic mismatch or truncated input.
func DecodeSchema(data []byte) (Schema, error) {
	if len(data) < 8 || binary.LittleEndian.Uint32(data) != SchemaMagic {
		return Schema{}, errs.New("record.DecodeSchema", errs.CorruptMetadata)
	}
	off := 4
	count := binary.LittleEndian.Uint32(data[off:])
	off += 4

	cols := make([]Column, 0, count)
	for i := uint32(0); i < count; i++ {
		col, n, err := DecodeColumn(data[off:])
		if err != nil {
			return Schema{}, err
		}
		cols = append(cols, col)
		off += n
	}
	return Schema{Columns: cols}, nil
}
