package catalog

import (
	"encoding/binary"

	"github.com/JerryiaL/minisql/pkg/errs"
	"github.com/JerryiaL/minisql/pkg/page"
	"github.com/JerryiaL/minisql/pkg/record"
)

const (
	tableMetaMagic uint32 = 0x4D544142 // "MTAB"
	indexMetaMagic uint32 = 0x4D494458 // "MIDX"
)

// tableMetadata is the durable form of a table: its id, name, heap
// head page and schema.
type tableMetadata struct {
	ID          uint32
	Name        string
	FirstPageID page.ID
	Schema      record.Schema
}

func (m tableMetadata) encode() []byte {
	buf := make([]byte, 0, page.Size)
	var b4 [4]byte

	binary.LittleEndian.PutUint32(b4[:], tableMetaMagic)
	buf = append(buf, b4[:]...)

	binary.LittleEndian.PutUint32(b4[:], m.ID)
	buf = append(buf, b4[:]...)

	binary.LittleEndian.PutUint32(b4[:], uint32(len(m.Name)))
	buf = append(buf, b4[:]...)
	buf = append(buf, m.Name...)

	binary.LittleEndian.PutUint32(b4[:], uint32(m.FirstPageID))
	buf = append(buf, b4[:]...)

	buf = append(buf, m.Schema.Encode()...)
	return buf
}

func decodeTableMetadata(data []byte) (tableMetadata, error) {
	if len(data) < 4 || binary.LittleEndian.Uint32(data) != tableMetaMagic {
		return tableMetadata{}, errs.New("catalog.decodeTableMetadata", errs.CorruptMetadata)
	}
	off := 4
	id := binary.LittleEndian.Uint32(data[off:])
	off += 4
	nameLen := binary.LittleEndian.Uint32(data[off:])
	off += 4
	name := string(data[off : off+int(nameLen)])
	off += int(nameLen)
	firstPage := page.ID(int32(binary.LittleEndian.Uint32(data[off:])))
	off += 4

	schema, err := record.DecodeSchema(data[off:])
	if err != nil {
		return tableMetadata{}, err
	}
	return tableMetadata{ID: id, Name: name, FirstPageID: firstPage, Schema: schema}, nil
}

// indexMetadata is the durable form of an index: its id, owning
// table, name, key width and the schema positions it covers.
type indexMetadata struct {
	ID      uint32
	TableID uint32
	Name    string
	KeySize int
	Columns []uint32
}

func (m indexMetadata) encode() []byte {
	buf := make([]byte, 0, 256)
	var b4 [4]byte

	binary.LittleEndian.PutUint32(b4[:], indexMetaMagic)
	buf = append(buf, b4[:]...)

	binary.LittleEndian.PutUint32(b4[:], m.ID)
	buf = append(buf, b4[:]...)

	binary.LittleEndian.PutUint32(b4[:], m.TableID)
	buf = append(buf, b4[:]...)

	binary.LittleEndian.PutUint32(b4[:], uint32(len(m.Name)))
	buf = append(buf, b4[:]...)
	buf = append(buf, m.Name...)

	binary.LittleEndian.PutUint32(b4[:], uint32(m.KeySize))
	buf = append(buf, b4[:]...)

	binary.LittleEndian.PutUint32(b4[:], uint32(len(m.Columns)))
	buf = append(buf, b4[:]...)
	for _, c := range m.Columns {
		binary.LittleEndian.PutUint32(b4[:], c)
		buf = append(buf, b4[:]...)
	}
	return buf
}

func decodeIndexMetadata(data []byte) (indexMetadata, error) {
	if len(data) < 4 || binary.LittleEndian.Uint32(data) != indexMetaMagic {
		return indexMetadata{}, errs.New("catalog.decodeIndexMetadata", errs.CorruptMetadata)
	}
	off := 4
	id := binary.LittleEndian.Uint32(data[off:])
	off += 4
	tableID := binary.LittleEndian.Uint32(data[off:])
	off += 4
	nameLen := binary.LittleEndian.Uint32(data[off:])
	off += 4
	name := string(data[off : off+int(nameLen)])
	off += int(nameLen)
	keySize := binary.LittleEndian.Uint32(data[off:])
	off += 4
	colCount := binary.LittleEndian.Uint32(data[off:])
	off += 4

	cols := make([]uint32, colCount)
	for i := uint32(0); i < colCount; i++ {
		cols[i] = binary.LittleEndian.Uint32(data[off:])
		off += 4
	}

	return indexMetadata{
		ID:      id,
		TableID: tableID,
		Name:    name,
		KeySize: int(keySize),
		Columns: cols,
	}, nil
}

// chooseKeySize picks the smallest fixed-width key size (4, 8, 16, 32
// or 64 bytes) able to hold the indexed columns' combined payload, per
// the formula 12 + sum(column_len + 1).
func chooseKeySize(schema record.Schema, columns []uint32) int {
	need := 12
	for _, pos := range columns {
		col := schema.Columns[pos]
		length := int(col.Length)
		if length == 0 {
			switch col.Type {
			case record.TypeInt:
				length = 4
			case record.TypeBigInt, record.TypeFloat:
				length = 8
			case record.TypeBool:
				length = 1
			default:
				length = 16
			}
		}
		need += length + 1
	}
	for _, size := range []int{4, 8, 16, 32, 64} {
		if size >= need {
			return size
		}
	}
	return 64
}
