package page

import (
	"encoding/binary"

	"github.com/JerryiaL/minisql/pkg/errs"
)

// CatalogMetaMagic guards the catalog meta page against reading garbage
// or a foreign file as if it were a minisql database.
const CatalogMetaMagic uint32 = 0x4D53514C // "MSQL"

// SerializeCatalogMeta writes the catalog's two durable mappings
// (table-id -> metadata page, index-id -> metadata page) into a single
// page-sized buffer: magic, table count, table entries, index count,
// index entries.
func SerializeCatalogMeta(tables, indexes map[uint32]ID) ([]byte, error) {
	buf := make([]byte, Size)
	off := 0
	binary.LittleEndian.PutUint32(buf[off:], CatalogMetaMagic)
	off += 4

	binary.LittleEndian.PutUint32(buf[off:], uint32(len(tables)))
	off += 4
	for id, pid := range tables {
		if off+8 > Size {
			return nil, errs.New("SerializeCatalogMeta", errs.Unsupported)
		}
		binary.LittleEndian.PutUint32(buf[off:], id)
		binary.LittleEndian.PutUint32(buf[off+4:], uint32(pid))
		off += 8
	}

	binary.LittleEndian.PutUint32(buf[off:], uint32(len(indexes)))
	off += 4
	for id, pid := range indexes {
		if off+8 > Size {
			return nil, errs.New("SerializeCatalogMeta", errs.Unsupported)
		}
		binary.LittleEndian.PutUint32(buf[off:], id)
		binary.LittleEndian.PutUint32(buf[off+4:], uint32(pid))
		off += 8
	}

	return buf, nil
}

// DeserializeCatalogMeta is the inverse of SerializeCatalogMeta.
// Returns CorruptMetadata if the magic number does not match.
func DeserializeCatalogMeta(data []byte) (tables, indexes map[uint32]ID, err error) {
	if len(data) < 8 || binary.LittleEndian.Uint32(data[0:]) != CatalogMetaMagic {
		return nil, nil, errs.New("DeserializeCatalogMeta", errs.CorruptMetadata)
	}
	off := 4

	tableCount := binary.LittleEndian.Uint32(data[off:])
	off += 4
	tables = make(map[uint32]ID, tableCount)
	for i := uint32(0); i < tableCount; i++ {
		id := binary.LittleEndian.Uint32(data[off:])
		pid := ID(binary.LittleEndian.Uint32(data[off+4:]))
		tables[id] = pid
		off += 8
	}

	indexCount := binary.LittleEndian.Uint32(data[off:])
	off += 4
	indexes = make(map[uint32]ID, indexCount)
	for i := uint32(0); i < indexCount; i++ {
		id := binary.LittleEndian.Uint32(data[off:])
		pid := ID(binary.LittleEndian.Uint32(data[off+4:]))
		indexes[id] = pid
		off += 8
	}

	return tables, indexes, nil
}
