package record

import (
	"encoding/binary"

	"github.com/JerryiaL/minisql/pkg/errs"
	"github.com/JerryiaL/minisql/pkg/page"
)

// Row is one tuple: its row-id plus one Field per schema column.
// A nil Fields[i] (zero-value Field with Type 0) paired with a set
// Null bit means the column is null and carries no payload.
type Row struct {
	RID    page.RID
	Fields []Field
	Null   []bool // Null[i] true means Fields[i] is not meaningful
}

// Encode serializes the row: row-id, field count, null bitmap, then
// each non-null field's type-tagged payload in order.
func (r Row) Encode() []byte {
	buf := make([]byte, page.RIDSize, page.RIDSize+4+len(r.Fields)+32*len(r.Fields))
	r.RID.Encode(buf[0:page.RIDSize])

	var count [4]byte
	binary.LittleEndian.PutUint32(count[:], uint32(len(r.Fields)))
	buf = append(buf, count[:]...)

	for _, isNull := range r.Null {
		if isNull {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
	}

	for i, f := range r.Fields {
		if i < len(r.Null) && r.Null[i] {
			continue
		}
		buf = f.encode(buf)
	}
	return buf
}

// DecodeRow is the inverse of Encode.
func DecodeRow(data []byte) (Row, error) {
	if len(data) < page.RIDSize+4 {
		return Row{}, errs.New("record.DecodeRow", errs.CorruptMetadata)
	}
	rid := page.DecodeRID(data[0:page.RIDSize])
	off := page.RIDSize

	count := binary.LittleEndian.Uint32(data[off:])
	off += 4

	if len(data) < off+int(count) {
		return Row{}, errs.New("record.DecodeRow", errs.CorruptMetadata)
	}
	nullBits := data[off : off+int(count)]
	off += int(count)

	fields := make([]Field, count)
	nulls := make([]bool, count)
	for i := uint32(0); i < count; i++ {
		nulls[i] = nullBits[i] != 0
		if nulls[i] {
			continue
		}
		f, n, err := decodeField(data[off:])
		if err != nil {
			return Row{}, err
		}
		fields[i] = f
		off += n
	}

	return Row{RID: rid, Fields: fields, Null: nulls}, nil
}
