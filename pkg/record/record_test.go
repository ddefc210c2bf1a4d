package record

import (
	"testing"

	"github.com/JerryiaL/minisql/pkg/page"
)

func TestRowRoundTrip(t *testing.T) {
	row := Row{
		RID: page.RID{PageID: 3, Slot: 7},
		Fields: []Field{
			NewInt(42),
			NewVarchar("hello"),
			{},
			NewBool(true),
		},
		Null: []bool{false, false, true, false},
	}

	data := row.Encode()
	got, err := DecodeRow(data)
	if err != nil {
		t.Fatalf("DecodeRow: %v", err)
	}

	if got.RID != row.RID {
		t.Fatalf("RID = %+v, want %+v", got.RID, row.RID)
	}
	if len(got.Fields) != len(row.Fields) {
		t.Fatalf("field count = %d, want %d", len(got.Fields), len(row.Fields))
	}
	if got.Fields[0].I32 != 42 {
		t.Fatalf("Fields[0].I32 = %d, want 42", got.Fields[0].I32)
	}
	if got.Fields[1].Str != "hello" {
		t.Fatalf("Fields[1].Str = %q, want hello", got.Fields[1].Str)
	}
	if !got.Null[2] {
		t.Fatalf("Null[2] = false, want true")
	}
	if !got.Fields[3].Bool {
		t.Fatalf("Fields[3].Bool = false, want true")
	}
}

func TestSchemaRoundTrip(t *testing.T) {
	schema := Schema{Columns: []Column{
		{Name: "id", Type: TypeInt, Position: 0},
		{Name: "name", Type: TypeVarchar, Position: 1, Nullable: true},
		{Name: "email", Type: TypeChar, Length: 64, Position: 2, Unique: true},
	}}

	data := schema.Encode()
	got, err := DecodeSchema(data)
	if err != nil {
		t.Fatalf("DecodeSchema: %v", err)
	}
	if len(got.Columns) != 3 {
		t.Fatalf("column count = %d, want 3", len(got.Columns))
	}
	if got.Columns[2].Length != 64 || !got.Columns[2].Unique {
		t.Fatalf("email column decoded wrong: %+v", got.Columns[2])
	}
	if got.ColumnIndex("name") != 1 {
		t.Fatalf("ColumnIndex(name) = %d, want 1", got.ColumnIndex("name"))
	}
}

func TestDecodeSchemaRejectsBadMagic(t *testing.T) {
	if _, err := DecodeSchema([]byte{0, 0, 0, 0, 0, 0, 0, 0}); err == nil {
		t.Fatalf("expected CorruptMetadata on bad magic")
	}
}
