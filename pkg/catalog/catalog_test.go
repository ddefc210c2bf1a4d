package catalog

import (
	"path/filepath"
	"testing"

	"github.com/JerryiaL/minisql/pkg/buffer"
	"github.com/JerryiaL/minisql/pkg/disk"
	"github.com/JerryiaL/minisql/pkg/errs"
	"github.com/JerryiaL/minisql/pkg/record"
)

func newTestCatalog(t *testing.T, poolSize int) (*Catalog, *buffer.Manager, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	dm, err := disk.Open(path)
	if err != nil {
		t.Fatalf("disk.Open: %v", err)
	}
	t.Cleanup(func() { dm.Close() })

	bp := buffer.NewManager(dm, poolSize, nil)
	c, err := Open(bp, nil)
	if err != nil {
		t.Fatalf("catalog.Open: %v", err)
	}
	return c, bp, path
}

func usersSchema() record.Schema {
	return record.Schema{Columns: []record.Column{
		{Name: "id", Type: record.TypeInt, Length: 4, Position: 0},
		{Name: "name", Type: record.TypeVarchar, Length: 32, Position: 1},
	}}
}

func TestCatalogCreateAndGetTable(t *testing.T) {
	c, _, _ := newTestCatalog(t, 8)

	ti, err := c.CreateTable("users", usersSchema())
	if err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	if ti.Name != "users" || len(ti.Schema.Columns) != 2 {
		t.Fatalf("unexpected table info: %+v", ti)
	}

	got, ok := c.GetTable("users")
	if !ok || got.ID != ti.ID {
		t.Fatalf("GetTable = %+v, %v", got, ok)
	}
}

func TestCatalogCreateTableDuplicateNameFails(t *testing.T) {
	c, _, _ := newTestCatalog(t, 8)

	if _, err := c.CreateTable("users", usersSchema()); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	_, err := c.CreateTable("users", usersSchema())
	if !errs.Is(err, errs.AlreadyExists) {
		t.Fatalf("expected AlreadyExists, got %v", err)
	}
}

func TestCatalogDropTable(t *testing.T) {
	c, _, _ := newTestCatalog(t, 8)

	if _, err := c.CreateTable("users", usersSchema()); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	if err := c.DropTable("users"); err != nil {
		t.Fatalf("DropTable: %v", err)
	}
	if _, ok := c.GetTable("users"); ok {
		t.Fatalf("table still visible after drop")
	}
	if err := c.DropTable("users"); !errs.Is(err, errs.NotFound) {
		t.Fatalf("expected NotFound on second drop, got %v", err)
	}
}

// TestCatalogDropTableIndexesNotFound covers spec.md §8's testable
// property: after drop_table(T), get_table(T) returns NotFound and
// get_table_indexes(T) also returns NotFound, distinguishing "table
// gone" from "table exists with zero indexes".
func TestCatalogDropTableIndexesNotFound(t *testing.T) {
	c, _, _ := newTestCatalog(t, 8)

	if _, err := c.CreateTable("users", usersSchema()); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	if _, err := c.CreateIndex("users", "by_id", []string{"id"}); err != nil {
		t.Fatalf("CreateIndex: %v", err)
	}
	if err := c.DropTable("users"); err != nil {
		t.Fatalf("DropTable: %v", err)
	}

	if _, ok := c.GetTable("users"); ok {
		t.Fatalf("GetTable still visible after drop")
	}
	if _, err := c.GetTableIndexes("users"); !errs.Is(err, errs.NotFound) {
		t.Fatalf("GetTableIndexes after drop: expected NotFound, got %v", err)
	}
}

func TestCatalogCreateIndexAndLookup(t *testing.T) {
	c, _, _ := newTestCatalog(t, 8)

	if _, err := c.CreateTable("users", usersSchema()); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	ii, err := c.CreateIndex("users", "by_id", []string{"id"})
	if err != nil {
		t.Fatalf("CreateIndex: %v", err)
	}
	if ii.KeySize != 32 {
		t.Fatalf("KeySize = %d, want 32 (12 + (4+1) = 17 rounds up to 32)", ii.KeySize)
	}

	got, ok := c.GetIndex("users", "by_id")
	if !ok || got.ID != ii.ID {
		t.Fatalf("GetIndex = %+v, %v", got, ok)
	}

	indexes, err := c.GetTableIndexes("users")
	if err != nil {
		t.Fatalf("GetTableIndexes: %v", err)
	}
	if len(indexes) != 1 || indexes[0].Name != "by_id" {
		t.Fatalf("GetTableIndexes = %+v", indexes)
	}
}

func TestCatalogCreateIndexUnknownColumnFails(t *testing.T) {
	c, _, _ := newTestCatalog(t, 8)

	if _, err := c.CreateTable("users", usersSchema()); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	_, err := c.CreateIndex("users", "bad", []string{"nope"})
	if !errs.Is(err, errs.NotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestCatalogDropIndex(t *testing.T) {
	c, _, _ := newTestCatalog(t, 8)

	if _, err := c.CreateTable("users", usersSchema()); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	if _, err := c.CreateIndex("users", "by_id", []string{"id"}); err != nil {
		t.Fatalf("CreateIndex: %v", err)
	}
	if err := c.DropIndex("users", "by_id"); err != nil {
		t.Fatalf("DropIndex: %v", err)
	}
	if _, ok := c.GetIndex("users", "by_id"); ok {
		t.Fatalf("index still visible after drop")
	}
}

func TestCatalogPersistsAcrossReopen(t *testing.T) {
	c, bp, path := newTestCatalog(t, 8)

	if _, err := c.CreateTable("users", usersSchema()); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	if _, err := c.CreateIndex("users", "by_id", []string{"id"}); err != nil {
		t.Fatalf("CreateIndex: %v", err)
	}
	bp.FlushAll()

	dm2, err := disk.Open(path)
	if err != nil {
		t.Fatalf("disk.Open (reopen): %v", err)
	}
	t.Cleanup(func() { dm2.Close() })
	bp2 := buffer.NewManager(dm2, 8, nil)

	c2, err := Open(bp2, nil)
	if err != nil {
		t.Fatalf("catalog.Open (reopen): %v", err)
	}

	ti, ok := c2.GetTable("users")
	if !ok {
		t.Fatalf("table not rehydrated after reopen")
	}
	if len(ti.Schema.Columns) != 2 || ti.Schema.Columns[0].Name != "id" {
		t.Fatalf("schema not rehydrated correctly: %+v", ti.Schema)
	}
	if len(ti.Indexes) != 1 || ti.Indexes[0].Name != "by_id" {
		t.Fatalf("index not rehydrated correctly: %+v", ti.Indexes)
	}
}

func TestCatalogGetTablesSorted(t *testing.T) {
	c, _, _ := newTestCatalog(t, 8)

	for _, name := range []string{"zebra", "apple", "mango"} {
		if _, err := c.CreateTable(name, usersSchema()); err != nil {
			t.Fatalf("CreateTable(%s): %v", name, err)
		}
	}
	tables := c.GetTables()
	if len(tables) != 3 || tables[0].Name != "apple" || tables[1].Name != "mango" || tables[2].Name != "zebra" {
		t.Fatalf("GetTables not sorted: %+v", tables)
	}
}
