package engine

import (
	"testing"

	"github.com/JerryiaL/minisql/pkg/record"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := New(t.TempDir(), nil, nil)
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	return e
}

func mustExec(t *testing.T, e *Engine, stmt Statement) Result {
	t.Helper()
	res, err := e.Execute(stmt)
	if err != nil {
		t.Fatalf("Execute(%#v): %v", stmt, err)
	}
	return res
}

func usersSchema() record.Schema {
	return record.Schema{Columns: []record.Column{
		{Name: "id", Type: record.TypeInt, Length: 4},
		{Name: "name", Type: record.TypeChar, Length: 64},
		{Name: "account", Type: record.TypeFloat, Length: 8},
	}}
}

func TestEngineCreateTableInsertSelect(t *testing.T) {
	e := newTestEngine(t)
	mustExec(t, e, CreateDatabase{Name: "db1"})
	mustExec(t, e, Use{Name: "db1"})
	mustExec(t, e, CreateTable{Table: "users", Schema: usersSchema()})

	mustExec(t, e, Insert{Table: "users", Values: []record.Field{
		record.NewInt(1), record.NewChar("alice"), record.NewFloat(10.5),
	}})
	mustExec(t, e, Insert{Table: "users", Values: []record.Field{
		record.NewInt(2), record.NewChar("bob"), record.NewFloat(20.25),
	}})

	res := mustExec(t, e, Select{Table: "users"})
	if len(res.Rows) != 2 {
		t.Fatalf("Select returned %d rows, want 2", len(res.Rows))
	}
}

func TestEngineUniqueIndexLookupAndDuplicateRejected(t *testing.T) {
	e := newTestEngine(t)
	mustExec(t, e, CreateDatabase{Name: "db1"})
	mustExec(t, e, Use{Name: "db1"})
	mustExec(t, e, CreateTable{Table: "users", Schema: usersSchema()})
	mustExec(t, e, CreateIndex{Table: "users", Index: "by_id", Columns: []string{"id"}})

	const n = 100
	for i := 0; i < n; i++ {
		mustExec(t, e, Insert{Table: "users", Values: []record.Field{
			record.NewInt(int32(i)), record.NewChar("u"), record.NewFloat(float64(i)),
		}})
	}

	res := mustExec(t, e, Select{
		Table: "users",
		Where: Comparison{Column: "id", Op: OpEQ, Value: record.NewInt(42)},
	})
	if len(res.Rows) != 1 || res.Rows[0][0] != "42" {
		t.Fatalf("indexed select = %+v, want one row with id=42", res.Rows)
	}

	_, err := e.Execute(Insert{Table: "users", Values: []record.Field{
		record.NewInt(42), record.NewChar("dup"), record.NewFloat(0),
	}})
	if err == nil {
		t.Fatalf("expected duplicate primary key insert to fail")
	}
}

func TestEngineDeleteAndUpdate(t *testing.T) {
	e := newTestEngine(t)
	mustExec(t, e, CreateDatabase{Name: "db1"})
	mustExec(t, e, Use{Name: "db1"})
	mustExec(t, e, CreateTable{Table: "users", Schema: usersSchema()})

	for i := 0; i < 5; i++ {
		mustExec(t, e, Insert{Table: "users", Values: []record.Field{
			record.NewInt(int32(i)), record.NewChar("u"), record.NewFloat(float64(i)),
		}})
	}

	delRes := mustExec(t, e, Delete{
		Table: "users",
		Where: Comparison{Column: "id", Op: OpEQ, Value: record.NewInt(2)},
	})
	if delRes.Message != "1 row(s) deleted" {
		t.Fatalf("Delete message = %q", delRes.Message)
	}

	res := mustExec(t, e, Select{Table: "users"})
	if len(res.Rows) != 4 {
		t.Fatalf("Select after delete = %d rows, want 4", len(res.Rows))
	}

	updRes := mustExec(t, e, Update{
		Table: "users",
		Set:   map[string]record.Field{"name": record.NewChar("zed")},
		Where: Comparison{Column: "id", Op: OpEQ, Value: record.NewInt(0)},
	})
	if updRes.Message != "1 row(s) updated" {
		t.Fatalf("Update message = %q", updRes.Message)
	}

	res = mustExec(t, e, Select{
		Table: "users",
		Where: Comparison{Column: "id", Op: OpEQ, Value: record.NewInt(0)},
	})
	if len(res.Rows) != 1 || res.Rows[0][1] != "zed" {
		t.Fatalf("updated row = %+v", res.Rows)
	}
}

func TestEngineCatalogPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	e1, err := New(dir, nil, nil)
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	mustExec(t, e1, CreateDatabase{Name: "db1"})
	mustExec(t, e1, Use{Name: "db1"})
	mustExec(t, e1, CreateTable{Table: "t1", Schema: usersSchema()})
	mustExec(t, e1, CreateTable{Table: "t2", Schema: usersSchema()})
	mustExec(t, e1, CreateIndex{Table: "t1", Index: "by_id", Columns: []string{"id"}})
	mustExec(t, e1, CreateIndex{Table: "t2", Index: "by_id", Columns: []string{"id"}})
	mustExec(t, e1, Insert{Table: "t1", Values: []record.Field{
		record.NewInt(7), record.NewChar("seven"), record.NewFloat(7),
	}})
	e1.databases["db1"].Close()

	e2, err := New(dir, nil, nil)
	if err != nil {
		t.Fatalf("engine.New (reopen): %v", err)
	}
	mustExec(t, e2, Use{Name: "db1"})

	tables := mustExec(t, e2, ShowTables{})
	if len(tables.Rows) != 2 {
		t.Fatalf("ShowTables after reopen = %+v, want 2 tables", tables.Rows)
	}

	indexes := mustExec(t, e2, ShowIndexes{Table: "t1"})
	if len(indexes.Rows) != 1 || indexes.Rows[0][0] != "by_id" {
		t.Fatalf("ShowIndexes after reopen = %+v", indexes.Rows)
	}

	res := mustExec(t, e2, Select{
		Table: "t1",
		Where: Comparison{Column: "id", Op: OpEQ, Value: record.NewInt(7)},
	})
	if len(res.Rows) != 1 {
		t.Fatalf("rows not visible after reopen: %+v", res.Rows)
	}
}

func TestEngineAndOrPredicateCombinesIndexedLookups(t *testing.T) {
	e := newTestEngine(t)
	mustExec(t, e, CreateDatabase{Name: "db1"})
	mustExec(t, e, Use{Name: "db1"})
	mustExec(t, e, CreateTable{Table: "users", Schema: usersSchema()})
	mustExec(t, e, CreateIndex{Table: "users", Index: "by_id", Columns: []string{"id"}})

	for i := 0; i < 10; i++ {
		mustExec(t, e, Insert{Table: "users", Values: []record.Field{
			record.NewInt(int32(i)), record.NewChar("u"), record.NewFloat(float64(i)),
		}})
	}

	res := mustExec(t, e, Select{
		Table: "users",
		Where: Or{
			Left:  Comparison{Column: "id", Op: OpEQ, Value: record.NewInt(1)},
			Right: Comparison{Column: "id", Op: OpEQ, Value: record.NewInt(8)},
		},
	})
	if len(res.Rows) != 2 {
		t.Fatalf("OR select = %+v, want 2 rows", res.Rows)
	}
}
