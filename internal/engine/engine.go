package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/JerryiaL/minisql/internal/logger"
	"github.com/JerryiaL/minisql/internal/metrics"
	"github.com/JerryiaL/minisql/pkg/buffer"
	"github.com/JerryiaL/minisql/pkg/catalog"
	"github.com/JerryiaL/minisql/pkg/disk"
	"github.com/JerryiaL/minisql/pkg/errs"
	"github.com/JerryiaL/minisql/pkg/page"
	"github.com/JerryiaL/minisql/pkg/record"
	"github.com/JerryiaL/minisql/pkg/txn"
)

const dbFileSuffix = ".msql"

const defaultPoolSize = 128

// Database bundles one open database file's storage stack: disk
// manager, buffer pool, catalog and the single global lock that
// serializes statement execution against it.
type Database struct {
	Name string
	disk *disk.Manager
	bp   *buffer.Manager
	cat  *catalog.Catalog
	lock *txn.LockManager
	wal  *txn.WAL
}

func (db *Database) Close() error {
	db.bp.FlushAll()
	return db.disk.Close()
}

// Engine is the command surface: it owns every open Database under
// RootDir and the name of the currently selected one, and dispatches
// parsed Statements to the storage packages.
type Engine struct {
	RootDir   string
	databases map[string]*Database
	current   string
	metrics   *metrics.Metrics
	log       *logger.Logger
}

// New returns an Engine rooted at dir (one file per database, per
// spec.md §6's "one host filesystem directory" environment contract).
func New(dir string, m *metrics.Metrics, log *logger.Logger) (*Engine, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errs.Wrap("engine.New", errs.IoError, err)
	}
	return &Engine{RootDir: dir, databases: make(map[string]*Database), metrics: m, log: log}, nil
}

func (e *Engine) pathFor(name string) string {
	return filepath.Join(e.RootDir, name+dbFileSuffix)
}

// CurrentDatabase returns the name of the database selected by Use,
// or "" if none is selected yet.
func (e *Engine) CurrentDatabase() string {
	return e.current
}

// Result is the tabular output of a statement that produces rows.
type Result struct {
	Columns []string
	Rows    [][]string
	Message string
}

// Execute dispatches stmt to its handler. The caller is expected to
// have already resolved Use() so Table-scoped statements know which
// database to run against, except for the database-management
// statements which are database-agnostic.
func (e *Engine) Execute(stmt Statement) (Result, error) {
	switch s := stmt.(type) {
	case CreateDatabase:
		return e.createDatabase(s)
	case DropDatabase:
		return e.dropDatabase(s)
	case ShowDatabases:
		return e.showDatabases()
	case Use:
		return e.use(s)
	case ShowTables:
		return e.showTables()
	case ShowIndexes:
		return e.showIndexes(s)
	case CreateTable:
		return e.createTable(s)
	case DropTable:
		return e.dropTable(s)
	case CreateIndex:
		return e.createIndex(s)
	case DropIndex:
		return e.dropIndex(s)
	case Insert:
		return e.insert(s)
	case Select:
		return e.select_(s)
	case Delete:
		return e.delete(s)
	case Update:
		return e.update(s)
	default:
		return Result{}, errs.New("engine.Execute", errs.Unsupported)
	}
}

func (e *Engine) currentDB() (*Database, error) {
	db, ok := e.databases[e.current]
	if !ok {
		return nil, errs.New("engine.currentDB", errs.NotFound)
	}
	return db, nil
}

func (e *Engine) createDatabase(s CreateDatabase) (Result, error) {
	path := e.pathFor(s.Name)
	if _, err := os.Stat(path); err == nil {
		return Result{}, errs.New("engine.CreateDatabase", errs.AlreadyExists)
	}
	db, err := e.openDatabase(s.Name)
	if err != nil {
		return Result{}, err
	}
	e.databases[s.Name] = db
	return Result{Message: fmt.Sprintf("database %q created", s.Name)}, nil
}

func (e *Engine) openDatabase(name string) (*Database, error) {
	dm, err := disk.Open(e.pathFor(name))
	if err != nil {
		return nil, errs.Wrap("engine.openDatabase", errs.IoError, err)
	}
	bp := buffer.NewManager(dm, defaultPoolSize, e.metrics)
	cat, err := catalog.Open(bp, e.metrics)
	if err != nil {
		dm.Close()
		return nil, err
	}
	return &Database{Name: name, disk: dm, bp: bp, cat: cat, lock: txn.NewLockManager(), wal: txn.NewWAL()}, nil
}

func (e *Engine) dropDatabase(s DropDatabase) (Result, error) {
	if db, ok := e.databases[s.Name]; ok {
		db.Close()
		delete(e.databases, s.Name)
		if e.current == s.Name {
			e.current = ""
		}
	}
	path := e.pathFor(s.Name)
	if _, err := os.Stat(path); err != nil {
		return Result{}, errs.New("engine.DropDatabase", errs.NotFound)
	}
	if err := os.Remove(path); err != nil {
		return Result{}, errs.Wrap("engine.DropDatabase", errs.IoError, err)
	}
	return Result{Message: fmt.Sprintf("database %q dropped", s.Name)}, nil
}

func (e *Engine) showDatabases() (Result, error) {
	entries, err := os.ReadDir(e.RootDir)
	if err != nil {
		return Result{}, errs.Wrap("engine.ShowDatabases", errs.IoError, err)
	}
	var names []string
	for _, ent := range entries {
		if !ent.IsDir() && strings.HasSuffix(ent.Name(), dbFileSuffix) {
			names = append(names, strings.TrimSuffix(ent.Name(), dbFileSuffix))
		}
	}
	sort.Strings(names)
	rows := make([][]string, len(names))
	for i, n := range names {
		rows[i] = []string{n}
	}
	return Result{Columns: []string{"database"}, Rows: rows}, nil
}

func (e *Engine) use(s Use) (Result, error) {
	if _, ok := e.databases[s.Name]; !ok {
		if _, err := os.Stat(e.pathFor(s.Name)); err != nil {
			return Result{}, errs.New("engine.Use", errs.NotFound)
		}
		db, err := e.openDatabase(s.Name)
		if err != nil {
			return Result{}, err
		}
		e.databases[s.Name] = db
	}
	e.current = s.Name
	return Result{Message: fmt.Sprintf("using %q", s.Name)}, nil
}

func (e *Engine) showTables() (Result, error) {
	db, err := e.currentDB()
	if err != nil {
		return Result{}, err
	}
	tables := db.cat.GetTables()
	rows := make([][]string, len(tables))
	for i, t := range tables {
		rows[i] = []string{t.Name}
	}
	return Result{Columns: []string{"table"}, Rows: rows}, nil
}

func (e *Engine) showIndexes(s ShowIndexes) (Result, error) {
	db, err := e.currentDB()
	if err != nil {
		return Result{}, err
	}
	indexes, err := db.cat.GetTableIndexes(s.Table)
	if err != nil {
		return Result{}, err
	}
	rows := make([][]string, len(indexes))
	for i, idx := range indexes {
		rows[i] = []string{idx.Name, fmt.Sprintf("%d", idx.KeySize)}
	}
	return Result{Columns: []string{"index", "key_size"}, Rows: rows}, nil
}

func (e *Engine) createTable(s CreateTable) (Result, error) {
	db, err := e.currentDB()
	if err != nil {
		return Result{}, err
	}
	db.lock.Lock()
	defer db.lock.Unlock()

	db.wal.AppendStub(txn.OpCreateTable, []byte(s.Table))
	if _, err := db.cat.CreateTable(s.Table, s.Schema); err != nil {
		return Result{}, err
	}
	return Result{Message: fmt.Sprintf("table %q created", s.Table)}, nil
}

func (e *Engine) dropTable(s DropTable) (Result, error) {
	db, err := e.currentDB()
	if err != nil {
		return Result{}, err
	}
	db.lock.Lock()
	defer db.lock.Unlock()

	db.wal.AppendStub(txn.OpDropTable, []byte(s.Table))
	if err := db.cat.DropTable(s.Table); err != nil {
		return Result{}, err
	}
	return Result{Message: fmt.Sprintf("table %q dropped", s.Table)}, nil
}

func (e *Engine) createIndex(s CreateIndex) (Result, error) {
	db, err := e.currentDB()
	if err != nil {
		return Result{}, err
	}
	db.lock.Lock()
	defer db.lock.Unlock()

	if _, err := db.cat.CreateIndex(s.Table, s.Index, s.Columns); err != nil {
		return Result{}, err
	}
	return Result{Message: fmt.Sprintf("index %q created on %q", s.Index, s.Table)}, nil
}

func (e *Engine) dropIndex(s DropIndex) (Result, error) {
	db, err := e.currentDB()
	if err != nil {
		return Result{}, err
	}
	db.lock.Lock()
	defer db.lock.Unlock()

	if err := db.cat.DropIndex(s.Table, s.Index); err != nil {
		return Result{}, err
	}
	return Result{Message: fmt.Sprintf("index %q dropped", s.Index)}, nil
}

// indexKeyForRow builds idx's fixed-width key from row's field values
// at idx's indexed column positions.
func indexKeyForRow(idx *catalog.IndexInfo, row record.Row) []byte {
	values := make([]record.Field, len(idx.Columns))
	for i, pos := range idx.Columns {
		values[i] = row.Fields[pos]
	}
	return record.EncodeIndexKey(values, idx.KeySize)
}

func (e *Engine) insert(s Insert) (Result, error) {
	db, err := e.currentDB()
	if err != nil {
		return Result{}, err
	}
	ti, ok := db.cat.GetTable(s.Table)
	if !ok {
		return Result{}, errs.New("engine.Insert", errs.NotFound)
	}
	if len(s.Values) != len(ti.Schema.Columns) {
		return Result{}, errs.New("engine.Insert", errs.ConstraintViolation)
	}

	db.lock.Lock()
	defer db.lock.Unlock()

	row := record.Row{Fields: s.Values, Null: make([]bool, len(s.Values))}
	data := row.Encode()

	rid, err := ti.Heap.Insert(data)
	if err != nil {
		return Result{}, err
	}
	row.RID = rid

	for _, idx := range ti.Indexes {
		key := indexKeyForRow(idx, row)
		if err := idx.Tree.Insert(key, rid); err != nil {
			ti.Heap.MarkDelete(rid)
			ti.Heap.ApplyDelete(rid)
			return Result{}, err
		}
	}

	db.wal.AppendStub(txn.OpInsert, data)
	return Result{Message: "1 row inserted"}, nil
}

// indexForColumn returns the single-column unique index on name, if any.
func indexForColumn(ti *catalog.TableInfo, name string) (*catalog.IndexInfo, bool) {
	for _, idx := range ti.Indexes {
		if len(idx.Columns) == 1 && ti.Schema.Columns[idx.Columns[0]].Name == name {
			return idx, true
		}
	}
	return nil, false
}

// indexedRIDs recursively tries to resolve pred to a row-id set using
// only index lookups, combining sub-results with intersectRIDs (And)
// or unionRIDs (Or) under the page-id-then-slot order spec.md §4.9
// requires. ok is false wherever a sub-predicate has no usable index,
// signalling the caller must fall back to a heap scan for that part.
func (e *Engine) indexedRIDs(ti *catalog.TableInfo, pred Predicate) ([]page.RID, bool, error) {
	switch p := pred.(type) {
	case Comparison:
		if p.Op != OpEQ {
			return nil, false, nil
		}
		idx, ok := indexForColumn(ti, p.Column)
		if !ok {
			return nil, false, nil
		}
		key := record.EncodeIndexKey([]record.Field{p.Value}, idx.KeySize)
		rid, found, err := idx.Tree.GetValue(key)
		if err != nil {
			return nil, false, err
		}
		if !found {
			return []page.RID{}, true, nil
		}
		return []page.RID{rid}, true, nil
	case And:
		left, lok, err := e.indexedRIDs(ti, p.Left)
		if err != nil {
			return nil, false, err
		}
		right, rok, err := e.indexedRIDs(ti, p.Right)
		if err != nil {
			return nil, false, err
		}
		if lok && rok {
			return intersectRIDs(left, right), true, nil
		}
		return nil, false, nil
	case Or:
		left, lok, err := e.indexedRIDs(ti, p.Left)
		if err != nil {
			return nil, false, err
		}
		right, rok, err := e.indexedRIDs(ti, p.Right)
		if err != nil {
			return nil, false, err
		}
		if lok && rok {
			return unionRIDs(left, right), true, nil
		}
		return nil, false, nil
	default:
		return nil, false, nil
	}
}

// matchingRIDs selects tableName's rows satisfying where: it first
// tries to resolve the whole predicate through indexed equality
// lookups (intersecting/unioning as the predicate tree combines
// them), then falls back to a full heap scan, re-checking the
// predicate against every candidate row either way.
func (e *Engine) matchingRIDs(ti *catalog.TableInfo, where Predicate) ([]page.RID, error) {
	var rids []page.RID

	if indexed, ok, err := e.indexedRIDs(ti, where); err != nil {
		return nil, err
	} else if ok {
		rids = indexed
	} else {
		for it := ti.Heap.Begin(); !it.End(); it.Next() {
			rids = append(rids, it.RID())
		}
		sortRIDs(rids)
	}

	out := rids[:0]
	for _, rid := range rids {
		data, ok := ti.Heap.GetTuple(rid)
		if !ok {
			continue
		}
		row, err := record.DecodeRow(data)
		if err != nil {
			continue
		}
		row.RID = rid
		if evalPredicate(where, ti.Schema, row) {
			out = append(out, rid)
		}
	}
	return out, nil
}

func (e *Engine) select_(s Select) (Result, error) {
	db, err := e.currentDB()
	if err != nil {
		return Result{}, err
	}
	ti, ok := db.cat.GetTable(s.Table)
	if !ok {
		return Result{}, errs.New("engine.Select", errs.NotFound)
	}

	db.lock.Lock()
	defer db.lock.Unlock()

	rids, err := e.matchingRIDs(ti, s.Where)
	if err != nil {
		return Result{}, err
	}

	cols := make([]string, len(ti.Schema.Columns))
	for i, c := range ti.Schema.Columns {
		cols[i] = c.Name
	}

	rows := make([][]string, 0, len(rids))
	for _, rid := range rids {
		data, ok := ti.Heap.GetTuple(rid)
		if !ok {
			continue
		}
		row, err := record.DecodeRow(data)
		if err != nil {
			continue
		}
		rows = append(rows, formatRow(row))
	}
	return Result{Columns: cols, Rows: rows}, nil
}

func formatRow(row record.Row) []string {
	out := make([]string, len(row.Fields))
	for i, f := range row.Fields {
		if row.Null[i] {
			out[i] = "NULL"
			continue
		}
		switch f.Type {
		case record.TypeInt:
			out[i] = fmt.Sprintf("%d", f.I32)
		case record.TypeBigInt:
			out[i] = fmt.Sprintf("%d", f.I64)
		case record.TypeFloat:
			out[i] = fmt.Sprintf("%g", f.F64)
		case record.TypeBool:
			out[i] = fmt.Sprintf("%t", f.Bool)
		default:
			out[i] = f.Str
		}
	}
	return out
}

func (e *Engine) delete(s Delete) (Result, error) {
	db, err := e.currentDB()
	if err != nil {
		return Result{}, err
	}
	ti, ok := db.cat.GetTable(s.Table)
	if !ok {
		return Result{}, errs.New("engine.Delete", errs.NotFound)
	}

	db.lock.Lock()
	defer db.lock.Unlock()

	rids, err := e.matchingRIDs(ti, s.Where)
	if err != nil {
		return Result{}, err
	}

	for _, rid := range rids {
		data, ok := ti.Heap.GetTuple(rid)
		if !ok {
			continue
		}
		row, err := record.DecodeRow(data)
		if err == nil {
			for _, idx := range ti.Indexes {
				idx.Tree.Delete(indexKeyForRow(idx, row))
			}
		}
		ti.Heap.MarkDelete(rid)
		ti.Heap.ApplyDelete(rid)
		db.wal.AppendStub(txn.OpDelete, data)
	}
	return Result{Message: fmt.Sprintf("%d row(s) deleted", len(rids))}, nil
}

func (e *Engine) update(s Update) (Result, error) {
	db, err := e.currentDB()
	if err != nil {
		return Result{}, err
	}
	ti, ok := db.cat.GetTable(s.Table)
	if !ok {
		return Result{}, errs.New("engine.Update", errs.NotFound)
	}

	db.lock.Lock()
	defer db.lock.Unlock()

	rids, err := e.matchingRIDs(ti, s.Where)
	if err != nil {
		return Result{}, err
	}

	count := 0
	for _, rid := range rids {
		data, ok := ti.Heap.GetTuple(rid)
		if !ok {
			continue
		}
		row, err := record.DecodeRow(data)
		if err != nil {
			continue
		}

		for name, val := range s.Set {
			pos := ti.Schema.ColumnIndex(name)
			if pos < 0 {
				return Result{}, errs.New("engine.Update", errs.NotFound)
			}
			row.Fields[pos] = val
			row.Null[pos] = false
		}

		for _, idx := range ti.Indexes {
			oldRow, err := record.DecodeRow(data)
			if err != nil {
				continue
			}
			oldKey := indexKeyForRow(idx, oldRow)
			newKey := indexKeyForRow(idx, row)
			if string(oldKey) != string(newKey) {
				idx.Tree.Delete(oldKey)
				if err := idx.Tree.Insert(newKey, rid); err != nil {
					return Result{}, err
				}
			}
		}

		newData := row.Encode()
		newRID, ok, err := ti.Heap.Update(rid, newData)
		if err != nil {
			return Result{}, err
		}
		if ok && newRID != rid {
			for _, idx := range ti.Indexes {
				key := indexKeyForRow(idx, row)
				idx.Tree.Delete(key)
				idx.Tree.Insert(key, newRID)
			}
		}
		db.wal.AppendStub(txn.OpUpdate, newData)
		count++
	}
	return Result{Message: fmt.Sprintf("%d row(s) updated", count)}, nil
}
