// Package catalog owns the catalog meta page and lazily materializes
// table and index metadata into live TableInfo/IndexInfo objects
// backed by table heaps and B+-trees. Its composite id->metadata-page
// bookkeeping is adapted from the teacher's pkg/metadata/store.go
// prefix-indexed pattern, simplified to the two flat maps spec.md
// requires (see DESIGN.md).
package catalog

import (
	"sort"
	"sync"

	"github.com/JerryiaL/minisql/internal/metrics"
	"github.com/JerryiaL/minisql/pkg/btree"
	"github.com/JerryiaL/minisql/pkg/buffer"
	"github.com/JerryiaL/minisql/pkg/disk"
	"github.com/JerryiaL/minisql/pkg/errs"
	"github.com/JerryiaL/minisql/pkg/page"
	"github.com/JerryiaL/minisql/pkg/record"
	"github.com/JerryiaL/minisql/pkg/table"
)

// TableInfo is the live, in-memory representation of a table.
type TableInfo struct {
	ID         uint32
	Name       string
	Schema     record.Schema
	Heap       *table.Heap
	MetaPageID page.ID
	Indexes    []*IndexInfo
}

// IndexInfo is the live, in-memory representation of an index.
type IndexInfo struct {
	ID         uint32
	Name       string
	TableID    uint32
	Columns    []uint32
	KeySize    int
	Tree       *btree.BPlusTree
	MetaPageID page.ID
}

// Catalog owns the catalog meta page (the index-id <-> page-id, and
// table-id <-> page-id, maps) and the live objects rehydrated from it.
type Catalog struct {
	mu      sync.RWMutex
	bp      *buffer.Manager
	metrics *metrics.Metrics

	nextTableID uint32
	nextIndexID uint32

	tablesByID   map[uint32]*TableInfo
	tablesByName map[string]*TableInfo
	indexesByID  map[uint32]*IndexInfo
}

// Open rehydrates the catalog from its meta page (catalog meta is
// always at the fixed disk.CatalogMetaPageID).
func Open(bp *buffer.Manager, m *metrics.Metrics) (*Catalog, error) {
	c := &Catalog{
		bp:           bp,
		metrics:      m,
		tablesByID:   make(map[uint32]*TableInfo),
		tablesByName: make(map[string]*TableInfo),
		indexesByID:  make(map[uint32]*IndexInfo),
	}

	pg := bp.Fetch(disk.CatalogMetaPageID)
	if pg == nil {
		return nil, errs.New("catalog.Open", errs.IoError)
	}
	defer bp.Unpin(disk.CatalogMetaPageID, false)

	tables, indexes, err := page.DeserializeCatalogMeta(pg.Data())
	if err != nil {
		// A brand-new database file has an all-zero catalog meta page;
		// treat that as "no tables yet" rather than corruption.
		if errs.Is(err, errs.CorruptMetadata) {
			tables = map[uint32]page.ID{}
			indexes = map[uint32]page.ID{}
		} else {
			return nil, err
		}
	}

	for tableID, metaPage := range tables {
		ti, err := c.loadTable(tableID, metaPage)
		if err != nil {
			return nil, err
		}
		c.tablesByID[tableID] = ti
		c.tablesByName[ti.Name] = ti
		if tableID >= c.nextTableID {
			c.nextTableID = tableID + 1
		}
	}

	for indexID, metaPage := range indexes {
		ii, err := c.loadIndex(indexID, metaPage)
		if err != nil {
			return nil, err
		}
		c.indexesByID[indexID] = ii
		if ti, ok := c.tablesByID[ii.TableID]; ok {
			ti.Indexes = append(ti.Indexes, ii)
		}
		if indexID >= c.nextIndexID {
			c.nextIndexID = indexID + 1
		}
	}

	return c, nil
}

func (c *Catalog) loadTable(id uint32, metaPage page.ID) (*TableInfo, error) {
	pg := c.bp.Fetch(metaPage)
	if pg == nil {
		return nil, errs.New("catalog.loadTable", errs.IoError)
	}
	defer c.bp.Unpin(metaPage, false)

	tm, err := decodeTableMetadata(pg.Data())
	if err != nil {
		return nil, err
	}
	return &TableInfo{
		ID:         tm.ID,
		Name:       tm.Name,
		Schema:     tm.Schema,
		Heap:       table.Open(c.bp, tm.FirstPageID),
		MetaPageID: metaPage,
	}, nil
}

func (c *Catalog) loadIndex(id uint32, metaPage page.ID) (*IndexInfo, error) {
	pg := c.bp.Fetch(metaPage)
	if pg == nil {
		return nil, errs.New("catalog.loadIndex", errs.IoError)
	}
	defer c.bp.Unpin(metaPage, false)

	im, err := decodeIndexMetadata(pg.Data())
	if err != nil {
		return nil, err
	}
	tree, err := btree.New(c.bp, im.ID, im.KeySize, btreeComparator, c.metrics)
	if err != nil {
		return nil, err
	}
	return &IndexInfo{
		ID:         im.ID,
		Name:       im.Name,
		TableID:    im.TableID,
		Columns:    im.Columns,
		KeySize:    im.KeySize,
		Tree:       tree,
		MetaPageID: metaPage,
	}, nil
}

// btreeComparator orders fixed-width composite index keys
// byte-lexicographically; record.EncodeIndexKey produces keys in the
// order that makes byte comparison match column order.
func btreeComparator(a, b []byte) int {
	for i := range a {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

func (c *Catalog) flushMeta() error {
	tables := make(map[uint32]page.ID, len(c.tablesByID))
	for id, ti := range c.tablesByID {
		tables[id] = ti.MetaPageID
	}
	indexes := make(map[uint32]page.ID, len(c.indexesByID))
	for id, ii := range c.indexesByID {
		indexes[id] = ii.MetaPageID
	}

	data, err := page.SerializeCatalogMeta(tables, indexes)
	if err != nil {
		return err
	}
	pg := c.bp.Fetch(disk.CatalogMetaPageID)
	if pg == nil {
		return errs.New("catalog.flushMeta", errs.IoError)
	}
	copy(pg.Data(), data)
	c.bp.Unpin(disk.CatalogMetaPageID, true)
	c.bp.Flush(disk.CatalogMetaPageID)
	return nil
}

// CreateTable allocates a table-id, a heap and a metadata page for a
// new table. Fails with AlreadyExists if name is taken.
func (c *Catalog) CreateTable(name string, schema record.Schema) (*TableInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.tablesByName[name]; ok {
		c.recordOp("create_table", false)
		return nil, errs.New("catalog.CreateTable", errs.AlreadyExists)
	}

	heap, err := table.New(c.bp)
	if err != nil {
		c.recordOp("create_table", false)
		return nil, err
	}

	metaPageID, metaPg, err := c.bp.NewPage()
	if err != nil {
		c.recordOp("create_table", false)
		return nil, err
	}

	id := c.nextTableID
	c.nextTableID++

	tm := tableMetadata{ID: id, Name: name, FirstPageID: heap.FirstPageID, Schema: schema}
	copy(metaPg.Data(), tm.encode())
	c.bp.Unpin(metaPageID, true)

	ti := &TableInfo{ID: id, Name: name, Schema: schema, Heap: heap, MetaPageID: metaPageID}
	c.tablesByID[id] = ti
	c.tablesByName[name] = ti

	if err := c.flushMeta(); err != nil {
		c.recordOp("create_table", false)
		return nil, err
	}
	c.recordOp("create_table", true)
	return ti, nil
}

// DropTable cascades through the table's indexes, then removes the
// table's metadata and catalog entry. The heap's pages are not
// explicitly freed, matching the original engine's compatibility
// choice (see DESIGN.md and spec.md §9).
func (c *Catalog) DropTable(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	ti, ok := c.tablesByName[name]
	if !ok {
		c.recordOp("drop_table", false)
		return errs.New("catalog.DropTable", errs.NotFound)
	}

	for _, ii := range ti.Indexes {
		if err := ii.Tree.Destroy(); err != nil {
			return err
		}
		c.bp.Delete(ii.MetaPageID)
		delete(c.indexesByID, ii.ID)
	}

	c.bp.Delete(ti.MetaPageID)
	delete(c.tablesByID, ti.ID)
	delete(c.tablesByName, name)

	if err := c.flushMeta(); err != nil {
		c.recordOp("drop_table", false)
		return err
	}
	c.recordOp("drop_table", true)
	return nil
}

// CreateIndex validates columns against table's schema, computes the
// key width, creates the B+-tree and persists index metadata.
func (c *Catalog) CreateIndex(tableName, indexName string, columnNames []string) (*IndexInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ti, ok := c.tablesByName[tableName]
	if !ok {
		c.recordOp("create_index", false)
		return nil, errs.New("catalog.CreateIndex", errs.NotFound)
	}
	for _, ii := range ti.Indexes {
		if ii.Name == indexName {
			c.recordOp("create_index", false)
			return nil, errs.New("catalog.CreateIndex", errs.AlreadyExists)
		}
	}

	columns := make([]uint32, 0, len(columnNames))
	for _, name := range columnNames {
		pos := ti.Schema.ColumnIndex(name)
		if pos < 0 {
			c.recordOp("create_index", false)
			return nil, errs.New("catalog.CreateIndex", errs.NotFound)
		}
		columns = append(columns, uint32(pos))
	}

	keySize := chooseKeySize(ti.Schema, columns)
	id := c.nextIndexID
	c.nextIndexID++

	tree, err := btree.New(c.bp, id, keySize, btreeComparator, c.metrics)
	if err != nil {
		c.recordOp("create_index", false)
		return nil, err
	}

	metaPageID, metaPg, err := c.bp.NewPage()
	if err != nil {
		c.recordOp("create_index", false)
		return nil, err
	}
	im := indexMetadata{ID: id, TableID: ti.ID, Name: indexName, KeySize: keySize, Columns: columns}
	copy(metaPg.Data(), im.encode())
	c.bp.Unpin(metaPageID, true)

	ii := &IndexInfo{ID: id, Name: indexName, TableID: ti.ID, Columns: columns, KeySize: keySize, Tree: tree, MetaPageID: metaPageID}
	c.indexesByID[id] = ii
	ti.Indexes = append(ti.Indexes, ii)

	if err := c.flushMeta(); err != nil {
		c.recordOp("create_index", false)
		return nil, err
	}
	c.recordOp("create_index", true)
	return ii, nil
}

// DropIndex mirrors CreateIndex.
func (c *Catalog) DropIndex(tableName, indexName string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	ti, ok := c.tablesByName[tableName]
	if !ok {
		c.recordOp("drop_index", false)
		return errs.New("catalog.DropIndex", errs.NotFound)
	}

	for i, ii := range ti.Indexes {
		if ii.Name != indexName {
			continue
		}
		if err := ii.Tree.Destroy(); err != nil {
			return err
		}
		c.bp.Delete(ii.MetaPageID)
		delete(c.indexesByID, ii.ID)
		ti.Indexes = append(ti.Indexes[:i], ti.Indexes[i+1:]...)

		if err := c.flushMeta(); err != nil {
			c.recordOp("drop_index", false)
			return err
		}
		c.recordOp("drop_index", true)
		return nil
	}
	c.recordOp("drop_index", false)
	return errs.New("catalog.DropIndex", errs.NotFound)
}

func (c *Catalog) recordOp(op string, ok bool) {
	if c.metrics == nil {
		return
	}
	status := "error"
	if ok {
		status = "ok"
	}
	c.metrics.RecordCatalogOperation(op, status)
}

// GetTable looks up a table by name.
func (c *Catalog) GetTable(name string) (*TableInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ti, ok := c.tablesByName[name]
	return ti, ok
}

// GetTables returns every table, sorted by name.
func (c *Catalog) GetTables() []*TableInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*TableInfo, 0, len(c.tablesByName))
	for _, ti := range c.tablesByName {
		out = append(out, ti)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// GetIndex looks up an index by (table, index) name.
func (c *Catalog) GetIndex(tableName, indexName string) (*IndexInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ti, ok := c.tablesByName[tableName]
	if !ok {
		return nil, false
	}
	for _, ii := range ti.Indexes {
		if ii.Name == indexName {
			return ii, true
		}
	}
	return nil, false
}

// GetTableIndexes returns every index owned by tableName. It returns
// errs.NotFound if tableName doesn't exist, distinguishing that from
// a table that exists but owns zero indexes (spec.md §8).
func (c *Catalog) GetTableIndexes(tableName string) ([]*IndexInfo, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ti, ok := c.tablesByName[tableName]
	if !ok {
		return nil, errs.New("catalog.GetTableIndexes", errs.NotFound)
	}
	return append([]*IndexInfo(nil), ti.Indexes...), nil
}
