// Package table implements the table heap: a singly linked list of
// slotted pages holding one table's rows, plus a forward iterator.
// Page-chain traversal and retry-on-each-page insertion follow the
// teacher's general linked-page-chain idiom (see DESIGN.md).
package table

import (
	"github.com/JerryiaL/minisql/pkg/buffer"
	"github.com/JerryiaL/minisql/pkg/errs"
	"github.com/JerryiaL/minisql/pkg/page"
)

// Heap is a table's storage: a chain of slotted pages starting at
// FirstPageID.
type Heap struct {
	bp          *buffer.Manager
	FirstPageID page.ID
}

// New allocates the heap's first (empty) page.
func New(bp *buffer.Manager) (*Heap, error) {
	pid, pg, err := bp.NewPage()
	if err != nil {
		return nil, err
	}
	page.SlottedPage(pg.Data()).Init()
	bp.Unpin(pid, true)
	return &Heap{bp: bp, FirstPageID: pid}, nil
}

// Open wraps an existing heap whose first page is already firstPageID.
func Open(bp *buffer.Manager, firstPageID page.ID) *Heap {
	return &Heap{bp: bp, FirstPageID: firstPageID}
}

// Insert walks the page chain from the head, trying each page in
// turn; if none has room, a new page is allocated and stitched on as
// the new tail.
func (h *Heap) Insert(data []byte) (page.RID, error) {
	cur := h.FirstPageID
	var prev page.ID = page.Invalid

	for cur.IsValid() {
		pg := h.bp.Fetch(cur)
		if pg == nil {
			return page.InvalidRID, errs.New("table.Insert", errs.OutOfMemory)
		}
		sp := page.SlottedPage(pg.Data())

		if slot, ok := sp.InsertTuple(data); ok {
			h.bp.Unpin(cur, true)
			return page.RID{PageID: cur, Slot: slot}, nil
		}

		next := sp.NextPageID()
		h.bp.Unpin(cur, false)
		prev = cur
		cur = next
	}

	newID, newPg, err := h.bp.NewPage()
	if err != nil {
		return page.InvalidRID, err
	}
	newSP := page.SlottedPage(newPg.Data())
	newSP.Init()
	slot, ok := newSP.InsertTuple(data)
	if !ok {
		h.bp.Unpin(newID, true)
		return page.InvalidRID, errs.New("table.Insert", errs.Unsupported)
	}

	if prev.IsValid() {
		prevPg := h.bp.Fetch(prev)
		page.SlottedPage(prevPg.Data()).SetNextPageID(newID)
		newSP.SetPrevPageID(prev)
		h.bp.Unpin(prev, true)
	} else {
		h.FirstPageID = newID
	}
	h.bp.Unpin(newID, true)

	return page.RID{PageID: newID, Slot: slot}, nil
}

// GetTuple returns the bytes stored at rid.
func (h *Heap) GetTuple(rid page.RID) ([]byte, bool) {
	pg := h.bp.Fetch(rid.PageID)
	if pg == nil {
		return nil, false
	}
	defer h.bp.Unpin(rid.PageID, false)
	return page.SlottedPage(pg.Data()).GetTuple(rid.Slot)
}

// Update overwrites rid's tuple. On too-much-data, it deletes the old
// tuple and re-inserts from the head, returning the new row-id — the
// caller must update any index entries pointing at the old rid.
func (h *Heap) Update(rid page.RID, data []byte) (page.RID, bool, error) {
	pg := h.bp.Fetch(rid.PageID)
	if pg == nil {
		return page.InvalidRID, false, errs.New("table.Update", errs.OutOfMemory)
	}
	sp := page.SlottedPage(pg.Data())

	switch sp.Update(rid.Slot, data) {
	case page.UpdateCompleted:
		h.bp.Unpin(rid.PageID, true)
		return rid, true, nil
	case page.UpdateNotFound:
		h.bp.Unpin(rid.PageID, false)
		return page.InvalidRID, false, nil
	default: // UpdateTooMuchData
		sp.ApplyDelete(rid.Slot)
		h.bp.Unpin(rid.PageID, true)
		newRID, err := h.Insert(data)
		if err != nil {
			return page.InvalidRID, false, err
		}
		return newRID, true, nil
	}
}

// MarkDelete tombstones rid's tuple, reversible via RollbackDelete.
func (h *Heap) MarkDelete(rid page.RID) bool {
	pg := h.bp.Fetch(rid.PageID)
	if pg == nil {
		return false
	}
	defer h.bp.Unpin(rid.PageID, true)
	return page.SlottedPage(pg.Data()).MarkDelete(rid.Slot)
}

// RollbackDelete undoes a MarkDelete.
func (h *Heap) RollbackDelete(rid page.RID) bool {
	pg := h.bp.Fetch(rid.PageID)
	if pg == nil {
		return false
	}
	defer h.bp.Unpin(rid.PageID, true)
	return page.SlottedPage(pg.Data()).RollbackDelete(rid.Slot)
}

// ApplyDelete compacts rid's tombstoned slot out of its page,
// permanently invalidating rid.
func (h *Heap) ApplyDelete(rid page.RID) bool {
	pg := h.bp.Fetch(rid.PageID)
	if pg == nil {
		return false
	}
	defer h.bp.Unpin(rid.PageID, true)
	return page.SlottedPage(pg.Data()).ApplyDelete(rid.Slot)
}
