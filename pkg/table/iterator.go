package table

import "github.com/JerryiaL/minisql/pkg/page"

// Iterator yields a heap's rows in page order, slot order. It holds no
// page latch between steps: each advance fetches the current page (or
// the next, once the current is exhausted) through the buffer pool and
// unpins promptly.
type Iterator struct {
	heap *Heap
	cur  page.ID
	slot uint32
	ok   bool
}

// Begin returns an iterator positioned at the heap's first live tuple.
func (h *Heap) Begin() *Iterator {
	it := &Iterator{heap: h, cur: h.FirstPageID}
	it.advanceToLive(0)
	return it
}

// advanceToLive scans forward from (it.cur, from) for the next live
// slot, skipping empty pages (including pages with zero tuples) by
// following next_page_id.
func (it *Iterator) advanceToLive(from uint32) {
	cur := it.cur
	for cur.IsValid() {
		pg := it.heap.bp.Fetch(cur)
		if pg == nil {
			it.ok = false
			return
		}
		sp := page.SlottedPage(pg.Data())
		if slot, found := sp.NextSlotFrom(from); found {
			it.heap.bp.Unpin(cur, false)
			it.cur = cur
			it.slot = slot
			it.ok = true
			return
		}
		next := sp.NextPageID()
		it.heap.bp.Unpin(cur, false)
		cur = next
		from = 0
	}
	it.cur = page.Invalid
	it.ok = false
}

// End reports whether the iterator has exhausted the heap.
func (it *Iterator) End() bool { return !it.ok }

// RID returns the current row's row-id. Only valid when !End().
func (it *Iterator) RID() page.RID { return page.RID{PageID: it.cur, Slot: it.slot} }

// Row returns the current row's raw bytes. Only valid when !End().
func (it *Iterator) Row() ([]byte, bool) {
	if it.End() {
		return nil, false
	}
	return it.heap.GetTuple(it.RID())
}

// Next advances to the next live tuple.
func (it *Iterator) Next() {
	if it.End() {
		return
	}
	it.advanceToLive(it.slot + 1)
}
