package table

import (
	"bytes"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/JerryiaL/minisql/pkg/buffer"
	"github.com/JerryiaL/minisql/pkg/disk"
)

func newTestHeap(t *testing.T, poolSize int) *Heap {
	t.Helper()
	dm, err := disk.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("disk.Open: %v", err)
	}
	t.Cleanup(func() { dm.Close() })

	bp := buffer.NewManager(dm, poolSize, nil)
	h, err := New(bp)
	if err != nil {
		t.Fatalf("table.New: %v", err)
	}
	return h
}

func TestHeapInsertAndGetTuple(t *testing.T) {
	h := newTestHeap(t, 8)

	rid, err := h.Insert([]byte("hello"))
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	got, ok := h.GetTuple(rid)
	if !ok || !bytes.Equal(got, []byte("hello")) {
		t.Fatalf("GetTuple = %q, %v, want hello, true", got, ok)
	}
}

func TestHeapInsertSpansMultiplePages(t *testing.T) {
	h := newTestHeap(t, 4)

	const n = 400
	val := bytes.Repeat([]byte("x"), 32)

	inserted := make(map[string]string, n)
	for i := 0; i < n; i++ {
		data := append(append([]byte(nil), val...), byte(i), byte(i>>8))
		rid, err := h.Insert(data)
		if err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
		inserted[fmt.Sprintf("%d:%d", rid.PageID, rid.Slot)] = string(data)
	}

	count := 0
	for it := h.Begin(); !it.End(); it.Next() {
		row, ok := it.Row()
		if !ok {
			t.Fatalf("iterator Row() failed at count %d", count)
		}
		key := fmt.Sprintf("%d:%d", it.RID().PageID, it.RID().Slot)
		want, ok := inserted[key]
		if !ok || want != string(row) {
			t.Fatalf("row mismatch at %s", key)
		}
		count++
	}
	if count != n {
		t.Fatalf("iterated %d rows, want %d", count, n)
	}
}

func TestHeapUpdateInPlace(t *testing.T) {
	h := newTestHeap(t, 8)
	rid, err := h.Insert([]byte("short"))
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	newRID, ok, err := h.Update(rid, []byte("shor"))
	if err != nil || !ok {
		t.Fatalf("Update: ok=%v err=%v", ok, err)
	}
	if newRID != rid {
		t.Fatalf("in-place update changed rid: %+v vs %+v", newRID, rid)
	}
	got, _ := h.GetTuple(rid)
	if string(got) != "shor" {
		t.Fatalf("GetTuple after update = %q, want shor", got)
	}
}

func TestHeapUpdateTooMuchDataMovesRow(t *testing.T) {
	h := newTestHeap(t, 8)
	rid, err := h.Insert([]byte("x"))
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	bigger := bytes.Repeat([]byte("y"), 64)
	newRID, ok, err := h.Update(rid, bigger)
	if err != nil || !ok {
		t.Fatalf("Update: ok=%v err=%v", ok, err)
	}
	if newRID == rid {
		t.Fatalf("expected row-id to change on too-much-data update")
	}
	if _, ok := h.GetTuple(rid); ok {
		t.Fatalf("old rid still readable after move")
	}
	got, ok := h.GetTuple(newRID)
	if !ok || !bytes.Equal(got, bigger) {
		t.Fatalf("GetTuple(newRID) = %q, %v", got, ok)
	}
}

func TestHeapMarkAndApplyDelete(t *testing.T) {
	h := newTestHeap(t, 8)
	rid, err := h.Insert([]byte("gone"))
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}

	if !h.MarkDelete(rid) {
		t.Fatalf("MarkDelete failed")
	}
	if _, ok := h.GetTuple(rid); ok {
		t.Fatalf("tombstoned tuple still readable")
	}
	if !h.RollbackDelete(rid) {
		t.Fatalf("RollbackDelete failed")
	}
	if _, ok := h.GetTuple(rid); !ok {
		t.Fatalf("rolled-back tuple should be readable again")
	}

	if !h.MarkDelete(rid) || !h.ApplyDelete(rid) {
		t.Fatalf("mark+apply delete failed")
	}
	if _, ok := h.GetTuple(rid); ok {
		t.Fatalf("applied-delete tuple still readable")
	}
}

func TestHeapIteratorSkipsDeletedRows(t *testing.T) {
	h := newTestHeap(t, 8)

	r1, _ := h.Insert([]byte("keep1"))
	r2, _ := h.Insert([]byte("drop"))
	r3, _ := h.Insert([]byte("keep2"))

	h.MarkDelete(r2)
	h.ApplyDelete(r2)

	var seen []string
	for it := h.Begin(); !it.End(); it.Next() {
		row, _ := it.Row()
		seen = append(seen, string(row))
	}
	if len(seen) != 2 || seen[0] != "keep1" || seen[1] != "keep2" {
		t.Fatalf("seen = %v, want [keep1 keep2]", seen)
	}
	_ = r1
	_ = r3
}
