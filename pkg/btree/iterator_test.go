package btree

import (
	"encoding/binary"
	"testing"

	"github.com/JerryiaL/minisql/pkg/page"
)

func TestIteratorBeginAtSeeksForward(t *testing.T) {
	tree := newTestTree(t, 8)
	for i := uint32(0); i < 40; i += 2 {
		if err := tree.Insert(key4(i), page.RID{PageID: page.ID(i)}); err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
	}

	it := tree.BeginAt(key4(15))
	defer it.Close()
	if it.End() {
		t.Fatalf("expected a match at or after 15")
	}
	got := binary.LittleEndian.Uint32(it.Key())
	if got != 16 {
		t.Fatalf("BeginAt(15) landed on %d, want 16", got)
	}
}

func TestIteratorBeginAtPastEndIsEmpty(t *testing.T) {
	tree := newTestTree(t, 8)
	for i := uint32(0); i < 10; i++ {
		if err := tree.Insert(key4(i), page.RID{PageID: page.ID(i)}); err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
	}
	it := tree.BeginAt(key4(999))
	if !it.End() {
		t.Fatalf("expected BeginAt past the max key to be End()")
	}
}

func TestIteratorEmptyTree(t *testing.T) {
	tree := newTestTree(t, 8)
	it := tree.Begin()
	if !it.End() {
		t.Fatalf("expected Begin() on empty tree to be End()")
	}
}

func TestIteratorCrossesLeafBoundary(t *testing.T) {
	tree := newTestTree(t, 8)
	tree.maxLeaf, tree.maxInternal = 4, 4
	const n = 200
	for i := uint32(0); i < n; i++ {
		if err := tree.Insert(key4(i), page.RID{PageID: page.ID(i)}); err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
	}

	it := tree.Begin()
	defer it.Close()
	count := uint32(0)
	for !it.End() {
		if binary.LittleEndian.Uint32(it.Key()) != count {
			t.Fatalf("at position %d, key = %d", count, binary.LittleEndian.Uint32(it.Key()))
		}
		count++
		it.Next()
	}
	if count != n {
		t.Fatalf("iterated %d entries, want %d", count, n)
	}
}
