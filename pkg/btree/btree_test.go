package btree

import (
	"bytes"
	"encoding/binary"
	"path/filepath"
	"testing"

	"github.com/JerryiaL/minisql/pkg/buffer"
	"github.com/JerryiaL/minisql/pkg/disk"
	"github.com/JerryiaL/minisql/pkg/page"
)

func newTestTree(t *testing.T, poolSize int) *BPlusTree {
	t.Helper()
	dm, err := disk.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("disk.Open: %v", err)
	}
	t.Cleanup(func() { dm.Close() })

	bp := buffer.NewManager(dm, poolSize, nil)
	tree, err := New(bp, 1, 4, cmp4, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return tree
}

func TestBTreeInsertAndGetValue(t *testing.T) {
	tree := newTestTree(t, 16)

	for i := uint32(0); i < 50; i++ {
		rid := page.RID{PageID: page.ID(i), Slot: i}
		if err := tree.Insert(key4(i), rid); err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
	}

	for i := uint32(0); i < 50; i++ {
		rid, ok, err := tree.GetValue(key4(i))
		if err != nil || !ok {
			t.Fatalf("GetValue(%d): rid=%v ok=%v err=%v", i, rid, ok, err)
		}
		if rid.Slot != i {
			t.Fatalf("GetValue(%d).Slot = %d, want %d", i, rid.Slot, i)
		}
	}

	if _, ok, _ := tree.GetValue(key4(9999)); ok {
		t.Fatalf("GetValue(9999) unexpectedly found")
	}
}

func TestBTreeRejectsDuplicateKey(t *testing.T) {
	tree := newTestTree(t, 16)
	rid := page.RID{PageID: 1, Slot: 0}
	if err := tree.Insert(key4(1), rid); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := tree.Insert(key4(1), rid); err == nil {
		t.Fatalf("expected duplicate-key insert to fail")
	}
}

func TestBTreeGrowsAndShrinksAcrossSplitsAndMerges(t *testing.T) {
	tree := newTestTree(t, 8)
	tree.maxLeaf, tree.maxInternal = 4, 4

	const n = 300
	for i := uint32(0); i < n; i++ {
		if err := tree.Insert(key4(i), page.RID{PageID: page.ID(i), Slot: i}); err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
	}
	for i := uint32(0); i < n; i++ {
		if _, ok, _ := tree.GetValue(key4(i)); !ok {
			t.Fatalf("GetValue(%d) missing after bulk insert", i)
		}
	}

	// Delete every other key to force coalesce/redistribute paths.
	for i := uint32(0); i < n; i += 2 {
		if err := tree.Delete(key4(i)); err != nil {
			t.Fatalf("Delete(%d): %v", i, err)
		}
	}
	for i := uint32(0); i < n; i++ {
		_, ok, _ := tree.GetValue(key4(i))
		wantOK := i%2 == 1
		if ok != wantOK {
			t.Fatalf("GetValue(%d) ok=%v, want %v", i, ok, wantOK)
		}
	}

	// Delete the rest; the tree should end up empty with an invalid root.
	for i := uint32(1); i < n; i += 2 {
		if err := tree.Delete(key4(i)); err != nil {
			t.Fatalf("Delete(%d): %v", i, err)
		}
	}
	if tree.root().IsValid() {
		t.Fatalf("expected empty tree to have an invalid root")
	}
}

func TestBTreeDeleteMissingKeyFails(t *testing.T) {
	tree := newTestTree(t, 8)
	if err := tree.Insert(key4(1), page.RID{PageID: 1}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := tree.Delete(key4(2)); err == nil {
		t.Fatalf("expected Delete of absent key to fail")
	}
}

func TestBTreeOrderedKeysAfterSplits(t *testing.T) {
	tree := newTestTree(t, 8)
	tree.maxLeaf, tree.maxInternal = 4, 4

	keys := []uint32{50, 10, 40, 20, 30, 5, 45, 25, 15, 35}
	for _, k := range keys {
		if err := tree.Insert(key4(k), page.RID{PageID: page.ID(k)}); err != nil {
			t.Fatalf("Insert(%d): %v", k, err)
		}
	}

	it := tree.Begin()
	defer it.Close()

	var prev uint32
	first := true
	count := 0
	for !it.End() {
		k := binary.LittleEndian.Uint32(it.Key())
		if !first && bytes.Compare(key4(prev), key4(k)) >= 0 {
			t.Fatalf("keys out of order: %d then %d", prev, k)
		}
		prev = k
		first = false
		count++
		it.Next()
	}
	if count != len(keys) {
		t.Fatalf("iterated %d keys, want %d", count, len(keys))
	}
}
