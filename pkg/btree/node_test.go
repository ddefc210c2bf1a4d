package btree

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/JerryiaL/minisql/pkg/page"
)

func key4(n uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, n)
	return b
}

func cmp4(a, b []byte) int { return bytes.Compare(a, b) }

func TestNodeInitAndHeader(t *testing.T) {
	n := make(Node, page.Size)
	max := MaxEntries(true, 4)
	n.Init(TypeLeaf, 4, max, 5, page.Invalid)

	if !n.IsLeaf() {
		t.Fatalf("expected leaf node")
	}
	if n.KeySize() != 4 {
		t.Fatalf("KeySize() = %d, want 4", n.KeySize())
	}
	if n.SelfPageID() != 5 {
		t.Fatalf("SelfPageID() = %d, want 5", n.SelfPageID())
	}
	if n.Size() != 0 {
		t.Fatalf("new node Size() = %d, want 0", n.Size())
	}
	if n.NextPageID() != page.Invalid {
		t.Fatalf("new leaf NextPageID() = %v, want Invalid", n.NextPageID())
	}
}

func TestNodeLeafInsertAndLookup(t *testing.T) {
	n := make(Node, page.Size)
	n.Init(TypeLeaf, 4, MaxEntries(true, 4), 0, page.Invalid)

	n.InsertLeafAt(0, key4(10), page.RID{PageID: 1, Slot: 0})
	n.InsertLeafAt(1, key4(20), page.RID{PageID: 1, Slot: 1})
	n.InsertLeafAt(1, key4(15), page.RID{PageID: 1, Slot: 2})

	if n.Size() != 3 {
		t.Fatalf("Size() = %d, want 3", n.Size())
	}
	want := []uint32{10, 15, 20}
	for i, w := range want {
		got := binary.LittleEndian.Uint32(n.KeyAt(uint16(i)))
		if got != w {
			t.Fatalf("KeyAt(%d) = %d, want %d", i, got, w)
		}
	}

	idx := n.LookupGE(key4(15), cmp4)
	if idx != 1 {
		t.Fatalf("LookupGE(15) = %d, want 1", idx)
	}
	if n.ValueAt(idx).Slot != 2 {
		t.Fatalf("ValueAt(1).Slot = %d, want 2", n.ValueAt(idx).Slot)
	}
}

func TestNodeRemoveAt(t *testing.T) {
	n := make(Node, page.Size)
	n.Init(TypeLeaf, 4, MaxEntries(true, 4), 0, page.Invalid)
	n.InsertLeafAt(0, key4(1), page.RID{PageID: 1, Slot: 0})
	n.InsertLeafAt(1, key4(2), page.RID{PageID: 1, Slot: 1})
	n.InsertLeafAt(2, key4(3), page.RID{PageID: 1, Slot: 2})

	n.RemoveAt(1)
	if n.Size() != 2 {
		t.Fatalf("Size() after remove = %d, want 2", n.Size())
	}
	if binary.LittleEndian.Uint32(n.KeyAt(1)) != 3 {
		t.Fatalf("KeyAt(1) after remove = %d, want 3", binary.LittleEndian.Uint32(n.KeyAt(1)))
	}
}

func TestNodeMoveHalfTo(t *testing.T) {
	n := make(Node, page.Size)
	max := MaxEntries(true, 4)
	n.Init(TypeLeaf, 4, max, 0, page.Invalid)
	for i := uint16(0); i < 5; i++ {
		n.InsertLeafAt(i, key4(uint32(i)), page.RID{PageID: 1, Slot: uint32(i)})
	}

	sibling := make(Node, page.Size)
	sibling.Init(TypeLeaf, 4, max, 1, page.Invalid)

	n.MoveHalfTo(sibling)

	// mid = ceil(5/2) = 3 stay, 2 move.
	if n.Size() != 3 {
		t.Fatalf("n.Size() after split = %d, want 3", n.Size())
	}
	if sibling.Size() != 2 {
		t.Fatalf("sibling.Size() after split = %d, want 2", sibling.Size())
	}
	if binary.LittleEndian.Uint32(sibling.KeyAt(0)) != 3 {
		t.Fatalf("sibling.KeyAt(0) = %d, want 3", binary.LittleEndian.Uint32(sibling.KeyAt(0)))
	}
}

func TestNodeMoveFirstAndLastTo(t *testing.T) {
	max := MaxEntries(true, 4)

	left := make(Node, page.Size)
	left.Init(TypeLeaf, 4, max, 0, page.Invalid)
	left.InsertLeafAt(0, key4(1), page.RID{PageID: 1, Slot: 1})
	left.InsertLeafAt(1, key4(2), page.RID{PageID: 1, Slot: 2})

	right := make(Node, page.Size)
	right.Init(TypeLeaf, 4, max, 1, page.Invalid)
	right.InsertLeafAt(0, key4(3), page.RID{PageID: 1, Slot: 3})
	right.InsertLeafAt(1, key4(4), page.RID{PageID: 1, Slot: 4})

	right.MoveFirstTo(left)
	if left.Size() != 3 || right.Size() != 1 {
		t.Fatalf("after MoveFirstTo: left=%d right=%d", left.Size(), right.Size())
	}
	if binary.LittleEndian.Uint32(left.KeyAt(2)) != 3 {
		t.Fatalf("left.KeyAt(2) = %d, want 3", binary.LittleEndian.Uint32(left.KeyAt(2)))
	}

	left.MoveLastTo(right)
	if left.Size() != 2 || right.Size() != 2 {
		t.Fatalf("after MoveLastTo: left=%d right=%d", left.Size(), right.Size())
	}
	if binary.LittleEndian.Uint32(right.KeyAt(0)) != 3 {
		t.Fatalf("right.KeyAt(0) = %d, want 3", binary.LittleEndian.Uint32(right.KeyAt(0)))
	}
}
