// Package btree implements a persistent, crabbing-safe B+-tree over
// fixed-width keys and values, generalizing the teacher's pkg/btree
// (variable-length copy-on-write BNode) to the buffer-pool-backed,
// parent-pointer node shape this engine's disk format needs (see
// DESIGN.md). Node headers and entry layout keep the teacher's
// "byte slice as typed view, accessors via encoding/binary" idiom.
package btree

import (
	"encoding/binary"

	"github.com/JerryiaL/minisql/pkg/page"
)

const (
	TypeInternal uint16 = 1
	TypeLeaf     uint16 = 2
)

const (
	headerPageType   = 0  // uint16
	headerKeySize    = 2  // uint8
	headerLSN        = 4  // uint64, placeholder (see pkg/txn)
	headerSize16     = 12 // uint16 current entry count
	headerMaxSize    = 14 // uint16
	headerParent     = 16 // int32
	headerSelf       = 20 // int32
	headerNext       = 24 // int32, leaf only
	nodeHeaderLength = 28
)

// Node is a zero-copy view over one B+-tree page, either internal or
// leaf depending on PageType. Internal nodes store (key, child page-id)
// pairs where entry 0's key is a dummy (the leftmost child has no
// separator); leaves store (key, row-id) pairs plus a next-leaf link.
type Node []byte

// Comparator totally orders two fixed-width keys, returning <0, 0, >0
// the way bytes.Compare does.
type Comparator func(a, b []byte) int

func (n Node) PageType() uint16 { return binary.LittleEndian.Uint16(n[headerPageType:]) }
func (n Node) IsLeaf() bool     { return n.PageType() == TypeLeaf }

func (n Node) KeySize() int { return int(n[headerKeySize]) }

func (n Node) Size() uint16     { return binary.LittleEndian.Uint16(n[headerSize16:]) }
func (n Node) setSize(v uint16) { binary.LittleEndian.PutUint16(n[headerSize16:], v) }

func (n Node) MaxSize() uint16 { return binary.LittleEndian.Uint16(n[headerMaxSize:]) }

// MinSize is ceil(MaxSize/2), the fewest entries a non-root node may
// hold before it underflows.
func (n Node) MinSize() uint16 { return (n.MaxSize() + 1) / 2 }

func (n Node) ParentPageID() page.ID {
	return page.ID(int32(binary.LittleEndian.Uint32(n[headerParent:])))
}
func (n Node) SetParentPageID(id page.ID) {
	binary.LittleEndian.PutUint32(n[headerParent:], uint32(id))
}

func (n Node) SelfPageID() page.ID {
	return page.ID(int32(binary.LittleEndian.Uint32(n[headerSelf:])))
}
func (n Node) SetSelfPageID(id page.ID) {
	binary.LittleEndian.PutUint32(n[headerSelf:], uint32(id))
}

func (n Node) NextPageID() page.ID {
	return page.ID(int32(binary.LittleEndian.Uint32(n[headerNext:])))
}
func (n Node) SetNextPageID(id page.ID) {
	binary.LittleEndian.PutUint32(n[headerNext:], uint32(id))
}

// Init formats a freshly allocated page as an empty node of the given
// type, key width and capacity.
func (n Node) Init(pageType uint16, keySize int, maxSize uint16, self, parent page.ID) {
	binary.LittleEndian.PutUint16(n[headerPageType:], pageType)
	n[headerKeySize] = uint8(keySize)
	binary.LittleEndian.PutUint64(n[headerLSN:], 0)
	n.setSize(0)
	binary.LittleEndian.PutUint16(n[headerMaxSize:], maxSize)
	n.SetSelfPageID(self)
	n.SetParentPageID(parent)
	if pageType == TypeLeaf {
		n.SetNextPageID(page.Invalid)
	}
}

func (n Node) entrySize() int {
	if n.IsLeaf() {
		return n.KeySize() + page.RIDSize
	}
	return n.KeySize() + 4
}

func (n Node) entryOff(i uint16) int {
	return nodeHeaderLength + int(i)*n.entrySize()
}

// MaxEntries computes the node capacity for a given page size, key
// width and node kind; used when a tree is first created to size every
// node consistently.
func MaxEntries(isLeaf bool, keySize int) uint16 {
	entrySize := keySize + 4
	if isLeaf {
		entrySize = keySize + page.RIDSize
	}
	return uint16((page.Size - nodeHeaderLength) / entrySize)
}

// KeyAt returns the key stored at entry i. For internal nodes, index 0
// is the unused dummy key.
func (n Node) KeyAt(i uint16) []byte {
	off := n.entryOff(i)
	return n[off : off+n.KeySize()]
}

func (n Node) SetKeyAt(i uint16, key []byte) {
	off := n.entryOff(i)
	copy(n[off:off+n.KeySize()], key)
}

// ValueAt returns the row-id stored at entry i of a leaf node.
func (n Node) ValueAt(i uint16) page.RID {
	off := n.entryOff(i) + n.KeySize()
	return page.DecodeRID(n[off : off+page.RIDSize])
}

func (n Node) SetValueAt(i uint16, rid page.RID) {
	off := n.entryOff(i) + n.KeySize()
	rid.Encode(n[off : off+page.RIDSize])
}

// ChildAt returns the child page-id stored at entry i of an internal
// node.
func (n Node) ChildAt(i uint16) page.ID {
	off := n.entryOff(i) + n.KeySize()
	return page.ID(int32(binary.LittleEndian.Uint32(n[off:])))
}

func (n Node) SetChildAt(i uint16, child page.ID) {
	off := n.entryOff(i) + n.KeySize()
	binary.LittleEndian.PutUint32(n[off:], uint32(child))
}

// shift moves entries [from, size) by delta positions (delta may be
// negative), used by InsertAt/RemoveAt.
func (n Node) shift(from uint16, delta int) {
	size := n.Size()
	es := n.entrySize()
	if delta > 0 {
		for i := int(size) - 1; i >= int(from); i-- {
			src := n.entryOff(uint16(i))
			dst := n.entryOff(uint16(i + delta))
			copy(n[dst:dst+es], n[src:src+es])
		}
	} else if delta < 0 {
		for i := int(from); i < int(size); i++ {
			src := n.entryOff(uint16(i))
			dst := n.entryOff(uint16(i + delta))
			copy(n[dst:dst+es], n[src:src+es])
		}
	}
}

// InsertLeafAt inserts a (key, rid) pair at position i, shifting later
// entries right.
func (n Node) InsertLeafAt(i uint16, key []byte, rid page.RID) {
	n.shift(i, 1)
	n.SetKeyAt(i, key)
	n.SetValueAt(i, rid)
	n.setSize(n.Size() + 1)
}

// InsertInternalAt inserts a (key, child) pair at position i, shifting
// later entries right.
func (n Node) InsertInternalAt(i uint16, key []byte, child page.ID) {
	n.shift(i, 1)
	n.SetKeyAt(i, key)
	n.SetChildAt(i, child)
	n.setSize(n.Size() + 1)
}

// RemoveAt deletes entry i, shifting later entries left.
func (n Node) RemoveAt(i uint16) {
	n.shift(i+1, -1)
	n.setSize(n.Size() - 1)
}

// LookupLE returns the largest index whose key is <= search key, for
// internal nodes (index 0's dummy key always "matches", so the result
// is 0 when every real key is greater). Keys are compared from index 1
// on whatever the node type, so it is not meant for leaves.
func (n Node) LookupLE(key []byte, cmp Comparator) uint16 {
	size := n.Size()
	found := uint16(0)
	for i := uint16(1); i < size; i++ {
		if cmp(n.KeyAt(i), key) <= 0 {
			found = i
		} else {
			break
		}
	}
	return found
}

// LookupGE returns the first leaf index whose key is >= search key, or
// Size() if every key is smaller.
func (n Node) LookupGE(key []byte, cmp Comparator) uint16 {
	size := n.Size()
	for i := uint16(0); i < size; i++ {
		if cmp(n.KeyAt(i), key) >= 0 {
			return i
		}
	}
	return size
}

// MoveHalfTo moves the upper half of n's entries to dst (an empty node
// of the same kind), documenting the split rule: the first
// ceil(size/2) entries stay, the rest move.
func (n Node) MoveHalfTo(dst Node) {
	size := n.Size()
	mid := (size + 1) / 2
	count := size - mid
	es := n.entrySize()
	for i := uint16(0); i < count; i++ {
		srcOff := n.entryOff(mid + i)
		dstOff := dst.entryOff(i)
		copy(dst[dstOff:dstOff+es], n[srcOff:srcOff+es])
	}
	dst.setSize(count)
	n.setSize(mid)
}

// MoveAllTo appends every entry of n to dst (used by coalesce); n is
// left empty.
func (n Node) MoveAllTo(dst Node) {
	size := n.Size()
	dstSize := dst.Size()
	es := n.entrySize()
	for i := uint16(0); i < size; i++ {
		srcOff := n.entryOff(i)
		dstOff := dst.entryOff(dstSize + i)
		copy(dst[dstOff:dstOff+es], n[srcOff:srcOff+es])
	}
	dst.setSize(dstSize + size)
	n.setSize(0)
}

// MoveFirstTo moves n's first entry to the end of dst (used by
// redistribute when borrowing from the right sibling).
func (n Node) MoveFirstTo(dst Node) {
	es := n.entrySize()
	srcOff := n.entryOff(0)
	dstOff := dst.entryOff(dst.Size())
	copy(dst[dstOff:dstOff+es], n[srcOff:srcOff+es])
	dst.setSize(dst.Size() + 1)
	n.RemoveAt(0)
}

// MoveLastTo moves n's last entry to the front of dst (used by
// redistribute when borrowing from the left sibling).
func (n Node) MoveLastTo(dst Node) {
	last := n.Size() - 1
	es := n.entrySize()
	srcOff := n.entryOff(last)
	dst.shift(0, 1)
	dstOff := dst.entryOff(0)
	copy(dst[dstOff:dstOff+es], n[srcOff:srcOff+es])
	dst.setSize(dst.Size() + 1)
	n.setSize(last)
}
