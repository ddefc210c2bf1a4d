package page

import "encoding/binary"

// IndexRootsPage is the single well-known page mapping index-id to its
// current root page-id. A root of Invalid marks an empty tree.
type IndexRootsPage []byte

const (
	indexRootsCountOff = 0
	indexRootsArrOff   = 4
	indexRootsEntry    = 8 // uint32 index-id + int32 root
)

// MaxIndexRoots is the number of (index-id, root) pairs a roots page
// can hold.
const MaxIndexRoots = (Size - indexRootsArrOff) / indexRootsEntry

func (p IndexRootsPage) count() uint32 {
	return binary.LittleEndian.Uint32(p[indexRootsCountOff:])
}

func (p IndexRootsPage) setCount(n uint32) {
	binary.LittleEndian.PutUint32(p[indexRootsCountOff:], n)
}

func (p IndexRootsPage) entryOff(i uint32) int {
	return indexRootsArrOff + int(i)*indexRootsEntry
}

func (p IndexRootsPage) indexIDAt(i uint32) uint32 {
	return binary.LittleEndian.Uint32(p[p.entryOff(i):])
}

func (p IndexRootsPage) rootAt(i uint32) ID {
	return ID(binary.LittleEndian.Uint32(p[p.entryOff(i)+4:]))
}

func (p IndexRootsPage) setEntry(i uint32, indexID uint32, root ID) {
	off := p.entryOff(i)
	binary.LittleEndian.PutUint32(p[off:], indexID)
	binary.LittleEndian.PutUint32(p[off+4:], uint32(root))
}

func (p IndexRootsPage) find(indexID uint32) (uint32, bool) {
	n := p.count()
	for i := uint32(0); i < n; i++ {
		if p.indexIDAt(i) == indexID {
			return i, true
		}
	}
	return 0, false
}

// Init zeroes the entry count; called once when the page is first
// allocated.
func (p IndexRootsPage) Init() { p.setCount(0) }

// Insert records a brand-new index's root. Fails if indexID is already
// present.
func (p IndexRootsPage) Insert(indexID uint32, root ID) bool {
	if _, ok := p.find(indexID); ok {
		return false
	}
	n := p.count()
	if n >= MaxIndexRoots {
		return false
	}
	p.setEntry(n, indexID, root)
	p.setCount(n + 1)
	return true
}

// Update replaces the root for an existing index. Fails if absent.
func (p IndexRootsPage) Update(indexID uint32, root ID) bool {
	i, ok := p.find(indexID)
	if !ok {
		return false
	}
	p.setEntry(i, indexID, root)
	return true
}

// GetRoot returns the current root for indexID. Fails if absent.
func (p IndexRootsPage) GetRoot(indexID uint32) (ID, bool) {
	i, ok := p.find(indexID)
	if !ok {
		return Invalid, false
	}
	return p.rootAt(i), true
}

// Delete removes an index's entry entirely. Fails if absent.
func (p IndexRootsPage) Delete(indexID uint32) bool {
	i, ok := p.find(indexID)
	if !ok {
		return false
	}
	n := p.count()
	last := n - 1
	if i != last {
		p.setEntry(i, p.indexIDAt(last), p.rootAt(last))
	}
	p.setCount(last)
	return true
}

// ClearInvalid compacts away any entries whose root is Invalid,
// releasing their slots for reuse. Mirrors the original C++
// index_roots_page.cpp's clear pass (see DESIGN.md).
func (p IndexRootsPage) ClearInvalid() {
	n := p.count()
	write := uint32(0)
	for read := uint32(0); read < n; read++ {
		if p.rootAt(read) == Invalid {
			continue
		}
		if write != read {
			p.setEntry(write, p.indexIDAt(read), p.rootAt(read))
		}
		write++
	}
	p.setCount(write)
}
