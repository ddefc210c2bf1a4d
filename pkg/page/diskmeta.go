package page

import "encoding/binary"

// DiskMetaPage is the fixed physical page 0: how many pages the disk
// manager has allocated in total, how many bitmap extents are in use,
// and, per extent, how many of its data pages are currently allocated.
type DiskMetaPage []byte

const (
	diskMetaAllocatedOff = 0  // uint64
	diskMetaExtentsOff   = 8  // uint32
	diskMetaExtentArrOff = 12 // []uint32, one per extent
)

// MaxExtents is how many extents a single disk meta page can track.
const MaxExtents = (Size - diskMetaExtentArrOff) / 4

func (m DiskMetaPage) NumAllocatedPages() uint64 {
	return binary.LittleEndian.Uint64(m[diskMetaAllocatedOff:])
}

func (m DiskMetaPage) SetNumAllocatedPages(n uint64) {
	binary.LittleEndian.PutUint64(m[diskMetaAllocatedOff:], n)
}

func (m DiskMetaPage) NumExtents() uint32 {
	return binary.LittleEndian.Uint32(m[diskMetaExtentsOff:])
}

func (m DiskMetaPage) SetNumExtents(n uint32) {
	binary.LittleEndian.PutUint32(m[diskMetaExtentsOff:], n)
}

func (m DiskMetaPage) ExtentUsedPages(extent int) uint32 {
	off := diskMetaExtentArrOff + extent*4
	return binary.LittleEndian.Uint32(m[off:])
}

func (m DiskMetaPage) SetExtentUsedPages(extent int, n uint32) {
	off := diskMetaExtentArrOff + extent*4
	binary.LittleEndian.PutUint32(m[off:], n)
}
