package page

import "encoding/binary"

// SlottedPage is the layout of one table-heap data page: a header, a
// slot directory growing from just past the header, and tuple bytes
// growing down from the end of the page. A slot's size field carries a
// high delete bit so a logically-deleted row keeps its slot (and thus
// its RID) until ApplyDelete compacts it.
type SlottedPage []byte

const (
	slottedHeaderSize = 12 // prev int32, next int32, freeSpacePtr uint16, tupleCount uint16
	slotEntrySize      = 4  // offset uint16, size|deleteBit uint16

	slotDeleteBit = uint16(1 << 15)
	slotSizeMask  = uint16(0x7FFF)
)

// UpdateStatus reports what Update did to a tuple.
type UpdateStatus int

const (
	UpdateCompleted UpdateStatus = iota
	UpdateTooMuchData
	UpdateNotFound
)

// Init prepares a freshly allocated page as an empty slotted page.
func (s SlottedPage) Init() {
	s.SetPrevPageID(Invalid)
	s.SetNextPageID(Invalid)
	s.setFreeSpacePointer(Size)
	s.setTupleCount(0)
}

func (s SlottedPage) PrevPageID() ID {
	return ID(binary.LittleEndian.Uint32(s[0:]))
}
func (s SlottedPage) SetPrevPageID(id ID) {
	binary.LittleEndian.PutUint32(s[0:], uint32(id))
}

func (s SlottedPage) NextPageID() ID {
	return ID(binary.LittleEndian.Uint32(s[4:]))
}
func (s SlottedPage) SetNextPageID(id ID) {
	binary.LittleEndian.PutUint32(s[4:], uint32(id))
}

func (s SlottedPage) freeSpacePointer() uint16 {
	return binary.LittleEndian.Uint16(s[8:])
}
func (s SlottedPage) setFreeSpacePointer(v uint16) {
	binary.LittleEndian.PutUint16(s[8:], v)
}

func (s SlottedPage) TupleCount() uint32 {
	return uint32(binary.LittleEndian.Uint16(s[10:]))
}
func (s SlottedPage) setTupleCount(v uint32) {
	binary.LittleEndian.PutUint16(s[10:], uint16(v))
}

func (s SlottedPage) slotOff(slot uint32) int {
	return slottedHeaderSize + int(slot)*slotEntrySize
}

func (s SlottedPage) getSlot(slot uint32) (offset uint16, sizeRaw uint16) {
	off := s.slotOff(slot)
	return binary.LittleEndian.Uint16(s[off:]), binary.LittleEndian.Uint16(s[off+2:])
}

func (s SlottedPage) setSlot(slot uint32, offset uint16, sizeRaw uint16) {
	off := s.slotOff(slot)
	binary.LittleEndian.PutUint16(s[off:], offset)
	binary.LittleEndian.PutUint16(s[off+2:], sizeRaw)
}

// FreeSpace returns how many bytes remain available for a new tuple
// plus its slot entry.
func (s SlottedPage) FreeSpace() int {
	used := slottedHeaderSize + int(s.TupleCount())*slotEntrySize
	return int(s.freeSpacePointer()) - used
}

// InsertTuple appends data as a new tuple, returning its slot number.
// Fails if there isn't room for the tuple plus a new slot entry.
func (s SlottedPage) InsertTuple(data []byte) (uint32, bool) {
	need := len(data)
	if need > int(slotSizeMask) {
		return 0, false
	}
	if need+slotEntrySize > s.FreeSpace() {
		return 0, false
	}
	newOffset := s.freeSpacePointer() - uint16(need)
	copy(s[newOffset:int(newOffset)+need], data)

	slot := s.TupleCount()
	s.setSlot(slot, newOffset, uint16(need))
	s.setTupleCount(slot + 1)
	s.setFreeSpacePointer(newOffset)
	return slot, true
}

// MarkDelete sets the tombstone bit on a slot. Idempotent: calling it
// twice on the same slot has the same effect as calling it once.
func (s SlottedPage) MarkDelete(slot uint32) bool {
	if slot >= s.TupleCount() {
		return false
	}
	offset, sizeRaw := s.getSlot(slot)
	if sizeRaw == 0 {
		return false
	}
	s.setSlot(slot, offset, sizeRaw|slotDeleteBit)
	return true
}

// RollbackDelete clears a slot's tombstone bit.
func (s SlottedPage) RollbackDelete(slot uint32) bool {
	if slot >= s.TupleCount() {
		return false
	}
	offset, sizeRaw := s.getSlot(slot)
	if sizeRaw == 0 {
		return false
	}
	s.setSlot(slot, offset, sizeRaw&^slotDeleteBit)
	return true
}

// ApplyDelete compacts a tombstoned (or live) slot's tuple bytes out of
// the page and clears its slot entry permanently, shifting every tuple
// stored at a lower offset (inserted after it) to close the gap.
func (s SlottedPage) ApplyDelete(slot uint32) bool {
	if slot >= s.TupleCount() {
		return false
	}
	offset, sizeRaw := s.getSlot(slot)
	if sizeRaw == 0 {
		return false
	}
	size := sizeRaw & slotSizeMask
	fsp := s.freeSpacePointer()

	if offset > fsp {
		copy(s[int(fsp)+int(size):int(offset)+int(size)], s[fsp:offset])
	}
	s.setFreeSpacePointer(fsp + size)

	n := s.TupleCount()
	for i := uint32(0); i < n; i++ {
		if i == slot {
			continue
		}
		o, sr := s.getSlot(i)
		if sr == 0 {
			continue
		}
		if o < offset {
			s.setSlot(i, o+size, sr)
		}
	}
	s.setSlot(slot, 0, 0)
	return true
}

// GetTuple copies out the bytes stored at slot. Fails if the slot is
// out of range, emptied, or tombstoned.
func (s SlottedPage) GetTuple(slot uint32) ([]byte, bool) {
	if slot >= s.TupleCount() {
		return nil, false
	}
	offset, sizeRaw := s.getSlot(slot)
	if sizeRaw == 0 || sizeRaw&slotDeleteBit != 0 {
		return nil, false
	}
	size := sizeRaw & slotSizeMask
	out := make([]byte, size)
	copy(out, s[offset:int(offset)+int(size)])
	return out, true
}

// Update overwrites a tuple in place when newData fits within the
// slot's current capacity; otherwise it reports UpdateTooMuchData and
// leaves the page untouched so the caller can delete-then-insert.
func (s SlottedPage) Update(slot uint32, newData []byte) UpdateStatus {
	if slot >= s.TupleCount() {
		return UpdateNotFound
	}
	offset, sizeRaw := s.getSlot(slot)
	if sizeRaw == 0 || sizeRaw&slotDeleteBit != 0 {
		return UpdateNotFound
	}
	capacity := sizeRaw & slotSizeMask
	if uint16(len(newData)) > capacity {
		return UpdateTooMuchData
	}
	copy(s[offset:int(offset)+len(newData)], newData)
	s.setSlot(slot, offset, uint16(len(newData)))
	return UpdateCompleted
}

// FirstSlot returns the slot number of the first live tuple and true,
// or false if the page has none.
func (s SlottedPage) FirstSlot() (uint32, bool) {
	return s.NextSlotFrom(0)
}

// NextSlotFrom returns the first live slot at or after from.
func (s SlottedPage) NextSlotFrom(from uint32) (uint32, bool) {
	n := s.TupleCount()
	for i := from; i < n; i++ {
		_, sizeRaw := s.getSlot(i)
		if sizeRaw != 0 && sizeRaw&slotDeleteBit == 0 {
			return i, true
		}
	}
	return 0, false
}
