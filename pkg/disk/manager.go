// Package disk implements the disk space manager: it owns the single
// backing file, maps a dense logical page-id space onto physical
// offsets via interleaved bitmap extents, and performs positional I/O.
// The file-open-with-directory-fsync idiom is adapted from the
// teacher's pkg/storage/kv.go createFileSync, ported from raw
// syscalls to *os.File so ReadAt/WriteAt can be used directly (see
// DESIGN.md).
package disk

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/JerryiaL/minisql/pkg/errs"
	"github.com/JerryiaL/minisql/pkg/page"
)

// Fixed logical page-ids, allocated once when a database is created.
const (
	CatalogMetaPageID page.ID = 0
	IndexRootsPageID  page.ID = 1
)

// firstUserPage is the first logical id available for caller
// allocation; 0 and 1 are reserved above.
const firstUserPage = 2

// Manager owns one database file and translates logical page-ids to
// physical offsets through interleaved bitmap extents.
type Manager struct {
	mu   sync.Mutex
	file *os.File
	path string

	meta page.DiskMetaPage // in-memory copy of physical page 0
}

// Open opens (creating if necessary) the database file at path and
// loads or initializes its disk-meta page.
func Open(path string) (*Manager, error) {
	f, err := createFileSync(path)
	if err != nil {
		return nil, errs.Wrap("disk.Open", errs.IoError, err)
	}

	m := &Manager{file: f, path: path, meta: make(page.DiskMetaPage, page.Size)}

	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errs.Wrap("disk.Open", errs.IoError, err)
	}

	if stat.Size() == 0 {
		m.meta.SetNumAllocatedPages(0)
		m.meta.SetNumExtents(0)
		if err := m.writePhysical(0, m.meta); err != nil {
			f.Close()
			return nil, err
		}
		for i := 0; i < firstUserPage; i++ {
			if _, err := m.AllocatePage(); err != nil {
				f.Close()
				return nil, err
			}
		}
	} else {
		buf := make([]byte, page.Size)
		if err := m.readPhysical(0, buf); err != nil {
			f.Close()
			return nil, err
		}
		m.meta = page.DiskMetaPage(buf)
	}

	return m, nil
}

// Close flushes the meta page and closes the backing file.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.writePhysical(0, m.meta); err != nil {
		return err
	}
	return m.file.Close()
}

func physicalForLogical(logical page.ID) int64 {
	extent := int64(logical) / int64(page.DataPagesPerExtent)
	offsetInExtent := int64(logical) % int64(page.DataPagesPerExtent)
	return extent*(int64(page.DataPagesPerExtent)+1) + offsetInExtent + 2
}

func bitmapPhysicalForExtent(extent int64) int64 {
	return extent*(int64(page.DataPagesPerExtent)+1) + 1
}

func (m *Manager) readPhysical(physical int64, dst []byte) error {
	n, err := m.file.ReadAt(dst, physical*page.Size)
	if err != nil && n == 0 {
		for i := range dst {
			dst[i] = 0
		}
		return nil
	}
	for i := n; i < len(dst); i++ {
		dst[i] = 0
	}
	return nil
}

func (m *Manager) writePhysical(physical int64, data []byte) error {
	if _, err := m.file.WriteAt(data, physical*page.Size); err != nil {
		return errs.Wrap("disk.writePhysical", errs.IoError, err)
	}
	return nil
}

// ReadPage reads the contents of logical page id into dst, which must
// be page.Size bytes.
func (m *Manager) ReadPage(id page.ID, dst []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.readPhysical(physicalForLogical(id), dst)
}

// WritePage writes data (page.Size bytes) to logical page id.
func (m *Manager) WritePage(id page.ID, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writePhysical(physicalForLogical(id), data)
}

func (m *Manager) bitmapForExtent(extent int64) (page.BitmapPage, error) {
	buf := make([]byte, page.Size)
	if err := m.readPhysical(bitmapPhysicalForExtent(extent), buf); err != nil {
		return nil, err
	}
	return page.BitmapPage(buf), nil
}

// AllocatePage scans bitmap extents in order for the first free data
// page, marks it used in the bitmap and disk-meta counters, and
// returns its logical id. Returns Unsupported if every existing
// extent is full and the disk meta page already tracks page.MaxExtents
// extents, so no new extent can be added.
func (m *Manager) AllocatePage() (page.ID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	numExtents := m.meta.NumExtents()

	for extent := uint32(0); extent < numExtents; extent++ {
		bm, err := m.bitmapForExtent(int64(extent))
		if err != nil {
			return page.Invalid, err
		}
		if idx, ok := bm.FindFree(); ok {
			bm.Allocate(idx)
			if err := m.writePhysical(bitmapPhysicalForExtent(int64(extent)), bm); err != nil {
				return page.Invalid, err
			}
			m.meta.SetExtentUsedPages(int(extent), m.meta.ExtentUsedPages(int(extent))+1)
			m.meta.SetNumAllocatedPages(m.meta.NumAllocatedPages() + 1)
			if err := m.writePhysical(0, m.meta); err != nil {
				return page.Invalid, err
			}
			return page.ID(int64(extent)*int64(page.DataPagesPerExtent) + int64(idx)), nil
		}
	}

	if numExtents >= page.MaxExtents {
		return page.Invalid, errs.New("disk.AllocatePage", errs.Unsupported)
	}

	extent := numExtents
	bm := make(page.BitmapPage, page.Size)
	bm.Allocate(0)
	if err := m.writePhysical(bitmapPhysicalForExtent(int64(extent)), bm); err != nil {
		return page.Invalid, err
	}
	m.meta.SetNumExtents(extent + 1)
	m.meta.SetExtentUsedPages(int(extent), 1)
	m.meta.SetNumAllocatedPages(m.meta.NumAllocatedPages() + 1)
	if err := m.writePhysical(0, m.meta); err != nil {
		return page.Invalid, err
	}
	return page.ID(int64(extent) * int64(page.DataPagesPerExtent)), nil
}

// DeallocatePage clears the bitmap bit for id's data page and zeroes
// its physical contents.
func (m *Manager) DeallocatePage(id page.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	extent := int64(id) / int64(page.DataPagesPerExtent)
	idx := uint32(int64(id) % int64(page.DataPagesPerExtent))

	bm, err := m.bitmapForExtent(extent)
	if err != nil {
		return err
	}
	if bm.IsPageFree(idx) {
		return errs.New("disk.DeallocatePage", errs.NotFound)
	}
	bm.Deallocate(idx)
	if err := m.writePhysical(bitmapPhysicalForExtent(extent), bm); err != nil {
		return err
	}

	zero := make([]byte, page.Size)
	if err := m.writePhysical(physicalForLogical(id), zero); err != nil {
		return err
	}

	used := m.meta.ExtentUsedPages(int(extent))
	if used > 0 {
		m.meta.SetExtentUsedPages(int(extent), used-1)
	}
	if m.meta.NumAllocatedPages() > 0 {
		m.meta.SetNumAllocatedPages(m.meta.NumAllocatedPages() - 1)
	}
	return m.writePhysical(0, m.meta)
}

// IsPageFree reports whether id's data-page bit is currently clear.
func (m *Manager) IsPageFree(id page.ID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	extent := int64(id) / int64(page.DataPagesPerExtent)
	idx := uint32(int64(id) % int64(page.DataPagesPerExtent))

	if uint32(extent) >= m.meta.NumExtents() {
		return true, nil
	}
	bm, err := m.bitmapForExtent(extent)
	if err != nil {
		return false, err
	}
	return bm.IsPageFree(idx), nil
}

// createFileSync creates or opens path for read-write, fsyncing the
// parent directory so the directory entry itself is durable on a
// fresh create. Adapted from the teacher's raw-syscall version to use
// *os.File (see DESIGN.md).
func createFileSync(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}

	dir, err := os.Open(filepath.Dir(path))
	if err != nil {
		f.Close()
		return nil, err
	}
	defer dir.Close()
	_ = dir.Sync()

	return f, nil
}
