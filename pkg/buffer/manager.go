// Package buffer implements the buffer pool manager: a fixed array of
// frames fronting the disk manager, with pin counts, dirty tracking
// and an LRU replacement policy. Its free-frame bookkeeping is
// grounded on the teacher's own pkg/storage/freelist.go page-recycling
// list, retargeted from free byte-ranges to free buffer-pool frames
// (see DESIGN.md).
package buffer

import (
	"sync"

	"github.com/JerryiaL/minisql/internal/metrics"
	"github.com/JerryiaL/minisql/pkg/disk"
	"github.com/JerryiaL/minisql/pkg/errs"
	"github.com/JerryiaL/minisql/pkg/page"
)

// frame holds one cached page plus its pool bookkeeping.
type frame struct {
	data     page.Page
	pid      page.ID
	pinCount int32
	dirty    bool
}

// Manager is the buffer pool manager: pool_size frames, a free list,
// a page-id -> frame-index table, and an LRUReplacer for eviction
// among unpinned frames.
type Manager struct {
	mu       sync.Mutex
	disk     *disk.Manager
	metrics  *metrics.Metrics
	frames   []frame
	pageTbl  map[page.ID]FrameID
	freeList []FrameID
	replacer *LRUReplacer
}

// NewManager creates a buffer pool of poolSize frames backed by dm.
// metrics may be nil.
func NewManager(dm *disk.Manager, poolSize int, m *metrics.Metrics) *Manager {
	mgr := &Manager{
		disk:     dm,
		metrics:  m,
		frames:   make([]frame, poolSize),
		pageTbl:  make(map[page.ID]FrameID, poolSize),
		freeList: make([]FrameID, poolSize),
		replacer: NewLRUReplacer(),
	}
	for i := 0; i < poolSize; i++ {
		mgr.freeList[i] = FrameID(poolSize - 1 - i)
	}
	return mgr
}

// victimFrame picks a frame for reuse: free list first, then the LRU
// victim. If the chosen frame is dirty it is flushed to disk first.
// Returns false if no frame is available (every frame pinned).
func (m *Manager) victimFrame() (FrameID, bool) {
	if n := len(m.freeList); n > 0 {
		fid := m.freeList[n-1]
		m.freeList = m.freeList[:n-1]
		return fid, true
	}
	fid, ok := m.replacer.Victim()
	if !ok {
		return 0, false
	}
	f := &m.frames[fid]
	if f.dirty {
		if err := m.disk.WritePage(f.pid, f.data.Data()); err != nil {
			return 0, false
		}
	}
	delete(m.pageTbl, f.pid)
	if m.metrics != nil {
		m.metrics.BufferPoolEvictionsTotal.Inc()
	}
	return fid, true
}

// Fetch pins the frame holding pid, reading it from disk if not
// already resident. Returns nil if every frame is pinned.
func (m *Manager) Fetch(pid page.ID) *page.Page {
	m.mu.Lock()
	defer m.mu.Unlock()

	if fid, ok := m.pageTbl[pid]; ok {
		f := &m.frames[fid]
		f.pinCount++
		f.data.Pin()
		m.replacer.Pin(fid)
		if m.metrics != nil {
			m.metrics.BufferPoolHitsTotal.Inc()
			m.metrics.BufferPoolPinnedPages.Inc()
		}
		return &f.data
	}

	fid, ok := m.victimFrame()
	if !ok {
		return nil
	}

	f := &m.frames[fid]
	f.data.Reset()
	if err := m.disk.ReadPage(pid, f.data.Data()); err != nil {
		return nil
	}
	f.data.SetID(pid)
	f.pid = pid
	f.pinCount = 1
	f.dirty = false
	f.data.Pin()
	m.pageTbl[pid] = fid
	m.replacer.Pin(fid)

	if m.metrics != nil {
		m.metrics.BufferPoolMissesTotal.Inc()
		m.metrics.DiskReadsTotal.Inc()
		m.metrics.BufferPoolPinnedPages.Inc()
	}
	return &f.data
}

// NewPage allocates a fresh logical page on disk, pins a frame for it
// and returns both. Returns (Invalid, nil) and an OutOfMemory error if
// every frame is pinned.
func (m *Manager) NewPage() (page.ID, *page.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fid, ok := m.victimFrame()
	if !ok {
		return page.Invalid, nil, errs.New("buffer.NewPage", errs.OutOfMemory)
	}

	pid, err := m.disk.AllocatePage()
	if err != nil {
		m.freeList = append(m.freeList, fid)
		return page.Invalid, nil, err
	}
	if m.metrics != nil {
		m.metrics.DiskPagesAllocatedTotal.Inc()
	}

	f := &m.frames[fid]
	f.data.Reset()
	f.data.SetID(pid)
	f.pid = pid
	f.pinCount = 1
	f.dirty = false
	f.data.Pin()
	m.pageTbl[pid] = fid

	if m.metrics != nil {
		m.metrics.BufferPoolPinnedPages.Inc()
	}
	return pid, &f.data, nil
}

// Unpin decrements pid's pin count, OR-ing dirty into the frame's
// dirty bit. Returns false if pid is not resident.
func (m *Manager) Unpin(pid page.ID, dirty bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	fid, ok := m.pageTbl[pid]
	if !ok {
		return false
	}
	f := &m.frames[fid]
	if dirty {
		f.dirty = true
	}
	if f.pinCount <= 0 {
		return false
	}
	f.pinCount--
	f.data.Unpin()
	if m.metrics != nil {
		m.metrics.BufferPoolPinnedPages.Dec()
	}
	if f.pinCount == 0 {
		m.replacer.Unpin(fid)
	}
	return true
}

// Flush writes pid's current bytes to disk if resident.
func (m *Manager) Flush(pid page.ID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	fid, ok := m.pageTbl[pid]
	if !ok {
		return false
	}
	f := &m.frames[fid]
	if err := m.disk.WritePage(pid, f.data.Data()); err != nil {
		return false
	}
	f.dirty = false
	if m.metrics != nil {
		m.metrics.DiskWritesTotal.Inc()
	}
	return true
}

// FlushAll writes every resident page to disk.
func (m *Manager) FlushAll() {
	m.mu.Lock()
	pids := make([]page.ID, 0, len(m.pageTbl))
	for pid := range m.pageTbl {
		pids = append(pids, pid)
	}
	m.mu.Unlock()

	for _, pid := range pids {
		m.Flush(pid)
	}
}

// Delete removes pid from the pool and deallocates it on disk.
// Returns false if pid is still pinned.
func (m *Manager) Delete(pid page.ID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fid, ok := m.pageTbl[pid]
	if !ok {
		if err := m.disk.DeallocatePage(pid); err != nil {
			return false, err
		}
		if m.metrics != nil {
			m.metrics.DiskPagesDeallocated.Inc()
		}
		return true, nil
	}
	f := &m.frames[fid]
	if f.pinCount > 0 {
		return false, nil
	}
	m.replacer.Pin(fid)
	delete(m.pageTbl, pid)
	m.freeList = append(m.freeList, fid)

	if err := m.disk.DeallocatePage(pid); err != nil {
		return false, err
	}
	if m.metrics != nil {
		m.metrics.DiskPagesDeallocated.Inc()
	}
	return true, nil
}
