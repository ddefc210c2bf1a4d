package buffer

import (
	"path/filepath"
	"testing"

	"github.com/JerryiaL/minisql/pkg/disk"
	"github.com/JerryiaL/minisql/pkg/page"
)

func newTestManager(t *testing.T, poolSize int) *Manager {
	t.Helper()
	dm, err := disk.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("disk.Open: %v", err)
	}
	t.Cleanup(func() { dm.Close() })
	return NewManager(dm, poolSize, nil)
}

func TestManagerNewPageAndFetch(t *testing.T) {
	m := newTestManager(t, 3)

	pid, p, err := m.NewPage()
	if err != nil {
		t.Fatalf("NewPage: %v", err)
	}
	copy(p.Data(), []byte("hello"))
	m.Unpin(pid, true)

	fetched := m.Fetch(pid)
	if fetched == nil {
		t.Fatalf("Fetch(%d) = nil", pid)
	}
	if string(fetched.Data()[:5]) != "hello" {
		t.Fatalf("fetched data = %q, want %q", fetched.Data()[:5], "hello")
	}
	m.Unpin(pid, false)
}

// TestManagerLRUEvictsLeastRecentlyUsed fills a pool of size 3, unpins
// all three, touches page 0 again (making it most-recently-used), then
// requests a fourth page. The victim must be page 1 — the least
// recently used of the three, not page 0 (touched last) or page 2
// (allocated last but touched after 1).
func TestManagerLRUEvictsLeastRecentlyUsed(t *testing.T) {
	m := newTestManager(t, 3)

	var pids [3]page.ID
	for i := range pids {
		pid, p, err := m.NewPage()
		if err != nil {
			t.Fatalf("NewPage[%d]: %v", i, err)
		}
		pids[i] = pid
		p.Data()[0] = byte(i)
		m.Unpin(pid, true)
	}

	// Touch page 0 so it becomes most-recently-used, leaving page 1 as
	// the least recently used of the three.
	if m.Fetch(pids[0]) == nil {
		t.Fatalf("Fetch(pids[0]) = nil")
	}
	m.Unpin(pids[0], false)

	// Every frame is unpinned; a fourth page forces an eviction.
	pid3, _, err := m.NewPage()
	if err != nil {
		t.Fatalf("NewPage (4th): %v", err)
	}
	m.Unpin(pid3, true)

	if _, resident := m.pageTbl[pids[1]]; resident {
		t.Fatalf("page %d still resident, want it evicted as LRU victim", pids[1])
	}
	for _, pid := range []page.ID{pids[0], pids[2], pid3} {
		if _, resident := m.pageTbl[pid]; !resident {
			t.Fatalf("page %d not resident, want it kept in pool", pid)
		}
	}
}

func TestManagerNewPageFailsWhenPoolFullyPinned(t *testing.T) {
	m := newTestManager(t, 2)

	if _, _, err := m.NewPage(); err != nil {
		t.Fatalf("NewPage[0]: %v", err)
	}
	if _, _, err := m.NewPage(); err != nil {
		t.Fatalf("NewPage[1]: %v", err)
	}

	_, _, err := m.NewPage()
	if err == nil {
		t.Fatalf("expected NewPage to fail with every frame pinned")
	}
}

func TestManagerUnpinDirtyThenFlush(t *testing.T) {
	m := newTestManager(t, 2)

	pid, p, err := m.NewPage()
	if err != nil {
		t.Fatalf("NewPage: %v", err)
	}
	copy(p.Data(), []byte("persisted"))
	m.Unpin(pid, true)

	if !m.Flush(pid) {
		t.Fatalf("Flush(%d) = false", pid)
	}

	m2 := NewManager(m.disk, 2, nil)
	got := m2.Fetch(pid)
	if got == nil {
		t.Fatalf("Fetch after flush+reopen = nil")
	}
	if string(got.Data()[:9]) != "persisted" {
		t.Fatalf("data after flush+reopen = %q", got.Data()[:9])
	}
}

func TestManagerDeleteRejectsPinnedPage(t *testing.T) {
	m := newTestManager(t, 2)

	pid, _, err := m.NewPage()
	if err != nil {
		t.Fatalf("NewPage: %v", err)
	}

	ok, err := m.Delete(pid)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if ok {
		t.Fatalf("Delete succeeded on a pinned page")
	}

	m.Unpin(pid, false)
	ok, err = m.Delete(pid)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if !ok {
		t.Fatalf("Delete failed on an unpinned page")
	}
}
