package buffer

import (
	"bytes"
	"sync"
	"testing"

	"github.com/corviddb/pagecache/pkg/storage"
)

// memDiskManager is a trivial in-memory storage.DiskManager, good enough to
// exercise the buffer pool without touching a real file.
type memDiskManager struct {
	mu     sync.Mutex
	pages  map[storage.PageID][]byte
	nextID storage.PageID
	reads  int
	writes int
}

func newMemDiskManager() *memDiskManager {
	return &memDiskManager{pages: make(map[storage.PageID][]byte)}
}

func (m *memDiskManager) ReadPage(pageID storage.PageID, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	if stored, ok := m.pages[pageID]; ok {
		copy(data, stored)
		return nil
	}
	for i := range data {
		data[i] = 0
	}
	return nil
}

func (m *memDiskManager) WritePage(pageID storage.PageID, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	buf := make([]byte, len(data))
	copy(buf, data)
	m.pages[pageID] = buf
	m.writes++
	return nil
}

func (m *memDiskManager) AllocatePage() (storage.PageID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	return id, nil
}

func (m *memDiskManager) DeallocatePage(pageID storage.PageID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pages, pageID)
	return nil
}

var _ storage.DiskManager = (*memDiskManager)(nil)

func TestNewPageThenFetchIsCacheHit(t *testing.T) {
	disk := newMemDiskManager()
	bp := New(4, disk, 2, nil)

	pageID, frame, err := bp.NewPage()
	if err != nil {
		t.Fatalf("NewPage: %v", err)
	}
	copy(frame.Data, []byte("hello"))
	if err := bp.UnpinPage(pageID, true, storage.AccessUnknown); err != nil {
		t.Fatalf("UnpinPage: %v", err)
	}

	fetched, err := bp.FetchPage(pageID, storage.AccessLookup)
	if err != nil {
		t.Fatalf("FetchPage: %v", err)
	}
	if !bytes.HasPrefix(fetched.Data, []byte("hello")) {
		t.Fatalf("expected fetched frame to retain written bytes, got %q", fetched.Data[:5])
	}
	if got := bp.Stats().Hits; got != 1 {
		t.Fatalf("expected 1 cache hit, got %d", got)
	}
	_ = bp.UnpinPage(pageID, false, storage.AccessUnknown)
}

func TestFetchMissReadsThroughToDisk(t *testing.T) {
	disk := newMemDiskManager()
	bp := New(4, disk, 2, nil)

	pageID, frame, err := bp.NewPage()
	if err != nil {
		t.Fatalf("NewPage: %v", err)
	}
	copy(frame.Data, []byte("persisted"))
	if err := bp.FlushPage(pageID); err != nil {
		t.Fatalf("FlushPage: %v", err)
	}
	if err := bp.UnpinPage(pageID, false, storage.AccessUnknown); err != nil {
		t.Fatalf("UnpinPage: %v", err)
	}

	// A fresh pool over the same disk has nothing resident, so fetching the
	// same page id must read through rather than returning stale state.
	bp2 := New(4, disk, 2, nil)
	fetched, err := bp2.FetchPage(pageID, storage.AccessScan)
	if err != nil {
		t.Fatalf("FetchPage after cold start: %v", err)
	}
	if !bytes.HasPrefix(fetched.Data, []byte("persisted")) {
		t.Fatalf("expected page read through from disk, got %q", fetched.Data[:9])
	}
	if got := bp2.Stats().Misses; got != 1 {
		t.Fatalf("expected 1 cache miss, got %d", got)
	}
}

func TestEvictionFlushesDirtyVictimBeforeReuse(t *testing.T) {
	disk := newMemDiskManager()
	bp := New(2, disk, 2, nil)

	id1, f1, _ := bp.NewPage()
	copy(f1.Data, []byte("page-one"))
	_ = bp.UnpinPage(id1, true, storage.AccessUnknown)

	id2, _, _ := bp.NewPage()
	_ = bp.UnpinPage(id2, false, storage.AccessUnknown)

	// Pool is full (2 frames, both unpinned and evictable). A third NewPage
	// must evict one of them; since id1 is dirty, it has to be flushed
	// before its frame is reused.
	id3, _, err := bp.NewPage()
	if err != nil {
		t.Fatalf("NewPage (triggering eviction): %v", err)
	}
	if id3 == id1 || id3 == id2 {
		t.Fatalf("expected a fresh page id, got %d", id3)
	}

	if disk.writes == 0 {
		t.Fatal("expected the dirty victim to be flushed to disk before eviction")
	}
	stored, ok := disk.pages[id1]
	if ok && !bytes.HasPrefix(stored, []byte("page-one")) {
		t.Fatalf("if page one was flushed its on-disk bytes should match, got %q", stored[:8])
	}
}

func TestDeletePageRefusesWhilePinned(t *testing.T) {
	disk := newMemDiskManager()
	bp := New(2, disk, 2, nil)

	pageID, _, _ := bp.NewPage()
	if err := bp.DeletePage(pageID); err != ErrPagePinned {
		t.Fatalf("expected ErrPagePinned, got %v", err)
	}

	_ = bp.UnpinPage(pageID, false, storage.AccessUnknown)
	if err := bp.DeletePage(pageID); err != nil {
		t.Fatalf("expected delete to succeed once unpinned, got %v", err)
	}
	// Idempotent: deleting again is a silent no-op.
	if err := bp.DeletePage(pageID); err != nil {
		t.Fatalf("expected idempotent delete, got %v", err)
	}
}

func TestPoolExhaustedWhenEveryFrameIsPinned(t *testing.T) {
	disk := newMemDiskManager()
	bp := New(2, disk, 2, nil)

	if _, _, err := bp.NewPage(); err != nil {
		t.Fatalf("NewPage 1: %v", err)
	}
	if _, _, err := bp.NewPage(); err != nil {
		t.Fatalf("NewPage 2: %v", err)
	}

	if _, _, err := bp.NewPage(); err != ErrPoolExhausted {
		t.Fatalf("expected ErrPoolExhausted with every frame pinned, got %v", err)
	}
}

func TestConcurrentFetchOfNonResidentPageIssuesOneRead(t *testing.T) {
	disk := newMemDiskManager()
	bp := New(1, disk, 2, nil)

	pageID, _, err := bp.NewPage()
	if err != nil {
		t.Fatalf("NewPage: %v", err)
	}
	if err := bp.UnpinPage(pageID, false, storage.AccessUnknown); err != nil {
		t.Fatalf("UnpinPage: %v", err)
	}
	// Force eviction out of the single-frame pool so the next FetchPage
	// round is a true cache miss that has to read through to disk.
	evictID, _, err := bp.NewPage()
	if err != nil {
		t.Fatalf("NewPage (triggering eviction): %v", err)
	}
	if err := bp.UnpinPage(evictID, false, storage.AccessUnknown); err != nil {
		t.Fatalf("UnpinPage evictID: %v", err)
	}

	var wg sync.WaitGroup
	frames := make([]*Frame, 2)
	for i := range frames {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			f, err := bp.FetchPage(pageID, storage.AccessLookup)
			if err != nil {
				t.Errorf("FetchPage: %v", err)
				return
			}
			frames[i] = f
		}(i)
	}
	wg.Wait()

	if frames[0] != frames[1] {
		t.Fatalf("expected both fetches to observe the same frame, got %p and %p", frames[0], frames[1])
	}
	if frames[0].PinCount != 2 {
		t.Fatalf("expected pin count 2 after both fetches, got %d", frames[0].PinCount)
	}
	if disk.reads != 1 {
		t.Fatalf("expected exactly one disk read for both fetches, got %d", disk.reads)
	}
}

func TestUnpinUnknownPageIsNotResident(t *testing.T) {
	disk := newMemDiskManager()
	bp := New(2, disk, 2, nil)

	if err := bp.UnpinPage(storage.PageID(404), false, storage.AccessUnknown); err != ErrPageNotResident {
		t.Fatalf("expected ErrPageNotResident, got %v", err)
	}
}
