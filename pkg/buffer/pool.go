package buffer

import (
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/corviddb/pagecache/pkg/replacer"
	"github.com/corviddb/pagecache/pkg/storage"
)

// EventKind identifies a buffer-pool lifecycle event, surfaced to
// observability consumers (see pkg/admin) but otherwise unused by policy.
type EventKind string

const (
	EventNewPage    EventKind = "new_page"
	EventFetchPage  EventKind = "fetch_page"
	EventUnpinPage  EventKind = "unpin_page"
	EventFlushPage  EventKind = "flush_page"
	EventEvictPage  EventKind = "evict_page"
	EventDeletePage EventKind = "delete_page"
)

// Event describes one buffer-pool lifecycle transition.
type Event struct {
	Kind    EventKind
	PageID  storage.PageID
	FrameID FrameID
}

// EventSink receives buffer-pool lifecycle events. It must not block or
// call back into the BufferPoolManager.
type EventSink func(Event)

// BufferPoolManager owns a fixed array of frames, a free list of unused
// frames, a page table mapping page id to frame index, and an LRU-K
// replacer. It mediates every page read and write between higher-level
// storage structures and the DiskManager, bounding memory use to pool_size
// frames.
type BufferPoolManager struct {
	mu sync.Mutex

	frames    []*Frame
	pageTable map[storage.PageID]FrameID
	freeList  []FrameID
	replacer  *replacer.LRUKReplacer

	disk   storage.DiskManager
	logMgr storage.LogManager
	logger *log.Logger

	hits      int64
	misses    int64
	evictions int64

	sink EventSink
}

// New constructs a BufferPoolManager with poolSize frames, backed by disk,
// with an LRU-K replacer of history depth k. logMgr may be nil. A non-nil
// logMgr is stored but never called: frames carry no log sequence number,
// and dirty pages are written out without a FlushUpTo beforehand.
func New(poolSize int, disk storage.DiskManager, k int, logMgr storage.LogManager) *BufferPoolManager {
	frames := make([]*Frame, poolSize)
	freeList := make([]FrameID, poolSize)
	for i := 0; i < poolSize; i++ {
		frames[i] = newFrame(FrameID(i))
		freeList[i] = FrameID(i)
	}

	return &BufferPoolManager{
		frames:    frames,
		pageTable: make(map[storage.PageID]FrameID, poolSize),
		freeList:  freeList,
		replacer:  replacer.New(poolSize, k),
		disk:      disk,
		logMgr:    logMgr,
		logger:    log.New(os.Stderr, "buffer: ", log.LstdFlags),
	}
}

// SetLogger overrides the default stderr logger.
func (bp *BufferPoolManager) SetLogger(logger *log.Logger) {
	bp.logger = logger
}

// SetEventSink registers a callback invoked after each lifecycle
// transition, for observability consumers such as pkg/admin. The callback
// runs while the pool's mutex is held. Pass nil to disable.
func (bp *BufferPoolManager) SetEventSink(sink EventSink) {
	bp.mu.Lock()
	bp.sink = sink
	bp.mu.Unlock()
}

func (bp *BufferPoolManager) emit(ev Event) {
	if bp.sink != nil {
		bp.sink(ev)
	}
}

// acquireFrame returns a frame to admit a page into: the free list head if
// non-empty, else an eviction victim from the replacer. ok is false iff
// neither source has a candidate (pool exhausted).
//
// Must be called with bp.mu held. If the returned frame held a valid,
// dirty page, that page has already been flushed to disk (invariant I4)
// and its stale page-table entry removed.
func (bp *BufferPoolManager) acquireFrame() (FrameID, bool) {
	if n := len(bp.freeList); n > 0 {
		id := bp.freeList[n-1]
		bp.freeList = bp.freeList[:n-1]
		return id, true
	}

	victim, ok := bp.replacer.Evict()
	if !ok {
		return 0, false
	}

	frame := bp.frames[victim]
	if frame.PageID != storage.InvalidPageID {
		if frame.IsDirty {
			if err := bp.disk.WritePage(frame.PageID, frame.Data); err != nil {
				bp.logger.Printf("failed to flush evicted page %d: %v", frame.PageID, err)
			}
		}
		delete(bp.pageTable, frame.PageID)
		bp.evictions++
		bp.emit(Event{Kind: EventEvictPage, PageID: frame.PageID, FrameID: victim})
	}
	return victim, true
}

// NewPage allocates a fresh page id, admits it into a frame pinned once,
// and returns both. It fails with ErrPoolExhausted if no frame is free or
// evictable; on failure, the page table, free list and replacer are left as
// they were (a page id already reserved from the disk manager stays used).
func (bp *BufferPoolManager) NewPage() (storage.PageID, *Frame, error) {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	// Reserve the page id before touching any frame, so a failed allocation
	// leaves the page table, free list and replacer untouched.
	pageID, err := bp.disk.AllocatePage()
	if err != nil {
		return storage.InvalidPageID, nil, fmt.Errorf("buffer: allocate page: %w", err)
	}

	frameID, ok := bp.acquireFrame()
	if !ok {
		return storage.InvalidPageID, nil, ErrPoolExhausted
	}

	frame := bp.frames[frameID]
	frame.reset(pageID)
	frame.PinCount = 1
	bp.pageTable[pageID] = frameID

	bp.replacer.RecordAccess(frameID, storage.AccessUnknown)
	bp.replacer.SetEvictable(frameID, false)

	bp.emit(Event{Kind: EventNewPage, PageID: pageID, FrameID: frameID})
	return pageID, frame, nil
}

// FetchPage returns the frame holding pageID, reading it from disk and
// admitting it into the pool first if necessary. The returned frame is
// pinned once more than before the call. Returns ErrPoolExhausted if the
// page is not resident and no frame can be acquired for it.
func (bp *BufferPoolManager) FetchPage(pageID storage.PageID, accessType storage.AccessType) (*Frame, error) {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	if frameID, ok := bp.pageTable[pageID]; ok {
		frame := bp.frames[frameID]
		frame.PinCount++
		bp.replacer.RecordAccess(frameID, accessType)
		bp.replacer.SetEvictable(frameID, false)
		bp.hits++
		bp.emit(Event{Kind: EventFetchPage, PageID: pageID, FrameID: frameID})
		return frame, nil
	}

	frameID, ok := bp.acquireFrame()
	if !ok {
		bp.misses++
		return nil, ErrPoolExhausted
	}

	frame := bp.frames[frameID]
	frame.reset(pageID)
	if err := bp.disk.ReadPage(pageID, frame.Data); err != nil {
		// Failed read: the frame is still empty/free in spirit. Return it
		// to the free list rather than leaving it half-admitted.
		frame.reset(storage.InvalidPageID)
		bp.freeList = append(bp.freeList, frameID)
		bp.misses++
		return nil, fmt.Errorf("buffer: read page %d: %w", pageID, err)
	}

	frame.PinCount = 1
	bp.pageTable[pageID] = frameID
	bp.replacer.RecordAccess(frameID, accessType)
	bp.replacer.SetEvictable(frameID, false)
	bp.misses++

	bp.emit(Event{Kind: EventFetchPage, PageID: pageID, FrameID: frameID})
	return frame, nil
}

// UnpinPage decrements pageID's pin count, marking its frame evictable once
// the count reaches zero. isDirty is sticky: it only ever sets the dirty
// flag, never clears it — only a successful flush or a write-through
// eviction does that. The page-table entry is never removed here; a page
// remains cached after every pin is released.
func (bp *BufferPoolManager) UnpinPage(pageID storage.PageID, isDirty bool, accessType storage.AccessType) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	frameID, ok := bp.pageTable[pageID]
	if !ok {
		return ErrPageNotResident
	}
	frame := bp.frames[frameID]
	if frame.PinCount == 0 {
		return ErrNotPinned
	}

	frame.PinCount--
	if frame.PinCount == 0 {
		bp.replacer.SetEvictable(frameID, true)
	}
	frame.IsDirty = frame.IsDirty || isDirty

	bp.emit(Event{Kind: EventUnpinPage, PageID: pageID, FrameID: frameID})
	return nil
}

// FlushPage writes pageID's frame to disk regardless of pin count and
// clears its dirty flag. It returns ErrPageNotResident if the page isn't
// cached.
func (bp *BufferPoolManager) FlushPage(pageID storage.PageID) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	return bp.flushLocked(pageID)
}

func (bp *BufferPoolManager) flushLocked(pageID storage.PageID) error {
	if pageID == storage.InvalidPageID {
		return ErrPageNotResident
	}
	frameID, ok := bp.pageTable[pageID]
	if !ok {
		return ErrPageNotResident
	}

	frame := bp.frames[frameID]
	if err := bp.disk.WritePage(pageID, frame.Data); err != nil {
		return fmt.Errorf("buffer: flush page %d: %w", pageID, err)
	}
	frame.IsDirty = false

	bp.emit(Event{Kind: EventFlushPage, PageID: pageID, FrameID: frameID})
	return nil
}

// FlushAllPages flushes every resident page to disk.
func (bp *BufferPoolManager) FlushAllPages() error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	for pageID := range bp.pageTable {
		if err := bp.flushLocked(pageID); err != nil {
			return err
		}
	}
	return nil
}

// DeletePage removes pageID from the pool and asks the disk manager to
// deallocate it. It is idempotent: deleting a page that isn't resident
// succeeds trivially. It refuses (ErrPagePinned) to delete a page that is
// still pinned.
func (bp *BufferPoolManager) DeletePage(pageID storage.PageID) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	frameID, ok := bp.pageTable[pageID]
	if !ok {
		return nil
	}

	frame := bp.frames[frameID]
	if frame.PinCount > 0 {
		return ErrPagePinned
	}

	if err := bp.replacer.Remove(frameID); err != nil {
		return fmt.Errorf("buffer: remove frame %d from replacer: %w", frameID, err)
	}
	frame.reset(storage.InvalidPageID)
	delete(bp.pageTable, pageID)
	bp.freeList = append(bp.freeList, frameID)

	if err := bp.disk.DeallocatePage(pageID); err != nil {
		return fmt.Errorf("buffer: deallocate page %d: %w", pageID, err)
	}

	bp.emit(Event{Kind: EventDeletePage, PageID: pageID, FrameID: frameID})
	return nil
}

// Stats is a point-in-time snapshot of pool occupancy and cache
// effectiveness, consumed by the admin HTTP surface.
type Stats struct {
	Capacity     int
	Resident     int
	Free         int
	ReplacerSize int
	Hits         int64
	Misses       int64
	Evictions    int64
}

// Stats returns a snapshot of buffer pool statistics.
func (bp *BufferPoolManager) Stats() Stats {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	return Stats{
		Capacity:     len(bp.frames),
		Resident:     len(bp.pageTable),
		Free:         len(bp.freeList),
		ReplacerSize: bp.replacer.Size(),
		Hits:         bp.hits,
		Misses:       bp.misses,
		Evictions:    bp.evictions,
	}
}

// NewPageGuarded allocates a fresh page and returns it wrapped in a
// BasicPageGuard, so callers can't forget to unpin it.
func (bp *BufferPoolManager) NewPageGuarded() (*BasicPageGuard, error) {
	_, frame, err := bp.NewPage()
	if err != nil {
		return nil, err
	}
	// The page was just created and zero-initialized: it is new content
	// that has to make it to disk, so the guard starts dirty rather than
	// making the caller remember to say so.
	guard := newBasicPageGuard(bp, frame)
	guard.SetDirty(true)
	return guard, nil
}

// FetchPageBasic fetches pageID and wraps it in a BasicPageGuard. The
// caller is responsible for its own concurrency control over the page's
// contents; use FetchPageRead or FetchPageWrite when that matters.
func (bp *BufferPoolManager) FetchPageBasic(pageID storage.PageID, accessType storage.AccessType) (*BasicPageGuard, error) {
	frame, err := bp.FetchPage(pageID, accessType)
	if err != nil {
		return nil, err
	}
	return newBasicPageGuard(bp, frame), nil
}

// FetchPageRead fetches pageID and wraps it in a ReadPageGuard, holding the
// frame's read latch until Release.
func (bp *BufferPoolManager) FetchPageRead(pageID storage.PageID, accessType storage.AccessType) (*ReadPageGuard, error) {
	frame, err := bp.FetchPage(pageID, accessType)
	if err != nil {
		return nil, err
	}
	return newReadPageGuard(bp, frame), nil
}

// FetchPageWrite fetches pageID and wraps it in a WritePageGuard, holding
// the frame's exclusive write latch until Release.
func (bp *BufferPoolManager) FetchPageWrite(pageID storage.PageID, accessType storage.AccessType) (*WritePageGuard, error) {
	frame, err := bp.FetchPage(pageID, accessType)
	if err != nil {
		return nil, err
	}
	return newWritePageGuard(bp, frame), nil
}

// Frames returns a snapshot of the metadata of every frame that holds a
// page, for the admin surface's introspection query. Frames with no page
// are left out, and page data is not included.
func (bp *BufferPoolManager) Frames() []Frame {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	out := make([]Frame, 0, len(bp.pageTable))
	for _, f := range bp.frames {
		if f.PageID != storage.InvalidPageID {
			out = append(out, Frame{ID: f.ID, PageID: f.PageID, PinCount: f.PinCount, IsDirty: f.IsDirty})
		}
	}
	return out
}
