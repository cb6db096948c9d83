package storage

import (
	"fmt"
	"os"
	"sync"
)

// FileDiskManager is a DiskManager backed by a single flat file, one
// PageSize slot per page id. It tracks deallocated page ids in memory only,
// for idempotency and reporting; persisting that set across restarts is out
// of scope for a page-caching core (see the Non-goals on buffer-pool
// persistence). Deallocated ids are never reused — page ids are monotonic
// for the life of the process (spec.md §3's Lifecycle: "Page-ids, once
// deallocated, are not resurrected").
type FileDiskManager struct {
	mu          sync.Mutex
	file        *os.File
	nextPageID  PageID
	freeSet     map[PageID]bool
	totalReads  int64
	totalWrites int64
}

// NewFileDiskManager opens (creating if necessary) the data file at path.
func NewFileDiskManager(path string) (*FileDiskManager, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("storage: open data file: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("storage: stat data file: %w", err)
	}

	return &FileDiskManager{
		file:       file,
		nextPageID: PageID(info.Size() / PageSize),
		freeSet:    make(map[PageID]bool),
	}, nil
}

// ReadPage implements DiskManager.
func (dm *FileDiskManager) ReadPage(pageID PageID, data []byte) error {
	if err := checkPageSize(data); err != nil {
		return err
	}

	dm.mu.Lock()
	defer dm.mu.Unlock()

	offset := int64(pageID) * PageSize
	n, err := dm.file.ReadAt(data, offset)
	if err != nil && err.Error() != "EOF" {
		return fmt.Errorf("storage: read page %d: %w", pageID, err)
	}
	// A short read past the end of the file means this page was never
	// written: treat it as a freshly allocated, zero-filled page.
	for i := n; i < len(data); i++ {
		data[i] = 0
	}
	dm.totalReads++
	return nil
}

// WritePage implements DiskManager.
func (dm *FileDiskManager) WritePage(pageID PageID, data []byte) error {
	if err := checkPageSize(data); err != nil {
		return err
	}

	dm.mu.Lock()
	defer dm.mu.Unlock()

	offset := int64(pageID) * PageSize
	if _, err := dm.file.WriteAt(data, offset); err != nil {
		return fmt.Errorf("storage: write page %d: %w", pageID, err)
	}
	dm.totalWrites++
	return nil
}

// AllocatePage implements DiskManager: a bare return-and-increment counter.
// Deallocated ids are never handed back out.
func (dm *FileDiskManager) AllocatePage() (PageID, error) {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	id := dm.nextPageID
	dm.nextPageID++
	return id, nil
}

// DeallocatePage implements DiskManager.
func (dm *FileDiskManager) DeallocatePage(pageID PageID) error {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	if pageID < 0 || pageID >= dm.nextPageID {
		return fmt.Errorf("storage: invalid page id %d (next id %d)", pageID, dm.nextPageID)
	}
	dm.freeSet[pageID] = true
	return nil
}

// Sync flushes all written data to stable storage.
func (dm *FileDiskManager) Sync() error {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	return dm.file.Sync()
}

// Close syncs and closes the underlying file.
func (dm *FileDiskManager) Close() error {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	if err := dm.file.Sync(); err != nil {
		return err
	}
	return dm.file.Close()
}

// Stats reports disk manager counters for the admin surface.
func (dm *FileDiskManager) Stats() map[string]interface{} {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	return map[string]interface{}{
		"next_page_id":      dm.nextPageID,
		"deallocated_pages": len(dm.freeSet),
		"total_reads":       dm.totalReads,
		"total_writes":      dm.totalWrites,
	}
}

var _ DiskManager = (*FileDiskManager)(nil)
