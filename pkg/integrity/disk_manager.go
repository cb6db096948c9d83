// Package integrity wraps a storage.DiskManager with a checksum recorded
// for every page, so silent on-disk corruption surfaces as an error at
// read time instead of propagating into the buffer pool.
package integrity

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/blake2b"

	"github.com/corviddb/pagecache/pkg/storage"
)

// ErrChecksumMismatch is returned by ReadPage when the page bytes the inner
// manager produced don't match the checksum recorded at the last write.
var ErrChecksumMismatch = errors.New("integrity: page checksum mismatch")

// DiskManager wraps an inner storage.DiskManager, recording a blake2b-256
// checksum for every page on write and verifying it on every read. It
// satisfies storage.DiskManager itself and can wrap compression.DiskManager
// as well as storage.FileDiskManager; compression.DiskManager takes no inner
// manager, so it cannot wrap this one.
//
// Checksums live in memory only, alongside the pool's other non-persistent
// bookkeeping — buffer-pool persistence across a process restart is out of
// scope.
type DiskManager struct {
	mu     sync.Mutex
	inner  storage.DiskManager
	hashes map[storage.PageID][blake2b.Size256]byte
}

// NewDiskManager wraps inner with checksum verification.
func NewDiskManager(inner storage.DiskManager) *DiskManager {
	return &DiskManager{
		inner:  inner,
		hashes: make(map[storage.PageID][blake2b.Size256]byte),
	}
}

// ReadPage reads pageID through the inner manager and verifies it against
// the checksum recorded at the last WritePage for that id. A page with no
// recorded checksum (never written this process) is not verified.
func (d *DiskManager) ReadPage(pageID storage.PageID, data []byte) error {
	if err := d.inner.ReadPage(pageID, data); err != nil {
		return err
	}

	d.mu.Lock()
	want, ok := d.hashes[pageID]
	d.mu.Unlock()
	if !ok {
		return nil
	}

	got := blake2b.Sum256(data)
	if got != want {
		return fmt.Errorf("%w: page %d", ErrChecksumMismatch, pageID)
	}
	return nil
}

// WritePage records a blake2b-256 checksum of data and forwards it
// unmodified to the inner manager.
func (d *DiskManager) WritePage(pageID storage.PageID, data []byte) error {
	sum := blake2b.Sum256(data)
	if err := d.inner.WritePage(pageID, data); err != nil {
		return err
	}
	d.mu.Lock()
	d.hashes[pageID] = sum
	d.mu.Unlock()
	return nil
}

// AllocatePage delegates to the inner manager.
func (d *DiskManager) AllocatePage() (storage.PageID, error) {
	return d.inner.AllocatePage()
}

// DeallocatePage forgets pageID's checksum and delegates to the inner
// manager.
func (d *DiskManager) DeallocatePage(pageID storage.PageID) error {
	d.mu.Lock()
	delete(d.hashes, pageID)
	d.mu.Unlock()
	return d.inner.DeallocatePage(pageID)
}

var _ storage.DiskManager = (*DiskManager)(nil)
