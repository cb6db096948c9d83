// Package storage holds the data model and external collaborators of the
// page cache: page identifiers, the disk manager that moves bytes to and
// from stable storage, and the (optional) log manager interface.
package storage

import "fmt"

const (
	// PageSize is the size of each page (4KB, the typical OS page size).
	PageSize = 4096
)

// PageID identifies a logical page on stable storage. New ids come from
// DiskManager.AllocatePage, which a BufferPoolManager calls for every
// NewPage; the pool keeps no id counter of its own. FileDiskManager and
// compression.DiskManager both hand out ids monotonically and never reuse
// one within a process lifetime.
type PageID int64

// InvalidPageID is the sentinel meaning "no page".
const InvalidPageID PageID = -1

// AccessType is a closed hint describing why a page is being touched.
// Policy ignores it today; it exists so a future scan-resistant admission
// scheme has a real parameter to read.
type AccessType int

const (
	AccessUnknown AccessType = iota
	AccessLookup
	AccessScan
	AccessIndex
)

func (a AccessType) String() string {
	switch a {
	case AccessLookup:
		return "lookup"
	case AccessScan:
		return "scan"
	case AccessIndex:
		return "index"
	default:
		return "unknown"
	}
}

// DiskManager is the block-level collaborator the buffer pool reads through
// and writes through. Implementations may block; a returned error is fatal
// to the calling buffer pool operation (see the error taxonomy in the
// package that consumes this interface).
type DiskManager interface {
	// ReadPage fills data (len(data) == PageSize) with the bytes stored for
	// pageID. Reading a page past the end of the backing store yields a
	// zeroed buffer, not an error.
	ReadPage(pageID PageID, data []byte) error
	// WritePage persists data (len(data) == PageSize) for pageID.
	WritePage(pageID PageID, data []byte) error
	// AllocatePage reserves and returns a fresh page id.
	AllocatePage() (PageID, error)
	// DeallocatePage marks pageID as no longer live.
	DeallocatePage(pageID PageID) error
}

// LogManager flushes write-ahead log records up to a log sequence number.
// It is an optional collaborator: a BufferPoolManager accepts one at
// construction and stores it, but never calls FlushUpTo.
type LogManager interface {
	FlushUpTo(lsn uint64) error
}

func checkPageSize(data []byte) error {
	if len(data) != PageSize {
		return fmt.Errorf("storage: buffer has size %d, want %d", len(data), PageSize)
	}
	return nil
}
