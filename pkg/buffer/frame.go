// Package buffer implements the Buffer Pool Manager and its scoped page
// guards: the component that maps page ids to in-memory frames, pins them
// against eviction while in use, and chooses eviction victims via an
// LRU-K replacer.
package buffer

import (
	"sync"

	"github.com/corviddb/pagecache/pkg/replacer"
	"github.com/corviddb/pagecache/pkg/storage"
)

// FrameID indexes a frame slot in the pool's frame array.
type FrameID = replacer.FrameID

// Frame is a fixed-size in-memory slot that can hold one page at a time.
type Frame struct {
	ID       FrameID
	PageID   storage.PageID
	Data     []byte
	PinCount int
	IsDirty  bool
	latch    sync.RWMutex
}

func newFrame(id FrameID) *Frame {
	return &Frame{
		ID:     id,
		PageID: storage.InvalidPageID,
		Data:   make([]byte, storage.PageSize),
	}
}

// IsPinned reports whether the frame has any outstanding guards.
func (f *Frame) IsPinned() bool {
	return f.PinCount > 0
}

func (f *Frame) zero() {
	for i := range f.Data {
		f.Data[i] = 0
	}
}

func (f *Frame) reset(pageID storage.PageID) {
	f.PageID = pageID
	f.PinCount = 0
	f.IsDirty = false
	f.zero()
}
