package buffer

import "github.com/corviddb/pagecache/pkg/storage"

// noCopy triggers a `go vet -copylocks` warning if a guard containing it is
// copied by value instead of passed by pointer or reassigned through
// take/Release. Guards are conceptually move-only: copying one produces
// two handles to a single pin, exactly the bug this exists to catch.
//
// See https://pkg.go.dev/sync#Locker for the same trick in the standard
// library.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// BasicPageGuard is a scope-bound handle on a pinned frame. Release (or
// going out of scope via a deferred Release call) unpins the frame exactly
// once. A guard is Active until Release runs; a second Release is a no-op.
type BasicPageGuard struct {
	_     noCopy
	bpm   *BufferPoolManager
	frame *Frame
	dirty bool
}

func newBasicPageGuard(bpm *BufferPoolManager, frame *Frame) *BasicPageGuard {
	return &BasicPageGuard{bpm: bpm, frame: frame}
}

// PageID returns the guarded page's id, or InvalidPageID if the guard has
// already been released.
func (g *BasicPageGuard) PageID() storage.PageID {
	if g.frame == nil {
		return storage.InvalidPageID
	}
	return g.frame.PageID
}

// Data returns the frame's raw byte buffer. Callers holding only a Basic
// guard are responsible for their own synchronization of concurrent access
// — use a Read or Write guard when that matters.
func (g *BasicPageGuard) Data() []byte {
	if g.frame == nil {
		return nil
	}
	return g.frame.Data
}

// SetDirty marks whether Release should report this page as modified. It
// defaults to false for guards from FetchPageBasic, whose callers must call
// SetDirty(true) themselves after writing; a guard from NewPageGuarded
// starts out dirty. Release itself never changes the flag.
func (g *BasicPageGuard) SetDirty(dirty bool) {
	g.dirty = dirty
}

// Release unpins the underlying frame. It is idempotent: calling it again,
// or on a moved-from guard, does nothing.
func (g *BasicPageGuard) Release() {
	if g.frame == nil {
		return
	}
	pageID := g.frame.PageID
	_ = g.bpm.UnpinPage(pageID, g.dirty, storage.AccessUnknown)
	g.bpm = nil
	g.frame = nil
}

// take transfers ownership of g's contents to the caller and empties g,
// the Go stand-in for the original's move constructor.
func (g *BasicPageGuard) take() (*BufferPoolManager, *Frame, bool) {
	bpm, frame, dirty := g.bpm, g.frame, g.dirty
	g.bpm, g.frame, g.dirty = nil, nil, false
	return bpm, frame, dirty
}

// ReadPageGuard wraps a BasicPageGuard, additionally holding the frame's
// read latch for its scope. Multiple ReadPageGuards on the same page may
// coexist.
type ReadPageGuard struct {
	_     noCopy
	guard *BasicPageGuard
}

func newReadPageGuard(bpm *BufferPoolManager, frame *Frame) *ReadPageGuard {
	frame.latch.RLock()
	return &ReadPageGuard{guard: newBasicPageGuard(bpm, frame)}
}

// PageID returns the guarded page's id, or InvalidPageID once released.
func (g *ReadPageGuard) PageID() storage.PageID {
	if g.guard == nil {
		return storage.InvalidPageID
	}
	return g.guard.PageID()
}

// Data returns the frame's byte buffer for read-only inspection.
func (g *ReadPageGuard) Data() []byte {
	if g.guard == nil {
		return nil
	}
	return g.guard.Data()
}

// Release releases the read latch and then the underlying pin. Idempotent.
func (g *ReadPageGuard) Release() {
	if g.guard == nil {
		return
	}
	bpm, frame, dirty := g.guard.take()
	frame.latch.RUnlock()
	inner := &BasicPageGuard{bpm: bpm, frame: frame, dirty: dirty}
	inner.Release()
	g.guard = nil
}

// WritePageGuard wraps a BasicPageGuard, holding the frame's exclusive
// write latch for its scope. At most one WritePageGuard (and no concurrent
// ReadPageGuard) may be live for a frame at a time. Release always marks
// the page dirty — a write guard exists to mutate the page.
type WritePageGuard struct {
	_     noCopy
	guard *BasicPageGuard
}

func newWritePageGuard(bpm *BufferPoolManager, frame *Frame) *WritePageGuard {
	frame.latch.Lock()
	inner := newBasicPageGuard(bpm, frame)
	inner.SetDirty(true)
	return &WritePageGuard{guard: inner}
}

// PageID returns the guarded page's id, or InvalidPageID once released.
func (g *WritePageGuard) PageID() storage.PageID {
	if g.guard == nil {
		return storage.InvalidPageID
	}
	return g.guard.PageID()
}

// Data returns the frame's byte buffer, writable for the guard's scope.
func (g *WritePageGuard) Data() []byte {
	if g.guard == nil {
		return nil
	}
	return g.guard.Data()
}

// Release releases the write latch (never the read latch — pairing the
// release with the latch actually held) and then the underlying pin,
// reporting the page dirty. Idempotent.
func (g *WritePageGuard) Release() {
	if g.guard == nil {
		return
	}
	bpm, frame, dirty := g.guard.take()
	frame.latch.Unlock()
	inner := &BasicPageGuard{bpm: bpm, frame: frame, dirty: dirty}
	inner.Release()
	g.guard = nil
}
