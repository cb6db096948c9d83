package buffer

import "errors"

var (
	// ErrPoolExhausted is returned by NewPage/FetchPage when the free list
	// is empty and the replacer has no evictable frame. Recoverable: retry
	// after unpinning a page.
	ErrPoolExhausted = errors.New("buffer: no free or evictable frame")

	// ErrPageNotResident is returned by UnpinPage/FlushPage when the page
	// id has no frame in the page table.
	ErrPageNotResident = errors.New("buffer: page not resident in pool")

	// ErrNotPinned is returned by UnpinPage when the page's pin count is
	// already zero.
	ErrNotPinned = errors.New("buffer: unpin of a page with pin count zero")

	// ErrPagePinned is returned by DeletePage when the page is still
	// pinned by at least one guard.
	ErrPagePinned = errors.New("buffer: cannot delete a pinned page")
)
