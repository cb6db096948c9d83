package compression

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync"

	"github.com/corviddb/pagecache/pkg/storage"
)

// blockHeaderSize is [4-byte original size][4-byte compressed size]
// preceding each compressed block in the backing file.
const blockHeaderSize = 8

type blockLocation struct {
	offset int64
	length int64
}

// DiskManager wraps an append-only backing file with transparent page
// compression: FetchPage-sized buffers are compressed before they hit disk
// and decompressed back to storage.PageSize on read. It satisfies
// storage.DiskManager, so a BufferPoolManager can't tell the difference
// from storage.FileDiskManager.
type DiskManager struct {
	mu         sync.Mutex
	file       *os.File
	compressor *Compressor
	index      map[storage.PageID]blockLocation
	freed      map[storage.PageID]bool
	nextOffset int64
	nextPageID storage.PageID
}

// NewDiskManager opens (creating if absent) path as a compressed page
// store using config's codec.
func NewDiskManager(path string, config *Config) (*DiskManager, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("compression: open %s: %w", path, err)
	}
	compressor, err := NewCompressor(config)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &DiskManager{
		file:       f,
		compressor: compressor,
		index:      make(map[storage.PageID]blockLocation),
		freed:      make(map[storage.PageID]bool),
	}, nil
}

// ReadPage decompresses pageID's stored block into data (len(data) ==
// storage.PageSize). A page with no block yet (never written, or
// deallocated) reads as zeros.
func (d *DiskManager) ReadPage(pageID storage.PageID, data []byte) error {
	if err := checkSize(data); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	loc, ok := d.index[pageID]
	if !ok || d.freed[pageID] {
		for i := range data {
			data[i] = 0
		}
		return nil
	}

	raw := make([]byte, loc.length)
	if _, err := d.file.ReadAt(raw, loc.offset); err != nil {
		return fmt.Errorf("compression: read block for page %d: %w", pageID, err)
	}
	originalSize := binary.LittleEndian.Uint32(raw[0:4])
	compressedSize := binary.LittleEndian.Uint32(raw[4:8])
	compressed := raw[blockHeaderSize : blockHeaderSize+int(compressedSize)]

	decompressed, err := d.compressor.Decompress(compressed)
	if err != nil {
		return fmt.Errorf("compression: decompress page %d: %w", pageID, err)
	}
	if len(decompressed) != int(originalSize) {
		return fmt.Errorf("compression: page %d decompressed to %d bytes, want %d", pageID, len(decompressed), originalSize)
	}
	copy(data, decompressed)
	return nil
}

// WritePage compresses data and appends it as a new block, superseding any
// earlier block for pageID. The backing file only grows; it is not
// compacted (see DESIGN.md for why that's out of scope here).
func (d *DiskManager) WritePage(pageID storage.PageID, data []byte) error {
	if err := checkSize(data); err != nil {
		return err
	}
	compressed, err := d.compressor.Compress(data)
	if err != nil {
		return fmt.Errorf("compression: compress page %d: %w", pageID, err)
	}

	block := make([]byte, blockHeaderSize+len(compressed))
	binary.LittleEndian.PutUint32(block[0:4], uint32(len(data)))
	binary.LittleEndian.PutUint32(block[4:8], uint32(len(compressed)))
	copy(block[blockHeaderSize:], compressed)

	d.mu.Lock()
	defer d.mu.Unlock()

	offset := d.nextOffset
	if _, err := d.file.WriteAt(block, offset); err != nil {
		return fmt.Errorf("compression: write block for page %d: %w", pageID, err)
	}
	d.nextOffset += int64(len(block))
	d.index[pageID] = blockLocation{offset: offset, length: int64(len(block))}
	delete(d.freed, pageID)
	return nil
}

// AllocatePage reserves a fresh page id. No block is written until the
// first WritePage.
func (d *DiskManager) AllocatePage() (storage.PageID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.nextPageID
	d.nextPageID++
	return id, nil
}

// DeallocatePage marks pageID as freed; its block (if any) stays in the
// file, which is never compacted, but ReadPage treats it as zeroed.
func (d *DiskManager) DeallocatePage(pageID storage.PageID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.freed[pageID] = true
	return nil
}

// Close releases the compressor's codec resources and the backing file.
func (d *DiskManager) Close() error {
	d.compressor.Close()
	return d.file.Close()
}

func checkSize(data []byte) error {
	if len(data) != storage.PageSize {
		return fmt.Errorf("compression: buffer has size %d, want %d", len(data), storage.PageSize)
	}
	return nil
}

var _ storage.DiskManager = (*DiskManager)(nil)
