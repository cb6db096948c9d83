package compression

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/corviddb/pagecache/pkg/storage"
)

func TestCompressorSnappyRoundTrip(t *testing.T) {
	compressor, err := NewCompressor(&Config{Algorithm: AlgorithmSnappy})
	if err != nil {
		t.Fatalf("NewCompressor: %v", err)
	}
	defer compressor.Close()

	data := bytes.Repeat([]byte("hello world "), 64)
	compressed, err := compressor.Compress(data)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	decompressed, err := compressor.Decompress(compressed)
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if !bytes.Equal(decompressed, data) {
		t.Fatal("round trip did not reproduce the original bytes")
	}
}

func TestCompressorZstdRoundTrip(t *testing.T) {
	compressor, err := NewCompressor(DefaultConfig())
	if err != nil {
		t.Fatalf("NewCompressor: %v", err)
	}
	defer compressor.Close()

	data := bytes.Repeat([]byte("zstd page payload "), 128)
	compressed, err := compressor.Compress(data)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	if len(compressed) >= len(data) {
		t.Fatalf("expected repetitive input to shrink, got %d >= %d", len(compressed), len(data))
	}
	decompressed, err := compressor.Decompress(compressed)
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if !bytes.Equal(decompressed, data) {
		t.Fatal("round trip did not reproduce the original bytes")
	}
}

func TestDiskManagerRoundTripsThroughCompression(t *testing.T) {
	dir := t.TempDir()
	dm, err := NewDiskManager(filepath.Join(dir, "pages.dat"), DefaultConfig())
	if err != nil {
		t.Fatalf("NewDiskManager: %v", err)
	}
	defer dm.Close()

	pageID, err := dm.AllocatePage()
	if err != nil {
		t.Fatalf("AllocatePage: %v", err)
	}

	want := make([]byte, storage.PageSize)
	copy(want, bytes.Repeat([]byte("payload"), 100))
	if err := dm.WritePage(pageID, want); err != nil {
		t.Fatalf("WritePage: %v", err)
	}

	got := make([]byte, storage.PageSize)
	if err := dm.ReadPage(pageID, got); err != nil {
		t.Fatalf("ReadPage: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatal("page round trip through compressed storage lost data")
	}
}

func TestDiskManagerDeallocatedPageReadsZero(t *testing.T) {
	dir := t.TempDir()
	dm, err := NewDiskManager(filepath.Join(dir, "pages.dat"), DefaultConfig())
	if err != nil {
		t.Fatalf("NewDiskManager: %v", err)
	}
	defer dm.Close()

	pageID, _ := dm.AllocatePage()
	data := make([]byte, storage.PageSize)
	copy(data, []byte("live"))
	if err := dm.WritePage(pageID, data); err != nil {
		t.Fatalf("WritePage: %v", err)
	}
	if err := dm.DeallocatePage(pageID); err != nil {
		t.Fatalf("DeallocatePage: %v", err)
	}

	got := make([]byte, storage.PageSize)
	if err := dm.ReadPage(pageID, got); err != nil {
		t.Fatalf("ReadPage: %v", err)
	}
	for i, b := range got {
		if b != 0 {
			t.Fatalf("expected deallocated page to read as zero, byte %d = %d", i, b)
		}
	}
}

func TestDiskManagerRejectsWrongSizeBuffer(t *testing.T) {
	dir := t.TempDir()
	dm, err := NewDiskManager(filepath.Join(dir, "pages.dat"), DefaultConfig())
	if err != nil {
		t.Fatalf("NewDiskManager: %v", err)
	}
	defer dm.Close()

	if err := dm.WritePage(0, make([]byte, 10)); err == nil {
		t.Fatal("expected an error writing an undersized buffer")
	}
}
