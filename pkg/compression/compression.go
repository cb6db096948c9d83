// Package compression provides a storage.DiskManager over its own backing
// file that compresses pages on write and decompresses them on read,
// transparent to the buffer pool above it.
package compression

import (
	"fmt"

	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zstd"
)

// Algorithm identifies a page compression codec.
type Algorithm int

const (
	// AlgorithmSnappy is fast compression with a moderate ratio, a good fit
	// for hot pages touched on every access.
	AlgorithmSnappy Algorithm = iota
	// AlgorithmZstd trades some speed for a materially better ratio.
	AlgorithmZstd
)

func (a Algorithm) String() string {
	switch a {
	case AlgorithmSnappy:
		return "snappy"
	case AlgorithmZstd:
		return "zstd"
	default:
		return "unknown"
	}
}

// Config selects a codec and, for zstd, its compression level.
type Config struct {
	Algorithm Algorithm
	Level     int
}

// DefaultConfig returns Zstd at a balanced level.
func DefaultConfig() *Config {
	return &Config{Algorithm: AlgorithmZstd, Level: 3}
}

// Compressor compresses and decompresses opaque byte buffers. It is safe
// for concurrent use.
type Compressor struct {
	config  *Config
	zstdEnc *zstd.Encoder
	zstdDec *zstd.Decoder
}

// NewCompressor builds a Compressor for config, or DefaultConfig if nil.
func NewCompressor(config *Config) (*Compressor, error) {
	if config == nil {
		config = DefaultConfig()
	}

	c := &Compressor{config: config}

	if config.Algorithm == AlgorithmZstd {
		level := config.Level
		if level < 1 || level > 19 {
			level = 3
		}
		var err error
		c.zstdEnc, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
		if err != nil {
			return nil, fmt.Errorf("compression: create zstd encoder: %w", err)
		}
		c.zstdDec, err = zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("compression: create zstd decoder: %w", err)
		}
	}

	return c, nil
}

// Compress returns a compressed copy of data. The zero-length input
// compresses to itself.
func (c *Compressor) Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return data, nil
	}
	switch c.config.Algorithm {
	case AlgorithmSnappy:
		return snappy.Encode(nil, data), nil
	case AlgorithmZstd:
		return c.zstdEnc.EncodeAll(data, nil), nil
	default:
		return nil, fmt.Errorf("compression: unsupported algorithm %v", c.config.Algorithm)
	}
}

// Decompress reverses Compress.
func (c *Compressor) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return data, nil
	}
	switch c.config.Algorithm {
	case AlgorithmSnappy:
		decoded, err := snappy.Decode(nil, data)
		if err != nil {
			return nil, fmt.Errorf("compression: decode snappy: %w", err)
		}
		return decoded, nil
	case AlgorithmZstd:
		decoded, err := c.zstdDec.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("compression: decode zstd: %w", err)
		}
		return decoded, nil
	default:
		return nil, fmt.Errorf("compression: unsupported algorithm %v", c.config.Algorithm)
	}
}

// Close releases the zstd encoder/decoder goroutines, if any were started.
func (c *Compressor) Close() error {
	if c.zstdEnc != nil {
		c.zstdEnc.Close()
	}
	if c.zstdDec != nil {
		c.zstdDec.Close()
	}
	return nil
}

// Ratio returns compressedSize/originalSize, or 0 for an empty input.
func Ratio(originalSize, compressedSize int) float64 {
	if originalSize == 0 {
		return 0
	}
	return float64(compressedSize) / float64(originalSize)
}
