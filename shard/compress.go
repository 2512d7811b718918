package shard

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects how a shard's record stream is compressed.
//
// The compression is encoded into the shard filename suffix, so the
// read side can reconstruct filenames and pick the right decompressor
// without opening the file.
type Compression string

const (
	// CompressionNone stores raw record frames.
	CompressionNone Compression = "none"
	// CompressionZstd compresses the record stream with zstandard.
	CompressionZstd Compression = "zstd"
	// CompressionLZ4 compresses the record stream with lz4.
	CompressionLZ4 Compression = "lz4"
)

// Default is the compression used when none is configured.
//
// Persisted datasets are self-describing (the suffix is stored in the
// manifest), so changing the default never breaks existing data.
const Default = CompressionZstd

// Suffix returns the shard filename suffix for this compression.
func (c Compression) Suffix() string {
	switch c {
	case CompressionZstd:
		return "rec-zst"
	case CompressionLZ4:
		return "rec-lz4"
	default:
		return "rec"
	}
}

// Valid reports whether c is a known compression.
func (c Compression) Valid() bool {
	switch c {
	case CompressionNone, CompressionZstd, CompressionLZ4:
		return true
	}
	return false
}

// BySuffix returns the compression identified by a shard filename
// suffix.
func BySuffix(suffix string) (Compression, bool) {
	switch suffix {
	case "rec":
		return CompressionNone, true
	case "rec-zst":
		return CompressionZstd, true
	case "rec-lz4":
		return CompressionLZ4, true
	default:
		return "", false
	}
}

// compressor pairs a writer wrapper with the flush/close handling the
// codec needs.
type compressor interface {
	io.Writer
	Close() error
}

type nopCompressor struct{ io.Writer }

func (nopCompressor) Close() error { return nil }

func (c Compression) newCompressor(w io.Writer) (compressor, error) {
	switch c {
	case CompressionNone:
		return nopCompressor{w}, nil
	case CompressionZstd:
		return zstd.NewWriter(w)
	case CompressionLZ4:
		return lz4.NewWriter(w), nil
	default:
		return nil, fmt.Errorf("unknown compression %q", string(c))
	}
}

func (c Compression) newDecompressor(r io.Reader) (io.Reader, error) {
	switch c {
	case CompressionNone:
		return r, nil
	case CompressionZstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return zr.IOReadCloser(), nil
	case CompressionLZ4:
		return lz4.NewReader(r), nil
	default:
		return nil, fmt.Errorf("unknown compression %q", string(c))
	}
}
