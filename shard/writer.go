package shard

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"golang.org/x/time/rate"

	"github.com/hupe1980/shardset/storage"
)

// Options configure a shard Writer.
type Options struct {
	// Compression selects the record stream codec.
	Compression Compression

	// BufferSize is the size of the write buffer in bytes.
	BufferSize int

	// IOLimitBytesPerSec throttles shard writes. If 0, unlimited.
	IOLimitBytesPerSec int64
}

// DefaultOptions are the options used when none are given.
var DefaultOptions = Options{
	Compression: Default,
	BufferSize:  1 << 20,
}

// Writer writes one shard file: a buffered, optionally compressed and
// throttled stream of framed records. Shards are write-once; after
// Close the file must never be appended to.
type Writer struct {
	blob       storage.WritableBlob
	buf        *bufio.Writer
	compressor compressor
	limiter    *rate.Limiter
	rows       int
	closed     bool
}

// NewWriter creates a Writer on top of a writable blob.
func NewWriter(blob storage.WritableBlob, optFns ...func(o *Options)) (*Writer, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if !opts.Compression.Valid() {
		return nil, fmt.Errorf("unknown compression %q", string(opts.Compression))
	}

	buf := bufio.NewWriterSize(blob, opts.BufferSize)
	comp, err := opts.Compression.newCompressor(buf)
	if err != nil {
		return nil, err
	}

	w := &Writer{
		blob:       blob,
		buf:        buf,
		compressor: comp,
	}
	if opts.IOLimitBytesPerSec > 0 {
		w.limiter = rate.NewLimiter(rate.Limit(opts.IOLimitBytesPerSec), int(opts.IOLimitBytesPerSec))
	}
	return w, nil
}

// Append writes one encoded example to the shard.
func (w *Writer) Append(ctx context.Context, payload []byte) error {
	if w.closed {
		return io.ErrClosedPipe
	}
	if w.limiter != nil {
		if err := w.limiter.WaitN(ctx, len(payload)); err != nil {
			return err
		}
	}
	if err := encodeRecord(w.compressor, payload); err != nil {
		return err
	}
	w.rows++
	return nil
}

// Rows returns the number of records appended so far.
func (w *Writer) Rows() int { return w.rows }

// Close flushes all buffers and publishes the shard.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.compressor.Close(); err != nil {
		return err
	}
	if err := w.buf.Flush(); err != nil {
		return err
	}
	if err := w.blob.Sync(); err != nil {
		return err
	}
	return w.blob.Close()
}
