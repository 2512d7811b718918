package shard

import (
	"context"
	"io"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/shardset/storage"
)

// Reader iterates the records of one shard file in row order,
// optionally restricted to a row selection.
type Reader struct {
	blob      storage.Blob
	stream    io.Reader
	closer    io.Closer
	selection *roaring.Bitmap // nil means all rows
	row       int
}

// NewReader opens a shard for sequential reading.
func NewReader(ctx context.Context, backend storage.Backend, path string, compression Compression) (*Reader, error) {
	blob, err := backend.Open(ctx, path)
	if err != nil {
		return nil, err
	}

	rc, err := blob.ReadRange(ctx, 0, blob.Size())
	if err != nil {
		_ = blob.Close()
		return nil, err
	}

	stream, err := compression.newDecompressor(rc)
	if err != nil {
		_ = rc.Close()
		_ = blob.Close()
		return nil, err
	}

	return &Reader{
		blob:   blob,
		stream: stream,
		closer: rc,
	}, nil
}

// WithMask restricts the reader to the rows where mask is true. The
// mask must have one entry per row of the shard, as produced by
// split.Range.Mask.
func (r *Reader) WithMask(mask []bool) *Reader {
	r.selection = RowSelection(mask)
	return r
}

// Next returns the next included record. It returns io.EOF once the
// shard is exhausted.
func (r *Reader) Next() ([]byte, error) {
	for {
		payload, err := decodeRecord(r.stream)
		if err != nil {
			return nil, err
		}
		row := r.row
		r.row++
		if r.selection == nil || r.selection.ContainsInt(row) {
			return payload, nil
		}
	}
}

// Close releases the underlying blob.
func (r *Reader) Close() error {
	_ = r.closer.Close()
	return r.blob.Close()
}

// RowSelection converts a per-row boolean mask into a bitmap of
// included row indices.
func RowSelection(mask []bool) *roaring.Bitmap {
	sel := roaring.New()
	for i, ok := range mask {
		if ok {
			sel.AddInt(i)
		}
	}
	return sel
}
