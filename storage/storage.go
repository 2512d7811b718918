// Package storage abstracts the blob storage a dataset is
// materialized onto.
//
// Backends may be local disk or remote object storage; the build
// pipeline only relies on Create/Put being atomic per blob and on
// Rename moving a whole key prefix, which is how a finished temp
// directory is promoted into place.
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations should return an error that satisfies
// `errors.Is(err, ErrNotFound)`.
var ErrNotFound = errors.New("blob not found")

// Backend is an abstraction for reading and writing immutable data
// blobs under slash-separated keys.
type Backend interface {
	// Open opens a blob for reading.
	Open(ctx context.Context, name string) (Blob, error)

	// Create creates a new blob for streaming writes. The blob
	// becomes visible atomically when Close returns.
	Create(ctx context.Context, name string) (WritableBlob, error)

	// Put writes a blob atomically.
	Put(ctx context.Context, name string, data []byte) error

	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error

	// List returns all blob names with the given key prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)

	// Rename atomically moves every blob under oldPrefix to
	// newPrefix. Local backends rename the directory; object stores
	// emulate the move with server-side copy plus delete.
	Rename(ctx context.Context, oldPrefix, newPrefix string) error

	// Exists reports whether any blob exists at or under the given
	// key.
	Exists(ctx context.Context, prefix string) (bool, error)
}

// Blob is a read-only handle to a data blob.
type Blob interface {
	io.Closer

	// Size returns the size of the blob in bytes.
	Size() int64

	// ReadRange returns a reader over [off, off+length) of the blob,
	// truncated at the blob's end.
	ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error)
}

// WritableBlob is a write-once handle to a new blob.
type WritableBlob interface {
	io.Writer

	// Sync flushes buffered data to durable storage where the
	// backend supports it.
	Sync() error

	// Close finishes the write and publishes the blob.
	Close() error
}

// ReadAll reads an entire blob.
func ReadAll(ctx context.Context, b Backend, name string) ([]byte, error) {
	blob, err := b.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer blob.Close()

	r, err := blob.ReadRange(ctx, 0, blob.Size())
	if err != nil {
		return nil, err
	}
	defer r.Close()

	return io.ReadAll(r)
}
