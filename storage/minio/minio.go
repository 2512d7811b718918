// Package minio implements storage.Backend for MinIO and other
// S3-compatible object stores.
//
// Object stores have no atomic directory rename, so Rename is
// emulated with server-side copy plus delete. The build pipeline
// tolerates this because a dataset is only advertised through its
// manifest, which is written last.
package minio

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/minio/minio-go/v7"

	"github.com/hupe1980/shardset/storage"
)

// Backend implements storage.Backend for MinIO.
type Backend struct {
	client *minio.Client
	bucket string
	prefix string
}

// New creates a MinIO backend. rootPrefix is prepended to all keys
// (e.g. "datasets/").
func New(client *minio.Client, bucket, rootPrefix string) *Backend {
	return &Backend{
		client: client,
		bucket: bucket,
		prefix: rootPrefix,
	}
}

func (b *Backend) key(name string) string {
	return path.Join(b.prefix, name)
}

func isNotFound(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.Code == "NotFound"
}

// Open opens an existing blob for reading.
func (b *Backend) Open(ctx context.Context, name string) (storage.Blob, error) {
	key := b.key(name)

	info, err := b.client.StatObject(ctx, b.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}

	return &minioBlob{
		client: b.client,
		bucket: b.bucket,
		key:    key,
		size:   info.Size,
	}, nil
}

// Create creates a new blob for streaming writes.
func (b *Backend) Create(ctx context.Context, name string) (storage.WritableBlob, error) {
	key := b.key(name)
	pr, pw := io.Pipe()

	blob := &minioWritableBlob{
		pw:   pw,
		done: make(chan error, 1),
	}

	go func() {
		_, err := b.client.PutObject(ctx, b.bucket, key, pr, -1, minio.PutObjectOptions{})
		_ = pr.CloseWithError(err)
		blob.done <- err
	}()

	return blob, nil
}

// Put writes a blob atomically.
func (b *Backend) Put(ctx context.Context, name string, data []byte) error {
	key := b.key(name)
	_, err := b.client.PutObject(ctx, b.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{})
	return err
}

// Delete removes a blob.
func (b *Backend) Delete(ctx context.Context, name string) error {
	err := b.client.RemoveObject(ctx, b.bucket, b.key(name), minio.RemoveObjectOptions{})
	if err != nil && !isNotFound(err) {
		return err
	}
	return nil
}

// List returns all blob names with the given prefix, sorted.
func (b *Backend) List(ctx context.Context, prefix string) ([]string, error) {
	fullPrefix := b.key(prefix)

	var names []string
	for obj := range b.client.ListObjects(ctx, b.bucket, minio.ListObjectsOptions{
		Prefix:    fullPrefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		name := strings.TrimPrefix(obj.Key, b.prefix)
		name = strings.TrimPrefix(name, "/")
		if name != "" {
			names = append(names, name)
		}
	}

	sort.Strings(names)
	return names, nil
}

// Rename moves every object under oldPrefix to newPrefix via
// server-side copy plus delete.
func (b *Backend) Rename(ctx context.Context, oldPrefix, newPrefix string) error {
	names, err := b.List(ctx, oldPrefix)
	if err != nil {
		return err
	}
	for _, name := range names {
		newName := newPrefix + strings.TrimPrefix(name, oldPrefix)
		_, err := b.client.CopyObject(ctx,
			minio.CopyDestOptions{Bucket: b.bucket, Object: b.key(newName)},
			minio.CopySrcOptions{Bucket: b.bucket, Object: b.key(name)},
		)
		if err != nil {
			return err
		}
		if err := b.Delete(ctx, name); err != nil {
			return err
		}
	}
	return nil
}

// Exists reports whether any object lives at or under the key.
func (b *Backend) Exists(ctx context.Context, prefix string) (bool, error) {
	_, err := b.client.StatObject(ctx, b.bucket, b.key(prefix), minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if !isNotFound(err) {
		return false, err
	}

	for obj := range b.client.ListObjects(ctx, b.bucket, minio.ListObjectsOptions{
		Prefix:    b.key(prefix) + "/",
		MaxKeys:   1,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return false, obj.Err
		}
		return true, nil
	}
	return false, nil
}

type minioBlob struct {
	client *minio.Client
	bucket string
	key    string
	size   int64
}

func (b *minioBlob) Size() int64 { return b.size }

func (b *minioBlob) Close() error { return nil }

func (b *minioBlob) ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error) {
	if off >= b.size {
		return io.NopCloser(bytes.NewReader(nil)), nil
	}
	end := off + length - 1
	if end >= b.size {
		end = b.size - 1
	}

	opts := minio.GetObjectOptions{}
	if err := opts.SetRange(off, end); err != nil {
		return nil, err
	}
	return b.client.GetObject(ctx, b.bucket, b.key, opts)
}

type minioWritableBlob struct {
	pw       *io.PipeWriter
	done     chan error
	finished atomic.Bool
}

func (w *minioWritableBlob) Write(p []byte) (int, error) {
	return w.pw.Write(p)
}

func (w *minioWritableBlob) Sync() error {
	return nil // Streaming upload, no sync needed
}

func (w *minioWritableBlob) Close() error {
	if !w.finished.CompareAndSwap(false, true) {
		return errors.New("already closed")
	}
	if err := w.pw.Close(); err != nil {
		return err
	}
	return <-w.done
}
