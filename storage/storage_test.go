package storage

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

// backendTest exercises the Backend contract shared by every
// implementation.
func backendTest(t *testing.T, b Backend) {
	ctx := context.Background()

	t.Run("open missing", func(t *testing.T) {
		_, err := b.Open(ctx, "nope")
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("put and open", func(t *testing.T) {
		require.NoError(t, b.Put(ctx, "a/one", []byte("hello")))

		data, err := ReadAll(ctx, b, "a/one")
		require.NoError(t, err)
		require.Equal(t, []byte("hello"), data)
	})

	t.Run("create publishes on close", func(t *testing.T) {
		w, err := b.Create(ctx, "a/two")
		require.NoError(t, err)
		_, err = w.Write([]byte("part"))
		require.NoError(t, err)

		ok, err := b.Exists(ctx, "a/two")
		require.NoError(t, err)
		require.False(t, ok, "blob visible before Close")

		_, err = w.Write([]byte("ial"))
		require.NoError(t, err)
		require.NoError(t, w.Sync())
		require.NoError(t, w.Close())

		data, err := ReadAll(ctx, b, "a/two")
		require.NoError(t, err)
		require.Equal(t, []byte("partial"), data)
	})

	t.Run("read range", func(t *testing.T) {
		require.NoError(t, b.Put(ctx, "a/range", []byte("0123456789")))

		blob, err := b.Open(ctx, "a/range")
		require.NoError(t, err)
		defer blob.Close()
		require.EqualValues(t, 10, blob.Size())

		r, err := blob.ReadRange(ctx, 3, 4)
		require.NoError(t, err)
		data, err := io.ReadAll(r)
		require.NoError(t, err)
		require.NoError(t, r.Close())
		require.Equal(t, []byte("3456"), data)

		// Past the end truncates.
		r, err = blob.ReadRange(ctx, 8, 100)
		require.NoError(t, err)
		data, err = io.ReadAll(r)
		require.NoError(t, err)
		require.NoError(t, r.Close())
		require.Equal(t, []byte("89"), data)
	})

	t.Run("list sorted", func(t *testing.T) {
		require.NoError(t, b.Put(ctx, "list/b", []byte("b")))
		require.NoError(t, b.Put(ctx, "list/a", []byte("a")))
		require.NoError(t, b.Put(ctx, "other/c", []byte("c")))

		names, err := b.List(ctx, "list/")
		require.NoError(t, err)
		require.Equal(t, []string{"list/a", "list/b"}, names)
	})

	t.Run("rename prefix", func(t *testing.T) {
		require.NoError(t, b.Put(ctx, "tmp.1/x", []byte("x")))
		require.NoError(t, b.Put(ctx, "tmp.1/sub/y", []byte("y")))

		require.NoError(t, b.Rename(ctx, "tmp.1", "final"))

		ok, err := b.Exists(ctx, "tmp.1")
		require.NoError(t, err)
		require.False(t, ok)

		data, err := ReadAll(ctx, b, "final/sub/y")
		require.NoError(t, err)
		require.Equal(t, []byte("y"), data)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, b.Put(ctx, "del/one", []byte("1")))
		require.NoError(t, b.Delete(ctx, "del/one"))
		require.NoError(t, b.Delete(ctx, "del/one"), "deleting a missing blob must not error")

		_, err := b.Open(ctx, "del/one")
		require.ErrorIs(t, err, ErrNotFound)
	})
}

func TestLocal(t *testing.T) {
	backendTest(t, NewLocal(t.TempDir()))
}

func TestMemory(t *testing.T) {
	backendTest(t, NewMemory())
}

func TestMemoryWriteCount(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.Zero(t, m.WriteCount())
	require.NoError(t, m.Put(ctx, "a", []byte("1")))

	w, err := m.Create(ctx, "b")
	require.NoError(t, err)
	_, err = w.Write([]byte("2"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	require.Equal(t, 2, m.WriteCount())

	// Reads never bump the counter.
	_, err = ReadAll(ctx, m, "a")
	require.NoError(t, err)
	require.Equal(t, 2, m.WriteCount())
}
