package shard

import (
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hupe1980/shardset/storage"
)

func writeShard(t *testing.T, backend storage.Backend, path string, payloads [][]byte, optFns ...func(o *Options)) {
	t.Helper()
	ctx := context.Background()

	blob, err := backend.Create(ctx, path)
	require.NoError(t, err)

	w, err := NewWriter(blob, optFns...)
	require.NoError(t, err)
	for _, p := range payloads {
		require.NoError(t, w.Append(ctx, p))
	}
	require.Equal(t, len(payloads), w.Rows())
	require.NoError(t, w.Close())
}

func readShard(t *testing.T, backend storage.Backend, path string, compression Compression, mask []bool) [][]byte {
	t.Helper()
	ctx := context.Background()

	r, err := NewReader(ctx, backend, path, compression)
	require.NoError(t, err)
	defer r.Close()
	if mask != nil {
		r = r.WithMask(mask)
	}

	var out [][]byte
	for {
		payload, err := r.Next()
		if err == io.EOF {
			return out
		}
		require.NoError(t, err)
		out = append(out, payload)
	}
}

func TestWriterReaderRoundtrip(t *testing.T) {
	for _, compression := range []Compression{CompressionNone, CompressionZstd, CompressionLZ4} {
		t.Run(string(compression), func(t *testing.T) {
			backend := storage.NewMemory()

			payloads := make([][]byte, 100)
			for i := range payloads {
				payloads[i] = []byte(fmt.Sprintf(`{"id":%d,"label":"row-%d"}`, i, i))
			}
			writeShard(t, backend, "s", payloads, func(o *Options) {
				o.Compression = compression
			})

			got := readShard(t, backend, "s", compression, nil)
			require.Equal(t, payloads, got)
		})
	}
}

func TestWriterEmptyShard(t *testing.T) {
	backend := storage.NewMemory()
	writeShard(t, backend, "empty", nil)

	got := readShard(t, backend, "empty", Default, nil)
	require.Empty(t, got)
}

func TestWriterUnknownCompression(t *testing.T) {
	backend := storage.NewMemory()
	blob, err := backend.Create(context.Background(), "s")
	require.NoError(t, err)

	_, err = NewWriter(blob, func(o *Options) { o.Compression = "gzip" })
	require.Error(t, err)
}

func TestWriterAppendAfterClose(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemory()

	blob, err := backend.Create(ctx, "s")
	require.NoError(t, err)
	w, err := NewWriter(blob)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close(), "double close is a no-op")

	require.ErrorIs(t, w.Append(ctx, []byte("x")), io.ErrClosedPipe)
}

func TestWriterThrottle(t *testing.T) {
	backend := storage.NewMemory()

	// A generous limit must not change the written bytes.
	payloads := [][]byte{[]byte("a"), []byte("bb"), []byte("ccc")}
	writeShard(t, backend, "s", payloads, func(o *Options) {
		o.Compression = CompressionNone
		o.IOLimitBytesPerSec = 1 << 20
	})

	got := readShard(t, backend, "s", CompressionNone, nil)
	require.Equal(t, payloads, got)
}

func TestReaderWithMask(t *testing.T) {
	backend := storage.NewMemory()

	payloads := [][]byte{[]byte("r0"), []byte("r1"), []byte("r2"), []byte("r3"), []byte("r4")}
	writeShard(t, backend, "s", payloads)

	got := readShard(t, backend, "s", Default, []bool{false, true, false, true, false})
	require.Equal(t, [][]byte{[]byte("r1"), []byte("r3")}, got)

	got = readShard(t, backend, "s", Default, []bool{false, false, false, false, false})
	require.Empty(t, got)
}

func TestReaderCorruptRecord(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemory()

	writeShard(t, backend, "s", [][]byte{[]byte("payload")}, func(o *Options) {
		o.Compression = CompressionNone
	})

	data, err := storage.ReadAll(ctx, backend, "s")
	require.NoError(t, err)

	// Flip one payload byte; the frame checksum must catch it.
	data[len(data)-1] ^= 0xff
	require.NoError(t, backend.Put(ctx, "s", data))

	r, err := NewReader(ctx, backend, "s", CompressionNone)
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Next()
	require.ErrorIs(t, err, ErrInvalidCRC)
}

func TestReaderTruncatedShard(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemory()

	writeShard(t, backend, "s", [][]byte{[]byte("payload")}, func(o *Options) {
		o.Compression = CompressionNone
	})

	data, err := storage.ReadAll(ctx, backend, "s")
	require.NoError(t, err)
	require.NoError(t, backend.Put(ctx, "s", data[:len(data)-3]))

	r, err := NewReader(ctx, backend, "s", CompressionNone)
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Next()
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestRowSelection(t *testing.T) {
	sel := RowSelection([]bool{true, false, true, true})
	require.EqualValues(t, 3, sel.GetCardinality())
	require.True(t, sel.ContainsInt(0))
	require.False(t, sel.ContainsInt(1))
	require.True(t, sel.ContainsInt(3))
}
