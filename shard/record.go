// Package shard implements the physical shard file format: a stream
// of CRC-framed, length-prefixed encoded examples, optionally
// compressed, written once and never mutated.
package shard

import (
	"encoding/binary"
	"errors"
	"hash/crc32"
	"io"
)

var (
	// ErrInvalidCRC is returned when a record fails its checksum.
	ErrInvalidCRC = errors.New("invalid shard record checksum")
	// ErrRecordTooLarge is returned for records above the frame limit.
	ErrRecordTooLarge = errors.New("shard record too large")
)

// maxRecordSize bounds a single encoded example. Shards are loaded
// sequentially, so the limit only guards against corrupt length
// prefixes.
const maxRecordSize = 1 << 30

// Record frame layout:
// [CRC32: 4 bytes] [Length: 4 bytes] [Payload: Length bytes]
// The CRC covers the length prefix and the payload.

// encodeRecord writes one framed payload to w.
func encodeRecord(w io.Writer, payload []byte) error {
	if len(payload) > maxRecordSize {
		return ErrRecordTooLarge
	}

	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(payload)))

	crc := crc32.NewIEEE()
	crc.Write(lenBuf[:])
	crc.Write(payload)

	var crcBuf [4]byte
	binary.LittleEndian.PutUint32(crcBuf[:], crc.Sum32())

	if _, err := w.Write(crcBuf[:]); err != nil {
		return err
	}
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// decodeRecord reads one framed payload from r. It returns io.EOF at
// a clean end of stream.
func decodeRecord(r io.Reader) ([]byte, error) {
	var crcBuf [4]byte
	if _, err := io.ReadFull(r, crcBuf[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}
	checksum := binary.LittleEndian.Uint32(crcBuf[:])

	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, io.ErrUnexpectedEOF
	}
	length := binary.LittleEndian.Uint32(lenBuf[:])
	if length > maxRecordSize {
		return nil, ErrRecordTooLarge
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, io.ErrUnexpectedEOF
	}

	crc := crc32.NewIEEE()
	crc.Write(lenBuf[:])
	crc.Write(payload)
	if crc.Sum32() != checksum {
		return nil, ErrInvalidCRC
	}

	return payload, nil
}
