// Package blte implements CASC's BLTE container format: a magic-prefixed,
// optionally chunked, optionally compressed and/or encrypted framing of a
// single file's bytes, parsed and emitted bit-exactly.
package blte

import (
	"crypto/md5"
	"encoding/binary"
	"fmt"

	"github.com/ngdp-go/casc/internal/errdefs"
)

// Magic is the four-byte signature every BLTE stream begins with.
var Magic = [4]byte{'B', 'L', 'T', 'E'}

// Mode is the first byte of a chunk's compressed payload, identifying
// how the rest of the chunk is encoded.
type Mode byte

const (
	ModeRaw        Mode = 'N' // verbatim bytes
	ModeZlib       Mode = 'Z' // zlib-compressed
	ModeLZ4        Mode = '4' // LZ4 block or framed form
	ModeRecursive  Mode = 'F' // nested BLTE stream
	ModeEncrypted  Mode = 'E' // encrypted chunk body
)

// DefaultMaxRecursionDepth bounds 'F'/'E' nesting during decode; 4 is
// sufficient for every observed stream.
const DefaultMaxRecursionDepth = 4

// ChunkInfo describes one entry of the BLTE header's chunk table.
type ChunkInfo struct {
	CompressedSize   uint32
	DecompressedSize uint32
	Checksum         [16]byte
}

// Header is a parsed BLTE header. HeaderSize == 0 means the stream uses
// the single-chunk implicit form: there is no chunk table, and the
// single chunk's encoded size is whatever remains in the stream.
type Header struct {
	HeaderSize uint32
	Flags      uint8
	Chunks     []ChunkInfo
}

// Single reports whether the stream is the header-size-0 implicit
// single-chunk form.
func (h *Header) Single() bool { return h.HeaderSize == 0 }

// ParseHeader parses a BLTE header from the start of data and returns
// the header plus the byte offset at which chunk data begins.
func ParseHeader(data []byte) (*Header, int, error) {
	if len(data) < 8 {
		return nil, 0, errdefs.ErrTruncated
	}
	var magic [4]byte
	copy(magic[:], data[:4])
	if magic != Magic {
		return nil, 0, errdefs.ErrInvalidMagic
	}
	headerSize := binary.BigEndian.Uint32(data[4:8])
	if headerSize == 0 {
		return &Header{HeaderSize: 0}, 8, nil
	}
	if int(headerSize) > len(data) {
		return nil, 0, errdefs.ErrTruncated
	}
	if len(data) < 12 {
		return nil, 0, errdefs.ErrTruncated
	}
	flags := data[8]
	chunkCount := uint32(data[9])<<16 | uint32(data[10])<<8 | uint32(data[11])
	if chunkCount < 1 {
		return nil, 0, fmt.Errorf("blte: chunk count must be >= 1, got %d", chunkCount)
	}

	const entrySize = 4 + 4 + 16
	off := 12
	need := int(chunkCount) * entrySize
	if off+need > len(data) {
		return nil, 0, errdefs.ErrTruncated
	}

	chunks := make([]ChunkInfo, chunkCount)
	for i := range chunks {
		e := data[off : off+entrySize]
		chunks[i].CompressedSize = binary.BigEndian.Uint32(e[0:4])
		chunks[i].DecompressedSize = binary.BigEndian.Uint32(e[4:8])
		copy(chunks[i].Checksum[:], e[8:24])
		off += entrySize
	}

	if uint32(off) != headerSize {
		return nil, 0, fmt.Errorf("blte: header size %d does not match parsed header length %d", headerSize, off)
	}

	var sumCompressed int64
	for _, c := range chunks {
		sumCompressed += int64(c.CompressedSize)
	}
	if int64(headerSize)+sumCompressed != int64(len(data)) {
		return nil, 0, &errdefs.SizeMismatch{
			Component: "blte stream",
			Declared:  int64(headerSize) + sumCompressed,
			Actual:    int64(len(data)),
		}
	}

	return &Header{HeaderSize: headerSize, Flags: flags, Chunks: chunks}, off, nil
}

// VerifyEncodingKey checks that the MD5 of encoded equals ekey.
func VerifyEncodingKey(encoded []byte, ekey [16]byte) error {
	sum := md5.Sum(encoded)
	if sum != ekey {
		return &errdefs.ChecksumMismatch{Component: "blte stream EKey", Expected: ekey[:], Actual: sum[:]}
	}
	return nil
}
