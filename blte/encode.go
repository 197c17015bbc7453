package blte

import (
	"bytes"
	"crypto/md5"
	"encoding/binary"
	"fmt"

	"github.com/klauspost/compress/zlib"
)

// EncodeOptions configures Encode.
type EncodeOptions struct {
	// ChunkSize is the target decoded size of each chunk. Typically
	// 256 KiB. A plaintext no larger than ChunkSize always produces the
	// single-chunk implicit form.
	ChunkSize int
	// Mode selects the per-chunk compression: ModeRaw or ModeZlib or
	// ModeLZ4. ModeRecursive/ModeEncrypted are not encoder targets.
	Mode Mode
}

// Encode produces a self-consistent BLTE stream from plaintext. The
// EncodingKey of the result is MD5(result), computed by the caller via
// casckey.HashEncoded.
func Encode(plaintext []byte, opts EncodeOptions) ([]byte, error) {
	if opts.ChunkSize <= 0 {
		return nil, fmt.Errorf("blte: chunk size must be positive")
	}
	switch opts.Mode {
	case ModeRaw, ModeZlib, ModeLZ4:
	default:
		return nil, fmt.Errorf("blte: unsupported encode mode %q", rune(opts.Mode))
	}

	var plains [][]byte
	if len(plaintext) == 0 {
		plains = [][]byte{{}}
	} else {
		for off := 0; off < len(plaintext); off += opts.ChunkSize {
			end := off + opts.ChunkSize
			if end > len(plaintext) {
				end = len(plaintext)
			}
			plains = append(plains, plaintext[off:end])
		}
	}

	encodedChunks := make([][]byte, len(plains))
	for i, p := range plains {
		enc, err := encodeChunk(p, opts.Mode)
		if err != nil {
			return nil, err
		}
		encodedChunks[i] = enc
	}

	if len(encodedChunks) == 1 {
		var out bytes.Buffer
		out.Write(Magic[:])
		var hdrSize [4]byte
		binary.BigEndian.PutUint32(hdrSize[:], 0)
		out.Write(hdrSize[:])
		out.Write(encodedChunks[0])
		return out.Bytes(), nil
	}

	const entrySize = 4 + 4 + 16
	headerSize := 12 + entrySize*len(encodedChunks)

	var out bytes.Buffer
	out.Write(Magic[:])
	var hdrSizeBuf [4]byte
	binary.BigEndian.PutUint32(hdrSizeBuf[:], uint32(headerSize))
	out.Write(hdrSizeBuf[:])
	out.WriteByte(0x0F) // flags, not semantically interpreted
	out.WriteByte(byte(len(encodedChunks) >> 16))
	out.WriteByte(byte(len(encodedChunks) >> 8))
	out.WriteByte(byte(len(encodedChunks)))

	for i, enc := range encodedChunks {
		var e [entrySize]byte
		binary.BigEndian.PutUint32(e[0:4], uint32(len(enc)))
		binary.BigEndian.PutUint32(e[4:8], uint32(len(plains[i])))
		sum := md5.Sum(enc)
		copy(e[8:24], sum[:])
		out.Write(e[:])
	}
	for _, enc := range encodedChunks {
		out.Write(enc)
	}
	return out.Bytes(), nil
}

func encodeChunk(plain []byte, mode Mode) ([]byte, error) {
	var body bytes.Buffer
	switch mode {
	case ModeRaw:
		body.Write(plain)
	case ModeZlib:
		zw := zlib.NewWriter(&body)
		if _, err := zw.Write(plain); err != nil {
			return nil, err
		}
		if err := zw.Close(); err != nil {
			return nil, err
		}
	case ModeLZ4:
		body.Write(encodeLZ4(plain))
	}
	out := make([]byte, 0, body.Len()+1)
	out = append(out, byte(mode))
	out = append(out, body.Bytes()...)
	return out, nil
}
