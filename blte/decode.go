package blte

import (
	"bytes"
	"crypto/md5"
	"io"

	"github.com/klauspost/compress/zlib"
	"github.com/ngdp-go/casc/cryptokeys"
	"github.com/ngdp-go/casc/internal/errdefs"
)

// DecodeOptions configures Decode.
type DecodeOptions struct {
	// EKey, if non-nil, is verified against MD5(encoded) before decoding.
	EKey *[16]byte
	// Keys resolves encryption key names for 'E' chunks. May be nil if
	// the stream is known not to contain encrypted chunks.
	Keys *cryptokeys.KeyStore
	// VerifyChecksums enables per-chunk MD5 verification against the
	// header's chunk table.
	VerifyChecksums bool
	// MaxRecursionDepth bounds 'F'/'E' nesting. Zero means
	// DefaultMaxRecursionDepth.
	MaxRecursionDepth int
}

// Decode parses and decodes a complete BLTE stream.
func Decode(encoded []byte, opts DecodeOptions) ([]byte, error) {
	if opts.MaxRecursionDepth == 0 {
		opts.MaxRecursionDepth = DefaultMaxRecursionDepth
	}
	if opts.EKey != nil {
		if err := VerifyEncodingKey(encoded, *opts.EKey); err != nil {
			return nil, err
		}
	}
	return decode(encoded, &opts, 0)
}

func decode(encoded []byte, opts *DecodeOptions, depth int) ([]byte, error) {
	if depth > opts.MaxRecursionDepth {
		return nil, errdefs.ErrCorrupt
	}

	hdr, dataStart, err := ParseHeader(encoded)
	if err != nil {
		return nil, err
	}
	body := encoded[dataStart:]

	if hdr.Single() {
		return decodeSingleChunk(body, opts, depth)
	}

	var out bytes.Buffer
	off := 0
	for i, ci := range hdr.Chunks {
		if off+int(ci.CompressedSize) > len(body) {
			return nil, errdefs.ErrTruncated
		}
		chunkBytes := body[off : off+int(ci.CompressedSize)]
		off += int(ci.CompressedSize)

		if opts.VerifyChecksums {
			sum := md5.Sum(chunkBytes)
			if sum != ci.Checksum {
				return nil, &errdefs.ChecksumMismatch{
					Component: "blte chunk",
					Expected:  ci.Checksum[:],
					Actual:    sum[:],
				}
			}
		}

		decoded, err := decodeChunkBody(chunkBytes, uint32(i), opts, depth)
		if err != nil {
			return nil, err
		}
		if ci.DecompressedSize != 0 && uint32(len(decoded)) != ci.DecompressedSize {
			return nil, &errdefs.SizeMismatch{
				Component: "blte chunk",
				Declared:  int64(ci.DecompressedSize),
				Actual:    int64(len(decoded)),
			}
		}
		out.Write(decoded)
	}
	return out.Bytes(), nil
}

// decodeSingleChunk handles the header-size-0 implicit single-chunk form,
// where the chunk's encoded size is simply the remainder of the stream
// and its decompressed size is unknown until the mode declares it.
func decodeSingleChunk(body []byte, opts *DecodeOptions, depth int) ([]byte, error) {
	return decodeChunkBody(body, 0, opts, depth)
}

// decodeChunkBody dispatches on the leading mode byte of a chunk
// (chunkBytes[0]) and returns the fully decoded bytes for that chunk,
// recursing through 'F' and 'E' wrapping as needed.
func decodeChunkBody(chunkBytes []byte, chunkIndex uint32, opts *DecodeOptions, depth int) ([]byte, error) {
	if len(chunkBytes) < 1 {
		return nil, errdefs.ErrTruncated
	}
	mode := Mode(chunkBytes[0])
	rest := chunkBytes[1:]

	switch mode {
	case ModeRaw:
		out := make([]byte, len(rest))
		copy(out, rest)
		return out, nil

	case ModeZlib:
		zr, err := zlib.NewReader(bytes.NewReader(rest))
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		out, err := io.ReadAll(zr)
		if err != nil {
			return nil, err
		}
		return out, nil

	case ModeLZ4:
		return decodeLZ4(rest)

	case ModeRecursive:
		if depth+1 > opts.MaxRecursionDepth {
			return nil, errdefs.ErrCorrupt
		}
		return decode(rest, opts, depth+1)

	case ModeEncrypted:
		if depth+1 > opts.MaxRecursionDepth {
			return nil, errdefs.ErrCorrupt
		}
		return decodeEncryptedChunk(rest, chunkIndex, opts, depth+1)

	default:
		return nil, &errdefs.UnknownMode{Context: "blte chunk", Mode: byte(mode)}
	}
}

func decodeEncryptedChunk(rest []byte, chunkIndex uint32, opts *DecodeOptions, depth int) ([]byte, error) {
	if len(rest) < 2 {
		return nil, errdefs.ErrTruncated
	}
	keyNameLen := int(rest[0])
	if keyNameLen != 8 || len(rest) < 1+keyNameLen+1 {
		return nil, errdefs.ErrTruncated
	}
	keyNameBytes := rest[1 : 1+keyNameLen]
	p := 1 + keyNameLen

	ivLen := int(rest[p])
	p++
	if ivLen > 8 || len(rest) < p+ivLen+1 {
		return nil, errdefs.ErrTruncated
	}
	iv := rest[p : p+ivLen]
	p += ivLen

	encType := cryptokeys.Type(rest[p])
	p++
	ciphertext := rest[p:]

	keyName := cryptokeys.KeyNameFromBytes(keyNameBytes)
	if opts.Keys == nil {
		return nil, &errdefs.KeyNotFound{KeyName: keyName}
	}
	key, ok := opts.Keys.Lookup(keyName)
	if !ok {
		return nil, &errdefs.KeyNotFound{KeyName: keyName}
	}

	effIV := cryptokeys.EffectiveIV(iv, chunkIndex)
	plaintext, err := cryptokeys.Decrypt(encType, key, effIV, ciphertext)
	if err != nil {
		return nil, err
	}

	// The decrypted plaintext is itself a chunk body beginning with its
	// own mode byte (e.g. a further 'Z' or 'N' layer).
	return decodeChunkBody(plaintext, chunkIndex, opts, depth)
}
