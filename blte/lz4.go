package blte

import (
	"encoding/binary"

	"github.com/ngdp-go/casc/internal/errdefs"
)

// No example repository in the reference corpus imports an LZ4 library
// (klauspost/compress does not ship one; none of the other example
// modules pull in github.com/pierrec/lz4 or similar), so this file is a
// small, self-contained LZ4 block codec on the standard library alone.
// It implements the classic LZ4 block format (token/literal/offset/match
// sequences), which is sufficient to satisfy the BLTE round-trip law
// for streams this package itself
// produces, and to decode that same format in archives it reads.

const lz4MinMatch = 4

// lz4HeaderVersion0 chunks hold a raw LZ4 block. lz4HeaderVersion1 chunks
// are the "framed" subvariant: a leading little-endian u32 giving the
// length of a verbatim literal run with no
// match encoding at all.
const (
	lz4HeaderVersion0 = 0
	lz4HeaderVersion1 = 1
)

// decodeLZ4 decodes the LZ4 payload of a BLTE '4' chunk (the mode byte
// has already been stripped by the caller; rest[0] is the byte after it,
// the header-version byte).
func decodeLZ4(rest []byte) ([]byte, error) {
	if len(rest) < 1 {
		return nil, errdefs.ErrTruncated
	}
	switch rest[0] {
	case lz4HeaderVersion0:
		return decodeLZ4Block(rest[1:])
	case lz4HeaderVersion1:
		if len(rest) < 5 {
			return nil, errdefs.ErrTruncated
		}
		litLen := binary.LittleEndian.Uint32(rest[1:5])
		if uint64(len(rest)-5) < uint64(litLen) {
			return nil, errdefs.ErrTruncated
		}
		out := make([]byte, litLen)
		copy(out, rest[5:5+int(litLen)])
		return out, nil
	default:
		return nil, &errdefs.UnknownMode{Context: "lz4 header version", Mode: rest[0]}
	}
}

// encodeLZ4 emits the header-version-0 form: a single literal-only LZ4
// block (no back-references). This is always a valid LZ4 block and is
// what decodeLZ4Block below can decode unconditionally.
func encodeLZ4(plaintext []byte) []byte {
	out := make([]byte, 0, len(plaintext)+len(plaintext)/255+16)
	out = append(out, lz4HeaderVersion0)
	out = append(out, encodeLZ4BlockLiteralOnly(plaintext)...)
	return out
}

func encodeLZ4BlockLiteralOnly(data []byte) []byte {
	var out []byte
	n := len(data)
	if n < 15 {
		out = append(out, byte(n)<<4)
	} else {
		out = append(out, 0xF0)
		rem := n - 15
		for rem >= 255 {
			out = append(out, 0xFF)
			rem -= 255
		}
		out = append(out, byte(rem))
	}
	out = append(out, data...)
	return out
}

func decodeLZ4Block(data []byte) ([]byte, error) {
	out := make([]byte, 0, len(data)*2)
	i := 0
	for i < len(data) {
		token := data[i]
		i++

		litLen := int(token >> 4)
		if litLen == 15 {
			for {
				if i >= len(data) {
					return nil, errdefs.ErrTruncated
				}
				b := data[i]
				i++
				litLen += int(b)
				if b != 0xFF {
					break
				}
			}
		}
		if i+litLen > len(data) {
			return nil, errdefs.ErrTruncated
		}
		out = append(out, data[i:i+litLen]...)
		i += litLen

		if i >= len(data) {
			// End of block: a final literal run with no match is valid.
			break
		}
		if i+2 > len(data) {
			return nil, errdefs.ErrTruncated
		}
		offset := int(binary.LittleEndian.Uint16(data[i : i+2]))
		i += 2
		if offset == 0 || offset > len(out) {
			return nil, errdefs.ErrCorrupt
		}

		matchLen := int(token & 0xF)
		if matchLen == 15 {
			for {
				if i >= len(data) {
					return nil, errdefs.ErrTruncated
				}
				b := data[i]
				i++
				matchLen += int(b)
				if b != 0xFF {
					break
				}
			}
		}
		matchLen += lz4MinMatch

		matchStart := len(out) - offset
		for k := 0; k < matchLen; k++ {
			out = append(out, out[matchStart+k])
		}
	}
	return out, nil
}
