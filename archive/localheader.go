// Package archive implements CASC's fixed-size data.NNN archive files:
// a segment header followed by concatenated (LocalHeader, BLTE payload)
// entries, appended to while thawed and immutable once frozen.
package archive

import (
	"encoding/binary"

	"github.com/ngdp-go/casc/casckey"
	"github.com/ngdp-go/casc/internal/errdefs"
)

// LocalHeaderSize is the fixed size of the header preceding every
// archive entry: ekey_md5[16] || size_le_u32 || flags_le_u16 ||
// checksum_be_u64.
const LocalHeaderSize = 30

// SegmentHeaderSize is the opaque prefix reserved at the start of every
// archive file.
const SegmentHeaderSize = 0x1E0

// MaxSegments is the number of archive IDs the store will allocate
// (0 through MaxSegments-1).
const MaxSegments = 0x3FF

// LocalHeader precedes every entry stored in an archive.
type LocalHeader struct {
	EKey     casckey.EncodingKey
	Size     uint32
	Flags    uint16
	Checksum uint64
}

// ErrUnrecognizedFlags is a non-fatal, logged-not-returned condition: the
// local header's Flags field is non-zero but this implementation does
// not interpret any value beyond "0 is ordinary".
const ErrUnrecognizedFlags = localHeaderError("archive: local header flags are non-zero and uninterpreted")

type localHeaderError string

func (e localHeaderError) Error() string { return string(e) }

// MarshalLocalHeader serializes a LocalHeader to its 30-byte wire form.
func MarshalLocalHeader(h LocalHeader) [LocalHeaderSize]byte {
	var buf [LocalHeaderSize]byte
	copy(buf[0:16], h.EKey[:])
	binary.LittleEndian.PutUint32(buf[16:20], h.Size)
	binary.LittleEndian.PutUint16(buf[20:22], h.Flags)
	binary.BigEndian.PutUint64(buf[22:30], h.Checksum)
	return buf
}

// UnmarshalLocalHeader parses a 30-byte local header.
func UnmarshalLocalHeader(buf []byte) (LocalHeader, error) {
	if len(buf) < LocalHeaderSize {
		return LocalHeader{}, errdefs.ErrTruncated
	}
	var h LocalHeader
	copy(h.EKey[:], buf[0:16])
	h.Size = binary.LittleEndian.Uint32(buf[16:20])
	h.Flags = binary.LittleEndian.Uint16(buf[20:22])
	h.Checksum = binary.BigEndian.Uint64(buf[22:30])
	return h, nil
}
