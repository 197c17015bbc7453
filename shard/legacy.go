package shard

import (
	"encoding/binary"

	"github.com/ngdp-go/casc/casckey"
	"github.com/ngdp-go/casc/internal/errdefs"
)

// parseLegacyV1 reads the version-1 shard layout: a flat, sorted run of
// entries with no block structure or per-block checksum. Whether any
// live installation still produces this format is an open question
//; readers must still tolerate it.
func parseLegacyV1(data []byte, _ bool) (*Index, error) {
	const legacyHeaderLen = 1 + 1 + 1 + 1 // version, offsetBits, sizeBytes(unused), keyBytes
	if len(data) < legacyHeaderLen {
		return nil, errdefs.ErrTruncated
	}
	offsetBits := data[1]
	keyBytes := data[3]
	if keyBytes != entryKeyBytes {
		return nil, errdefs.ErrCorrupt
	}

	rest := data[legacyHeaderLen:]
	if len(rest)%entrySize != 0 {
		return nil, errdefs.ErrTruncated
	}
	count := len(rest) / entrySize
	entries := make([]Entry, count)
	for i := 0; i < count; i++ {
		e := rest[i*entrySize : (i+1)*entrySize]
		var prefix casckey.EKeyPrefix
		copy(prefix[:], e[:entryKeyBytes])
		var locBuf [8]byte
		copy(locBuf[8-entryLocBytes:], e[entryKeyBytes:entryKeyBytes+entryLocBytes])
		packed := binary.BigEndian.Uint64(locBuf[:])
		archiveID, offset := UnpackLocation(packed, uint(offsetBits))
		size := binary.BigEndian.Uint32(e[entryKeyBytes+entryLocBytes:])
		entries[i] = Entry{Prefix: prefix, Loc: Location{ArchiveID: archiveID, Offset: offset, Size: size}}
	}

	return &Index{
		Header: Header{Version: Version1, OffsetBits: offsetBits, KeyBytes: keyBytes},
		blocks: []Block{{entries: entries}},
	}, nil
}
