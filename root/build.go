package root

import (
	"encoding/binary"
)

// BuildBlock serializes one Block in the legacy 32-bit content-flags
// form, for tests and local tooling. FileDataIDs must already be
// delta-encodable (i.e. strictly increasing, since deltas must stay
// non-negative).
func BuildBlock(b Block) []byte {
	count := uint32(len(b.FileDataIDs))
	var hdr [blockHeaderSize]byte
	binary.LittleEndian.PutUint32(hdr[0:4], count)
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(b.ContentFlags))
	binary.LittleEndian.PutUint32(hdr[8:12], b.LocaleFlags)

	out := append([]byte(nil), hdr[:]...)
	out = append(out, encodeFDIDDeltas(b.FileDataIDs)...)
	for _, ck := range b.CKeys {
		out = append(out, ck[:]...)
	}
	if b.ContentFlags&ContentFlagNoNameHash == 0 {
		for _, h := range b.NameHashes {
			var buf [8]byte
			binary.LittleEndian.PutUint64(buf[:], h)
			out = append(out, buf[:]...)
		}
	}
	return out
}

// BuildFile concatenates a TSFM magic and the serialized blocks.
func BuildFile(blocks []Block) []byte {
	out := append([]byte(nil), Magic[:]...)
	for _, b := range blocks {
		out = append(out, BuildBlock(b)...)
	}
	return out
}

func encodeFDIDDeltas(fdids []uint32) []byte {
	out := make([]byte, len(fdids)*4)
	var prev int64 = -1
	for i, fdid := range fdids {
		delta := int64(fdid) - prev - 1
		binary.LittleEndian.PutUint32(out[i*4:(i+1)*4], uint32(int32(delta)))
		prev = int64(fdid)
	}
	return out
}
