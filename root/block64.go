package root

import (
	"encoding/binary"

	"github.com/ngdp-go/casc/casckey"
	"github.com/ngdp-go/casc/internal/errdefs"
)

// ParseFileWide parses a root file whose blocks carry a 64-bit
// content-flags field instead of the 32-bit one ParseFile expects,
// otherwise identical to ParseFile.
func ParseFileWide(data []byte, pref Preference) (*Manifest, error) {
	if len(data) >= 4 && data[0] == Magic[0] && data[1] == Magic[1] && data[2] == Magic[2] && data[3] == Magic[3] {
		data = data[4:]
	}

	var blocks []Block
	pos := 0
	for pos < len(data) {
		b, n, err := parseBlockWide(data[pos:])
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, b)
		pos += n
	}

	return buildManifest(blocks, pref), nil
}

const blockHeaderSizeWide = 4 + 8 + 4

func parseBlockWide(data []byte) (Block, int, error) {
	if len(data) < blockHeaderSizeWide {
		return Block{}, 0, errdefs.ErrTruncated
	}
	count := binary.LittleEndian.Uint32(data[0:4])
	contentFlags := binary.LittleEndian.Uint64(data[4:12])
	localeFlags := binary.LittleEndian.Uint32(data[12:16])
	pos := blockHeaderSizeWide

	fdids, n, err := decodeFDIDDeltas(data[pos:], int(count))
	if err != nil {
		return Block{}, 0, err
	}
	pos += n

	ckeysLen := int(count) * casckey.Size
	if pos+ckeysLen > len(data) {
		return Block{}, 0, errdefs.ErrTruncated
	}
	ckeys := make([]casckey.ContentKey, count)
	for i := 0; i < int(count); i++ {
		copy(ckeys[i][:], data[pos+i*casckey.Size:pos+(i+1)*casckey.Size])
	}
	pos += ckeysLen

	var nameHashes []uint64
	if contentFlags&ContentFlagNoNameHash == 0 {
		hashesLen := int(count) * 8
		if pos+hashesLen > len(data) {
			return Block{}, 0, errdefs.ErrTruncated
		}
		nameHashes = make([]uint64, count)
		for i := 0; i < int(count); i++ {
			nameHashes[i] = binary.LittleEndian.Uint64(data[pos+i*8 : pos+(i+1)*8])
		}
		pos += hashesLen
	}

	return Block{
		ContentFlags: contentFlags,
		LocaleFlags:  localeFlags,
		FileDataIDs:  fdids,
		CKeys:        ckeys,
		NameHashes:   nameHashes,
	}, pos, nil
}

// buildManifest is shared between the 32-bit and 64-bit content-flags
// parse paths: both produce a []Block and resolve it the same way.
func buildManifest(blocks []Block, pref Preference) *Manifest {
	m := &Manifest{
		Blocks:     blocks,
		byFDID:     make(map[uint32]Entry),
		byNameHash: make(map[uint64]uint32),
	}

	candidatesByFDID := make(map[uint32][]Entry)
	for bi, b := range blocks {
		for i, fdid := range b.FileDataIDs {
			e := Entry{BlockIndex: bi, CKey: b.CKeys[i], ContentFlags: b.ContentFlags, LocaleFlags: b.LocaleFlags}
			candidatesByFDID[fdid] = append(candidatesByFDID[fdid], e)
			if b.NameHashes != nil {
				m.byNameHash[b.NameHashes[i]] = fdid
			}
		}
	}

	for fdid, cands := range candidatesByFDID {
		if len(cands) == 1 || pref == nil {
			m.byFDID[fdid] = cands[0]
			continue
		}
		idx := pref(cands)
		if idx < 0 || idx >= len(cands) {
			idx = 0
		}
		m.byFDID[fdid] = cands[idx]
	}

	return m
}
