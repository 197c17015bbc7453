// Package root parses the CASC root manifest: the block sequence mapping
// file-data IDs and name hashes to content keys (CKeys).
package root

import (
	"encoding/binary"

	"github.com/ngdp-go/casc/casckey"
	"github.com/ngdp-go/casc/internal/errdefs"
)

// Magic is the four-byte magic some newer root files start with.
// Legacy files omit it entirely; ParseFile tolerates either.
var Magic = [4]byte{'T', 'S', 'F', 'M'}

// ContentFlagNoNameHash marks a block whose entries carry no Jenkins
// name-hash array.
const ContentFlagNoNameHash uint64 = 0x10000000

// Block is one decoded root block.
type Block struct {
	ContentFlags uint64
	LocaleFlags  uint32
	FileDataIDs  []uint32
	CKeys        []casckey.ContentKey
	NameHashes   []uint64 // nil if ContentFlagNoNameHash is set
}

// Entry is a single file's candidate record within a block, as seen by
// Preference functions: the caller chooses among an fdid's candidates.
type Entry struct {
	BlockIndex   int
	CKey         casckey.ContentKey
	ContentFlags uint64
	LocaleFlags  uint32
}

// Preference picks the best of a set of candidate Entry values for the
// same file-data ID, returning its index into candidates. Candidates
// are passed in block (file) order; when Preference is nil, or returns
// an out-of-range index, the candidate from the earliest block is used.
type Preference func(candidates []Entry) int

// Manifest is a parsed, queryable root manifest.
type Manifest struct {
	Blocks     []Block
	byFDID     map[uint32]Entry
	byNameHash map[uint64]uint32
}

// ParseFile parses a root file image, optionally skipping a leading
// TSFM magic, and resolves each file-data ID to its preferred CKey using
// pref.
func ParseFile(data []byte, pref Preference) (*Manifest, error) {
	if len(data) >= 4 && data[0] == Magic[0] && data[1] == Magic[1] && data[2] == Magic[2] && data[3] == Magic[3] {
		data = data[4:]
	}

	var blocks []Block
	pos := 0
	for pos < len(data) {
		b, n, err := parseBlock(data[pos:])
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, b)
		pos += n
	}

	return buildManifest(blocks, pref), nil
}

// blockHeaderSize is count(4) + content_flags(4, legacy 32-bit form) +
// locale_flags(4). This implementation parses the legacy 32-bit
// content-flags form; newer 64-bit-content-flags files are read by
// ParseFileWide (see block64.go).
const blockHeaderSize = 4 + 4 + 4

func parseBlock(data []byte) (Block, int, error) {
	if len(data) < blockHeaderSize {
		return Block{}, 0, errdefs.ErrTruncated
	}
	count := binary.LittleEndian.Uint32(data[0:4])
	contentFlags := uint64(binary.LittleEndian.Uint32(data[4:8]))
	localeFlags := binary.LittleEndian.Uint32(data[8:12])
	pos := blockHeaderSize

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

// decodeFDIDDeltas decodes count i32 deltas into absolute file-data IDs:
// fdid[0] = delta[0]; fdid[i] = fdid[i-1] + 1 + delta[i]. The sequence
// must be strictly increasing.
func decodeFDIDDeltas(data []byte, count int) ([]uint32, int, error) {
	need := count * 4
	if len(data) < need {
		return nil, 0, errdefs.ErrTruncated
	}
	out := make([]uint32, count)
	var prev int64 = -1
	for i := 0; i < count; i++ {
		delta := int32(binary.LittleEndian.Uint32(data[i*4 : (i+1)*4]))
		next := prev + 1 + int64(delta)
		if next <= prev {
			return nil, 0, errdefs.ErrCorrupt
		}
		out[i] = uint32(next)
		prev = next
	}
	return out, need, nil
}

// Resolve returns the preferred CKey for a file-data ID.
func (m *Manifest) Resolve(fdid uint32) (casckey.ContentKey, bool) {
	e, ok := m.byFDID[fdid]
	if !ok {
		return casckey.ContentKey{}, false
	}
	return e.CKey, true
}

// ResolveByNameHash resolves a Jenkins name hash to its file-data ID,
// then to its preferred CKey.
func (m *Manifest) ResolveByNameHash(nameHash uint64) (casckey.ContentKey, bool) {
	fdid, ok := m.byNameHash[nameHash]
	if !ok {
		return casckey.ContentKey{}, false
	}
	return m.Resolve(fdid)
}
