package shard

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/ngdp-go/casc/casckey"
	"github.com/ngdp-go/casc/internal/errdefs"
	"github.com/ngdp-go/casc/jenkins"
)

// Version identifies the on-disk shard layout. Version2 is the only
// layout this package's writer emits; Version1 (legacy) is read-only.
// See DESIGN.md's Open Questions for why the writer refuses v1.
const (
	Version1 = 1
	Version2 = 2
)

const (
	entryKeyBytes  = casckey.PrefixSize // 9
	entryLocBytes  = PackedLocationSize // 5
	entrySizeBytes = 4
	entrySize      = entryKeyBytes + entryLocBytes + entrySizeBytes // 18

	headerLen = 1 + 1 + 1 + 1 + 1 + 2 + 4 + 4 // version..headerChecksum

	// DefaultEntriesPerBlock bounds how many entries a block holds
	// before a new block is started. Each block carries its own
	// checksum, so smaller blocks mean more
	// frequent, cheaper re-verification on partial reads.
	DefaultEntriesPerBlock = 4096
)

// Entry is one shard index record: an EKey prefix plus the archive
// location it resolves to.
type Entry struct {
	Prefix casckey.EKeyPrefix
	Loc    Location
}

// Header is the fixed-width prefix of a shard file, declaring field
// widths rather than assuming them.
type Header struct {
	Version         uint8
	OffsetBits      uint8
	SizeBytes       uint8
	KeyBytes        uint8
	HashBytes       uint8
	BlockCount      uint16
	EntriesPerBlock uint32
	Checksum        uint32
}

// Block is one fixed-capacity, checksum-guarded segment of a shard file.
type Block struct {
	entries []Entry
	raw     []byte // serialized entries region, used bytes only
	sum     uint32
	once    sync.Once
	verErr  error
}

// Index is a parsed, in-memory shard file ready for lookups.
type Index struct {
	Header Header
	blocks []Block

	verify bool
}

// Parse reads a complete shard file image and returns a queryable Index.
// verifyChecksums controls whether block checksums are checked eagerly;
// if false, they are verified lazily and memoized the first time a block
// is actually searched.
func Parse(data []byte, verifyChecksums bool) (*Index, error) {
	if len(data) < 1 {
		return nil, errdefs.ErrTruncated
	}
	version := data[0]
	if version == Version1 {
		return parseLegacyV1(data, verifyChecksums)
	}
	if version != Version2 {
		return nil, fmt.Errorf("shard: unsupported version %d", version)
	}
	if len(data) < headerLen {
		return nil, errdefs.ErrTruncated
	}

	h := Header{
		Version:         data[0],
		OffsetBits:      data[1],
		SizeBytes:       data[2],
		KeyBytes:        data[3],
		HashBytes:       data[4],
		BlockCount:      binary.BigEndian.Uint16(data[5:7]),
		EntriesPerBlock: binary.BigEndian.Uint32(data[7:11]),
		Checksum:        binary.BigEndian.Uint32(data[11:15]),
	}
	if h.KeyBytes != entryKeyBytes {
		return nil, fmt.Errorf("shard: unsupported key width %d", h.KeyBytes)
	}

	wantSum, _ := jenkins.HashLittle2(data[:11], 0, 0)
	if verifyChecksums && wantSum != h.Checksum {
		return nil, &errdefs.ChecksumMismatch{
			Component: "shard header",
			Expected:  be32(h.Checksum),
			Actual:    be32(wantSum),
		}
	}

	off := headerLen
	blockPhysSize := 4 + int(h.EntriesPerBlock)*entrySize + 4
	blocks := make([]Block, h.BlockCount)
	for i := range blocks {
		if off+blockPhysSize > len(data) {
			return nil, errdefs.ErrTruncated
		}
		blockData := data[off : off+blockPhysSize]
		used := binary.BigEndian.Uint32(blockData[0:4])
		if int(used) > int(h.EntriesPerBlock) {
			return nil, fmt.Errorf("shard: block %d used count %d exceeds capacity %d", i, used, h.EntriesPerBlock)
		}
		entriesRegion := blockData[4 : 4+int(used)*entrySize]
		sum := binary.BigEndian.Uint32(blockData[blockPhysSize-4:])

		entries := make([]Entry, used)
		for j := range entries {
			e := entriesRegion[j*entrySize : (j+1)*entrySize]
			var prefix casckey.EKeyPrefix
			copy(prefix[:], e[:entryKeyBytes])
			var locBuf [8]byte
			copy(locBuf[8-entryLocBytes:], e[entryKeyBytes:entryKeyBytes+entryLocBytes])
			packed := binary.BigEndian.Uint64(locBuf[:])
			archiveID, offset := UnpackLocation(packed, uint(h.OffsetBits))
			size := binary.BigEndian.Uint32(e[entryKeyBytes+entryLocBytes:])
			entries[j] = Entry{Prefix: prefix, Loc: Location{ArchiveID: archiveID, Offset: offset, Size: size}}
		}

		blocks[i] = Block{entries: entries, raw: append([]byte{}, entriesRegion...), sum: sum}
		off += blockPhysSize
	}

	idx := &Index{Header: h, blocks: blocks, verify: verifyChecksums}
	if verifyChecksums {
		for i := range idx.blocks {
			if _, err := idx.verifyBlock(i); err != nil {
				return nil, err
			}
		}
	}
	return idx, nil
}

func (idx *Index) verifyBlock(i int) ([]Entry, error) {
	b := &idx.blocks[i]
	b.once.Do(func() {
		got, _ := jenkins.HashLittle2(b.raw, 0, 0)
		if got != b.sum {
			b.verErr = &errdefs.ChecksumMismatch{
				Component: "shard block",
				Expected:  be32(b.sum),
				Actual:    be32(got),
			}
		}
	})
	if b.verErr != nil {
		return nil, b.verErr
	}
	return b.entries, nil
}

// Lookup binary-searches the shard for prefix and returns its Location.
func (idx *Index) Lookup(prefix casckey.EKeyPrefix) (Location, bool, error) {
	if len(idx.blocks) == 0 {
		return Location{}, false, nil
	}
	// Blocks are contiguous runs of a globally sorted key space; find the
	// last block whose first entry is <= prefix.
	blockIdx := 0
	lo, hi := 0, len(idx.blocks)-1
	for lo <= hi {
		mid := (lo + hi) / 2
		if len(idx.blocks[mid].entries) == 0 {
			lo = mid + 1
			continue
		}
		if cmpPrefix(idx.blocks[mid].entries[0].Prefix, prefix) <= 0 {
			blockIdx = mid
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}

	entries, err := idx.verifyBlock(blockIdx)
	if err != nil {
		return Location{}, false, err
	}

	lo, hi = 0, len(entries)-1
	for lo <= hi {
		mid := (lo + hi) / 2
		c := cmpPrefix(entries[mid].Prefix, prefix)
		switch {
		case c == 0:
			return entries[mid].Loc, true, nil
		case c < 0:
			lo = mid + 1
		default:
			hi = mid - 1
		}
	}
	return Location{}, false, nil
}

// All returns every entry across every block, verifying each block's
// checksum as it is visited. Used by integrity scans.
func (idx *Index) All() ([]Entry, error) {
	var out []Entry
	for i := range idx.blocks {
		entries, err := idx.verifyBlock(i)
		if err != nil {
			return nil, err
		}
		out = append(out, entries...)
	}
	return out, nil
}

func cmpPrefix(a, b casckey.EKeyPrefix) int {
	return bytes.Compare(a[:], b[:])
}

func be32(v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return b[:]
}
