// Package cdnindex parses CDN-side archive index files ("CDN indices"):
// block-structured files keyed by EKey that map into the byte ranges of
// a remote multi-gigabyte CDN archive.
//
// Layout: N fixed-size blocks of sorted entries, followed by a table of
// contents (one (last_ekey, partial_md5) pair per block), followed by a
// 28-byte footer declaring field widths and the element count.
package cdnindex

import (
	"crypto/md5"
	"encoding/binary"
	"sort"

	"github.com/ngdp-go/casc/internal/errdefs"
)

// FooterSize is the fixed size of the trailing footer.
const FooterSize = 28

// Footer describes the field widths and counts used to interpret the
// blocks and TOC preceding it.
type Footer struct {
	TOCHash     [8]byte
	Revision    uint8
	Flags0      uint8
	Flags1      uint8
	BlockSizeKB uint8
	OffsetBytes uint8
	SizeBytes   uint8
	KeyBytes    uint8
	HashBytes   uint8
	NumElements uint32
	FooterHash  [8]byte
}

// ParseFooter parses the trailing FooterSize bytes of a CDN index file.
func ParseFooter(buf []byte) (Footer, error) {
	if len(buf) < FooterSize {
		return Footer{}, errdefs.ErrTruncated
	}
	var f Footer
	copy(f.TOCHash[:], buf[0:8])
	f.Revision = buf[8]
	f.Flags0 = buf[9]
	f.Flags1 = buf[10]
	f.BlockSizeKB = buf[11]
	f.OffsetBytes = buf[12]
	f.SizeBytes = buf[13]
	f.KeyBytes = buf[14]
	f.HashBytes = buf[15]
	f.NumElements = binary.LittleEndian.Uint32(buf[16:20])
	copy(f.FooterHash[:], buf[20:28])
	return f, nil
}

// Entry is one (EKey, location-in-CDN-archive) pair.
type Entry struct {
	EKey   []byte // KeyBytes long
	Offset uint64
	Size   uint64
}

// tocEntry is one TOC row: the last (highest) EKey in a block, plus a
// partial MD5 of that block's raw bytes, used to verify a block before
// trusting entries scanned from it.
type tocEntry struct {
	lastEKey    []byte
	partialHash []byte
}

// Index is a parsed, queryable CDN archive index.
type Index struct {
	Footer  Footer
	data    []byte
	toc     []tocEntry
	entries [][]byte // raw block bytes, one slice per block
}

// entrySize is the per-entry wire size given the footer's declared
// field widths: key || offset || size.
func entrySize(f Footer) int {
	return int(f.KeyBytes) + int(f.OffsetBytes) + int(f.SizeBytes)
}

// Parse parses a full CDN index file image.
func Parse(data []byte) (*Index, error) {
	if len(data) < FooterSize {
		return nil, errdefs.ErrTruncated
	}
	footer, err := ParseFooter(data[len(data)-FooterSize:])
	if err != nil {
		return nil, err
	}

	blockSize := int(footer.BlockSizeKB) * 1024
	if blockSize == 0 {
		return nil, errdefs.ErrCorrupt
	}
	perBlock := blockSize / entrySize(footer)
	if perBlock == 0 {
		return nil, errdefs.ErrCorrupt
	}
	numBlocks := (int(footer.NumElements) + perBlock - 1) / perBlock
	if numBlocks == 0 {
		numBlocks = 0
	}

	body := data[:len(data)-FooterSize]
	blocksLen := numBlocks * blockSize
	if len(body) < blocksLen {
		return nil, errdefs.ErrTruncated
	}

	idx := &Index{Footer: footer, data: data}
	idx.entries = make([][]byte, numBlocks)
	for i := 0; i < numBlocks; i++ {
		idx.entries[i] = body[i*blockSize : (i+1)*blockSize]
	}

	tocEntrySize := int(footer.KeyBytes) + int(footer.HashBytes)
	tocStart := blocksLen
	tocLen := numBlocks * tocEntrySize
	if len(body) < tocStart+tocLen {
		return nil, errdefs.ErrTruncated
	}
	tocBytes := body[tocStart : tocStart+tocLen]
	idx.toc = make([]tocEntry, numBlocks)
	for i := 0; i < numBlocks; i++ {
		row := tocBytes[i*tocEntrySize : (i+1)*tocEntrySize]
		idx.toc[i] = tocEntry{
			lastEKey:    row[:footer.KeyBytes],
			partialHash: row[footer.KeyBytes:],
		}
	}

	return idx, nil
}

// verifyBlock checks block i's partial MD5 against the TOC's recorded
// hash for it.
func (idx *Index) verifyBlock(i int) error {
	sum := md5.Sum(idx.entries[i])
	want := idx.toc[i].partialHash
	n := len(want)
	if n > len(sum) {
		n = len(sum)
	}
	for j := 0; j < n; j++ {
		if sum[j] != want[j] {
			return &errdefs.ChecksumMismatch{
				Component: "cdn index block",
				Expected:  want,
				Actual:    sum[:n],
			}
		}
	}
	return nil
}

// Lookup binary-searches the TOC for the block that could contain ekey,
// verifies that block's partial MD5, then scans its entries.
func (idx *Index) Lookup(ekey []byte) (Entry, bool, error) {
	n := len(idx.toc)
	blockIdx := sort.Search(n, func(i int) bool {
		return compareBytes(ekey, idx.toc[i].lastEKey) <= 0
	})
	if blockIdx == n {
		return Entry{}, false, nil
	}

	if err := idx.verifyBlock(blockIdx); err != nil {
		return Entry{}, false, err
	}

	es := entrySize(idx.Footer)
	block := idx.entries[blockIdx]
	keyBytes := int(idx.Footer.KeyBytes)
	for off := 0; off+es <= len(block); off += es {
		row := block[off : off+es]
		key := row[:keyBytes]
		if allZero(key) {
			break // reached the block's unused padding tail
		}
		if compareBytes(ekey, key) == 0 {
			return decodeEntry(idx.Footer, row), true, nil
		}
	}
	return Entry{}, false, nil
}

func decodeEntry(f Footer, row []byte) Entry {
	keyBytes := int(f.KeyBytes)
	offsetBytes := int(f.OffsetBytes)
	key := append([]byte(nil), row[:keyBytes]...)
	offset := decodeUintBE(row[keyBytes : keyBytes+offsetBytes])
	size := decodeUintBE(row[keyBytes+offsetBytes : keyBytes+offsetBytes+int(f.SizeBytes)])
	return Entry{EKey: key, Offset: offset, Size: size}
}

func decodeUintBE(b []byte) uint64 {
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v
}

func compareBytes(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return len(a) - len(b)
}

func allZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}
