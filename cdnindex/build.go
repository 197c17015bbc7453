package cdnindex

import (
	"crypto/md5"
	"encoding/binary"
	"sort"
)

// BuildOptions configures Build.
type BuildOptions struct {
	BlockSizeKB uint8
	OffsetBytes uint8
	SizeBytes   uint8
	KeyBytes    uint8
	HashBytes   uint8
	Revision    uint8
}

// Build serializes entries (sorted and laid out into fixed-size blocks)
// into a CDN index image, for tests and for tooling that mirrors a CDN
// index locally. Entries are sorted by EKey ascending, matching the
// binary-searchable layout Lookup expects.
func Build(entries []Entry, opts BuildOptions) []byte {
	if opts.BlockSizeKB == 0 {
		opts.BlockSizeKB = 4
	}
	if opts.OffsetBytes == 0 {
		opts.OffsetBytes = 5
	}
	if opts.SizeBytes == 0 {
		opts.SizeBytes = 4
	}
	if opts.KeyBytes == 0 {
		opts.KeyBytes = 16
	}
	if opts.HashBytes == 0 {
		opts.HashBytes = 8
	}

	sorted := append([]Entry(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool { return compareBytes(sorted[i].EKey, sorted[j].EKey) < 0 })

	es := int(opts.KeyBytes) + int(opts.OffsetBytes) + int(opts.SizeBytes)
	blockSize := int(opts.BlockSizeKB) * 1024
	perBlock := blockSize / es
	numBlocks := (len(sorted) + perBlock - 1) / perBlock
	if numBlocks == 0 {
		numBlocks = 0
	}

	blocks := make([][]byte, numBlocks)
	for b := 0; b < numBlocks; b++ {
		block := make([]byte, blockSize)
		start := b * perBlock
		end := start + perBlock
		if end > len(sorted) {
			end = len(sorted)
		}
		for i, e := range sorted[start:end] {
			row := block[i*es : (i+1)*es]
			copy(row[:opts.KeyBytes], e.EKey)
			encodeUintBE(row[opts.KeyBytes:int(opts.KeyBytes)+int(opts.OffsetBytes)], e.Offset)
			encodeUintBE(row[int(opts.KeyBytes)+int(opts.OffsetBytes):], e.Size)
		}
		blocks[b] = block
	}

	var out []byte
	tocRows := make([][]byte, numBlocks)
	for b, block := range blocks {
		out = append(out, block...)
		sum := md5.Sum(block)
		var lastKey []byte
		start := b * perBlock
		end := start + perBlock
		if end > len(sorted) {
			end = len(sorted)
		}
		if end > start {
			lastKey = sorted[end-1].EKey
		} else {
			lastKey = make([]byte, opts.KeyBytes)
		}
		row := append([]byte(nil), lastKey...)
		row = append(row, sum[:opts.HashBytes]...)
		tocRows[b] = row
	}
	for _, row := range tocRows {
		out = append(out, row...)
	}

	footer := Footer{
		Revision:    opts.Revision,
		BlockSizeKB: opts.BlockSizeKB,
		OffsetBytes: opts.OffsetBytes,
		SizeBytes:   opts.SizeBytes,
		KeyBytes:    opts.KeyBytes,
		HashBytes:   opts.HashBytes,
		NumElements: uint32(len(sorted)),
	}
	tocHash := md5.Sum(out)
	copy(footer.TOCHash[:], tocHash[:8])

	footerBuf := marshalFooter(footer)
	footerHash := md5.Sum(footerBuf[:20])
	copy(footer.FooterHash[:], footerHash[:8])
	footerBuf = marshalFooter(footer)

	out = append(out, footerBuf[:]...)
	return out
}

func marshalFooter(f Footer) [FooterSize]byte {
	var buf [FooterSize]byte
	copy(buf[0:8], f.TOCHash[:])
	buf[8] = f.Revision
	buf[9] = f.Flags0
	buf[10] = f.Flags1
	buf[11] = f.BlockSizeKB
	buf[12] = f.OffsetBytes
	buf[13] = f.SizeBytes
	buf[14] = f.KeyBytes
	buf[15] = f.HashBytes
	binary.LittleEndian.PutUint32(buf[16:20], f.NumElements)
	copy(buf[20:28], f.FooterHash[:])
	return buf
}

func encodeUintBE(b []byte, v uint64) {
	for i := len(b) - 1; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
}
