package encoding

import (
	"crypto/md5"
	"encoding/binary"
	"sort"

	"github.com/ngdp-go/casc/casckey"
)

// BuildOptions configures Build.
type BuildOptions struct {
	CKeyPageSizeKB uint16
	EKeyPageSizeKB uint16
}

// Build serializes entries into a minimal, single-ESpec-block encoding
// file image for tests and local tooling. EKey-side pages are not
// populated; only the CKey-side lookup this package exposes is built.
func Build(entries []CKeyEntry, opts BuildOptions) []byte {
	if opts.CKeyPageSizeKB == 0 {
		opts.CKeyPageSizeKB = 4
	}
	if opts.EKeyPageSizeKB == 0 {
		opts.EKeyPageSizeKB = 4
	}

	sorted := append([]CKeyEntry(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool { return ckeyLess(sorted[i].CKey, sorted[j].CKey) })

	pageSize := int(opts.CKeyPageSizeKB) * 1024
	var pages [][]byte
	var cur []byte
	flush := func() {
		if len(cur) > 0 {
			padded := make([]byte, pageSize)
			copy(padded, cur)
			pages = append(pages, padded)
			cur = nil
		}
	}
	for _, e := range sorted {
		row := encodeCKeyRow(e)
		if len(cur)+len(row) > pageSize {
			flush()
		}
		cur = append(cur, row...)
	}
	flush()
	if len(pages) == 0 {
		pages = append(pages, make([]byte, pageSize))
	}

	var ckeyIndex []byte
	for _, p := range pages {
		sum := md5.Sum(p)
		firstKey := p[1+5 : 1+5+casckey.Size] // first entry's ckey, after count+filesize
		ckeyIndex = append(ckeyIndex, firstKey...)
		ckeyIndex = append(ckeyIndex, sum[:]...)
	}

	var hdr [headerSize]byte
	hdr[0], hdr[1] = Magic[0], Magic[1]
	hdr[2] = Version
	hdr[3] = casckey.Size
	hdr[4] = casckey.Size
	binary.BigEndian.PutUint16(hdr[5:7], opts.CKeyPageSizeKB)
	binary.BigEndian.PutUint16(hdr[7:9], opts.EKeyPageSizeKB)
	binary.BigEndian.PutUint32(hdr[9:13], uint32(len(pages)))
	binary.BigEndian.PutUint32(hdr[13:17], 0)
	binary.BigEndian.PutUint32(hdr[18:22], 0) // no ESpec block

	var out []byte
	out = append(out, hdr[:]...)
	out = append(out, ckeyIndex...)
	for _, p := range pages {
		out = append(out, p...)
	}
	return out
}

func encodeCKeyRow(e CKeyEntry) []byte {
	row := make([]byte, 1+5+casckey.Size+len(e.EKeys)*casckey.Size)
	row[0] = byte(len(e.EKeys))
	var sizeBuf [8]byte
	binary.BigEndian.PutUint64(sizeBuf[:], e.FileSize)
	copy(row[1:6], sizeBuf[3:])
	copy(row[6:6+casckey.Size], e.CKey[:])
	pos := 6 + casckey.Size
	for _, ek := range e.EKeys {
		copy(row[pos:pos+casckey.Size], ek[:])
		pos += casckey.Size
	}
	return row
}

func ckeyLess(a, b casckey.ContentKey) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}
