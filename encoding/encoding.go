// Package encoding parses the CASC encoding manifest: the binary table
// mapping a file's ContentKey (CKey) to its EncodingKey(s) (EKey) and
// decoded size.
package encoding

import (
	"bytes"
	"crypto/md5"
	"encoding/binary"

	"github.com/ngdp-go/casc/casckey"
	"github.com/ngdp-go/casc/internal/errdefs"
)

// Magic is the two-byte magic starting an encoding file.
var Magic = [2]byte{'E', 'N'}

// Version is the only version byte this implementation understands.
const Version = 1

// headerSize is the fixed portion of the encoding file header:
// magic(2) + version(1) + ckeySize(1) + ekeySize(1) +
// ckeyPageSizeKB(2) + ekeyPageSizeKB(2) + ckeyPageCount(4) +
// ekeyPageCount(4) + unk(1) + especBlockSize(4).
const headerSize = 2 + 1 + 1 + 1 + 2 + 2 + 4 + 4 + 1 + 4

// Header is the fixed preamble of an encoding file.
type Header struct {
	CKeySize       uint8
	EKeySize       uint8
	CKeyPageSizeKB uint16
	EKeyPageSizeKB uint16
	CKeyPageCount  uint32
	EKeyPageCount  uint32
	ESpecBlockSize uint32
}

// pageIndexEntrySize is one row of a page index: first key in the page
// plus an MD5 of the page's raw bytes.
func pageIndexEntrySize(keySize int) int {
	return keySize + md5.Size
}

// CKeyEntry is one row of the CKey section: a CKey mapped to the EKey(s)
// of its possible encoded forms and the decoded file size.
type CKeyEntry struct {
	CKey     casckey.ContentKey
	FileSize uint64 // 40-bit value, stored big-endian
	EKeys    []casckey.EncodingKey
}

// Manifest is a parsed encoding file, queryable by CKey.
type Manifest struct {
	Header Header
	byCKey map[casckey.ContentKey]CKeyEntry
}

// Parse parses a complete encoding file image, verifying every CKey
// page's MD5 before trusting its entries. The EKey section is not
// parsed.
func Parse(data []byte) (*Manifest, error) {
	if len(data) < headerSize {
		return nil, errdefs.ErrTruncated
	}
	if data[0] != Magic[0] || data[1] != Magic[1] {
		return nil, errdefs.ErrInvalidMagic
	}
	if data[2] != Version {
		return nil, errdefs.ErrCorrupt
	}

	h := Header{
		CKeySize:       data[3],
		EKeySize:       data[4],
		CKeyPageSizeKB: binary.BigEndian.Uint16(data[5:7]),
		EKeyPageSizeKB: binary.BigEndian.Uint16(data[7:9]),
		CKeyPageCount:  binary.BigEndian.Uint32(data[9:13]),
		EKeyPageCount:  binary.BigEndian.Uint32(data[13:17]),
		ESpecBlockSize: binary.BigEndian.Uint32(data[18:22]),
	}
	if h.CKeySize != casckey.Size || h.EKeySize != casckey.Size {
		return nil, errdefs.ErrCorrupt
	}

	off := headerSize
	if off+int(h.ESpecBlockSize) > len(data) {
		return nil, errdefs.ErrTruncated
	}
	off += int(h.ESpecBlockSize) // ESpec strings are opaque to lookup

	ckeyPageSize := int(h.CKeyPageSizeKB) * 1024
	ckeyIndexLen := int(h.CKeyPageCount) * pageIndexEntrySize(int(h.CKeySize))
	if off+ckeyIndexLen > len(data) {
		return nil, errdefs.ErrTruncated
	}
	ckeyIndex := data[off : off+ckeyIndexLen]
	off += ckeyIndexLen

	byCKey := make(map[casckey.ContentKey]CKeyEntry)
	for p := 0; p < int(h.CKeyPageCount); p++ {
		if off+ckeyPageSize > len(data) {
			return nil, errdefs.ErrTruncated
		}
		page := data[off : off+ckeyPageSize]
		off += ckeyPageSize

		row := ckeyIndex[p*pageIndexEntrySize(int(h.CKeySize)) : (p+1)*pageIndexEntrySize(int(h.CKeySize))]
		wantMD5 := row[h.CKeySize:]
		gotMD5 := md5.Sum(page)
		if !bytes.Equal(wantMD5, gotMD5[:]) {
			return nil, &errdefs.ChecksumMismatch{Component: "encoding ckey page", Expected: wantMD5, Actual: gotMD5[:]}
		}

		entries, err := parseCKeyPage(page, int(h.EKeySize))
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			byCKey[e.CKey] = e
		}
	}

	return &Manifest{Header: h, byCKey: byCKey}, nil
}

// parseCKeyPage decodes the CKey-side page entry stream: u8 ekey_count;
// u40-BE file_size; ckey[16]; ekeys[ekey_count][16]; zero-padded to the
// page's declared size.
func parseCKeyPage(page []byte, ekeySize int) ([]CKeyEntry, error) {
	var entries []CKeyEntry
	pos := 0
	for pos < len(page) {
		ekeyCount := int(page[pos])
		if ekeyCount == 0 {
			break // zero padding reached
		}
		pos++
		if pos+5+casckey.Size+ekeyCount*ekeySize > len(page) {
			return nil, errdefs.ErrTruncated
		}

		var sizeBuf [8]byte
		copy(sizeBuf[3:], page[pos:pos+5])
		fileSize := binary.BigEndian.Uint64(sizeBuf[:])
		pos += 5

		var ckey casckey.ContentKey
		copy(ckey[:], page[pos:pos+casckey.Size])
		pos += casckey.Size

		ekeys := make([]casckey.EncodingKey, ekeyCount)
		for i := 0; i < ekeyCount; i++ {
			copy(ekeys[i][:], page[pos:pos+ekeySize])
			pos += ekeySize
		}

		entries = append(entries, CKeyEntry{CKey: ckey, FileSize: fileSize, EKeys: ekeys})
	}
	return entries, nil
}

// Lookup returns the CKeyEntry for ckey, if present.
func (m *Manifest) Lookup(ckey casckey.ContentKey) (CKeyEntry, bool) {
	e, ok := m.byCKey[ckey]
	return e, ok
}
