// Package jenkins implements Bob Jenkins' hashlittle2 (lookup3.c, 2006)
// hash function, used by CASC for shard header and block checksums and
// for the 64-bit name hashes stored in root manifests.
package jenkins

// rot rotates a 32-bit value left by k bits.
func rot(x uint32, k uint) uint32 {
	return (x << k) | (x >> (32 - k))
}

func mix(a, b, c uint32) (uint32, uint32, uint32) {
	a -= c
	a ^= rot(c, 4)
	c += b
	b -= a
	b ^= rot(a, 6)
	a += c
	c -= b
	c ^= rot(b, 8)
	b += a
	a -= c
	a ^= rot(c, 16)
	c += b
	b -= a
	b ^= rot(a, 19)
	a += c
	c -= b
	c ^= rot(b, 4)
	b += a
	return a, b, c
}

func final(a, b, c uint32) (uint32, uint32, uint32) {
	c ^= b
	c -= rot(b, 14)
	a ^= c
	a -= rot(c, 11)
	b ^= a
	b -= rot(a, 25)
	c ^= b
	c -= rot(b, 16)
	a ^= c
	a -= rot(c, 4)
	b ^= a
	b -= rot(a, 14)
	c ^= b
	c -= rot(b, 24)
	return a, b, c
}

// HashLittle2 computes Bob Jenkins' hashlittle2 over data, seeded with
// (pc, pb) on entry (both 0 for a fresh hash). It returns two 32-bit
// words that together form a 64-bit digest: the caller composes them as
// (pc<<32)|pb for a name hash, or uses pc alone for a 32-bit hash.
//
// This is a direct, endian-aware port of lookup3.c's little-endian path;
// CASC only ever runs on little-endian platforms in practice, and the
// on-disk/on-wire values this must reproduce (root name hashes, hash
// table keys) are defined against that path.
func HashLittle2(data []byte, pc, pb uint32) (uint32, uint32) {
	length := len(data)
	a := uint32(0xdeadbeef) + uint32(length) + pc
	b := a
	c := a
	c += pb

	i := 0
	for length > 12 {
		a += uint32(data[i]) | uint32(data[i+1])<<8 | uint32(data[i+2])<<16 | uint32(data[i+3])<<24
		b += uint32(data[i+4]) | uint32(data[i+5])<<8 | uint32(data[i+6])<<16 | uint32(data[i+7])<<24
		c += uint32(data[i+8]) | uint32(data[i+9])<<8 | uint32(data[i+10])<<16 | uint32(data[i+11])<<24
		a, b, c = mix(a, b, c)
		length -= 12
		i += 12
	}

	switch length {
	case 12:
		c += uint32(data[i+11]) << 24
		fallthrough
	case 11:
		c += uint32(data[i+10]) << 16
		fallthrough
	case 10:
		c += uint32(data[i+9]) << 8
		fallthrough
	case 9:
		c += uint32(data[i+8])
		fallthrough
	case 8:
		b += uint32(data[i+7]) << 24
		fallthrough
	case 7:
		b += uint32(data[i+6]) << 16
		fallthrough
	case 6:
		b += uint32(data[i+5]) << 8
		fallthrough
	case 5:
		b += uint32(data[i+4])
		fallthrough
	case 4:
		a += uint32(data[i+3]) << 24
		fallthrough
	case 3:
		a += uint32(data[i+2]) << 16
		fallthrough
	case 2:
		a += uint32(data[i+1]) << 8
		fallthrough
	case 1:
		a += uint32(data[i])
	case 0:
		return c, b
	}

	a, b, c = final(a, b, c)
	return c, b
}

// NormalizePath upper-cases name and replaces forward slashes with
// back-slashes, matching the path form CASC hashes for name lookups.
func NormalizePath(name string) string {
	buf := make([]byte, len(name))
	for i := 0; i < len(name); i++ {
		ch := name[i]
		if ch == '/' {
			ch = '\\'
		} else if ch >= 'a' && ch <= 'z' {
			ch -= 'a' - 'A'
		}
		buf[i] = ch
	}
	return string(buf)
}

// NameHash64 computes the 64-bit Jenkins name hash CASC root manifests
// use to map a normalized path to a file-data-ID, as (pc<<32)|pb with
// both seeds starting at zero.
func NameHash64(name string) uint64 {
	normalized := NormalizePath(name)
	pc, pb := HashLittle2([]byte(normalized), 0, 0)
	return uint64(pc)<<32 | uint64(pb)
}
