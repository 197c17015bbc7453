// Package casckey defines the two nominal 16-byte MD5 key types CASC uses
// to identify content: ContentKey (CKey), the canonical identity of a
// file's plaintext, and EncodingKey (EKey), the identity of its
// BLTE-encoded storage form. They are both [16]byte under the hood but
// are kept as distinct types so a CKey can never be passed where an EKey
// is expected, and vice versa.
package casckey

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
)

// Size is the byte length of both CKey and EKey digests.
const Size = 16

// PrefixSize is the length of the EKey prefix stored in shard indices and
// local archive headers.
const PrefixSize = 9

// ContentKey is the MD5 digest of a file's decoded (plaintext) bytes.
type ContentKey [Size]byte

// EncodingKey is the MD5 digest of a file's BLTE-encoded bytes.
type EncodingKey [Size]byte

// EKeyPrefix is the first PrefixSize bytes of an EncodingKey, the only
// form persisted in shard index entries and local archive headers.
type EKeyPrefix [PrefixSize]byte

// HashContent computes the ContentKey of plaintext bytes.
func HashContent(plaintext []byte) ContentKey {
	return ContentKey(md5.Sum(plaintext))
}

// HashEncoded computes the EncodingKey of BLTE-encoded bytes.
func HashEncoded(encoded []byte) EncodingKey {
	return EncodingKey(md5.Sum(encoded))
}

// Prefix returns the stored EKeyPrefix of an EncodingKey.
func (k EncodingKey) Prefix() EKeyPrefix {
	var p EKeyPrefix
	copy(p[:], k[:PrefixSize])
	return p
}

func (k ContentKey) String() string    { return hex.EncodeToString(k[:]) }
func (k EncodingKey) String() string   { return hex.EncodeToString(k[:]) }
func (p EKeyPrefix) String() string    { return hex.EncodeToString(p[:]) }
func (k ContentKey) IsZero() bool      { return k == ContentKey{} }
func (k EncodingKey) IsZero() bool     { return k == EncodingKey{} }

// ParseContentKey parses a hex-encoded CKey.
func ParseContentKey(s string) (ContentKey, error) {
	var k ContentKey
	b, err := hex.DecodeString(s)
	if err != nil {
		return k, fmt.Errorf("casckey: parse content key: %w", err)
	}
	if len(b) != Size {
		return k, fmt.Errorf("casckey: content key must be %d bytes, got %d", Size, len(b))
	}
	copy(k[:], b)
	return k, nil
}

// ParseEncodingKey parses a hex-encoded EKey.
func ParseEncodingKey(s string) (EncodingKey, error) {
	var k EncodingKey
	b, err := hex.DecodeString(s)
	if err != nil {
		return k, fmt.Errorf("casckey: parse encoding key: %w", err)
	}
	if len(b) != Size {
		return k, fmt.Errorf("casckey: encoding key must be %d bytes, got %d", Size, len(b))
	}
	copy(k[:], b)
	return k, nil
}

// Bucket XOR-folds the first nine bytes of an EncodingKey down to a
// nibble-sized value in [0,16), the shard partition the key belongs to.
//
// b = ekey[0] ^ ekey[1] ^ ... ^ ekey[8]; bucket = (b & 0xF) ^ (b >> 4).
func (k EncodingKey) Bucket() uint8 {
	var b byte
	for i := 0; i < PrefixSize; i++ {
		b ^= k[i]
	}
	return (b & 0xF) ^ (b >> 4)
}

// Bucket computes the bucket for a bare EKeyPrefix, for callers that only
// have the stored prefix form (e.g. while iterating a shard).
func (p EKeyPrefix) Bucket() uint8 {
	var b byte
	for i := 0; i < PrefixSize; i++ {
		b ^= p[i]
	}
	return (b & 0xF) ^ (b >> 4)
}

// NumBuckets is the number of shard partitions CASC uses.
const NumBuckets = 16
