// Package membership provides a small in-memory Bloom-style
// negative-lookup filter, one per shard bucket, so the storage facade
// can skip a shard/archive round trip for EKeys that are definitely
// absent. Scaled down from a persistent Bloom filter over content IDs
// to an in-memory, rebuilt-on-flush filter, since CASC shards are
// themselves the persistent index.
package membership

import (
	"math"

	"github.com/cespare/xxhash/v2"
)

// Filter is a fixed-size Bloom filter using double hashing (Kirsch-
// Mitzenmacher) over two xxhash64 digests (of the key, and of the key
// with a 0xff byte appended) to derive k probe positions, avoiding k
// independent hash computations per operation.
type Filter struct {
	bits    []uint64
	numBits uint64
	k       int
}

// NewFilter sizes a Filter for expectedItems entries at roughly
// falsePositiveRate false-positive probability.
func NewFilter(expectedItems int, falsePositiveRate float64) *Filter {
	if expectedItems < 1 {
		expectedItems = 1
	}
	if falsePositiveRate <= 0 || falsePositiveRate >= 1 {
		falsePositiveRate = 0.01
	}

	n := float64(expectedItems)
	m := math.Ceil(-n * math.Log(falsePositiveRate) / (math.Ln2 * math.Ln2))
	k := int(math.Round(m / n * math.Ln2))
	if k < 1 {
		k = 1
	}
	numBits := uint64(m)
	if numBits < 64 {
		numBits = 64
	}

	return &Filter{
		bits:    make([]uint64, (numBits+63)/64),
		numBits: numBits,
		k:       k,
	}
}

// Add inserts key into the filter.
func (f *Filter) Add(key []byte) {
	h1, h2 := f.hashPair(key)
	for i := 0; i < f.k; i++ {
		pos := (h1 + uint64(i)*h2) % f.numBits
		f.bits[pos/64] |= 1 << (pos % 64)
	}
}

// MaybeContains reports whether key might be in the filter. false means
// key is definitely absent; true means key may or may not be present
// and callers must still consult the authoritative index.
func (f *Filter) MaybeContains(key []byte) bool {
	h1, h2 := f.hashPair(key)
	for i := 0; i < f.k; i++ {
		pos := (h1 + uint64(i)*h2) % f.numBits
		if f.bits[pos/64]&(1<<(pos%64)) == 0 {
			return false
		}
	}
	return true
}

func (f *Filter) hashPair(key []byte) (uint64, uint64) {
	h1 := xxhash.Sum64(key)
	h2 := xxhash.Sum64(append(append([]byte(nil), key...), 0xff))
	if h2 == 0 {
		h2 = 1
	}
	return h1, h2
}
