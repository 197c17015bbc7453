package membership

import "github.com/ngdp-go/casc/casckey"

// BucketedFilter holds one Filter per shard bucket, so a lookup only pays for hashing and
// probing the single bucket a key could live in.
type BucketedFilter struct {
	buckets [casckey.NumBuckets]*Filter
}

// NewBucketedFilter allocates a BucketedFilter sized for
// itemsPerBucket expected entries per bucket.
func NewBucketedFilter(itemsPerBucket int, falsePositiveRate float64) *BucketedFilter {
	var bf BucketedFilter
	for i := range bf.buckets {
		bf.buckets[i] = NewFilter(itemsPerBucket, falsePositiveRate)
	}
	return &bf
}

// Add records prefix as present. Shards only persist a 9-byte EKey
// prefix, so the filter is keyed on that prefix rather than the full
// EKey: a full EKey hashed against a prefix loaded back from disk
// (whose trailing bytes are unknown, not zero) would never match what
// was inserted at write time, producing the false negatives a Bloom
// filter must never return.
func (bf *BucketedFilter) Add(prefix casckey.EKeyPrefix) {
	bf.buckets[prefix.Bucket()].Add(prefix[:])
}

// MaybeContains reports whether prefix might be present; false is
// authoritative absence.
func (bf *BucketedFilter) MaybeContains(prefix casckey.EKeyPrefix) bool {
	return bf.buckets[prefix.Bucket()].MaybeContains(prefix[:])
}

// Rebuild replaces a single bucket's filter wholesale, used after a
// shard flush to keep the filter in sync without touching the other 15
// buckets.
func (bf *BucketedFilter) Rebuild(bucket uint8, prefixes []casckey.EKeyPrefix, falsePositiveRate float64) {
	f := NewFilter(len(prefixes), falsePositiveRate)
	for _, p := range prefixes {
		f.Add(p[:])
	}
	bf.buckets[bucket] = f
}
