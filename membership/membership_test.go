package membership

import (
	"fmt"
	"testing"

	"github.com/ngdp-go/casc/casckey"
	"github.com/stretchr/testify/require"
)

func TestFilterNoFalseNegatives(t *testing.T) {
	f := NewFilter(1000, 0.01)
	var present [][]byte
	for i := 0; i < 1000; i++ {
		k := []byte(fmt.Sprintf("key-%d", i))
		f.Add(k)
		present = append(present, k)
	}
	for _, k := range present {
		require.True(t, f.MaybeContains(k))
	}
}

func TestFilterDefiniteAbsence(t *testing.T) {
	f := NewFilter(10, 0.001)
	f.Add([]byte("only-key"))
	require.False(t, f.MaybeContains([]byte("definitely-not-there-and-long-enough-to-differ")))
}

func TestBucketedFilterRoundTrip(t *testing.T) {
	bf := NewBucketedFilter(100, 0.01)
	var prefixes []casckey.EKeyPrefix
	for i := 0; i < 50; i++ {
		p := casckey.HashEncoded([]byte(fmt.Sprintf("content-%d", i))).Prefix()
		prefixes = append(prefixes, p)
		bf.Add(p)
	}
	for _, p := range prefixes {
		require.True(t, bf.MaybeContains(p))
	}
}

func TestBucketedFilterRebuildIsolatesBucket(t *testing.T) {
	bf := NewBucketedFilter(10, 0.01)
	p := casckey.HashEncoded([]byte("some content")).Prefix()
	bf.Add(p)
	require.True(t, bf.MaybeContains(p))

	bf.Rebuild(p.Bucket(), nil, 0.01)
	require.False(t, bf.MaybeContains(p))
}

// Two EncodingKeys sharing the same 9-byte prefix but differing beyond
// it must look identical to the filter: a shard only ever persists the
// prefix, so a key reloaded from disk (whose trailing bytes are lost)
// must still be found by a lookup built from the full key written in
// the same session.
func TestBucketedFilterPrefixIdentityAcrossFullKeys(t *testing.T) {
	a := casckey.HashEncoded([]byte("variant A"))
	b := a
	b[casckey.PrefixSize] ^= 0xFF // differs only past the stored prefix

	bf := NewBucketedFilter(10, 0.01)
	bf.Add(a.Prefix())
	require.True(t, bf.MaybeContains(b.Prefix()))
}
