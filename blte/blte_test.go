package blte

import (
	"crypto/md5"
	"testing"

	"github.com/ngdp-go/casc/cryptokeys"
	"github.com/stretchr/testify/require"
)

// A single-chunk implicit-form stream.
func TestDecodeS1(t *testing.T) {
	data := []byte{0x42, 0x4C, 0x54, 0x45, 0x00, 0x00, 0x00, 0x00, 0x4E, 0x48, 0x65, 0x6C, 0x6C, 0x6F}
	out, err := Decode(data, DecodeOptions{})
	require.NoError(t, err)
	require.Equal(t, []byte("Hello"), out)

	ekey := md5.Sum(data)
	out2, err := Decode(data, DecodeOptions{EKey: &ekey})
	require.NoError(t, err)
	require.Equal(t, []byte("Hello"), out2)
}

// A 5-byte plaintext with chunk size 8 fits in a single chunk, so the
// encoder must emit single-chunk form.
func TestEncodeS2SingleChunkForm(t *testing.T) {
	out, err := Encode([]byte("Hello"), EncodeOptions{ChunkSize: 8, Mode: ModeRaw})
	require.NoError(t, err)

	hdr, dataStart, err := ParseHeader(out)
	require.NoError(t, err)
	require.True(t, hdr.Single())
	require.Equal(t, byte('N'), out[dataStart])

	decoded, err := Decode(out, DecodeOptions{})
	require.NoError(t, err)
	require.Equal(t, []byte("Hello"), decoded)
}

// An 'E' chunk whose key is absent fails with a distinct "key not
// found" error naming the key.
func TestDecodeS6KeyNotFound(t *testing.T) {
	keyName := uint64(0x1234567890ABCDEF)
	var body []byte
	body = append(body, byte(ModeEncrypted))
	body = append(body, 8) // key name len
	var kn [8]byte
	for i := 0; i < 8; i++ {
		kn[i] = byte(keyName >> (8 * i))
	}
	body = append(body, kn[:]...)
	body = append(body, 4) // iv len
	body = append(body, 1, 2, 3, 4)
	body = append(body, byte(cryptokeys.TypeSalsa20))
	body = append(body, []byte("ciphertext-placeholder")...)

	stream := append([]byte{}, Magic[:]...)
	stream = append(stream, 0, 0, 0, 0) // header size 0: single chunk
	stream = append(stream, body...)

	_, err := Decode(stream, DecodeOptions{Keys: cryptokeys.NewKeyStore()})
	require.Error(t, err)
	require.Contains(t, err.Error(), "1234567890abcdef")
}

func TestRoundTripProperty(t *testing.T) {
	modes := []Mode{ModeRaw, ModeZlib, ModeLZ4}
	plaintexts := [][]byte{
		{},
		[]byte("a"),
		[]byte("Hello, World! This is a slightly longer test string."),
		make([]byte, 1000),
	}
	for i := range plaintexts[3] {
		plaintexts[3][i] = byte(i % 251)
	}

	for _, mode := range modes {
		for _, p := range plaintexts {
			for _, chunkSize := range []int{8, 64, 4096} {
				encoded, err := Encode(p, EncodeOptions{ChunkSize: chunkSize, Mode: mode})
				require.NoError(t, err)

				decoded, err := Decode(encoded, DecodeOptions{VerifyChecksums: true})
				require.NoError(t, err)
				require.Equal(t, p, decoded)

				ekey := md5.Sum(encoded)
				decoded2, err := Decode(encoded, DecodeOptions{EKey: &ekey, VerifyChecksums: true})
				require.NoError(t, err)
				require.Equal(t, p, decoded2)
			}
		}
	}
}

func TestParseHeaderBadMagic(t *testing.T) {
	_, _, err := ParseHeader([]byte("NOPE0000"))
	require.Error(t, err)
}

func TestParseHeaderTruncated(t *testing.T) {
	_, _, err := ParseHeader([]byte{0x42, 0x4C})
	require.Error(t, err)
}
