package cryptokeys

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeyStoreRoundTrip(t *testing.T) {
	ks := NewKeyStore()
	_, ok := ks.Lookup(0x1234567890ABCDEF)
	require.False(t, ok)

	ks.Install(0x1234567890ABCDEF, make([]byte, KeySize))
	key, ok := ks.Lookup(0x1234567890ABCDEF)
	require.True(t, ok)
	require.Len(t, key, KeySize)
}

func TestEffectiveIV(t *testing.T) {
	iv := EffectiveIV([]byte{1, 2, 3, 4}, 1)
	require.Equal(t, byte(0), iv[0]) // 1 XOR (index low byte 1) == 0
	require.Equal(t, byte(2), iv[1])
}

func TestDecryptSalsa20RoundTrip(t *testing.T) {
	key := make([]byte, KeySize)
	for i := range key {
		key[i] = byte(i)
	}
	iv := EffectiveIV([]byte{9, 9, 9, 9, 9, 9, 9, 9}, 0)
	plaintext := []byte("the quick brown fox")

	ciphertext, err := Decrypt(TypeSalsa20, key, iv, plaintext)
	require.NoError(t, err)
	require.NotEqual(t, plaintext, ciphertext)

	// Salsa20 is symmetric: decrypting the ciphertext with the same
	// key/IV yields the original plaintext back.
	roundTrip, err := Decrypt(TypeSalsa20, key, iv, ciphertext)
	require.NoError(t, err)
	require.Equal(t, plaintext, roundTrip)
}

func TestDecryptUnknownType(t *testing.T) {
	_, err := Decrypt(Type('X'), nil, [8]byte{}, nil)
	require.Error(t, err)
}
