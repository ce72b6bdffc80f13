package envelope

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealOpenRoundTrip(t *testing.T) {
	key, err := GenerateContentKey()
	require.NoError(t, err)
	require.Len(t, key, KeySize)

	payloads := [][]byte{
		[]byte("hello"),
		{},
		bytes.Repeat([]byte{0xAB}, 1<<16),
	}

	for _, plaintext := range payloads {
		ciphertext, iv, tag, err := Seal(plaintext, key)
		require.NoError(t, err)
		require.Len(t, iv, NonceSize)
		require.Len(t, tag, TagSize)

		got, err := Open(ciphertext, key, iv, tag)
		require.NoError(t, err)
		assert.Equal(t, plaintext, got)
	}
}

func TestSealUsesFreshNonces(t *testing.T) {
	key, err := GenerateContentKey()
	require.NoError(t, err)

	_, iv1, _, err := Seal([]byte("same input"), key)
	require.NoError(t, err)
	_, iv2, _, err := Seal([]byte("same input"), key)
	require.NoError(t, err)

	assert.NotEqual(t, iv1, iv2)
}

func TestOpenRejectsTampering(t *testing.T) {
	key, err := GenerateContentKey()
	require.NoError(t, err)
	ciphertext, iv, tag, err := Seal([]byte("pay to reveal"), key)
	require.NoError(t, err)

	flip := func(b []byte) []byte {
		out := append([]byte(nil), b...)
		out[0] ^= 0x01
		return out
	}

	_, err = Open(flip(ciphertext), key, iv, tag)
	assert.ErrorIs(t, err, ErrIntegrity)

	_, err = Open(ciphertext, key, iv, flip(tag))
	assert.ErrorIs(t, err, ErrIntegrity)

	wrongKey, err := GenerateContentKey()
	require.NoError(t, err)
	_, err = Open(ciphertext, wrongKey, iv, tag)
	assert.ErrorIs(t, err, ErrIntegrity)
}

func TestBlobEncodeDecode(t *testing.T) {
	key, err := GenerateContentKey()
	require.NoError(t, err)
	ciphertext, iv, tag, err := Seal([]byte("blob format"), key)
	require.NoError(t, err)

	blob := EncodeBlob(iv, ciphertext, tag)
	gotIV, gotCT, gotTag, err := DecodeBlob(blob)
	require.NoError(t, err)
	assert.Equal(t, iv, gotIV)
	assert.Equal(t, ciphertext, gotCT)
	assert.Equal(t, tag, gotTag)

	plaintext, err := Open(gotCT, key, gotIV, gotTag)
	require.NoError(t, err)
	assert.Equal(t, []byte("blob format"), plaintext)

	_, _, _, err = DecodeBlob(make([]byte, NonceSize+TagSize-1))
	assert.Error(t, err)
}

func TestMasterKeyDerivation(t *testing.T) {
	_, err := NewMaster("")
	require.Error(t, err)

	short, err := NewMaster("short-secret")
	require.NoError(t, err)
	long, err := NewMaster("this secret is much longer than thirty-two bytes in total")
	require.NoError(t, err)

	key, err := GenerateContentKey()
	require.NoError(t, err)

	for _, master := range []*Master{short, long} {
		env, err := master.SealContentKey(key)
		require.NoError(t, err)

		got, err := master.OpenContentKey(env)
		require.NoError(t, err)
		assert.Equal(t, key, got)
	}

	// Same secret, separate Master: stored envelopes stay readable.
	again, err := NewMaster("short-secret")
	require.NoError(t, err)
	env, err := short.SealContentKey(key)
	require.NoError(t, err)
	got, err := again.OpenContentKey(env)
	require.NoError(t, err)
	assert.Equal(t, key, got)

	// Different secret fails closed.
	other, err := NewMaster("another-secret")
	require.NoError(t, err)
	_, err = other.OpenContentKey(env)
	assert.ErrorIs(t, err, ErrIntegrity)
}
