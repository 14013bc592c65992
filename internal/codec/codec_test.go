package codec

import (
	"encoding/base64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"math/rand"
	"strings"
	"testing"
)

const testPassphrase = "test@passphrase#01"

func TestRoundTrip(t *testing.T) {
	codec := NewPassphrase(testPassphrase)

	inputs := []string{"", "123456789012", "hello world", "ünïcödé ✓", strings.Repeat("x", 16), strings.Repeat("y", 1000)}
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 100; i++ {
		buf := make([]rune, rng.Intn(64))
		for j := range buf {
			buf[j] = rune(rng.Intn(0xD7FF-0x20) + 0x20)
		}
		inputs = append(inputs, string(buf))
	}

	for _, input := range inputs {
		encrypted, err := codec.Encrypt(input)
		require.NoError(t, err)

		decrypted, err := codec.Decrypt(encrypted)
		require.NoError(t, err)
		assert.Equal(t, input, decrypted)
	}
}

func TestEncryptFormat(t *testing.T) {
	codec := NewPassphrase(testPassphrase)

	encrypted, err := codec.Encrypt("123456789012")
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(encrypted)
	require.NoError(t, err)
	assert.Equal(t, "Salted__", string(raw[:8]))
	assert.Len(t, raw, 8+8+16)

	again, err := codec.Encrypt("123456789012")
	require.NoError(t, err)
	assert.NotEqual(t, encrypted, again, "every encryption uses a fresh salt")
}

func TestEncryptWithSaltIsDeterministic(t *testing.T) {
	codec := NewPassphrase(testPassphrase)
	salt := []byte("saltsalt")

	a, err := codec.encryptWithSalt("123456789012", salt)
	require.NoError(t, err)
	b, err := codec.encryptWithSalt("123456789012", salt)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestDecryptRejectsNonCiphertext(t *testing.T) {
	codec := NewPassphrase(testPassphrase)

	valid, err := codec.Encrypt("123456789012")
	require.NoError(t, err)
	raw, err := base64.StdEncoding.DecodeString(valid)
	require.NoError(t, err)

	for name, input := range map[string]string{
		"empty":            "",
		"not base64":       "not a ciphertext!",
		"plain base64":     base64.StdEncoding.EncodeToString([]byte("hello world, this is plain")),
		"header only":      base64.StdEncoding.EncodeToString([]byte("Salted__12345678")),
		"truncated blocks": base64.StdEncoding.EncodeToString(raw[:len(raw)-3]),
		"digits":           "123456789012",
	} {
		t.Run(name, func(t *testing.T) {
			decrypted, err := codec.Decrypt(input)
			assert.ErrorIs(t, err, ErrMalformedCiphertext)
			assert.Empty(t, decrypted)
		})
	}
}

func TestDeriveKeyAndIV(t *testing.T) {
	key, iv := deriveKeyAndIV([]byte(testPassphrase), []byte("saltsalt"))
	assert.Len(t, key, 32)
	assert.Len(t, iv, 16)

	otherKey, _ := deriveKeyAndIV([]byte(testPassphrase), []byte("saltsal2"))
	assert.NotEqual(t, key, otherKey)
}

func TestPadding(t *testing.T) {
	for n := 0; n < 40; n++ {
		data := []byte(strings.Repeat("a", n))
		padded := pad(data, 16)
		assert.Zero(t, len(padded)%16)

		unpadded, ok := unpad(padded, 16)
		require.True(t, ok)
		assert.Equal(t, data, unpadded)
	}

	_, ok := unpad([]byte{1, 2, 3, 0}, 16)
	assert.False(t, ok)
	_, ok = unpad([]byte{1, 2, 3, 17}, 16)
	assert.False(t, ok)
}
