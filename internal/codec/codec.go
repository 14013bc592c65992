package codec

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"unicode/utf8"
)

const (
	saltHeader = "Salted__"
	saltLength = 8
	keyLength  = 32
)

// ErrMalformedCiphertext is returned whenever a value handed to Decrypt is not a ciphertext produced using the
// configured passphrase
var ErrMalformedCiphertext = errors.New("malformed ciphertext")

// Codec defines the symmetric cipher API used to transport identifiers to the portal
type Codec interface {
	// Encrypt encrypts the given plaintext and returns its text-safe representation
	Encrypt(plaintext string) (string, error)

	// Decrypt reverses Encrypt.
	// ErrMalformedCiphertext is returned if the given value is not a valid ciphertext.
	Decrypt(ciphertext string) (string, error)
}

// PassphraseCodec implements Codec using the OpenSSL passphrase format the portal's frontend produces:
// base64("Salted__" | salt | AES-256-CBC(plaintext)), with key and IV derived from the passphrase and the salt
// using EVP_BytesToKey with MD5.
type PassphraseCodec struct {
	passphrase []byte
}

var _ Codec = (*PassphraseCodec)(nil)

// NewPassphrase creates a new passphrase based codec
func NewPassphrase(passphrase string) *PassphraseCodec {
	return &PassphraseCodec{
		passphrase: []byte(passphrase),
	}
}

// Encrypt encrypts the given plaintext using a fresh random salt
func (codec *PassphraseCodec) Encrypt(plaintext string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	return codec.encryptWithSalt(plaintext, salt)
}

func (codec *PassphraseCodec) encryptWithSalt(plaintext string, salt []byte) (string, error) {
	key, iv := deriveKeyAndIV(codec.passphrase, salt)
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}

	padded := pad([]byte(plaintext), aes.BlockSize)
	encrypted := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(encrypted, padded)

	out := make([]byte, 0, len(saltHeader)+saltLength+len(encrypted))
	out = append(out, saltHeader...)
	out = append(out, salt...)
	out = append(out, encrypted...)
	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt decrypts a ciphertext produced by Encrypt (or any OpenSSL compatible implementation using the same
// passphrase)
func (codec *PassphraseCodec) Decrypt(ciphertext string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: invalid base64: %v", ErrMalformedCiphertext, err)
	}
	if len(raw) < len(saltHeader)+saltLength || !bytes.Equal(raw[:len(saltHeader)], []byte(saltHeader)) {
		return "", fmt.Errorf("%w: missing salt header", ErrMalformedCiphertext)
	}
	salt := raw[len(saltHeader) : len(saltHeader)+saltLength]
	encrypted := raw[len(saltHeader)+saltLength:]
	if len(encrypted) == 0 || len(encrypted)%aes.BlockSize != 0 {
		return "", fmt.Errorf("%w: invalid ciphertext length", ErrMalformedCiphertext)
	}

	key, iv := deriveKeyAndIV(codec.passphrase, salt)
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	decrypted := make([]byte, len(encrypted))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(decrypted, encrypted)

	plaintext, ok := unpad(decrypted, aes.BlockSize)
	if !ok {
		return "", fmt.Errorf("%w: invalid padding", ErrMalformedCiphertext)
	}
	if !utf8.Valid(plaintext) {
		return "", fmt.Errorf("%w: plaintext is not valid UTF-8", ErrMalformedCiphertext)
	}
	return string(plaintext), nil
}

// deriveKeyAndIV implements OpenSSL's EVP_BytesToKey using MD5 and a single iteration
func deriveKeyAndIV(passphrase, salt []byte) ([]byte, []byte) {
	var derived, previous []byte
	for len(derived) < keyLength+aes.BlockSize {
		hash := md5.New()
		hash.Write(previous)
		hash.Write(passphrase)
		hash.Write(salt)
		previous = hash.Sum(nil)
		derived = append(derived, previous...)
	}
	return derived[:keyLength], derived[keyLength : keyLength+aes.BlockSize]
}

func pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(append(make([]byte, 0, len(data)+n), data...), bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(data []byte, blockSize int) ([]byte, bool) {
	if len(data) == 0 {
		return nil, false
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, false
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, false
		}
	}
	return data[:len(data)-n], true
}
