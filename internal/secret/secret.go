package secret

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
)

// MustNew generates a new cryptographically secure key of length len and returns its base64 representation
func MustNew(len int) string {
	bytes := make([]byte, len)
	_, err := rand.Read(bytes)
	if err != nil {
		panic(err)
	}
	return base64.StdEncoding.EncodeToString(bytes)
}

// Fingerprinter derives stable, non-reversible fingerprints of sensitive values (i.e. national identifiers) which
// may be used as cache keys or stored alongside search log entries
type Fingerprinter struct {
	key []byte
}

// NewFingerprinter creates a new fingerprinter using the given key.
// If the key is empty, a random one is generated; fingerprints will then not survive a restart.
func NewFingerprinter(key string) *Fingerprinter {
	if key == "" {
		key = MustNew(32)
	}
	return &Fingerprinter{key: []byte(key)}
}

// Fingerprint returns the hex encoded HMAC-SHA512/256 of the given value
func (fingerprinter *Fingerprinter) Fingerprint(value string) string {
	mac := hmac.New(sha512.New512_256, fingerprinter.key)
	mac.Write([]byte(value))
	return hex.EncodeToString(mac.Sum(nil))
}
