package search

import (
	"context"
	"github.com/skybi/impds-proxy/internal/beneficiary"
)

//go:generate mockgen -source=ports.go -destination=mocks/ports.go -package=mocks

// SessionProvider hands out portal session tokens; implemented by session.Manager
type SessionProvider interface {
	Acquire(ctx context.Context) (string, error)
	Invalidate()
}

// Encrypter encrypts identifiers the way the portal expects them; implemented by codec.PassphraseCodec
type Encrypter interface {
	Encrypt(plaintext string) (string, error)
}

// PortalSearcher submits searches to the portal; implemented by portal.Client
type PortalSearcher interface {
	Search(ctx context.Context, token, searchType, ciphertext string) ([]byte, error)
}

// ResultParser converts raw portal markup into records; implemented by parser.Parser
type ResultParser interface {
	Parse(raw []byte) ([]*beneficiary.Record, error)
}
