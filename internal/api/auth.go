package api

import (
	"context"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/skybi/impds-proxy/internal/api/schema"
	"net/http"
	"strings"
)

// TokenVerifier verifies bearer ID tokens; implemented by *oidc.IDTokenVerifier
type TokenVerifier interface {
	Verify(ctx context.Context, rawIDToken string) (*oidc.IDToken, error)
}

// NewOIDCVerifier discovers the given OIDC issuer and creates a verifier accepting ID tokens issued for clientID
func NewOIDCVerifier(ctx context.Context, issuerURL, clientID string) (*oidc.IDTokenVerifier, error) {
	provider, err := oidc.NewProvider(ctx, issuerURL)
	if err != nil {
		return nil, err
	}
	return provider.Verifier(&oidc.Config{
		ClientID: clientID,
	}), nil
}

// MiddlewareVerifyToken makes sure that the requesting client has provided a valid ID token if a verifier is set.
// Additionally, it attaches the token's subject to the request logger.
func (service *Service) MiddlewareVerifyToken(next http.Handler) http.Handler {
	if service.Verifier == nil {
		return next
	}
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		// Try to read the 'Authorization' header and verify it is of type 'Bearer'
		header := request.Header.Get("Authorization")
		scheme, rawToken, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(rawToken) == "" {
			service.writer.WriteErrors(writer, http.StatusUnauthorized, schema.ErrUnauthorized)
			return
		}

		token, err := service.Verifier.Verify(request.Context(), strings.TrimSpace(rawToken))
		if err != nil {
			service.writer.WriteErrors(writer, http.StatusUnauthorized, schema.ErrUnauthorized)
			return
		}

		hlog.FromRequest(request).UpdateContext(func(ctx zerolog.Context) zerolog.Context {
			return ctx.Str("subject", token.Subject)
		})

		// Delegate to the next handler
		next.ServeHTTP(writer, request)
	})
}
