package oauth2

import (
	"context"

	"github.com/coreos/go-oidc/v3/oidc"
)

// NewIDTokenVerifier verifies id_tokens issued by issuer against the keys
// published at jwksURL.
func NewIDTokenVerifier(ctx context.Context, issuer, jwksURL, clientID string) *oidc.IDTokenVerifier {
	keySet := oidc.NewRemoteKeySet(ctx, jwksURL)
	return oidc.NewVerifier(issuer, keySet, &oidc.Config{ClientID: clientID})
}
