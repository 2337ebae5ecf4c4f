// Package codec signs and verifies compact HS256 tokens.
//
// Tokens are three base64url (unpadded) segments: header, payload and an
// HMAC-SHA256 signature over "header.payload". Verification is pure and
// reports why a token was rejected through wrapped sentinel errors so callers
// can collapse every reason into "no identity" while still logging the cause.
package codec

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/jrsteele09/oamanage-auth/internal/errors"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

const (
	ExpiryClaim = "exp"
	Algorithm   = "HS256"
)

var (
	// ErrInvalid is wrapped by every verification failure.
	ErrInvalid       = fmt.Errorf("codec: %w", errors.ErrInvalidToken)
	ErrMalformed     = fmt.Errorf("%w: malformed", ErrInvalid)
	ErrSignature     = fmt.Errorf("%w: signature mismatch", ErrInvalid)
	ErrExpired       = fmt.Errorf("%w: %w", ErrInvalid, errors.ErrTokenExpired)
	ErrMissingExpiry = fmt.Errorf("%w: missing exp", ErrInvalid)
)

var encoding = base64.RawURLEncoding

// header is fixed, so it is encoded once.
var encodedHeader = encoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))

// Sign returns a token for claims that expires ttl from now. Any caller
// supplied exp is replaced. The input map is not modified.
func Sign(claims Claims, secret []byte, ttl time.Duration) (string, error) {
	payloadClaims := make(Claims, len(claims)+1)
	maps.Copy(payloadClaims, claims)
	payloadClaims[ExpiryClaim] = NowTimeFunc().Add(ttl).Unix()

	payload, err := json.Marshal(payloadClaims)
	if err != nil {
		return "", fmt.Errorf("codec.Sign marshal claims: %w", err)
	}

	signingInput := encodedHeader + "." + encoding.EncodeToString(payload)
	return signingInput + "." + encoding.EncodeToString(mac(signingInput, secret)), nil
}

// Verify checks the signature and expiry of token and returns its claims.
// Tokens without a numeric exp are rejected.
func Verify(token string, secret []byte) (Claims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return nil, ErrMalformed
	}

	if !validHeader(parts[0]) {
		return nil, ErrMalformed
	}

	signature, err := encoding.DecodeString(parts[2])
	if err != nil {
		return nil, ErrMalformed
	}
	if !hmac.Equal(signature, mac(parts[0]+"."+parts[1], secret)) {
		return nil, ErrSignature
	}

	payload, err := encoding.DecodeString(parts[1])
	if err != nil {
		return nil, ErrMalformed
	}

	var claims Claims
	if err := json.NewDecoder(bytes.NewReader(payload)).Decode(&claims); err != nil || claims == nil {
		return nil, ErrMalformed
	}

	exp, ok := claims[ExpiryClaim].(float64)
	if !ok {
		return nil, ErrMissingExpiry
	}
	if float64(NowTimeFunc().Unix()) > exp {
		return nil, ErrExpired
	}
	return claims, nil
}

func validHeader(segment string) bool {
	raw, err := encoding.DecodeString(segment)
	if err != nil {
		return false
	}
	var h struct {
		Alg string `json:"alg"`
	}
	return json.Unmarshal(raw, &h) == nil && h.Alg == Algorithm
}

func mac(signingInput string, secret []byte) []byte {
	h := hmac.New(sha256.New, secret)
	h.Write([]byte(signingInput))
	return h.Sum(nil)
}
