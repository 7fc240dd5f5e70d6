// Package auth decides whether a request may see unmasked search results.
//
// There is no rejection path: a missing or wrong token is not an error,
// it only means the caller gets anonymized output.
package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/fyrsmithlabs/llmsearch/internal/config"
	"go.uber.org/zap"
)

// QueryParam is the legacy query parameter carrying the token.
const QueryParam = "post_token"

const bearerPrefix = "bearer "

// Verifier compares candidate tokens against the configured secret.
// It is immutable and safe for concurrent use.
type Verifier struct {
	expected []byte
	logger   *zap.Logger
}

// NewVerifier creates a verifier for expected. An empty secret is valid and
// matches an empty candidate.
func NewVerifier(expected config.Secret, logger *zap.Logger) *Verifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Verifier{
		expected: []byte(expected.Value()),
		logger:   logger,
	}
}

// Verify reports whether candidate equals the configured token. The
// comparison takes the same time for every candidate of a given length.
func (v *Verifier) Verify(candidate string) bool {
	return subtle.ConstantTimeCompare([]byte(candidate), v.expected) == 1
}

// VerifyRequest extracts the token from r and verifies it.
func (v *Verifier) VerifyRequest(r *http.Request) bool {
	token, source := TokenFromRequest(r)
	ok := v.Verify(token)
	v.logger.Debug("token checked",
		zap.String("source", source),
		zap.Bool("authorized", ok),
	)
	return ok
}

// TokenFromRequest returns the caller's token and where it came from.
// The Authorization bearer header wins over the post_token query parameter.
// source is "header", "query" or "none".
func TokenFromRequest(r *http.Request) (token, source string) {
	if h := r.Header.Get("Authorization"); len(h) >= len(bearerPrefix) && strings.EqualFold(h[:len(bearerPrefix)], bearerPrefix) {
		return strings.TrimSpace(h[len(bearerPrefix):]), "header"
	}
	if values, ok := r.URL.Query()[QueryParam]; ok && len(values) > 0 {
		return values[0], "query"
	}
	return "", "none"
}
