// Package jwtverifier verifies signed JWTs against a static set of trusted
// public keys.
//
// A Verifier is pinned to exactly one signature algorithm. The algorithm named
// in a token's header is checked against the pinned value before any
// signature work and is never used to choose how the signature is verified.
package jwtverifier

import (
	"fmt"
	"time"

	"github.com/go-jose/go-jose/v4"

	"github.com/m-lab/authgate/auth/autherr"
)

// DefaultAlgorithm is the signature algorithm used when none is configured.
const DefaultAlgorithm = jose.RS256

// SupportedAlgorithms lists the algorithms a Verifier may be pinned to. All
// are asymmetric and SHA-256 based.
var SupportedAlgorithms = []jose.SignatureAlgorithm{jose.RS256, jose.PS256, jose.ES256}

// Option configures a Verifier.
type Option func(*Verifier)

// WithAlgorithm pins the signature algorithm.
func WithAlgorithm(alg jose.SignatureAlgorithm) Option {
	return func(v *Verifier) {
		v.alg = alg
	}
}

// WithIssuer requires tokens to carry the given "iss" claim.
func WithIssuer(iss string) Option {
	return func(v *Verifier) {
		v.issuer = iss
	}
}

// WithAudience requires tokens to name at least one of the given audiences.
func WithAudience(aud ...string) Option {
	return func(v *Verifier) {
		v.audience = append([]string(nil), aud...)
	}
}

// WithClockSkew sets the tolerance applied to exp, nbf and iat checks.
func WithClockSkew(d time.Duration) Option {
	return func(v *Verifier) {
		v.skew = d
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(v *Verifier) {
		v.now = now
	}
}

// ParseAlgorithm returns the named algorithm if it is supported.
func ParseAlgorithm(name string) (jose.SignatureAlgorithm, error) {
	for _, alg := range SupportedAlgorithms {
		if string(alg) == name {
			return alg, nil
		}
	}
	return "", fmt.Errorf("unsupported signature algorithm %q, want one of %v", name, SupportedAlgorithms)
}

func isSupported(alg jose.SignatureAlgorithm) bool {
	_, err := ParseAlgorithm(string(alg))
	return err == nil
}

// Claims are the verified claims of a token. Claims are only produced by
// Verify after every check has passed.
type Claims struct {
	Subject   string
	Issuer    string
	Audience  []string
	ID        string
	IssuedAt  time.Time
	NotBefore time.Time
	Expiry    time.Time
}

// KeyError describes a problem with verification key material. It is always
// wrapped in an autherr.KeyUnavailable error.
type KeyError struct {
	Index int
	Msg   string
}

func (e *KeyError) Error() string {
	return fmt.Sprintf("key %d: %s", e.Index, e.Msg)
}

func keyUnavailable(format string, args ...interface{}) error {
	return autherr.Errorf(autherr.KeyUnavailable, format, args...)
}
