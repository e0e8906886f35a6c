package jwtverifier

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"

	"github.com/m-lab/authgate/auth/autherr"
)

// maxTokenSize bounds the work done on untrusted input.
const maxTokenSize = 8 << 10

// Verifier validates compact JWS tokens against a fixed key set. A Verifier
// is immutable after New and safe for concurrent use.
type Verifier struct {
	keys     []jose.JSONWebKey
	alg      jose.SignatureAlgorithm
	issuer   string
	audience []string
	skew     time.Duration
	now      func() time.Time
}

// New creates a Verifier trusting the given public keys. Private keys are
// reduced to their public half. Every key must be usable with the pinned
// algorithm.
func New(keys []jose.JSONWebKey, opts ...Option) (*Verifier, error) {
	v := &Verifier{
		alg: DefaultAlgorithm,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	if !isSupported(v.alg) {
		return nil, keyUnavailable("unsupported signature algorithm %q", v.alg)
	}
	if v.skew < 0 {
		return nil, fmt.Errorf("clock skew must not be negative, got %v", v.skew)
	}
	if len(keys) == 0 {
		return nil, keyUnavailable("no verification keys")
	}
	v.keys = make([]jose.JSONWebKey, 0, len(keys))
	for i := range keys {
		k := keys[i]
		if !k.IsPublic() {
			k = k.Public()
		}
		if err := checkKey(v.alg, &k); err != nil {
			return nil, autherr.New(autherr.KeyUnavailable, &KeyError{Index: i, Msg: err.Error()})
		}
		k.Algorithm = string(v.alg)
		v.keys = append(v.keys, k)
	}
	return v, nil
}

// Algorithm returns the pinned signature algorithm.
func (v *Verifier) Algorithm() jose.SignatureAlgorithm {
	return v.alg
}

// Verify checks the token's algorithm, signature, time claims, and any
// configured issuer or audience constraint. All errors are *autherr.Error.
func (v *Verifier) Verify(token string) (*Claims, error) {
	if v == nil || len(v.keys) == 0 {
		return nil, autherr.New(autherr.KeyUnavailable, errors.New("no verification keys loaded"))
	}
	if len(token) > maxTokenSize {
		return nil, autherr.Errorf(autherr.ClaimsMalformed, "token exceeds %d bytes", maxTokenSize)
	}

	hdr, err := peekHeader(token)
	if err != nil {
		return nil, autherr.New(autherr.ClaimsMalformed, err)
	}
	if hdr.Alg != string(v.alg) {
		return nil, autherr.Errorf(autherr.AlgorithmMismatch, "token algorithm %q, want %q", hdr.Alg, v.alg)
	}

	tok, err := jwt.ParseSigned(token, []jose.SignatureAlgorithm{v.alg})
	if err != nil {
		return nil, autherr.New(autherr.ClaimsMalformed, err)
	}

	var cl jwt.Claims
	if err := v.verifySignature(tok, hdr.Kid, &cl); err != nil {
		return nil, err
	}
	if err := v.validate(&cl); err != nil {
		return nil, err
	}

	return &Claims{
		Subject:   cl.Subject,
		Issuer:    cl.Issuer,
		Audience:  []string(cl.Audience),
		ID:        cl.ID,
		IssuedAt:  numericTime(cl.IssuedAt),
		NotBefore: numericTime(cl.NotBefore),
		Expiry:    numericTime(cl.Expiry),
	}, nil
}

// header holds the protected header fields read before verification.
type header struct {
	Alg string `json:"alg"`
	Kid string `json:"kid"`
}

// peekHeader decodes the protected header of a compact JWS without verifying
// anything.
func peekHeader(token string) (*header, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("token must have 3 parts, got %d", len(parts))
	}
	if parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return nil, errors.New("token parts cannot be empty")
	}
	b, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, fmt.Errorf("invalid header encoding: %w", err)
	}
	var h header
	if err := json.Unmarshal(b, &h); err != nil {
		return nil, fmt.Errorf("invalid header JSON: %w", err)
	}
	return &h, nil
}

// verifySignature tries each candidate key until one verifies the signature,
// then decodes the claims into out.
func (v *Verifier) verifySignature(tok *jwt.JSONWebToken, kid string, out *jwt.Claims) error {
	var lastErr error
	for _, key := range v.candidates(kid) {
		err := tok.Claims(key, out)
		if err == nil {
			return nil
		}
		if !errors.Is(err, jose.ErrCryptoFailure) {
			// The signature verified, but the payload is not a claim set.
			return autherr.New(autherr.ClaimsMalformed, err)
		}
		lastErr = err
	}
	return autherr.New(autherr.SignatureInvalid, lastErr)
}

// candidates returns the keys matching kid, or every key when kid is empty or
// unknown.
func (v *Verifier) candidates(kid string) []jose.JSONWebKey {
	if kid == "" {
		return v.keys
	}
	var matched []jose.JSONWebKey
	for _, k := range v.keys {
		if k.KeyID == kid {
			matched = append(matched, k)
		}
	}
	if len(matched) == 0 {
		return v.keys
	}
	return matched
}

func (v *Verifier) validate(cl *jwt.Claims) error {
	now := v.now()
	if cl.Expiry == nil {
		return autherr.Errorf(autherr.ClaimsMalformed, "missing exp claim")
	}
	if !now.Before(cl.Expiry.Time().Add(v.skew)) {
		return autherr.Errorf(autherr.TokenExpired, "expired at %s", cl.Expiry.Time().UTC().Format(time.RFC3339))
	}
	if cl.NotBefore != nil && now.Add(v.skew).Before(cl.NotBefore.Time()) {
		return autherr.Errorf(autherr.TokenNotYetValid, "not valid before %s", cl.NotBefore.Time().UTC().Format(time.RFC3339))
	}
	if cl.IssuedAt != nil && now.Add(v.skew).Before(cl.IssuedAt.Time()) {
		return autherr.Errorf(autherr.TokenNotYetValid, "issued in the future at %s", cl.IssuedAt.Time().UTC().Format(time.RFC3339))
	}
	if v.issuer != "" && cl.Issuer != v.issuer {
		return autherr.Errorf(autherr.ClaimsRejected, "unexpected issuer %q", cl.Issuer)
	}
	if len(v.audience) > 0 && !containsAny(cl.Audience, v.audience) {
		return autherr.Errorf(autherr.ClaimsRejected, "audience %v does not include any of %v", []string(cl.Audience), v.audience)
	}
	if cl.Subject == "" {
		return autherr.Errorf(autherr.ClaimsMalformed, "missing sub claim")
	}
	return nil
}

func containsAny(have jwt.Audience, want []string) bool {
	for _, w := range want {
		if have.Contains(w) {
			return true
		}
	}
	return false
}

func numericTime(n *jwt.NumericDate) time.Time {
	if n == nil {
		return time.Time{}
	}
	return n.Time()
}
