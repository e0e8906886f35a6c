// Package authtest provides keys and signed tokens for tests.
package authtest

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/hmac"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/m-lab/go/rtx"
)

var (
	rsaOnce sync.Once
	rsaKeys [2]*rsa.PrivateKey
)

// RSAKey returns one of two fixed 2048-bit RSA keys, generated once per test
// binary. Index 0 is conventionally the trusted key and index 1 an untrusted
// one.
func RSAKey(i int) *rsa.PrivateKey {
	rsaOnce.Do(func() {
		for j := range rsaKeys {
			k, err := rsa.GenerateKey(rand.Reader, 2048)
			rtx.Must(err, "failed to generate RSA key")
			rsaKeys[j] = k
		}
	})
	return rsaKeys[i]
}

// ECKey returns a new P-256 key.
func ECKey() *ecdsa.PrivateKey {
	k, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	rtx.Must(err, "failed to generate ECDSA key")
	return k
}

// PublicJWK returns the public JWK for priv.
func PublicJWK(priv interface{}, kid string, alg jose.SignatureAlgorithm) jose.JSONWebKey {
	k := jose.JSONWebKey{Key: priv, KeyID: kid, Algorithm: string(alg), Use: "sig"}
	return k.Public()
}

// PublicKeyPEM encodes the public half of priv as a PKIX "PUBLIC KEY" block.
func PublicKeyPEM(priv crypto.Signer) []byte {
	der, err := x509.MarshalPKIXPublicKey(priv.Public())
	rtx.Must(err, "failed to marshal public key")
	return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})
}

// CertificatePEM returns a self-signed certificate for priv.
func CertificatePEM(priv *rsa.PrivateKey, cn string) []byte {
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: cn},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &priv.PublicKey, priv)
	rtx.Must(err, "failed to create certificate")
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
}

// Claims returns standard claims for subject, valid from an hour before now
// until exp after now.
func Claims(subject string, now time.Time, exp time.Duration) jwt.Claims {
	return jwt.Claims{
		Subject:  subject,
		IssuedAt: jwt.NewNumericDate(now.Add(-time.Hour)),
		Expiry:   jwt.NewNumericDate(now.Add(exp)),
	}
}

// Sign signs claims with key using alg. A non-empty kid is placed in the
// protected header.
func Sign(key interface{}, alg jose.SignatureAlgorithm, kid string, claims interface{}) (string, error) {
	opts := (&jose.SignerOptions{}).WithType("JWT")
	if kid != "" {
		opts = opts.WithHeader("kid", kid)
	}
	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: alg, Key: key}, opts)
	if err != nil {
		return "", err
	}
	return jwt.Signed(signer).Claims(claims).Serialize()
}

// MustSign is Sign that panics on error.
func MustSign(key interface{}, alg jose.SignatureAlgorithm, kid string, claims interface{}) string {
	tok, err := Sign(key, alg, kid, claims)
	rtx.Must(err, "failed to sign claims")
	return tok
}

// UnsignedToken returns an "alg":"none" token whose signature segment is sig.
func UnsignedToken(claims interface{}, sig string) string {
	return encode(map[string]string{"alg": "none", "typ": "JWT"}, claims) + "." + sig
}

// HS256Token returns a token MACed with secret. Used to check that public key
// bytes are never accepted as an HMAC secret.
func HS256Token(secret []byte, claims interface{}) string {
	input := encode(map[string]string{"alg": "HS256", "typ": "JWT"}, claims)
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(input))
	return input + "." + base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// WithHeader returns token with its protected header replaced by hdr. The
// signature no longer matches.
func WithHeader(token string, hdr map[string]string) string {
	b, err := json.Marshal(hdr)
	rtx.Must(err, "failed to marshal header")
	i := strings.IndexByte(token, '.')
	return base64.RawURLEncoding.EncodeToString(b) + token[i:]
}

func encode(hdr map[string]string, claims interface{}) string {
	h, err := json.Marshal(hdr)
	rtx.Must(err, "failed to marshal header")
	c, err := json.Marshal(claims)
	rtx.Must(err, "failed to marshal claims")
	return base64.RawURLEncoding.EncodeToString(h) + "." + base64.RawURLEncoding.EncodeToString(c)
}
