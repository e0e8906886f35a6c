package jwtverifier

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"

	"github.com/go-jose/go-jose/v4"
	"github.com/hashicorp/go-multierror"

	"github.com/m-lab/authgate/auth/autherr"
)

// minRSABits is the smallest RSA modulus accepted for verification.
const minRSABits = 2048

// ParseKeys decodes verification keys from one or more blobs of key material.
// Each blob may hold PEM blocks (CERTIFICATE, PUBLIC KEY, RSA PUBLIC KEY), a
// JWK, or a JWK set. Private JWKs are reduced to their public half. Every
// returned key is bound to alg and checked for compatibility with it.
func ParseKeys(alg jose.SignatureAlgorithm, data ...[]byte) ([]jose.JSONWebKey, error) {
	var keys []jose.JSONWebKey
	var errs *multierror.Error
	for i, b := range data {
		parsed, err := parseBlob(b)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("blob %d: %w", i, err))
			continue
		}
		keys = append(keys, parsed...)
	}
	if err := errs.ErrorOrNil(); err != nil {
		return nil, autherr.New(autherr.KeyUnavailable, err)
	}
	if len(keys) == 0 {
		return nil, keyUnavailable("no keys found in key material")
	}
	for i := range keys {
		if !keys[i].IsPublic() {
			keys[i] = keys[i].Public()
		}
		if err := checkKey(alg, &keys[i]); err != nil {
			errs = multierror.Append(errs, &KeyError{Index: i, Msg: err.Error()})
			continue
		}
		keys[i].Algorithm = string(alg)
	}
	if err := errs.ErrorOrNil(); err != nil {
		return nil, autherr.New(autherr.KeyUnavailable, err)
	}
	return keys, nil
}

func parseBlob(b []byte) ([]jose.JSONWebKey, error) {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 {
		return nil, errors.New("empty key material")
	}
	if trimmed[0] == '{' {
		return parseJSON(trimmed)
	}
	return parsePEM(trimmed)
}

func parseJSON(b []byte) ([]jose.JSONWebKey, error) {
	var probe struct {
		Keys json.RawMessage `json:"keys"`
	}
	if err := json.Unmarshal(b, &probe); err != nil {
		return nil, fmt.Errorf("invalid JSON key material: %w", err)
	}
	if probe.Keys != nil {
		var set jose.JSONWebKeySet
		if err := json.Unmarshal(b, &set); err != nil {
			return nil, fmt.Errorf("invalid JWK set: %w", err)
		}
		return set.Keys, nil
	}
	var k jose.JSONWebKey
	if err := k.UnmarshalJSON(b); err != nil {
		return nil, fmt.Errorf("invalid JWK: %w", err)
	}
	return []jose.JSONWebKey{k}, nil
}

func parsePEM(b []byte) ([]jose.JSONWebKey, error) {
	var keys []jose.JSONWebKey
	var errs *multierror.Error
	rest := b
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		k, err := parsePEMBlock(block)
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		keys = append(keys, *k)
	}
	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, errors.New("no PEM blocks found")
	}
	return keys, nil
}

func parsePEMBlock(block *pem.Block) (*jose.JSONWebKey, error) {
	switch block.Type {
	case "CERTIFICATE":
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("invalid certificate: %w", err)
		}
		return &jose.JSONWebKey{
			Key:          cert.PublicKey,
			Use:          "sig",
			Certificates: []*x509.Certificate{cert},
		}, nil
	case "PUBLIC KEY":
		pub, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("invalid public key: %w", err)
		}
		return &jose.JSONWebKey{Key: pub, Use: "sig"}, nil
	case "RSA PUBLIC KEY":
		pub, err := x509.ParsePKCS1PublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("invalid RSA public key: %w", err)
		}
		return &jose.JSONWebKey{Key: pub, Use: "sig"}, nil
	default:
		return nil, fmt.Errorf("unsupported PEM block type %q", block.Type)
	}
}

// checkKey reports whether k can verify signatures made with alg.
func checkKey(alg jose.SignatureAlgorithm, k *jose.JSONWebKey) error {
	if !k.Valid() {
		return errors.New("invalid key")
	}
	if k.Use != "" && k.Use != "sig" {
		return fmt.Errorf("key use is %q, want \"sig\"", k.Use)
	}
	if k.Algorithm != "" && k.Algorithm != string(alg) {
		return fmt.Errorf("key algorithm is %q, want %q", k.Algorithm, alg)
	}
	switch alg {
	case jose.RS256, jose.PS256:
		pub, ok := k.Key.(*rsa.PublicKey)
		if !ok {
			return fmt.Errorf("%s requires an RSA public key, got %T", alg, k.Key)
		}
		if pub.N.BitLen() < minRSABits {
			return fmt.Errorf("RSA key is %d bits, want at least %d", pub.N.BitLen(), minRSABits)
		}
	case jose.ES256:
		pub, ok := k.Key.(*ecdsa.PublicKey)
		if !ok {
			return fmt.Errorf("%s requires an ECDSA public key, got %T", alg, k.Key)
		}
		if pub.Curve != elliptic.P256() {
			return fmt.Errorf("%s requires a P-256 key", alg)
		}
	default:
		return fmt.Errorf("unsupported signature algorithm %q", alg)
	}
	return nil
}
