// Package ecc implements ECDSA over the NIST prime curves.
package ecc

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"fmt"
)

// Scheme signs and verifies over a single NIST curve.
// Signing is deterministic as in RFC 6979.
type Scheme struct {
	curve elliptic.Curve
}

// New instantiates a Scheme over the given curve.
func New(curve elliptic.Curve) *Scheme {
	return &Scheme{curve: curve}
}

// Name returns the curve name as known to the standard library, e.g. P-256.
func (s *Scheme) Name() string {
	return s.curve.Params().Name
}

func (s *Scheme) GenerateKey() ([]byte, []byte, error) {
	key, err := ecdsa.GenerateKey(s.curve, rand.Reader)
	if err != nil {
		return nil, nil, err
	}

	priv, err := key.Bytes()
	if err != nil {
		return nil, nil, err
	}
	pub, err := key.PublicKey.Bytes()
	if err != nil {
		return nil, nil, err
	}
	return priv, pub, nil
}

func (s *Scheme) PublicKey(priv []byte) ([]byte, error) {
	key, err := s.privateKey(priv)
	if err != nil {
		return nil, err
	}
	return key.PublicKey.Bytes()
}

func (s *Scheme) Sign(priv, digest []byte, hash crypto.Hash) ([]byte, error) {
	if len(digest) != hash.Size() {
		return nil, fmt.Errorf("digest of %d bytes does not match %v", len(digest), hash)
	}

	key, err := s.privateKey(priv)
	if err != nil {
		return nil, err
	}
	// nil randomness selects RFC 6979 nonces
	return key.Sign(nil, digest, hash)
}

func (s *Scheme) Verify(pub, digest, sig []byte) (bool, error) {
	if len(sig) == 0 {
		return false, errors.New("empty signature")
	}

	key, err := ecdsa.ParseUncompressedPublicKey(s.curve, pub)
	if err != nil {
		return false, fmt.Errorf("parsing %s public key: %w", s.Name(), err)
	}
	return ecdsa.VerifyASN1(key, digest, sig), nil
}

func (s *Scheme) privateKey(priv []byte) (*ecdsa.PrivateKey, error) {
	key, err := ecdsa.ParseRawPrivateKey(s.curve, priv)
	if err != nil {
		return nil, fmt.Errorf("parsing %s private key: %w", s.Name(), err)
	}
	return key, nil
}
