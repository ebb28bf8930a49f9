// Package secp256k1 implements ECDSA over the Koblitz curve secp256k1.
package secp256k1

import (
	"crypto"
	"errors"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

var errInvalidPrivateKey = errors.New("invalid secp256k1 private key")

// Scheme signs and verifies over secp256k1 with RFC 6979 nonces.
type Scheme struct{}

func (Scheme) GenerateKey() ([]byte, []byte, error) {
	key, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, nil, err
	}
	return key.Serialize(), key.PubKey().SerializeUncompressed(), nil
}

func (Scheme) PublicKey(priv []byte) ([]byte, error) {
	key, err := privateKey(priv)
	if err != nil {
		return nil, err
	}
	return key.PubKey().SerializeUncompressed(), nil
}

func (Scheme) Sign(priv, digest []byte, hash crypto.Hash) ([]byte, error) {
	if len(digest) != hash.Size() {
		return nil, fmt.Errorf("digest of %d bytes does not match %v", len(digest), hash)
	}

	key, err := privateKey(priv)
	if err != nil {
		return nil, err
	}
	return ecdsa.Sign(key, digest).Serialize(), nil
}

func (Scheme) Verify(pub, digest, sig []byte) (bool, error) {
	key, err := secp256k1.ParsePubKey(pub)
	if err != nil {
		return false, fmt.Errorf("parsing secp256k1 public key: %w", err)
	}

	signature, err := ecdsa.ParseDERSignature(sig)
	if err != nil {
		return false, fmt.Errorf("parsing secp256k1 signature: %w", err)
	}
	return signature.Verify(digest, key), nil
}

func privateKey(priv []byte) (*secp256k1.PrivateKey, error) {
	if len(priv) != secp256k1.PrivKeyBytesLen {
		return nil, errInvalidPrivateKey
	}

	key := secp256k1.PrivKeyFromBytes(priv)
	if key.Key.IsZero() {
		return nil, errInvalidPrivateKey
	}
	return key, nil
}
