// Package crypto holds the credential model used to sign OCPP messages:
// elliptic curve key pairs, signer roles attaching human readable metadata to
// the signatures they produce, and the registry binding every supported curve
// to its ECDSA scheme and digest function.
package crypto

import (
	"crypto"
)

// Curve names the elliptic curve of a KeyPair or a Signature.
type Curve string

const (
	Secp256r1 Curve = "secp256r1"
	Secp384r1 Curve = "secp384r1"
	Secp521r1 Curve = "secp521r1"
	Secp256k1 Curve = "secp256k1"

	// DefaultCurve is used whenever a curve name is left empty.
	DefaultCurve = Secp256r1
)

// String returns string representation of Curve.
func (c Curve) String() string {
	return string(c)
}

// OrDefault returns DefaultCurve for the empty Curve and c otherwise.
func (c Curve) OrDefault() Curve {
	if c == "" {
		return DefaultCurve
	}
	return c
}

// Scheme encapsulates ECDSA arithmetic over a single curve.
// Keys cross the Scheme boundary in raw form: private keys as fixed size big-endian scalars
// and public keys as uncompressed SEC 1 points.
type Scheme interface {
	// GenerateKey produces a fresh key pair.
	GenerateKey() (priv []byte, pub []byte, err error)
	// PublicKey derives the public point of the given private scalar.
	PublicKey(priv []byte) ([]byte, error)
	// Sign signs an already computed digest. The hash names the function that produced the digest.
	// Signatures are ASN.1 DER encoded.
	Sign(priv, digest []byte, hash crypto.Hash) ([]byte, error)
	// Verify checks DER signature over the digest against the public point.
	// An error reports malformed key material, not an invalid signature.
	Verify(pub, digest, sig []byte) (bool, error)
}
