// Package local provides a Signer over key material held in process memory.
package local

import (
	"errors"
	"fmt"

	ocpp "github.com/OpenChargingCloud/WWCP-OCPP-sub134"
	"github.com/OpenChargingCloud/WWCP-OCPP-sub134/crypto"
)

// Signer signs messages as a single SignerRole.
type Signer struct {
	role *crypto.SignerRole
}

// NewSigner validates the role's key pair and instantiates a Signer over it.
func NewSigner(role *crypto.SignerRole) (*Signer, error) {
	if role == nil || role.KeyPair == nil {
		return nil, ocpp.ErrNoKeyPair
	}
	if !role.CanSign() {
		return nil, ocpp.ErrMissingPrivateKey
	}
	if err := role.Validate(); err != nil {
		return nil, fmt.Errorf("invalid signer key pair: %w", err)
	}

	return &Signer{role: role}, nil
}

// ID is the public point of the signing key, as carried in the KeyID of every signature.
func (s *Signer) ID() []byte {
	return s.role.Public
}

// Algorithm is the curve of the signing key.
func (s *Signer) Algorithm() crypto.Curve {
	return s.role.Algorithm.OrDefault()
}

// Sign signs payload bound to context and attaches the signature to data.
func (s *Signer) Sign(payload any, context string, data *ocpp.SignableData) error {
	return data.SignAs(payload, context, s.role)
}

// Verify checks a signature against payload bound to context.
// The signature need not originate from this Signer.
func (s *Signer) Verify(payload any, context string, sig ocpp.Signature) error {
	if len(sig.KeyID) == 0 {
		return errors.New("signature carries no key id")
	}
	return ocpp.CheckSignature(payload, context, sig)
}
