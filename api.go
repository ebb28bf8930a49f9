// Package ocpp enables cryptographic signatures on OCPP messages:
//   - Canonicalization of JSON message bodies with their signatures stripped
//   - ECDSA signing over secp256r1, secp384r1, secp521r1 and any other registered curve
//   - Multi-signature sets with value semantics, safe for concurrent co-signing
//   - Verification policies deciding whether all, any or no signatures have to be valid
//
// Any message type becomes signable by embedding [SignableData]. Signatures are self describing:
// each carries the public key that produced it, so verification needs no key lookup.
//
// A typical flow is:
//   - The sender calls [SignableData.Sign] with its [crypto.KeyPair], possibly followed by co-signers
//   - The message travels with its [SignableData.Signatures]
//   - The receiver calls [SignableData.Verify] with a [VerificationRuleActions] policy before acting
package ocpp

import (
	"errors"
)

var (
	// ErrNoKeyPair is returned when signing without a key pair.
	ErrNoKeyPair = errors.New("no key pair given")
	// ErrMissingPrivateKey is returned when signing with a key pair lacking its private half.
	ErrMissingPrivateKey = errors.New("the private key of the key pair must not be empty")
	// ErrMissingPublicKey is returned when signing with a key pair lacking its public half.
	ErrMissingPublicKey = errors.New("the public key of the key pair must not be empty")
	// ErrNoSignatures is returned when verifying a message without signatures
	// under a policy other than AcceptUnverified.
	ErrNoSignatures = errors.New("no digital signatures present")
	// ErrInvalidSignature is returned when verification rejects one or more signatures.
	ErrInvalidSignature = errors.New("invalid digital signature")
)

// Signable is implemented by every message carrying a signature set,
// commonly by embedding [SignableData].
type Signable interface {
	// Signatures provides a snapshot of the attached signatures in the order they were added.
	Signatures() []Signature
	// AddSignature attaches a signature unless an equal one is present.
	// Reports whether the set changed.
	AddSignature(Signature) bool
	// RemoveSignature detaches the signature equal to the given one.
	// Reports whether the set changed.
	RemoveSignature(Signature) bool
}
