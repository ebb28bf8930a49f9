package crypto

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	ErrMissingPrivateKey = errors.New("missing private key")
	ErrMissingPublicKey  = errors.New("missing public key")
	ErrKeyMismatch       = errors.New("private key does not match public key")
)

// KeyPair is an elliptic curve credential.
// Public is mandatory, Private is only needed for signing and is absent for verify-only keys.
// KeyPair must not be mutated after construction, so it is safe for concurrent use.
type KeyPair struct {
	Private       []byte
	Public        []byte
	Algorithm     Curve
	Serialization Serialization
	Encoding      Encoding
	// CustomData is an opaque vendor extension carried along in JSON.
	CustomData json.RawMessage
}

// GenerateKeys creates a fresh KeyPair on the given curve.
// Empty curve selects DefaultCurve. It returns nil if the curve is not supported.
func GenerateKeys(curve Curve) *KeyPair {
	curve = curve.OrDefault()
	scheme, err := SchemeFor(curve)
	if err != nil {
		return nil
	}

	priv, pub, err := scheme.GenerateKey()
	if err != nil {
		return nil
	}

	return &KeyPair{
		Private:       priv,
		Public:        pub,
		Algorithm:     curve,
		Serialization: SerializationRaw,
		Encoding:      EncodingBase64,
	}
}

// CanSign reports whether both halves of the KeyPair are present.
func (kp *KeyPair) CanSign() bool {
	return kp != nil && len(kp.Private) > 0 && len(kp.Public) > 0
}

// PublicOnly returns a copy of the KeyPair stripped of the private half.
func (kp *KeyPair) PublicOnly() *KeyPair {
	cp := *kp
	cp.Private = nil
	return &cp
}

// Validate checks the key material against the KeyPair's curve.
// If the private half is present, it must derive the public half.
func (kp *KeyPair) Validate() error {
	if len(kp.Public) == 0 {
		return ErrMissingPublicKey
	}
	if s := kp.Serialization.OrDefault(); s != SerializationRaw {
		return fmt.Errorf("unsupported key serialization %q", string(s))
	}

	scheme, err := SchemeFor(kp.Algorithm)
	if err != nil {
		return err
	}
	if len(kp.Private) == 0 {
		return nil
	}

	pub, err := scheme.PublicKey(kp.Private)
	if err != nil {
		return err
	}
	if !bytes.Equal(pub, kp.Public) {
		return ErrKeyMismatch
	}
	return nil
}

// ToRole wraps the KeyPair into a SignerRole.
func (kp *KeyPair) ToRole(opts ...RoleOption) *SignerRole {
	role := &SignerRole{KeyPair: kp}
	for _, opt := range opts {
		opt(role)
	}
	return role
}

type keyPairJSON struct {
	Private       string          `json:"private,omitempty"`
	Public        string          `json:"public,omitempty"`
	Algorithm     Curve           `json:"algorithm,omitempty"`
	Serialization Serialization   `json:"serialization,omitempty"`
	Encoding      Encoding        `json:"encoding,omitempty"`
	SignerName    string          `json:"signerName,omitempty"`
	Description   string          `json:"description,omitempty"`
	Timestamp     *time.Time      `json:"timestamp,omitempty"`
	CustomData    json.RawMessage `json:"customData,omitempty"`
}

func (kp *KeyPair) toJSON() (keyPairJSON, error) {
	enc := kp.Encoding.OrDefault()
	out := keyPairJSON{
		Algorithm:     kp.Algorithm.OrDefault(),
		Serialization: kp.Serialization.OrDefault(),
		Encoding:      enc,
		CustomData:    kp.CustomData,
	}

	var err error
	if len(kp.Private) > 0 {
		out.Private, err = enc.Encode(kp.Private)
		if err != nil {
			return out, err
		}
	}
	out.Public, err = enc.Encode(kp.Public)
	return out, err
}

func (in *keyPairJSON) keyPair(requirePrivate bool) (*KeyPair, error) {
	if in.Public == "" {
		return nil, ErrMissingPublicKey
	}
	if requirePrivate && in.Private == "" {
		return nil, ErrMissingPrivateKey
	}

	enc := in.Encoding.OrDefault()
	kp := &KeyPair{
		Algorithm:     in.Algorithm.OrDefault(),
		Serialization: in.Serialization.OrDefault(),
		Encoding:      enc,
		CustomData:    in.CustomData,
	}
	if _, err := SchemeFor(kp.Algorithm); err != nil {
		return nil, err
	}
	if kp.Serialization != SerializationRaw {
		return nil, fmt.Errorf("unsupported key serialization %q", string(kp.Serialization))
	}

	var err error
	kp.Public, err = enc.Decode(in.Public)
	if err != nil {
		return nil, fmt.Errorf("invalid %s public key: %w", enc, err)
	}
	if in.Private != "" {
		kp.Private, err = enc.Decode(in.Private)
		if err != nil {
			return nil, fmt.Errorf("invalid %s private key: %w", enc, err)
		}
	}
	return kp, nil
}

// MarshalJSON encodes the KeyPair into its JSON object form.
func (kp KeyPair) MarshalJSON() ([]byte, error) {
	out, err := kp.toJSON()
	if err != nil {
		return nil, err
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a KeyPair. Only the public half is mandatory.
func (kp *KeyPair) UnmarshalJSON(data []byte) error {
	var in keyPairJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	parsed, err := in.keyPair(false)
	if err != nil {
		return err
	}
	*kp = *parsed
	return nil
}

// ParseKeyPair decodes a signing KeyPair, requiring both halves.
func ParseKeyPair(data []byte) (*KeyPair, error) {
	role, err := ParseSignerRole(data)
	if err != nil {
		return nil, err
	}
	return role.KeyPair, nil
}

// ParsePublicKey decodes a verify-only KeyPair. The private half is kept if present.
func ParsePublicKey(data []byte) (*KeyPair, error) {
	var in keyPairJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("parsing key pair: %w", err)
	}
	return in.keyPair(false)
}
