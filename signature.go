package ocpp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/OpenChargingCloud/WWCP-OCPP-sub134/crypto"
)

// TimestampLayout is how signature timestamps are rendered: RFC 3339, UTC, milliseconds.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// SignatureStatus is the outcome of the latest verification of a Signature.
type SignatureStatus uint8

const (
	StatusUnset SignatureStatus = iota
	StatusValid
	StatusInvalid
)

func (s SignatureStatus) String() string {
	switch s {
	case StatusValid:
		return "valid"
	case StatusInvalid:
		return "invalid"
	default:
		return "unset"
	}
}

// Signature is a digital signature over the canonical form of a message.
type Signature struct {
	// KeyID is the uncompressed public point of the signing key.
	// Verification recovers the key from it directly.
	KeyID []byte
	// Value is the DER encoded ECDSA signature.
	Value []byte
	// Algorithm is the curve of the signing key.
	Algorithm crypto.Curve
	// SigningMethod is an optional method tag.
	SigningMethod string
	// EncodingMethod is the textual encoding of KeyID and Value in JSON.
	EncodingMethod crypto.Encoding
	// Name, Description and Timestamp are human readable metadata captured at signing time.
	Name        string
	Description string
	Timestamp   time.Time
	// Status is set by verification and takes no part in equality.
	Status SignatureStatus
}

// Equal reports whether both signatures hold the same values, ignoring Status.
func (s Signature) Equal(o Signature) bool {
	return bytes.Equal(s.KeyID, o.KeyID) &&
		bytes.Equal(s.Value, o.Value) &&
		s.Algorithm.OrDefault() == o.Algorithm.OrDefault() &&
		s.SigningMethod == o.SigningMethod &&
		s.EncodingMethod.OrDefault() == o.EncodingMethod.OrDefault() &&
		s.Name == o.Name &&
		s.Description == o.Description &&
		s.Timestamp.Equal(o.Timestamp)
}

// Clone returns a deep copy of the Signature.
func (s Signature) Clone() Signature {
	s.KeyID = bytes.Clone(s.KeyID)
	s.Value = bytes.Clone(s.Value)
	return s
}

func (s Signature) String() string {
	return fmt.Sprintf("%s signature by %X (%s)", s.Algorithm.OrDefault(), s.KeyID, s.Status)
}

type signatureJSON struct {
	KeyID          string          `json:"keyId"`
	Value          string          `json:"value"`
	Algorithm      crypto.Curve    `json:"algorithm,omitempty"`
	SigningMethod  string          `json:"signingMethod,omitempty"`
	EncodingMethod crypto.Encoding `json:"encodingMethod,omitempty"`
	Name           string          `json:"name,omitempty"`
	Description    string          `json:"description,omitempty"`
	Timestamp      string          `json:"timestamp,omitempty"`
}

func (s Signature) MarshalJSON() ([]byte, error) {
	enc := s.EncodingMethod.OrDefault()
	keyID, err := enc.Encode(s.KeyID)
	if err != nil {
		return nil, err
	}
	value, err := enc.Encode(s.Value)
	if err != nil {
		return nil, err
	}

	out := signatureJSON{
		KeyID:          keyID,
		Value:          value,
		Algorithm:      s.Algorithm.OrDefault(),
		SigningMethod:  s.SigningMethod,
		EncodingMethod: enc,
		Name:           s.Name,
		Description:    s.Description,
	}
	if !s.Timestamp.IsZero() {
		out.Timestamp = s.Timestamp.UTC().Format(TimestampLayout)
	}
	return json.Marshal(out)
}

func (s *Signature) UnmarshalJSON(data []byte) error {
	var in signatureJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	if in.KeyID == "" {
		return fmt.Errorf("signature: missing keyId")
	}
	if in.Value == "" {
		return fmt.Errorf("signature: missing value")
	}

	enc := in.EncodingMethod.OrDefault()
	keyID, err := enc.Decode(in.KeyID)
	if err != nil {
		return fmt.Errorf("signature: invalid keyId: %w", err)
	}
	value, err := enc.Decode(in.Value)
	if err != nil {
		return fmt.Errorf("signature: invalid value: %w", err)
	}

	var ts time.Time
	if in.Timestamp != "" {
		ts, err = time.Parse(time.RFC3339Nano, in.Timestamp)
		if err != nil {
			return fmt.Errorf("signature: invalid timestamp: %w", err)
		}
	}

	*s = Signature{
		KeyID:          keyID,
		Value:          value,
		Algorithm:      in.Algorithm.OrDefault(),
		SigningMethod:  in.SigningMethod,
		EncodingMethod: enc,
		Name:           in.Name,
		Description:    in.Description,
		Timestamp:      ts,
	}
	return nil
}
