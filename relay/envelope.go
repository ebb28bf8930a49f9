package relay

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"capnproto.org/go/capnp/v3"

	ocpp "github.com/OpenChargingCloud/WWCP-OCPP-sub134"
	"github.com/OpenChargingCloud/WWCP-OCPP-sub134/crypto"
)

// Envelope is an OCPP message travelling through the relay network together with its signatures.
// The signatures cover Payload bound to Context. ID and Action are routing metadata and are not signed.
type Envelope struct {
	ID      string
	Action  string
	Context string
	// Payload is the JSON message body without signatures, or opaque binary data.
	Payload []byte

	ocpp.SignableData
}

// NewEnvelope wraps the payload into an Envelope with a random ID.
func NewEnvelope(action, context string, payload []byte) *Envelope {
	id := make([]byte, 16)
	_, _ = rand.Read(id)

	return &Envelope{
		ID:      hex.EncodeToString(id),
		Action:  action,
		Context: context,
		Payload: bytes.Clone(payload),
	}
}

// Sign co-signs the Envelope as the given role.
func (e *Envelope) Sign(role *crypto.SignerRole) error {
	return e.SignAs(e.Payload, e.Context, role)
}

// Verify checks the Envelope's signatures under the policy.
func (e *Envelope) Verify(policy ocpp.VerificationRuleActions) (ocpp.Report, error) {
	return e.SignableData.Verify(e.Payload, e.Context, policy)
}

// wire layout of the Envelope root struct
const (
	envID uint16 = iota
	envAction
	envContext
	envPayload
	envSignatures
)

// wire layout of a signature struct
const (
	sigKeyID uint16 = iota
	sigValue
	sigAlgorithm
	sigSigningMethod
	sigEncodingMethod
	sigName
	sigDescription
)

const (
	sigTimestampOff capnp.DataOffset = 0
	sigFlagsOff     capnp.DataOffset = 8

	flagHasTimestamp = 1
)

var (
	envelopeSize  = capnp.ObjectSize{DataSize: 0, PointerCount: 5}
	signatureSize = capnp.ObjectSize{DataSize: 16, PointerCount: 7}
)

// MarshalBinary encodes the Envelope as a single segment Cap'n Proto message.
// Verification statuses are not encoded.
func (e *Envelope) MarshalBinary() ([]byte, error) {
	msg, seg, err := capnp.NewMessage(capnp.SingleSegment(nil))
	if err != nil {
		return nil, err
	}

	root, err := capnp.NewRootStruct(seg, envelopeSize)
	if err != nil {
		return nil, err
	}

	if err = root.SetText(envID, e.ID); err != nil {
		return nil, err
	}
	if err = root.SetText(envAction, e.Action); err != nil {
		return nil, err
	}
	if err = root.SetText(envContext, e.Context); err != nil {
		return nil, err
	}
	if err = root.SetData(envPayload, e.Payload); err != nil {
		return nil, err
	}

	sigs := e.Signatures()
	list, err := capnp.NewCompositeList(seg, signatureSize, int32(len(sigs)))
	if err != nil {
		return nil, err
	}
	for i, sig := range sigs {
		if err = encodeSignature(list.Struct(i), sig); err != nil {
			return nil, fmt.Errorf("encoding signature %d: %w", i, err)
		}
	}
	if err = root.SetPtr(envSignatures, list.ToPtr()); err != nil {
		return nil, err
	}

	return msg.Marshal()
}

// UnmarshalBinary decodes an Envelope produced by MarshalBinary.
// Decoded signatures are added to the ones already present.
func (e *Envelope) UnmarshalBinary(data []byte) error {
	msg, err := capnp.Unmarshal(data)
	if err != nil {
		return err
	}

	rootPtr, err := msg.Root()
	if err != nil {
		return err
	}
	root := rootPtr.Struct()

	e.ID, err = text(root, envID)
	if err != nil {
		return err
	}
	e.Action, err = text(root, envAction)
	if err != nil {
		return err
	}
	e.Context, err = text(root, envContext)
	if err != nil {
		return err
	}

	p, err := root.Ptr(envPayload)
	if err != nil {
		return err
	}
	e.Payload = bytes.Clone(p.Data())

	p, err = root.Ptr(envSignatures)
	if err != nil {
		return err
	}
	list := p.List()
	for i := 0; i < list.Len(); i++ {
		sig, err := decodeSignature(list.Struct(i))
		if err != nil {
			return fmt.Errorf("decoding signature %d: %w", i, err)
		}
		e.AddSignature(sig)
	}
	return nil
}

func encodeSignature(s capnp.Struct, sig ocpp.Signature) error {
	if err := s.SetData(sigKeyID, sig.KeyID); err != nil {
		return err
	}
	if err := s.SetData(sigValue, sig.Value); err != nil {
		return err
	}

	if err := s.SetText(sigAlgorithm, string(sig.Algorithm.OrDefault())); err != nil {
		return err
	}
	if err := s.SetText(sigSigningMethod, sig.SigningMethod); err != nil {
		return err
	}
	if err := s.SetText(sigEncodingMethod, string(sig.EncodingMethod.OrDefault())); err != nil {
		return err
	}
	if err := s.SetText(sigName, sig.Name); err != nil {
		return err
	}
	if err := s.SetText(sigDescription, sig.Description); err != nil {
		return err
	}

	if !sig.Timestamp.IsZero() {
		s.SetUint64(sigTimestampOff, uint64(sig.Timestamp.UnixMilli()))
		s.SetUint64(sigFlagsOff, flagHasTimestamp)
	}
	return nil
}

func decodeSignature(s capnp.Struct) (ocpp.Signature, error) {
	var (
		sig ocpp.Signature
		err error
	)

	p, err := s.Ptr(sigKeyID)
	if err != nil {
		return sig, err
	}
	sig.KeyID = bytes.Clone(p.Data())

	p, err = s.Ptr(sigValue)
	if err != nil {
		return sig, err
	}
	sig.Value = bytes.Clone(p.Data())

	if len(sig.KeyID) == 0 || len(sig.Value) == 0 {
		return sig, fmt.Errorf("missing key id or value")
	}

	algorithm, err := text(s, sigAlgorithm)
	if err != nil {
		return sig, err
	}
	sig.Algorithm = crypto.Curve(algorithm).OrDefault()

	sig.SigningMethod, err = text(s, sigSigningMethod)
	if err != nil {
		return sig, err
	}

	encoding, err := text(s, sigEncodingMethod)
	if err != nil {
		return sig, err
	}
	sig.EncodingMethod = crypto.Encoding(encoding).OrDefault()

	sig.Name, err = text(s, sigName)
	if err != nil {
		return sig, err
	}
	sig.Description, err = text(s, sigDescription)
	if err != nil {
		return sig, err
	}

	if s.Uint64(sigFlagsOff)&flagHasTimestamp != 0 {
		sig.Timestamp = time.UnixMilli(int64(s.Uint64(sigTimestampOff))).UTC()
	}
	return sig, nil
}

func text(s capnp.Struct, i uint16) (string, error) {
	p, err := s.Ptr(i)
	if err != nil {
		return "", err
	}
	return p.Text(), nil
}
