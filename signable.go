package ocpp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/OpenChargingCloud/WWCP-OCPP-sub134/crypto"
)

// SignableData is the signature set of a message. Embed it to make a message signable.
//
// The set has value semantics: equal signatures collapse into one entry.
// All mutations and the recomputation of the hash code happen atomically under one lock,
// so concurrent co-signers never observe a stale hash or lose a signature.
// SignableData must not be copied after first use.
type SignableData struct {
	mu         sync.Mutex
	signatures []Signature
	customData *CustomData
	hash       uint64
	hashed     bool

	// SignKeys and SignInfos are signing hints for SignWithHints. They are not part of the message.
	SignKeys  []*crypto.KeyPair    `json:"-"`
	SignInfos []*crypto.SignerRole `json:"-"`
}

// SignOption overrides signer metadata of a single signature.
type SignOption func(*signOptions)

type signOptions struct {
	name          string
	description   string
	timestamp     time.Time
	signingMethod string
}

// WithSignerName sets the human readable name of the signer.
func WithSignerName(name string) SignOption {
	return func(o *signOptions) { o.name = name }
}

// WithDescription sets the human readable description of the signature.
func WithDescription(description string) SignOption {
	return func(o *signOptions) { o.description = description }
}

// WithTimestamp sets the signing time. It is kept with millisecond precision.
func WithTimestamp(ts time.Time) SignOption {
	return func(o *signOptions) { o.timestamp = ts }
}

// WithSigningMethod sets the optional signing method tag.
func WithSigningMethod(method string) SignOption {
	return func(o *signOptions) { o.signingMethod = method }
}

// NewSignature signs the canonical form of payload bound to context without attaching the result.
func NewSignature(payload any, context string, key *crypto.KeyPair, opts ...SignOption) (Signature, error) {
	switch {
	case key == nil:
		return Signature{}, ErrNoKeyPair
	case len(key.Private) == 0:
		return Signature{}, ErrMissingPrivateKey
	case len(key.Public) == 0:
		return Signature{}, ErrMissingPublicKey
	}

	var o signOptions
	for _, opt := range opts {
		opt(&o)
	}

	canonical, err := Canonicalize(payload, context)
	if err != nil {
		return Signature{}, err
	}

	curve := key.Algorithm.OrDefault()
	digest, err := crypto.Digest(curve, canonical)
	if err != nil {
		return Signature{}, fmt.Errorf("hashing payload: %w", err)
	}

	value, err := crypto.SignDigest(curve, key.Private, digest)
	if err != nil {
		return Signature{}, fmt.Errorf("signing payload with %s: %w", curve, err)
	}

	sig := Signature{
		KeyID:          bytes.Clone(key.Public),
		Value:          value,
		Algorithm:      curve,
		SigningMethod:  o.signingMethod,
		EncodingMethod: key.Encoding.OrDefault(),
		Name:           o.name,
		Description:    o.description,
	}
	if !o.timestamp.IsZero() {
		sig.Timestamp = o.timestamp.UTC().Truncate(time.Millisecond)
	}
	return sig, nil
}

// Sign signs the canonical form of payload bound to context and attaches the signature.
// Nothing is attached on failure.
func (d *SignableData) Sign(payload any, context string, key *crypto.KeyPair, opts ...SignOption) error {
	sig, err := NewSignature(payload, context, key, opts...)
	if err != nil {
		return err
	}

	d.AddSignature(sig)
	return nil
}

// SignAs signs like Sign, taking signer metadata from the role evaluated against payload.
func (d *SignableData) SignAs(payload any, context string, role *crypto.SignerRole) error {
	if role == nil {
		return ErrNoKeyPair
	}

	return d.Sign(payload, context, role.KeyPair,
		WithSignerName(role.SignerName(payload)),
		WithDescription(role.Description(payload)),
		WithTimestamp(role.Timestamp(payload)),
	)
}

// SignWithHints signs once with each of SignKeys and then each of SignInfos.
func (d *SignableData) SignWithHints(payload any, context string) error {
	var errs []error
	for _, key := range d.SignKeys {
		if err := d.Sign(payload, context, key); err != nil {
			errs = append(errs, err)
		}
	}
	for _, role := range d.SignInfos {
		if err := d.SignAs(payload, context, role); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Verify checks the attached signatures against the canonical form of payload bound to context.
//
// Signatures are checked in the order they were added, each with the public key it carries.
// VerifyAny stops at the first valid signature. The statuses are recorded on the attached
// signatures, replacing them with updated copies, and returned in the Report.
// Without signatures, only AcceptUnverified succeeds.
func (d *SignableData) Verify(payload any, context string, policy VerificationRuleActions) (Report, error) {
	report := Report{Policy: policy}

	sigs := d.Signatures()
	if len(sigs) == 0 {
		return report, report.Err()
	}

	canonical, err := Canonicalize(payload, context)
	if err != nil {
		return report, err
	}

	report.Results = make([]Result, 0, len(sigs))
	for _, sig := range sigs {
		res := verifySignature(canonical, sig)
		report.Results = append(report.Results, res)
		if policy == VerifyAny && res.Status == StatusValid {
			break
		}
	}

	d.recordStatus(report.Results)
	return report, report.Err()
}

// CheckSignature verifies a single signature against the canonical form of payload bound to context.
func CheckSignature(payload any, context string, sig Signature) error {
	canonical, err := Canonicalize(payload, context)
	if err != nil {
		return err
	}

	res := verifySignature(canonical, sig)
	if res.Status == StatusValid {
		return nil
	}
	if res.Err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSignature, res.Err)
	}
	return ErrInvalidSignature
}

func verifySignature(canonical []byte, sig Signature) (res Result) {
	res = Result{Signature: sig, Status: StatusInvalid}
	defer func() { res.Signature.Status = res.Status }()

	curve := sig.Algorithm.OrDefault()
	digest, err := crypto.Digest(curve, canonical)
	if err != nil {
		res.Err = err
		return res
	}

	ok, err := crypto.VerifyDigest(curve, sig.KeyID, digest, sig.Value)
	if err != nil {
		res.Err = err
		return res
	}
	if ok {
		res.Status = StatusValid
	}
	return res
}

// recordStatus resets the statuses of all attached signatures and applies the given results.
func (d *SignableData) recordStatus(results []Result) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i := range d.signatures {
		d.signatures[i].Status = StatusUnset
	}
	for _, res := range results {
		for i := range d.signatures {
			if d.signatures[i].Equal(res.Signature) {
				d.signatures[i].Status = res.Status
				break
			}
		}
	}
}

// Signatures provides a copy of the attached signatures in the order they were added.
func (d *SignableData) Signatures() []Signature {
	d.mu.Lock()
	defer d.mu.Unlock()

	sigs := make([]Signature, len(d.signatures))
	for i, sig := range d.signatures {
		sigs[i] = sig.Clone()
	}
	return sigs
}

// AddSignature attaches the signature unless an equal one is already present.
func (d *SignableData) AddSignature(sig Signature) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, s := range d.signatures {
		if s.Equal(sig) {
			return false
		}
	}

	d.signatures = append(d.signatures, sig.Clone())
	d.rehash()
	return true
}

// RemoveSignature detaches the signature equal to the given one.
func (d *SignableData) RemoveSignature(sig Signature) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	i := slices.IndexFunc(d.signatures, sig.Equal)
	if i < 0 {
		return false
	}

	d.signatures = slices.Delete(d.signatures, i, i+1)
	d.rehash()
	return true
}

// CustomData returns a copy of the vendor extension, nil if unset.
func (d *SignableData) CustomData() *CustomData {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.customData.Clone()
}

// SetCustomData replaces the vendor extension.
func (d *SignableData) SetCustomData(cd *CustomData) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.customData = cd.Clone()
	d.rehash()
}

// HashCode is a deterministic function of the signatures and the CustomData.
func (d *SignableData) HashCode() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.hashed {
		d.rehash()
	}
	return d.hash
}

// Equal reports whether both hold equal signatures in equal order and equal CustomData.
func (d *SignableData) Equal(o *SignableData) bool {
	if d == o {
		return true
	}
	if d == nil || o == nil {
		return false
	}
	if d.HashCode() != o.HashCode() {
		return false
	}

	a, b := d.Signatures(), o.Signatures()
	return slices.EqualFunc(a, b, Signature.Equal) && d.CustomData().Equal(o.CustomData())
}

// rehash must be called with mu held.
func (d *SignableData) rehash() {
	h := xxhash.New()
	for _, sig := range d.signatures {
		writeField(h, sig.KeyID)
		writeField(h, sig.Value)
		writeField(h, []byte(sig.Algorithm.OrDefault()))
		writeField(h, []byte(sig.SigningMethod))
		writeField(h, []byte(sig.EncodingMethod.OrDefault()))
		writeField(h, []byte(sig.Name))
		writeField(h, []byte(sig.Description))
		if sig.Timestamp.IsZero() {
			writeField(h, nil)
		} else {
			writeField(h, []byte(sig.Timestamp.UTC().Format(time.RFC3339Nano)))
		}
	}
	writeField(h, d.customData.canonical())

	d.hash = h.Sum64()
	d.hashed = true
}

// writeField writes length prefixed bytes, so adjacent fields cannot run into each other.
func writeField(h *xxhash.Digest, b []byte) {
	var size [4]byte
	binary.BigEndian.PutUint32(size[:], uint32(len(b)))
	_, _ = h.Write(size[:])
	_, _ = h.Write(b)
}
