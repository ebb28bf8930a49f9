package crypto

import (
	"encoding/json"
	"fmt"
	"time"
)

// SignerRole is a KeyPair that attaches signer metadata to every signature it produces.
// Each piece of metadata is derived from the message being signed at signing time,
// so a single role can describe itself differently per message type.
type SignerRole struct {
	*KeyPair

	name        func(msg any) string
	description func(msg any) string
	timestamp   func(msg any) time.Time
}

// RoleOption configures a SignerRole.
type RoleOption func(*SignerRole)

// WithSignerName sets a static signer name.
func WithSignerName(name string) RoleOption {
	return WithSignerNameFunc(func(any) string { return name })
}

// WithSignerNameFunc derives the signer name from the message.
func WithSignerNameFunc(fn func(msg any) string) RoleOption {
	return func(r *SignerRole) { r.name = fn }
}

// WithDescription sets a static signature description.
func WithDescription(description string) RoleOption {
	return WithDescriptionFunc(func(any) string { return description })
}

// WithDescriptionFunc derives the signature description from the message.
func WithDescriptionFunc(fn func(msg any) string) RoleOption {
	return func(r *SignerRole) { r.description = fn }
}

// WithTimestamp sets a static signature timestamp.
func WithTimestamp(ts time.Time) RoleOption {
	return WithTimestampFunc(func(any) time.Time { return ts })
}

// WithTimestampFunc derives the signature timestamp from the message, e.g. time.Now.
func WithTimestampFunc(fn func(msg any) time.Time) RoleOption {
	return func(r *SignerRole) { r.timestamp = fn }
}

// SignerName evaluates the signer name for msg. Empty if unset.
func (r *SignerRole) SignerName(msg any) string {
	if r.name == nil {
		return ""
	}
	return r.name(msg)
}

// Description evaluates the signature description for msg. Empty if unset.
func (r *SignerRole) Description(msg any) string {
	if r.description == nil {
		return ""
	}
	return r.description(msg)
}

// Timestamp evaluates the signature timestamp for msg. Zero if unset.
func (r *SignerRole) Timestamp(msg any) time.Time {
	if r.timestamp == nil {
		return time.Time{}
	}
	return r.timestamp(msg)
}

// MarshalJSON encodes the role with its metadata evaluated against no message.
func (r *SignerRole) MarshalJSON() ([]byte, error) {
	out, err := r.KeyPair.toJSON()
	if err != nil {
		return nil, err
	}

	out.SignerName = r.SignerName(nil)
	out.Description = r.Description(nil)
	if ts := r.Timestamp(nil); !ts.IsZero() {
		out.Timestamp = &ts
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a SignerRole with static metadata. Both key halves are mandatory.
func (r *SignerRole) UnmarshalJSON(data []byte) error {
	var in keyPairJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	kp, err := in.keyPair(true)
	if err != nil {
		return err
	}

	var opts []RoleOption
	if in.SignerName != "" {
		opts = append(opts, WithSignerName(in.SignerName))
	}
	if in.Description != "" {
		opts = append(opts, WithDescription(in.Description))
	}
	if in.Timestamp != nil {
		opts = append(opts, WithTimestamp(*in.Timestamp))
	}
	*r = *kp.ToRole(opts...)
	return nil
}

// ParseSignerRole decodes a SignerRole, requiring both key halves.
func ParseSignerRole(data []byte) (*SignerRole, error) {
	role := new(SignerRole)
	if err := json.Unmarshal(data, role); err != nil {
		return nil, fmt.Errorf("parsing key pair: %w", err)
	}
	return role, nil
}
