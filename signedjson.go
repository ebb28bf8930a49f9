package ocpp

import (
	"encoding/json"
	"fmt"
)

// AttachSignatures returns the JSON object body with its signatures field set to sigs.
// An empty sigs removes the field.
func AttachSignatures(body []byte, sigs []Signature) ([]byte, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil || obj == nil {
		return nil, ErrNotJSONObject
	}

	delete(obj, SignaturesField)
	if len(sigs) > 0 {
		raw, err := json.Marshal(sigs)
		if err != nil {
			return nil, fmt.Errorf("encoding signatures: %w", err)
		}
		obj[SignaturesField] = raw
	}
	return json.Marshal(obj)
}

// DetachSignatures splits a signed JSON object into its body without signatures and the signatures.
func DetachSignatures(signed []byte) ([]byte, []Signature, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(signed, &obj); err != nil || obj == nil {
		return nil, nil, ErrNotJSONObject
	}

	var sigs []Signature
	if raw, ok := obj[SignaturesField]; ok {
		if err := json.Unmarshal(raw, &sigs); err != nil {
			return nil, nil, fmt.Errorf("decoding signatures: %w", err)
		}
		delete(obj, SignaturesField)
	}

	body, err := json.Marshal(obj)
	if err != nil {
		return nil, nil, err
	}
	return body, sigs, nil
}

// LoadSignatures attaches all signatures of a signed JSON object to d and returns the body.
func (d *SignableData) LoadSignatures(signed []byte) ([]byte, error) {
	body, sigs, err := DetachSignatures(signed)
	if err != nil {
		return nil, err
	}

	for _, sig := range sigs {
		d.AddSignature(sig)
	}
	return body, nil
}
