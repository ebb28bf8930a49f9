package ocpp

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strconv"
	"strings"

	"github.com/gowebpki/jcs"
)

const (
	// ContextField names the JSON field binding a message to its schema version.
	ContextField = "@context"
	// SignaturesField names the JSON field holding the signature set.
	SignaturesField = "signatures"
)

// ErrNotJSONObject is returned when a structured payload does not encode to a JSON object.
var ErrNotJSONObject = errors.New("payload is not a JSON object")

// ErrNumberOutOfRange is returned for JSON numbers that change value when converted to an IEEE 754 double.
// RFC 8785 serializes numbers as doubles, so such numbers cannot be canonicalized faithfully.
var ErrNumberOutOfRange = errors.New("number not representable as IEEE 754 double")

// Binary marks a payload as opaque bytes which are signed as they are.
// Such payloads are expected to already exclude their signatures.
type Binary []byte

// Canonicalize produces the exact bytes signatures are computed over.
//
// Binary payloads, and byte slices which are not JSON, are taken verbatim.
// Every other payload is encoded as a JSON object, its signatures field is dropped,
// the context is added under ContextField unless the payload declares one,
// and the result is brought into the RFC 8785 canonical form.
// Semantically equal payloads thus canonicalize to equal bytes regardless of field order.
func Canonicalize(payload any, context string) ([]byte, error) {
	var raw []byte
	switch p := payload.(type) {
	case nil:
		return nil, errors.New("nil payload")
	case Binary:
		return bytes.Clone(p), nil
	case json.RawMessage:
		raw = p
	case []byte:
		if !json.Valid(p) {
			return bytes.Clone(p), nil
		}
		raw = p
	default:
		var err error
		raw, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encoding payload: %w", err)
		}
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		return nil, ErrNotJSONObject
	}

	delete(obj, SignaturesField)
	if _, ok := obj[ContextField]; !ok && context != "" {
		ctx, err := json.Marshal(context)
		if err != nil {
			return nil, err
		}
		obj[ContextField] = ctx
	}

	raw, err := json.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("encoding payload: %w", err)
	}

	canonical, err := transform(raw)
	if err != nil {
		return nil, fmt.Errorf("canonicalizing payload: %w", err)
	}
	return canonical, nil
}

// transform is jcs.Transform refusing input whose numbers it would round.
func transform(raw []byte) ([]byte, error) {
	if err := checkNumbers(raw); err != nil {
		return nil, err
	}
	return jcs.Transform(raw)
}

func checkNumbers(raw []byte) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if n, ok := tok.(json.Number); ok {
			if err = checkNumber(n); err != nil {
				return err
			}
		}
	}
}

// checkNumber rejects numbers outside the double range and integers a double cannot hold exactly.
func checkNumber(n json.Number) error {
	lit := n.String()
	f, err := strconv.ParseFloat(lit, 64)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrNumberOutOfRange, lit)
	}
	if strings.ContainsAny(lit, ".eE") {
		return nil
	}

	exact, ok := new(big.Int).SetString(lit, 10)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNumberOutOfRange, lit)
	}
	rounded, _ := big.NewFloat(f).Int(nil)
	if exact.Cmp(rounded) != 0 {
		return fmt.Errorf("%w: %s", ErrNumberOutOfRange, lit)
	}
	return nil
}
