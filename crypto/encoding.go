package crypto

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// Encoding is the textual encoding of serialized key and signature bytes.
type Encoding string

const (
	EncodingBase64 Encoding = "base64"
	EncodingHex    Encoding = "hex"
)

// OrDefault returns EncodingBase64 for the empty Encoding and e otherwise.
func (e Encoding) OrDefault() Encoding {
	if e == "" {
		return EncodingBase64
	}
	return e
}

// Encode encodes b into text.
func (e Encoding) Encode(b []byte) (string, error) {
	switch e.OrDefault() {
	case EncodingBase64:
		return base64.StdEncoding.EncodeToString(b), nil
	case EncodingHex:
		return hex.EncodeToString(b), nil
	default:
		return "", fmt.Errorf("unknown encoding %q", string(e))
	}
}

// Decode decodes text produced by Encode.
func (e Encoding) Decode(s string) ([]byte, error) {
	switch e.OrDefault() {
	case EncodingBase64:
		return base64.StdEncoding.DecodeString(s)
	case EncodingHex:
		return hex.DecodeString(s)
	default:
		return nil, fmt.Errorf("unknown encoding %q", string(e))
	}
}

// Serialization is the convention used for the raw key material.
type Serialization string

// SerializationRaw is the big-endian private scalar and the uncompressed SEC 1 public point.
const SerializationRaw Serialization = "raw"

// OrDefault returns SerializationRaw for the empty Serialization and s otherwise.
func (s Serialization) OrDefault() Serialization {
	if s == "" {
		return SerializationRaw
	}
	return s
}
