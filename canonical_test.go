package ocpp

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		name    string
		payload any
		context string
		want    string
		err     error
	}{
		{
			name:    "sorted keys and context",
			payload: json.RawMessage(`{"b":1.0,"a":"x"}`),
			context: "urn:ctx",
			want:    `{"@context":"urn:ctx","a":"x","b":1}`,
		},
		{
			name:    "signatures are dropped",
			payload: []byte(`{"a":1,"signatures":[{"keyId":"AA=="}]}`),
			want:    `{"a":1}`,
		},
		{
			name:    "declared context wins",
			payload: json.RawMessage(`{"@context":"urn:own","a":1}`),
			context: "urn:ctx",
			want:    `{"@context":"urn:own","a":1}`,
		},
		{
			name:    "struct payload",
			payload: chargingStation{Model: "M1", VendorName: "V"},
			context: "urn:ctx",
			want:    `{"@context":"urn:ctx","model":"M1","vendorName":"V"}`,
		},
		{
			name:    "binary verbatim",
			payload: Binary(`{"b":1,"a":2}`),
			context: "urn:ctx",
			want:    `{"b":1,"a":2}`,
		},
		{
			name:    "non JSON bytes verbatim",
			payload: []byte("raw meter values"),
			context: "urn:ctx",
			want:    "raw meter values",
		},
		{
			name:    "array",
			payload: []byte(`[1,2]`),
			err:     ErrNotJSONObject,
		},
		{
			name:    "string",
			payload: "PowerUp",
			err:     ErrNotJSONObject,
		},
		{
			name:    "null",
			payload: json.RawMessage(`null`),
			err:     ErrNotJSONObject,
		},
		{
			name:    "largest exact integer",
			payload: json.RawMessage(`{"transactionId":9007199254740992,"big":18014398509481984}`),
			want:    `{"big":18014398509481984,"transactionId":9007199254740992}`,
		},
		{
			name:    "integer rounded by doubles",
			payload: json.RawMessage(`{"transactionId":9007199254740993}`),
			err:     ErrNumberOutOfRange,
		},
		{
			name:    "nested negative integer rounded by doubles",
			payload: json.RawMessage(`{"meterValue":[{"sampledValue":[{"value":-9007199254740995}]}]}`),
			err:     ErrNumberOutOfRange,
		},
		{
			name:    "number beyond double range",
			payload: json.RawMessage(`{"value":1e400}`),
			err:     ErrNumberOutOfRange,
		},
		{
			name: "int64 struct field",
			payload: struct {
				TransactionID int64 `json:"transactionId"`
			}{TransactionID: 1<<62 + 1},
			err: ErrNumberOutOfRange,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Canonicalize(tt.payload, tt.context)
			if tt.err != nil {
				require.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}

	_, err := Canonicalize(nil, "")
	require.Error(t, err)
}

func TestCanonicalizeFieldOrder(t *testing.T) {
	a, err := Canonicalize(json.RawMessage(`{"reason":"PowerUp","chargingStation":{"vendorName":"V","model":"M"}}`), testContext)
	require.NoError(t, err)
	b, err := Canonicalize(json.RawMessage(`{ "chargingStation": {"model":"M", "vendorName":"V"}, "reason": "PowerUp" }`), testContext)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	msg := newBootNotification()
	msg.ChargingStation = chargingStation{Model: "M", VendorName: "V"}
	c, err := Canonicalize(msg, testContext)
	require.NoError(t, err)
	assert.Equal(t, a, c)
}

func TestCanonicalizeIgnoresAttachedSignatures(t *testing.T) {
	msg := newBootNotification()
	before, err := Canonicalize(msg, testContext)
	require.NoError(t, err)

	require.NoError(t, msg.Sign(msg, testContext, keys(t, "")))
	after, err := Canonicalize(msg, testContext)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestSignRejectsLossyNumbers(t *testing.T) {
	var d SignableData
	kp := keys(t, "")

	err := d.Sign(json.RawMessage(`{"transactionId":9007199254740993}`), testContext, kp)
	require.ErrorIs(t, err, ErrNumberOutOfRange)
	assert.Empty(t, d.Signatures())

	require.NoError(t, d.Sign(json.RawMessage(`{"transactionId":9007199254740992}`), testContext, kp))

	// 9007199254740993 and 9007199254740992 are the same double
	_, err = d.Verify(json.RawMessage(`{"transactionId":9007199254740993}`), testContext, VerifyAll)
	require.ErrorIs(t, err, ErrNumberOutOfRange)

	_, err = d.Verify(json.RawMessage(`{"transactionId":9007199254740992}`), testContext, VerifyAll)
	require.NoError(t, err)
}
