package crypto

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateKeys(t *testing.T) {
	for _, curve := range Curves() {
		t.Run(curve.String(), func(t *testing.T) {
			kp := GenerateKeys(curve)
			require.NotNil(t, kp)
			assert.Equal(t, curve, kp.Algorithm)
			assert.True(t, kp.CanSign())
			require.NoError(t, kp.Validate())
		})
	}

	kp := GenerateKeys("")
	require.NotNil(t, kp)
	assert.Equal(t, Secp256r1, kp.Algorithm)

	assert.Nil(t, GenerateKeys("brainpoolP256r1"))
}

func TestKeyPairValidate(t *testing.T) {
	a, b := GenerateKeys(Secp384r1), GenerateKeys(Secp384r1)

	mixed := &KeyPair{Private: a.Private, Public: b.Public, Algorithm: Secp384r1}
	require.ErrorIs(t, mixed.Validate(), ErrKeyMismatch)

	require.NoError(t, a.PublicOnly().Validate())
	assert.False(t, a.PublicOnly().CanSign())
	assert.NotEmpty(t, a.Private, "PublicOnly must not touch the original")

	require.ErrorIs(t, (&KeyPair{Algorithm: Secp256r1}).Validate(), ErrMissingPublicKey)
}

func TestKeyPairJSON(t *testing.T) {
	for _, enc := range []Encoding{EncodingBase64, EncodingHex} {
		t.Run(string(enc), func(t *testing.T) {
			kp := GenerateKeys(Secp521r1)
			kp.Encoding = enc
			kp.CustomData = json.RawMessage(`{"vendorId":"org.example"}`)

			data, err := json.Marshal(kp)
			require.NoError(t, err)

			parsed, err := ParseKeyPair(data)
			require.NoError(t, err)
			assert.Equal(t, kp.Private, parsed.Private)
			assert.Equal(t, kp.Public, parsed.Public)
			assert.Equal(t, Secp521r1, parsed.Algorithm)
			assert.Equal(t, enc, parsed.Encoding)
			assert.JSONEq(t, string(kp.CustomData), string(parsed.CustomData))
		})
	}
}

func TestParseKeyPairErrors(t *testing.T) {
	kp := GenerateKeys(Secp256r1)
	pub, err := kp.Encoding.Encode(kp.Public)
	require.NoError(t, err)

	tests := []struct {
		name string
		json string
		err  error
		msg  string
	}{
		{name: "missing private", json: `{"public":"` + pub + `"}`, err: ErrMissingPrivateKey},
		{name: "missing public", json: `{"private":"AAEC"}`, err: ErrMissingPublicKey},
		{name: "bad base64", json: `{"private":"@@@","public":"` + pub + `"}`, msg: "invalid base64 private key"},
		{name: "bad hex", json: `{"private":"00","public":"zz","encoding":"hex"}`, msg: "invalid hex public key"},
		{name: "unknown curve", json: `{"private":"AA==","public":"AA==","algorithm":"curve25519"}`, err: ErrUnsupportedCurve},
		{name: "not json", json: `[`, msg: "parsing key pair"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseKeyPair([]byte(tt.json))
			require.Error(t, err)
			if tt.err != nil {
				require.ErrorIs(t, err, tt.err)
			}
			if tt.msg != "" {
				require.ErrorContains(t, err, tt.msg)
			}
		})
	}

	verifyOnly, err := ParsePublicKey([]byte(`{"public":"` + pub + `"}`))
	require.NoError(t, err)
	assert.Equal(t, kp.Public, verifyOnly.Public)
	assert.False(t, verifyOnly.CanSign())
}

func TestSignerRole(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	kp := GenerateKeys(Secp256r1)

	role := kp.ToRole(
		WithSignerNameFunc(func(msg any) string {
			if s, ok := msg.(string); ok {
				return "signer of " + s
			}
			return "signer"
		}),
		WithDescription("operator key"),
		WithTimestamp(ts),
	)
	assert.Equal(t, "signer of BootNotification", role.SignerName("BootNotification"))
	assert.Equal(t, "signer", role.SignerName(nil))
	assert.Equal(t, "operator key", role.Description(42))
	assert.Equal(t, ts, role.Timestamp(nil))

	bare := kp.ToRole()
	assert.Empty(t, bare.SignerName("x"))
	assert.True(t, bare.Timestamp("x").IsZero())

	data, err := json.Marshal(role)
	require.NoError(t, err)

	parsed, err := ParseSignerRole(data)
	require.NoError(t, err)
	assert.Equal(t, "signer", parsed.SignerName("anything"))
	assert.Equal(t, "operator key", parsed.Description(nil))
	assert.True(t, ts.Equal(parsed.Timestamp(nil)))
	assert.Equal(t, kp.Private, parsed.Private)
}
