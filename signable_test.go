package ocpp

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/OpenChargingCloud/WWCP-OCPP-sub134/crypto"
)

const testContext = "https://open.charging.cloud/context/ocpp/v2.1/bootNotificationRequest"

type chargingStation struct {
	Model      string `json:"model"`
	VendorName string `json:"vendorName"`
}

type bootNotificationRequest struct {
	Reason          string          `json:"reason"`
	ChargingStation chargingStation `json:"chargingStation"`

	SignableData
}

func newBootNotification() *bootNotificationRequest {
	return &bootNotificationRequest{
		Reason:          "PowerUp",
		ChargingStation: chargingStation{Model: "SingleSocketCharger", VendorName: "VendorX"},
	}
}

func keys(t *testing.T, curve crypto.Curve) *crypto.KeyPair {
	t.Helper()
	kp := crypto.GenerateKeys(curve)
	require.NotNil(t, kp)
	return kp
}

func TestSignVerifyRoundTrip(t *testing.T) {
	for _, curve := range crypto.Curves() {
		t.Run(curve.String(), func(t *testing.T) {
			msg := newBootNotification()
			err := msg.Sign(msg, testContext, keys(t, curve))
			require.NoError(t, err)
			require.Len(t, msg.Signatures(), 1)

			report, err := msg.Verify(msg, testContext, VerifyAll)
			require.NoError(t, err)
			require.True(t, report.Valid())
			require.Len(t, report.Results, 1)
			assert.Equal(t, StatusValid, report.Results[0].Status)
			assert.Equal(t, StatusValid, report.Results[0].Signature.Status)
			assert.Equal(t, StatusValid, msg.Signatures()[0].Status)
		})
	}
}

func TestVerifyTampered(t *testing.T) {
	msg := newBootNotification()
	require.NoError(t, msg.Sign(msg, testContext, keys(t, crypto.Secp256r1)))

	msg.Reason = "Watchdog"
	report, err := msg.Verify(msg, testContext, VerifyAll)
	require.ErrorIs(t, err, ErrInvalidSignature)
	assert.False(t, report.Valid())
	assert.Equal(t, StatusInvalid, msg.Signatures()[0].Status)

	// another context is another schema
	msg.Reason = "PowerUp"
	_, err = msg.Verify(msg, testContext+"/v2", VerifyAll)
	require.ErrorIs(t, err, ErrInvalidSignature)

	_, err = msg.Verify(msg, testContext, VerifyAll)
	require.NoError(t, err)
}

func TestAddSignatureIdempotent(t *testing.T) {
	msg := newBootNotification()
	sig, err := NewSignature(msg, testContext, keys(t, crypto.Secp384r1), WithSignerName("CSMS"))
	require.NoError(t, err)

	empty := msg.HashCode()
	require.True(t, msg.AddSignature(sig))
	hash := msg.HashCode()
	assert.NotEqual(t, empty, hash)

	require.False(t, msg.AddSignature(sig.Clone()))
	assert.Len(t, msg.Signatures(), 1)
	assert.Equal(t, hash, msg.HashCode())

	// status takes no part in equality
	sig.Status = StatusInvalid
	require.False(t, msg.AddSignature(sig))

	require.True(t, msg.RemoveSignature(sig))
	require.False(t, msg.RemoveSignature(sig))
	assert.Empty(t, msg.Signatures())
	assert.Equal(t, empty, msg.HashCode())
}

func TestSignableDataEqual(t *testing.T) {
	sig, err := NewSignature(json.RawMessage(`{"reason":"PowerUp"}`), testContext, keys(t, ""))
	require.NoError(t, err)

	var a, b SignableData
	assert.True(t, a.Equal(&b))
	assert.False(t, a.Equal(nil))

	a.AddSignature(sig)
	assert.False(t, a.Equal(&b))
	b.AddSignature(sig.Clone())
	assert.True(t, a.Equal(&b))

	var none *SignableData
	assert.False(t, none.Equal(&a))
	assert.True(t, none.Equal(nil))
}

func TestVerificationPolicies(t *testing.T) {
	msg := newBootNotification()
	valid, err := NewSignature(msg, testContext, keys(t, crypto.Secp256r1))
	require.NoError(t, err)

	other := newBootNotification()
	other.Reason = "RemoteReset"
	invalid, err := NewSignature(other, testContext, keys(t, crypto.Secp256r1))
	require.NoError(t, err)

	for _, order := range [][]Signature{{valid, invalid}, {invalid, valid}} {
		msg := newBootNotification()
		for _, sig := range order {
			require.True(t, msg.AddSignature(sig))
		}

		_, err = msg.Verify(msg, testContext, VerifyAll)
		require.ErrorIs(t, err, ErrInvalidSignature)

		_, err = msg.Verify(msg, testContext, AcceptUnverified)
		require.ErrorIs(t, err, ErrInvalidSignature)

		report, err := msg.Verify(msg, testContext, VerifyAny)
		require.NoError(t, err)
		assert.Equal(t, StatusValid, report.Results[len(report.Results)-1].Status)
	}
}

func TestVerifyAnyShortCircuits(t *testing.T) {
	msg := newBootNotification()
	require.NoError(t, msg.Sign(msg, testContext, keys(t, crypto.Secp256r1)))
	require.NoError(t, msg.Sign(msg, testContext, keys(t, crypto.Secp256r1)))

	_, err := msg.Verify(msg, testContext, VerifyAll)
	require.NoError(t, err)

	report, err := msg.Verify(msg, testContext, VerifyAny)
	require.NoError(t, err)
	require.Len(t, report.Results, 1)

	sigs := msg.Signatures()
	assert.Equal(t, StatusValid, sigs[0].Status)
	assert.Equal(t, StatusUnset, sigs[1].Status, "statuses are recomputed on every pass")
}

func TestVerifyWithoutSignatures(t *testing.T) {
	msg := newBootNotification()

	report, err := msg.Verify(msg, testContext, AcceptUnverified)
	require.NoError(t, err)
	assert.True(t, report.Valid())

	for _, policy := range []VerificationRuleActions{VerifyAll, VerifyAny} {
		_, err = msg.Verify(msg, testContext, policy)
		require.ErrorIs(t, err, ErrNoSignatures)
		require.EqualError(t, err, "no digital signatures present")
	}
}

func TestCurveHashBinding(t *testing.T) {
	msg := newBootNotification()
	kp := keys(t, crypto.Secp521r1)
	require.NoError(t, msg.Sign(msg, testContext, kp))

	canonical, err := Canonicalize(msg, testContext)
	require.NoError(t, err)

	sig := msg.Signatures()[0]
	sum256 := sha256.Sum256(canonical)
	ok, err := crypto.VerifyDigest(crypto.Secp521r1, sig.KeyID, sum256[:], sig.Value)
	require.NoError(t, err)
	assert.False(t, ok, "secp521r1 signatures are computed over SHA-512 digests")

	_, err = msg.Verify(msg, testContext, VerifyAll)
	require.NoError(t, err)
}

func TestSignMissingKeyHalves(t *testing.T) {
	msg := newBootNotification()
	kp := keys(t, crypto.Secp256r1)

	err := msg.Sign(msg, testContext, kp.PublicOnly())
	require.ErrorIs(t, err, ErrMissingPrivateKey)
	assert.Contains(t, err.Error(), "private key")

	err = msg.Sign(msg, testContext, &crypto.KeyPair{Private: kp.Private})
	require.ErrorIs(t, err, ErrMissingPublicKey)

	err = msg.Sign(msg, testContext, nil)
	require.ErrorIs(t, err, ErrNoKeyPair)

	assert.Empty(t, msg.Signatures())
}

func TestConcurrentCoSigning(t *testing.T) {
	const signers = 32

	msg := newBootNotification()
	sigs := make([]Signature, signers)
	for i := range sigs {
		sig, err := NewSignature(msg, testContext, keys(t, crypto.Secp256r1), WithSignerName(fmt.Sprintf("signer-%d", i)))
		require.NoError(t, err)
		sigs[i] = sig
	}

	var wg errgroup.Group
	for _, sig := range sigs {
		wg.Go(func() error {
			if !msg.AddSignature(sig) {
				return fmt.Errorf("signature %s was not added", sig.Name)
			}
			_ = msg.HashCode()
			_ = msg.Signatures()
			return nil
		})
	}
	require.NoError(t, wg.Wait())

	got := msg.Signatures()
	require.Len(t, got, signers)
	names := make(map[string]struct{}, signers)
	for _, sig := range got {
		names[sig.Name] = struct{}{}
	}
	assert.Len(t, names, signers)

	_, err := msg.Verify(msg, testContext, VerifyAll)
	require.NoError(t, err)
}

func TestConcurrentSign(t *testing.T) {
	msg := newBootNotification()

	var wg errgroup.Group
	for range 8 {
		kp := keys(t, crypto.Secp256r1)
		wg.Go(func() error {
			return msg.Sign(msg, testContext, kp)
		})
	}
	require.NoError(t, wg.Wait())
	require.Len(t, msg.Signatures(), 8)

	_, err := msg.Verify(msg, testContext, VerifyAll)
	require.NoError(t, err)
}

func TestMultiCurveCoSigning(t *testing.T) {
	msg := newBootNotification()
	for _, curve := range []crypto.Curve{crypto.Secp256r1, crypto.Secp384r1, crypto.Secp521r1} {
		require.NoError(t, msg.Sign(msg, testContext, keys(t, curve)))
	}

	report, err := msg.Verify(msg, testContext, VerifyAll)
	require.NoError(t, err)
	require.Len(t, report.Results, 3)
	for i, curve := range []crypto.Curve{crypto.Secp256r1, crypto.Secp384r1, crypto.Secp521r1} {
		assert.Equal(t, curve, report.Results[i].Signature.Algorithm)
	}
}

func TestVerifyMalformedKeyID(t *testing.T) {
	msg := newBootNotification()
	require.NoError(t, msg.Sign(msg, testContext, keys(t, crypto.Secp256r1)))

	broken := msg.Signatures()[0]
	broken.KeyID = []byte{0x04, 0xde, 0xad}
	broken.Name = "broken"
	require.True(t, msg.AddSignature(broken))

	unknown := msg.Signatures()[0]
	unknown.Algorithm = "sect283k1"
	require.True(t, msg.AddSignature(unknown))

	report, err := msg.Verify(msg, testContext, VerifyAll)
	require.ErrorIs(t, err, ErrInvalidSignature)
	require.ErrorIs(t, err, crypto.ErrUnsupportedCurve)
	require.ErrorContains(t, err, "public key")

	require.Len(t, report.Results, 3)
	assert.NoError(t, report.Results[0].Err)
	assert.Error(t, report.Results[1].Err)
	assert.Equal(t, StatusInvalid, report.Results[1].Status)
	assert.ErrorIs(t, report.Results[2].Err, crypto.ErrUnsupportedCurve)

	_, err = msg.Verify(msg, testContext, VerifyAny)
	require.NoError(t, err)
}

func TestSignAs(t *testing.T) {
	ts := time.Date(2026, 10, 19, 8, 30, 0, 123456789, time.FixedZone("CEST", 2*60*60))
	role := keys(t, crypto.Secp256r1).ToRole(
		crypto.WithSignerNameFunc(func(msg any) string {
			return fmt.Sprintf("%T", msg)
		}),
		crypto.WithDescription("charging station operator"),
		crypto.WithTimestamp(ts),
	)

	msg := newBootNotification()
	require.NoError(t, msg.SignAs(msg, testContext, role))

	sig := msg.Signatures()[0]
	assert.Equal(t, "*ocpp.bootNotificationRequest", sig.Name)
	assert.Equal(t, "charging station operator", sig.Description)
	assert.True(t, sig.Timestamp.Equal(ts.Truncate(time.Millisecond)))
	assert.Equal(t, time.UTC, sig.Timestamp.Location())

	require.NoError(t, CheckSignature(msg, testContext, sig))
}

func TestSignWithHints(t *testing.T) {
	msg := newBootNotification()
	msg.SignKeys = []*crypto.KeyPair{keys(t, crypto.Secp256r1), keys(t, crypto.Secp384r1)}
	msg.SignInfos = []*crypto.SignerRole{keys(t, crypto.Secp521r1).ToRole(crypto.WithSignerName("CSMS"))}

	require.NoError(t, msg.SignWithHints(msg, testContext))
	sigs := msg.Signatures()
	require.Len(t, sigs, 3)
	assert.Equal(t, "CSMS", sigs[2].Name)

	_, err := msg.Verify(msg, testContext, VerifyAll)
	require.NoError(t, err)

	msg.SignKeys = append(msg.SignKeys, keys(t, crypto.Secp256r1).PublicOnly())
	err = msg.SignWithHints(msg, testContext)
	require.ErrorIs(t, err, ErrMissingPrivateKey)
}

func TestSignaturesSnapshot(t *testing.T) {
	msg := newBootNotification()
	require.NoError(t, msg.Sign(msg, testContext, keys(t, crypto.Secp256r1)))

	before := msg.Signatures()
	_, err := msg.Verify(msg, testContext, VerifyAll)
	require.NoError(t, err)

	assert.Equal(t, StatusUnset, before[0].Status, "snapshots are never mutated")
	assert.Equal(t, StatusValid, msg.Signatures()[0].Status)

	before[0].Value[0] ^= 0xff
	_, err = msg.Verify(msg, testContext, VerifyAll)
	require.NoError(t, err)
}

func TestCustomDataHash(t *testing.T) {
	a, b := newBootNotification(), newBootNotification()
	assert.Equal(t, a.HashCode(), b.HashCode())
	assert.True(t, a.Equal(&b.SignableData))

	cd := NewCustomData("org.example")
	require.NoError(t, cd.Set("tariff", 42))
	a.SetCustomData(cd)
	assert.NotEqual(t, a.HashCode(), b.HashCode())
	assert.False(t, a.Equal(&b.SignableData))

	b.SetCustomData(cd.Clone())
	assert.Equal(t, a.HashCode(), b.HashCode())
	assert.True(t, a.Equal(&b.SignableData))

	require.NoError(t, cd.Set("tariff", 43))
	assert.Equal(t, a.HashCode(), b.HashCode(), "SetCustomData keeps its own copy")
}
