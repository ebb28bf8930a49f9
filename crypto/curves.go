package crypto

import (
	"crypto"
	"crypto/elliptic"
	_ "crypto/sha256" // registers SHA-256 for crypto.Hash.New
	_ "crypto/sha512" // registers SHA-512 for crypto.Hash.New
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/OpenChargingCloud/WWCP-OCPP-sub134/crypto/ecc"
	"github.com/OpenChargingCloud/WWCP-OCPP-sub134/crypto/secp256k1"
)

// ErrUnsupportedCurve is returned for curve names missing from the registry.
var ErrUnsupportedCurve = errors.New("unsupported curve")

// curveEntry binds a curve to its scheme and to the digest function signatures over it use.
type curveEntry struct {
	scheme Scheme
	hash   crypto.Hash
}

var (
	curvesMu sync.RWMutex
	curves   = map[Curve]curveEntry{
		Secp256r1: {scheme: ecc.New(elliptic.P256()), hash: crypto.SHA256},
		Secp384r1: {scheme: ecc.New(elliptic.P384()), hash: crypto.SHA512},
		Secp521r1: {scheme: ecc.New(elliptic.P521()), hash: crypto.SHA512},
		Secp256k1: {scheme: secp256k1.Scheme{}, hash: crypto.SHA256},
	}
)

// Register adds or replaces the Scheme and digest function for the given Curve.
func Register(curve Curve, scheme Scheme, hash crypto.Hash) error {
	if curve == "" {
		return errors.New("empty curve name")
	}
	if scheme == nil {
		return fmt.Errorf("nil scheme for curve %s", curve)
	}
	if !hash.Available() {
		return fmt.Errorf("hash %v for curve %s is not linked into the binary", hash, curve)
	}

	curvesMu.Lock()
	defer curvesMu.Unlock()
	curves[curve] = curveEntry{scheme: scheme, hash: hash}
	return nil
}

// Curves lists registered curves in lexicographic order.
func Curves() []Curve {
	curvesMu.RLock()
	defer curvesMu.RUnlock()

	list := make([]Curve, 0, len(curves))
	for c := range curves {
		list = append(list, c)
	}
	sort.Slice(list, func(i, j int) bool { return list[i] < list[j] })
	return list
}

func lookup(curve Curve) (curveEntry, error) {
	curvesMu.RLock()
	defer curvesMu.RUnlock()

	entry, ok := curves[curve.OrDefault()]
	if !ok {
		return curveEntry{}, fmt.Errorf("%w: %q", ErrUnsupportedCurve, curve)
	}
	return entry, nil
}

// SchemeFor returns the Scheme registered for the Curve.
func SchemeFor(curve Curve) (Scheme, error) {
	entry, err := lookup(curve)
	if err != nil {
		return nil, err
	}
	return entry.scheme, nil
}

// HashFor returns the digest function bound to the Curve.
func HashFor(curve Curve) (crypto.Hash, error) {
	entry, err := lookup(curve)
	if err != nil {
		return 0, err
	}
	return entry.hash, nil
}

// Digest hashes data with the digest function bound to the Curve.
func Digest(curve Curve, data []byte) ([]byte, error) {
	entry, err := lookup(curve)
	if err != nil {
		return nil, err
	}

	h := entry.hash.New()
	h.Write(data)
	return h.Sum(nil), nil
}

// SignDigest signs the digest with the raw private scalar on the Curve.
func SignDigest(curve Curve, priv, digest []byte) ([]byte, error) {
	entry, err := lookup(curve)
	if err != nil {
		return nil, err
	}
	return entry.scheme.Sign(priv, digest, entry.hash)
}

// VerifyDigest checks the signature over the digest with the public point on the Curve.
func VerifyDigest(curve Curve, pub, digest, sig []byte) (bool, error) {
	entry, err := lookup(curve)
	if err != nil {
		return false, err
	}
	return entry.scheme.Verify(pub, digest, sig)
}
