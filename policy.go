package ocpp

import (
	"errors"
	"fmt"
)

// VerificationRuleActions decides how the statuses of individual signatures
// combine into the outcome of a verification.
type VerificationRuleActions uint8

const (
	// VerifyAll requires every attached signature to be valid. It is the default.
	VerifyAll VerificationRuleActions = iota
	// VerifyAny is satisfied by the first valid signature.
	VerifyAny
	// AcceptUnverified tolerates messages without signatures.
	// Present signatures are checked as with VerifyAll.
	AcceptUnverified
)

var policyNames = map[VerificationRuleActions]string{
	VerifyAll:        "verifyAll",
	VerifyAny:        "verifyAny",
	AcceptUnverified: "acceptUnverified",
}

func (p VerificationRuleActions) String() string {
	if name, ok := policyNames[p]; ok {
		return name
	}
	return fmt.Sprintf("VerificationRuleActions(%d)", uint8(p))
}

func (p VerificationRuleActions) MarshalText() ([]byte, error) {
	name, ok := policyNames[p]
	if !ok {
		return nil, fmt.Errorf("unknown verification policy %d", uint8(p))
	}
	return []byte(name), nil
}

func (p *VerificationRuleActions) UnmarshalText(text []byte) error {
	parsed, err := ParseVerificationRuleActions(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// ParseVerificationRuleActions parses the textual form of a policy.
func ParseVerificationRuleActions(s string) (VerificationRuleActions, error) {
	for p, name := range policyNames {
		if name == s {
			return p, nil
		}
	}
	return VerifyAll, fmt.Errorf("unknown verification policy %q", s)
}

// Result is the verification outcome of a single signature.
type Result struct {
	// Signature is a copy of the checked signature with its Status set.
	Signature Signature
	Status    SignatureStatus
	// Err describes why the signature could not be checked, e.g. a malformed KeyID.
	Err error
}

// Report is the outcome of a verification pass.
type Report struct {
	Policy VerificationRuleActions
	// Results of the checked signatures in the order they were added.
	// Under VerifyAny the list ends at the first valid signature.
	Results []Result
}

// Valid reports whether the Report satisfies its Policy.
// Any policy other than VerifyAny requires all signatures to be valid.
func (r Report) Valid() bool {
	if len(r.Results) == 0 {
		return r.Policy == AcceptUnverified
	}

	if r.Policy == VerifyAny {
		for _, res := range r.Results {
			if res.Status == StatusValid {
				return true
			}
		}
		return false
	}

	for _, res := range r.Results {
		if res.Status != StatusValid {
			return false
		}
	}
	return true
}

// Err returns nil for a valid Report and otherwise an error wrapping ErrInvalidSignature
// together with the reasons individual signatures could not be checked.
func (r Report) Err() error {
	if r.Valid() {
		return nil
	}
	if len(r.Results) == 0 {
		return ErrNoSignatures
	}

	invalid := 0
	errs := make([]error, 0, len(r.Results)+1)
	for _, res := range r.Results {
		if res.Status == StatusValid {
			continue
		}
		invalid++
		if res.Err != nil {
			errs = append(errs, fmt.Errorf("signature by %X: %w", res.Signature.KeyID, res.Err))
		}
	}

	errs = append([]error{fmt.Errorf("%w: %d of %d signatures failed under %s", ErrInvalidSignature, invalid, len(r.Results), r.Policy)}, errs...)
	return errors.Join(errs...)
}
