package pocket

import (
	"errors"
	"fmt"
)

// Sentinel errors for the fixed error-kind catalog. Parameterized kinds wrap
// one of these so callers can still errors.Is against the kind while getting
// the offending identifier in the message.
var (
	ErrProofNotFound       = errors.New("proof not found")
	ErrInvalidProofState   = errors.New("invalid proof state transition")
	ErrUnknownKeysetId     = errors.New("unknown keyset id")
	ErrCurrencyUnitMismatch = errors.New("currency unit mismatch")
	ErrInactiveKeyset      = errors.New("inactive keyset")
	ErrNoActiveKeyset      = errors.New("no active keyset for unit")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrNoPrepareRef        = errors.New("no matching prepare reference")
	ErrCounterConflict     = errors.New("keyset counter CAS conflict")
	ErrInternalInvariant   = errors.New("internal invariant violated")
	ErrFeesUnsupported     = errors.New("keyset charges fees, unsupported")
)

// ProofNotFoundError names the proof identifier (y) that could not be found.
type ProofNotFoundError struct{ Y string }

func (e *ProofNotFoundError) Error() string { return fmt.Sprintf("proof not found: %s", e.Y) }
func (e *ProofNotFoundError) Unwrap() error { return ErrProofNotFound }

// InvalidProofStateError names the proof and the rejected transition.
type InvalidProofStateError struct {
	Y    string
	From ProofState
}

func (e *InvalidProofStateError) Error() string {
	return fmt.Sprintf("invalid proof state transition for %s: from %s", e.Y, e.From)
}
func (e *InvalidProofStateError) Unwrap() error { return ErrInvalidProofState }

// UnknownKeysetIdError names the unrecognized keyset id.
type UnknownKeysetIdError struct{ KeysetId string }

func (e *UnknownKeysetIdError) Error() string {
	return fmt.Sprintf("unknown keyset id: %s", e.KeysetId)
}
func (e *UnknownKeysetIdError) Unwrap() error { return ErrUnknownKeysetId }

// CurrencyUnitMismatchError names the expected and actual units.
type CurrencyUnitMismatchError struct{ Expected, Got string }

func (e *CurrencyUnitMismatchError) Error() string {
	return fmt.Sprintf("currency unit mismatch: expected %s, got %s", e.Expected, e.Got)
}
func (e *CurrencyUnitMismatchError) Unwrap() error { return ErrCurrencyUnitMismatch }

// InactiveKeysetError names the keyset that is no longer active.
type InactiveKeysetError struct{ KeysetId string }

func (e *InactiveKeysetError) Error() string {
	return fmt.Sprintf("inactive keyset: %s", e.KeysetId)
}
func (e *InactiveKeysetError) Unwrap() error { return ErrInactiveKeyset }

// NoPrepareRefError names the request id that had no matching prepare.
type NoPrepareRefError struct{ RequestId string }

func (e *NoPrepareRefError) Error() string {
	return fmt.Sprintf("no prepare reference for request id: %s", e.RequestId)
}
func (e *NoPrepareRefError) Unwrap() error { return ErrNoPrepareRef }
