// Package autherr defines the failure kinds reported by token extraction and
// verification.
//
// Callers outside the gate only ever see Allow or Deny. The Kind is what
// operators see in logs and metrics, so it is deliberately coarse and never
// carries key material or token contents.
package autherr

import (
	"errors"
	"fmt"
)

// Kind names a class of authorization failure.
type Kind string

// Failure kinds.
const (
	Unknown           Kind = "Unknown"
	MissingHeader     Kind = "MissingHeader"
	MalformedHeader   Kind = "MalformedHeader"
	SignatureInvalid  Kind = "SignatureInvalid"
	AlgorithmMismatch Kind = "AlgorithmMismatch"
	TokenExpired      Kind = "TokenExpired"
	TokenNotYetValid  Kind = "TokenNotYetValid"
	ClaimsMalformed   Kind = "ClaimsMalformed"
	ClaimsRejected    Kind = "ClaimsRejected"
	KeyUnavailable    Kind = "KeyUnavailable"
)

// Sentinel values for use with errors.Is. Matching is on Kind only.
var (
	ErrMissingHeader     = &Error{Kind: MissingHeader}
	ErrMalformedHeader   = &Error{Kind: MalformedHeader}
	ErrSignatureInvalid  = &Error{Kind: SignatureInvalid}
	ErrAlgorithmMismatch = &Error{Kind: AlgorithmMismatch}
	ErrTokenExpired      = &Error{Kind: TokenExpired}
	ErrTokenNotYetValid  = &Error{Kind: TokenNotYetValid}
	ErrClaimsMalformed   = &Error{Kind: ClaimsMalformed}
	ErrClaimsRejected    = &Error{Kind: ClaimsRejected}
	ErrKeyUnavailable    = &Error{Kind: KeyUnavailable}
)

// Error is a failure of a given Kind. Err holds the underlying cause, which
// may be nil.
type Error struct {
	Kind Kind
	Err  error
}

// New returns an *Error of the given kind wrapping err.
func New(kind Kind, err error) error {
	return &Error{Kind: kind, Err: err}
}

// Errorf is a shorthand for New(kind, fmt.Errorf(format, args...)).
func Errorf(kind Kind, format string, args ...interface{}) error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.Err.Error()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// KindOf returns the Kind of the first *Error in err's chain, or Unknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}
