package domain

import (
	"errors"
	"fmt"
)

// ErrInsufficientBalance is a business condition, not an auth failure: it
// must never trigger credential invalidation or retries.
var ErrInsufficientBalance = errors.New("insufficient balance")

// ErrNotConnected is returned by SubmitBet when the connection is not open.
var ErrNotConnected = errors.New("not connected")

// ErrSessionNotFound is returned by the session registry for unknown users.
var ErrSessionNotFound = errors.New("session not found")

// AuthError wraps a credential acquisition or renewal failure.
// Permanent means the caller must terminate the session instead of retrying.
type AuthError struct {
	Permanent bool
	Reason    string
	Err       error
}

func (e *AuthError) Error() string {
	kind := "auth error"
	if e.Permanent {
		kind = "permanent auth error"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", kind, e.Reason)
}

func (e *AuthError) Unwrap() error { return e.Err }

// IsPermanentAuth reports whether err carries a permanent auth failure.
func IsPermanentAuth(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae) && ae.Permanent
}

// BetRejectedError carries the upstream rejection code. The bet counts as
// not placed; level does not advance.
type BetRejectedError struct {
	Code string
}

func (e *BetRejectedError) Error() string {
	return fmt.Sprintf("bet rejected (code %s)", e.Code)
}
