package vaultkey

import (
	"errors"
	"fmt"
)

var (
	// ErrVaultKeyInvalid means the candidate vault key did not prove itself
	ErrVaultKeyInvalid = errors.New("vault key invalid")
	// ErrSaltMissing means no usable vault salt is known for the account
	ErrSaltMissing = errors.New("vault salt missing")
	// ErrRequestFailed is matched by every *RequestError
	ErrRequestFailed = errors.New("request failed")
	// ErrNoAccount means the session has no signed-in account
	ErrNoAccount = errors.New("no account in session")
)

// RequestError is a transport or backend failure during a protocol step
type RequestError struct {
	Op         string // "create", "reset", "verify-a", "verify-m1"
	StatusCode int    // 0 when no response was received
	Message    string
	Err        error
}

func (e *RequestError) Error() string {
	msg := fmt.Sprintf("vault %s request failed", e.Op)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrRequestFailed) hold for every RequestError
func (e *RequestError) Is(target error) bool {
	return target == ErrRequestFailed
}
