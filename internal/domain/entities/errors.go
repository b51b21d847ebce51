package entities

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientFunds means the sender's available balance cannot
	// cover value plus fee. Surfaced synchronously to API callers.
	ErrInsufficientFunds = errors.New("insufficient available balance")

	// ErrInsufficientUTXO means the node's unlocked UTXOs cannot cover a
	// withdrawal yet. The request stays pending and is retried.
	ErrInsufficientUTXO = errors.New("insufficient unlocked utxos")

	// ErrSelfSend rejects withdrawals where sender and receiver match.
	ErrSelfSend = errors.New("sender and receiver must differ")

	// ErrAddressNotFound means the referenced address is not in the ledger.
	ErrAddressNotFound = errors.New("address not found")

	// ErrNotFound is the generic missing-document error from repositories.
	ErrNotFound = errors.New("not found")

	// ErrInvalidCredentials rejects a failed login. The message must not
	// reveal which factor was wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// ValidationError is a bad request from an API caller.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// NewValidationError builds a ValidationError for a field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}
