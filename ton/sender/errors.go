package sender

import "errors"

var (
	// ErrServiceUnavailable means the account query service could not
	// attest current time within tolerance.
	ErrServiceUnavailable = errors.New("ton service is unavailable")

	// ErrEmptyBalance means the account has nothing to spend at all.
	ErrEmptyBalance = errors.New("wallet balance is empty")

	// ErrInsufficientBalance means the computed total exceeds the
	// spendable balance.
	ErrInsufficientBalance = errors.New("insufficient wallet balance")

	// ErrInvalidAmount means fee netting produced a non-positive
	// transfer amount.
	ErrInvalidAmount = errors.New("invalid transfer amount")

	// ErrKeyMismatch means the retrieved mnemonic does not derive the
	// wallet's public key.
	ErrKeyMismatch = errors.New("derived key does not match wallet public key")
)
