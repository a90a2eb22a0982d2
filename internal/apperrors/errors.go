package apperrors

import (
	"errors"
)

// Domain errors surfaced by the ledger. The transport maps each symbol to a
// distinct response code, so they must never be conflated.
var (
	// Duplicate delivery: the (code, status) pair already exists.
	// Callers treat it as success-equivalent
	ErrAlreadyDone = errors.New("transaction already processed")

	// Available balance is less than the requested reserve
	ErrNotEnoughMoney = errors.New("not enough money")

	// Presentment for a code that was never authorized
	ErrTransactionNotFound = errors.New("transaction does not exist")

	// Malformed or unrecognized request
	ErrInvalidFormat = errors.New("invalid request format")

	// Unknown external account id
	ErrInvalidUser = errors.New("unknown user account")

	// Missing or duplicated system role account, failed currency conversion.
	// Operator-fatal, should alarm loudly
	ErrInvalidConfiguration = errors.New("invalid issuer configuration")

	ErrAccountNotFound      = errors.New("account not found")
	ErrAccountAlreadyExists = errors.New("account already exists")

	// Presentment with billed != settled needs an extra account for the diff
	ErrExtraAccountRequired = errors.New("extra account required")
)
