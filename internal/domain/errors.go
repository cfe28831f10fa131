package domain

import "errors"

var (
	// ErrInvalidPeriod is returned when an interest period is zero or negative.
	ErrInvalidPeriod = errors.New("interest period must be at least one day")

	// ErrInsufficientFunds is returned when a debit exceeds the available balance.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInvalidDuration is returned when a fixed savings duration is outside
	// the allowed range or the payback date is not after the start date.
	ErrInvalidDuration = errors.New("fixed savings duration out of range")

	// ErrBelowMinimumAmount is returned when a principal is below the product minimum.
	ErrBelowMinimumAmount = errors.New("amount below product minimum")

	// ErrAccountNotFound is returned when no account matches the lookup.
	ErrAccountNotFound = errors.New("account not found")

	// ErrAccountInactive is returned when an operation targets a deactivated account.
	ErrAccountInactive = errors.New("account is inactive")

	// ErrAlreadyPaidOut marks a payout attempt on an already-paid fixed savings.
	// Callers treat it as a benign no-op, not a hard failure.
	ErrAlreadyPaidOut = errors.New("fixed savings already paid out")

	// ErrAlreadyRenewed marks a renewal attempt on an already-renewed cycle.
	ErrAlreadyRenewed = errors.New("fixed savings already renewed")

	// ErrCurrencyMismatch is returned by Money arithmetic on differing currencies.
	ErrCurrencyMismatch = errors.New("currency mismatch")

	// ErrNotMatured is returned when payout or renewal is attempted before maturity.
	ErrNotMatured = errors.New("fixed savings has not matured")
)
