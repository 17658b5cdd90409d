package transaction

import "errors"

var (
	// ErrTransactionNotFound is returned when a transaction cannot be found
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrAccountNotFound is returned when a transaction names an unknown account
	ErrAccountNotFound = errors.New("account not found")

	// ErrAccountExists is returned when an account id is already taken
	ErrAccountExists = errors.New("account already exists")

	// ErrInvalidAmount is returned when the amount is not positive
	ErrInvalidAmount = errors.New("transaction amount must be positive")

	// ErrMissingCurrency is returned when currency is not specified
	ErrMissingCurrency = errors.New("transaction currency is required")
)
