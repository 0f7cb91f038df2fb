package storage

import "errors"

// ErrAccountNotFound is returned when no account exists for a user.
var ErrAccountNotFound = errors.New("account not found")

// ErrTransactionNotFound is returned when a transaction lookup by id or charge intent id finds nothing.
var ErrTransactionNotFound = errors.New("transaction not found")

// ErrTransactionExists is returned when a transaction with the same id has already been written.
var ErrTransactionExists = errors.New("transaction already exists")

// ErrConcurrencyLost is returned when a conditional state transition was rejected because the
// transaction is no longer pending. Another writer already applied a terminal state.
var ErrConcurrencyLost = errors.New("transaction is no longer pending")

// ErrHistoryExists is returned when a history record has already been appended for a transaction.
var ErrHistoryExists = errors.New("history record already exists")
