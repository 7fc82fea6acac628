package models

import "errors"

var (
	// ErrValidation indicates the request was rejected before any write.
	ErrValidation = errors.New("validation error")

	// ErrNotFound indicates a referenced supplier, customer, line item or stock bucket is absent.
	ErrNotFound = errors.New("not found")

	// ErrInsufficientStock indicates a sale asks for more units than the bucket holds.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrConflict indicates a concurrent writer changed a document between read and write.
	// Callers may retry the whole operation.
	ErrConflict = errors.New("write conflict")

	// ErrInconsistentState marks ledger states the engine cannot fully repair, such as restoring
	// the value of a stock bucket that was already deleted.
	ErrInconsistentState = errors.New("inconsistent state")
)
