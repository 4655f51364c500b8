package idempotency

import "errors"

var (
	// ErrAlreadyProcessing indicates another request is currently handling the key
	ErrAlreadyProcessing = errors.New("idempotency: key is already being processed")

	// ErrStorageFailure indicates a storage operation failed
	ErrStorageFailure = errors.New("idempotency: storage operation failed")

	// ErrInvalidKey indicates the key is empty or too long
	ErrInvalidKey = errors.New("idempotency: invalid key")
)
