package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotImplemented indicates functionality is not yet available.
	ErrNotImplemented = errors.New("not implemented")

	// Reconciliation Errors.

	// ErrRemoteUnavailable indicates the task-management API could not be reached
	// or did not answer within the configured timeout. Safe to retry the whole call.
	ErrRemoteUnavailable = errors.New("remote unavailable")

	// ErrUnknownFieldReference indicates a caller-supplied mapping names a field
	// that does not exist on the list. Fatal for that key only.
	ErrUnknownFieldReference = errors.New("unknown field reference")

	// ErrNoMatch marks a key for which no field was found.
	// It is an outcome, not a failure: it triggers create-or-skip.
	ErrNoMatch = errors.New("no matching field")

	// ErrFieldCreationConflict indicates a field with the same name already exists,
	// typically because another writer created it first.
	ErrFieldCreationConflict = errors.New("field creation conflict")

	// ErrValueRejected indicates the remote API refused a field value.
	ErrValueRejected = errors.New("value rejected")

	// ErrPartialFailure indicates a reconciliation finished with at least one failed outcome.
	ErrPartialFailure = errors.New("reconciliation finished with failures")

	// Authentication Errors.

	// ErrAuthRequired indicates no API token is configured.
	ErrAuthRequired = errors.New("authentication required")

	// ErrAuthInvalid indicates the API token was refused.
	ErrAuthInvalid = errors.New("authentication invalid")

	// ErrRateLimited indicates the API rate limit was exceeded.
	ErrRateLimited = errors.New("rate limited")
)
