package domain

import "errors"

var (
	// ErrNotFound covers both records that never existed and records
	// evicted by TTL; callers must not distinguish the two.
	ErrNotFound = errors.New("booking not found")

	// ErrConflict means a transition lost a race: the record was not in
	// the expected status. Nothing was written.
	ErrConflict = errors.New("booking state conflict")

	// ErrMalformedRecord marks a stored record that cannot be decoded
	// or lacks a booking id. Such records are logged and skipped.
	ErrMalformedRecord = errors.New("malformed booking record")
)
