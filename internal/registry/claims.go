package registry

import (
	"context"

	"github.com/avoronin/rentdesk/internal/domain"
)

// Claim gives operator exclusive ownership of a Sent booking. Under
// simultaneous presses exactly one caller wins; the rest observe
// domain.ErrConflict and must show a non-destructive "already taken"
// notice rather than touching the prompt.
func (r *Registry) Claim(ctx context.Context, bookingID, operator string) (*domain.BookingRecord, error) {
	return r.Transition(ctx, bookingID, domain.BookingStatusSent, func(record *domain.BookingRecord) {
		record.Status = domain.BookingStatusInProgress
		record.OperatorRef = operator
	})
}

// Reject resolves a Sent booking on the decline path.
func (r *Registry) Reject(ctx context.Context, bookingID, operator string) (*domain.BookingRecord, error) {
	return r.Transition(ctx, bookingID, domain.BookingStatusSent, func(record *domain.BookingRecord) {
		record.Status = domain.BookingStatusRejected
		record.OperatorRef = operator
	})
}
