// Package store is the durable, expiring key-value layer backing
// booking records and outcome events. Operations are per-key atomic;
// compare-and-swap across read-modify-write is the registry's job.
package store

import (
	"context"
	"time"
)

type Store interface {
	// Get returns the value at key or domain.ErrNotFound. Expired and
	// never-written keys are indistinguishable.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	ScanKeys(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, key string) error
}

const (
	BookingPrefix = "booking:"
	EventPrefix   = "event:"
)

func BookingKey(bookingID string) string {
	return BookingPrefix + bookingID
}

func EventKey(eventID string) string {
	return EventPrefix + eventID
}
