// Package archive persists resolved bookings to Postgres. Records in
// the store expire on a short retention TTL; the archive is the
// long-term copy written by the worker from the booking event stream.
package archive

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/avoronin/rentdesk/internal/kafka"
)

// Schema:
//
//	CREATE TABLE bookings_archive (
//	    booking_id   TEXT PRIMARY KEY,
//	    status       TEXT NOT NULL,
//	    scooter      TEXT NOT NULL,
//	    days         INT NOT NULL,
//	    total        BIGINT NOT NULL,
//	    deposit      TEXT NOT NULL DEFAULT '',
//	    operator     TEXT NOT NULL DEFAULT '',
//	    requester_id BIGINT NOT NULL,
//	    resolved_at  TIMESTAMPTZ NOT NULL
//	);
type Archiver struct {
	db *pgxpool.Pool
}

func NewArchiver(db *pgxpool.Pool) *Archiver {
	return &Archiver{db: db}
}

// Save upserts the terminal state of a booking. Redelivered events
// are harmless: the row converges to the latest event.
func (a *Archiver) Save(ctx context.Context, event kafka.BookingEvent) error {
	_, err := a.db.Exec(ctx, `INSERT INTO bookings_archive (booking_id, status, scooter, days, total, deposit, operator, requester_id, resolved_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (booking_id) DO UPDATE SET
			status = EXCLUDED.status,
			deposit = EXCLUDED.deposit,
			operator = EXCLUDED.operator,
			resolved_at = EXCLUDED.resolved_at`,
		event.BookingID, event.Status, event.Scooter, event.Days, event.Total, event.Deposit, event.Operator, event.RequesterID, event.At)
	if err != nil {
		return fmt.Errorf("archive booking %s: %w", event.BookingID, err)
	}
	return nil
}
