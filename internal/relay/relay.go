// Package relay is the polling loop that bridges the record store and
// the notification surface: it prompts operators about fresh bookings
// and delivers terminal outcomes to requesters, each exactly once.
package relay

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/avoronin/rentdesk/internal/domain"
	"github.com/avoronin/rentdesk/internal/registry"
	"github.com/avoronin/rentdesk/internal/surface"
)

type Relay struct {
	registry    *registry.Registry
	surface     surface.Surface
	managerChat int64
	interval    time.Duration
	log         *zap.Logger
}

func New(reg *registry.Registry, surf surface.Surface, managerChat int64, interval time.Duration, log *zap.Logger) *Relay {
	if log == nil {
		log = zap.NewNop()
	}
	return &Relay{
		registry:    reg,
		surface:     surf,
		managerChat: managerChat,
		interval:    interval,
		log:         log,
	}
}

// Start runs the polling loop until ctx is done. No single failing
// booking or event may stop the loop.
func (r *Relay) Start(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.log.Info("relay started", zap.Duration("interval", r.interval))

	for {
		select {
		case <-ctx.Done():
			r.log.Info("relay stopped")
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Relay) tick(ctx context.Context) {
	r.dispatchNew(ctx)
	r.drainOutcomes(ctx)
}

// dispatchNew posts an operator prompt for every booking still in New
// and advances it to Sent, storing the message anchor.
func (r *Relay) dispatchNew(ctx context.Context) {
	records, err := r.registry.BookingsByStatus(ctx, domain.BookingStatusNew)
	if err != nil {
		r.log.Error("failed to scan for new bookings", zap.Error(err))
		return
	}

	for i := range records {
		record := &records[i]

		actions := []surface.Action{
			{ID: surface.ClaimActionID(record.BookingID), Label: "✅ Claim"},
			{ID: surface.RejectActionID(record.BookingID), Label: "❌ Reject"},
		}
		anchor, err := r.surface.Post(ctx, r.managerChat, surface.PromptText(record), actions)
		if err != nil {
			r.log.Warn("failed to post booking prompt, will retry",
				zap.String("booking_id", record.BookingID),
				zap.Error(err),
			)
			continue
		}

		_, err = r.registry.Transition(ctx, record.BookingID, domain.BookingStatusNew, func(b *domain.BookingRecord) {
			b.Status = domain.BookingStatusSent
			b.Anchor = &anchor
		})
		switch {
		case errors.Is(err, domain.ErrConflict):
			// Another relay tick already advanced it; the duplicate
			// prompt is harmless, claim arbitration still holds.
			r.log.Debug("booking already sent", zap.String("booking_id", record.BookingID))
		case err != nil:
			r.log.Warn("failed to mark booking sent",
				zap.String("booking_id", record.BookingID),
				zap.Error(err),
			)
		default:
			r.log.Info("booking prompt posted", zap.String("booking_id", record.BookingID))
		}
	}
}

// drainOutcomes delivers requester notifications for pending outcome
// events. An event is deleted strictly after confirmed delivery, so a
// failed delivery is retried on the next tick. Events whose booking
// has expired are dropped silently.
func (r *Relay) drainOutcomes(ctx context.Context) {
	events, err := r.registry.PendingEvents(ctx)
	if err != nil {
		r.log.Error("failed to scan outcome events", zap.Error(err))
		return
	}

	for _, event := range events {
		record, err := r.registry.Get(ctx, event.BookingID)
		if errors.Is(err, domain.ErrNotFound) {
			r.log.Debug("dropping outcome for vanished booking", zap.String("booking_id", event.BookingID))
			if err := r.registry.DeleteEvent(ctx, event.EventID); err != nil {
				r.log.Warn("failed to drop orphan outcome event", zap.String("event_id", event.EventID), zap.Error(err))
			}
			continue
		}
		if err != nil {
			r.log.Warn("failed to load booking for outcome", zap.String("booking_id", event.BookingID), zap.Error(err))
			continue
		}

		if _, err := r.surface.Post(ctx, record.RequesterID, surface.OutcomeText(event), nil); err != nil {
			r.log.Warn("outcome delivery failed, will retry",
				zap.String("booking_id", event.BookingID),
				zap.Error(err),
			)
			continue
		}

		if err := r.registry.DeleteEvent(ctx, event.EventID); err != nil {
			r.log.Warn("failed to delete delivered outcome event",
				zap.String("event_id", event.EventID),
				zap.Error(err),
			)
			continue
		}
		r.log.Info("outcome delivered",
			zap.String("booking_id", event.BookingID),
			zap.String("status", string(event.Status)),
		)
	}
}
