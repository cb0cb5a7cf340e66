// Package registry owns booking records and the lifecycle state
// machine. All mutation funnels through Transition, which emulates
// compare-and-swap over the per-key-atomic store with an in-process
// mutex per booking id. That discipline assumes the relay and the
// action handlers share one process; running several mutating
// processes would need a distributed CAS primitive instead.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/avoronin/rentdesk/internal/domain"
	"github.com/avoronin/rentdesk/internal/kafka"
	"github.com/avoronin/rentdesk/internal/store"
)

type Producer interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
}

type Registry struct {
	store      store.Store
	locks      *keyMutex
	producer   Producer
	topic      string
	retention  time.Duration
	outcomeTTL time.Duration
	log        *zap.Logger
}

type Option func(*Registry)

func WithProducer(producer Producer, topic string) Option {
	return func(r *Registry) {
		r.producer = producer
		r.topic = topic
	}
}

func WithLogger(log *zap.Logger) Option {
	return func(r *Registry) {
		r.log = log
	}
}

func New(st store.Store, retention, outcomeTTL time.Duration, opts ...Option) *Registry {
	r := &Registry{
		store:      st,
		locks:      newKeyMutex(),
		retention:  retention,
		outcomeTTL: outcomeTTL,
		log:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) Get(ctx context.Context, bookingID string) (*domain.BookingRecord, error) {
	data, err := r.store.Get(ctx, store.BookingKey(bookingID))
	if err != nil {
		return nil, err
	}
	return decodeRecord(data)
}

// CreateIntakeRecord implements the intake contract: a fully populated
// record enters the store with status New. The core itself never calls
// this; the intake HTTP endpoint does. A booking id that is already
// live returns domain.ErrConflict — a replayed intake must never
// rewind an in-flight booking.
func (r *Registry) CreateIntakeRecord(ctx context.Context, record *domain.BookingRecord) (string, error) {
	if record.BookingID == "" {
		record.BookingID = uuid.NewString()
	}

	unlock := r.locks.Lock(record.BookingID)
	defer unlock()

	if _, err := r.store.Get(ctx, store.BookingKey(record.BookingID)); err == nil {
		return "", fmt.Errorf("booking %s already exists: %w", record.BookingID, domain.ErrConflict)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return "", err
	}

	now := time.Now().UTC()
	record.Status = domain.BookingStatusNew
	record.CreatedAt = now
	record.UpdatedAt = now

	if err := r.writeRecord(ctx, record); err != nil {
		return "", err
	}

	r.publish(ctx, "booking_created", record)
	return record.BookingID, nil
}

// Transition is the sole mutation primitive. It reads the record,
// verifies the status matches expected, applies mutate and writes the
// result back, all under the booking's lock. A status mismatch returns
// domain.ErrConflict without writing; so does a mutation that leaves
// the lifecycle graph.
func (r *Registry) Transition(ctx context.Context, bookingID string, expected domain.BookingStatus, mutate func(*domain.BookingRecord)) (*domain.BookingRecord, error) {
	unlock := r.locks.Lock(bookingID)
	defer unlock()

	record, err := r.Get(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if record.Status != expected {
		return nil, fmt.Errorf("booking %s is %s, expected %s: %w", bookingID, record.Status, expected, domain.ErrConflict)
	}

	mutate(record)

	if !domain.ValidTransition(expected, record.Status) {
		return nil, fmt.Errorf("transition %s -> %s: %w", expected, record.Status, domain.ErrConflict)
	}
	record.UpdatedAt = time.Now().UTC()

	if err := r.writeRecord(ctx, record); err != nil {
		return nil, err
	}

	if record.Status.Terminal() {
		if err := r.enqueueOutcome(ctx, record); err != nil {
			// The booking is already terminal; the requester just will
			// not be notified. Loud log, not a rollback.
			r.log.Error("failed to enqueue outcome event",
				zap.String("booking_id", record.BookingID),
				zap.Error(err),
			)
		}
	}

	r.publish(ctx, transitionEventType(expected, record.Status), record)
	return record, nil
}

// BookingsByStatus scans all live records and returns those in the
// given status. Records that fail to decode are logged and skipped.
func (r *Registry) BookingsByStatus(ctx context.Context, status domain.BookingStatus) ([]domain.BookingRecord, error) {
	keys, err := r.store.ScanKeys(ctx, store.BookingPrefix)
	if err != nil {
		return nil, fmt.Errorf("scan bookings: %w", err)
	}

	var records []domain.BookingRecord
	for _, key := range keys {
		data, err := r.store.Get(ctx, key)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue // expired between scan and get
			}
			return nil, err
		}
		record, err := decodeRecord(data)
		if err != nil {
			r.log.Warn("dropping malformed booking record", zap.String("key", key), zap.Error(err))
			continue
		}
		if record.Status == status {
			records = append(records, *record)
		}
	}
	return records, nil
}

// PendingEvents returns every undelivered outcome event.
func (r *Registry) PendingEvents(ctx context.Context) ([]domain.OutcomeEvent, error) {
	keys, err := r.store.ScanKeys(ctx, store.EventPrefix)
	if err != nil {
		return nil, fmt.Errorf("scan events: %w", err)
	}

	var events []domain.OutcomeEvent
	for _, key := range keys {
		data, err := r.store.Get(ctx, key)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return nil, err
		}
		var event domain.OutcomeEvent
		if err := json.Unmarshal(data, &event); err != nil {
			r.log.Warn("dropping malformed outcome event", zap.String("key", key), zap.Error(err))
			_ = r.store.Delete(ctx, key)
			continue
		}
		events = append(events, event)
	}
	return events, nil
}

// DeleteEvent removes a delivered (or orphaned) outcome event. Callers
// must delete strictly after confirmed delivery.
func (r *Registry) DeleteEvent(ctx context.Context, eventID string) error {
	return r.store.Delete(ctx, store.EventKey(eventID))
}

func (r *Registry) enqueueOutcome(ctx context.Context, record *domain.BookingRecord) error {
	event := domain.OutcomeEvent{
		EventID:   uuid.NewString(),
		BookingID: record.BookingID,
		Kind:      domain.OutcomeKindBookingUpdate,
		Status:    record.Status,
		Deposit:   record.DepositAmount,
		Total:     record.Subject.Total,
		Operator:  record.OperatorRef,
		CreatedAt: time.Now().UTC(),
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal outcome event: %w", err)
	}
	return r.store.Set(ctx, store.EventKey(event.EventID), data, r.outcomeTTL)
}

func (r *Registry) writeRecord(ctx context.Context, record *domain.BookingRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal booking %s: %w", record.BookingID, err)
	}
	return r.store.Set(ctx, store.BookingKey(record.BookingID), data, r.retention)
}

func (r *Registry) publish(ctx context.Context, eventType string, record *domain.BookingRecord) {
	if r.producer == nil || r.topic == "" {
		return
	}
	event := kafka.BookingEvent{
		Type:        eventType,
		BookingID:   record.BookingID,
		Status:      string(record.Status),
		Scooter:     record.Subject.Scooter,
		Days:        record.Subject.Days,
		Total:       record.Subject.Total,
		Deposit:     record.DepositAmount,
		Operator:    record.OperatorRef,
		RequesterID: record.RequesterID,
		At:          time.Now().UTC(),
	}
	if err := r.producer.Publish(ctx, r.topic, record.BookingID, event); err != nil {
		r.log.Warn("failed to publish booking event",
			zap.String("booking_id", record.BookingID),
			zap.String("type", eventType),
			zap.Error(err),
		)
	}
}

func transitionEventType(from, to domain.BookingStatus) string {
	switch {
	case to == domain.BookingStatusSent:
		return "booking_sent"
	case from == domain.BookingStatusSent && to == domain.BookingStatusInProgress:
		return "booking_claimed"
	case to == domain.BookingStatusConfirmed:
		return "booking_confirmed"
	case to == domain.BookingStatusRejected:
		return "booking_rejected"
	default:
		return "booking_updated"
	}
}

func decodeRecord(data []byte) (*domain.BookingRecord, error) {
	var record domain.BookingRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedRecord, err)
	}
	if record.BookingID == "" {
		return nil, fmt.Errorf("%w: missing booking_id", domain.ErrMalformedRecord)
	}
	return &record, nil
}
