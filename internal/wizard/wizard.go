// Package wizard drives the per-operator equipment questionnaire for
// a claimed booking: a fixed sequence of option steps, then a deposit
// entry, a summary confirmation and a payment acknowledgement.
//
// Progress reaches the booking record only at the deposit boundary
// and at payment; everything in between lives in a process-scoped
// session and is lost on restart. A booking abandoned mid-wizard
// stays InProgress until its retention TTL evicts it — there is no
// automatic re-queue to other operators.
package wizard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/avoronin/rentdesk/internal/domain"
	"github.com/avoronin/rentdesk/internal/registry"
)

var (
	ErrNoSession = errors.New("no active wizard session")

	// ErrUnexpectedInput marks an action that does not match the
	// session's current state: a stale button press, a wrong booking
	// id, an out-of-order step.
	ErrUnexpectedInput = errors.New("input does not match wizard state")
)

// Wizard methods that only touch session state hold mu for the whole
// call. SetDeposit and CompletePayment drop it around the registry
// write so one slow store call cannot stall every other operator.
type Wizard struct {
	mu       sync.Mutex
	registry *registry.Registry
	sessions *sessionTable
	steps    []Step
	log      *zap.Logger
}

func New(reg *registry.Registry, steps []Step, idle time.Duration, maxSessions int, log *zap.Logger) *Wizard {
	if log == nil {
		log = zap.NewNop()
	}
	return &Wizard{
		registry: reg,
		sessions: newSessionTable(idle, maxSessions),
		steps:    steps,
		log:      log,
	}
}

func (w *Wizard) NumSteps() int {
	return len(w.steps)
}

func (w *Wizard) Step(i int) Step {
	return w.steps[i]
}

// Begin opens a session for the operator and returns the first step.
// Any previous session the operator had in this chat is replaced.
func (w *Wizard) Begin(chatID int64, operator, bookingID string) Step {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.sessions.put(sessionKey{chatID, operator}, &session{
		bookingID: bookingID,
		state:     stateStep,
	})
	return w.steps[0]
}

// SetAnchor remembers the wizard message so subsequent steps can edit
// it in place.
func (w *Wizard) SetAnchor(chatID int64, operator string, anchor domain.Anchor) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if s, ok := w.sessions.get(sessionKey{chatID, operator}); ok {
		s.anchor = &anchor
	}
}

// Anchor returns the wizard message the session currently points at,
// so handlers can edit the live wizard even when a press arrives from
// a stale copy.
func (w *Wizard) Anchor(chatID int64, operator string) (domain.Anchor, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	s, ok := w.sessions.get(sessionKey{chatID, operator})
	if !ok || s.anchor == nil {
		return domain.Anchor{}, false
	}
	return *s.anchor, true
}

func (w *Wizard) Abandon(chatID int64, operator string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.sessions.delete(sessionKey{chatID, operator})
}

type SelectResult struct {
	Done      bool
	NextIndex int
	Next      Step
}

// Select records the operator's answer for step and advances the
// session. Negative options are dropped, not recorded. Done is set
// when the last step is answered and the session moves to deposit
// entry.
func (w *Wizard) Select(chatID int64, operator, bookingID string, step, option int) (SelectResult, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	s, ok := w.sessions.get(sessionKey{chatID, operator})
	if !ok {
		return SelectResult{}, ErrNoSession
	}
	if s.bookingID != bookingID || s.state != stateStep || step != s.stepIndex {
		return SelectResult{}, fmt.Errorf("step %d for booking %s: %w", step, bookingID, ErrUnexpectedInput)
	}
	if option < 0 || option >= len(w.steps[step].Options) {
		return SelectResult{}, fmt.Errorf("option %d out of range: %w", option, ErrUnexpectedInput)
	}

	chosen := w.steps[step].Options[option]
	if !negative(chosen) {
		s.selections = append(s.selections, domain.EquipmentSelection{
			Key:    w.steps[step].Key,
			Option: chosen,
		})
	}

	s.stepIndex++
	if s.stepIndex >= len(w.steps) {
		s.state = stateDeposit
		return SelectResult{Done: true}, nil
	}
	return SelectResult{NextIndex: s.stepIndex, Next: w.steps[s.stepIndex]}, nil
}

type DepositResult struct {
	BookingID  string
	Deposit    string
	Selections []domain.EquipmentSelection
}

// SetDeposit accepts the free-text deposit amount and persists the
// accumulated selections plus the deposit into the booking record.
// This is the only point before final confirmation where wizard
// progress survives a crash.
func (w *Wizard) SetDeposit(ctx context.Context, chatID int64, operator, text string) (DepositResult, error) {
	key := sessionKey{chatID, operator}

	w.mu.Lock()
	s, ok := w.sessions.get(key)
	if !ok {
		w.mu.Unlock()
		return DepositResult{}, ErrNoSession
	}
	if s.state != stateDeposit {
		w.mu.Unlock()
		return DepositResult{}, fmt.Errorf("deposit entry: %w", ErrUnexpectedInput)
	}

	deposit := strings.TrimSpace(text)
	if deposit == "" {
		w.mu.Unlock()
		return DepositResult{}, fmt.Errorf("empty deposit: %w", ErrUnexpectedInput)
	}

	bookingID := s.bookingID
	selections := append([]domain.EquipmentSelection(nil), s.selections...)
	w.mu.Unlock()

	_, err := w.registry.Transition(ctx, bookingID, domain.BookingStatusInProgress, func(record *domain.BookingRecord) {
		record.Selections = selections
		record.DepositAmount = deposit
	})

	w.mu.Lock()
	defer w.mu.Unlock()
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// The record expired under the operator; the session has
			// nothing left to configure.
			if cur, ok := w.sessions.get(key); ok && cur.bookingID == bookingID {
				w.sessions.delete(key)
			}
		}
		return DepositResult{BookingID: bookingID}, err
	}

	if cur, ok := w.sessions.get(key); ok && cur.bookingID == bookingID && cur.state == stateDeposit {
		cur.state = stateConfirm
	}
	return DepositResult{BookingID: bookingID, Deposit: deposit, Selections: selections}, nil
}

// ConfirmSummary acknowledges the review summary and moves the
// session to payment.
func (w *Wizard) ConfirmSummary(chatID int64, operator, bookingID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	s, ok := w.sessions.get(sessionKey{chatID, operator})
	if !ok {
		return ErrNoSession
	}
	if s.bookingID != bookingID || s.state != stateConfirm {
		return fmt.Errorf("summary confirm for booking %s: %w", bookingID, ErrUnexpectedInput)
	}
	s.state = statePayment
	return nil
}

// CompletePayment records the payment signal, finalizes the booking
// to Confirmed and discards the session.
func (w *Wizard) CompletePayment(ctx context.Context, chatID int64, operator, bookingID string) (*domain.BookingRecord, error) {
	key := sessionKey{chatID, operator}

	w.mu.Lock()
	s, ok := w.sessions.get(key)
	if !ok {
		w.mu.Unlock()
		return nil, ErrNoSession
	}
	if s.bookingID != bookingID || s.state != statePayment {
		w.mu.Unlock()
		return nil, fmt.Errorf("payment for booking %s: %w", bookingID, ErrUnexpectedInput)
	}
	w.mu.Unlock()

	record, err := w.registry.Transition(ctx, bookingID, domain.BookingStatusInProgress, func(record *domain.BookingRecord) {
		record.Status = domain.BookingStatusConfirmed
	})

	w.mu.Lock()
	defer w.mu.Unlock()
	discard := func() {
		if cur, ok := w.sessions.get(key); ok && cur.bookingID == bookingID {
			w.sessions.delete(key)
		}
	}
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrConflict) {
			discard()
		}
		return nil, err
	}

	discard()
	w.log.Info("booking confirmed",
		zap.String("booking_id", record.BookingID),
		zap.String("operator", operator),
	)
	return record, nil
}
