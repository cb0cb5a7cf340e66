// Package handler decodes operator actions arriving from the
// notification surface and drives the registry and wizard. Each
// inbound event is an independent invocation; correlation happens
// through the booking id embedded in the action payload.
package handler

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/avoronin/rentdesk/internal/domain"
	"github.com/avoronin/rentdesk/internal/registry"
	"github.com/avoronin/rentdesk/internal/surface"
	"github.com/avoronin/rentdesk/internal/wizard"
)

type Handler struct {
	registry    *registry.Registry
	wizard      *wizard.Wizard
	surface     surface.Surface
	managerChat int64
	log         *zap.Logger
}

func New(reg *registry.Registry, wiz *wizard.Wizard, surf surface.Surface, managerChat int64, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		registry:    reg,
		wizard:      wiz,
		surface:     surf,
		managerChat: managerChat,
		log:         log,
	}
}

func (h *Handler) HandleAction(ctx context.Context, event surface.ActionEvent) {
	ref, err := surface.ParseActionID(event.ActionID)
	if err != nil {
		h.log.Debug("ignoring unparseable action", zap.String("action_id", event.ActionID), zap.Error(err))
		return
	}

	switch ref.Verb {
	case surface.VerbClaim:
		h.handleClaim(ctx, event, ref)
	case surface.VerbReject:
		h.handleReject(ctx, event, ref)
	case surface.VerbOption:
		h.handleOption(ctx, event, ref)
	case surface.VerbConfirm:
		h.handleConfirm(ctx, event, ref)
	case surface.VerbPaid:
		h.handlePaid(ctx, event, ref)
	}
}

// HandleText routes free-text messages. The only text the core cares
// about is a deposit amount from an operator mid-wizard; everything
// else is ordinary chat and is ignored.
func (h *Handler) HandleText(ctx context.Context, event surface.TextEvent) {
	res, err := h.wizard.SetDeposit(ctx, event.ChatID, event.Actor, event.Text)
	switch {
	case errors.Is(err, wizard.ErrNoSession), errors.Is(err, wizard.ErrUnexpectedInput):
		return
	case errors.Is(err, domain.ErrNotFound):
		h.notify(ctx, event.ChatID, surface.GoneText(res.BookingID))
		return
	case errors.Is(err, domain.ErrConflict):
		h.notify(ctx, event.ChatID, surface.AlreadyHandledText(res.BookingID))
		return
	case err != nil:
		h.log.Warn("failed to record deposit", zap.String("actor", event.Actor), zap.Error(err))
		return
	}

	record, err := h.registry.Get(ctx, res.BookingID)
	if err != nil {
		h.log.Warn("failed to load booking for summary", zap.String("booking_id", res.BookingID), zap.Error(err))
		return
	}

	actions := []surface.Action{{ID: surface.ConfirmActionID(res.BookingID), Label: "✅ Confirm"}}
	anchor, err := h.surface.Post(ctx, event.ChatID, surface.SummaryText(record, res.Selections, res.Deposit), actions)
	if err != nil {
		h.log.Warn("failed to post summary", zap.String("booking_id", res.BookingID), zap.Error(err))
		return
	}
	h.wizard.SetAnchor(event.ChatID, event.Actor, anchor)
}

func (h *Handler) handleClaim(ctx context.Context, event surface.ActionEvent, ref surface.ActionRef) {
	if !h.fromManagerChat(ctx, event) {
		return
	}

	record, err := h.registry.Claim(ctx, ref.BookingID, event.Actor)
	switch {
	case errors.Is(err, domain.ErrConflict):
		h.notify(ctx, event.ChatID, h.conflictNotice(ctx, ref.BookingID))
		return
	case errors.Is(err, domain.ErrNotFound):
		h.notify(ctx, event.ChatID, surface.GoneText(ref.BookingID))
		return
	case err != nil:
		h.log.Warn("claim failed", zap.String("booking_id", ref.BookingID), zap.Error(err))
		return
	}

	h.log.Info("booking claimed",
		zap.String("booking_id", ref.BookingID),
		zap.String("operator", event.Actor),
	)

	if record.Anchor != nil {
		if err := h.surface.Edit(ctx, *record.Anchor, surface.ClaimedText(record), nil); err != nil {
			h.log.Warn("failed to update claimed prompt", zap.String("booking_id", ref.BookingID), zap.Error(err))
		}
	}

	step := h.wizard.Begin(event.ChatID, event.Actor, ref.BookingID)
	anchor, err := h.surface.Post(ctx, event.ChatID,
		surface.StepText(ref.BookingID, step.Title, 0, h.wizard.NumSteps()),
		optionActions(ref.BookingID, 0, step))
	if err != nil {
		h.log.Warn("failed to post wizard step", zap.String("booking_id", ref.BookingID), zap.Error(err))
		return
	}
	h.wizard.SetAnchor(event.ChatID, event.Actor, anchor)
}

func (h *Handler) handleReject(ctx context.Context, event surface.ActionEvent, ref surface.ActionRef) {
	if !h.fromManagerChat(ctx, event) {
		return
	}

	record, err := h.registry.Reject(ctx, ref.BookingID, event.Actor)
	switch {
	case errors.Is(err, domain.ErrConflict):
		h.notify(ctx, event.ChatID, h.conflictNotice(ctx, ref.BookingID))
		return
	case errors.Is(err, domain.ErrNotFound):
		h.notify(ctx, event.ChatID, surface.GoneText(ref.BookingID))
		return
	case err != nil:
		h.log.Warn("reject failed", zap.String("booking_id", ref.BookingID), zap.Error(err))
		return
	}

	h.log.Info("booking rejected",
		zap.String("booking_id", ref.BookingID),
		zap.String("operator", event.Actor),
	)

	if record.Anchor != nil {
		if err := h.surface.Edit(ctx, *record.Anchor, surface.RejectedText(record), nil); err != nil {
			h.log.Warn("failed to update rejected prompt", zap.String("booking_id", ref.BookingID), zap.Error(err))
		}
	}
}

func (h *Handler) handleOption(ctx context.Context, event surface.ActionEvent, ref surface.ActionRef) {
	res, err := h.wizard.Select(event.ChatID, event.Actor, ref.BookingID, ref.Step, ref.Option)
	if err != nil {
		// Stale buttons and presses by bystanders are expected noise.
		h.log.Debug("ignoring wizard option", zap.String("action_id", event.ActionID), zap.Error(err))
		return
	}

	if res.Done {
		if err := h.surface.Edit(ctx, event.Anchor, surface.DepositPromptText(ref.BookingID), nil); err != nil {
			h.log.Warn("failed to show deposit prompt", zap.String("booking_id", ref.BookingID), zap.Error(err))
		}
		return
	}

	err = h.surface.Edit(ctx, event.Anchor,
		surface.StepText(ref.BookingID, res.Next.Title, res.NextIndex, h.wizard.NumSteps()),
		optionActions(ref.BookingID, res.NextIndex, res.Next))
	if err != nil {
		h.log.Warn("failed to advance wizard message", zap.String("booking_id", ref.BookingID), zap.Error(err))
	}
}

func (h *Handler) handleConfirm(ctx context.Context, event surface.ActionEvent, ref surface.ActionRef) {
	if err := h.wizard.ConfirmSummary(event.ChatID, event.Actor, ref.BookingID); err != nil {
		h.log.Debug("ignoring summary confirm", zap.String("action_id", event.ActionID), zap.Error(err))
		return
	}

	record, err := h.registry.Get(ctx, ref.BookingID)
	if err != nil {
		h.notify(ctx, event.ChatID, surface.GoneText(ref.BookingID))
		return
	}

	actions := []surface.Action{{ID: surface.PaidActionID(ref.BookingID), Label: "💰 Paid"}}
	if err := h.surface.Edit(ctx, h.wizardAnchor(event), surface.PaymentText(record), actions); err != nil {
		h.log.Warn("failed to show payment prompt", zap.String("booking_id", ref.BookingID), zap.Error(err))
	}
}

func (h *Handler) handlePaid(ctx context.Context, event surface.ActionEvent, ref surface.ActionRef) {
	// Resolve the wizard message before CompletePayment discards the
	// session along with its anchor.
	wizardMsg := h.wizardAnchor(event)

	record, err := h.wizard.CompletePayment(ctx, event.ChatID, event.Actor, ref.BookingID)
	switch {
	case errors.Is(err, wizard.ErrNoSession), errors.Is(err, wizard.ErrUnexpectedInput):
		h.log.Debug("ignoring payment press", zap.String("action_id", event.ActionID), zap.Error(err))
		return
	case errors.Is(err, domain.ErrConflict):
		h.notify(ctx, event.ChatID, surface.AlreadyHandledText(ref.BookingID))
		return
	case errors.Is(err, domain.ErrNotFound):
		h.notify(ctx, event.ChatID, surface.GoneText(ref.BookingID))
		return
	case err != nil:
		h.log.Warn("payment completion failed", zap.String("booking_id", ref.BookingID), zap.Error(err))
		return
	}

	if record.Anchor != nil {
		if err := h.surface.Edit(ctx, *record.Anchor, surface.FinalText(record), nil); err != nil {
			h.log.Warn("failed to finalize prompt", zap.String("booking_id", ref.BookingID), zap.Error(err))
		}
	}
	if err := h.surface.Edit(ctx, wizardMsg, surface.PaymentRecordedText(ref.BookingID), nil); err != nil {
		h.log.Warn("failed to close wizard message", zap.String("booking_id", ref.BookingID), zap.Error(err))
	}
}

// wizardAnchor prefers the session's remembered wizard message over
// the message the press arrived on, so edits land on the live wizard
// even for presses from a stale duplicate.
func (h *Handler) wizardAnchor(event surface.ActionEvent) domain.Anchor {
	if anchor, ok := h.wizard.Anchor(event.ChatID, event.Actor); ok {
		return anchor
	}
	return event.Anchor
}

// fromManagerChat gates decision actions to the manager chat, the
// same check the original approval flow applied.
func (h *Handler) fromManagerChat(ctx context.Context, event surface.ActionEvent) bool {
	if event.ChatID == h.managerChat {
		return true
	}
	h.notify(ctx, event.ChatID, "This action is only available in the manager chat.")
	return false
}

// conflictNotice names the current claimant when there is one.
func (h *Handler) conflictNotice(ctx context.Context, bookingID string) string {
	record, err := h.registry.Get(ctx, bookingID)
	if err == nil && record.OperatorRef != "" && !record.Status.Terminal() {
		return surface.AlreadyClaimedText(bookingID, record.OperatorRef)
	}
	return surface.AlreadyHandledText(bookingID)
}

func (h *Handler) notify(ctx context.Context, chatID int64, text string) {
	if _, err := h.surface.Post(ctx, chatID, text, nil); err != nil {
		h.log.Warn("failed to post notice", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func optionActions(bookingID string, step int, s wizard.Step) []surface.Action {
	actions := make([]surface.Action, 0, len(s.Options))
	for i, label := range s.Options {
		actions = append(actions, surface.Action{
			ID:    surface.OptionActionID(bookingID, step, i),
			Label: label,
		})
	}
	return actions
}
