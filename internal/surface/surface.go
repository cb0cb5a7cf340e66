// Package surface abstracts the human-facing chat transport: posting
// and editing messages with action buttons, and delivering the
// button-press and text events humans produce back to the core.
package surface

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/avoronin/rentdesk/internal/domain"
)

// Action is a button rendered under a message. ID travels back inside
// the ActionEvent when the button is pressed.
type Action struct {
	ID    string
	Label string
}

type ActionEvent struct {
	Anchor   domain.Anchor
	ChatID   int64
	Actor    string
	ActionID string
}

type TextEvent struct {
	ChatID int64
	Actor  string
	Text   string
}

type Surface interface {
	Post(ctx context.Context, chatID int64, text string, actions []Action) (domain.Anchor, error)
	Edit(ctx context.Context, anchor domain.Anchor, text string, actions []Action) error
}

// Listener receives decoded human events. Implementations must not
// block the transport's receive loop.
type Listener interface {
	HandleAction(ctx context.Context, event ActionEvent)
	HandleText(ctx context.Context, event TextEvent)
}

// Action verbs. Every action payload carries the booking id so
// handler invocations can be correlated without session lookups.
const (
	VerbClaim   = "claim"
	VerbReject  = "reject"
	VerbOption  = "opt"
	VerbConfirm = "confirm"
	VerbPaid    = "paid"
)

// ActionRef is a decoded action payload.
type ActionRef struct {
	Verb      string
	BookingID string
	Step      int
	Option    int
}

func ClaimActionID(bookingID string) string {
	return VerbClaim + ":" + bookingID
}

func RejectActionID(bookingID string) string {
	return VerbReject + ":" + bookingID
}

func OptionActionID(bookingID string, step, option int) string {
	return fmt.Sprintf("%s:%s:%d:%d", VerbOption, bookingID, step, option)
}

func ConfirmActionID(bookingID string) string {
	return VerbConfirm + ":" + bookingID
}

func PaidActionID(bookingID string) string {
	return VerbPaid + ":" + bookingID
}

func ParseActionID(id string) (ActionRef, error) {
	parts := strings.Split(id, ":")
	if len(parts) < 2 {
		return ActionRef{}, fmt.Errorf("malformed action id %q", id)
	}

	ref := ActionRef{Verb: parts[0], BookingID: parts[1]}
	switch ref.Verb {
	case VerbClaim, VerbReject, VerbConfirm, VerbPaid:
		if len(parts) != 2 {
			return ActionRef{}, fmt.Errorf("malformed action id %q", id)
		}
	case VerbOption:
		if len(parts) != 4 {
			return ActionRef{}, fmt.Errorf("malformed action id %q", id)
		}
		step, err := strconv.Atoi(parts[2])
		if err != nil {
			return ActionRef{}, fmt.Errorf("malformed step in action id %q", id)
		}
		option, err := strconv.Atoi(parts[3])
		if err != nil {
			return ActionRef{}, fmt.Errorf("malformed option in action id %q", id)
		}
		ref.Step = step
		ref.Option = option
	default:
		return ActionRef{}, fmt.Errorf("unknown action verb %q", parts[0])
	}
	return ref, nil
}
