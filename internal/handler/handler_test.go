package handler

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avoronin/rentdesk/internal/domain"
	"github.com/avoronin/rentdesk/internal/registry"
	"github.com/avoronin/rentdesk/internal/store"
	"github.com/avoronin/rentdesk/internal/surface"
	"github.com/avoronin/rentdesk/internal/wizard"
)

const (
	managerChat = int64(-500100)
	requester   = int64(100500)
)

type post struct {
	chatID  int64
	text    string
	actions []surface.Action
	anchor  domain.Anchor
}

type edit struct {
	anchor  domain.Anchor
	text    string
	actions []surface.Action
}

// fakeSurface records everything posted and edited and hands out
// sequential message ids.
type fakeSurface struct {
	mu     sync.Mutex
	nextID int
	posts  []post
	edits  []edit
}

func (f *fakeSurface) Post(_ context.Context, chatID int64, text string, actions []surface.Action) (domain.Anchor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	anchor := domain.Anchor{ChatID: chatID, MessageID: f.nextID}
	f.posts = append(f.posts, post{chatID: chatID, text: text, actions: actions, anchor: anchor})
	return anchor, nil
}

func (f *fakeSurface) Edit(_ context.Context, anchor domain.Anchor, text string, actions []surface.Action) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.edits = append(f.edits, edit{anchor: anchor, text: text, actions: actions})
	return nil
}

func (f *fakeSurface) lastPost(t *testing.T) post {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.posts)
	return f.posts[len(f.posts)-1]
}

func newTestHandler(t *testing.T) (*Handler, *registry.Registry, *wizard.Wizard, *fakeSurface) {
	t.Helper()
	reg := registry.New(store.NewMemoryStore(), 24*time.Hour, time.Hour)
	wiz := wizard.New(reg, wizard.DefaultSteps(), 30*time.Minute, 16, nil)
	surf := &fakeSurface{}
	return New(reg, wiz, surf, managerChat, nil), reg, wiz, surf
}

func sentBooking(t *testing.T, reg *registry.Registry, id string) domain.Anchor {
	t.Helper()
	ctx := context.Background()
	_, err := reg.CreateIntakeRecord(ctx, &domain.BookingRecord{
		BookingID:   id,
		RequesterID: requester,
		Subject:     domain.SubjectFields{Scooter: "Honda Vario", Days: 3, Total: 450000, Name: "Ann", Contact: "+84 090 000 111"},
	})
	require.NoError(t, err)

	anchor := domain.Anchor{ChatID: managerChat, MessageID: 1000}
	_, err = reg.Transition(ctx, id, domain.BookingStatusNew, func(b *domain.BookingRecord) {
		b.Status = domain.BookingStatusSent
		b.Anchor = &anchor
	})
	require.NoError(t, err)
	return anchor
}

func action(chatID int64, actor, actionID string, anchor domain.Anchor) surface.ActionEvent {
	return surface.ActionEvent{Anchor: anchor, ChatID: chatID, Actor: actor, ActionID: actionID}
}

func TestHandler_ClaimStartsWizard(t *testing.T) {
	h, reg, _, surf := newTestHandler(t)
	ctx := context.Background()
	promptAnchor := sentBooking(t, reg, "abc123")

	h.HandleAction(ctx, action(managerChat, "@alice", "claim:abc123", promptAnchor))

	record, err := reg.Get(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusInProgress, record.Status)
	assert.Equal(t, "@alice", record.OperatorRef)

	require.Len(t, surf.edits, 1, "prompt must be edited in place")
	assert.Equal(t, promptAnchor, surf.edits[0].anchor)
	assert.Contains(t, surf.edits[0].text, "Taken by @alice")

	step := surf.lastPost(t)
	assert.Equal(t, managerChat, step.chatID)
	assert.Contains(t, step.text, "step 1/4")
	require.Len(t, step.actions, 2)
	assert.Equal(t, "opt:abc123:0:0", step.actions[0].ID)
}

func TestHandler_SecondClaimGetsNotice(t *testing.T) {
	h, reg, _, surf := newTestHandler(t)
	ctx := context.Background()
	promptAnchor := sentBooking(t, reg, "abc123")

	h.HandleAction(ctx, action(managerChat, "@alice", "claim:abc123", promptAnchor))
	editsAfterClaim := len(surf.edits)

	h.HandleAction(ctx, action(managerChat, "@bob", "claim:abc123", promptAnchor))

	record, err := reg.Get(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, "@alice", record.OperatorRef)

	notice := surf.lastPost(t)
	assert.Contains(t, notice.text, "already taken by @alice")
	assert.Len(t, surf.edits, editsAfterClaim, "loser must not touch the prompt")
}

func TestHandler_ClaimOutsideManagerChat(t *testing.T) {
	h, reg, _, surf := newTestHandler(t)
	ctx := context.Background()
	promptAnchor := sentBooking(t, reg, "abc123")

	h.HandleAction(ctx, action(77, "@mallory", "claim:abc123", promptAnchor))

	record, err := reg.Get(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusSent, record.Status, "claims outside the manager chat are refused")

	notice := surf.lastPost(t)
	assert.Equal(t, int64(77), notice.chatID)
	assert.Contains(t, notice.text, "manager chat")
}

func TestHandler_Reject(t *testing.T) {
	h, reg, _, surf := newTestHandler(t)
	ctx := context.Background()
	promptAnchor := sentBooking(t, reg, "abc123")

	h.HandleAction(ctx, action(managerChat, "@alice", "reject:abc123", promptAnchor))

	record, err := reg.Get(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusRejected, record.Status)

	require.Len(t, surf.edits, 1)
	assert.Contains(t, surf.edits[0].text, "REJECTED")

	events, err := reg.PendingEvents(ctx)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestHandler_MalformedActionIgnored(t *testing.T) {
	h, reg, _, surf := newTestHandler(t)
	ctx := context.Background()
	sentBooking(t, reg, "abc123")

	h.HandleAction(ctx, action(managerChat, "@alice", "frobnicate:abc123", domain.Anchor{}))
	h.HandleAction(ctx, action(managerChat, "@alice", "opt:abc123:x:y", domain.Anchor{}))

	assert.Empty(t, surf.posts)
	assert.Empty(t, surf.edits)
}

func TestHandler_StrayTextIgnored(t *testing.T) {
	h, _, _, surf := newTestHandler(t)

	h.HandleText(context.Background(), surface.TextEvent{ChatID: managerChat, Actor: "@alice", Text: "lunch anyone?"})

	assert.Empty(t, surf.posts)
}

// Full happy path, end to end through the action surface: claim, four
// affirmative steps, deposit, summary confirm, payment.
func TestHandler_FullScenario(t *testing.T) {
	h, reg, wiz, surf := newTestHandler(t)
	ctx := context.Background()
	promptAnchor := sentBooking(t, reg, "abc123")

	h.HandleAction(ctx, action(managerChat, "@alice", "claim:abc123", promptAnchor))
	h.HandleAction(ctx, action(managerChat, "@bob", "claim:abc123", promptAnchor))

	wizardAnchor := domain.Anchor{ChatID: managerChat, MessageID: surf.posts[0].anchor.MessageID}
	require.Len(t, surf.posts[0].actions, 2)

	// Walk all steps choosing the affirmative (first) option.
	h.HandleAction(ctx, action(managerChat, "@alice", "opt:abc123:0:0", wizardAnchor))
	h.HandleAction(ctx, action(managerChat, "@alice", "opt:abc123:1:0", wizardAnchor))
	h.HandleAction(ctx, action(managerChat, "@alice", "opt:abc123:2:0", wizardAnchor))
	h.HandleAction(ctx, action(managerChat, "@alice", "opt:abc123:3:0", wizardAnchor))

	lastEdit := surf.edits[len(surf.edits)-1]
	assert.Contains(t, lastEdit.text, "deposit")

	h.HandleText(ctx, surface.TextEvent{ChatID: managerChat, Actor: "@alice", Text: "500000"})

	summary := surf.lastPost(t)
	assert.Contains(t, summary.text, "500000")
	assert.Contains(t, summary.text, "450000")
	require.Len(t, summary.actions, 1)
	assert.Equal(t, "confirm:abc123", summary.actions[0].ID)

	h.HandleAction(ctx, action(managerChat, "@alice", "confirm:abc123", summary.anchor))

	paymentEdit := surf.edits[len(surf.edits)-1]
	assert.Contains(t, paymentEdit.text, "payment")
	require.Len(t, paymentEdit.actions, 1)
	assert.Equal(t, "paid:abc123", paymentEdit.actions[0].ID)

	h.HandleAction(ctx, action(managerChat, "@alice", "paid:abc123", summary.anchor))

	record, err := reg.Get(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusConfirmed, record.Status)
	assert.Equal(t, "500000", record.DepositAmount)
	assert.Len(t, record.Selections, wiz.NumSteps())
	assert.Equal(t, "@alice", record.OperatorRef)

	var finalEdited bool
	for _, e := range surf.edits {
		if e.anchor == promptAnchor && strings.Contains(e.text, "BOOKING CONFIRMED") {
			finalEdited = true
		}
	}
	assert.True(t, finalEdited, "operator prompt must carry the final summary")

	events, err := reg.PendingEvents(ctx)
	require.NoError(t, err)
	require.Len(t, events, 1, "exactly one outcome event for the booking")
	assert.Equal(t, "abc123", events[0].BookingID)
	assert.Equal(t, domain.BookingStatusConfirmed, events[0].Status)

	// A second payment press changes nothing.
	h.HandleAction(ctx, action(managerChat, "@alice", "paid:abc123", summary.anchor))
	events, err = reg.PendingEvents(ctx)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

// A press arriving from a stale duplicate of the wizard message must
// still land its edit on the live wizard message the session remembers.
func TestHandler_PaidFromStaleMessageEditsLiveWizard(t *testing.T) {
	h, reg, _, surf := newTestHandler(t)
	ctx := context.Background()
	promptAnchor := sentBooking(t, reg, "abc123")

	h.HandleAction(ctx, action(managerChat, "@alice", "claim:abc123", promptAnchor))
	wizardAnchor := surf.posts[0].anchor
	for step := 0; step < 4; step++ {
		h.HandleAction(ctx, action(managerChat, "@alice", surface.OptionActionID("abc123", step, 0), wizardAnchor))
	}
	h.HandleText(ctx, surface.TextEvent{ChatID: managerChat, Actor: "@alice", Text: "500000"})
	summary := surf.lastPost(t)
	h.HandleAction(ctx, action(managerChat, "@alice", "confirm:abc123", summary.anchor))

	stale := domain.Anchor{ChatID: managerChat, MessageID: 9999}
	h.HandleAction(ctx, action(managerChat, "@alice", "paid:abc123", stale))

	record, err := reg.Get(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusConfirmed, record.Status)

	closing := surf.edits[len(surf.edits)-1]
	assert.Equal(t, summary.anchor, closing.anchor, "closing edit must target the session's wizard message")
	assert.NotEqual(t, stale, closing.anchor)
}

func TestHandler_NegativeAnswersRecordNothing(t *testing.T) {
	h, reg, _, surf := newTestHandler(t)
	ctx := context.Background()
	promptAnchor := sentBooking(t, reg, "abc123")

	h.HandleAction(ctx, action(managerChat, "@alice", "claim:abc123", promptAnchor))
	wizardAnchor := surf.posts[0].anchor

	h.HandleAction(ctx, action(managerChat, "@alice", "opt:abc123:0:1", wizardAnchor))
	h.HandleAction(ctx, action(managerChat, "@alice", "opt:abc123:1:1", wizardAnchor))
	h.HandleAction(ctx, action(managerChat, "@alice", "opt:abc123:2:1", wizardAnchor))
	h.HandleAction(ctx, action(managerChat, "@alice", "opt:abc123:3:1", wizardAnchor))
	h.HandleText(ctx, surface.TextEvent{ChatID: managerChat, Actor: "@alice", Text: "0"})

	record, err := reg.Get(ctx, "abc123")
	require.NoError(t, err)
	assert.Empty(t, record.Selections)
	assert.Equal(t, "0", record.DepositAmount)
}
