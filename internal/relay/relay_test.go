package relay

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/avoronin/rentdesk/internal/domain"
	"github.com/avoronin/rentdesk/internal/registry"
	"github.com/avoronin/rentdesk/internal/store"
	"github.com/avoronin/rentdesk/internal/surface"
)

const (
	managerChat = int64(-500100)
	requester   = int64(100500)
)

type MockSurface struct {
	mock.Mock
}

func (m *MockSurface) Post(ctx context.Context, chatID int64, text string, actions []surface.Action) (domain.Anchor, error) {
	args := m.Called(ctx, chatID, text, actions)
	return args.Get(0).(domain.Anchor), args.Error(1)
}

func (m *MockSurface) Edit(ctx context.Context, anchor domain.Anchor, text string, actions []surface.Action) error {
	args := m.Called(ctx, anchor, text, actions)
	return args.Error(0)
}

func newTestRelay(t *testing.T) (*Relay, *registry.Registry, *MockSurface, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	reg := registry.New(st, 24*time.Hour, time.Hour)
	surf := &MockSurface{}
	return New(reg, surf, managerChat, 7*time.Second, nil), reg, surf, st
}

func intakeBooking(t *testing.T, reg *registry.Registry) {
	t.Helper()
	_, err := reg.CreateIntakeRecord(context.Background(), &domain.BookingRecord{
		BookingID:   "abc123",
		RequesterID: requester,
		Subject:     domain.SubjectFields{Scooter: "Honda Vario", Days: 3, Total: 450000, Name: "Ann", Contact: "+84 090 000 111"},
	})
	require.NoError(t, err)
}

func TestRelay_PostsPromptAndMarksSent(t *testing.T) {
	r, reg, surf, _ := newTestRelay(t)
	ctx := context.Background()
	intakeBooking(t, reg)

	anchor := domain.Anchor{ChatID: managerChat, MessageID: 17}
	surf.On("Post", mock.Anything, managerChat, mock.MatchedBy(func(text string) bool {
		for _, want := range []string{"abc123", "Honda Vario", "3", "450000", "Ann"} {
			if !strings.Contains(text, want) {
				return false
			}
		}
		return true
	}), mock.MatchedBy(func(actions []surface.Action) bool {
		return len(actions) == 2 && actions[0].ID == "claim:abc123"
	})).Return(anchor, nil).Once()

	r.tick(ctx)

	record, err := reg.Get(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusSent, record.Status)
	require.NotNil(t, record.Anchor)
	assert.Equal(t, anchor, *record.Anchor)

	// A later tick must not prompt again.
	r.tick(ctx)
	surf.AssertNumberOfCalls(t, "Post", 1)
}

func TestRelay_PromptFailureRetriedNextTick(t *testing.T) {
	r, reg, surf, _ := newTestRelay(t)
	ctx := context.Background()
	intakeBooking(t, reg)

	surf.On("Post", mock.Anything, managerChat, mock.Anything, mock.Anything).
		Return(domain.Anchor{}, errors.New("surface unreachable")).Once()

	r.tick(ctx)

	record, err := reg.Get(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusNew, record.Status, "failed prompt must leave the booking discoverable")

	anchor := domain.Anchor{ChatID: managerChat, MessageID: 18}
	surf.On("Post", mock.Anything, managerChat, mock.Anything, mock.Anything).Return(anchor, nil).Once()

	r.tick(ctx)

	record, err = reg.Get(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusSent, record.Status)
}

func confirmBooking(t *testing.T, reg *registry.Registry) {
	t.Helper()
	ctx := context.Background()
	_, err := reg.Transition(ctx, "abc123", domain.BookingStatusNew, func(b *domain.BookingRecord) {
		b.Status = domain.BookingStatusSent
		b.Anchor = &domain.Anchor{ChatID: managerChat, MessageID: 1}
	})
	require.NoError(t, err)
	_, err = reg.Claim(ctx, "abc123", "manager_a")
	require.NoError(t, err)
	_, err = reg.Transition(ctx, "abc123", domain.BookingStatusInProgress, func(b *domain.BookingRecord) {
		b.Status = domain.BookingStatusConfirmed
		b.DepositAmount = "500000"
	})
	require.NoError(t, err)
}

func TestRelay_DeliversOutcomeExactlyOnce(t *testing.T) {
	r, reg, surf, _ := newTestRelay(t)
	ctx := context.Background()
	intakeBooking(t, reg)
	confirmBooking(t, reg)

	// First attempt fails: the event must survive for the next tick.
	surf.On("Post", mock.Anything, requester, mock.Anything, mock.Anything).
		Return(domain.Anchor{}, errors.New("surface unreachable")).Once()

	r.tick(ctx)

	events, err := reg.PendingEvents(ctx)
	require.NoError(t, err)
	require.Len(t, events, 1, "failed delivery must not delete the event")

	surf.On("Post", mock.Anything, requester, mock.MatchedBy(func(text string) bool {
		return strings.Contains(text, "confirmed")
	}), mock.Anything).Return(domain.Anchor{ChatID: requester, MessageID: 2}, nil).Once()

	r.tick(ctx)

	events, err = reg.PendingEvents(ctx)
	require.NoError(t, err)
	assert.Empty(t, events, "delivered event must be deleted")

	// Nothing left to deliver.
	r.tick(ctx)
	surf.AssertNumberOfCalls(t, "Post", 2)
}

func TestRelay_DropsOutcomeForVanishedBooking(t *testing.T) {
	r, reg, surf, st := newTestRelay(t)
	ctx := context.Background()

	intakeBooking(t, reg)
	confirmBooking(t, reg)

	// The record is gone (TTL eviction) but its outcome event remains.
	require.NoError(t, st.Delete(ctx, store.BookingKey("abc123")))

	r.tick(ctx)

	events, err := reg.PendingEvents(ctx)
	require.NoError(t, err)
	assert.Empty(t, events, "orphan event must be dropped")
	surf.AssertNotCalled(t, "Post", mock.Anything, requester, mock.Anything, mock.Anything)
}

func TestRelay_RejectedOutcomeText(t *testing.T) {
	r, reg, surf, _ := newTestRelay(t)
	ctx := context.Background()
	intakeBooking(t, reg)

	_, err := reg.Transition(ctx, "abc123", domain.BookingStatusNew, func(b *domain.BookingRecord) { b.Status = domain.BookingStatusSent })
	require.NoError(t, err)
	_, err = reg.Reject(ctx, "abc123", "manager_a")
	require.NoError(t, err)

	surf.On("Post", mock.Anything, requester, mock.MatchedBy(func(text string) bool {
		return strings.Contains(text, "declined")
	}), mock.Anything).Return(domain.Anchor{}, nil).Once()

	r.tick(ctx)

	surf.AssertExpectations(t)
}
