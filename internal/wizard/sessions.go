package wizard

import (
	"sync"
	"time"

	"github.com/avoronin/rentdesk/internal/domain"
)

type sessionState string

const (
	stateStep    sessionState = "awaiting_step"
	stateDeposit sessionState = "awaiting_deposit"
	stateConfirm sessionState = "awaiting_confirm"
	statePayment sessionState = "awaiting_payment"
)

type sessionKey struct {
	chatID   int64
	operator string
}

// session is in-flight wizard progress for one operator conversation.
// It is never the source of truth for anything durable: the claim
// lives in the booking record, and selections reach the record at the
// deposit boundary. A process restart simply loses it.
type session struct {
	bookingID  string
	state      sessionState
	stepIndex  int
	selections []domain.EquipmentSelection
	anchor     *domain.Anchor
	touchedAt  time.Time
}

type sessionTable struct {
	mu       sync.Mutex
	sessions map[sessionKey]*session
	idle     time.Duration
	max      int
	now      func() time.Time
}

func newSessionTable(idle time.Duration, max int) *sessionTable {
	return &sessionTable{
		sessions: make(map[sessionKey]*session),
		idle:     idle,
		max:      max,
		now:      time.Now,
	}
}

// put registers a fresh session, replacing any the operator already
// had. Stale sessions are evicted first; when the table is still full
// the oldest one is dropped to keep it bounded.
func (t *sessionTable) put(key sessionKey, s *session) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.evictStaleLocked()
	if _, exists := t.sessions[key]; !exists && t.max > 0 && len(t.sessions) >= t.max {
		t.evictOldestLocked()
	}
	s.touchedAt = t.now()
	t.sessions[key] = s
}

// get returns the live session for key, touching it. Idle sessions
// count as abandoned and are removed.
func (t *sessionTable) get(key sessionKey) (*session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.sessions[key]
	if !ok {
		return nil, false
	}
	if t.idle > 0 && t.now().Sub(s.touchedAt) > t.idle {
		delete(t.sessions, key)
		return nil, false
	}
	s.touchedAt = t.now()
	return s, true
}

func (t *sessionTable) delete(key sessionKey) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.sessions, key)
}

func (t *sessionTable) evictStaleLocked() {
	if t.idle <= 0 {
		return
	}
	cutoff := t.now().Add(-t.idle)
	for key, s := range t.sessions {
		if s.touchedAt.Before(cutoff) {
			delete(t.sessions, key)
		}
	}
}

func (t *sessionTable) evictOldestLocked() {
	var oldestKey sessionKey
	var oldest time.Time
	first := true
	for key, s := range t.sessions {
		if first || s.touchedAt.Before(oldest) {
			oldestKey, oldest = key, s.touchedAt
			first = false
		}
	}
	if !first {
		delete(t.sessions, oldestKey)
	}
}
