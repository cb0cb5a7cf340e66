package domain

import "time"

type BookingStatus string

const (
	BookingStatusNew        BookingStatus = "NEW"
	BookingStatusSent       BookingStatus = "SENT"
	BookingStatusInProgress BookingStatus = "IN_PROGRESS"
	BookingStatusConfirmed  BookingStatus = "CONFIRMED"
	BookingStatusRejected   BookingStatus = "REJECTED"
)

func (s BookingStatus) Terminal() bool {
	return s == BookingStatusConfirmed || s == BookingStatusRejected
}

// validEdges lists every transition the registry will accept. The
// InProgress self-edge carries wizard writes (selections, deposit)
// without a status change.
var validEdges = map[BookingStatus][]BookingStatus{
	BookingStatusNew:        {BookingStatusSent},
	BookingStatusSent:       {BookingStatusInProgress, BookingStatusRejected},
	BookingStatusInProgress: {BookingStatusInProgress, BookingStatusConfirmed},
}

func ValidTransition(from, to BookingStatus) bool {
	for _, next := range validEdges[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Anchor points at a posted surface message so it can be edited in
// place as the booking progresses.
type Anchor struct {
	ChatID    int64 `json:"chat_id"`
	MessageID int   `json:"message_id"`
}

// SubjectFields is the booking content written once by intake. The
// core only renders these, it never derives or validates them.
type SubjectFields struct {
	Scooter  string `json:"scooter"`
	Days     int    `json:"days"`
	Total    int64  `json:"total"`
	Name     string `json:"name"`
	Contact  string `json:"contact"`
	Location string `json:"location,omitempty"`
}

// EquipmentSelection is one affirmative wizard answer. Order matters
// for the summary, so selections are a slice, not a map.
type EquipmentSelection struct {
	Key    string `json:"key"`
	Option string `json:"option"`
}

type BookingRecord struct {
	BookingID      string               `json:"booking_id"`
	Status         BookingStatus        `json:"status"`
	RequesterID    int64                `json:"requester_id"`
	Subject        SubjectFields        `json:"subject"`
	OperatorRef    string               `json:"operator_ref,omitempty"`
	Selections     []EquipmentSelection `json:"equipment_selections,omitempty"`
	DepositAmount  string               `json:"deposit_amount,omitempty"`
	Anchor         *Anchor              `json:"notification_anchor,omitempty"`
	RiskAnnotation string               `json:"risk_annotation,omitempty"`
	CreatedAt      time.Time            `json:"created_at"`
	UpdatedAt      time.Time            `json:"updated_at"`
}

const OutcomeKindBookingUpdate = "booking_update"

// OutcomeEvent records a terminal resolution. It lives in the store
// until the relay delivers the requester notification, then it is
// deleted; a short TTL caps how long an undeliverable event can linger.
type OutcomeEvent struct {
	EventID   string        `json:"event_id"`
	BookingID string        `json:"booking_id"`
	Kind      string        `json:"kind"`
	Status    BookingStatus `json:"status"`
	Deposit   string        `json:"deposit,omitempty"`
	Total     int64         `json:"total"`
	Operator  string        `json:"operator,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}
