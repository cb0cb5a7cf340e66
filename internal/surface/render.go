package surface

import (
	"fmt"
	"strings"

	"github.com/avoronin/rentdesk/internal/domain"
)

// PromptText renders the operator-facing booking prompt posted into
// the manager chat.
func PromptText(record *domain.BookingRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🛵 New booking #%s\n\n", record.BookingID)
	fmt.Fprintf(&b, "Scooter: %s\n", orPlaceholder(record.Subject.Scooter))
	fmt.Fprintf(&b, "Days: %d\n", record.Subject.Days)
	fmt.Fprintf(&b, "Total: %d\n", record.Subject.Total)
	fmt.Fprintf(&b, "Client: %s (%s)", orPlaceholder(record.Subject.Name), orPlaceholder(record.Subject.Contact))
	if record.Subject.Location != "" {
		fmt.Fprintf(&b, "\nLocation: %s", record.Subject.Location)
	}
	if record.RiskAnnotation != "" {
		fmt.Fprintf(&b, "\n\n⚠️ %s", record.RiskAnnotation)
	}
	return b.String()
}

func ClaimedText(record *domain.BookingRecord) string {
	return PromptText(record) + "\n\n👤 Taken by " + record.OperatorRef
}

func RejectedText(record *domain.BookingRecord) string {
	return PromptText(record) + "\n\n❌ BOOKING REJECTED"
}

// SummaryText itemizes the wizard result for operator review before
// final confirmation.
func SummaryText(record *domain.BookingRecord, selections []domain.EquipmentSelection, deposit string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Booking #%s — summary\n\n", record.BookingID)
	if len(selections) == 0 {
		b.WriteString("Extras: none\n")
	} else {
		b.WriteString("Extras:\n")
		for _, sel := range selections {
			fmt.Fprintf(&b, "  • %s: %s\n", sel.Key, sel.Option)
		}
	}
	fmt.Fprintf(&b, "Deposit: %s\n", deposit)
	fmt.Fprintf(&b, "Total: %d", record.Subject.Total)
	return b.String()
}

func FinalText(record *domain.BookingRecord) string {
	return PromptText(record) +
		"\n\n" + SummaryText(record, record.Selections, record.DepositAmount) +
		"\n\n✅ BOOKING CONFIRMED"
}

func PaymentText(record *domain.BookingRecord) string {
	return fmt.Sprintf("Booking #%s: accept payment from the client, then press Paid.", record.BookingID)
}

func DepositPromptText(bookingID string) string {
	return fmt.Sprintf("Booking #%s: reply with the deposit amount.", bookingID)
}

func StepText(bookingID, title string, step, total int) string {
	return fmt.Sprintf("Booking #%s — step %d/%d\n%s", bookingID, step+1, total, title)
}

func AlreadyClaimedText(bookingID, operator string) string {
	return fmt.Sprintf("Booking #%s is already taken by %s.", bookingID, operator)
}

func AlreadyHandledText(bookingID string) string {
	return fmt.Sprintf("Booking #%s has already been handled.", bookingID)
}

func GoneText(bookingID string) string {
	return fmt.Sprintf("Booking #%s no longer exists.", bookingID)
}

func PaymentRecordedText(bookingID string) string {
	return fmt.Sprintf("Payment recorded for booking #%s. ✅", bookingID)
}

// OutcomeText is the requester-facing resolution notice.
func OutcomeText(event domain.OutcomeEvent) string {
	if event.Status == domain.BookingStatusConfirmed {
		return "✅ Your booking is confirmed! The manager will contact you."
	}
	return "❌ Unfortunately, your booking was declined."
}

func orPlaceholder(s string) string {
	if s == "" {
		return "—"
	}
	return s
}
