package surface

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avoronin/rentdesk/internal/domain"
)

func TestActionID_RoundTrip(t *testing.T) {
	tests := []struct {
		id   string
		want ActionRef
	}{
		{ClaimActionID("abc123"), ActionRef{Verb: VerbClaim, BookingID: "abc123"}},
		{RejectActionID("abc123"), ActionRef{Verb: VerbReject, BookingID: "abc123"}},
		{OptionActionID("abc123", 2, 1), ActionRef{Verb: VerbOption, BookingID: "abc123", Step: 2, Option: 1}},
		{ConfirmActionID("abc123"), ActionRef{Verb: VerbConfirm, BookingID: "abc123"}},
		{PaidActionID("abc123"), ActionRef{Verb: VerbPaid, BookingID: "abc123"}},
	}

	for _, tt := range tests {
		ref, err := ParseActionID(tt.id)
		require.NoError(t, err, tt.id)
		assert.Equal(t, tt.want, ref)
	}
}

func TestParseActionID_Malformed(t *testing.T) {
	for _, id := range []string{
		"",
		"claim",
		"frobnicate:abc123",
		"opt:abc123",
		"opt:abc123:x:0",
		"opt:abc123:0:y",
		"claim:abc123:extra",
	} {
		_, err := ParseActionID(id)
		assert.Error(t, err, "id %q must not parse", id)
	}
}

func TestPromptText_ContainsSubjectFields(t *testing.T) {
	record := &domain.BookingRecord{
		BookingID: "abc123",
		Subject: domain.SubjectFields{
			Scooter:  "Honda Vario",
			Days:     3,
			Total:    450000,
			Name:     "Ann",
			Contact:  "+84 090 000 111",
			Location: "District 1",
		},
		RiskAnnotation: "repeat no-show",
	}

	text := PromptText(record)
	for _, want := range []string{"abc123", "Honda Vario", "3", "450000", "Ann", "+84 090 000 111", "District 1", "repeat no-show"} {
		assert.Contains(t, text, want)
	}
}

func TestPromptText_MissingOptionalFields(t *testing.T) {
	record := &domain.BookingRecord{BookingID: "abc123", Subject: domain.SubjectFields{Days: 1}}

	text := PromptText(record)
	assert.Contains(t, text, "—", "missing fields render as placeholders")
	assert.NotContains(t, text, "Location:")
	assert.NotContains(t, text, "⚠️")
}

func TestSummaryText(t *testing.T) {
	record := &domain.BookingRecord{
		BookingID: "abc123",
		Subject:   domain.SubjectFields{Total: 450000},
	}
	selections := []domain.EquipmentSelection{
		{Key: "helmet2", Option: "Yes"},
		{Key: "fuel", Option: "Full tank"},
	}

	text := SummaryText(record, selections, "500000")
	assert.Contains(t, text, "helmet2: Yes")
	assert.Contains(t, text, "fuel: Full tank")
	assert.Contains(t, text, "500000")
	assert.Contains(t, text, "450000")
}

func TestSummaryText_NoSelections(t *testing.T) {
	record := &domain.BookingRecord{BookingID: "abc123"}

	text := SummaryText(record, nil, "0")
	assert.Contains(t, text, "Extras: none")
}

func TestOutcomeText(t *testing.T) {
	confirmed := OutcomeText(domain.OutcomeEvent{Status: domain.BookingStatusConfirmed})
	assert.Contains(t, confirmed, "confirmed")

	rejected := OutcomeText(domain.OutcomeEvent{Status: domain.BookingStatusRejected})
	assert.Contains(t, rejected, "declined")
}
