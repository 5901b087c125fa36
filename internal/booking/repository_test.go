package booking

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplyProposal_MergesAllProposedFields(t *testing.T) {
	b := &Booking{
		VenueName:   "Blue Note",
		Location:    "NYC",
		Fee:         500,
		ContactName: "Jane",
		StartTime:   "20:00",
		EndTime:     "23:00",
		ProposedUpdates: ProposedUpdates{
			FieldVenueName:   "Blue Note NYC",
			FieldFee:         600.0,
			FieldContactName: "Jane Booker",
		},
	}

	applyProposal(b)

	assert.Equal(t, "Blue Note NYC", b.VenueName)
	assert.Equal(t, 600.0, b.Fee)
	assert.Equal(t, "Jane Booker", b.ContactName)
	// Unproposed fields keep their values.
	assert.Equal(t, "NYC", b.Location)
	assert.Equal(t, "20:00", b.StartTime)
	assert.Equal(t, "23:00", b.EndTime)
}

func TestApplyProposal_IgnoresUnknownAndMistypedFields(t *testing.T) {
	b := &Booking{
		VenueName: "Blue Note",
		Fee:       500,
		ProposedUpdates: ProposedUpdates{
			"status":      "Confirmed", // not a proposable field
			FieldFee:      "not a number",
			FieldLocation: 42,
		},
	}

	applyProposal(b)

	assert.Equal(t, "Blue Note", b.VenueName)
	assert.Equal(t, 500.0, b.Fee)
	assert.Equal(t, "", b.Location)
}

func TestApplyProposal_HandlesJSONDecodedNumbers(t *testing.T) {
	// Proposals round-trip through JSONB, so numbers come back as float64.
	var updates ProposedUpdates
	raw := `{"fee": 750}`
	assert.NoError(t, json.Unmarshal([]byte(raw), &updates))

	b := &Booking{Fee: 500, ProposedUpdates: updates}
	applyProposal(b)

	assert.Equal(t, 750.0, b.Fee)
}

func TestToFloat(t *testing.T) {
	tests := []struct {
		value interface{}
		want  float64
		ok    bool
	}{
		{600.0, 600, true},
		{float32(600), 600, true},
		{600, 600, true},
		{int64(600), 600, true},
		{json.Number("600"), 600, true},
		{"600", 0, false},
		{nil, 0, false},
	}

	for _, tt := range tests {
		got, ok := toFloat(tt.value)
		assert.Equal(t, tt.ok, ok, "value %v", tt.value)
		if ok {
			assert.Equal(t, tt.want, got)
		}
	}
}

func TestHasPendingProposal(t *testing.T) {
	assert.False(t, (&Booking{}).HasPendingProposal())
	assert.False(t, (&Booking{ProposedUpdates: ProposedUpdates{}}).HasPendingProposal())
	assert.True(t, (&Booking{ProposedUpdates: ProposedUpdates{FieldFee: 600.0}}).HasPendingProposal())
}

func TestStatusValid(t *testing.T) {
	for _, s := range []Status{StatusDraft, StatusLead, StatusConfirmed, StatusContractSent, StatusDone, StatusCancelled} {
		assert.True(t, s.Valid(), "status %s", s)
	}
	assert.False(t, Status("Pending").Valid())
}
