package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"stagehand/internal/booking"
	"stagehand/internal/extraction"
	"stagehand/internal/ingest"
)

func draft(venue string) booking.Booking {
	return booking.Booking{VenueName: venue, Status: booking.StatusDraft}
}

func confirmed(venue, contactName, contactEmail string) booking.Booking {
	return booking.Booking{
		VenueName:    venue,
		Status:       booking.StatusConfirmed,
		ContactName:  contactName,
		ContactEmail: contactEmail,
	}
}

func TestMatch_NoCandidates(t *testing.T) {
	res := &extraction.Result{VenueName: "Blue Note"}

	decision := Match(res, ingest.Message{}, nil)

	assert.False(t, decision.Matched)
	assert.False(t, decision.Conflict)
	assert.Nil(t, decision.Target)
}

func TestMatch_DraftPlaceholderVenue(t *testing.T) {
	// A Draft still carrying the placeholder venue soaks up any extraction
	// for the same day.
	candidates := []booking.Booking{draft("Unknown Venue")}
	res := &extraction.Result{VenueName: "The Jazz Cellar"}

	decision := Match(res, ingest.Message{}, candidates)

	assert.True(t, decision.Matched)
	assert.Equal(t, TierDraft, decision.Tier)
	assert.Equal(t, "Unknown Venue", decision.Target.VenueName)
}

func TestMatch_DraftVenueSubstring(t *testing.T) {
	candidates := []booking.Booking{draft("The Jazz Cellar Downtown")}
	res := &extraction.Result{VenueName: "jazz cellar"}

	decision := Match(res, ingest.Message{}, candidates)

	assert.True(t, decision.Matched)
	assert.Equal(t, TierDraft, decision.Tier)
}

func TestMatch_DraftNoVenueNoPlaceholder(t *testing.T) {
	candidates := []booking.Booking{draft("The Jazz Cellar")}
	res := &extraction.Result{}

	decision := Match(res, ingest.Message{}, candidates)

	assert.False(t, decision.Matched)
	assert.True(t, decision.Conflict)
}

func TestMatch_StrictVenueSubstring(t *testing.T) {
	candidates := []booking.Booking{confirmed("Blue Note NYC", "", "")}
	res := &extraction.Result{VenueName: "blue note"}

	decision := Match(res, ingest.Message{}, candidates)

	assert.True(t, decision.Matched)
	assert.Equal(t, TierStrict, decision.Tier)
}

func TestMatch_StrictContactEmailEquality(t *testing.T) {
	candidates := []booking.Booking{confirmed("Blue Note", "", "a@b.com")}
	res := &extraction.Result{ContactEmail: "A@B.com"}

	decision := Match(res, ingest.Message{}, candidates)

	assert.True(t, decision.Matched)
	assert.Equal(t, TierStrict, decision.Tier)
}

func TestMatch_StrictSenderContainsContactEmail(t *testing.T) {
	candidates := []booking.Booking{confirmed("Blue Note", "", "booker@venue.com")}
	res := &extraction.Result{}
	msg := ingest.Message{Sender: "Jane Booker <booker@venue.com>"}

	decision := Match(res, msg, candidates)

	assert.True(t, decision.Matched)
	assert.Equal(t, TierStrict, decision.Tier)
}

func TestMatch_StrictContactNameSubstring(t *testing.T) {
	candidates := []booking.Booking{confirmed("Blue Note", "Jane Booker", "other@x.com")}
	res := &extraction.Result{ContactName: "jane"}

	decision := Match(res, ingest.Message{}, candidates)

	assert.True(t, decision.Matched)
	assert.Equal(t, TierStrict, decision.Tier)
}

func TestMatch_StrictEmptyFieldsNeverMatch(t *testing.T) {
	// Empty extracted fields must not match empty booking fields.
	candidates := []booking.Booking{confirmed("Blue Note", "", "")}
	res := &extraction.Result{}

	decision := Match(res, ingest.Message{}, candidates)

	assert.False(t, decision.Matched)
	assert.True(t, decision.Conflict)
}

func TestMatch_FirstMatchWins(t *testing.T) {
	candidates := []booking.Booking{
		{ID: "first", VenueName: "Blue Note East", Status: booking.StatusConfirmed},
		{ID: "second", VenueName: "Blue Note West", Status: booking.StatusConfirmed},
	}
	res := &extraction.Result{VenueName: "Blue Note"}

	decision := Match(res, ingest.Message{}, candidates)

	assert.True(t, decision.Matched)
	assert.Equal(t, "first", decision.Target.ID)
}

func TestMatch_DraftBeforeStrictInCandidateOrder(t *testing.T) {
	// Candidate order decides precedence: a Draft earlier in the scan wins
	// over a later Confirmed booking that also matches.
	candidates := []booking.Booking{
		{ID: "draft", VenueName: "Unknown Venue", Status: booking.StatusDraft},
		{ID: "confirmed", VenueName: "Blue Note", Status: booking.StatusConfirmed},
	}
	res := &extraction.Result{VenueName: "Blue Note"}

	decision := Match(res, ingest.Message{}, candidates)

	assert.True(t, decision.Matched)
	assert.Equal(t, TierDraft, decision.Tier)
	assert.Equal(t, "draft", decision.Target.ID)
}

func TestMatch_ConflictWhenNothingMatches(t *testing.T) {
	candidates := []booking.Booking{
		confirmed("Blue Note", "Jane", "jane@venue.com"),
		confirmed("The Fillmore", "Bob", "bob@fillmore.com"),
	}
	res := &extraction.Result{VenueName: "Red Rocks", ContactEmail: "promoter@redrocks.com"}

	decision := Match(res, ingest.Message{Sender: "promoter@redrocks.com"}, candidates)

	assert.False(t, decision.Matched)
	assert.True(t, decision.Conflict)
}

func TestMatch_DraftRulesNeverApplyToConfirmed(t *testing.T) {
	// A Confirmed booking named "Unknown Venue" gets strict treatment, not
	// the lenient placeholder rule.
	candidates := []booking.Booking{confirmed("Unknown Venue", "", "")}
	res := &extraction.Result{VenueName: "The Jazz Cellar"}

	decision := Match(res, ingest.Message{}, candidates)

	assert.False(t, decision.Matched)
	assert.True(t, decision.Conflict)
}
