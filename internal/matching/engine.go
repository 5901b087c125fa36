package matching

import (
	"strings"

	"stagehand/internal/booking"
	"stagehand/internal/constants"
	"stagehand/internal/extraction"
	"stagehand/internal/ingest"
	"stagehand/pkg/metrics"
)

// Tier identifies which rule set produced a match.
type Tier int

const (
	TierNone Tier = iota
	// TierDraft matches leniently against assistant-created Drafts. A false
	// positive here just accumulates notes on the same Draft instead of
	// fragmenting one inquiry across several.
	TierDraft
	// TierStrict matches non-Draft bookings on a single strong identity
	// signal. Once a booking has a human-confirmed identity, precision wins.
	TierStrict
)

// Decision is the outcome of matching one extraction against the bookings
// of the same calendar day.
type Decision struct {
	Matched bool
	Tier    Tier
	Target  *booking.Booking
	// Conflict is set when the day had bookings but none matched: a
	// possible double-booking the reviewer should see.
	Conflict bool
}

// Match scans candidates in the order given and returns the first booking
// that satisfies its tier's rules. There is no scoring across candidates;
// callers control precedence through candidate order.
func Match(res *extraction.Result, msg ingest.Message, candidates []booking.Booking) Decision {
	for i := range candidates {
		candidate := &candidates[i]

		if candidate.Status == booking.StatusDraft {
			if matchesDraft(res, candidate) {
				metrics.MatchDecisionsTotal.WithLabelValues("tier1").Inc()
				return Decision{Matched: true, Tier: TierDraft, Target: candidate}
			}
			continue
		}

		if matchesStrict(res, msg, candidate) {
			metrics.MatchDecisionsTotal.WithLabelValues("tier2").Inc()
			return Decision{Matched: true, Tier: TierStrict, Target: candidate}
		}
	}

	if len(candidates) > 0 {
		metrics.MatchDecisionsTotal.WithLabelValues("conflict").Inc()
		return Decision{Conflict: true}
	}

	metrics.MatchDecisionsTotal.WithLabelValues("no_match").Inc()
	return Decision{}
}

// matchesDraft: the Draft's venue is still the generic placeholder, or the
// Draft's venue contains the extracted venue as a substring.
func matchesDraft(res *extraction.Result, candidate *booking.Booking) bool {
	if candidate.VenueName == constants.PlaceholderVenue {
		return true
	}
	if res.VenueName == "" {
		return false
	}
	return containsFold(candidate.VenueName, res.VenueName)
}

// matchesStrict: any one of venue substring, contact email equality (or the
// message sender containing the booking's contact email), or contact name
// substring.
func matchesStrict(res *extraction.Result, msg ingest.Message, candidate *booking.Booking) bool {
	if res.VenueName != "" && containsFold(candidate.VenueName, res.VenueName) {
		return true
	}

	if candidate.ContactEmail != "" {
		if res.ContactEmail != "" && strings.EqualFold(res.ContactEmail, candidate.ContactEmail) {
			return true
		}
		if containsFold(msg.Sender, candidate.ContactEmail) {
			return true
		}
	}

	if res.ContactName != "" && candidate.ContactName != "" && containsFold(candidate.ContactName, res.ContactName) {
		return true
	}

	return false
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
