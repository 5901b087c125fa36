package reconcile

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stagehand/internal/booking"
	"stagehand/internal/config"
	"stagehand/internal/extraction"
	"stagehand/internal/ingest"
	"stagehand/internal/logger"
	"stagehand/pkg/cel"
)

type fakeMessageRepo struct {
	unprocessed []ingest.Message
	processed   []string
	markErr     error
}

func (r *fakeMessageRepo) Upsert(ctx context.Context, msg *ingest.Message) error { return nil }

func (r *fakeMessageRepo) GetByID(ctx context.Context, id string) (*ingest.Message, error) {
	return nil, nil
}

func (r *fakeMessageRepo) ListUnprocessed(ctx context.Context, limit int) ([]ingest.Message, error) {
	if limit > len(r.unprocessed) {
		limit = len(r.unprocessed)
	}
	return r.unprocessed[:limit], nil
}

func (r *fakeMessageRepo) MarkProcessed(ctx context.Context, id string) error {
	if r.markErr != nil {
		return r.markErr
	}
	r.processed = append(r.processed, id)
	return nil
}

type proposalCall struct {
	bookingID string
	updates   booking.ProposedUpdates
	note      booking.NoteEntry
}

type fakeBookingRepo struct {
	byDate    []booking.Booking
	confirmed []booking.Booking
	inserted  []booking.Booking
	proposals []proposalCall
	insertErr error
}

func (r *fakeBookingRepo) Insert(ctx context.Context, b *booking.Booking) error {
	if r.insertErr != nil {
		return r.insertErr
	}
	if b.ID == "" {
		b.ID = "generated-id"
	}
	r.inserted = append(r.inserted, *b)
	return nil
}

func (r *fakeBookingRepo) GetByID(ctx context.Context, id string) (*booking.Booking, error) {
	return nil, nil
}

func (r *fakeBookingRepo) QueryDateRange(ctx context.Context, from, to time.Time) ([]booking.Booking, error) {
	return r.byDate, nil
}

func (r *fakeBookingRepo) QueryRecentConfirmed(ctx context.Context, limit int) ([]booking.Booking, error) {
	return r.confirmed, nil
}

func (r *fakeBookingRepo) AppendProposal(ctx context.Context, id string, updates booking.ProposedUpdates, note booking.NoteEntry) error {
	r.proposals = append(r.proposals, proposalCall{bookingID: id, updates: updates, note: note})
	return nil
}

func (r *fakeBookingRepo) AcceptProposal(ctx context.Context, id string) (*booking.Booking, error) {
	return nil, nil
}

func (r *fakeBookingRepo) RejectProposal(ctx context.Context, id string) (*booking.Booking, error) {
	return nil, nil
}

func (r *fakeBookingRepo) Acknowledge(ctx context.Context, id string) error { return nil }

type fakeAdapter struct {
	results map[string]*extraction.Result
	errs    map[string]error
}

func (a *fakeAdapter) Extract(ctx context.Context, msg ingest.Message, contextBookings []booking.Booking) (*extraction.Result, error) {
	if err, ok := a.errs[msg.ID]; ok {
		return nil, err
	}
	if res, ok := a.results[msg.ID]; ok {
		return res, nil
	}
	return &extraction.Result{Confidence: 0.5, Notes: "Processed by extraction"}, nil
}

func testMessage(id string) ingest.Message {
	return ingest.Message{
		ID:         id,
		Subject:    "Gig inquiry",
		Sender:     "Jane Booker <jane@venue.com>",
		Folder:     "INBOX",
		ReceivedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func newTestService(t *testing.T, messages *fakeMessageRepo, bookings *fakeBookingRepo, adapter extraction.Adapter, filters []string) *Service {
	t.Helper()

	evaluator, err := cel.NewEvaluator()
	require.NoError(t, err)

	cfg := config.Config{}
	cfg.Reconcile.BatchSize = 5
	cfg.Reconcile.ContextBookings = 5
	cfg.Ingest.Filters = filters

	log := logger.NopLogger()
	notifier := NewNotifier(nil, "", log)
	lock := NewRunLock(nil, 0)

	return NewService(messages, bookings, adapter, evaluator, notifier, lock, cfg, log)
}

func TestRun_CreatesDraftForUnmatchedExtraction(t *testing.T) {
	gigDate := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	messages := &fakeMessageRepo{unprocessed: []ingest.Message{testMessage("m1")}}
	bookings := &fakeBookingRepo{}
	adapter := &fakeAdapter{results: map[string]*extraction.Result{
		"m1": {VenueName: "Blue Note", Date: &gigDate, Confidence: 0.9, Notes: "new inquiry"},
	}}

	svc := newTestService(t, messages, bookings, adapter, nil)
	summary, err := svc.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, summary.ProcessedCount)
	assert.Equal(t, 1, summary.DraftsCreated)
	require.Len(t, bookings.inserted, 1)

	draft := bookings.inserted[0]
	assert.Equal(t, booking.StatusDraft, draft.Status)
	assert.Equal(t, "Blue Note", draft.VenueName)
	assert.Equal(t, gigDate, draft.Date)
	assert.Equal(t, "m1", draft.SourceMessageID)
	assert.True(t, draft.HasUnseenUpdate)
	assert.Equal(t, []string{"m1"}, messages.processed)
}

func TestRun_WritesProposalForMatchedBooking(t *testing.T) {
	gigDate := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	messages := &fakeMessageRepo{unprocessed: []ingest.Message{testMessage("m1")}}
	bookings := &fakeBookingRepo{byDate: []booking.Booking{{
		ID:        "b1",
		VenueName: "Blue Note",
		Status:    booking.StatusConfirmed,
		Fee:       500,
		Date:      gigDate,
	}}}
	adapter := &fakeAdapter{results: map[string]*extraction.Result{
		"m1": {VenueName: "Blue Note", Date: &gigDate, Fee: floatPtr(600), Notes: "fee bumped"},
	}}

	svc := newTestService(t, messages, bookings, adapter, nil)
	summary, err := svc.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, summary.ProposalsWritten)
	assert.Empty(t, bookings.inserted)
	require.Len(t, bookings.proposals, 1)

	call := bookings.proposals[0]
	assert.Equal(t, "b1", call.bookingID)
	assert.Equal(t, 600.0, call.updates[booking.FieldFee])
	assert.NotContains(t, call.updates, booking.FieldVenueName)
	assert.Contains(t, call.note.Text, "Update proposal: fee bumped")
}

func TestRun_MatchedWithNothingToProposeWritesNothing(t *testing.T) {
	gigDate := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	messages := &fakeMessageRepo{unprocessed: []ingest.Message{testMessage("m1")}}
	bookings := &fakeBookingRepo{byDate: []booking.Booking{{
		ID:        "b1",
		VenueName: "Blue Note",
		Status:    booking.StatusConfirmed,
		Date:      gigDate,
	}}}
	adapter := &fakeAdapter{results: map[string]*extraction.Result{
		"m1": {VenueName: "Blue Note", Date: &gigDate},
	}}

	svc := newTestService(t, messages, bookings, adapter, nil)
	summary, err := svc.Run(context.Background())

	require.NoError(t, err)
	assert.Empty(t, bookings.proposals)
	assert.Empty(t, bookings.inserted)
	assert.Equal(t, 1, summary.ProcessedCount)
}

func TestRun_ExtractionFailureIsIsolated(t *testing.T) {
	gigDate := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	messages := &fakeMessageRepo{unprocessed: []ingest.Message{
		testMessage("bad"), testMessage("good"),
	}}
	bookings := &fakeBookingRepo{}
	adapter := &fakeAdapter{
		errs: map[string]error{"bad": errors.New("model unavailable")},
		results: map[string]*extraction.Result{
			"good": {VenueName: "Blue Note", Date: &gigDate},
		},
	}

	svc := newTestService(t, messages, bookings, adapter, nil)
	summary, err := svc.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, summary.Failures)
	assert.Equal(t, 1, summary.DraftsCreated)
	// Both messages leave the batch processed, failure or not.
	assert.Equal(t, []string{"bad", "good"}, messages.processed)
	assert.Equal(t, 2, summary.ProcessedCount)
}

func TestRun_FilteredMessageStillMarkedProcessed(t *testing.T) {
	messages := &fakeMessageRepo{unprocessed: []ingest.Message{testMessage("m1")}}
	bookings := &fakeBookingRepo{}
	adapter := &fakeAdapter{}

	svc := newTestService(t, messages, bookings, adapter, []string{`subject.contains("booking")`})
	summary, err := svc.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, summary.FilteredCount)
	assert.Empty(t, bookings.inserted)
	assert.Equal(t, []string{"m1"}, messages.processed)
}

func TestRun_FilterPassReachesExtraction(t *testing.T) {
	messages := &fakeMessageRepo{unprocessed: []ingest.Message{testMessage("m1")}}
	bookings := &fakeBookingRepo{}
	adapter := &fakeAdapter{}

	svc := newTestService(t, messages, bookings, adapter, []string{`subject.contains("Gig")`})
	summary, err := svc.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 0, summary.FilteredCount)
	assert.Equal(t, 1, summary.DraftsCreated)
}

func TestRun_DatelessExtractionCreatesDraft(t *testing.T) {
	messages := &fakeMessageRepo{unprocessed: []ingest.Message{testMessage("m1")}}
	bookings := &fakeBookingRepo{byDate: []booking.Booking{{
		ID: "should-not-be-queried", VenueName: "Blue Note", Status: booking.StatusConfirmed,
	}}}
	adapter := &fakeAdapter{results: map[string]*extraction.Result{
		"m1": {VenueName: "Blue Note"},
	}}

	svc := newTestService(t, messages, bookings, adapter, nil)
	summary, err := svc.Run(context.Background())

	require.NoError(t, err)
	// No date means no day window, so no candidates and no proposal.
	assert.Empty(t, bookings.proposals)
	assert.Equal(t, 1, summary.DraftsCreated)
	require.Len(t, bookings.inserted, 1)
	assert.Equal(t, testMessage("m1").ReceivedAt, bookings.inserted[0].Date)
}

func TestBuildDraft_Fallbacks(t *testing.T) {
	msg := testMessage("m1")
	res := &extraction.Result{Confidence: 0.4}

	draft := buildDraft(msg, res)

	assert.Equal(t, "Unknown Venue", draft.VenueName)
	assert.Equal(t, "TBD", draft.Location)
	assert.Equal(t, 0.0, draft.Fee)
	assert.Equal(t, "Jane Booker", draft.ContactName)
	assert.Equal(t, "jane@venue.com", draft.ContactEmail)
	assert.Equal(t, booking.StatusDraft, draft.Status)
	require.NotNil(t, draft.Confidence)
	assert.Equal(t, 0.4, *draft.Confidence)
}

func TestRun_ConflictDraftCarriesWarningNote(t *testing.T) {
	gigDate := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	messages := &fakeMessageRepo{unprocessed: []ingest.Message{testMessage("m1")}}
	bookings := &fakeBookingRepo{byDate: []booking.Booking{{
		ID: "other", VenueName: "The Fillmore", Status: booking.StatusConfirmed, Date: gigDate,
	}}}
	adapter := &fakeAdapter{results: map[string]*extraction.Result{
		"m1": {VenueName: "Blue Note", Date: &gigDate},
	}}

	svc := newTestService(t, messages, bookings, adapter, nil)
	_, err := svc.Run(context.Background())

	require.NoError(t, err)
	require.Len(t, bookings.inserted, 1)

	var found bool
	for _, note := range bookings.inserted[0].Notes {
		if strings.Contains(note.Text, "Warning") {
			found = true
		}
	}
	assert.True(t, found, "expected a conflict warning note on the draft")
}
