package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stagehand/internal/booking"
	pkgerrors "stagehand/pkg/errors"
)

func TestBookingRepository_InsertAndGet(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false)

	ctx := context.Background()
	repo := booking.NewRepository(infra.PostgresDB)

	b := createTestBooking("Blue Note", time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC), booking.StatusConfirmed)
	require.NoError(t, repo.Insert(ctx, b))
	require.NotEmpty(t, b.ID)

	stored, err := repo.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "Blue Note", stored.VenueName)
	assert.Equal(t, booking.StatusConfirmed, stored.Status)
	assert.Empty(t, stored.Notes)
	assert.False(t, stored.HasPendingProposal())
}

func TestBookingRepository_QueryDateRangeDayWindow(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false)

	ctx := context.Background()
	repo := booking.NewRepository(infra.PostgresDB)

	day := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	inside := createTestBooking("Inside", day.Add(20*time.Hour), booking.StatusConfirmed)
	before := createTestBooking("Before", day.Add(-time.Hour), booking.StatusConfirmed)
	after := createTestBooking("After", day.Add(25*time.Hour), booking.StatusConfirmed)

	require.NoError(t, repo.Insert(ctx, inside))
	require.NoError(t, repo.Insert(ctx, before))
	require.NoError(t, repo.Insert(ctx, after))

	got, err := repo.QueryDateRange(ctx, day, day.Add(24*time.Hour-time.Nanosecond))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Inside", got[0].VenueName)
}

func TestBookingRepository_QueryRecentConfirmed(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false)

	ctx := context.Background()
	repo := booking.NewRepository(infra.PostgresDB)

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Insert(ctx, createTestBooking("Old", base, booking.StatusConfirmed)))
	require.NoError(t, repo.Insert(ctx, createTestBooking("New", base.AddDate(0, 1, 0), booking.StatusConfirmed)))
	require.NoError(t, repo.Insert(ctx, createTestBooking("Draft", base.AddDate(0, 2, 0), booking.StatusDraft)))

	got, err := repo.QueryRecentConfirmed(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "New", got[0].VenueName)
}

func TestBookingRepository_ProposalRoundTrip(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false)

	ctx := context.Background()
	repo := booking.NewRepository(infra.PostgresDB)

	b := createTestBooking("Blue Note", time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC), booking.StatusConfirmed)
	require.NoError(t, repo.Insert(ctx, b))

	updates := booking.ProposedUpdates{
		booking.FieldFee:       600.0,
		booking.FieldStartTime: "21:00",
	}
	note := booking.NoteEntry{At: time.Now().UTC(), Text: "[ts] Update proposal: fee bumped"}
	require.NoError(t, repo.AppendProposal(ctx, b.ID, updates, note))

	stored, err := repo.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, stored.HasUnseenUpdate)
	require.True(t, stored.HasPendingProposal())
	assert.Equal(t, 600.0, stored.ProposedUpdates[booking.FieldFee])
	require.Len(t, stored.Notes, 1)
	assert.Contains(t, stored.Notes[0].Text, "fee bumped")

	// Accept merges everything and clears the review state.
	accepted, err := repo.AcceptProposal(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 600.0, accepted.Fee)
	assert.Equal(t, "21:00", accepted.StartTime)
	assert.False(t, accepted.HasPendingProposal())
	assert.False(t, accepted.HasUnseenUpdate)

	stored, err = repo.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 600.0, stored.Fee)
	assert.False(t, stored.HasPendingProposal())
	// The note log survives the accept.
	assert.Len(t, stored.Notes, 1)
}

func TestBookingRepository_RejectKeepsCanonicalFields(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false)

	ctx := context.Background()
	repo := booking.NewRepository(infra.PostgresDB)

	b := createTestBooking("Blue Note", time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC), booking.StatusConfirmed)
	require.NoError(t, repo.Insert(ctx, b))

	updates := booking.ProposedUpdates{booking.FieldFee: 600.0}
	note := booking.NoteEntry{At: time.Now().UTC(), Text: "[ts] Update proposal: fee bumped"}
	require.NoError(t, repo.AppendProposal(ctx, b.ID, updates, note))

	rejected, err := repo.RejectProposal(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 500.0, rejected.Fee)
	assert.False(t, rejected.HasPendingProposal())
	assert.False(t, rejected.HasUnseenUpdate)
}

func TestBookingRepository_AcceptWithoutProposalIsNotFound(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false)

	ctx := context.Background()
	repo := booking.NewRepository(infra.PostgresDB)

	b := createTestBooking("Blue Note", time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC), booking.StatusConfirmed)
	require.NoError(t, repo.Insert(ctx, b))

	_, err := repo.AcceptProposal(ctx, b.ID)
	assert.True(t, pkgerrors.IsNotFound(err))

	_, err = repo.RejectProposal(ctx, b.ID)
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestBookingRepository_SecondProposalAfterAccept(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false)

	ctx := context.Background()
	repo := booking.NewRepository(infra.PostgresDB)

	b := createTestBooking("Blue Note", time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC), booking.StatusConfirmed)
	require.NoError(t, repo.Insert(ctx, b))

	note := booking.NoteEntry{At: time.Now().UTC(), Text: "[ts] Update proposal: first"}
	require.NoError(t, repo.AppendProposal(ctx, b.ID, booking.ProposedUpdates{booking.FieldFee: 600.0}, note))
	_, err := repo.AcceptProposal(ctx, b.ID)
	require.NoError(t, err)

	// A fresh proposal starts a new review cycle.
	note2 := booking.NoteEntry{At: time.Now().UTC(), Text: "[ts] Update proposal: second"}
	require.NoError(t, repo.AppendProposal(ctx, b.ID, booking.ProposedUpdates{booking.FieldFee: 700.0}, note2))

	stored, err := repo.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, stored.HasPendingProposal())
	assert.Equal(t, 700.0, stored.ProposedUpdates[booking.FieldFee])
	assert.Len(t, stored.Notes, 2)
}

func TestBookingRepository_Acknowledge(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false)

	ctx := context.Background()
	repo := booking.NewRepository(infra.PostgresDB)

	b := createTestBooking("Blue Note", time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC), booking.StatusDraft)
	b.HasUnseenUpdate = true
	require.NoError(t, repo.Insert(ctx, b))

	require.NoError(t, repo.Acknowledge(ctx, b.ID))

	stored, err := repo.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.False(t, stored.HasUnseenUpdate)
}
