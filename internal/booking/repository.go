package booking

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	pkgerrors "stagehand/pkg/errors"
)

type Repository interface {
	Insert(ctx context.Context, b *Booking) error
	GetByID(ctx context.Context, id string) (*Booking, error)
	// QueryDateRange returns bookings with date in [from, to], ordered by
	// date then creation time so matching scans are deterministic.
	QueryDateRange(ctx context.Context, from, to time.Time) ([]Booking, error)
	QueryRecentConfirmed(ctx context.Context, limit int) ([]Booking, error)
	// AppendProposal writes the proposal, appends the note and raises the
	// unseen flag in a single statement. An empty update set keeps any
	// existing proposal and only appends the note.
	AppendProposal(ctx context.Context, id string, updates ProposedUpdates, note NoteEntry) error
	AcceptProposal(ctx context.Context, id string) (*Booking, error)
	RejectProposal(ctx context.Context, id string) (*Booking, error)
	Acknowledge(ctx context.Context, id string) error
}

type PostgresRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &PostgresRepository{db: db}
}

const bookingColumns = `
	id, venue_name, date, location, status, fee,
	contact_name, contact_email, contact_phone, start_time, end_time,
	source_message_id, confidence, notes, has_unseen_update, proposed_updates,
	created_at, updated_at
`

func (r *PostgresRepository) Insert(ctx context.Context, b *Booking) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	b.CreatedAt = now
	b.UpdatedAt = now

	notesJSON, err := json.Marshal(b.Notes)
	if err != nil {
		return fmt.Errorf("failed to marshal notes: %w", err)
	}
	if b.Notes == nil {
		notesJSON = []byte("[]")
	}

	var proposalJSON interface{}
	if len(b.ProposedUpdates) > 0 {
		data, err := json.Marshal(b.ProposedUpdates)
		if err != nil {
			return fmt.Errorf("failed to marshal proposed updates: %w", err)
		}
		proposalJSON = data
	}

	var sourceMessageID interface{}
	if b.SourceMessageID != "" {
		sourceMessageID = b.SourceMessageID
	}

	query := `
		INSERT INTO bookings (` + bookingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`

	_, err = r.db.ExecContext(ctx, query,
		b.ID, b.VenueName, b.Date, b.Location, string(b.Status), b.Fee,
		b.ContactName, b.ContactEmail, b.ContactPhone, b.StartTime, b.EndTime,
		sourceMessageID, b.Confidence, notesJSON, b.HasUnseenUpdate, proposalJSON,
		b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert booking: %w", err)
	}

	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`

	b, err := scanBooking(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.ErrNotFound.WithCause(err).WithDetail("message", fmt.Sprintf("booking %s not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}

	return b, nil
}

func (r *PostgresRepository) QueryDateRange(ctx context.Context, from, to time.Time) ([]Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE date >= $1 AND date <= $2
		ORDER BY date ASC, created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings by date: %w", err)
	}
	defer rows.Close()

	return collectBookings(ctx, rows)
}

func (r *PostgresRepository) QueryRecentConfirmed(ctx context.Context, limit int) ([]Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE status = $1
		ORDER BY date DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, string(StatusConfirmed), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query confirmed bookings: %w", err)
	}
	defer rows.Close()

	return collectBookings(ctx, rows)
}

func (r *PostgresRepository) AppendProposal(ctx context.Context, id string, updates ProposedUpdates, note NoteEntry) error {
	noteJSON, err := json.Marshal([]NoteEntry{note})
	if err != nil {
		return fmt.Errorf("failed to marshal note: %w", err)
	}

	var proposalJSON interface{}
	if len(updates) > 0 {
		data, err := json.Marshal(updates)
		if err != nil {
			return fmt.Errorf("failed to marshal proposed updates: %w", err)
		}
		proposalJSON = data
	}

	query := `
		UPDATE bookings
		SET proposed_updates = CASE WHEN $2::jsonb IS NULL THEN proposed_updates ELSE $2::jsonb END,
			notes = notes || $3::jsonb,
			has_unseen_update = TRUE,
			updated_at = now()
		WHERE id = $1
	`

	res, err := r.db.ExecContext(ctx, query, id, proposalJSON, noteJSON)
	if err != nil {
		return fmt.Errorf("failed to write proposal for booking %s: %w", id, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return pkgerrors.ErrNotFound.WithDetail("message", fmt.Sprintf("booking %s not found", id))
	}

	return nil
}

// AcceptProposal merges every proposed field into the canonical columns and
// clears both the proposal and the unseen flag, all inside one transaction
// so a concurrent batch run can never observe a half-applied accept.
func (r *PostgresRepository) AcceptProposal(ctx context.Context, id string) (*Booking, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1 FOR UPDATE`
	b, err := scanBooking(tx.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.ErrNotFound.WithCause(err).WithDetail("message", fmt.Sprintf("booking %s not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load booking: %w", err)
	}

	if !b.HasPendingProposal() {
		return nil, pkgerrors.ErrNotFound.WithDetail("message", fmt.Sprintf("booking %s has no pending proposal", id))
	}

	applyProposal(b)

	update := `
		UPDATE bookings
		SET venue_name = $2, location = $3, fee = $4, contact_name = $5,
			start_time = $6, end_time = $7,
			proposed_updates = NULL, has_unseen_update = FALSE, updated_at = now()
		WHERE id = $1
	`
	if _, err := tx.ExecContext(ctx, update,
		b.ID, b.VenueName, b.Location, b.Fee, b.ContactName, b.StartTime, b.EndTime,
	); err != nil {
		return nil, fmt.Errorf("failed to apply proposal: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit proposal accept: %w", err)
	}

	b.ProposedUpdates = nil
	b.HasUnseenUpdate = false
	return b, nil
}

func (r *PostgresRepository) RejectProposal(ctx context.Context, id string) (*Booking, error) {
	query := `
		UPDATE bookings
		SET proposed_updates = NULL, has_unseen_update = FALSE, updated_at = now()
		WHERE id = $1 AND proposed_updates IS NOT NULL
	`

	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to reject proposal for booking %s: %w", id, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, pkgerrors.ErrNotFound.WithDetail("message", fmt.Sprintf("booking %s has no pending proposal", id))
	}

	return r.GetByID(ctx, id)
}

func (r *PostgresRepository) Acknowledge(ctx context.Context, id string) error {
	query := `
		UPDATE bookings
		SET has_unseen_update = FALSE, updated_at = now()
		WHERE id = $1
	`

	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to acknowledge booking %s: %w", id, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return pkgerrors.ErrNotFound.WithDetail("message", fmt.Sprintf("booking %s not found", id))
	}

	return nil
}

// applyProposal merges the pending proposal into the canonical fields.
// Unknown keys are ignored rather than failing the accept: a proposal
// written by an older version must still be applicable.
func applyProposal(b *Booking) {
	for field, value := range b.ProposedUpdates {
		switch field {
		case FieldVenueName:
			if s, ok := value.(string); ok {
				b.VenueName = s
			}
		case FieldLocation:
			if s, ok := value.(string); ok {
				b.Location = s
			}
		case FieldFee:
			if f, ok := toFloat(value); ok {
				b.Fee = f
			}
		case FieldContactName:
			if s, ok := value.(string); ok {
				b.ContactName = s
			}
		case FieldStartTime:
			if s, ok := value.(string); ok {
				b.StartTime = s
			}
		case FieldEndTime:
			if s, ok := value.(string); ok {
				b.EndTime = s
			}
		}
	}
}

func toFloat(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	}
	return 0, false
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBooking(row rowScanner) (*Booking, error) {
	var (
		b               Booking
		status          string
		notesJSON       []byte
		proposalJSON    []byte
		sourceMessageID sql.NullString
	)

	err := row.Scan(
		&b.ID, &b.VenueName, &b.Date, &b.Location, &status, &b.Fee,
		&b.ContactName, &b.ContactEmail, &b.ContactPhone, &b.StartTime, &b.EndTime,
		&sourceMessageID, &b.Confidence, &notesJSON, &b.HasUnseenUpdate, &proposalJSON,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	b.Status = Status(status)
	b.SourceMessageID = sourceMessageID.String

	if len(notesJSON) > 0 {
		if err := json.Unmarshal(notesJSON, &b.Notes); err != nil {
			return nil, fmt.Errorf("failed to unmarshal notes: %w", err)
		}
	}
	if len(proposalJSON) > 0 {
		if err := json.Unmarshal(proposalJSON, &b.ProposedUpdates); err != nil {
			return nil, fmt.Errorf("failed to unmarshal proposed updates: %w", err)
		}
	}

	return &b, nil
}

func collectBookings(ctx context.Context, rows *sql.Rows) ([]Booking, error) {
	var bookings []Booking
	for rows.Next() {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("context cancelled: %w", ctx.Err())
		default:
		}

		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, *b)
	}

	return bookings, rows.Err()
}
