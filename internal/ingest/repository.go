package ingest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type Repository interface {
	Upsert(ctx context.Context, msg *Message) error
	GetByID(ctx context.Context, id string) (*Message, error)
	ListUnprocessed(ctx context.Context, limit int) ([]Message, error)
	MarkProcessed(ctx context.Context, id string) error
}

type PostgresRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &PostgresRepository{db: db}
}

// Upsert writes or replaces a message by identity. On conflict only the
// content fields are replaced; the processed flag and timestamp are left
// alone so a re-sync can never resurrect an already-handled message.
func (r *PostgresRepository) Upsert(ctx context.Context, msg *Message) error {
	query := `
		INSERT INTO messages (id, subject, sender, sender_address, body, folder, received_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
		ON CONFLICT (id) DO UPDATE SET
			subject = EXCLUDED.subject,
			sender = EXCLUDED.sender,
			sender_address = EXCLUDED.sender_address,
			body = EXCLUDED.body,
			folder = EXCLUDED.folder,
			received_at = EXCLUDED.received_at,
			updated_at = now()
	`

	_, err := r.db.ExecContext(ctx, query,
		msg.ID, msg.Subject, msg.Sender, msg.SenderAddress,
		msg.Body, msg.Folder, msg.ReceivedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert message %s: %w", msg.ID, err)
	}

	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Message, error) {
	query := `
		SELECT id, subject, sender, sender_address, body, folder, received_at, processed, processed_at
		FROM messages
		WHERE id = $1
	`

	row := r.db.QueryRowContext(ctx, query, id)

	var msg Message
	err := row.Scan(
		&msg.ID, &msg.Subject, &msg.Sender, &msg.SenderAddress,
		&msg.Body, &msg.Folder, &msg.ReceivedAt, &msg.Processed, &msg.ProcessedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("message not found: %w", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}

	return &msg, nil
}

// ListUnprocessed returns up to limit unprocessed messages, oldest first,
// so extraction context stays chronological.
func (r *PostgresRepository) ListUnprocessed(ctx context.Context, limit int) ([]Message, error) {
	query := `
		SELECT id, subject, sender, sender_address, body, folder, received_at, processed, processed_at
		FROM messages
		WHERE processed = FALSE
		ORDER BY received_at ASC
		LIMIT $1
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list unprocessed messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("context cancelled: %w", ctx.Err())
		default:
		}

		var msg Message
		if err := rows.Scan(
			&msg.ID, &msg.Subject, &msg.Sender, &msg.SenderAddress,
			&msg.Body, &msg.Folder, &msg.ReceivedAt, &msg.Processed, &msg.ProcessedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, msg)
	}

	return messages, rows.Err()
}

// MarkProcessed is idempotent; marking an already-processed message keeps
// its original processed timestamp.
func (r *PostgresRepository) MarkProcessed(ctx context.Context, id string) error {
	query := `
		UPDATE messages
		SET processed = TRUE,
			processed_at = COALESCE(processed_at, $2),
			updated_at = now()
		WHERE id = $1
	`

	res, err := r.db.ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to mark message %s processed: %w", id, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("message not found")
	}

	return nil
}
