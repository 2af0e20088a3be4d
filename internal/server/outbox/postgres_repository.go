package outbox

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hostvault/hostvault/internal/common"
	"github.com/hostvault/hostvault/internal/dbx"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const selectColumns = `id, file_id, target_drive_id, recipient, key_header_cipher,
	payload_key, metadata_key, thumbnail_keys, priority, attempts, state,
	last_failure, first_added, last_attempt, next_attempt`

func scanItem(row interface{ Scan(...any) error }) (*Item, error) {
	var item Item
	var thumbnailKeys string
	err := row.Scan(
		&item.ID, &item.FileID, &item.TargetDriveID, &item.Recipient, &item.KeyHeaderCipher,
		&item.PayloadKey, &item.MetadataKey, &thumbnailKeys, &item.Priority, &item.Attempts,
		&item.State, &item.LastFailure, &item.FirstAdded, &item.LastAttempt, &item.NextAttempt)
	if err != nil {
		return nil, err
	}
	item.ThumbnailKeys = splitKeys(thumbnailKeys)
	return &item, nil
}

// Thumbnail blob keys never contain commas, so the set round-trips
// through one TEXT column.
func joinKeys(keys []string) string {
	return strings.Join(keys, ",")
}

func splitKeys(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func (r *PostgresRepository) Enqueue(ctx context.Context, item *Item) error {
	query := `
		INSERT INTO transit_outbox
			(id, file_id, target_drive_id, recipient, key_header_cipher,
			 payload_key, metadata_key, thumbnail_keys, priority, attempts, state,
			 last_failure, first_added, last_attempt, next_attempt)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (file_id, recipient) DO UPDATE SET
			key_header_cipher = EXCLUDED.key_header_cipher,
			priority = GREATEST(transit_outbox.priority, EXCLUDED.priority),
			state = 'pending',
			next_attempt = LEAST(transit_outbox.next_attempt, EXCLUDED.next_attempt);
	`
	_, err := r.db.ExecContext(ctx, query,
		item.ID, item.FileID, item.TargetDriveID, item.Recipient, item.KeyHeaderCipher,
		item.PayloadKey, item.MetadataKey, joinKeys(item.ThumbnailKeys), item.Priority, item.Attempts,
		item.State, item.LastFailure, item.FirstAdded, item.LastAttempt, item.NextAttempt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) DequeueBatch(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]*Item, error) {
	query := `
		UPDATE transit_outbox SET next_attempt = $1
		WHERE id IN (
			SELECT id FROM transit_outbox
			WHERE state = 'pending' AND next_attempt <= $2
			ORDER BY priority DESC, next_attempt
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + selectColumns + `;`
	rows, err := r.db.QueryContext(ctx, query, now.Add(lease), now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to claim outbox items: %w", err)
	}
	defer rows.Close()

	var result []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Item, error) {
	query := `SELECT ` + selectColumns + ` FROM transit_outbox WHERE id=$1;`
	item, err := scanItem(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return item, nil
}

func (r *PostgresRepository) List(ctx context.Context, offset, limit int) ([]*Item, error) {
	query := `SELECT ` + selectColumns + ` FROM transit_outbox
		ORDER BY first_added OFFSET $1 LIMIT $2;`
	rows, err := r.db.QueryContext(ctx, query, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to select outbox items: %w", err)
	}
	defer rows.Close()

	var result []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) CountByFile(ctx context.Context, fileID uuid.UUID) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transit_outbox WHERE file_id=$1;`, fileID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) MarkDelivered(ctx context.Context, id uuid.UUID) error {
	return r.exec(ctx, `DELETE FROM transit_outbox WHERE id=$1;`, id)
}

func (r *PostgresRepository) Reschedule(ctx context.Context, id uuid.UUID, attempts int, nextAttempt time.Time, lastFailure string) error {
	return r.exec(ctx, `UPDATE transit_outbox
		SET attempts=$2, next_attempt=$3, last_attempt=NOW(), last_failure=$4
		WHERE id=$1;`, id, attempts, nextAttempt, lastFailure)
}

func (r *PostgresRepository) MarkDead(ctx context.Context, id uuid.UUID, lastFailure string) error {
	return r.exec(ctx, `UPDATE transit_outbox
		SET state='dead', last_attempt=NOW(), last_failure=$2
		WHERE id=$1;`, id, lastFailure)
}

func (r *PostgresRepository) SetPriority(ctx context.Context, id uuid.UUID, priority int) error {
	return r.exec(ctx, `UPDATE transit_outbox SET priority=$2 WHERE id=$1;`, id, priority)
}

func (r *PostgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.exec(ctx, `DELETE FROM transit_outbox WHERE id=$1;`, id)
}

func (r *PostgresRepository) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
