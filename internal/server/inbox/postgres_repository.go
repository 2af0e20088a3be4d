package inbox

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

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

const selectColumns = `id, file_id, target_drive_id, sender, received,
	key_header_cipher, payload_key, metadata_key, thumbnail_keys`

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

func (r *PostgresRepository) Create(ctx context.Context, entry *InboxEntry) error {
	query := `
		INSERT INTO inbox_entries
			(id, file_id, target_drive_id, sender, received,
			 key_header_cipher, payload_key, metadata_key, thumbnail_keys)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);
	`
	_, err := r.db.ExecContext(ctx, query,
		entry.ID, entry.FileID, entry.TargetDriveID, entry.Sender, entry.Received,
		entry.KeyHeaderCipher, entry.PayloadKey, entry.MetadataKey, joinKeys(entry.ThumbnailKeys))
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*InboxEntry, error) {
	query := `SELECT ` + selectColumns + ` FROM inbox_entries WHERE id=$1;`
	var entry InboxEntry
	var thumbnailKeys string
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&entry.ID, &entry.FileID, &entry.TargetDriveID, &entry.Sender, &entry.Received,
		&entry.KeyHeaderCipher, &entry.PayloadKey, &entry.MetadataKey, &thumbnailKeys)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	entry.ThumbnailKeys = splitKeys(thumbnailKeys)
	return &entry, nil
}

func (r *PostgresRepository) ListByDrive(ctx context.Context, driveID uuid.UUID) ([]*InboxEntry, error) {
	query := `SELECT ` + selectColumns + ` FROM inbox_entries WHERE target_drive_id=$1 ORDER BY received;`
	return r.queryList(ctx, query, driveID)
}

func (r *PostgresRepository) List(ctx context.Context) ([]*InboxEntry, error) {
	query := `SELECT ` + selectColumns + ` FROM inbox_entries ORDER BY received;`
	return r.queryList(ctx, query)
}

func (r *PostgresRepository) queryList(ctx context.Context, query string, args ...any) ([]*InboxEntry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select inbox entries: %w", err)
	}
	defer rows.Close()

	var result []*InboxEntry
	for rows.Next() {
		var entry InboxEntry
		var thumbnailKeys string
		if err := rows.Scan(
			&entry.ID, &entry.FileID, &entry.TargetDriveID, &entry.Sender, &entry.Received,
			&entry.KeyHeaderCipher, &entry.PayloadKey, &entry.MetadataKey, &thumbnailKeys,
		); err != nil {
			return nil, err
		}
		entry.ThumbnailKeys = splitKeys(thumbnailKeys)
		result = append(result, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM inbox_entries WHERE id=$1;`, id)
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
