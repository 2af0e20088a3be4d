package drives

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/hostvault/hostvault/internal/common"
	"github.com/hostvault/hostvault/internal/dbx"
)

// PostgresRepository implements drive storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, drive *Drive) error {
	query := `
		INSERT INTO drives (id, name, created, master_key_encrypted_storage_key)
		VALUES ($1, $2, $3, $4);
	`
	_, err := r.db.ExecContext(ctx, query,
		drive.ID, drive.Name, drive.Created, drive.MasterKeyEncryptedStorageKey)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Drive, error) {
	query := `
		SELECT id, name, created, master_key_encrypted_storage_key
		FROM drives WHERE id=$1;
	`
	var drive Drive
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&drive.ID, &drive.Name, &drive.Created, &drive.MasterKeyEncryptedStorageKey)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &drive, nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]*Drive, error) {
	query := `
		SELECT id, name, created, master_key_encrypted_storage_key
		FROM drives ORDER BY created;
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select drives: %w", err)
	}
	defer rows.Close()

	var result []*Drive
	for rows.Next() {
		var item Drive
		if err := rows.Scan(&item.ID, &item.Name, &item.Created, &item.MasterKeyEncryptedStorageKey); err != nil {
			return nil, err
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
