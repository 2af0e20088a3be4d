package registrations

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
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

const selectColumns = `id, grant_id, created, last_used, client_half_key_encrypted_access_key,
	access_key_encrypted_shared_secret, access_key_encrypted_grant_key, is_revoked`

func (r *PostgresRepository) Create(ctx context.Context, reg *AccessRegistration) error {
	query := `
		INSERT INTO access_registrations
			(id, grant_id, created, last_used, client_half_key_encrypted_access_key,
			 access_key_encrypted_shared_secret, access_key_encrypted_grant_key, is_revoked)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8);
	`
	_, err := r.db.ExecContext(ctx, query,
		reg.ID, reg.GrantID, reg.Created, reg.LastUsed, reg.ClientHalfKeyEncryptedAccessKey,
		reg.AccessKeyEncryptedSharedSecret, reg.AccessKeyEncryptedGrantKey, reg.IsRevoked)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*AccessRegistration, error) {
	query := `SELECT ` + selectColumns + ` FROM access_registrations WHERE id=$1;`
	var reg AccessRegistration
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&reg.ID, &reg.GrantID, &reg.Created, &reg.LastUsed, &reg.ClientHalfKeyEncryptedAccessKey,
		&reg.AccessKeyEncryptedSharedSecret, &reg.AccessKeyEncryptedGrantKey, &reg.IsRevoked)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &reg, nil
}

func (r *PostgresRepository) ListByGrant(ctx context.Context, grantID uuid.UUID) ([]*AccessRegistration, error) {
	query := `SELECT ` + selectColumns + ` FROM access_registrations WHERE grant_id=$1 ORDER BY created;`
	rows, err := r.db.QueryContext(ctx, query, grantID)
	if err != nil {
		return nil, fmt.Errorf("failed to select registrations: %w", err)
	}
	defer rows.Close()

	var result []*AccessRegistration
	for rows.Next() {
		var reg AccessRegistration
		if err := rows.Scan(
			&reg.ID, &reg.GrantID, &reg.Created, &reg.LastUsed, &reg.ClientHalfKeyEncryptedAccessKey,
			&reg.AccessKeyEncryptedSharedSecret, &reg.AccessKeyEncryptedGrantKey, &reg.IsRevoked,
		); err != nil {
			return nil, err
		}
		result = append(result, &reg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) Revoke(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `UPDATE access_registrations SET is_revoked=TRUE WHERE id=$1;`, id)
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

func (r *PostgresRepository) TouchLastUsed(ctx context.Context, id uuid.UUID, when time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE access_registrations SET last_used=$2 WHERE id=$1;`, id, when)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
