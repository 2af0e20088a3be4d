package grants

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

// PostgresRepository stores grants in two tables: exchange_grants plus one
// drive_grants row per granted drive.
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, grant *ExchangeGrant) error {
	query := `
		INSERT INTO exchange_grants
			(id, created, modified, grantee_type, grantee, master_key_encrypted_grant_key, is_revoked, permission_set)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8);
	`
	_, err := r.db.ExecContext(ctx, query,
		grant.ID, grant.Created, grant.Modified, grant.GranteeType, grant.Grantee,
		grant.MasterKeyEncryptedGrantKey, grant.IsRevoked, grant.PermissionSet)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	for _, dg := range grant.DriveGrants {
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO drive_grants (grant_id, drive_id, grant_key_encrypted_storage_key, permission)
			VALUES ($1, $2, $3, $4);
		`, grant.ID, dg.DriveID, dg.GrantKeyEncryptedStorageKey, dg.Permission)
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*ExchangeGrant, error) {
	query := `
		SELECT id, created, modified, grantee_type, grantee, master_key_encrypted_grant_key, is_revoked, permission_set
		FROM exchange_grants WHERE id=$1;
	`
	var grant ExchangeGrant
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&grant.ID, &grant.Created, &grant.Modified, &grant.GranteeType, &grant.Grantee,
		&grant.MasterKeyEncryptedGrantKey, &grant.IsRevoked, &grant.PermissionSet)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT drive_id, grant_key_encrypted_storage_key, permission
		FROM drive_grants WHERE grant_id=$1;
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to select drive grants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var dg DriveGrant
		if err := rows.Scan(&dg.DriveID, &dg.GrantKeyEncryptedStorageKey, &dg.Permission); err != nil {
			return nil, err
		}
		grant.DriveGrants = append(grant.DriveGrants, dg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &grant, nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]*ExchangeGrant, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, created, modified, grantee_type, grantee, master_key_encrypted_grant_key, is_revoked, permission_set
		FROM exchange_grants ORDER BY created;
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to select grants: %w", err)
	}
	defer rows.Close()

	var result []*ExchangeGrant
	for rows.Next() {
		var grant ExchangeGrant
		if err := rows.Scan(
			&grant.ID, &grant.Created, &grant.Modified, &grant.GranteeType, &grant.Grantee,
			&grant.MasterKeyEncryptedGrantKey, &grant.IsRevoked, &grant.PermissionSet,
		); err != nil {
			return nil, err
		}
		result = append(result, &grant)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) Revoke(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE exchange_grants SET is_revoked=TRUE, modified=$2 WHERE id=$1;
	`, id, time.Now().UTC())
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
