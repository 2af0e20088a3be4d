package connections

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hostvault/hostvault/internal/common"
	"github.com/hostvault/hostvault/internal/dbx"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Upsert(ctx context.Context, reg *IdentityConnectionRegistration) error {
	query := `
		INSERT INTO identity_connections
			(id, remote_identity, created, connected, remote_token_id, remote_token_half_key, shared_secret)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (remote_identity)
		DO UPDATE SET
			connected = EXCLUDED.connected,
			remote_token_id = EXCLUDED.remote_token_id,
			remote_token_half_key = EXCLUDED.remote_token_half_key,
			shared_secret = EXCLUDED.shared_secret;
	`
	_, err := r.db.ExecContext(ctx, query,
		reg.ID, reg.RemoteIdentity, reg.Created, reg.Connected,
		reg.RemoteTokenID, reg.RemoteTokenHalfKey, reg.SharedSecret)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByIdentity(ctx context.Context, remoteIdentity string) (*IdentityConnectionRegistration, error) {
	query := `
		SELECT id, remote_identity, created, connected, remote_token_id, remote_token_half_key, shared_secret
		FROM identity_connections WHERE remote_identity=$1;
	`
	var reg IdentityConnectionRegistration
	err := r.db.QueryRowContext(ctx, query, remoteIdentity).Scan(
		&reg.ID, &reg.RemoteIdentity, &reg.Created, &reg.Connected,
		&reg.RemoteTokenID, &reg.RemoteTokenHalfKey, &reg.SharedSecret)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &reg, nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]*IdentityConnectionRegistration, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, remote_identity, created, connected, remote_token_id, remote_token_half_key, shared_secret
		FROM identity_connections ORDER BY remote_identity;
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to select connections: %w", err)
	}
	defer rows.Close()

	var result []*IdentityConnectionRegistration
	for rows.Next() {
		var reg IdentityConnectionRegistration
		if err := rows.Scan(
			&reg.ID, &reg.RemoteIdentity, &reg.Created, &reg.Connected,
			&reg.RemoteTokenID, &reg.RemoteTokenHalfKey, &reg.SharedSecret,
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

func (r *PostgresRepository) Disconnect(ctx context.Context, remoteIdentity string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE identity_connections SET connected=FALSE WHERE remote_identity=$1;`, remoteIdentity)
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
