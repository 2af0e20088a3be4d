package owner

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

func (r *PostgresRepository) Get(ctx context.Context) (*Profile, error) {
	query := `SELECT created, master_key_salt, master_key_verifier FROM owner_profile WHERE id=1;`
	var p Profile
	err := r.db.QueryRowContext(ctx, query).Scan(&p.Created, &p.MasterKeySalt, &p.MasterKeyVerifier)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &p, nil
}

func (r *PostgresRepository) Save(ctx context.Context, profile *Profile) error {
	query := `
		INSERT INTO owner_profile (id, created, master_key_salt, master_key_verifier)
		VALUES (1, $1, $2, $3)
		ON CONFLICT (id)
		DO UPDATE SET master_key_salt = EXCLUDED.master_key_salt,
			master_key_verifier = EXCLUDED.master_key_verifier;
	`
	_, err := r.db.ExecContext(ctx, query, profile.Created, profile.MasterKeySalt, profile.MasterKeyVerifier)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
